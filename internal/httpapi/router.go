package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"jaterm_gateway/internal/anomaly"
	"jaterm_gateway/internal/audit"
	"jaterm_gateway/internal/config"
	"jaterm_gateway/internal/logging"
	"jaterm_gateway/internal/metrics"
	"jaterm_gateway/internal/middleware"
	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/policy"
	"jaterm_gateway/internal/prompt"
	"jaterm_gateway/internal/providers"
	"jaterm_gateway/internal/queue"
	"jaterm_gateway/internal/ratelimit"
	"jaterm_gateway/internal/risk"
	"jaterm_gateway/internal/secrets"
	"jaterm_gateway/internal/storage"
	"jaterm_gateway/internal/terminalai"
	"jaterm_gateway/internal/utils"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	DB    *storage.DB
	Redis *storage.RedisClient
	Codec *secrets.Codec

	ProviderRepo *storage.ProviderRepository
	PolicyRepo   *storage.PolicyRepository
	TemplateRepo *storage.TemplateRepository
	AlertRepo    *storage.AlertRepository

	Providers *providers.Manager
	Policies  *policy.Engine
	Prompts   *prompt.Gateway
	Audit     *audit.Logger
	Risk      *risk.Analyzer
	Anomaly   *anomaly.Detector
	Service   *terminalai.Service
	Metrics   metrics.Metrics

	// AuditWorker is nil when audit entries are written synchronously
	AuditWorker *storage.AuditQueueWorker
	AccessLog   *logging.AccessLog

	JWTSecret []byte
	// defaultTimeoutMs applies to new providers created without timeout_ms
	defaultTimeoutMs int
	logger           *utils.Logger
}

// NewRouter creates an HTTP handler with all dependencies wired up
func NewRouter(cfg *config.Config) (http.Handler, *Dependencies, error) {
	deps, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}
	return Routes(deps), deps, nil
}

// NewDependencies opens storage and builds every service. Background workers
// are created but not started; see Start.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	logger := utils.NewLogger("httpapi")
	deps := &Dependencies{
		JWTSecret:        cfg.JWTSecret,
		defaultTimeoutMs: int(cfg.Provider.RequestTimeout.Milliseconds()),
		logger:           logger,
	}

	dbConfig := storage.DefaultDBConfig()
	dbConfig.Driver = cfg.Database.Driver
	dbConfig.DSN = cfg.Database.URL
	dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	dbConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	dbConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	dbConfig.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	dbConfig.QueryTimeout = cfg.Database.QueryTimeout

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.DB = db

	if cfg.UsesRedis() {
		redisConfig := storage.DefaultRedisConfig()
		redisConfig.Address = cfg.Redis.Address
		redisConfig.Password = cfg.Redis.Password
		redisConfig.DB = cfg.Redis.DB
		redisConfig.PoolSize = cfg.Redis.PoolSize
		redisConfig.MinIdleConns = cfg.Redis.MinIdleConns
		redisConfig.DialTimeout = cfg.Redis.DialTimeout
		redisConfig.ReadTimeout = cfg.Redis.ReadTimeout
		redisConfig.WriteTimeout = cfg.Redis.WriteTimeout

		redisClient, err := storage.NewRedisClient(redisConfig)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		deps.Redis = redisClient
	}

	codec, err := secrets.NewCodecWithKDF(cfg.MasterSecret, secrets.KDF(cfg.KDF))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize credential codec: %w", err)
	}
	deps.Codec = codec

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.NewPrometheus(cfg.Metrics.Namespace)
	} else {
		deps.Metrics = metrics.NoopMetrics{}
	}

	deps.ProviderRepo = db.NewProviderRepository()
	deps.PolicyRepo = db.NewPolicyRepository()
	deps.TemplateRepo = db.NewTemplateRepository()
	deps.AlertRepo = db.NewAlertRepository()
	auditRepo := db.NewAuditRepository()

	deps.Providers = providers.NewManager(deps.ProviderRepo, codec, nil)

	var limits ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RateLimit.Backend == "redis" {
		limits = ratelimit.NewRedisStore(deps.Redis.Client())
	}
	deps.Policies = policy.NewEngine(deps.PolicyRepo, limits,
		policy.WithCacheTTL(cfg.Policy.CacheTTL),
		policy.WithLocation(cfg.Location()),
	)

	deps.Prompts = prompt.NewGateway(deps.TemplateRepo,
		prompt.WithMaxLength(cfg.Prompt.MaxLength),
		prompt.WithMasking(cfg.Prompt.Masking),
	)

	sink, err := deps.auditSink(cfg, auditRepo)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Audit = audit.NewLogger(sink, auditRepo)

	riskOpts := []risk.Option{risk.WithThresholds(cfg.Risk.WarnThreshold, cfg.Risk.BlockThreshold)}
	if cfg.Risk.RulesFile != "" {
		extra, err := risk.LoadRules(cfg.Risk.RulesFile)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to load risk rules: %w", err)
		}
		riskOpts = append(riskOpts, risk.WithRules(extra...))
		logger.Info("Loaded risk rules pack", "file", cfg.Risk.RulesFile, "count", len(extra))
	}
	deps.Risk = risk.NewAnalyzer(deps.AlertRepo, riskOpts...)

	deps.Anomaly = anomaly.NewDetector(db.NewProfileRepository(), deps.AlertRepo,
		anomaly.WithThreshold(cfg.Anomaly.Threshold),
		anomaly.WithLocation(cfg.Location()),
	)

	deps.Service = terminalai.NewService(terminalai.Deps{
		Policy:    deps.Policies,
		Prompts:   deps.Prompts,
		Providers: deps.Providers,
		Audit:     deps.Audit,
		Risk:      deps.Risk,
		Metrics:   deps.Metrics,
	})

	if cfg.AccessLog.Enabled {
		accessLog, err := logging.NewAccessLog(
			cfg.AccessLog.FilePathTemplate,
			cfg.AccessLog.MaxSize,
			cfg.AccessLog.MaxFiles,
			cfg.AccessLog.BufferSize,
			cfg.AccessLog.FlushInterval,
		)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize access log: %w", err)
		}
		deps.AccessLog = accessLog
	}

	return deps, nil
}

// auditSink picks a direct repository write or a queue drained by the audit worker
func (d *Dependencies) auditSink(cfg *config.Config, repo *storage.AuditRepository) (audit.Sink, error) {
	if !cfg.Audit.Async {
		return audit.NewDirectSink(repo), nil
	}

	queueConfig := queue.DefaultConfig("audit")
	queueConfig.BatchSize = cfg.Audit.BatchSize
	queueConfig.BatchTimeout = cfg.Audit.BatchTimeout
	queueConfig.MaxRetries = cfg.Audit.MaxRetries
	queueConfig.RetryBackoff = cfg.Audit.RetryBackoff

	var (
		q   queue.Queue[models.AuditEntry]
		dlq queue.DeadLetterQueue[models.AuditEntry]
	)
	if cfg.Audit.UseRedis {
		q = queue.NewRedisQueue[models.AuditEntry](d.Redis.Client(), queueConfig.QueueName)
		dlq = queue.NewRedisDeadLetterQueue[models.AuditEntry](d.Redis.Client(), queueConfig.QueueName)
	} else {
		q = queue.NewMemoryQueue[models.AuditEntry](queueConfig)
		dlq = queue.NewMemoryDeadLetterQueue[models.AuditEntry]()
	}

	var archiver storage.BatchArchiver
	if cfg.AuditArchive.Enabled {
		s3Archiver, err := audit.NewS3Archiver(context.Background(), audit.S3Config{
			Bucket:   cfg.AuditArchive.Bucket,
			Region:   cfg.AuditArchive.Region,
			Prefix:   cfg.AuditArchive.Prefix,
			PodName:  cfg.AuditArchive.PodName,
			Endpoint: cfg.AuditArchive.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit archive: %w", err)
		}
		archiver = s3Archiver
	}

	d.AuditWorker = storage.NewAuditQueueWorker(q, dlq, repo, archiver, queueConfig)
	return audit.NewQueueSink(q), nil
}

// Start launches background workers
func (d *Dependencies) Start(ctx context.Context) {
	if d.AuditWorker != nil {
		d.AuditWorker.Start(ctx)
		d.logger.Info("Audit queue worker started")
	}
}

// Close stops workers, flushes logs and releases connections. It is safe on a
// partially built value.
func (d *Dependencies) Close() error {
	var errs []error
	if d.AuditWorker != nil {
		if err := d.AuditWorker.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("audit worker: %w", err))
		}
	}
	if d.AccessLog != nil {
		d.AccessLog.Shutdown()
	}
	if d.Providers != nil {
		_ = d.Providers.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Routes registers every endpoint on a fresh ServeMux
func Routes(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	anyRole := middleware.IdentityMiddleware(deps.JWTSecret)
	adminOnly := middleware.IdentityMiddleware(deps.JWTSecret, models.RoleAdmin)

	// Terminal AI
	mux.Handle("POST /v1/terminal/explain", anyRole(http.HandlerFunc(deps.handleExplain)))
	mux.Handle("POST /v1/terminal/generate", anyRole(http.HandlerFunc(deps.handleGenerate)))
	mux.Handle("POST /v1/terminal/analyze", anyRole(http.HandlerFunc(deps.handleAnalyze)))
	mux.Handle("POST /v1/terminal/summarize", anyRole(http.HandlerFunc(deps.handleSummarize)))
	mux.Handle("GET /v1/terminal/templates", anyRole(http.HandlerFunc(deps.handleListTemplates)))

	// Anomaly detection
	mux.Handle("POST /v1/anomaly/sessions", anyRole(http.HandlerFunc(deps.handleRecordSession)))
	mux.Handle("POST /v1/anomaly/detect", anyRole(http.HandlerFunc(deps.handleDetectAnomaly)))

	// Providers
	mux.Handle("GET /admin/providers", adminOnly(http.HandlerFunc(deps.handleListProviders)))
	mux.Handle("POST /admin/providers", adminOnly(http.HandlerFunc(deps.handleCreateProvider)))
	mux.Handle("POST /admin/providers/test", adminOnly(http.HandlerFunc(deps.handleTestProviderConfig)))
	mux.Handle("POST /admin/providers/cache/clear", adminOnly(http.HandlerFunc(deps.handleClearProviderCache)))
	mux.Handle("GET /admin/providers/{id}", adminOnly(http.HandlerFunc(deps.handleGetProvider)))
	mux.Handle("PUT /admin/providers/{id}", adminOnly(http.HandlerFunc(deps.handleUpdateProvider)))
	mux.Handle("DELETE /admin/providers/{id}", adminOnly(http.HandlerFunc(deps.handleDeleteProvider)))
	mux.Handle("POST /admin/providers/{id}/test", adminOnly(http.HandlerFunc(deps.handleTestProvider)))
	mux.Handle("GET /admin/providers/{id}/models", adminOnly(http.HandlerFunc(deps.handleListProviderModels)))

	// Policies and templates
	mux.Handle("GET /admin/policies", adminOnly(http.HandlerFunc(deps.handleListPolicies)))
	mux.Handle("POST /admin/policies", adminOnly(http.HandlerFunc(deps.handleCreatePolicy)))
	mux.Handle("PUT /admin/policies/{id}", adminOnly(http.HandlerFunc(deps.handleUpdatePolicy)))
	mux.Handle("POST /admin/policies/{id}/deactivate", adminOnly(http.HandlerFunc(deps.handleDeactivatePolicy)))
	mux.Handle("POST /admin/policies/cache/clear", adminOnly(http.HandlerFunc(deps.handleClearPolicyCache)))
	mux.Handle("POST /admin/templates", adminOnly(http.HandlerFunc(deps.handleCreateTemplate)))

	// Audit and alerts
	mux.Handle("GET /admin/audit/logs", adminOnly(http.HandlerFunc(deps.handleAuditLogs)))
	mux.Handle("GET /admin/audit/stats", adminOnly(http.HandlerFunc(deps.handleAuditStats)))
	mux.Handle("GET /admin/audit/dashboard", adminOnly(http.HandlerFunc(deps.handleAuditDashboard)))
	mux.Handle("GET /admin/audit/dead-letters", adminOnly(http.HandlerFunc(deps.handleDeadLetters)))
	mux.Handle("POST /admin/audit/dead-letters/{id}/retry", adminOnly(http.HandlerFunc(deps.handleRetryDeadLetter)))
	mux.Handle("GET /admin/alerts", adminOnly(http.HandlerFunc(deps.handleListAlerts)))

	// Health check endpoint - public
	mux.HandleFunc("GET /health", deps.handleHealth)

	// Metrics endpoint - public
	mux.Handle("GET /metrics", deps.Metrics.HTTPHandler())

	var access middleware.AccessRecorder
	if deps.AccessLog != nil {
		access = deps.AccessLog
	}
	return middleware.Observe(deps.Metrics, access)(mux)
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK
	if err := d.DB.Health(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if d.Redis != nil {
		status["redis"] = "ok"
		if err := d.Redis.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	utils.RespondWithJSON(w, code, status)
}
