package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/utils"
)

// ProviderStore is the persistence view the manager needs.
// Lookups that find nothing return an error wrapping models.ErrNotFound.
type ProviderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error)
	GetDefault(ctx context.Context) (*models.ProviderConfig, error)
	GetAnyActive(ctx context.Context) (*models.ProviderConfig, error)
}

// CredentialDecoder decrypts stored credentials; implemented by secrets.Codec.
type CredentialDecoder interface {
	Decrypt(value string) string
}

// Manager caches live adapters by provider id and resolves the default provider.
type Manager struct {
	store   ProviderStore
	codec   CredentialDecoder
	factory *ProviderFactory
	logger  *utils.Logger

	mu        sync.RWMutex
	cache     map[uuid.UUID]Adapter
	defaultID *uuid.UUID
}

// NewManager creates a provider manager. A nil factory uses the built-in connectors.
func NewManager(store ProviderStore, codec CredentialDecoder, factory *ProviderFactory) *Manager {
	if factory == nil {
		factory = NewProviderFactory()
	}
	return &Manager{
		store:   store,
		codec:   codec,
		factory: factory,
		logger:  utils.NewLogger("provider-manager"),
		cache:   make(map[uuid.UUID]Adapter),
	}
}

// LoadProvider returns the cached adapter for id, building and caching it on first use.
func (m *Manager) LoadProvider(ctx context.Context, id uuid.UUID) (Adapter, error) {
	m.mu.RLock()
	adapter, ok := m.cache[id]
	m.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	cfg, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider %s: %w", id, err)
	}
	if !cfg.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrProviderInactive, cfg.Name)
	}

	adapter, err = m.build(cfg, m.credential(cfg))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.cache[id]; ok {
		// Lost a race with another loader; keep the first instance.
		_ = adapter.Close()
		return existing, nil
	}
	m.cache[id] = adapter
	if cfg.IsDefault {
		defaultID := cfg.ID
		m.defaultID = &defaultID
	}

	m.logger.Info("Provider loaded", "id", cfg.ID, "name", cfg.Name, "type", cfg.Type)
	return adapter, nil
}

// GetDefaultProvider resolves the cached default, then the flagged default,
// then any active provider.
func (m *Manager) GetDefaultProvider(ctx context.Context) (Adapter, error) {
	m.mu.RLock()
	defaultID := m.defaultID
	m.mu.RUnlock()
	if defaultID != nil {
		return m.LoadProvider(ctx, *defaultID)
	}

	cfg, err := m.store.GetDefault(ctx)
	if errors.Is(err, models.ErrNotFound) {
		cfg, err = m.store.GetAnyActive(ctx)
	}
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrNoProviderConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default provider: %w", err)
	}

	return m.LoadProvider(ctx, cfg.ID)
}

// Resolve returns the provider for id, or the default provider when id is nil.
func (m *Manager) Resolve(ctx context.Context, id *uuid.UUID) (Adapter, error) {
	if id != nil {
		return m.LoadProvider(ctx, *id)
	}
	return m.GetDefaultProvider(ctx)
}

// TestConnection tests a stored provider through the cache.
func (m *Manager) TestConnection(ctx context.Context, id uuid.UUID) ConnectionResult {
	adapter, err := m.LoadProvider(ctx, id)
	if err != nil {
		return ConnectionResult{Success: false, Error: err.Error()}
	}
	return adapter.TestConnection(ctx)
}

// TestConnectionWithConfig validates unsaved settings with a throwaway adapter.
// The cache is never touched.
func (m *Manager) TestConnectionWithConfig(ctx context.Context, cfg models.ProviderConfig, credential string) ConnectionResult {
	adapter, err := m.build(&cfg, credential)
	if err != nil {
		return ConnectionResult{Success: false, Error: err.Error()}
	}
	defer adapter.Close()

	return adapter.TestConnection(ctx)
}

// ListModels lists models of a stored provider.
func (m *Manager) ListModels(ctx context.Context, id uuid.UUID) ([]ModelInfo, error) {
	adapter, err := m.LoadProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	return adapter.ListModels(ctx)
}

// ClearCache evicts one provider, or all of them when id is nil.
func (m *Manager) ClearCache(id *uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == nil {
		for key, adapter := range m.cache {
			_ = adapter.Close()
			delete(m.cache, key)
		}
		m.defaultID = nil
		m.logger.Info("Provider cache cleared")
		return
	}

	if adapter, ok := m.cache[*id]; ok {
		_ = adapter.Close()
		delete(m.cache, *id)
	}
	if m.defaultID != nil && *m.defaultID == *id {
		m.defaultID = nil
	}
	m.logger.Info("Provider evicted from cache", "id", *id)
}

// CachedIDs lists cached provider ids, sorted.
func (m *Manager) CachedIDs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(m.cache))
	for id := range m.cache {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Close closes every cached adapter.
func (m *Manager) Close() error {
	m.ClearCache(nil)
	return nil
}

func (m *Manager) credential(cfg *models.ProviderConfig) string {
	if cfg.EncryptedCredential == nil || *cfg.EncryptedCredential == "" {
		return ""
	}
	if m.codec == nil {
		return *cfg.EncryptedCredential
	}
	return m.codec.Decrypt(*cfg.EncryptedCredential)
}

func (m *Manager) build(cfg *models.ProviderConfig, credential string) (Adapter, error) {
	return m.factory.Create(Config{
		ID:                cfg.ID.String(),
		Name:              cfg.Name,
		Type:              string(cfg.Type),
		BaseURL:           cfg.BaseURL,
		Credential:        credential,
		DefaultModel:      cfg.DefaultModel,
		Timeout:           cfg.Timeout(),
		MaxTokens:         cfg.MaxTokens,
		SupportsStreaming: cfg.SupportsStreaming,
	})
}
