package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jaterm_gateway/internal/utils"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 2048
	maxErrorBody     = 2048
)

// httpBackend carries what both connectors share: identity, credential, client and timeout.
type httpBackend struct {
	id           string
	name         string
	typ          string
	baseURL      string
	defaultModel string
	maxTokens    int
	timeout      time.Duration
	credential   bearerCredential
	client       *http.Client
	logger       *utils.Logger
}

func newHTTPBackend(config Config, typ string) (*httpBackend, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required for %s provider", typ)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	// Deadlines come from the per-call context, streams included.
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &httpBackend{
		id:           config.ID,
		name:         config.Name,
		typ:          typ,
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		defaultModel: config.DefaultModel,
		maxTokens:    maxTokens,
		timeout:      timeout,
		credential:   bearerCredential(config.Credential),
		client:       client,
		logger:       utils.NewLogger(typ + "-adapter"),
	}, nil
}

func (b *httpBackend) ID() string   { return b.id }
func (b *httpBackend) Name() string { return b.name }
func (b *httpBackend) Type() string { return b.typ }

// Close cleans up resources
func (b *httpBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *httpBackend) wrap(op string, status int, err error) error {
	return &ProviderError{Provider: b.name, Type: b.typ, Op: op, StatusCode: status, Err: err}
}

func (b *httpBackend) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return b.defaultModel
}

func (b *httpBackend) maxTokensFor(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return b.maxTokens
}

// do sends a request and returns the response when the status is 2xx.
// The caller owns resp.Body.
func (b *httpBackend) do(ctx context.Context, op, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, b.wrap(op, 0, fmt.Errorf("failed to marshal request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, b.wrap(op, 0, fmt.Errorf("failed to create request: %w", err))
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	b.credential.apply(httpReq)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", b.timeout, context.DeadlineExceeded)
		}
		return nil, b.wrap(op, 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, b.wrap(op, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(respBody))))
	}

	return resp, nil
}

// getJSON performs a bounded GET and decodes the body into dst.
func (b *httpBackend) getJSON(ctx context.Context, op, path string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return b.wrap(op, 0, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// postJSON performs a bounded POST and decodes the body into dst.
func (b *httpBackend) postJSON(ctx context.Context, op, path string, payload, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.do(ctx, op, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return b.wrap(op, 0, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// stream posts payload and feeds every frame to handle until the stream ends.
// Frames that handle cannot decode (errSkipFrame) are counted, not fatal.
func (b *httpBackend) stream(ctx context.Context, op, path string, payload any, format FrameFormat, handle func(frame []byte) (done bool, err error)) (skipped int, err error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.do(ctx, op, http.MethodPost, path, payload)
	if err != nil {
		return 0, err
	}

	reader := NewFrameReader(resp.Body, format)
	defer reader.Close()

	for {
		frame, err := reader.Next()
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("timed out after %s: %w", b.timeout, context.DeadlineExceeded)
			}
			return skipped, b.wrap(op, 0, fmt.Errorf("stream read failed: %w", err))
		}

		done, err := handle(frame)
		if errors.Is(err, errSkipFrame) {
			skipped++
			b.logger.Debug("Skipping malformed stream frame", "provider", b.name, "error", err)
			continue
		}
		if err != nil {
			return skipped, err
		}
		if done {
			return skipped, nil
		}
	}
}

func (b *httpBackend) testConnection(ctx context.Context, list func(context.Context) ([]ModelInfo, error)) ConnectionResult {
	start := time.Now()
	models, err := list(ctx)
	if err != nil {
		return ConnectionResult{Success: false, Error: err.Error()}
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return ConnectionResult{
		Success:         true,
		LatencyMs:       time.Since(start).Milliseconds(),
		AvailableModels: names,
	}
}

var errSkipFrame = errors.New("malformed frame")

func skipFrame(err error) error {
	return fmt.Errorf("%w: %v", errSkipFrame, err)
}

// emit forwards a non-empty chunk to the caller's handler.
func emit(onChunk ChunkHandler, chunk string) error {
	if chunk == "" || onChunk == nil {
		return nil
	}
	if err := onChunk(chunk); err != nil {
		return fmt.Errorf("chunk handler aborted stream: %w", err)
	}
	return nil
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "content_filter", "filtered":
		return FinishFiltered
	case "length", "max_tokens":
		return FinishLength
	case "":
		return ""
	default:
		return FinishStop
	}
}
