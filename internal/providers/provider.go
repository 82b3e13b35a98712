package providers

import (
	"context"
	"time"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reasons, normalized across dialects
const (
	FinishStop     = "stop"
	FinishLength   = "length"
	FinishFiltered = "filtered"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the backend-independent chat completion request.
type CompletionRequest struct {
	Model            string
	Messages         []Message
	MaxTokens        int
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the normalized result of Complete / CompleteStream.
type CompletionResponse struct {
	ID           string
	Model        string
	Content      string
	Usage        Usage
	FinishReason string // stop, length, filtered or empty
	// SkippedFrames counts streamed frames that could not be decoded.
	// A non-zero value means Content may be incomplete.
	SkippedFrames int
}

// ChunkHandler receives incremental text. It runs before the next frame is read;
// returning an error aborts the stream.
type ChunkHandler func(chunk string) error

// ModelInfo describes a model advertised by a backend.
type ModelInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Size       int64      `json:"size,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	OwnedBy    string     `json:"owned_by,omitempty"`
}

// ConnectionResult is returned by TestConnection.
type ConnectionResult struct {
	Success         bool     `json:"success"`
	LatencyMs       int64    `json:"latency_ms,omitempty"`
	AvailableModels []string `json:"available_models,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Adapter is implemented by each backend connector (Ollama, vLLM, ...).
// Implementations hold no per-call state and are safe for concurrent use.
type Adapter interface {
	// ID returns the provider config id this adapter was built from
	ID() string

	// Name returns the display name
	Name() string

	// Type returns the backend type (ollama, vllm)
	Type() string

	// Complete sends a non-streaming chat completion
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStream streams a chat completion, calling onChunk for each text delta
	CompleteStream(ctx context.Context, req CompletionRequest, onChunk ChunkHandler) (*CompletionResponse, error)

	// TestConnection checks reachability and lists models
	TestConnection(ctx context.Context) ConnectionResult

	// ListModels returns the models advertised by the backend
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases idle connections
	Close() error
}

// Config holds everything needed to build an adapter instance.
type Config struct {
	ID                string
	Name              string
	Type              string
	BaseURL           string
	Credential        string // decrypted; empty when the backend is unauthenticated
	DefaultModel      string
	Timeout           time.Duration
	MaxTokens         int
	SupportsStreaming bool
}
