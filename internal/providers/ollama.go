package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OllamaAdapter speaks the Ollama dialect: /api/tags and /api/chat with NDJSON streaming.
type OllamaAdapter struct {
	*httpBackend
}

// NewOllamaAdapter creates a new Ollama connector
func NewOllamaAdapter(config Config) (Adapter, error) {
	base, err := newHTTPBackend(config, "ollama")
	if err != nil {
		return nil, err
	}
	return &OllamaAdapter{httpBackend: base}, nil
}

type ollamaOptions struct {
	NumPredict       int      `json:"num_predict,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Model      string    `json:"model"`
		Size       int64     `json:"size"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

func (a *OllamaAdapter) buildRequest(req CompletionRequest, stream bool) ollamaChatRequest {
	return ollamaChatRequest{
		Model:    a.model(req),
		Messages: req.Messages,
		Stream:   stream,
		Options: ollamaOptions{
			NumPredict:       a.maxTokensFor(req),
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			FrequencyPenalty: req.FrequencyPenalty,
			PresencePenalty:  req.PresencePenalty,
		},
	}
}

func ollamaUsage(r *ollamaChatResponse) Usage {
	return Usage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		TotalTokens:      r.PromptEvalCount + r.EvalCount,
	}
}

func ollamaFinish(r *ollamaChatResponse) string {
	if r.DoneReason != "" {
		return normalizeFinishReason(r.DoneReason)
	}
	if r.Done {
		return FinishStop
	}
	return ""
}

// Complete sends a non-streaming chat request
func (a *OllamaAdapter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var out ollamaChatResponse
	if err := a.postJSON(ctx, "chat request failed", "/api/chat", a.buildRequest(req, false), &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, a.wrap("chat request failed", 0, fmt.Errorf("%s", out.Error))
	}

	return &CompletionResponse{
		ID:           "ollama-" + uuid.NewString(),
		Model:        out.Model,
		Content:      out.Message.Content,
		Usage:        ollamaUsage(&out),
		FinishReason: ollamaFinish(&out),
	}, nil
}

// CompleteStream streams NDJSON frames, forwarding message.content deltas
func (a *OllamaAdapter) CompleteStream(ctx context.Context, req CompletionRequest, onChunk ChunkHandler) (*CompletionResponse, error) {
	result := &CompletionResponse{
		ID:    "ollama-" + uuid.NewString(),
		Model: a.model(req),
	}
	var content strings.Builder

	skipped, err := a.stream(ctx, "chat stream failed", "/api/chat", a.buildRequest(req, true), FrameNDJSON,
		func(frame []byte) (bool, error) {
			var chunk ollamaChatResponse
			if err := json.Unmarshal(frame, &chunk); err != nil {
				return false, skipFrame(err)
			}
			if chunk.Error != "" {
				return false, a.wrap("chat stream failed", 0, fmt.Errorf("%s", chunk.Error))
			}
			if chunk.Model != "" {
				result.Model = chunk.Model
			}

			content.WriteString(chunk.Message.Content)
			if err := emit(onChunk, chunk.Message.Content); err != nil {
				return false, err
			}

			if chunk.Done {
				result.Usage = ollamaUsage(&chunk)
				result.FinishReason = ollamaFinish(&chunk)
				return true, nil
			}
			return false, nil
		})

	result.Content = content.String()
	result.SkippedFrames = skipped
	return result, err
}

// ListModels lists locally pulled models via /api/tags
func (a *OllamaAdapter) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var tags ollamaTagsResponse
	if err := a.getJSON(ctx, "list models failed", "/api/tags", &tags); err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		modified := m.ModifiedAt
		id := m.Model
		if id == "" {
			id = m.Name
		}
		models = append(models, ModelInfo{
			ID:         id,
			Name:       m.Name,
			Size:       m.Size,
			ModifiedAt: &modified,
		})
	}
	return models, nil
}

// TestConnection checks the backend by listing its models
func (a *OllamaAdapter) TestConnection(ctx context.Context) ConnectionResult {
	return a.testConnection(ctx, a.ListModels)
}
