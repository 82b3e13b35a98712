package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// VLLMAdapter speaks the OpenAI-compatible dialect served by vLLM:
// /v1/models and /v1/chat/completions with SSE streaming.
type VLLMAdapter struct {
	*httpBackend
}

// NewVLLMAdapter creates a new vLLM connector
func NewVLLMAdapter(config Config) (Adapter, error) {
	base, err := newHTTPBackend(config, "vllm")
	if err != nil {
		return nil, err
	}
	return &VLLMAdapter{httpBackend: base}, nil
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIChatRequest struct {
	Model            string               `json:"model"`
	Messages         []Message            `json:"messages"`
	MaxTokens        int                  `json:"max_tokens,omitempty"`
	Temperature      *float64             `json:"temperature,omitempty"`
	TopP             *float64             `json:"top_p,omitempty"`
	FrequencyPenalty *float64             `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64             `json:"presence_penalty,omitempty"`
	Stream           bool                 `json:"stream"`
	StreamOptions    *openAIStreamOptions `json:"stream_options,omitempty"`
}

type openAIChoice struct {
	Message      *Message `json:"message"`
	Delta        *Message `json:"delta"`
	FinishReason *string  `json:"finish_reason"`
}

type openAIChatResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *Usage         `json:"usage"`
}

type openAIModelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

func (a *VLLMAdapter) buildRequest(req CompletionRequest, stream bool) openAIChatRequest {
	out := openAIChatRequest{
		Model:            a.model(req),
		Messages:         req.Messages,
		MaxTokens:        a.maxTokensFor(req),
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stream:           stream,
	}
	if stream {
		out.StreamOptions = &openAIStreamOptions{IncludeUsage: true}
	}
	return out
}

// Complete sends a non-streaming chat completion
func (a *VLLMAdapter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var out openAIChatResponse
	if err := a.postJSON(ctx, "chat completion failed", "/v1/chat/completions", a.buildRequest(req, false), &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message == nil {
		return nil, a.wrap("chat completion failed", 0, fmt.Errorf("response has no choices"))
	}

	result := &CompletionResponse{
		ID:      out.ID,
		Model:   out.Model,
		Content: out.Choices[0].Message.Content,
	}
	if fr := out.Choices[0].FinishReason; fr != nil {
		result.FinishReason = normalizeFinishReason(*fr)
	}
	if out.Usage != nil {
		result.Usage = *out.Usage
	}
	return result, nil
}

// CompleteStream streams SSE frames, forwarding choices[0].delta.content
func (a *VLLMAdapter) CompleteStream(ctx context.Context, req CompletionRequest, onChunk ChunkHandler) (*CompletionResponse, error) {
	result := &CompletionResponse{Model: a.model(req)}
	var content strings.Builder

	skipped, err := a.stream(ctx, "chat stream failed", "/v1/chat/completions", a.buildRequest(req, true), FrameSSE,
		func(frame []byte) (bool, error) {
			var chunk openAIChatResponse
			if err := json.Unmarshal(frame, &chunk); err != nil {
				return false, skipFrame(err)
			}
			if chunk.ID != "" {
				result.ID = chunk.ID
			}
			if chunk.Model != "" {
				result.Model = chunk.Model
			}
			if chunk.Usage != nil {
				result.Usage = *chunk.Usage
			}

			for _, choice := range chunk.Choices {
				if choice.Delta != nil {
					content.WriteString(choice.Delta.Content)
					if err := emit(onChunk, choice.Delta.Content); err != nil {
						return false, err
					}
				}
				if choice.FinishReason != nil {
					result.FinishReason = normalizeFinishReason(*choice.FinishReason)
				}
			}
			// Keep reading after finish_reason: the usage frame and [DONE] follow.
			return false, nil
		})

	result.Content = content.String()
	result.SkippedFrames = skipped
	return result, err
}

// ListModels lists served models via /v1/models
func (a *VLLMAdapter) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var resp openAIModelsResponse
	if err := a.getJSON(ctx, "list models failed", "/v1/models", &resp); err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, ModelInfo{ID: m.ID, Name: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// TestConnection checks the backend by listing its models
func (a *VLLMAdapter) TestConnection(ctx context.Context) ConnectionResult {
	return a.testConnection(ctx, a.ListModels)
}
