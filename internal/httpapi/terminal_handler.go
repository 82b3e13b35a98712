package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/terminalai"
	"jaterm_gateway/internal/utils"
)

// terminalRequest is shared by the single-command endpoints
type terminalRequest struct {
	Command     string            `json:"command"`
	Description string            `json:"description"`
	Context     *string           `json:"context,omitempty"`
	ProviderID  *uuid.UUID        `json:"provider_id,omitempty"`
	ServerID    string            `json:"server_id,omitempty"`
	Template    string            `json:"template,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

type summarizeRequest struct {
	Commands   []string   `json:"commands"`
	Context    *string    `json:"context,omitempty"`
	ProviderID *uuid.UUID `json:"provider_id,omitempty"`
}

func (req terminalRequest) options() terminalai.Options {
	return terminalai.Options{
		ProviderID: req.ProviderID,
		Context:    req.Context,
		ServerID:   req.ServerID,
		Template:   req.Template,
		Vars:       req.Vars,
	}
}

// sseStream sends text deltas as server-sent events. Headers are only
// committed once the first chunk arrives, so failures before that still get a
// regular JSON error with the proper status.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEStream(w http.ResponseWriter) (*sseStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseStream{w: w, flusher: flusher}, true
}

func (s *sseStream) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseStream) event(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.start()
	if name != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) chunk(text string) error {
	return s.event("", map[string]string{"delta": text})
}

// finish writes the final result as its own event, or as plain JSON when no
// chunk was ever sent
func finishStream[T any](w http.ResponseWriter, s *sseStream, res terminalai.Result[T]) {
	if s == nil || !s.started {
		respondResult(w, res)
		return
	}
	_ = s.event("result", res)
}

func decodeTerminalRequest(w http.ResponseWriter, r *http.Request) (terminalRequest, bool) {
	var req terminalRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return req, false
	}
	return req, true
}

func (d *Dependencies) handleExplain(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTerminalRequest(w, r)
	if !ok {
		return
	}

	opts := req.options()
	var stream *sseStream
	if req.Stream {
		if stream, ok = newSSEStream(w); ok {
			opts.OnChunk = stream.chunk
		}
	}

	res := d.Service.ExplainCommand(r.Context(), caller(r), req.Command, opts)
	finishStream(w, stream, res)
}

func (d *Dependencies) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTerminalRequest(w, r)
	if !ok {
		return
	}

	opts := req.options()
	var stream *sseStream
	if req.Stream {
		if stream, ok = newSSEStream(w); ok {
			opts.OnChunk = stream.chunk
		}
	}

	res := d.Service.GenerateCommand(r.Context(), caller(r), req.Description, opts)
	finishStream(w, stream, res)
}

func (d *Dependencies) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTerminalRequest(w, r)
	if !ok {
		return
	}
	if req.Command == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "command is required")
		return
	}

	respondResult(w, d.Service.AnalyzeRisk(r.Context(), caller(r), req.Command, req.options()))
}

func (d *Dependencies) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	opts := terminalai.Options{ProviderID: req.ProviderID, Context: req.Context}
	respondResult(w, d.Service.SummarizeSession(r.Context(), caller(r), req.Commands, opts))
}

// handleListTemplates returns the templates the caller's role may use for ?feature=
func (d *Dependencies) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	feature := models.Feature(r.URL.Query().Get("feature"))
	if !feature.IsValid() {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid or missing feature")
		return
	}

	c := caller(r)
	templates, err := d.Prompts.ListTemplates(r.Context(), feature, c.Role)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	if templates == nil {
		templates = []*models.PromptTemplate{}
	}
	utils.RespondWithJSON(w, http.StatusOK, templates)
}
