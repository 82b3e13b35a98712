package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/providers"
	"jaterm_gateway/internal/utils"
)

// CreateProviderRequest represents the request to create a new provider
type CreateProviderRequest struct {
	Name              string `json:"name"`
	Type              string `json:"type"`
	BaseURL           string `json:"base_url"`
	Credential        string `json:"credential,omitempty"`
	DefaultModel      string `json:"default_model"`
	TimeoutMs         int    `json:"timeout_ms"`
	MaxTokens         int    `json:"max_tokens"`
	SupportsStreaming *bool  `json:"supports_streaming,omitempty"`
	IsDefault         bool   `json:"is_default"`
	IsActive          *bool  `json:"is_active,omitempty"`
}

// UpdateProviderRequest represents the request to update a provider.
// An empty credential string removes the stored credential.
type UpdateProviderRequest struct {
	Name              *string `json:"name,omitempty"`
	BaseURL           *string `json:"base_url,omitempty"`
	Credential        *string `json:"credential,omitempty"`
	DefaultModel      *string `json:"default_model,omitempty"`
	TimeoutMs         *int    `json:"timeout_ms,omitempty"`
	MaxTokens         *int    `json:"max_tokens,omitempty"`
	SupportsStreaming *bool   `json:"supports_streaming,omitempty"`
	IsDefault         *bool   `json:"is_default,omitempty"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

// ProviderResponse represents a provider response. Credentials are never returned.
type ProviderResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Type              string `json:"type"`
	BaseURL           string `json:"base_url"`
	DefaultModel      string `json:"default_model"`
	TimeoutMs         int    `json:"timeout_ms"`
	MaxTokens         int    `json:"max_tokens"`
	SupportsStreaming bool   `json:"supports_streaming"`
	IsDefault         bool   `json:"is_default"`
	IsActive          bool   `json:"is_active"`
	HasCredential     bool   `json:"has_credential"`
	Cached            bool   `json:"cached"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// TestProviderRequest carries unsaved provider settings
type TestProviderRequest struct {
	Type         string `json:"type"`
	BaseURL      string `json:"base_url"`
	Credential   string `json:"credential,omitempty"`
	DefaultModel string `json:"default_model,omitempty"`
	TimeoutMs    int    `json:"timeout_ms,omitempty"`
}

type clearCacheRequest struct {
	ProviderID *uuid.UUID `json:"provider_id,omitempty"`
}

func (d *Dependencies) providerResponse(p *models.ProviderConfig, cached map[uuid.UUID]bool) ProviderResponse {
	return ProviderResponse{
		ID:                p.ID.String(),
		Name:              p.Name,
		Type:              string(p.Type),
		BaseURL:           p.BaseURL,
		DefaultModel:      p.DefaultModel,
		TimeoutMs:         p.TimeoutMs,
		MaxTokens:         p.MaxTokens,
		SupportsStreaming: p.SupportsStreaming,
		IsDefault:         p.IsDefault,
		IsActive:          p.IsActive,
		HasCredential:     p.EncryptedCredential != nil && *p.EncryptedCredential != "",
		Cached:            cached[p.ID],
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
}

func (d *Dependencies) cachedProviders() map[uuid.UUID]bool {
	cached := make(map[uuid.UUID]bool)
	for _, id := range d.Providers.CachedIDs() {
		cached[id] = true
	}
	return cached
}

// encryptCredential returns nil for an empty credential
func (d *Dependencies) encryptCredential(plaintext string) (*string, error) {
	if plaintext == "" {
		return nil, nil
	}
	encrypted, err := d.Codec.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return &encrypted, nil
}

// handleListProviders handles GET /admin/providers
func (d *Dependencies) handleListProviders(w http.ResponseWriter, r *http.Request) {
	list, err := d.ProviderRepo.List(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list providers")
		return
	}

	cached := d.cachedProviders()
	responses := make([]ProviderResponse, 0, len(list))
	for _, p := range list {
		responses = append(responses, d.providerResponse(p, cached))
	}
	utils.RespondWithJSON(w, http.StatusOK, responses)
}

// handleCreateProvider handles POST /admin/providers
func (d *Dependencies) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Provider name is required")
		return
	}
	if !models.ProviderType(req.Type).IsValid() {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid provider type")
		return
	}
	if strings.TrimSpace(req.BaseURL) == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Base URL is required")
		return
	}

	credential, err := d.encryptCredential(req.Credential)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to encrypt credential")
		return
	}

	provider := &models.ProviderConfig{
		Name:                req.Name,
		Type:                models.ProviderType(req.Type),
		BaseURL:             strings.TrimRight(req.BaseURL, "/"),
		EncryptedCredential: credential,
		DefaultModel:        req.DefaultModel,
		TimeoutMs:           req.TimeoutMs,
		MaxTokens:           req.MaxTokens,
		SupportsStreaming:   true,
		IsDefault:           req.IsDefault,
		IsActive:            true,
	}
	if provider.TimeoutMs <= 0 {
		provider.TimeoutMs = d.defaultTimeoutMs
	}
	if provider.TimeoutMs <= 0 {
		provider.TimeoutMs = models.DefaultProviderTimeoutMs
	}
	if provider.MaxTokens <= 0 {
		provider.MaxTokens = models.DefaultProviderMaxTokens
	}
	if req.SupportsStreaming != nil {
		provider.SupportsStreaming = *req.SupportsStreaming
	}
	if req.IsActive != nil {
		provider.IsActive = *req.IsActive
	}

	if err := d.ProviderRepo.Create(r.Context(), provider); err != nil {
		d.logger.Error("Failed to create provider", "name", req.Name, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create provider")
		return
	}

	// A new default changes what a nil provider id resolves to.
	if provider.IsDefault {
		d.Providers.ClearCache(nil)
	}

	utils.RespondWithJSON(w, http.StatusCreated, d.providerResponse(provider, nil))
}

// handleGetProvider handles GET /admin/providers/{id}
func (d *Dependencies) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	provider, err := d.ProviderRepo.GetByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Provider")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d.providerResponse(provider, d.cachedProviders()))
}

// handleUpdateProvider handles PUT /admin/providers/{id}
func (d *Dependencies) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var req UpdateProviderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	provider, err := d.ProviderRepo.GetByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Provider")
		return
	}

	if req.Name != nil {
		provider.Name = *req.Name
	}
	if req.BaseURL != nil {
		provider.BaseURL = strings.TrimRight(*req.BaseURL, "/")
	}
	if req.DefaultModel != nil {
		provider.DefaultModel = *req.DefaultModel
	}
	if req.TimeoutMs != nil && *req.TimeoutMs > 0 {
		provider.TimeoutMs = *req.TimeoutMs
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		provider.MaxTokens = *req.MaxTokens
	}
	if req.SupportsStreaming != nil {
		provider.SupportsStreaming = *req.SupportsStreaming
	}
	if req.IsDefault != nil {
		provider.IsDefault = *req.IsDefault
	}
	if req.IsActive != nil {
		provider.IsActive = *req.IsActive
	}
	if req.Credential != nil {
		credential, err := d.encryptCredential(*req.Credential)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to encrypt credential")
			return
		}
		provider.EncryptedCredential = credential
	}

	if err := d.ProviderRepo.Update(r.Context(), provider); err != nil {
		respondStoreError(w, err, "Provider")
		return
	}

	// Default-ness may have moved, so drop every cached adapter.
	d.Providers.ClearCache(nil)

	utils.RespondWithJSON(w, http.StatusOK, d.providerResponse(provider, nil))
}

// handleDeleteProvider handles DELETE /admin/providers/{id}
func (d *Dependencies) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := d.ProviderRepo.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err, "Provider")
		return
	}
	d.Providers.ClearCache(&id)

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Provider deleted successfully",
	})
}

// handleTestProvider handles POST /admin/providers/{id}/test
func (d *Dependencies) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d.Providers.TestConnection(r.Context(), id))
}

// handleTestProviderConfig handles POST /admin/providers/test with unsaved settings
func (d *Dependencies) handleTestProviderConfig(w http.ResponseWriter, r *http.Request) {
	var req TestProviderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if !models.ProviderType(req.Type).IsValid() {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid provider type")
		return
	}

	cfg := models.ProviderConfig{
		ID:           uuid.Nil,
		Name:         "connection test",
		Type:         models.ProviderType(req.Type),
		BaseURL:      strings.TrimRight(req.BaseURL, "/"),
		DefaultModel: req.DefaultModel,
		TimeoutMs:    req.TimeoutMs,
	}
	utils.RespondWithJSON(w, http.StatusOK, d.Providers.TestConnectionWithConfig(r.Context(), cfg, req.Credential))
}

// handleListProviderModels handles GET /admin/providers/{id}/models
func (d *Dependencies) handleListProviderModels(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	list, err := d.Providers.ListModels(r.Context(), id)
	if err != nil {
		var provErr *providers.ProviderError
		if errors.As(err, &provErr) {
			utils.RespondWithError(w, http.StatusBadGateway, provErr.Error())
			return
		}
		respondStoreError(w, err, "Provider")
		return
	}
	if list == nil {
		list = []providers.ModelInfo{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// handleClearProviderCache handles POST /admin/providers/cache/clear.
// An empty body clears every provider.
func (d *Dependencies) handleClearProviderCache(w http.ResponseWriter, r *http.Request) {
	var req clearCacheRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	d.Providers.ClearCache(req.ProviderID)
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Provider cache cleared",
		"cached":  d.Providers.CachedIDs(),
	})
}
