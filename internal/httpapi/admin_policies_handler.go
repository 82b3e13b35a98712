package httpapi

import (
	"net/http"
	"strings"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/policy"
	"jaterm_gateway/internal/utils"
)

// PolicyRequest is the body of policy create and update calls.
// Update replaces every field.
type PolicyRequest struct {
	Name                 string   `json:"name"`
	IsActive             *bool    `json:"is_active,omitempty"`
	AllowedRoles         []string `json:"allowed_roles"`
	AllowedFeatures      []string `json:"allowed_features"`
	TimeWindowStart      *string  `json:"time_window_start,omitempty"`
	TimeWindowEnd        *string  `json:"time_window_end,omitempty"`
	RateLimitPerHour     int      `json:"rate_limit_per_hour"`
	RiskThreshold        float64  `json:"risk_threshold"`
	AutoBlock            bool     `json:"auto_block"`
	PromptMaxLength      int      `json:"prompt_max_length"`
	MaskSensitiveResults bool     `json:"mask_sensitive_results"`
}

// CreateTemplateRequest is the body of POST /admin/templates
type CreateTemplateRequest struct {
	Name         string   `json:"name"`
	Feature      string   `json:"feature"`
	Template     string   `json:"template"`
	AllowedRoles []string `json:"allowed_roles"`
}

func (req PolicyRequest) apply(p *models.Policy) {
	p.Name = strings.TrimSpace(req.Name)
	p.IsActive = true
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	p.AllowedRoles = models.NewStringSet(req.AllowedRoles...)
	p.AllowedFeatures = models.NewStringSet(req.AllowedFeatures...)
	p.TimeWindowStart = req.TimeWindowStart
	p.TimeWindowEnd = req.TimeWindowEnd
	p.RateLimitPerHour = req.RateLimitPerHour
	p.RiskThreshold = req.RiskThreshold
	p.AutoBlock = req.AutoBlock
	p.PromptMaxLength = req.PromptMaxLength
	p.MaskSensitiveResults = req.MaskSensitiveResults
}

func decodePolicy(w http.ResponseWriter, r *http.Request, p *models.Policy) bool {
	var req PolicyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	req.apply(p)
	if p.Name == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Policy name is required")
		return false
	}
	if err := policy.ValidatePolicy(p); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// handleListPolicies handles GET /admin/policies
func (d *Dependencies) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	list, err := d.PolicyRepo.List(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list policies")
		return
	}
	if list == nil {
		list = []*models.Policy{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// handleCreatePolicy handles POST /admin/policies
func (d *Dependencies) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	p := &models.Policy{}
	if !decodePolicy(w, r, p) {
		return
	}

	if err := d.PolicyRepo.Create(r.Context(), p); err != nil {
		d.logger.Error("Failed to create policy", "name", p.Name, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create policy")
		return
	}
	d.Policies.InvalidateCache()

	d.logger.Info("Policy created", "id", p.ID, "name", p.Name, "by", caller(r).UserID)
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// handleUpdatePolicy handles PUT /admin/policies/{id}
func (d *Dependencies) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	p := &models.Policy{ID: id}
	if !decodePolicy(w, r, p) {
		return
	}

	if err := d.PolicyRepo.Update(r.Context(), p); err != nil {
		respondStoreError(w, err, "Policy")
		return
	}
	d.Policies.InvalidateCache()

	d.logger.Info("Policy updated", "id", p.ID, "by", caller(r).UserID)
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// handleDeactivatePolicy handles POST /admin/policies/{id}/deactivate
func (d *Dependencies) handleDeactivatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := d.PolicyRepo.Deactivate(r.Context(), id); err != nil {
		respondStoreError(w, err, "Policy")
		return
	}
	d.Policies.InvalidateCache()

	d.logger.Info("Policy deactivated", "id", id, "by", caller(r).UserID)
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Policy deactivated",
	})
}

// handleClearPolicyCache handles POST /admin/policies/cache/clear
func (d *Dependencies) handleClearPolicyCache(w http.ResponseWriter, r *http.Request) {
	d.Policies.InvalidateCache()
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Policy cache cleared",
	})
}

// handleCreateTemplate handles POST /admin/templates
func (d *Dependencies) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.Template) == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Template name and body are required")
		return
	}
	feature := models.Feature(req.Feature)
	if !feature.IsValid() {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid feature")
		return
	}
	for _, role := range req.AllowedRoles {
		if !models.Role(role).IsValid() {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid role: "+role)
			return
		}
	}

	tpl := &models.PromptTemplate{
		Name:         name,
		Feature:      feature,
		Template:     req.Template,
		AllowedRoles: models.NewStringSet(req.AllowedRoles...),
		IsActive:     true,
	}
	if err := d.TemplateRepo.Create(r.Context(), tpl); err != nil {
		d.logger.Error("Failed to create template", "name", name, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, tpl)
}
