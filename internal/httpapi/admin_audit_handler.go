package httpapi

import (
	"errors"
	"net/http"
	"time"

	"jaterm_gateway/internal/audit"
	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/queue"
	"jaterm_gateway/internal/storage"
	"jaterm_gateway/internal/utils"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
	defaultAlertLimit    = 100
)

// AuditLogsResponse is a page of audit entries
type AuditLogsResponse struct {
	Entries []*models.AuditEntry `json:"entries"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// queryTime parses an optional RFC3339 query parameter
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryRange(w http.ResponseWriter, r *http.Request) (from, to *time.Time, ok bool) {
	from, err := queryTime(r, "from")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid 'from' timestamp, expected RFC3339")
		return nil, nil, false
	}
	to, err = queryTime(r, "to")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid 'to' timestamp, expected RFC3339")
		return nil, nil, false
	}
	if from != nil && to != nil && !from.Before(*to) {
		utils.RespondWithError(w, http.StatusBadRequest, "'from' must be before 'to'")
		return nil, nil, false
	}
	return from, to, true
}

// handleAuditLogs handles GET /admin/audit/logs
func (d *Dependencies) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}

	filter := storage.AuditFilter{
		UserID:  q.Get("user_id"),
		Feature: models.Feature(q.Get("feature")),
		Status:  models.AuditStatus(q.Get("status")),
		From:    from,
		To:      to,
		Limit:   min(queryInt(r, "limit", defaultAuditPageSize), maxAuditPageSize),
		Offset:  queryInt(r, "offset", 0),
	}
	if filter.Feature != "" && !filter.Feature.IsValid() {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid feature")
		return
	}

	entries, total, err := d.Audit.Search(r.Context(), filter)
	if err != nil {
		d.logger.Error("Failed to search audit log", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to search audit log")
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}

	utils.RespondWithJSON(w, http.StatusOK, AuditLogsResponse{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// handleAuditStats handles GET /admin/audit/stats?user_id=...
func (d *Dependencies) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}

	stats, err := d.Audit.UserStats(r.Context(), userID, from, to)
	if err != nil {
		d.logger.Error("Failed to compute user stats", "user_id", userID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

// handleAuditDashboard handles GET /admin/audit/dashboard?days=N
func (d *Dependencies) handleAuditDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := d.Audit.Dashboard(r.Context(), queryInt(r, "days", audit.DefaultDashboardDays))
	if err != nil {
		d.logger.Error("Failed to compute dashboard", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute dashboard")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

// handleDeadLetters handles GET /admin/audit/dead-letters
func (d *Dependencies) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	if d.AuditWorker == nil {
		utils.RespondWithError(w, http.StatusNotFound, "Audit queue is not enabled")
		return
	}

	items, err := d.AuditWorker.GetDeadLetterItems(r.Context(), queryInt(r, "limit", defaultAuditPageSize))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list dead letters")
		return
	}
	pending, err := d.AuditWorker.GetQueueLength(r.Context())
	if err != nil {
		d.logger.Warn("Failed to read audit queue length", "error", err)
	}
	if items == nil {
		items = []queue.DeadLetterItem[models.AuditEntry]{}
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"items":   items,
		"pending": pending,
	})
}

// handleRetryDeadLetter handles POST /admin/audit/dead-letters/{id}/retry
func (d *Dependencies) handleRetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	if d.AuditWorker == nil {
		utils.RespondWithError(w, http.StatusConflict, "Audit queue is not enabled")
		return
	}

	id := r.PathValue("id")
	if err := d.AuditWorker.RetryDeadLetterItem(r.Context(), id); err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Dead letter not found")
			return
		}
		d.logger.Error("Failed to retry dead letter", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to retry dead letter")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Dead letter re-enqueued",
	})
}

// handleListAlerts handles GET /admin/alerts
func (d *Dependencies) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := d.AlertRepo.ListRecent(r.Context(), queryInt(r, "limit", defaultAlertLimit))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	utils.RespondWithJSON(w, http.StatusOK, alerts)
}
