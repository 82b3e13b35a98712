package httpapi

import (
	"net/http"
	"time"

	"jaterm_gateway/internal/anomaly"
	"jaterm_gateway/internal/utils"
)

type sessionRequest struct {
	Commands    []string   `json:"commands"`
	ServerID    string     `json:"server_id"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	DurationSec float64    `json:"duration_sec"`
}

func (req sessionRequest) session() anomaly.Session {
	s := anomaly.Session{
		Commands: req.Commands,
		ServerID: req.ServerID,
		Duration: time.Duration(req.DurationSec * float64(time.Second)),
	}
	if req.StartedAt != nil {
		s.StartedAt = *req.StartedAt
	}
	return s
}

func decodeSession(w http.ResponseWriter, r *http.Request) (anomaly.Session, bool) {
	var req sessionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return anomaly.Session{}, false
	}
	if req.DurationSec < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "duration_sec must not be negative")
		return anomaly.Session{}, false
	}
	return req.session(), true
}

// handleRecordSession folds a finished session into the caller's behaviour profile
func (d *Dependencies) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	s, ok := decodeSession(w, r)
	if !ok {
		return
	}

	c := caller(r)
	profile, err := d.Anomaly.UpdateProfile(r.Context(), c.UserID, s)
	if err != nil {
		d.logger.Error("Failed to update behaviour profile", "user", c.UserID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update behaviour profile")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, profile)
}

// handleDetectAnomaly scores a session against the caller's profile and raises an alert when anomalous
func (d *Dependencies) handleDetectAnomaly(w http.ResponseWriter, r *http.Request) {
	s, ok := decodeSession(w, r)
	if !ok {
		return
	}

	c := caller(r)
	result, err := d.Anomaly.DetectAndAlert(r.Context(), c.UserID, s)
	if err != nil {
		d.logger.Error("Anomaly detection failed", "user", c.UserID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Anomaly detection failed")
		return
	}
	d.Metrics.ObserveAnomalyScore(result.Score)
	utils.RespondWithJSON(w, http.StatusOK, result)
}
