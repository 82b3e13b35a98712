package models

import (
	"time"

	"github.com/google/uuid"
)

type AlertKind string

const (
	AlertKindRisk    AlertKind = "risk"
	AlertKindAnomaly AlertKind = "anomaly"
)

type AlertSeverity string

const (
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert is raised by the risk analyzer or anomaly detector, separate from the audit log.
type Alert struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	Kind      AlertKind     `db:"kind" json:"kind"`
	Severity  AlertSeverity `db:"severity" json:"severity"`
	Title     string        `db:"title" json:"title"`
	Detail    string        `db:"detail" json:"detail"`
	Score     float64       `db:"score" json:"score"`
	Command   *string       `db:"command" json:"command,omitempty"`
	ServerID  *string       `db:"server_id" json:"server_id,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}
