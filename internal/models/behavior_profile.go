package models

import "time"

const (
	MaxProfileCommands = 100
	MaxProfileServers  = 20
	MaxProfileHours    = 100
)

// BehaviorProfile is a user's rolling behavioural baseline.
type BehaviorProfile struct {
	UserID                string    `db:"user_id" json:"user_id"`
	AvgSessionDurationSec float64   `db:"avg_session_duration_sec" json:"avg_session_duration_sec"`
	CommandPrefixes       StringSet `db:"command_prefixes" json:"command_prefixes"`
	Servers               StringSet `db:"servers" json:"servers"`
	AccessHours           IntList   `db:"access_hours" json:"access_hours"`
	SessionCount          int       `db:"session_count" json:"session_count"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}
