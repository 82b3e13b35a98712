package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsRecoverableError reports whether retrying the failed operation may succeed.
// Timeouts, refused connections and closed pools are recoverable; constraint
// violations and malformed input are not.
func IsRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	recoverable := []string{
		"connection refused",
		"connection reset",
		"database is locked",
		"too many connections",
		"sql: database is closed",
		"i/o timeout",
	}
	for _, r := range recoverable {
		if strings.Contains(msg, r) {
			return true
		}
	}
	return false
}
