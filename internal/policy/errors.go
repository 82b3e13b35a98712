package policy

import "errors"

// ErrInvalidTimeWindow is returned for window bounds that are not "HH:MM"
var ErrInvalidTimeWindow = errors.New("invalid policy time window")
