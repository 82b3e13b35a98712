package models

import "errors"

// ErrNotFound is wrapped by every repository "not found" sentinel.
var ErrNotFound = errors.New("not found")
