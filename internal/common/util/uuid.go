package util

import (
	"github.com/google/uuid"
)

// NewSessionId returns a fresh random identifier for tagging the log lines
// of a single run.
func NewSessionId() string {
	return uuid.NewString()
}
