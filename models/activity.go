package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLogEntry is one row of the append-only activity log. Entries
// are observability data only; nothing reads them back for control flow.
type ActivityLogEntry struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}
