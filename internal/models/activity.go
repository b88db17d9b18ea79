package models

import "time"

// ActivityEntry represents one activity log row.
type ActivityEntry struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	Action       string    `json:"action"`        // create, start, scan, finalize, delete
	ResourceType string    `json:"resource_type"` // audit
	ResourceID   int       `json:"resource_id"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
