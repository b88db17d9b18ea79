package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/crucial707/asset-audit/internal/models"
)

// ActivityLog keeps activity entries in memory, mirroring repo.ActivityRepo.
type ActivityLog struct {
	mu      sync.Mutex
	entries []models.ActivityEntry
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

func (l *ActivityLog) Log(ctx context.Context, userID int, action, resourceType string, resourceID int, details string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, models.ActivityEntry{
		ID:           len(l.entries) + 1,
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		CreatedAt:    time.Now(),
	})
	return nil
}

// List returns entries newest first.
func (l *ActivityLog) List(ctx context.Context, limit, offset int) ([]models.ActivityEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.ActivityEntry{}
	for i := len(l.entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}
