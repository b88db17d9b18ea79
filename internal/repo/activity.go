package repo

import (
	"context"

	"github.com/crucial707/asset-audit/internal/models"
)

// ActivityRepo persists activity log entries.
type ActivityRepo struct {
	q Querier
}

// NewActivityRepo returns a new ActivityRepo.
func NewActivityRepo(q Querier) *ActivityRepo {
	return &ActivityRepo{q: q}
}

// Log records an activity entry. action is create|start|scan|finalize|delete; resourceType is audit.
func (r *ActivityRepo) Log(ctx context.Context, userID int, action, resourceType string, resourceID int, details string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO activity_log (user_id, action, resource_type, resource_id, details) VALUES ($1, $2, $3, $4, $5)`,
		userID, action, resourceType, resourceID, details,
	)
	return err
}

// List returns recent activity entries, newest first.
func (r *ActivityRepo) List(ctx context.Context, limit, offset int) ([]models.ActivityEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, COALESCE(details,''), created_at FROM activity_log ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.ActivityEntry{}
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
