package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/crucial707/asset-audit/internal/audit"
	"github.com/crucial707/asset-audit/internal/models"
)

// AuditRepo persists audits and hands out audit code sequence numbers.
type AuditRepo struct {
	q Querier
}

func NewAuditRepo(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

const auditColumns = `a.id, a.code, a.name, a.description, a.criteria, a.state, a.expected_count, a.created_at, a.started_at, a.finalized_at`

// found_count is never stored; it is the number of items carrying a successful scan.
const foundCountExpr = `(SELECT COUNT(*) FROM audit_items i WHERE i.audit_id = a.id AND i.scanned_at IS NOT NULL)`

const pgUniqueViolation = "23505"

func scanAudit(row rowScanner) (*models.Audit, error) {
	var a models.Audit
	var criteria []byte
	var started, finalized sql.NullTime
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &criteria, &a.State,
		&a.ExpectedCount, &a.CreatedAt, &started, &finalized, &a.FoundCount); err != nil {
		return nil, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &a.Criteria); err != nil {
			return nil, fmt.Errorf("audit %d criteria: %w", a.ID, err)
		}
	}
	a.StartedAt = timePtr(started)
	a.FinalizedAt = timePtr(finalized)
	return &a, nil
}

// NextAuditSeq bumps the period's counter. Concurrent callers queue on the sequence row.
func (r *AuditRepo) NextAuditSeq(ctx context.Context, period string) (int, error) {
	var seq int
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO audit_code_sequences (period, last_seq) VALUES ($1, 1)
		 ON CONFLICT (period) DO UPDATE SET last_seq = audit_code_sequences.last_seq + 1
		 RETURNING last_seq`,
		period,
	).Scan(&seq)
	return seq, err
}

func (r *AuditRepo) InsertAudit(ctx context.Context, a *models.Audit) error {
	criteria, err := json.Marshal(a.Criteria)
	if err != nil {
		return err
	}
	err = r.q.QueryRowContext(ctx,
		`INSERT INTO audits (code, name, description, criteria, state, expected_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		a.Code, a.Name, a.Description, string(criteria), string(a.State), a.ExpectedCount, a.CreatedAt,
	).Scan(&a.ID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation && pqErr.Constraint == "audits_code_key" {
		return audit.ErrDuplicateCode
	}
	return err
}

// LockAudit loads the audit row under FOR UPDATE or FOR SHARE. FoundCount is left at zero.
func (r *AuditRepo) LockAudit(ctx context.Context, id int, exclusive bool) (*models.Audit, error) {
	mode := "FOR SHARE"
	if exclusive {
		mode = "FOR UPDATE"
	}
	a, err := scanAudit(r.q.QueryRowContext(ctx,
		`SELECT `+auditColumns+`, 0 FROM audits a WHERE a.id = $1 `+mode,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *AuditRepo) GetAudit(ctx context.Context, id int) (*models.Audit, error) {
	a, err := scanAudit(r.q.QueryRowContext(ctx,
		`SELECT `+auditColumns+`, `+foundCountExpr+` FROM audits a WHERE a.id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *AuditRepo) MarkStarted(ctx context.Context, id int, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE audits SET state = 'in_progress', started_at = $2 WHERE id = $1`,
		id, at,
	)
	return err
}

func (r *AuditRepo) MarkCompleted(ctx context.Context, id int, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE audits SET state = 'completed', finalized_at = $2 WHERE id = $1`,
		id, at,
	)
	return err
}

// DeleteAudit removes the audit and its items. Only drafts reach here, so there are no findings.
func (r *AuditRepo) DeleteAudit(ctx context.Context, id int) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM audit_items WHERE audit_id = $1`, id); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx, `DELETE FROM audits WHERE id = $1`, id)
	return err
}

const auditFilterWhere = ` WHERE ($1 = '' OR a.state = $1)
	AND ($2 = '' OR a.code ILIKE '%' || $2 || '%' OR a.name ILIKE '%' || $2 || '%' OR a.description ILIKE '%' || $2 || '%')`

// ListAudits returns one page of matching audits, newest first, and the total match count.
func (r *AuditRepo) ListAudits(ctx context.Context, f models.AuditFilter) ([]models.Audit, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audits a`+auditFilterWhere,
		string(f.State), f.Search,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	var limit any
	if f.Limit > 0 {
		limit = f.Limit
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+auditColumns+`, `+foundCountExpr+` FROM audits a`+auditFilterWhere+
			` ORDER BY a.id DESC LIMIT $3 OFFSET $4`,
		string(f.State), f.Search, limit, f.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	audits := []models.Audit{}
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, 0, err
		}
		audits = append(audits, *a)
	}
	return audits, total, rows.Err()
}
