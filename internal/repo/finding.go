package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/crucial707/asset-audit/internal/models"
)

// FindingRepo persists findings. Rows are only ever inserted.
type FindingRepo struct {
	q Querier
}

func NewFindingRepo(q Querier) *FindingRepo {
	return &FindingRepo{q: q}
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// AppendFinding inserts f and fills in its ID and creation time.
func (r *FindingRepo) AppendFinding(ctx context.Context, f *models.Finding) error {
	rec, err := f.Record()
	if err != nil {
		return err
	}
	return r.q.QueryRowContext(ctx,
		`INSERT INTO audit_findings
		   (audit_id, asset_id, kind, severity, scanned_code, expected_value, found_value, description, resolved)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		rec.AuditID, intArg(rec.AssetID), string(rec.Kind), string(rec.Severity), rec.ScannedCode,
		jsonArg(rec.ExpectedValue), jsonArg(rec.FoundValue), rec.Description, rec.Resolved,
	).Scan(&f.ID, &f.CreatedAt)
}

// ListFindings returns the audit's findings in the order they were recorded.
func (r *FindingRepo) ListFindings(ctx context.Context, auditID int, f models.FindingFilter) ([]models.Finding, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, audit_id, asset_id, kind, severity, scanned_code, expected_value, found_value,
		        description, resolved, created_at
		 FROM audit_findings
		 WHERE audit_id = $1
		   AND ($2 = '' OR kind = $2)
		   AND ($3 = '' OR severity = $3)
		   AND (NOT $4 OR NOT resolved)
		 ORDER BY id`,
		auditID, string(f.Kind), string(f.Severity), f.UnresolvedOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	findings := []models.Finding{}
	for rows.Next() {
		var rec models.FindingRecord
		var assetID sql.NullInt64
		var expected, found []byte
		if err := rows.Scan(&rec.ID, &rec.AuditID, &assetID, &rec.Kind, &rec.Severity, &rec.ScannedCode,
			&expected, &found, &rec.Description, &rec.Resolved, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.AssetID = intPtr(assetID)
		rec.ExpectedValue = expected
		rec.FoundValue = found
		fd, err := models.FindingFromRecord(rec)
		if err != nil {
			return nil, err
		}
		findings = append(findings, fd)
	}
	return findings, rows.Err()
}
