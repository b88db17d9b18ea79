package repo

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/crucial707/asset-audit/internal/models"
)

// ItemRepo persists audit items, the per-asset rows of an audit's scope.
type ItemRepo struct {
	q Querier
}

func NewItemRepo(q Querier) *ItemRepo {
	return &ItemRepo{q: q}
}

const itemColumns = `i.id, i.audit_id, i.asset_id, COALESCE(s.name, ''), i.state,
	i.expected_code, i.expected_custodian_id, i.expected_location_id, i.expected_condition,
	i.found_code, i.found_custodian_id, i.found_location_id, i.found_condition,
	COALESCE(i.scanned_code, ''), i.scanned_at, i.notes`

const itemFrom = ` FROM audit_items i LEFT JOIN assets s ON s.id = i.asset_id`

func scanItem(row rowScanner) (models.AuditItem, error) {
	var it models.AuditItem
	var expCustodian, expLocation, foundCustodian, foundLocation sql.NullInt64
	var foundCode, foundCondition sql.NullString
	var scannedAt sql.NullTime
	err := row.Scan(&it.ID, &it.AuditID, &it.AssetID, &it.AssetName, &it.State,
		&it.Expected.Code, &expCustodian, &expLocation, &it.Expected.Condition,
		&foundCode, &foundCustodian, &foundLocation, &foundCondition,
		&it.ScannedCode, &scannedAt, &it.Notes)
	if err != nil {
		return it, err
	}
	it.Expected.CustodianID = intPtr(expCustodian)
	it.Expected.LocationID = intPtr(expLocation)
	if foundCode.Valid {
		it.Found = &models.Snapshot{
			Code:        foundCode.String,
			CustodianID: intPtr(foundCustodian),
			LocationID:  intPtr(foundLocation),
			Condition:   foundCondition.String,
		}
	}
	it.ScannedAt = timePtr(scannedAt)
	return it, nil
}

// InsertItems stores the audit's expected items with their frozen snapshots and sets their IDs.
func (r *ItemRepo) InsertItems(ctx context.Context, items []models.AuditItem) error {
	for i := range items {
		it := &items[i]
		err := r.q.QueryRowContext(ctx,
			`INSERT INTO audit_items
			   (audit_id, asset_id, state, expected_code, expected_custodian_id, expected_location_id, expected_condition)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			it.AuditID, it.AssetID, string(it.State), it.Expected.Code,
			intArg(it.Expected.CustodianID), intArg(it.Expected.LocationID), it.Expected.Condition,
		).Scan(&it.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// LockItem row-locks the item so concurrent scans of the same asset serialize.
func (r *ItemRepo) LockItem(ctx context.Context, auditID, assetID int) (*models.AuditItem, error) {
	it, err := scanItem(r.q.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.audit_id = $1 AND i.asset_id = $2 FOR UPDATE OF i`,
		auditID, assetID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// RecordScan only touches a pending row; a false return means someone else got there first.
func (r *ItemRepo) RecordScan(ctx context.Context, item models.AuditItem) (bool, error) {
	var found models.Snapshot
	if item.Found != nil {
		found = *item.Found
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE audit_items
		 SET state = $2, found_code = $3, found_custodian_id = $4, found_location_id = $5,
		     found_condition = $6, scanned_code = $7, scanned_at = $8, notes = $9
		 WHERE id = $1 AND state = 'pending'`,
		item.ID, string(item.State), found.Code, intArg(found.CustodianID), intArg(found.LocationID),
		found.Condition, nullIfEmpty(item.ScannedCode), item.ScannedAt, item.Notes,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ItemRepo) SweepPending(ctx context.Context, auditID int) ([]models.AuditItem, error) {
	rows, err := r.q.QueryContext(ctx,
		`UPDATE audit_items SET state = 'missing'
		 WHERE audit_id = $1 AND state = 'pending'
		 RETURNING id, asset_id, expected_code`,
		auditID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swept []models.AuditItem
	for rows.Next() {
		it := models.AuditItem{AuditID: auditID, State: models.ItemMissing}
		if err := rows.Scan(&it.ID, &it.AssetID, &it.Expected.Code); err != nil {
			return nil, err
		}
		swept = append(swept, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].ID < swept[j].ID })
	return swept, nil
}

// ListItems returns the audit's items ordered by id, optionally restricted to one state.
func (r *ItemRepo) ListItems(ctx context.Context, auditID int, state models.ItemState) ([]models.AuditItem, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.audit_id = $1 AND ($2 = '' OR i.state = $2) ORDER BY i.id`,
		auditID, string(state),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.AuditItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
