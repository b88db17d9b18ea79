package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crucial707/asset-audit/internal/models"
)

// ========================
// REPOSITORY STRUCT
// ========================

// AssetRepo reads the asset registry. The registry is maintained elsewhere; nothing here writes it.
type AssetRepo struct {
	q Querier
}

func NewAssetRepo(q Querier) *AssetRepo {
	return &AssetRepo{q: q}
}

const assetColumns = `id, code, COALESCE(barcode, ''), name, category_id, location_id, custodian_id, condition`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (models.Asset, error) {
	var a models.Asset
	var category, location, custodian sql.NullInt64
	err := row.Scan(&a.ID, &a.Code, &a.Barcode, &a.Name, &category, &location, &custodian, &a.Condition)
	a.CategoryID = intPtr(category)
	a.LocationID = intPtr(location)
	a.CustodianID = intPtr(custodian)
	return a, err
}

// ========================
// LOOKUP BY SCANNED CODE
// ========================

// FindAssetByCode prefers a primary code match over a barcode match, then the lowest id.
func (r *AssetRepo) FindAssetByCode(ctx context.Context, code string) (*models.Asset, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets
		 WHERE code = $1 OR barcode = $1
		 ORDER BY (code = $1) DESC, id
		 LIMIT 1`,
		code,
	)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ========================
// RESOLVE CRITERIA
// ========================

func (r *AssetRepo) ResolveAssets(ctx context.Context, c models.Criteria) ([]models.Asset, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM assets
		 WHERE ($1::int[] IS NULL OR category_id = ANY($1))
		   AND ($2::int[] IS NULL OR location_id = ANY($2))
		   AND ($3::int[] IS NULL OR custodian_id = ANY($3))
		 ORDER BY id`,
		intArray(c.CategoryIDs), intArray(c.LocationIDs), intArray(c.CustodianIDs),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// criteriaTables maps each criteria dimension to the registry table holding its ids.
var criteriaTables = []struct {
	dim   string
	table string
	ids   func(models.Criteria) []int
}{
	{"category_ids", "categories", func(c models.Criteria) []int { return c.CategoryIDs }},
	{"location_ids", "locations", func(c models.Criteria) []int { return c.LocationIDs }},
	{"custodian_ids", "employees", func(c models.Criteria) []int { return c.CustodianIDs }},
}

func (r *AssetRepo) UnknownCriteria(ctx context.Context, c models.Criteria) (map[string][]int, error) {
	var unknown map[string][]int
	for _, ct := range criteriaTables {
		ids := ct.ids(c)
		if len(ids) == 0 {
			continue
		}
		known, err := r.existingIDs(ctx, ct.table, ids)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ct.table, err)
		}
		for _, id := range ids {
			if !known[id] {
				if unknown == nil {
					unknown = map[string][]int{}
				}
				unknown[ct.dim] = append(unknown[ct.dim], id)
			}
		}
	}
	return unknown, nil
}

func (r *AssetRepo) existingIDs(ctx context.Context, table string, ids []int) (map[int]bool, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM `+table+` WHERE id = ANY($1)`, intArray(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[int]bool, len(ids))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	return known, rows.Err()
}

// ========================
// CRITERIA OPTIONS
// ========================

func (r *AssetRepo) ListOptions(ctx context.Context) (*models.CriteriaOptions, error) {
	var opts models.CriteriaOptions
	var err error
	if opts.Categories, err = r.listOptions(ctx, "categories"); err != nil {
		return nil, err
	}
	if opts.Locations, err = r.listOptions(ctx, "locations"); err != nil {
		return nil, err
	}
	if opts.Custodians, err = r.listOptions(ctx, "employees"); err != nil {
		return nil, err
	}
	return &opts, nil
}

func (r *AssetRepo) listOptions(ctx context.Context, table string) ([]models.Option, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name FROM `+table+` ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := []models.Option{}
	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
