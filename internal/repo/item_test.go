package repo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/crucial707/asset-audit/internal/models"
)

var itemRowColumns = []string{"id", "audit_id", "asset_id", "asset_name", "state",
	"expected_code", "expected_custodian_id", "expected_location_id", "expected_condition",
	"found_code", "found_custodian_id", "found_location_id", "found_condition",
	"scanned_code", "scanned_at", "notes"}

func intp(v int) *int { return &v }

func TestItemRepo_InsertItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO audit_items`).
		WithArgs(1, 10, "pending", "A-010", 7, 5, "good").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectQuery(`INSERT INTO audit_items`).
		WithArgs(1, 11, "pending", "A-011", nil, nil, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))

	items := []models.AuditItem{
		{AuditID: 1, AssetID: 10, State: models.ItemPending,
			Expected: models.Snapshot{Code: "A-010", CustodianID: intp(7), LocationID: intp(5), Condition: "good"}},
		{AuditID: 1, AssetID: 11, State: models.ItemPending, Expected: models.Snapshot{Code: "A-011"}},
	}
	if err := NewItemRepo(db).InsertItems(context.Background(), items); err != nil {
		t.Fatalf("InsertItems: %v", err)
	}
	if items[0].ID != 100 || items[1].ID != 101 {
		t.Errorf("ids not assigned: %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestItemRepo_LockItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`WHERE i.audit_id = \$1 AND i.asset_id = \$2 FOR UPDATE OF i`).
		WithArgs(1, 10).
		WillReturnRows(sqlmock.NewRows(itemRowColumns).
			AddRow(100, 1, 10, "Laptop", "pending", "A-010", 7, 5, "good", nil, nil, nil, nil, "", nil, ""))

	it, err := NewItemRepo(db).LockItem(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("LockItem: %v", err)
	}
	if it == nil || it.ID != 100 || it.State != models.ItemPending || it.AssetName != "Laptop" {
		t.Fatalf("unexpected item: %+v", it)
	}
	if it.Found != nil || it.ScannedAt != nil {
		t.Errorf("pending item should have no found snapshot: %+v", it)
	}
	if it.Expected.CustodianID == nil || *it.Expected.CustodianID != 7 {
		t.Errorf("unexpected expected snapshot: %+v", it.Expected)
	}
}

func TestItemRepo_LockItem_NotInAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FOR UPDATE OF i`).
		WithArgs(1, 99).
		WillReturnRows(sqlmock.NewRows(itemRowColumns))

	it, err := NewItemRepo(db).LockItem(context.Background(), 1, 99)
	if err != nil || it != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", it, err)
	}
}

func TestItemRepo_RecordScan(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"pending row updated", 1, true},
		{"row no longer pending", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock.New: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE audit_items SET state = \$2, .* WHERE id = \$1 AND state = 'pending'`).
				WithArgs(100, "discrepant", "A-010", 7, 6, "good", "A-010", sqlmock.AnyArg(), "moved").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			now := fixedTime
			item := models.AuditItem{
				ID:          100,
				State:       models.ItemDiscrepant,
				Found:       &models.Snapshot{Code: "A-010", CustodianID: intp(7), LocationID: intp(6), Condition: "good"},
				ScannedCode: "A-010",
				ScannedAt:   &now,
				Notes:       "moved",
			}
			ok, err := NewItemRepo(db).RecordScan(context.Background(), item)
			if err != nil {
				t.Fatalf("RecordScan: %v", err)
			}
			if ok != tt.want {
				t.Errorf("got %v, want %v", ok, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expectations: %v", err)
			}
		})
	}
}

func TestItemRepo_SweepPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`UPDATE audit_items SET state = 'missing' WHERE audit_id = \$1 AND state = 'pending' RETURNING`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_id", "expected_code"}).
			AddRow(102, 12, "A-012").
			AddRow(101, 11, "A-011"))

	swept, err := NewItemRepo(db).SweepPending(context.Background(), 1)
	if err != nil {
		t.Fatalf("SweepPending: %v", err)
	}
	if len(swept) != 2 || swept[0].ID != 101 || swept[1].AssetID != 12 {
		t.Errorf("unexpected swept items: %+v", swept)
	}
	for _, it := range swept {
		if it.State != models.ItemMissing || it.AuditID != 1 {
			t.Errorf("unexpected item state: %+v", it)
		}
	}
}

func TestItemRepo_ListItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`WHERE i.audit_id = \$1 AND \(\$2 = '' OR i.state = \$2\) ORDER BY i.id`).
		WithArgs(1, "discrepant").
		WillReturnRows(sqlmock.NewRows(itemRowColumns).
			AddRow(100, 1, 10, "Laptop", "discrepant", "A-010", 7, 5, "good", "A-010", 7, 6, "good", "A-010", fixedTime, ""))

	items, err := NewItemRepo(db).ListItems(context.Background(), 1, models.ItemDiscrepant)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].Found == nil || *items[0].Found.LocationID != 6 || items[0].ScannedAt == nil {
		t.Errorf("unexpected items: %+v", items)
	}
}
