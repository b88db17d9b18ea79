package repo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/crucial707/asset-audit/internal/models"
)

func TestFindingRepo_AppendFinding(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO audit_findings`).
		WithArgs(1, 10, "location_changed", "medium", "", `{"location_id":"5"}`, `{"location_id":"6"}`, "location changed", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(55, fixedTime))

	f := models.NewFinding(1, models.FieldChange{AssetID: 10, Field: models.FieldLocation, Expected: "5", Found: "6"}, "location changed")
	if err := NewFindingRepo(db).AppendFinding(context.Background(), &f); err != nil {
		t.Fatalf("AppendFinding: %v", err)
	}
	if f.ID != 55 || !f.CreatedAt.Equal(fixedTime) {
		t.Errorf("unexpected finding: %+v", f)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestFindingRepo_AppendFinding_Extra(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO audit_findings`).
		WithArgs(1, nil, "asset_extra", "medium", "ZZZ-999", nil, nil, "unexpected asset found", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(56, fixedTime))

	f := models.NewFinding(1, models.ExtraAsset{ScannedCode: "ZZZ-999"}, "unexpected asset found")
	if err := NewFindingRepo(db).AppendFinding(context.Background(), &f); err != nil {
		t.Fatalf("AppendFinding: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestFindingRepo_ListFindings(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cols := []string{"id", "audit_id", "asset_id", "kind", "severity", "scanned_code",
		"expected_value", "found_value", "description", "resolved", "created_at"}
	mock.ExpectQuery(`FROM audit_findings WHERE audit_id = \$1`).
		WithArgs(1, "", "medium", false).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 1, 10, "location_changed", "medium", "", []byte(`{"location_id":"5"}`), []byte(`{"location_id":"6"}`), "moved", false, fixedTime).
			AddRow(2, 1, nil, "asset_extra", "medium", "ZZZ-999", nil, nil, "unexpected asset found", false, fixedTime))

	list, err := NewFindingRepo(db).ListFindings(context.Background(), 1, models.FindingFilter{Severity: models.SeverityMedium})
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(list))
	}
	change, ok := list[0].Detail.(models.FieldChange)
	if !ok || change.Field != models.FieldLocation || change.Expected != "5" || change.Found != "6" {
		t.Errorf("unexpected first finding detail: %#v", list[0].Detail)
	}
	extra, ok := list[1].Detail.(models.ExtraAsset)
	if !ok || extra.ScannedCode != "ZZZ-999" || extra.AssetID != nil {
		t.Errorf("unexpected second finding detail: %#v", list[1].Detail)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
