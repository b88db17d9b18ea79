package repo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestActivityRepo_Log(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO activity_log \(user_id, action, resource_type, resource_id, details\)`).
		WithArgs(3, "finalize", "audit", 12, "missing=2").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := NewActivityRepo(db).Log(context.Background(), 3, "finalize", "audit", 12, "missing=2"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestActivityRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, user_id, action, resource_type, resource_id, COALESCE\(details,''\), created_at FROM activity_log`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "resource_type", "resource_id", "details", "created_at"}).
			AddRow(2, 3, "start", "audit", 12, "", fixedTime).
			AddRow(1, 3, "create", "audit", 12, "LEV-202603-001", fixedTime))

	entries, err := NewActivityRepo(db).List(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "start" || entries[1].Details != "LEV-202603-001" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
