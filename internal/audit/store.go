package audit

import (
	"context"
	"time"

	"github.com/crucial707/asset-audit/internal/models"
)

// Registry is the read side of the asset registry.
type Registry interface {
	// FindAssetByCode matches code exactly against the primary code, then the barcode.
	// It returns nil, nil when nothing matches.
	FindAssetByCode(ctx context.Context, code string) (*models.Asset, error)
	// ResolveAssets returns every asset matching the criteria, ordered by id.
	ResolveAssets(ctx context.Context, c models.Criteria) ([]models.Asset, error)
	// UnknownCriteria returns, per criteria dimension, the ids that do not exist.
	UnknownCriteria(ctx context.Context, c models.Criteria) (map[string][]int, error)
}

// Tx is the unit of work every mutating operation runs in. Nothing written through a Tx
// survives unless the InTx callback returns nil.
type Tx interface {
	Registry

	// NextAuditSeq atomically increments and returns the sequence for a code period.
	NextAuditSeq(ctx context.Context, period string) (int, error)
	// InsertAudit stores a new audit and sets its ID. A code collision yields ErrDuplicateCode.
	InsertAudit(ctx context.Context, a *models.Audit) error
	// LockAudit loads an audit and locks it for the rest of the transaction, exclusively or
	// shared. It returns nil, nil when the audit does not exist.
	LockAudit(ctx context.Context, id int, exclusive bool) (*models.Audit, error)
	GetAudit(ctx context.Context, id int) (*models.Audit, error)
	MarkStarted(ctx context.Context, id int, at time.Time) error
	MarkCompleted(ctx context.Context, id int, at time.Time) error
	DeleteAudit(ctx context.Context, id int) error

	InsertItems(ctx context.Context, items []models.AuditItem) error
	// LockItem loads and locks the item for (audit, asset), or returns nil, nil.
	LockItem(ctx context.Context, auditID, assetID int) (*models.AuditItem, error)
	// RecordScan writes the scan result onto a pending item. It reports false, and writes
	// nothing, when the item is no longer pending.
	RecordScan(ctx context.Context, item models.AuditItem) (bool, error)
	// SweepPending moves every pending item of the audit to missing and returns them.
	SweepPending(ctx context.Context, auditID int) ([]models.AuditItem, error)

	AppendFinding(ctx context.Context, f *models.Finding) error
}

// Store gives transactional access plus the read-only queries used by listings and reports.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetAudit(ctx context.Context, id int) (*models.Audit, error)
	ListAudits(ctx context.Context, f models.AuditFilter) ([]models.Audit, int, error)
	ListItems(ctx context.Context, auditID int, state models.ItemState) ([]models.AuditItem, error)
	ListFindings(ctx context.Context, auditID int, f models.FindingFilter) ([]models.Finding, error)
	ListOptions(ctx context.Context) (*models.CriteriaOptions, error)
}

// Locker serializes work on one key across processes. It is an optimization only; the
// store's row locks are what keep scans correct.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
