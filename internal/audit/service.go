// Package audit implements physical-inventory audits: defining the expected asset set,
// classifying scans against it, recording findings and compiling the final report.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/crucial707/asset-audit/internal/metrics"
	"github.com/crucial707/asset-audit/internal/models"
)

// DefaultCodePrefix starts every generated audit code unless configured otherwise.
const DefaultCodePrefix = "LEV"

const createAttempts = 3

const (
	descExtra    = "unexpected asset found"
	descMissing  = "asset not found during audit"
	descNotInSet = "asset is outside the audit scope"
)

// Service runs audit operations against a Store. Each mutating call is one transaction.
type Service struct {
	Store      Store
	Locker     Locker // optional
	Logger     *slog.Logger
	CodePrefix string
	Now        func() time.Time
}

// NewService returns a Service with default prefix, logger and clock.
func NewService(store Store) *Service {
	return &Service{
		Store:      store,
		Logger:     slog.Default(),
		CodePrefix: DefaultCodePrefix,
		Now:        time.Now,
	}
}

// CreateInput is the definition of a new audit.
type CreateInput struct {
	Name        string
	Description string
	Criteria    models.Criteria
}

// ScanResult describes what a scan did. Asset is nil for extras; Item is nil unless the asset
// belongs to the audit.
type ScanResult struct {
	Outcome  Outcome           `json:"outcome"`
	Asset    *models.Asset     `json:"asset,omitempty"`
	Item     *models.AuditItem `json:"item,omitempty"`
	Findings []models.Finding  `json:"findings,omitempty"`
}

// FormatCode renders an audit code: prefix, year, month and a zero-padded sequence.
func FormatCode(prefix string, t time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, codePeriod(t), seq)
}

func codePeriod(t time.Time) string {
	return fmt.Sprintf("%04d%02d", t.Year(), int(t.Month()))
}

// Create validates the input, materializes the expected items from the registry and stores
// a draft audit.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Audit, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Criteria = in.Criteria.Normalized()
	if in.Name == "" {
		return nil, &ValidationError{Fields: map[string]string{"name": "required"}}
	}

	var created *models.Audit
	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		created, err = s.create(ctx, in)
		if !errors.Is(err, ErrDuplicateCode) {
			break
		}
		s.Logger.Warn("audit code collision, retrying", "attempt", attempt)
	}
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(string(models.AuditDraft))
	s.Logger.Info("audit created", "audit_id", created.ID, "code", created.Code, "expected", created.ExpectedCount)
	return created, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (*models.Audit, error) {
	var created *models.Audit
	err := s.Store.InTx(ctx, func(tx Tx) error {
		unknown, err := tx.UnknownCriteria(ctx, in.Criteria)
		if err != nil {
			return fmt.Errorf("check criteria: %w", err)
		}
		if len(unknown) > 0 {
			fields := make(map[string]string, len(unknown))
			for dim, ids := range unknown {
				fields["criteria."+dim] = "unknown ids: " + joinInts(ids)
			}
			return &ValidationError{Fields: fields}
		}

		assets, err := tx.ResolveAssets(ctx, in.Criteria)
		if err != nil {
			return fmt.Errorf("resolve assets: %w", err)
		}

		now := s.Now()
		seq, err := tx.NextAuditSeq(ctx, s.CodePrefix+"-"+codePeriod(now))
		if err != nil {
			return fmt.Errorf("next audit sequence: %w", err)
		}

		a := &models.Audit{
			Code:          FormatCode(s.CodePrefix, now, seq),
			Name:          in.Name,
			Description:   in.Description,
			Criteria:      in.Criteria,
			State:         models.AuditDraft,
			ExpectedCount: len(assets),
			CreatedAt:     now,
		}
		if err := tx.InsertAudit(ctx, a); err != nil {
			return err
		}

		items := make([]models.AuditItem, 0, len(assets))
		for _, asset := range assets {
			items = append(items, models.AuditItem{
				AuditID:   a.ID,
				AssetID:   asset.ID,
				AssetName: asset.Name,
				State:     models.ItemPending,
				Expected:  asset.Snapshot(),
			})
		}
		if err := tx.InsertItems(ctx, items); err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
		created = a
		return nil
	})
	return created, err
}

// Start moves a draft audit to in_progress.
func (s *Service) Start(ctx context.Context, id int) (*models.Audit, error) {
	var out *models.Audit
	err := s.Store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAudit(ctx, id, true)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrNotFound
		}
		if a.State != models.AuditDraft {
			return &StateError{Op: "start", State: a.State, Msg: "audit already started or completed"}
		}
		if err := tx.MarkStarted(ctx, id, s.Now()); err != nil {
			return err
		}
		out, err = tx.GetAudit(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.IncTransition(string(models.AuditInProgress))
	s.Logger.Info("audit started", "audit_id", id)
	return out, nil
}

// Finalize sweeps every pending item to missing, records an asset_not_found finding for each
// and completes the audit.
func (s *Service) Finalize(ctx context.Context, id int) (*models.Audit, error) {
	unlock := s.lock(ctx, id)
	defer unlock()

	var out *models.Audit
	var swept int
	err := s.Store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAudit(ctx, id, true)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrNotFound
		}
		if a.State != models.AuditInProgress {
			return &StateError{Op: "finalize", State: a.State, Msg: "only in-progress audits can be finalized"}
		}

		missing, err := tx.SweepPending(ctx, id)
		if err != nil {
			return fmt.Errorf("sweep pending items: %w", err)
		}
		for _, item := range missing {
			f := models.NewFinding(id, models.MissingAsset{AssetID: item.AssetID}, descMissing)
			if err := tx.AppendFinding(ctx, &f); err != nil {
				return fmt.Errorf("append finding: %w", err)
			}
		}
		swept = len(missing)

		if err := tx.MarkCompleted(ctx, id, s.Now()); err != nil {
			return err
		}
		out, err = tx.GetAudit(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.AddFindings(string(models.KindAssetNotFound), swept)
	metrics.IncTransition(string(models.AuditCompleted))
	s.Logger.Info("audit finalized", "audit_id", id, "missing", swept)
	return out, nil
}

// Delete removes a draft audit together with its items.
func (s *Service) Delete(ctx context.Context, id int) error {
	err := s.Store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAudit(ctx, id, true)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrNotFound
		}
		if a.State != models.AuditDraft {
			return &StateError{Op: "delete", State: a.State, Msg: "only draft audits may be deleted"}
		}
		return tx.DeleteAudit(ctx, id)
	})
	if err != nil {
		return err
	}
	s.Logger.Info("audit deleted", "audit_id", id)
	return nil
}

// Scan classifies one scanned code against an in-progress audit. On ErrAlreadyScanned the
// returned result still carries the asset and item.
func (s *Service) Scan(ctx context.Context, id int, code, notes string) (*ScanResult, error) {
	code = strings.TrimSpace(code)
	notes = strings.TrimSpace(notes)
	if code == "" {
		return nil, &ValidationError{Fields: map[string]string{"code": "required"}}
	}

	unlock := s.lock(ctx, id)
	defer unlock()

	var res *ScanResult
	err := s.Store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAudit(ctx, id, false)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrNotFound
		}
		if a.State != models.AuditInProgress {
			return &StateError{Op: "scan", State: a.State, Msg: "audit is not in progress"}
		}

		asset, err := tx.FindAssetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("find asset: %w", err)
		}
		var item *models.AuditItem
		if asset != nil {
			if item, err = tx.LockItem(ctx, id, asset.ID); err != nil {
				return fmt.Errorf("lock item: %w", err)
			}
		}

		switch Classify(asset, item) {
		case OutcomeExtra:
			f := models.NewFinding(id, models.ExtraAsset{ScannedCode: code}, orDefault(notes, descExtra))
			if err := tx.AppendFinding(ctx, &f); err != nil {
				return fmt.Errorf("append finding: %w", err)
			}
			res = &ScanResult{Outcome: OutcomeExtra, Findings: []models.Finding{f}}
			return nil

		case OutcomeOutOfScope:
			assetID := asset.ID
			f := models.NewFinding(id, models.ExtraAsset{ScannedCode: code, AssetID: &assetID}, orDefault(notes, descNotInSet))
			if err := tx.AppendFinding(ctx, &f); err != nil {
				return fmt.Errorf("append finding: %w", err)
			}
			res = &ScanResult{Outcome: OutcomeOutOfScope, Asset: asset, Findings: []models.Finding{f}}
			return nil

		case OutcomeAlreadyScanned:
			res = &ScanResult{Outcome: OutcomeAlreadyScanned, Asset: asset, Item: item}
			return ErrAlreadyScanned
		}

		now := s.Now()
		found := asset.Snapshot()
		changes := Discrepancies(asset.ID, item.Expected, found)

		item.Found = &found
		item.ScannedCode = code
		item.ScannedAt = &now
		item.Notes = notes
		item.State = models.ItemFound
		if len(changes) > 0 {
			item.State = models.ItemDiscrepant
		}
		ok, err := tx.RecordScan(ctx, *item)
		if err != nil {
			return fmt.Errorf("record scan: %w", err)
		}
		if !ok {
			res = &ScanResult{Outcome: OutcomeAlreadyScanned, Asset: asset, Item: item}
			return ErrAlreadyScanned
		}

		res = &ScanResult{Outcome: OutcomeFound, Asset: asset, Item: item}
		for _, c := range changes {
			f := models.NewFinding(id, c, describeChange(c))
			if err := tx.AppendFinding(ctx, &f); err != nil {
				return fmt.Errorf("append finding: %w", err)
			}
			res.Findings = append(res.Findings, f)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrAlreadyScanned) {
		return nil, err
	}

	metrics.IncScanOutcome(string(res.Outcome))
	for _, f := range res.Findings {
		metrics.AddFindings(string(f.Kind()), 1)
	}
	s.Logger.Debug("scan classified", "audit_id", id, "code", code, "outcome", res.Outcome, "findings", len(res.Findings))
	return res, err
}

// Get returns the audit with its items and findings.
func (s *Service) Get(ctx context.Context, id int) (*models.AuditDetail, error) {
	a, err := s.Store.GetAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	items, err := s.Store.ListItems(ctx, id, "")
	if err != nil {
		return nil, err
	}
	findings, err := s.Store.ListFindings(ctx, id, models.FindingFilter{})
	if err != nil {
		return nil, err
	}
	return &models.AuditDetail{Audit: *a, Items: items, Findings: findings}, nil
}

// List returns audits matching the filter and the total number of matches.
func (s *Service) List(ctx context.Context, f models.AuditFilter) ([]models.Audit, int, error) {
	if f.State != "" && !f.State.Valid() {
		return nil, 0, &ValidationError{Fields: map[string]string{"state": "unknown state"}}
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.Store.ListAudits(ctx, f)
}

// Findings lists an audit's findings.
func (s *Service) Findings(ctx context.Context, id int, f models.FindingFilter) ([]models.Finding, error) {
	fields := map[string]string{}
	if f.Kind != "" && !f.Kind.Valid() {
		fields["kind"] = "unknown kind"
	}
	if f.Severity != "" && !f.Severity.Valid() {
		fields["severity"] = "unknown severity"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	a, err := s.Store.GetAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return s.Store.ListFindings(ctx, id, f)
}

// Options returns the values available for audit criteria.
func (s *Service) Options(ctx context.Context) (*models.CriteriaOptions, error) {
	return s.Store.ListOptions(ctx)
}

// lock takes the optional per-audit lock. Failure to lock is logged and ignored.
func (s *Service) lock(ctx context.Context, id int) func() {
	if s.Locker == nil {
		return func() {}
	}
	unlock, err := s.Locker.Lock(ctx, "audit:"+strconv.Itoa(id))
	if err != nil {
		s.Logger.Warn("audit lock not obtained; relying on row locks", "audit_id", id, "error", err)
		return func() {}
	}
	return unlock
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
