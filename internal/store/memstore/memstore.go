// Package memstore provides an in-memory transactional implementation of audit.Store used
// by tests and by the ephemeral STORE_DRIVER=memory mode. Transactions are serialized and
// run against a private copy of the state, which replaces the live state only on success.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crucial707/asset-audit/internal/audit"
	"github.com/crucial707/asset-audit/internal/models"
)

// Compile-time contract assertions.
var (
	_ audit.Store = (*Store)(nil)
	_ audit.Tx    = (*tx)(nil)
)

type state struct {
	categories map[int]models.Option
	locations  map[int]models.Option
	custodians map[int]models.Option
	assets     map[int]models.Asset

	audits   map[int]models.Audit
	items    map[int]models.AuditItem
	findings []models.Finding
	seqs     map[string]int

	nextAuditID   int
	nextItemID    int
	nextFindingID int
}

func newState() *state {
	return &state{
		categories: map[int]models.Option{},
		locations:  map[int]models.Option{},
		custodians: map[int]models.Option{},
		assets:     map[int]models.Asset{},
		audits:     map[int]models.Audit{},
		items:      map[int]models.AuditItem{},
		seqs:       map[string]int{},
	}
}

func (s *state) clone() *state {
	c := &state{
		categories:    make(map[int]models.Option, len(s.categories)),
		locations:     make(map[int]models.Option, len(s.locations)),
		custodians:    make(map[int]models.Option, len(s.custodians)),
		assets:        make(map[int]models.Asset, len(s.assets)),
		audits:        make(map[int]models.Audit, len(s.audits)),
		items:         make(map[int]models.AuditItem, len(s.items)),
		findings:      append([]models.Finding(nil), s.findings...),
		seqs:          make(map[string]int, len(s.seqs)),
		nextAuditID:   s.nextAuditID,
		nextItemID:    s.nextItemID,
		nextFindingID: s.nextFindingID,
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.custodians {
		c.custodians[k] = v
	}
	for k, v := range s.assets {
		c.assets[k] = v
	}
	for k, v := range s.audits {
		c.audits[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.seqs {
		c.seqs[k] = v
	}
	return c
}

// Store is the in-memory audit store.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// InTx runs fn against a private copy of the state and commits it only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx audit.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) GetAudit(ctx context.Context, id int) (*models.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.audit(id), nil
}

func (s *Store) ListAudits(ctx context.Context, f models.AuditFilter) ([]models.Audit, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(f.Search)
	matched := []models.Audit{}
	for id := range s.st.audits {
		a := s.st.audit(id)
		if f.State != "" && a.State != f.State {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(a.Code), q) &&
			!strings.Contains(strings.ToLower(a.Name), q) &&
			!strings.Contains(strings.ToLower(a.Description), q) {
			continue
		}
		matched = append(matched, *a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *Store) ListItems(ctx context.Context, auditID int, st models.ItemState) ([]models.AuditItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.AuditItem{}
	for _, it := range s.st.items {
		if it.AuditID != auditID || (st != "" && it.State != st) {
			continue
		}
		out = append(out, s.st.withName(it))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListFindings(ctx context.Context, auditID int, f models.FindingFilter) ([]models.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Finding{}
	for _, fd := range s.st.findings {
		if fd.AuditID == auditID && f.Match(fd) {
			out = append(out, fd)
		}
	}
	return out, nil
}

func (s *Store) ListOptions(ctx context.Context) (*models.CriteriaOptions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &models.CriteriaOptions{
		Categories: sortedOptions(s.st.categories),
		Locations:  sortedOptions(s.st.locations),
		Custodians: sortedOptions(s.st.custodians),
	}, nil
}

func sortedOptions(m map[int]models.Option) []models.Option {
	out := make([]models.Option, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// audit returns a copy of the audit with its derived found count, or nil.
func (s *state) audit(id int) *models.Audit {
	a, ok := s.audits[id]
	if !ok {
		return nil
	}
	a.FoundCount = 0
	for _, it := range s.items {
		if it.AuditID == id && it.ScannedAt != nil {
			a.FoundCount++
		}
	}
	return &a
}

func (s *state) withName(it models.AuditItem) models.AuditItem {
	if a, ok := s.assets[it.AssetID]; ok {
		it.AssetName = a.Name
	}
	return it
}

// tx implements audit.Tx over a private state copy.
type tx struct {
	st *state
}

func (t *tx) FindAssetByCode(ctx context.Context, code string) (*models.Asset, error) {
	var best *models.Asset
	bestPrimary := false
	for _, a := range t.st.assets {
		primary := a.Code == code
		if !primary && (a.Barcode == "" || a.Barcode != code) {
			continue
		}
		if best == nil || (primary && !bestPrimary) || (primary == bestPrimary && a.ID < best.ID) {
			cp := a
			best = &cp
			bestPrimary = primary
		}
	}
	return best, nil
}

func (t *tx) ResolveAssets(ctx context.Context, c models.Criteria) ([]models.Asset, error) {
	var out []models.Asset
	for _, a := range t.st.assets {
		if c.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UnknownCriteria(ctx context.Context, c models.Criteria) (map[string][]int, error) {
	out := map[string][]int{}
	check := func(dim string, ids []int, known map[int]models.Option) {
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				out[dim] = append(out[dim], id)
			}
		}
	}
	check("category_ids", c.CategoryIDs, t.st.categories)
	check("location_ids", c.LocationIDs, t.st.locations)
	check("custodian_ids", c.CustodianIDs, t.st.custodians)
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (t *tx) NextAuditSeq(ctx context.Context, period string) (int, error) {
	t.st.seqs[period]++
	return t.st.seqs[period], nil
}

func (t *tx) InsertAudit(ctx context.Context, a *models.Audit) error {
	for _, existing := range t.st.audits {
		if existing.Code == a.Code {
			return audit.ErrDuplicateCode
		}
	}
	t.st.nextAuditID++
	a.ID = t.st.nextAuditID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	t.st.audits[a.ID] = *a
	return nil
}

func (t *tx) LockAudit(ctx context.Context, id int, exclusive bool) (*models.Audit, error) {
	return t.st.audit(id), nil
}

func (t *tx) GetAudit(ctx context.Context, id int) (*models.Audit, error) {
	return t.st.audit(id), nil
}

func (t *tx) MarkStarted(ctx context.Context, id int, at time.Time) error {
	a := t.st.audits[id]
	a.State = models.AuditInProgress
	a.StartedAt = &at
	t.st.audits[id] = a
	return nil
}

func (t *tx) MarkCompleted(ctx context.Context, id int, at time.Time) error {
	a := t.st.audits[id]
	a.State = models.AuditCompleted
	a.FinalizedAt = &at
	t.st.audits[id] = a
	return nil
}

func (t *tx) DeleteAudit(ctx context.Context, id int) error {
	for itemID, it := range t.st.items {
		if it.AuditID == id {
			delete(t.st.items, itemID)
		}
	}
	delete(t.st.audits, id)
	return nil
}

func (t *tx) InsertItems(ctx context.Context, items []models.AuditItem) error {
	for i := range items {
		it := &items[i]
		for _, existing := range t.st.items {
			if existing.AuditID == it.AuditID && existing.AssetID == it.AssetID {
				return errDuplicateItem
			}
		}
		t.st.nextItemID++
		it.ID = t.st.nextItemID
		t.st.items[it.ID] = *it
	}
	return nil
}

func (t *tx) LockItem(ctx context.Context, auditID, assetID int) (*models.AuditItem, error) {
	for _, it := range t.st.items {
		if it.AuditID == auditID && it.AssetID == assetID {
			cp := t.st.withName(it)
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *tx) RecordScan(ctx context.Context, item models.AuditItem) (bool, error) {
	cur, ok := t.st.items[item.ID]
	if !ok || cur.State != models.ItemPending {
		return false, nil
	}
	cur.State = item.State
	cur.Found = item.Found
	cur.ScannedCode = item.ScannedCode
	cur.ScannedAt = item.ScannedAt
	cur.Notes = item.Notes
	t.st.items[item.ID] = cur
	return true, nil
}

func (t *tx) SweepPending(ctx context.Context, auditID int) ([]models.AuditItem, error) {
	var swept []models.AuditItem
	for id, it := range t.st.items {
		if it.AuditID != auditID || it.State != models.ItemPending {
			continue
		}
		it.State = models.ItemMissing
		t.st.items[id] = it
		swept = append(swept, it)
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].ID < swept[j].ID })
	return swept, nil
}

func (t *tx) AppendFinding(ctx context.Context, f *models.Finding) error {
	t.st.nextFindingID++
	f.ID = t.st.nextFindingID
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	t.st.findings = append(t.st.findings, *f)
	return nil
}
