package models

import (
	"sort"
	"time"
)

type AuditState string

const (
	AuditDraft      AuditState = "draft"
	AuditInProgress AuditState = "in_progress"
	AuditCompleted  AuditState = "completed"
	// AuditCancelled is accepted by storage and filters; no operation transitions into it.
	AuditCancelled AuditState = "cancelled"
)

// Valid reports whether s is one of the declared audit states.
func (s AuditState) Valid() bool {
	switch s {
	case AuditDraft, AuditInProgress, AuditCompleted, AuditCancelled:
		return true
	}
	return false
}

// Criteria restricts the assets materialized into an audit. An empty dimension is unrestricted;
// dimensions combine with AND, ids within a dimension with OR.
type Criteria struct {
	CategoryIDs  []int `json:"category_ids,omitempty"`
	LocationIDs  []int `json:"location_ids,omitempty"`
	CustodianIDs []int `json:"custodian_ids,omitempty"`
}

// Normalized returns a copy with sorted, de-duplicated ids.
func (c Criteria) Normalized() Criteria {
	return Criteria{
		CategoryIDs:  uniqueSorted(c.CategoryIDs),
		LocationIDs:  uniqueSorted(c.LocationIDs),
		CustodianIDs: uniqueSorted(c.CustodianIDs),
	}
}

// Matches reports whether the asset falls inside the criteria.
func (c Criteria) Matches(a Asset) bool {
	return matchDim(c.CategoryIDs, a.CategoryID) &&
		matchDim(c.LocationIDs, a.LocationID) &&
		matchDim(c.CustodianIDs, a.CustodianID)
}

func matchDim(ids []int, v *int) bool {
	if len(ids) == 0 {
		return true
	}
	if v == nil {
		return false
	}
	for _, id := range ids {
		if id == *v {
			return true
		}
	}
	return false
}

func uniqueSorted(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int(nil), ids...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// Audit is one physical-inventory verification run.
type Audit struct {
	ID          int        `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Criteria    Criteria   `json:"criteria"`
	State       AuditState `json:"state"`
	// ExpectedCount is fixed when the audit is created.
	ExpectedCount int `json:"expected_count"`
	// FoundCount is derived: items with a recorded successful scan, found or discrepant.
	FoundCount  int        `json:"found_count"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	State  AuditState
	Search string
	Limit  int
	Offset int
}

type ItemState string

const (
	ItemPending    ItemState = "pending"
	ItemFound      ItemState = "found"
	ItemMissing    ItemState = "missing"
	ItemDiscrepant ItemState = "discrepant"
)

// Terminal reports whether the item has left pending. Terminal states never change again.
func (s ItemState) Terminal() bool {
	return s == ItemFound || s == ItemMissing || s == ItemDiscrepant
}

// Snapshot is a frozen copy of an asset's custodian, location, condition and code.
type Snapshot struct {
	Code        string `json:"code"`
	CustodianID *int   `json:"custodian_id"`
	LocationID  *int   `json:"location_id"`
	Condition   string `json:"condition"`
}

// AuditItem is one asset's place-holder within an audit's scope.
type AuditItem struct {
	ID        int       `json:"id"`
	AuditID   int       `json:"audit_id"`
	AssetID   int       `json:"asset_id"`
	AssetName string    `json:"asset_name,omitempty"`
	State     ItemState `json:"state"`
	// Expected is captured once when the audit is created and never refreshed.
	Expected    Snapshot   `json:"expected"`
	Found       *Snapshot  `json:"found,omitempty"`
	ScannedCode string     `json:"scanned_code,omitempty"`
	ScannedAt   *time.Time `json:"scanned_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// AuditDetail is an audit with its items and findings.
type AuditDetail struct {
	Audit
	Items    []AuditItem `json:"items"`
	Findings []Finding   `json:"findings"`
}
