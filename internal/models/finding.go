package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type FindingKind string

const (
	KindAssetNotFound      FindingKind = "asset_not_found"
	KindAssetExtra         FindingKind = "asset_extra"
	KindLocationChanged    FindingKind = "location_changed"
	KindResponsibleChanged FindingKind = "responsible_changed"
	KindConditionChanged   FindingKind = "condition_changed"
	KindOtherDiscrepancy   FindingKind = "other_discrepancy"
)

// Valid reports whether k is a declared finding kind.
func (k FindingKind) Valid() bool {
	switch k {
	case KindAssetNotFound, KindAssetExtra, KindLocationChanged,
		KindResponsibleChanged, KindConditionChanged, KindOtherDiscrepancy:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a declared severity.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// SeverityFor is the fixed severity policy. Callers never choose a severity.
func SeverityFor(k FindingKind) Severity {
	switch k {
	case KindAssetNotFound:
		return SeverityHigh
	case KindConditionChanged:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// SnapshotField names one of the fields compared between expected and found snapshots.
type SnapshotField string

const (
	FieldLocation  SnapshotField = "location_id"
	FieldCustodian SnapshotField = "custodian_id"
	FieldCondition SnapshotField = "condition"
)

// Detail is the kind-specific payload of a Finding. The implementations in this file are
// the only ones; each one determines the finding's kind.
type Detail interface {
	Kind() FindingKind
	isDetail()
}

// MissingAsset is an expected asset that was never scanned before finalization.
type MissingAsset struct {
	AssetID int
}

// ExtraAsset is a scanned code that resolved to no asset, or to an asset outside the audit's scope.
// AssetID is set only in the second case.
type ExtraAsset struct {
	ScannedCode string
	AssetID     *int
}

// FieldChange is a single-field mismatch between an item's expected and found snapshots.
type FieldChange struct {
	AssetID  int
	Field    SnapshotField
	Expected string
	Found    string
}

// OtherDiscrepancy is a free-form irregularity with an optional asset reference.
type OtherDiscrepancy struct {
	AssetID *int
}

func (MissingAsset) Kind() FindingKind     { return KindAssetNotFound }
func (ExtraAsset) Kind() FindingKind       { return KindAssetExtra }
func (OtherDiscrepancy) Kind() FindingKind { return KindOtherDiscrepancy }

func (c FieldChange) Kind() FindingKind {
	switch c.Field {
	case FieldLocation:
		return KindLocationChanged
	case FieldCustodian:
		return KindResponsibleChanged
	case FieldCondition:
		return KindConditionChanged
	}
	return KindOtherDiscrepancy
}

func (MissingAsset) isDetail()     {}
func (ExtraAsset) isDetail()       {}
func (FieldChange) isDetail()      {}
func (OtherDiscrepancy) isDetail() {}

// Finding is one recorded irregularity. Findings are append-only.
type Finding struct {
	ID          int
	AuditID     int
	Detail      Detail
	Severity    Severity
	Description string
	Resolved    bool
	CreatedAt   time.Time
}

// NewFinding builds an unsaved finding with the policy severity for the detail's kind.
func NewFinding(auditID int, d Detail, description string) Finding {
	return Finding{
		AuditID:     auditID,
		Detail:      d,
		Severity:    SeverityFor(d.Kind()),
		Description: description,
	}
}

func (f Finding) Kind() FindingKind {
	if f.Detail == nil {
		return ""
	}
	return f.Detail.Kind()
}

// AssetID returns the referenced asset, if any.
func (f Finding) AssetID() *int {
	switch d := f.Detail.(type) {
	case MissingAsset:
		id := d.AssetID
		return &id
	case ExtraAsset:
		return copyInt(d.AssetID)
	case FieldChange:
		id := d.AssetID
		return &id
	case OtherDiscrepancy:
		return copyInt(d.AssetID)
	}
	return nil
}

// FindingRecord is the flat storage and wire shape of a Finding.
type FindingRecord struct {
	ID            int             `json:"id"`
	AuditID       int             `json:"audit_id"`
	AssetID       *int            `json:"asset_id"`
	Kind          FindingKind     `json:"kind"`
	Severity      Severity        `json:"severity"`
	ScannedCode   string          `json:"scanned_code,omitempty"`
	ExpectedValue json.RawMessage `json:"expected_value,omitempty"`
	FoundValue    json.RawMessage `json:"found_value,omitempty"`
	Description   string          `json:"description"`
	Resolved      bool            `json:"resolved"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Record flattens the finding. expected_value and found_value are only set for field changes,
// each holding the single changed field.
func (f Finding) Record() (FindingRecord, error) {
	rec := FindingRecord{
		ID:          f.ID,
		AuditID:     f.AuditID,
		AssetID:     f.AssetID(),
		Kind:        f.Kind(),
		Severity:    f.Severity,
		Description: f.Description,
		Resolved:    f.Resolved,
		CreatedAt:   f.CreatedAt,
	}
	switch d := f.Detail.(type) {
	case ExtraAsset:
		rec.ScannedCode = d.ScannedCode
	case FieldChange:
		var err error
		if rec.ExpectedValue, err = json.Marshal(map[SnapshotField]string{d.Field: d.Expected}); err != nil {
			return rec, err
		}
		if rec.FoundValue, err = json.Marshal(map[SnapshotField]string{d.Field: d.Found}); err != nil {
			return rec, err
		}
	case nil:
		return rec, fmt.Errorf("finding %d has no detail", f.ID)
	}
	return rec, nil
}

// FindingFromRecord rebuilds the typed finding from its flat shape.
func FindingFromRecord(rec FindingRecord) (Finding, error) {
	f := Finding{
		ID:          rec.ID,
		AuditID:     rec.AuditID,
		Severity:    rec.Severity,
		Description: rec.Description,
		Resolved:    rec.Resolved,
		CreatedAt:   rec.CreatedAt,
	}
	switch rec.Kind {
	case KindAssetNotFound:
		if rec.AssetID == nil {
			return f, fmt.Errorf("finding %d: %s without asset", rec.ID, rec.Kind)
		}
		f.Detail = MissingAsset{AssetID: *rec.AssetID}
	case KindAssetExtra:
		f.Detail = ExtraAsset{ScannedCode: rec.ScannedCode, AssetID: copyInt(rec.AssetID)}
	case KindLocationChanged, KindResponsibleChanged, KindConditionChanged:
		if rec.AssetID == nil {
			return f, fmt.Errorf("finding %d: %s without asset", rec.ID, rec.Kind)
		}
		field := fieldForKind(rec.Kind)
		var expected, found map[SnapshotField]string
		if err := json.Unmarshal(rec.ExpectedValue, &expected); err != nil {
			return f, fmt.Errorf("finding %d expected_value: %w", rec.ID, err)
		}
		if err := json.Unmarshal(rec.FoundValue, &found); err != nil {
			return f, fmt.Errorf("finding %d found_value: %w", rec.ID, err)
		}
		f.Detail = FieldChange{AssetID: *rec.AssetID, Field: field, Expected: expected[field], Found: found[field]}
	case KindOtherDiscrepancy:
		f.Detail = OtherDiscrepancy{AssetID: copyInt(rec.AssetID)}
	default:
		return f, fmt.Errorf("finding %d: unknown kind %q", rec.ID, rec.Kind)
	}
	return f, nil
}

func fieldForKind(k FindingKind) SnapshotField {
	switch k {
	case KindLocationChanged:
		return FieldLocation
	case KindResponsibleChanged:
		return FieldCustodian
	default:
		return FieldCondition
	}
}

func (f Finding) MarshalJSON() ([]byte, error) {
	rec, err := f.Record()
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

func (f *Finding) UnmarshalJSON(b []byte) error {
	var rec FindingRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	out, err := FindingFromRecord(rec)
	if err != nil {
		return err
	}
	*f = out
	return nil
}

// FindingFilter narrows finding listings. Zero values mean no restriction.
type FindingFilter struct {
	Kind           FindingKind
	Severity       Severity
	UnresolvedOnly bool
}

// Match reports whether f passes the filter.
func (ff FindingFilter) Match(f Finding) bool {
	if ff.Kind != "" && f.Kind() != ff.Kind {
		return false
	}
	if ff.Severity != "" && f.Severity != ff.Severity {
		return false
	}
	if ff.UnresolvedOnly && f.Resolved {
		return false
	}
	return true
}
