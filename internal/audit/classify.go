package audit

import (
	"strconv"

	"github.com/crucial707/asset-audit/internal/models"
)

// Outcome is the classification of one scan.
type Outcome string

const (
	OutcomeExtra          Outcome = "extra"
	OutcomeOutOfScope     Outcome = "out_of_scope"
	OutcomeAlreadyScanned Outcome = "already_scanned"
	OutcomeFound          Outcome = "found"
)

// Classify decides a scan outcome from the resolved asset (nil when the code matched nothing)
// and the audit's item for that asset (nil when the asset is outside the audit's scope).
// The first matching rule wins.
func Classify(asset *models.Asset, item *models.AuditItem) Outcome {
	switch {
	case asset == nil:
		return OutcomeExtra
	case item == nil:
		return OutcomeOutOfScope
	case item.State != models.ItemPending:
		return OutcomeAlreadyScanned
	default:
		return OutcomeFound
	}
}

// Discrepancies compares custodian, location and condition. A field is compared only when
// both snapshots have it populated. The identifying code is never compared.
func Discrepancies(assetID int, expected, found models.Snapshot) []models.FieldChange {
	var out []models.FieldChange
	if expected.LocationID != nil && found.LocationID != nil && *expected.LocationID != *found.LocationID {
		out = append(out, models.FieldChange{
			AssetID:  assetID,
			Field:    models.FieldLocation,
			Expected: strconv.Itoa(*expected.LocationID),
			Found:    strconv.Itoa(*found.LocationID),
		})
	}
	if expected.CustodianID != nil && found.CustodianID != nil && *expected.CustodianID != *found.CustodianID {
		out = append(out, models.FieldChange{
			AssetID:  assetID,
			Field:    models.FieldCustodian,
			Expected: strconv.Itoa(*expected.CustodianID),
			Found:    strconv.Itoa(*found.CustodianID),
		})
	}
	if expected.Condition != "" && found.Condition != "" && expected.Condition != found.Condition {
		out = append(out, models.FieldChange{
			AssetID:  assetID,
			Field:    models.FieldCondition,
			Expected: expected.Condition,
			Found:    found.Condition,
		})
	}
	return out
}

func describeChange(c models.FieldChange) string {
	switch c.Field {
	case models.FieldLocation:
		return "location changed from " + c.Expected + " to " + c.Found
	case models.FieldCustodian:
		return "responsible changed from " + c.Expected + " to " + c.Found
	default:
		return "condition changed from " + c.Expected + " to " + c.Found
	}
}
