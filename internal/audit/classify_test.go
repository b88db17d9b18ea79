package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucial707/asset-audit/internal/models"
)

func intp(v int) *int { return &v }

func TestClassify(t *testing.T) {
	asset := &models.Asset{ID: 1, Code: "A1"}
	tests := []struct {
		name  string
		asset *models.Asset
		item  *models.AuditItem
		want  Outcome
	}{
		{"no asset", nil, nil, OutcomeExtra},
		{"asset outside scope", asset, nil, OutcomeOutOfScope},
		{"pending item", asset, &models.AuditItem{State: models.ItemPending}, OutcomeFound},
		{"found item", asset, &models.AuditItem{State: models.ItemFound}, OutcomeAlreadyScanned},
		{"discrepant item", asset, &models.AuditItem{State: models.ItemDiscrepant}, OutcomeAlreadyScanned},
		{"missing item", asset, &models.AuditItem{State: models.ItemMissing}, OutcomeAlreadyScanned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.asset, tt.item))
		})
	}
}

func TestDiscrepancies(t *testing.T) {
	base := models.Snapshot{Code: "A1", LocationID: intp(10), CustodianID: intp(100), Condition: "good"}

	tests := []struct {
		name   string
		found  models.Snapshot
		fields []models.SnapshotField
	}{
		{"identical", base, nil},
		{"code differs only", models.Snapshot{Code: "B-0001", LocationID: intp(10), CustodianID: intp(100), Condition: "good"}, nil},
		{"location", models.Snapshot{LocationID: intp(11), CustodianID: intp(100), Condition: "good"},
			[]models.SnapshotField{models.FieldLocation}},
		{"custodian", models.Snapshot{LocationID: intp(10), CustodianID: intp(101), Condition: "good"},
			[]models.SnapshotField{models.FieldCustodian}},
		{"location and condition", models.Snapshot{LocationID: intp(11), CustodianID: intp(100), Condition: "damaged"},
			[]models.SnapshotField{models.FieldLocation, models.FieldCondition}},
		{"all three", models.Snapshot{LocationID: intp(11), CustodianID: intp(101), Condition: "damaged"},
			[]models.SnapshotField{models.FieldLocation, models.FieldCustodian, models.FieldCondition}},
		{"found side unpopulated", models.Snapshot{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Discrepancies(7, base, tt.found)
			require.Len(t, changes, len(tt.fields))
			for i, c := range changes {
				assert.Equal(t, tt.fields[i], c.Field)
				assert.Equal(t, 7, c.AssetID)
			}
		})
	}
}

func TestDiscrepancies_ExpectedUnpopulated(t *testing.T) {
	changes := Discrepancies(1, models.Snapshot{}, models.Snapshot{LocationID: intp(3), Condition: "good"})
	assert.Empty(t, changes)
}

func TestDiscrepancies_Values(t *testing.T) {
	changes := Discrepancies(1,
		models.Snapshot{LocationID: intp(10), Condition: "good"},
		models.Snapshot{LocationID: intp(11), Condition: "fair"})
	require.Len(t, changes, 2)
	assert.Equal(t, models.FieldChange{AssetID: 1, Field: models.FieldLocation, Expected: "10", Found: "11"}, changes[0])
	assert.Equal(t, models.FieldChange{AssetID: 1, Field: models.FieldCondition, Expected: "good", Found: "fair"}, changes[1])
	assert.Equal(t, "location changed from 10 to 11", describeChange(changes[0]))
}
