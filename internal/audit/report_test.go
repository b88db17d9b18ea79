package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crucial707/asset-audit/internal/models"
)

func TestFoundPct(t *testing.T) {
	tests := []struct {
		found, expected int
		want            float64
	}{
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 8, 12.5},
		{3, 3, 100},
		{0, 5, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FoundPct(tt.found, tt.expected), "found=%d expected=%d", tt.found, tt.expected)
	}
}

func TestBuildReport(t *testing.T) {
	a := models.Audit{ID: 1, ExpectedCount: 4}
	items := []models.AuditItem{
		{ID: 1, State: models.ItemFound},
		{ID: 2, State: models.ItemDiscrepant},
		{ID: 3, State: models.ItemMissing},
		{ID: 4, State: models.ItemMissing},
	}
	findings := []models.Finding{
		models.NewFinding(1, models.FieldChange{AssetID: 2, Field: models.FieldCondition, Expected: "good", Found: "fair"}, ""),
		models.NewFinding(1, models.ExtraAsset{ScannedCode: "ZZZ"}, ""),
		models.NewFinding(1, models.MissingAsset{AssetID: 3}, ""),
		models.NewFinding(1, models.MissingAsset{AssetID: 4}, ""),
	}

	r := BuildReport(a, items, findings)
	assert.Len(t, r.Found, 1)
	assert.Len(t, r.Discrepant, 1)
	assert.Len(t, r.Missing, 2)
	assert.Len(t, r.Extras, 1)
	assert.Equal(t, models.ReportStatistics{
		ExpectedCount: 4, Found: 1, Missing: 2, Discrepant: 1, Extras: 1, FoundPct: 25,
	}, r.Statistics)
	assert.Equal(t, 2, r.FindingsByKind[models.KindAssetNotFound])
	assert.Equal(t, 1, r.FindingsByKind[models.KindConditionChanged])
	assert.Equal(t, 2, r.FindingsBySeverity[models.SeverityHigh])
	assert.Equal(t, 1, r.FindingsBySeverity[models.SeverityLow])
	assert.Equal(t, 1, r.FindingsBySeverity[models.SeverityMedium])
}

func TestBuildReport_Empty(t *testing.T) {
	r := BuildReport(models.Audit{}, nil, nil)
	assert.NotNil(t, r.Found)
	assert.NotNil(t, r.Missing)
	assert.NotNil(t, r.Discrepant)
	assert.NotNil(t, r.Extras)
	assert.Zero(t, r.Statistics.FoundPct)
}
