package audit

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/crucial707/asset-audit/internal/models"
)

// Compile builds the audit report. It only reads, so it is safe to call at any point,
// including repeatedly after finalization.
func (s *Service) Compile(ctx context.Context, id int) (*models.Report, error) {
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
	return BuildReport(*a, items, findings), nil
}

// BuildReport partitions items by state and extracts the extra findings.
func BuildReport(a models.Audit, items []models.AuditItem, findings []models.Finding) *models.Report {
	r := &models.Report{
		Audit:              a,
		Found:              []models.AuditItem{},
		Missing:            []models.AuditItem{},
		Discrepant:         []models.AuditItem{},
		Extras:             []models.Finding{},
		FindingsByKind:     map[models.FindingKind]int{},
		FindingsBySeverity: map[models.Severity]int{},
	}
	for _, it := range items {
		switch it.State {
		case models.ItemFound:
			r.Found = append(r.Found, it)
		case models.ItemMissing:
			r.Missing = append(r.Missing, it)
		case models.ItemDiscrepant:
			r.Discrepant = append(r.Discrepant, it)
		}
	}
	for _, f := range findings {
		if f.Kind() == models.KindAssetExtra {
			r.Extras = append(r.Extras, f)
		}
		r.FindingsByKind[f.Kind()]++
		r.FindingsBySeverity[f.Severity]++
	}
	r.Statistics = models.ReportStatistics{
		ExpectedCount: a.ExpectedCount,
		Found:         len(r.Found),
		Missing:       len(r.Missing),
		Discrepant:    len(r.Discrepant),
		Extras:        len(r.Extras),
		FoundPct:      FoundPct(len(r.Found), a.ExpectedCount),
	}
	return r
}

// FoundPct is found/expected*100 rounded half away from zero to two decimals, or 0 when
// nothing was expected.
func FoundPct(found, expected int) float64 {
	if expected == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(found)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(expected))).
		Round(2)
	return pct.InexactFloat64()
}
