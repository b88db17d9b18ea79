package models

// ReportStatistics are the headline numbers of an audit report.
type ReportStatistics struct {
	ExpectedCount int `json:"expected_count"`
	Found         int `json:"found"`
	Missing       int `json:"missing"`
	Discrepant    int `json:"discrepant"`
	Extras        int `json:"extras"`
	// FoundPct is found/expected*100 rounded to two decimals, 0 for an empty audit.
	FoundPct float64 `json:"found_pct"`
}

// Report is the categorized view of an audit's items and findings.
type Report struct {
	Audit              Audit               `json:"audit"`
	Found              []AuditItem         `json:"found"`
	Missing            []AuditItem         `json:"missing"`
	Discrepant         []AuditItem         `json:"discrepant"`
	Extras             []Finding           `json:"extras"`
	Statistics         ReportStatistics    `json:"statistics"`
	FindingsByKind     map[FindingKind]int `json:"findings_by_kind"`
	FindingsBySeverity map[Severity]int    `json:"findings_by_severity"`
}
