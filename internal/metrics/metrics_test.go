package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/audits":             "/v1/audits",
		"/v1/audits/12":          "/v1/audits/{id}",
		"/v1/audits/12/scan":     "/v1/audits/{id}/scan",
		"/v1/audits/options":     "/v1/audits/options",
		"/v1/audits/7/findings/": "/v1/audits/{id}/findings/",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestAddFindings(t *testing.T) {
	before := testutil.ToFloat64(FindingsTotal.WithLabelValues("asset_extra"))
	AddFindings("asset_extra", 2)
	AddFindings("asset_extra", 0)
	after := testutil.ToFloat64(FindingsTotal.WithLabelValues("asset_extra"))
	if after-before != 2 {
		t.Errorf("expected +2, got %v", after-before)
	}
}

func TestIncScanOutcome(t *testing.T) {
	before := testutil.ToFloat64(ScansTotal.WithLabelValues("found"))
	IncScanOutcome("found")
	if got := testutil.ToFloat64(ScansTotal.WithLabelValues("found")) - before; got != 1 {
		t.Errorf("expected +1, got %v", got)
	}
}
