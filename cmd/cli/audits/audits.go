package audits

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crucial707/asset-audit/cmd/cli/client"
	"github.com/crucial707/asset-audit/cmd/cli/output"
	"github.com/crucial707/asset-audit/internal/models"
)

// stdin is where scan reads codes when none are given as arguments.
var stdin io.Reader = os.Stdin

// InitAudits registers the audits command tree on the root command.
func InitAudits(rootCmd *cobra.Command) {
	auditsCmd := &cobra.Command{
		Use:     "audits",
		Aliases: []string{"audit"},
		Short:   "Run physical inventory audits",
	}

	auditsCmd.AddCommand(
		listAuditsCmd(),
		createAuditCmd(),
		showAuditCmd(),
		startAuditCmd(),
		scanCmd(),
		finalizeAuditCmd(),
		reportCmd(),
		deleteAuditCmd(),
		optionsCmd(),
		findingsCmd(),
	)

	rootCmd.AddCommand(auditsCmd)
}

func auditPath(id string, suffix string) (string, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid audit id %q", id)
	}
	return "/v1/audits/" + strconv.Itoa(n) + suffix, nil
}

func valueOr(p *int) any {
	if p == nil {
		return "-"
	}
	return *p
}

func auditRows(list []models.Audit) [][]interface{} {
	rows := make([][]interface{}, 0, len(list))
	for _, a := range list {
		rows = append(rows, []interface{}{a.ID, a.Code, a.Name, a.State, a.FoundCount, a.ExpectedCount, a.CreatedAt.Format("2006-01-02")})
	}
	return rows
}

var auditHeaders = []string{"ID", "Code", "Name", "State", "Found", "Expected", "Created"}

// ==========================
// LIST
// ==========================
func listAuditsCmd() *cobra.Command {
	var state, search string
	var limit, offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audits",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			if search != "" {
				q.Set("q", search)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			path := "/v1/audits"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var page struct {
				Audits []models.Audit `json:"audits"`
				Total  int            `json:"total"`
			}
			if _, err := client.Do(http.MethodGet, path, nil, &page); err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(page)
				return nil
			}
			output.RenderTable(auditHeaders, auditRows(page.Audits))
			fmt.Printf("%d of %d audits\n", len(page.Audits), page.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "filter by state (draft, in_progress, completed)")
	cmd.Flags().StringVarP(&search, "query", "q", "", "search code, name and description")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// CREATE
// ==========================
func createAuditCmd() *cobra.Command {
	var name, description string
	var categories, locations, custodians []int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft audit over the assets matching the criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			payload := map[string]any{
				"name":        name,
				"description": description,
				"criteria": map[string][]int{
					"category_ids":  categories,
					"location_ids":  locations,
					"custodian_ids": custodians,
				},
			}
			var a models.Audit
			msg, err := client.Do(http.MethodPost, "/v1/audits", payload, &a)
			if err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(a)
				return nil
			}
			fmt.Printf("%s: %s with %d expected assets (id %d)\n", msg, a.Code, a.ExpectedCount, a.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "audit name")
	cmd.Flags().StringVar(&description, "description", "", "audit description")
	cmd.Flags().IntSliceVar(&categories, "category", nil, "category id (repeatable)")
	cmd.Flags().IntSliceVar(&locations, "location", nil, "location id (repeatable)")
	cmd.Flags().IntSliceVar(&custodians, "custodian", nil, "custodian id (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// SHOW
// ==========================
func showAuditCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show an audit with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := auditPath(args[0], "")
			if err != nil {
				return err
			}
			var d models.AuditDetail
			if _, err := client.Do(http.MethodGet, path, nil, &d); err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(d)
				return nil
			}
			output.RenderKV(d.Code, [][2]interface{}{
				{"Name", d.Name},
				{"State", d.State},
				{"Progress", fmt.Sprintf("%d/%d", d.FoundCount, d.ExpectedCount)},
				{"Findings", len(d.Findings)},
			})
			rows := make([][]interface{}, 0, len(d.Items))
			for _, it := range d.Items {
				rows = append(rows, []interface{}{it.AssetID, it.Expected.Code, it.AssetName, it.State, it.ScannedCode})
			}
			output.RenderTable([]string{"Asset", "Code", "Name", "State", "Scanned As"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// transitionCmd builds start and finalize, which only differ by path and wording.
func transitionCmd(use, short, suffix string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := auditPath(args[0], suffix)
			if err != nil {
				return err
			}
			var a models.Audit
			msg, err := client.Do(http.MethodPost, path, nil, &a)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s is %s\n", msg, a.Code, a.State)
			return nil
		},
	}
}

func startAuditCmd() *cobra.Command {
	return transitionCmd("start", "Start a draft audit", "/start")
}

func finalizeAuditCmd() *cobra.Command {
	return transitionCmd("finalize", "Finalize an audit, marking unscanned assets missing", "/finalize")
}

// ==========================
// SCAN
// ==========================

type scanResult struct {
	Outcome  string                 `json:"outcome"`
	Asset    *models.Asset          `json:"asset"`
	Findings []models.FindingRecord `json:"findings"`
}

func scanCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "scan [id] [code...]",
		Short: "Record scanned asset codes; without codes, read one per line from stdin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := auditPath(args[0], "/scan")
			if err != nil {
				return err
			}

			submit := func(code string) error {
				var res scanResult
				msg, err := client.Do(http.MethodPost, path, map[string]string{"code": code, "notes": notes}, &res)
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict && len(apiErr.Data) > 0 {
					fmt.Printf("%-20s already scanned\n", code)
					return nil
				}
				if err != nil {
					return fmt.Errorf("%s: %w", code, err)
				}
				line := fmt.Sprintf("%-20s %s", code, msg)
				if res.Asset != nil {
					line += " (" + res.Asset.Name + ")"
				}
				fmt.Println(line)
				for _, f := range res.Findings {
					fmt.Printf("  %s [%s] %s\n", f.Kind, f.Severity, f.Description)
				}
				return nil
			}

			if len(args) > 1 {
				for _, code := range args[1:] {
					if err := submit(code); err != nil {
						return err
					}
				}
				return nil
			}

			sc := bufio.NewScanner(stdin)
			for sc.Scan() {
				code := strings.TrimSpace(sc.Text())
				if code == "" {
					continue
				}
				if err := submit(code); err != nil {
					// A failed read is reported and the session continues.
					fmt.Fprintln(os.Stderr, "error:", err)
				}
			}
			return sc.Err()
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "notes attached to every scan")
	return cmd
}

// ==========================
// REPORT
// ==========================
func reportCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report [id]",
		Short: "Show the audit report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := auditPath(args[0], "/report")
			if err != nil {
				return err
			}
			var r models.Report
			if _, err := client.Do(http.MethodGet, path, nil, &r); err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(r)
				return nil
			}
			s := r.Statistics
			output.RenderKV(r.Audit.Code+" "+r.Audit.Name, [][2]interface{}{
				{"State", r.Audit.State},
				{"Expected", s.ExpectedCount},
				{"Found", s.Found},
				{"Missing", s.Missing},
				{"Discrepant", s.Discrepant},
				{"Extras", s.Extras},
				{"Found %", fmt.Sprintf("%.2f", s.FoundPct)},
			})
			if len(r.Missing) > 0 {
				rows := make([][]interface{}, 0, len(r.Missing))
				for _, it := range r.Missing {
					rows = append(rows, []interface{}{it.AssetID, it.Expected.Code, it.AssetName, valueOr(it.Expected.LocationID), valueOr(it.Expected.CustodianID)})
				}
				output.RenderTable([]string{"Missing Asset", "Code", "Name", "Location", "Custodian"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// DELETE
// ==========================
func deleteAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a draft audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := auditPath(args[0], "")
			if err != nil {
				return err
			}
			msg, err := client.Do(http.MethodDelete, path, nil, nil)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

// ==========================
// OPTIONS
// ==========================
func optionsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "options",
		Short: "List categories, locations and custodians usable as criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts models.CriteriaOptions
			if _, err := client.Do(http.MethodGet, "/v1/audits/options", nil, &opts); err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(opts)
				return nil
			}
			var rows [][]interface{}
			add := func(kind string, list []models.Option) {
				for _, o := range list {
					rows = append(rows, []interface{}{kind, o.ID, o.Name})
				}
			}
			add("category", opts.Categories)
			add("location", opts.Locations)
			add("custodian", opts.Custodians)
			output.RenderTable([]string{"Kind", "ID", "Name"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// FINDINGS
// ==========================
func findingsCmd() *cobra.Command {
	var kind, severity string
	var unresolved, asJSON bool

	cmd := &cobra.Command{
		Use:   "findings [id]",
		Short: "List an audit's findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := auditPath(args[0], "/findings")
			if err != nil {
				return err
			}
			q := url.Values{}
			if kind != "" {
				q.Set("kind", kind)
			}
			if severity != "" {
				q.Set("severity", severity)
			}
			if unresolved {
				q.Set("unresolved", "true")
			}
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var list []models.FindingRecord
			if _, err := client.Do(http.MethodGet, path, nil, &list); err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(list)
				return nil
			}
			rows := make([][]interface{}, 0, len(list))
			for _, f := range list {
				rows = append(rows, []interface{}{f.ID, f.Kind, f.Severity, valueOr(f.AssetID), f.ScannedCode, changeText(f), f.Description})
			}
			output.RenderTable([]string{"ID", "Kind", "Severity", "Asset", "Scanned", "Change", "Description"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by finding kind")
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity (low, medium, high)")
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only unresolved findings")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// changeText renders a field change as "expected -> found".
func changeText(f models.FindingRecord) string {
	if len(f.ExpectedValue) == 0 && len(f.FoundValue) == 0 {
		return ""
	}
	var expected, found map[string]string
	_ = json.Unmarshal(f.ExpectedValue, &expected)
	_ = json.Unmarshal(f.FoundValue, &found)
	for field, e := range expected {
		return fmt.Sprintf("%s: %s -> %s", field, e, found[field])
	}
	return ""
}
