package cmd

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List resources",
}

var getScansCmd = &cobra.Command{
	Use:     "scans",
	Aliases: []string{"scan"},
	Short:   "List scans",
	RunE:    runGetScans,
}

var getReportsCmd = &cobra.Command{
	Use:     "reports",
	Aliases: []string{"report"},
	Short:   "List reports",
	RunE:    runGetReports,
}

func init() {
	// scans flags
	getScansCmd.Flags().String("status", "", "Filter by status (pending, in_progress, completed, failed, cancelled)")
	getScansCmd.Flags().String("domain", "", "Filter by registrable domain")
	getScansCmd.Flags().String("search", "", "Search in URL and domain")
	getScansCmd.Flags().Int("page", 1, "Page number")
	getScansCmd.Flags().Int("limit", 10, "Items per page")

	// reports flags
	getReportsCmd.Flags().String("severity", "", "Filter by severity (low, medium, high, critical)")
	getReportsCmd.Flags().String("scan-id", "", "Filter by scan ID")
	getReportsCmd.Flags().Int("page", 1, "Page number")
	getReportsCmd.Flags().Int("limit", 10, "Items per page")

	getCmd.AddCommand(getScansCmd)
	getCmd.AddCommand(getReportsCmd)
}

func runGetScans(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	if v, _ := cmd.Flags().GetString("status"); v != "" {
		params.Set("status", v)
	}
	if v, _ := cmd.Flags().GetString("domain"); v != "" {
		params.Set("domain", v)
	}
	if v, _ := cmd.Flags().GetString("search"); v != "" {
		params.Set("search", v)
	}
	if v, _ := cmd.Flags().GetInt("page"); v > 0 {
		params.Set("page", strconv.Itoa(v))
	}
	if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
		params.Set("limit", strconv.Itoa(v))
	}

	path := "/api/v1/scans"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp ScanListResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	case outputWide:
		t := newTable("ID", "URL", "DOMAIN", "TYPES", "STATUS", "PROGRESS", "VULNS", "CREATED")
		for _, s := range resp.Items {
			t.AddRow(s.ID, truncate(s.URL, 48), s.Domain, strings.Join(s.ScanType, ","),
				s.Status, fmt.Sprintf("%d%%", s.Progress),
				strconv.Itoa(s.VulnerabilityCount), shortTime(s.CreatedAt))
		}
		t.Flush()
		printPagination(resp.Total, resp.Page, resp.Limit)
	default:
		t := newTable("ID", "URL", "STATUS", "VULNS", "CREATED")
		for _, s := range resp.Items {
			t.AddRow(truncate(s.ID, 12), truncate(s.URL, 40), s.Status,
				strconv.Itoa(s.VulnerabilityCount), shortTime(s.CreatedAt))
		}
		t.Flush()
		printPagination(resp.Total, resp.Page, resp.Limit)
	}
	return nil
}

func runGetReports(cmd *cobra.Command, args []string) error {
	client := mustClient()

	params := url.Values{}
	if v, _ := cmd.Flags().GetString("severity"); v != "" {
		params.Set("severity", v)
	}
	if v, _ := cmd.Flags().GetString("scan-id"); v != "" {
		params.Set("scanId", v)
	}
	if v, _ := cmd.Flags().GetInt("page"); v > 0 {
		params.Set("page", strconv.Itoa(v))
	}
	if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
		params.Set("limit", strconv.Itoa(v))
	}

	path := "/api/v1/reports"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp ReportListResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	case outputWide:
		t := newTable("ID", "TITLE", "SCAN", "SEVERITY", "FINDINGS", "CREATED")
		for _, r := range resp.Items {
			t.AddRow(r.ID, truncate(r.Title, 40), r.ScanID, r.Severity,
				strconv.Itoa(len(r.Findings)), shortTime(r.CreatedAt))
		}
		t.Flush()
		printPagination(resp.Total, resp.Page, resp.Limit)
	default:
		t := newTable("ID", "TITLE", "SEVERITY", "CREATED")
		for _, r := range resp.Items {
			t.AddRow(truncate(r.ID, 12), truncate(r.Title, 40), r.Severity, shortTime(r.CreatedAt))
		}
		t.Flush()
		printPagination(resp.Total, resp.Page, resp.Limit)
	}
	return nil
}
