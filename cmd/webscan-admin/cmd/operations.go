package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel an in-flight scan",
}

var cancelScanCmd = &cobra.Command{
	Use:   "scan ID",
	Short: "Cancel a pending or running scan",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancelScan,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export your reports as a downloadable artifact",
	RunE:  runExportReports,
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show scan and report statistics for your account",
	RunE:  runAnalytics,
}

func init() {
	cancelCmd.AddCommand(cancelScanCmd)

	exportCmd.Flags().String("format", "json", "Artifact format: json, csv, yaml")
	exportCmd.Flags().String("compression", "", "Optional compression: gzip, zstd")
	exportCmd.Flags().String("severity", "", "Only export reports of this severity")
}

func runCancelScan(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Patch("/api/v1/scans/"+args[0]+"/cancel", nil)
	if err != nil {
		return err
	}

	var resp ScanResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("Scan %s is now %s.\n", resp.ID, resp.Status)
	}
	return nil
}

func runExportReports(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		params.Set("format", v)
	}
	if v, _ := cmd.Flags().GetString("compression"); v != "" {
		params.Set("compression", v)
	}
	if v, _ := cmd.Flags().GetString("severity"); v != "" {
		params.Set("severity", v)
	}

	path := "/api/v1/reports/export"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	client := mustClient()
	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp ExportResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("Export complete.\n")
		fmt.Printf("  Format:       %s\n", resp.Format)
		fmt.Printf("  Reports:      %d\n", resp.Count)
		fmt.Printf("  Object Key:   %s\n", resp.ObjectKey)
		fmt.Printf("  Size:         %d bytes\n", resp.Size)
		fmt.Printf("  Content-Type: %s\n", resp.ContentType)
		if resp.URL != "" {
			fmt.Printf("  Download:     %s\n", resp.URL)
		}
	}
	return nil
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Get("/api/v1/reports/analytics")
	if err != nil {
		return err
	}

	var resp AnalyticsResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("Scans\n")
		fmt.Printf("  Total:        %d\n", resp.Scans.Total)
		fmt.Printf("  Last 7 days:  %d\n", resp.Scans.CreatedLast7Days)
		for status, n := range resp.Scans.ByStatus {
			fmt.Printf("  %-12s  %d\n", status+":", n)
		}
		if len(resp.Scans.TopDomains) > 0 {
			fmt.Printf("\nTop Domains:\n")
			t := newTable("DOMAIN", "SCANS")
			for _, d := range resp.Scans.TopDomains {
				t.AddRow(d.Domain, strconv.FormatInt(d.Count, 10))
			}
			t.Flush()
		}

		fmt.Printf("\nReports\n")
		fmt.Printf("  Total:        %d\n", resp.Reports.Total)
		fmt.Printf("  Last 7 days:  %d\n", resp.Reports.CreatedLast7Days)
		for severity, n := range resp.Reports.BySeverity {
			fmt.Printf("  %-12s  %d\n", severity+":", n)
		}
		if len(resp.Reports.TopScans) > 0 {
			fmt.Printf("\nMost Reported Scans:\n")
			t := newTable("SCAN", "REPORTS")
			for _, s := range resp.Reports.TopScans {
				t.AddRow(s.ScanID, strconv.FormatInt(s.Count, 10))
			}
			t.Flush()
		}

		fmt.Printf("\nGenerated at %s\n", shortTime(resp.GeneratedAt))
	}
	return nil
}
