package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a resource",
}

var createScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Queue a new scan",
	RunE:  runCreateScan,
}

var createReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Create a report against one of your scans",
	RunE:  runCreateReport,
}

func init() {
	// scan flags
	createScanCmd.Flags().String("url", "", "Target URL (required)")
	createScanCmd.Flags().String("type", "headers,ssl",
		"Comma-separated check types: headers, ssl, portScan, vulnDetection, contentAnalysis, performanceCheck")

	// report flags
	createReportCmd.Flags().String("scan-id", "", "Scan ID the report is about (required)")
	createReportCmd.Flags().String("title", "", "Report title (required)")
	createReportCmd.Flags().String("summary", "", "Report summary")
	createReportCmd.Flags().String("severity", "", "Severity: low, medium, high, critical")

	createCmd.AddCommand(createScanCmd)
	createCmd.AddCommand(createReportCmd)
}

func runCreateScan(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("url")
	types, _ := cmd.Flags().GetString("type")

	if target == "" {
		return fmt.Errorf("--url is required")
	}

	var scanTypes []string
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			scanTypes = append(scanTypes, t)
		}
	}
	if len(scanTypes) == 0 {
		return fmt.Errorf("--type must name at least one check")
	}

	client := mustClient()
	data, err := client.Post("/api/v1/scans", map[string]any{
		"url":      target,
		"scanType": scanTypes,
	})
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
		fmt.Printf("Scan queued.\n")
		fmt.Printf("  ID:     %s\n", resp.ID)
		fmt.Printf("  URL:    %s\n", resp.URL)
		fmt.Printf("  Types:  %s\n", strings.Join(resp.ScanType, ", "))
		fmt.Printf("  Status: %s\n", resp.Status)
	}
	return nil
}

func runCreateReport(cmd *cobra.Command, args []string) error {
	scanID, _ := cmd.Flags().GetString("scan-id")
	title, _ := cmd.Flags().GetString("title")
	summary, _ := cmd.Flags().GetString("summary")
	severity, _ := cmd.Flags().GetString("severity")

	if scanID == "" {
		return fmt.Errorf("--scan-id is required")
	}
	if title == "" {
		return fmt.Errorf("--title is required")
	}

	body := map[string]any{
		"scanId": scanID,
		"title":  title,
	}
	if summary != "" {
		body["summary"] = summary
	}
	if severity != "" {
		body["severity"] = severity
	}

	client := mustClient()
	data, err := client.Post("/api/v1/reports", body)
	if err != nil {
		return err
	}

	var resp ReportResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("Report created.\n")
		fmt.Printf("  ID:       %s\n", resp.ID)
		fmt.Printf("  Title:    %s\n", resp.Title)
		fmt.Printf("  Scan ID:  %s\n", resp.ScanID)
		fmt.Printf("  Severity: %s\n", resp.Severity)
	}
	return nil
}
