package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show detailed information about a resource",
}

var describeScanCmd = &cobra.Command{
	Use:   "scan ID",
	Short: "Show details of a scan",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeScan,
}

var describeReportCmd = &cobra.Command{
	Use:   "report ID",
	Short: "Show details of a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeReport,
}

func init() {
	describeCmd.AddCommand(describeScanCmd)
	describeCmd.AddCommand(describeReportCmd)
}

func runDescribeScan(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Get("/api/v1/scans/" + args[0])
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
		fmt.Printf("ID:           %s\n", resp.ID)
		fmt.Printf("URL:          %s\n", resp.URL)
		fmt.Printf("Domain:       %s\n", resp.Domain)
		fmt.Printf("Types:        %s\n", strings.Join(resp.ScanType, ", "))
		fmt.Printf("Status:       %s\n", resp.Status)
		fmt.Printf("Progress:     %d%%\n", resp.Progress)
		if resp.Error != "" {
			fmt.Printf("Error:        %s\n", resp.Error)
		}
		fmt.Printf("Started At:   %s\n", ptrStr(resp.StartedAt))
		fmt.Printf("Completed At: %s\n", ptrStr(resp.CompletedAt))
		fmt.Printf("Created At:   %s\n", resp.CreatedAt)
		fmt.Printf("Updated At:   %s\n", resp.UpdatedAt)
		fmt.Printf("Vulnerabilities: %d\n", resp.VulnerabilityCount)
		if len(resp.Vulnerabilities) > 0 {
			t := newTable("TYPE", "SEVERITY", "DESCRIPTION")
			for _, v := range resp.Vulnerabilities {
				t.AddRow(v.Type, v.Severity, truncate(v.Description, 72))
			}
			t.Flush()
		}
	}
	return nil
}

func runDescribeReport(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Get("/api/v1/reports/" + args[0])
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
		fmt.Printf("ID:          %s\n", resp.ID)
		fmt.Printf("Title:       %s\n", resp.Title)
		fmt.Printf("Scan ID:     %s\n", resp.ScanID)
		fmt.Printf("Severity:    %s\n", resp.Severity)
		if resp.Summary != "" {
			fmt.Printf("Summary:     %s\n", resp.Summary)
		}
		fmt.Printf("Created At:  %s\n", resp.CreatedAt)
		fmt.Printf("Updated At:  %s\n", resp.UpdatedAt)
		fmt.Printf("Findings:    %d\n", len(resp.Findings))
		if len(resp.Findings) > 0 {
			t := newTable("TYPE", "SEVERITY", "DESCRIPTION")
			for _, f := range resp.Findings {
				t.AddRow(f.Type, f.Severity, truncate(f.Description, 72))
			}
			t.Flush()
		}
	}
	return nil
}
