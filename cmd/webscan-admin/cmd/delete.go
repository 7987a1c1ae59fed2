package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a resource",
}

var deleteScanCmd = &cobra.Command{
	Use:   "scan ID",
	Short: "Delete a scan and its queued work",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteScan,
}

var deleteReportCmd = &cobra.Command{
	Use:   "report ID",
	Short: "Delete a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteReport,
}

var deleteReportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Delete several reports in one all-or-nothing operation",
	RunE:  runBulkDeleteReports,
}

func init() {
	deleteReportsCmd.Flags().String("ids", "", "Comma-separated report IDs (required)")

	deleteCmd.AddCommand(deleteScanCmd)
	deleteCmd.AddCommand(deleteReportCmd)
	deleteCmd.AddCommand(deleteReportsCmd)
}

func runDeleteScan(cmd *cobra.Command, args []string) error {
	client := mustClient()
	if err := client.Delete("/api/v1/scans/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Scan %s deleted.\n", args[0])
	return nil
}

func runDeleteReport(cmd *cobra.Command, args []string) error {
	client := mustClient()
	if err := client.Delete("/api/v1/reports/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Report %s deleted.\n", args[0])
	return nil
}

func runBulkDeleteReports(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("ids")

	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("--ids is required")
	}

	client := mustClient()
	data, err := client.Post("/api/v1/reports/bulk-delete", map[string]any{"ids": ids})
	if err != nil {
		return err
	}

	var resp BulkDeleteResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	fmt.Printf("%d reports deleted.\n", resp.DeletedCount)
	return nil
}
