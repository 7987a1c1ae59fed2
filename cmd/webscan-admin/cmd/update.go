package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a resource",
}

var updateReportCmd = &cobra.Command{
	Use:   "report ID",
	Short: "Update a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdateReport,
}

func init() {
	updateReportCmd.Flags().String("title", "", "Report title")
	updateReportCmd.Flags().String("summary", "", "Report summary")
	updateReportCmd.Flags().String("severity", "", "Severity: low, medium, high, critical")

	updateCmd.AddCommand(updateReportCmd)
}

func runUpdateReport(cmd *cobra.Command, args []string) error {
	body := make(map[string]any)

	if cmd.Flags().Changed("title") {
		v, _ := cmd.Flags().GetString("title")
		body["title"] = v
	}
	if cmd.Flags().Changed("summary") {
		v, _ := cmd.Flags().GetString("summary")
		body["summary"] = v
	}
	if cmd.Flags().Changed("severity") {
		v, _ := cmd.Flags().GetString("severity")
		body["severity"] = v
	}

	if len(body) == 0 {
		return fmt.Errorf("at least one of --title, --summary, or --severity must be specified")
	}

	client := mustClient()
	data, err := client.Patch("/api/v1/reports/"+args[0], body)
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
		fmt.Printf("Report %s updated.\n", resp.ID)
	}
	return nil
}
