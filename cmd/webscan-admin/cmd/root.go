package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagAPIURL  string
	flagToken   string
	flagContext string
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "webscan-admin",
	Short: "WebScan platform administration CLI",
	Long: `webscan-admin is a kubectl-style CLI for operating the WebScan API.

It provides commands to run and inspect scans, manage reports,
trigger exports, and view per-account analytics.

Use "webscan-admin login" or "webscan-admin config set-context" to
configure your connection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Override API URL (env: WEBSCAN_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Override access token (env: WEBSCAN_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&flagContext, "context", "c", "", "Use specific context (env: WEBSCAN_CONTEXT)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, wide, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(analyticsCmd)
}

func initConfig() {
	if flagAPIURL == "" {
		flagAPIURL = os.Getenv("WEBSCAN_API_URL")
	}
	if flagToken == "" {
		flagToken = os.Getenv("WEBSCAN_TOKEN")
	}

	if flagAPIURL == "" || flagToken == "" {
		u, t := resolveFromConfigFile()
		if flagAPIURL == "" {
			flagAPIURL = u
		}
		if flagToken == "" {
			flagToken = t
		}
	}
}

func resolveFromConfigFile() (string, string) {
	ctxName := flagContext
	if ctxName == "" {
		ctxName = os.Getenv("WEBSCAN_CONTEXT")
	}

	cfg, err := loadConfig()
	if err != nil {
		return "", ""
	}

	if ctxName == "" {
		ctxName = cfg.CurrentContext
	}

	ctx := cfg.GetContext(ctxName)
	if ctx == nil {
		return "", ""
	}

	token := ctx.Context.Token
	if token == "" && ctx.Context.TokenFile != "" {
		data, err := os.ReadFile(expandPath(ctx.Context.TokenFile))
		if err == nil {
			token = string(data)
		}
	}

	return ctx.Context.APIURL, token
}

func mustClient() *Client {
	if flagAPIURL == "" {
		fmt.Fprintln(os.Stderr, "Error: API URL not configured. Use --api-url, WEBSCAN_API_URL, or 'webscan-admin config set-context'")
		os.Exit(1)
	}
	if flagToken == "" {
		fmt.Fprintln(os.Stderr, "Error: access token not configured. Use --token, WEBSCAN_TOKEN, or 'webscan-admin login'")
		os.Exit(1)
	}
	return NewClient(flagAPIURL, flagToken, flagVerbose)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webscan-admin version %s\n", version)
		fmt.Printf("  Go:       %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Display connection status and the authenticated account",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mustClient()
		data, err := client.Get("/api/v1/auth/me")
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}

		var resp UserResponse
		if err := unmarshal(data, &resp); err != nil {
			return err
		}

		if flagOutput == outputJSON {
			printJSON(resp)
			return nil
		}
		if flagOutput == outputYAML {
			printYAML(resp)
			return nil
		}

		fmt.Fprintf(os.Stdout, "WebScan API\n")
		fmt.Fprintf(os.Stdout, "  API URL:  %s\n", flagAPIURL)
		fmt.Fprintf(os.Stdout, "  Status:   connected\n")
		fmt.Fprintf(os.Stdout, "\nAuthenticated as:\n")
		fmt.Fprintf(os.Stdout, "  ID:     %s\n", resp.ID)
		fmt.Fprintf(os.Stdout, "  Email:  %s\n", resp.Email)
		fmt.Fprintf(os.Stdout, "  Name:   %s\n", resp.Name)
		fmt.Fprintf(os.Stdout, "  Status: %s\n", resp.Status)
		return nil
	},
}
