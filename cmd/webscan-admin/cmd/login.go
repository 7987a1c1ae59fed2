package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and store the token in a context",
	Long: `login exchanges email and password for a token pair and stores the
access token in the named context (default: the current context, or
"default" when none exists yet).

The password is read from --password, WEBSCAN_PASSWORD, or stdin.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().String("api-url", "", "API URL (defaults to the context's URL)")
	loginCmd.Flags().String("email", "", "Account email (required)")
	loginCmd.Flags().String("password", "", "Account password (prompted when omitted)")
	loginCmd.Flags().String("save-context", "", "Context name to store the token under")
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		return fmt.Errorf("--email is required")
	}

	apiURL, _ := cmd.Flags().GetString("api-url")
	if apiURL == "" {
		apiURL = flagAPIURL
	}
	if apiURL == "" {
		return fmt.Errorf("--api-url is required (no context configured)")
	}

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("WEBSCAN_PASSWORD")
	}
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	// Login needs no token, so the client is built directly.
	client := NewClient(apiURL, "", flagVerbose)
	data, err := client.Post("/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}

	var resp AuthResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	ctxName, _ := cmd.Flags().GetString("save-context")
	if ctxName == "" {
		ctxName = flagContext
	}

	cfg, err := loadConfig()
	if err != nil {
		cfg = &Config{}
	}
	if ctxName == "" {
		ctxName = cfg.CurrentContext
	}
	if ctxName == "" {
		ctxName = "default"
	}

	cfg.SetContext(ctxName, ContextDetail{
		APIURL: apiURL,
		Token:  resp.AccessToken,
	})
	if cfg.CurrentContext == "" {
		cfg.CurrentContext = ctxName
	}
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Logged in as %s.\n", resp.User.Email)
	fmt.Printf("Token stored in context %q (expires %s).\n", ctxName, resp.ExpiresAt)
	return nil
}
