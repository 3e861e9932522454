package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		Long: `Stores an API key for CLI access. Create a key with 'jh key create' on the
server host, or with POST /api/system/keys from a logged-in console session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(server, os.Stdin)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or "+defaultServerURL+")")

	return cmd
}

func runLogin(serverFlag string, in io.Reader) error {
	serverURL := serverFlag
	if serverURL == "" {
		serverURL = resolveSettings().ServerURL
	}
	fmt.Printf("Server: %s\n", serverURL)

	fmt.Print("Paste your API key: ")
	reader := bufio.NewReader(in)
	key, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && key != "") {
		return fmt.Errorf("reading input: %w", err)
	}

	key = strings.TrimSpace(key)
	if err := validateAPIKey(key); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cfg.APIKey = key
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println("✓ API key saved. You're logged in!")
	return nil
}

// validateAPIKey checks that the key is non-empty and has the expected prefix.
func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("no API key provided")
	}
	if strings.HasPrefix(key, "jhg_") {
		return fmt.Errorf("that is a guest access token, not an API key")
	}
	if !strings.HasPrefix(key, "jh_") {
		return fmt.Errorf("invalid API key format (should start with jh_)")
	}
	return nil
}
