package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/evcraddock/johap/internal/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection and auth status",
		Long:  "Tests the connection to the server and checks whether the API key belongs to a system admin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

// statusReport is what 'jh status' found.
type statusReport struct {
	Server      string `json:"server"`
	KeyPrefix   string `json:"key_prefix,omitempty"`
	KeySource   string `json:"key_source,omitempty"`
	Reachable   bool   `json:"reachable"`
	Valid       bool   `json:"valid"`
	SystemAdmin bool   `json:"system_admin"`
	Unions      int    `json:"unions"`
	Error       string `json:"error,omitempty"`
}

func checkStatus(s settings) statusReport {
	report := statusReport{Server: s.ServerURL, KeySource: s.KeySource}
	if s.APIKey == "" {
		return report
	}
	report.KeyPrefix = s.APIKey
	if len(report.KeyPrefix) > 8 {
		report.KeyPrefix = report.KeyPrefix[:8]
	}

	unions, err := client.New(s.ServerURL, s.APIKey).ListUnions()
	var apiErr *client.Error
	switch {
	case err == nil:
		report.Reachable, report.Valid, report.SystemAdmin = true, true, true
		report.Unions = len(unions)
	case errors.As(err, &apiErr):
		report.Reachable = true
		report.Valid = apiErr.StatusCode == http.StatusForbidden
		report.Error = apiErr.Message
	default:
		report.Error = err.Error()
	}
	return report
}

func runStatus() error {
	report := checkStatus(resolveSettings())
	if isJSON() {
		return printJSON(report)
	}

	fmt.Printf("Server:  %s\n", report.Server)
	if report.KeyPrefix == "" {
		fmt.Println("API Key: not configured")
		fmt.Println("\nRun 'jh login' to authenticate.")
		return nil
	}
	fmt.Printf("API Key: %s… (from %s)\n", report.KeyPrefix, report.KeySource)

	switch {
	case !report.Reachable:
		fmt.Printf("Status:  ✗ cannot reach server (%s)\n", report.Error)
	case report.SystemAdmin:
		fmt.Printf("Status:  ✓ connected as system admin (%s unions)\n", formatCount(report.Unions))
	case report.Valid:
		fmt.Println("Status:  ✓ connected, but the key does not belong to a system admin")
	default:
		fmt.Printf("Status:  ✗ %s\n", report.Error)
		fmt.Println("\nRun 'jh login' to re-authenticate.")
	}
	return nil
}
