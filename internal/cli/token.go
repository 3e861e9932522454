package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/johap/internal/client"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage guest access tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(), newTokenListCmd(), newTokenRevokeCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		expires time.Duration
		maxUses int
	)

	cmd := &cobra.Command{
		Use:   "issue <union> <name>",
		Short: "Issue a guest access token for a union",
		Long:  "Issue a read-only guest token. The raw token and its share URL are printed once.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenIssue(args[0], args[1], expires, maxUses)
		},
	}

	cmd.Flags().DurationVar(&expires, "expires", 0, "lifetime, e.g. 72h (default: never)")
	cmd.Flags().IntVar(&maxUses, "max-uses", 0, "how many times the link may be redeemed (default: unlimited)")

	return cmd
}

// issueRequest builds the request for token issue flags. Zero values mean
// no limit.
func issueRequest(slug, name string, expires time.Duration, maxUses int) (client.IssueTokenRequest, error) {
	req := client.IssueTokenRequest{Union: slug, Name: name}
	if expires < 0 {
		return req, fmt.Errorf("--expires must be positive")
	}
	if expires > 0 {
		req.ExpiresIn = expires.String()
	}
	if maxUses < 0 {
		return req, fmt.Errorf("--max-uses must be positive")
	}
	if maxUses > 0 {
		req.MaxUses = &maxUses
	}
	return req, nil
}

func runTokenIssue(slug, name string, expires time.Duration, maxUses int) error {
	req, err := issueRequest(slug, name, expires, maxUses)
	if err != nil {
		return err
	}

	issued, err := newAPIClient().IssueToken(req)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(issued)
	}

	fmt.Printf("✓ Access token #%d issued for %s\n", issued.AccessToken.ID, slug)
	fmt.Printf("  Token:   %s\n", issued.Token)
	fmt.Printf("  URL:     %s\n", issued.URL)
	fmt.Printf("  Expires: %s\n", formatTime(issued.AccessToken.ExpiresAt))
	fmt.Println("\nThe token is not shown again.")
	return nil
}

func newTokenListCmd() *cobra.Command {
	var slug string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List guest access tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := newAPIClient().ListTokens(slug)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(tokens)
			}
			return printTokenTable(tokens)
		},
	}

	cmd.Flags().StringVar(&slug, "union", "", "only tokens for this union slug")

	return cmd
}

func newTokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a guest access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := newAPIClient().RevokeToken(id)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(t)
			}
			fmt.Printf("✓ Access token #%d revoked\n", t.ID)
			return nil
		},
	}
}

// parseID parses a positive numeric ID argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}
