package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/johap/internal/union"
)

func newUnionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "union",
		Short: "Manage unions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all unions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runUnionList()
			},
		},
		&cobra.Command{
			Use:   "add <slug> <name>",
			Short: "Create a union",
			Long:  "Create a union. The slug is 2-40 characters of a-z, 0-9 and hyphens and becomes part of every union URL.",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runUnionAdd(args[0], args[1])
			},
		},
		newUnionStatusCmd("activate", "Reopen a union to members and guests", union.StatusActive),
		newUnionStatusCmd("deactivate", "Close a union to everyone but system admins", union.StatusInactive),
	)
	return cmd
}

func newUnionStatusCmd(use, short string, status union.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <slug>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnionStatus(args[0], status)
		},
	}
}

func runUnionList() error {
	unions, err := newAPIClient().ListUnions()
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(unions)
	}
	return printUnionTable(unions)
}

func runUnionAdd(slug, name string) error {
	if !union.ValidSlug(slug) {
		return fmt.Errorf("invalid slug %q", slug)
	}
	u, err := newAPIClient().CreateUnion(slug, name)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(u)
	}
	fmt.Printf("✓ Union #%d created: %s (%s)\n", u.ID, u.Name, u.Slug)
	return nil
}

func runUnionStatus(slug string, status union.Status) error {
	u, err := newAPIClient().SetUnionStatus(slug, status)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(u)
	}
	fmt.Printf("✓ %s is now %s\n", u.Slug, u.Status)
	return nil
}
