package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/johap/internal/conflict"
)

func newConflictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflict",
		Short: "Review and resolve ownership conflicts",
	}
	cmd.AddCommand(newConflictListCmd(), newConflictResolveCmd(), newConflictDismissCmd())
	return cmd
}

func newConflictListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list <union>",
		Short: "List a union's conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := conflict.Status(strings.ToUpper(status))
			if s != "" && !s.Valid() {
				return fmt.Errorf("invalid status %q (OPEN, RESOLVED, DISMISSED)", status)
			}
			list, err := newAPIClient().ListConflicts(args[0], string(s))
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(list)
			}
			return printConflictTable(list)
		},
	}

	cmd.Flags().StringVar(&status, "status", "OPEN", "filter by status (empty for all)")

	return cmd
}

func newConflictResolveCmd() *cobra.Command {
	var note, reason string

	cmd := &cobra.Command{
		Use:   "resolve <union> <id> <action>",
		Short: "Resolve a conflict",
		Long: `Resolve an open conflict with one of:
  ADD_CO_OWNER  the registrant becomes a co-owner of the unit
  TRANSFER      the existing holder's ownership ends; the registrant becomes owner
  LINK_FAMILY   the registrant is linked to the unit as family
  MERGE         the registrant is the existing member; the profiles are merged
  REJECT        the registrant is rejected (requires --reason)`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			action := conflict.Action(strings.ToUpper(args[2]))
			if !action.Valid() {
				return fmt.Errorf("unknown action %q", args[2])
			}
			if action == conflict.ActionReject && strings.TrimSpace(reason) == "" {
				return fmt.Errorf("--reason is required for REJECT")
			}

			res, err := newAPIClient().ResolveConflict(args[0], id, action, note, reason)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(res)
			}
			printResolution(res)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "note recorded on the conflict and ownership history")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason shown to the registrant")

	return cmd
}

func printResolution(res *conflict.Resolution) {
	fmt.Printf("✓ Conflict #%d resolved with %s\n", res.Conflict.ID, res.Conflict.Action)
	if res.Approved {
		fmt.Printf("  Member %s approved\n", shortID(res.Conflict.PendingUserID))
	}
	if len(res.Dismissed) > 0 {
		fmt.Printf("  Dismissed %s related conflicts: %v\n", formatCount(len(res.Dismissed)), res.Dismissed)
	}
}

func newConflictDismissCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "dismiss <union> <id>",
		Short: "Dismiss a conflict without changing ownership",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			c, err := newAPIClient().DismissConflict(args[0], id, note)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(c)
			}
			fmt.Printf("✓ Conflict #%d dismissed\n", c.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "why the conflict was dismissed")

	return cmd
}
