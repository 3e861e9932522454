package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/johap/internal/member"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Inspect union members",
	}

	var status string
	list := &cobra.Command{
		Use:   "list <union>",
		Short: "List a union's members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := member.Status(strings.ToUpper(status))
			if s != "" && !s.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			members, err := newAPIClient().ListMembers(args[0], string(s))
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(members)
			}
			return printMemberTable(members)
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status (PENDING_PROFILE, PENDING_APPROVAL, APPROVED, REJECTED)")

	cmd.AddCommand(list)
	return cmd
}
