package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/conflict"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/union"
)

var printer = message.NewPrinter(language.Korean)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatCount renders n with digit grouping, e.g. 12,345.
func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// formatTime renders t in local time, or "-" when unset.
func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// table writes rows under a header with a dashed separator.
func table(out io.Writer, header []string, rows [][]string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	line := func(cells []string) error {
		for i, c := range cells {
			sep := "\t"
			if i == len(cells)-1 {
				sep = "\n"
			}
			if _, err := fmt.Fprint(w, c, sep); err != nil {
				return err
			}
		}
		return nil
	}

	if err := line(header); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	dashes := make([]string, len(header))
	for i, h := range header {
		dashes[i] = dashFor(h)
	}
	if err := line(dashes); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}
	for _, r := range rows {
		if err := line(r); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

func dashFor(h string) string {
	d := make([]byte, utf8.RuneCountInString(h))
	for i := range d {
		d[i] = '-'
	}
	return string(d)
}

// printTotal prints a count line after a table, e.g. "총 1,204건".
func printTotal(n int) {
	fmt.Printf("\n총 %s건\n", formatCount(n))
}

func printUnionTable(unions []*union.Union) error {
	if len(unions) == 0 {
		fmt.Println("No unions found.")
		return nil
	}
	rows := make([][]string, 0, len(unions))
	for _, u := range unions {
		rows = append(rows, []string{
			fmt.Sprint(u.ID), u.Slug, truncate(u.Name, 30), string(u.Status), formatTime(&u.CreatedAt),
		})
	}
	if err := table(os.Stdout, []string{"ID", "SLUG", "NAME", "STATUS", "CREATED"}, rows); err != nil {
		return err
	}
	printTotal(len(unions))
	return nil
}

// tokenState summarizes whether a guest token can still be used.
func tokenState(t *auth.AccessToken, now time.Time) string {
	switch {
	case t.RevokedAt != nil:
		return "revoked"
	case t.ExpiresAt != nil && !now.Before(*t.ExpiresAt):
		return "expired"
	case t.MaxUses != nil && t.UseCount >= *t.MaxUses:
		return "redeemed"
	}
	return "active"
}

// formatUses renders "3/10", or "3" without a limit.
func formatUses(t *auth.AccessToken) string {
	if t.MaxUses == nil {
		return formatCount(t.UseCount)
	}
	return formatCount(t.UseCount) + "/" + formatCount(*t.MaxUses)
}

func printTokenTable(tokens []*auth.AccessToken) error {
	if len(tokens) == 0 {
		fmt.Println("No access tokens found.")
		return nil
	}
	now := time.Now()
	rows := make([][]string, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, []string{
			fmt.Sprint(t.ID), fmt.Sprint(t.UnionID), truncate(t.Name, 30), t.KeyPrefix + "…",
			formatUses(t), formatTime(t.ExpiresAt), tokenState(t, now),
		})
	}
	if err := table(os.Stdout, []string{"ID", "UNION", "NAME", "PREFIX", "USES", "EXPIRES", "STATE"}, rows); err != nil {
		return err
	}
	printTotal(len(tokens))
	return nil
}

func printConflictTable(list []*conflict.Conflict) error {
	if len(list) == 0 {
		fmt.Println("No conflicts found.")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		action := string(c.Action)
		if action == "" {
			action = "-"
		}
		rows = append(rows, []string{
			fmt.Sprint(c.ID), fmt.Sprint(c.UnitID), string(c.Kind), string(c.Status),
			shortID(c.PendingUserID), shortID(c.ExistingUserID), action,
		})
	}
	if err := table(os.Stdout, []string{"ID", "UNIT", "KIND", "STATUS", "PENDING", "EXISTING", "ACTION"}, rows); err != nil {
		return err
	}
	printTotal(len(list))
	return nil
}

func printMemberTable(members []*member.Profile) error {
	if len(members) == 0 {
		fmt.Println("No members found.")
		return nil
	}
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		claim := m.Claim.Address
		if claim == "" {
			claim = m.Claim.PNU
		}
		rows = append(rows, []string{
			shortID(m.ID), truncate(m.Name, 20), m.Phone, string(m.Role), string(m.Status), truncate(claim, 30),
		})
	}
	if err := table(os.Stdout, []string{"ID", "NAME", "PHONE", "ROLE", "STATUS", "CLAIM"}, rows); err != nil {
		return err
	}
	printTotal(len(members))
	return nil
}

// shortID shows the first block of a uuid.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
