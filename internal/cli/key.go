package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/member"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys in the local database",
	}
	cmd.AddCommand(newKeyCreateCmd())
	return cmd
}

func newKeyCreateCmd() *cobra.Command {
	var (
		name        string
		systemAdmin bool
	)

	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an API key for a console user",
		Long: `Create an API key directly in the local database for the console user with
this email, creating the user if needed. With --system-admin the user is also
made a system admin, which bootstraps a fresh install.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(cmd.Context(), args[0], name, systemAdmin)
		},
	}

	cmd.Flags().StringVar(&name, "name", "cli", "label for the key")
	cmd.Flags().BoolVar(&systemAdmin, "system-admin", false, "grant the user system admin")

	return cmd
}

func runKeyCreate(ctx context.Context, email, name string, systemAdmin bool) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	user, err := auth.NewAuthUserStore(database, "").Upsert(ctx, auth.ProviderEmail, email, email, "")
	if err != nil {
		return err
	}
	if systemAdmin {
		if _, err := member.NewRepository(database).EnsureSystemAdmin(ctx, user.ID, email); err != nil {
			return err
		}
	}

	raw, key, err := auth.NewAPIKeyStore(database).Create(name, user.ID)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(map[string]interface{}{"key": raw, "api_key": key})
	}
	fmt.Printf("✓ API key #%d created for %s\n", key.ID, email)
	fmt.Printf("  %s\n", raw)
	fmt.Println("\nStore it with 'jh login'. The key is not shown again.")
	return nil
}
