package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/campusmart/database/seeders"
	"github.com/shashiranjanraj/campusmart/internal/server"
)

// withApp boots the backends for a one-off command and closes them after.
func withApp(ctx context.Context, fn func(*server.App) error) error {
	app, err := server.Boot(ctx)
	if err != nil {
		return err
	}
	defer app.Close(context.Background()) //nolint:errcheck
	return fn(app)
}

// campusmart seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *server.App) error {
			if err := seeders.RunAll(cmd.Context(), seeders.Env{
				Auth:  app.Auth,
				Admin: app.Admin,
				Users: app.Users,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeding complete (%d seeders ran)\n", len(seeders.Names()))
			return nil
		})
	},
}

// campusmart indexes
var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the document store indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *server.App) error {
			if err := app.EnsureIndexes(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Indexes are in place")
			return nil
		})
	},
}
