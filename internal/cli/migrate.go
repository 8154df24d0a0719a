package cli

import (
	"github.com/spf13/cobra"

	"sitecms/api/internal/store"
)

func newMigrateCmd(app *App) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := app.openDB(ctx, app.cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()

			if dir == "" {
				dir = app.cfg.MigrationsDir
			}
			if err := store.ApplyMigrations(ctx, db, store.Migrations(dir)); err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info("migrations applied", "dir", dirLabel(dir))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Read migrations from this directory instead of the embedded set")
	return cmd
}

func dirLabel(dir string) string {
	if dir == "" {
		return "embedded"
	}
	return dir
}
