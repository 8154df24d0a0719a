package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"sitecms/api/internal/config"
	"sitecms/api/internal/logging"
	"sitecms/api/internal/reorder"
	"sitecms/api/internal/store"
)

// timelineStore is the slice of the store the CLI needs.
type timelineStore interface {
	ListTimelineEntries(ctx context.Context) ([]store.TimelineEntry, error)
	UpdateTimelineEntryOrder(ctx context.Context, entryID string, order int) error
}

type App struct {
	JSON     bool
	LogLevel string

	cfg    config.Config
	logger *log.Logger

	// openDB and openStore are replaced in tests.
	openDB    func(ctx context.Context, cfg config.Config) (*sql.DB, error)
	openStore func(ctx context.Context, cfg config.Config) (timelineStore, func(), error)
	openLease func(cfg config.Config, logger *log.Logger) (reorder.Lease, func(), error)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{
		openDB:    openDatabase,
		openStore: openPostgresStore,
		openLease: openRedisLease,
	})
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cmsctl",
		Short:        "Operator tools for the site CMS",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Apply pending migrations
  cmsctl migrate

  # Show the timeline in display order
  cmsctl timeline list

  # Move the entry at position 3 to the top
  cmsctl timeline move 3 0
`),
	}

	cmd.PersistentFlags().BoolVar(&app.JSON, "json", false, "Write JSON instead of a table")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (overrides SITECMS_LOG_LEVEL)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		app.cfg = config.Load()
		level := app.cfg.LogLevel
		if app.LogLevel != "" {
			level = app.LogLevel
		}
		app.logger = logging.New(cmd.ErrOrStderr(), level)
		return nil
	}

	cmd.AddCommand(newMigrateCmd(app))
	cmd.AddCommand(newTimelineCmd(app))
	return cmd
}

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	return store.Open(ctx, cfg.DatabaseURL, cfg.ReorderConcurrency+2)
}

func openPostgresStore(ctx context.Context, cfg config.Config) (timelineStore, func(), error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStore(db), func() { _ = db.Close() }, nil
}

func writeOut(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func closeQuietly(closer func()) {
	if closer != nil {
		closer()
	}
}
