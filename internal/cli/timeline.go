package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sitecms/api/internal/reorder"
	"sitecms/api/internal/store"
)

type timelineSource struct {
	store timelineStore
}

func (t timelineSource) List(ctx context.Context) ([]store.TimelineEntry, error) {
	return t.store.ListTimelineEntries(ctx)
}

func (t timelineSource) UpdateOrder(ctx context.Context, id string, order int) error {
	return t.store.UpdateTimelineEntryOrder(ctx, id, order)
}

type timelineRow struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Year     string `json:"year"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
	Active   bool   `json:"active"`
}

func newTimelineCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Inspect and reorder timeline entries",
	}
	cmd.AddCommand(newTimelineListCmd(app))
	cmd.AddCommand(newTimelineMoveCmd(app))
	return cmd
}

func newTimelineListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entries in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, closeStore, err := app.coordinator(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeQuietly(closeStore)
			return app.writeTimeline(cmd, coord.Entries())
		},
	}
}

func newTimelineMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move the entry at position <from> to position <to> and save the order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return writeErr(cmd, fmt.Errorf("invalid <from> %q: %w", args[0], err))
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return writeErr(cmd, fmt.Errorf("invalid <to> %q: %w", args[1], err))
			}

			moveLease, closeLease, err := app.openLease(app.cfg, app.logger)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeQuietly(closeLease)

			coord, closeStore, err := app.coordinator(cmd.Context(), moveLease)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeQuietly(closeStore)

			outcome := coord.SubmitMove(cmd.Context(), from, to)
			switch outcome.Kind {
			case reorder.Applied:
				app.logger.Info("timeline reordered", "from", from, "to", to)
				return app.writeTimeline(cmd, coord.Entries())
			case reorder.Rejected:
				if errors.Is(outcome.Err, reorder.ErrBusy) {
					return writeErr(cmd, errors.New("another reorder is still being saved; try again"))
				}
				if errors.Is(outcome.Err, reorder.ErrStale) {
					_ = app.writeTimeline(cmd, coord.Entries())
					return writeErr(cmd, errors.New("timeline changed since it was loaded; check the order above and retry"))
				}
				var fetchErr *reorder.FetchError
				if errors.As(outcome.Err, &fetchErr) {
					return writeErr(cmd, outcome.Err)
				}
				return writeErr(cmd, fmt.Errorf("cannot move %d to %d in a timeline of %d entries: %w", from, to, len(coord.Entries()), outcome.Err))
			default:
				_ = app.writeTimeline(cmd, coord.Entries())
				return writeErr(cmd, fmt.Errorf("order not saved, previous order restored: %w", outcome.Err))
			}
		},
	}
}

func (a *App) coordinator(ctx context.Context, moveLease reorder.Lease) (*reorder.Coordinator[store.TimelineEntry], func(), error) {
	ts, closer, err := a.openStore(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	coord := reorder.NewCoordinator[store.TimelineEntry](timelineSource{store: ts}, reorder.Options{
		Timeout:     a.cfg.ReorderTimeout,
		Retries:     a.cfg.ReorderRetries,
		Backoff:     a.cfg.ReorderBackoff,
		Concurrency: a.cfg.ReorderConcurrency,
		Lease:       moveLease,
		Logger:      a.logger,
	})
	if err := coord.Refresh(ctx); err != nil {
		closeQuietly(closer)
		return nil, nil, err
	}
	return coord, closer, nil
}

func (a *App) writeTimeline(cmd *cobra.Command, entries []store.TimelineEntry) error {
	rows := make([]timelineRow, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, timelineRow{
			Position: i,
			ID:       entry.ID,
			Year:     entry.Year,
			Title:    entry.Title,
			Order:    entry.SortOrder,
			Active:   entry.Active,
		})
	}
	if a.JSON {
		return writeOut(cmd, rows)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tID\tYEAR\tTITLE\tORDER\tACTIVE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%t\n", row.Position, row.ID, row.Year, row.Title, row.Order, row.Active)
	}
	return tw.Flush()
}
