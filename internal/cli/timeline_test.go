package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"sitecms/api/internal/config"
	"sitecms/api/internal/reorder"
	"sitecms/api/internal/store"
)

type fakeTimelineStore struct {
	mu      sync.Mutex
	entries []store.TimelineEntry
	failIDs map[string]bool
	writes  map[string]int
}

func newFakeTimelineStore() *fakeTimelineStore {
	return &fakeTimelineStore{
		entries: []store.TimelineEntry{
			{ID: "a", Year: "2019", Title: "Founded", SortOrder: 1, Active: true},
			{ID: "b", Year: "2021", Title: "Seed", SortOrder: 2, Active: true},
			{ID: "c", Year: "2024", Title: "Launch", SortOrder: 3, Active: false},
		},
		writes: map[string]int{},
	}
}

func (f *fakeTimelineStore) ListTimelineEntries(context.Context) ([]store.TimelineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.TimelineEntry(nil), f.entries...), nil
}

func (f *fakeTimelineStore) UpdateTimelineEntryOrder(_ context.Context, id string, order int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return errors.New("write failed")
	}
	f.writes[id] = order
	return nil
}

type fakeLease struct {
	err error
}

func (f fakeLease) Acquire(context.Context) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	return func() {}, nil
}

func runCLI(t *testing.T, ts *fakeTimelineStore, moveLease reorder.Lease, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SITECMS_REORDER_TIMEOUT_MS", "1000")
	t.Setenv("SITECMS_REORDER_RETRIES", "0")
	app := &App{
		openStore: func(context.Context, config.Config) (timelineStore, func(), error) {
			return ts, nil, nil
		},
		openLease: func(config.Config, *log.Logger) (reorder.Lease, func(), error) {
			return moveLease, nil, nil
		},
	}
	cmd := newRootCmd(app)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestTimelineListTable(t *testing.T) {
	out, _, err := runCLI(t, newFakeTimelineStore(), nil, "timeline", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "POS") || !strings.Contains(lines[3], "Launch") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func TestTimelineMoveJSON(t *testing.T) {
	ts := newFakeTimelineStore()
	out, _, err := runCLI(t, ts, nil, "--json", "timeline", "move", "2", "0")
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	var rows []timelineRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	var ids []string
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	if got := strings.Join(ids, ","); got != "c,a,b" {
		t.Fatalf("expected c,a,b, got %s", got)
	}
	if ts.writes["c"] != 1 || ts.writes["a"] != 2 || ts.writes["b"] != 3 {
		t.Fatalf("unexpected persisted orders: %v", ts.writes)
	}
}

func TestTimelineMoveErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		lease   reorder.Lease
		failIDs map[string]bool
		wantErr string
	}{
		{name: "non-numeric", args: []string{"timeline", "move", "x", "1"}, wantErr: "invalid <from>"},
		{name: "out of range", args: []string{"timeline", "move", "0", "9"}, wantErr: "cannot move 0 to 9"},
		{name: "busy", args: []string{"timeline", "move", "0", "1"}, lease: fakeLease{err: errors.New("held")}, wantErr: "still being saved"},
		{name: "reverted", args: []string{"timeline", "move", "0", "1"}, failIDs: map[string]bool{"b": true}, wantErr: "previous order restored"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newFakeTimelineStore()
			ts.failIDs = tt.failIDs
			_, stderr, err := runCLI(t, ts, tt.lease, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(stderr, tt.wantErr) {
				t.Fatalf("expected stderr to contain %q, got %q", tt.wantErr, stderr)
			}
		})
	}
}
