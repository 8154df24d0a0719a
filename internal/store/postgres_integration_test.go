package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func newMigratedStore(t *testing.T) *PostgresStore {
	t.Helper()
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := ApplyMigrations(ctx, db, Migrations("")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func TestTimelineEntriesPostgres(t *testing.T) {
	s := newMigratedStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		_, err := s.InsertTimelineEntry(ctx, TimelineEntry{
			ID:        id,
			Year:      "2024",
			Title:     "Entry " + id,
			Images:    []string{"https://cdn.example.com/" + id + ".png"},
			SortOrder: 10 * (3 - i),
			Active:    true,
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	items, err := s.ListTimelineEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[0].ID != "c" || items[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", items)
	}
	if len(items[0].Images) != 1 {
		t.Fatalf("images not decoded: %+v", items[0])
	}

	if err := s.UpdateTimelineEntryOrder(ctx, "a", 1); err != nil {
		t.Fatalf("update order: %v", err)
	}
	got, err := s.GetTimelineEntry(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SortOrder != 1 {
		t.Fatalf("expected sort order 1, got %d", got.SortOrder)
	}

	if err := s.UpdateTimelineEntryOrder(ctx, "missing", 1); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for missing entry, got %v", err)
	}

	if err := s.DeleteTimelineEntry(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTimelineEntry(ctx, "b"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows on second delete, got %v", err)
	}

	_, err = s.InsertTimelineEntry(ctx, TimelineEntry{ID: "blank", Year: " ", Title: "x"})
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint for blank year, got %v", err)
	}
}

func TestSettingsPostgres(t *testing.T) {
	s := newMigratedStore(t)
	ctx := context.Background()

	footer, err := s.GetFooterSettings(ctx)
	if err != nil {
		t.Fatalf("get empty footer: %v", err)
	}
	if footer.SocialLinks == nil || len(footer.SocialLinks) != 0 {
		t.Fatalf("expected empty social links, got %+v", footer.SocialLinks)
	}

	footer = FooterSettings{
		BrandName:   "Acme",
		LogoText:    "AC",
		SocialLinks: []SocialLink{{Platform: "github", Href: "https://github.com/acme"}},
		Copyright:   Copyright{Text: "2026 Acme", License: "CC-BY"},
	}
	if err := s.SaveFooterSettings(ctx, footer); err != nil {
		t.Fatalf("save footer: %v", err)
	}
	footer.BrandName = "Acme Inc"
	if err := s.SaveFooterSettings(ctx, footer); err != nil {
		t.Fatalf("overwrite footer: %v", err)
	}
	loaded, err := s.GetFooterSettings(ctx)
	if err != nil {
		t.Fatalf("get footer: %v", err)
	}
	if loaded.BrandName != "Acme Inc" || len(loaded.SocialLinks) != 1 {
		t.Fatalf("unexpected footer: %+v", loaded)
	}

	if err := s.SaveSiteSettings(ctx, SiteSettings{PageTitle: "Acme", FaviconURL: "/favicon.png"}); err != nil {
		t.Fatalf("save site: %v", err)
	}
	site, err := s.GetSiteSettings(ctx)
	if err != nil {
		t.Fatalf("get site: %v", err)
	}
	if site.PageTitle != "Acme" {
		t.Fatalf("unexpected site settings: %+v", site)
	}
}
