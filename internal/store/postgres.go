package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	settingFooter = "footer"
	settingSite   = "site"
)

// ErrConstraint reports a row rejected by a NOT NULL or CHECK constraint.
var ErrConstraint = errors.New("constraint violation")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) ListTimelineEntries(ctx context.Context) ([]TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, title, content, images, sort_order, active, created_at, updated_at
		FROM timeline_entries
		ORDER BY sort_order ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list timeline entries: %w", err)
	}
	defer rows.Close()

	items := make([]TimelineEntry, 0)
	for rows.Next() {
		item, err := scanTimelineEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline entries: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTimelineEntry(ctx context.Context, entryID string) (TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, year, title, content, images, sort_order, active, created_at, updated_at
		FROM timeline_entries
		WHERE id=$1
	`, entryID)
	item, err := scanTimelineEntry(row)
	if err != nil {
		return TimelineEntry{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertTimelineEntry(ctx context.Context, item TimelineEntry) (TimelineEntry, error) {
	images, err := marshalImages(item.Images)
	if err != nil {
		return TimelineEntry{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO timeline_entries (id, year, title, content, images, sort_order, active)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		RETURNING id, year, title, content, images, sort_order, active, created_at, updated_at
	`, item.ID, item.Year, item.Title, item.Content, images, item.SortOrder, item.Active)
	created, err := scanTimelineEntry(row)
	if err != nil {
		return TimelineEntry{}, fmt.Errorf("insert timeline entry: %w", classify(err))
	}
	return created, nil
}

func (s *PostgresStore) UpdateTimelineEntry(ctx context.Context, item TimelineEntry) (TimelineEntry, error) {
	images, err := marshalImages(item.Images)
	if err != nil {
		return TimelineEntry{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE timeline_entries
		SET year=$2, title=$3, content=$4, images=$5::jsonb, sort_order=$6, active=$7, updated_at=NOW()
		WHERE id=$1
		RETURNING id, year, title, content, images, sort_order, active, created_at, updated_at
	`, item.ID, item.Year, item.Title, item.Content, images, item.SortOrder, item.Active)
	updated, err := scanTimelineEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TimelineEntry{}, err
		}
		return TimelineEntry{}, fmt.Errorf("update timeline entry: %w", classify(err))
	}
	return updated, nil
}

// UpdateTimelineEntryOrder writes a single entry's sort order. It runs outside
// any transaction; callers rewriting a whole list issue one call per entry.
func (s *PostgresStore) UpdateTimelineEntryOrder(ctx context.Context, entryID string, order int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE timeline_entries SET sort_order=$2, updated_at=NOW() WHERE id=$1
	`, entryID, order)
	if err != nil {
		return fmt.Errorf("update timeline order %s: %w", entryID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timeline order %s: %w", entryID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update timeline order %s: %w", entryID, sql.ErrNoRows)
	}
	return nil
}

func (s *PostgresStore) DeleteTimelineEntry(ctx context.Context, entryID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM timeline_entries WHERE id=$1`, entryID)
	if err != nil {
		return fmt.Errorf("delete timeline entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timeline entry: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetFooterSettings(ctx context.Context) (FooterSettings, error) {
	var settings FooterSettings
	if err := s.getSetting(ctx, settingFooter, &settings); err != nil {
		return FooterSettings{}, err
	}
	if settings.SocialLinks == nil {
		settings.SocialLinks = []SocialLink{}
	}
	return settings, nil
}

func (s *PostgresStore) SaveFooterSettings(ctx context.Context, settings FooterSettings) error {
	return s.saveSetting(ctx, settingFooter, settings)
}

func (s *PostgresStore) GetSiteSettings(ctx context.Context) (SiteSettings, error) {
	var settings SiteSettings
	if err := s.getSetting(ctx, settingSite, &settings); err != nil {
		return SiteSettings{}, err
	}
	return settings, nil
}

func (s *PostgresStore) SaveSiteSettings(ctx context.Context, settings SiteSettings) error {
	return s.saveSetting(ctx, settingSite, settings)
}

// getSetting leaves target untouched when the key has never been saved.
func (s *PostgresStore) getSetting(ctx context.Context, key string, target any) error {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM site_settings WHERE key=$1`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read setting %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode setting %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) saveSetting(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO site_settings (key, value)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
	`, key, string(payload))
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimelineEntry(row rowScanner) (TimelineEntry, error) {
	var item TimelineEntry
	var images []byte
	if err := row.Scan(
		&item.ID,
		&item.Year,
		&item.Title,
		&item.Content,
		&images,
		&item.SortOrder,
		&item.Active,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TimelineEntry{}, err
		}
		return TimelineEntry{}, fmt.Errorf("scan timeline entry: %w", err)
	}
	item.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &item.Images); err != nil {
			return TimelineEntry{}, fmt.Errorf("decode timeline images: %w", err)
		}
	}
	return item, nil
}

func marshalImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encode timeline images: %w", err)
	}
	return string(payload), nil
}

// classify maps constraint failures reported by Postgres onto ErrConstraint.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23514":
			name := pgErr.ConstraintName
			if name == "" {
				name = pgErr.ColumnName
			}
			return fmt.Errorf("%w: %s", ErrConstraint, name)
		}
	}
	return err
}
