package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const entryDocument = `(year || ' ' || title || ' ' || content)`

// PgFTS implements Searcher over timeline_entries. It matches the 'simple'
// text search configuration and falls back to a case-insensitive substring
// match so partial words and years still hit.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	return p.SearchContext(context.Background(), q)
}

func (p *PgFTS) SearchContext(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, 0, nil
	}

	where := fmt.Sprintf(`(to_tsvector('simple', %s) @@ plainto_tsquery('simple', $1)
		OR title ILIKE $2 ESCAPE '\' OR content ILIKE $2 ESCAPE '\' OR year ILIKE $2 ESCAPE '\')`, entryDocument)
	if q.ActiveOnly {
		where += " AND active"
	}
	args := []any{text, "%" + escapeLike(text) + "%"}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM timeline_entries WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, year, title,
			ts_headline('simple', content, plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			sort_order, active
		FROM timeline_entries
		WHERE %s
		ORDER BY ts_rank(to_tsvector('simple', %s), plainto_tsquery('simple', $1)) DESC, sort_order ASC
		LIMIT %d OFFSET %d`, where, entryDocument, normalizeLimit(q.Limit), max(q.Offset, 0))

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Year, &r.Title, &r.Snippet, &r.Order, &r.Active); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every entry for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]EntryRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, year, title, content, sort_order, active
		FROM timeline_entries
		ORDER BY sort_order ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load timeline entries: %w", err)
	}
	defer rows.Close()

	records := make([]EntryRecord, 0)
	for rows.Next() {
		var e EntryRecord
		if err := rows.Scan(&e.ID, &e.Year, &e.Title, &e.Content, &e.Order, &e.Active); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		records = append(records, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline entries: %w", err)
	}
	return records, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
