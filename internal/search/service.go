package search

import (
	"context"

	"github.com/charmbracelet/log"
)

// Loader supplies every record for a full reindex.
type Loader interface {
	LoadAllRecords(ctx context.Context) ([]EntryRecord, error)
}

// Service is the facade that tries the primary index first and falls back
// to Postgres.
type Service struct {
	primary  Index
	fallback Searcher
	loader   Loader
	logger   *log.Logger
}

// NewService creates a search service. primary may be nil when Meilisearch
// is not configured.
func NewService(primary Index, fallback Searcher, loader Loader, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{primary: primary, fallback: fallback, loader: loader, logger: logger.WithPrefix("search")}
}

func (s *Service) primaryReady() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search tries the primary index if healthy, otherwise falls back.
func (s *Service) Search(q Query) Response {
	if s.primaryReady() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.logger.Warn("meilisearch error, falling back to postgres", "err", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: "none"}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.logger.Error("postgres search failed", "err", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "postgres"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "postgres"}
}

// IndexEntry indexes an entry (fire-and-forget).
func (s *Service) IndexEntry(e EntryRecord) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.IndexEntry(e); err != nil {
			s.logger.Warn("index entry", "id", e.ID, "err", err)
		}
	}()
}

// IndexEntries re-indexes a batch, used after a move rewrites every order.
func (s *Service) IndexEntries(entries []EntryRecord) {
	if !s.primaryReady() || len(entries) == 0 {
		return
	}
	go func() {
		if err := s.primary.IndexEntries(entries); err != nil {
			s.logger.Warn("index entries", "count", len(entries), "err", err)
		}
	}()
}

// DeleteEntry removes an entry from the index (fire-and-forget).
func (s *Service) DeleteEntry(id string) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.DeleteEntry(id); err != nil {
			s.logger.Warn("delete entry", "id", id, "err", err)
		}
	}()
}

// ReindexAll pushes every stored entry into the primary index.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.primaryReady() || s.loader == nil {
		return
	}
	records, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Warn("reindex load failed", "err", err)
		return
	}
	if err := s.primary.IndexEntries(records); err != nil {
		s.logger.Warn("reindex entries", "err", err)
		return
	}
	s.logger.Info("reindexed timeline", "entries", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
