package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"sitecms/api/internal/assets"
	"sitecms/api/internal/config"
	"sitecms/api/internal/events"
	"sitecms/api/internal/reorder"
	"sitecms/api/internal/search"
	"sitecms/api/internal/store"
	"sitecms/api/internal/util"
)

const defaultEventsTimeout = 5 * time.Second

type TimelineEntryInput struct {
	Year    string          `json:"year"`
	Title   string          `json:"title"`
	Content string          `json:"content"`
	Images  json.RawMessage `json:"images"`
	Order   *int            `json:"order"`
	Active  *bool           `json:"active"`
}

type MoveInput struct {
	SourceIndex *int `json:"sourceIndex"`
	TargetIndex *int `json:"targetIndex"`
}

type dataStore interface {
	ListTimelineEntries(context.Context) ([]store.TimelineEntry, error)
	GetTimelineEntry(context.Context, string) (store.TimelineEntry, error)
	InsertTimelineEntry(context.Context, store.TimelineEntry) (store.TimelineEntry, error)
	UpdateTimelineEntry(context.Context, store.TimelineEntry) (store.TimelineEntry, error)
	UpdateTimelineEntryOrder(context.Context, string, int) error
	DeleteTimelineEntry(context.Context, string) error
	GetFooterSettings(context.Context) (store.FooterSettings, error)
	SaveFooterSettings(context.Context, store.FooterSettings) error
	GetSiteSettings(context.Context) (store.SiteSettings, error)
	SaveSiteSettings(context.Context, store.SiteSettings) error
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(search.Query) search.Response
	IndexEntry(search.EntryRecord)
	IndexEntries([]search.EntryRecord)
	DeleteEntry(string)
}

type assetStore interface {
	Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (assets.Asset, error)
}

// timelineSource exposes the timeline table as a reorder.Store.
type timelineSource struct {
	store dataStore
}

func (t timelineSource) List(ctx context.Context) ([]store.TimelineEntry, error) {
	return t.store.ListTimelineEntries(ctx)
}

func (t timelineSource) UpdateOrder(ctx context.Context, id string, order int) error {
	return t.store.UpdateTimelineEntryOrder(ctx, id, order)
}

// Deps carries the optional collaborators. Nil Search or Assets disables
// those features; nil Events publishes nothing.
type Deps struct {
	Search searchService
	Assets assetStore
	Events events.Publisher
	Lease  reorder.Lease
	Logger *log.Logger
}

type Service struct {
	cfg      config.Config
	store    dataStore
	timeline *reorder.Coordinator[store.TimelineEntry]
	search   searchService
	assets   assetStore
	events   events.Publisher
	logger   *log.Logger
}

func New(cfg config.Config, dataStore dataStore, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		cfg:   cfg,
		store: dataStore,
		timeline: reorder.NewCoordinator[store.TimelineEntry](timelineSource{store: dataStore}, reorder.Options{
			Timeout:     cfg.ReorderTimeout,
			Retries:     cfg.ReorderRetries,
			Backoff:     cfg.ReorderBackoff,
			Concurrency: cfg.ReorderConcurrency,
			Lease:       deps.Lease,
			Logger:      logger,
		}),
		search: deps.Search,
		assets: deps.Assets,
		events: publisher,
		logger: logger.WithPrefix("app"),
	}
}

// Bootstrap loads the initial timeline view.
func (s *Service) Bootstrap(ctx context.Context) error {
	return s.timeline.Refresh(ctx)
}

// RunRefresher reloads the timeline view every interval until ctx is done.
func (s *Service) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.timeline.Refresh(ctx); err != nil {
				s.logger.Warn("background refresh failed", "err", err)
			}
		}
	}
}

func (s *Service) AdminToken() string {
	return s.cfg.AdminToken
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) ListTimeline() map[string]any {
	return map[string]any{
		"items": timelineItems(s.timeline.Entries()),
		"state": s.timeline.State(),
	}
}

func (s *Service) RefreshTimeline(ctx context.Context) (map[string]any, error) {
	if err := s.timeline.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.ListTimeline(), nil
}

// MoveTimelineEntry moves the entry shown at source to target and persists
// the new order. The move runs to completion even if the caller goes away.
func (s *Service) MoveTimelineEntry(ctx context.Context, input MoveInput) (map[string]any, error) {
	if input.SourceIndex == nil || input.TargetIndex == nil {
		return nil, validationError("sourceIndex and targetIndex are required", nil)
	}
	from, to := *input.SourceIndex, *input.TargetIndex

	outcome := s.timeline.SubmitMove(context.WithoutCancel(ctx), from, to)
	switch outcome.Kind {
	case reorder.Applied:
		entries := s.timeline.Entries()
		s.indexEntries(entries)
		s.publish(ctx, events.TimelineReordered, "timeline", map[string]any{
			"sourceIndex": from,
			"targetIndex": to,
			"order":       entryIDs(entries),
		})
		return s.ListTimeline(), nil
	case reorder.Rejected:
		if errors.Is(outcome.Err, reorder.ErrBusy) {
			return nil, domainError(http.StatusConflict, "BUSY", "Another reorder is still being saved", nil)
		}
		if errors.Is(outcome.Err, reorder.ErrStale) {
			return nil, domainError(http.StatusConflict, "STALE_VIEW", "The timeline changed elsewhere; review the current order and retry", map[string]any{
				"items": timelineItems(s.timeline.Entries()),
			})
		}
		var fetchErr *reorder.FetchError
		if errors.As(outcome.Err, &fetchErr) {
			return nil, outcome.Err
		}
		return nil, domainError(http.StatusUnprocessableEntity, "INVALID_INDICES", "sourceIndex and targetIndex must be distinct positions in the timeline", map[string]any{
			"sourceIndex": from,
			"targetIndex": to,
			"length":      len(s.timeline.Entries()),
		})
	default:
		details := map[string]any{"items": timelineItems(s.timeline.Entries())}
		var writeErr *reorder.WriteError
		if errors.As(outcome.Err, &writeErr) {
			failed := make([]string, 0, len(writeErr.Failures))
			for _, failure := range writeErr.Failures {
				failed = append(failed, failure.ID)
			}
			details["failed"] = failed
			details["attempted"] = writeErr.Attempted
		}
		return nil, domainError(http.StatusBadGateway, "REORDER_REVERTED", "Failed to update order; the previous order was restored", details)
	}
}

func (s *Service) CreateTimelineEntry(ctx context.Context, input TimelineEntryInput) (map[string]any, error) {
	entry, err := entryFromInput(store.TimelineEntry{ID: util.NewID("tl"), Active: true}, input)
	if err != nil {
		return nil, err
	}
	created, err := s.store.InsertTimelineEntry(ctx, entry)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.afterEntryWrite(ctx, events.TimelineEntryCreated, created)
	return timelineItem(created), nil
}

func (s *Service) UpdateTimelineEntry(ctx context.Context, entryID string, input TimelineEntryInput) (map[string]any, error) {
	existing, err := s.store.GetTimelineEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	entry, err := entryFromInput(existing, input)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateTimelineEntry(ctx, entry)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.afterEntryWrite(ctx, events.TimelineEntryUpdated, updated)
	return timelineItem(updated), nil
}

func (s *Service) DeleteTimelineEntry(ctx context.Context, entryID string) error {
	if err := s.store.DeleteTimelineEntry(ctx, entryID); err != nil {
		return err
	}
	s.refreshAfterWrite(ctx)
	if s.search != nil {
		s.search.DeleteEntry(entryID)
	}
	s.publish(ctx, events.TimelineEntryDeleted, entryID, map[string]any{"id": entryID})
	return nil
}

func (s *Service) afterEntryWrite(ctx context.Context, eventType string, entry store.TimelineEntry) {
	s.refreshAfterWrite(ctx)
	if s.search != nil {
		s.search.IndexEntry(searchRecord(entry))
	}
	s.publish(ctx, eventType, entry.ID, timelineItem(entry))
}

// refreshAfterWrite reloads the view after a CRUD write. A failure only
// leaves the view stale until the next refresh.
func (s *Service) refreshAfterWrite(ctx context.Context) {
	if err := s.timeline.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after write failed", "err", err)
	}
}

func (s *Service) Search(query string, limit, offset int) map[string]any {
	q := search.Query{Text: strings.TrimSpace(query), Limit: limit, Offset: offset}
	if s.search == nil || q.Text == "" {
		return map[string]any{"results": []search.Result{}, "total": 0, "query": q.Text}
	}
	resp := s.search.Search(q)
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
		"backend": resp.Backend,
	}
}

func (s *Service) UploadAsset(ctx context.Context, filename, contentType string, size int64, r io.Reader) (map[string]any, error) {
	if s.assets == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Asset storage is not configured", nil)
	}
	asset, err := s.assets.Upload(ctx, filename, contentType, size, r)
	if err != nil {
		switch {
		case errors.Is(err, assets.ErrNotImage):
			return nil, domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", err.Error(), nil)
		case errors.Is(err, assets.ErrTooLarge):
			return nil, domainError(http.StatusRequestEntityTooLarge, "TOO_LARGE", err.Error(), map[string]any{"maxBytes": assets.MaxUploadBytes})
		}
		return nil, err
	}
	return map[string]any{
		"key":         asset.Key,
		"url":         asset.URL,
		"contentType": asset.ContentType,
		"size":        asset.Size,
	}, nil
}

func (s *Service) publish(ctx context.Context, eventType, key string, payload any) {
	timeout := s.cfg.EventsTimeout
	if timeout <= 0 {
		timeout = defaultEventsTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := s.events.Publish(ctx, events.Event{
		Type:       eventType,
		Key:        key,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("publish event failed", "type", eventType, "key", key, "err", err)
	}
}

func (s *Service) indexEntries(entries []store.TimelineEntry) {
	if s.search == nil {
		return
	}
	records := make([]search.EntryRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, searchRecord(entry))
	}
	s.search.IndexEntries(records)
}

func entryFromInput(base store.TimelineEntry, input TimelineEntryInput) (store.TimelineEntry, error) {
	year := strings.TrimSpace(input.Year)
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	missing := make([]string, 0, 3)
	if year == "" {
		missing = append(missing, "year")
	}
	if title == "" {
		missing = append(missing, "title")
	}
	if content == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return store.TimelineEntry{}, validationError(strings.Join(missing, ", ")+" required", map[string]any{"fields": missing})
	}

	images, err := parseImages(input.Images)
	if err != nil {
		return store.TimelineEntry{}, err
	}

	base.Year = year
	base.Title = title
	base.Content = content
	base.Images = images
	if input.Order != nil {
		base.SortOrder = *input.Order
	}
	if input.Active != nil {
		base.Active = *input.Active
	}
	return base, nil
}

// parseImages accepts a JSON array of URLs or one comma-separated string.
// Blank URLs are dropped.
func parseImages(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []string{}, nil
	}

	var candidates []string
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &candidates); err != nil {
			return nil, validationError("images must be an array of URLs or a comma-separated string", nil)
		}
	} else {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil, validationError("images must be an array of URLs or a comma-separated string", nil)
		}
		candidates = strings.Split(joined, ",")
	}

	images := make([]string, 0, len(candidates))
	for _, url := range candidates {
		if url = strings.TrimSpace(url); url != "" {
			images = append(images, url)
		}
	}
	return images, nil
}

func mapStoreError(err error) error {
	if errors.Is(err, store.ErrConstraint) {
		return validationError(err.Error(), nil)
	}
	return err
}

func timelineItem(entry store.TimelineEntry) map[string]any {
	images := entry.Images
	if images == nil {
		images = []string{}
	}
	return map[string]any{
		"id":        entry.ID,
		"year":      entry.Year,
		"title":     entry.Title,
		"content":   entry.Content,
		"images":    images,
		"order":     entry.SortOrder,
		"active":    entry.Active,
		"createdAt": entry.CreatedAt,
		"updatedAt": entry.UpdatedAt,
	}
}

func timelineItems(entries []store.TimelineEntry) []map[string]any {
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, timelineItem(entry))
	}
	return items
}

func entryIDs(entries []store.TimelineEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return ids
}

func searchRecord(entry store.TimelineEntry) search.EntryRecord {
	return search.EntryRecord{
		ID:      entry.ID,
		Year:    entry.Year,
		Title:   entry.Title,
		Content: entry.Content,
		Order:   entry.SortOrder,
		Active:  entry.Active,
	}
}
