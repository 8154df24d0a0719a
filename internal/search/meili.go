package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	meili "github.com/meilisearch/meilisearch-go"
)

const idxTimeline = "sitecms_timeline"

// Meili implements Index via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *log.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the timeline index.
// An unreachable server leaves the client unhealthy; the health loop keeps
// probing and configures the index once it recovers.
func NewMeili(url, apiKey string, logger *log.Logger) *Meili {
	if logger == nil {
		logger = log.Default()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger.WithPrefix("search"),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", "url", url, "err", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxTimeline,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", "index", idxTimeline, "err", err)
	}

	index := m.client.Index(idxTimeline)
	filterable := []interface{}{"active", "year"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attrs", "index", idxTimeline, "err", err)
	}
	searchable := []string{"title", "content", "year"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attrs", "index", idxTimeline, "err", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	req := &meili.SearchRequest{
		Limit:                 int64(normalizeLimit(q.Limit)),
		Offset:                int64(max(q.Offset, 0)),
		AttributesToHighlight: []string{"title", "content"},
		AttributesToCrop:      []string{"content"},
		CropLength:            30,
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.ActiveOnly {
		req.Filter = "active = true"
	}

	resp, err := m.client.Index(idxTimeline).Search(q.Text, req)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:   decodeString(hit, "id"),
		Year: decodeString(hit, "year"),
	}
	r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "content"), decodeString(hit, "content"))
	if raw, ok := hit["order"]; ok {
		_ = json.Unmarshal(raw, &r.Order)
	}
	if raw, ok := hit["active"]; ok {
		_ = json.Unmarshal(raw, &r.Active)
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexEntry(e EntryRecord) error {
	_, err := m.client.Index(idxTimeline).AddDocuments([]EntryRecord{e}, nil)
	return err
}

func (m *Meili) IndexEntries(entries []EntryRecord) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTimeline).AddDocuments(entries, nil)
	return err
}

func (m *Meili) DeleteEntry(id string) error {
	_, err := m.client.Index(idxTimeline).DeleteDocument(id, nil)
	return err
}
