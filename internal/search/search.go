package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Year    string `json:"year"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Order   int    `json:"order"`
	Active  bool   `json:"active"`
}

// Query describes a search request.
type Query struct {
	Text       string
	Limit      int
	Offset     int
	ActiveOnly bool
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Index is a Searcher that also accepts writes.
type Index interface {
	Searcher
	IndexEntry(e EntryRecord) error
	IndexEntries(entries []EntryRecord) error
	DeleteEntry(id string) error
}

// EntryRecord is the data we index for a timeline entry.
type EntryRecord struct {
	ID      string `json:"id"`
	Year    string `json:"year"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   int    `json:"order"`
	Active  bool   `json:"active"`
}

const defaultLimit = 20

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > 100 {
		return 100
	}
	return limit
}
