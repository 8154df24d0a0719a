package store

import "time"

type TimelineEntry struct {
	ID        string
	Year      string
	Title     string
	Content   string
	Images    []string
	SortOrder int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e TimelineEntry) Key() string { return e.ID }

func (e TimelineEntry) Rank() int { return e.SortOrder }

// WithRank returns a copy of e with SortOrder set to rank.
func (e TimelineEntry) WithRank(rank int) TimelineEntry {
	e.SortOrder = rank
	return e
}

type SocialLink struct {
	Platform string `json:"platform"`
	Href     string `json:"href"`
}

type Copyright struct {
	Text    string `json:"text"`
	License string `json:"license,omitempty"`
}

// FooterSettings is stored as a single JSON document under the "footer" key.
type FooterSettings struct {
	BrandName   string       `json:"brandName"`
	LogoText    string       `json:"logoText"`
	SocialLinks []SocialLink `json:"socialLinks"`
	Copyright   Copyright    `json:"copyright"`
}

type SiteSettings struct {
	PageTitle  string `json:"pageTitle"`
	FaviconURL string `json:"faviconUrl"`
}
