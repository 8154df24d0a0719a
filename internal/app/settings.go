package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"sitecms/api/internal/events"
	"sitecms/api/internal/store"
)

const maxLogoTextLength = 10

var allowedSocialPlatforms = map[string]struct{}{
	"gmail":     {},
	"github":    {},
	"linkedin":  {},
	"twitter":   {},
	"x":         {},
	"instagram": {},
	"youtube":   {},
	"facebook":  {},
	"tiktok":    {},
	"dribbble":  {},
	"behance":   {},
	"medium":    {},
	"website":   {},
}

func (s *Service) GetFooterSettings(ctx context.Context) (store.FooterSettings, error) {
	return s.store.GetFooterSettings(ctx)
}

func (s *Service) SaveFooterSettings(ctx context.Context, input store.FooterSettings) (store.FooterSettings, error) {
	settings, err := normalizeFooter(input)
	if err != nil {
		return store.FooterSettings{}, err
	}
	if err := s.store.SaveFooterSettings(ctx, settings); err != nil {
		return store.FooterSettings{}, err
	}
	s.publish(ctx, events.FooterSettingsSaved, "footer", settings)
	return settings, nil
}

func (s *Service) GetSiteSettings(ctx context.Context) (map[string]any, error) {
	settings, err := s.store.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	return siteSettingsPayload(settings), nil
}

func (s *Service) SaveSiteSettings(ctx context.Context, input store.SiteSettings) (map[string]any, error) {
	settings := store.SiteSettings{
		PageTitle:  strings.TrimSpace(input.PageTitle),
		FaviconURL: strings.TrimSpace(input.FaviconURL),
	}
	if err := s.store.SaveSiteSettings(ctx, settings); err != nil {
		return nil, err
	}
	s.publish(ctx, events.SiteSettingsSaved, "site", settings)
	return siteSettingsPayload(settings), nil
}

func normalizeFooter(input store.FooterSettings) (store.FooterSettings, error) {
	settings := store.FooterSettings{
		BrandName: strings.TrimSpace(input.BrandName),
		LogoText:  strings.TrimSpace(input.LogoText),
		Copyright: store.Copyright{
			Text:    strings.TrimSpace(input.Copyright.Text),
			License: strings.TrimSpace(input.Copyright.License),
		},
		SocialLinks: make([]store.SocialLink, 0, len(input.SocialLinks)),
	}
	if utf8.RuneCountInString(settings.LogoText) > maxLogoTextLength {
		return store.FooterSettings{}, validationError("logoText must be at most 10 characters", map[string]any{"field": "logoText", "max": maxLogoTextLength})
	}

	for i, link := range input.SocialLinks {
		platform := strings.ToLower(strings.TrimSpace(link.Platform))
		if _, ok := allowedSocialPlatforms[platform]; !ok {
			return store.FooterSettings{}, validationError("unknown social platform", map[string]any{"index": i, "platform": link.Platform})
		}
		settings.SocialLinks = append(settings.SocialLinks, store.SocialLink{
			Platform: platform,
			Href:     strings.TrimSpace(link.Href),
		})
	}
	return settings, nil
}

func siteSettingsPayload(settings store.SiteSettings) map[string]any {
	return map[string]any{
		"pageTitle":   settings.PageTitle,
		"faviconUrl":  settings.FaviconURL,
		"faviconType": faviconType(settings.FaviconURL),
	}
}

// faviconType derives the icon MIME type the public site should declare.
// Data URIs are matched on their contents and may yield "" when no known
// type is present; plain URLs go by extension and default to SVG.
func faviconType(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "data:") {
		switch {
		case strings.Contains(url, "svg"):
			return "image/svg+xml"
		case strings.Contains(url, "png"):
			return "image/png"
		case strings.Contains(url, "jpg"), strings.Contains(url, "jpeg"):
			return "image/jpeg"
		}
		return ""
	}
	switch {
	case strings.HasSuffix(url, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(url, ".png"):
		return "image/png"
	case strings.HasSuffix(url, ".ico"):
		return "image/x-icon"
	}
	return "image/svg+xml"
}
