package scrape

import (
	"net/url"
	"strings"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/scrape/greenhouse"
	"gradscout-engine/internal/scrape/lever"
	"gradscout-engine/internal/scrape/smartrecruiters"
	"gradscout-engine/internal/scrape/util"

	"github.com/andybalholm/cascadia"
)

// Validate checks a single company before any request is made. The error is
// always a *util.ConfigError.
func (r *Registry) Validate(c domain.CompanyConfig) error {
	bad := func(field, reason string) error {
		return &util.ConfigError{Company: c.Name, Field: field, Reason: reason}
	}

	if strings.TrimSpace(c.Name) == "" {
		return bad("name", "is required")
	}
	if !c.Tier.Valid() {
		return bad("tier", "unknown tier "+string(c.Tier))
	}
	if !c.Extractor.Valid() {
		return bad("extractor", "unknown extractor "+string(c.Extractor))
	}
	if _, ok := r.Get(c.Extractor); !ok {
		return bad("extractor", "no extractor registered for "+string(c.Extractor))
	}
	if c.MaxPages < 0 || c.MaxListings < 0 || c.RequestDelay < 0 {
		return bad("limits", "max_pages, max_listings and request_delay must be >= 0")
	}

	switch c.Extractor {
	case domain.KindGeneric:
		u, err := url.Parse(c.CareersURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return bad("careers_url", "must be an absolute http(s) URL")
		}
		if c.MaxPages > 1 && c.PageParam == "" {
			return bad("page_param", "is required when max_pages > 1")
		}
		for _, f := range []struct{ field, sel string }{
			{"selectors.listing", c.Selectors.Listing},
			{"selectors.job_title", c.Selectors.Title},
			{"selectors.job_links", c.Selectors.Link},
			{"selectors.location", c.Selectors.Location},
			{"selectors.description", c.Selectors.Description},
		} {
			if f.sel == "" {
				continue
			}
			if _, err := cascadia.Compile(f.sel); err != nil {
				return bad(f.field, "invalid CSS selector: "+err.Error())
			}
		}
	case domain.KindGreenhouse:
		if greenhouse.Token(c) == "" {
			return bad("board_token", "is required for greenhouse (or a boards.greenhouse.io careers_url)")
		}
	case domain.KindLever:
		if lever.Slug(c) == "" {
			return bad("board_token", "is required for lever (or a jobs.lever.co careers_url)")
		}
	case domain.KindSmartRecruiters:
		if smartrecruiters.Slug(c) == "" {
			return bad("board_token", "is required for smartrecruiters (or a jobs.smartrecruiters.com careers_url)")
		}
	}
	return nil
}
