package config

import (
	"sort"
	"strings"
	"time"

	"gradscout-engine/internal/domain"
)

// CompanyEntry is one company as written in companies.yml.
type CompanyEntry struct {
	Name         string            `yaml:"name" json:"name"`
	CareersURL   string            `yaml:"careers_url" json:"careers_url"`
	Extractor    string            `yaml:"extractor,omitempty" json:"extractor,omitempty"`
	BoardToken   string            `yaml:"board_token,omitempty" json:"board_token,omitempty"`
	SearchParams map[string]string `yaml:"search_params,omitempty" json:"search_params,omitempty"`
	Selectors    domain.Selectors  `yaml:"selectors,omitempty" json:"selectors,omitempty"`
	PageParam    string            `yaml:"page_param,omitempty" json:"page_param,omitempty"`
	MaxPages     int               `yaml:"max_pages,omitempty" json:"max_pages,omitempty"`
	MaxListings  int               `yaml:"max_listings,omitempty" json:"max_listings,omitempty"`
	RequestDelay time.Duration     `yaml:"request_delay,omitempty" json:"request_delay,omitempty"`
}

// Companies maps a tier name to its companies, in file order.
type Companies map[string][]CompanyEntry

// Selection narrows the run list. Empty fields select everything.
type Selection struct {
	Tiers     []string
	Companies []string
}

// CompanyConfigs flattens the file into run order: tiers in their canonical order
// (unknown tier names last, alphabetically), companies in file order. Names in
// sel.Companies match case-insensitively.
func (c Companies) CompanyConfigs(sel Selection) []domain.CompanyConfig {
	tierSet := lowerSet(sel.Tiers)
	nameSet := lowerSet(sel.Companies)

	var out []domain.CompanyConfig
	for _, tier := range c.tierOrder() {
		if len(tierSet) > 0 && !tierSet[strings.ToLower(tier)] {
			continue
		}
		for _, e := range c[tier] {
			if len(nameSet) > 0 && !nameSet[strings.ToLower(strings.TrimSpace(e.Name))] {
				continue
			}
			out = append(out, e.toDomain(domain.Tier(tier)))
		}
	}
	return out
}

// ByTier lists company names per tier, sorted, for list-companies.
func (c Companies) ByTier() map[string][]string {
	out := make(map[string][]string, len(c))
	for tier, entries := range c {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		sort.Strings(names)
		out[tier] = names
	}
	return out
}

func (c Companies) tierOrder() []string {
	var order []string
	known := map[string]bool{}
	for _, t := range domain.Tiers {
		known[string(t)] = true
		if _, ok := c[string(t)]; ok {
			order = append(order, string(t))
		}
	}
	var rest []string
	for t := range c {
		if !known[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func (e CompanyEntry) toDomain(tier domain.Tier) domain.CompanyConfig {
	kind := domain.ExtractorKind(strings.ToLower(strings.TrimSpace(e.Extractor)))
	if kind == "" {
		kind = domain.InferExtractorKind(e.CareersURL)
	}
	params := make(map[string]string, len(e.SearchParams))
	for k, v := range e.SearchParams {
		params[k] = v
	}
	return domain.CompanyConfig{
		Name:         strings.TrimSpace(e.Name),
		Tier:         tier,
		CareersURL:   strings.TrimSpace(e.CareersURL),
		Extractor:    kind,
		BoardToken:   strings.TrimSpace(e.BoardToken),
		SearchParams: params,
		Selectors:    e.Selectors,
		PageParam:    e.PageParam,
		MaxPages:     e.MaxPages,
		MaxListings:  e.MaxListings,
		RequestDelay: e.RequestDelay,
	}
}

func lowerSet(xs []string) map[string]bool {
	m := map[string]bool{}
	for _, x := range xs {
		for _, part := range strings.Split(x, ",") {
			if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
				m[p] = true
			}
		}
	}
	return m
}
