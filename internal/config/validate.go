package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gradscout-engine/internal/domain"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into one error, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

func trimList(xs []string) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		key := strings.ToLower(x)
		if seen[key] {
			continue
		}
		seen[key] = true
		ys = append(ys, x)
	}
	return ys
}

// NormalizeAndValidate returns a normalized copy plus errors and warnings.
// Per-company problems (bad selectors, unknown extractor) are only warnings here;
// the scrape manager turns them into failed company results at run time.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	validateSettings(&out.Settings, &res)
	validateJobTypes(&out.JobTypes, &res)
	validateCompanies(out.Companies, &res)

	return out, res
}

func validateSettings(s *Settings, res *Validation) {
	s.Filters.LocationsAllow = trimList(s.Filters.LocationsAllow)
	s.Filters.LocationsBlock = trimList(s.Filters.LocationsBlock)
	s.Output.Formats = trimList(s.Output.Formats)

	if s.App.Port <= 0 || s.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	switch strings.ToLower(s.App.LogFormat) {
	case "", "text", "json":
	default:
		res.addErr("app.log_format must be text or json, got %q", s.App.LogFormat)
	}

	sc := &s.Scraping
	if sc.Concurrency <= 0 {
		res.addErr("scraping.concurrency must be > 0")
	} else if sc.Concurrency > 32 {
		res.addWarn("scraping.concurrency is very high (%d); hosts may start rejecting requests.", sc.Concurrency)
	}
	if sc.RateLimitDelay < 0 || sc.Jitter < 0 {
		res.addErr("scraping.rate_limit_delay and scraping.jitter must be >= 0")
	}
	if sc.RateLimitDelay < 500*time.Millisecond {
		res.addWarn("scraping.rate_limit_delay is very low (%s) and may get the crawler blocked.", sc.RateLimitDelay)
	}
	if sc.MaxAttempts < 1 {
		res.addErr("scraping.max_attempts must be >= 1")
	}
	if sc.RunTimeout <= 0 {
		res.addErr("scraping.run_timeout must be > 0")
	}
	if sc.CompanyTimeout <= 0 {
		res.addErr("scraping.company_timeout must be > 0")
	} else if sc.RunTimeout > 0 && sc.CompanyTimeout > sc.RunTimeout {
		res.addWarn("scraping.company_timeout (%s) exceeds scraping.run_timeout (%s)", sc.CompanyTimeout, sc.RunTimeout)
	}
	if strings.TrimSpace(sc.UserAgent) == "" {
		res.addErr("scraping.user_agent is required")
	}

	if s.Polling.Enabled && s.Polling.Interval < 15*time.Minute {
		res.addWarn("polling.interval is very low (%s); career pages rarely change that fast.", s.Polling.Interval)
	}

	for _, f := range s.Output.Formats {
		switch strings.ToLower(f) {
		case "table", "json", "csv", "all":
		default:
			res.addErr("output.formats: unknown format %q", f)
		}
	}

	if !s.Filters.RemoteOK && len(s.Filters.LocationsAllow) == 0 && !s.Filters.USOnly {
		res.addWarn("remote_ok is false and locations_allow is empty; remote postings all fail the location check and everything else passes.")
	}

	blockSet := map[string]bool{}
	for _, b := range s.Filters.LocationsBlock {
		blockSet[strings.ToLower(b)] = true
	}
	for _, a := range s.Filters.LocationsAllow {
		if blockSet[strings.ToLower(a)] {
			res.addWarn("location appears in both allow and block: %q", a)
		}
	}
}

func validateJobTypes(jt *JobTypes, res *Validation) {
	if jt.MinScore < 0 || jt.MinScore > 1 {
		res.addErr("job_types.min_score must be within [0,1]")
	}
	if jt.TitleWeight < 1 {
		res.addErr("job_types.title_weight must be >= 1")
	}
	if jt.Saturation <= 0 {
		res.addErr("job_types.saturation must be > 0")
	}
	if jt.SeniorityMultiplier < 1 {
		res.addErr("job_types.seniority_multiplier must be >= 1")
	}
	jt.NewGradSignals = trimList(jt.NewGradSignals)
	if len(jt.NewGradSignals) == 0 {
		res.addWarn("job_types.new_grad_signals is empty; every penalty gets the seniority multiplier.")
	}

	checkRules := func(name string, rules []Rule) {
		for i, r := range rules {
			if r.Weight <= 0 {
				res.addErr("%s[%d].weight must be > 0", name, i)
			}
			if len(r.Any) == 0 {
				res.addErr("%s[%d].any must have at least 1 term", name, i)
			}
			for j, term := range r.Any {
				if strings.TrimSpace(term) == "" {
					res.addErr("%s[%d].any[%d] cannot be empty", name, i, j)
				}
			}
		}
	}

	checkRules("job_types.negative_keywords", jt.NegativeKeywords)

	if len(jt.Categories) == 0 {
		res.addErr("job_types.categories must define at least one category")
	}
	names := make([]string, 0, len(jt.Categories))
	for name := range jt.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := domain.Category(name)
		if !c.Valid() || c == domain.CategoryOther {
			res.addErr("job_types.categories: unknown category %q", name)
			continue
		}
		rules := jt.Categories[name]
		if len(rules.Keywords) == 0 {
			res.addWarn("job_types.categories.%s has no keywords and can never win", name)
		}
		checkRules("job_types.categories."+name+".keywords", rules.Keywords)
		checkRules("job_types.categories."+name+".negative_keywords", rules.NegativeKeywords)
	}
}

func validateCompanies(cs Companies, res *Validation) {
	if len(cs) == 0 {
		res.addErr("companies.yml lists no companies")
		return
	}
	seen := map[string]string{}
	for _, tier := range cs.tierOrder() {
		if !domain.Tier(tier).Valid() {
			res.addWarn("companies: unknown tier %q; its companies will fail validation", tier)
		}
		for i, e := range cs[tier] {
			name := strings.TrimSpace(e.Name)
			if name == "" {
				res.addWarn("companies.%s[%d] has no name", tier, i)
				continue
			}
			key := strings.ToLower(name)
			if prev, ok := seen[key]; ok {
				res.addWarn("company %q listed twice (tiers %s and %s)", name, prev, tier)
			}
			seen[key] = tier
			if e.Extractor != "" && !domain.ExtractorKind(strings.ToLower(e.Extractor)).Valid() {
				res.addWarn("company %q: unknown extractor %q", name, e.Extractor)
			}
		}
	}
}
