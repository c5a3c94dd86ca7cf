package rank

import (
	"math"
	"sort"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/domain"
)

type rule struct {
	tag    string
	weight float64
	terms  []string // normalized, sorted
}

type categoryTable struct {
	category domain.Category
	positive []rule
	negative []rule
}

// Matcher classifies postings against the job_types tables. Tables are compiled
// once in NewMatcher; Classify only reads them, so one Matcher serves every worker.
type Matcher struct {
	minScore      float64
	titleWeight   float64
	saturation    float64
	seniorityMult float64

	signals    []string
	negative   []rule
	categories []categoryTable // CategoryPriority order

	location *LocationFilter
}

// NewMatcher compiles jt. A nil loc means every location is acceptable.
func NewMatcher(jt config.JobTypes, loc *LocationFilter) *Matcher {
	def := config.DefaultJobTypes()
	m := &Matcher{
		minScore:      jt.MinScore,
		titleWeight:   jt.TitleWeight,
		saturation:    jt.Saturation,
		seniorityMult: jt.SeniorityMultiplier,
		signals:       compileTerms(jt.NewGradSignals),
		negative:      compileRules(jt.NegativeKeywords),
		location:      loc,
	}
	if m.titleWeight <= 0 {
		m.titleWeight = def.TitleWeight
	}
	if m.saturation <= 0 {
		m.saturation = def.Saturation
	}
	if m.seniorityMult <= 0 {
		m.seniorityMult = def.SeniorityMultiplier
	}

	for _, cat := range domain.CategoryPriority {
		rules, ok := jt.Categories[string(cat)]
		if !ok {
			continue
		}
		m.categories = append(m.categories, categoryTable{
			category: cat,
			positive: compileRules(rules.Keywords),
			negative: compileRules(rules.NegativeKeywords),
		})
	}
	return m
}

func compileTerms(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range in {
		n := Normalize(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func compileRules(in []config.Rule) []rule {
	out := make([]rule, 0, len(in))
	for _, r := range in {
		terms := compileTerms(r.Any)
		if len(terms) == 0 || r.Weight <= 0 {
			continue
		}
		tag := r.Tag
		if tag == "" {
			tag = terms[0]
		}
		out = append(out, rule{tag: tag, weight: r.Weight, terms: terms})
	}
	return out
}

// hit returns the rule's contribution: weight*titleWeight for a title match,
// weight for a body-only match, 0 otherwise.
func (m *Matcher) hit(r rule, title, body string) float64 {
	for _, t := range r.terms {
		if containsPhrase(title, t) {
			return r.weight * m.titleWeight
		}
	}
	for _, t := range r.terms {
		if containsPhrase(body, t) {
			return r.weight
		}
	}
	return 0
}

func (m *Matcher) sum(rules []rule, title, body string) (total float64, tags []string) {
	for _, r := range rules {
		if w := m.hit(r, title, body); w > 0 {
			total += w
			tags = append(tags, r.tag)
		}
	}
	return total, tags
}

func (m *Matcher) isNewGrad(title, body string) bool {
	for _, s := range m.signals {
		if containsPhrase(title, s) || containsPhrase(body, s) {
			return true
		}
	}
	return false
}

// Classify scores p against every configured category and keeps the best one.
// Ties go to the earlier category in domain.CategoryPriority. A best score below
// min_score (or no positive keyword at all) yields CategoryOther with the score
// still reported.
func (m *Matcher) Classify(p domain.RawPosting) domain.ScoredJob {
	title := padded(p.Title)
	body := padded(p.Description)

	newGrad := m.isNewGrad(title, body)
	globalPenalty, _ := m.sum(m.negative, title, body)

	out := domain.ScoredJob{
		RawPosting: p,
		Category:   domain.CategoryOther,
		NewGrad:    newGrad,
		LocationOK: m.location.Allows(p),
	}

	found := false
	var bestPositive float64
	for _, ct := range m.categories {
		raw, tags := m.sum(ct.positive, title, body)
		positive := 1 - math.Exp(-raw/m.saturation)

		catPenalty, _ := m.sum(ct.negative, title, body)
		penalty := globalPenalty + catPenalty
		if !newGrad {
			penalty *= m.seniorityMult
		}

		rs := positive - penalty
		if !found || rs > out.RawScore {
			found = true
			bestPositive = raw
			out.Category = ct.category
			out.RawScore = rs
			out.Penalty = penalty
			out.Tags = uniq(tags)
		}
	}

	out.Score = clamp01(out.RawScore)
	if !found || bestPositive == 0 || out.Score < m.minScore {
		out.Category = domain.CategoryOther
		out.Tags = nil
	}
	if !found {
		out.Penalty = globalPenalty
		if !newGrad {
			out.Penalty *= m.seniorityMult
		}
	}
	return out
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func uniq(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
