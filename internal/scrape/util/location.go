package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FindLocation digs a location out of a single posting page. Used when a list
// endpoint leaves the location blank.
func FindLocation(doc *goquery.Document) string {
	candidates := []string{
		".posting-categories .location",
		".posting-category.location",
		".location",
		".job__location",
		"[data-testid='job-location']",
		"[data-testid='location']",
	}

	for _, sel := range candidates {
		if t := CleanText(doc.Find(sel).First().Text()); t != "" {
			return NormalizeLocation(t)
		}
	}

	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if loc := ExtractLocationFromLabeledText(v); loc != "" {
			return NormalizeLocation(loc)
		}
	}

	body := CleanText(doc.Find("body").Text())
	if loc := ExtractLocationFromLabeledText(body); loc != "" {
		return NormalizeLocation(loc)
	}

	return ""
}

// ExtractLocationFromLabeledText returns the text after a "Location:" label.
func ExtractLocationFromLabeledText(s string) string {
	low := strings.ToLower(s)

	for _, lab := range []string{"job location:", "locations:", "location:"} {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		rest := strings.TrimSpace(s[i+len(lab):])
		for _, cut := range []string{"\n", "\r", " | ", " · "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		rest = CleanText(rest)
		if rest != "" && len(rest) <= 80 {
			return rest
		}
	}
	return ""
}

func LooksLikeJunkTitle(t string) bool {
	l := strings.ToLower(CleanText(t))
	switch l {
	case "", "view", "apply", "apply now", "view job", "learn more", "see details":
		return true
	}
	return false
}
