package rank

import (
	"regexp"
	"strings"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/domain"
)

// LocationFilter decides ScoredJob.LocationOK. It never drops a posting.
type LocationFilter struct {
	remoteOK bool
	usOnly   bool
	allow    []string
	block    []string
}

func NewLocationFilter(f config.Filters) *LocationFilter {
	return &LocationFilter{
		remoteOK: f.RemoteOK,
		usOnly:   f.USOnly,
		allow:    compileTerms(f.LocationsAllow),
		block:    compileTerms(f.LocationsBlock),
	}
}

// Allows applies, in order: blocklist, remote handling, US-only, allowlist.
// A posting with no location at all is allowed; there is nothing to judge.
func (f *LocationFilter) Allows(p domain.RawPosting) bool {
	if f == nil {
		return true
	}
	loc := padded(p.Location)
	title := padded(p.Title)

	// Blocklist wins
	for _, b := range f.block {
		if containsPhrase(loc, b) || containsPhrase(title, b) {
			return false
		}
	}

	if strings.TrimSpace(loc) == "" {
		return true
	}

	isRemote := p.WorkMode == "Remote" || containsPhrase(loc, "remote") || containsPhrase(title, "remote")
	if isRemote {
		if !f.remoteOK {
			return false
		}
		return !f.usOnly || !hasAny(loc, nonUSPlaces)
	}

	if f.usOnly && !isUS(p.Location) {
		return false
	}

	if len(f.allow) == 0 {
		return true
	}
	for _, a := range f.allow {
		if containsPhrase(loc, a) || containsPhrase(title, a) {
			return true
		}
	}
	return false
}

// IsUSLocation reports whether a free-form location reads as United States.
// Non-US places are checked first so "Toronto, CA" is not taken for California.
func IsUSLocation(location string) bool {
	return isUS(location)
}

func isUS(raw string) bool {
	loc := padded(raw)
	switch strings.TrimSpace(loc) {
	case "", "unknown", "unknown location", "n a":
		return false
	}
	if hasAny(loc, nonUSPlaces) {
		return false
	}
	return hasAny(loc, usPlaces) || stateCode.MatchString(raw)
}

func hasAny(loc string, places []string) bool {
	for _, p := range places {
		if containsPhrase(loc, p) {
			return true
		}
	}
	return false
}

var usPlaces = compileTerms([]string{
	"usa", "united states", "us", "america",
	"california", "new york", "texas", "florida", "washington", "oregon",
	"colorado", "illinois", "massachusetts", "virginia", "north carolina",
	"georgia", "ohio", "pennsylvania", "michigan", "arizona", "nevada",
	"utah", "connecticut", "new jersey", "maryland", "tennessee",
	"san francisco", "los angeles", "seattle", "chicago", "boston",
	"new york city", "nyc", "austin", "denver", "atlanta", "miami",
	"san diego", "phoenix", "philadelphia", "dallas", "houston",
	"portland", "minneapolis", "detroit", "las vegas", "nashville",
	"raleigh", "durham", "richmond", "arlington", "alexandria",
	"palo alto", "mountain view", "menlo park", "santa clara",
	"cupertino", "sunnyvale", "fremont", "redmond", "bellevue",
	"work from home", "wfh", "telecommute",
})

// stateCode matches a two-letter state only in "City, ST" position; bare
// codes like "or" and "co" read as ordinary words.
var stateCode = regexp.MustCompile(`(?i),\s*(ca|ny|tx|fl|wa|or|co|il|ma|va|nc|ga|oh|pa|mi|az|nv|ut|ct|nj|md|tn|dc)\b`)

var nonUSPlaces = compileTerms([]string{
	"canada", "toronto", "vancouver", "montreal", "ottawa",
	"london", "uk", "united kingdom", "england", "scotland",
	"ireland", "dublin", "germany", "berlin", "munich",
	"france", "paris", "netherlands", "amsterdam", "sweden",
	"stockholm", "norway", "oslo", "denmark", "copenhagen",
	"australia", "sydney", "melbourne", "singapore", "japan",
	"tokyo", "china", "beijing", "shanghai", "india", "bangalore",
	"mumbai", "hyderabad", "israel", "tel aviv", "brazil",
	"mexico", "argentina", "poland", "warsaw", "czech republic",
	"prague", "ukraine", "kyiv", "romania", "bucharest",
})
