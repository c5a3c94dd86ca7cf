package domain

import "time"

// RawPosting is an unclassified listing exactly as an extractor produced it.
type RawPosting struct {
	Company     string     `json:"company"`
	Tier        Tier       `json:"tier"`
	Title       string     `json:"title"`
	Location    string     `json:"location"`
	WorkMode    string     `json:"work_mode"` // Remote/Hybrid/Onsite/Unknown
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	Department  string     `json:"department,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	SourceID    string     `json:"source_id"`
}

type Category string

const (
	CategorySoftwareEngineering  Category = "software_engineering"
	CategoryMachineLearning      Category = "machine_learning"
	CategoryDataScience          Category = "data_science"
	CategoryQuantitativeResearch Category = "quantitative_research"
	CategoryOther                Category = "other"
)

// CategoryPriority is the tie-break order; earlier wins.
var CategoryPriority = []Category{
	CategorySoftwareEngineering,
	CategoryMachineLearning,
	CategoryDataScience,
	CategoryQuantitativeResearch,
}

func (c Category) Valid() bool {
	if c == CategoryOther {
		return true
	}
	for _, x := range CategoryPriority {
		if x == c {
			return true
		}
	}
	return false
}

// ScoredJob is a RawPosting after classification. Score is clamped to [0,1];
// RawScore keeps the unclamped value so penalized postings stay auditable.
type ScoredJob struct {
	RawPosting

	Category   Category `json:"category"`
	Score      float64  `json:"match_score"`
	RawScore   float64  `json:"raw_score"`
	Penalty    float64  `json:"penalty"`
	NewGrad    bool     `json:"new_grad"`
	Tags       []string `json:"tags,omitempty"`
	LocationOK bool     `json:"location_ok"`
}
