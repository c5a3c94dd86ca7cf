package rank

import "gradscout-engine/internal/domain"

// Classifier assigns a category and match score to a posting. It must be safe for
// concurrent use.
type Classifier interface {
	Classify(p domain.RawPosting) domain.ScoredJob
}
