package types

import (
	"context"

	"gradscout-engine/internal/domain"
)

// Extractor turns one company's careers source into raw postings.
//
// A non-nil error together with postings means the extraction was partial:
// the postings are usable but some listings (or pages) could not be read.
type Extractor interface {
	Kind() domain.ExtractorKind
	Extract(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error)
}

type ScrapeStatus struct {
	LastRunID string `json:"last_run_id"`
	LastRunAt string `json:"last_run_at"`
	LastOkAt  string `json:"last_ok_at"`
	LastError string `json:"last_error"`
	LastAdded int    `json:"last_added"`
	Running   bool   `json:"running"`
}
