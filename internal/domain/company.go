package domain

import (
	"strings"
	"time"
)

type Tier string

const (
	TierBigTech                   Tier = "big_tech"
	TierDataAndAI                 Tier = "data_and_ai"
	TierMobilityAndTransport      Tier = "mobility_and_transport"
	TierSocialAndProfessional     Tier = "social_and_professional"
	TierTradingAndFinance         Tier = "trading_and_finance"
	TierFintechAndCrypto          Tier = "fintech_and_crypto"
	TierHardwareAndInfrastructure Tier = "hardware_and_infrastructure"
	TierEnterpriseAndCloud        Tier = "enterprise_and_cloud"
)

var Tiers = []Tier{
	TierBigTech,
	TierDataAndAI,
	TierMobilityAndTransport,
	TierSocialAndProfessional,
	TierTradingAndFinance,
	TierFintechAndCrypto,
	TierHardwareAndInfrastructure,
	TierEnterpriseAndCloud,
}

func (t Tier) Valid() bool {
	for _, x := range Tiers {
		if x == t {
			return true
		}
	}
	return false
}

// ExtractorKind is the variant tag that selects an extraction strategy.
type ExtractorKind string

const (
	KindGeneric         ExtractorKind = "generic"
	KindGreenhouse      ExtractorKind = "greenhouse"
	KindLever           ExtractorKind = "lever"
	KindSmartRecruiters ExtractorKind = "smartrecruiters"
)

func (k ExtractorKind) Valid() bool {
	switch k {
	case KindGeneric, KindGreenhouse, KindLever, KindSmartRecruiters:
		return true
	}
	return false
}

// InferExtractorKind picks a variant from the careers URL host when a company
// has no explicit tag.
func InferExtractorKind(careersURL string) ExtractorKind {
	u := strings.ToLower(careersURL)
	switch {
	case strings.Contains(u, "greenhouse.io"):
		return KindGreenhouse
	case strings.Contains(u, "lever.co"):
		return KindLever
	case strings.Contains(u, "smartrecruiters.com"):
		return KindSmartRecruiters
	default:
		return KindGeneric
	}
}

// Selectors drive the generic extractor. Only Title and Link are required.
type Selectors struct {
	Listing     string `yaml:"listing" json:"listing,omitempty"`
	Title       string `yaml:"job_title" json:"job_title,omitempty"`
	Link        string `yaml:"job_links" json:"job_links,omitempty"`
	Location    string `yaml:"location" json:"location,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// CompanyConfig is loaded once and shared read-only by every worker.
type CompanyConfig struct {
	Name         string
	Tier         Tier
	CareersURL   string
	Extractor    ExtractorKind
	BoardToken   string // greenhouse board token / lever + smartrecruiters slug
	SearchParams map[string]string
	Selectors    Selectors

	PageParam    string // generic pagination query param, e.g. "page"
	MaxPages     int
	MaxListings  int
	RequestDelay time.Duration // overrides the limiter gap for this company when larger
}
