package httpapi

// RunRequest narrows a manual run. Empty fields mean every configured company.
type RunRequest struct {
	Tiers     []string `json:"tiers"`
	Companies []string `json:"companies"`
}

type RunAccepted struct {
	OK        bool `json:"ok"`
	Companies int  `json:"companies"`
}
