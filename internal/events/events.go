package events

import (
	"encoding/json"
	"time"

	"gradscout-engine/internal/domain"
)

type Type string

const (
	TypePing        Type = "ping"
	TypeRunStarted  Type = "run_started"
	TypeCompanyDone Type = "company_done"
	TypeRunFinished Type = "run_finished"
	TypeRunFailed   Type = "run_failed"
)

const schemaVersion = 1

// Event is one progress notification for a scrape run, as sent over SSE.
type Event struct {
	Type      Type            `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RunID     string          `json:"run_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CompanyProgress is the payload of company_done.
type CompanyProgress struct {
	Company string        `json:"company"`
	Tier    domain.Tier   `json:"tier"`
	Status  domain.Status `json:"status"`
	Cause   string        `json:"cause"`
	Jobs    int           `json:"jobs"`
}

// RunProgress is the payload of run_started, run_finished and run_failed.
type RunProgress struct {
	Companies int             `json:"companies,omitempty"`
	Summary   *domain.Summary `json:"summary,omitempty"`
	NewJobs   int             `json:"new_jobs,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func New(typ Type, runID string, data any) Event {
	e := Event{Type: typ, Version: schemaVersion, At: time.Now().UTC(), RunID: runID}
	if data != nil {
		e.Data, _ = json.Marshal(data)
	}
	return e
}

func CompanyDone(runID string, c domain.CompanyResult) Event {
	return New(TypeCompanyDone, runID, CompanyProgress{
		Company: c.Company,
		Tier:    c.Tier,
		Status:  c.Status,
		Cause:   c.Cause(),
		Jobs:    len(c.Jobs),
	})
}

func RunFinished(res *domain.JobSearchResult, added int) Event {
	return New(TypeRunFinished, res.RunID, RunProgress{Summary: &res.Summary, NewJobs: added})
}

func RunFailed(runID string, err error) Event {
	return New(TypeRunFailed, runID, RunProgress{Error: err.Error()})
}

// Encode renders e as a single SSE data line.
func (e Event) Encode() []byte {
	b, _ := json.Marshal(e)
	return b
}
