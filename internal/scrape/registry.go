package scrape

import (
	"log/slog"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/scrape/generic"
	"gradscout-engine/internal/scrape/greenhouse"
	"gradscout-engine/internal/scrape/lever"
	"gradscout-engine/internal/scrape/smartrecruiters"
	"gradscout-engine/internal/scrape/types"
	"gradscout-engine/internal/scrape/util"
)

// Registry resolves an extractor by its variant tag. Adding a variant means
// registering one more Extractor; the manager does not change.
type Registry struct {
	m map[domain.ExtractorKind]types.Extractor
}

func NewRegistry(exts ...types.Extractor) *Registry {
	r := &Registry{m: make(map[domain.ExtractorKind]types.Extractor, len(exts))}
	for _, e := range exts {
		r.Register(e)
	}
	return r
}

// DefaultRegistry wires every built-in extractor to the same paced client.
func DefaultRegistry(client *util.Client, log *slog.Logger) *Registry {
	return NewRegistry(
		generic.New(client, log),
		greenhouse.New(client, greenhouse.WithLogger(log)),
		lever.New(client, lever.WithLogger(log)),
		smartrecruiters.New(client),
	)
}

func (r *Registry) Register(e types.Extractor) {
	r.m[e.Kind()] = e
}

func (r *Registry) Get(kind domain.ExtractorKind) (types.Extractor, bool) {
	e, ok := r.m[kind]
	return e, ok
}
