package httpapi

import (
	"database/sql"
	"log/slog"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/events"
	"gradscout-engine/internal/poll"
)

type Deps struct {
	DB *sql.DB

	Hub *events.Hub

	// Runner holds the live config and scrape status.
	Runner *poll.Runner

	// Config persistence
	ConfigDir string
	LoadCfg   func() (config.Config, error)

	Log *slog.Logger
}
