package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SettingsFile  = "settings.yml"
	CompaniesFile = "companies.yml"
	JobTypesFile  = "job_types.yml"
)

// Rule is one weighted keyword group. It fires at most once per posting, on the
// first term that matches.
type Rule struct {
	Tag    string   `yaml:"tag" json:"tag"`
	Weight float64  `yaml:"weight" json:"weight"`
	Any    []string `yaml:"any" json:"any"`
}

type CategoryRules struct {
	Keywords         []Rule `yaml:"keywords" json:"keywords"`
	NegativeKeywords []Rule `yaml:"negative_keywords" json:"negative_keywords"`
}

type JobTypes struct {
	MinScore            float64                  `yaml:"min_score" json:"min_score"`
	TitleWeight         float64                  `yaml:"title_weight" json:"title_weight"`
	Saturation          float64                  `yaml:"saturation" json:"saturation"`
	SeniorityMultiplier float64                  `yaml:"seniority_multiplier" json:"seniority_multiplier"`
	NewGradSignals      []string                 `yaml:"new_grad_signals" json:"new_grad_signals"`
	NegativeKeywords    []Rule                   `yaml:"negative_keywords" json:"negative_keywords"`
	Categories          map[string]CategoryRules `yaml:"categories" json:"categories"`
}

type Filters struct {
	RemoteOK       bool     `yaml:"remote_ok" json:"remote_ok"`
	USOnly         bool     `yaml:"us_only" json:"us_only"`
	LocationsAllow []string `yaml:"locations_allow" json:"locations_allow"`
	LocationsBlock []string `yaml:"locations_block" json:"locations_block"`
}

type Settings struct {
	App struct {
		Port         int           `yaml:"port" json:"port"`
		DataDir      string        `yaml:"data_dir" json:"data_dir"`
		LogLevel     string        `yaml:"log_level" json:"log_level"`
		LogFormat    string        `yaml:"log_format" json:"log_format"`
		JobRetention time.Duration `yaml:"job_retention" json:"job_retention"`
	} `yaml:"app" json:"app"`

	Scraping struct {
		Concurrency     int           `yaml:"concurrency" json:"concurrency"`
		RateLimitDelay  time.Duration `yaml:"rate_limit_delay" json:"rate_limit_delay"`
		Jitter          time.Duration `yaml:"jitter" json:"jitter"`
		HostBudgetPer5m int           `yaml:"host_budget_per_5m" json:"host_budget_per_5m"`
		RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
		CompanyTimeout  time.Duration `yaml:"company_timeout" json:"company_timeout"`
		RunTimeout      time.Duration `yaml:"run_timeout" json:"run_timeout"`
		MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
		BackoffInitial  time.Duration `yaml:"backoff_initial" json:"backoff_initial"`
		BackoffMax      time.Duration `yaml:"backoff_max" json:"backoff_max"`
		UserAgent       string        `yaml:"user_agent" json:"user_agent"`
	} `yaml:"scraping" json:"scraping"`

	Polling struct {
		Enabled    bool          `yaml:"enabled" json:"enabled"`
		Interval   time.Duration `yaml:"interval" json:"interval"`
		RunOnStart bool          `yaml:"run_on_start" json:"run_on_start"`
	} `yaml:"polling" json:"polling"`

	Output struct {
		Directory string   `yaml:"directory" json:"directory"`
		Formats   []string `yaml:"formats" json:"formats"`
	} `yaml:"output" json:"output"`

	Filters Filters `yaml:"filters" json:"filters"`
}

// Config is everything loaded from one config directory.
type Config struct {
	Dir       string    `yaml:"-" json:"dir"`
	Settings  Settings  `yaml:"settings" json:"settings"`
	Companies Companies `yaml:"companies" json:"companies"`
	JobTypes  JobTypes  `yaml:"job_types" json:"job_types"`
}

// Defaults returns the settings used for every key a settings file leaves out.
func Defaults() Settings {
	var s Settings
	s.App.Port = 38471
	s.App.DataDir = "data"
	s.App.LogLevel = "info"
	s.App.LogFormat = "text"
	s.App.JobRetention = 90 * 24 * time.Hour

	s.Scraping.Concurrency = 5
	s.Scraping.RateLimitDelay = 2 * time.Second
	s.Scraping.Jitter = 500 * time.Millisecond
	s.Scraping.HostBudgetPer5m = 50
	s.Scraping.RequestTimeout = 20 * time.Second
	s.Scraping.CompanyTimeout = 2 * time.Minute
	s.Scraping.RunTimeout = 10 * time.Minute
	s.Scraping.MaxAttempts = 3
	s.Scraping.BackoffInitial = 500 * time.Millisecond
	s.Scraping.BackoffMax = 8 * time.Second
	s.Scraping.UserAgent = "gradscout/1.0 (+new-grad job search; polite crawler)"

	s.Polling.Interval = 6 * time.Hour

	s.Output.Directory = "output"
	s.Output.Formats = []string{"table"}

	s.Filters.RemoteOK = true
	return s
}

func DefaultJobTypes() JobTypes {
	return JobTypes{
		MinScore:            0.3,
		TitleWeight:         2,
		Saturation:          3,
		SeniorityMultiplier: 2,
	}
}

// Load reads settings.yml, companies.yml and job_types.yml from dir, then applies
// .env and GRADSCOUT_* overrides. A missing settings file means defaults; the
// other two are required.
func Load(dir string) (Config, error) {
	cfg := Config{Dir: dir, Settings: Defaults(), JobTypes: DefaultJobTypes()}

	if err := readYAML(filepath.Join(dir, SettingsFile), &cfg.Settings, true); err != nil {
		return cfg, err
	}
	if err := readYAML(filepath.Join(dir, CompaniesFile), &cfg.Companies, false); err != nil {
		return cfg, err
	}
	if err := readYAML(filepath.Join(dir, JobTypesFile), &cfg.JobTypes, false); err != nil {
		return cfg, err
	}

	if err := ApplyEnv(&cfg.Settings, dir); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readYAML(path string, v any, optional bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
