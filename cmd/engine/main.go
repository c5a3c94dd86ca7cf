package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/events"
	"gradscout-engine/internal/httpapi"
	"gradscout-engine/internal/logger"
	"gradscout-engine/internal/poll"
	"gradscout-engine/internal/report"
	"gradscout-engine/internal/store"
)

const usage = `gradscout engine

Usage:
  engine scrape [flags]          scrape configured companies and print results
  engine list-companies [flags]  show configured companies grouped by tier
  engine validate [flags]        check the config directory
  engine serve [flags]           run the local API with scheduled polling

Run "engine <command> -h" for command flags.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "scrape":
		err = cmdScrape(args[1:], stdout, stderr)
	case "list-companies":
		err = cmdListCompanies(args[1:], stdout, stderr)
	case "validate":
		err = cmdValidate(args[1:], stdout, stderr)
	case "serve":
		err = cmdServe(args[1:], stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func defaultConfigDir() string {
	if v := os.Getenv("GRADSCOUT_CONFIG_DIR"); v != "" {
		return v
	}
	return "config"
}

// loadConfig loads and validates dir. Warnings are logged; errors are fatal.
func loadConfig(dir string, log *slog.Logger) (config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return config.Config{}, fmt.Errorf("config load failed (%s): %w", dir, err)
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.Warn("[config] " + w)
	}
	if err := vr.Err(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func cmdScrape(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configDir     = fs.String("config-dir", defaultConfigDir(), "directory holding settings.yml, companies.yml and job_types.yml")
		tiers         = fs.String("tiers", "", "comma-separated tiers to scrape (default all)")
		companies     = fs.String("companies", "", "comma-separated company names to scrape (default all)")
		format        = fs.String("format", "", "output format: table, json, csv or all (default from settings)")
		save          = fs.Bool("save", false, "also write results to the output directory")
		outputDir     = fs.String("output-dir", "", "where --save writes files (default from settings)")
		maxConcurrent = fs.Int("max-concurrent", 0, "max companies scraped at once (default from settings)")
		top           = fs.Int("top", 0, "rows shown in the table (default 30)")
		includeOther  = fs.Bool("include-other", false, "show postings classified as other in the table")
		noDB          = fs.Bool("no-db", false, "do not record the run in the data directory")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	boot, _ := logger.New(stderr, "info", "text")
	cfg, err := loadConfig(*configDir, boot)
	if err != nil {
		return err
	}
	log, _ := logger.New(stderr, cfg.Settings.App.LogLevel, cfg.Settings.App.LogFormat)

	if *maxConcurrent > 0 {
		cfg.Settings.Scraping.Concurrency = *maxConcurrent
	}
	formats := cfg.Settings.Output.Formats
	if *format != "" {
		formats = []string{*format}
	}
	formats = report.Formats(formats)
	if len(formats) == 0 {
		return fmt.Errorf("unknown --format %q (want table, json, csv or all)", *format)
	}

	sel := config.Selection{Tiers: splitList(*tiers), Companies: splitList(*companies)}
	if len(cfg.Companies.CompanyConfigs(sel)) == 0 {
		return fmt.Errorf("no companies match --tiers=%q --companies=%q", *tiers, *companies)
	}

	var db *store.DB
	if !*noDB {
		db, err = store.OpenDataDir(cfg.Settings.App.DataDir)
		switch {
		case errors.Is(err, store.ErrLocked):
			log.Warn("[scrape] data dir in use by another process; run will not be recorded", "data_dir", cfg.Settings.App.DataDir)
			db = nil
		case err != nil:
			return err
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := poll.NewRunner(poolOf(db), cfg, nil, log)
	res, added, err := runner.RunOnce(ctx, sel)
	if err != nil {
		return err
	}
	if db != nil {
		log.Info("[scrape] recorded run", "run_id", res.RunID, "new_jobs", added)
	}

	opts := report.Options{TopN: *top, IncludeOther: *includeOther}
	for _, f := range formats {
		if err := writeFormat(stdout, f, res, opts); err != nil {
			return err
		}
	}

	if *save {
		dir := *outputDir
		if dir == "" {
			dir = cfg.Settings.Output.Directory
		}
		paths, err := report.Save(dir, res, formats, opts)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(stderr, "saved %s\n", p)
		}
	}
	return nil
}

func writeFormat(w io.Writer, format string, res *domain.JobSearchResult, opts report.Options) error {
	switch format {
	case report.FormatJSON:
		return report.WriteJSON(w, res)
	case report.FormatCSV:
		return report.WriteCSV(w, res)
	default:
		return report.WriteTable(w, res, opts)
	}
}

func cmdListCompanies(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list-companies", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config-dir", defaultConfigDir(), "config directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		return err
	}

	byTier := cfg.Companies.ByTier()
	total := 0
	for _, tier := range tierNames(byTier) {
		names := byTier[tier]
		total += len(names)
		fmt.Fprintf(stdout, "%s (%d):\n", strings.ToUpper(strings.ReplaceAll(tier, "_", " ")), len(names))
		for _, n := range names {
			fmt.Fprintf(stdout, "  - %s\n", n)
		}
		fmt.Fprintln(stdout)
	}
	fmt.Fprintf(stdout, "Total: %d companies\n", total)
	return nil
}

// tierNames lists known tiers in their fixed order, then anything else.
func tierNames(byTier map[string][]string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range domain.Tiers {
		if _, ok := byTier[string(t)]; ok {
			out = append(out, string(t))
			seen[string(t)] = true
		}
	}
	var rest []string
	for t := range byTier {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	return append(out, sortedStrings(rest)...)
}

func cmdValidate(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config-dir", defaultConfigDir(), "config directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		return err
	}
	_, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}
	for _, e := range vr.Errors {
		fmt.Fprintf(stdout, "error: %s\n", e)
	}
	if !vr.OK() {
		return fmt.Errorf("%d config error(s)", len(vr.Errors))
	}
	fmt.Fprintln(stdout, "config ok")
	return nil
}

func cmdServe(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		defaultsDir = fs.String("config-dir", defaultConfigDir(), "default config copied into the data dir on first start")
		dataDir     = fs.String("data-dir", os.Getenv("GRADSCOUT_DATA_DIR"), "engine data directory (default ./data)")
		port        = fs.Int("port", 0, "listen port on 127.0.0.1 (default from settings)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataDir == "" {
		*dataDir = "data"
	}

	boot, _ := logger.New(stderr, "info", "text")
	userDir, err := config.EnsureUserConfig(*dataDir, *defaultsDir)
	if err != nil {
		return fmt.Errorf("config bootstrap failed: %w", err)
	}
	loadCfg := func() (config.Config, error) { return loadConfig(userDir, boot) }
	cfg, err := loadCfg()
	if err != nil {
		return err
	}
	log, _ := logger.New(stderr, cfg.Settings.App.LogLevel, cfg.Settings.App.LogFormat)

	db, err := store.OpenDataDir(*dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()
	runner := poll.NewRunner(db.Pool, cfg, hub, log)
	poll.StartPoller(ctx, runner, log)

	router := httpapi.NewRouter(httpapi.Deps{
		DB:        db.Pool,
		Hub:       hub,
		Runner:    runner,
		ConfigDir: userDir,
		LoadCfg:   loadCfg,
		Log:       log,
	})

	p := cfg.Settings.App.Port
	if *port > 0 {
		p = *port
	}
	addr := fmt.Sprintf("127.0.0.1:%d", p)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := randomToken(16)
	if err != nil {
		return err
	}
	router.Post("/shutdown", shutdownHandler(token, srv, log))
	// the parent process reads this line to learn the shutdown token
	fmt.Fprintf(os.Stdout, "GRADSCOUT_SHUTDOWN_TOKEN=%s\n", token)

	log.Info("engine listening", "addr", "http://"+addr, "db", filepath.Join(*dataDir, store.DBFile), "config", userDir)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("engine shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
