// Command mugenblock is the in-page ad defense daemon.
//
// Usage:
//
//	mugenblock -config mugenblock.yaml        # defend pages from YAML config
//	mugenblock -url https://example.com       # quick single-page defense
//	mugenblock -hash-token <secret>           # print a control token hash
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/mugenyume/mugenblock/connectivity"
	"github.com/mugenyume/mugenblock/control"
	"github.com/mugenyume/mugenblock/dbopen"
	"github.com/mugenyume/mugenblock/live"
	"github.com/mugenyume/mugenblock/observability"
	"github.com/mugenyume/mugenblock/selector"
	"github.com/mugenyume/mugenblock/settings"
)

func main() {
	configPath := flag.String("config", "", "path to mugenblock.yaml config file")
	singleURL := flag.String("url", "", "defend a single URL")
	modeFlag := flag.String("mode", "", "mode override: off, standard, aggressive")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	hashToken := flag.String("hash-token", "", "print the bcrypt hash for a control API token and exit")
	flag.Parse()

	if *hashToken != "" {
		hash, err := control.HashToken(*hashToken)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *singleURL, *modeFlag); err != nil {
		logger.Error("mugenblock: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *AppConfig, singleURL, modeFlag string) error {
	if singleURL != "" {
		cfg.Pages = []PageConfig{{URL: singleURL, Mode: modeFlag}}
	}
	if len(cfg.Pages) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mugenblock -config <file> | -url <url>")
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	// Settings store.
	store, err := settings.Open(cfg.settingsPath(), logger)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	defer store.Close()
	svc := settings.NewService(store, logger)
	defer svc.Close()

	// Observability store.
	obsDB, err := dbopen.Open(cfg.observabilityPath(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer obsDB.Close()
	events := observability.NewEventLogger(obsDB)
	metrics := observability.NewMetricsManager(obsDB, 100, 5*time.Second)
	defer metrics.Close()
	go retentionLoop(ctx, obsDB, cfg, logger)

	// Connectivity router fronts every service surface.
	router := connectivity.New(connectivity.WithLogger(logger))
	router.RegisterTransport("http", connectivity.HTTPFactory())
	svc.RegisterConnectivity(router)
	defer router.Close()

	// Optional extra rules.
	var extra *selector.RuleFile
	if cfg.RulesFile != "" {
		extra, err = selector.LoadRuleFile(cfg.RulesFile)
		if err != nil {
			return fmt.Errorf("rules file: %w", err)
		}
	}

	// Browser.
	cfg.Browser.Logger = logger
	browser := live.NewBrowser(cfg.Browser)
	if err := browser.Start(ctx); err != nil {
		return err
	}
	defer browser.Close()

	// Sessions.
	var sessions []*live.Session
	for _, page := range cfg.Pages {
		sess, err := openSession(ctx, browser, svc, page, modeFlag, extra, logger)
		if err != nil {
			logger.Error("mugenblock: session failed", "url", page.URL, "error", err)
			continue
		}
		sessions = append(sessions, sess)
		events.LogEvent(ctx, observability.DefenseEvent{
			EventType: observability.EventSession,
			Site:      siteOf(page.URL),
			SessionID: sess.ID(),
			Detail:    `{"state":"open"}`,
			Success:   true,
		})
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no session could be opened")
	}
	defer func() {
		for _, s := range sessions {
			s.Close()
		}
	}()

	// The first session's engine serves the stats surfaces.
	primary := sessions[0].Engine()
	primary.RegisterConnectivity(router)
	go sampleStats(ctx, sessions, metrics)

	// Control API.
	if cfg.Control.Enabled {
		ctrl := control.New(cfg.Control.Config, router, logger)
		go func() {
			if err := ctrl.ListenAndServe(); err != nil && ctx.Err() == nil {
				logger.Error("control: server", "error", err)
			}
		}()
		defer func() {
			sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ctrl.Shutdown(sdCtx)
		}()
	}

	// MCP over stdio.
	if cfg.MCP.Transport == "stdio" {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "mugenblock",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(srv)
		primary.RegisterMCP(srv)
		go func() {
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp: server", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("mugenblock: shutting down")
	return nil
}

// openSession resolves the site's stored settings and attaches the engine to
// a fresh tab.
func openSession(ctx context.Context, browser *live.Browser, svc *settings.Service,
	page PageConfig, modeFlag string, extra *selector.RuleFile, logger *slog.Logger) (*live.Session, error) {

	site := siteOf(page.URL)
	set, err := svc.Get(ctx, site)
	if err != nil {
		return nil, err
	}

	mode := set.EffectiveMode(time.Now())
	if page.Mode != "" {
		mode = page.Mode
	}
	if modeFlag != "" {
		mode = modeFlag
	}

	rules := selector.Build(site, selector.ParseMode(mode), extra)
	return live.Open(ctx, browser, live.SessionConfig{
		URL:            page.URL,
		Rules:          rules,
		Classification: !set.ClassificationOff,
		Interception:   !set.InterceptionOff,
		Logger:         logger,
	})
}

func siteOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

// sampleStats records engine counters into the metrics timeseries.
func sampleStats(ctx context.Context, sessions []*live.Session, mm *observability.MetricsManager) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range sessions {
				st := s.Engine().Stats()
				labels := map[string]string{"site": st.Site}
				mm.Record(&observability.Metric{
					Name: "engine_hides", Timestamp: time.Now(),
					Value: float64(st.Hides), Labels: labels, Unit: "count",
				})
				mm.Record(&observability.Metric{
					Name: "engine_queue_len", Timestamp: time.Now(),
					Value: float64(st.QueueLen), Labels: labels, Unit: "count",
				})
				mm.Record(&observability.Metric{
					Name: "engine_batches", Timestamp: time.Now(),
					Value: float64(st.Batches), Labels: labels, Unit: "count",
				})
			}
		}
	}
}

// retentionLoop prunes old observability rows once a day.
func retentionLoop(ctx context.Context, db *sql.DB, cfg *AppConfig, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := observability.Cleanup(ctx, db, observability.RetentionConfig{
				EventLogsDays: cfg.Retention.EventLogsDays,
				MetricsDays:   cfg.Retention.MetricsDays,
			})
			if err != nil {
				logger.Warn("observability: retention cleanup", "error", err)
			}
		}
	}
}
