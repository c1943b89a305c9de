package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"timely/internal/catalog"
	"timely/internal/config"
	"timely/internal/ics"
	appLog "timely/internal/log"
	"timely/internal/metrics"
	"timely/internal/planner"
	"timely/internal/store"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string
	logConsole bool
)

var rootCmd = &cobra.Command{
	Use:           "timely",
	Short:         "Timely finds free time for activities and books it",
	Long:          "Timely reads your ICS calendars, proposes open slots inside your working hours and writes confirmed plans to a local calendar.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "console", false, "human-readable console logs")

	rootCmd.AddCommand(serveCmd, slotsCmd, customCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and sets up logging from it and the flags.
func loadConfig() (*config.Config, error) {
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		// Defaults were produced but could not be written; keep going.
		fmt.Fprintf(os.Stderr, "warning: could not write default config to %s: %v\n", path, err)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	appLog.Setup(level, logConsole || cfg.LogConsole)
	appLog.Debug("config loaded", "path", path)
	return cfg, nil
}

// app holds the wired collaborators shared by the subcommands.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	provider *ics.Provider
	local    *ics.LocalCalendar
	store    store.Store
	planner  *planner.Planner
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	m := metrics.New()
	loc := cfg.Location()

	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.ID, URL: c.URL})
	}

	local := ics.NewLocalCalendar(cfg.LocalCalendar)
	provider := ics.NewProvider(ics.ProviderConfig{
		Sources:  sources,
		CacheDir: cfg.CacheDir,
		Location: loc,
		Local:    local,
		OnSourceError: func(src ics.Source, err error) {
			m.BusyFetchErrors.WithLabelValues(src.ID).Inc()
		},
	})

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	pl := planner.New(planner.Options{
		Calendar: provider,
		Writer:   local,
		Catalog:  catalog.New(cfg.Catalog.URL, cfg.Catalog.APIKey, cfg.CatalogTimeout()),
		Store:    st,
		Metrics:  m,
		Location: loc,
		Cadence:  cfg.Cadence,
	})

	appLog.Info("timely configured",
		"version", version,
		"timezone", loc.String(),
		"ics_count", len(sources),
		"store", cfg.Store.Backend,
		"catalog", cfg.Catalog.URL != "",
	)

	return &app{
		cfg:      cfg,
		metrics:  m,
		provider: provider,
		local:    local,
		store:    st,
		planner:  pl,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		appLog.Error("failed to close store", err)
	}
}

// commandContext bounds one-shot commands.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 2*time.Minute)
}
