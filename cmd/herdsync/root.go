package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/devonagro/herdsync/internal/api"
	"github.com/devonagro/herdsync/internal/auth"
	"github.com/devonagro/herdsync/internal/config"
	"github.com/devonagro/herdsync/internal/connectivity"
	"github.com/devonagro/herdsync/internal/reference"
	"github.com/devonagro/herdsync/internal/store"
	"github.com/devonagro/herdsync/internal/syncengine"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	configPathOverride string
	jsonOutput         bool
)

var rootCmd = &cobra.Command{
	Use:           "herdsync",
	Short:         "HerdSync - offline-first livestock movement recorder",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathOverride, "config", "",
		"Config file path (overrides HERDSYNC_CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(movementsCmd)
	rootCmd.AddCommand(refdataCmd)
}

// app holds the wired components every command works against.
type app struct {
	cfg     *config.Config
	db      *store.Store
	session *auth.Session
	client  *api.Client
	monitor *connectivity.Monitor
	refs    *reference.Service
	engine  *syncengine.Engine
}

// newApp loads configuration, initializes logging, and wires the component
// graph. The store opens lazily on first use.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	initLogger(cfg)

	db := store.New(cfg.Database.Path)
	session := auth.NewSession(cfg.API.BaseURL, time.Duration(cfg.API.Timeout), cfg.Session.Path, db)
	client := api.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.Timeout), session)

	prober := connectivity.NewHTTPProber(cfg.Connectivity.ProbeURL)
	if d := time.Duration(cfg.Connectivity.ProbeTimeout); d > 0 {
		prober.Client.Timeout = d
	}
	monitor := connectivity.NewMonitor(prober)

	refs := reference.NewService(db, client)
	engine := syncengine.New(db, client, monitor)

	return &app{
		cfg:     cfg,
		db:      db,
		session: session,
		client:  client,
		monitor: monitor,
		refs:    refs,
		engine:  engine,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}
}

func loadConfig() (*config.Config, error) {
	if configPathOverride != "" {
		return config.LoadFromFile(configPathOverride)
	}
	return config.Load()
}

func initLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func boolWord(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
