// Package main provides the semcnl binary entry point.
// semcnl parses controlled natural language markdown into knowledge graphs.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/c360studio/semcnl/config"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semcnl"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	user       string
	store      string
	strict     bool
	schemaPath string
	publish    bool
	metrics    bool
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Controlled natural language to knowledge graph",
		Long: `semcnl parses markdown documents written in a controlled natural
language into knowledge graphs.

Headings name nodes; fenced ::: blocks declare relations and attributes.
Nodes are kept in a per-user registry so graphs written in different
documents share the nodes they have in common.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVarP(&opts.user, "user", "u", "", "User whose registry is updated")
	pf.StringVar(&opts.store, "store", "", "Registry backend (memory, sqlite, nats)")
	pf.BoolVar(&opts.strict, "strict", false, "Report schema tuples for every statement")
	pf.StringVar(&opts.schemaPath, "schema", "", "Schema file for advisory diagnostics")
	pf.BoolVar(&opts.publish, "publish", false, "Publish composed graphs as triples")
	pf.BoolVar(&opts.metrics, "metrics", false, "Print pass metrics to stderr on exit")

	cmd.AddCommand(
		parseCmd(opts),
		renderCmd(opts),
		exportCmd(opts),
		deleteGraphCmd(opts),
		describeCmd(opts),
		orphansCmd(opts),
		watchCmd(opts),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig resolves the configuration: an explicit file, or the layered
// loader, with command-line flags applied last.
func (o *globalOptions) loadConfig(logger *slog.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromFile(o.configPath)
	} else {
		cfg, err = config.NewLoader(logger).Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.Merge(&config.Config{
		User:    o.user,
		Store:   config.StoreConfig{Backend: o.store},
		Parser:  config.ParserConfig{Strict: o.strict, SchemaPath: o.schemaPath},
		Publish: config.PublishConfig{Enabled: o.publish},
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withApp starts an App for the duration of fn.
func (o *globalOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	logger := newLogger(cmd.ErrOrStderr(), o.logLevel)
	slog.SetDefault(logger)

	cfg, err := o.loadConfig(logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app := NewApp(cfg, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Shutdown(shutdownCtx)
	}()

	if err := app.Start(ctx); err != nil {
		return err
	}

	err = fn(ctx, app)
	if o.metrics {
		if merr := writeMetrics(cmd.ErrOrStderr(), app.metrics); merr != nil {
			logger.Warn("Failed to write metrics", "error", merr)
		}
	}
	return err
}
