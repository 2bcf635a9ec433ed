package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/kbgov/config"
	"github.com/c360studio/kbgov/corpus"
	"github.com/c360studio/kbgov/engine"
	"github.com/c360studio/kbgov/ingest"
	"github.com/c360studio/kbgov/ledger"
	"github.com/c360studio/kbgov/metrics"
	"github.com/c360studio/kbgov/publish"
	"github.com/c360studio/kbgov/routing"
)

const (
	// Version is the kbgov release version.
	Version = "0.1.0"
	appName = "kbgov"
)

// Exit codes used by the commands.
const (
	exitOK             = 0
	exitViolations     = 1
	exitParseError     = 2
	exitUnknownKeyword = 3
)

// app wires the engine and its stores from configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	corpus *corpus.Corpus
	engine *engine.Engine
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Knowledge base governance engine",
		Long:          "kbgov validates curated markdown knowledge bases, routes keywords\nto canonical documents, and records accepted changes in an\nappend-only changelog.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		validateCmd(&logLevel),
		routeCmd(&logLevel),
		changelogCmd(&logLevel),
		ingestCmd(&logLevel),
		watchCmd(&logLevel),
		configInitCmd(&logLevel),
		versionCmd(),
	)
	return cmd
}

func configInitCmd(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kbgov configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the user config file with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.NewLoader(newLogger(*logLevel)).EnsureUserConfig()
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newApp loads configuration and opens the corpus state.
func newApp(logLevel string, opts ...engine.Option) (*app, error) {
	logger := newLogger(logLevel)

	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return nil, err
	}

	c := corpus.New(cfg.Corpus.Root, cfg.Corpus.Patterns)
	if err := c.EnsureDirectories(); err != nil {
		return nil, err
	}

	l, err := ledger.Open(c.ChangelogPath())
	if err != nil {
		return nil, err
	}

	table, err := routing.LoadTable(c.RoutingTablePath())
	if err != nil {
		return nil, err
	}
	ix, err := routing.Build(table, c.Known)
	if err != nil {
		return nil, err
	}

	opts = append([]engine.Option{engine.WithLogger(logger)}, opts...)
	if cfg.NATS.URL != "" {
		if pub, err := publish.Connect(cfg.NATS.URL); err != nil {
			logger.Warn("NATS unavailable, events disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			opts = append(opts, engine.WithPublisher(pub))
		}
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		corpus: c,
		engine: engine.New(c, l, ix, opts...),
	}, nil
}

func validateCmd(logLevel *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate documents against schema and version policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*logLevel)
			if err != nil {
				return err
			}

			paths := args
			if all || len(paths) == 0 {
				paths, err = a.corpus.Scan()
				if err != nil {
					return err
				}
			}

			hasErrors := false
			for _, rel := range paths {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				verdict, err := a.engine.EvaluateFile(rel)
				if err != nil {
					return exitWithCode(exitParseError, "%s: %v", rel, err)
				}
				printVerdict(cmd, verdict)
				if !verdict.Accepted {
					hasErrors = true
				}
			}

			if hasErrors {
				return exitWithCode(exitViolations, "")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Validate every document in the corpus")
	return cmd
}

func printVerdict(cmd *cobra.Command, verdict engine.Verdict) {
	for _, v := range verdict.Violations {
		if v.Line > 0 {
			cmd.Printf("%s:%d: %s: %s: %s\n", v.Path, v.Line, v.Severity, v.Rule, v.Message)
		} else {
			cmd.Printf("%s: %s: %s: %s\n", v.Path, v.Severity, v.Rule, v.Message)
		}
	}
	if verdict.Accepted && len(verdict.Violations) == 0 {
		cmd.Printf("%s: ok\n", verdict.Path)
	}
}

func routeCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "route <keyword>",
		Short: "Resolve a keyword to its canonical document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*logLevel)
			if err != nil {
				return err
			}

			paths, err := a.engine.Index().Resolve(args[0])
			if err != nil {
				return exitWithCode(exitUnknownKeyword, "%v", err)
			}
			for _, p := range paths {
				cmd.Println(p)
			}
			return nil
		},
	}
}

func changelogCmd(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Manage the append-only changelog ledger",
	}
	cmd.AddCommand(changelogAppendCmd(logLevel), changelogSinceCmd(logLevel))
	return cmd
}

func changelogAppendCmd(logLevel *string) *cobra.Command {
	var (
		summary  string
		reason   string
		paths    []string
		breaking bool
		corrects string
		routes   []string
	)

	cmd := &cobra.Command{
		Use:   "append [entry-file]",
		Short: "Record an accepted change",
		Long:  "Record an accepted change in the ledger. The entry is described\neither by a YAML entry file or by flags; flags override file fields.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*logLevel)
			if err != nil {
				return err
			}

			var entry ledger.Entry
			if len(args) == 1 {
				if entry, err = loadEntryFile(args[0]); err != nil {
					return err
				}
			}
			if summary != "" {
				entry.Summary = summary
			}
			if reason != "" {
				entry.Reason = reason
			}
			if len(paths) > 0 {
				entry.ImpactedPaths = paths
			}
			if breaking {
				entry.Breaking = true
			}
			if corrects != "" {
				entry.Corrects = ledger.EntryID(corrects)
			}

			change := engine.Change{Entry: entry}
			for _, r := range routes {
				keyword, canonical, ok := strings.Cut(r, "=")
				if !ok {
					return fmt.Errorf("invalid --route %q, expected keyword=path", r)
				}
				change.Routes = append(change.Routes, routing.Entry{
					Keyword:   strings.TrimSpace(keyword),
					Canonical: strings.TrimSpace(canonical),
				})
			}

			entry, err = a.engine.Commit(cmd.Context(), change)
			if err != nil {
				return exitWithCode(exitViolations, "%v", err)
			}
			cmd.Printf("%s seq=%d\n", entry.ID, entry.Seq)
			return nil
		},
	}

	cmd.Flags().StringVar(&summary, "summary", "", "One-line change summary")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the change was made")
	cmd.Flags().StringArrayVar(&paths, "path", nil, "Impacted document path (repeatable)")
	cmd.Flags().BoolVar(&breaking, "breaking", false, "Mark the change as breaking")
	cmd.Flags().StringVar(&corrects, "corrects", "", "Entry ID this change corrects")
	cmd.Flags().StringArrayVar(&routes, "route", nil, "Routing registration keyword=path (repeatable)")
	return cmd
}

// loadEntryFile reads a YAML-described ledger entry.
func loadEntryFile(path string) (ledger.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("reading entry file: %w", err)
	}

	var spec struct {
		Summary       string   `yaml:"summary"`
		Reason        string   `yaml:"reason"`
		Date          string   `yaml:"date"`
		ImpactedPaths []string `yaml:"impacted_paths"`
		Breaking      bool     `yaml:"breaking"`
		Corrects      string   `yaml:"corrects"`
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ledger.Entry{}, fmt.Errorf("parsing entry file %s: %w", path, err)
	}

	return ledger.Entry{
		Summary:       spec.Summary,
		Reason:        spec.Reason,
		Date:          spec.Date,
		ImpactedPaths: spec.ImpactedPaths,
		Breaking:      spec.Breaking,
		Corrects:      ledger.EntryID(spec.Corrects),
	}, nil
}

func changelogSinceCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "since <date>",
		Short: "List entries on or after a date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := time.Parse(ledger.DateLayout, args[0])
			if err != nil {
				return fmt.Errorf("invalid date %q, expected %s", args[0], ledger.DateLayout)
			}

			a, err := newApp(*logLevel)
			if err != nil {
				return err
			}

			for _, e := range a.engine.Ledger().EntriesSince(since) {
				line := fmt.Sprintf("%s %s seq=%d %s (%s)", e.Date, e.ID, e.Seq, e.Summary, strings.Join(e.ImpactedPaths, ", "))
				if e.IsCorrection() {
					line += " corrects=" + string(e.Corrects)
				}
				if e.Breaking {
					line += " [breaking]"
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}

func ingestCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <url>",
		Short: "Draft a low-confidence document from a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*logLevel)
			if err != nil {
				return err
			}

			ingester := ingest.New(a.corpus,
				ingest.WithTimeout(a.cfg.Ingest.Timeout),
				ingest.WithMaxBodySize(a.cfg.Ingest.MaxBodySize))
			rel, err := ingester.Ingest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(rel)

			// Show the draft's verdict so the curator knows what to fix.
			verdict, err := a.engine.EvaluateFile(rel)
			if err == nil {
				printVerdict(cmd, verdict)
			}
			return nil
		},
	}
}

func watchCmd(logLevel *string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate documents as they change on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.New()
			a, err := newApp(*logLevel, engine.WithMetrics(m))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if metricsAddr == "" {
				metricsAddr = a.cfg.Watch.MetricsAddr
			}
			if metricsAddr != "" {
				go serveMetrics(ctx, metricsAddr, m, a.logger)
			}

			watcher, err := corpus.NewWatcher(a.corpus, a.cfg.Watch.Debounce, a.logger)
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events():
					if !ok {
						return nil
					}
					if event.Removed {
						a.logger.Info("document removed", "path", event.Path)
						continue
					}
					verdict, err := a.engine.EvaluateFile(event.Path)
					if err != nil {
						a.logger.Error("evaluation failed", "path", event.Path, "error", err)
						continue
					}
					printVerdict(cmd, verdict)
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the Prometheus endpoint")
	return cmd
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "error", err)
	}
}
