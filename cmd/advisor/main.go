// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/advisor"
	"github.com/poiesic/advisor/ai"
	"github.com/poiesic/advisor/artifact"
	"github.com/poiesic/advisor/catalog"
	"github.com/poiesic/advisor/config"
	"github.com/poiesic/advisor/embed"
	"github.com/poiesic/advisor/search"
	"github.com/poiesic/advisor/server"
	"github.com/poiesic/advisor/storage/qdrant"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// The first interrupt cancels ctx; a second one gets default handling.
	context.AfterFunc(ctx, stop)
	err := newApp(os.Stdin, os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	runDirFlag := &cli.StringFlag{
		Name:    "run-dir",
		Aliases: []string{"d"},
		Usage:   "Directory holding records.json, the index and the manifest",
		Value:   "data/default",
	}
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to YAML config file (defaults are used if it does not exist)",
		Value:   "advisor.yaml",
	}
	envFileFlag := &cli.StringFlag{
		Name:  "env-file",
		Usage: "Path to a .env file loaded before reading the API key",
		Value: ".env",
	}
	return &cli.App{
		Name:      "advisor",
		Usage:     "Reader's advisory over a library catalog",
		UsageText: "advisor [--fetch] [--embed] [--chat | --search] [--run-dir DIR]",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fetch", Usage: "Fetch the catalog into records.json"},
			&cli.BoolFlag{Name: "embed", Usage: "Embed records.json into the index"},
			&cli.BoolFlag{Name: "chat", Usage: "Start an interactive recommendation session"},
			&cli.BoolFlag{Name: "search", Usage: "Start an interactive search session"},
			runDirFlag,
			configFlag,
			envFileFlag,
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "Number of results shown in search mode (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "reembed",
				Usage: "Recompute every embedding even if the stored vector is current",
			},
		},
		Before: setupLogger,
		Action: pipelineCommand,
		Commands: []*cli.Command{
			{
				Name:   "inspect",
				Usage:  "Print the run manifest and index statistics",
				Action: inspectCommand,
				Flags:  []cli.Flag{runDirFlag},
			},
			{
				Name:   "serve",
				Usage:  "Answer recommendation requests over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Address to listen on",
						Value: "localhost:8080",
					},
					&cli.StringFlag{
						Name:    "run-dir",
						Aliases: []string{"d"},
						Usage:   "Run directory to serve (default: $" + strings.Join(artifact.RunDirEnvVars, ", $") + ", then the first directory under --data-dir)",
					},
					&cli.StringFlag{
						Name:  "data-dir",
						Usage: "Directory searched for a run directory when none is given",
						Value: artifact.DefaultBaseDir,
					},
					configFlag,
					envFileFlag,
				},
			},
		},
	}
}

type stages struct {
	fetch, embed, chat, search bool
}

func (s stages) any() bool         { return s.fetch || s.embed || s.chat || s.search }
func (s stages) interactive() bool { return s.chat || s.search }
func (s stages) needsAI() bool     { return s.embed || s.interactive() }

func pipelineCommand(c *cli.Context) error {
	run := stages{
		fetch:  c.Bool("fetch"),
		embed:  c.Bool("embed"),
		chat:   c.Bool("chat"),
		search: c.Bool("search"),
	}
	if !run.any() {
		return cli.ShowAppHelp(c)
	}
	if run.chat && run.search {
		slog.Warn("both --chat and --search given, starting chat")
		run.search = false
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("reembed") {
		cfg.Embed.Force = true
	}
	if k := c.Int("top-k"); k > 0 {
		cfg.Query.TopK = k
	}

	var aiConfig *ai.Config
	if run.needsAI() {
		if aiConfig, err = loadAIConfig(c, cfg); err != nil {
			return err
		}
	}

	runDir := artifact.RunDir(c.String("run-dir"))
	if err := runDir.Ensure(); err != nil {
		return err
	}
	lock, err := runDir.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctx := c.Context
	stderr := c.App.ErrWriter

	if run.fetch {
		if err := fetchStage(ctx, cfg, runDir, stderr); err != nil {
			return fmt.Errorf("fetch stage failed: %w", err)
		}
	}

	if !run.embed && !run.interactive() {
		return nil
	}

	idx, err := openIndex(cfg, runDir, aiConfig, run.embed)
	if err != nil {
		return err
	}
	defer idx.Close()

	if run.embed {
		if err := embedStage(ctx, cfg, idx, stderr); err != nil {
			return fmt.Errorf("embed stage failed: %w", err)
		}
	}

	if run.interactive() {
		mode := search.ModeSearch
		if run.chat {
			mode = search.ModeChat
		}
		engine, err := idx.NewEngine(search.WithConfig(cfg.SearchConfig()))
		if err != nil {
			return err
		}
		session := search.NewSession(engine, mode, c.App.Reader, c.App.Writer, search.WithTopK(cfg.Query.TopK))
		if err := session.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// loadAIConfig reads the API key, from the env file if one exists, and
// validates the resulting configuration.
func loadAIConfig(c *cli.Context, cfg *config.AppConfig) (*ai.Config, error) {
	if err := config.LoadEnv(c.String("env-file")); err != nil {
		return nil, err
	}
	aiConfig := cfg.AIConfig(os.Getenv(cfg.AI.APIKeyEnv))
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration (set %s): %w", cfg.AI.APIKeyEnv, err)
	}
	return aiConfig, nil
}

func fetchStage(ctx context.Context, cfg *config.AppConfig, runDir artifact.RunDir, stderr io.Writer) error {
	client, err := catalog.NewClient(cfg.CatalogConfig())
	if err != nil {
		return err
	}
	fetcher, err := catalog.NewFetcher(client, runDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "Catalog: %s (location %d)\n", cfg.Catalog.BaseURL, cfg.Catalog.LocationID)
	summary, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Catalog sync: %d records (%d new, %d changed, %d unchanged, %d removed) -> %s\n",
		summary.Records, summary.New, summary.Changed, summary.Unchanged, summary.Removed, summary.Path)
	return nil
}

func embedStage(ctx context.Context, cfg *config.AppConfig, idx *advisor.Index, stderr io.Writer) error {
	builder, err := idx.NewBuilder(
		embed.WithConfig(cfg.EmbedConfig()),
		embed.WithProgress(stderr),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "Embedding host: %s\n", cfg.AI.Host)
	fmt.Fprintf(stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	report, err := builder.Run(ctx)
	if report != nil {
		fmt.Fprintf(stderr, "Index: %d records, %d embedded, %d reused, %d removed, %d failed in %s\n",
			report.Total, report.Embedded, report.Reused, report.Removed, len(report.Failures), report.Elapsed.Round(time.Millisecond))
		for _, f := range report.Failures {
			fmt.Fprintf(stderr, "  failed %s: %v\n", f.CatalogID, f.Err)
		}
	}
	return err
}

func openIndex(cfg *config.AppConfig, runDir artifact.RunDir, aiConfig *ai.Config, create bool) (*advisor.Index, error) {
	opts := []advisor.IndexOption{advisor.WithAIConfig(aiConfig)}
	if create {
		opts = append(opts, advisor.WithCreate())
	}
	if cfg.Storage.Backend == config.BackendQdrant {
		store, err := qdrant.New(cfg.Storage.QdrantAddr, cfg.Storage.QdrantCollection)
		if err != nil {
			return nil, err
		}
		opts = append(opts, advisor.WithVectorIndex(store))
	}
	return advisor.OpenIndex(runDir, opts...)
}

func inspectCommand(c *cli.Context) error {
	runDir := artifact.RunDir(c.String("run-dir"))
	out := c.App.Writer

	fmt.Fprintf(out, "Run directory: %s\n", runDir)
	if _, err := os.Stat(runDir.ManifestPath()); err != nil {
		fmt.Fprintln(out, "Manifest: none")
	} else {
		manifest, err := runDir.ReadManifest()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(manifest)
		if err != nil {
			return err
		}
		out.Write(data)
	}

	idx, err := advisor.OpenIndex(runDir)
	if errors.Is(err, search.ErrIndexNotBuilt) {
		fmt.Fprintf(out, "Index: not built\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()

	stats, err := idx.Stats(c.Context)
	if err != nil {
		return err
	}
	if stats.Meta == nil {
		fmt.Fprintf(out, "Index: empty\n")
		return nil
	}
	fmt.Fprintf(out, "Index: %d vectors, %d records, model %s, dimension %d, built %s\n",
		stats.Vectors, stats.Records, stats.Meta.Model, stats.Meta.Dimension,
		stats.Meta.BuiltAt.Format("2006-01-02 15:04:05"))
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	aiConfig, err := loadAIConfig(c, cfg)
	if err != nil {
		return err
	}
	runDir, err := artifact.ResolveRunDir(c.String("run-dir"), c.String("data-dir"))
	if err != nil {
		return err
	}

	idx, err := openIndex(cfg, runDir, aiConfig, false)
	if err != nil {
		return err
	}
	defer idx.Close()

	engine, err := idx.NewEngine(search.WithConfig(cfg.SearchConfig()))
	if err != nil {
		return err
	}
	meta, err := engine.CheckIndex(c.Context)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", c.String("addr"))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("serving recommendations",
		"addr", ln.Addr().String(),
		"run_dir", string(runDir),
		"records", meta.Count,
		"model", meta.Model)

	return server.Serve(c.Context, ln, server.NewHandler(engine).Routes())
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
