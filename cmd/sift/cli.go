package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/sift/internal/config"
	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/logging"
	"github.com/hpungsan/sift/internal/mcp"
	"github.com/hpungsan/sift/internal/metrics"
	"github.com/hpungsan/sift/internal/ops"
)

// MaxStdinBytes bounds text read from stdin.
const MaxStdinBytes = ops.MaxIngestBytes

// cliState holds the environment shared by commands. It is built in the
// app's Before hook unless a test supplies one.
type cliState struct {
	env     *ops.Env
	metrics *metrics.Metrics
	owned   bool
}

// newCLIApp creates the CLI application with all commands. A nil env is
// built from the global flags before the first command runs.
func newCLIApp(env *ops.Env) *cli.App {
	st := &cliState{env: env}
	if env != nil {
		st.metrics = env.Metrics
	}

	app := &cli.App{
		Name:    "sift",
		Usage:   "Self-training text classifier with vector memory",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", EnvVars: []string{"SIFT_DIR"}, Usage: "Base directory (default ~/.sift)"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"SIFT_LOG_LEVEL"}, Usage: "debug|info|warn|error (overrides config)"},
		},
		Before: st.setup,
		After:  st.teardown,
		Commands: []*cli.Command{
			scoreCmd(st),
			labelCmd(st),
			learnCmd(st),
			ingestCmd(st),
			askCmd(st),
			trainCmd(st),
			mergeCmd(st),
			memoryCmd(st),
			doctorCmd(st),
			mcpCmd(st),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// setup loads config and builds the environment.
func (st *cliState) setup(c *cli.Context) error {
	if st.env != nil {
		return nil
	}

	baseDir := c.String("dir")
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return cli.Exit(fmt.Sprintf("could not determine home directory: %v", err), 1)
		}
		baseDir = filepath.Join(homeDir, ".sift")
	}

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load config: %v", err), 1)
	}

	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	logging.SetDefault(logging.New(level, os.Stderr))

	st.metrics = metrics.New()
	env, err := ops.NewEnv(ops.Options{
		BaseDir: baseDir,
		Config:  cfg,
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Metrics: st.metrics,
	})
	if err != nil {
		return outputError(err)
	}
	st.env = env
	st.owned = true
	return nil
}

// teardown closes an environment built by setup.
func (st *cliState) teardown(_ *cli.Context) error {
	if st.owned && st.env != nil {
		return st.env.Close()
	}
	return nil
}

// scoreCmd creates the score command.
func scoreCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Classify text (argument or stdin)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "top", Usage: "Also show the top N predictions"},
		},
		Action: func(c *cli.Context) error {
			text, err := readText(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Score(c.Context, st.env, ops.ScoreInput{Text: text, Top: c.Int("top")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// labelCmd creates the label command.
func labelCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:      "label",
		Usage:     "Offer a labeled text to the confidence gate",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Label (omit to use the model's prediction)"},
			&cli.Float64Flag{Name: "confidence", Aliases: []string{"c"}, Usage: "Confidence in [0, 1]"},
			&cli.BoolFlag{Name: "manual", Aliases: []string{"m"}, Usage: "Store regardless of confidence"},
		},
		Action: func(c *cli.Context) error {
			text, err := readText(c)
			if err != nil {
				return outputError(err)
			}

			input := ops.LabelInput{
				Text:   text,
				Label:  c.String("label"),
				Manual: c.Bool("manual"),
			}
			if c.IsSet("confidence") {
				conf := c.Float64("confidence")
				input.Confidence = &conf
			}

			output, err := ops.Label(c.Context, st.env, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// learnCmd creates the learn command.
func learnCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:      "learn",
		Usage:     "Score, auto-label and remember a document",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Source URL"},
			&cli.StringSliceFlag{Name: "extra", Usage: "Extra metadata as key=value (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			text, err := readText(c)
			if err != nil {
				return outputError(err)
			}

			extra, err := parseExtra(c.StringSlice("extra"))
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Learn(c.Context, st.env, ops.LearnInput{
				Text:  text,
				URL:   c.String("url"),
				Extra: extra,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// ingestCmd creates the ingest command.
func ingestCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Learn local .txt and .md files",
		ArgsUsage: "<path>...",
		Action: func(c *cli.Context) error {
			output, err := ops.Ingest(c.Context, st.env, ops.IngestInput{Paths: c.Args().Slice()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// askCmd creates the ask command.
func askCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Classify text and show the closest remembered document",
		ArgsUsage: "[text]",
		Action: func(c *cli.Context) error {
			text, err := readText(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Ask(c.Context, st.env, ops.AskInput{Text: text})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// trainCmd creates the train command.
func trainCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Train a model from the labeled dataset",
		Action: func(c *cli.Context) error {
			output, err := ops.Train(c.Context, st.env, ops.TrainInput{})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// mergeCmd creates the merge command.
func mergeCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Merge auto-labeled rows into the labeled dataset",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "retrain", Aliases: []string{"r"}, Usage: "Train a new model after merging"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Merge(c.Context, st.env, ops.MergeInput{Retrain: c.Bool("retrain")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// memoryCmd creates the memory command group.
func memoryCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Inspect the vector memory",
		Subcommands: []*cli.Command{
			{
				Name:      "query",
				Usage:     "Find the nearest remembered documents",
				ArgsUsage: "[text]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "k", Value: ops.DefaultQueryK, Usage: "Number of neighbours"},
				},
				Action: func(c *cli.Context) error {
					text, err := readText(c)
					if err != nil {
						return outputError(err)
					}

					output, err := ops.MemoryQuery(c.Context, st.env, ops.MemoryQueryInput{Text: text, K: c.Int("k")})
					if err != nil {
						return outputError(err)
					}

					return outputJSON(output)
				},
			},
			{
				Name:  "stats",
				Usage: "Show memory size and per-category counts",
				Action: func(c *cli.Context) error {
					output, err := ops.MemoryStats(c.Context, st.env, ops.MemoryStatsInput{})
					if err != nil {
						return outputError(err)
					}

					return outputJSON(output)
				},
			},
		},
	}
}

// doctorCmd creates the doctor command.
func doctorCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Report label health and optionally fix the dataset",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "relabel", Usage: "Relabel rule from=to (repeatable)"},
			&cli.StringSliceFlag{Name: "drop", Usage: "Drop rows with this label (repeatable)"},
			&cli.BoolFlag{Name: "drop-invalid", Usage: "Drop rows with blank text or label"},
			&cli.BoolFlag{Name: "apply", Usage: "Write the fixed dataset (default is a preview)"},
		},
		Action: func(c *cli.Context) error {
			relabel, err := ops.ParseRelabel(c.StringSlice("relabel"))
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Doctor(c.Context, st.env, ops.DoctorInput{
				Relabel:     relabel,
				Drop:        c.StringSlice("drop"),
				DropInvalid: c.Bool("drop-invalid"),
				Apply:       c.Bool("apply"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(st *cliState) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve tools over MCP stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "metrics-addr", EnvVars: []string{"SIFT_METRICS_ADDR"}, Usage: "Serve prometheus /metrics on this address"},
		},
		Action: func(c *cli.Context) error {
			logger := logging.From(c.Context)
			cfg := st.env.Config
			if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
				logger.Warn("unknown disabled_tools entries", "tools", unknown)
			}
			if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
				logger.Warn("unknown disabled_types entries", "types", unknown)
			}

			if addr := c.String("metrics-addr"); addr != "" {
				srv := metricsServer(addr, st.metrics)
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics server stopped", "error", err)
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
				logger.Info("serving metrics", "addr", addr)
			}

			if err := mcp.Run(st.env, Version); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Helper functions

// metricsServer returns an HTTP server exposing m on /metrics.
func metricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if siftErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", siftErr.Code, siftErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readText returns the positional arguments joined by spaces, or stdin
// when there are none.
func readText(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("text is required (argument or stdin)")
	}
	return readStdin(MaxStdinBytes)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}

// parseExtra parses key=value pairs.
func parseExtra(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	extra := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("extra must look like key=value, got %q", p))
		}
		extra[key] = value
	}
	return extra, nil
}
