package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/fathom/internal"
	"github.com/starford/fathom/internal/apperr"
	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/noteservice"
	pkgconfig "github.com/starford/fathom/pkg/config"
)

var version = "dev"

// Exit codes.
const (
	exitError       = 1
	exitUsage       = 2
	exitQuerySyntax = 3
)

var stdout io.Writer = os.Stdout

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	home, _ := os.UserHomeDir()
	if err := cfg.ResolvePaths(os.LookupEnv, home); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp opens the workspace for a single command.
func withApp(ctx context.Context, cmd *cli.Command, fn func(context.Context, *internal.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := internal.Open(internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(_ context.Context, app *internal.App) error {
		return printJSON(map[string]string{
			"status":    "initialized",
			"path":      app.Config.SQLite.Path,
			"workspace": app.Config.Workspace.Root,
		})
	})
}

func runSession(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		sess, err := app.Service.CreateSession(ctx, models.SessionType(cmd.String("type")), cmd.String("topic"))
		if err != nil {
			return err
		}
		return printJSON(sess)
	})
}

func runAdd(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		res, err := app.Service.AddNote(ctx, models.Note{
			Topic:       cmd.String("topic"),
			Query:       cmd.String("query"),
			Summary:     cmd.String("summary"),
			RawFindings: cmd.String("raw-findings"),
			Sources:     cmd.String("sources"),
			Tags:        models.SplitTags(cmd.String("tags")),
			Confidence:  models.Confidence(cmd.String("confidence")),
			SessionDir:  cmd.String("session-dir"),
			SessionType: models.SessionType(cmd.String("session-type")),
		})
		if err != nil {
			return err
		}
		out := map[string]any{
			"id":     res.Note.ID,
			"status": "saved",
			"path":   app.Config.SQLite.Path,
		}
		if res.Mirror != "" {
			out["mirror"] = res.Mirror
		}
		return printJSON(out)
	})
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
	term := cmd.Args().First()
	if term == "" {
		return fmt.Errorf("%w: search term is required", apperr.ErrValidation)
	}
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		notes, err := app.Service.Search(ctx, term, int(cmd.Int("limit")))
		if err != nil {
			return err
		}
		return printJSON(notes)
	})
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		notes, err := app.Service.Query(ctx, noteservice.Filter{
			Topic:       cmd.String("topic"),
			Tag:         cmd.String("tag"),
			Since:       cmd.String("since"),
			SessionType: cmd.String("session-type"),
		})
		if err != nil {
			return err
		}
		return printJSON(notes)
	})
}

func runList(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		notes, err := app.Service.List(ctx, int(cmd.Int("limit")))
		if err != nil {
			return err
		}
		return printJSON(notes)
	})
}

func runGet(ctx context.Context, cmd *cli.Command) error {
	id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: note id must be an integer", apperr.ErrValidation)
	}
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		note, err := app.Service.Get(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(note)
	})
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		out, err := app.Service.Export(ctx, cmd.String("format"))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, out)
		return err
	})
}

func runTopics(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		topics, err := app.Service.Topics(ctx)
		if err != nil {
			return err
		}
		return printJSON(topics)
	})
}

func runTags(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		tags, err := app.Service.Tags(ctx)
		if err != nil {
			return err
		}
		return printJSON(tags)
	})
}

func runReindex(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
		if cmd.Bool("check") {
			report, err := app.Service.VerifyIndex(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"consistent": report.Consistent(),
				"report":     report,
			})
		}
		n, err := app.Service.Reindex(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"status": "reindexed", "notes": n})
	})
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, version, internal.WithConfig(cfg))
}

func newCommand() *cli.Command {
	sessionTypeUsage := "deep-research, quick-lookup or spike"
	return &cli.Command{
		Name:    "fathom",
		Usage:   "Local research notes with full-text search and Markdown mirrors",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the workspace and database",
				Action: runInit,
			},
			{
				Name:  "session",
				Usage: "Create a session directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: sessionTypeUsage, Required: true},
					&cli.StringFlag{Name: "topic", Required: true},
				},
				Action: runSession,
			},
			{
				Name:  "add",
				Usage: "Store a research note",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "topic", Required: true},
					&cli.StringFlag{Name: "query", Required: true},
					&cli.StringFlag{Name: "summary", Required: true},
					&cli.StringFlag{Name: "raw-findings"},
					&cli.StringFlag{Name: "sources", Usage: "JSON array of source objects"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
					&cli.StringFlag{Name: "confidence", Usage: "low, medium or high", Value: string(models.ConfidenceMedium)},
					&cli.StringFlag{Name: "session-dir"},
					&cli.StringFlag{Name: "session-type", Usage: sessionTypeUsage},
				},
				Action: runAdd,
			},
			{
				Name:      "search",
				Usage:     "Full-text search",
				ArgsUsage: "TERM",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Max results (0 = all)"},
				},
				Action: runSearch,
			},
			{
				Name:  "query",
				Usage: "Filter notes by topic, tag, date or session type",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "topic"},
					&cli.StringFlag{Name: "tag"},
					&cli.StringFlag{Name: "since", Usage: "YYYY-MM-DD or RFC 3339"},
					&cli.StringFlag{Name: "session-type", Usage: sessionTypeUsage},
				},
				Action: runQuery,
			},
			{
				Name:  "list",
				Usage: "List the newest notes",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: runList,
			},
			{
				Name:      "get",
				Usage:     "Show one note",
				ArgsUsage: "ID",
				Action:    runGet,
			},
			{
				Name:  "export",
				Usage: "Export every note",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Usage: "json, md or markdown", Value: "json"},
				},
				Action: runExport,
			},
			{
				Name:   "topics",
				Usage:  "Count notes per topic",
				Action: runTopics,
			},
			{
				Name:   "tags",
				Usage:  "Count notes per tag",
				Action: runTags,
			},
			{
				Name:  "reindex",
				Usage: "Rebuild the search index from the notes table",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "check", Usage: "Only report differences"},
				},
				Action: runReindex,
			},
			{
				Name:   "serve",
				Usage:  "Run the REST API and event stream",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: runMCP,
			},
		},
	}
}

// exitCode maps command errors onto process exit codes. A missing note is
// reported on stdout as a JSON error.
func exitCode(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		_ = printJSON(map[string]string{"error": "not found"})
		return exitError
	case errors.Is(err, apperr.ErrQuerySyntax):
		return exitQuerySyntax
	case errors.Is(err, apperr.ErrValidation):
		return exitUsage
	default:
		return exitError
	}
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(exitCode(err))
	}
}
