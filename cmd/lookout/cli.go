package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/lookout/internal/config"
	"github.com/hpungsan/lookout/internal/errors"
	"github.com/hpungsan/lookout/internal/status"
	"github.com/hpungsan/lookout/internal/store"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(model *status.Model, cfg *config.Config, logger *slog.Logger) *cli.App {
	app := &cli.App{
		Name:    "lookout",
		Usage:   "Live status dashboard",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(model, cfg, logger),
			showCmd(model),
			decideCmd(model),
			loadCmd(model),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(model *status.Model, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Interface to listen on (overrides config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (overrides config)"},
			&cli.StringFlag{Name: "static-dir", Usage: "Serve dashboard assets from this directory"},
			&cli.BoolFlag{Name: "no-push", Usage: "Only send the snapshot when a stream connects"},
		},
		Action: func(c *cli.Context) error {
			run := *cfg
			if c.IsSet("bind") {
				run.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				run.Port = c.Int("port")
			}
			if c.IsSet("static-dir") {
				run.StaticDir = c.String("static-dir")
			}
			if c.Bool("no-push") {
				run.DisablePush = true
			}

			ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := runDashboard(ctx, model, &run, logger); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// showCmd creates the show command.
func showCmd(model *status.Model) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the durable task collection as a dashboard snapshot",
		Action: func(c *cli.Context) error {
			return outputJSON(model.Snapshot(ctxOf(c)))
		},
	}
}

// decideCmd creates the decide command.
func decideCmd(model *status.Model) *cli.Command {
	return &cli.Command{
		Name:      "decide",
		Usage:     "Set the status and/or notes of a request",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "New status: pending|approved|rejected"},
			&cli.BoolFlag{Name: "approve", Usage: "Shorthand for --status=approved"},
			&cli.BoolFlag{Name: "reject", Usage: "Shorthand for --status=rejected"},
			&cli.StringFlag{Name: "notes", Aliases: []string{"n"}, Usage: "Replace notes (empty string clears)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewMalformedInput("exactly one request id is required"))
			}
			id, err := parseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			var update status.RequestUpdate
			switch {
			case c.Bool("approve") && c.Bool("reject"):
				return outputError(errors.NewMalformedInput("--approve and --reject are mutually exclusive"))
			case c.Bool("approve"):
				update.Status = store.StatusApproved
			case c.Bool("reject"):
				update.Status = store.StatusRejected
			default:
				update.Status = c.String("status")
			}
			if c.IsSet("notes") {
				notes := c.String("notes")
				update.Notes = &notes
				update.NotesSet = true
			}
			if update.Status == "" && !update.NotesSet {
				return outputError(errors.NewMalformedInput("nothing to update: pass --status, --approve, --reject or --notes"))
			}

			rec, err := model.ApplyRequestUpdate(ctxOf(c), id, update)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"success": true, "request": rec})
		},
	}
}

// loadCmd creates the load command.
func loadCmd(model *status.Model) *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Replace the task collection (reads JSON from --file or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the collection from this file"},
		},
		Action: func(c *cli.Context) error {
			var data []byte
			var err error
			if path := c.String("file"); path != "" {
				data, err = os.ReadFile(path)
			} else {
				if !stdinHasData() {
					return outputError(errors.NewMalformedInput("task JSON must be piped via stdin or passed with --file"))
				}
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			tasks, err := store.ParseTasks(data)
			if err != nil {
				return outputError(errors.NewMalformedInput(err.Error()))
			}
			if err := model.ReplaceTasks(ctxOf(c), tasks); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]bool{"success": true})
		},
	}
}

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if dErr, ok := err.(*errors.DashError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// parseID parses a request id argument.
func parseID(s string) (int, error) {
	return status.ParseRequestID(s)
}

func ctxOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
