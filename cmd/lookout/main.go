package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hpungsan/lookout/internal/config"
	"github.com/hpungsan/lookout/internal/db"
	"github.com/hpungsan/lookout/internal/mcp"
	"github.com/hpungsan/lookout/internal/status"
	"github.com/hpungsan/lookout/internal/store"
	"github.com/hpungsan/lookout/internal/stream"
	"github.com/hpungsan/lookout/internal/web"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "show": true, "decide": true, "load": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _                _               _
  | |    ___   ___ | | _____  _   _| |_
  | |   / _ \ / _ \| |/ / _ \| | | | __|
  | |__| (_) | (_) |   < (_) | |_| | |_
  |_____\___/ \___/|_|\_\___/ \__,_|\__|

  Live status dashboard

  Usage: lookout <command> [options]
         lookout serve
         lookout --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the store
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".lookout")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout belongs to JSON output and the MCP transport.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	st, closeStore, err := openStore(baseDir, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	model := status.New(st)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(model, cfg, logger)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			closeStore()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'lookout --help' for usage.\n")
		closeStore()
		os.Exit(1)
	}

	// MCP server mode (default), with the dashboard on the same model.
	if err := runMCP(model, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		closeStore()
		os.Exit(1)
	}
}

// openStore opens the configured durable backend.
func openStore(baseDir string, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, nil, err
		}
		db.ConfigurePool(database, cfg)
		return store.NewSQLiteStore(database, logger), func() { _ = database.Close() }, nil
	case config.StoreFile, "":
		return store.NewFileStore(cfg.TasksPath(baseDir), logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want %q or %q)", cfg.Store, config.StoreFile, config.StoreSQLite)
	}
}

// runDashboard serves the HTTP dashboard until ctx is cancelled.
func runDashboard(ctx context.Context, model *status.Model, cfg *config.Config, logger *slog.Logger) error {
	broadcaster := stream.New(cfg.Keepalive(), cfg.SubscriberBuffer, logger)
	srv, err := web.NewServer(model, broadcaster, cfg, logger)
	if err != nil {
		return err
	}
	return web.Run(ctx, srv, logger)
}

// runMCP serves MCP over stdio. The dashboard runs alongside it; failing to
// bind the dashboard is logged and does not stop the MCP server.
func runMCP(model *status.Model, cfg *config.Config, logger *slog.Logger) error {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", "types", unknown)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runDashboard(ctx, model, cfg, logger); err != nil {
			logger.Warn("dashboard stopped", "error", err)
		}
	}()

	err := mcp.Run(model, cfg, Version)
	cancel()
	<-done
	return err
}
