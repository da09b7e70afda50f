package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zerx-lab/penbridge/internal/config"
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/mcp"
	"github.com/zerx-lab/penbridge/internal/ops"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/platform/devcloud"
	"github.com/zerx-lab/penbridge/internal/platform/quill"
	"github.com/zerx-lab/penbridge/internal/platform/techforum"
	"github.com/zerx-lab/penbridge/internal/session"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"article": true, "target": true, "publish": true, "draft": true,
	"reconcile": true, "tags": true, "session": true,
	"export": true, "import": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
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
                    _          _     _
   _ __   ___ _ __ | |__  _ __(_) __| | __ _  ___
  | '_ \ / _ \ '_ \| '_ \| '__| |/ _' |/ _' |/ _ \
  | |_) |  __/ | | | |_) | |  | | (_| | (_| |  __/
  | .__/ \___|_| |_|_.__/|_|  |_|\__,_|\__, |\___|
  |_|                                  |___/

  Local publish bridge for devcloud, techforum, and quill

  Usage: penbridge <command> [options]
         penbridge --help

  MCP server mode requires piped input.`)
}

// buildRegistry wires the three platform adapters over the stored sessions.
func buildRegistry(cfg *config.Config, sessions *session.Store, logger *slog.Logger) *platform.Registry {
	timeout := cfg.HTTPTimeout()
	reg := platform.NewRegistry()

	reg.Register(platform.DevCloud, platform.Entry{
		Client:   devcloud.New(cfg.BaseURL("devcloud", devcloud.DefaultBaseURL), timeout, sessions, logger),
		Rules:    devcloud.Rules(),
		Classify: devcloud.Classify,
		Login:    devcloud.LoginSpec(),
	})
	reg.Register(platform.TechForum, platform.Entry{
		Client:   techforum.New(cfg.BaseURL("techforum", techforum.DefaultBaseURL), timeout, sessions, logger),
		Rules:    techforum.Rules(),
		Classify: techforum.Classify,
		Login:    techforum.LoginSpec(),
	})
	reg.Register(platform.Quill, platform.Entry{
		Client:   quill.New(cfg.BaseURL("quill", quill.DefaultBaseURL), timeout, sessions, logger),
		Rules:    quill.Rules(),
		Classify: quill.Classify,
		Login:    quill.LoginSpec(),
	})
	return reg
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
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

	baseDir := filepath.Join(homeDir, ".penbridge")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	// Global config overlaid with the nearest repo config, so per-project
	// settings like platform_base_urls can live next to the articles.
	cwd, err := os.Getwd()
	if err != nil {
		cwd = homeDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	// Stdout carries command output (and the MCP protocol), so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	sessions := session.NewStore(database)
	registry := buildRegistry(cfg, sessions, logger)

	// No browser surface in CLI or MCP mode; session import covers login.
	env := ops.NewEnv(database, cfg, registry, sessions, nil, logger)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'penbridge --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(env, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
