package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/substrateos/spacekit/cmd/spaceexplorer/logger"
	"github.com/substrateos/spacekit/env"
	"github.com/substrateos/spacekit/space/parent"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	debugMode := false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--debug", "-d":
			debugMode = true
		case "--help", "-h":
			printHelp()
			os.Exit(0)
		case "--version", "-v":
			fmt.Printf("spaceexplorer %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built: %s\n", date)
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown argument: %s\n", arg)
			printHelp()
			os.Exit(1)
		}
	}

	// Initialize logger (must be before any logging calls)
	if err := logger.Init(logger.Options{
		Enabled: debugMode,
		Level:   slog.LevelDebug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logging: %v\n", err)
	}

	logger.Info("starting spaceexplorer", "debug", debugMode)

	upstream := parent.NewLocal(parent.LocalOptions{})
	e, err := env.New(upstream, env.Options{})
	if err != nil {
		logger.Error("environment construction failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: cannot build environment: %v\n", err)
		os.Exit(1)
	}
	defer e.Close()

	p := tea.NewProgram(NewModel(e, upstream), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("program failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`spaceexplorer - interactive inspector for a live address space

Usage:
  spaceexplorer [flags]

Flags:
  -d, --debug    Write a debug log to ~/.spaceexplorer/logs
  -h, --help     Show this help
  -v, --version  Show version information

The explorer builds a real process environment (root space over host
mappings, local router, in-process parent) and lets you attach, reserve,
and detach interactively.`)
}
