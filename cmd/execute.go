// Package cmd implements the campusq command line interface.
//
// Following the pattern used by kubectl, hugo, and other standard Go CLI
// tools, all application logic is contained in the cmd package, leaving
// main.go as a minimal entry point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/campusq/campusq/internal/log"
)

// Version information (injected at build time via ldflags).
// These variables are set by the build system and should not be modified directly.
var (
	AppVersion = "0.0.1"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the campusq CLI.
// It handles flag parsing and command routing.
func Execute() error {
	// Handle special flags before full initialization so --version and
	// --help work even if config is invalid.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "seed":
			if len(os.Args) < 3 {
				return fmt.Errorf("usage: campusq seed <facts.json>")
			}
			return runSeed(os.Args[2])
		case "serve":
			return runServe()
		default:
			printHelp()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}

	// Serve is the default command.
	return runServe()
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	logger := log.New(cfg)
	slog.SetDefault(logger)
	return logger
}

// printVersionInfo displays version information.
func printVersionInfo() error {
	fmt.Printf("campusq v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

// printHelp displays the help message.
func printHelp() {
	fmt.Println("campusq - campus Q&A forum with an approval-driven knowledge chatbot")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  campusq                    Start the HTTP API server (default)")
	fmt.Println("  campusq serve              Start the HTTP API server")
	fmt.Println("  campusq seed <facts.json>  Load curated facts into the knowledge store")
	fmt.Println("  campusq --version          Show version information")
	fmt.Println("  campusq --help             Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY             Required with the gemini provider (default)")
	fmt.Println("  OPENAI_API_KEY             Required with the openai provider")
	fmt.Println("  DATABASE_URL               Optional: overrides postgres_* settings")
	fmt.Println("  CAMPUSQ_PROVIDER           Optional: gemini, ollama, or openai")
	fmt.Println("  CAMPUSQ_LISTEN_ADDR        Optional: HTTP listen address")
	fmt.Println("  DEBUG                      Optional: enable debug logging")
}
