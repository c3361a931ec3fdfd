// Paroliere Server - Main Entry Point
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"paroliere/internal/config"
	"paroliere/internal/game"
	"paroliere/internal/server"
	"paroliere/pkg/console"
	"paroliere/pkg/logger"
)

var (
	version   = "1.0.0"
	buildTime = "dev"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		showHelp()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "Run %s -help for usage\n", os.Args[0])
		os.Exit(2)
	}

	if cfg.ShowVersion {
		showVersion()
		return
	}

	log, err := initLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Paroliere server v%s", version)

	dict, skipped, err := game.LoadDictionary(cfg.DictionaryPath)
	if err != nil {
		log.Fatal("Failed to load dictionary: %v", err)
	}
	log.Info("Loaded %d words from %s (%d skipped)", dict.Len(), cfg.DictionaryPath, skipped)

	var grids game.GridSource
	if cfg.GridPath != "" {
		src, err := game.OpenFileSource(cfg.GridPath)
		if err != nil {
			log.Fatal("Failed to open grid file: %v", err)
		}
		grids = src
		log.Info("Reading grids from %s", cfg.GridPath)
	}

	srv := server.New(cfg, server.Deps{
		Dictionary: dict,
		Grids:      grids,
		Logger:     log.Named("server"),
		Console:    console.New(os.Stdout),
	})

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error("Server stopped with errors: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

// initLogging sets up the logging system
func initLogging(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Options{
		Name:  cfg.Name,
		Level: logger.ParseLevel(cfg.LogLevel),
		File:  cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set log file: %w", err)
	}
	if cfg.LogFile != "" {
		log.Info("Logging to file: %s", cfg.LogFile)
	}
	return log, nil
}

// showHelp displays help information
func showHelp() {
	fmt.Printf(`Paroliere Server v%s

USAGE:
    %s [OPTIONS] [NAME [PORT]]

OPTIONS:
    -name string              Server name shown to clients (default "paroliere")
    -host string              Listen host (default "localhost")
    -port int                 Listen port, 1025-65535 (default 8080)
    -round duration           Round duration (default 3m)
    -break duration           Break between rounds (default 1m)
    -disconnect-after dur     Disconnect idle clients after this long (default 3m)
    -dict string              Dictionary file (default "dictionary.txt")
    -grids string             Grid file, one grid per line (optional)
    -seed int                 Seed for random grids (optional)
    -max-clients int          Maximum concurrent clients (default 32)
    -score-grace duration     Pause before forcing score collection (default 1s)
    -ranking-timeout dur      Longest wait for the ranking broadcast (default 10s)
    -shutdown-grace duration  Longest wait for sessions at shutdown (default 5s)
    -rate float               Messages per second per client (default 20)
    -burst int                Message burst per client (default 40)
    -log-level string         Log level (DEBUG, INFO, WARN, ERROR) (default "INFO")
    -log-file string          Log file path, empty to disable (default "paroliere.log")
    -status-addr string       HTTP status address, empty to disable
    -help                     Show this help message
    -version                  Show version information

ENVIRONMENT:
    Every option can be set as PAROLIERE_<NAME>, for example PAROLIERE_PORT or
    PAROLIERE_ROUND_DURATION. A .env file in the working directory is read first.
    Flags win over the environment, which wins over .env.

EXAMPLES:
    # Start with default settings
    %s

    # Positional name and port
    %s lobby 9000

    # Short rounds from a grid file
    %s -round 1m -break 20s -grids grids.txt

    # Reproducible random grids with a status endpoint
    %s -seed 42 -status-addr :8081
`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

// showVersion displays version information
func showVersion() {
	fmt.Printf(`Paroliere Server
Version: %s
Build Time: %s
`, version, buildTime)
}
