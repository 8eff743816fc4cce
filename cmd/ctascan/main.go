package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/ctascan/internal/config"
	"github.com/rewired-gh/ctascan/internal/logger"
)

var (
	configPath  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	kindFlag    = flag.String("kind", "", "Analysis target: image, text or caption (overrides analysis.kind)")
	backendFlag = flag.String("backend", "", "Oracle backend: cloud or local (overrides analysis.backend)")
	rootFlag    = flag.String("root", "", "Archive root directory (overrides scan.root_path)")
)

const usage = `Usage: ctascan [flags] [command]

Commands:
  run      analyze every relevant asset without a sidecar (default)
  check    rebuild the kind's summary from the sidecars on disk
  missing  list relevant assets that have no sidecar yet
  collect  list the caption, images and sidecars of every relevant post
  export   write every readable sidecar into the SQLite export table

Flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	handler, ok := commands[command]
	if !ok || flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("Configuration loaded from %s", *configPath)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, finishing in-flight analyses...")
		cancel()
	}()

	if err := handler(ctx, cfg); err != nil {
		cancel()
		logger.Fatal("%s failed: %v", command, err)
	}
}

func applyFlags(cfg *config.Config) {
	if *kindFlag != "" {
		cfg.Analysis.Kind = *kindFlag
	}
	if *backendFlag != "" {
		cfg.Analysis.Backend = *backendFlag
	}
	if *rootFlag != "" {
		cfg.Scan.RootPath = *rootFlag
	}
}
