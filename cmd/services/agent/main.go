package main

import (
	"fmt"
	"os"

	"github.com/LiXi-storage/clownfish/internal/config"
	"github.com/LiXi-storage/clownfish/internal/logging"
	"github.com/LiXi-storage/clownfish/internal/supervisor"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// The agent exposes no command-line flags. The config file location
	// can be overridden through the environment for packaging layouts
	// that keep it outside the default search path.
	configPath := os.Getenv("CLOWNF_AGENT_CONFIG")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("High-availability agent starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	s, err := supervisor.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start agent", "error", err)
		os.Exit(1)
	}

	if err := s.Run(); err != nil {
		logger.Error("agent shut down with error", "error", err)
		os.Exit(1)
	}

	logger.Info("High-availability agent stopped")
}
