package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/mjharwood/medley/internal"
	"github.com/mjharwood/medley/pkg/logger"
)

var log = logger.Get("Main")

// main() is the entry point to the program. The users Medley
// configuration is loaded from their home directory (or the path given
// with -config) and the core is spun up until interrupted.
func main() {
	home, err := homedir.Dir()
	if err != nil {
		log.Fatalf("Failed to determine user home dir: %v\n", err.Error())
		os.Exit(1)
	}

	defaultConfigPath := filepath.Join(home, ".config", "medley", "config.yaml")
	configPath := flag.String("config", defaultConfigPath, "path to the Medley configuration file")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	if *verbose {
		logger.SetMinLoggingLevel(logger.VERBOSE.Level())
	} else {
		logger.SetMinLoggingLevel(logger.INFO.Level())
	}

	config := internal.MedleyConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v\n", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Fatalf("Medley stopped due to error: %v\n", err.Error())
		os.Exit(1)
	}
}
