package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"todosync/internal/backend"
	"todosync/internal/config"
	"todosync/internal/logging"
	"todosync/internal/todo"
	"todosync/internal/ui"
)

func main() {
	configPath := flag.String("config", config.ResolveConfigPath(), "path to config.toml")
	backendName := flag.String("backend", "", "document store to use: appwrite, mongo or sqlite")
	logPath := flag.String("log", "", "diagnostic log file (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *backendName != "" {
		cfg.Backend = strings.ToLower(*backendName)
	}
	if *logPath != "" {
		cfg.Log.Path = *logPath
	}

	logger, logFile, err := logging.Open(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		fmt.Printf("failed to open log: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.Info("starting", "backend", cfg.Backend, "database", cfg.DatabaseID, "collection", cfg.CollectionID)

	store, err := backend.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open document store", "err", err)
		fmt.Printf("failed to open document store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	view := todo.NewView(store, logger)
	if err := ui.Run(view, cfg); err != nil {
		logger.Error("program exited", "err", err)
		fmt.Printf("error running program: %v\n", err)
		os.Exit(1)
	}
}
