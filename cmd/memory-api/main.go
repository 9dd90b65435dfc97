// Memory-api — HTTP сервер долговременной памяти на SQLite.
//
// Использование:
//
//	./memory-api
//	./memory-api -listen :8300 -db ./memory.db
//
// Клиенты (pi-llama, ask) подключаются через memory.url в config.yaml.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/pi-llama/pkg/app"
	"github.com/ilkoid/pi-llama/pkg/llm/openai"
	"github.com/ilkoid/pi-llama/pkg/memory"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

// Version — версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: ./config.yaml)")
		listen      = flag.String("listen", "", "Listen address (overrides memory.listen)")
		dbPath      = flag.String("db", "", "SQLite file (overrides memory.db_path)")
		debugFlag   = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("memory-api version %s\n", Version)
		return nil
	}

	cfg, _, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Memory.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Memory.DBPath = *dbPath
	}

	if err := utils.InitLogger(cfg.App.LogDir); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	utils.SetDebug(*debugFlag || cfg.App.Debug)
	defer utils.Close()

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	// Эмбеддинги считает тот же OpenAI-совместимый прокси
	embedder := openai.NewClient(cfg.LLM)

	store, err := memory.Open(cfg.Memory.DBPath, embedder,
		memory.WithThreshold(cfg.Memory.SimilarityThreshold))
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	defer store.Close()

	utils.Info("memory-api starting",
		"version", Version,
		"db", cfg.Memory.DBPath,
		"embedding_model", cfg.LLM.EmbeddingModel)

	srv := memory.NewServer(store, memory.WithLimits(cfg.Memory.SearchLimit, cfg.Memory.ListLimit))
	fmt.Printf("memory-api listening on %s (db: %s)\n", cfg.Memory.Listen, cfg.Memory.DBPath)
	return srv.ListenAndServe(ctx, cfg.Memory.Listen)
}
