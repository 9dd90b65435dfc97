// Pi-llama — терминальный чат с локальной моделью за OpenAI-совместимым прокси.
//
// Использование:
//
//	./pi-llama
//	./pi-llama -config ./config.yaml -mode plain
//	./pi-llama -theme dracula -debug
//
// Без config.yaml работает на дефолтах (http://localhost:3080).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/pi-llama/pkg/app"
	"github.com/ilkoid/pi-llama/pkg/tui"
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
		mode        = flag.String("mode", "", "Chat mode: tools | plain (overrides config)")
		theme       = flag.String("theme", "", "Color scheme: default | light | dracula")
		debugFlag   = flag.Bool("debug", false, "Enable debug logging")
		traceFlag   = flag.Bool("trace", false, "Write a JSON trace of every message to <log_dir>/traces")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pi-llama version %s\n", Version)
		return nil
	}

	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		return err
	}
	if *debugFlag {
		cfg.App.Debug = true
	}
	if *traceFlag {
		cfg.App.Trace = true
	}
	if *theme != "" {
		cfg.App.Theme = *theme
	}

	if err := utils.InitLogger(cfg.App.LogDir); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	utils.SetDebug(cfg.App.Debug)
	defer utils.Close()

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	utils.Info("pi-llama starting", "version", Version, "config", cfgPath)

	comps, err := app.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	if *mode != "" {
		if err := comps.Controller.SetMode(*mode); err != nil {
			return err
		}
	}

	return tui.Run(ctx, comps.Controller,
		tui.WithTitle(cfg.App.Title),
		tui.WithColorScheme(cfg.App.Theme))
}
