package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yamihome/yami/internal/config"
	"github.com/yamihome/yami/internal/deps"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/internal/modules/youtubedownloader"
	"github.com/yamihome/yami/internal/shell"
	"github.com/yamihome/yami/registry"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		flagModule string
		flagConfig string
	)
	flag.StringVar(&flagModule, "m", "", "Module to run directly, skipping the menu")
	flag.StringVar(&flagModule, "module", "", "Module to run directly, skipping the menu")
	flag.StringVar(&flagConfig, "config", config.DefaultPath(), "Path to config.yml")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-m module] [-config path]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	cfg.Log.ApplyEnvironment()
	lg, closer, err := cfg.Log.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		return 1
	}
	defer func() { _ = closer.Close() }()
	logger.SetGlobalLogger(lg)
	log := logger.WithComponent(logger.ComponentApp)

	reg := registry.New(registry.Options{
		Dir:     cfg.ModulesDir,
		Ext:     cfg.ManifestExt,
		Checker: deps.NewChecker(),
	})
	if err := reg.Register(youtubedownloader.Name, youtubedownloader.New()); err != nil {
		log.Error("Module registration failed", logger.Fields{"error": err.Error()})
		return 1
	}
	log.Debug("Starting", logger.Fields{"version": cfg.GetString("version"), "config": cfg.Path(), "modules_dir": reg.Dir()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := shell.New(reg, cfg, shell.Options{Module: flagModule, Pause: shell.DefaultPause})
	if err := sh.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		log.Error("Module failed", logger.Fields{"error": err.Error()})
		return 1
	}
	return 0
}
