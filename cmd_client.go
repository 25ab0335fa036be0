package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"time"

	"github.com/jacokyle01/analysis-replay/config"
	"github.com/jacokyle01/analysis-replay/worker"
)

type clientConfig struct {
	ServerURL  string        `env:"REPLAY_SERVER_URL" envDefault:"http://localhost:8080"`
	EnginePath string        `env:"REPLAY_ENGINE_PATH"`
	IdleWait   time.Duration `env:"REPLAY_WORKER_IDLE_WAIT" envDefault:"2s"`
}

func parseClientConfig(args []string) (clientConfig, error) {
	var cfg clientConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return clientConfig{}, err
	}
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Analysis server URL")
	fs.StringVar(&cfg.EnginePath, "engine", cfg.EnginePath, "Path to a UCI engine binary")
	fs.DurationVar(&cfg.IdleWait, "idle-wait", cfg.IdleWait, "Pause when the server has no work")
	if err := fs.Parse(args); err != nil {
		return clientConfig{}, err
	}
	if fs.NArg() > 0 {
		cfg.ServerURL = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		cfg.EnginePath = fs.Arg(1)
	}
	if cfg.EnginePath == "" {
		path, err := defaultEnginePath(runtime.GOOS)
		if err != nil {
			return clientConfig{}, err
		}
		cfg.EnginePath = path
	}
	return cfg, nil
}

func defaultEnginePath(goos string) (string, error) {
	switch goos {
	case "windows":
		return "../stockfish/stockfish-windows-x86-64-avx2.exe", nil
	case "linux":
		return "../stockfish/stockfish-ubuntu-x86-64-avx512", nil
	default:
		return "", fmt.Errorf("no default engine for %s, pass -engine", goos)
	}
}

func runClient(ctx context.Context, args []string) error {
	cfg, err := parseClientConfig(args)
	if err != nil {
		return err
	}

	client, err := worker.NewClient(cfg.ServerURL, cfg.EnginePath)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer client.Close()

	client.WorkLoop(ctx)
	return nil
}
