package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/jacokyle01/analysis-replay/config"
	"github.com/jacokyle01/analysis-replay/primaryserver"
)

type serverConfig struct {
	Port       int `env:"REPLAY_SERVER_PORT" envDefault:"8080"`
	Depth      int `env:"REPLAY_ENGINE_DEPTH" envDefault:"15"`
	MoveTimeMS int `env:"REPLAY_ENGINE_MOVETIME_MS" envDefault:"1000"`
	QueueSize  int `env:"REPLAY_QUEUE_SIZE" envDefault:"4096"`
}

func parseServerConfig(args []string) (serverConfig, error) {
	var cfg serverConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return serverConfig{}, err
	}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.IntVar(&cfg.Depth, "depth", cfg.Depth, "Search depth per position")
	fs.IntVar(&cfg.MoveTimeMS, "movetime", cfg.MoveTimeMS, "Search time per position in milliseconds")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Maximum queued position jobs")
	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}
	if fs.NArg() > 0 {
		port, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			return serverConfig{}, fmt.Errorf("invalid port %q", fs.Arg(0))
		}
		cfg.Port = port
	}
	return cfg, nil
}

func runServer(ctx context.Context, args []string) error {
	cfg, err := parseServerConfig(args)
	if err != nil {
		return err
	}
	srv := primaryserver.NewServer(primaryserver.Options{
		QueueSize:  cfg.QueueSize,
		Depth:      cfg.Depth,
		MoveTimeMS: cfg.MoveTimeMS,
	})
	return srv.StartServer(ctx, fmt.Sprintf(":%d", cfg.Port))
}
