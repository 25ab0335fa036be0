package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jacokyle01/analysis-replay/analysis"
	"github.com/jacokyle01/analysis-replay/config"
	"github.com/jacokyle01/analysis-replay/rules"
	"github.com/jacokyle01/analysis-replay/session"
	"github.com/jacokyle01/analysis-replay/viewer"
)

type sessionConfig struct {
	SessionDB string `env:"REPLAY_SESSION_DB" envDefault:"data/session.db"`
	SessionID string `env:"REPLAY_SESSION_ID" envDefault:"default"`
}

func (c *sessionConfig) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.SessionDB, "db", c.SessionDB, "Session database path")
	fs.StringVar(&c.SessionID, "session", c.SessionID, "Session id")
}

func openSession(cfg sessionConfig) (*session.Store, error) {
	if dir := filepath.Dir(cfg.SessionDB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}
	return session.Open(cfg.SessionDB)
}

type analyzeConfig struct {
	Session       sessionConfig
	ServerURL     string        `env:"REPLAY_SERVER_URL" envDefault:"http://localhost:8080"`
	PollInterval  time.Duration `env:"REPLAY_POLL_INTERVAL" envDefault:"2s"`
	MaxWait       time.Duration `env:"REPLAY_MAX_WAIT" envDefault:"0s"`
	MaxPollErrors int           `env:"REPLAY_MAX_POLL_ERRORS" envDefault:"0"`
	Input         string
}

func parseAnalyzeConfig(args []string) (analyzeConfig, error) {
	var cfg analyzeConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return analyzeConfig{}, err
	}
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	cfg.Session.bind(fs)
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Analysis server URL")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "Status poll interval")
	fs.DurationVar(&cfg.MaxWait, "max-wait", cfg.MaxWait, "Give up after this long (0 waits forever)")
	fs.IntVar(&cfg.MaxPollErrors, "max-poll-errors", cfg.MaxPollErrors, "Give up after this many failed polls in a row (0 never)")
	if err := fs.Parse(args); err != nil {
		return analyzeConfig{}, err
	}
	if fs.NArg() != 1 {
		return analyzeConfig{}, errors.New("usage: analyze [flags] <pgn-file|->")
	}
	cfg.Input = fs.Arg(0)
	return cfg, nil
}

func (c analyzeConfig) timeoutPolicy() analysis.TimeoutPolicy {
	if c.MaxWait > 0 {
		return analysis.MaxWait(c.MaxWait)
	}
	return analysis.NoTimeout{}
}

func readRecord(path string, stdin io.Reader) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read game record: %w", err)
	}
	return string(raw), nil
}

func runAnalyze(ctx context.Context, args []string, stdin io.Reader, out io.Writer) error {
	cfg, err := parseAnalyzeConfig(args)
	if err != nil {
		return err
	}
	record, err := readRecord(cfg.Input, stdin)
	if err != nil {
		return err
	}

	store, err := openSession(cfg.Session)
	if err != nil {
		return err
	}
	defer store.Close()

	orch := analysis.New(analysis.NewHTTPBackend(cfg.ServerURL, nil), analysis.Config{
		PollInterval:  cfg.PollInterval,
		Timeout:       cfg.timeoutPolicy(),
		MaxPollErrors: cfg.MaxPollErrors,
		Notify:        printEvent(out),
	})
	defer orch.Close()

	job, err := viewer.NewAnalyzer(rules.NewChess(), store, cfg.Session.SessionID, orch).Run(ctx, record)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Analysis complete: %d entries. Run 'replay' to step through the game.\n", len(job.Result))
	return nil
}

func printEvent(out io.Writer) func(analysis.Event) {
	return func(ev analysis.Event) {
		switch ev.Kind {
		case analysis.EventPollError:
			fmt.Fprintf(out, "Error checking status of %s: %v\n", ev.Job.ID, ev.Err)
		default:
			fmt.Fprintf(out, "Job %s: %s\n", ev.Job.ID, ev.Job.Status)
		}
	}
}
