package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jacokyle01/analysis-replay/config"
	"github.com/jacokyle01/analysis-replay/rules"
	"github.com/jacokyle01/analysis-replay/viewer"
)

type replayConfig struct {
	Session sessionConfig
}

func parseReplayConfig(args []string) (replayConfig, error) {
	var cfg replayConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return replayConfig{}, err
	}
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	cfg.Session.bind(fs)
	if err := fs.Parse(args); err != nil {
		return replayConfig{}, err
	}
	return cfg, nil
}

func runReplayCommand(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cfg, err := parseReplayConfig(args)
	if err != nil {
		return err
	}
	store, err := openSession(cfg.Session)
	if err != nil {
		return err
	}
	defer store.Close()

	view, err := viewer.OpenReplay(ctx, rules.NewChess(), store, cfg.Session.SessionID)
	if err != nil {
		return err
	}
	return runReplay(view, in, out)
}

const replayHelp = `Commands:
  n        next move          p      previous move
  j <n>    jump to move n     s / e  start / end
  m        move list          q      quit
`

// runReplay reads one command per line from in until q or EOF.
func runReplay(view *viewer.Replay, in io.Reader, out io.Writer) error {
	if view.Len() == 0 {
		fmt.Fprintln(out, "No game loaded. Run 'analyze' first.")
	}
	if !view.HasAnalysis() {
		fmt.Fprintln(out, "No analysis stored for this game.")
	}
	fmt.Fprint(out, replayHelp)
	printPosition(view, out)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "n", "next":
			err = view.Forward()
		case "p", "prev":
			view.Backward()
		case "s", "start":
			err = view.JumpTo(0)
		case "e", "end":
			err = view.JumpTo(view.Len())
		case "j", "jump":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: j <move>")
				continue
			}
			n, convErr := strconv.Atoi(fields[1])
			if convErr != nil {
				fmt.Fprintf(out, "not a move number: %q\n", fields[1])
				continue
			}
			err = view.JumpTo(n)
		case "m", "moves":
			printMoves(view, out)
			continue
		case "q", "quit":
			return nil
		default:
			fmt.Fprint(out, replayHelp)
			continue
		}
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		printPosition(view, out)
	}
	return scanner.Err()
}

func printPosition(view *viewer.Replay, out io.Writer) {
	fmt.Fprintf(out, "\nMove %d/%d", view.Index(), view.Len())
	if mv, ok := view.LastMove(); ok {
		fmt.Fprintf(out, "  last: %s (%s)", mv.Notation, mv.UCI())
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, view.Board())
	fmt.Fprintln(out, "FEN:", view.FEN())
	fmt.Fprintf(out, "Eval: %s\n", formatEval(view.Evaluation()))
	if arrow, ok := view.Arrow(); ok {
		fmt.Fprintf(out, "Best: %s-%s%s\n", arrow.From, arrow.To, arrow.Promotion)
	}
	fmt.Fprintln(out, view.Commentary())
}

func formatEval(cp int) string {
	return fmt.Sprintf("%+.2f", float64(cp)/100)
}

func printMoves(view *viewer.Replay, out io.Writer) {
	idx := view.Index()
	for _, row := range view.Rows() {
		marker := "  "
		if idx > 0 && (row.WhiteIndex == idx || row.BlackIndex == idx) {
			marker = "> "
		}
		fmt.Fprintf(out, "%s%3d. %-8s %s\n", marker, row.Number, row.White, row.Black)
	}
}
