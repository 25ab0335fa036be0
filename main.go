// Command analysis-replay submits chess games for engine analysis and
// replays them move by move with the analysis attached.
//
//	analysis-replay server [port]                     run the analysis server
//	analysis-replay client [server_url] [engine_path] run an engine worker
//	analysis-replay analyze <pgn-file|->              submit a game and wait
//	analysis-replay replay                            step through the game
//	analysis-replay example                           run a server with a sample game
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "server":
		log.SetPrefix("[SERVER] ")
		err = runServer(ctx, os.Args[2:])
	case "client":
		log.SetPrefix("[WORKER] ")
		err = runClient(ctx, os.Args[2:])
	case "analyze":
		err = runAnalyze(ctx, os.Args[2:], os.Stdin, os.Stdout)
	case "replay":
		err = runReplayCommand(ctx, os.Args[2:], os.Stdin, os.Stdout)
	case "example":
		err = runExample(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintln(os.Stderr, "Unknown command:", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		stop()
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func printUsage() {
	fmt.Print(`Usage:
  analysis-replay server [port]                      - Run the analysis server
  analysis-replay client [server_url] [engine_path]  - Run an engine worker
  analysis-replay analyze [flags] <pgn-file|->       - Submit a game and wait for its analysis
  analysis-replay replay [flags]                     - Step through the analyzed game
  analysis-replay example                            - Run a server with a sample game queued

Environment:
  REPLAY_SERVER_PORT, REPLAY_SERVER_URL, REPLAY_ENGINE_PATH, REPLAY_ENGINE_DEPTH,
  REPLAY_ENGINE_MOVETIME_MS, REPLAY_POLL_INTERVAL, REPLAY_MAX_WAIT,
  REPLAY_MAX_POLL_ERRORS, REPLAY_SESSION_DB, REPLAY_SESSION_ID
`)
}
