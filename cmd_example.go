package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacokyle01/analysis-replay/analysis"
	"github.com/jacokyle01/analysis-replay/primaryserver"
)

const sampleGame = `[Event "Live Chess"]
[Site "Chess.com"]
[Date "2025.02.11"]
[Round "?"]
[White "petar-rovcanin"]
[Black "puneethm123"]
[Result "1-0"]
[TimeControl "300"]
[WhiteElo "1504"]
[BlackElo "1467"]
[Termination "petar-rovcanin won by resignation"]
[ECO "B01"]

1. e4 d5 2. exd5 Qxd5 3. Nc3 Qd8 4. d4 Nf6 5. h3 Bf5 6. Nf3 Bg6 7. Bd3 e6 8.
Bxg6 fxg6 9. Bg5 Be7 10. Qe2 Qd7 11. O-O-O Nd5 12. Bxe7 Nxe7 13. d5 exd5 14.
Rxd5 Qc6 15. Re5 Qf6 16. Nd5 1-0`

func runExample(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("example", flag.ContinueOnError)
	port := fs.Int("port", 8080, "HTTP port")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr := fmt.Sprintf(":%d", *port)
	baseURL := fmt.Sprintf("http://localhost:%d", *port)

	fmt.Println("Starting example server...")
	srv := primaryserver.NewServer(primaryserver.Options{Depth: 10, MoveTimeMS: 3000})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.StartServer(ctx, addr)
	})
	g.Go(func() error {
		if err := waitReady(ctx, baseURL+"/queue"); err != nil {
			return err
		}
		id, err := analysis.NewHTTPBackend(baseURL, nil).Submit(ctx, sampleGame)
		if err != nil {
			return fmt.Errorf("submitting sample game: %w", err)
		}
		fmt.Printf("Submitted sample game, task ID: %s\n", id)
		fmt.Println("Now run a client to process the jobs:")
		fmt.Printf("  analysis-replay client %s /path/to/stockfish\n", baseURL)
		fmt.Printf("and follow the task at %s/task_status/%s\n", baseURL, id)
		return nil
	})
	return g.Wait()
}

// waitReady polls url until the server answers.
func waitReady(ctx context.Context, url string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
