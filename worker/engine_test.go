package worker

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jacokyle01/analysis-replay/models"
)

func intp(v int) *int { return &v }

func TestParseEngineOutput(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  models.Result
	}{
		{
			name: "centipawn score",
			lines: []string{
				"info depth 1 seldepth 1 score cp 12 nodes 20 nps 20000 pv e2e4",
				"info depth 14 seldepth 20 multipv 1 score cp 34 nodes 150000 nps 900000 time 166 pv e2e4 e7e5 g1f3",
				"bestmove e2e4 ponder e7e5",
			},
			want: models.Result{BestMove: "e2e4", Eval: 34, Depth: 14, Nodes: 150000, NodesPerS: 900000, PV: "e2e4 e7e5 g1f3"},
		},
		{
			name: "mate replaces an earlier score",
			lines: []string{
				"info depth 5 score cp 800 nodes 500 pv d1h5",
				"info depth 6 score mate 2 nodes 900 pv d1h5 g7g6 h5f7",
				"bestmove d1h5",
			},
			want: models.Result{BestMove: "d1h5", Mate: intp(2), Depth: 6, Nodes: 900, PV: "d1h5 g7g6 h5f7"},
		},
		{
			name: "checkmated side has no move",
			lines: []string{
				"info depth 0 score mate 0",
				"bestmove (none)",
			},
			want: models.Result{Mate: intp(0)},
		},
		{
			name:  "truncated score",
			lines: []string{"info depth 3 score", "bestmove a2a3"},
			want:  models.Result{BestMove: "a2a3", Depth: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseEngineOutput(tt.lines)
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// fakeUCI answers the commands a ChessEngine sends with canned output.
func fakeUCI(t *testing.T, commands io.Reader, replies io.WriteCloser, search []string) {
	t.Helper()
	go func() {
		defer replies.Close()
		scanner := bufio.NewScanner(commands)
		for scanner.Scan() {
			cmd := scanner.Text()
			switch {
			case cmd == "uci":
				io.WriteString(replies, "id name Fake\nuciok\n")
			case cmd == "isready":
				io.WriteString(replies, "readyok\n")
			case strings.HasPrefix(cmd, "go "):
				io.WriteString(replies, strings.Join(search, "\n")+"\n")
			case cmd == "quit":
				return
			}
		}
	}()
}

func TestUCIEngineAnalyzePosition(t *testing.T) {
	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()
	fakeUCI(t, cmdR, outW, []string{
		"info depth 12 score cp -25 nodes 4000 nps 8000 pv e7e5 g1f3",
		"bestmove e7e5 ponder g1f3",
	})

	e := newUCIEngine(cmdW, outR)
	if err := e.handshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	res, err := e.AnalyzePosition("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1", 15, 250)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.BestMove != "e7e5" || res.Eval != -25 || res.Depth != 12 || res.Time != 250 {
		t.Fatalf("unexpected result %+v", res)
	}
	e.Close()
}

func TestUCIEngineOutputClosed(t *testing.T) {
	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()
	go func() {
		// Answer the handshake, then exit without searching.
		scanner := bufio.NewScanner(cmdR)
		for scanner.Scan() {
			switch scanner.Text() {
			case "uci":
				io.WriteString(outW, "uciok\n")
			case "isready":
				io.WriteString(outW, "readyok\n")
			default:
				outW.Close()
				io.Copy(io.Discard, cmdR)
				return
			}
		}
	}()

	e := newUCIEngine(cmdW, outR)
	if err := e.handshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if _, err := e.AnalyzePosition("8/8/8/8/8/8/8/K6k w - - 0 1", 5, 10); err == nil {
		t.Fatal("expected an error when the engine goes away")
	}
}
