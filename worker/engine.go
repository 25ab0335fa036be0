package worker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/jacokyle01/analysis-replay/models"
)

var errEngineClosed = errors.New("engine output closed")

// ChessEngine wraps a UCI chess engine
type ChessEngine struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  *bufio.Writer
	stdout *bufio.Scanner
}

// NewChessEngine starts the engine binary and completes the UCI handshake.
func NewChessEngine(enginePath string) (*ChessEngine, error) {
	cmd := exec.Command(enginePath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %s: %w", enginePath, err)
	}

	engine := newUCIEngine(stdin, stdout)
	engine.cmd = cmd
	if err := engine.handshake(); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	return engine, nil
}

func newUCIEngine(in io.Writer, out io.Reader) *ChessEngine {
	return &ChessEngine{
		stdin:  bufio.NewWriter(in),
		stdout: bufio.NewScanner(out),
	}
}

func (e *ChessEngine) handshake() error {
	if err := e.sendCommand("uci"); err != nil {
		return err
	}
	if _, err := e.waitForResponse("uciok"); err != nil {
		return fmt.Errorf("uci handshake: %w", err)
	}
	if err := e.sendCommand("isready"); err != nil {
		return err
	}
	if _, err := e.waitForResponse("readyok"); err != nil {
		return fmt.Errorf("uci handshake: %w", err)
	}
	return nil
}

func (e *ChessEngine) sendCommand(cmd string) error {
	if _, err := e.stdin.WriteString(cmd + "\n"); err != nil {
		return err
	}
	return e.stdin.Flush()
}

func (e *ChessEngine) waitForResponse(expected string) (string, error) {
	for e.stdout.Scan() {
		line := e.stdout.Text()
		if strings.Contains(line, expected) {
			return line, nil
		}
	}
	if err := e.stdout.Err(); err != nil {
		return "", err
	}
	return "", errEngineClosed
}

func (e *ChessEngine) readUntilBestMove() ([]string, error) {
	var lines []string
	for e.stdout.Scan() {
		line := e.stdout.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "bestmove") {
			return lines, nil
		}
	}
	if err := e.stdout.Err(); err != nil {
		return lines, err
	}
	return lines, errEngineClosed
}

// AnalyzePosition analyzes a chess position
func (e *ChessEngine) AnalyzePosition(fen string, depth int, timeMS int) (*models.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sendCommand("ucinewgame"); err != nil {
		return nil, err
	}
	if err := e.sendCommand(fmt.Sprintf("position fen %s", fen)); err != nil {
		return nil, err
	}
	if err := e.sendCommand(fmt.Sprintf("go depth %d movetime %d", depth, timeMS)); err != nil {
		return nil, err
	}

	lines, err := e.readUntilBestMove()
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", fen, err)
	}

	res := parseEngineOutput(lines)
	if res.Depth == 0 {
		res.Depth = depth
	}
	res.Time = timeMS
	return res, nil
}

// parseEngineOutput reads the last reported score, depth, node counts
// and principal variation, plus the final bestmove line.
func parseEngineOutput(lines []string) *models.Result {
	res := &models.Result{}

	for _, line := range lines {
		if strings.HasPrefix(line, "info") {
			parts := strings.Fields(line)
			for i, part := range parts {
				switch part {
				case "score":
					if i+2 >= len(parts) {
						continue
					}
					switch parts[i+1] {
					case "cp":
						fmt.Sscanf(parts[i+2], "%d", &res.Eval)
						res.Mate = nil
					case "mate":
						var n int
						if _, err := fmt.Sscanf(parts[i+2], "%d", &n); err == nil {
							res.Mate = &n
							res.Eval = 0
						}
					}
				case "depth":
					if i+1 < len(parts) {
						fmt.Sscanf(parts[i+1], "%d", &res.Depth)
					}
				case "nodes":
					if i+1 < len(parts) {
						fmt.Sscanf(parts[i+1], "%d", &res.Nodes)
					}
				case "nps":
					if i+1 < len(parts) {
						fmt.Sscanf(parts[i+1], "%d", &res.NodesPerS)
					}
				case "pv":
					if i+1 < len(parts) {
						res.PV = strings.Join(parts[i+1:], " ")
					}
				}
				if part == "pv" {
					break
				}
			}
		} else if strings.HasPrefix(line, "bestmove") {
			parts := strings.Fields(line)
			if len(parts) > 1 && parts[1] != "(none)" {
				res.BestMove = parts[1]
			}
		}
	}

	return res
}

// Close stops the engine process.
func (e *ChessEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendCommand("quit")
	if e.cmd != nil {
		e.cmd.Wait()
	}
}
