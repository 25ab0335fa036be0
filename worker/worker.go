package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jacokyle01/analysis-replay/models"
)

// Analyzer evaluates one position. *ChessEngine implements it.
type Analyzer interface {
	AnalyzePosition(fen string, depth int, timeMS int) (*models.Result, error)
	Close()
}

const (
	defaultIdleWait    = 2 * time.Second
	httpTimeout        = 30 * time.Second
	maxResultPostTries = 3
)

// Client represents a worker client
type Client struct {
	serverURL string
	engine    Analyzer
	http      *http.Client
	idleWait  time.Duration
	retry     *backoff.ExponentialBackOff
}

// NewClient starts the engine at enginePath and returns a worker for the
// server at serverURL.
func NewClient(serverURL, enginePath string) (*Client, error) {
	engine, err := NewChessEngine(enginePath)
	if err != nil {
		return nil, err
	}
	return NewClientWithAnalyzer(serverURL, engine, defaultIdleWait), nil
}

// NewClientWithAnalyzer returns a worker using a. idleWait is the pause
// after the server reports no work.
func NewClientWithAnalyzer(serverURL string, a Analyzer, idleWait time.Duration) *Client {
	if idleWait <= 0 {
		idleWait = defaultIdleWait
	}
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 500 * time.Millisecond
	retry.MaxInterval = 30 * time.Second
	return &Client{
		serverURL: serverURL,
		engine:    a,
		http:      &http.Client{Timeout: httpTimeout},
		idleWait:  idleWait,
		retry:     retry,
	}
}

// WorkLoop runs the main worker loop until ctx is done. Failures to reach
// the server back off exponentially.
func (c *Client) WorkLoop(ctx context.Context) {
	log.Printf("Starting worker, connecting to %s", c.serverURL)

	for {
		if ctx.Err() != nil {
			return
		}

		worked, err := c.processJob(ctx)
		var wait time.Duration
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			wait = c.retry.NextBackOff()
			log.Printf("Error processing job: %v (retrying in %s)", err, wait)
		case !worked:
			c.retry.Reset()
			wait = c.idleWait
			log.Printf("No jobs available, waiting...")
		default:
			c.retry.Reset()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// processJob fetches, analyzes and reports one job. It reports false when
// the server had no work.
func (c *Client) processJob(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/job", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("get job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("get job: server returned %d", resp.StatusCode)
	}

	var job models.PositionJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return false, fmt.Errorf("decode job: %w", err)
	}

	log.Printf("Processing job %s: %s", job.ID, job.FEN)

	// Analyze position
	result, err := c.engine.AnalyzePosition(job.FEN, job.Depth, job.TimeMS)
	if err != nil {
		log.Printf("Error analyzing position: %v", err)
		result = &models.Result{Error: err.Error()}
	}
	result.JobID = job.ID

	if err := c.submitResult(ctx, result); err != nil {
		return true, fmt.Errorf("submit result for job %s: %w", job.ID, err)
	}
	return true, nil
}

func (c *Client) submitResult(ctx context.Context, result *models.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/result", bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("server returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return struct{}{}, backoff.Permanent(fmt.Errorf("server returned %d", resp.StatusCode))
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxResultPostTries))
	return err
}

// Close stops the engine.
func (c *Client) Close() {
	c.engine.Close()
}
