package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jacokyle01/analysis-replay/models"
)

// Report is one status reply for a submitted job.
type Report struct {
	Status models.TaskStatus
	Result models.AnalysisSet // set once Status is SUCCESS
	Raw    json.RawMessage    // the full reply, kept for diagnostics
	Error  string
}

// Backend is the external analysis service.
type Backend interface {
	// Submit hands a record to the service and returns its job id.
	Submit(ctx context.Context, record string) (string, error)
	// Status reports the current state of a job.
	Status(ctx context.Context, id string) (Report, error)
}

// HTTPBackend talks to the analysis server over HTTP.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

const defaultRequestTimeout = 10 * time.Second

// NewHTTPBackend returns a client for the server at baseURL. A nil client
// gets a 10 second timeout.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Submit posts the record to /analyze.
func (b *HTTPBackend) Submit(ctx context.Context, record string) (string, error) {
	body, err := json.Marshal(map[string]string{"pgn": record})
	if err != nil {
		return "", &TransportError{Op: "submit", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Op: "submit", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := b.do(req, "submit")
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(raw, "task_id").String()
	if id == "" {
		return "", &TransportError{Op: "submit", Cause: errors.New("reply has no task_id")}
	}
	return id, nil
}

// Status fetches /task_status/{id}.
func (b *HTTPBackend) Status(ctx context.Context, id string) (Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/task_status/"+url.PathEscape(id), nil)
	if err != nil {
		return Report{}, &TransportError{Op: "status", Cause: err}
	}
	raw, err := b.do(req, "status")
	if err != nil {
		return Report{}, err
	}
	rep, err := DecodeReport(raw)
	if err != nil {
		return Report{}, &TransportError{Op: "status", Cause: err}
	}
	return rep, nil
}

func (b *HTTPBackend) do(req *http.Request, op string) ([]byte, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Cause: errors.New(msg)}
	}
	return raw, nil
}

// DecodeReport reads a status payload. It accepts the result either as an
// object with an "analysis" array or as a bare array, and entries with
// either a nested played_move_eval or flat cp/mate fields.
func DecodeReport(raw []byte) (Report, error) {
	if !gjson.ValidBytes(raw) {
		return Report{}, errors.New("status reply is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	status := doc.Get("status")
	if !status.Exists() {
		return Report{}, errors.New("status reply has no status")
	}

	rep := Report{
		Status: models.TaskStatus(strings.ToUpper(status.String())),
		Raw:    json.RawMessage(append([]byte(nil), raw...)),
		Error:  doc.Get("error").String(),
	}

	result := doc.Get("result")
	entries := result
	if result.IsObject() {
		entries = result.Get("analysis")
	}
	if !entries.IsArray() {
		return rep, nil
	}

	set := make(models.AnalysisSet, 0, len(entries.Array()))
	for i, e := range entries.Array() {
		set = append(set, decodeEntry(i, e))
	}
	rep.Result = set
	return rep, nil
}

func decodeEntry(i int, e gjson.Result) models.AnalysisEntry {
	entry := models.AnalysisEntry{MoveIndex: i}
	if idx := e.Get("move_index"); idx.Exists() {
		entry.MoveIndex = int(idx.Int())
	}

	switch eval := e.Get("played_move_eval"); {
	case eval.IsObject() && eval.Get("type").String() == "mate":
		entry.MateIn = intPtr(eval.Get("value").Int())
	case eval.IsObject() && eval.Get("value").Exists():
		entry.EvaluationCentipawns = intPtr(eval.Get("value").Int())
	case e.Get("mate").Exists() && e.Get("mate").Type == gjson.Number:
		entry.MateIn = intPtr(e.Get("mate").Int())
	case e.Get("cp").Exists() && e.Get("cp").Type == gjson.Number:
		entry.EvaluationCentipawns = intPtr(e.Get("cp").Int())
	}

	if pair, ok := models.ParseMovePair(e.Get("best_move").String()); ok {
		entry.SuggestedMove = &pair
	}

	text := e.Get("ai_commentary").String()
	if text == "" {
		text = e.Get("commentary").String()
	}
	if text != "" {
		entry.Commentary = &text
	}
	return entry
}

func intPtr(v int64) *int {
	n := int(v)
	return &n
}

func (r Report) String() string {
	return fmt.Sprintf("%s (%d entries)", r.Status, len(r.Result))
}
