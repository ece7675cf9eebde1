package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/inference-sim/cpusched/sim"
)

// DefaultHTTPTimeout bounds a single request when no timeout is configured.
const DefaultHTTPTimeout = 5 * time.Second

// HTTPClient is a JobSource backed by a remote job server.
//
// Wire format: POST {base}/init?seed=S with the session payload as JSON body,
// answering {session_id, start_clock, time_slice}; GET /job, /burst,
// /burstsLeft and /jobsLeft with client_id and session_id query parameters.
// /job and /burst wrap their answer in {"data": ...}; the two counters are bare ints.
type HTTPClient struct {
	baseURL    string
	clientID   string
	payload    map[string]any
	httpClient *http.Client
}

// NewHTTPClient creates a client. payload is sent verbatim to /init.
func NewHTTPClient(baseURL, clientID string, timeout time.Duration, payload map[string]any) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		payload:    payload,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// InitSession opens a session on the server.
func (c *HTTPClient) InitSession(ctx context.Context, seed *int64) (sim.Session, error) {
	endpoint := c.baseURL + "/init"
	if seed != nil {
		endpoint += "?seed=" + strconv.FormatInt(*seed, 10)
	}
	body := map[string]any{"client_id": c.clientID}
	for k, v := range c.payload {
		body[k] = v
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return sim.Session{}, fmt.Errorf("marshal init payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(bodyBytes)))
	if err != nil {
		return sim.Session{}, fmt.Errorf("build init request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var session sim.Session
	if err := c.do(req, &session); err != nil {
		return sim.Session{}, fmt.Errorf("init session: %w", err)
	}
	if session.ID == "" {
		return sim.Session{}, fmt.Errorf("init session: server returned no session_id")
	}
	return session, nil
}

// Jobs fetches arrivals visible at clock.
func (c *HTTPClient) Jobs(ctx context.Context, sessionID string, clock int64) ([]sim.JobArrival, error) {
	q := c.query(sessionID)
	q.Set("clock_time", strconv.FormatInt(clock, 10))
	var resp struct {
		Data []sim.JobArrival `json:"data"`
	}
	if err := c.get(ctx, "/job", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// NextBurst fetches the job's next burst. A null data field means not ready yet.
func (c *HTTPClient) NextBurst(ctx context.Context, sessionID string, id sim.JobID) (*sim.Burst, error) {
	q := c.query(sessionID)
	q.Set("job_id", strconv.Itoa(int(id)))
	var resp struct {
		Data *sim.Burst `json:"data"`
	}
	if err := c.get(ctx, "/burst", q, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}
	bt, err := sim.ParseBurstType(string(resp.Data.Type))
	if err != nil {
		return nil, fmt.Errorf("burst for job %d: %w", id, err)
	}
	resp.Data.Type = bt
	return resp.Data, nil
}

// BurstsLeft fetches the job's remaining burst count.
func (c *HTTPClient) BurstsLeft(ctx context.Context, sessionID string, id sim.JobID) (int, error) {
	q := c.query(sessionID)
	q.Set("job_id", strconv.Itoa(int(id)))
	var n int
	if err := c.get(ctx, "/burstsLeft", q, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// JobsLeft fetches the session's job count.
func (c *HTTPClient) JobsLeft(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := c.get(ctx, "/jobsLeft", c.query(sessionID), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *HTTPClient) query(sessionID string) url.Values {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("session_id", sessionID)
	return q
}

func (c *HTTPClient) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if err := c.do(req, out); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	bodyData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyData)))
	}
	if err := json.Unmarshal(bodyData, out); err != nil {
		return fmt.Errorf("JSON parse error: %w", err)
	}
	return nil
}
