package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inference-sim/cpusched/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*HTTPClient, *httptest.Server) {
	t.Helper()
	m, err := NewMemoryFromJobs(threeJobs(), 2)
	require.NoError(t, err)
	server := httptest.NewServer(NewHandler(m))
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL+"/", "tester", time.Second, map[string]any{"cpus": 1}), server
}

func TestHTTPClient_RoundTripThroughHandler(t *testing.T) {
	// GIVEN a job server backed by a memory source
	client, _ := newTestServer(t)
	ctx := context.Background()

	// WHEN a session is opened and polled
	seed := int64(5)
	session, err := client.InitSession(ctx, &seed)
	require.NoError(t, err)
	arrivals, err := client.Jobs(ctx, session.ID, 0)
	require.NoError(t, err)
	burst, err := client.NextBurst(ctx, session.ID, 1)
	require.NoError(t, err)
	left, err := client.BurstsLeft(ctx, session.ID, 1)
	require.NoError(t, err)
	jobsLeft, err := client.JobsLeft(ctx, session.ID)
	require.NoError(t, err)

	// THEN the wire format carries every field
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, int64(2), session.TimeSlice)
	require.Len(t, arrivals, 2)
	require.NotNil(t, arrivals[1].Priority)
	assert.Equal(t, 3, *arrivals[1].Priority)
	require.NotNil(t, burst)
	assert.Equal(t, cpuBurst(2), *burst)
	assert.Equal(t, 3, left)
	assert.Equal(t, 3, jobsLeft)
}

func TestHTTPClient_ExhaustedBurst_IsNil(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()
	session, err := client.InitSession(ctx, nil)
	require.NoError(t, err)

	_, err = client.NextBurst(ctx, session.ID, 2)
	require.NoError(t, err)
	burst, err := client.NextBurst(ctx, session.ID, 2)

	assert.NoError(t, err)
	assert.Nil(t, burst)
}

func TestHTTPClient_UnknownSession_ReturnsError(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	_, err := client.Jobs(ctx, "missing", 0)
	assert.Error(t, err)
	_, err = client.JobsLeft(ctx, "missing")
	assert.Error(t, err)
}

func TestHTTPClient_ServerDown_ReturnsError(t *testing.T) {
	// GIVEN a server that is already closed
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewHTTPClient(server.URL, "tester", 100*time.Millisecond, nil)

	_, err := client.InitSession(context.Background(), nil)
	assert.Error(t, err)
}

func TestHTTPClient_SendsClientIDAndPayload(t *testing.T) {
	// GIVEN a server that records the init request
	var gotQuery string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(sim.Session{ID: "s1", StartClock: 3, TimeSlice: 4})
	}))
	defer server.Close()
	client := NewHTTPClient(server.URL, "alice", time.Second, map[string]any{"num_jobs": 7})

	// WHEN a seeded session is opened
	seed := int64(42)
	session, err := client.InitSession(context.Background(), &seed)

	// THEN seed, client_id and payload reach the server
	require.NoError(t, err)
	assert.Equal(t, "seed=42", gotQuery)
	assert.Equal(t, "alice", gotBody["client_id"])
	assert.Equal(t, float64(7), gotBody["num_jobs"])
	assert.Equal(t, sim.Session{ID: "s1", StartClock: 3, TimeSlice: 4}, session)
}

func TestHTTPClient_MalformedBurst_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"burst_type":"GPU","duration":3}}`))
	}))
	defer server.Close()
	client := NewHTTPClient(server.URL, "c", time.Second, nil)

	_, err := client.NextBurst(context.Background(), "s", 1)
	assert.Error(t, err)
}

func TestHTTPClient_LowercaseBurstType_Normalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"burst_type":"io","duration":3}}`))
	}))
	defer server.Close()
	client := NewHTTPClient(server.URL, "c", time.Second, nil)

	burst, err := client.NextBurst(context.Background(), "s", 1)
	require.NoError(t, err)
	assert.Equal(t, ioBurst(3), *burst)
}

func TestHandler_BadParameters_Return400(t *testing.T) {
	m, err := NewMemoryFromJobs(threeJobs(), 0)
	require.NoError(t, err)
	h := NewHandler(m)

	for _, target := range []string{"/job?session_id=s&clock_time=x", "/burst?session_id=s&job_id=x", "/burstsLeft?session_id=s"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/init?seed=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulator_OverHTTP_MatchesMemory(t *testing.T) {
	// GIVEN the same workload served in-process and over HTTP
	client, _ := newTestServer(t)
	mem, err := NewMemoryFromJobs(threeJobs(), 2)
	require.NoError(t, err)
	cfg := sim.NewConfig(sim.PolicyRoundRobin, 1, 1)
	cfg.TimeSlice = 2

	run := func(src sim.JobSource) *sim.Result {
		ctx := context.Background()
		session, err := src.InitSession(ctx, nil)
		require.NoError(t, err)
		s, err := sim.NewSimulator(cfg, src)
		require.NoError(t, err)
		res, err := s.Run(ctx, session.ID, session.StartClock)
		require.NoError(t, err)
		return res
	}

	// WHEN both are simulated
	overHTTP := run(client)
	inProcess := run(mem)

	// THEN the reports are identical
	assert.Equal(t, inProcess.Terminated, overHTTP.Terminated)
	assert.Equal(t, inProcess.Metrics.Output(cfg.Policy), overHTTP.Metrics.Output(cfg.Policy))
	assert.Equal(t, 3, overHTTP.Metrics.CompletedJobs)
}
