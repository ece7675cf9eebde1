package source

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/inference-sim/cpusched/sim"
	"github.com/sirupsen/logrus"
)

// NewHandler exposes a Memory source over the job-server REST API that
// HTTPClient speaks.
func NewHandler(m *Memory) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /init", func(w http.ResponseWriter, r *http.Request) {
		// The payload is the client's configuration; the workload is fixed server-side.
		_, _ = io.Copy(io.Discard, r.Body)
		var seed *int64
		if raw := r.URL.Query().Get("seed"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "seed must be an integer", http.StatusBadRequest)
				return
			}
			seed = &v
		}
		session, err := m.InitSession(r.Context(), seed)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logrus.Infof("Job server: session %s opened for client %q", session.ID, r.URL.Query().Get("client_id"))
		writeJSON(w, session)
	})

	mux.HandleFunc("GET /job", func(w http.ResponseWriter, r *http.Request) {
		clock, err := strconv.ParseInt(r.URL.Query().Get("clock_time"), 10, 64)
		if err != nil {
			http.Error(w, "clock_time must be an integer", http.StatusBadRequest)
			return
		}
		jobs, err := m.Jobs(r.Context(), r.URL.Query().Get("session_id"), clock)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if jobs == nil {
			jobs = []sim.JobArrival{}
		}
		writeJSON(w, map[string]any{"data": jobs})
	})

	mux.HandleFunc("GET /burst", func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}
		burst, err := m.NextBurst(r.Context(), r.URL.Query().Get("session_id"), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"data": burst})
	})

	mux.HandleFunc("GET /burstsLeft", func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}
		n, err := m.BurstsLeft(r.Context(), r.URL.Query().Get("session_id"), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, n)
	})

	mux.HandleFunc("GET /jobsLeft", func(w http.ResponseWriter, r *http.Request) {
		n, err := m.JobsLeft(r.Context(), r.URL.Query().Get("session_id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, n)
	})
	return mux
}

func jobID(w http.ResponseWriter, r *http.Request) (sim.JobID, bool) {
	id, err := strconv.Atoi(r.URL.Query().Get("job_id"))
	if err != nil {
		http.Error(w, "job_id must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return sim.JobID(id), true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Job server: encoding response failed: %v", err)
	}
}
