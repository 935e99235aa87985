// Package admin serves the keep-alive and operational HTTP endpoints: a
// liveness banner, a Redis-backed health check, Prometheus metrics, and the
// token-guarded store stress test.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/discord-voice-time/internal/logging"
	"github.com/discord-voice-time/internal/metrics"
	"github.com/discord-voice-time/internal/storage"
)

// Pinger reports store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the admin HTTP server.
type Server struct {
	store       storage.ActivityStore
	pinger      Pinger
	metrics     *metrics.Metrics
	stressToken string

	httpServer *http.Server
}

// NewServer builds the admin server. pinger may be nil, in which case
// /healthz only reports process liveness. stressToken guards /stress-test;
// empty leaves it unauthenticated.
func NewServer(addr string, store storage.ActivityStore, pinger Pinger, m *metrics.Metrics, stressToken string) *Server {
	s := &Server{
		store:       store,
		pinger:      pinger,
		metrics:     m,
		stressToken: stressToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/stress-test", s.handleStressTest)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		logging.Infow("admin server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorw("admin server stopped", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintln(w, "voice-time bot is running and tracking activity")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStressTest(w http.ResponseWriter, r *http.Request) {
	if s.stressToken != "" && r.URL.Query().Get("token") != s.stressToken {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	logging.Infow("stress test endpoint called")
	report, err := RunStressTest(r.Context(), s.store, stressUserCount)
	if err != nil {
		logging.Errorw("stress test failed", "error", err)
		http.Error(w, "stress test failed; see server logs", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "stress test completed: %d writes in %.2fs (%.2f writes/s)\n",
		report.Operations, report.Elapsed.Seconds(), report.WritesPerSecond())
}
