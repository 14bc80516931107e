package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LK-Customs/Pingcrafty/internal/metrics"
	appmetrics "github.com/LK-Customs/Pingcrafty/pkg/metrics"
)

// HTTPServe starts a status/health/metrics HTTP server for this run.
// It blocks until ctx is cancelled, then shuts the server down with a
// short grace window.
func (s *Scanner) HTTPServe(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	s.prom = metrics.InitPrometheus("pingcrafty_scanner", s.collector)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		appmetrics.IncrementRequests()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		appmetrics.IncrementRequests()
		snap := s.collector.Snapshot()
		out := map[string]interface{}{
			"snapshot":       snap,
			"eta_seconds":    snap.ETA(s.total).Seconds(),
			"total_targets":  s.total,
			"ambient_errors": appmetrics.Default.GetErrors(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			appmetrics.IncrementErrors()
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("scanner: status http listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("scanner: status http: %v", err)
	}
}
