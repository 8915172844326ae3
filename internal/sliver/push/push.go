// Package push implements the PushEndpoint: an HTTP server accepting
// signed/sealed volume deltas from the Observer and triggering an
// asynchronous reconciliation.
package push

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syndicate/sliverd/internal/sliver/credential"
	"github.com/syndicate/sliverd/internal/sliver/metrics"
	"github.com/syndicate/sliverd/internal/sliver/reconcile"
	"github.com/syndicate/sliverd/internal/sliver/secret"
)

// Server is the push-notification HTTP server.
type Server struct {
	Pipeline   *credential.Pipeline
	Secrets    *secret.Store
	Reconciler *reconcile.Reconciler
	Logger     *slog.Logger

	router *mux.Router
}

// NewServer builds a Server with its routes registered: POST / for the
// Observer's push deltas, and GET /metrics for Prometheus scraping.
func NewServer(pipeline *credential.Pipeline, secrets *secret.Store, reconciler *reconcile.Reconciler, logger *slog.Logger) *Server {
	s := &Server{Pipeline: pipeline, Secrets: secrets, Reconciler: reconciler, Logger: logger}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/", s.handlePush).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		http.Error(w, "Server is not configured", http.StatusInternalServerError)
		return
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// handlePush parses the form field, verifies the envelope's signature
// synchronously, responds 200 immediately, then unseals, parses, and
// reconciles asynchronously so push latency never depends on reconcile
// latency.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if s.Pipeline == nil || s.Reconciler == nil {
		http.Error(w, "Server is not configured", http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Missing data", http.StatusBadRequest)
		return
	}

	message := r.FormValue("observer_message")
	if message == "" {
		http.Error(w, "Missing data", http.StatusBadRequest)
		return
	}

	sealed, err := s.Pipeline.Verify([]byte(message))
	if err != nil {
		s.logger().Warn("push: envelope verification failed", "error", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	go s.reconcileAsync(sealed)
}

func (s *Server) reconcileAsync(sealed []byte) {
	ctx := context.Background()

	sliceSecret, ok := s.Secrets.Get()
	if !ok {
		s.logger().Warn("push: no slice secret cached, dropping delta")
		return
	}

	plaintext, err := credential.Unseal(sliceSecret, sealed)
	if err != nil {
		s.logger().Warn("push: unseal failed", "error", err)
		return
	}

	desc, err := credential.ParseVolumeRecord(plaintext)
	if err != nil {
		s.logger().Warn("push: malformed volume record", "error", err)
		return
	}

	target := map[string]credential.VolumeDescriptor{desc.VolumeName: desc}
	status, err := s.Reconciler.Reconcile(ctx, target, sliceSecret)
	switch {
	case errors.Is(err, reconcile.ErrBusy):
		metrics.ReconcileRuns.WithLabelValues("busy").Inc()
		s.logger().Debug("push: reconcile busy, dropping delta")
	case err != nil:
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		s.logger().Warn("push: reconcile failed", "error", err)
	default:
		metrics.ReconcileRuns.WithLabelValues("ok").Inc()
		metrics.VolumesReconciled.WithLabelValues("succeeded").Add(float64(status.Succeeded))
		metrics.VolumesReconciled.WithLabelValues("failed").Add(float64(status.Failed))
		s.logger().Info("push: reconcile complete", "status", status.String())
	}
}
