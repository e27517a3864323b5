// Package observe serves the operational endpoints of ranker: a JSON health
// check and the Prometheus scrape endpoint.
package observe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/ranker/internal/domain/types"
	"github.com/okian/ranker/pkg/logger"
	"github.com/okian/ranker/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// SummaryProvider reports store totals for the health check.
type SummaryProvider interface {
	Summary(ctx context.Context) (types.Summary, error)
}

type healthResponse struct {
	Status string `json:"status"`
	Items  int    `json:"items"`
	Events int64  `json:"events"`
	Error  string `json:"error,omitempty"`
}

// Server exposes /healthz and /metrics.
type Server struct {
	provider SummaryProvider
	log      logger.Logger
}

// NewServer creates an observability server. provider may be nil, in which
// case the health check only reports liveness.
func NewServer(provider SummaryProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{provider: provider, log: log.Named("observe")}
}

// Register attaches the routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

// HandleHealth handles GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if s.provider != nil {
		sum, err := s.provider.Summary(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Items = sum.Items
			resp.Events = sum.Events
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// ListenAndServe serves the routes on addr until ctx is cancelled. A bind
// failure is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.Register(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Bind before serving so an unusable address is reported to the caller.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "starting observability server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("observe: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("observe shutdown: %w", err)
	}
	return nil
}
