package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Server serves the /metrics endpoint of a registry for prometheus, and a
// /health endpoint answering 200 while the process is up.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a server exposing gatherer on the given port. Port 0
// picks a free port once started.
func NewServer(log zerolog.Logger, port uint, gatherer prometheus.Gatherer) *Server {
	addr := ":" + strconv.Itoa(int(port))

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	return &Server{
		server: &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second},
		log:    log.With().Str("component", "metrics_server").Logger(),
	}
}

// Start listens on the configured address and serves in the background. It
// returns the address actually bound.
func (m *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return "", err
	}
	addr := listener.Addr().String()
	m.log.Info().Str("address", addr).Str("endpoint", "/metrics").Msg("metrics server started")
	go func() {
		err := m.server.Serve(listener)
		// http.ErrServerClosed is returned when Shutdown is called
		if errors.Is(err, http.ErrServerClosed) {
			m.log.Debug().Msg("metrics server shutdown")
			return
		}
		m.log.Err(err).Msg("metrics server failed")
	}()
	return addr, nil
}

// Stop shuts the server down, waiting for open requests up to a timeout.
func (m *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return m.server.Shutdown(ctx)
}
