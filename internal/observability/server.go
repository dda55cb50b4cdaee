// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package observability serves prometheus metrics and health probes, and
// holds the counters the auth flows record into.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept requests.
type ReadinessChecker func() bool

// Package-level collectors so services can record without holding a Server.
var (
	loginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acesso_login_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)
	resetRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acesso_reset_requests_total",
			Help: "Password reset requests by outcome",
		},
		[]string{"outcome"},
	)
	resetRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acesso_reset_redemptions_total",
			Help: "Reset token redemptions by outcome",
		},
		[]string{"outcome"},
	)
	mailDispatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acesso_mail_dispatch_failures_total",
			Help: "Reset notifications that could not be handed to the mail pipeline",
		},
	)
	grpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acesso_grpc_requests_total",
			Help: "gRPC requests by method and status code",
		},
		[]string{"method", "code"},
	)
)

// RecordLogin counts a login attempt.
func RecordLogin(outcome string) {
	loginTotal.WithLabelValues(outcome).Inc()
}

// RecordResetRequest counts a reset request.
func RecordResetRequest(outcome string) {
	resetRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordResetRedemption counts a redemption attempt.
func RecordResetRedemption(outcome string) {
	resetRedemptionsTotal.WithLabelValues(outcome).Inc()
}

// RecordMailDispatchFailure counts a failed mail hand-off.
func RecordMailDispatchFailure() {
	mailDispatchFailures.Inc()
}

// RecordGRPCRequest counts a finished gRPC call.
func RecordGRPCRequest(method, code string) {
	grpcRequestsTotal.WithLabelValues(method, code).Inc()
}

// Metrics exposes the registered collectors, mainly for tests.
type Metrics struct {
	LoginTotal            *prometheus.CounterVec
	ResetRequestsTotal    *prometheus.CounterVec
	ResetRedemptionsTotal *prometheus.CounterVec
	MailDispatchFailures  prometheus.Counter
	GRPCRequestsTotal     *prometheus.CounterVec
}

// NewMetrics registers the acesso collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginTotal:            loginTotal,
		ResetRequestsTotal:    resetRequestsTotal,
		ResetRedemptionsTotal: resetRedemptionsTotal,
		MailDispatchFailures:  mailDispatchFailures,
		GRPCRequestsTotal:     grpcRequestsTotal,
	}

	reg.MustRegister(
		m.LoginTotal,
		m.ResetRequestsTotal,
		m.ResetRedemptionsTotal,
		m.MailDispatchFailures,
		m.GRPCRequestsTotal,
	)

	return m
}

// Server provides HTTP endpoints for metrics and health probes.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server listening on addr
// ("127.0.0.1:9100", ":9100").
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		isReady:  readinessChecker,
	}
}

// Metrics returns the registered collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// local httpSrv: a later Start must not race on s.httpServer
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("not ready\n"))
}
