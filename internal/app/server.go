// Package app hosts the entropy engine API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	enginerpc "github.com/quillhash/entropy-engine/internal/api/rpc"
	"github.com/quillhash/entropy-engine/internal/platform/requestctx"
)

const shutdownTimeout = 5 * time.Second

// HealthServiceName is the gRPC health identifier probes check.
const HealthServiceName = "entropy.engine.v1.RandomnessService"

// Options configures the API server.
type Options struct {
	// Addr is the HTTP listen address for the JSON-RPC API and /metrics.
	Addr string
	// HealthAddr is the gRPC health listen address. Empty disables it.
	HealthAddr string
	// Service is the randomness RPC handler.
	Service *enginerpc.RandomnessService
	// Registry serves /metrics when set.
	Registry *prometheus.Registry
}

// Server hosts the JSON-RPC API, the metrics endpoint, and the gRPC health
// service the fleet's probes expect.
type Server struct {
	listener       net.Listener
	httpServer     *http.Server
	rpcServer      *gethrpc.Server
	healthListener net.Listener
	grpcServer     *grpc.Server
	health         *health.Server
}

// New creates a configured API server listening on the provided addresses.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("randomness service is required")
	}

	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", opts.Addr, err)
	}

	rpcServer := gethrpc.NewServer()
	if err := rpcServer.RegisterName(enginerpc.Namespace, opts.Service); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("register %s namespace: %w", enginerpc.Namespace, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", callerMiddleware(rpcServer))

	server := &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: mux},
		rpcServer:  rpcServer,
	}

	if strings.TrimSpace(opts.HealthAddr) != "" {
		healthListener, err := net.Listen("tcp", opts.HealthAddr)
		if err != nil {
			_ = listener.Close()
			rpcServer.Stop()
			return nil, fmt.Errorf("listen on %s: %w", opts.HealthAddr, err)
		}
		grpcServer := grpc.NewServer()
		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
		server.healthListener = healthListener
		server.grpcServer = grpcServer
		server.health = healthServer
	}

	return server, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HealthAddr returns the gRPC health listener address.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Serve starts the server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log.Printf("engine API listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	if s.grpcServer != nil {
		log.Printf("engine health listening at %v", s.healthListener.Addr())
		go func() {
			if err := s.grpcServer.Serve(s.healthListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Printf("serve health: %v", err)
			}
		}()
	}

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}

	select {
	case <-ctx.Done():
		s.shutdown()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		s.shutdown()
		return handleErr(err)
	}
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	s.rpcServer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown http server: %v", err)
	}
}

// callerMiddleware lifts the caller identity and request id from request
// headers into context before the RPC handler runs.
func callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if value := r.Header.Get("X-Engine-Caller"); common.IsHexAddress(value) {
			ctx = requestctx.WithCaller(ctx, common.HexToAddress(value))
		}
		if value := r.Header.Get("X-Request-Id"); value != "" {
			ctx = requestctx.WithRequestID(ctx, value)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
