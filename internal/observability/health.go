package observability

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports whether a dependency is usable
type Probe func(ctx context.Context) error

// HealthChecker serves liveness and readiness over gRPC and HTTP. Readiness is
// the conjunction of the registered probes.
type HealthChecker struct {
	grpcHealth *health.Server
	logger     *zap.Logger
	mu         sync.RWMutex
	live       bool
	probes     map[string]Probe
	failing    map[string]string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		grpcHealth: health.NewServer(),
		logger:     logger,
		live:       true,
		probes:     make(map[string]Probe),
		failing:    make(map[string]string),
	}
}

// AddProbe registers a readiness probe under name
func (h *HealthChecker) AddProbe(name string, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = p
}

// RegisterGRPC registers the health service with the gRPC server
func (h *HealthChecker) RegisterGRPC(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.grpcHealth)
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Check runs every probe once and updates the gRPC serving status
func (h *HealthChecker) Check(ctx context.Context) bool {
	h.mu.RLock()
	probes := make(map[string]Probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	live := h.live
	h.mu.RUnlock()

	failing := make(map[string]string)
	for name, p := range probes {
		if err := p(ctx); err != nil {
			failing[name] = err.Error()
		}
	}

	h.mu.Lock()
	for name, reason := range failing {
		if _, already := h.failing[name]; !already {
			h.logger.Warn("readiness probe failing", zap.String("probe", name), zap.String("reason", reason))
		}
	}
	for name := range h.failing {
		if _, still := failing[name]; !still {
			h.logger.Info("readiness probe recovered", zap.String("probe", name))
		}
	}
	h.failing = failing
	h.mu.Unlock()

	ready := live && len(failing) == 0
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ready {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.grpcHealth.SetServingStatus("", status)
	return ready
}

// Run re-checks readiness every interval until ctx ends
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) error {
	h.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Shutdown marks the service not live so load balancers stop routing to it
func (h *HealthChecker) Shutdown() {
	h.mu.Lock()
	h.live = false
	h.mu.Unlock()
	h.grpcHealth.Shutdown()
}

// Failing returns the names of the probes that failed on the last check
func (h *HealthChecker) Failing() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.failing))
	for name := range h.failing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleHealthz answers liveness
func (h *HealthChecker) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	live := h.live
	h.mu.RUnlock()

	if live {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("SHUTTING_DOWN"))
}

// HandleReadyz runs the probes and answers readiness
func (h *HealthChecker) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if h.Check(r.Context()) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("NOT_READY"))
}
