package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// readinessTimeout bounds how long one readiness probe may spend across all
// component checks.
const readinessTimeout = 5 * time.Second

// HealthChecker probes one backing component for the readiness endpoint.
type HealthChecker interface {
	// Name identifies the component in the readiness report.
	Name() string

	// Check returns nil when the component can serve traffic.
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to the HealthChecker interface.
type CheckerFunc struct {
	ComponentName string
	Probe         func(ctx context.Context) error
}

func (f CheckerFunc) Name() string                    { return f.ComponentName }
func (f CheckerFunc) Check(ctx context.Context) error { return f.Probe(ctx) }

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	version  string
	started  time.Time
	checkers []HealthChecker
}

// NewHealthHandler builds the handler. Checkers are probed on every readiness
// request; liveness never touches them.
func NewHealthHandler(version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		version:  version,
		started:  time.Now(),
		checkers: checkers,
	}
}

// Liveness reports that the process is running. It always returns 200 so
// orchestrators only restart the pod when the process itself is wedged.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Readiness probes every registered component and reports 200 when all are
// up, 503 otherwise. Each component's status and latency is included so
// operators can see which dependency is failing.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	components := make([]common.ComponentHealth, 0, len(h.checkers))
	ready := true

	for _, checker := range h.checkers {
		start := time.Now()
		err := checker.Check(ctx)
		component := common.ComponentHealth{
			Name:    checker.Name(),
			Status:  common.HealthUp,
			Latency: time.Since(start),
		}
		if err != nil {
			component.Status = common.HealthDown
			component.Message = err.Error()
			ready = false
		}
		components = append(components, component)
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":     status,
		"version":    h.version,
		"components": components,
	})
}
