package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/subscriber-gateway/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// CRMPinger checks CRM connectivity. *propeller.Client satisfies it.
type CRMPinger interface {
	Ping(ctx context.Context) bool
}

// IndexCounter reports the size of the subscriber index.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthChecker reports on the gateway's dependencies (CRM, index
// database, lock Redis, subscriber index). Everything but crm may be nil.
type HealthChecker struct {
	crm         CRMPinger
	db          *sql.DB
	redisClient *redis.Client
	index       IndexCounter
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(crm CRMPinger, db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{
		crm:         crm,
		db:          db,
		redisClient: redisClient,
		startTime:   time.Now(),
	}
}

// WithIndex adds a subscriber-index check to readiness.
func (hc *HealthChecker) WithIndex(index IndexCounter) *HealthChecker {
	hc.index = index
	return hc
}

const healthVersion = "1.0.0"

// HandleLiveness returns 200 whenever the process is running.
//
//	GET /health
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status":  "alive",
		"version": healthVersion,
		"uptime":  formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness checks every dependency and returns 503 when the gateway
// cannot serve requests.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	httpStatus := http.StatusOK
	if overall == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	httputil.JSON(w, httpStatus, HealthStatus{
		Status:  overall,
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

const (
	statusUp       = "up"
	statusDown     = "down"
	statusDegraded = "degraded"

	msgNotConfigured = "not configured"
)

// ---------------------------------------------------------------------------
// Individual component checks
// ---------------------------------------------------------------------------

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	var crm, db, rdb, idx ComponentCheck

	// Checks never fail the group; each reports its own status.
	var g errgroup.Group
	g.Go(func() error { crm = hc.checkCRM(ctx); return nil })
	g.Go(func() error { db = hc.checkDatabase(ctx); return nil })
	g.Go(func() error { rdb = hc.checkRedis(ctx); return nil })
	g.Go(func() error { idx = hc.checkIndex(ctx); return nil })
	g.Wait()

	return map[string]ComponentCheck{"crm": crm, "database": db, "redis": rdb, "index": idx}
}

func (hc *HealthChecker) checkCRM(ctx context.Context) ComponentCheck {
	if hc.crm == nil {
		return ComponentCheck{Status: statusDown, Message: msgNotConfigured}
	}
	return timedCheck(ctx, 5*time.Second, 0, func(ctx context.Context) error {
		if !hc.crm.Ping(ctx) {
			return errCRMUnreachable
		}
		return nil
	})
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: statusDown, Message: msgNotConfigured}
	}
	return timedCheck(ctx, 3*time.Second, time.Second, hc.db.PingContext)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: statusDown, Message: msgNotConfigured}
	}
	return timedCheck(ctx, 2*time.Second, 500*time.Millisecond, func(ctx context.Context) error {
		return hc.redisClient.Ping(ctx).Err()
	})
}

func (hc *HealthChecker) checkIndex(ctx context.Context) ComponentCheck {
	if hc.index == nil {
		return ComponentCheck{Status: statusDown, Message: msgNotConfigured}
	}
	var n int
	c := timedCheck(ctx, 3*time.Second, time.Second, func(ctx context.Context) error {
		var err error
		n, err = hc.index.Count(ctx)
		return err
	})
	if c.Status != statusDown {
		c.Message = fmt.Sprintf("%d entries", n)
	}
	return c
}

var errCRMUnreachable = errors.New("could not connect")

// timedCheck runs ping under timeout. A successful ping slower than slow reports
// degraded; slow == 0 disables that check.
func timedCheck(ctx context.Context, timeout, slow time.Duration, ping func(context.Context) error) ComponentCheck {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := ping(pingCtx)
	latency := time.Since(start)

	switch {
	case err != nil:
		return ComponentCheck{Status: statusDown, Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	case slow > 0 && latency > slow:
		return ComponentCheck{Status: statusDegraded, Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: statusUp, Latency: latency.String(), Message: "connected"}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// determineOverallStatus derives the aggregate status from individual checks.
// The gateway is unhealthy when the CRM is down, or when a configured database
// is down; any other down or slow dependency only degrades it.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if c, ok := checks["crm"]; ok && c.Status == statusDown {
		return "unhealthy"
	}
	if db, ok := checks["database"]; ok && db.Status == statusDown && db.Message != msgNotConfigured {
		return "unhealthy"
	}

	for _, c := range checks {
		if c.Status == statusDegraded || (c.Status == statusDown && c.Message != msgNotConfigured) {
			return statusDegraded
		}
	}
	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
