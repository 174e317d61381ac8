package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Health states reported by /health/db.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// PoolStats is the pool snapshot included in the health body.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	EmptyAcquires   int64  `json:"empty_acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// Saturated reports whether every connection is checked out.
func (s PoolStats) Saturated() bool {
	return s.MaxConns > 0 && s.AcquiredConns >= s.MaxConns
}

func statsOf(pool *pgxpool.Pool) PoolStats {
	st := pool.Stat()
	return PoolStats{
		TotalConns:      st.TotalConns(),
		IdleConns:       st.IdleConns(),
		AcquiredConns:   st.AcquiredConns(),
		MaxConns:        st.MaxConns(),
		AcquireCount:    st.AcquireCount(),
		EmptyAcquires:   st.EmptyAcquireCount(),
		AcquireDuration: st.AcquireDuration().String(),
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReport is the /health/db response body.
type HealthReport struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LatencyMS float64   `json:"latency_ms"`
	Pool      PoolStats `json:"pool"`
}

// HealthHandler pings the database and reports pool pressure. A failed ping
// answers 503. A saturated pool answers 200 with status "degraded".
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(pool, func() PoolStats { return statsOf(pool) })
}

func healthHandler(p Pinger, stats func() PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		err := p.Ping(ctx)
		report := HealthReport{
			Status:    StatusHealthy,
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			Pool:      stats(),
		}

		switch {
		case err != nil:
			report.Status = StatusUnhealthy
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		case report.Pool.Saturated():
			report.Status = StatusDegraded
		}
		return c.JSON(http.StatusOK, report)
	}
}
