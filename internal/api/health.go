package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func livenessHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version})
	}
}

// readinessHandler pings Postgres and Redis. Either failing marks the
// instance not ready so the load balancer drains it.
func readinessHandler(pool *pgxpool.Pool, rdb *redis.Client) http.HandlerFunc {
	ping := func(ctx context.Context, fn func(context.Context) error) string {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := fn(pingCtx); err != nil {
			return err.Error()
		}
		return "ok"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		healthy := true

		if pool != nil {
			checks["postgres"] = ping(r.Context(), pool.Ping)
			healthy = healthy && checks["postgres"] == "ok"
		}
		if rdb != nil {
			checks["redis"] = ping(r.Context(), func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			})
			healthy = healthy && checks["redis"] == "ok"
		}

		status, state := http.StatusOK, "ready"
		if !healthy {
			status, state = http.StatusServiceUnavailable, "degraded"
		}
		writeJSON(w, status, healthResponse{Status: state, Checks: checks})
	}
}
