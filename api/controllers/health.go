package controllers

import (
	"fmt"
	"net/http"

	"go.uber.org/multierr"

	"github.com/priyankdesai/storefront-backend/api/responses"
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/db"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	pkgredis "github.com/priyankdesai/storefront-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the hard dependencies before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		checks := map[string]string{"db": "ok", "redis": "ok"}
		var failures error

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["db"] = err.Error()
				failures = multierr.Append(failures, fmt.Errorf("db: %w", err))
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				failures = multierr.Append(failures, fmt.Errorf("redis: %w", err))
			}
		}

		status := http.StatusOK
		if failures != nil {
			status = http.StatusServiceUnavailable
			if logg != nil {
				logg.Error(r.Context(), "readiness check failed", failures)
			}
		}
		responses.WriteSuccessStatus(w, status, map[string]any{"status": readiness(failures == nil), "checks": checks})
	}
}

func readiness(healthy bool) string {
	if healthy {
		return "ready"
	}
	return "degraded"
}
