package middleware

import (
	"fmt"
	"net/http"
	"time"

	"tenancy-service/internal/model"
	"tenancy-service/pkg/config"
	"tenancy-service/pkg/database"
	"tenancy-service/pkg/jwtutil"
	"tenancy-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateLimitMiddleware enforces a per-actor request budget over fixed time
// windows. Counters live in the shared database, not a process-local map,
// so every instance of the service enforces the same limit. The limiter
// fails open: a storage error must not take the API down.
func RateLimitMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.RateLimit.Enabled {
				return next(c)
			}

			log := logger.FromContext(c)
			actorKey := actorKeyFor(c)
			window := time.Now().UTC().Truncate(cfg.RateLimit.Window)

			db := database.GetDB()
			counter := model.RateLimitCounter{
				ActorKey:    actorKey,
				WindowStart: window,
				Count:       1,
			}

			// Atomic upsert: insert the window row or bump its count. The
			// unique (actor_key, window_start) index serializes concurrent
			// hits from any instance.
			err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "actor_key"}, {Name: "window_start"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1")}),
			}).Create(&counter).Error
			if err != nil {
				log.Warn("Rate limit counter update failed", zap.Error(err))
				return next(c)
			}

			var current model.RateLimitCounter
			if err := db.Where("actor_key = ? AND window_start = ?", actorKey, window).First(&current).Error; err != nil {
				log.Warn("Rate limit counter read failed", zap.Error(err))
				return next(c)
			}

			if current.Count == 1 {
				// First hit in a fresh window: purge counters older than two
				// windows so the table does not grow unbounded.
				cutoff := window.Add(-2 * cfg.RateLimit.Window)
				db.Where("window_start < ?", cutoff).Delete(&model.RateLimitCounter{})
			}

			if current.Count > cfg.RateLimit.MaxHits {
				log.Warn("Rate limit exceeded",
					zap.String("actor", actorKey),
					zap.Int("count", current.Count))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":   "rate_limited",
					"message": "Too many requests, try again later",
				})
			}

			return next(c)
		}
	}
}

// actorKeyFor identifies the caller: authenticated user ID when available,
// client IP otherwise.
func actorKeyFor(c echo.Context) string {
	if claims, ok := c.Get("user").(*jwtutil.UserClaims); ok {
		return fmt.Sprintf("user:%d", claims.UserID)
	}
	return "ip:" + c.RealIP()
}
