package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"singlish-bot/model"
	"singlish-bot/service"
)

func parseTimeParam(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: name, Message: "must be an RFC3339 timestamp"}
	}
	return t, nil
}

func AnalyticsSummaryHandler(svc *service.AnalyticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, err := parseTimeParam(c, "from")
		if err != nil {
			writeError(c, err)
			return
		}
		to, err := parseTimeParam(c, "to")
		if err != nil {
			writeError(c, err)
			return
		}

		sum, err := svc.Summary(c.Request.Context(), from, to)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler always answers 200 since chat keeps working in degraded
// mode; the body tells which dependencies are down.
func HealthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = "unavailable"
				status = "degraded"
				continue
			}
			deps[name] = "ok"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       status,
			"dependencies": deps,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
