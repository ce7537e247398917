package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// ready runs every readiness check and reports each result.
func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.deps.Checks))
	for _, check := range s.deps.Checks {
		if err := check.Fn(ctx); err != nil {
			s.log.Warn("readiness check failed", "check", check.Name, "error", err)
			results[check.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}
	c.JSON(status, gin.H{"checks": results})
}
