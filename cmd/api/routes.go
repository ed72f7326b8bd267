package main

import (
	"net/http"

	"callbridge/internal/auth"
	"callbridge/internal/config"
	"callbridge/internal/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, cfg config.Config, d *deps) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := httpapi.Handlers{
		Directory: d.Directory,
		Endpoints: d.Endpoints,
		Router:    d.Router,
		Sessions:  d.Sessions,
		AuditLog:  d.AuditLog,
	}
	httpapi.Mount(r, h, auth.RequireSession(d.Sessions, cfg.Auth.RequireSession))

	// Internal only: audit records are never exposed in production.
	if !cfg.IsProduction() {
		r.GET("/internal/audit", h.ListAudit)
	}
}
