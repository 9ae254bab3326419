// Package handler exposes attendance and roster operations over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
	"github.com/techvaseegrah/gymsaas-sub001/internal/auth"
	"github.com/techvaseegrah/gymsaas-sub001/internal/httpmiddleware"
	"github.com/techvaseegrah/gymsaas-sub001/internal/live"
	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) bool

// Config carries the router's cross-cutting settings.
type Config struct {
	SigningKey      string
	Issuer          string
	CORSOrigins     []string
	RateLimitPerMin int
	Health          map[string]HealthCheck
}

// Handler serves the attendance API.
type Handler struct {
	att      *attendance.Service
	fighters *roster.Service
	hub      *live.Hub
}

// New creates a handler. hub may be nil to disable the live feed.
func New(att *attendance.Service, fighters *roster.Service, hub *live.Hub) *Handler {
	return &Handler{att: att, fighters: fighters, hub: hub}
}

// NewRouter builds the gin engine with middleware and routes mounted.
func NewRouter(cfg Config, h *Handler) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(requestid.New())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthz(cfg.Health))

	// Health checks and metrics scrapes are not rate limited.
	limit := httpmiddleware.NewLimiter(cfg.RateLimitPerMin, 0, httpmiddleware.ClientIP).Middleware()
	authn := auth.Authenticate(auth.NewTokens(cfg.SigningKey, cfg.Issuer, 0))
	admin := r.Group("/", limit, authn, auth.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin))
	{
		admin.GET("/attendance/status/:rfid", h.Status)
		admin.POST("/attendance/admin/rfid", h.AdminRFIDPunch)
		admin.POST("/attendance/admin/face-recognition", h.AdminFacePunch)
		admin.POST("/attendance/admin/close", h.AdminClose)
		admin.GET("/attendance/fighter/:id", h.FighterHistory)
		admin.GET("/attendance/all", h.AllHistory)
		if h.hub != nil {
			admin.GET("/attendance/live", h.Live)
		}

		admin.POST("/fighters", h.RegisterFighter)
		admin.GET("/fighters/rfid/new", h.NewRFID)
		admin.GET("/fighters/:id", h.GetFighter)
		admin.PUT("/fighters/:id/faces", h.EnrollFaces)
	}

	fighter := r.Group("/", limit, authn, auth.RequireRole(auth.RoleFighter))
	{
		fighter.POST("/attendance/punch", h.SelfPunch)
		fighter.POST("/attendance/rfid-status", h.SelfStatus)
		fighter.GET("/attendance/me", h.MyHistory)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body := gin.H{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			ok := check(ctx)
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}
