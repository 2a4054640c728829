// Package http holds what the router needs from the composition root and
// the contract every HTTP-facing module implements.
package http

import (
	"context"

	"intervention_backend/internal/events"
	"intervention_backend/platform/config"
	"intervention_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker is pinged by GET /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled in cmd/api and handed to router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health pings the database.
	Health HealthChecker
	// QueueHealth pings redis; nil when dispatch jobs run in-process.
	QueueHealth HealthChecker
	EventBus    events.Bus
	Modules     []Module
}

// Module mounts the routes of one bounded context.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is passed to every Module.RegisterRoutes call.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without authentication.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind AuthMiddleware; handlers can rely on
	// httpkit.GetIdentity returning an authenticated caller.
	Protected      *gin.RouterGroup
	Config         config.JWTConfig
	AuthMiddleware gin.HandlerFunc
}
