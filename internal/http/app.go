// Package http holds the composition types shared by cmd/api and the router:
// the App dependencies and the Module contract of the leads and notification
// bounded contexts.
package http

import (
	"context"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context mounting its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups a module mounts on. Protected
// requires a valid access token carrying the user and organization IDs the
// pipeline handlers scope every query by.
type RouterContext struct {
	// V1 is the public /api/v1 group.
	V1        *gin.RouterGroup
	Protected *gin.RouterGroup
}

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP and JWT settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health lists the dependencies checked by the readiness probe, by name.
	Health map[string]HealthChecker
	// RateLimiter limits requests per client IP. Nil disables limiting.
	RateLimiter *httpkit.IPRateLimiter
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
