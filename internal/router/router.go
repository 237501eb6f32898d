// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/exam-slot-reservation/internal/handler"
	"github.com/iliyamo/exam-slot-reservation/internal/middleware"
	"github.com/iliyamo/exam-slot-reservation/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Register,
// login, refresh and logout do not require an existing session; /me
// lives behind the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterReservations registers the reservation endpoints under /v1.
// Every route requires a resolved identity; both roles are accepted
// here and finer-grained transition rules live in the service. The
// optional cache middleware fronts the availability listing only —
// mutating routes must never be served from cache.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)

	if cacheMW != nil {
		g.GET("/reservations/available", h.AvailableTimes, cacheMW)
	} else {
		g.GET("/reservations/available", h.AvailableTimes)
	}
	g.GET("/reservations", h.List)
	g.POST("/reservations", h.Create)
	// The confirm route is registered before the body-id PUT so the
	// static path wins; admin-only enforcement happens in the service.
	g.PUT("/reservations/confirm", h.BulkConfirm)
	g.PUT("/reservations", h.Update)
	g.DELETE("/reservations", h.Cancel)
}
