package http

import (
	"github.com/gin-gonic/gin"

	"github.com/clawr-ai/gate/ports"
	"github.com/clawr-ai/gate/service"
)

// PaidRoute binds a price policy to the handler that serves the paid content.
type PaidRoute struct {
	Policy  service.RoutePolicy
	Handler gin.HandlerFunc
}

// Deps is everything the router needs.
type Deps struct {
	Auth    *service.AuthService
	Gateway *service.PaymentGateway
	Ledger  ports.TelemetryLedger

	Network         string
	PayTo           string
	FacilitatorURLs []string

	CookieName    string
	SecureCookies bool
	AuthOrigin    string

	PaidRoutes []PaidRoute
}

// SetupRouter sets up the Gin router: free auth and ops endpoints plus the
// payment-gated routes.
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.Default()
	router.Use(RequestID())

	authHandlers := NewAuthHandlers(deps.Auth, deps.CookieName, deps.SecureCookies, deps.AuthOrigin)

	policies := make([]service.RoutePolicy, 0, len(deps.PaidRoutes))
	for _, route := range deps.PaidRoutes {
		policies = append(policies, route.Policy)
	}
	opsHandlers := NewOpsHandlers(deps.Ledger, policies, deps.Network, deps.PayTo, deps.FacilitatorURLs)

	auth := router.Group("/auth")
	{
		auth.POST("/challenge", authHandlers.Challenge)
		auth.POST("/verify", authHandlers.Verify)
		auth.GET("/session", authHandlers.Session)
		auth.POST("/logout", authHandlers.Logout)
	}

	router.GET("/health", opsHandlers.Health)
	router.GET("/pricing", opsHandlers.Pricing)
	router.GET("/v1/telemetry", opsHandlers.Telemetry)

	for _, route := range deps.PaidRoutes {
		router.GET(route.Policy.Resource, PaymentRequired(deps.Gateway, route.Policy), route.Handler)
	}

	return router
}
