package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clawr-ai/gate/adapters/events"
	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/ports"
	"github.com/clawr-ai/gate/service"
)

// AuthHandlers contains HTTP handlers for the wallet sign-in endpoints.
type AuthHandlers struct {
	auth          *service.AuthService
	cookieName    string
	secureCookies bool
	defaultOrigin string
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(auth *service.AuthService, cookieName string, secureCookies bool, defaultOrigin string) *AuthHandlers {
	return &AuthHandlers{
		auth:          auth,
		cookieName:    cookieName,
		secureCookies: secureCookies,
		defaultOrigin: defaultOrigin,
	}
}

func sessionBody(claims *core.SessionClaims) gin.H {
	return gin.H{
		"walletAddress": claims.WalletAddress,
		"issuedAt":      claims.IssuedAt.UTC().Format(time.RFC3339),
		"expiresAt":     claims.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// Challenge issues a single-use sign-in challenge for a wallet.
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": core.ErrWalletAddressRequired.Error()})
		return
	}

	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = h.defaultOrigin
	}

	challenge, err := h.auth.CreateChallenge(c.Request.Context(), req.WalletAddress, origin)
	if err != nil {
		if err == core.ErrWalletAddressRequired || err == core.ErrWalletAddressInvalid {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "challenge_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"challenge": gin.H{
			"challengeId":   challenge.ID,
			"walletAddress": challenge.WalletAddress,
			"nonce":         challenge.Nonce,
			"issuedAt":      challenge.IssuedAt.UTC().Format(time.RFC3339),
			"expiresAt":     challenge.ExpiresAt.UTC().Format(time.RFC3339),
			"message":       challenge.Message,
		},
	})
}

// Verify checks a signed challenge and establishes a session cookie.
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		ChallengeID   string `json:"challengeId" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_request"})
		return
	}

	token, claims, err := h.auth.Login(c.Request.Context(), req.WalletAddress, req.ChallengeID, req.Signature)
	if err != nil {
		status := authErrorStatus(err)
		code := err.Error()
		if status == http.StatusInternalServerError {
			code = "authentication_failed"
		}
		c.JSON(status, gin.H{"ok": false, "error": code})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, int(h.auth.SessionTTL().Seconds()), "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": sessionBody(claims)})
}

// authErrorStatus maps sign-in errors onto HTTP statuses: missing or dead
// challenges are 404, anything invalid or mismatched is 401, remaining
// client faults are 400. Unknown errors are treated as internal.
func authErrorStatus(err error) int {
	switch err {
	case core.ErrChallengeNotFound, core.ErrChallengeExpired:
		return http.StatusNotFound
	case core.ErrSignatureInvalid, core.ErrSignatureMismatch,
		core.ErrWalletAddressInvalid, core.ErrChallengeWalletMismatch:
		return http.StatusUnauthorized
	case core.ErrWalletAddressRequired, core.ErrChallengeUsed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Session reports whether the request carries a valid session cookie. It
// answers 200 either way.
func (h *AuthHandlers) Session(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "authenticated": false})
		return
	}

	claims, err := h.auth.Session(token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "authenticated": true, "session": sessionBody(claims)})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// OpsHandlers serves the free operational endpoints: health, pricing and
// the telemetry tail.
type OpsHandlers struct {
	ledger          ports.TelemetryLedger
	policies        []service.RoutePolicy
	network         string
	payTo           string
	facilitatorURLs []string
}

// NewOpsHandlers creates handlers for the operational endpoints.
func NewOpsHandlers(ledger ports.TelemetryLedger, policies []service.RoutePolicy, network, payTo string, facilitatorURLs []string) *OpsHandlers {
	return &OpsHandlers{
		ledger:          ledger,
		policies:        policies,
		network:         network,
		payTo:           payTo,
		facilitatorURLs: facilitatorURLs,
	}
}

// Health lists free and paid routes.
func (h *OpsHandlers) Health(c *gin.Context) {
	paid := make([]string, 0, len(h.policies))
	for _, policy := range h.policies {
		paid = append(paid, policy.Resource)
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"service":    "clawr-gate",
		"requestId":  RequestIDFrom(c),
		"freeRoutes": []string{"/health", "/pricing", "/v1/telemetry", "/auth/challenge", "/auth/verify", "/auth/session", "/auth/logout"},
		"paidRoutes": paid,
	})
}

// Pricing returns the price table for the paid routes.
func (h *OpsHandlers) Pricing(c *gin.Context) {
	routes := make([]gin.H, 0, len(h.policies))
	for _, policy := range h.policies {
		routes = append(routes, gin.H{
			"resource":    policy.Resource,
			"price":       policy.Price,
			"description": policy.Description,
			"mimeType":    policy.MimeType,
			"network":     h.network,
		})
	}

	facilitator := ""
	if len(h.facilitatorURLs) > 0 {
		facilitator = h.facilitatorURLs[0]
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"network":         h.network,
		"payTo":           h.payTo,
		"facilitator":     facilitator,
		"facilitatorUrls": h.facilitatorURLs,
		"routes":          routes,
	})
}

// Telemetry returns the most recent protocol events, oldest first.
func (h *OpsHandlers) Telemetry(c *gin.Context) {
	limit := events.DefaultMaxEvents
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	limit = events.ClampLimit(limit, events.DefaultMaxEvents)

	recent := h.ledger.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"requestId": RequestIDFrom(c),
		"total":     h.ledger.Len(),
		"returned":  len(recent),
		"events":    recent,
	})
}
