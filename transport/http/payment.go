package http

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/service"
)

// Payment header names. X-PAYMENT is the x402 convention; X-402-Payment is
// accepted as an alias for older clients.
const (
	PaymentHeader         = "X-PAYMENT"
	PaymentHeaderAlt      = "X-402-Payment"
	PaymentRequiredHeader = "X-Payment-Required"
	PaymentResponseHeader = "X-Payment-Response"
)

const receiptKey = "paymentReceipt"

// PaymentRequired gates a route behind the x402 handshake. Requests without
// a valid, settled payment are answered with a 402 challenge (or 502 when
// verification infrastructure is down) and never reach the handler.
func PaymentRequired(gateway *service.PaymentGateway, policy service.RoutePolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(PaymentHeader)
		if header == "" {
			header = c.GetHeader(PaymentHeaderAlt)
		}

		decision := gateway.Process(c.Request.Context(), RequestIDFrom(c), policy, strings.TrimSpace(header))
		if !decision.Allowed {
			if decision.Challenge == nil {
				c.AbortWithStatusJSON(decision.Status, gin.H{"ok": false, "error": "internal_error"})
				return
			}
			if raw, err := json.Marshal(decision.Challenge); err == nil {
				c.Header(PaymentRequiredHeader, string(raw))
			}
			c.AbortWithStatusJSON(decision.Status, decision.Challenge)
			return
		}

		if encoded, err := service.EncodeReceipt(decision.Receipt); err == nil {
			c.Header(PaymentResponseHeader, encoded)
		}
		c.Set(receiptKey, decision.Receipt)
		c.Next()
	}
}

// ReceiptFrom returns the settlement receipt attached by PaymentRequired,
// or nil when the route is not payment-gated.
func ReceiptFrom(c *gin.Context) *core.SettlementReceipt {
	if receipt, ok := c.Get(receiptKey); ok {
		if r, ok := receipt.(*core.SettlementReceipt); ok {
			return r
		}
	}
	return nil
}
