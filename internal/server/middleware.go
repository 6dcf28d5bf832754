package server

import (
	"net/http"
	"strings"

	"github.com/crowdvault/crowdvault/internal/callerctx"
	"github.com/crowdvault/crowdvault/pkg/telemetry/correlation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerCallerID  = "X-Caller-ID"
	headerRequestID = "X-Request-ID"
)

// CorrelationMiddleware guarantees a correlation ID per request and
// echoes it back to the caller.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := strings.TrimSpace(c.GetHeader(headerRequestID)); incoming != "" {
			ctx = correlation.ContextWithCorrelationID(ctx, incoming)
		}
		ctx, cid := correlation.EnsureCorrelationID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerRequestID, cid)
		c.Next()
	}
}

// CallerRequired extracts the pre-authenticated caller identity from the
// X-Caller-ID header. The fronting wallet/auth layer is responsible for
// having verified it; the ledger only requires that it is present.
func (s *Server) CallerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := strings.TrimSpace(c.GetHeader(headerCallerID))
		if caller == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(callerctx.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// DonateRateLimit applies the per-caller token bucket to donation
// writes. Without a configured limiter it is a no-op.
func (s *Server) DonateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		caller, _ := callerctx.CallerFromContext(c.Request.Context())
		cfg := s.ledgerCfg.Get()
		allowed, err := s.limiter.Allow(c.Request.Context(), "donate:"+caller, cfg.DonateRatePerMinute, cfg.DonateBurst)
		if err != nil {
			zap.L().Warn("rate limiter check failed", zap.Error(err))
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"type":    "rate_limited",
					"message": "too many donation requests",
				},
			})
			return
		}
		c.Next()
	}
}
