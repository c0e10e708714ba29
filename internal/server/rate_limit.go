package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/buildledger/internal/observability/logger"
	"go.uber.org/zap"
)

// IdentifierRateLimit throttles minting per actor. It is a no-op without redis.
func (s *Server) IdentifierRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.identifierLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		var actorID string
		if subject := subjectFromContext(c); subject != nil {
			actorID = subject.ID
		}

		result, err := s.identifierLimiter.Allow(ctx, actorID)
		if err != nil {
			logger.FromContext(ctx).Warn("identifier rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			logger.FromContext(ctx).Warn("identifier rate limit exceeded", zap.String("route", c.FullPath()))
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
