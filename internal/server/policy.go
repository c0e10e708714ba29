package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/buildledger/internal/policy"
)

type evaluatePolicyRequest struct {
	Action   string           `json:"action"`
	User     *policy.Subject  `json:"user"`
	Resource *policy.Resource `json:"resource"`
}

// EvaluatePolicy is a dry run: the decision is returned but not audited.
func (s *Server) EvaluatePolicy(c *gin.Context) {
	var req evaluatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	action := strings.TrimSpace(req.Action)
	if action == "" {
		AbortWithError(c, newValidationError("action", "invalid_action", "action is required"))
		return
	}

	decision := s.authorizer.Evaluate(policy.Context{
		Action:   action,
		User:     req.User,
		Resource: req.Resource,
		Request:  requestInfo(c),
	})
	c.JSON(http.StatusOK, gin.H{"data": decision})
}
