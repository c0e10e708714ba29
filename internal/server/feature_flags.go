package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	featureflagdomain "github.com/smallbiznis/buildledger/internal/featureflag/domain"
)

type upsertFeatureFlagRequest struct {
	Description     *string  `json:"description"`
	Enabled         *bool    `json:"enabled"`
	RolloutStrategy string   `json:"rollout_strategy"`
	Percentage      *int     `json:"percentage"`
	AudienceRoles   []string `json:"audience_roles"`
}

func (s *Server) ListFeatureFlags(c *gin.Context) {
	items, err := s.featureFlagSvc.ListFlags(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetFeatureFlag(c *gin.Context) {
	flag, err := s.featureFlagSvc.GetFlag(c.Request.Context(), c.Param("key"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": flag})
}

// EvaluateFeatureFlag defaults the evaluation context to the calling user.
func (s *Server) EvaluateFeatureFlag(c *gin.Context) {
	var ec featureflagdomain.EvalContext
	if err := c.ShouldBindQuery(&ec); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if subject := subjectFromContext(c); subject != nil {
		if strings.TrimSpace(ec.UserID) == "" {
			ec.UserID = subject.ID
		}
		if strings.TrimSpace(ec.UserRole) == "" {
			ec.UserRole = subject.Role
		}
	}

	key := c.Param("key")
	enabled := s.featureFlagSvc.IsFeatureEnabled(c.Request.Context(), key, ec)
	c.JSON(http.StatusOK, gin.H{"key": key, "enabled": enabled})
}

func (s *Server) UpsertFeatureFlag(c *gin.Context) {
	var req upsertFeatureFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	enabled := false
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	flag, err := s.featureFlagSvc.UpsertFlag(c.Request.Context(), featureflagdomain.UpsertRequest{
		Key:             c.Param("key"),
		Description:     req.Description,
		Enabled:         enabled,
		RolloutStrategy: featureflagdomain.RolloutStrategy(strings.TrimSpace(req.RolloutStrategy)),
		Percentage:      req.Percentage,
		AudienceRoles:   req.AudienceRoles,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": flag})
}

func (s *Server) DeleteFeatureFlag(c *gin.Context) {
	if err := s.featureFlagSvc.DeleteFlag(c.Request.Context(), c.Param("key")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
