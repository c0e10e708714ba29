package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	identifierdomain "github.com/smallbiznis/buildledger/internal/identifier/domain"
)

func (s *Server) MintIdentifier(c *gin.Context) {
	kind, err := identifierdomain.ParseKind(strings.TrimSpace(c.Param("kind")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	value, err := s.identifiers.Generate(c.Request.Context(), nil, kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"kind": kind, "value": value})
}
