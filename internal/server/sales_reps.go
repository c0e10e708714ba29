package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	salesrepdomain "github.com/smallbiznis/buildledger/internal/salesrep/domain"
)

type assignSalesRepRequest struct {
	SalesRepID string `json:"sales_rep_id"`
}

func (s *Server) GetSalesRepWorkloads(c *gin.Context) {
	workloads, err := s.salesRepSvc.GetSalesRepWorkloads(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": workloads})
}

func (s *Server) GetSalesRepAssignment(c *gin.Context) {
	projectID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, salesrepdomain.ErrInvalidProjectID)
		return
	}

	rep, err := s.salesRepSvc.GetAssignment(c.Request.Context(), projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rep})
}

// AutoAssignSalesRep answers 200 with a null rep when nobody could be assigned.
func (s *Server) AutoAssignSalesRep(c *gin.Context) {
	projectID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, salesrepdomain.ErrInvalidProjectID)
		return
	}

	rep := s.salesRepSvc.AutoAssignSalesRep(c.Request.Context(), projectID)
	c.JSON(http.StatusOK, gin.H{"data": rep, "assigned": rep != nil})
}

func (s *Server) AssignSalesRep(c *gin.Context) {
	projectID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, salesrepdomain.ErrInvalidProjectID)
		return
	}

	var req assignSalesRepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	repID, err := parseSnowflakeID(req.SalesRepID)
	if err != nil {
		AbortWithError(c, salesrepdomain.ErrInvalidRepID)
		return
	}

	ok, err := s.salesRepSvc.AssignSalesRep(c.Request.Context(), projectID, repID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !ok {
		AbortWithError(c, ErrUnprocessable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": true})
}

func (s *Server) UnassignSalesRep(c *gin.Context) {
	projectID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, salesrepdomain.ErrInvalidProjectID)
		return
	}

	ok, err := s.salesRepSvc.UnassignSalesRep(c.Request.Context(), projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !ok {
		AbortWithError(c, salesrepdomain.ErrProjectNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
