package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) AddConsultantAgency(c *gin.Context) {
	agencyID, consultantID, ok := relationIDs(c)
	if !ok {
		return
	}
	if err := s.consultantSvc.AddAgency(c.Request.Context(), consultantID, agencyID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) RemoveConsultantAgency(c *gin.Context) {
	agencyID, consultantID, ok := relationIDs(c)
	if !ok {
		return
	}
	if err := s.consultantSvc.RemoveAgency(c.Request.Context(), consultantID, agencyID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func relationIDs(c *gin.Context) (agencyID, consultantID snowflake.ID, ok bool) {
	agencyID, err := parseSnowflakeID(c.Param("agencyId"))
	if err != nil {
		AbortWithError(c, newValidationError("agency_id", "invalid_agency", "agency id must be a valid id"))
		return 0, 0, false
	}
	consultantID, err = parseSnowflakeID(c.Param("consultantId"))
	if err != nil {
		AbortWithError(c, newValidationError("consultant_id", "invalid_consultant", "consultant id must be a valid id"))
		return 0, 0, false
	}
	return agencyID, consultantID, true
}
