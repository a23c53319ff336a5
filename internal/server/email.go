package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/courier/pkg/api"
)

// handleEmail starts matching plans and responds without waiting for them
func (s *Server) handleEmail(c *gin.Context) {
	var email api.Email
	if err := c.ShouldBindJSON(&email); err != nil {
		writeBadRequest(c, err)
		return
	}

	d, err := s.engine.HandleIncomingEmail(c.Request.Context(), &email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, api.DispatchResponse{
		Matched: d.Matched,
		Count:   len(d.Matched),
	})
}
