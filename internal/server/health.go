package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/courier/pkg/api"
)

// HealthOK is the status reported while the engine is serving
const HealthOK = "ok"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service:    ServiceName,
		Version:    s.version,
		Status:     HealthOK,
		Plans:      len(s.engine.ListPlans()),
		Registered: len(s.engine.Triggers().Registered()),
	})
}
