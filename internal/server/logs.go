package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/courier/pkg/api"
)

func (s *Server) listLogs(c *gin.Context) {
	writeLogs(c, s.engine.Logs().All())
}

func (s *Server) planLogs(c *gin.Context) {
	writeLogs(c, s.engine.GetPlanLogs(api.PlanID(c.Param("planID"))))
}

func (s *Server) executionLogs(c *gin.Context) {
	id := api.ExecutionID(c.Param("executionID"))
	writeLogs(c, s.engine.GetExecutionLogs(id))
}

func writeLogs(c *gin.Context, entries []*api.LogEntry) {
	if entries == nil {
		entries = []*api.LogEntry{}
	}
	c.JSON(http.StatusOK, api.LogsResponse{
		Entries: entries,
		Count:   len(entries),
	})
}
