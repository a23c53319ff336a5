package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/courier/internal/engine"
	"github.com/kode4food/courier/pkg/util"
)

// Server implements the HTTP API server for the engine
type Server struct {
	engine  *engine.Engine
	version string
	sockets util.Set[*Client]
	mu      sync.Mutex
}

// ServiceName identifies this service in health responses
const ServiceName = "courier-engine"

// NewServer creates a new HTTP API server
func NewServer(eng *engine.Engine, version string) *Server {
	return &Server{
		engine:  eng,
		version: version,
		sockets: util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.engine.Metrics().Handler()))

	eng := router.Group("/engine")
	{
		// Plan endpoints
		eng.GET("/plan", s.listPlans)
		eng.POST("/plan", s.createPlan)
		eng.POST("/plan/validate", s.validatePlan)
		eng.GET("/plan/:planID", s.getPlan)
		eng.PUT("/plan/:planID", s.updatePlan)
		eng.DELETE("/plan/:planID", s.deletePlan)
		eng.POST("/plan/:planID/execute", s.executePlan)
		eng.PUT("/plan/:planID/enabled", s.setPlanEnabled)

		// Inbound mail
		eng.POST("/email", s.handleEmail)

		// Execution logs
		eng.GET("/logs", s.listLogs)
		eng.GET("/logs/plan/:planID", s.planLogs)
		eng.GET("/logs/execution/:executionID", s.executionLogs)

		// WebSocket
		eng.GET("/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
