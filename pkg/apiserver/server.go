package apiserver

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/apiserver/handlers"
	"github.com/bizflow/bizflow/pkg/apiserver/middleware"
	"github.com/bizflow/bizflow/pkg/auth"
	"github.com/bizflow/bizflow/pkg/registry"
)

// Server exposes the workflow REST API.
type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

func NewServer(service *registry.Service, tokens *auth.TokenManager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	workflowHandler := handlers.NewWorkflowHandler(service, logger)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(tokens))
	{
		api.POST("/workflows", workflowHandler.Create)
		api.GET("/workflows", workflowHandler.List)
		api.GET("/workflows/:id", workflowHandler.Get)
		api.PUT("/workflows/:id", workflowHandler.Update)
		api.DELETE("/workflows/:id", workflowHandler.Delete)
		api.POST("/workflows/:id/trigger", workflowHandler.Trigger)
		api.GET("/workflows/:id/executions", workflowHandler.ListExecutions)
	}

	return &Server{router: router, logger: logger}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
