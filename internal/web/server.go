// Package web is the thin HTTP transport over the engine. It owns no
// reconciliation logic: it decodes requests, invokes the engine, and
// surfaces the run summary.
package web

import (
	"github.com/gin-gonic/gin"

	"github.com/azmainm/standup-tickets/internal/engine"
	"github.com/azmainm/standup-tickets/internal/store"
)

// Server is the standup-tickets HTTP server.
type Server struct {
	engine *engine.Engine
	store  *store.Store
	router *gin.Engine
}

// NewServer creates the HTTP server and registers routes.
func NewServer(eng *engine.Engine, st *store.Store) *Server {
	router := gin.Default()

	s := &Server{
		engine: eng,
		store:  st,
		router: router,
	}

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/process", s.handleProcess)
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:ticketId", s.handleGetTask)
	}

	return s
}

// Run starts the server on addr.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
