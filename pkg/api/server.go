// Package api exposes the HTTP surface: health, session creation and
// the two WebSocket conversation endpoints.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lumina-learn/lumina/pkg/database"
	"github.com/lumina-learn/lumina/pkg/services"
	"github.com/lumina-learn/lumina/pkg/ws"
)

// Server holds the handlers' dependencies.
type Server struct {
	db          *database.Client
	sessions    *services.SessionService
	connManager *ws.ConnectionManager
	auth        ws.Authenticator
}

// NewServer creates the API server.
func NewServer(db *database.Client, sessions *services.SessionService, connManager *ws.ConnectionManager, authn ws.Authenticator) *Server {
	return &Server{
		db:          db,
		sessions:    sessions,
		connManager: connManager,
		auth:        authn,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.healthHandler)

	v1 := r.Group("/api/v1")
	v1.POST("/sessions", s.createSessionHandler)
	v1.GET("/missions/ws", s.missionWSHandler)
	v1.GET("/commander/ws", s.commanderWSHandler)

	return r
}
