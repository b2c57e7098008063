package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumina-learn/lumina/pkg/models"
)

// createSessionHandler handles POST /api/v1/sessions. It creates a
// commander session for the authenticated caller; the returned id is
// the connect-time parameter for /api/v1/commander/ws.
func (s *Server) createSessionHandler(c *gin.Context) {
	identity, err := s.auth.Authenticate(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	session, err := s.sessions.CreateSession(c.Request.Context(), identity.UserID, "", "", models.SessionKindCommander)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, session)
}
