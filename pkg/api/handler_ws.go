package api

import (
	"log/slog"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// missionWSHandler upgrades a mission-learning connection and hands it
// to the connection manager. Authentication happens after the upgrade so
// failures can close with a policy-violation status the client observes.
func (s *Server) missionWSHandler(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// TODO: replace with an OriginPatterns allowlist from config once
		// the frontend domains are settled.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	// Blocks until the connection closes.
	s.connManager.HandleMission(c.Request.Context(), conn, c.Request)
}

// commanderWSHandler upgrades a mission-creation connection.
func (s *Server) commanderWSHandler(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	s.connManager.HandleCommander(c.Request.Context(), conn, c.Request)
}
