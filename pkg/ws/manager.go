package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/lumina-learn/lumina/pkg/auth"
	"github.com/lumina-learn/lumina/pkg/models"
	"github.com/lumina-learn/lumina/pkg/pipeline"
	"github.com/lumina-learn/lumina/pkg/progress"
	"github.com/lumina-learn/lumina/pkg/registry"
	"github.com/lumina-learn/lumina/pkg/services"
)

const (
	missionConnectedText   = "Connected to Lumina. Ready to start learning!"
	commanderConnectedText = "Connected to Mission Commander. Starting your learning journey..."
	missionClosedText      = "Congratulations! You've completed the mission!"
	commanderClosedText    = "Mission created! Your learning journey is ready."
)

// SessionStore is the slice of the session service the ws package needs.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	GetOrCreateSession(ctx context.Context, userID, missionID, enrollmentID string, kind models.SessionKind) (*models.Session, error)
	MarkStarted(ctx context.Context, sessionID string) error
	MarkCompleted(ctx context.Context, sessionID string) error
	TouchSession(ctx context.Context, sessionID string) error
}

// MissionStore reads mission/enrollment records and persists enrollment
// progress.
type MissionStore interface {
	GetMission(ctx context.Context, missionID string) (*models.Mission, error)
	GetEnrollment(ctx context.Context, userID, missionID string) (*models.Enrollment, error)
	UpdateEnrollmentProgress(ctx context.Context, enrollmentID string, completedCheckpoints []string, progress float64) error
}

// Authenticator resolves a verified identity from an upgrade request.
// Implemented by auth.Resolver.
type Authenticator interface {
	Authenticate(req *http.Request) (*auth.Identity, error)
}

// ConnectionManager wires one connection worker per accepted WebSocket.
// It holds no per-session state itself; exclusivity lives in the session
// registry and everything else in the worker.
type ConnectionManager struct {
	sessions SessionStore
	missions MissionStore
	messages MessageStore
	registry registry.Registry
	replayer *Replayer
	gen      pipeline.Generator
	auth     Authenticator

	writeTimeout time.Duration
	turnTimeout  time.Duration
}

// NewConnectionManager creates a ConnectionManager.
func NewConnectionManager(
	sessions SessionStore,
	missions MissionStore,
	messages MessageStore,
	reg registry.Registry,
	gen pipeline.Generator,
	authn Authenticator,
	writeTimeout, turnTimeout time.Duration,
) *ConnectionManager {
	return &ConnectionManager{
		sessions:     sessions,
		missions:     missions,
		messages:     messages,
		registry:     reg,
		replayer:     NewReplayer(messages),
		gen:          gen,
		auth:         authn,
		writeTimeout: writeTimeout,
		turnTimeout:  turnTimeout,
	}
}

// HandleMission runs the full lifecycle of one mission-learning
// connection. Blocks until the connection closes; the registry binding
// is released on every exit path.
func (m *ConnectionManager) HandleMission(ctx context.Context, conn *websocket.Conn, req *http.Request) {
	identity, err := m.auth.Authenticate(req)
	if err != nil {
		slog.Warn("WebSocket authentication failed", "error", err)
		_ = conn.Close(websocket.StatusPolicyViolation, closeReason(err.Error()))
		return
	}

	missionID := req.URL.Query().Get("mission_id")
	if missionID == "" {
		_ = conn.Close(websocket.StatusPolicyViolation, "mission_id is required")
		return
	}

	mission, err := m.missions.GetMission(ctx, missionID)
	if err != nil {
		m.closeOnSetupError(conn, "mission", missionID, err)
		return
	}
	enrollment, err := m.missions.GetEnrollment(ctx, identity.UserID, missionID)
	if err != nil {
		m.closeOnSetupError(conn, "enrollment", missionID, err)
		return
	}

	session, err := m.sessions.GetOrCreateSession(ctx, identity.UserID, missionID, enrollment.ID, models.SessionKindMission)
	if err != nil {
		m.closeOnSetupError(conn, "session", missionID, err)
		return
	}

	lease, err := m.registry.Bind(ctx, session.ID)
	if err != nil {
		if errors.Is(err, registry.ErrSessionBusy) {
			slog.Warn("Rejected duplicate session connection",
				"session_id", session.ID, "user_id", identity.UserID)
			_ = conn.Close(websocket.StatusPolicyViolation, "session is already active on another connection")
		} else {
			_ = conn.Close(websocket.StatusInternalError, closeReason(err.Error()))
		}
		return
	}
	defer lease.Release()

	if err := m.sessions.MarkStarted(ctx, session.ID); err != nil {
		m.closeOnSetupError(conn, "session", session.ID, err)
		return
	}

	state := pipeline.NewState(mission.Title, mission.Checkpoints, enrollment.CompletedCheckpoints)
	w := &worker{
		conn:          conn,
		session:       session,
		sessions:      m.sessions,
		messages:      m.messages,
		replayer:      m.replayer,
		pipe:          pipeline.NewMissionPipeline(m.gen, state),
		tracker:       progress.NewTracker(m.missions, m.sessions, session.ID, enrollment.ID, mission.Checkpoints, enrollment.CompletedCheckpoints),
		connectedText: missionConnectedText,
		closedText:    missionClosedText,
		writeTimeout:  m.writeTimeout,
		turnTimeout:   m.turnTimeout,
		logger:        slog.With("session_id", session.ID, "user_id", identity.UserID),
	}
	w.run(ctx)
}

// HandleCommander runs the lifecycle of one mission-creation connection.
// The session must already exist (created via the REST sessions
// endpoint) and belong to the caller.
func (m *ConnectionManager) HandleCommander(ctx context.Context, conn *websocket.Conn, req *http.Request) {
	identity, err := m.auth.Authenticate(req)
	if err != nil {
		slog.Warn("WebSocket authentication failed", "error", err)
		_ = conn.Close(websocket.StatusPolicyViolation, closeReason(err.Error()))
		return
	}

	sessionID := req.URL.Query().Get("session_id")
	if sessionID == "" {
		_ = conn.Close(websocket.StatusPolicyViolation, "session_id is required")
		return
	}

	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		m.closeOnSetupError(conn, "session", sessionID, err)
		return
	}
	if session.UserID != identity.UserID {
		_ = conn.Close(websocket.StatusPolicyViolation, "session does not belong to the authenticated user")
		return
	}
	if !session.Status.IsOpen() {
		_ = conn.Close(websocket.StatusPolicyViolation, "session is already completed")
		return
	}

	lease, err := m.registry.Bind(ctx, session.ID)
	if err != nil {
		if errors.Is(err, registry.ErrSessionBusy) {
			slog.Warn("Rejected duplicate session connection",
				"session_id", session.ID, "user_id", identity.UserID)
			_ = conn.Close(websocket.StatusPolicyViolation, "session is already active on another connection")
		} else {
			_ = conn.Close(websocket.StatusInternalError, closeReason(err.Error()))
		}
		return
	}
	defer lease.Release()

	if err := m.sessions.MarkStarted(ctx, session.ID); err != nil {
		m.closeOnSetupError(conn, "session", session.ID, err)
		return
	}

	w := &worker{
		conn:          conn,
		session:       session,
		sessions:      m.sessions,
		messages:      m.messages,
		replayer:      m.replayer,
		pipe:          pipeline.NewCommanderPipeline(m.gen, pipeline.NewState("", nil, nil)),
		connectedText: commanderConnectedText,
		closedText:    commanderClosedText,
		writeTimeout:  m.writeTimeout,
		turnTimeout:   m.turnTimeout,
		logger:        slog.With("session_id", session.ID, "user_id", identity.UserID),
	}
	w.run(ctx)
}

// closeOnSetupError maps a pre-bind failure to the right close code:
// missing resources are a policy violation, everything else is internal.
func (m *ConnectionManager) closeOnSetupError(conn *websocket.Conn, resource, id string, err error) {
	if errors.Is(err, services.ErrNotFound) {
		_ = conn.Close(websocket.StatusPolicyViolation, closeReason(resource+" not found: "+id))
		return
	}
	slog.Error("WebSocket setup failed", "resource", resource, "id", id, "error", err)
	_ = conn.Close(websocket.StatusInternalError, closeReason(sanitizeError(err.Error())))
}
