package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-learn/lumina/pkg/database"
	"github.com/lumina-learn/lumina/pkg/models"
	"github.com/lumina-learn/lumina/pkg/services"
	"github.com/lumina-learn/lumina/test/util"
)

func seedMission(t *testing.T, client *database.Client, id string, checkpoints []string) {
	t.Helper()
	cps, err := json.Marshal(checkpoints)
	require.NoError(t, err)
	_, err = client.DB().ExecContext(context.Background(),
		`INSERT INTO missions (id, title, description, checkpoints) VALUES ($1, $2, $3, $4)`,
		id, "Go Basics", "Learn the basics", cps)
	require.NoError(t, err)
}

func seedEnrollment(t *testing.T, client *database.Client, id, userID, missionID string) {
	t.Helper()
	_, err := client.DB().ExecContext(context.Background(),
		`INSERT INTO enrollments (id, user_id, mission_id) VALUES ($1, $2, $3)`,
		id, userID, missionID)
	require.NoError(t, err)
}

func TestSessionService_Lifecycle(t *testing.T) {
	client := util.SetupTestDatabase(t)
	svc := services.NewSessionService(client)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "u1", "m1", "e1", models.SessionKindMission)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCreated, sess.Status)

	got, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, svc.MarkStarted(ctx, sess.ID))
	got, err = svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusStarted, got.Status)

	// Completion succeeds once; the second attempt reports the guard error
	// that makes the completion signal exactly-once.
	require.NoError(t, svc.MarkCompleted(ctx, sess.ID))
	err = svc.MarkCompleted(ctx, sess.ID)
	assert.ErrorIs(t, err, services.ErrSessionCompleted)

	err = svc.MarkStarted(ctx, sess.ID)
	assert.ErrorIs(t, err, services.ErrSessionCompleted)
}

func TestSessionService_GetSessionNotFound(t *testing.T) {
	client := util.SetupTestDatabase(t)
	svc := services.NewSessionService(client)

	_, err := svc.GetSession(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestSessionService_GetOrCreateReusesOpenSession(t *testing.T) {
	client := util.SetupTestDatabase(t)
	svc := services.NewSessionService(client)
	ctx := context.Background()

	first, err := svc.GetOrCreateSession(ctx, "u1", "m1", "e1", models.SessionKindMission)
	require.NoError(t, err)

	second, err := svc.GetOrCreateSession(ctx, "u1", "m1", "e1", models.SessionKindMission)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A completed session is never resumed; a fresh one is created.
	require.NoError(t, svc.MarkCompleted(ctx, first.ID))
	third, err := svc.GetOrCreateSession(ctx, "u1", "m1", "e1", models.SessionKindMission)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestMessageService_SequenceNumbersStrictlyIncrease(t *testing.T) {
	client := util.SetupTestDatabase(t)
	sessions := services.NewSessionService(client)
	messages := services.NewMessageService(client)
	ctx := context.Background()

	sess, err := sessions.CreateSession(ctx, "u1", "m1", "e1", models.SessionKindMission)
	require.NoError(t, err)

	m1, err := messages.AppendMessage(ctx, sess.ID, models.DirectionInbound, models.MessageKindUser, "hello", "")
	require.NoError(t, err)
	m2, err := messages.AppendMessage(ctx, sess.ID, models.DirectionOutbound, models.MessageKindAgent, "hi there", "lumina_greeter")
	require.NoError(t, err)
	m3, err := messages.AppendMessage(ctx, sess.ID, models.DirectionOutbound, models.MessageKindHandover, "Handing over...", "lumina_flow_briefer")
	require.NoError(t, err)

	assert.Equal(t, 1, m1.SequenceNumber)
	assert.Equal(t, 2, m2.SequenceNumber)
	assert.Equal(t, 3, m3.SequenceNumber)

	list, err := messages.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, m := range list {
		assert.Equal(t, i+1, m.SequenceNumber)
	}
	assert.Equal(t, "hello", list[0].Content)
	assert.Equal(t, "lumina_greeter", list[1].AgentName)

	// Sequences are per session.
	other, err := sessions.CreateSession(ctx, "u2", "m1", "e2", models.SessionKindMission)
	require.NoError(t, err)
	o1, err := messages.AppendMessage(ctx, other.ID, models.DirectionInbound, models.MessageKindUser, "hey", "")
	require.NoError(t, err)
	assert.Equal(t, 1, o1.SequenceNumber)
}

func TestMessageService_EmptyHistoryIsValid(t *testing.T) {
	client := util.SetupTestDatabase(t)
	sessions := services.NewSessionService(client)
	messages := services.NewMessageService(client)
	ctx := context.Background()

	sess, err := sessions.CreateSession(ctx, "u1", "m1", "e1", models.SessionKindMission)
	require.NoError(t, err)

	list, err := messages.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMissionService_ReadAndProgress(t *testing.T) {
	client := util.SetupTestDatabase(t)
	svc := services.NewMissionService(client)
	ctx := context.Background()

	seedMission(t, client, "m1", []string{"c1", "c2", "c3"})
	seedEnrollment(t, client, "e1", "u1", "m1")

	mission, err := svc.GetMission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Go Basics", mission.Title)
	assert.Equal(t, []string{"c1", "c2", "c3"}, mission.Checkpoints)

	_, err = svc.GetMission(ctx, "nope")
	assert.ErrorIs(t, err, services.ErrNotFound)

	enrollment, err := svc.GetEnrollment(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "e1", enrollment.ID)
	assert.Empty(t, enrollment.CompletedCheckpoints)
	assert.Equal(t, 0.0, enrollment.Progress)

	require.NoError(t, svc.UpdateEnrollmentProgress(ctx, "e1", []string{"c1", "c2"}, 2.0/3.0))
	enrollment, err = svc.GetEnrollment(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, enrollment.CompletedCheckpoints)
	assert.InDelta(t, 0.6667, enrollment.Progress, 0.001)

	err = svc.UpdateEnrollmentProgress(ctx, "missing", []string{"c1"}, 0.5)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
