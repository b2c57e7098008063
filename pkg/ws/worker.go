package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/lumina-learn/lumina/pkg/models"
	"github.com/lumina-learn/lumina/pkg/pipeline"
	"github.com/lumina-learn/lumina/pkg/progress"
)

// worker owns one authenticated, bound session for its lifetime.
// Everything here runs on the single goroutine that accepted the
// connection; turns are strictly sequential, which is what guarantees
// wire-level ordering within the session.
type worker struct {
	conn     *websocket.Conn
	session  *models.Session
	sessions SessionStore
	messages MessageStore
	replayer *Replayer
	pipe     *pipeline.Pipeline
	// tracker is nil for commander sessions, which track no checkpoints.
	tracker *progress.Tracker

	connectedText string
	closedText    string
	writeTimeout  time.Duration
	turnTimeout   time.Duration
	logger        *slog.Logger
}

// run drives the connection from the post-bind handshake to teardown.
func (w *worker) run(ctx context.Context) {
	if err := w.send(ctx, ConnectedMessage{Type: TypeConnected, Message: w.connectedText}); err != nil {
		return
	}

	// Replay prior conversation before accepting new input. A replay
	// failure is logged but not fatal: the client loses history, not the
	// session.
	entries, err := w.replayer.Load(ctx, w.session.ID)
	if err != nil {
		w.logger.Error("Failed to load session history", "error", err)
	} else if len(entries) > 0 {
		if err := w.send(ctx, HistoricalMessagesMessage{Type: TypeHistoricalMessages, Messages: entries}); err != nil {
			return
		}
	}

	for {
		_, data, err := w.conn.Read(ctx)
		if err != nil {
			// Client disconnected or the server is shutting down.
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if err := w.send(ctx, ErrorMessage{Type: TypeError, Message: "Invalid JSON format"}); err != nil {
				return
			}
			continue
		}

		switch frame.Type {
		case TypePing:
			// Liveness only; never reaches the pipeline.
			if err := w.send(ctx, PongMessage{Type: TypePong}); err != nil {
				return
			}

		case TypeUserMessage:
			if frame.Message == "" {
				if err := w.send(ctx, ErrorMessage{Type: TypeError, Message: "Invalid message format: message is required"}); err != nil {
					return
				}
				continue
			}
			completed, err := w.runTurn(ctx, frame.Message)
			if err != nil {
				w.closeInternal(ctx, err)
				return
			}
			if completed {
				_ = w.conn.Close(websocket.StatusNormalClosure, "mission complete")
				return
			}

		default:
			if err := w.send(ctx, ErrorMessage{Type: TypeError, Message: fmt.Sprintf("Unknown message type: %s", frame.Type)}); err != nil {
				return
			}
		}
	}
}

// runTurn processes one inbound user message through the pipeline and
// serializes every resulting frame. Returns completed=true when the
// final handover was reached and session_closed has been sent; a non-nil
// error means the socket itself is unusable.
func (w *worker) runTurn(ctx context.Context, text string) (completed bool, err error) {
	if err := w.send(ctx, ProcessingMarker{Type: TypeProcessingStart}); err != nil {
		return false, err
	}

	// A turn failure must still end the frame: every exit below goes
	// through the end marker before error reporting.
	var turnErr error

	if _, perr := w.messages.AppendMessage(ctx, w.session.ID, models.DirectionInbound, models.MessageKindUser, text, ""); perr != nil {
		return false, w.finishTurn(ctx, fmt.Errorf("persist user message: %w", perr))
	}

	turnCtx, cancel := context.WithTimeout(ctx, w.turnTimeout)
	defer cancel()

	finalReached := false
	for ev := range w.pipe.ProcessTurn(turnCtx, text) {
		switch ev.Kind {
		case pipeline.EventContent:
			if err := w.send(ctx, AgentMessage{Type: TypeAgentMessage, Message: ev.Text}); err != nil {
				return false, err
			}
			if _, perr := w.messages.AppendMessage(ctx, w.session.ID, models.DirectionOutbound, models.MessageKindAgent, ev.Text, string(ev.Agent)); perr != nil && turnErr == nil {
				turnErr = fmt.Errorf("persist agent message: %w", perr)
			}

		case pipeline.EventHandover:
			if ev.Final {
				// The terminal handover is the completion signal, not an
				// announced transition.
				finalReached = true
				continue
			}
			if err := w.send(ctx, AgentHandoverMessage{Type: TypeAgentHandover, Agent: string(ev.To), Message: ev.Text}); err != nil {
				return false, err
			}
			if _, perr := w.messages.AppendMessage(ctx, w.session.ID, models.DirectionOutbound, models.MessageKindHandover, ev.Text, string(ev.To)); perr != nil && turnErr == nil {
				turnErr = fmt.Errorf("persist handover: %w", perr)
			}

		case pipeline.EventCheckpoint:
			if w.tracker == nil {
				continue
			}
			snap, perr := w.tracker.RecordCompletion(ctx, ev.CheckpointID)
			if perr != nil {
				if turnErr == nil {
					turnErr = perr
				}
				continue
			}
			if err := w.sendCheckpointUpdate(ctx, snap); err != nil {
				return false, err
			}

		case pipeline.EventError:
			if turnErr == nil {
				turnErr = ev.Err
			}

		case pipeline.EventTurnDone:
		}
	}

	// The generator usually surfaces the deadline as its own wrapped
	// context error before turnCtx is observed; both spellings mean the
	// turn ran out of time.
	if errors.Is(turnErr, context.DeadlineExceeded) ||
		(turnErr == nil && turnCtx.Err() == context.DeadlineExceeded) {
		turnErr = errors.New("processing timed out")
	}
	if turnErr != nil {
		return false, w.finishTurn(ctx, turnErr)
	}

	if finalReached {
		return true, w.completeSession(ctx)
	}

	// A prior connection can persist full progress and die before the
	// terminal handover arrives. Completion is decided by recorded
	// progress, not by which turn delivered it, so a resumed session
	// closes here instead of waiting for a handover that will never come.
	if w.tracker != nil && w.tracker.Snapshot().Complete() {
		return true, w.completeSession(ctx)
	}

	if terr := w.sessions.TouchSession(ctx, w.session.ID); terr != nil {
		w.logger.Warn("Failed to touch session", "error", terr)
	}
	return false, w.finishTurn(ctx, nil)
}

// finishTurn ends the turn frame and, when the turn failed, reports a
// sanitized error. Turn failures are fatal to the turn only; the
// connection stays up and the user may resend.
func (w *worker) finishTurn(ctx context.Context, turnErr error) error {
	if err := w.send(ctx, ProcessingMarker{Type: TypeProcessingEnd}); err != nil {
		return err
	}
	if turnErr == nil {
		return nil
	}
	w.logger.Error("Turn processing failed", "error", turnErr)
	return w.send(ctx, ErrorMessage{
		Type:    TypeError,
		Message: "Processing error: " + sanitizeError(turnErr.Error()),
	})
}

// completeSession finalizes progress, marks the session completed and
// emits session_closed exactly once, still inside the turn frame.
func (w *worker) completeSession(ctx context.Context) error {
	if w.tracker != nil {
		before := w.tracker.Snapshot()
		snap, err := w.tracker.CompleteAll(ctx)
		if err != nil {
			w.logger.Error("Failed to finalize mission progress", "error", err)
		} else if snap.Progress > before.Progress {
			if err := w.sendCheckpointUpdate(ctx, snap); err != nil {
				return err
			}
		}
		if _, err := w.tracker.SignalCompletion(ctx); err != nil {
			w.logger.Error("Failed to mark session completed", "error", err)
		}
	} else {
		if err := w.sessions.MarkCompleted(ctx, w.session.ID); err != nil {
			w.logger.Error("Failed to mark session completed", "error", err)
		}
	}

	if err := w.send(ctx, SessionClosedMessage{Type: TypeSessionClosed, Message: w.closedText}); err != nil {
		return err
	}
	return w.send(ctx, ProcessingMarker{Type: TypeProcessingEnd})
}

func (w *worker) sendCheckpointUpdate(ctx context.Context, snap models.CheckpointProgress) error {
	return w.send(ctx, CheckpointUpdateMessage{
		Type:                 TypeCheckpointUpdate,
		CompletedCheckpoints: snap.CompletedCheckpoints,
		Progress:             snap.Percent(),
	})
}

// send marshals and writes one frame with the configured write timeout.
func (w *worker) send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		w.logger.Error("Failed to marshal outbound frame", "error", err)
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()
	if err := w.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		w.logger.Warn("Failed to write frame", "error", err)
		return err
	}
	return nil
}

// closeInternal reports an unrecoverable failure and closes with an
// internal-error code.
func (w *worker) closeInternal(ctx context.Context, err error) {
	w.logger.Error("Closing connection on internal error", "error", err)
	_ = w.send(ctx, ErrorMessage{Type: TypeError, Message: sanitizeError(err.Error())})
	_ = w.conn.Close(websocket.StatusInternalError, closeReason(err.Error()))
}
