package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/yxz1025/ai-helper/internal/playback"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// writeTimeout bounds a single WebSocket message write.
const writeTimeout = 10 * time.Second

// ErrSurfaceOffline is returned by Surface.Play when no client is connected.
var ErrSurfaceOffline = errors.New("httpapi: no client surface connected")

// Message types exchanged over the WebSocket.
const (
	// Server → client.
	msgAITurn = "ai_turn"
	msgPlay   = "play"

	// Client → server.
	msgSurface       = "surface"
	msgPlaybackDone  = "playback_done"
	msgPlaybackError = "playback_error"
)

// serverMessage is the envelope for messages pushed to the client.
type serverMessage struct {
	Type string `json:"type"`

	// Turn is set for ai_turn messages.
	Turn *turnPayload `json:"turn,omitempty"`

	// Play fields: the clip to play and the ID the client must ack with.
	ID     string `json:"id,omitempty"`
	Format string `json:"format,omitempty"`
	Data   string `json:"data,omitempty"`
}

// clientMessage is the envelope for messages received from the client.
type clientMessage struct {
	Type string `json:"type"`

	// Surface state.
	Visible   bool `json:"visible"`
	Recording bool `json:"recording"`

	// Playback ack fields.
	ID    string `json:"id"`
	Error string `json:"error"`
}

// turnPayload is the JSON shape of a turn pushed to the client. Audio is
// delivered separately through play messages; the turn carries only text.
type turnPayload struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	English       string    `json:"english"`
	Chinese       string    `json:"chinese"`
	Tip           string    `json:"tip,omitempty"`
	Encouragement string    `json:"encouragement,omitempty"`
	Heard         string    `json:"heard,omitempty"`
	HasAudio      bool      `json:"has_audio"`
	Timestamp     time.Time `json:"timestamp"`
}

func newTurnPayload(t types.Turn) *turnPayload {
	return &turnPayload{
		ID:            t.ID,
		Source:        string(t.Source),
		English:       t.Reply.English,
		Chinese:       t.Reply.Chinese,
		Tip:           t.Reply.Tip,
		Encouragement: t.Reply.Encouragement,
		Heard:         t.Heard,
		HasAudio:      t.Audio != nil && !t.Audio.Empty(),
		Timestamp:     t.Timestamp,
	}
}

// Surface is one learner's connected client: the WebSocket the server pushes
// turns to and the playback device audio is delivered through. At most one
// connection is active at a time; a new connection replaces the old one.
type Surface struct {
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	visible   bool
	recording bool
	acks      map[string]chan error
	closed    bool
}

// NewSurface creates a surface with no client attached.
func NewSurface(logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{
		logger: logger,
		acks:   make(map[string]chan error),
	}
}

// Ready reports whether the surface can receive an autonomous turn: a client
// is connected, the chat surface is visible, and the learner is not
// currently recording.
func (s *Surface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.visible && !s.recording
}

// attach makes conn the active connection, replacing any previous one. A new
// connection starts with the surface visible.
func (s *Surface) attach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	old := s.conn
	s.conn = conn
	s.visible = true
	s.recording = false
	s.mu.Unlock()

	if old != nil {
		old.Close(websocket.StatusPolicyViolation, "replaced by new connection")
	}
}

// detach clears conn if it is still the active connection and fails any
// pending playback acks.
func (s *Surface) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.visible = false
	s.failAcksLocked(ErrSurfaceOffline)
	s.mu.Unlock()
}

// failAcksLocked resolves every pending ack with err. Must be called with
// s.mu held.
func (s *Surface) failAcksLocked(err error) {
	for id, ch := range s.acks {
		ch <- err
		delete(s.acks, id)
	}
}

// setState updates the visible/recording flags from a client surface message.
func (s *Surface) setState(visible, recording bool) {
	s.mu.Lock()
	s.visible = visible
	s.recording = recording
	s.mu.Unlock()
}

// resolveAck completes the pending playback ack with the given ID.
func (s *Surface) resolveAck(id string, err error) {
	s.mu.Lock()
	ch, ok := s.acks[id]
	if ok {
		delete(s.acks, id)
	}
	s.mu.Unlock()
	if ok {
		ch <- err
	}
}

// PushTurn sends an ai_turn message to the connected client. Turns pushed
// while no client is connected are dropped; the conversation history still
// holds them.
func (s *Surface) PushTurn(turn types.Turn) {
	msg := serverMessage{Type: msgAITurn, Turn: newTurnPayload(turn)}
	if err := s.send(msg); err != nil {
		s.logger.Debug("turn not delivered to surface", "turn", turn.ID, "err", err)
	}
}

// Play implements [playback.Device]: it delivers the clip to the client and
// blocks until the client reports playback completion or failure, or ctx is
// cancelled.
func (s *Surface) Play(ctx context.Context, clip *types.AudioClip) error {
	id := uuid.NewString()
	ack := make(chan error, 1)

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrSurfaceOffline
	}
	s.acks[id] = ack
	s.mu.Unlock()

	msg := serverMessage{
		Type:   msgPlay,
		ID:     id,
		Format: clip.Format,
		Data:   base64.StdEncoding.EncodeToString(clip.Data),
	}
	if err := s.send(msg); err != nil {
		s.resolveAck(id, nil) // drop the pending entry
		return fmt.Errorf("httpapi: deliver clip: %w", err)
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		s.resolveAck(id, nil)
		return ctx.Err()
	}
}

// send marshals and writes msg on the active connection.
func (s *Surface) send(msg serverMessage) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSurfaceOffline
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("httpapi: marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Close detaches any client and fails pending acks.
func (s *Surface) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.closed = true
	s.failAcksLocked(ErrSurfaceOffline)
	s.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

var _ playback.Device = (*Surface)(nil)

// handleWS upgrades the request and runs the read loop for one client
// connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())

	surface, err := s.hub.SurfaceFor(r.Context(), learnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "learner", learnerID, "err", err)
		return
	}
	surface.attach(conn)
	defer surface.detach(conn)

	s.logger.Info("client connected", "learner", learnerID)
	defer s.logger.Info("client disconnected", "learner", learnerID)

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("unparseable client message", "learner", learnerID, "err", err)
			continue
		}

		switch msg.Type {
		case msgSurface:
			surface.setState(msg.Visible, msg.Recording)
		case msgPlaybackDone:
			surface.resolveAck(msg.ID, nil)
		case msgPlaybackError:
			surface.resolveAck(msg.ID, fmt.Errorf("httpapi: client playback: %s", msg.Error))
		default:
			s.logger.Debug("unknown client message type", "learner", learnerID, "type", msg.Type)
		}
	}
}
