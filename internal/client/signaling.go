package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/codetutor/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	outgoingBuffer = 32
)

var ErrSignalerClosed = errors.New("signaling connection closed")

// StatusError is returned when the server refuses the websocket upgrade.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("signaling refused: %d %s", e.Code, http.StatusText(e.Code))
}

// Retryable reports whether another attempt could succeed.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return false
	}
	return true
}

// Signaler is the websocket connection of an agent to the room server.
type Signaler struct {
	conn     *websocket.Conn
	log      *slog.Logger
	incoming chan domain.SignalMessage
	outgoing chan []byte
	done     chan struct{}
	once     sync.Once
}

// JoinURL builds the websocket address of a room from the server base URL.
func JoinURL(server, roomCode, sessionID, participantID, hostKey string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}

	u.Path = "/api/rooms/" + url.PathEscape(roomCode) + "/ws"
	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("participant", participantID)
	if hostKey != "" {
		q.Set("host_key", hostKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func DialSignaler(ctx context.Context, wsURL string, log *slog.Logger) (*Signaler, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, &StatusError{Code: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	s := &Signaler{
		conn:     conn,
		log:      log,
		incoming: make(chan domain.SignalMessage, outgoingBuffer),
		outgoing: make(chan []byte, outgoingBuffer),
		done:     make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readPump()
	go s.writePump()

	return s, nil
}

// Incoming is closed when the connection ends.
func (s *Signaler) Incoming() <-chan domain.SignalMessage {
	return s.incoming
}

func (s *Signaler) Send(msg domain.SignalMessage) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrSignalerClosed
	default:
	}
	select {
	case s.outgoing <- frame:
		return nil
	case <-s.done:
		return ErrSignalerClosed
	}
}

// Close sends a close frame and tears the connection down.
func (s *Signaler) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	return nil
}

func (s *Signaler) readPump() {
	defer func() {
		_ = s.conn.Close()
		close(s.incoming)
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info("signaling connection lost", slog.String("error", err.Error()))
			}
			return
		}

		var msg domain.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("malformed frame from server", slog.String("error", err.Error()))
			continue
		}

		select {
		case s.incoming <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *Signaler) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.outgoing:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.flush()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes frames queued before Close, such as a final leave.
func (s *Signaler) flush() {
	for {
		select {
		case frame := <-s.outgoing:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
