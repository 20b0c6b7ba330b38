package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/codetutor/internal/api/http/converter"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/internal/service"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// Editor updates travel base64 encoded inside JSON frames.
	maxFrameSize = 1 << 20
)

type RoomController struct {
	rooms     service.RoomInteractor
	publicURL string
	log       *slog.Logger
	upgrader  websocket.Upgrader
}

func NewRoomController(rooms service.RoomInteractor, publicURL string, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		rooms:     rooms,
		publicURL: publicURL,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	type CreateRoomRequest struct {
		SessionID       string `json:"session_id"`
		RoomCode        string `json:"room_code"`
		Name            string `json:"name" binding:"max=128"`
		LifetimeMinutes int    `json:"lifetime_minutes" binding:"min=0"`
	}
	var req CreateRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	room, err := c.rooms.CreateRoom(ctx.Request.Context(), service.CreateRoomRequest{
		Name:      req.Name,
		SessionID: req.SessionID,
		RoomCode:  req.RoomCode,
		Lifetime:  time.Duration(req.LifetimeMinutes) * time.Minute,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	res, err := converter.CreatedRoomToApi(room, c.publicURL)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, res)
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	room, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) ListParticipants(ctx *gin.Context) {
	participants, err := c.rooms.ListParticipants(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (c *RoomController) PanelSnapshot(ctx *gin.Context) {
	panel, err := domain.ParsePanel(ctx.Param("panel"))
	if err != nil {
		writeError(ctx, err)
		return
	}

	var after int64
	if raw := ctx.Query("after"); raw != "" {
		after, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || after < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid after sequence"})
			return
		}
	}

	snap, err := c.rooms.PanelSnapshot(ctx.Request.Context(), ctx.Param("code"), panel, after)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, snap)
}

// JoinRoom registers the caller before upgrading, so a refused join is
// answered with a plain HTTP status.
func (c *RoomController) JoinRoom(ctx *gin.Context) {
	const op = "http.room.join"
	code := ctx.Param("code")

	peer, err := c.rooms.Join(context.Background(), code, service.JoinRequest{
		SessionID:     ctx.Query("session"),
		ParticipantID: ctx.Query("participant"),
		HostKey:       ctx.Query("host_key"),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	log := c.log.With(
		slog.String("op", op),
		slog.String("room", code),
		slog.String("peer", peer.ID),
	)

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Info("upgrade failed", sl.Err(err))
		_ = c.rooms.Disconnect(context.Background(), code, peer)
		return
	}
	peer.Attach(conn)

	go writePump(peer, conn)
	c.readPump(code, peer, conn, log)
}

func (c *RoomController) readPump(code string, peer *domain.Peer, conn *websocket.Conn, log *slog.Logger) {
	defer func() {
		if err := c.rooms.Disconnect(context.Background(), code, peer); err != nil {
			log.Debug("disconnect", sl.Err(err))
		}
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		peer.Touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Info("connection closed", sl.Err(err))
			}
			return
		}
		peer.Touch()

		var msg domain.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			replyError(peer, errors.New("malformed frame"))
			continue
		}

		if err := c.rooms.HandleSignal(context.Background(), code, peer.ParticipantID, &msg); err != nil {
			if errors.Is(err, service.ErrPeerNotFound) && peer.Closed() {
				return
			}
			replyError(peer, err)
			continue
		}
		if msg.Type == domain.SignalLeave {
			return
		}
	}
}

// writePump is the only writer of conn.
func writePump(peer *domain.Peer, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-peer.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func replyError(peer *domain.Peer, err error) {
	msg, encErr := domain.NewSignal(domain.SignalError, domain.ErrorPayload{Error: err.Error()})
	if encErr != nil {
		return
	}
	frame, encErr := json.Marshal(msg)
	if encErr != nil {
		return
	}
	peer.EnqueueEvent(frame)
}
