package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mentalspace/internal/config"
	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/adapter"
	"mentalspace/internal/infra/logging"
	"mentalspace/internal/infra/security"
	"mentalspace/internal/usecase"
)

// Authenticator resolves a handshake token to a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Principal, error)
}

// ChatService is the part of the chat use case the socket needs.
type ChatService interface {
	AuthorizeParticipant(ctx context.Context, p model.Principal, sessionID string) (*model.ChatSession, error)
	SendMessage(ctx context.Context, p model.Principal, sessionID string, in usecase.SendMessageInput) (*model.ChatMessage, error)
}

type PresenceService interface {
	SetPresence(ctx context.Context, p model.Principal, online bool) (*model.Counselor, error)
}

// Handler upgrades GET /ws and runs the per-connection event loop.
type Handler struct {
	hub      *Hub
	auth     Authenticator
	chat     ChatService
	presence PresenceService
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	log      *zerolog.Logger
}

func NewHandler(hub *Hub, auth Authenticator, chat ChatService, presence PresenceService, cfg config.RealtimeConfig, allowedOrigin string, logger *zerolog.Logger) *Handler {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	return &Handler{
		hub:      hub,
		auth:     auth,
		chat:     chat,
		presence: presence,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		log: hub.log,
	}
}

// originChecker accepts non-browser clients (no Origin) and the frontend origin.
func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed == "" || allowed == "*" {
			return true
		}
		return strings.EqualFold(strings.TrimRight(origin, "/"), strings.TrimRight(allowed, "/"))
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := security.BearerToken(r)
	if token == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	p, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		h.log.Info().Err(err).Str("remote", r.RemoteAddr).Msg("websocket handshake rejected")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if !h.hub.attach() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.hub.detach()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.WithAccount(ctx, p.ID, string(p.Kind))
	if id := logging.TraceID(r.Context()); id != "" {
		ctx = logging.WithTraceID(ctx, id)
	}

	c := newClient(h.hub, conn, p, h.cfg.SendBuffer)
	first := h.hub.register(c)
	logging.With(ctx, h.log).Info().Msg("socket connected")
	if first && p.IsCounselor() {
		h.setPresence(ctx, p, true)
	}

	go c.writePump(h.cfg.WriteTimeout, h.cfg.PongWait*9/10)
	c.readPump(h.cfg.PongWait, func(f Frame) { h.dispatch(ctx, c, f) })

	for room := range h.roomsOf(c) {
		if id, ok := strings.CutPrefix(room, "chat:"); ok {
			h.hub.emitRoom(room, c, adapter.EventUserLeft, presencePayload{UserID: p.ID, SessionID: id})
		}
	}
	last := h.hub.unregister(c)
	if last && p.IsCounselor() {
		h.setPresence(ctx, p, false)
	}
	logging.With(ctx, h.log).Info().Msg("socket disconnected")
}

func (h *Handler) roomsOf(c *Client) map[string]struct{} {
	h.hub.mu.RLock()
	defer h.hub.mu.RUnlock()
	out := make(map[string]struct{}, len(c.rooms))
	for r := range c.rooms {
		out[r] = struct{}{}
	}
	return out
}

func (h *Handler) setPresence(ctx context.Context, p model.Principal, online bool) {
	if h.presence == nil {
		return
	}
	if _, err := h.presence.SetPresence(ctx, p, online); err != nil {
		logging.With(ctx, h.log).Error().Err(err).Bool("online", online).Msg("presence update failed")
	}
}

type sessionData struct {
	SessionID string `json:"sessionId"`
}

type messageData struct {
	SessionID     string `json:"sessionId"`
	Message       string `json:"message"`
	MessageType   string `json:"messageType"`
	AttachmentURL string `json:"attachmentUrl"`
}

type typingData struct {
	SessionID string `json:"sessionId"`
	IsTyping  bool   `json:"isTyping"`
}

type presencePayload struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type typingPayload struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	IsTyping  bool   `json:"isTyping"`
}

func (h *Handler) dispatch(ctx context.Context, c *Client, f Frame) {
	switch f.Event {
	case "chat:join":
		id, ok := sessionIDOf(f.Data)
		if !ok {
			c.enqueueError("sessionId is required", string(domain.KindValidation))
			return
		}
		if _, err := h.chat.AuthorizeParticipant(ctx, c.principal, id); err != nil {
			h.replyError(ctx, c, err)
			return
		}
		room := sessionRoom(id)
		h.hub.join(c, room)
		h.hub.emitRoom(room, c, adapter.EventUserJoined, presencePayload{UserID: c.principal.ID, SessionID: id})

	case "chat:leave":
		id, ok := sessionIDOf(f.Data)
		if !ok {
			c.enqueueError("sessionId is required", string(domain.KindValidation))
			return
		}
		room := sessionRoom(id)
		if !h.hub.inRoom(c, room) {
			return
		}
		h.hub.leave(c, room)
		h.hub.emitRoom(room, c, adapter.EventUserLeft, presencePayload{UserID: c.principal.ID, SessionID: id})

	case adapter.EventChatMessage:
		var d messageData
		if err := json.Unmarshal(f.Data, &d); err != nil || d.SessionID == "" {
			c.enqueueError("sessionId and message are required", string(domain.KindValidation))
			return
		}
		// persisted and relayed to the room by the use case
		_, err := h.chat.SendMessage(ctx, c.principal, d.SessionID, usecase.SendMessageInput{
			Body: d.Message, Kind: d.MessageType, AttachmentURL: d.AttachmentURL,
		})
		if err != nil {
			h.replyError(ctx, c, err)
		}

	case adapter.EventChatTyping:
		var d typingData
		if err := json.Unmarshal(f.Data, &d); err != nil || d.SessionID == "" {
			c.enqueueError("sessionId is required", string(domain.KindValidation))
			return
		}
		room := sessionRoom(d.SessionID)
		if !h.hub.inRoom(c, room) {
			c.enqueueError("join the session first", string(domain.KindForbidden))
			return
		}
		h.hub.emitRoom(room, c, adapter.EventChatTyping, typingPayload{UserID: c.principal.ID, SessionID: d.SessionID, IsTyping: d.IsTyping})

	default:
		c.enqueueError("unsupported event "+f.Event, string(domain.KindValidation))
	}
}

// replyError sends the caller-facing error; internals are logged, not echoed.
func (h *Handler) replyError(ctx context.Context, c *Client, err error) {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		logging.With(ctx, h.log).Error().Err(err).Msg("socket event failed")
		msg = "internal error"
	}
	c.enqueueError(msg, string(kind))
}

// sessionIDOf accepts either a bare string or {"sessionId": "..."}.
func sessionIDOf(raw json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		id = strings.TrimSpace(id)
		return id, id != ""
	}
	var d sessionData
	if err := json.Unmarshal(raw, &d); err == nil {
		d.SessionID = strings.TrimSpace(d.SessionID)
		return d.SessionID, d.SessionID != ""
	}
	return "", false
}
