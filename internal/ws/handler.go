package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ayushgupta1777/f-vite-backend/internal/auth"
	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
	"github.com/ayushgupta1777/f-vite-backend/internal/metrics"
	"github.com/ayushgupta1777/f-vite-backend/internal/presence"
	"github.com/ayushgupta1777/f-vite-backend/internal/service"
)

type Config struct {
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	MaxMessageBytes int64
	FramesPerSecond int
}

// Handler owns the websocket endpoint: it authenticates the handshake,
// registers the connection as the user's presence, and dispatches
// inbound events into the chat service.
type Handler struct {
	svc      *service.ChatService
	registry *presence.Registry
	tokens   *auth.Manager
	cfg      Config
	log      *zap.SugaredLogger
}

func NewHandler(svc *service.ChatService, registry *presence.Registry, tokens *auth.Manager, cfg Config, log *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, registry: registry, tokens: tokens, cfg: cfg, log: log}
}

// Serve runs for the lifetime of one upgraded connection.
// Route: GET /ws?token=<jwt>
func (h *Handler) Serve(conn *websocket.Conn) {
	token := conn.Query("token")
	claims, err := h.tokens.Verify(token)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message_error","payload":{"error":"invalid token"}}`))
		_ = conn.Close()
		return
	}
	mobile := claims.Mobile

	client := newClient(conn, mobile)
	h.registry.Register(mobile, client)
	metrics.WSConnections.Inc()
	h.svc.TouchLastSeen(context.Background(), mobile)
	h.log.Infow("user connected", "user", mobile)

	go client.writePump(h.cfg.PingInterval, h.cfg.WriteDeadline)

	defer func() {
		h.registry.Unregister(mobile, client)
		client.Close()
		metrics.WSConnections.Dec()
		h.svc.TouchLastSeen(context.Background(), mobile)
		h.log.Infow("user disconnected", "user", mobile)
	}()

	limiter := rate.NewLimiter(rate.Limit(h.cfg.FramesPerSecond), h.cfg.FramesPerSecond)
	readWindow := h.cfg.PingInterval * 2

	conn.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(readWindow))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWindow))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWindow))
		if mt != websocket.TextMessage {
			continue
		}
		if !limiter.Allow() {
			client.Send(service.EventMessageError, service.MessageError{Error: "too many events"})
			continue
		}
		h.dispatch(client, mobile, data)
	}
}

// dispatch routes one inbound frame into the chat service. Both the
// websocket path and the REST path end up in the same service methods.
func (h *Handler) dispatch(c presence.Conn, sender string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.Send(service.EventMessageError, service.MessageError{Error: "malformed event"})
		return
	}

	switch env.Type {
	case "send_message":
		var p struct {
			Receiver       string `json:"receiver"`
			Text           string `json:"text"`
			ConversationID string `json:"conversationId"`
		}
		if env.Payload != nil {
			_ = json.Unmarshal(env.Payload, &p)
		}
		msg, _, err := h.svc.SendMessage(ctx, sender, p.Receiver, p.Text, p.ConversationID)
		if err != nil {
			c.Send(service.EventMessageError, service.MessageError{Error: errs.PublicMessage(err)})
			return
		}
		c.Send(service.EventMessageSent, msg)

	case "mark_read":
		var p struct {
			ConversationID string `json:"conversationId"`
			CounterpartyID string `json:"counterpartyId"`
		}
		if env.Payload != nil {
			_ = json.Unmarshal(env.Payload, &p)
		}
		if _, err := h.svc.MarkRead(ctx, sender, p.ConversationID, p.CounterpartyID); err != nil {
			h.log.Warnw("mark read failed", "user", sender, "conversation", p.ConversationID, "err", err)
		}

	case "typing", "stop_typing":
		var p struct {
			ConversationID string `json:"conversationId"`
			Receiver       string `json:"receiver"`
		}
		if env.Payload != nil {
			_ = json.Unmarshal(env.Payload, &p)
		}
		h.svc.Typing(sender, p.ConversationID, p.Receiver, env.Type == "stop_typing")

	default:
		// Unknown events are ignored; old clients keep working.
	}
}
