package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"marketchat/internal/app/server/ws"
	"marketchat/internal/core/contracts"
	"marketchat/internal/core/domain"
	"marketchat/internal/core/services"
	"marketchat/internal/platform/logger"
	"marketchat/pkg/logging"
	"marketchat/pkg/middleware"
)

// authSubprotocol lets browsers, which cannot set headers on a WebSocket handshake, send
// the token as the subprotocol pair "auth", "<token>".
const authSubprotocol = "auth"

type TokenVerifier interface {
	Verify(token string) (services.WSClaims, error)
}

type WSConfig struct {
	CORSOrigin string
	SendBuffer int
	Socket     ws.Options
}

type WSHandler struct {
	hub      contracts.Registry
	tokens   TokenVerifier
	cfg      WSConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(hub contracts.Registry, tokens TokenVerifier, cfg WSConfig) *WSHandler {
	h := &WSHandler{hub: hub, tokens: tokens, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{authSubprotocol},
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Handler authenticates before upgrading: a rejected connection never joins a room and
// never touches presence.
func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())

	claims, err := h.tokens.Verify(tokenFromRequest(r))
	if err != nil {
		log.InfoContext(r.Context(), "ws handler - authenticate - rejected")
		writeNoRetry(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	userID := claims.UserID
	span.SetAttributes(attribute.String("user.id", userID))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - failed", logging.Err(err))
		return
	}

	// the upgraded connection outlives the request's cancellation
	ctx := context.WithoutCancel(r.Context())
	connLog := log.With(logging.User(userID))
	socket := ws.NewWebSocket(conn, h.cfg.Socket, connLog)
	client := ws.NewClient(socket, userID, h.cfg.SendBuffer, connLog)

	h.hub.Join(client)
	defer h.hub.Leave(client)
	h.hub.SendSnapshot(ctx, client)
	connLog.InfoContext(ctx, "ws handler - join - connection established", logging.Client(client.ID()))

	client.Run(func(data []byte) {
		h.onMessage(ctx, connLog, client, data)
	})
	connLog.InfoContext(ctx, "ws handler - leave - connection closed", logging.Client(client.ID()))
}

func (h *WSHandler) onMessage(ctx context.Context, log *slog.Logger, c contracts.Client, data []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.DebugContext(ctx, "ws handler - read - malformed frame", logging.Err(err))
		return
	}
	switch frame.Event {
	case domain.EventPresenceSnapshotRequest:
		h.hub.SendSnapshot(ctx, c)
	default:
		log.DebugContext(ctx, "ws handler - read - ignored event", logging.Event(frame.Event))
	}
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return middleware.AllowedOrigin(h.cfg.CORSOrigin, origin) != ""
}

func tokenFromRequest(r *http.Request) string {
	if token, ok := middleware.BearerToken(r); ok {
		return token
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	protocols := websocket.Subprotocols(r)
	for i := 0; i+1 < len(protocols); i++ {
		if protocols[i] == authSubprotocol {
			return protocols[i+1]
		}
	}
	return ""
}
