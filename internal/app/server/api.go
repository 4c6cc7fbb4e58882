package server

import (
	"log/slog"
	"net/http"

	"marketchat/internal/app/server/handlers"
	"marketchat/internal/core/services"
	"marketchat/pkg/middleware"
)

type APIDeps struct {
	Chat       services.IChatService
	Tokens     middleware.TokenValidator
	CORSOrigin string
	Log        *slog.Logger
}

// NewAPIHandler routes the authenticated messaging API.
func NewAPIHandler(deps APIDeps) http.Handler {
	h := handlers.NewMessagesHandler(deps.Chat)
	auth := middleware.AuthMiddleware(deps.Tokens)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/messages/ws-token", h.WSToken)
	api.HandleFunc("GET /api/messages/conversations", h.ListConversations)
	api.HandleFunc("POST /api/messages/conversations", h.StartConversation)
	api.HandleFunc("GET /api/messages/conversations/{id}/messages", h.ListMessages)
	api.HandleFunc("POST /api/messages/conversations/{id}/messages", h.SendMessage)
	api.HandleFunc("POST /api/messages/conversations/{id}/read", h.MarkRead)
	api.HandleFunc("GET /api/messages/unread", h.UnreadCount)
	api.HandleFunc("POST /api/messages/presence", h.Presence)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("/api/messages/", auth(api))
	mux.HandleFunc("/", handlers.NotFound)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.TracerMiddleware("chat-api"),
		middleware.RequestLogger(deps.Log),
		middleware.CORS(deps.CORSOrigin),
	)
}
