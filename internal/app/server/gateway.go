package server

import (
	"log/slog"
	"net/http"

	"marketchat/internal/app/server/handlers"
	"marketchat/internal/core/contracts"
	"marketchat/pkg/middleware"
)

type GatewayDeps struct {
	Registry       contracts.Registry
	Sink           handlers.EventSink
	Tokens         handlers.TokenVerifier
	InternalSecret string
	MaxPublishBody int64
	WS             handlers.WSConfig
	Log            *slog.Logger
}

// NewGatewayHandler routes the gateway's three endpoints: health, the internal publish
// bridge and the WebSocket upgrade.
func NewGatewayHandler(deps GatewayDeps) http.Handler {
	publish := handlers.NewPublishHandler(deps.InternalSecret, deps.Sink, deps.MaxPublishBody)
	socket := handlers.NewWSHandler(deps.Registry, deps.Tokens, deps.WS)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("POST /internal/publish", publish.Handler)
	mux.HandleFunc("GET /ws", socket.Handler)
	mux.HandleFunc("/", handlers.NotFound)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.TracerMiddleware("chat-gateway"),
		middleware.RequestLogger(deps.Log),
		middleware.CORS(deps.WS.CORSOrigin, handlers.InternalSecretHeader),
	)
}
