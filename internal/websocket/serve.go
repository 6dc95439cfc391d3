package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"oispurts/internal/config"
	"oispurts/internal/infrastructure"
)

// Handler upgrades requests to the live feed. An empty allowedOrigins
// list accepts any origin; requests without an Origin header are always
// accepted since they come from non-browser clients.
func Handler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.handler"))

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 || allowed[origin] {
				return true
			}
			logger.WarnContext(r.Context(), "WebSocket origin check - origin not allowed",
				slog.String("origin", origin))
			return false
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response
			logger.ErrorContext(ctx, "WebSocket upgrade failed",
				slog.String("error", err.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			return
		}

		client := NewClient(hub, conn, cfg, infrastructure.GetTraceID(ctx), logger)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
