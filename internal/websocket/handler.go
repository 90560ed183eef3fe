package websocket

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"borsapulse/internal/infrastructure"
)

// Handler upgrades requests to websocket connections registered with hub.
// An empty allowedOrigins list accepts every origin.
func Handler(hub *Hub, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.handler"))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			if slices.Contains(allowedOrigins, origin) {
				return true
			}
			logger.WarnContext(r.Context(), "origin not allowed", slog.String("origin", origin))
			return false
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
			return
		}

		client := NewClient(hub, connWrapper{conn}, infrastructure.GetTraceID(r.Context()), logger)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
