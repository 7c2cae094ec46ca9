package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peyvandapp/peyvand-backend/internal/middleware"
	"github.com/peyvandapp/peyvand-backend/internal/services"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// AdminNotificationFeed streams moderation events to a connected admin
// dashboard in real time. Authentication uses the admin session token,
// via header or the `token` query parameter for browser clients.
func AdminNotificationFeed(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractSessionToken(r)
	if token == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return
	}

	adminID, ok, err := services.ValidateAdminSession(r.Context(), token)
	if err != nil || !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	services.RegisterAdminConnection(adminID.String(), conn)
	defer services.UnregisterAdminConnection(adminID.String())

	// Reader loop exists only to detect disconnects and answer pings.
	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	}
}
