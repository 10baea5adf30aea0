package websocket

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and streams hub messages to it. An
// optional family_id query parameter limits the feed to one household.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var familyID int64
		if v := r.URL.Query().Get("family_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				http.Error(w, "invalid family_id", http.StatusBadRequest)
				return
			}
			familyID = id
		}

		// The socket outlives the server's write timeout.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			logger.Debug("clear write deadline", "error", err)
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN dashboards
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		NewClient(hub, conn, familyID).Run(r.Context())
	}
}
