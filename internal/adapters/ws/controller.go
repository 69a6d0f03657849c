// Package ws binds connected users to the broadcast hub over websockets.
// The engine itself never sees the wire protocol, only Sender channels.
package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fileroom/fileroom/internal/app"
	"github.com/fileroom/fileroom/internal/core"
	"github.com/fileroom/fileroom/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Service *app.Service
	Hub     *core.BroadcastHub
	Buffer  int
}

// Handle upgrades the request and owns the connection until it dies. A new
// connection for the same user silently replaces the previous one.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	room := domain.RoomCode(strings.ToUpper(c.Param("room")))
	userID := domain.UserID(c.Param("user"))
	log.Info().Str("module", "adapters.ws").Str("user", string(userID)).Str("room", string(room)).Msg("new WS connection")

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}

	conn := newConn(sock, ctl.Buffer)
	if prev := ctl.Hub.Register(userID, conn); prev != nil {
		prev.Close()
	}

	connCtx, cancel := context.WithCancel(ctx)
	go conn.writePump(connCtx)

	ctl.Hub.Send(userID, ctl.Service.UsersList(room, time.Now()))

	go func() {
		defer func() {
			cancel()
			ctl.Hub.UnregisterSender(userID, conn)
			conn.Close()
			log.Info().Str("module", "adapters.ws").Str("user", string(userID)).Msg("connection closed")
		}()
		for {
			// Client frames are opaque activity pings; their only effect
			// is refreshing last-seen.
			if _, _, err := sock.ReadMessage(); err != nil {
				return
			}
			ctl.Service.Heartbeat(userID)
		}
	}()
}
