package sync

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	maxInbound   = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the feed is read-only and carries no credentials
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades /ws and keeps the socket registered with the hub until
// the peer stops answering pings or closes.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		log := hub.log.WithField("remote", c.Request.RemoteAddr)

		if err := ws.WriteMessage(websocket.TextMessage, hub.welcome()); err != nil {
			log.WithError(err).Warn("websocket welcome failed")
			_ = ws.Close()
			return
		}
		hub.AddWS(ws)
		log.Info("websocket client connected")

		stop := make(chan struct{})
		go keepAlive(ws, stop)

		ws.SetReadLimit(maxInbound)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		// inbound messages are ignored; reading drives pong and close handling
		for {
			if _, _, err := ws.NextReader(); err != nil {
				break
			}
		}

		close(stop)
		hub.RemoveWS(ws)
		log.Info("websocket client disconnected")
	}
}

func keepAlive(ws *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
