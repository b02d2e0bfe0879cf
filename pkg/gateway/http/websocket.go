package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const writeWait = time.Second

// Stream a snapshot of the gateway every broadcast period until the
// client goes away
func (g *GatewayServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[HTTP][WS] upgrade failed : %v", err)
		return
	}
	defer conn.Close()
	log.Infof("[HTTP][WS] client %v connected", conn.RemoteAddr())

	// Incoming messages are discarded, reading is only needed to notice a close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warnf("[HTTP][WS] client %v : %v", conn.RemoteAddr(), err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(g.broadcastPeriod)
	defer ticker.Stop()
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(g.Snapshot(g.Now())); err != nil {
			log.Debugf("[HTTP][WS] client %v write failed : %v", conn.RemoteAddr(), err)
			return
		}
		select {
		case <-closed:
			log.Infof("[HTTP][WS] client %v disconnected", conn.RemoteAddr())
			return
		case <-ticker.C:
		}
	}
}
