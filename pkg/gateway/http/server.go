package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samsamfire/candash/pkg/gateway"
	log "github.com/sirupsen/logrus"
)

const DefaultBroadcastPeriod = 250 * time.Millisecond

type GatewayServer struct {
	*gateway.Gateway
	serveMux        *http.ServeMux
	upgrader        websocket.Upgrader
	broadcastPeriod time.Duration
}

// Create a new HTTP server on top of a gateway
// broadcastPeriod is the websocket snapshot period
func NewGatewayServer(gw *gateway.Gateway, broadcastPeriod time.Duration) *GatewayServer {
	if broadcastPeriod <= 0 {
		broadcastPeriod = DefaultBroadcastPeriod
	}
	g := &GatewayServer{
		Gateway:         gw,
		serveMux:        http.NewServeMux(),
		broadcastPeriod: broadcastPeriod,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Display clients are served from other origins on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	// Parameters
	g.addRoute(http.MethodGet, "/json", g.handleJSON)
	g.addRoute(http.MethodGet, "/get", g.handleRead)
	g.addRoute(http.MethodGet, "/set", g.handleWrite)
	g.addRoute(http.MethodGet, "/save", g.handleSave)
	g.addRoute(http.MethodGet, "/request", g.handleAsyncRead)
	g.addRoute(http.MethodGet, "/cells", g.handleCells)
	g.addRoute(http.MethodGet, "/sdo/stats", g.handleSDOStats)

	// Raw CAN
	g.addRoute(http.MethodGet, "/can/log", g.handleTraffic)
	g.addRoute(http.MethodGet, "/can/send", g.handleSend)

	// Immobilizer
	g.addRoute(http.MethodGet, "/immobilizer", g.handleImmobilizer)
	g.addRoute(http.MethodPost, "/lock", g.handleLock)
	g.addRoute(http.MethodPost, "/unlock", g.handleUnlock)
	g.addRoute(http.MethodPost, "/toggle", g.handleToggle)
	g.addRoute(http.MethodPost, "/autolock", g.handleAutoLock)
	g.addRoute(http.MethodPost, "/digit", g.handleDigit)
	g.addRoute(http.MethodPost, "/digit/select", g.handleSelectDigit)
	g.addRoute(http.MethodPost, "/digit/next", g.handleNextDigit)
	g.addRoute(http.MethodPost, "/digit/prev", g.handlePrevDigit)
	g.addRoute(http.MethodPost, "/digit/confirm", g.handleConfirmDigit)

	// Websocket needs the raw writer for hijacking
	g.serveMux.HandleFunc("/ws", g.handleWebsocket)
	return g
}

// Process server, blocking
func (g *GatewayServer) ListenAndServe(addr string) error {
	log.Infof("[HTTP][SERVER] listening on %v", addr)
	return http.ListenAndServe(addr, g.serveMux)
}

func (g *GatewayServer) Handler() http.Handler {
	return g.serveMux
}

// Add a route to the server for handling a specific command
func (g *GatewayServer) addRoute(method string, pattern string, handler GatewayRequestHandler) {
	g.serveMux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		g.handleRequest(method, handler, w, r)
	})
}
