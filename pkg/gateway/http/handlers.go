package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/samsamfire/candash/pkg/gateway"
	log "github.com/sirupsen/logrus"
)

// Wrapper around [http.ResponseWriter] but keeps track of any writes already done
// This allows us to perform default behaviour if handler has not already sent a response
type doneWriter struct {
	http.ResponseWriter
	done bool
}

// Handle a gateway request, a returned error is sent back as an error response
type GatewayRequestHandler func(w *doneWriter, r *http.Request) error

func (w *doneWriter) WriteHeader(status int) {
	w.done = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *doneWriter) Write(b []byte) (int, error) {
	w.done = true
	return w.ResponseWriter.Write(b)
}

// Default handler of any HTTP gateway request
// Checks the method and forwards to the actual handler
func (g *GatewayServer) handleRequest(method string, route GatewayRequestHandler, w http.ResponseWriter, r *http.Request) {
	log.Debugf("[HTTP][SERVER] %v %v", r.Method, r.URL)
	w.Header().Set("Content-Type", "application/json")
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write(NewResponseError(ErrGwRequestNotSupported))
		return
	}
	dw := &doneWriter{ResponseWriter: w}
	err := route(dw, r)
	if err != nil {
		log.Debugf("[HTTP][SERVER] %v failed : %v", r.URL.Path, err)
		w.Write(NewResponseError(err))
		return
	}
	if !dw.done {
		// No response specific command has been given, reply with default success
		dw.Write(NewResponseSuccess())
	}
}

func writeJSON(w *doneWriter, v any) error {
	respRaw, err := json.Marshal(v)
	if err != nil {
		return ErrGwRequestNotProcessed
	}
	_, err = w.Write(respRaw)
	return err
}

func (g *GatewayServer) handleJSON(w *doneWriter, r *http.Request) error {
	return writeJSON(w, SnapshotResponse{
		GatewayResponseBase: NewResponseBase("OK"),
		Snapshot:            g.Snapshot(g.Now()),
	})
}

// Confirmed SDO read, the cached value is only refreshed on success
func (g *GatewayServer) handleRead(w *doneWriter, r *http.Request) error {
	id, err := parseParamId(r)
	if err != nil {
		return err
	}
	p, err := g.Read(id)
	if err != nil {
		return err
	}
	return writeJSON(w, ParameterResponse{
		GatewayResponseBase: NewResponseBase("OK"),
		Parameter:           gateway.NewParameterView(&p, g.Now()),
	})
}

func (g *GatewayServer) handleWrite(w *doneWriter, r *http.Request) error {
	id, err := parseParamId(r)
	if err != nil {
		return err
	}
	value, err := queryParam(r, "value")
	if err != nil {
		return err
	}
	return g.Write(id, value)
}

func (g *GatewayServer) handleSave(w *doneWriter, r *http.Request) error {
	return g.Save()
}

// Fire-and-forget read, the answer lands in the cache when it arrives
func (g *GatewayServer) handleAsyncRead(w *doneWriter, r *http.Request) error {
	id, err := parseParamId(r)
	if err != nil {
		return err
	}
	return g.Request(id)
}

func (g *GatewayServer) handleCells(w *doneWriter, r *http.Request) error {
	cells := g.Router().Cells()
	min, max, _ := cells.MinMax()
	return writeJSON(w, CellsResponse{
		GatewayResponseBase: NewResponseBase("OK"),
		Count:               cells.Count(),
		Min:                 min,
		Max:                 max,
		Cells:               cells.All(),
	})
}

func (g *GatewayServer) handleSDOStats(w *doneWriter, r *http.Request) error {
	client := g.SDO()
	return writeJSON(w, SDOStatsResponse{
		GatewayResponseBase: NewResponseBase("OK"),
		State:               client.State().String(),
		Stats:               client.Stats(),
	})
}

func (g *GatewayServer) handleTraffic(w *doneWriter, r *http.Request) error {
	return writeJSON(w, TrafficResponse{
		GatewayResponseBase: NewResponseBase("OK"),
		Entries:             g.Traffic().Entries(),
	})
}

func (g *GatewayServer) handleSend(w *doneWriter, r *http.Request) error {
	id, err := parseFrameId(r)
	if err != nil {
		return err
	}
	return g.SendRaw(id, r.URL.Query().Get("data"))
}

func (g *GatewayServer) handleImmobilizer(w *doneWriter, r *http.Request) error {
	imm := g.Immobilizer()
	if imm == nil {
		return gateway.ErrImmobilizerDisabled
	}
	return writeJSON(w, ImmobilizerResponse{
		GatewayResponseBase: NewResponseBase("OK"),
		Status:              imm.Status(g.Now()),
	})
}

func (g *GatewayServer) handleLock(w *doneWriter, r *http.Request) error {
	return g.Lock()
}

func (g *GatewayServer) handleUnlock(w *doneWriter, r *http.Request) error {
	return g.Unlock()
}

func (g *GatewayServer) handleDigit(w *doneWriter, r *http.Request) error {
	digit, err := parseDigit(r)
	if err != nil {
		return err
	}
	return g.EnterDigit(digit)
}

func (g *GatewayServer) handleToggle(w *doneWriter, r *http.Request) error {
	return g.Toggle()
}

func (g *GatewayServer) handleAutoLock(w *doneWriter, r *http.Request) error {
	raw, err := queryParam(r, "enabled")
	if err != nil {
		return err
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return ErrGwSyntaxError
	}
	return g.SetAutoLock(enabled)
}

func (g *GatewayServer) handleSelectDigit(w *doneWriter, r *http.Request) error {
	digit, err := parseDigit(r)
	if err != nil {
		return err
	}
	return g.SelectDigit(digit)
}

func (g *GatewayServer) handleNextDigit(w *doneWriter, r *http.Request) error {
	return g.NextDigit()
}

func (g *GatewayServer) handlePrevDigit(w *doneWriter, r *http.Request) error {
	return g.PrevDigit()
}

func (g *GatewayServer) handleConfirmDigit(w *doneWriter, r *http.Request) error {
	return g.ConfirmDigit()
}
