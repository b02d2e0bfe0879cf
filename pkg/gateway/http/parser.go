package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/samsamfire/candash/pkg/gateway"
	log "github.com/sirupsen/logrus"
)

const (
	maxParamId = 0xFFFF
	maxFrameId = 0x7FF
)

// Get a mandatory query parameter
func queryParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		log.Debugf("[HTTP][SERVER] missing query parameter %v", name)
		return "", ErrGwSyntaxError
	}
	return value, nil
}

// Parse parameter id from "id" query, decimal or hex
func parseParamId(r *http.Request) (uint16, error) {
	raw, err := queryParam(r, "id")
	if err != nil {
		return 0, err
	}
	id, err := gateway.ParseID(raw, maxParamId)
	if err != nil {
		log.Debugf("[HTTP][SERVER] error processing param id %v", raw)
		return 0, ErrGwUnsupportedParameter
	}
	return uint16(id), nil
}

// Parse frame id from "id" query, standard identifiers only
func parseFrameId(r *http.Request) (uint32, error) {
	raw, err := queryParam(r, "id")
	if err != nil {
		return 0, err
	}
	id, err := gateway.ParseID(raw, maxFrameId)
	if err != nil {
		log.Debugf("[HTTP][SERVER] error processing frame id %v", raw)
		return 0, ErrGwSyntaxError
	}
	return uint32(id), nil
}

// Parse a single PIN digit from "d" query
func parseDigit(r *http.Request) (uint8, error) {
	raw, err := queryParam(r, "d")
	if err != nil {
		return 0, err
	}
	digit, err := strconv.ParseUint(raw, 10, 8)
	if err != nil || digit > 9 {
		return 0, ErrGwSyntaxError
	}
	return uint8(digit), nil
}
