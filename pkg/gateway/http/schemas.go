package http

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samsamfire/candash/pkg/gateway"
	"github.com/samsamfire/candash/pkg/immobilizer"
	"github.com/samsamfire/candash/pkg/router"
	"github.com/samsamfire/candash/pkg/sdo"
)

type GatewayResponse interface {
	GetError() error
}

// HTTP response base
type GatewayResponseBase struct {
	// Response, can be "OK" or "ERROR:x"
	Response string `json:"response"`
	// Description of the error if any
	Message string `json:"message,omitempty"`
}

func NewResponseBase(response string) *GatewayResponseBase {
	return &GatewayResponseBase{Response: response}
}

func NewResponseError(err error) []byte {
	gwErr := toGatewayError(err)
	jData, _ := json.Marshal(GatewayResponseBase{Response: gwErr.Error(), Message: err.Error()})
	return jData
}

func NewResponseSuccess() []byte {
	jData, _ := json.Marshal(GatewayResponseBase{Response: "OK"})
	return jData
}

// Extract error if any inside of reponse
func (resp *GatewayResponseBase) GetError() error {
	// Check if any gateway errors
	if !strings.HasPrefix(resp.Response, "ERROR:") {
		return nil
	}
	responseSplitted := strings.Split(resp.Response, ":")
	if len(responseSplitted) != 2 {
		return fmt.Errorf("error decoding error field ('ERROR:' : %v)", resp.Response)
	}
	errorCode, err := strconv.ParseUint(responseSplitted[1], 0, 64)
	if err != nil {
		return fmt.Errorf("error decoding error field ('ERROR:' : %v)", err)
	}
	return NewGatewayError(int(errorCode))
}

type SnapshotResponse struct {
	*GatewayResponseBase
	gateway.Snapshot
}

type ParameterResponse struct {
	*GatewayResponseBase
	Parameter gateway.ParameterView `json:"parameter"`
}

type CellsResponse struct {
	*GatewayResponseBase
	Count int           `json:"count"`
	Min   uint16        `json:"min_mv"`
	Max   uint16        `json:"max_mv"`
	Cells []router.Cell `json:"cells"`
}

type TrafficResponse struct {
	*GatewayResponseBase
	Entries []router.TrafficEntry `json:"entries"`
}

type ImmobilizerResponse struct {
	*GatewayResponseBase
	Status immobilizer.Status `json:"status"`
}

type SDOStatsResponse struct {
	*GatewayResponseBase
	State string    `json:"state"`
	Stats sdo.Stats `json:"stats"`
}
