package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/samsamfire/candash/pkg/gateway"
	"github.com/samsamfire/candash/pkg/immobilizer"
	"github.com/samsamfire/candash/pkg/router"
	log "github.com/sirupsen/logrus"
)

type GatewayClient struct {
	http.Client
	baseURL string
}

func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		Client:  http.Client{},
		baseURL: baseURL,
	}
}

// HTTP request to gateway endpoint
// Does error checking : http related errors, json decode errors
// or actual gateway errors
func (client *GatewayClient) Do(method string, endpoint string, query url.Values, response GatewayResponse) error {
	uri := client.baseURL + endpoint
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, uri, nil)
	if err != nil {
		log.Errorf("[HTTP][CLIENT] failed to create request : %v", err)
		return err
	}
	httpResp, err := client.Client.Do(req)
	if err != nil {
		log.Errorf("[HTTP][CLIENT] failed request : %v", err)
		return err
	}
	defer httpResp.Body.Close()
	// Decode JSON "generic" response
	err = json.NewDecoder(httpResp.Body).Decode(response)
	if err != nil {
		log.Errorf("[HTTP][CLIENT] failed to decode response : %v", err)
		return err
	}
	return response.GetError()
}

func idQuery(id uint16) url.Values {
	return url.Values{"id": {strconv.Itoa(int(id))}}
}

// Snapshot of every parameter and gateway state
func (client *GatewayClient) Snapshot() (*gateway.Snapshot, error) {
	resp := new(SnapshotResponse)
	err := client.Do(http.MethodGet, "/json", nil, resp)
	return &resp.Snapshot, err
}

// Read parameter via SDO
func (client *GatewayClient) Read(id uint16) (*gateway.ParameterView, error) {
	resp := new(ParameterResponse)
	err := client.Do(http.MethodGet, "/get", idQuery(id), resp)
	if err != nil {
		return nil, err
	}
	return &resp.Parameter, nil
}

// Write parameter, value is parsed by the gateway per the parameter type
func (client *GatewayClient) Write(id uint16, value string) error {
	query := idQuery(id)
	query.Set("value", value)
	return client.Do(http.MethodGet, "/set", query, new(GatewayResponseBase))
}

func (client *GatewayClient) Save() error {
	return client.Do(http.MethodGet, "/save", nil, new(GatewayResponseBase))
}

// Fire-and-forget read
func (client *GatewayClient) Request(id uint16) error {
	return client.Do(http.MethodGet, "/request", idQuery(id), new(GatewayResponseBase))
}

func (client *GatewayClient) Cells() (*CellsResponse, error) {
	resp := new(CellsResponse)
	err := client.Do(http.MethodGet, "/cells", nil, resp)
	return resp, err
}

func (client *GatewayClient) Traffic() ([]router.TrafficEntry, error) {
	resp := new(TrafficResponse)
	err := client.Do(http.MethodGet, "/can/log", nil, resp)
	return resp.Entries, err
}

// Queue a raw frame, data is hex encoded
func (client *GatewayClient) Send(id uint32, data string) error {
	query := url.Values{"id": {fmt.Sprintf("0x%x", id)}, "data": {data}}
	return client.Do(http.MethodGet, "/can/send", query, new(GatewayResponseBase))
}

func (client *GatewayClient) SDOStats() (*SDOStatsResponse, error) {
	resp := new(SDOStatsResponse)
	err := client.Do(http.MethodGet, "/sdo/stats", nil, resp)
	return resp, err
}

func (client *GatewayClient) Immobilizer() (*immobilizer.Status, error) {
	resp := new(ImmobilizerResponse)
	err := client.Do(http.MethodGet, "/immobilizer", nil, resp)
	return &resp.Status, err
}

func (client *GatewayClient) Lock() error {
	return client.Do(http.MethodPost, "/lock", nil, new(GatewayResponseBase))
}

func (client *GatewayClient) Unlock() error {
	return client.Do(http.MethodPost, "/unlock", nil, new(GatewayResponseBase))
}

func (client *GatewayClient) EnterDigit(d uint8) error {
	query := url.Values{"d": {strconv.Itoa(int(d))}}
	return client.Do(http.MethodPost, "/digit", query, new(GatewayResponseBase))
}

func (client *GatewayClient) Toggle() error {
	return client.Do(http.MethodPost, "/toggle", nil, new(GatewayResponseBase))
}

func (client *GatewayClient) SetAutoLock(enabled bool) error {
	query := url.Values{"enabled": {strconv.FormatBool(enabled)}}
	return client.Do(http.MethodPost, "/autolock", query, new(GatewayResponseBase))
}

func (client *GatewayClient) SelectDigit(d uint8) error {
	query := url.Values{"d": {strconv.Itoa(int(d))}}
	return client.Do(http.MethodPost, "/digit/select", query, new(GatewayResponseBase))
}

func (client *GatewayClient) NextDigit() error {
	return client.Do(http.MethodPost, "/digit/next", nil, new(GatewayResponseBase))
}

func (client *GatewayClient) PrevDigit() error {
	return client.Do(http.MethodPost, "/digit/prev", nil, new(GatewayResponseBase))
}

func (client *GatewayClient) ConfirmDigit() error {
	return client.Do(http.MethodPost, "/digit/confirm", nil, new(GatewayResponseBase))
}
