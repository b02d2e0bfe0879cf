package sdo

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/param"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	NodeID       uint8
	TxBase       uint32
	RxBase       uint32
	Index        uint16
	Timeout      time.Duration
	Retries      int
	PollInterval time.Duration
}

func DefaultConfig(nodeId uint8) Config {
	return Config{
		NodeID:       nodeId,
		TxBase:       ClientBaseId,
		RxBase:       ServerBaseId,
		Index:        DefaultIndex,
		Timeout:      DefaultClientTimeout,
		Retries:      DefaultRetries,
		PollInterval: DefaultPollInterval,
	}
}

// Request identifier
func (c Config) TxId() uint32 {
	return c.TxBase + uint32(c.NodeID)
}

// Response identifier
func (c Config) RxId() uint32 {
	return c.RxBase + uint32(c.NodeID)
}

type response struct {
	command uint8
	value   uint32
}

// Client is a blocking SDO client. A single transaction is in flight at a time.
// While waiting it pumps the [candash.BusManager] dispatcher itself, and
// being subscribed first it gets offered the matching response before
// any other consumer.
type Client struct {
	bm       *candash.BusManager
	store    *param.Store
	config   Config
	txMu     sync.Mutex
	mu       sync.Mutex
	state    State
	command  uint8
	index    uint16
	paramId  uint8
	response *response
	stats    Stats
	now      func() time.Time
	sleep    func(time.Duration)
}

// Create a new SDO client. store may be nil, otherwise successful reads
// refresh the corresponding declared parameter.
func NewClient(bm *candash.BusManager, store *param.Store, config Config) (*Client, error) {
	if bm == nil {
		return nil, candash.ErrIllegalArgument
	}
	if config.Retries <= 0 || config.Timeout <= 0 {
		return nil, fmt.Errorf("%w : retries and timeout must be positive", candash.ErrIllegalArgument)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Client{
		bm:     bm,
		store:  store,
		config: config,
		now:    time.Now,
		sleep:  time.Sleep,
	}, nil
}

func (c *Client) Config() Config {
	return c.config
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Consume implements [candash.FrameConsumer].
// Only the response to the transaction in flight is claimed.
func (c *Client) Consume(frame candash.Frame) bool {
	if frame.ID != c.config.RxId() || frame.DLC < 8 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSent || frame.Data[3] != c.paramId {
		return false
	}
	command := frame.Data[0]
	switch {
	case command == CmdAbort:
	case c.command == CmdRead && (command == CmdReadResponse || command == CmdReadResponse2):
	case c.command == CmdWrite && command == CmdWriteResponse:
	default:
		return false
	}
	index := binary.LittleEndian.Uint16(frame.Data[1:3])
	if index != c.index {
		log.Warnf("[SDO][RX] unexpected index x%x (expected x%x) for param %v, accepting anyway",
			index, c.index, c.paramId)
	}
	c.response = &response{command: command, value: binary.LittleEndian.Uint32(frame.Data[4:8])}
	return true
}

// HandleUnsolicited processes responses that were not awaited, typically
// answers to fire-and-forget requests. Read responses refresh the store.
func (c *Client) HandleUnsolicited(frame candash.Frame) {
	if frame.DLC < 8 {
		log.Debugf("[SDO][RX] short response ignored : %v", frame)
		return
	}
	paramId := frame.Data[3]
	value := int32(binary.LittleEndian.Uint32(frame.Data[4:8]))
	switch frame.Data[0] {
	case CmdReadResponse, CmdReadResponse2:
		if c.store != nil && c.store.UpdateInt(uint16(paramId), int64(value)) {
			log.Debugf("[SDO][RX] param %v = %v", paramId, value)
		}
	case CmdWriteResponse:
		log.Debugf("[SDO][RX] write of param %v confirmed", paramId)
	case CmdAbort:
		abort := Abort(uint32(value))
		log.Warnf("[SDO][RX] param %v aborted : %v", paramId, abort)
	default:
		log.Debugf("[SDO][RX] unknown command x%x", frame.Data[0])
	}
}

// Read a parameter, retrying on timeout
func (c *Client) Read(paramId uint8) (int32, error) {
	value, err := c.transact(CmdRead, c.config.Index, paramId, 0, c.config.Retries)
	if err != nil {
		return 0, err
	}
	if c.store != nil {
		c.store.UpdateInt(uint16(paramId), int64(value))
	}
	return value, nil
}

// Write a parameter, retrying on timeout
func (c *Client) Write(paramId uint8, value int32) error {
	_, err := c.transact(CmdWrite, c.config.Index, paramId, value, c.config.Retries)
	return err
}

// WriteOnce is a single attempt write, used for cyclic writes that
// are simply re-issued on the next cycle
func (c *Client) WriteOnce(paramId uint8, value int32) error {
	return c.WriteOnceIndex(c.config.Index, paramId, value)
}

// WriteOnceIndex is [Client.WriteOnce] with explicit index bytes
func (c *Client) WriteOnceIndex(index uint16, paramId uint8, value int32) error {
	_, err := c.transact(CmdWrite, index, paramId, value, 1)
	return err
}

// Save parameters to the device non volatile memory
func (c *Client) Save() error {
	log.Infof("[SDO] saving parameters to flash")
	err := c.Write(SaveParamId, SaveMagicValue)
	if err != nil {
		log.Warnf("[SDO] save to flash failed : %v", err)
	}
	return err
}

func (c *Client) newRequest(command uint8, index uint16, paramId uint8, value int32) candash.Frame {
	frame := candash.NewFrame(c.config.TxId(), 0, 8)
	frame.Data[0] = command
	binary.LittleEndian.PutUint16(frame.Data[1:3], index)
	frame.Data[3] = paramId
	binary.LittleEndian.PutUint32(frame.Data[4:8], uint32(value))
	return frame
}

func (c *Client) begin(command uint8, index uint16, paramId uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateSent
	c.command = command
	c.index = index
	c.paramId = paramId
	c.response = nil
}

func (c *Client) end(state State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	switch state {
	case StateSucceeded:
		c.stats.Successes++
	case StateAborted:
		c.stats.Failures++
	case StateTimedOut:
		c.stats.Timeouts++
		c.stats.Failures++
	}
	if err != nil {
		c.stats.LastError = err.Error()
	}
}

func (c *Client) poll() *response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.response
}

// Wait for the response until timeout, dispatching received frames
func (c *Client) wait() *response {
	deadline := c.now().Add(c.config.Timeout)
	for {
		c.bm.Dispatch()
		resp := c.poll()
		if resp != nil {
			return resp
		}
		if !c.now().Before(deadline) {
			return nil
		}
		c.sleep(c.config.PollInterval)
	}
}

func (c *Client) transact(command uint8, index uint16, paramId uint8, value int32, attempts int) (int32, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	for attempt := 0; attempt < attempts; attempt++ {
		c.begin(command, index, paramId)
		request := c.newRequest(command, index, paramId, value)
		log.Debugf("[SDO][TX] param %v attempt %v/%v : % X", paramId, attempt+1, attempts, request.Data)
		// Send failures are not retried, only missing responses are
		if err := c.bm.Send(request); err != nil {
			c.end(StateAborted, err)
			log.Warnf("[SDO][TX] param %v : %v", paramId, err)
			return 0, err
		}
		resp := c.wait()
		if resp == nil {
			log.Debugf("[SDO] param %v timeout (attempt %v/%v)", paramId, attempt+1, attempts)
			continue
		}
		if resp.command == CmdAbort {
			abort := Abort(resp.value)
			c.end(StateAborted, abort)
			log.Warnf("[SDO] param %v aborted : %v", paramId, abort)
			return 0, abort
		}
		c.end(StateSucceeded, nil)
		log.Debugf("[SDO][RX] param %v ok : %v", paramId, int32(resp.value))
		return int32(resp.value), nil
	}
	err := fmt.Errorf("%w : param %v, no response after %v attempts", ErrTimeout, paramId, attempts)
	c.end(StateTimedOut, err)
	log.Warnf("[SDO] %v", err)
	return 0, err
}
