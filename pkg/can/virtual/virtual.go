package virtual

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	candash "github.com/samsamfire/candash"
	can "github.com/samsamfire/candash/pkg/can"
	log "github.com/sirupsen/logrus"
)

// Virtual CAN bus implementation with TCP primarily used for testing
// This needs a broker server to send CAN frames to all connected clients
// More information : https://github.com/windelbouwman/virtualcan

const (
	readTimeout  = 200 * time.Millisecond
	writeTimeout = 10 * time.Millisecond
	// Encoded frame : id, flags, dlc, data
	wireSize = 14
)

var ErrNotConnected = errors.New("no active connection")

func init() {
	can.RegisterInterface("virtual", NewVirtualCanBus)
	can.RegisterInterface("virtualcan", NewVirtualCanBus)
}

// Frame layout on the wire, big endian
type wireFrame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

type Bus struct {
	mu           sync.Mutex
	channel      string
	conn         net.Conn
	receiveOwn   bool
	framehandler candash.FrameListener
	stop         chan struct{}
	wg           sync.WaitGroup
	isRunning    bool
}

func NewVirtualCanBus(channel string) (candash.Bus, error) {
	return &Bus{channel: channel}, nil
}

// Helper function for serializing a CAN frame into the expected binary format
func serializeFrame(frame candash.Frame) ([]byte, error) {
	buffer := new(bytes.Buffer)
	wire := wireFrame{ID: frame.ID, Flags: frame.Flags, DLC: frame.DLC, Data: frame.Data}
	if err := binary.Write(buffer, binary.BigEndian, wire); err != nil {
		return nil, err
	}
	dataBytes := buffer.Bytes()
	frameBytes := make([]byte, 4, 4+len(dataBytes))
	binary.BigEndian.PutUint32(frameBytes, uint32(len(dataBytes)))
	return append(frameBytes, dataBytes...), nil
}

// Helper function for deserializing a CAN frame from expected binary format
func deserializeFrame(buffer []byte) (candash.Frame, error) {
	var wire wireFrame
	if err := binary.Read(bytes.NewReader(buffer), binary.BigEndian, &wire); err != nil {
		return candash.Frame{}, err
	}
	return candash.Frame{ID: wire.ID, Flags: wire.Flags, DLC: wire.DLC, Data: wire.Data}, nil
}

// "Connect" to server e.g. localhost:18000
func (b *Bus) Connect(...any) error {
	conn, err := net.Dial("tcp", b.channel)
	if err != nil {
		return err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return err
		}
	}
	b.mu.Lock()
	b.conn = conn
	start := b.framehandler != nil && !b.isRunning
	b.mu.Unlock()
	if start {
		b.startReception()
	}
	log.Infof("[CAN] virtual bus connected to %v", b.channel)
	return nil
}

// "Disconnect" from server
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	stop := b.stop
	b.stop = nil
	b.mu.Unlock()
	if stop != nil {
		close(stop)
		b.wg.Wait()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		return err
	}
	return nil
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame candash.Frame) error {
	b.mu.Lock()
	conn := b.conn
	handler := b.framehandler
	receiveOwn := b.receiveOwn
	b.mu.Unlock()

	// Local loopback
	if receiveOwn && handler != nil {
		frame.Direction = candash.Inbound
		handler.Handle(frame)
	}
	if conn == nil {
		if receiveOwn {
			return nil
		}
		return ErrNotConnected
	}
	frameBytes, err := serializeFrame(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(frameBytes)
	return err
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(framehandler candash.FrameListener) error {
	b.mu.Lock()
	b.framehandler = framehandler
	start := b.conn != nil && !b.isRunning
	b.mu.Unlock()
	if start {
		b.startReception()
	}
	return nil
}

func (b *Bus) startReception() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isRunning {
		return
	}
	b.isRunning = true
	b.stop = make(chan struct{})
	b.wg.Add(1)
	go b.handleReception(b.conn, b.stop)
}

// Receive new CAN message
func (b *Bus) Recv() (candash.Frame, error) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return candash.Frame{}, ErrNotConnected
	}
	return recv(conn)
}

func recv(conn net.Conn) (candash.Frame, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	headerBytes := make([]byte, 4)
	if _, err := io.ReadFull(conn, headerBytes); err != nil {
		return candash.Frame{}, err
	}
	length := binary.BigEndian.Uint32(headerBytes)
	if length < wireSize || length > 64 {
		return candash.Frame{}, fmt.Errorf("error deserializing : unexpected length %v", length)
	}
	frameBytes := make([]byte, length)
	// Rest of the frame should follow the header closely
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	if _, err := io.ReadFull(conn, frameBytes); err != nil {
		return candash.Frame{}, fmt.Errorf("error deserializing : %w", err)
	}
	return deserializeFrame(frameBytes)
}

// Handle incoming traffic
func (b *Bus) handleReception(conn net.Conn, stop chan struct{}) {
	defer func() {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
		b.wg.Done()
	}()
	for {
		select {
		case <-stop:
			return
		default:
		}
		frame, err := recv(conn)
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			// No message received, this is OK
			continue
		} else if err != nil {
			select {
			case <-stop:
			default:
				log.Errorf("[CAN] virtual bus listening routine has closed because : %v", err)
			}
			return
		}
		frame.Timestamp = time.Now()
		frame.Direction = candash.Inbound
		b.mu.Lock()
		handler := b.framehandler
		b.mu.Unlock()
		if handler != nil {
			handler.Handle(frame)
		}
	}
}

func (b *Bus) SetReceiveOwn(receiveOwn bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiveOwn = receiveOwn
}
