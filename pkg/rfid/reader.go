package rfid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 200 * time.Millisecond
	// Longer lines are noise, a UID is at most a few dozen characters
	maxLineLength = 64
)

// A Reader returns presented tags.
// ok is false when nothing was presented during the read window.
type Reader interface {
	Read() (tag Tag, ok bool, err error)
	Close() error
}

type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// SerialReader reads newline terminated hex UIDs from a stream,
// typically a UART attached reader module.
// A read timeout of the port (zero bytes read) ends a [SerialReader.Read]
// with nothing presented, partial lines are kept for the next call.
type SerialReader struct {
	port  io.ReadCloser
	line  []byte
	chunk [maxLineLength]byte
}

func NewSerialReader(port io.ReadCloser) *SerialReader {
	return &SerialReader{port: port}
}

// OpenSerial opens a serial port, 8N1
func OpenSerial(config SerialConfig) (*SerialReader, error) {
	if config.BaudRate == 0 {
		config.BaudRate = DefaultBaudRate
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(config.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s : %w", config.Port, err)
	}
	err = port.SetReadTimeout(config.ReadTimeout)
	if err != nil {
		port.Close()
		return nil, err
	}
	log.Infof("[RFID] reader on %s at %d baud", config.Port, config.BaudRate)
	return NewSerialReader(port), nil
}

func (r *SerialReader) Read() (Tag, bool, error) {
	for {
		if end := bytes.IndexByte(r.line, '\n'); end >= 0 {
			line := string(bytes.TrimSpace(r.line[:end]))
			r.line = append(r.line[:0], r.line[end+1:]...)
			return parseLine(line)
		}
		n, err := r.port.Read(r.chunk[:])
		r.line = append(r.line, r.chunk[:n]...)
		if len(r.line) > maxLineLength && bytes.IndexByte(r.line, '\n') < 0 {
			log.Debugf("[RFID] dropping %d bytes without line end", len(r.line))
			r.line = r.line[:0]
		}
		if err != nil {
			return Tag{}, false, err
		}
		if n == 0 {
			return Tag{}, false, nil
		}
	}
}

func parseLine(line string) (Tag, bool, error) {
	if line == "" {
		return Tag{}, false, nil
	}
	tag, err := ParseTag(line)
	if err != nil {
		log.Debugf("[RFID] ignoring line %q : %v", line, err)
		return Tag{}, false, nil
	}
	return tag, true, nil
}

func (r *SerialReader) Close() error {
	return r.port.Close()
}

// Watch reads tags until the context is cancelled or the reader fails,
// ghost reads are filtered out before calling handler
func Watch(ctx context.Context, reader Reader, handler func(Tag)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		tag, ok, err := reader.Read()
		if errors.Is(err, io.EOF) {
			log.Infof("[RFID] reader closed")
			return nil
		}
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if tag.IsGhost() {
			log.Tracef("[RFID] ghost read ignored")
			continue
		}
		log.Debugf("[RFID] tag %v presented", tag)
		handler(tag)
	}
}
