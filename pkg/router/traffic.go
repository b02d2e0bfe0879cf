package router

import (
	"fmt"
	"sync"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/internal/ring"
)

const DefaultTrafficLogSize = 100

type TrafficEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Direction string    `json:"direction"`
	ID        uint32    `json:"id"`
	DLC       uint8     `json:"dlc"`
	Data      string    `json:"data"`
}

// TrafficLog keeps the most recent frames seen in both directions,
// evicting the oldest when full. It is meant to be added as a
// bus manager tap.
type TrafficLog struct {
	mu      sync.Mutex
	entries *ring.Ring[TrafficEntry]
}

func NewTrafficLog(size int) *TrafficLog {
	if size <= 0 {
		size = DefaultTrafficLogSize
	}
	// One slot of the ring is always free
	return &TrafficLog{entries: ring.New[TrafficEntry](size + 1)}
}

// Handle implements [candash.FrameListener]
func (l *TrafficLog) Handle(frame candash.Frame) {
	entry := TrafficEntry{
		Timestamp: frame.Timestamp,
		Direction: frame.Direction.String(),
		ID:        frame.ID,
		DLC:       frame.DLC,
		Data:      fmt.Sprintf("% X", frame.Payload()),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries.Full() {
		l.entries.Pop()
	}
	l.entries.Push(entry)
}

// Entries oldest first
func (l *TrafficLog) Entries() []TrafficEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries.Snapshot()
}

func (l *TrafficLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries.Len()
}

func (l *TrafficLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.Reset()
}
