package router

import (
	"sync"
	"time"
)

type Cell struct {
	Millivolts uint16    `json:"mv"`
	LastUpdate time.Time `json:"last_update"`
}

// CellTable holds BMS cell voltages, indexes beyond capacity are dropped
type CellTable struct {
	mu    sync.RWMutex
	cells []Cell
	count int
	now   func() time.Time
}

func NewCellTable(capacity int) *CellTable {
	return &CellTable{cells: make([]Cell, capacity), now: time.Now}
}

func (t *CellTable) Set(index int, millivolts uint16) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.cells) {
		return false
	}
	t.cells[index] = Cell{Millivolts: millivolts, LastUpdate: t.now()}
	if index >= t.count {
		t.count = index + 1
	}
	return true
}

func (t *CellTable) Get(index int) (Cell, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= t.count {
		return Cell{}, false
	}
	return t.cells[index], true
}

// Number of cells, i.e. highest index seen + 1
func (t *CellTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

func (t *CellTable) Capacity() int {
	return len(t.cells)
}

func (t *CellTable) All() []Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := make([]Cell, t.count)
	copy(all, t.cells[:t.count])
	return all
}

// Min and max voltage over cells that reported at least once
func (t *CellTable) MinMax() (min uint16, max uint16, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, cell := range t.cells[:t.count] {
		if cell.LastUpdate.IsZero() {
			continue
		}
		if !ok || cell.Millivolts < min {
			min = cell.Millivolts
		}
		if !ok || cell.Millivolts > max {
			max = cell.Millivolts
		}
		ok = true
	}
	return min, max, ok
}
