package memdev

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// Marker tracks which blocks of the device have been written since the last reset.
type Marker struct {
	bitset    *bitset.BitSet
	blockSize int64
	mu        sync.RWMutex
}

func NewMarker(size, blockSize int64) *Marker {
	blocks := (size + blockSize - 1) / blockSize

	return &Marker{
		bitset:    bitset.New(uint(blocks)),
		blockSize: blockSize,
	}
}

func (m *Marker) BlockSize() int64 {
	return m.blockSize
}

// MarkRange marks every block touched by [off, off+length).
func (m *Marker) MarkRange(off, length int64) {
	if length <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := off / m.blockSize; i <= (off+length-1)/m.blockSize; i++ {
		m.bitset.Set(uint(i))
	}
}

func (m *Marker) IsMarked(off int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.bitset.Test(uint(off / m.blockSize))
}

// Marked returns the marked block indexes in ascending order.
func (m *Marker) Marked() []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	indexes := make([]uint, 0, m.bitset.Count())
	for i, ok := m.bitset.NextSet(0); ok; i, ok = m.bitset.NextSet(i + 1) {
		indexes = append(indexes, i)
	}

	return indexes
}

func (m *Marker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bitset.ClearAll()
}
