package memdev

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

const (
	DefaultCapacity  int64 = 4096 // 4KB
	DefaultBlockSize int64 = 512
)

// Device is a fixed-size memory region shared by every session opened on it.
// The buffer never changes length.
type Device struct {
	data   []byte
	marker *Marker
	mu     sync.RWMutex
}

// New creates a zeroed device of the given capacity.
// It cannot be resized.
func New(capacity int64) *Device {
	return NewWithBlockSize(capacity, DefaultBlockSize)
}

// NewWithBlockSize creates a zeroed device that tracks writes at blockSize granularity.
func NewWithBlockSize(capacity, blockSize int64) *Device {
	if capacity <= 0 {
		panic(fmt.Sprintf("memdev: capacity must be positive, got %d", capacity))
	}

	if blockSize <= 0 {
		panic(fmt.Sprintf("memdev: block size must be positive, got %d", blockSize))
	}

	return &Device{
		data:   make([]byte, capacity),
		marker: NewMarker(capacity, blockSize),
	}
}

func (d *Device) Capacity() int64 {
	return int64(len(d.data))
}

func (d *Device) BlockSize() int64 {
	return d.marker.BlockSize()
}

// Open returns a new session with its cursor at the start of the device.
func (d *Device) Open() *Session {
	return &Session{device: d}
}

// clamp returns how many of the requested bytes fit between p and the end of the device.
func (d *Device) clamp(p, length int64) int64 {
	capacity := d.Capacity()
	if p >= capacity || length <= 0 {
		return 0
	}

	return min(length, capacity-p)
}

// Transfer describes a completed cursor transfer.
type Transfer struct {
	// From is the cursor before the transfer.
	From  int64
	Count int64
}

// To is the cursor after the transfer.
func (t Transfer) To() int64 {
	return t.From + t.Count
}

// ReadTo copies up to length bytes at the session cursor into w and advances the cursor.
// A destination that fails or accepts fewer bytes than offered is a transfer fault;
// the cursor is left where it was.
func (d *Device) ReadTo(s *Session, w io.Writer, length int64) (int64, error) {
	t, err := d.TransferTo(s, w, length)

	return t.Count, err
}

// TransferTo is ReadTo reporting the cursor positions observed under the session lock.
func (d *Device) TransferTo(s *Session, w io.Writer, length int64) (Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Transfer{}, ErrSessionClosed
	}

	p := s.offset

	n := d.clamp(p, length)
	if n == 0 {
		return Transfer{From: p}, nil
	}

	d.mu.RLock()
	chunk := bytes.Clone(d.data[p : p+n])
	d.mu.RUnlock()

	written, err := w.Write(chunk)
	if err != nil {
		return Transfer{From: p}, fmt.Errorf("%w: reading %d byte(s) from %d: %w", ErrTransferFault, n, p, err)
	}

	if int64(written) != n {
		return Transfer{From: p}, fmt.Errorf("%w: reading %d byte(s) from %d: destination accepted %d", ErrTransferFault, n, p, written)
	}

	s.offset += n

	return Transfer{From: p, Count: n}, nil
}

// WriteFrom copies the first min(length, remaining) bytes of r into the device at the session
// cursor and advances the cursor. The source is drained before the device is touched, so a
// failing or short source leaves both the buffer and the cursor unchanged.
func (d *Device) WriteFrom(s *Session, r io.Reader, length int64) (int64, error) {
	t, err := d.TransferFrom(s, r, length)

	return t.Count, err
}

// TransferFrom is WriteFrom reporting the cursor positions observed under the session lock.
func (d *Device) TransferFrom(s *Session, r io.Reader, length int64) (Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Transfer{}, ErrSessionClosed
	}

	p := s.offset

	n := d.clamp(p, length)
	if n == 0 {
		return Transfer{From: p}, nil
	}

	staged := make([]byte, n)

	_, err := io.ReadFull(r, staged)
	if err != nil {
		return Transfer{From: p}, fmt.Errorf("%w: writing %d byte(s) from %d: %w", ErrTransferFault, n, p, err)
	}

	d.mu.Lock()
	copy(d.data[p:p+n], staged)
	d.marker.MarkRange(p, n)
	d.mu.Unlock()

	s.offset += n

	return Transfer{From: p, Count: n}, nil
}

// Seek moves the session cursor. An invalid target leaves the cursor unchanged.
func (d *Device) Seek(s *Session, delta int64, whence Whence) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	target, err := whence.resolve(s.offset, delta, d.Capacity())
	if err != nil {
		return s.offset, err
	}

	s.offset = target

	return target, nil
}

// Clear zeroes the whole device. Cursors are not affected.
func (d *Device) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.data)
	d.marker.Reset()
}

// Control runs an out-of-band request against the device.
func (d *Device) Control(code ControlCode) error {
	switch code {
	case ControlClear:
		d.Clear()

		return nil
	default:
		return fmt.Errorf("%w: control request %s", ErrUnsupportedOperation, code)
	}
}

// ReadAt reads at an absolute offset without involving any cursor.
// Reads are clamped to the device and return io.EOF when nothing could be read past the end.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrInvalidSeek, off)
	}

	n := d.clamp(off, int64(len(p)))
	if n == 0 {
		if len(p) == 0 {
			return 0, nil
		}

		return 0, io.EOF
	}

	d.mu.RLock()
	copy(p, d.data[off:off+n])
	d.mu.RUnlock()

	if n < int64(len(p)) {
		return int(n), io.EOF
	}

	return int(n), nil
}

// WriteAt can write more than one block at a time.
// Writes are clamped to the device; a short write returns io.ErrShortWrite.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrInvalidSeek, off)
	}

	n := d.clamp(off, int64(len(p)))
	if n == 0 {
		if len(p) == 0 {
			return 0, nil
		}

		return 0, io.ErrShortWrite
	}

	d.mu.Lock()
	copy(d.data[off:off+n], p)
	d.marker.MarkRange(off, n)
	d.mu.Unlock()

	if n < int64(len(p)) {
		return int(n), io.ErrShortWrite
	}

	return int(n), nil
}

// IsZero reports whether every byte of the device is zero.
func (d *Device) IsZero() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, b := range d.data {
		if b != 0 {
			return false
		}
	}

	return true
}

// DirtyBlocks returns the indexes of blocks written since creation or the last clear.
func (d *Device) DirtyBlocks() []uint {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.marker.Marked()
}
