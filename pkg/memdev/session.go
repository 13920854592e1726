package memdev

import (
	"bytes"
	"io"
	"sync"
)

// Session is a caller's view of the device with its own cursor.
// Closing a session has no effect on the device contents.
type Session struct {
	device *Device
	offset int64
	closed bool
	mu     sync.Mutex
}

var _ io.ReadWriteSeeker = (*Session)(nil)
var _ io.Closer = (*Session)(nil)

func (s *Session) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.offset
}

// Read fills p from the cursor. At the end of the device it returns io.EOF.
func (s *Session) Read(p []byte) (int, error) {
	var buf bytes.Buffer
	buf.Grow(len(p))

	n, err := s.device.ReadTo(s, &buf, int64(len(p)))
	if err != nil {
		return 0, err
	}

	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}

	return copy(p, buf.Bytes()[:n]), nil
}

// Write stores p at the cursor. A write clamped by the end of the device returns io.ErrShortWrite.
func (s *Session) Write(p []byte) (int, error) {
	n, err := s.device.WriteFrom(s, bytes.NewReader(p), int64(len(p)))
	if err != nil {
		return int(n), err
	}

	if n < int64(len(p)) {
		return int(n), io.ErrShortWrite
	}

	return int(n), nil
}

// Seek implements io.Seeker on top of the device seek rules.
func (s *Session) Seek(offset int64, whence int) (int64, error) {
	w, err := WhenceFromIO(whence)
	if err != nil {
		return s.Offset(), err
	}

	return s.device.Seek(s, offset, w)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}
