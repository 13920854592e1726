package memdev

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("bad address")
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

func read(t *testing.T, d *Device, s *Session, length int64) []byte {
	t.Helper()

	var buf bytes.Buffer
	n, err := d.ReadTo(s, &buf, length)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)

	return buf.Bytes()
}

func write(t *testing.T, d *Device, s *Session, data []byte) int64 {
	t.Helper()

	n, err := d.WriteFrom(s, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	return n
}

func TestNew(t *testing.T) {
	d := New(DefaultCapacity)

	assert.Equal(t, int64(4096), d.Capacity())
	assert.True(t, d.IsZero(), "new device should be zeroed")
	assert.Empty(t, d.DirtyBlocks())

	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { NewWithBlockSize(16, 0) })
}

func TestOpenStartsAtZero(t *testing.T) {
	d := New(16)

	s := d.Open()
	assert.Equal(t, int64(0), s.Offset())

	_, err := d.Seek(s, 8, FromStart)
	require.NoError(t, err)

	assert.Equal(t, int64(0), d.Open().Offset(), "new sessions do not inherit cursors")
}

func TestWriteClampedAtEnd(t *testing.T) {
	d := New(16)
	s := d.Open()

	n := write(t, d, s, bytes.Repeat([]byte{0xAA}, 20))
	assert.Equal(t, int64(16), n)
	assert.Equal(t, int64(16), s.Offset())
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 16), d.data)

	assert.Empty(t, read(t, d, s, 5), "reading at the end transfers nothing")
	assert.Equal(t, int64(16), s.Offset())

	require.NoError(t, d.Control(ControlClear))

	_, err := d.Seek(s, 0, FromStart)
	require.NoError(t, err)

	assert.Equal(t, make([]byte, 16), read(t, d, s, 16))
}

func TestWritePartialRoom(t *testing.T) {
	d := New(16)
	s := d.Open()

	_, err := d.Seek(s, 10, FromStart)
	require.NoError(t, err)

	n := write(t, d, s, []byte{1, 2, 3, 4})
	assert.Equal(t, int64(4), n)
	assert.Equal(t, int64(14), s.Offset())
	assert.Equal(t, []byte{1, 2, 3, 4}, d.data[10:14])

	n = write(t, d, s, []byte{5, 6, 7, 8})
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(16), s.Offset())
	assert.Equal(t, []byte{5, 6}, d.data[14:16])

	assert.Equal(t, make([]byte, 10), d.data[:10], "bytes before the write are untouched")
}

func TestWriteLeavesTailUntouched(t *testing.T) {
	for _, tc := range []struct {
		name   string
		offset int64
		length int
		want   int64
	}{
		{name: "empty", offset: 3, length: 0, want: 0},
		{name: "inside", offset: 3, length: 5, want: 5},
		{name: "to the end", offset: 8, length: 8, want: 8},
		{name: "past the end", offset: 12, length: 9, want: 4},
		{name: "at the end", offset: 16, length: 4, want: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := New(16)
			_, err := d.WriteAt(bytes.Repeat([]byte{0x11}, 16), 0)
			require.NoError(t, err)

			s := d.Open()
			_, err = d.Seek(s, tc.offset, FromStart)
			require.NoError(t, err)

			n := write(t, d, s, bytes.Repeat([]byte{0x22}, tc.length))
			assert.Equal(t, tc.want, n)
			assert.Equal(t, tc.offset+n, s.Offset())

			assert.Equal(t, bytes.Repeat([]byte{0x22}, int(n)), d.data[tc.offset:tc.offset+n])
			assert.Equal(t, bytes.Repeat([]byte{0x11}, int(16-tc.offset-n)), d.data[tc.offset+n:])
		})
	}
}

func TestReadAfterWriteAcrossSessions(t *testing.T) {
	d := New(DefaultCapacity)
	writer := d.Open()
	reader := d.Open()

	data := []byte("Hello, World!")

	_, err := d.Seek(writer, 100, FromStart)
	require.NoError(t, err)
	write(t, d, writer, data)

	_, err = d.Seek(reader, 100, FromStart)
	require.NoError(t, err)
	assert.Equal(t, data, read(t, d, reader, int64(len(data))))
	assert.Equal(t, int64(100+len(data)), reader.Offset())
	assert.Equal(t, int64(100+len(data)), writer.Offset())
}

func TestReadClampedAtEnd(t *testing.T) {
	d := New(16)
	s := d.Open()

	_, err := d.Seek(s, -4, FromEnd)
	require.NoError(t, err)

	assert.Len(t, read(t, d, s, 10), 4)
	assert.Equal(t, int64(16), s.Offset())
}

func TestTransferReportsCursor(t *testing.T) {
	d := New(16)
	s := d.Open()

	_, err := d.Seek(s, 10, FromStart)
	require.NoError(t, err)

	tr, err := d.TransferFrom(s, bytes.NewReader([]byte{5, 6, 7, 8}), 4)
	require.NoError(t, err)
	assert.Equal(t, Transfer{From: 10, Count: 4}, tr)
	assert.Equal(t, int64(14), tr.To())

	tr, err = d.TransferFrom(s, bytes.NewReader([]byte{1, 2, 3, 4}), 4)
	require.NoError(t, err)
	assert.Equal(t, Transfer{From: 14, Count: 2}, tr)
	assert.Equal(t, int64(16), tr.To())

	tr, err = d.TransferTo(s, &bytes.Buffer{}, 4)
	require.NoError(t, err)
	assert.Equal(t, Transfer{From: 16}, tr)

	tr, err = d.TransferTo(s, failingWriter{}, 4)
	require.NoError(t, err, "nothing is offered to the destination at the end of the device")
	assert.Equal(t, int64(16), tr.To())

	_, err = d.Seek(s, 12, FromStart)
	require.NoError(t, err)

	tr, err = d.TransferTo(s, failingWriter{}, 4)
	require.ErrorIs(t, err, ErrTransferFault)
	assert.Equal(t, Transfer{From: 12}, tr)
}

func TestReadTransferFault(t *testing.T) {
	d := New(16)
	s := d.Open()

	_, err := d.Seek(s, 4, FromStart)
	require.NoError(t, err)

	n, err := d.ReadTo(s, failingWriter{}, 8)
	require.ErrorIs(t, err, ErrTransferFault)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, int64(4), s.Offset(), "cursor must not move on a fault")

	_, err = d.ReadTo(s, shortWriter{}, 8)
	require.ErrorIs(t, err, ErrTransferFault)
	assert.Equal(t, int64(4), s.Offset())
}

func TestWriteTransferFault(t *testing.T) {
	d := New(16)
	s := d.Open()

	n, err := d.WriteFrom(s, io.MultiReader(bytes.NewReader([]byte{1, 2}), iotestErrReader{}), 8)
	require.ErrorIs(t, err, ErrTransferFault)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, int64(0), s.Offset())
	assert.True(t, d.IsZero(), "buffer must not change on a fault")

	_, err = d.WriteFrom(s, bytes.NewReader([]byte{1, 2}), 8)
	require.ErrorIs(t, err, ErrTransferFault, "a source shorter than its declared length is a fault")
	assert.True(t, d.IsZero())
	assert.Empty(t, d.DirtyBlocks())
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) {
	return 0, errors.New("bad address")
}

func TestSeek(t *testing.T) {
	const capacity = int64(4096)

	for _, tc := range []struct {
		name    string
		start   int64
		delta   int64
		whence  Whence
		want    int64
		invalid bool
	}{
		{name: "start zero", delta: 0, whence: FromStart, want: 0},
		{name: "start capacity", delta: capacity, whence: FromStart, want: capacity},
		{name: "start past capacity", delta: capacity + 1, whence: FromStart, invalid: true},
		{name: "start negative", delta: -1, whence: FromStart, invalid: true},
		{name: "current forward", start: 10, delta: 5, whence: FromCurrent, want: 15},
		{name: "current backward", start: 10, delta: -10, whence: FromCurrent, want: 0},
		{name: "current before start", start: 10, delta: -11, whence: FromCurrent, invalid: true},
		{name: "current to end", start: 10, delta: capacity - 10, whence: FromCurrent, want: capacity},
		{name: "current past end", start: 10, delta: capacity - 9, whence: FromCurrent, invalid: true},
		{name: "end back 10", delta: -10, whence: FromEnd, want: 4086},
		{name: "end exact", delta: 0, whence: FromEnd, want: capacity},
		{name: "end forward", delta: 1, whence: FromEnd, invalid: true},
		{name: "end to start", delta: -capacity, whence: FromEnd, want: 0},
		{name: "end before start", delta: -capacity - 1, whence: FromEnd, invalid: true},
		{name: "unknown whence", delta: 0, whence: Whence(7), invalid: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := New(capacity)
			s := d.Open()

			_, err := d.Seek(s, tc.start, FromStart)
			require.NoError(t, err)

			got, err := d.Seek(s, tc.delta, tc.whence)
			if tc.invalid {
				require.ErrorIs(t, err, ErrInvalidSeek)
				assert.Equal(t, tc.start, s.Offset(), "cursor must not move on an invalid seek")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want, s.Offset())
		})
	}
}

func TestSeekToEndThenRead(t *testing.T) {
	d := New(DefaultCapacity)
	s := d.Open()

	off, err := d.Seek(s, d.Capacity(), FromStart)
	require.NoError(t, err)
	assert.Equal(t, d.Capacity(), off)

	assert.Empty(t, read(t, d, s, 1))
	assert.Equal(t, int64(0), write(t, d, s, []byte{1}), "no space left at the end")
}

func TestClear(t *testing.T) {
	d := New(16)
	s := d.Open()

	write(t, d, s, []byte{1, 2, 3})
	assert.False(t, d.IsZero())

	d.Clear()
	assert.True(t, d.IsZero())
	assert.Equal(t, int64(3), s.Offset(), "clear does not move cursors")

	d.Clear()
	assert.True(t, d.IsZero())
	assert.Empty(t, d.DirtyBlocks())
}

func TestControl(t *testing.T) {
	d := New(16)
	_, err := d.WriteAt([]byte{9, 9}, 0)
	require.NoError(t, err)

	err = d.Control(ControlCode(0x02))
	require.ErrorIs(t, err, ErrUnsupportedOperation)
	assert.False(t, d.IsZero(), "unsupported requests do not change state")

	require.NoError(t, d.Control(ControlClear))
	assert.True(t, d.IsZero())
}

func TestDeviceUsableAfterErrors(t *testing.T) {
	d := New(16)
	s := d.Open()

	_, err := d.Seek(s, 17, FromStart)
	require.Error(t, err)
	require.Error(t, d.Control(ControlCode(42)))
	_, err = d.ReadTo(s, failingWriter{}, 4)
	require.Error(t, err)

	assert.Equal(t, int64(3), write(t, d, s, []byte{7, 8, 9}))
	_, err = d.Seek(s, 0, FromStart)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9}, read(t, d, s, 3))
}

func TestReadAtWriteAt(t *testing.T) {
	d := New(16)

	n, err := d.WriteAt([]byte("abcd"), 14)
	require.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 2, n)

	buf := make([]byte, 4)
	n, err = d.ReadAt(buf, 14)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("ab"), buf[:n])

	n, err = d.ReadAt(buf, 16)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, n)

	_, err = d.ReadAt(buf, -1)
	require.ErrorIs(t, err, ErrInvalidSeek)

	n, err = d.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestClosedSession(t *testing.T) {
	d := New(16)
	s := d.Open()
	require.NoError(t, s.Close())

	_, err := d.Seek(s, 1, FromStart)
	require.ErrorIs(t, err, ErrSessionClosed)

	_, err = d.WriteFrom(s, bytes.NewReader([]byte{1}), 1)
	require.ErrorIs(t, err, ErrSessionClosed)
	assert.True(t, d.IsZero(), "closing a session does not touch the device")
}

func TestConcurrentSessions(t *testing.T) {
	d := New(DefaultCapacity)

	const numGoroutines = 64
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()

			s := d.Open()
			defer s.Close()

			off := int64(i * 64)
			_, err := d.Seek(s, off, FromStart)
			assert.NoError(t, err)

			chunk := bytes.Repeat([]byte{byte(i)}, 64)
			n, err := d.WriteFrom(s, bytes.NewReader(chunk), 64)
			assert.NoError(t, err)
			assert.Equal(t, int64(64), n)
		}(i)
	}
	wg.Wait()

	for i := 0; i < numGoroutines; i++ {
		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, 64), d.data[i*64:(i+1)*64])
	}
}
