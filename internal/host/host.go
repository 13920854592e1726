package host

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/memdev/internal/logger"
	"github.com/e2b-dev/infra/packages/memdev/internal/smap"
	"github.com/e2b-dev/infra/packages/memdev/pkg/memdev"
)

var ErrSessionNotFound = errors.New("session not found")

// Host routes caller requests to a single device. Sessions are addressed by id so that
// transports without a persistent handle can keep a cursor between calls.
type Host struct {
	device   *memdev.Device
	sessions *smap.Map[*memdev.Session]
	logger   *zap.Logger
}

type Info struct {
	Capacity    int64  `json:"capacity"`
	BlockSize   int64  `json:"blockSize"`
	Sessions    int    `json:"sessions"`
	DirtyBlocks []uint `json:"dirtyBlocks"`
}

func New(device *memdev.Device, logger *zap.Logger) *Host {
	return &Host{
		device:   device,
		sessions: smap.New[*memdev.Session](),
		logger:   logger,
	}
}

func (h *Host) Device() *memdev.Device {
	return h.device
}

// Open registers a new session with its cursor at 0.
func (h *Host) Open() (string, int64) {
	session := h.device.Open()

	for {
		id := uuid.NewString()
		if h.sessions.InsertIfAbsent(id, session) {
			h.logger.Debug("session opened", logger.WithSessionID(id))

			return id, session.Offset()
		}
	}
}

func (h *Host) Close(id string) error {
	session, ok := h.sessions.Pop(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	h.logger.Debug("session closed", logger.WithSessionID(id), logger.WithOffset(session.Offset()))

	return session.Close()
}

// CloseAll closes every open session.
func (h *Host) CloseAll() error {
	var errs []error

	for id := range h.sessions.Items() {
		err := h.Close(id)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (h *Host) Offset(id string) (int64, error) {
	session, err := h.session(id)
	if err != nil {
		return 0, err
	}

	return session.Offset(), nil
}

// Read streams up to length bytes from the session cursor into w.
func (h *Host) Read(id string, w io.Writer, length int64) (memdev.Transfer, error) {
	session, err := h.session(id)
	if err != nil {
		return memdev.Transfer{}, err
	}

	t, err := h.device.TransferTo(session, w, length)
	if err != nil {
		h.logger.Warn("read failed", logger.WithSessionID(id), logger.WithOffset(t.From), zap.Error(err))

		return t, err
	}

	h.logger.Debug(fmt.Sprintf("read %d byte(s) from %d", t.Count, t.From), logger.WithSessionID(id), logger.WithOffset(t.From), logger.WithCount(t.Count))

	return t, nil
}

// Write stores up to length bytes of r at the session cursor.
func (h *Host) Write(id string, r io.Reader, length int64) (memdev.Transfer, error) {
	session, err := h.session(id)
	if err != nil {
		return memdev.Transfer{}, err
	}

	t, err := h.device.TransferFrom(session, r, length)
	if err != nil {
		h.logger.Warn("write failed", logger.WithSessionID(id), logger.WithOffset(t.From), zap.Error(err))

		return t, err
	}

	h.logger.Debug(fmt.Sprintf("written %d byte(s) from %d", t.Count, t.From), logger.WithSessionID(id), logger.WithOffset(t.From), logger.WithCount(t.Count))

	return t, nil
}

func (h *Host) Seek(id string, delta int64, whence memdev.Whence) (int64, error) {
	session, err := h.session(id)
	if err != nil {
		return 0, err
	}

	return h.device.Seek(session, delta, whence)
}

func (h *Host) Control(code memdev.ControlCode) error {
	err := h.device.Control(code)
	if err != nil {
		return err
	}

	if code == memdev.ControlClear {
		h.logger.Info("device is set to zero")
	}

	return nil
}

func (h *Host) Info() Info {
	return Info{
		Capacity:    h.device.Capacity(),
		BlockSize:   h.device.BlockSize(),
		Sessions:    h.sessions.Count(),
		DirtyBlocks: h.device.DirtyBlocks(),
	}
}

func (h *Host) session(id string) (*memdev.Session, error) {
	session, ok := h.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return session, nil
}
