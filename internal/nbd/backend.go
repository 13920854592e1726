package nbd

import (
	"github.com/pojntfx/go-nbd/pkg/backend"

	"github.com/e2b-dev/infra/packages/memdev/pkg/memdev"
)

// Backend exposes the device to NBD clients through absolute offsets; no session cursor is involved.
type Backend struct {
	*memdev.Device
}

var _ backend.Backend = (*Backend)(nil)

func NewBackend(device *memdev.Device) *Backend {
	return &Backend{Device: device}
}

func (b *Backend) Size() (int64, error) {
	return b.Capacity(), nil
}

// Sync is a no-op, the device is memory resident.
func (b *Backend) Sync() error {
	return nil
}
