package memdev

import "fmt"

// ControlCode identifies an out-of-band request.
type ControlCode uint32

// ControlClear zeroes the device.
const ControlClear ControlCode = 0x01

func (c ControlCode) String() string {
	switch c {
	case ControlClear:
		return "CLEAR"
	default:
		return fmt.Sprintf("0x%02x", uint32(c))
	}
}
