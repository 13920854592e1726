package memdev

import (
	"fmt"
	"io"
)

// Whence is the reference point of a seek.
type Whence int

const (
	FromStart Whence = iota
	FromCurrent
	FromEnd
)

func (w Whence) String() string {
	switch w {
	case FromStart:
		return "start"
	case FromCurrent:
		return "current"
	case FromEnd:
		return "end"
	default:
		return fmt.Sprintf("whence(%d)", int(w))
	}
}

// ParseWhence accepts the names returned by Whence.String.
func ParseWhence(s string) (Whence, error) {
	switch s {
	case "start":
		return FromStart, nil
	case "current":
		return FromCurrent, nil
	case "end":
		return FromEnd, nil
	default:
		return 0, fmt.Errorf("%w: unknown whence %q", ErrInvalidSeek, s)
	}
}

// WhenceFromIO maps io.SeekStart, io.SeekCurrent and io.SeekEnd.
func WhenceFromIO(whence int) (Whence, error) {
	switch whence {
	case io.SeekStart:
		return FromStart, nil
	case io.SeekCurrent:
		return FromCurrent, nil
	case io.SeekEnd:
		return FromEnd, nil
	default:
		return 0, fmt.Errorf("%w: unknown whence %d", ErrInvalidSeek, whence)
	}
}

// resolve computes the cursor a seek lands on. Seeking from the end only moves backwards,
// the device never grows.
func (w Whence) resolve(current, delta, capacity int64) (int64, error) {
	var target int64

	switch w {
	case FromStart:
		target = delta
	case FromCurrent:
		target = current + delta
	case FromEnd:
		if delta > 0 {
			return 0, fmt.Errorf("%w: %d past the end", ErrInvalidSeek, delta)
		}

		target = capacity + delta
	default:
		return 0, fmt.Errorf("%w: unknown %s", ErrInvalidSeek, w)
	}

	if target < 0 || target > capacity {
		return 0, fmt.Errorf("%w: offset %d outside [0, %d] (%s %+d)", ErrInvalidSeek, target, capacity, w, delta)
	}

	return target, nil
}
