// Package classify maps a verification outcome and the configured handling
// mode onto a destination bucket. Pure decision logic; moving files is the
// mover's job.
package classify

import "fmt"

// Mode selects what happens to files after verification.
type Mode string

// Handling modes accepted by the configuration surface.
const (
	ScanOnly         Mode = "scan-only"
	MoveAll          Mode = "move-all"
	CopyAll          Mode = "copy-all"
	MoveScannable    Mode = "move-scannable-only"
	MoveNonScannable Mode = "move-non-scannable-only"
)

// ParseMode validates a mode label.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ScanOnly, MoveAll, CopyAll, MoveScannable, MoveNonScannable:
		return Mode(s), nil
	}
	return "", fmt.Errorf("classify: unknown mode %q", s)
}

// Copies reports whether the mode duplicates files instead of moving them.
func (m Mode) Copies() bool {
	return m == CopyAll
}

// Destination is where a classified file belongs.
type Destination int

const (
	LeaveInPlace Destination = iota
	ValidBucket
	InvalidBucket
)

// String renders the destination for logs and the summary.
func (d Destination) String() string {
	switch d {
	case ValidBucket:
		return "valid"
	case InvalidBucket:
		return "invalid"
	default:
		return "in place"
	}
}

// Classification is the terminal state of one file. Files whose source
// could not be read are never classified.
type Classification struct {
	Path        string
	Destination Destination
	Text        string
}

// Decide picks the destination bucket for one verdict under the given mode.
func Decide(decoded bool, mode Mode) Destination {
	switch mode {
	case MoveAll, CopyAll:
		if decoded {
			return ValidBucket
		}
		return InvalidBucket
	case MoveScannable:
		if decoded {
			return ValidBucket
		}
		return LeaveInPlace
	case MoveNonScannable:
		if !decoded {
			return InvalidBucket
		}
		return LeaveInPlace
	default:
		return LeaveInPlace
	}
}
