// Package i2cerr defines the error kinds a transfer can fail with
// (spec.md 7) and the status-carrying error type the dispatcher wraps them
// in. It uses package-level sentinel errors for errors.Is matching rather
// than a generic error-code enum.
package i2cerr

import (
	"errors"

	"github.com/amken3d/i2cmaster/regs"
)

// Sentinel errors, one per spec.md 7 error kind. Compare against these with
// errors.Is; *TransferError below carries the status snapshot that produced
// one of them.
var (
	ErrTimedOut        = errors.New("i2c: transfer timed out")
	ErrBusError        = errors.New("i2c: bus error (misplaced start/stop)")
	ErrArbitrationLost = errors.New("i2c: arbitration lost")
	ErrNACK            = errors.New("i2c: address or data not acknowledged")
	ErrOverrun         = errors.New("i2c: overrun/underrun")
	ErrProtocol        = errors.New("i2c: protocol error (PEC mismatch)")
	ErrBusTimeout      = errors.New("i2c: SCL held low past the hardware timeout")
	ErrBusy            = errors.New("i2c: bus still busy after the transfer window")
	ErrInterrupted     = errors.New("i2c: wait interrupted")
)

// TransferError wraps a sentinel error with the SR1/SR2 snapshot captured
// when the dispatcher classified the failure, so callers that want the raw
// bits (for their own logging) can get them without a second round trip
// through the registers.
type TransferError struct {
	Kind   error
	Status regs.Status
}

func (e *TransferError) Error() string {
	return e.Kind.Error()
}

func (e *TransferError) Unwrap() error { return e.Kind }

// Classify maps a final combined status to one spec.md 7 error kind, in the
// priority order the dispatcher checks them (spec.md 4.6 step 9). It
// returns nil if status carries no recognized error bit.
func Classify(status regs.Status) error {
	sr1 := status.SR1()
	switch {
	case sr1&regs.SR1_BERR != 0:
		return &TransferError{Kind: ErrBusError, Status: status}
	case sr1&regs.SR1_ARLO != 0:
		return &TransferError{Kind: ErrArbitrationLost, Status: status}
	case sr1&regs.SR1_AF != 0:
		return &TransferError{Kind: ErrNACK, Status: status}
	case sr1&regs.SR1_OVR != 0:
		return &TransferError{Kind: ErrOverrun, Status: status}
	case sr1&regs.SR1_PECERR != 0:
		return &TransferError{Kind: ErrProtocol, Status: status}
	case sr1&regs.SR1_TIMEOUT != 0:
		return &TransferError{Kind: ErrBusTimeout, Status: status}
	default:
		return nil
	}
}
