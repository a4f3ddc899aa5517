// Package link is the diagnostic-UART wire protocol i2cmonitor speaks to a
// running Bus on the far end of the serial cable. It reuses package
// protocol's VLQ and CRC16 primitives with a frame layout of its own: a
// byte-count length, a VLQ opcode, VLQ-encoded arguments, a CRC16 trailer,
// and a sync byte, one size class simpler than a sequence/ACK framing
// since a diagnostic link only needs one outstanding request at a time.
package link

import (
	"errors"

	"github.com/amken3d/i2cmaster/protocol"
)

// Opcode identifies a request or response frame's payload shape.
type Opcode uint32

const (
	OpDumpTrace     Opcode = iota // request: none. response: VLQ count, then count trace lines.
	OpTransfer                    // request: addr, flags, byte count, [write bytes]. response: status, [read bytes].
	OpSetFrequency                // request: hz. response: clamped hz.
	OpReset                       // request: none. response: status (0 = ok).
	OpErrorResponse               // response only: VLQ error kind, VLQ raw status.
)

const syncByte = 0x7E

var (
	ErrFrameTooShort = errors.New("link: frame shorter than header+trailer")
	ErrCRCMismatch   = errors.New("link: CRC mismatch")
	ErrNoSync        = errors.New("link: missing trailing sync byte")
)

// EncodeFrame builds a length-prefixed, CRC-protected frame carrying op and
// the already-VLQ-encoded body args produced by the caller.
func EncodeFrame(op Opcode, body []byte) []byte {
	scratch := protocol.NewScratchOutput()
	scratch.Output([]byte{0}) // length placeholder
	protocol.EncodeVLQUint(scratch, uint32(op))
	scratch.Output(body)

	data := scratch.Result()
	frameLen := len(data) + 3 // + CRC16 + sync
	data[0] = byte(frameLen)

	crc := protocol.CRC16(data)
	out := make([]byte, 0, frameLen)
	out = append(out, data...)
	out = append(out, byte(crc>>8), byte(crc), syncByte)
	return out
}

// DecodeFrame validates and splits a complete frame (as delimited by the
// caller reading up to and including the sync byte) into its opcode and
// remaining VLQ-encoded body.
func DecodeFrame(frame []byte) (Opcode, []byte, error) {
	if len(frame) < 1+1+2+1 {
		return 0, nil, ErrFrameTooShort
	}
	if frame[len(frame)-1] != syncByte {
		return 0, nil, ErrNoSync
	}

	body := frame[:len(frame)-3]
	wantCRC := uint16(frame[len(frame)-3])<<8 | uint16(frame[len(frame)-2])
	if protocol.CRC16(body) != wantCRC {
		return 0, nil, ErrCRCMismatch
	}

	rest := body[1:] // drop length byte
	op, err := protocol.DecodeVLQUint(&rest)
	if err != nil {
		return 0, nil, err
	}
	return Opcode(op), rest, nil
}

// NewBody starts a fresh VLQ-argument scratch buffer for building a
// request or response.
func NewBody() *protocol.ScratchOutput { return protocol.NewScratchOutput() }
