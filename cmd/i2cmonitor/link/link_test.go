package link

import (
	"bytes"
	"testing"

	"github.com/amken3d/i2cmaster/protocol"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	body := NewBody()
	protocol.EncodeVLQUint(body, 0x50)
	protocol.EncodeVLQUint(body, 1)

	frame := EncodeFrame(OpTransfer, body.Result())
	if frame[len(frame)-1] != syncByte {
		t.Fatalf("frame does not end in sync byte: % x", frame)
	}

	op, rest, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if op != OpTransfer {
		t.Fatalf("op = %v, want OpTransfer", op)
	}

	addr, err := protocol.DecodeVLQUint(&rest)
	if err != nil || addr != 0x50 {
		t.Fatalf("addr = (%d, %v), want (0x50, nil)", addr, err)
	}
	flags, err := protocol.DecodeVLQUint(&rest)
	if err != nil || flags != 1 {
		t.Fatalf("flags = (%d, %v), want (1, nil)", flags, err)
	}
}

func TestDecodeFrameRejectsBadCRC(t *testing.T) {
	frame := EncodeFrame(OpReset, nil)
	frame[len(frame)-2] ^= 0xFF // corrupt the CRC's low byte

	if _, _, err := DecodeFrame(frame); err != ErrCRCMismatch {
		t.Fatalf("DecodeFrame() error = %v, want ErrCRCMismatch", err)
	}
}

func TestDecodeFrameRejectsMissingSync(t *testing.T) {
	frame := EncodeFrame(OpReset, nil)
	frame[len(frame)-1] = 0x00

	if _, _, err := DecodeFrame(frame); err != ErrNoSync {
		t.Fatalf("DecodeFrame() error = %v, want ErrNoSync", err)
	}
}

func TestFrameReaderSplitsConcatenatedFrames(t *testing.T) {
	a := EncodeFrame(OpDumpTrace, nil)
	b := EncodeFrame(OpReset, nil)

	r := NewFrameReader(bytes.NewReader(append(append([]byte{}, a...), b...)))

	got1, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() #1 error = %v", err)
	}
	op1, _, err := DecodeFrame(got1)
	if err != nil || op1 != OpDumpTrace {
		t.Fatalf("frame #1 = (%v, %v), want (OpDumpTrace, nil)", op1, err)
	}

	got2, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() #2 error = %v", err)
	}
	op2, _, err := DecodeFrame(got2)
	if err != nil || op2 != OpReset {
		t.Fatalf("frame #2 = (%v, %v), want (OpReset, nil)", op2, err)
	}
}
