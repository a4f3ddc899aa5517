package link

import (
	"bytes"
	"io"
)

// FrameReader accumulates bytes from a serial link and yields complete
// frames delimited by the trailing sync byte, simplified to one delimiter
// byte instead of a length-prefixed lookahead since i2cmonitor never has
// more than one request in flight.
type FrameReader struct {
	r   io.Reader
	buf bytes.Buffer
	tmp [256]byte
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame blocks until a full frame (including its trailing sync byte)
// has arrived, returning it without the sync byte itself stripped, the
// caller passes the returned slice straight to DecodeFrame.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		if idx := bytes.IndexByte(fr.buf.Bytes(), syncByte); idx >= 0 {
			frame := make([]byte, idx+1)
			copy(frame, fr.buf.Bytes()[:idx+1])
			fr.buf.Next(idx + 1)
			return frame, nil
		}

		n, err := fr.r.Read(fr.tmp[:])
		if n > 0 {
			fr.buf.Write(fr.tmp[:n])
		}
		if err != nil {
			return nil, err
		}
	}
}
