// Package wire implements the length-prefixed JSON-RPC framing used on the
// daemon's local socket: a 4-byte little-endian length followed by that many
// bytes of UTF-8 JSON. The length prefix gives a byte-accurate message
// boundary without a streaming JSON parser, so one connection can carry many
// request/response pairs back to back.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxFrameBytes is the largest frame the codec will accept. A receiver
// closes the connection on any frame whose declared length is 0 or exceeds
// this bound.
const MaxFrameBytes = 10 << 20 // 10 MiB

// ErrFrameTooLarge is returned by ReadFrame when a frame's declared length
// is outside (0, MaxFrameBytes].
var ErrFrameTooLarge = errors.New("wire: frame length out of bounds")

// WriteFrame writes a length-prefixed frame containing payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 || len(payload) > MaxFrameBytes {
		return ErrFrameTooLarge
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame from r. It returns io.EOF if the
// stream ends before a complete frame was read (whether cleanly between
// frames or partway through a header or payload), and
// ErrFrameTooLarge if the declared length is out of bounds (the caller
// should close the connection in that case; no further frames can be
// trusted).
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(header[:])
	if n == 0 || n > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return buf, nil
}
