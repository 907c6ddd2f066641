package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	values := []interface{}{
		map[string]interface{}{"a": 1, "b": "two", "c": []int{1, 2, 3}},
		Request{JSONRPC: "2.0", ID: "x1", Method: "definition"},
		[]string{},
		42,
		"plain string value",
	}

	for _, v := range values {
		payload, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}

		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round-trip mismatch: got %s want %s", got, payload)
		}
	}
}

func TestFrameRoundTripRandomSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		n := rng.Intn(4096) + 1
		payload := make([]byte, n)
		rng.Read(payload)
		// Not valid JSON, but the codec is content-agnostic; it only frames bytes.
		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("mismatch at size %d", n)
		}
	}
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge for empty payload, got %v", err)
	}
}

func TestWriteFrameRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxFrameBytes+1)
	if err := WriteFrame(&buf, oversized); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsDeclaredOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0, 0, 0, 0}
	// Declare a length larger than MaxFrameBytes without supplying the bytes
	// (simulating a malicious/corrupt 30 MiB frame header).
	big := uint32(MaxFrameBytes + (20 << 20))
	header[0] = byte(big)
	header[1] = byte(big >> 8)
	header[2] = byte(big >> 16)
	header[3] = byte(big >> 24)
	buf.Write(header)

	_, err := ReadFrame(&buf)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	_, err := ReadFrame(&buf)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge for zero length, got %v", err)
	}
}

func TestReadFrameEOFOnEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	_, err := ReadFrame(&buf)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
