package base

import (
	"bytes"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payloads := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte("x"), 4096),
	}

	go func() {
		for i, p := range payloads {
			if err := writeFrame(client, uint64(i+1), p); err != nil {
				t.Errorf("writeFrame failed: %v", err)
				return
			}
		}
	}()

	// a small buffer forces the allocation path for the large payload
	buf := make([]byte, 64)
	for i, want := range payloads {
		id, data, err := readFrame(server, buf)
		if err != nil {
			t.Fatalf("readFrame failed: %v", err)
		}
		if id != uint64(i+1) {
			t.Errorf("Expected request id %d, got %d", i+1, id)
		}
		if !bytes.Equal(data, want) {
			t.Errorf("Payload %d mismatch: got %d bytes, want %d", i, len(data), len(want))
		}
	}
}

func TestReadFrameTruncated(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		// header announces 10 bytes, only 2 follow
		_, _ = client.Write([]byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 10, 'a', 'b'})
		_ = client.Close()
	}()

	if _, _, err := readFrame(server, nil); err == nil {
		t.Errorf("Expected an error for a truncated frame")
	}
}
