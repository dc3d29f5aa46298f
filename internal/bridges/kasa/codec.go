package kasa

import (
	"encoding/binary"
	"fmt"
)

// Protocol constants.
const (
	// InitialKey seeds the autokey XOR chain.
	InitialKey byte = 0xAB

	// DefaultPort is the relay control port.
	DefaultPort = 9999

	// headerSize is the length prefix size in bytes.
	headerSize = 4

	// maxFrameSize bounds the payload length accepted from a relay.
	// A sysinfo response for a six-outlet strip is well under 4 KiB.
	maxFrameSize = 64 << 10
)

// Encrypt whitens plaintext and prepends the 4-byte big-endian length.
// The returned slice is ready to write to the socket.
func Encrypt(plaintext []byte) []byte {
	frame := make([]byte, headerSize+len(plaintext))
	binary.BigEndian.PutUint32(frame[:headerSize], uint32(len(plaintext))) //nolint:gosec // bounded by request builders
	key := InitialKey
	for i, b := range plaintext {
		key ^= b
		frame[headerSize+i] = key
	}
	return frame
}

// Decrypt reverses the whitening of a ciphertext body (without the length prefix).
func Decrypt(ciphertext []byte) []byte {
	plaintext := make([]byte, len(ciphertext))
	key := InitialKey
	for i, b := range ciphertext {
		plaintext[i] = key ^ b
		key = b
	}
	return plaintext
}

// ParseHeader validates a length prefix and returns the body length it announces.
func ParseHeader(header []byte) (int, error) {
	if len(header) != headerSize {
		return 0, fmt.Errorf("%w: header is %d bytes, want %d", ErrMalformed, len(header), headerSize)
	}
	n := binary.BigEndian.Uint32(header)
	if n > maxFrameSize {
		return 0, fmt.Errorf("%w: frame length %d exceeds %d", ErrMalformed, n, maxFrameSize)
	}
	return int(n), nil
}

// DecodeFrame decrypts a complete frame (prefix plus body) held in memory.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrMalformed, len(frame))
	}
	n, err := ParseHeader(frame[:headerSize])
	if err != nil {
		return nil, err
	}
	body := frame[headerSize:]
	if len(body) != n {
		return nil, fmt.Errorf("%w: length mismatch (declared %d, got %d)", ErrMalformed, n, len(body))
	}
	return Decrypt(body), nil
}
