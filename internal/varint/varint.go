// Package varint implements the length-prefixed variable-length integer
// encoding used by every packet in the Minecraft Server List Ping protocol:
// seven data bits per byte, little-endian, continuation bit (MSB) set
// while more bytes follow.
package varint

import (
	"bufio"
	"io"

	"github.com/voxelwatch/scanner/internal/apperr"
)

// MaxBytes is the maximum number of bytes a 32-bit VarInt can occupy.
const MaxBytes = 5

const (
	segmentBits = 0x7F
	continueBit = 0x80
)

// Encode returns the VarInt encoding of n. The result is always between
// 1 and MaxBytes bytes.
func Encode(n int32) []byte {
	u := uint32(n)
	buf := make([]byte, 0, MaxBytes)
	for {
		if u&^segmentBits == 0 {
			buf = append(buf, byte(u))
			return buf
		}
		buf = append(buf, byte(u&segmentBits)|continueBit)
		u >>= 7
	}
}

// Write encodes n and writes it to w.
func Write(w io.Writer, n int32) error {
	_, err := w.Write(Encode(n))
	return err
}

// Decode reads a VarInt one byte at a time from r. It returns the decoded
// value and the number of bytes consumed. Reading more than MaxBytes
// bytes without finding a terminator is a protocol violation, not a
// transport error: the peer sent something that isn't a valid VarInt.
func Decode(r io.Reader) (int32, int, error) {
	var result uint32
	var position uint
	var n int

	var single [1]byte
	for {
		if _, err := io.ReadFull(r, single[:]); err != nil {
			return 0, n, err
		}
		n++
		b := single[0]

		result |= uint32(b&segmentBits) << position
		if b&continueBit == 0 {
			return int32(result), n, nil
		}

		position += 7
		if position >= 32 {
			return 0, n, apperr.NewProtocol("varint_overflow")
		}
	}
}

// DecodeBuffered is equivalent to Decode but accepts a *bufio.Reader so
// callers that already hold one (the common case when reading a framed
// SLP reply) avoid an extra allocation per byte read.
func DecodeBuffered(r *bufio.Reader) (int32, int, error) {
	var result uint32
	var position uint
	var n int

	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++

		result |= uint32(b&segmentBits) << position
		if b&continueBit == 0 {
			return int32(result), n, nil
		}

		position += 7
		if position >= 32 {
			return 0, n, apperr.NewProtocol("varint_overflow")
		}
	}
}
