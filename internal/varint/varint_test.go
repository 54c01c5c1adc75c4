package varint

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []int32{0, 1, 2, 127, 128, 255, 2097151, 2147483647, -1, -2147483648}
	for _, n := range cases {
		encoded := Encode(n)
		if len(encoded) > MaxBytes {
			t.Fatalf("Encode(%d) produced %d bytes, want <= %d", n, len(encoded), MaxBytes)
		}
		decoded, consumed, err := Decode(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("Decode(Encode(%d)) returned error: %v", n, err)
		}
		if decoded != n {
			t.Errorf("Decode(Encode(%d)) = %d, want %d", n, decoded, n)
		}
		if consumed != len(encoded) {
			t.Errorf("Decode consumed %d bytes, want %d", consumed, len(encoded))
		}
	}
}

func TestDecodeOverflow(t *testing.T) {
	// Every byte has the continuation bit set: the fifth byte still does,
	// so no terminator arrives within the 32-bit budget.
	overflow := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	_, _, err := Decode(bytes.NewReader(overflow))
	if err == nil {
		t.Fatal("expected varint_overflow error, got nil")
	}
}

func TestEncodeKnownValues(t *testing.T) {
	cases := []struct {
		n    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{2097151, []byte{0xff, 0xff, 0x7f}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, c := range cases {
		got := Encode(c.n)
		if !bytes.Equal(got, c.want) {
			t.Errorf("Encode(%d) = % x, want % x", c.n, got, c.want)
		}
	}
}
