package slp

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/varint"
)

// TestSilentPeerIsNoResponseNetError covers boundary 8 from spec.md §8:
// a peer that accepts TCP but never writes must cause exactly one
// terminal NET_ERROR, flagged NoResponse so the coordinator doesn't count
// it as an error statistic.
func TestSilentPeerIsNoResponseNetError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second) // outlive the probe's deadline
	}()

	start := time.Now()
	_, probeErr := Probe(ln.Addr().String(), 770, Config{Timeout: 200 * time.Millisecond, Retries: 0})
	elapsed := time.Since(start)

	if probeErr == nil {
		t.Fatal("expected a ProbeError, got nil")
	}
	if probeErr.Kind != apperr.Net {
		t.Errorf("Kind = %q, want NET_ERROR", probeErr.Kind)
	}
	if !probeErr.NoResponse {
		t.Error("NoResponse = false, want true for an accept-but-silent peer")
	}
	if elapsed < 200*time.Millisecond {
		t.Errorf("elapsed = %v, want >= timeout", elapsed)
	}
}

// TestZeroLengthReplyIsTruncated covers boundary 9 from spec.md §8: a
// VarInt length of 0 is PROTOCOL_ERROR(truncated).
func TestZeroLengthReplyIsTruncated(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Drain the handshake + status request, then reply with a
		// zero-length packet.
		buf := make([]byte, 256)
		_, _ = conn.Read(buf)
		_, _ = conn.Write(varint.Encode(0))
	}()

	_, probeErr := Probe(ln.Addr().String(), 770, Config{Timeout: time.Second, Retries: 0})
	if probeErr == nil {
		t.Fatal("expected a ProbeError, got nil")
	}
	if probeErr.Kind != apperr.Protocol {
		t.Errorf("Kind = %q, want PROTOCOL_ERROR", probeErr.Kind)
	}
}

// TestModernReplyParses exercises the full client round-trip against a
// minimal in-process SLP server.
func TestModernReplyParses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	payload := []byte(`{"version":{"name":"1.21","protocol":770}}`)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Read two framed packets (handshake, then status request); the
		// client's two writes may arrive in a single segment.
		for i := 0; i < 2; i++ {
			n, _, err := varint.Decode(conn)
			if err != nil {
				return
			}
			if _, err := io.ReadFull(conn, make([]byte, n)); err != nil {
				return
			}
		}

		var packet bytes.Buffer
		packet.Write(varint.Encode(0x00))
		packet.Write(varint.Encode(int32(len(payload))))
		packet.Write(payload)

		var framed bytes.Buffer
		framed.Write(varint.Encode(int32(packet.Len())))
		framed.Write(packet.Bytes())
		_, _ = conn.Write(framed.Bytes())
	}()

	reply, probeErr := Probe(ln.Addr().String(), 770, Config{Timeout: time.Second, Retries: 0})
	if probeErr != nil {
		t.Fatalf("Probe returned error: %v", probeErr)
	}
	if !bytes.Equal(reply.JSON, payload) {
		t.Errorf("JSON = %q, want %q", reply.JSON, payload)
	}
}

// TestLegacyPing covers scenario S4 from spec.md.
func TestLegacyPing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 512)
		_, _ = conn.Read(buf) // legacy ping request

		body := "§1\x00127\x001.5.2\x00A legacy MOTD\x003\x0020"
		encoded := encodeUTF16BE(body)

		var out []byte
		out = append(out, 0xFF)
		lenBytes := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBytes, uint16(len([]rune(body))))
		out = append(out, lenBytes...)
		out = append(out, encoded...)
		_, _ = conn.Write(out)
	}()

	reply, probeErr := ProbeLegacy(ln.Addr().String(), time.Second)
	if probeErr != nil {
		t.Fatalf("ProbeLegacy returned error: %v", probeErr)
	}
	if reply.ProtocolVersion != -1 {
		t.Errorf("ProtocolVersion = %d, want -1", reply.ProtocolVersion)
	}
	if reply.VersionName != "1.5.2" {
		t.Errorf("VersionName = %q, want 1.5.2", reply.VersionName)
	}
	if reply.MOTD != "A legacy MOTD" {
		t.Errorf("MOTD = %q, want %q", reply.MOTD, "A legacy MOTD")
	}
	if reply.OnlinePlayers != 3 || reply.MaxPlayers != 20 {
		t.Errorf("players = %d/%d, want 3/20", reply.OnlinePlayers, reply.MaxPlayers)
	}
}
