package slp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/voxelwatch/scanner/internal/apperr"
)

// LegacyReply is the parsed form of a 1.6-style server list ping kick
// packet. The coordinator copies its fields straight onto the stored
// snapshot; it does not go through status.Parse.
type LegacyReply struct {
	ProtocolVersion int // always -1, kept for symmetry with Reply
	VersionName     string
	MOTD            string
	OnlinePlayers   int
	MaxPlayers      int
	LatencyMS       int64
}

// ProbeLegacy issues the fixed 1.6 legacy ping: client sends
// 0xFE 0x01 0xFA "MC|PingHost" <payload>; server replies with a 0xFF kick
// packet whose UTF-16BE body is "§1\x00<protocol>\x00<version>\x00<motd>\x00<online>\x00<max>".
func ProbeLegacy(addr string, timeout time.Duration) (*LegacyReply, *ProbeError) {
	start := time.Now()
	deadline := start.Add(timeout)

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, &ProbeError{Kind: apperr.Net, Err: err}
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, &ProbeError{Kind: apperr.Net, Err: err}
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &ProbeError{Kind: apperr.Net, Err: err}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, &ProbeError{Kind: apperr.Net, Err: err}
	}

	if err := writeLegacyPing(conn, host, port); err != nil {
		return nil, netOrTimeoutError(err)
	}

	reply, err := readLegacyKick(conn)
	if err != nil {
		return nil, classifyReadError(err)
	}
	reply.LatencyMS = time.Since(start).Milliseconds()
	return reply, nil
}

func writeLegacyPing(w io.Writer, host string, port int) error {
	payload := encodeUTF16BE(host)

	var buf []byte
	buf = append(buf, 0xFE, 0x01, 0xFA)

	hostHeader := encodeUTF16BE("MC|PingHost")
	buf = append(buf, byte(len("MC|PingHost")>>8), byte(len("MC|PingHost")))
	buf = append(buf, hostHeader...)

	// remaining data length: 1 (protocol) + 2 (host string length) +
	// len(payload) + 4 (port)
	remaining := 1 + 2 + len(payload) + 4
	buf = append(buf, byte(remaining>>8), byte(remaining))

	buf = append(buf, 74) // client protocol version byte (74, the 1.6.2 protocol number)
	buf = append(buf, byte(len(host)>>8), byte(len(host)))
	buf = append(buf, payload...)

	portBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(portBytes, uint32(port))
	buf = append(buf, portBytes...)

	_, err := w.Write(buf)
	return err
}

func readLegacyKick(conn net.Conn) (*LegacyReply, error) {
	br := bufio.NewReader(conn)

	packetID, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	if packetID != 0xFF {
		return nil, apperr.NewProtocol(fmt.Sprintf("unexpected legacy packet id 0x%02x", packetID))
	}

	var lenBytes [2]byte
	if _, err := io.ReadFull(br, lenBytes[:]); err != nil {
		return nil, err
	}
	charLen := int(lenBytes[0])<<8 | int(lenBytes[1])
	if charLen <= 0 {
		return nil, apperr.NewProtocol("truncated")
	}

	utf16Bytes := make([]byte, charLen*2)
	if _, err := io.ReadFull(br, utf16Bytes); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, apperr.NewProtocol("truncated")
		}
		return nil, err
	}

	text := decodeUTF16BE(utf16Bytes)
	fields := strings.Split(text, "\x00")
	// Expect: §1, protocol, version name, motd, online, max
	if len(fields) < 6 {
		return nil, apperr.NewProtocol("malformed legacy kick body")
	}

	// fields[1] is the server's own legacy protocol number; not surfaced
	// separately since ProtocolVersion is fixed at -1 for legacy replies.
	online, _ := strconv.Atoi(fields[4])
	max, _ := strconv.Atoi(fields[5])

	return &LegacyReply{
		ProtocolVersion: -1,
		VersionName:     fields[2],
		MOTD:            fields[3],
		OnlinePlayers:   online,
		MaxPlayers:      max,
	}, nil
}

func encodeUTF16BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		out[i*2] = byte(u >> 8)
		out[i*2+1] = byte(u)
	}
	return out
}

func decodeUTF16BE(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[i*2])<<8 | uint16(b[i*2+1])
	}
	return string(utf16.Decode(units))
}
