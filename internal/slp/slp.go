// Package slp speaks the Minecraft Server List Ping protocol: one TCP
// connect, handshake, status request, and reply read per probe attempt,
// plus the legacy 1.6-style ping fallback. It is protocol-identical to
// the wire format in spec.md §4.1–§4.3 — packet framing, field order and
// byte widths are not negotiable here the way application-level
// semantics elsewhere in this module are.
package slp

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/varint"
)

// Config controls one probe attempt sequence.
type Config struct {
	Timeout time.Duration // deadline for one connect+handshake+read cycle
	Retries int           // additional attempts beyond the first
}

// Reply is a successful status exchange.
type Reply struct {
	JSON            []byte
	ProtocolVersion int32 // the version actually negotiated
	LatencyMS       int64
	Legacy          bool
}

// ProbeError carries enough detail for the coordinator to classify the
// outcome per spec.md §7 without re-deriving it from the underlying error.
type ProbeError struct {
	Kind apperr.Kind
	// NoResponse is true when the peer accepted the TCP connection but
	// never replied before the deadline — spec.md §4.2 requires this be
	// counted as a failure but NOT as an error in statistics.
	NoResponse bool
	Err        error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Probe performs one probe against addr at protocolVersion, retrying up
// to cfg.Retries additional times with a 100ms*attempt backoff between
// attempts, per spec.md §4.2. Only the final attempt's outcome is
// returned; intermediate attempts are not individually observable to the
// caller, matching "retries are serialized" in spec.md §5.
func Probe(addr string, protocolVersion int32, cfg Config) (*Reply, *ProbeError) {
	var lastErr *ProbeError
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		reply, probeErr := probeOnce(addr, protocolVersion, cfg.Timeout)
		if probeErr == nil {
			return reply, nil
		}
		lastErr = probeErr
		if probeErr.Kind == apperr.Protocol {
			// Retrying won't help against the same malformed response.
			return nil, probeErr
		}
	}
	return nil, lastErr
}

func probeOnce(addr string, protocolVersion int32, timeout time.Duration) (*Reply, *ProbeError) {
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
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, &ProbeError{Kind: apperr.Net, Err: err}
	}

	if err := sendHandshake(conn, protocolVersion, host, port); err != nil {
		return nil, netOrTimeoutError(err)
	}
	if err := sendStatusRequest(conn); err != nil {
		return nil, netOrTimeoutError(err)
	}

	reply, err := readStatusReply(conn)
	if err != nil {
		return nil, classifyReadError(err)
	}

	reply.LatencyMS = time.Since(start).Milliseconds()
	reply.ProtocolVersion = protocolVersion
	return reply, nil
}

func sendHandshake(w io.Writer, protocolVersion int32, host string, port uint16) error {
	var body bytes.Buffer
	body.Write(varint.Encode(protocolVersion))
	body.Write(varint.Encode(int32(len(host))))
	body.WriteString(host)
	if err := binary.Write(&body, binary.BigEndian, port); err != nil {
		return err
	}
	body.Write(varint.Encode(1)) // next state = status

	return writePacket(w, 0x00, body.Bytes())
}

func sendStatusRequest(w io.Writer) error {
	return writePacket(w, 0x00, nil)
}

func writePacket(w io.Writer, packetID int32, body []byte) error {
	var packet bytes.Buffer
	packet.Write(varint.Encode(packetID))
	packet.Write(body)

	var framed bytes.Buffer
	framed.Write(varint.Encode(int32(packet.Len())))
	framed.Write(packet.Bytes())

	_, err := w.Write(framed.Bytes())
	return err
}

// readStatusReply reads the length-prefixed response packet: VarInt
// length, VarInt packet id (expect 0x00), VarInt JSON length, JSON bytes.
// A response whose advertised length is zero is a protocol violation
// (boundary 9 in spec.md §8), and a read that returns fewer bytes than
// advertised is a truncated-packet protocol violation, never silently
// tolerated.
func readStatusReply(conn net.Conn) (*Reply, error) {
	br := bufio.NewReader(conn)

	packetLen, _, err := varint.DecodeBuffered(br)
	if err != nil {
		return nil, err
	}
	if packetLen <= 0 {
		return nil, apperr.NewProtocol("truncated")
	}

	limited := io.LimitReader(br, int64(packetLen))
	limitedBuf := bufio.NewReader(limited)

	packetID, idLen, err := varint.DecodeBuffered(limitedBuf)
	if err != nil {
		return nil, err
	}
	if packetID != 0x00 {
		return nil, apperr.NewProtocol(fmt.Sprintf("unexpected packet id %d", packetID))
	}

	jsonLen, jsonLenByteLen, err := varint.DecodeBuffered(limitedBuf)
	if err != nil {
		return nil, err
	}
	if jsonLen < 0 {
		return nil, apperr.NewProtocol("negative json length")
	}

	remaining := int(packetLen) - idLen - jsonLenByteLen
	if remaining < int(jsonLen) {
		return nil, apperr.NewProtocol("truncated")
	}

	jsonBytes := make([]byte, jsonLen)
	if _, err := io.ReadFull(limitedBuf, jsonBytes); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, apperr.NewProtocol("truncated")
		}
		return nil, err
	}

	return &Reply{JSON: jsonBytes}, nil
}

func netOrTimeoutError(err error) *ProbeError {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &ProbeError{Kind: apperr.Net, NoResponse: true, Err: err}
	}
	return &ProbeError{Kind: apperr.Net, Err: err}
}

// classifyReadError distinguishes a plain accept-but-silent timeout
// (NoResponse, not counted as an error) from a genuine protocol or
// transport failure.
func classifyReadError(err error) *ProbeError {
	if ae, ok := err.(*apperr.Error); ok {
		return &ProbeError{Kind: ae.Kind, Err: ae}
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &ProbeError{Kind: apperr.Net, NoResponse: true, Err: err}
	}
	if err == io.EOF {
		return &ProbeError{Kind: apperr.Net, NoResponse: true, Err: err}
	}
	return &ProbeError{Kind: apperr.Net, Err: err}
}
