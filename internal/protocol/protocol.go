// Package protocol drives one probe against a target: modern
// handshake/status exchange, legacy fallback on a bare 0xFF lead
// byte, latency measurement, and the retry/multi-protocol budget.
package protocol

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/dialer"
	"github.com/LK-Customs/Pingcrafty/internal/document"
	"github.com/LK-Customs/Pingcrafty/internal/wire"
	perrors "github.com/LK-Customs/Pingcrafty/pkg/errors"
)

// Options configures one or more probe attempts against a target.
type Options struct {
	Timeout         time.Duration
	Retries         int
	ProtocolIDs     []int32 // tried in order; first Success wins
	LegacySupport   bool
	Hostname        string // advertised in the handshake; defaults to the dialed host
	RetainFavicon   bool
	ReadBufferBytes int
	WriteBufferBytes int
}

func (o Options) readBuf() int {
	if o.ReadBufferBytes > 0 {
		return o.ReadBufferBytes
	}
	return 4096
}

func (o Options) writeBuf() int {
	if o.WriteBufferBytes > 0 {
		return o.WriteBufferBytes
	}
	return 512
}

// Budget returns the worst-case wall-clock time a Probe call may take:
// timeout × (retries+1) × number of protocol IDs tried.
func (o Options) Budget() time.Duration {
	ids := len(o.ProtocolIDs)
	if ids == 0 {
		ids = 1
	}
	return o.Timeout * time.Duration(o.Retries+1) * time.Duration(ids)
}

// Outcome is the terminal result of Probe.
type Outcome struct {
	Document       *document.ServerDocument
	Latency        time.Duration
	LegacyDetected bool
	ProtocolIDUsed int32
	Attempts       int
}

// Probe dials target over d, drives the status exchange, and returns
// a normalized Outcome or a *errors.ProbeError tagged with its
// taxonomy Kind. When opts.ProtocolIDs has more than one entry, each
// is tried in order (sharing the retry/timeout budget) until one
// succeeds; a non-retryable failure ends the probe without trying the
// remaining IDs.
func Probe(ctx context.Context, d *dialer.Dialer, host string, port uint16, opts Options) (*Outcome, error) {
	protocolIDs := opts.ProtocolIDs
	if len(protocolIDs) == 0 {
		protocolIDs = []int32{-1}
	}

	attempts := 0
	var lastErr error

	for _, pid := range protocolIDs {
		for try := 0; try <= opts.Retries; try++ {
			attempts++
			outcome, err := attemptOnce(ctx, d, host, port, pid, opts)
			if err == nil {
				outcome.Attempts = attempts
				return outcome, nil
			}
			lastErr = err

			pe, ok := err.(*perrors.ProbeError)
			if !ok || !pe.Kind.Retryable() {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

// tlsHandshakeRecordType is the TLS record content-type byte (0x16,
// "handshake") a misconfigured HTTPS/TLS endpoint greets with instead
// of a Minecraft frame — rare, but observed scanning large ranges.
const tlsHandshakeRecordType byte = 0x16

func attemptOnce(ctx context.Context, d *dialer.Dialer, host string, port uint16, protocolID int32, opts Options) (*Outcome, error) {
	deadline := time.Now().Add(opts.Timeout)
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	hostname := opts.Hostname
	if hostname == "" {
		hostname = host
	}

	br := bufio.NewReaderSize(conn, opts.readBuf())
	bw := bufio.NewWriterSize(conn, opts.writeBuf())

	if err := writeHandshakeAndRequest(bw, protocolID, hostname, port); err != nil {
		return nil, perrors.NewProbeError(perrors.KindUnreachable, "writing handshake", err)
	}

	sentAt := time.Now()
	lead, err := br.Peek(1)
	if err != nil {
		return nil, classifyReadError(err)
	}
	latency := time.Since(sentAt)

	if lead[0] == tlsHandshakeRecordType {
		return nil, perrors.NewProbeError(perrors.KindTlsUnexpected, "peer greeted with a TLS handshake", nil)
	}

	if lead[0] == wire.LegacyResponseByte {
		if !opts.LegacySupport {
			return nil, perrors.NewProbeError(perrors.KindLegacyUnsupported, "legacy response received but legacy_support disabled", nil)
		}
		doc, err := readLegacyResponse(br)
		if err != nil {
			return nil, err
		}
		return &Outcome{Document: doc, Latency: latency, LegacyDetected: true, ProtocolIDUsed: protocolID}, nil
	}

	doc, err := readModernResponse(br, opts)
	if err != nil {
		return nil, err
	}
	return &Outcome{Document: doc, Latency: latency, ProtocolIDUsed: protocolID}, nil
}

func writeHandshakeAndRequest(bw *bufio.Writer, protocolID int32, hostname string, port uint16) error {
	handshake := wire.PutVarInt(nil, 0x00)
	handshake = wire.PutVarInt(handshake, protocolID)
	handshake = wire.PutVarString(handshake, hostname)
	handshake = wire.PutUnsignedShort(handshake, port)
	handshake = wire.PutVarInt(handshake, 1) // next state: status

	if _, err := bw.Write(wire.EncodePacket(handshake)); err != nil {
		return err
	}

	statusRequest := wire.PutVarInt(nil, 0x00)
	if _, err := bw.Write(wire.EncodePacket(statusRequest)); err != nil {
		return err
	}

	return bw.Flush()
}

func readModernResponse(br *bufio.Reader, opts Options) (*document.ServerDocument, error) {
	length, err := readPacketBytes(br)
	if err != nil {
		return nil, err
	}

	cursor := 0
	packetID, err := wire.ReadVarInt(length, &cursor)
	if err != nil {
		return nil, perrors.NewProbeError(perrors.KindBadFrame, "reading packet id", err)
	}
	if packetID != 0x00 {
		return nil, perrors.NewProbeError(perrors.KindUnexpectedPacketID, "unexpected status response packet id", nil)
	}

	jsonStr, err := wire.ReadVarString(length, &cursor)
	if err != nil {
		return nil, wireErrToProbeErr(err)
	}

	doc, err := document.Parse([]byte(jsonStr), document.Options{RetainFavicon: opts.RetainFavicon})
	if err != nil {
		return nil, perrors.NewProbeError(perrors.KindBadJson, "parsing status document", err)
	}
	return doc, nil
}

// readPacketBytes reads one length-prefixed frame's payload.
func readPacketBytes(br *bufio.Reader) ([]byte, error) {
	lengthBuf := make([]byte, 0, wire.MaxVarIntBytes)
	for i := 0; i < wire.MaxVarIntBytes; i++ {
		b, err := br.ReadByte()
		if err != nil {
			return nil, classifyReadError(err)
		}
		lengthBuf = append(lengthBuf, b)
		if b&0x80 == 0 {
			break
		}
	}

	cursor := 0
	n, err := wire.DecodePacketLength(lengthBuf, &cursor)
	if err != nil {
		return nil, wireErrToProbeErr(err)
	}

	payload := make([]byte, n)
	if _, err := readFull(br, payload); err != nil {
		return nil, classifyReadError(err)
	}
	return payload, nil
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := br.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

func wireErrToProbeErr(err error) error {
	we, ok := err.(*wire.Error)
	if !ok {
		return perrors.NewProbeError(perrors.KindBadFrame, "decoding frame", err)
	}
	switch we.Kind {
	case wire.KindOverflow:
		return perrors.NewProbeError(perrors.KindOverflow, we.Msg, we)
	case wire.KindStringTooLong:
		return perrors.NewProbeError(perrors.KindStringTooLong, we.Msg, we)
	default:
		return perrors.NewProbeError(perrors.KindTruncated, we.Msg, we)
	}
}
