package wire

import "fmt"

// MaxFrameBytes caps a single length-prefixed packet's declared
// length. 2 MiB is generous for a status response (favicon included)
// while still rejecting a hostile or corrupt length prefix before any
// payload read.
const MaxFrameBytes = 2 * 1024 * 1024

// EncodePacket prefixes payload with its VarInt length.
func EncodePacket(payload []byte) []byte {
	buf := PutVarInt(make([]byte, 0, VarIntLen(int32(len(payload)))+len(payload)), int32(len(payload)))
	return append(buf, payload...)
}

// DecodePacketLength reads a VarInt length prefix and validates it
// against MaxFrameBytes before the caller reads any payload bytes.
func DecodePacketLength(buf []byte, cursor *int) (int, error) {
	n, err := ReadVarInt(buf, cursor)
	if err != nil {
		return 0, err
	}
	if n < 0 || int(n) > MaxFrameBytes {
		return 0, &Error{Kind: KindStringTooLong, Msg: fmt.Sprintf("declared frame length %d exceeds cap %d", n, MaxFrameBytes)}
	}
	return int(n), nil
}

// LegacyPingByte is the lead byte (0xFE) the pre-1.4 legacy ping uses,
// and 0xFF is the server-to-client kick/response frame shared by both
// legacy sub-variants.
const (
	LegacyPingByte     byte = 0xFE
	LegacyResponseByte byte = 0xFF
)

// DecodeUCS2BE decodes a big-endian UCS-2 byte slice (as used by the
// legacy 0xFF response frame) into a Go string. Each code unit is
// treated as one UTF-16 code point; surrogate pairs are not expected
// on the wire for this protocol and are passed through as-is.
func DecodeUCS2BE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	runes := make([]rune, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		runes = append(runes, rune(uint16(b[i])<<8|uint16(b[i+1])))
	}
	return string(runes)
}

// EncodeUCS2BE encodes a Go string into big-endian UCS-2, one code
// unit per rune (non-BMP runes are not produced by this protocol).
func EncodeUCS2BE(s string) []byte {
	runes := []rune(s)
	out := make([]byte, 0, len(runes)*2)
	for _, r := range runes {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}
