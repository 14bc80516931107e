package wire

import (
	"errors"
	"testing"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, 127, 128, 255, 16384, 2097151, 1<<31 - 1}
	for _, v := range values {
		buf := PutVarInt(nil, v)
		cursor := 0
		got, err := ReadVarInt(buf, &cursor)
		if err != nil {
			t.Fatalf("ReadVarInt(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip mismatch: put %d, got %d", v, got)
		}
		if cursor != len(buf) {
			t.Errorf("cursor %d != buf len %d", cursor, len(buf))
		}
	}
}

func TestVarIntOverflow(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	cursor := 0
	_, err := ReadVarInt(buf, &cursor)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	var wireErr *Error
	if !errors.As(err, &wireErr) || wireErr.Kind != KindOverflow {
		t.Errorf("expected KindOverflow, got %v", err)
	}
}

func TestVarIntTruncated(t *testing.T) {
	buf := []byte{0x80, 0x80}
	cursor := 0
	_, err := ReadVarInt(buf, &cursor)
	if err == nil {
		t.Fatal("expected truncated error")
	}
	var wireErr *Error
	if !errors.As(err, &wireErr) || wireErr.Kind != KindTruncated {
		t.Errorf("expected KindTruncated, got %v", err)
	}
}

func TestVarStringRoundTrip(t *testing.T) {
	in := "hello, minecraft \xc2\xa7world"
	buf := PutVarString(nil, in)
	cursor := 0
	out, err := ReadVarString(buf, &cursor)
	if err != nil {
		t.Fatalf("ReadVarString: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: put %q, got %q", in, out)
	}
}

func TestVarStringTooLong(t *testing.T) {
	buf := PutVarInt(nil, MaxStringBytes+1)
	cursor := 0
	_, err := ReadVarString(buf, &cursor)
	if err == nil {
		t.Fatal("expected string-too-long error without reading payload")
	}
	var wireErr *Error
	if !errors.As(err, &wireErr) || wireErr.Kind != KindStringTooLong {
		t.Errorf("expected KindStringTooLong, got %v", err)
	}
}

func TestUnsignedShortRoundTrip(t *testing.T) {
	buf := PutUnsignedShort(nil, 25565)
	cursor := 0
	got, err := ReadUnsignedShort(buf, &cursor)
	if err != nil {
		t.Fatalf("ReadUnsignedShort: %v", err)
	}
	if got != 25565 {
		t.Errorf("got %d, want 25565", got)
	}
}

func TestFrameLengthRejectsOversized(t *testing.T) {
	buf := PutVarInt(nil, MaxFrameBytes+1)
	cursor := 0
	_, err := DecodePacketLength(buf, &cursor)
	if err == nil {
		t.Fatal("expected oversized frame to be rejected before payload read")
	}
}

func TestUCS2RoundTrip(t *testing.T) {
	in := "§1\x00legacy motd"
	encoded := EncodeUCS2BE(in)
	out := DecodeUCS2BE(encoded)
	if out != in {
		t.Errorf("UCS2 round trip mismatch: put %q, got %q", in, out)
	}
}
