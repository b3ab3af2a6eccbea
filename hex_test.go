package id

import (
	"errors"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"f", 15},
		{"F", 15},
		{"0123456789abcdef", 0x0123456789abcdef},
		{"0123456789ABCDEF", 0x0123456789abcdef},
		{"ffffffffffffffff", 0xffffffffffffffff},
		{"00ff", 0xff},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if err != nil {
			t.Errorf("ParseHex(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHex(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestParseHexErrors(t *testing.T) {
	tests := []struct {
		in     string
		offset int
	}{
		{"", -1},
		{"00000000000000000", -1},
		{"g", 0},
		{"12g4", 2},
		{"12:34", 2},
		{" 1", 0},
	}
	for _, tt := range tests {
		_, err := ParseHex(tt.in)
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("ParseHex(%q) error = %v, want *FormatError", tt.in, err)
			continue
		}
		if fe.Offset != tt.offset {
			t.Errorf("ParseHex(%q) offset = %d, want %d", tt.in, fe.Offset, tt.offset)
		}
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("ParseHex(%q) error should wrap ErrInvalidFormat", tt.in)
		}
	}
}

func TestAppendHex(t *testing.T) {
	tests := []struct {
		v     uint64
		width int
		want  string
	}{
		{0, 4, "0000"},
		{0xab, 4, "00ab"},
		{0x12345, 4, "2345"},
		{0xdeadbeef, 8, "deadbeef"},
		{0xffffffffffffffff, 16, "ffffffffffffffff"},
		{0x1, 0, ""},
	}
	for _, tt := range tests {
		if got := string(AppendHex(nil, tt.v, tt.width)); got != tt.want {
			t.Errorf("AppendHex(%#x, %d) = %q, want %q", tt.v, tt.width, got, tt.want)
		}
	}

	if got := string(AppendHex([]byte("x="), 0xa, 2)); got != "x=0a" {
		t.Errorf("AppendHex prefix = %q", got)
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x8000, 0x0123456789abcdef, 1<<63 + 7, ^uint64(0)} {
		got, err := ParseHex(string(AppendHex(nil, v, 16)))
		if err != nil {
			t.Fatalf("round trip %#x: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %#x = %#x", v, got)
		}
	}
}

func TestScanHexLenient(t *testing.T) {
	if got := scanHexLenient("01:23:45:67:89:AB"); got != 0x0123456789ab {
		t.Errorf("scanHexLenient = %#x", got)
	}
	if got := scanHexLenient("zz-1-zz"); got != 1 {
		t.Errorf("scanHexLenient = %#x, want 1", got)
	}
	if got := scanHexLenient(""); got != 0 {
		t.Errorf("scanHexLenient(\"\") = %#x", got)
	}
}
