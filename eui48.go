package id

import (
	"fmt"
	"net"
)

// EUI48 is a validated 48-bit hardware address such as an Ethernet MAC.
// The zero value is NilEUI48. Values are immutable and comparable with ==.
type EUI48 struct {
	v uint64
}

// Sentinel EUI48 values. NilEUI48 is an alias of MinEUI48.
var (
	MinEUI48 = EUI48{}
	MaxEUI48 = EUI48{v: 0xFFFFFFFFFFFF}
	NilEUI48 = MinEUI48
)

// ParseEUI48 parses a 48-bit address. It is lenient on capitalization and on
// the placement of ':' and '.', but anything else that keeps the text from
// reducing to exactly 12 hex digits is rejected.
//
//	ParseEUI48("AA:BB:CC:DD:EE:FF") // aa:bb:cc:dd:ee:ff
//	ParseEUI48("aabb.ccdd.eeff")    // aa:bb:cc:dd:ee:ff
func ParseEUI48(s string) (EUI48, error) {
	v, err := eui48Format.parse(s)
	if err != nil {
		return EUI48{}, err
	}
	return EUI48{v: v}, nil
}

// MustParseEUI48 is like ParseEUI48 but panics on malformed input.
// Intended for constants and tests.
func MustParseEUI48(s string) EUI48 {
	a, err := ParseEUI48(s)
	if err != nil {
		panic(err)
	}
	return a
}

// EUI48FromUint64 validates that v fits in 48 bits.
func EUI48FromUint64(v uint64) (EUI48, error) {
	if v > MaxEUI48.v {
		return EUI48{}, WithContext(ErrInvalidFormat, map[string]interface{}{
			"kind":  eui48Format.kind,
			"value": fmt.Sprintf("%#x", v),
		})
	}
	return EUI48{v: v}, nil
}

// EUI48FromHardwareAddr converts a 6-byte interface address.
func EUI48FromHardwareAddr(hw net.HardwareAddr) (EUI48, error) {
	if len(hw) != 6 {
		return EUI48{}, &ParseError{Kind: eui48Format.kind, Input: hw.String()}
	}
	var v uint64
	for _, b := range hw {
		v = v<<8 | uint64(b)
	}
	return EUI48{v: v}, nil
}

// NormalizeEUI48 inserts ':' separators into 12 stripped hex digits.
func NormalizeEUI48(stripped string) (string, error) {
	return eui48Format.normalize(stripped)
}

// Uint64 returns the numeric value of the address.
func (a EUI48) Uint64() uint64 { return a.v }

// Compare orders addresses numerically.
func (a EUI48) Compare(o EUI48) int { return compareUint64(a.v, o.v) }

// Less reports whether a sorts before o.
func (a EUI48) Less(o EUI48) bool { return a.v < o.v }

// IsNil reports whether a is the all-zero address.
func (a EUI48) IsNil() bool { return a == NilEUI48 }

// String returns the canonical form, e.g. "01:23:45:67:89:ab".
func (a EUI48) String() string { return eui48Format.format(a.v) }

// StringNoPunctuation returns the canonical form without ':' separators.
func (a EUI48) StringNoPunctuation() string {
	return eui48Format.stripSeparators(a.String())
}

// AppendText appends the canonical form to dst.
func (a EUI48) AppendText(dst []byte) ([]byte, error) {
	return eui48Format.appendText(dst, a.v), nil
}

// HardwareAddr returns the address as a 6-byte net.HardwareAddr.
func (a EUI48) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, 6)
	for i := 5; i >= 0; i-- {
		hw[i] = byte(a.v >> (uint(5-i) * 8))
	}
	return hw
}

// MarshalText implements encoding.TextMarshaler.
func (a EUI48) MarshalText() ([]byte, error) {
	return a.AppendText(make([]byte, 0, eui48Format.textLen()))
}

// UnmarshalText implements encoding.TextUnmarshaler with ParseEUI48 rules.
func (a *EUI48) UnmarshalText(text []byte) error {
	parsed, err := ParseEUI48(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
