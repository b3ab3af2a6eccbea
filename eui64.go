package id

import "net"

// EUI64 is a validated 64-bit extended unique identifier, as used by
// IEEE 802.15.4 radios. The zero value is NilEUI64.
type EUI64 struct {
	v uint64
}

// Sentinel EUI64 values. NilEUI64 is an alias of MinEUI64.
var (
	MinEUI64 = EUI64{}
	MaxEUI64 = EUI64{v: 0xFFFFFFFFFFFFFFFF}
	NilEUI64 = MinEUI64
)

// ParseEUI64 parses a 64-bit address with the same leniency as ParseEUI48,
// requiring exactly 16 hex digits once ':' and '.' are removed.
func ParseEUI64(s string) (EUI64, error) {
	v, err := eui64Format.parse(s)
	if err != nil {
		return EUI64{}, err
	}
	return EUI64{v: v}, nil
}

// MustParseEUI64 is like ParseEUI64 but panics on malformed input.
func MustParseEUI64(s string) EUI64 {
	a, err := ParseEUI64(s)
	if err != nil {
		panic(err)
	}
	return a
}

// EUI64FromUint64 wraps v. Every uint64 is a valid EUI64.
func EUI64FromUint64(v uint64) EUI64 {
	return EUI64{v: v}
}

// EUI64FromHardwareAddr converts an 8-byte interface address.
func EUI64FromHardwareAddr(hw net.HardwareAddr) (EUI64, error) {
	if len(hw) != 8 {
		return EUI64{}, &ParseError{Kind: eui64Format.kind, Input: hw.String()}
	}
	var v uint64
	for _, b := range hw {
		v = v<<8 | uint64(b)
	}
	return EUI64{v: v}, nil
}

// NormalizeEUI64 inserts '.' separators into 16 stripped hex digits.
func NormalizeEUI64(stripped string) (string, error) {
	return eui64Format.normalize(stripped)
}

// Uint64 returns the address as an integer.
func (a EUI64) Uint64() uint64 { return a.v }

// Compare returns -1, 0 or 1 ordering addresses by value.
func (a EUI64) Compare(o EUI64) int { return compareUint64(a.v, o.v) }

// Less reports whether a sorts before o.
func (a EUI64) Less(o EUI64) bool { return a.v < o.v }

// IsNil reports whether a is the all-zero address.
func (a EUI64) IsNil() bool { return a == NilEUI64 }

// String returns the canonical form, e.g. "0123.4567.89ab.cdef".
func (a EUI64) String() string { return eui64Format.format(a.v) }

// StringNoPunctuation returns the 16 hex digits without '.' separators.
func (a EUI64) StringNoPunctuation() string {
	return eui64Format.stripSeparators(a.String())
}

// AppendText appends the canonical form to dst.
func (a EUI64) AppendText(dst []byte) ([]byte, error) {
	return eui64Format.appendText(dst, a.v), nil
}

// HardwareAddr returns the address as 8 bytes, most significant first.
func (a EUI64) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, 8)
	for i := 7; i >= 0; i-- {
		hw[i] = byte(a.v >> (uint(7-i) * 8))
	}
	return hw
}

// MarshalText implements encoding.TextMarshaler.
func (a EUI64) MarshalText() ([]byte, error) {
	return a.AppendText(make([]byte, 0, eui64Format.textLen()))
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseEUI64.
func (a *EUI64) UnmarshalText(text []byte) error {
	parsed, err := ParseEUI64(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
