package id

import (
	"encoding/binary"
	"io"
	"time"
)

const (
	// versionBits tags the time field as version 1 (node based).
	versionBits = 0x1000
	// variantBits sets the Leach-Salz variant (binary 10) once shifted to bit 48.
	variantBits = 0x8000

	nodeMask    = 0x0000FFFFFFFFFFFF
	payloadMask = 0x3FFF000000000000
	variantMask = 0xC000000000000000
	versionMask = 0xF000

	// MaxTick is the largest tick count a TimeID can carry.
	MaxTick = 1<<60 - 1
	// MaxPayload is the largest payload a TimeID can carry.
	MaxPayload = 0x3FFF

	timeIDTextLen = 36
)

// TimeID is a 128-bit time-derived identifier in RFC 4122 layout. It embeds a
// 48-bit node address, a 60-bit tick count and a 14-bit payload.
//
// TimeIDs order by their time field first and their clock-seq-and-node field
// second, both unsigned. Because the low bits of the tick land in the high
// bits of the time field, that order is not generation order.
type TimeID struct {
	time uint64
	csn  uint64
}

// NilTimeID is the all-zero identifier.
var NilTimeID = TimeID{}

// NewTimeID builds a version 1 TimeID. Only the low 14 bits of payload are
// kept. A tick that does not fit in 60 bits is rejected with ErrTickRange.
func NewTimeID(node EUI48, tick uint64, payload uint16) (TimeID, error) {
	if tick > MaxTick {
		return TimeID{}, WithContext(ErrTickRange, map[string]interface{}{
			"tick": tick,
		})
	}
	return TimeID{
		time: convolute(tick),
		csn:  node.v&nodeMask | (uint64(payload)&MaxPayload|variantBits)<<48,
	}, nil
}

// TimeIDFromFields wraps two raw fields without any validation.
func TimeIDFromFields(timeField, clockSeqAndNodeField uint64) TimeID {
	return TimeID{time: timeField, csn: clockSeqAndNodeField}
}

// TimeIDFromBytes reads two big-endian fields without any validation.
func TimeIDFromBytes(b [16]byte) TimeID {
	return TimeID{
		time: binary.BigEndian.Uint64(b[0:8]),
		csn:  binary.BigEndian.Uint64(b[8:16]),
	}
}

// TimeIDFromSlice is TimeIDFromBytes for a slice; b must be 16 bytes long.
func TimeIDFromSlice(b []byte) (TimeID, error) {
	if len(b) != 16 {
		return TimeID{}, WithContext(ErrInvalidFormat, map[string]interface{}{
			"kind":   "TimeID",
			"length": len(b),
		})
	}
	return TimeIDFromBytes([16]byte(b)), nil
}

// ParseTimeID parses the 36 character canonical form
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx. Hex digits may be either case.
func ParseTimeID(s string) (TimeID, error) {
	if len(s) != timeIDTextLen || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return TimeID{}, &ParseError{Kind: "TimeID", Input: s}
	}

	timeField, ok := scanTimeIDHalf(s[0:18])
	if !ok {
		return TimeID{}, &ParseError{Kind: "TimeID", Input: s}
	}
	csn, ok := scanTimeIDHalf(s[19:36])
	if !ok {
		return TimeID{}, &ParseError{Kind: "TimeID", Input: s}
	}
	return TimeID{time: timeField, csn: csn}, nil
}

// MustParseTimeID is like ParseTimeID but panics on malformed input.
func MustParseTimeID(s string) TimeID {
	t, err := ParseTimeID(s)
	if err != nil {
		panic(err)
	}
	return t
}

// scanTimeIDHalf reads 16 hex digits from s, skipping the hyphens that
// ParseTimeID has already placed.
func scanTimeIDHalf(s string) (uint64, bool) {
	var v uint64
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			continue
		}
		d, ok := fromHexChar(s[i])
		if !ok {
			return 0, false
		}
		v = v<<4 | uint64(d)
		n++
	}
	return v, n == maxHexDigits
}

// convolute moves a 60-bit tick into RFC 4122 time field order: the low 32
// bits become time_low, the next 16 time_mid, the top 12 time_hi, and the
// version nibble is set.
func convolute(tick uint64) uint64 {
	return (tick&0xFFFFFFFF)<<32 |
		(tick&0xFFFF00000000)>>16 |
		versionBits | (tick>>48)&0x0FFF
}

// deconvolute is the inverse of convolute; the version nibble is dropped.
func deconvolute(bits uint64) uint64 {
	return (bits&0xFFFFFFFF00000000)>>32 |
		(bits&0xFFFF0000)<<16 |
		(bits&0x0FFF)<<48
}

// TimeField returns the most significant 64 bits.
func (t TimeID) TimeField() uint64 { return t.time }

// ClockSeqAndNodeField returns the least significant 64 bits.
func (t TimeID) ClockSeqAndNodeField() uint64 { return t.csn }

// Tick returns the embedded tick count.
func (t TimeID) Tick() uint64 { return deconvolute(t.time) }

// Time returns the wall clock time of the embedded tick count.
func (t TimeID) Time() time.Time { return TimeFromTick(t.Tick()) }

// Node returns the embedded 48-bit node value.
func (t TimeID) Node() uint64 { return t.csn & nodeMask }

// NodeEUI48 returns the embedded node as an address.
func (t TimeID) NodeEUI48() EUI48 { return EUI48{v: t.csn & nodeMask} }

// Payload returns the embedded 14-bit payload.
func (t TimeID) Payload() uint16 { return uint16((t.csn & payloadMask) >> 48) }

// Version returns the 4-bit version tag.
func (t TimeID) Version() int { return int((t.time & versionMask) >> 12) }

// Variant returns the 2-bit variant tag.
func (t TimeID) Variant() int { return int((t.csn & variantMask) >> 62) }

// IsNil reports whether both fields are zero.
func (t TimeID) IsNil() bool { return t == NilTimeID }

// Compare returns -1, 0 or 1 ordering by time field, then by
// clock-seq-and-node field.
func (t TimeID) Compare(o TimeID) int {
	if c := compareUint64(t.time, o.time); c != 0 {
		return c
	}
	return compareUint64(t.csn, o.csn)
}

// Less reports whether t sorts before o.
func (t TimeID) Less(o TimeID) bool { return t.Compare(o) < 0 }

// Equal reports whether both fields match.
func (t TimeID) Equal(o TimeID) bool { return t == o }

// Hash folds both fields into 32 bits by xor of their halves.
func (t TimeID) Hash() uint32 {
	return uint32(t.time>>32 ^ t.time ^ t.csn>>32 ^ t.csn)
}

// Bytes returns the two fields as 16 big-endian bytes.
func (t TimeID) Bytes() [16]byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], t.time)
	binary.BigEndian.PutUint64(b[8:16], t.csn)
	return b
}

// String returns the canonical 36 character form.
func (t TimeID) String() string {
	return string(t.appendText(make([]byte, 0, timeIDTextLen)))
}

// AppendText appends the canonical form to dst.
func (t TimeID) AppendText(dst []byte) ([]byte, error) {
	return t.appendText(dst), nil
}

func (t TimeID) appendText(dst []byte) []byte {
	dst = AppendHex(dst, t.time>>32, 8)
	dst = append(dst, '-')
	dst = AppendHex(dst, t.time>>16, 4)
	dst = append(dst, '-')
	dst = AppendHex(dst, t.time, 4)
	dst = append(dst, '-')
	dst = AppendHex(dst, t.csn>>48, 4)
	dst = append(dst, '-')
	return AppendHex(dst, t.csn, 12)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeID) MarshalText() ([]byte, error) {
	return t.appendText(make([]byte, 0, timeIDTextLen)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeID) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeID(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AppendBinary appends the 16 byte form to dst.
func (t TimeID) AppendBinary(dst []byte) ([]byte, error) {
	dst = binary.BigEndian.AppendUint64(dst, t.time)
	return binary.BigEndian.AppendUint64(dst, t.csn), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t TimeID) MarshalBinary() ([]byte, error) {
	return t.AppendBinary(make([]byte, 0, 16))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (t *TimeID) UnmarshalBinary(data []byte) error {
	parsed, err := TimeIDFromSlice(data)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// WriteTo writes the 16 byte form to w.
func (t TimeID) WriteTo(w io.Writer) (int64, error) {
	b := t.Bytes()
	n, err := w.Write(b[:])
	return int64(n), err
}

// ReadFrom reads exactly 16 bytes from r. A short read leaves t unchanged.
func (t *TimeID) ReadFrom(r io.Reader) (int64, error) {
	var b [16]byte
	n, err := io.ReadFull(r, b[:])
	if err != nil {
		return int64(n), err
	}
	*t = TimeIDFromBytes(b)
	return int64(n), nil
}
