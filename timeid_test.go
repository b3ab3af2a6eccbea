package id

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"
)

func mustTimeID(t *testing.T, node string, tick uint64, payload uint16) TimeID {
	t.Helper()
	id, err := NewTimeID(MustParseEUI48(node), tick, payload)
	if err != nil {
		t.Fatalf("NewTimeID(%s, %d, %d): %v", node, tick, payload, err)
	}
	return id
}

func TestNewTimeIDCanonical(t *testing.T) {
	id := mustTimeID(t, "01:23:45:67:89:ab", 0, 0)

	if got := id.String(); got != "00000000-0000-1000-8000-0123456789ab" {
		t.Errorf("String = %q", got)
	}
	if id.TimeField() != 0x1000 {
		t.Errorf("TimeField = %#x", id.TimeField())
	}
	if id.ClockSeqAndNodeField() != 0x80000123456789ab {
		t.Errorf("ClockSeqAndNodeField = %#x", id.ClockSeqAndNodeField())
	}
	if id.Version() != 1 {
		t.Errorf("Version = %d, want 1", id.Version())
	}
	if id.Variant() != 2 {
		t.Errorf("Variant = %d, want 2", id.Variant())
	}
	if id.Node() != 0x0123456789ab {
		t.Errorf("Node = %#x", id.Node())
	}
	if id.NodeEUI48().String() != "01:23:45:67:89:ab" {
		t.Errorf("NodeEUI48 = %v", id.NodeEUI48())
	}
	if id.Tick() != 0 || id.Payload() != 0 {
		t.Errorf("Tick = %d, Payload = %d", id.Tick(), id.Payload())
	}
}

func TestNewTimeIDFieldPlacement(t *testing.T) {
	id := mustTimeID(t, "ff:ff:ff:ff:ff:ff", 0x0123456789abcdef, MaxPayload)

	if got := id.String(); got != "89abcdef-4567-1123-bfff-ffffffffffff" {
		t.Errorf("String = %q", got)
	}
	if id.Tick() != 0x0123456789abcdef {
		t.Errorf("Tick = %#x", id.Tick())
	}
	if id.Payload() != MaxPayload {
		t.Errorf("Payload = %#x", id.Payload())
	}
	if id.Variant() != 2 || id.Version() != 1 {
		t.Errorf("Version = %d, Variant = %d", id.Version(), id.Variant())
	}
}

func TestNewTimeIDRoundTrip(t *testing.T) {
	nodes := []string{"00:00:00:00:00:00", "01:23:45:67:89:ab", "80:00:00:00:00:01", "ff:ff:ff:ff:ff:ff"}
	ticks := []uint64{0, 1, 0xFFFFFFFF, 1 << 32, 0x0FFF_0000_0000_0000, MaxTick}
	payloads := []uint16{0, 1, 0x2000, MaxPayload}

	for _, n := range nodes {
		for _, tick := range ticks {
			for _, p := range payloads {
				id := mustTimeID(t, n, tick, p)
				if id.Tick() != tick {
					t.Errorf("%s tick = %#x, want %#x", id, id.Tick(), tick)
				}
				if id.NodeEUI48() != MustParseEUI48(n) {
					t.Errorf("%s node = %v, want %s", id, id.NodeEUI48(), n)
				}
				if id.Payload() != p {
					t.Errorf("%s payload = %#x, want %#x", id, id.Payload(), p)
				}
				if id.Version() != 1 || id.Variant() != 2 {
					t.Errorf("%s version/variant = %d/%d", id, id.Version(), id.Variant())
				}

				s := id.String()
				if len(s) != 36 {
					t.Fatalf("%s has length %d", s, len(s))
				}
				back, err := ParseTimeID(s)
				if err != nil {
					t.Fatalf("ParseTimeID(%q): %v", s, err)
				}
				if back != id || back.Hash() != id.Hash() {
					t.Errorf("ParseTimeID(%q) = %v", s, back)
				}
			}
		}
	}
}

func TestNewTimeIDPayloadMasked(t *testing.T) {
	id := mustTimeID(t, "01:23:45:67:89:ab", 7, 0xFFFF)
	if id.Payload() != MaxPayload {
		t.Errorf("Payload = %#x, want %#x", id.Payload(), MaxPayload)
	}
	if id.Variant() != 2 {
		t.Errorf("high payload bits leaked into variant: %d", id.Variant())
	}
}

func TestNewTimeIDTickRange(t *testing.T) {
	_, err := NewTimeID(MustParseEUI48("01:23:45:67:89:ab"), MaxTick+1, 0)
	if !errors.Is(err, ErrTickRange) {
		t.Errorf("error = %v, want ErrTickRange", err)
	}
}

func TestConvoluteInverse(t *testing.T) {
	for _, tick := range []uint64{0, 1, 0x123, 0xFFFF_FFFF, 0xABCD_0000_0000, 0x0FFF_0000_0000_0000, MaxTick} {
		bits := convolute(tick)
		if bits&versionMask != versionBits {
			t.Errorf("convolute(%#x) version nibble = %#x", tick, bits&versionMask)
		}
		if got := deconvolute(bits); got != tick {
			t.Errorf("deconvolute(convolute(%#x)) = %#x", tick, got)
		}
	}
}

func TestTimeIDOrderIsNotChronological(t *testing.T) {
	earlier := mustTimeID(t, "01:23:45:67:89:ab", 1, 0)
	later := mustTimeID(t, "01:23:45:67:89:ab", 1<<32, 0)

	if !later.Less(earlier) {
		t.Errorf("%v should sort before %v", later, earlier)
	}
	if earlier.Compare(later) != 1 {
		t.Errorf("Compare = %d, want 1", earlier.Compare(later))
	}
}

func TestTimeIDOrderUnsigned(t *testing.T) {
	a := TimeIDFromFields(0x7FFFFFFFFFFFFFFF, 0)
	b := TimeIDFromFields(0x8000000000000000, 0)
	if !a.Less(b) {
		t.Error("time field must compare unsigned")
	}

	c := TimeIDFromFields(1, 0x7FFFFFFFFFFFFFFF)
	d := TimeIDFromFields(1, 0x8000000000000000)
	if !c.Less(d) || d.Compare(c) != 1 {
		t.Error("clock-seq-and-node field must compare unsigned")
	}
	if c.Compare(c) != 0 || !c.Equal(c) || c.Equal(d) {
		t.Error("equal ids must compare 0")
	}
}

func TestTimeIDSort(t *testing.T) {
	ids := []TimeID{
		TimeIDFromFields(2, 1),
		TimeIDFromFields(1, 2),
		TimeIDFromFields(1, 1),
		TimeIDFromFields(0xF000000000000000, 0),
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	want := []TimeID{
		TimeIDFromFields(1, 1),
		TimeIDFromFields(1, 2),
		TimeIDFromFields(2, 1),
		TimeIDFromFields(0xF000000000000000, 0),
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %v, want %v", i, ids[i], want[i])
		}
	}
}

func TestTimeIDHash(t *testing.T) {
	id := mustTimeID(t, "01:23:45:67:89:ab", 0, 0)
	if got := id.Hash(); got != 0xC5679888 {
		t.Errorf("Hash = %#x, want 0xc5679888", got)
	}
	if NilTimeID.Hash() != 0 {
		t.Error("nil hash should be 0")
	}
}

func TestParseTimeID(t *testing.T) {
	id, err := ParseTimeID("89ABCDEF-4567-1123-BFFF-FFFFFFFFFFFF")
	if err != nil {
		t.Fatalf("ParseTimeID: %v", err)
	}
	if id.String() != "89abcdef-4567-1123-bfff-ffffffffffff" {
		t.Errorf("String = %q", id.String())
	}

	malformed := []string{
		"",
		"00000000-0000-1000-8000-0123456789a",
		"00000000-0000-1000-8000-0123456789abc",
		"000000000-000-1000-8000-0123456789ab",
		"00000000_0000_1000_8000_0123456789ab",
		"0000000g-0000-1000-8000-0123456789ab",
		"00000000-0000-1000-8000-0123456789a-",
		"+0000000-0000-1000-8000-0123456789ab",
		"00000000000010008000-0123456789ab",
		strings.Repeat("0", 36),
	}
	for _, in := range malformed {
		_, err := ParseTimeID(in)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseTimeID(%q) error = %v, want *ParseError", in, err)
			continue
		}
		if pe.Kind != "TimeID" || pe.Input != in {
			t.Errorf("ParseTimeID(%q) ParseError = %+v", in, pe)
		}
	}
}

func TestParseTimeIDAcceptsAnyFields(t *testing.T) {
	id, err := ParseTimeID("ffffffff-ffff-ffff-ffff-ffffffffffff")
	if err != nil {
		t.Fatalf("ParseTimeID: %v", err)
	}
	if id.Version() != 15 || id.Variant() != 3 {
		t.Errorf("Version = %d, Variant = %d", id.Version(), id.Variant())
	}
	if _, err := SchemeOf(id); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("SchemeOf = %v, want ErrUnsupportedScheme", err)
	}
}

func TestTimeIDBytes(t *testing.T) {
	id := mustTimeID(t, "01:23:45:67:89:ab", 0x0123456789abcdef, 0x155)
	b := id.Bytes()
	if b[0] != 0x89 || b[8]&0xC0 != 0x80 || b[15] != 0xab {
		t.Errorf("Bytes = %x", b)
	}
	if TimeIDFromBytes(b) != id {
		t.Error("TimeIDFromBytes round trip failed")
	}

	data, err := id.MarshalBinary()
	if err != nil || len(data) != 16 {
		t.Fatalf("MarshalBinary = %x, %v", data, err)
	}
	var back TimeID
	if err := back.UnmarshalBinary(data); err != nil || back != id {
		t.Errorf("UnmarshalBinary = %v, %v", back, err)
	}
	if err := back.UnmarshalBinary(data[:15]); !IsInvalidFormat(err) {
		t.Errorf("short UnmarshalBinary error = %v", err)
	}

	out, _ := id.AppendBinary([]byte{0xAA})
	if len(out) != 17 || out[0] != 0xAA {
		t.Errorf("AppendBinary = %x", out)
	}
}

func TestTimeIDJSON(t *testing.T) {
	id := mustTimeID(t, "01:23:45:67:89:ab", 0, 0)
	data, err := json.Marshal(map[string]TimeID{"id": id})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"id":"00000000-0000-1000-8000-0123456789ab"}` {
		t.Errorf("Marshal = %s", data)
	}

	var back map[string]TimeID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back["id"] != id {
		t.Errorf("Unmarshal = %v", back["id"])
	}
}

func TestTimeIDTime(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 30, 45, 123456700, time.UTC)
	id := mustTimeID(t, "01:23:45:67:89:ab", TickFromTime(when), 0)
	if !id.Time().Equal(when) {
		t.Errorf("Time = %v, want %v", id.Time(), when)
	}
}

func TestTimeIDNil(t *testing.T) {
	if !NilTimeID.IsNil() {
		t.Error("NilTimeID.IsNil() = false")
	}
	if NilTimeID.String() != "00000000-0000-0000-0000-000000000000" {
		t.Errorf("NilTimeID = %q", NilTimeID.String())
	}
	if mustTimeID(t, "00:00:00:00:00:00", 0, 0).IsNil() {
		t.Error("a generated id carries version and variant bits and is never nil")
	}
}

func TestMustParseTimeIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParseTimeID should panic")
		}
	}()
	MustParseTimeID("nope")
}

func TestTimeIDStream(t *testing.T) {
	a := mustTimeID(t, "01:23:45:67:89:ab", 12345, 3)
	b := mustTimeID(t, "aa:bb:cc:dd:ee:ff", 67890, 4)

	var buf bytes.Buffer
	for _, id := range []TimeID{a, b} {
		if n, err := id.WriteTo(&buf); err != nil || n != 16 {
			t.Fatalf("WriteTo = %d, %v", n, err)
		}
	}

	var got TimeID
	if _, err := got.ReadFrom(&buf); err != nil || got != a {
		t.Fatalf("first ReadFrom = %v, %v", got, err)
	}
	if _, err := got.ReadFrom(&buf); err != nil || got != b {
		t.Fatalf("second ReadFrom = %v, %v", got, err)
	}
	if _, err := got.ReadFrom(bytes.NewReader([]byte{1, 2, 3})); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short ReadFrom error = %v", err)
	}
	if got != b {
		t.Error("failed ReadFrom must not modify the receiver")
	}
}
