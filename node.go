package id

// Node is the legacy address wrapper. It keeps whatever text it was given and
// derives a value from the hex digits in it without any validation. New code
// should use ParseEUI48; Node exists for callers that already hold trusted
// address text and want it carried through untouched.
type Node struct {
	addr string
	v    uint64
}

// Sentinel Node values.
var (
	MinNode = NodeUnchecked("00:00:00:00:00:00")
	MaxNode = NodeUnchecked("ff:ff:ff:ff:ff:ff")
	NilNode = MinNode
)

// NodeUnchecked wraps addr without validating it. Non-hex characters are
// skipped when computing the value, so "01:23:45:67:89:ab" and
// "0123456789AB" carry the same value but keep their own text.
func NodeUnchecked(addr string) Node {
	return Node{addr: addr, v: scanHexLenient(addr)}
}

// Uint64 returns the value derived from the address text.
func (n Node) Uint64() uint64 { return n.v }

// String returns the address text exactly as given.
func (n Node) String() string { return n.addr }

// Compare orders nodes by value.
func (n Node) Compare(o Node) int { return compareUint64(n.v, o.v) }

// EUI48 validates the node text and returns it as an EUI48.
func (n Node) EUI48() (EUI48, error) {
	return ParseEUI48(n.addr)
}
