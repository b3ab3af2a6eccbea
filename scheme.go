package id

import "fmt"

// Scheme names one TimeID encoding: the width of the embedded node address,
// the width of the tick count, and the version tag that marks the result.
//
// Only SchemeEUI48T60 is defined. Layouts for a 64-bit node or a wider tick
// would need their own version tags and bit placement; LookupScheme rejects
// them until those are specified.
type Scheme struct {
	NodeBits int
	TickBits int
	Version  int
}

// SchemeEUI48T60 is the version 1 layout: 48-bit node, 60-bit tick,
// 14-bit payload.
var SchemeEUI48T60 = Scheme{NodeBits: 48, TickBits: 60, Version: 1}

var schemes = []Scheme{SchemeEUI48T60}

// LookupScheme returns the scheme for a node width and tick width.
func LookupScheme(nodeBits, tickBits int) (Scheme, error) {
	for _, s := range schemes {
		if s.NodeBits == nodeBits && s.TickBits == tickBits {
			return s, nil
		}
	}
	return Scheme{}, WithContext(ErrUnsupportedScheme, map[string]interface{}{
		"node_bits": nodeBits,
		"tick_bits": tickBits,
	})
}

// SchemeOf reports which scheme produced t, based on its version tag.
func SchemeOf(t TimeID) (Scheme, error) {
	for _, s := range schemes {
		if s.Version == t.Version() {
			return s, nil
		}
	}
	return Scheme{}, WithContext(ErrUnsupportedScheme, map[string]interface{}{
		"version": t.Version(),
	})
}

func (s Scheme) String() string {
	return fmt.Sprintf("v%d(node=%d,tick=%d)", s.Version, s.NodeBits, s.TickBits)
}
