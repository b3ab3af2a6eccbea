package id

import (
	"github.com/google/uuid"
)

// UUID returns t as a github.com/google/uuid value. Version 1 TimeIDs
// decode there with the same time, clock sequence and node.
func (t TimeID) UUID() uuid.UUID {
	return uuid.UUID(t.Bytes())
}

// TimeIDFromUUID wraps u without any validation.
func TimeIDFromUUID(u uuid.UUID) TimeID {
	return TimeIDFromBytes(u)
}

// ParseAnyTimeID accepts every text form uuid.Parse does (canonical,
// urn:uuid:, braced, bare hex) but only returns version 1 RFC 4122 values.
func ParseAnyTimeID(s string) (TimeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TimeID{}, &ParseError{Kind: "TimeID", Input: s}
	}
	if u.Variant() != uuid.RFC4122 {
		return TimeID{}, WithContext(ErrUnsupportedScheme, map[string]interface{}{
			"input":   s,
			"variant": u.Variant().String(),
		})
	}
	t := TimeIDFromUUID(u)
	if _, err := SchemeOf(t); err != nil {
		return TimeID{}, err
	}
	return t, nil
}
