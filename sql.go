package id

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Scan implements sql.Scanner. It accepts the canonical text form, as string
// or bytes, and the 16 byte binary form. NULL leaves t unchanged.
func (t *TimeID) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		return nil
	case string:
		return t.scanText(src)
	case []byte:
		if len(src) == 16 {
			return t.UnmarshalBinary(src)
		}
		return t.scanText(string(src))
	default:
		return fmt.Errorf("cannot scan %T into TimeID: %w", src, ErrInvalidFormat)
	}
}

func (t *TimeID) scanText(s string) error {
	if s == "" {
		return nil
	}
	parsed, err := ParseTimeID(s)
	if err != nil {
		u, uerr := uuid.Parse(s)
		if uerr != nil {
			return err
		}
		parsed = TimeIDFromUUID(u)
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer using the canonical text form.
func (t TimeID) Value() (driver.Value, error) {
	return t.String(), nil
}

// UUIDValue implements pgtype.UUIDValuer so pgx sends TimeID as a native uuid.
func (t TimeID) UUIDValue() (pgtype.UUID, error) {
	return pgtype.UUID{Bytes: t.Bytes(), Valid: true}, nil
}

// ScanUUID implements pgtype.UUIDScanner.
func (t *TimeID) ScanUUID(v pgtype.UUID) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into TimeID: %w", ErrInvalidFormat)
	}
	*t = TimeIDFromBytes(v.Bytes)
	return nil
}

// NullTimeID is a TimeID that may be NULL.
type NullTimeID struct {
	TimeID TimeID
	Valid  bool
}

func (n *NullTimeID) Scan(src interface{}) error {
	if src == nil {
		n.TimeID, n.Valid = NilTimeID, false
		return nil
	}
	n.Valid = true
	return n.TimeID.Scan(src)
}

func (n NullTimeID) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.TimeID.Value()
}

func (n NullTimeID) UUIDValue() (pgtype.UUID, error) {
	if !n.Valid {
		return pgtype.UUID{}, nil
	}
	return n.TimeID.UUIDValue()
}

func (n *NullTimeID) ScanUUID(v pgtype.UUID) error {
	if !v.Valid {
		n.TimeID, n.Valid = NilTimeID, false
		return nil
	}
	n.Valid = true
	return n.TimeID.ScanUUID(v)
}

// Scan implements sql.Scanner for text columns, including Postgres macaddr.
func (a *EUI48) Scan(src interface{}) error {
	s, err := scanString(src, "EUI48")
	if err != nil || s == "" {
		return err
	}
	return a.UnmarshalText([]byte(s))
}

func (a EUI48) Value() (driver.Value, error) {
	return a.String(), nil
}

// TextValue implements pgtype.TextValuer.
func (a EUI48) TextValue() (pgtype.Text, error) {
	return pgtype.Text{String: a.String(), Valid: true}, nil
}

// ScanText implements pgtype.TextScanner.
func (a *EUI48) ScanText(v pgtype.Text) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into EUI48: %w", ErrInvalidFormat)
	}
	return a.UnmarshalText([]byte(v.String))
}

// Scan implements sql.Scanner for text columns. Postgres macaddr8 text
// uses ':' separators, which ParseEUI64 accepts.
func (a *EUI64) Scan(src interface{}) error {
	s, err := scanString(src, "EUI64")
	if err != nil || s == "" {
		return err
	}
	return a.UnmarshalText([]byte(s))
}

func (a EUI64) Value() (driver.Value, error) {
	return a.String(), nil
}

// TextValue implements pgtype.TextValuer.
func (a EUI64) TextValue() (pgtype.Text, error) {
	return pgtype.Text{String: a.String(), Valid: true}, nil
}

// ScanText implements pgtype.TextScanner.
func (a *EUI64) ScanText(v pgtype.Text) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into EUI64: %w", ErrInvalidFormat)
	}
	return a.UnmarshalText([]byte(v.String))
}

func scanString(src interface{}, kind string) (string, error) {
	switch src := src.(type) {
	case nil:
		return "", nil
	case string:
		return src, nil
	case []byte:
		return string(src), nil
	default:
		return "", fmt.Errorf("cannot scan %T into %s: %w", src, kind, ErrInvalidFormat)
	}
}
