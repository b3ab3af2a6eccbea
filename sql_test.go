package id

import (
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

var (
	_ sql.Scanner        = (*TimeID)(nil)
	_ driver.Valuer      = TimeID{}
	_ pgtype.UUIDValuer  = TimeID{}
	_ pgtype.UUIDScanner = (*TimeID)(nil)
	_ pgtype.TextValuer  = EUI48{}
	_ pgtype.TextScanner = (*EUI48)(nil)
	_ pgtype.TextValuer  = EUI64{}
	_ pgtype.TextScanner = (*EUI64)(nil)
)

func TestTimeID_ScanValue(t *testing.T) {
	want := MustParseTimeID("89abcdef-4567-1123-bfff-ffffffffffff")
	b := want.Bytes()

	for _, src := range []interface{}{
		"89abcdef-4567-1123-bfff-ffffffffffff",
		"89ABCDEF-4567-1123-BFFF-FFFFFFFFFFFF",
		[]byte("89abcdef-4567-1123-bfff-ffffffffffff"),
		b[:],
		"{89abcdef-4567-1123-bfff-ffffffffffff}",
	} {
		var got TimeID
		if err := got.Scan(src); err != nil {
			t.Errorf("scan %v: %v", src, err)
			continue
		}
		if got != want {
			t.Errorf("scan %v: expected %v, got %v", src, want, got)
		}
	}

	v, err := want.Value()
	if err != nil || v != "89abcdef-4567-1123-bfff-ffffffffffff" {
		t.Errorf("unexpected value %v, %v", v, err)
	}

	var bad TimeID
	if err := bad.Scan(42); !IsInvalidFormat(err) {
		t.Errorf("expected invalid format for int, got %v", err)
	}
	if err := bad.Scan("zz"); !IsInvalidFormat(err) {
		t.Errorf("expected invalid format for bad text, got %v", err)
	}

	unchanged := want
	if err := unchanged.Scan(nil); err != nil || unchanged != want {
		t.Errorf("NULL should leave value unchanged, got %v, %v", unchanged, err)
	}
}

func TestTimeID_PgxUUID(t *testing.T) {
	want := MustParseTimeID("00000000-0000-1000-8000-0123456789ab")
	u, err := want.UUIDValue()
	if err != nil || !u.Valid {
		t.Fatalf("uuid value: %v %v", u, err)
	}

	var got TimeID
	if err := got.ScanUUID(u); err != nil {
		t.Fatalf("scan uuid: %v", err)
	}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
	if err := got.ScanUUID(pgtype.UUID{}); err == nil {
		t.Error("expected error scanning NULL uuid")
	}
}

func TestNullTimeID(t *testing.T) {
	var n NullTimeID
	if err := n.Scan(nil); err != nil || n.Valid {
		t.Errorf("expected invalid after NULL, got %+v, %v", n, err)
	}
	if v, _ := n.Value(); v != nil {
		t.Errorf("expected nil value, got %v", v)
	}
	if u, _ := n.UUIDValue(); u.Valid {
		t.Error("expected invalid pgtype.UUID")
	}

	if err := n.Scan("00000000-0000-1000-8000-0123456789ab"); err != nil || !n.Valid {
		t.Fatalf("scan: %+v, %v", n, err)
	}
	if n.TimeID.Node() != 0x0123456789ab {
		t.Errorf("unexpected node %#x", n.TimeID.Node())
	}

	if err := n.ScanUUID(pgtype.UUID{}); err != nil || n.Valid {
		t.Errorf("expected invalid after NULL uuid, got %+v, %v", n, err)
	}
}

func TestAddress_ScanValue(t *testing.T) {
	var a EUI48
	if err := a.Scan("08:00:2b:01:02:03"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v, _ := a.Value(); v != "08:00:2b:01:02:03" {
		t.Errorf("unexpected value %v", v)
	}
	if err := a.Scan([]byte("0800.2b01.0203")); err != nil {
		t.Errorf("scan dotted: %v", err)
	}
	if err := a.Scan("08:00:2b"); !IsInvalidFormat(err) {
		t.Errorf("expected invalid format, got %v", err)
	}

	var e EUI64
	if err := e.Scan("08:00:2b:01:02:03:04:05"); err != nil {
		t.Fatalf("scan macaddr8: %v", err)
	}
	if v, _ := e.Value(); v != "0800.2b01.0203.0405" {
		t.Errorf("unexpected value %v", v)
	}

	txt, _ := e.TextValue()
	var e2 EUI64
	if err := e2.ScanText(txt); err != nil || e2 != e {
		t.Errorf("text round trip: %v %v", e2, err)
	}
	if err := e2.ScanText(pgtype.Text{}); err == nil {
		t.Error("expected error scanning NULL text")
	}

	atxt, _ := a.TextValue()
	var a2 EUI48
	if err := a2.ScanText(atxt); err != nil || a2.String() != atxt.String {
		t.Errorf("text round trip: %v %v", a2, err)
	}
}
