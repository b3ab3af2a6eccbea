package id

import (
	"errors"
	"testing"
)

func TestLookupScheme(t *testing.T) {
	s, err := LookupScheme(48, 60)
	if err != nil {
		t.Fatalf("LookupScheme(48, 60): %v", err)
	}
	if s != SchemeEUI48T60 || s.Version != 1 {
		t.Errorf("scheme = %v", s)
	}

	for _, c := range [][2]int{{64, 60}, {48, 64}, {64, 64}, {0, 0}} {
		if _, err := LookupScheme(c[0], c[1]); !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("LookupScheme(%d, %d) error = %v", c[0], c[1], err)
		}
	}
}

func TestSchemeOf(t *testing.T) {
	id, _ := NewTimeID(MustParseEUI48("01:23:45:67:89:ab"), 99, 1)
	s, err := SchemeOf(id)
	if err != nil {
		t.Fatalf("SchemeOf: %v", err)
	}
	if s != SchemeEUI48T60 {
		t.Errorf("SchemeOf = %v", s)
	}

	if _, err := SchemeOf(NilTimeID); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("SchemeOf(nil) error = %v", err)
	}
}

func TestSchemeString(t *testing.T) {
	if got := SchemeEUI48T60.String(); got != "v1(node=48,tick=60)" {
		t.Errorf("String = %q", got)
	}
}
