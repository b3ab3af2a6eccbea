package id

import "strings"

// addressFormat describes the text shape of one address width: the number of
// hex digits, how many digits sit between separators, and the separator.
type addressFormat struct {
	kind   string
	digits int
	group  int
	sep    byte
}

var (
	eui48Format = addressFormat{kind: "EUI48", digits: 12, group: 2, sep: ':'}
	eui64Format = addressFormat{kind: "EUI64", digits: 16, group: 4, sep: '.'}
)

// textLen is the canonical text length including separators.
func (f addressFormat) textLen() int {
	return f.digits + f.digits/f.group - 1
}

// mask keeps the low digits*4 bits.
func (f addressFormat) mask() uint64 {
	if f.digits >= maxHexDigits {
		return ^uint64(0)
	}
	return 1<<(uint(f.digits)*4) - 1
}

// parse lowercases s, drops every ':' and '.', and requires exactly f.digits
// hex digits to remain. Separator placement is not checked; any other
// deviation fails with a *ParseError naming the original input.
func (f addressFormat) parse(s string) (uint64, error) {
	stripped := make([]byte, 0, f.digits)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' || c == '.' {
			continue
		}
		if 'A' <= c && c <= 'F' {
			c += 'a' - 'A'
		}
		if len(stripped) == f.digits || !isHexChar(c) {
			return 0, &ParseError{Kind: f.kind, Input: s}
		}
		stripped = append(stripped, c)
	}
	if len(stripped) != f.digits {
		return 0, &ParseError{Kind: f.kind, Input: s}
	}

	v, err := ParseHex(string(stripped))
	if err != nil {
		return 0, &ParseError{Kind: f.kind, Input: s}
	}
	return v, nil
}

// appendText renders v in canonical form: lowercase digits with f.sep
// inserted after every f.group digits.
func (f addressFormat) appendText(dst []byte, v uint64) []byte {
	groups := f.digits / f.group
	for i := 0; i < groups; i++ {
		if i > 0 {
			dst = append(dst, f.sep)
		}
		shift := uint(f.digits-(i+1)*f.group) * 4
		dst = AppendHex(dst, v>>shift, f.group)
	}
	return dst
}

func (f addressFormat) format(v uint64) string {
	return string(f.appendText(make([]byte, 0, f.textLen()), v))
}

// stripSeparators removes exactly this format's separator byte.
func (f addressFormat) stripSeparators(text string) string {
	return strings.ReplaceAll(text, string(f.sep), "")
}

// normalize inserts separators into a run of f.digits stripped hex digits.
func (f addressFormat) normalize(stripped string) (string, error) {
	if len(stripped) != f.digits {
		return "", &ParseError{Kind: f.kind, Input: stripped}
	}
	v, err := ParseHex(stripped)
	if err != nil {
		return "", &ParseError{Kind: f.kind, Input: stripped}
	}
	return f.format(v), nil
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
