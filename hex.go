package id

const hexDigits = "0123456789abcdef"

// maxHexDigits is the widest digit run that fits in a uint64.
const maxHexDigits = 16

// ParseHex interprets s as a base-16 unsigned integer. Digits may be upper or
// lower case. ParseHex does not strip separators or check the digit count
// against any expected width; callers validate shape before calling it.
func ParseHex(s string) (uint64, error) {
	if len(s) == 0 || len(s) > maxHexDigits {
		return 0, &FormatError{Input: s, Offset: -1}
	}

	var v uint64
	for i := 0; i < len(s); i++ {
		d, ok := fromHexChar(s[i])
		if !ok {
			return 0, &FormatError{Input: s, Offset: i}
		}
		v = v<<4 | uint64(d)
	}
	return v, nil
}

// AppendHex appends exactly width lowercase hex digits of v to dst, left
// padded with zeros. Only the low width*4 bits of v are rendered.
func AppendHex(dst []byte, v uint64, width int) []byte {
	for shift := (width - 1) * 4; shift >= 0; shift -= 4 {
		dst = append(dst, hexDigits[(v>>uint(shift))&0xf])
	}
	return dst
}

// scanHexLenient accumulates every hex digit in s and ignores anything else.
// Only the unchecked Node path uses it; digits beyond 64 bits shift out.
func scanHexLenient(s string) uint64 {
	var v uint64
	for i := 0; i < len(s); i++ {
		if d, ok := fromHexChar(s[i]); ok {
			v = v<<4 | uint64(d)
		}
	}
	return v
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isHexChar(c byte) bool {
	_, ok := fromHexChar(c)
	return ok
}
