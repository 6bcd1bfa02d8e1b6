// Package hexutil provides lookup-table hex helpers for the framing hot paths:
// chunk-size parsing, percent re-encoding of request targets and hex
// length substitution in placeholder documents.
package hexutil

// Hex character tables
const (
	HexUpper = "0123456789ABCDEF"
	HexLower = "0123456789abcdef"
)

// Pre-computed lookup tables
var (
	// URLEncoded contains "%XX" for each byte value (0-255) - uppercase
	URLEncoded [256]string

	// unhex maps an ASCII hex digit to its value; 0xFF marks non-digits
	unhex [256]byte
)

func init() {
	for i := 0; i < 256; i++ {
		URLEncoded[i] = "%" + string(HexUpper[i>>4]) + string(HexUpper[i&0x0F])
		unhex[i] = 0xFF
	}
	for i := 0; i < 16; i++ {
		unhex[HexLower[i]] = byte(i)
		unhex[HexUpper[i]] = byte(i)
	}
}

// Unhex returns the value of a single hex digit.
func Unhex(c byte) (byte, bool) {
	v := unhex[c]
	return v, v != 0xFF
}

// ParseUint parses an unsigned hex number of at most maxDigits digits.
// It reports false for empty input, any non-hex byte, too many digits, or
// a value that does not fit in int64.
func ParseUint(b []byte, maxDigits int) (int64, bool) {
	if len(b) == 0 || len(b) > maxDigits {
		return 0, false
	}
	var n uint64
	for _, c := range b {
		v, ok := Unhex(c)
		if !ok {
			return 0, false
		}
		n = n<<4 | uint64(v)
	}
	if n > 1<<63-1 {
		return 0, false
	}
	return int64(n), true
}

// AppendUint appends n as lowercase hex without leading zeros.
func AppendUint(dst []byte, n uint64) []byte {
	if n == 0 {
		return append(dst, '0')
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = HexLower[n&0x0F]
		n >>= 4
	}
	return append(dst, buf[i:]...)
}

// AppendPercent appends b as %XX (uppercase).
func AppendPercent(dst []byte, b byte) []byte {
	return append(dst, URLEncoded[b]...)
}

// Unpercent decodes %XX sequences in b. Malformed escapes are copied
// through verbatim, the way lenient servers treat them.
func Unpercent(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '%' && i+2 < len(b) {
			hi, ok1 := Unhex(b[i+1])
			lo, ok2 := Unhex(b[i+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, b[i])
	}
	return out
}
