// Package codec implements the compact binary transform of spec §4.2: a day
// of 1-minute candles, or an hour of ticks, packed into a self-describing
// byte stream using adaptive-width delta encoding. The bit layout (reg_a /
// reg_b nibble packing, sentinel-as-most-negative-value) is grounded on
// _examples/original_source/include/trading-db/parts/
// qdb-compact-candles-dataset.hpp and qdb-compact-ticks-dataset.hpp.
package codec

import "encoding/binary"

// widthCode is one of {0,1,2,3}, mapping to byte widths {1,2,4,8}.
type widthCode = byte

var codeBytes = [4]int{1, 2, 4, 8}

// bytesFor returns the byte width for a width code.
func bytesFor(code widthCode) int { return codeBytes[code&0x03] }

// unsignedCode picks the minimal width code that can hold the unsigned
// value v (spec §4.2 "unsigned v -> byte code 0,1,2,3 for v < 2^8, ...").
func unsignedCode(v uint64) widthCode {
	switch {
	case v>>32 != 0:
		return 3
	case v>>16 != 0:
		return 2
	case v>>8 != 0:
		return 1
	default:
		return 0
	}
}

// signedCode picks the minimal width code that can hold a signed value of
// magnitude v (spec §4.2 "signed v (magnitude) -> code 0,1,2,3 for
// |v| <= 127, 32767, 2147483647, otherwise").
func signedCode(magnitude uint64) widthCode {
	switch {
	case magnitude <= 127:
		return 0
	case magnitude <= 32767:
		return 1
	case magnitude <= 2147483647:
		return 2
	default:
		return 3
	}
}

// absMagnitude returns |v| as a uint64, safe for v == math.MinInt64.
func absMagnitude(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

// sentinel returns the most-negative value representable in the width
// selected by code — the "absent sample" marker (spec §4.2, GLOSSARY).
func sentinel(code widthCode) int64 {
	switch code & 0x03 {
	case 0:
		return -128
	case 1:
		return -32768
	case 2:
		return -2147483648
	default:
		return -9223372036854775808
	}
}

// putUnsigned writes v into buf[off:] using the byte width of code.
// It does not check that v fits: a wider value is silently truncated, so
// callers must size the width from the actual data first (encoder
// invariant, never user input).
func putUnsigned(buf []byte, off int, code widthCode, v uint64) int {
	n := bytesFor(code)
	switch n {
	case 1:
		buf[off] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf[off:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf[off:], v)
	}
	return off + n
}

// getUnsigned reads an unsigned value of the byte width of code from
// buf[off:].
func getUnsigned(buf []byte, off int, code widthCode) (uint64, int) {
	n := bytesFor(code)
	var v uint64
	switch n {
	case 1:
		v = uint64(buf[off])
	case 2:
		v = uint64(binary.LittleEndian.Uint16(buf[off:]))
	case 4:
		v = uint64(binary.LittleEndian.Uint32(buf[off:]))
	case 8:
		v = binary.LittleEndian.Uint64(buf[off:])
	}
	return v, off + n
}

// putSigned writes v into buf[off:] using the byte width of code, as two's
// complement.
func putSigned(buf []byte, off int, code widthCode, v int64) int {
	n := bytesFor(code)
	switch n {
	case 1:
		buf[off] = byte(int8(v))
	case 2:
		binary.LittleEndian.PutUint16(buf[off:], uint16(int16(v)))
	case 4:
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v)))
	case 8:
		binary.LittleEndian.PutUint64(buf[off:], uint64(v))
	}
	return off + n
}

// getSigned reads a signed value of the byte width of code from buf[off:].
func getSigned(buf []byte, off int, code widthCode) (int64, int) {
	n := bytesFor(code)
	var v int64
	switch n {
	case 1:
		v = int64(int8(buf[off]))
	case 2:
		v = int64(int16(binary.LittleEndian.Uint16(buf[off:])))
	case 4:
		v = int64(int32(binary.LittleEndian.Uint32(buf[off:])))
	case 8:
		v = int64(binary.LittleEndian.Uint64(buf[off:]))
	}
	return v, off + n
}

// pow10 returns 10^n as a float64 for n in [0,15].
func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// quantize rounds price*scale to the nearest integer (spec §4.2 "prices
// quantize as round(price * 10^d_p)").
func quantize(value float64, factor float64) int64 {
	if value >= 0 {
		return int64(value*factor + 0.5)
	}
	return -int64(-value*factor + 0.5)
}
