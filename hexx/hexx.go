// Package hexx renders integers and byte runs as fixed width upper case
// hex without going through fmt.
package hexx

import "encoding/binary"

// spread32 turns the 8 nibbles of x into 8 ascii hex digits packed big
// endian into a uint64.
func spread32(x uint32) (v uint64) {
	v = uint64(uint16(x)) | uint64(x)<<16
	v = (v & 0x000000FF000000FF) | ((v & 0x0000FF000000FF00) << 8)
	v = (v & 0x000F000F000F000F) | ((v & 0x00F000F000F000F0) << 4)
	return v + 0x3030303030303030 + 7*((v+0x0606060606060606)>>4&0x0101010101010101)
}

func gather32(x uint64) (v uint32) {
	x = 9*(x&0x4040404040404040>>6) + (x & 0x0f0f0f0f0f0f0f0f)
	x = (x | x>>4) & 0x00FF00FF00FF00FF
	x = (x | x>>8) & 0x0000FFFF0000FFFF
	return uint32(x | x>>16)
}

func spread8(x uint8) (v uint16) {
	v = uint16(x)
	v = (v & 0x000F) | ((v & 0x00F0) << 4)
	return v + 0x3030 + 7*((v+0x0606)>>4&0x0101)
}

// Append32 appends the 8 digit hex form of x to dst.
func Append32(dst []byte, x uint32) []byte {
	return binary.BigEndian.AppendUint64(dst, spread32(x))
}

// Append8 appends the 2 digit hex form of x to dst.
func Append8(dst []byte, x uint8) []byte {
	return binary.BigEndian.AppendUint16(dst, spread8(x))
}

// AppendBytes appends the hex form of every byte of src, separated by
// spaces.
func AppendBytes(dst, src []byte) []byte {
	for i, b := range src {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = Append8(dst, b)
	}
	return dst
}

// Parse32 decodes 8 upper case hex digits. It reports false if src is not
// 8 bytes of 0-9 or A-F.
func Parse32(src []byte) (uint32, bool) {
	if len(src) != 8 {
		return 0, false
	}
	for _, c := range src {
		if !('0' <= c && c <= '9' || 'A' <= c && c <= 'F') {
			return 0, false
		}
	}
	return gather32(binary.BigEndian.Uint64(src)), true
}
