package codec

import "github.com/justapithecus/strata/types"

// applyShuffle returns src filtered per the configured shuffle, or src
// itself when no filtering applies.
func applyShuffle(src []byte, shuffle types.Shuffle, typeSize int) []byte {
	if typeSize <= 1 && shuffle == types.ShuffleByte {
		return src
	}
	switch shuffle {
	case types.ShuffleByte:
		return byteShuffle(src, typeSize)
	case types.ShuffleBit:
		return bitShuffle(src, typeSize)
	default:
		return src
	}
}

// byteShuffle transposes the byte planes of src: all first bytes of every
// sample, then all second bytes, and so on. Trailing bytes that do not
// form a whole sample are copied through unchanged.
func byteShuffle(src []byte, typeSize int) []byte {
	nelem := len(src) / typeSize
	dst := make([]byte, len(src))

	for j := 0; j < typeSize; j++ {
		plane := dst[j*nelem : (j+1)*nelem]
		for i := 0; i < nelem; i++ {
			plane[i] = src[i*typeSize+j]
		}
	}
	copy(dst[nelem*typeSize:], src[nelem*typeSize:])
	return dst
}

// byteUnshuffle inverts byteShuffle.
func byteUnshuffle(src []byte, typeSize int) []byte {
	nelem := len(src) / typeSize
	dst := make([]byte, len(src))

	for j := 0; j < typeSize; j++ {
		plane := src[j*nelem : (j+1)*nelem]
		for i := 0; i < nelem; i++ {
			dst[i*typeSize+j] = plane[i]
		}
	}
	copy(dst[nelem*typeSize:], src[nelem*typeSize:])
	return dst
}

// bitShuffle transposes the bit planes of whole groups of eight samples.
// Samples beyond the last whole group, and trailing bytes that do not form
// a whole sample, are copied through unchanged.
func bitShuffle(src []byte, typeSize int) []byte {
	nelem := len(src) / typeSize
	nblock := (nelem / 8) * 8
	nbits := typeSize * 8
	dst := make([]byte, len(src))

	// dst holds nbits planes of nblock/8 bytes each.
	planeBytes := nblock / 8
	for b := 0; b < nbits; b++ {
		plane := dst[b*planeBytes : (b+1)*planeBytes]
		for i := 0; i < nblock; i++ {
			bit := (src[i*typeSize+b/8] >> uint(b%8)) & 1
			plane[i/8] |= bit << uint(i%8)
		}
	}
	copy(dst[nblock*typeSize:], src[nblock*typeSize:])
	return dst
}

// bitUnshuffle inverts bitShuffle.
func bitUnshuffle(src []byte, typeSize int) []byte {
	nelem := len(src) / typeSize
	nblock := (nelem / 8) * 8
	nbits := typeSize * 8
	dst := make([]byte, len(src))

	planeBytes := nblock / 8
	for b := 0; b < nbits; b++ {
		plane := src[b*planeBytes : (b+1)*planeBytes]
		for i := 0; i < nblock; i++ {
			bit := (plane[i/8] >> uint(i%8)) & 1
			dst[i*typeSize+b/8] |= bit << uint(b%8)
		}
	}
	copy(dst[nblock*typeSize:], src[nblock*typeSize:])
	return dst
}
