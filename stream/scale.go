package stream

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/justapithecus/strata/types"
)

// Downsampling operates in float64 and truncates back to the target type,
// so that averaging integer samples carries no overflow bias. The sample
// codecs below are the single dispatch point over the ten dtypes; the
// scale and average loops themselves are type-free.

// samplesToFloat decodes little-endian samples into vals.
func samplesToFloat(src []byte, dt types.Dtype, vals []float64) {
	switch dt {
	case types.DtypeUint8:
		for i := range vals {
			vals[i] = float64(src[i])
		}
	case types.DtypeUint16:
		for i := range vals {
			vals[i] = float64(binary.LittleEndian.Uint16(src[2*i:]))
		}
	case types.DtypeUint32:
		for i := range vals {
			vals[i] = float64(binary.LittleEndian.Uint32(src[4*i:]))
		}
	case types.DtypeUint64:
		for i := range vals {
			vals[i] = float64(binary.LittleEndian.Uint64(src[8*i:]))
		}
	case types.DtypeInt8:
		for i := range vals {
			vals[i] = float64(int8(src[i]))
		}
	case types.DtypeInt16:
		for i := range vals {
			vals[i] = float64(int16(binary.LittleEndian.Uint16(src[2*i:])))
		}
	case types.DtypeInt32:
		for i := range vals {
			vals[i] = float64(int32(binary.LittleEndian.Uint32(src[4*i:])))
		}
	case types.DtypeInt64:
		for i := range vals {
			vals[i] = float64(int64(binary.LittleEndian.Uint64(src[8*i:])))
		}
	case types.DtypeFloat32:
		for i := range vals {
			vals[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:])))
		}
	case types.DtypeFloat64:
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[8*i:]))
		}
	}
}

// floatToSamples encodes vals as little-endian samples into dst,
// truncating integer targets toward zero.
func floatToSamples(vals []float64, dt types.Dtype, dst []byte) {
	switch dt {
	case types.DtypeUint8:
		for i, v := range vals {
			dst[i] = uint8(v)
		}
	case types.DtypeUint16:
		for i, v := range vals {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(v))
		}
	case types.DtypeUint32:
		for i, v := range vals {
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(v))
		}
	case types.DtypeUint64:
		for i, v := range vals {
			binary.LittleEndian.PutUint64(dst[8*i:], uint64(v))
		}
	case types.DtypeInt8:
		for i, v := range vals {
			dst[i] = uint8(int8(v))
		}
	case types.DtypeInt16:
		for i, v := range vals {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(int16(v)))
		}
	case types.DtypeInt32:
		for i, v := range vals {
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(int32(v)))
		}
	case types.DtypeInt64:
		for i, v := range vals {
			binary.LittleEndian.PutUint64(dst[8*i:], uint64(int64(v)))
		}
	case types.DtypeFloat32:
		for i, v := range vals {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(float32(v)))
		}
	case types.DtypeFloat64:
		for i, v := range vals {
			binary.LittleEndian.PutUint64(dst[8*i:], math.Float64bits(v))
		}
	}
}

// scalePlane downsamples one width x height plane by the 2x2 arithmetic
// mean. An odd edge duplicates its last column or row. Returns the
// downsampled plane and its extents.
func scalePlane(src []byte, dt types.Dtype, width, height int) ([]byte, int, int) {
	es := dt.Size()

	in := make([]float64, width*height)
	samplesToFloat(src[:width*height*es], dt, in)

	newW := (width + width%2) / 2
	newH := (height + height%2) / 2

	out := make([]float64, newW*newH)
	di := 0
	for row := 0; row < height; row += 2 {
		down := 1
		if row == height-1 {
			down = 0 // duplicate the last row
		}
		for col := 0; col < width; col += 2 {
			right := 1
			if col == width-1 {
				right = 0 // duplicate the last column
			}
			idx := row*width + col
			here := in[idx]
			r := in[idx+right]
			d := in[idx+down*width]
			diag := in[idx+down*width+right]
			out[di] = 0.25 * (here + r + d + diag)
			di++
		}
	}

	dst := make([]byte, newW*newH*es)
	floatToSamples(out, dt, dst)
	return dst, newW, newH
}

// scaleFrame downsamples every Y-X plane of a frame slab. Axes between
// the append and spatial axes are left at full extent.
func scaleFrame(src []byte, dt types.Dtype, width, height int) ([]byte, int, int) {
	es := dt.Size()
	planeBytes := width * height * es
	planes := len(src) / planeBytes

	if planes == 1 {
		return scalePlane(src, dt, width, height)
	}

	var (
		dst  []byte
		newW int
		newH int
	)
	for p := 0; p < planes; p++ {
		scaled, w, h := scalePlane(src[p*planeBytes:(p+1)*planeBytes], dt, width, height)
		dst = append(dst, scaled...)
		newW, newH = w, h
	}
	return dst, newW, newH
}

// averageTwoFrames replaces dst with the elementwise mean of dst and src.
// Both buffers must be the same length.
func averageTwoFrames(dst, src []byte, dt types.Dtype) error {
	if len(dst) != len(src) {
		return fmt.Errorf("expecting %d bytes in destination, got %d", len(src), len(dst))
	}

	n := len(dst) / dt.Size()
	a := make([]float64, n)
	b := make([]float64, n)
	samplesToFloat(dst, dt, a)
	samplesToFloat(src, dt, b)
	for i := range a {
		a[i] = 0.5 * (a[i] + b[i])
	}
	floatToSamples(a, dt, dst)
	return nil
}
