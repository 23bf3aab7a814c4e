package types

import "fmt"

// Dtype identifies the sample type of every element in the array.
// The ten supported types cover the unsigned, signed, and floating-point
// families at the widths produced by scientific cameras.
type Dtype uint8

const (
	DtypeUint8 Dtype = iota
	DtypeUint16
	DtypeUint32
	DtypeUint64
	DtypeInt8
	DtypeInt16
	DtypeInt32
	DtypeInt64
	DtypeFloat32
	DtypeFloat64

	dtypeCount
)

var dtypeNames = [dtypeCount]string{
	DtypeUint8:   "uint8",
	DtypeUint16:  "uint16",
	DtypeUint32:  "uint32",
	DtypeUint64:  "uint64",
	DtypeInt8:    "int8",
	DtypeInt16:   "int16",
	DtypeInt32:   "int32",
	DtypeInt64:   "int64",
	DtypeFloat32: "float32",
	DtypeFloat64: "float64",
}

var dtypeSizes = [dtypeCount]int{
	DtypeUint8:   1,
	DtypeUint16:  2,
	DtypeUint32:  4,
	DtypeUint64:  8,
	DtypeInt8:    1,
	DtypeInt16:   2,
	DtypeInt32:   4,
	DtypeInt64:   8,
	DtypeFloat32: 4,
	DtypeFloat64: 8,
}

// numpy array-protocol type strings, little-endian. Single-byte types use
// the "not relevant" byte-order marker per the protocol.
var dtypeTypestrs = [dtypeCount]string{
	DtypeUint8:   "|u1",
	DtypeUint16:  "<u2",
	DtypeUint32:  "<u4",
	DtypeUint64:  "<u8",
	DtypeInt8:    "|i1",
	DtypeInt16:   "<i2",
	DtypeInt32:   "<i4",
	DtypeInt64:   "<i8",
	DtypeFloat32: "<f4",
	DtypeFloat64: "<f8",
}

// Valid reports whether dt is one of the ten supported types.
func (dt Dtype) Valid() bool { return dt < dtypeCount }

// Size returns the width of one sample in bytes.
func (dt Dtype) Size() int {
	if !dt.Valid() {
		return 0
	}
	return dtypeSizes[dt]
}

// String returns the Zarr v3 data_type name (e.g. "uint16").
func (dt Dtype) String() string {
	if !dt.Valid() {
		return fmt.Sprintf("Dtype(%d)", uint8(dt))
	}
	return dtypeNames[dt]
}

// Typestr returns the numpy typestr used by Zarr v2 metadata (e.g. "<u2").
func (dt Dtype) Typestr() string {
	if !dt.Valid() {
		return ""
	}
	return dtypeTypestrs[dt]
}

// ParseDtype resolves a Zarr v3 data_type name to a Dtype.
func ParseDtype(s string) (Dtype, error) {
	for dt, name := range dtypeNames {
		if name == s {
			return Dtype(dt), nil
		}
	}
	return 0, fmt.Errorf("unsupported data type: %q", s)
}
