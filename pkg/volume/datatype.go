package volume

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DataType is the element type of the exported label volume.
type DataType int

const (
	Char   DataType = iota + 1 // MET_CHAR, signed 8-bit
	UChar                      // MET_UCHAR, unsigned 8-bit
	Short                      // MET_SHORT, signed 16-bit
	UShort                     // MET_USHORT, unsigned 16-bit
	Int                        // MET_INT, signed 32-bit
	UInt                       // MET_UINT, unsigned 32-bit
	Float                      // MET_FLOAT, 32-bit IEEE float
)

// DefaultDataType is used when no data type is configured.
const DefaultDataType = Float

var dataTypeNames = map[DataType]string{
	Char:   "MET_CHAR",
	UChar:  "MET_UCHAR",
	Short:  "MET_SHORT",
	UShort: "MET_USHORT",
	Int:    "MET_INT",
	UInt:   "MET_UINT",
	Float:  "MET_FLOAT",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// Valid reports whether t is one of the enumerated types.
func (t DataType) Valid() bool {
	_, ok := dataTypeNames[t]
	return ok
}

// ParseDataType accepts the MetaImage names (MET_USHORT) case-insensitively,
// with or without the MET_ prefix.
func ParseDataType(s string) (DataType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(name, "MET_") {
		name = "MET_" + name
	}
	for t, n := range dataTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, configErrorf("data type %q is not one of MET_CHAR, MET_UCHAR, MET_SHORT, MET_USHORT, MET_INT, MET_UINT, MET_FLOAT", s)
}

// Size returns the encoded size of one element in bytes.
func (t DataType) Size() int {
	switch t {
	case Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	}
	return 0
}

// MaxLabel is the largest label value t stores exactly.
func (t DataType) MaxLabel() Label {
	switch t {
	case Char:
		return math.MaxInt8
	case UChar:
		return math.MaxUint8
	case Short:
		return math.MaxInt16
	case UShort:
		return math.MaxUint16
	case Int:
		return math.MaxInt32
	case UInt:
		return math.MaxUint32
	case Float:
		return 1 << 24
	}
	return 0
}

// CanHold reports whether label is representable without loss.
func (t DataType) CanHold(label Label) bool {
	return t.Valid() && label <= t.MaxLabel()
}

// put encodes v little-endian into b, which must be Size() bytes long.
func (t DataType) put(b []byte, v Label) {
	switch t {
	case Char, UChar:
		b[0] = byte(v)
	case Short, UShort:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case Int, UInt:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case Float:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

// get decodes one element. Negative or fractional values are not labels.
func (t DataType) get(b []byte) (Label, error) {
	switch t {
	case Char:
		v := int8(b[0])
		if v < 0 {
			return 0, configErrorf("negative label %d in %s data", v, t)
		}
		return Label(v), nil
	case UChar:
		return Label(b[0]), nil
	case Short:
		v := int16(binary.LittleEndian.Uint16(b))
		if v < 0 {
			return 0, configErrorf("negative label %d in %s data", v, t)
		}
		return Label(v), nil
	case UShort:
		return Label(binary.LittleEndian.Uint16(b)), nil
	case Int:
		v := int32(binary.LittleEndian.Uint32(b))
		if v < 0 {
			return 0, configErrorf("negative label %d in %s data", v, t)
		}
		return Label(v), nil
	case UInt:
		return Label(binary.LittleEndian.Uint32(b)), nil
	case Float:
		f := math.Float32frombits(binary.LittleEndian.Uint32(b))
		if f < 0 || f != float32(math.Trunc(float64(f))) || float64(f) > float64(Float.MaxLabel()) {
			return 0, configErrorf("value %v in %s data is not a label", f, t)
		}
		return Label(f), nil
	}
	return 0, configErrorf("unsupported data type %s", t)
}
