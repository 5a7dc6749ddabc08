package polyphase

import (
	"math"

	"github.com/pkg/errors"
)

// Width is the element size, in bits, of an Array.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// WidthFor returns the narrowest width that can hold max.
func WidthFor(max uint64) Width {
	switch {
	case max <= math.MaxUint8:
		return Width8
	case max <= math.MaxUint16:
		return Width16
	case max <= math.MaxUint32:
		return Width32
	default:
		return Width64
	}
}

// Array is a fixed-length array of unsigned integers stored at the
// width chosen when it was made. Exactly one of the slices is in use,
// selected by width.
type Array struct {
	width Width
	u8    []uint8
	u16   []uint16
	u32   []uint32
	u64   []uint64
}

// NewArray returns a zeroed array of n elements wide enough to store
// values up to max.
func NewArray(n int, max uint64) Array {
	a := Array{width: WidthFor(max)}
	switch a.width {
	case Width8:
		a.u8 = make([]uint8, n)
	case Width16:
		a.u16 = make([]uint16, n)
	case Width32:
		a.u32 = make([]uint32, n)
	default:
		a.u64 = make([]uint64, n)
	}
	return a
}

// Width returns the element width.
func (a *Array) Width() Width {
	return a.width
}

// Len returns the number of elements.
func (a *Array) Len() int {
	switch a.width {
	case Width8:
		return len(a.u8)
	case Width16:
		return len(a.u16)
	case Width32:
		return len(a.u32)
	default:
		return len(a.u64)
	}
}

// At returns element i.
func (a *Array) At(i int) uint64 {
	switch a.width {
	case Width8:
		return uint64(a.u8[i])
	case Width16:
		return uint64(a.u16[i])
	case Width32:
		return uint64(a.u32[i])
	default:
		return a.u64[i]
	}
}

// appendRange appends elements [start, end) to dst.
func (a *Array) appendRange(dst []uint64, start, end int) []uint64 {
	switch a.width {
	case Width8:
		for _, v := range a.u8[start:end] {
			dst = append(dst, uint64(v))
		}
	case Width16:
		for _, v := range a.u16[start:end] {
			dst = append(dst, uint64(v))
		}
	case Width32:
		for _, v := range a.u32[start:end] {
			dst = append(dst, uint64(v))
		}
	default:
		dst = append(dst, a.u64[start:end]...)
	}
	return dst
}

// set stores v at i. v must fit the array's width.
func (a *Array) set(i int, v uint64) {
	switch a.width {
	case Width8:
		a.u8[i] = uint8(v)
	case Width16:
		a.u16[i] = uint16(v)
	case Width32:
		a.u32[i] = uint32(v)
	default:
		a.u64[i] = v
	}
}

// arrayOf wraps a slice decoded from storage.
func arrayOf(data interface{}) (Array, error) {
	switch data := data.(type) {
	case []uint8:
		return Array{width: Width8, u8: data}, nil
	case []uint16:
		return Array{width: Width16, u16: data}, nil
	case []uint32:
		return Array{width: Width32, u32: data}, nil
	case []uint64:
		return Array{width: Width64, u64: data}, nil
	default:
		return Array{}, errors.Errorf("unsupported array type %T", data)
	}
}
