// Package codec converts variable payloads between the nested row-major
// slices produced by the NetCDF readers and the flat little-endian byte
// buffers stored in array tiles.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-thrower"
)

var (
	ErrBadType = errors.New("unsupported element type")
	ErrRagged  = errors.New("payload is not rectangular")
	ErrShape   = errors.New("payload shape mismatch")
)

// Type identifies the element type of a payload.  The names match the
// GoType() strings of the NetCDF readers.
type Type string

const (
	Int8    Type = "int8"
	Uint8   Type = "uint8"
	Int16   Type = "int16"
	Uint16  Type = "uint16"
	Int32   Type = "int32"
	Uint32  Type = "uint32"
	Int64   Type = "int64"
	Uint64  Type = "uint64"
	Float32 Type = "float32"
	Float64 Type = "float64"
)

var sizes = map[Type]int64{
	Int8: 1, Uint8: 1,
	Int16: 2, Uint16: 2,
	Int32: 4, Uint32: 4, Float32: 4,
	Int64: 8, Uint64: 8, Float64: 8,
}

// zarr v2 dtype encodings, little-endian.
var zarrCodes = map[Type]string{
	Int8: "|i1", Uint8: "|u1",
	Int16: "<i2", Uint16: "<u2",
	Int32: "<i4", Uint32: "<u4",
	Int64: "<i8", Uint64: "<u8",
	Float32: "<f4", Float64: "<f8",
}

// FromGoType maps a reader's GoType() name onto a codec type.  Character
// and user-defined types are rejected: only numeric payloads can be
// materialized.
func FromGoType(name string) (Type, error) {
	t := Type(name)
	if _, ok := sizes[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrBadType, name)
	}
	return t, nil
}

// Size returns the element size in bytes, or 0 for an unknown type.
func (t Type) Size() int64 {
	return sizes[t]
}

// ZarrCode returns the zarr v2 dtype string for the type.
func (t Type) ZarrCode() string {
	return zarrCodes[t]
}

// FromZarrCode is the inverse of ZarrCode.
func FromZarrCode(code string) (Type, error) {
	for t, c := range zarrCodes {
		if c == code {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: zarr dtype %q", ErrBadType, code)
}

var kinds = map[reflect.Kind]Type{
	reflect.Int8:    Int8,
	reflect.Uint8:   Uint8,
	reflect.Int16:   Int16,
	reflect.Uint16:  Uint16,
	reflect.Int32:   Int32,
	reflect.Uint32:  Uint32,
	reflect.Int64:   Int64,
	reflect.Uint64:  Uint64,
	reflect.Float32: Float32,
	reflect.Float64: Float64,
}

// Flatten encodes a nested row-major payload into little-endian bytes,
// returning the inferred shape and element type.
func Flatten(v any) (data []byte, shape []int64, t Type, err error) {
	defer thrower.RecoverError(&err)
	rv := reflect.ValueOf(v)

	elem := rv.Type()
	for elem.Kind() == reflect.Slice {
		elem = elem.Elem()
	}
	t, ok := kinds[elem.Kind()]
	if !ok {
		return nil, nil, "", fmt.Errorf("%w: %v", ErrBadType, elem)
	}

	walk := rv
	for walk.Kind() == reflect.Slice {
		shape = append(shape, int64(walk.Len()))
		if walk.Len() == 0 {
			return nil, nil, "", fmt.Errorf("%w: empty slice", ErrShape)
		}
		walk = walk.Index(0)
	}

	n := int64(1)
	for _, s := range shape {
		n *= s
	}
	data = make([]byte, n*t.Size())
	off := int64(0)
	store(data, &off, rv, shape, t)
	return data, shape, t, nil
}

func store(buf []byte, off *int64, rv reflect.Value, shape []int64, t Type) {
	if len(shape) == 0 {
		putElem(buf, *off, rv, t)
		*off += t.Size()
		return
	}
	if int64(rv.Len()) != shape[0] {
		thrower.Throw(fmt.Errorf("%w: got %d, want %d", ErrRagged, rv.Len(), shape[0]))
	}
	for i := 0; i < rv.Len(); i++ {
		store(buf, off, rv.Index(i), shape[1:], t)
	}
}

func putElem(buf []byte, off int64, rv reflect.Value, t Type) {
	switch t {
	case Int8:
		buf[off] = byte(rv.Int())
	case Uint8:
		buf[off] = byte(rv.Uint())
	case Int16:
		binary.LittleEndian.PutUint16(buf[off:], uint16(rv.Int()))
	case Uint16:
		binary.LittleEndian.PutUint16(buf[off:], uint16(rv.Uint()))
	case Int32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(rv.Int()))
	case Uint32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(rv.Uint()))
	case Int64:
		binary.LittleEndian.PutUint64(buf[off:], uint64(rv.Int()))
	case Uint64:
		binary.LittleEndian.PutUint64(buf[off:], rv.Uint())
	case Float32:
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(rv.Float())))
	case Float64:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(rv.Float()))
	default:
		thrower.Throw(ErrBadType)
	}
}

var goTypes = map[Type]reflect.Type{
	Int8:    reflect.TypeOf(int8(0)),
	Uint8:   reflect.TypeOf(uint8(0)),
	Int16:   reflect.TypeOf(int16(0)),
	Uint16:  reflect.TypeOf(uint16(0)),
	Int32:   reflect.TypeOf(int32(0)),
	Uint32:  reflect.TypeOf(uint32(0)),
	Int64:   reflect.TypeOf(int64(0)),
	Uint64:  reflect.TypeOf(uint64(0)),
	Float32: reflect.TypeOf(float32(0)),
	Float64: reflect.TypeOf(float64(0)),
}

// Unflatten decodes little-endian bytes back into nested row-major slices
// of the given shape, the same representation the readers produce.
func Unflatten(data []byte, shape []int64, t Type) (any, error) {
	elem, ok := goTypes[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadType, t)
	}
	n := int64(1)
	for _, s := range shape {
		n *= s
	}
	if int64(len(data)) != n*t.Size() {
		return nil, fmt.Errorf("%w: %d bytes for %d elements of %s",
			ErrShape, len(data), n, t)
	}
	off := int64(0)
	return load(data, &off, shape, elem, t).Interface(), nil
}

func load(buf []byte, off *int64, shape []int64, elem reflect.Type, t Type) reflect.Value {
	if len(shape) == 0 {
		v := getElem(buf, *off, elem, t)
		*off += t.Size()
		return v
	}
	st := elem
	for range shape {
		st = reflect.SliceOf(st)
	}
	out := reflect.MakeSlice(st, int(shape[0]), int(shape[0]))
	for i := int64(0); i < shape[0]; i++ {
		out.Index(int(i)).Set(load(buf, off, shape[1:], elem, t))
	}
	return out
}

func getElem(buf []byte, off int64, elem reflect.Type, t Type) reflect.Value {
	v := reflect.New(elem).Elem()
	switch t {
	case Int8:
		v.SetInt(int64(int8(buf[off])))
	case Uint8:
		v.SetUint(uint64(buf[off]))
	case Int16:
		v.SetInt(int64(int16(binary.LittleEndian.Uint16(buf[off:]))))
	case Uint16:
		v.SetUint(uint64(binary.LittleEndian.Uint16(buf[off:])))
	case Int32:
		v.SetInt(int64(int32(binary.LittleEndian.Uint32(buf[off:]))))
	case Uint32:
		v.SetUint(uint64(binary.LittleEndian.Uint32(buf[off:])))
	case Int64:
		v.SetInt(int64(binary.LittleEndian.Uint64(buf[off:])))
	case Uint64:
		v.SetUint(binary.LittleEndian.Uint64(buf[off:]))
	case Float32:
		v.SetFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))))
	case Float64:
		v.SetFloat(math.Float64frombits(binary.LittleEndian.Uint64(buf[off:])))
	}
	return v
}
