package base

import (
	"fmt"
	"reflect"

	"golang.org/x/exp/constraints"
)

// Integer is the element type of the bitwise reductions.
type Integer interface {
	constraints.Integer
}

type Float interface {
	constraints.Float
}

// Number is every element type a reduction accepts.
type Number interface {
	Integer | Float
}

type DataType int

const (
	U8 DataType = iota
	U16
	U32
	U64

	I8
	I16
	I32
	I64

	F32
	F64
)

var dtypeSizes = map[DataType]int{
	U8:  1,
	U16: 2,
	U32: 4,
	U64: 8,

	I8:  1,
	I16: 2,
	I32: 4,
	I64: 8,

	F32: 4,
	F64: 8,
}

func (t DataType) Size() int {
	return dtypeSizes[t]
}

var dtypeNames = map[DataType]string{
	U8:  "u8",
	U16: "u16",
	U32: "u32",
	U64: "u64",

	I8:  "i8",
	I16: "i16",
	I32: "i32",
	I64: "i64",

	F32: "f32",
	F64: "f64",
}

func (t DataType) String() string {
	return dtypeNames[t]
}

func (t DataType) IsInteger() bool {
	return t != F32 && t != F64
}

func ParseDataType(s string) (DataType, error) {
	for k, v := range dtypeNames {
		if s == v {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid data type %q", s)
}

var kindTypes = map[reflect.Kind]DataType{
	reflect.Uint8:   U8,
	reflect.Uint16:  U16,
	reflect.Uint32:  U32,
	reflect.Uint64:  U64,
	reflect.Int8:    I8,
	reflect.Int16:   I16,
	reflect.Int32:   I32,
	reflect.Int64:   I64,
	reflect.Float32: F32,
	reflect.Float64: F64,
}

// LookupType maps a Go type to its DataType by kind, so named types such as
// time.Duration map to their underlying representation.
func LookupType(t reflect.Type) (DataType, bool) {
	switch t.Kind() {
	case reflect.Int:
		return sizedInt(I32, I64, t.Size()), true
	case reflect.Uint, reflect.Uintptr:
		return sizedInt(U32, U64, t.Size()), true
	}
	dt, ok := kindTypes[t.Kind()]
	return dt, ok
}

func sizedInt(t32, t64 DataType, size uintptr) DataType {
	if size == 4 {
		return t32
	}
	return t64
}

func TypeOf[T Number]() DataType {
	dt, _ := LookupType(reflect.TypeFor[T]())
	return dt
}
