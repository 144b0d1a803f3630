// internal/engine/tensor.go
package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Element is the set of Go types a tensor can hold.
type Element interface {
	float32 | float64 | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 | bool | string
}

// Tensor is a dense multi-dimensional value passed into or returned from a run.
// Data holds a typed slice ([]float32, []int64, ...) in row-major order.
// Float16 tensors carry their raw bits as []uint16.
type Tensor struct {
	Type  ElementType
	Shape []int64
	Data  any
}

// Feed maps input names to tensors for one run.
type Feed map[string]*Tensor

// NewTensor builds a tensor from a shape and a typed slice.
func NewTensor[T Element](shape []int64, data []T) (*Tensor, error) {
	t := &Tensor{Type: typeOf(any(data)), Shape: slices.Clone(shape), Data: data}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustTensor is like NewTensor but panics on error. Intended for tests and
// constant manifests.
func MustTensor[T Element](shape []int64, data []T) *Tensor {
	t, err := NewTensor(shape, data)
	if err != nil {
		panic(err)
	}
	return t
}

// ElementCount returns the number of elements of a concrete shape.
func ElementCount(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// Len returns the number of elements held in Data.
func (t *Tensor) Len() int {
	switch d := t.Data.(type) {
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []int8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []uint8:
		return len(d)
	case []uint16:
		return len(d)
	case []uint32:
		return len(d)
	case []uint64:
		return len(d)
	case []bool:
		return len(d)
	case []string:
		return len(d)
	}
	return -1
}

// Validate checks that Data matches Type and that the element count agrees
// with Shape.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil tensor", ErrInvalidTensor)
	}
	got := typeOf(t.Data)
	if got == Undefined || (got != t.Type && !(t.Type == Float16 && got == Uint16)) {
		return fmt.Errorf("%w: data of type %T does not match element type %s", ErrInvalidTensor, t.Data, t.Type)
	}
	for i, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension %d at index %d", ErrInvalidTensor, d, i)
		}
	}
	if want := ElementCount(t.Shape); int64(t.Len()) != want {
		return fmt.Errorf("%w: shape %v needs %d elements, got %d", ErrInvalidTensor, t.Shape, want, t.Len())
	}
	return nil
}

type tensorJSON struct {
	Type  ElementType     `json:"type"`
	Shape []int64         `json:"shape"`
	Data  json.RawMessage `json:"data"`
}

// Non-finite float elements are written as the strings "NaN", "Inf" and "-Inf".
const (
	tokenNaN    = "NaN"
	tokenPosInf = "Inf"
	tokenNegInf = "-Inf"
)

// MarshalJSON encodes the tensor as {"type":..,"shape":..,"data":[..]}.
func (t *Tensor) MarshalJSON() ([]byte, error) {
	var data []byte
	var err error
	switch d := t.Data.(type) {
	case []float32:
		data = encodeFloats(d, 32)
	case []float64:
		data = encodeFloats(d, 64)
	default:
		data, err = json.Marshal(t.Data)
	}
	if err != nil {
		return nil, err
	}
	shape := t.Shape
	if shape == nil {
		shape = []int64{}
	}
	return json.Marshal(tensorJSON{Type: t.Type, Shape: shape, Data: data})
}

// UnmarshalJSON decodes the format written by MarshalJSON and validates it.
func (t *Tensor) UnmarshalJSON(b []byte) error {
	var raw tensorJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := decodeData(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	t.Type, t.Shape, t.Data = raw.Type, raw.Shape, data
	return t.Validate()
}

func encodeFloats[T float32 | float64](data []T, bits int) []byte {
	if data == nil {
		return []byte("null")
	}
	buf := make([]byte, 0, 2+len(data)*8)
	buf = append(buf, '[')
	for i, v := range data {
		if i > 0 {
			buf = append(buf, ',')
		}
		f := float64(v)
		switch {
		case math.IsNaN(f):
			buf = strconv.AppendQuote(buf, tokenNaN)
		case math.IsInf(f, 1):
			buf = strconv.AppendQuote(buf, tokenPosInf)
		case math.IsInf(f, -1):
			buf = strconv.AppendQuote(buf, tokenNegInf)
		default:
			buf = strconv.AppendFloat(buf, f, 'g', -1, bits)
		}
	}
	return append(buf, ']')
}

func decodeFloats[T float32 | float64](raw json.RawMessage, bits int) ([]T, error) {
	out := []T{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTensor, err)
	}
	out = make([]T, len(items))
	for i, item := range items {
		if len(item) > 0 && item[0] == '"' {
			var token string
			if err := json.Unmarshal(item, &token); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidTensor, err)
			}
			switch token {
			case tokenNaN:
				out[i] = T(math.NaN())
			case tokenPosInf:
				out[i] = T(math.Inf(1))
			case tokenNegInf:
				out[i] = T(math.Inf(-1))
			default:
				return nil, fmt.Errorf("%w: invalid float %q", ErrInvalidTensor, token)
			}
			continue
		}
		f, err := strconv.ParseFloat(string(item), bits)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid float %s", ErrInvalidTensor, item)
		}
		out[i] = T(f)
	}
	return out, nil
}

func decodeData(typ ElementType, raw json.RawMessage) (any, error) {
	switch typ {
	case Float32:
		return decodeFloats[float32](raw, 32)
	case Float64:
		return decodeFloats[float64](raw, 64)
	case Int8:
		return decodeSlice[int8](raw)
	case Int16:
		return decodeSlice[int16](raw)
	case Int32:
		return decodeSlice[int32](raw)
	case Int64:
		return decodeSlice[int64](raw)
	case Uint8:
		// encoding/json writes []uint8 as base64, accept both forms.
		if len(raw) > 0 && raw[0] == '"' {
			var b []byte
			err := json.Unmarshal(raw, &b)
			return b, err
		}
		var ints []uint16
		if err := json.Unmarshal(raw, &ints); err != nil {
			return nil, err
		}
		b := make([]uint8, len(ints))
		for i, v := range ints {
			if v > 255 {
				return nil, fmt.Errorf("%w: uint8 value %d out of range", ErrInvalidTensor, v)
			}
			b[i] = uint8(v)
		}
		return b, nil
	case Uint16, Float16:
		return decodeSlice[uint16](raw)
	case Uint32:
		return decodeSlice[uint32](raw)
	case Uint64:
		return decodeSlice[uint64](raw)
	case Bool:
		return decodeSlice[bool](raw)
	case String:
		return decodeSlice[string](raw)
	}
	return nil, fmt.Errorf("%w: unsupported element type %s", ErrInvalidTensor, typ)
}

func decodeSlice[T Element](raw json.RawMessage) ([]T, error) {
	out := []T{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTensor, err)
	}
	return out, nil
}

func typeOf(data any) ElementType {
	switch data.(type) {
	case []float32:
		return Float32
	case []float64:
		return Float64
	case []int8:
		return Int8
	case []int16:
		return Int16
	case []int32:
		return Int32
	case []int64:
		return Int64
	case []uint8:
		return Uint8
	case []uint16:
		return Uint16
	case []uint32:
		return Uint32
	case []uint64:
		return Uint64
	case []bool:
		return Bool
	case []string:
		return String
	}
	return Undefined
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}
	return &Tensor{Type: t.Type, Shape: slices.Clone(t.Shape), Data: cloneData(t.Data)}
}

func cloneData(data any) any {
	switch d := data.(type) {
	case []float32:
		return slices.Clone(d)
	case []float64:
		return slices.Clone(d)
	case []int8:
		return slices.Clone(d)
	case []int16:
		return slices.Clone(d)
	case []int32:
		return slices.Clone(d)
	case []int64:
		return slices.Clone(d)
	case []uint8:
		return slices.Clone(d)
	case []uint16:
		return slices.Clone(d)
	case []uint32:
		return slices.Clone(d)
	case []uint64:
		return slices.Clone(d)
	case []bool:
		return slices.Clone(d)
	case []string:
		return slices.Clone(d)
	}
	return data
}
