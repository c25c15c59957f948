// Package valuecodec implements the boundary between host Go values and the
// engine's columnar vectors: the DataKnot construction and get rules of
// spec.md §6.1. It is the one place a raw Go value (scalar, []interface{},
// knots.Tuple, or the Missing marker) is turned into a (vector.Vector,
// shape.Shape, cardinality.Cardinality) triple, and the one place a block's
// row is turned back into a host value — shared by package knots (the
// DataKnot boundary) and internal/assembler (Lift(v) constants), so both
// sides of the engine agree on the same construction rules without an
// import cycle between them.
package valuecodec

import (
	"reflect"

	"github.com/dataknots/dataknots/internal/cardinality"
	"github.com/dataknots/dataknots/internal/shape"
	"github.com/dataknots/dataknots/internal/vector"
)

// Missing is the sentinel for an absent optional value — spec.md's
// "missing" marker, shared with package pipeline (internal/vector.Missing)
// so both sides of the cover/uncover boundary recognize the same marker.
type Missing = vector.Missing

// Tuple is the host-side stand-in for a named or positional row tuple —
// spec.md's "(x=1,y=2)" value — since Go has no anonymous named-tuple
// literal. Labels is empty for a positional tuple.
type Tuple struct {
	Labels []string
	Values []interface{}
}

// Get returns the value bound to name, if present.
func (t Tuple) Get(name string) (interface{}, bool) {
	for i, l := range t.Labels {
		if l == name {
			return t.Values[i], true
		}
	}
	return nil, false
}

// Pair constructs a one-field Tuple holding value under name.
func Pair(name string, value interface{}) Tuple {
	return Tuple{Labels: []string{name}, Values: []interface{}{value}}
}

// ToBlock converts a raw host value into its element vector, element shape,
// and declared cardinality, per spec.md §6.1's construction rules: a scalar
// becomes a one-element x1to1 block; a []interface{} vector becomes an
// x0toN block; Missing becomes an empty x0to1 block; a Tuple becomes a
// TupleOf-shaped single element.
func ToBlock(v interface{}) (vector.Vector, shape.Shape, cardinality.Cardinality) {
	switch vv := v.(type) {
	case Missing:
		return vector.Slice{}, shape.ValueOf{}, cardinality.X0to1
	case nil:
		return vector.Slice{}, shape.ValueOf{}, cardinality.X0to1
	case []interface{}:
		elemShape := elemShapeOf(vv)
		cols := make(vector.Slice, len(vv))
		copy(cols, vv)
		return cols, elemShape, cardinality.X0toN
	case Tuple:
		cols, colShapes := tupleColumns(vv)
		tupShape := shape.TupleOf{Labels: vv.Labels, Columns: colShapes}
		tv := &vector.TupleVector{Labels: vv.Labels, Length: 1, Columns: cols}
		return tv, tupShape, cardinality.X1to1
	default:
		return vector.Slice{vv}, shape.ValueOf{Type: reflect.TypeOf(v)}, cardinality.X1to1
	}
}

func elemShapeOf(vv []interface{}) shape.Shape {
	if len(vv) == 0 {
		return shape.ValueOf{}
	}
	return shape.ValueOf{Type: reflect.TypeOf(vv[0])}
}

// tupleColumns builds one length-1 column per field, recursing through
// ToBlock so a plural, optional, or nested-tuple field gets its proper typed
// BlockVector/TupleVector column rather than a raw Go value sitting
// unrecognized inside a Slice.
func tupleColumns(t Tuple) ([]vector.Vector, []shape.Shape) {
	cols := make([]vector.Vector, len(t.Values))
	shapes := make([]shape.Shape, len(t.Values))
	for i, v := range t.Values {
		elems, elemShape, card := ToBlock(v)
		if card == cardinality.X1to1 {
			cols[i] = elems
			shapes[i] = elemShape
			continue
		}
		cols[i] = &vector.BlockVector{Offsets: []int{1, elems.Len() + 1}, Elements: elems, Card: card}
		shapes[i] = shape.BlockOf{Elem: elemShape, Card: card}
	}
	return cols, shapes
}

// FromBlock materializes row i of bv back into a host value, recursively
// unwrapping nested containers — the `get` accessor of spec.md §6.1: a
// regular (x1to1) row is the single value; an optional-empty row is
// Missing{}; a plural row is a []interface{}; a TupleVector row becomes a
// Tuple.
func FromBlock(bv *vector.BlockVector, row int) interface{} {
	n := bv.BlockLen(row)
	if bv.Card == cardinality.X0to1 && n == 0 {
		return Missing{}
	}
	if !bv.Card.IsPlural() {
		if n == 0 {
			return Missing{}
		}
		return FromElement(vector.Sub(bv.Block(row), 0, 1).(vector.Vector), 0)
	}
	block := bv.Block(row)
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = FromElement(block, i)
	}
	return out
}

// FromElement materializes element i of a flat element vector v, recursing
// into nested BlockVector/TupleVector storage.
func FromElement(v vector.Vector, i int) interface{} {
	switch vv := v.(type) {
	case vector.Slice:
		return recurse(vv[i])
	case *vector.BlockVector:
		return FromBlock(&vector.BlockVector{Offsets: subOffsets(vv, i), Elements: vv.Elements, Card: vv.Card}, 0)
	case *vector.TupleVector:
		row := vv.Row(i)
		values := make([]interface{}, len(row))
		for j, col := range row {
			values[j] = FromElement(col, 0)
		}
		return Tuple{Labels: vv.Labels, Values: values}
	default:
		return v
	}
}

func recurse(v interface{}) interface{} {
	if tv, ok := v.(*vector.TupleVector); ok {
		return FromElement(tv, 0)
	}
	if bv, ok := v.(*vector.BlockVector); ok {
		return FromBlock(bv, 0)
	}
	return v
}

func subOffsets(bv *vector.BlockVector, row int) []int {
	start, end := bv.Bounds(row)
	return []int{start + 1, end + 1}
}
