// Package knots implements the external interface of spec.md §6: the
// DataKnot value wrapper, the run entry point, and the pair/broadcast/
// navigation sugar a caller writes queries with. Internally every DataKnot
// is a one-row BlockVector (the "cell" of spec.md §6.1) plus its plain,
// undecorated shape; internal/assembler and internal/pipeline do the actual
// work once a query.Node and a root DataKnot are handed to Run.
package knots

import (
	"fmt"
	"sort"

	"github.com/dataknots/dataknots/internal/assembler"
	"github.com/dataknots/dataknots/internal/cardinality"
	"github.com/dataknots/dataknots/internal/pipeline"
	"github.com/dataknots/dataknots/internal/shape"
	"github.com/dataknots/dataknots/internal/valuecodec"
	"github.com/dataknots/dataknots/internal/vector"
)

// DataKnot is a columnar value: a single-row block holding zero or more
// elements of Shape, per spec.md §6.1's construction rules.
type DataKnot struct {
	block *vector.BlockVector
	shape shape.Shape
}

// New constructs a DataKnot from a host value. Called with no argument it
// yields the one-element x1to1 unit value; a scalar becomes a one-element
// x1to1 block; a []interface{} becomes an x0toN block; valuecodec.Missing
// (or nil) becomes an empty x0to1 block; a valuecodec.Tuple becomes a
// one-element x1to1 block of tuple shape.
func New(v ...interface{}) DataKnot {
	if len(v) == 0 {
		return New(valuecodec.Tuple{})
	}
	elems, elemShape, card := valuecodec.ToBlock(v[0])
	return DataKnot{
		block: &vector.BlockVector{Offsets: []int{1, elems.Len() + 1}, Elements: elems, Card: card},
		shape: shape.BlockOf{Elem: elemShape, Card: card},
	}
}

// Get materializes the DataKnot back into a native Go value: a single value,
// valuecodec.Missing, a []interface{}, or a valuecodec.Tuple, recursing into
// any nested containers — the `get` accessor of spec.md §6.1.
func (d DataKnot) Get() interface{} {
	return valuecodec.FromBlock(d.block, 0)
}

// Shape exposes the DataKnot's (undecorated) shape, mostly for tests that
// want to assert on cardinality without round-tripping through Get.
func (d DataKnot) Shape() shape.Shape { return d.shape }

// Run is spec.md §6's entry point: run(input, query; params). q is built
// from the combinators in combinators.go; values inside it are lifted
// automatically by those constructors, never by Run itself. params may be
// nil.
func Run(input DataKnot, q Query, params map[string]interface{}) (DataKnot, error) {
	rt := assembler.NewRuntime()

	rootShape := input.shape
	var rootVec vector.Vector = input.block
	if len(params) > 0 {
		rootShape, rootVec = packParams(input, params)
	}

	pin := assembler.Cover(rootShape)
	full, err := rt.Assemble(q.Node, pin)
	if err != nil {
		return DataKnot{}, err
	}
	full = pipeline.Optimize(full)

	out, err := full.Run(rootVec)
	if err != nil {
		return DataKnot{}, err
	}
	bv, ok := out.(*vector.BlockVector)
	if !ok {
		return DataKnot{}, fmt.Errorf("knots: run: expected a block result, got %T", out)
	}
	elem, _, err := assembler.FlowElem(full)
	if err != nil {
		return DataKnot{}, err
	}
	return DataKnot{block: bv, shape: shape.BlockOf{Elem: elem, Card: bv.Card}}, nil
}

// packParams implements spec.md §4.3's parameter packing: the root value v
// with parameters {k1:v1, ...} becomes TupleOf(v, TupleOf([k..], [vi..]))
// |> IsScope, and the matching runtime pair vector. A regular (x1to1) root
// or parameter contributes its single element and element shape, the same
// way a regular Tuple field does; any other contributes its one-row block.
func packParams(input DataKnot, params map[string]interface{}) (shape.Shape, vector.Vector) {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	colShapes := make([]shape.Shape, len(names))
	cols := make([]vector.Vector, len(names))
	for i, k := range names {
		pv := New(params[k])
		colShapes[i], cols[i] = pv.shape, pv.block
		if bs, ok := pv.shape.(shape.BlockOf); ok && bs.Card == cardinality.X1to1 {
			colShapes[i], cols[i] = bs.Elem, pv.block.Elements
		}
	}
	ctxShape := shape.TupleOf{Labels: names, Columns: colShapes}
	ctxTuple := &vector.TupleVector{Labels: names, Length: 1, Columns: cols}

	subjShape, subjVec := input.shape, vector.Vector(input.block)
	if bs, ok := input.shape.(shape.BlockOf); ok && bs.Card == cardinality.X1to1 {
		subjShape, subjVec = bs.Elem, input.block.Elements
	}
	pairShape := shape.TupleOf{Columns: []shape.Shape{subjShape, ctxShape}}
	pairTuple := &vector.TupleVector{Length: 1, Columns: []vector.Vector{subjVec, ctxTuple}}

	rootShape := shape.AsScope(shape.Shape(pairShape))
	return rootShape, pairTuple
}

// Index is spec.md §6's input[query; params...] sugar: run(input,
// Each(query); params).
func (d DataKnot) Index(q Query, params map[string]interface{}) (DataKnot, error) {
	return Run(d, Each(q), params)
}
