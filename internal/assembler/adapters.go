package assembler

import (
	"github.com/dataknots/dataknots/internal/cardinality"
	"github.com/dataknots/dataknots/internal/pipeline"
	"github.com/dataknots/dataknots/internal/shape"
	"github.com/dataknots/dataknots/internal/signature"
	"github.com/dataknots/dataknots/internal/vector"
)

// reshape is a cosmetic adapter: same runtime vector, a different declared
// shape. It realizes the "decorator stripping" half of cover/uncover
// (spec.md §4.2.2), which never touches the underlying BlockVector/
// TupleVector storage — Flow and Scope are shape-level annotations only.
type reshape struct {
	sig signature.Signature
}

func (r reshape) Signature() signature.Signature  { return r.sig }
func (r reshape) Run(in vector.Vector) (vector.Vector, error) { return in, nil }

func newReshape(src, tgt shape.Shape) pipeline.Primitive {
	return reshape{signature.Of(src, tgt)}
}

// unwrapScalar is the inverse of wrap(): given a dense, x1to1 BlockVector it
// returns its Elements directly, turning a "one value per row" flow back
// into a flat per-row vector. Used when combining several flow-valued
// queries scalar-wise (Lift with more than one argument, Record fields):
// each field is expected to hold exactly one value per row before the
// fields are bundled into a tuple.
type unwrapScalar struct {
	sig signature.Signature
}

func (u unwrapScalar) Signature() signature.Signature { return u.sig }
func (u unwrapScalar) Run(in vector.Vector) (vector.Vector, error) {
	bv, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, &ShapeMismatchError{Op: "unwrap", Want: "x1to1 block vector", Got: typeName(in)}
	}
	if !bv.Dense() {
		for i := 0; i < bv.Len(); i++ {
			if bv.BlockLen(i) != 1 {
				return nil, &ShapeMismatchError{Op: "unwrap", Want: "exactly one value per row", Got: "ragged block"}
			}
		}
	}
	return bv.Elements, nil
}

func newUnwrapScalar(src, tgt shape.Shape) pipeline.Primitive {
	return unwrapScalar{signature.Of(src, tgt)}
}

// Cover constructs a pipeline whose target is the flow-decorated form of s
// (spec.md §4.2.2). s is already a concrete columnar shape (BlockOf, or a
// scalar-ish ValueOf/TupleOf to be wrapped x1to1) — the host-value-to-vector
// adaptation that spec.md's cover also describes (adapt_missing/
// adapt_vector for a raw ValueOf(vector-type)/ValueOf(optional-type)) is
// performed once, at the DataKnot construction boundary in package knots,
// rather than lazily here; see DESIGN.md.
func Cover(s shape.Shape) pipeline.Primitive {
	if shape.IsFlow(s) {
		return newReshape(s, s)
	}
	if b, ok := shape.Base(s).(shape.BlockOf); ok {
		return newReshape(s, rewrapDecorators(s, shape.AsFlow(b)))
	}
	elem := s
	w := pipeline.NewWrap(s, elem)
	target := shape.AsFlow(shape.BlockOf{Elem: elem, Card: cardinality.X1to1})
	return pipeline.NewChain(w, newReshape(w.Signature().Target, target))
}

// rewrapDecorators re-applies s's outer Labeled decorator (if any) to base.
func rewrapDecorators(s shape.Shape, base shape.Shape) shape.Shape {
	if lbl, ok := shape.Label(s); ok {
		return shape.WithLabel(lbl, base)
	}
	return base
}

// Uncover strips the Flow (and Scope) decoration from p's target, exposing
// the plain BlockOf/TupleOf the aggregation and predicate combinators
// consume (spec.md §4.2.2). It never changes the runtime vector.
func Uncover(p pipeline.Primitive) pipeline.Primitive {
	t := p.Signature().Target
	plain := shape.StripScope(shape.StripFlow(t))
	return pipeline.NewChain(p, newReshape(t, plain))
}

// FlowElem returns the element shape and declared cardinality of p's target,
// which must be (optionally Labeled) Flow(BlockOf(...)).
func FlowElem(p pipeline.Primitive) (shape.Shape, cardinality.Cardinality, error) {
	t := p.Signature().Target
	elem, ok := shape.FlowElem(t)
	if !ok {
		return nil, 0, &ShapeMismatchError{Op: "flow", Want: "a flow", Got: t.String()}
	}
	card, _ := shape.FlowCard(t)
	return elem, card, nil
}

// --- backing primitives for the expanded combinators Unique/Reverse/IsNull/
// Exists of SPEC_FULL.md §4.2. These are not in spec.md's required table,
// so they live here rather than in package pipeline, built out of the same
// per-block vectorized style as Slice/Sieve.

type uniquePrim struct{ sig signature.Signature }

func (u uniquePrim) Signature() signature.Signature { return u.sig }
func (u uniquePrim) Run(in vector.Vector) (vector.Vector, error) {
	bv, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, &ShapeMismatchError{Op: "Unique", Want: "a block vector", Got: typeName(in)}
	}
	offs := make([]int, bv.Len()+1)
	var elems vector.Slice
	offs[0] = 1
	for i := 0; i < bv.Len(); i++ {
		block := bv.Block(i).(vector.Slice)
		seen := make(map[interface{}]bool, len(block))
		for _, v := range block {
			if !seen[v] {
				seen[v] = true
				elems = append(elems, v)
			}
		}
		offs[i+1] = len(elems) + 1
	}
	if elems == nil {
		elems = vector.Slice{}
	}
	return &vector.BlockVector{Offsets: offs, Elements: elems, Card: cardinality.X0toN}, nil
}

func newUniquePrimitive(src, tgt shape.Shape) pipeline.Primitive {
	return uniquePrim{signature.Of(src, tgt)}
}

type reversePrim struct{ sig signature.Signature }

func (r reversePrim) Signature() signature.Signature { return r.sig }
func (r reversePrim) Run(in vector.Vector) (vector.Vector, error) {
	bv, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, &ShapeMismatchError{Op: "Reverse", Want: "a block vector", Got: typeName(in)}
	}
	offs := make([]int, bv.Len()+1)
	var elems vector.Slice
	offs[0] = 1
	for i := 0; i < bv.Len(); i++ {
		block := bv.Block(i).(vector.Slice)
		for j := len(block) - 1; j >= 0; j-- {
			elems = append(elems, block[j])
		}
		offs[i+1] = len(elems) + 1
	}
	if elems == nil {
		elems = vector.Slice{}
	}
	return &vector.BlockVector{Offsets: offs, Elements: elems, Card: bv.Card}, nil
}

func newReversePrimitive(src, tgt shape.Shape) pipeline.Primitive {
	return reversePrim{signature.Of(src, tgt)}
}

type emptyCheckPrim struct {
	sig    signature.Signature
	negate bool
}

func (e emptyCheckPrim) Signature() signature.Signature { return e.sig }
func (e emptyCheckPrim) Run(in vector.Vector) (vector.Vector, error) {
	bv, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, &ShapeMismatchError{Op: "IsNull/Exists", Want: "a block vector", Got: typeName(in)}
	}
	out := make(vector.Slice, bv.Len())
	for i := range out {
		empty := bv.BlockLen(i) == 0
		if e.negate {
			out[i] = !empty
		} else {
			out[i] = empty
		}
	}
	return out, nil
}

func newEmptyCheckPrimitive(src, tgt shape.Shape, negate bool) pipeline.Primitive {
	return emptyCheckPrim{signature.Of(src, tgt), negate}
}

func typeName(v vector.Vector) string {
	switch v.(type) {
	case vector.Slice:
		return "plain vector"
	case *vector.BlockVector:
		return "block vector"
	case *vector.TupleVector:
		return "tuple vector"
	default:
		return "unknown"
	}
}
