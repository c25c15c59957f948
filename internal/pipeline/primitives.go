package pipeline

import (
	"reflect"

	"github.com/dataknots/dataknots/internal/cardinality"
	"github.com/dataknots/dataknots/internal/shape"
	"github.com/dataknots/dataknots/internal/signature"
	"github.com/dataknots/dataknots/internal/vector"
)

// Pass is the identity primitive: pass().
type Pass struct{ base }

// NewPass builds pass() with source == target == s.
func NewPass(s shape.Shape) Pass { return Pass{base{signature.Of(s, s)}} }

func (p Pass) Run(in vector.Vector) (vector.Vector, error) { return in, nil }

// Lift applies a scalar Go function elementwise to a plain vector.
type Lift struct {
	base
	Fn reflect.Value
}

// NewLift builds lift(f). src/tgt are the element ValueOf shapes wrapped by
// the surrounding with_elements/flow machinery by the caller; Lift itself
// operates on a flat vector.Slice of arguments, one scalar per row.
func NewLift(fn interface{}, src, tgt shape.Shape) Lift {
	return Lift{base{signature.Of(src, tgt)}, reflect.ValueOf(fn)}
}

func (l Lift) Run(in vector.Vector) (vector.Vector, error) {
	s, ok := in.(vector.Slice)
	if !ok {
		return nil, errf("lift", "expected a plain vector, got %T", in)
	}
	out := make(vector.Slice, len(s))
	for i, v := range s {
		r, err := applyOne(l.Fn, v)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// TupleLift applies f to each row of a TupleVector, one scalar result per row.
type TupleLift struct {
	base
	Fn reflect.Value
}

func NewTupleLift(fn interface{}, src, tgt shape.Shape) TupleLift {
	return TupleLift{base{signature.Of(src, tgt)}, reflect.ValueOf(fn)}
}

func (t TupleLift) Run(in vector.Vector) (vector.Vector, error) {
	tv, ok := in.(*vector.TupleVector)
	if !ok {
		return nil, errf("tuple_lift", "expected a tuple vector, got %T", in)
	}
	out := make(vector.Slice, tv.Length)
	args := make([]interface{}, len(tv.Columns))
	for i := 0; i < tv.Length; i++ {
		for j, col := range tv.Columns {
			args[j] = scalarAt(col, i)
		}
		r, err := applyMany(t.Fn, args)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// BlockLift applies f to each row's block (as a Slice), with an optional
// default substituted for empty blocks.
type BlockLift struct {
	base
	Fn         reflect.Value
	HasDefault bool
	Default    interface{}
}

func NewBlockLift(fn interface{}, src, tgt shape.Shape) BlockLift {
	return BlockLift{base: base{signature.Of(src, tgt)}, Fn: reflect.ValueOf(fn)}
}

func NewBlockLiftDefault(fn interface{}, def interface{}, src, tgt shape.Shape) BlockLift {
	return BlockLift{base: base{signature.Of(src, tgt)}, Fn: reflect.ValueOf(fn), HasDefault: true, Default: def}
}

func (b BlockLift) Run(in vector.Vector) (vector.Vector, error) {
	bv, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, errf("block_lift", "expected a block vector, got %T", in)
	}
	out := make(vector.Slice, bv.Len())
	for i := 0; i < bv.Len(); i++ {
		if bv.BlockLen(i) == 0 && b.HasDefault {
			out[i] = b.Default
			continue
		}
		block := bv.Block(i).(vector.Slice)
		r, err := applyOne(b.Fn, block)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Filler produces a constant vector the same length as its input.
type Filler struct {
	base
	Value interface{}
}

func NewFiller(v interface{}, src, tgt shape.Shape) Filler {
	return Filler{base{signature.Of(src, tgt)}, v}
}

func (f Filler) Run(in vector.Vector) (vector.Vector, error) {
	out := make(vector.Slice, in.Len())
	for i := range out {
		out[i] = f.Value
	}
	return out, nil
}

// NullFiller produces a BlockVector of empty blocks, one per input row, card
// x0to1 — null_filler().
type NullFiller struct{ base }

func NewNullFiller(src shape.Shape, elem shape.Shape) NullFiller {
	return NullFiller{base{signature.Of(src, shape.BlockOf{Elem: elem, Card: cardinality.X0to1})}}
}

func (n NullFiller) Run(in vector.Vector) (vector.Vector, error) {
	offs := make([]int, in.Len()+1)
	for i := range offs {
		offs[i] = 1
	}
	return &vector.BlockVector{Offsets: offs, Elements: vector.Slice{}, Card: cardinality.X0to1}, nil
}

// BlockFiller repeats a fixed block as every row's block — block_filler(blk, card).
type BlockFiller struct {
	base
	Block vector.Vector
	Card  cardinality.Cardinality
}

func NewBlockFiller(blk vector.Vector, card cardinality.Cardinality, src, elem shape.Shape) BlockFiller {
	return BlockFiller{base{signature.Of(src, shape.BlockOf{Elem: elem, Card: card})}, blk, card}
}

func (f BlockFiller) Run(in vector.Vector) (vector.Vector, error) {
	n := in.Len()
	if n == 0 {
		return &vector.BlockVector{Offsets: []int{1}, Elements: vector.Sub(f.Block, 0, 0), Card: f.Card}, nil
	}
	parts := make([]vector.Vector, n)
	for i := range parts {
		parts[i] = &vector.BlockVector{Offsets: []int{1, f.Block.Len() + 1}, Elements: f.Block, Card: f.Card}
	}
	return vector.Concat(parts...), nil
}

// AdaptMissing converts a vector-with-missing-markers into a BlockVector with
// an empty block wherever the marker appears, card x0to1.
type AdaptMissing struct{ base }

func NewAdaptMissing(src shape.Shape, elem shape.Shape) AdaptMissing {
	return AdaptMissing{base{signature.Of(src, shape.BlockOf{Elem: elem, Card: cardinality.X0to1})}}
}

// Missing is the sentinel marker for an absent optional value, shared with
// package valuecodec (internal/vector.Missing) so both sides of the
// cover/uncover boundary recognize the same marker.
type Missing = vector.Missing

func (a AdaptMissing) Run(in vector.Vector) (vector.Vector, error) {
	s, ok := in.(vector.Slice)
	if !ok {
		return nil, errf("adapt_missing", "expected a plain vector, got %T", in)
	}
	offs := make([]int, len(s)+1)
	var elems vector.Slice
	offs[0] = 1
	for i, v := range s {
		if _, isMissing := v.(Missing); !isMissing {
			elems = append(elems, v)
		}
		offs[i+1] = len(elems) + 1
	}
	if elems == nil {
		elems = vector.Slice{}
	}
	return &vector.BlockVector{Offsets: offs, Elements: elems, Card: cardinality.X0to1}, nil
}

// AdaptVector converts a vector-of-vectors into a BlockVector, card x0toN.
type AdaptVector struct{ base }

func NewAdaptVector(src shape.Shape, elem shape.Shape) AdaptVector {
	return AdaptVector{base{signature.Of(src, shape.BlockOf{Elem: elem, Card: cardinality.X0toN})}}
}

func (a AdaptVector) Run(in vector.Vector) (vector.Vector, error) {
	s, ok := in.(vector.Slice)
	if !ok {
		return nil, errf("adapt_vector", "expected a plain vector, got %T", in)
	}
	offs := make([]int, len(s)+1)
	var elems vector.Slice
	offs[0] = 1
	for i, v := range s {
		sub, ok := v.(vector.Slice)
		if !ok {
			return nil, errf("adapt_vector", "row %d is not a vector", i)
		}
		elems = append(elems, sub...)
		offs[i+1] = len(elems) + 1
	}
	if elems == nil {
		elems = vector.Slice{}
	}
	return &vector.BlockVector{Offsets: offs, Elements: elems, Card: cardinality.X0toN}, nil
}

// AdaptTuple converts a vector of uniformly-shaped row tuples into a
// TupleVector.
type AdaptTuple struct {
	base
	Labels []string
	Arity  int
}

func NewAdaptTuple(labels []string, arity int, src, tgt shape.Shape) AdaptTuple {
	return AdaptTuple{base{signature.Of(src, tgt)}, labels, arity}
}

func (a AdaptTuple) Run(in vector.Vector) (vector.Vector, error) {
	s, ok := in.(vector.Slice)
	if !ok {
		return nil, errf("adapt_tuple", "expected a plain vector, got %T", in)
	}
	cols := make([]vector.Vector, a.Arity)
	for j := 0; j < a.Arity; j++ {
		cols[j] = make(vector.Slice, len(s))
	}
	for i, row := range s {
		r, ok := row.([]interface{})
		if !ok || len(r) != a.Arity {
			return nil, errf("adapt_tuple", "row %d is not a %d-tuple", i, a.Arity)
		}
		for j := 0; j < a.Arity; j++ {
			cols[j].(vector.Slice)[i] = r[j]
		}
	}
	return &vector.TupleVector{Labels: a.Labels, Length: len(s), Columns: cols}, nil
}

// Wrap turns a plain vector into a dense, x1to1 BlockVector — wrap().
type Wrap struct{ base }

func NewWrap(src shape.Shape, elem shape.Shape) Wrap {
	return Wrap{base{signature.Of(src, shape.BlockOf{Elem: elem, Card: cardinality.X1to1})}}
}

func (w Wrap) Run(in vector.Vector) (vector.Vector, error) {
	return &vector.BlockVector{Elements: in, Card: cardinality.X1to1}, nil
}

// WithElements applies p to the element vector of a BlockVector, preserving
// offsets and the input's card.
type WithElements struct {
	base
	Inner Primitive
}

func NewWithElements(p Primitive, src, tgt shape.Shape) WithElements {
	return WithElements{base{signature.Of(src, tgt)}, p}
}

func (w WithElements) Run(in vector.Vector) (vector.Vector, error) {
	bv, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, errf("with_elements", "expected a block vector, got %T", in)
	}
	elems, err := w.Inner.Run(bv.Elements)
	if err != nil {
		return nil, err
	}
	return &vector.BlockVector{Offsets: bv.Offsets, Elements: elems, Card: bv.Card}, nil
}

// WithColumn applies p to column j of a TupleVector, preserving labels and
// copying the outer column list (spec.md §5).
type WithColumn struct {
	base
	Inner Primitive
	Col   int
}

func NewWithColumn(j int, p Primitive, src, tgt shape.Shape) WithColumn {
	return WithColumn{base{signature.Of(src, tgt)}, p, j}
}

func (w WithColumn) Run(in vector.Vector) (vector.Vector, error) {
	tv, ok := in.(*vector.TupleVector)
	if !ok {
		return nil, errf("with_column", "expected a tuple vector, got %T", in)
	}
	newCol, err := w.Inner.Run(tv.Columns[w.Col])
	if err != nil {
		return nil, err
	}
	return tv.WithColumn(w.Col, newCol), nil
}

// Flatten collapses a nested BlockVector-of-BlockVector into one level,
// composing offsets and widening card with OR.
type Flatten struct{ base }

func NewFlatten(src, tgt shape.Shape) Flatten {
	return Flatten{base{signature.Of(src, tgt)}}
}

func (f Flatten) Run(in vector.Vector) (vector.Vector, error) {
	outer, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, errf("flatten", "expected a block vector, got %T", in)
	}
	inner, ok := outer.Elements.(*vector.BlockVector)
	if !ok {
		return nil, errf("flatten", "expected a nested block vector, got %T", outer.Elements)
	}
	if outer.Dense() && inner.Dense() {
		return inner, nil
	}
	outerOffs := outer.DenseOffsets()
	innerOffs := inner.DenseOffsets()
	newOffs := make([]int, len(outerOffs))
	for i, o := range outerOffs {
		newOffs[i] = innerOffs[o-1]
	}
	return &vector.BlockVector{Offsets: newOffs, Elements: inner.Elements, Card: outer.Card.Widen(inner.Card)}, nil
}

// TupleOf applies each Ps[i] to the (shared) input vector and assembles the
// results as parallel columns — tuple_of(labels, ps).
type TupleOf struct {
	base
	Labels []string
	Ps     []Primitive
}

func NewTupleOf(labels []string, ps []Primitive, src, tgt shape.Shape) TupleOf {
	return TupleOf{base{signature.Of(src, tgt)}, labels, ps}
}

func (t TupleOf) Run(in vector.Vector) (vector.Vector, error) {
	cols := make([]vector.Vector, len(t.Ps))
	for i, p := range t.Ps {
		out, err := p.Run(in)
		if err != nil {
			return nil, err
		}
		cols[i] = out
	}
	return &vector.TupleVector{Labels: t.Labels, Length: in.Len(), Columns: cols}, nil
}

// Column selects a labeled or positional column — column(lbl).
type Column struct {
	base
	Index int
}

func NewColumn(idx int, src, tgt shape.Shape) Column {
	return Column{base{signature.Of(src, tgt)}, idx}
}

func (c Column) Run(in vector.Vector) (vector.Vector, error) {
	tv, ok := in.(*vector.TupleVector)
	if !ok {
		return nil, errf("column", "expected a tuple vector, got %T", in)
	}
	if c.Index < 0 || c.Index >= len(tv.Columns) {
		return nil, errf("column", "index %d out of range", c.Index)
	}
	return tv.Columns[c.Index], nil
}

// Distribute turns a TupleVector whose column J is a BlockVector into a
// BlockVector of TupleVectors, replicating the non-J columns across the
// block structure — distribute(j).
type Distribute struct {
	base
	Col int
}

func NewDistribute(j int, src, tgt shape.Shape) Distribute {
	return Distribute{base{signature.Of(src, tgt)}, j}
}

func (d Distribute) Run(in vector.Vector) (vector.Vector, error) {
	tv, ok := in.(*vector.TupleVector)
	if !ok {
		return nil, errf("distribute", "expected a tuple vector, got %T", in)
	}
	bv, ok := tv.Columns[d.Col].(*vector.BlockVector)
	if !ok {
		return nil, errf("distribute", "column %d is not a block vector", d.Col)
	}
	if bv.Dense() {
		// spec.md §4.1 edge case (4): dense offsets skip row expansion, relabel only.
		cols := make([]vector.Vector, len(tv.Columns))
		copy(cols, tv.Columns)
		cols[d.Col] = bv.Elements
		return &vector.BlockVector{
			Elements: &vector.TupleVector{Labels: tv.Labels, Length: tv.Length, Columns: cols},
			Card:     bv.Card,
		}, nil
	}
	offs := bv.DenseOffsets()
	total := bv.Elements.Len()
	cols := make([]vector.Vector, len(tv.Columns))
	for j, col := range tv.Columns {
		if j == d.Col {
			cols[j] = bv.Elements
			continue
		}
		rep := make(vector.Slice, 0, total)
		for i := 0; i < tv.Length; i++ {
			n := offs[i+1] - offs[i]
			v := scalarAt(col, i)
			for k := 0; k < n; k++ {
				rep = append(rep, v)
			}
		}
		cols[j] = rep
	}
	return &vector.BlockVector{
		Offsets:  offs,
		Elements: &vector.TupleVector{Labels: tv.Labels, Length: total, Columns: cols},
		Card:     bv.Card,
	}, nil
}

// BlockLength maps a BlockVector to an Int vector of block sizes — block_length().
type BlockLength struct{ base }

func NewBlockLength(src, tgt shape.Shape) BlockLength {
	return BlockLength{base{signature.Of(src, tgt)}}
}

func (b BlockLength) Run(in vector.Vector) (vector.Vector, error) {
	bv, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, errf("block_length", "expected a block vector, got %T", in)
	}
	out := make(vector.Slice, bv.Len())
	for i := range out {
		out[i] = bv.BlockLen(i)
	}
	return out, nil
}

// BlockAny maps a BlockVector-of-Bool to a Bool vector (any-per-block) —
// block_any().
type BlockAny struct{ base }

func NewBlockAny(src, tgt shape.Shape) BlockAny {
	return BlockAny{base{signature.Of(src, tgt)}}
}

func (b BlockAny) Run(in vector.Vector) (vector.Vector, error) {
	bv, ok := in.(*vector.BlockVector)
	if !ok {
		return nil, errf("block_any", "expected a block vector, got %T", in)
	}
	out := make(vector.Slice, bv.Len())
	for i := range out {
		any := false
		block := bv.Block(i).(vector.Slice)
		for _, v := range block {
			if b, ok := v.(bool); ok && b {
				any = true
				break
			}
		}
		out[i] = any
	}
	return out, nil
}

// Sieve turns a 2-column TupleVector (value, Bool) into a BlockVector with
// card x0to1: a one-element block where the predicate holds, empty otherwise.
type Sieve struct{ base }

func NewSieve(src, tgt shape.Shape) Sieve {
	return Sieve{base{signature.Of(src, tgt)}}
}

func (s Sieve) Run(in vector.Vector) (vector.Vector, error) {
	tv, ok := in.(*vector.TupleVector)
	if !ok || len(tv.Columns) != 2 {
		return nil, errf("sieve", "expected a 2-column tuple vector, got %T", in)
	}
	values, preds := tv.Columns[0], tv.Columns[1]
	offs := make([]int, tv.Length+1)
	var elems vector.Slice
	offs[0] = 1
	for i := 0; i < tv.Length; i++ {
		if p, _ := scalarAt(preds, i).(bool); p {
			elems = append(elems, scalarAt(values, i))
		}
		offs[i+1] = len(elems) + 1
	}
	if elems == nil {
		elems = vector.Slice{}
	}
	return &vector.BlockVector{Offsets: offs, Elements: elems, Card: cardinality.X0to1}, nil
}

// Slice implements the per-block take/drop primitive: slice(n, rev), or,
// when HasN is false, the per-row form reading n from the TupleVector's
// second column — slice(rev).
type Slice struct {
	base
	N       int
	HasN    bool
	Reverse bool
}

func NewSliceN(n int, rev bool, src, tgt shape.Shape) Slice {
	return Slice{base{signature.Of(src, tgt)}, n, true, rev}
}

func NewSliceDynamic(rev bool, src, tgt shape.Shape) Slice {
	return Slice{base{signature.Of(src, tgt)}, 0, false, rev}
}

func (s Slice) Run(in vector.Vector) (vector.Vector, error) {
	var bv *vector.BlockVector
	var ns []interface{}
	if s.HasN {
		b, ok := in.(*vector.BlockVector)
		if !ok {
			return nil, errf("slice", "expected a block vector, got %T", in)
		}
		bv = b
	} else {
		tv, ok := in.(*vector.TupleVector)
		if !ok || len(tv.Columns) != 2 {
			return nil, errf("slice", "expected a 2-column tuple vector, got %T", in)
		}
		b, ok := tv.Columns[0].(*vector.BlockVector)
		if !ok {
			return nil, errf("slice", "first column must be a block vector")
		}
		bv = b
		nv := tv.Columns[1]
		ns = make([]interface{}, tv.Length)
		for i := 0; i < tv.Length; i++ {
			ns[i] = scalarAt(nv, i)
		}
	}
	offs := make([]int, bv.Len()+1)
	var elems vector.Slice
	offs[0] = 1
	for i := 0; i < bv.Len(); i++ {
		blk := bv.Block(i).(vector.Slice)
		n := s.N
		if !s.HasN {
			if _, ok := ns[i].(Missing); ok {
				elems = append(elems, blk...)
				offs[i+1] = len(elems) + 1
				continue
			}
			n = ns[i].(int)
		}
		kept := sliceBlock(blk, n, s.Reverse)
		elems = append(elems, kept...)
		offs[i+1] = len(elems) + 1
	}
	if elems == nil {
		elems = vector.Slice{}
	}
	return &vector.BlockVector{Offsets: offs, Elements: elems, Card: bv.Card.Widen(cardinality.X0to1)}, nil
}

// sliceBlock implements the take/drop edge cases of spec.md §4.1: Take
// (rev=false) keeps the front takeCount elements of blk; Drop (rev=true)
// keeps the complement, i.e. drops that same front run.
func sliceBlock(blk vector.Slice, n int, rev bool) vector.Slice {
	keep := takeCount(len(blk), n)
	if rev {
		return blk[keep:]
	}
	return blk[:keep]
}

// takeCount resolves how many elements from the front of a block of the
// given length Take(n) keeps: n>=0 keeps the first n (clamped to blockLen);
// n<0 keeps all but the last -n, i.e. max(blockLen+n, 0) (spec.md edge case
// 2 and §8 scenario 7: Take(-2) on a 3-element block keeps 1 element).
func takeCount(blockLen, n int) int {
	if n >= 0 {
		if n > blockLen {
			return blockLen
		}
		return n
	}
	keep := blockLen + n
	if keep < 0 {
		return 0
	}
	return keep
}

// ChainOf sequences primitives: source of the first, target of the last.
type ChainOf struct {
	base
	Ps []Primitive
}

// NewChain builds chain_of(ps...). Flattens nested ChainOf arguments so the
// stored Ps is always a flat sequence, matching the optimizer's rule 7.
func NewChain(ps ...Primitive) Primitive {
	flat := flattenChain(ps)
	if len(flat) == 0 {
		return nil
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return ChainOf{base{signature.Of(flat[0].Signature().Source, flat[len(flat)-1].Signature().Target)}, flat}
}

func flattenChain(ps []Primitive) []Primitive {
	var out []Primitive
	for _, p := range ps {
		if p == nil {
			continue
		}
		if c, ok := p.(ChainOf); ok {
			out = append(out, flattenChain(c.Ps)...)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c ChainOf) Run(in vector.Vector) (vector.Vector, error) {
	cur := in
	for _, p := range c.Ps {
		var err error
		cur, err = p.Run(cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// --- scalar application helpers, grounded on funvibe-funxy's reflect-based
// ApplyFunction / getRuntimeTypeName call path (internal/evaluator/apply.go):
// inspect a Go function value via reflect and recover a panic into the
// "function application failure" error of spec.md §7. ---

func applyOne(fn reflect.Value, arg interface{}) (result interface{}, err error) {
	return applyMany(fn, []interface{}{arg})
}

func applyMany(fn reflect.Value, args []interface{}) (result interface{}, err error) {
	if fn.Kind() != reflect.Func {
		return nil, errf("apply", "not a function: %v", fn)
	}
	t := fn.Type()
	if !t.IsVariadic() && t.NumIn() != len(args) {
		return nil, errf("apply", "function expects %d arguments, got %d", t.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
		if !in[i].IsValid() {
			in[i] = reflect.Zero(t.In(minInt(i, t.NumIn()-1)))
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = errf("apply", "function application failure: %v", r)
		}
	}()
	out := fn.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		vals := make([]interface{}, len(out))
		for i, o := range out {
			vals[i] = o.Interface()
		}
		return vals, nil
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// scalarAt reads the scalar value of v's row i, recursing through the
// storage kinds that can legally sit in a tuple column.
func scalarAt(v vector.Vector, i int) interface{} {
	switch vv := v.(type) {
	case vector.Slice:
		return vv[i]
	default:
		return vector.Sub(v, i, i+1)
	}
}
