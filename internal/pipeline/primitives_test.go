package pipeline

import (
	"reflect"
	"testing"

	"github.com/dataknots/dataknots/internal/cardinality"
	"github.com/dataknots/dataknots/internal/shape"
	"github.com/dataknots/dataknots/internal/vector"
)

var intType = reflect.TypeOf(0)

func TestLiftAppliesElementwise(t *testing.T) {
	double := func(x int) int { return x * 2 }
	l := NewLift(double, shape.ValueOf{Type: intType}, shape.ValueOf{Type: intType})
	out, err := l.Run(vector.Slice{1, 2, 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(out, vector.Slice{2, 4, 6}) {
		t.Fatalf("Run = %v, want [2 4 6]", out)
	}
}

func TestLiftRejectsNonSlice(t *testing.T) {
	l := NewLift(func(x int) int { return x }, shape.ValueOf{}, shape.ValueOf{})
	if _, err := l.Run(&vector.BlockVector{}); err == nil {
		t.Fatalf("expected an error for a non-Slice input")
	}
}

func TestLiftRecoversApplicationPanic(t *testing.T) {
	boom := func(x int) int { panic("no") }
	l := NewLift(boom, shape.ValueOf{Type: intType}, shape.ValueOf{Type: intType})
	if _, err := l.Run(vector.Slice{1}); err == nil {
		t.Fatalf("expected a function application failure")
	}
}

func TestWrapBuildsDenseX1to1Block(t *testing.T) {
	w := NewWrap(shape.ValueOf{Type: intType}, shape.ValueOf{Type: intType})
	out, err := w.Run(vector.Slice{1, 2, 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if bv.Len() != 3 || bv.Card != cardinality.X1to1 {
		t.Fatalf("Wrap.Run = %+v, want a dense 3-row x1to1 block", bv)
	}
}

func TestFlattenConcatenatesNestedBlocks(t *testing.T) {
	inner := &vector.BlockVector{
		Offsets:  []int{1, 3, 3, 4},
		Elements: vector.Slice{10, 11, 12},
		Card:     cardinality.X0toN,
	}
	outer := &vector.BlockVector{Offsets: []int{1, 4}, Elements: inner, Card: cardinality.X1to1}
	f := NewFlatten(shape.ValueOf{}, shape.ValueOf{})
	out, err := f.Run(outer)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if bv.Len() != 1 {
		t.Fatalf("Flatten should merge the single outer row, got %d rows", bv.Len())
	}
	if got := bv.Block(0); !reflect.DeepEqual(got, vector.Slice{10, 11, 12}) {
		t.Fatalf("Flatten.Run block = %v, want [10 11 12]", got)
	}
}

func TestSieveKeepsTrueRows(t *testing.T) {
	vals := vector.Slice{1, 2, 3}
	preds := vector.Slice{true, false, true}
	tv := &vector.TupleVector{Length: 3, Columns: []vector.Vector{vals, preds}}
	s := NewSieve(shape.TupleOf{}, shape.BlockOf{})
	out, err := s.Run(tv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if bv.Len() != 3 {
		t.Fatalf("Sieve should keep one block per input row, got %d", bv.Len())
	}
	if got := bv.Block(0); !reflect.DeepEqual(got, vector.Slice{1}) {
		t.Fatalf("row 0 = %v, want [1]", got)
	}
	if bv.BlockLen(1) != 0 {
		t.Fatalf("row 1 should be filtered out, got len %d", bv.BlockLen(1))
	}
	if got := bv.Block(2); !reflect.DeepEqual(got, vector.Slice{3}) {
		t.Fatalf("row 2 = %v, want [3]", got)
	}
}

func TestSliceTakeFirstN(t *testing.T) {
	bv := &vector.BlockVector{
		Offsets:  []int{1, 4, 7},
		Elements: vector.Slice{1, 2, 3, 4, 5, 6},
		Card:     cardinality.X0toN,
	}
	s := NewSliceN(2, false, shape.BlockOf{}, shape.BlockOf{})
	out, err := s.Run(bv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ob := out.(*vector.BlockVector)
	if got := ob.Block(0); !reflect.DeepEqual(got, vector.Slice{1, 2}) {
		t.Fatalf("row 0 = %v, want [1 2]", got)
	}
	if got := ob.Block(1); !reflect.DeepEqual(got, vector.Slice{4, 5}) {
		t.Fatalf("row 1 = %v, want [4 5]", got)
	}
}

func TestSliceTakeNegativeNKeepsAllButLastN(t *testing.T) {
	bv := &vector.BlockVector{Offsets: []int{1, 4}, Elements: vector.Slice{"a", "b", "c"}, Card: cardinality.X1toN}
	s := NewSliceN(-2, false, shape.BlockOf{}, shape.BlockOf{})
	out, err := s.Run(bv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ob := out.(*vector.BlockVector)
	if got := ob.Block(0); !reflect.DeepEqual(got, vector.Slice{"a"}) {
		t.Fatalf("row 0 = %v, want [a]", got)
	}
}

func TestSliceDropNegativeNKeepsLastN(t *testing.T) {
	bv := &vector.BlockVector{Offsets: []int{1, 4}, Elements: vector.Slice{"a", "b", "c"}, Card: cardinality.X1toN}
	s := NewSliceN(-2, true, shape.BlockOf{}, shape.BlockOf{})
	out, err := s.Run(bv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ob := out.(*vector.BlockVector)
	if got := ob.Block(0); !reflect.DeepEqual(got, vector.Slice{"b", "c"}) {
		t.Fatalf("row 0 = %v, want [b c]", got)
	}
}

func TestChainRunsStagesInOrder(t *testing.T) {
	inc := NewLift(func(x int) int { return x + 1 }, shape.ValueOf{Type: intType}, shape.ValueOf{Type: intType})
	double := NewLift(func(x int) int { return x * 2 }, shape.ValueOf{Type: intType}, shape.ValueOf{Type: intType})
	chain := NewChain(inc, double)
	out, err := chain.Run(vector.Slice{1, 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(out, vector.Slice{4, 6}) {
		t.Fatalf("Run = %v, want [4 6]", out)
	}
}

func TestChainFlattensNestedChains(t *testing.T) {
	pass := NewPass(shape.ValueOf{})
	inner := NewChain(pass, pass)
	outer := NewChain(inner, pass)
	c, ok := outer.(ChainOf)
	if !ok {
		t.Fatalf("expected a flattened ChainOf, got %T", outer)
	}
	if len(c.Ps) != 3 {
		t.Fatalf("flattened chain has %d stages, want 3", len(c.Ps))
	}
}

func TestBlockLengthCountsElements(t *testing.T) {
	bv := &vector.BlockVector{
		Offsets:  []int{1, 3, 3, 4},
		Elements: vector.Slice{1, 2, 3},
		Card:     cardinality.X0toN,
	}
	bl := NewBlockLength(shape.BlockOf{}, shape.ValueOf{Type: intType})
	out, err := bl.Run(bv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(out, vector.Slice{2, 0, 1}) {
		t.Fatalf("Run = %v, want [2 0 1]", out)
	}
}

func TestFillerRepeatsValue(t *testing.T) {
	f := NewFiller(9, shape.ValueOf{}, shape.ValueOf{Type: intType})
	out, err := f.Run(vector.Slice{0, 0, 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(out, vector.Slice{9, 9, 9}) {
		t.Fatalf("Run = %v, want [9 9 9]", out)
	}
}

func TestNullFillerProducesEmptyOptionalBlocks(t *testing.T) {
	n := NewNullFiller(shape.ValueOf{}, shape.ValueOf{Type: intType})
	out, err := n.Run(vector.Slice{1, 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if bv.Len() != 2 || bv.Card != cardinality.X0to1 {
		t.Fatalf("NullFiller.Run = %+v, want 2 rows of card x0to1", bv)
	}
	if bv.BlockLen(0) != 0 || bv.BlockLen(1) != 0 {
		t.Fatalf("NullFiller.Run should produce empty blocks, got lens %d %d", bv.BlockLen(0), bv.BlockLen(1))
	}
}

func TestBlockFillerRepeatsFixedBlock(t *testing.T) {
	f := NewBlockFiller(vector.Slice{1, 2}, cardinality.X1toN, shape.ValueOf{}, shape.ValueOf{Type: intType})
	out, err := f.Run(vector.Slice{0, 0, 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if bv.Len() != 3 {
		t.Fatalf("BlockFiller.Run has %d rows, want 3", bv.Len())
	}
	for i := 0; i < 3; i++ {
		if got := bv.Block(i); !reflect.DeepEqual(got, vector.Slice{1, 2}) {
			t.Fatalf("row %d = %v, want [1 2]", i, got)
		}
	}
}

func TestAdaptMissingProducesOptionalBlocks(t *testing.T) {
	a := NewAdaptMissing(shape.ValueOf{}, shape.ValueOf{Type: intType})
	out, err := a.Run(vector.Slice{1, Missing{}, 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if bv.Card != cardinality.X0to1 {
		t.Fatalf("Card = %v, want x0to1", bv.Card)
	}
	if got := bv.Block(0); !reflect.DeepEqual(got, vector.Slice{1}) {
		t.Fatalf("row 0 = %v, want [1]", got)
	}
	if bv.BlockLen(1) != 0 {
		t.Fatalf("row 1 should be empty, got len %d", bv.BlockLen(1))
	}
	if got := bv.Block(2); !reflect.DeepEqual(got, vector.Slice{3}) {
		t.Fatalf("row 2 = %v, want [3]", got)
	}
}

func TestAdaptVectorBuildsPluralBlocks(t *testing.T) {
	a := NewAdaptVector(shape.ValueOf{}, shape.ValueOf{Type: intType})
	in := vector.Slice{vector.Slice{1, 2}, vector.Slice{3}}
	out, err := a.Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if bv.Card != cardinality.X0toN {
		t.Fatalf("Card = %v, want x0toN", bv.Card)
	}
	if got := bv.Block(0); !reflect.DeepEqual(got, vector.Slice{1, 2}) {
		t.Fatalf("row 0 = %v, want [1 2]", got)
	}
	if got := bv.Block(1); !reflect.DeepEqual(got, vector.Slice{3}) {
		t.Fatalf("row 1 = %v, want [3]", got)
	}
}

func TestAdaptTupleBuildsColumns(t *testing.T) {
	a := NewAdaptTuple([]string{"n", "s"}, 2, shape.ValueOf{}, shape.TupleOf{})
	in := vector.Slice{[]interface{}{1, "a"}, []interface{}{2, "b"}}
	out, err := a.Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tv := out.(*vector.TupleVector)
	if tv.Length != 2 {
		t.Fatalf("Length = %d, want 2", tv.Length)
	}
	if !reflect.DeepEqual(tv.Columns[0], vector.Slice{1, 2}) {
		t.Fatalf("column 0 = %v, want [1 2]", tv.Columns[0])
	}
	if !reflect.DeepEqual(tv.Columns[1], vector.Slice{"a", "b"}) {
		t.Fatalf("column 1 = %v, want [a b]", tv.Columns[1])
	}
}

func TestWithColumnAppliesInnerToOneColumnOnly(t *testing.T) {
	double := NewLift(func(x int) int { return x * 2 }, shape.ValueOf{Type: intType}, shape.ValueOf{Type: intType})
	tv := &vector.TupleVector{
		Labels:  []string{"a", "b"},
		Length:  2,
		Columns: []vector.Vector{vector.Slice{1, 2}, vector.Slice{10, 20}},
	}
	wc := NewWithColumn(1, double, shape.TupleOf{}, shape.TupleOf{})
	out, err := wc.Run(tv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := out.(*vector.TupleVector)
	if !reflect.DeepEqual(res.Columns[1], vector.Slice{20, 40}) {
		t.Fatalf("column 1 = %v, want [20 40]", res.Columns[1])
	}
	if !reflect.DeepEqual(res.Columns[0], vector.Slice{1, 2}) {
		t.Fatalf("column 0 should be untouched, got %v", res.Columns[0])
	}
	if !reflect.DeepEqual(tv.Columns[1], vector.Slice{10, 20}) {
		t.Fatalf("WithColumn mutated the original tuple vector's column: %v", tv.Columns[1])
	}
}

func TestDistributeReplicatesOtherColumns(t *testing.T) {
	tv := &vector.TupleVector{
		Length: 2,
		Columns: []vector.Vector{
			vector.Slice{"x", "y"},
			&vector.BlockVector{Offsets: []int{1, 3, 4}, Elements: vector.Slice{10, 11, 12}, Card: cardinality.X0toN},
		},
	}
	d := NewDistribute(1, shape.TupleOf{}, shape.BlockOf{})
	out, err := d.Run(tv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if !reflect.DeepEqual(bv.Offsets, []int{1, 3, 4}) {
		t.Fatalf("Offsets = %v, want [1 3 4]", bv.Offsets)
	}
	inner := bv.Elements.(*vector.TupleVector)
	if !reflect.DeepEqual(inner.Columns[0], vector.Slice{"x", "x", "y"}) {
		t.Fatalf("replicated column = %v, want [x x y]", inner.Columns[0])
	}
	if !reflect.DeepEqual(inner.Columns[1], vector.Slice{10, 11, 12}) {
		t.Fatalf("distributed column = %v, want [10 11 12]", inner.Columns[1])
	}
}

func TestDistributeDenseSkipsRowExpansion(t *testing.T) {
	tv := &vector.TupleVector{
		Length: 2,
		Columns: []vector.Vector{
			vector.Slice{"x", "y"},
			&vector.BlockVector{Elements: vector.Slice{10, 20}, Card: cardinality.X1to1},
		},
	}
	d := NewDistribute(1, shape.TupleOf{}, shape.BlockOf{})
	out, err := d.Run(tv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bv := out.(*vector.BlockVector)
	if bv.Offsets != nil {
		t.Fatalf("dense distribute should leave Offsets nil, got %v", bv.Offsets)
	}
	inner := bv.Elements.(*vector.TupleVector)
	if !reflect.DeepEqual(inner.Columns[0], vector.Slice{"x", "y"}) {
		t.Fatalf("relabeled column = %v, want [x y]", inner.Columns[0])
	}
	if !reflect.DeepEqual(inner.Columns[1], vector.Slice{10, 20}) {
		t.Fatalf("column 1 = %v, want [10 20]", inner.Columns[1])
	}
}
