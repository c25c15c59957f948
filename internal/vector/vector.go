// Package vector implements the columnar runtime containers of spec.md
// §3.2: ragged BlockVectors, parallel-column TupleVectors, and plain
// scalar Slices, plus the O(1)-access invariants every pipeline primitive
// relies on.
package vector

import (
	"fmt"

	"github.com/dataknots/dataknots/internal/cardinality"
)

// Vector is any columnar container: a flat Slice of scalars, a BlockVector,
// or a TupleVector.
type Vector interface {
	Len() int
}

// Missing is the sentinel for an absent optional value — spec.md's
// "missing" marker. It lives here, rather than in pipeline or valuecodec
// separately, so both packages recognize the same sentinel value without
// one importing the other.
type Missing struct{}

func (Missing) String() string { return "missing" }

// Slice is a plain flat vector of scalar values.
type Slice []interface{}

// Len implements Vector.
func (s Slice) Len() int { return len(s) }

// BlockVector is a ragged sequence of blocks. Offsets[k]..Offsets[k+1]-1
// (1-based, half-open) names the slice of Elements belonging to row k.
// Offsets == nil is the dense encoding for "exactly one element per row",
// equivalent to Offsets = 1..Len()+1 but avoiding the O(n) allocation.
type BlockVector struct {
	Offsets  []int
	Elements Vector
	Card     cardinality.Cardinality
}

// Len implements Vector: the number of rows (blocks), not elements.
func (b *BlockVector) Len() int {
	if b.Offsets == nil {
		return b.Elements.Len()
	}
	return len(b.Offsets) - 1
}

// Dense reports whether b uses the one-per-row offset encoding.
func (b *BlockVector) Dense() bool { return b.Offsets == nil }

// Bounds returns the 0-based [start, end) slice of Elements for row i.
func (b *BlockVector) Bounds(i int) (start, end int) {
	if b.Offsets == nil {
		return i, i + 1
	}
	return b.Offsets[i] - 1, b.Offsets[i+1] - 1
}

// BlockLen returns the element count of row i's block.
func (b *BlockVector) BlockLen(i int) int {
	start, end := b.Bounds(i)
	return end - start
}

// Block returns row i's block as a Vector, sharing storage with Elements.
func (b *BlockVector) Block(i int) Vector {
	start, end := b.Bounds(i)
	return Sub(b.Elements, start, end)
}

// DenseOffsets materializes the 1..n+1 offsets explicitly; used by
// primitives (e.g. flatten) that need to compose offset sequences uniformly
// regardless of whether either side is dense.
func (b *BlockVector) DenseOffsets() []int {
	if b.Offsets != nil {
		return b.Offsets
	}
	n := b.Elements.Len()
	offs := make([]int, n+1)
	for i := range offs {
		offs[i] = i + 1
	}
	return offs
}

// TupleVector is a parallel array of equal-length columns. Labels is empty
// for a positional tuple, otherwise it has one entry per column (entries
// may be "" for an unlabeled column in an otherwise-labeled tuple).
type TupleVector struct {
	Labels  []string
	Length  int
	Columns []Vector
}

// Len implements Vector.
func (t *TupleVector) Len() int { return t.Length }

// ColumnIndex resolves a column by exact label; callers needing the
// ordinal-label fallback of spec.md §4.2.4 use shape.TupleOf.ColumnIndex on
// the matching shape instead, since ordinals are a shape-level concept.
func (t *TupleVector) ColumnIndex(name string) (int, bool) {
	for i, l := range t.Labels {
		if l == name {
			return i, true
		}
	}
	return 0, false
}

// Row materializes row i as a slice of scalar-ish values, one per column,
// recursing into nested containers only as far as Sub needs to.
func (t *TupleVector) Row(i int) []Vector {
	row := make([]Vector, len(t.Columns))
	for j, col := range t.Columns {
		row[j] = Sub(col, i, i+1)
	}
	return row
}

// WithColumn returns a copy of t with column j replaced by v, copying the
// outer column slice so the original TupleVector (and whoever else shares
// it) is untouched — spec.md §5's "with_column must copy the outer column
// list before overwriting slot j".
func (t *TupleVector) WithColumn(j int, v Vector) *TupleVector {
	cols := make([]Vector, len(t.Columns))
	copy(cols, t.Columns)
	cols[j] = v
	return &TupleVector{Labels: t.Labels, Length: t.Length, Columns: cols}
}

// Sub returns the [start, end) sub-vector of v, sharing storage — no
// element is copied, matching the engine's no-copy-on-select discipline.
func Sub(v Vector, start, end int) Vector {
	switch vv := v.(type) {
	case Slice:
		return vv[start:end]
	case *TupleVector:
		cols := make([]Vector, len(vv.Columns))
		for i, c := range vv.Columns {
			cols[i] = Sub(c, start, end)
		}
		return &TupleVector{Labels: vv.Labels, Length: end - start, Columns: cols}
	case *BlockVector:
		if vv.Offsets == nil {
			return &BlockVector{Elements: Sub(vv.Elements, start, end), Card: vv.Card}
		}
		offs := vv.Offsets[start : end+1]
		elemStart, elemEnd := offs[0]-1, offs[len(offs)-1]-1
		rebased := make([]int, len(offs))
		for i, o := range offs {
			rebased[i] = o - elemStart
		}
		return &BlockVector{Offsets: rebased, Elements: Sub(vv.Elements, elemStart, elemEnd), Card: vv.Card}
	default:
		panic(fmt.Sprintf("vector: Sub: unsupported vector type %T", v))
	}
}

// Concat concatenates same-kind vectors end to end into new storage; used
// by block_filler to assemble one Elements vector out of per-row blocks.
func Concat(parts ...Vector) Vector {
	if len(parts) == 0 {
		return Slice{}
	}
	switch parts[0].(type) {
	case Slice:
		out := make(Slice, 0)
		for _, p := range parts {
			out = append(out, p.(Slice)...)
		}
		return out
	case *TupleVector:
		first := parts[0].(*TupleVector)
		cols := make([][]Vector, len(first.Columns))
		length := 0
		for _, p := range parts {
			tv := p.(*TupleVector)
			length += tv.Length
			for i, c := range tv.Columns {
				cols[i] = append(cols[i], c)
			}
		}
		outCols := make([]Vector, len(cols))
		for i, cs := range cols {
			outCols[i] = Concat(cs...)
		}
		return &TupleVector{Labels: first.Labels, Length: length, Columns: outCols}
	case *BlockVector:
		offsets := []int{1}
		var elems []Vector
		card := parts[0].(*BlockVector).Card
		elemTotal := 0
		for _, p := range parts {
			bv := p.(*BlockVector)
			card = card.Widen(bv.Card)
			do := bv.DenseOffsets()
			for _, o := range do[1:] {
				offsets = append(offsets, elemTotal+o)
			}
			elemTotal += bv.Elements.Len()
			elems = append(elems, bv.Elements)
		}
		return &BlockVector{Offsets: offsets, Elements: Concat(elems...), Card: card}
	default:
		panic(fmt.Sprintf("vector: Concat: unsupported vector type %T", parts[0]))
	}
}
