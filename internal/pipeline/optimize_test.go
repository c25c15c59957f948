package pipeline

import (
	"testing"

	"github.com/dataknots/dataknots/internal/shape"
)

func TestOptimizeDropsTopLevelPass(t *testing.T) {
	inc := NewLift(func(x int) int { return x + 1 }, shape.ValueOf{Type: intType}, shape.ValueOf{Type: intType})
	chain := NewChain(NewPass(shape.ValueOf{Type: intType}), inc, NewPass(shape.ValueOf{Type: intType}))
	out := Optimize(chain)
	c, ok := out.(ChainOf)
	if ok {
		for _, p := range c.Ps {
			if isPass(p) {
				t.Fatalf("optimized chain still contains a pass(): %#v", c.Ps)
			}
		}
	} else if isPass(out) {
		t.Fatalf("optimizing a chain whose only real stage was lift() collapsed to pass()")
	}
}

func TestOptimizeAllPassCollapsesToSinglePass(t *testing.T) {
	s := shape.ValueOf{Type: intType}
	chain := NewChain(NewPass(s), NewPass(s))
	out := Optimize(chain)
	if !isPass(out) {
		t.Fatalf("an all-pass chain should collapse to a single pass(), got %T", out)
	}
}

func TestOptimizeMergesAdjacentWithElements(t *testing.T) {
	s := shape.ValueOf{Type: intType}
	inc := NewLift(func(x int) int { return x + 1 }, s, s)
	double := NewLift(func(x int) int { return x * 2 }, s, s)
	we1 := NewWithElements(inc, shape.BlockOf{Elem: s}, shape.BlockOf{Elem: s})
	we2 := NewWithElements(double, shape.BlockOf{Elem: s}, shape.BlockOf{Elem: s})
	chain := NewChain(we1, we2)

	out := Optimize(chain)
	merged, ok := out.(WithElements)
	if !ok {
		t.Fatalf("expected adjacent with_elements to merge into one, got %T", out)
	}
	if _, ok := merged.Inner.(ChainOf); !ok {
		if _, ok := merged.Inner.(Lift); !ok {
			t.Fatalf("merged with_elements inner should chain inc then double, got %T", merged.Inner)
		}
	}
}

func TestOptimizeIsIdempotentOnAnAlreadyOptimizedChain(t *testing.T) {
	s := shape.ValueOf{Type: intType}
	inc := NewLift(func(x int) int { return x + 1 }, s, s)
	once := Optimize(NewChain(NewPass(s), inc))
	twice := Optimize(once)
	if once.Signature() != twice.Signature() {
		t.Fatalf("re-optimizing should be a no-op on signature: %v vs %v", once.Signature(), twice.Signature())
	}
}
