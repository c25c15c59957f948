package pipeline

import "github.com/dataknots/dataknots/internal/signature"

// Optimize runs the fixed-point peephole rewrite of spec.md §4.1.1 over a
// chain, grounded on the teacher's analyzer rewrite-pass idiom: repeatedly
// apply a fixed rule set to every position until nothing changes. Fixed-point
// termination follows the same argument as spec.md: each rule strictly
// shortens the chain or reduces nesting, so the measure (len, depth) can only
// decrease a finite number of times.
func Optimize(p Primitive) Primitive {
	for {
		next, changed := optimizeOnce(p)
		if !changed {
			return next
		}
		p = next
	}
}

func chainOf(p Primitive) ([]Primitive, bool) {
	c, ok := p.(ChainOf)
	if !ok {
		return nil, false
	}
	return c.Ps, true
}

func optimizeOnce(p Primitive) (Primitive, bool) {
	ps, ok := chainOf(p)
	if !ok {
		return recurseInner(p)
	}

	changedAny := false
	// Rule 7: recurse into every element first (including nested chains).
	for i, step := range ps {
		rewritten, changed := optimizeOnce(step)
		if changed {
			ps[i] = rewritten
			changedAny = true
		}
	}
	ps = flattenChain(ps)

	rewritten := make([]Primitive, 0, len(ps))
	i := 0
	for i < len(ps) {
		// Rule 1: drop pass() at top level.
		if isPass(ps[i]) {
			i++
			changedAny = true
			continue
		}

		// Rule 2: with_elements(wrap()) . flatten() -> drop.
		if i+1 < len(ps) {
			if we, ok := ps[i].(WithElements); ok && isWrap(we.Inner) {
				if isFlatten(ps[i+1]) {
					i += 2
					changedAny = true
					continue
				}
			}
		}

		// Rule 3: wrap() . with_elements(p) . flatten() -> inline p.
		if i+2 < len(ps) {
			if isWrap(ps[i]) {
				if we, ok := ps[i+1].(WithElements); ok {
					if isFlatten(ps[i+2]) {
						rewritten = append(rewritten, flattenChain([]Primitive{we.Inner})...)
						i += 3
						changedAny = true
						continue
					}
				}
			}
		}

		// Rule 4: with_elements(p) . flatten() . with_elements(q)
		//       -> with_elements(chain_of(p,q)) . flatten().
		if i+2 < len(ps) {
			we1, ok1 := ps[i].(WithElements)
			fl, ok2 := ps[i+1].(Flatten)
			we2, ok3 := ps[i+2].(WithElements)
			if ok1 && ok2 && ok3 {
				merged := NewChain(we1.Inner, we2.Inner)
				weSig := signature.Of(we1.Signature().Source, merged.Signature().Target)
				rewritten = append(rewritten,
					WithElements{base{weSig}, merged},
					fl,
				)
				i += 3
				changedAny = true
				continue
			}
		}

		// Rule 5: tuple_of(_, ps) . column(i) -> inline ps[i].
		if i+1 < len(ps) {
			if tof, ok := ps[i].(TupleOf); ok {
				if col, ok := ps[i+1].(Column); ok {
					if col.Index >= 0 && col.Index < len(tof.Ps) {
						rewritten = append(rewritten, flattenChain([]Primitive{tof.Ps[col.Index]})...)
						i += 2
						changedAny = true
						continue
					}
				}
			}
		}

		// Rule 6: with_elements(p) . with_elements(q) -> with_elements(chain_of(p,q)).
		if i+1 < len(ps) {
			we1, ok1 := ps[i].(WithElements)
			we2, ok2 := ps[i+1].(WithElements)
			if ok1 && ok2 {
				merged := NewChain(we1.Inner, we2.Inner)
				weSig := signature.Of(we1.Signature().Source, merged.Signature().Target)
				rewritten = append(rewritten, WithElements{base{weSig}, merged})
				i += 2
				changedAny = true
				continue
			}
		}

		rewritten = append(rewritten, ps[i])
		i++
	}

	if len(rewritten) == 0 {
		// An all-pass chain collapses to a single identity; keep the
		// original signature so callers still see a valid source/target.
		return Pass{base{p.Signature()}}, changedAny
	}
	return NewChain(rewritten...), changedAny
}

// recurseInner descends into the inner pipeline of with_elements/with_column
// (rules 1's with_column(_, pass())/with_elements(pass()) cases, and general
// recursion so nested chains anywhere in the tree get optimized too).
func recurseInner(p Primitive) (Primitive, bool) {
	switch v := p.(type) {
	case WithElements:
		if isPass(v.Inner) {
			return Pass{base{v.Signature()}}, true
		}
		inner, changed := optimizeOnce(v.Inner)
		if changed {
			return WithElements{base{v.Signature()}, inner}, true
		}
	case WithColumn:
		if isPass(v.Inner) {
			return Pass{base{v.Signature()}}, true
		}
		inner, changed := optimizeOnce(v.Inner)
		if changed {
			return WithColumn{base{v.Signature()}, inner, v.Col}, true
		}
	case TupleOf:
		changedAny := false
		ps := make([]Primitive, len(v.Ps))
		for i, sub := range v.Ps {
			rewritten, changed := optimizeOnce(sub)
			ps[i] = rewritten
			changedAny = changedAny || changed
		}
		if changedAny {
			return TupleOf{base{v.Signature()}, v.Labels, ps}, true
		}
	}
	return p, false
}

func isPass(p Primitive) bool {
	_, ok := p.(Pass)
	return ok
}

func isWrap(p Primitive) bool {
	_, ok := p.(Wrap)
	return ok
}

func isFlatten(p Primitive) bool {
	_, ok := p.(Flatten)
	return ok
}
