package assembler

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/dataknots/dataknots/internal/cardinality"
	"github.com/dataknots/dataknots/internal/pipeline"
	"github.com/dataknots/dataknots/internal/query"
	"github.com/dataknots/dataknots/internal/shape"
	"github.com/dataknots/dataknots/internal/valuecodec"
	"github.com/dataknots/dataknots/internal/vector"
)

// Runtime is the per-run state the assembler carries while it walks a query
// AST: freshly created at run start, consumed, discarded (spec.md §5) —
// nothing survives across runs. RunID exists purely for error/trace
// correlation across the assemble/execute split, mirroring how the teacher's
// ext test harness tags a run with a uuid rather than any functional use.
type Runtime struct {
	RunID uuid.UUID
}

// NewRuntime creates a fresh per-run runtime.
func NewRuntime() *Runtime {
	return &Runtime{RunID: uuid.New()}
}

// Assemble drives the state machine of spec.md §4.2.5: pin is the pipeline
// built so far (target = the current flow, possibly scoped); n is the next
// AST node; the result extends pin with n's adapter(s) and primitive(s).
func (rt *Runtime) Assemble(n query.Node, pin pipeline.Primitive) (pipeline.Primitive, error) {
	switch node := n.(type) {
	case query.It:
		return rt.assembleIt(pin)
	case query.Navigation:
		cur := pin
		for _, name := range node.Path {
			var err error
			cur, err = rt.assembleGet(cur, name)
			if err != nil {
				return nil, err
			}
		}
		return cur, nil
	case query.Get:
		return rt.assembleGet(pin, node.Name)
	case query.Const:
		return rt.assembleConst(pin, node.Value)
	case query.Lift:
		return rt.assembleLift(pin, node)
	case query.Record:
		return rt.assembleRecord(pin, node)
	case query.Labeled:
		inner, err := rt.Assemble(node.Inner, pin)
		if err != nil {
			return nil, err
		}
		name := ""
		if node.HasLabel {
			name = node.Name
		}
		return rt.relabel(inner, name), nil
	case query.Tag:
		return rt.Assemble(node.Inner, pin)
	case query.Each:
		return rt.assembleEach(pin, node.Inner)
	case query.Keep:
		return rt.assembleKeep(pin, node.Bindings)
	case query.Given:
		kept, err := rt.assembleKeep(pin, node.Bindings)
		if err != nil {
			return nil, err
		}
		return rt.assembleEach(kept, node.Body)
	case query.Agg:
		return rt.assembleAgg(pin, node)
	case query.Filter:
		return rt.assembleFilter(pin, node.Inner)
	case query.Take:
		return rt.assembleTake(pin, node)
	case query.Compose:
		left, err := rt.Assemble(node.Left, pin)
		if err != nil {
			return nil, err
		}
		return rt.Assemble(node.Right, left)
	case query.Unique:
		return rt.assembleUnique(pin, node.Inner)
	case query.Reverse:
		return rt.assembleReverse(pin, node.Inner)
	case query.IsNull:
		return rt.assembleIsNull(pin, node.Inner, false)
	case query.Exists:
		return rt.assembleIsNull(pin, node.Inner, true)
	default:
		return nil, &ShapeMismatchError{Op: "assemble", Want: "a known query node", Got: "unsupported node"}
	}
}

func (rt *Runtime) relabel(p pipeline.Primitive, name string) pipeline.Primitive {
	t := p.Signature().Target
	return pipeline.NewChain(p, newReshape(t, shape.WithLabel(name, t)))
}

// --- It / Get --------------------------------------------------------------

func (rt *Runtime) assembleIt(pin pipeline.Primitive) (pipeline.Primitive, error) {
	elem, card, err := FlowElem(pin)
	if err != nil {
		return nil, err
	}
	if !shape.IsScope(elem) {
		return pin, nil
	}
	pair, ok := shape.Base(elem).(shape.TupleOf)
	if !ok || len(pair.Columns) != 2 {
		return nil, &ShapeMismatchError{Op: "It", Want: "a scope pair", Got: elem.String()}
	}
	subjShape := pair.Columns[0]
	newTarget := shape.AsFlow(shape.BlockOf{Elem: subjShape, Card: card})
	col := pipeline.NewColumn(0, elem, subjShape)
	we := pipeline.NewWithElements(col, pin.Signature().Target, newTarget)
	return pipeline.NewChain(pin, we), nil
}

func (rt *Runtime) assembleGet(pin pipeline.Primitive, name string) (pipeline.Primitive, error) {
	t := pin.Signature().Target
	elem, card, err := FlowElem(pin)
	if err != nil {
		return nil, err
	}
	if shape.IsScope(elem) {
		pair, ok := shape.Base(elem).(shape.TupleOf)
		if !ok || len(pair.Columns) != 2 {
			return nil, &ShapeMismatchError{Op: "Get", Want: "a scope pair", Got: elem.String()}
		}
		if ctx, ok := shape.Base(pair.Columns[1]).(shape.TupleOf); ok {
			if idx, found := ctx.ColumnIndex(name); found {
				colShape := ctx.Columns[idx]
				newTarget := shape.AsFlow(shape.BlockOf{Elem: colShape, Card: card})
				inner := pipeline.NewChain(
					pipeline.NewColumn(1, elem, pair.Columns[1]),
					pipeline.NewColumn(idx, pair.Columns[1], colShape),
				)
				we := pipeline.NewWithElements(inner, t, newTarget)
				return pipeline.NewChain(pin, we), nil
			}
		}
		if subj, ok := shape.Base(pair.Columns[0]).(shape.TupleOf); ok {
			if idx, found := subj.ColumnIndex(name); found {
				colShape := subj.Columns[idx]
				newTarget := shape.AsFlow(shape.BlockOf{Elem: colShape, Card: card})
				inner := pipeline.NewChain(
					pipeline.NewColumn(0, elem, pair.Columns[0]),
					pipeline.NewColumn(idx, pair.Columns[0], colShape),
				)
				we := pipeline.NewWithElements(inner, t, newTarget)
				return pipeline.NewChain(pin, we), nil
			}
		}
		return nil, &NameNotFoundError{Name: name}
	}
	tup, ok := shape.Base(elem).(shape.TupleOf)
	if !ok {
		return nil, &NameNotFoundError{Name: name}
	}
	idx, found := tup.ColumnIndex(name)
	if !found {
		return nil, &NameNotFoundError{Name: name}
	}
	colShape := tup.Columns[idx]
	newTarget := shape.AsFlow(shape.BlockOf{Elem: colShape, Card: card})
	col := pipeline.NewColumn(idx, elem, colShape)
	we := pipeline.NewWithElements(col, t, newTarget)
	return pipeline.NewChain(pin, we), nil
}

// --- Const / Lift ------------------------------------------------------

func (rt *Runtime) assembleConst(pin pipeline.Primitive, v interface{}) (pipeline.Primitive, error) {
	elems, elemShape, card := valuecodec.ToBlock(v)
	src := pin.Signature().Target
	target := shape.AsFlow(shape.BlockOf{Elem: elemShape, Card: card})
	filler := pipeline.NewBlockFiller(elems, card, src, elemShape)
	return pipeline.NewChain(pin, filler, newReshape(filler.Signature().Target, target)), nil
}

// toScalar reduces a flow-valued pipeline down to a flat per-row vector,
// requiring exactly one value per row (spec.md's x1to1 assumption for the
// scalar combinators: Lift's multi-argument form and Record's fields).
func (rt *Runtime) toScalar(p pipeline.Primitive) (pipeline.Primitive, shape.Shape, error) {
	elem, _, err := FlowElem(p)
	if err != nil {
		return nil, nil, err
	}
	unwrap := newUnwrapScalar(p.Signature().Target, elem)
	return pipeline.NewChain(p, unwrap), elem, nil
}

func fnReturnsVector(fn interface{}) bool {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func || t.NumOut() == 0 {
		return false
	}
	k := t.Out(0).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func (rt *Runtime) assembleLift(pin pipeline.Primitive, node query.Lift) (pipeline.Primitive, error) {
	argPs := make([]pipeline.Primitive, len(node.Args))
	for i, a := range node.Args {
		p, err := rt.Assemble(a, pin)
		if err != nil {
			return nil, err
		}
		argPs[i] = p
	}

	outShape := shape.ValueOf{}
	if ft := reflect.TypeOf(node.Fn); ft != nil && ft.Kind() == reflect.Func && ft.NumOut() > 0 {
		outShape = shape.ValueOf{Type: ft.Out(0)}
	}

	if len(node.Args) == 1 {
		argP := argPs[0]
		elem, card, err := FlowElem(argP)
		if err != nil {
			return nil, err
		}
		if card.IsPlural() && !fnReturnsVector(node.Fn) {
			bl := pipeline.NewBlockLift(node.Fn, argP.Signature().Target, outShape)
			scalarChain := pipeline.NewChain(argP, newReshape(argP.Signature().Target, shape.StripFlow(argP.Signature().Target)), bl)
			wrap := pipeline.NewWrap(outShape, outShape)
			full := pipeline.NewChain(scalarChain, wrap)
			return pipeline.NewChain(full, newReshape(full.Signature().Target, shape.AsFlow(shape.BlockOf{Elem: outShape, Card: cardinality.X1to1}))), nil
		}
		lift := pipeline.NewLift(node.Fn, elem, outShape)
		we := pipeline.NewWithElements(lift, argP.Signature().Target, shape.AsFlow(shape.BlockOf{Elem: outShape, Card: card}))
		return pipeline.NewChain(argP, we), nil
	}

	cols := make([]shape.Shape, len(argPs))
	ps := make([]pipeline.Primitive, len(argPs))
	for i, argP := range argPs {
		scalar, elem, err := rt.toScalar(argP)
		if err != nil {
			return nil, err
		}
		ps[i] = scalar
		cols[i] = elem
	}
	rootShape := pin.Signature().Source
	tupShape := shape.TupleOf{Columns: cols}
	tof := pipeline.NewTupleOf(nil, ps, rootShape, tupShape)
	tl := pipeline.NewTupleLift(node.Fn, tupShape, outShape)
	flat := pipeline.NewChain(tof, tl)
	wrapped := pipeline.NewWrap(outShape, outShape)
	full := pipeline.NewChain(flat, wrapped)
	return newReshape2(full, shape.AsFlow(shape.BlockOf{Elem: outShape, Card: cardinality.X1to1})), nil
}

// newReshape2 chains a cosmetic relabel after full so its declared target
// becomes tgt without touching the underlying vector.
func newReshape2(full pipeline.Primitive, tgt shape.Shape) pipeline.Primitive {
	return pipeline.NewChain(full, newReshape(full.Signature().Target, tgt))
}

// --- Record --------------------------------------------------------------

func (rt *Runtime) assembleRecord(pin pipeline.Primitive, node query.Record) (pipeline.Primitive, error) {
	labels := make([]string, len(node.Fields))
	seen := map[string]int{}
	for i, f := range node.Fields {
		lbl := f.Label
		if !f.HasLabel || lbl == "" {
			lbl = shape.OrdinalLabel(i)
		}
		if seen[lbl] > 0 {
			lbl = shape.OrdinalLabel(i)
		}
		seen[lbl]++
		labels[i] = lbl
	}

	cols := make([]shape.Shape, len(node.Fields))
	ps := make([]pipeline.Primitive, len(node.Fields))
	for i, f := range node.Fields {
		argP, err := rt.Assemble(f.Value, pin)
		if err != nil {
			return nil, err
		}
		scalar, elem, err := rt.toScalar(argP)
		if err != nil {
			return nil, err
		}
		ps[i] = scalar
		cols[i] = elem
	}
	rootShape := pin.Signature().Source
	tupShape := shape.TupleOf{Labels: labels, Columns: cols}
	tof := pipeline.NewTupleOf(labels, ps, rootShape, tupShape)
	wrapped := pipeline.NewWrap(tupShape, tupShape)
	full := pipeline.NewChain(tof, wrapped)
	return newReshape2(full, shape.AsFlow(shape.BlockOf{Elem: tupShape, Card: cardinality.X1to1})), nil
}

// --- Each / Filter ---------------------------------------------------------

// coverElement builds the pipeline a per-element combinator (Each, Filter,
// the Keep/Given body) assembles its inner query against: a fresh x1to1
// flow over whatever the current flow's element shape is.
func coverElement(pin pipeline.Primitive) (pipeline.Primitive, error) {
	elem, _, err := FlowElem(pin)
	if err != nil {
		return nil, err
	}
	return Cover(elem), nil
}

func (rt *Runtime) assembleEach(pin pipeline.Primitive, body query.Node) (pipeline.Primitive, error) {
	elemPin, err := coverElement(pin)
	if err != nil {
		return nil, err
	}
	inner, err := rt.Assemble(body, elemPin)
	if err != nil {
		return nil, err
	}
	return composeFlow(pin, inner)
}

// composeFlow realigns inner (built over a single-element x1to1 cover) back
// into pin's outer flow via with_elements(inner)·flatten() — spec.md
// §4.2.3's flow-realignment rule.
func composeFlow(pin, inner pipeline.Primitive) (pipeline.Primitive, error) {
	outerT := pin.Signature().Target
	innerElem, innerCard, err := FlowElem(inner)
	if err != nil {
		return nil, err
	}
	_, outerCard, err := FlowElem(pin)
	if err != nil {
		return nil, err
	}
	nestedTarget := shape.BlockOf{Elem: shape.BlockOf{Elem: innerElem, Card: innerCard}, Card: outerCard}
	we := pipeline.NewWithElements(inner, shape.StripFlow(shape.StripLabel(outerT)), nestedTarget)
	flatTarget := shape.AsFlow(shape.BlockOf{Elem: innerElem, Card: outerCard.Widen(innerCard)})
	fl := pipeline.NewFlatten(nestedTarget, flatTarget)
	return pipeline.NewChain(pin, we, fl), nil
}

func (rt *Runtime) assembleFilter(pin pipeline.Primitive, pred query.Node) (pipeline.Primitive, error) {
	elemPin, err := coverElement(pin)
	if err != nil {
		return nil, err
	}
	predP, err := rt.Assemble(pred, elemPin)
	if err != nil {
		return nil, err
	}
	boolElem, _, err := FlowElem(predP)
	if err != nil {
		return nil, err
	}
	if bv, ok := boolElem.(shape.ValueOf); !ok || bv.Type != boolType {
		return nil, &ShapeMismatchError{Op: "Filter", Want: "a Bool predicate", Got: boolElem.String()}
	}
	uncovered := Uncover(predP)

	elem, _, err := FlowElem(pin)
	if err != nil {
		return nil, err
	}
	passPrim := pipeline.NewPass(elem)
	tupShape := shape.TupleOf{Columns: []shape.Shape{elem, shape.ValueOf{Type: boolType}}}
	blockAny := pipeline.NewBlockAny(uncovered.Signature().Target, shape.ValueOf{Type: boolType})
	boolScalar := pipeline.NewChain(uncovered, blockAny)
	tof := pipeline.NewTupleOf(nil, []pipeline.Primitive{passPrim, boolScalar}, elem, tupShape)
	sieveTarget := shape.BlockOf{Elem: elem, Card: cardinality.X0to1}
	sieve := pipeline.NewSieve(tupShape, sieveTarget)
	inner := pipeline.NewChain(tof, sieve)
	return composeFlow(pin, wrapAsElementFlow(inner, elem, cardinality.X0to1))
}

// wrapAsElementFlow declares inner (whose source is a plain element shape)
// as an x0to1-or-wider flow, so composeFlow can realign it.
func wrapAsElementFlow(inner pipeline.Primitive, elem shape.Shape, card cardinality.Cardinality) pipeline.Primitive {
	tgt := shape.AsFlow(shape.BlockOf{Elem: elem, Card: card})
	return pipeline.NewChain(inner, newReshape(inner.Signature().Target, tgt))
}

var boolType = reflect.TypeOf(false)

// --- Keep / Given ------------------------------------------------------

func (rt *Runtime) assembleKeep(pin pipeline.Primitive, bindings []query.Binding) (pipeline.Primitive, error) {
	elem, _, err := FlowElem(pin)
	if err != nil {
		return nil, err
	}

	var priorCtx shape.TupleOf
	if shape.IsScope(elem) {
		pair := shape.Base(elem).(shape.TupleOf)
		priorCtx, _ = shape.Base(pair.Columns[1]).(shape.TupleOf)
	}

	var names []string
	var colShapes []shape.Shape
	var colPs []pipeline.Primitive
	for _, nm := range priorCtx.Labels {
		getP, err := rt.assembleGet(pin, nm)
		if err != nil {
			return nil, err
		}
		scalar, bshape, err := rt.toScalar(getP)
		if err != nil {
			return nil, err
		}
		names = append(names, nm)
		colShapes = append(colShapes, bshape)
		colPs = append(colPs, scalar)
	}

	for _, b := range bindings {
		argP, err := rt.Assemble(b.Value, pin)
		if err != nil {
			return nil, err
		}
		scalar, bshape, err := rt.toScalar(argP)
		if err != nil {
			return nil, err
		}
		replaced := false
		for i, nm := range names {
			if nm == b.Name {
				colShapes[i] = bshape
				colPs[i] = scalar
				replaced = true
				break
			}
		}
		if !replaced {
			names = append(names, b.Name)
			colShapes = append(colShapes, bshape)
			colPs = append(colPs, scalar)
		}
	}

	rootShape := pin.Signature().Source
	newCtxShape := shape.TupleOf{Labels: names, Columns: colShapes}
	ctxTuple := pipeline.NewTupleOf(names, colPs, rootShape, newCtxShape)

	subjArgP, err := rt.assembleIt(pin)
	if err != nil {
		return nil, err
	}
	subjScalar, subjShape, err := rt.toScalar(subjArgP)
	if err != nil {
		return nil, err
	}

	pairShape := shape.TupleOf{Columns: []shape.Shape{subjShape, newCtxShape}}
	pairTuple := pipeline.NewTupleOf(nil, []pipeline.Primitive{subjScalar, ctxTuple}, rootShape, pairShape)
	scopedElem := shape.AsScope(shape.Shape(pairShape))
	wrapped := pipeline.NewWrap(pairShape, scopedElem)
	full := pipeline.NewChain(pairTuple, wrapped)
	return newReshape2(full, shape.AsFlow(shape.BlockOf{Elem: scopedElem, Card: cardinality.X1to1})), nil
}

// --- Aggregation (Count/Sum/Max/Min/Mean) ----------------------------------

// assembleAgg reduces the CURRENT flow's own block (spec.md's "assemble X
// against the current element": for Count/Sum/Max/Min/Mean, the current
// element already is the block being aggregated — unlike Each/Filter, there
// is no extra per-element nesting to undo, so node.Inner is assembled
// directly against pin and the result replaces pin rather than being
// realigned back into it via composeFlow).
func (rt *Runtime) assembleAgg(pin pipeline.Primitive, node query.Agg) (pipeline.Primitive, error) {
	inner, err := rt.Assemble(node.Inner, pin)
	if err != nil {
		return nil, err
	}
	uncovered := Uncover(inner)
	innerElem, innerCard, err := FlowElem(inner)
	if err != nil {
		return nil, err
	}

	var aggPrim pipeline.Primitive
	var outShape shape.Shape = shape.ValueOf{Type: intType}
	switch node.Kind {
	case query.AggCount:
		aggPrim = pipeline.NewBlockLength(uncovered.Signature().Target, outShape)
	case query.AggSum:
		outShape = innerElem
		if innerCard.IsOptional() {
			aggPrim = pipeline.NewBlockLiftDefault(sumFn, 0, uncovered.Signature().Target, outShape)
		} else {
			aggPrim = pipeline.NewBlockLift(sumFn, uncovered.Signature().Target, outShape)
		}
	case query.AggMax, query.AggMin:
		outShape = innerElem
		fn := maxFn
		if node.Kind == query.AggMin {
			fn = minFn
		}
		if innerCard.IsOptional() {
			aggPrim = pipeline.NewBlockLiftDefault(fn, valuecodec.Missing{}, uncovered.Signature().Target, shape.BlockOf{Elem: outShape, Card: cardinality.X0to1})
			outShape = shape.BlockOf{Elem: innerElem, Card: cardinality.X0to1}
		} else {
			aggPrim = pipeline.NewBlockLift(fn, uncovered.Signature().Target, outShape)
		}
	case query.AggMean:
		outShape = shape.ValueOf{Type: floatType}
		if innerCard.IsOptional() {
			aggPrim = pipeline.NewBlockLiftDefault(meanFn, valuecodec.Missing{}, uncovered.Signature().Target, shape.BlockOf{Elem: outShape, Card: cardinality.X0to1})
			outShape = shape.BlockOf{Elem: outShape, Card: cardinality.X0to1}
		} else {
			aggPrim = pipeline.NewBlockLift(meanFn, uncovered.Signature().Target, outShape)
		}
	}

	scalarChain := pipeline.NewChain(uncovered, aggPrim)
	wrap := pipeline.NewWrap(outShape, outShape)
	full := pipeline.NewChain(scalarChain, wrap)
	return newReshape2(full, shape.AsFlow(shape.BlockOf{Elem: outShape, Card: cardinality.X1to1})), nil
}

var intType = reflect.TypeOf(0)
var floatType = reflect.TypeOf(0.0)

func sumFn(xs vector.Slice) interface{} {
	total := 0.0
	isInt := true
	for _, x := range xs {
		switch n := x.(type) {
		case int:
			total += float64(n)
		case float64:
			total += n
			isInt = false
		}
	}
	if isInt {
		return int(total)
	}
	return total
}

func maxFn(xs vector.Slice) interface{} {
	if len(xs) == 0 {
		return valuecodec.Missing{}
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if numLess(best, x) {
			best = x
		}
	}
	return best
}

func minFn(xs vector.Slice) interface{} {
	if len(xs) == 0 {
		return valuecodec.Missing{}
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if numLess(x, best) {
			best = x
		}
	}
	return best
}

func meanFn(xs vector.Slice) interface{} {
	if len(xs) == 0 {
		return valuecodec.Missing{}
	}
	total := 0.0
	for _, x := range xs {
		total += numFloat(x)
	}
	return total / float64(len(xs))
}

func numFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func numLess(a, b interface{}) bool { return numFloat(a) < numFloat(b) }

// --- Filter-adjacent combinators: Unique/Reverse/IsNull/Exists --------------

func (rt *Runtime) assembleUnique(pin pipeline.Primitive, inner query.Node) (pipeline.Primitive, error) {
	assembled, err := rt.Assemble(inner, pin)
	if err != nil {
		return nil, err
	}
	uncovered := Uncover(assembled)
	elem, _, err := FlowElem(assembled)
	if err != nil {
		return nil, err
	}
	uniq := newUniquePrimitive(uncovered.Signature().Target, shape.BlockOf{Elem: elem, Card: cardinality.X0toN})
	return pipeline.NewChain(uncovered, uniq, newReshape(uniq.Signature().Target, shape.AsFlow(shape.BlockOf{Elem: elem, Card: cardinality.X0toN}))), nil
}

func (rt *Runtime) assembleReverse(pin pipeline.Primitive, inner query.Node) (pipeline.Primitive, error) {
	assembled, err := rt.Assemble(inner, pin)
	if err != nil {
		return nil, err
	}
	uncovered := Uncover(assembled)
	elem, card, err := FlowElem(assembled)
	if err != nil {
		return nil, err
	}
	rev := newReversePrimitive(uncovered.Signature().Target, shape.BlockOf{Elem: elem, Card: card})
	return pipeline.NewChain(uncovered, rev, newReshape(rev.Signature().Target, shape.AsFlow(shape.BlockOf{Elem: elem, Card: card}))), nil
}

func (rt *Runtime) assembleIsNull(pin pipeline.Primitive, inner query.Node, negate bool) (pipeline.Primitive, error) {
	assembled, err := rt.Assemble(inner, pin)
	if err != nil {
		return nil, err
	}
	uncovered := Uncover(assembled)
	outShape := shape.ValueOf{Type: boolType}
	check := newEmptyCheckPrimitive(uncovered.Signature().Target, outShape, negate)
	wrap := pipeline.NewWrap(outShape, outShape)
	full := pipeline.NewChain(uncovered, check, wrap)
	return newReshape2(full, shape.AsFlow(shape.BlockOf{Elem: outShape, Card: cardinality.X1to1})), nil
}

// --- Take / Drop ------------------------------------------------------------

func (rt *Runtime) assembleTake(pin pipeline.Primitive, node query.Take) (pipeline.Primitive, error) {
	elem, card, err := FlowElem(pin)
	if err != nil {
		return nil, err
	}
	newCard := card.Widen(cardinality.X0to1)
	if node.HasStaticN {
		sl := pipeline.NewSliceN(node.StaticN, node.Reverse, pin.Signature().Target, shape.BlockOf{Elem: elem, Card: newCard})
		return pipeline.NewChain(pin, sl, newReshape(sl.Signature().Target, shape.AsFlow(shape.BlockOf{Elem: elem, Card: newCard}))), nil
	}

	nP, err := rt.Assemble(node.DynamicN, Cover(pin.Signature().Source))
	if err != nil {
		return nil, err
	}
	nScalar, nShape, err := rt.toScalar(nP)
	if err != nil {
		return nil, err
	}
	if vs, ok := nShape.(shape.ValueOf); !ok || vs.Type != intType {
		return nil, &ShapeMismatchError{Op: "Take", Want: "an Int", Got: nShape.String()}
	}
	rootShape := pin.Signature().Source
	blockCol := pipeline.NewChain(pin, newReshape(pin.Signature().Target, shape.StripFlow(shape.StripLabel(pin.Signature().Target))))
	tupShape := shape.TupleOf{Columns: []shape.Shape{shape.BlockOf{Elem: elem, Card: card}, shape.ValueOf{Type: intType}}}
	tof := pipeline.NewTupleOf(nil, []pipeline.Primitive{blockCol, nScalar}, rootShape, tupShape)
	sl := pipeline.NewSliceDynamic(node.Reverse, tupShape, shape.BlockOf{Elem: elem, Card: newCard})
	full := pipeline.NewChain(tof, sl)
	return newReshape2(full, shape.AsFlow(shape.BlockOf{Elem: elem, Card: newCard})), nil
}
