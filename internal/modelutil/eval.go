package modelutil

import "github.com/gridbugs/archetype-lang/internal/model"

// Eval partially evaluates a literal-only term, returning the same term
// unchanged if it contains anything beyond literals and arithmetic/boolean
// operators over literals. Passes use it to fold constant expressions
// introduced by rewriting (e.g. a rational literal's denominator after
// remove_rational has split num/den into separate Nat literals) without
// pulling in a general constant-propagation pass.
func Eval(t model.Term) model.Term {
	switch n := t.(type) {
	case *model.BinOp:
		l, r := Eval(n.Left), Eval(n.Right)
		if res := evalBinOp(n.Op, l, r); res != nil {
			return res
		}
		c := *n
		c.Left, c.Right = l, r
		return &c
	case *model.UnOp:
		v := Eval(n.Operand)
		if res := evalUnOp(n.Op, v); res != nil {
			return res
		}
		c := *n
		c.Operand = v
		return &c
	default:
		return t
	}
}

func evalBinOp(op model.BinOpKind, l, r model.Term) model.Term {
	li, lok := asInt(l)
	ri, rok := asInt(r)
	if !lok || !rok {
		return nil
	}
	switch op {
	case model.OpAdd:
		return intLike(l, li+ri)
	case model.OpSub:
		return intLike(l, li-ri)
	case model.OpMul:
		return intLike(l, li*ri)
	case model.OpDiv:
		if ri == 0 {
			return nil
		}
		return intLike(l, li/ri)
	case model.OpMod:
		if ri == 0 {
			return nil
		}
		return intLike(l, li%ri)
	case model.OpEq:
		return &model.LitBool{TermBase: model.NewBase(l.Pos(), model.Prim{Kind: model.PrimBool}), Value: li == ri}
	case model.OpLt:
		return &model.LitBool{TermBase: model.NewBase(l.Pos(), model.Prim{Kind: model.PrimBool}), Value: li < ri}
	case model.OpLe:
		return &model.LitBool{TermBase: model.NewBase(l.Pos(), model.Prim{Kind: model.PrimBool}), Value: li <= ri}
	case model.OpGt:
		return &model.LitBool{TermBase: model.NewBase(l.Pos(), model.Prim{Kind: model.PrimBool}), Value: li > ri}
	case model.OpGe:
		return &model.LitBool{TermBase: model.NewBase(l.Pos(), model.Prim{Kind: model.PrimBool}), Value: li >= ri}
	default:
		return nil
	}
}

func evalUnOp(op model.UnOpKind, v model.Term) model.Term {
	i, ok := asInt(v)
	if !ok {
		return nil
	}
	switch op {
	case model.OpNeg:
		return intLike(v, -i)
	case model.OpAbs:
		if i < 0 {
			i = -i
		}
		return intLike(v, i)
	default:
		return nil
	}
}

func asInt(t model.Term) (int64, bool) {
	switch n := t.(type) {
	case *model.LitInt:
		return n.Value, true
	case *model.LitNat:
		return int64(n.Value), true
	default:
		return 0, false
	}
}

func intLike(template model.Term, v int64) model.Term {
	if _, ok := template.(*model.LitNat); ok && v >= 0 {
		return &model.LitNat{TermBase: model.NewBase(template.Pos(), model.Prim{Kind: model.PrimNat}), Value: uint64(v)}
	}
	return &model.LitInt{TermBase: model.NewBase(template.Pos(), model.Prim{Kind: model.PrimInt}), Value: v}
}

// WithOperationsForMterm wraps body in a LetIn that binds accumVar to an
// empty operation list. body itself is returned unchanged as the LetIn's
// body: MkOperation terms inside it are not rewritten to cons onto the
// accumulator.
func WithOperationsForMterm(accumVar string, body model.Term) model.Term {
	return &model.LetIn{
		TermBase: model.NewBase(body.Pos(), body.Typ()),
		Name:     accumVar,
		Init: &model.ListLit{
			TermBase: model.NewBase(body.Pos(), model.Param{Kind: model.ParamList, Args: []model.Type{model.Prim{Kind: model.PrimOperation}}}),
		},
		Body: body,
	}
}
