package passes

import (
	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
)

// extractLetsFromExpressions hoists a LetIn found as an operand of a BinOp
// or an argument of a Call out above that node, since the target VM can
// only bind a local within a sequence of instructions, never
// mid-expression. Only BinOp/Call chains starting at the function body's
// root are searched; a LetIn under any other node kind stays where it is.
// This is
// the pipeline's last structural normalization, run once every
// lowering pass that could introduce such nesting (Cohorts C through G)
// has already run.
func extractLetsFromExpressions(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	for i, fn := range out.Functions {
		if fn.Body == nil {
			continue
		}
		nf := *fn
		nf.Body = hoistLets(fn.Body)
		out.Functions[i] = &nf
	}
	return out
}

// hoistLets rewrites BinOp and Call nodes bottom-up, and whenever an
// operand or argument turns out to be a LetIn, splices that LetIn's binding
// above the current node as a wrapping LetIn instead, leaving the LetIn's
// body in the child's place. Any other node kind is returned as is, without
// descending into its children.
func hoistLets(t model.Term) model.Term {
	switch n := t.(type) {
	case *model.BinOp:
		left, leftLet := extractLet(hoistLets(n.Left))
		right, rightLet := extractLet(hoistLets(n.Right))
		c := *n
		c.Left, c.Right = left, right
		return wrapLets(&c, leftLet, rightLet)
	case *model.Call:
		args := make([]model.Term, len(n.Args))
		var lets []*model.LetIn
		for i, a := range n.Args {
			v, l := extractLet(hoistLets(a))
			args[i] = v
			if l != nil {
				lets = append(lets, l)
			}
		}
		c := *n
		c.Args = args
		return wrapLets(&c, lets...)
	default:
		return t
	}
}

// extractLet reports whether t is itself a LetIn; if so it returns the
// LetIn's body as the expression to use in place of t and the LetIn shell
// (with Body nil'd out) to be wrapped around whatever statement ultimately
// contains the expression.
func extractLet(t model.Term) (model.Term, *model.LetIn) {
	let, ok := t.(*model.LetIn)
	if !ok {
		return t, nil
	}
	shell := *let
	body := let.Body
	shell.Body = nil
	return body, &shell
}

func wrapLets(inner model.Term, lets ...*model.LetIn) model.Term {
	out := inner
	for i := len(lets) - 1; i >= 0; i-- {
		if lets[i] == nil {
			continue
		}
		shell := *lets[i]
		shell.Body = out
		out = &shell
	}
	return out
}
