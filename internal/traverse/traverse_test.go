package traverse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbugs/archetype-lang/internal/model"
)

func natLit(v uint64) *model.LitNat {
	return &model.LitNat{TermBase: model.NewBase(model.NoPos, model.Prim{Kind: model.PrimNat}), Value: v}
}

func TestMapTermRewritesLeaves(t *testing.T) {
	tree := &model.BinOp{
		Op:    model.OpAdd,
		Left:  natLit(1),
		Right: natLit(2),
	}

	doubled := MapTerm(func(t model.Term) model.Term {
		if n, ok := t.(*model.LitNat); ok {
			c := *n
			c.Value *= 2
			return &c
		}
		return t
	}, tree)

	bin, ok := doubled.(*model.BinOp)
	require.True(t, ok)
	assert.Equal(t, uint64(2), bin.Left.(*model.LitNat).Value)
	assert.Equal(t, uint64(4), bin.Right.(*model.LitNat).Value)
}

func TestMapTermLeavesOriginalUntouched(t *testing.T) {
	orig := &model.BinOp{Op: model.OpAdd, Left: natLit(1), Right: natLit(2)}
	_ = MapTerm(func(t model.Term) model.Term {
		if n, ok := t.(*model.LitNat); ok {
			c := *n
			c.Value = 99
			return &c
		}
		return t
	}, orig)

	assert.Equal(t, uint64(1), orig.Left.(*model.LitNat).Value, "MapTerm mutated the input tree in place")
}

func TestFoldTermVisitsEveryNode(t *testing.T) {
	tree := &model.Seq{Items: []model.Term{natLit(1), natLit(2), natLit(3)}}

	count := FoldTerm(func(acc int, _ model.Term) int {
		return acc + 1
	}, 0, tree)

	// the Seq itself plus its three literal children.
	assert.Equal(t, 4, count)
}

func TestFoldTermPreOrder(t *testing.T) {
	tree := &model.UnOp{Op: model.OpNeg, Operand: natLit(5)}

	var order []string
	order = FoldTerm(func(acc []string, t model.Term) []string {
		switch t.(type) {
		case *model.UnOp:
			return append(acc, "unop")
		case *model.LitNat:
			return append(acc, "litnat")
		}
		return acc
	}, order, tree)

	assert.Equal(t, []string{"unop", "litnat"}, order)
}

func TestMapMtermModelThreadsPerFunctionContext(t *testing.T) {
	fnA := &model.FunctionDecl{
		Kind: model.KindEntry,
		Body: natLit(1),
	}
	fnA.Name = "a"
	fnB := &model.FunctionDecl{
		Kind: model.KindEntry,
		Body: natLit(2),
	}
	fnB.Name = "b"
	mdl := &model.Model{Functions: []*model.FunctionDecl{fnA, fnB}}

	var seen []string
	MapMtermModel(func(ctx Context, t model.Term) model.Term {
		if _, ok := t.(*model.LitNat); ok {
			seen = append(seen, ctx.Function)
		}
		return t
	}, mdl)

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestMapMtermModelDoesNotMutateInput(t *testing.T) {
	fn := &model.FunctionDecl{Kind: model.KindEntry, Body: natLit(7)}
	fn.Name = "f"
	mdl := &model.Model{Functions: []*model.FunctionDecl{fn}}

	out := MapMtermModel(func(_ Context, t model.Term) model.Term {
		if n, ok := t.(*model.LitNat); ok {
			c := *n
			c.Value = 0
			return &c
		}
		return t
	}, mdl)

	assert.Equal(t, uint64(7), mdl.Functions[0].Body.(*model.LitNat).Value, "MapMtermModel mutated the input model's function body")
	assert.Equal(t, uint64(0), out.Functions[0].Body.(*model.LitNat).Value, "MapMtermModel did not rewrite the cloned model's body")
}

func TestMapChildrenPanicsOnUnknownVariant(t *testing.T) {
	assert.Panics(t, func() {
		MapTerm(func(t model.Term) model.Term { return t }, &unknownTerm{})
	})
}

// unknownTerm satisfies model.Term but is not one of the closed set's
// concrete variants, exercising the traversal kit's unreachable fallback.
type unknownTerm struct{ model.TermBase }
