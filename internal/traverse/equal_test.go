package traverse

import (
	"testing"

	"github.com/gridbugs/archetype-lang/internal/model"
)

func TestStructuralEqualIgnoresPosition(t *testing.T) {
	a := &model.LitNat{TermBase: model.NewBase(model.Position{Line: 1}, model.Prim{Kind: model.PrimNat}), Value: 5}
	b := &model.LitNat{TermBase: model.NewBase(model.Position{Line: 99}, model.Prim{Kind: model.PrimNat}), Value: 5}

	if !StructuralEqual(a, b) {
		t.Fatal("StructuralEqual should ignore differing positions")
	}
}

func TestStructuralEqualDetectsValueDifference(t *testing.T) {
	a := natLit(1)
	b := natLit(2)

	if StructuralEqual(a, b) {
		t.Fatal("StructuralEqual should distinguish differing literal values")
	}
}

func TestStructuralEqualDetectsVariantDifference(t *testing.T) {
	a := natLit(1)
	b := &model.LitInt{TermBase: model.NewBase(model.NoPos, model.Prim{Kind: model.PrimInt}), Value: 1}

	if StructuralEqual(a, b) {
		t.Fatal("StructuralEqual should distinguish different Term variants")
	}
}

func TestStructuralEqualNested(t *testing.T) {
	a := &model.BinOp{Op: model.OpAdd, Left: natLit(1), Right: natLit(2)}
	b := &model.BinOp{
		TermBase: model.NewBase(model.Position{Line: 5}, nil),
		Op:       model.OpAdd,
		Left:     natLit(1),
		Right:    natLit(2),
	}

	if !StructuralEqual(a, b) {
		t.Fatal("StructuralEqual should recurse into children and ignore the parent's own position")
	}
}

func TestStructuralEqualNil(t *testing.T) {
	if !StructuralEqual(nil, nil) {
		t.Fatal("two nil terms should be structurally equal")
	}
	if StructuralEqual(nil, natLit(1)) {
		t.Fatal("nil should not equal a concrete term")
	}
}
