package passes

import (
	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
	"github.com/gridbugs/archetype-lang/internal/traverse"
)

// stateEnumName is the synthesized enum declaration name for asset's
// implicit state machine, e.g. "order" with states {Open, Filled,
// Cancelled} gets a synthetic enum "order_state".
func stateEnumName(asset string) string { return asset + "_state" }

// processAssetState lowers every asset's `states` block into a synthesized
// EnumDecl plus rewrites AssetStateRef/AssetStateSet into a plain
// enum-typed get/EnumVal-tagged put over that enum, so remove_enum's
// single enum-erasure algorithm handles both user-declared enums and
// asset states uniformly.
func processAssetState(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	for _, a := range mdl.Assets {
		if len(a.States) == 0 {
			continue
		}
		ctors := make([]model.EnumCtor, len(a.States))
		validStates := map[string]bool{}
		for i, s := range a.States {
			ctors[i] = model.EnumCtor{Name: s}
			validStates[s] = true
		}
		if a.InitStates != "" && !validStates[a.InitStates] {
			bus.EmitError(a.Pos, diag.KindUnknownState, a.Name, a.InitStates)
		}
		enumDecl := &model.EnumDecl{Ctors: ctors}
		enumDecl.Name = stateEnumName(a.Name)
		enumDecl.Pos = a.Pos
		out.Enums = append(out.Enums, enumDecl)
	}
	rewrite := func(t model.Term) model.Term {
		switch n := t.(type) {
		case *model.AssetStateRef:
			// A bare state read, not a match: it produces the enum-tagged
			// value itself, which remove_enum later turns into a nat index.
			// Wrapping it in an EnumMatch here would need arms this node
			// carries none of.
			return &model.ContainerOp{
				TermBase: model.NewBase(n.Pos(), model.Named{Name: stateEnumName(n.Asset)}),
				Op:       model.OpGet,
				Target:   &model.Var{TermBase: model.NewBase(n.Pos(), model.Prim{}), Name: n.Asset},
				Args:     []model.Term{n.Key},
			}
		case *model.AssetStateSet:
			return &model.ContainerOp{
				TermBase: n.TermBase,
				Op:       model.OpPut,
				Target:   &model.Var{TermBase: model.NewBase(n.Pos(), model.Prim{}), Name: n.Asset},
				Args: []model.Term{n.Key, &model.EnumVal{
					TermBase: model.NewBase(n.Pos(), model.Named{Name: stateEnumName(n.Asset)}),
					EnumName: stateEnumName(n.Asset),
					Ctor:     n.State,
				}},
			}
		default:
			return t
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, out)
}

// removeEnum000 eliminates singleton enums — exactly one fieldless
// constructor, the "always index 0" case a state machine with only one
// declared state or a degenerate asset-state enum produces — before
// remove_enum's general N-constructor lowering runs. A singleton
// EnumVal becomes unit (there is nothing left to tag) and a singleton
// EnumMatch collapses straight to its one arm's body, rather than asking
// remove_enum to build a pointless one-armed Eq/If chain for a value that
// can only ever be equal to itself.
func removeEnum000(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	singleton := map[string]bool{}
	for _, e := range mdl.Enums {
		if len(e.Ctors) == 1 && len(e.Ctors[0].Fields) == 0 {
			singleton[e.Name] = true
		}
	}
	if len(singleton) == 0 {
		return mdl
	}
	rewrite := func(t model.Term) model.Term {
		switch n := t.(type) {
		case *model.EnumVal:
			if singleton[n.EnumName] {
				return &model.LitUnit{TermBase: model.NewBase(n.Pos(), model.Prim{Kind: model.PrimUnit})}
			}
		case *model.EnumMatch:
			if singleton[n.EnumName] && len(n.Arms) == 1 {
				return n.Arms[0].Body
			}
		}
		return t
	}
	out := traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
	kept := make([]*model.EnumDecl, 0, len(out.Enums))
	for _, e := range out.Enums {
		if !singleton[e.Name] {
			kept = append(kept, e)
		}
	}
	out.Enums = kept
	return out
}

// removeEnum lowers every EnumVal/EnumMatch into the primitive `nat`
// tagging scheme the target VM's enums compile to: EnumVal becomes a Nat
// literal (the constructor's declared index) and EnumMatch becomes a
// chain of If/Eq comparisons against that index. Constructor arguments and
// arm binders are not carried into the encoding: only the index is kept.
func removeEnum(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	index := map[string]map[string]int{}
	for _, e := range mdl.Enums {
		idx := map[string]int{}
		for i, c := range e.Ctors {
			idx[c.Name] = i
		}
		index[e.Name] = idx
	}
	rewrite := func(t model.Term) model.Term {
		switch n := t.(type) {
		case *model.EnumVal:
			idx, ok := index[n.EnumName][n.Ctor]
			if !ok {
				bus.EmitError(n.Pos(), diag.KindUnknownState, n.EnumName, n.Ctor)
				return t
			}
			return &model.LitNat{TermBase: model.NewBase(n.Pos(), model.Prim{Kind: model.PrimNat}), Value: uint64(idx)}
		case *model.EnumMatch:
			idx := index[n.EnumName]
			var chain model.Term = &model.Fail{TermBase: model.NewBase(n.Pos(), model.Prim{Kind: model.PrimNever}), Reason: &model.LitString{TermBase: model.NewBase(n.Pos(), model.Prim{Kind: model.PrimString}), Value: "no matching arm"}}
			for i := len(n.Arms) - 1; i >= 0; i-- {
				arm := n.Arms[i]
				cond := &model.BinOp{
					TermBase: model.NewBase(n.Pos(), model.Prim{Kind: model.PrimBool}),
					Op:       model.OpEq,
					Left:     n.Scrutinee,
					Right:    &model.LitNat{TermBase: model.NewBase(n.Pos(), model.Prim{Kind: model.PrimNat}), Value: uint64(idx[arm.Ctor])},
				}
				chain = &model.If{TermBase: n.TermBase, Cond: cond, Then: arm.Body, Else: chain}
			}
			return chain
		default:
			return t
		}
	}
	out := traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
	out.Enums = nil
	return out
}
