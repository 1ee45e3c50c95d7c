package passes

import (
	"fmt"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
	"github.com/gridbugs/archetype-lang/internal/modelutil"
	"github.com/gridbugs/archetype-lang/internal/traverse"
)

// removeDuplicateKey collapses asset init-value rows that share the same
// key, the way a map literal with repeated keys keeps only the last
// assignment: later rows win over earlier ones with the same key, rather
// than building a collection whose literal construction order is
// ambiguous. Keys are compared by the same printed form check_asset_init
// (Cohort A) uses to report them as an error, so only keys that print
// identically are merged; keys that evaluate the same but are spelled
// differently are kept as separate rows.
func removeDuplicateKey(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	out.Assets = append([]*model.AssetDecl{}, mdl.Assets...)
	for i, a := range out.Assets {
		if len(a.InitValues) < 2 {
			continue
		}
		seen := map[string]int{}
		var deduped []model.RecordLit
		for _, lit := range a.InitValues {
			keyTerm, ok := keyOf(a, lit)
			if !ok {
				deduped = append(deduped, lit)
				continue
			}
			ks := fmt.Sprintf("%v", keyTerm)
			if idx, exists := seen[ks]; exists {
				deduped[idx] = lit
				continue
			}
			seen[ks] = len(deduped)
			deduped = append(deduped, lit)
		}
		na := *a
		na.InitValues = deduped
		out.Assets[i] = &na
	}
	return out
}

// replaceDotassetfieldByDot rewrites the high-level `asset[key].field` read
// form (DotAssetField) into an ordinary FieldAccess over an explicit
// get-by-key AssetCall, so every later pass that only knows how to rewrite
// FieldAccess/AssetCall never has to special-case the dotted form.
func replaceDotassetfieldByDot(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		d, ok := t.(*model.DotAssetField)
		if !ok {
			return t
		}
		get := &model.AssetCall{
			TermBase: model.NewBase(d.Pos(), d.Typ()),
			Asset:    d.Asset,
			Method:   model.MethodGet,
			Recv:     &model.Var{TermBase: model.NewBase(d.Pos(), model.Named{Name: d.Asset}), Name: d.Asset},
			Args:     []model.Term{d.Key},
		}
		return &model.FieldAccess{TermBase: d.TermBase, Record: get, Field: d.Field}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// replaceAssignfieldByUpdate rewrites the high-level `asset[key].field := v`
// / `+=`/`-=`/`*=`/`/=` instruction form (AssetFieldAssign) into the
// ordinary `update` asset method call that remove_add_update and
// replace_update_by_set already know how to lower: a compound assignment
// first reads the field's current value through a get, then combines it
// with the right-hand side via the matching BinOp.
func replaceAssignfieldByUpdate(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		a, ok := t.(*model.AssetFieldAssign)
		if !ok {
			return t
		}
		value := a.Value
		if a.Op != model.AssignSet {
			current := &model.FieldAccess{
				TermBase: model.NewBase(a.Pos(), a.Value.Typ()),
				Record: &model.AssetCall{
					TermBase: model.NewBase(a.Pos(), model.Named{Name: a.Asset}),
					Asset:    a.Asset,
					Method:   model.MethodGet,
					Recv:     &model.Var{TermBase: model.NewBase(a.Pos(), model.Named{Name: a.Asset}), Name: a.Asset},
					Args:     []model.Term{a.Key},
				},
				Field: a.Field,
			}
			value = &model.BinOp{
				TermBase: model.NewBase(a.Pos(), a.Value.Typ()),
				Op:       assignOpToBinOp(a.Op),
				Left:     current,
				Right:    a.Value,
			}
		}
		return &model.AssetCall{
			TermBase: model.NewBase(a.Pos(), model.Prim{Kind: model.PrimUnit}),
			Asset:    a.Asset,
			Method:   model.MethodUpdate,
			Recv:     &model.Var{TermBase: model.NewBase(a.Pos(), model.Named{Name: a.Asset}), Name: a.Asset},
			Args: []model.Term{a.Key, &model.RecordLit{
				TermBase: model.NewBase(a.Pos(), model.Named{Name: a.Asset}),
				Fields:   []model.RecordField{{Name: a.Field, Value: value}},
			}},
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

func assignOpToBinOp(op model.AssignOpKind) model.BinOpKind {
	switch op {
	case model.AssignAdd:
		return model.OpAdd
	case model.AssignSub:
		return model.OpSub
	case model.AssignMul:
		return model.OpMul
	case model.AssignDiv:
		return model.OpDiv
	default:
		return model.OpAdd
	}
}

// replaceInstrVerif rewrites the surface `verify(cond, reason)` instruction
// — still represented as a named Call until this pass classifies it — into
// the explicit `if not cond then fail(reason)` every later cohort's Fail
// handling already understands.
func replaceInstrVerif(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.Call)
		if !ok || call.Callee != "verify" || len(call.Args) == 0 {
			return t
		}
		cond := call.Args[0]
		var reason model.Term = &model.LitUnit{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit})}
		if len(call.Args) > 1 {
			reason = call.Args[1]
		}
		return &model.If{
			TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}),
			Cond: &model.UnOp{
				TermBase: model.NewBase(cond.Pos(), model.Prim{Kind: model.PrimBool}),
				Op:       model.OpNot,
				Operand:  cond,
			},
			Then: &model.Fail{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimNever}), Reason: reason},
			Else: &model.LitUnit{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit})},
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// removeAddUpdate rewrites the combined `add_update` asset method — insert
// if the key is absent, merge-update the existing row otherwise — into an
// explicit OptionMatch over a ContainerOp get_opt: the canonical
// insert-or-merge idiom every later cohort's container lowering expects to
// see rather than having to special-case add_update itself.
func removeAddUpdate(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.AssetCall)
		if !ok || call.Method != model.MethodAddUpdate {
			return t
		}
		asset, err := modelutil.GetAsset(mdl, call.Asset)
		if err != nil {
			bus.EmitError(call.Pos(), diag.KindUnknownAsset, call.Asset)
			return t
		}
		lit, ok := call.Args[0].(*model.RecordLit)
		if !ok {
			bus.EmitError(call.Pos(), diag.KindCannotBuildAsset, call.Asset)
			return t
		}
		key, rest := modelutil.ExtractKeyValueFromMasset(asset, lit)
		getOpt := &model.ContainerOp{
			TermBase: model.NewBase(call.Pos(), model.Param{Kind: model.ParamOption, Args: []model.Type{rest.Typ()}}),
			Op:       model.OpGetOpt,
			Target:   call.Recv,
			Args:     []model.Term{key},
		}
		mergeBody := mergeRecordFields(asset, rest, "__existing")
		return &model.ContainerOp{
			TermBase: model.NewBase(call.Pos(), call.Typ()),
			Op:       model.OpPut,
			Target:   call.Recv,
			Args: []model.Term{key, &model.OptionMatch{
				TermBase: model.NewBase(call.Pos(), rest.Typ()),
				Scrutinee: getOpt,
				SomeVar:   "__existing",
				SomeBody:  mergeBody,
				NoneBody:  rest,
			}},
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// mergeRecordFields builds the record literal that results from
// overwriting existingVar's fields with whatever fields update explicitly
// sets, keeping existingVar's value for every field update does not
// mention — the semantics of add_update's merge branch and of the
// high-level `update` method alike.
func mergeRecordFields(asset *model.AssetDecl, update *model.RecordLit, existingVar string) model.Term {
	set := map[string]model.Term{}
	for _, f := range update.Fields {
		set[f.Name] = f.Value
	}
	fields := make([]model.RecordField, 0, len(asset.Fields))
	for _, f := range asset.Fields {
		if f.Name == asset.KeyField {
			continue
		}
		if v, ok := set[f.Name]; ok {
			fields = append(fields, model.RecordField{Name: f.Name, Value: v})
		} else {
			fields = append(fields, model.RecordField{
				Name: f.Name,
				Value: &model.FieldAccess{
					TermBase: model.NewBase(update.Pos(), f.Type),
					Record:   &model.Var{TermBase: model.NewBase(update.Pos(), model.Named{Name: asset.Name}), Name: existingVar},
					Field:    f.Name,
				},
			})
		}
	}
	return &model.RecordLit{TermBase: update.TermBase, TypeName: update.TypeName, Fields: fields}
}

// decomposeContainerOps lowers the add, remove, clear, contains, count and
// get AssetCalls into ContainerOp terms over the asset's recv collection
// (add becomes a put guarded by a KeyExists failure). Every other method,
// Select/Sort/Nth/Head/Sum among them, stays as AssetCall until Cohort E
// chooses the asset's storage shape,
// since their lowering depends on whether the asset became a list-backed
// or map-backed collection.
func decomposeContainerOps(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.AssetCall)
		if !ok {
			return t
		}
		asset, err := modelutil.GetAsset(mdl, call.Asset)
		if err != nil {
			bus.EmitError(call.Pos(), diag.KindUnknownAsset, call.Asset)
			return t
		}
		switch call.Method {
		case model.MethodAdd:
			lit := call.Args[0].(*model.RecordLit)
			key, rest := modelutil.ExtractKeyValueFromMasset(asset, lit)
			mem := &model.ContainerOp{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimBool}), Op: model.OpMem, Target: call.Recv, Args: []model.Term{key}}
			put := &model.ContainerOp{TermBase: model.NewBase(call.Pos(), call.Typ()), Op: model.OpPut, Target: call.Recv, Args: []model.Term{key, rest}}
			fail := &model.Fail{
				TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimNever}),
				Reason:   &model.LitString{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimString}), Value: "KeyExists " + asset.Name},
			}
			return &model.If{TermBase: call.TermBase, Cond: mem, Then: fail, Else: put}
		case model.MethodRemove:
			return &model.ContainerOp{TermBase: model.NewBase(call.Pos(), call.Typ()), Op: model.OpRemove, Target: call.Recv, Args: call.Args}
		case model.MethodClear:
			return &model.ContainerOp{TermBase: model.NewBase(call.Pos(), call.Typ()), Op: model.OpEmpty, Target: call.Recv}
		case model.MethodContains:
			return &model.ContainerOp{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimBool}), Op: model.OpMem, Target: call.Recv, Args: call.Args}
		case model.MethodCount:
			return &model.ContainerOp{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimNat}), Op: model.OpSize, Target: call.Recv}
		case model.MethodGet:
			return &model.ContainerOp{TermBase: model.NewBase(call.Pos(), call.Typ()), Op: model.OpGet, Target: call.Recv, Args: call.Args}
		default:
			return t
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// mergeUpdate folds a chain of FieldUpdate nodes into a single RecordLit
// whenever the chain's innermost base is itself a RecordLit: updated fields
// take the outermost update's value and the rest keep the base's value.
// A chain over any other base is left unchanged.
func mergeUpdate(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		return collapseFieldUpdateChain(t)
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

func collapseFieldUpdateChain(t model.Term) model.Term {
	upd, ok := t.(*model.FieldUpdate)
	if !ok {
		return t
	}
	fields := map[string]model.Term{}
	cur := model.Term(upd)
	for {
		u, ok := cur.(*model.FieldUpdate)
		if !ok {
			break
		}
		if _, set := fields[u.Field]; !set {
			fields[u.Field] = u.Value
		}
		cur = u.Record
	}
	base, ok := cur.(*model.RecordLit)
	if !ok {
		return t
	}
	out := make([]model.RecordField, 0, len(base.Fields))
	covered := map[string]bool{}
	for _, f := range base.Fields {
		if v, set := fields[f.Name]; set {
			out = append(out, model.RecordField{Name: f.Name, Value: v})
		} else {
			out = append(out, f)
		}
		covered[f.Name] = true
	}
	for name, v := range fields {
		if !covered[name] {
			out = append(out, model.RecordField{Name: name, Value: v})
		}
	}
	return &model.RecordLit{TermBase: upd.TermBase, TypeName: base.TypeName, Fields: out}
}

// removeEmptyUpdate drops an `update` AssetCall whose record literal sets no
// fields at all — a no-op left behind by a compound assignment whose
// right-hand side canceled out, or by a record literal every one of whose
// fields merge_update already folded away — replacing it with unit rather
// than lowering it into a pointless get/merge/put sequence.
func removeEmptyUpdate(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.AssetCall)
		if !ok || call.Method != model.MethodUpdate || len(call.Args) < 2 {
			return t
		}
		lit, ok := call.Args[1].(*model.RecordLit)
		if !ok || len(lit.Fields) > 0 {
			return t
		}
		return &model.LitUnit{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit})}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// replaceUpdateBySet rewrites any surviving high-level `update` AssetCall
// into an explicit get/merge/put sequence over the asset's collection,
// guaranteeing no AssetCall with Method==MethodUpdate survives Cohort C.
func replaceUpdateBySet(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.AssetCall)
		if !ok || call.Method != model.MethodUpdate {
			return t
		}
		asset, err := modelutil.GetAsset(mdl, call.Asset)
		if err != nil {
			bus.EmitError(call.Pos(), diag.KindUnknownAsset, call.Asset)
			return t
		}
		key := call.Args[0]
		lit, ok := call.Args[1].(*model.RecordLit)
		if !ok {
			bus.EmitError(call.Pos(), diag.KindCannotBuildAsset, call.Asset)
			return t
		}
		existing := &model.ContainerOp{TermBase: model.NewBase(call.Pos(), lit.Typ()), Op: model.OpGet, Target: call.Recv, Args: []model.Term{key}}
		merged := &model.LetIn{
			TermBase: model.NewBase(call.Pos(), call.Typ()),
			Name:     "__existing",
			Init:     existing,
			Body: &model.ContainerOp{
				TermBase: model.NewBase(call.Pos(), call.Typ()),
				Op:       model.OpPut,
				Target:   call.Recv,
				Args:     []model.Term{key, mergeRecordFields(asset, lit, "__existing")},
			},
		}
		return merged
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}
