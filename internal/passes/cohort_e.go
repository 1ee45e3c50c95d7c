package passes

import (
	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
	"github.com/gridbugs/archetype-lang/internal/modelutil"
	"github.com/gridbugs/archetype-lang/internal/traverse"
)

// chooseAssetShapes decides, per asset, which primitive collection its
// storage lowers to: a set when its only field is the key, a big_map when
// it is partitioned, and a plain map otherwise. It never chooses the
// single-field or iterable_big_map shapes. This mirrors
// spec.md's storage-shape-selection step of remove_asset, split into its
// own pass so remove_asset itself only has to consult Shape rather than
// re-derive it per call site.
func chooseAssetShapes(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	for i, a := range out.Assets {
		c := *a
		switch {
		case len(a.Fields) == 1 && a.Fields[0].Name == a.KeyField:
			c.Shape = model.AssetSet
		case a.Partition != "":
			c.Shape = model.AssetBigMap
		default:
			c.Shape = model.AssetMap
		}
		out.Assets[i] = &c
	}
	return out
}

// removeAsset lowers the remaining Select, Sort, Nth, Head, Sum, RemoveIf
// and RemoveAll AssetCalls into primitive ContainerOp/IterLoop terms over
// the asset's chosen storage shape, and rewrites Var references to the
// asset's collection itself into a StorageRef field access. UpdateAll
// calls are left as AssetCalls for Cohort F's remove_update_all.
func removeAsset(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	assetNames := map[string]*model.AssetDecl{}
	for _, a := range mdl.Assets {
		assetNames[a.Name] = a
	}
	rewrite := func(t model.Term) model.Term {
		switch n := t.(type) {
		case *model.AssetCall:
			return lowerHighLevelAssetCall(mdl, bus, n)
		case *model.Var:
			if a, ok := assetNames[n.Name]; ok {
				return &model.FieldAccess{
					TermBase: n.TermBase,
					Record:   &model.StorageRef{TermBase: model.NewBase(n.Pos(), model.Named{Name: "storage"})},
					Field:    a.Name,
				}
			}
			return n
		default:
			return t
		}
	}
	out := traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)

	// Merge asset-derived fields into whatever storage already exists
	// (e.g. the shadow fields transfer_shadow_variable_to_storage appends
	// in Cohort B) rather than discarding it: remove_asset only ever adds
	// a field per asset, it never owns the whole StorageDecl.
	existing := map[string]bool{}
	fields := []model.StorageField{}
	if out.Storage != nil {
		fields = append(fields, out.Storage.Fields...)
		for _, f := range out.Storage.Fields {
			existing[f.Name] = true
		}
	}
	for _, a := range out.Assets {
		if existing[a.Name] {
			continue
		}
		fields = append(fields, model.StorageField{
			Name: a.Name,
			Type: assetStorageType(a),
			Init: emptyAssetValue(a),
		})
		existing[a.Name] = true
	}
	out.Storage = &model.StorageDecl{Fields: fields}
	return out
}

func assetStorageType(a *model.AssetDecl) model.Type {
	var fields []model.Type
	for _, f := range a.Fields {
		if f.Name != a.KeyField {
			fields = append(fields, f.Type)
		}
	}
	valueType := model.Type(model.Param{Kind: model.ParamTuple, Args: fields})
	if len(fields) == 1 {
		valueType = fields[0]
	}
	var keyType model.Type
	for _, f := range a.Fields {
		if f.Name == a.KeyField {
			keyType = f.Type
		}
	}
	switch a.Shape {
	case model.AssetSet:
		return model.AssetType{Asset: a.Name, Intent: model.IntentCollection, Under: model.Param{Kind: model.ParamSet, Args: []model.Type{keyType}}}
	case model.AssetBigMap:
		return model.AssetType{Asset: a.Name, Intent: model.IntentCollection, Under: model.Param{Kind: model.ParamBigMap, Args: []model.Type{keyType, valueType}}}
	case model.AssetIterableBigMap:
		return model.AssetType{Asset: a.Name, Intent: model.IntentCollection, Under: model.Param{Kind: model.ParamIterableBigMap, Args: []model.Type{keyType, valueType}}}
	case model.AssetSingleField:
		return model.AssetType{Asset: a.Name, Intent: model.IntentValue, Under: valueType}
	default:
		return model.AssetType{Asset: a.Name, Intent: model.IntentCollection, Under: model.Param{Kind: model.ParamMap, Args: []model.Type{keyType, valueType}}}
	}
}

func emptyAssetValue(a *model.AssetDecl) model.Term {
	switch a.Shape {
	case model.AssetSet:
		return &model.SetLit{TermBase: model.NewBase(model.NoPos, assetStorageType(a))}
	case model.AssetBigMap, model.AssetIterableBigMap:
		return &model.MapLit{TermBase: model.NewBase(model.NoPos, assetStorageType(a)), BigMap: true}
	default:
		return &model.MapLit{TermBase: model.NewBase(model.NoPos, assetStorageType(a))}
	}
}

// lowerHighLevelAssetCall handles the closed-collection AssetCall methods
// decomposeContainerOps intentionally left alone: Select/Sort/Nth/Head/Sum/
// RemoveIf operate over "every row", which only has a concrete primitive
// realization once the asset's shape (map vs set) is known. Each method
// gets its own fold_ck-style lowering per spec.md Cohort E step 2;
// update_all is deliberately left untouched here since remove_update_all
// (Cohort F) is the pass that owns its lowering.
func lowerHighLevelAssetCall(mdl *model.Model, bus *diag.Bus, call *model.AssetCall) model.Term {
	asset, err := modelutil.GetAsset(mdl, call.Asset)
	if err != nil {
		bus.EmitError(call.Pos(), diag.KindUnknownAsset, call.Asset)
		return call
	}
	switch call.Method {
	case model.MethodRemoveIf:
		rowVar := lambdaRowVar(call, "__row")
		return &model.IterLoop{
			TermBase: call.TermBase,
			Label:    "__remove_if_" + asset.Name,
			Var:      rowVar,
			Coll:     call.Recv,
			Body:     removeIfBody(asset, call, rowVar),
		}
	case model.MethodRemoveAll:
		return &model.ContainerOp{
			TermBase: call.TermBase,
			Op:       model.OpEmpty,
			Target:   call.Recv,
		}
	case model.MethodSum:
		return lowerSum(asset, call)
	case model.MethodSelect:
		return lowerSelect(asset, call)
	case model.MethodSort:
		args := []model.Term{call.Recv}
		if call.Lambda != nil {
			args = append(args, call.Lambda)
		}
		return &model.Call{TermBase: call.TermBase, Callee: "sort_by", Args: args}
	case model.MethodNth:
		if len(call.Args) == 0 {
			bus.EmitError(call.Pos(), diag.KindCannotBuildAsset, call.Asset)
			return call
		}
		return &model.ContainerOp{TermBase: call.TermBase, Op: model.OpGet, Target: call.Recv, Args: []model.Term{call.Args[0]}}
	case model.MethodHead:
		zero := &model.LitNat{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimNat}), Value: 0}
		return &model.ContainerOp{TermBase: call.TermBase, Op: model.OpGet, Target: call.Recv, Args: []model.Term{zero}}
	default:
		return call
	}
}

// lambdaRowVar returns the per-row binder a method's predicate/comparator/
// projection Lambda was written against, so the IterLoop built to host it
// binds the same name rather than leaving the Lambda body's Var references
// dangling.
func lambdaRowVar(call *model.AssetCall, fallback string) string {
	if call.Lambda != nil && len(call.Lambda.Params) > 0 {
		return call.Lambda.Params[0].Name
	}
	return fallback
}

// removeIfBody wraps remove_if's predicate in an explicit guard: `if pred
// then remove(A, key) else skip`, per spec.md scenario 1. rowVar is the
// loop binder the predicate (and, for a keyed asset, the key access) is
// built against.
func removeIfBody(asset *model.AssetDecl, call *model.AssetCall, rowVar string) model.Term {
	var pred model.Term = &model.LitBool{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimBool}), Value: true}
	if call.Lambda != nil {
		pred = call.Lambda.Body
	}
	var key model.Term
	if asset.Shape == model.AssetSet {
		key = &model.Var{TermBase: model.NewBase(call.Pos(), model.Named{Name: asset.Name}), Name: rowVar}
	} else {
		key = &model.FieldAccess{
			TermBase: model.NewBase(call.Pos(), modelutil.GetFieldContainer(asset, asset.KeyField)),
			Record:   &model.Var{TermBase: model.NewBase(call.Pos(), model.Named{Name: asset.Name}), Name: rowVar},
			Field:    asset.KeyField,
		}
	}
	remove := &model.ContainerOp{
		TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}),
		Op:       model.OpRemove,
		Target:   call.Recv,
		Args:     []model.Term{key},
	}
	return &model.If{
		TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}),
		Cond:     pred,
		Then:     remove,
		Else:     &model.LitUnit{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit})},
	}
}

// lowerSum builds the accumulator-over-IterLoop fold spec.md scenario 2
// requires: `sum(mile, amount)` arrives as an AssetCall whose Lambda
// projects a row onto the field to add (Body = row.amount), the same
// predicate/comparator/projection convention RemoveIf and Sort use.
func lowerSum(asset *model.AssetDecl, call *model.AssetCall) model.Term {
	rowVar := lambdaRowVar(call, "__row")
	var rowValue model.Term = zeroValueOf(call.Typ(), call.Pos())
	if call.Lambda != nil {
		rowValue = call.Lambda.Body
	}
	acc := "__sum_" + asset.Name
	accVar := &model.Var{TermBase: model.NewBase(call.Pos(), call.Typ()), Name: acc}
	add := &model.BinOp{TermBase: model.NewBase(call.Pos(), call.Typ()), Op: model.OpAdd, Left: accVar, Right: rowValue}
	loop := &model.IterLoop{
		TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}),
		Label:    "__sum_" + asset.Name,
		Var:      rowVar,
		Coll:     call.Recv,
		Body:     &model.Assign{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}), Name: acc, Value: add},
	}
	return &model.LetIn{
		TermBase: call.TermBase,
		Name:     acc,
		Mut:      true,
		Init:     zeroValueOf(call.Typ(), call.Pos()),
		Body:     &model.Seq{TermBase: call.TermBase, Items: []model.Term{loop, accVar}},
	}
}

// lowerSelect builds the filter-accumulate fold that realizes `select`:
// a fresh list, appended to under the predicate, the same accumulator
// shape processArithContainer (Cohort F) builds for container arithmetic.
func lowerSelect(asset *model.AssetDecl, call *model.AssetCall) model.Term {
	rowVar := lambdaRowVar(call, "__row")
	var pred model.Term = &model.LitBool{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimBool}), Value: true}
	if call.Lambda != nil {
		pred = call.Lambda.Body
	}
	acc := "__select_" + asset.Name
	accVar := &model.Var{TermBase: model.NewBase(call.Pos(), call.Typ()), Name: acc}
	rowVarTerm := &model.Var{TermBase: model.NewBase(call.Pos(), model.Named{Name: asset.Name}), Name: rowVar}
	appended := &model.ContainerOp{TermBase: model.NewBase(call.Pos(), call.Typ()), Op: model.OpConsList, Target: accVar, Args: []model.Term{rowVarTerm}}
	body := &model.If{
		TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}),
		Cond:     pred,
		Then:     &model.Assign{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}), Name: acc, Value: appended},
		Else:     &model.LitUnit{TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit})},
	}
	loop := &model.IterLoop{
		TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}),
		Label:    "__select_" + asset.Name,
		Var:      rowVar,
		Coll:     call.Recv,
		Body:     body,
	}
	return &model.LetIn{
		TermBase: call.TermBase,
		Name:     acc,
		Mut:      true,
		Init:     &model.ListLit{TermBase: model.NewBase(call.Pos(), call.Typ())},
		Body:     &model.Seq{TermBase: call.TermBase, Items: []model.Term{loop, accVar}},
	}
}

func zeroValueOf(t model.Type, pos model.Position) model.Term {
	if p, ok := t.(model.Prim); ok && p.Kind == model.PrimNat {
		return &model.LitNat{TermBase: model.NewBase(pos, t), Value: 0}
	}
	return &model.LitInt{TermBase: model.NewBase(pos, t), Value: 0}
}
