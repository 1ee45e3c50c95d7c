package passes

import (
	"fmt"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
	"github.com/gridbugs/archetype-lang/internal/traverse"
)

// checkUnknownAssetRefs walks every AssetCall/AssetStateRef/AssetStateSet
// and reports KindUnknownAsset for any reference to an asset not declared
// in the model. It never rewrites the model; Cohort A passes only emit
// diagnostics, the validation of spec.md's DATA MODEL invariants that the
// model itself does not enforce by construction.
func checkUnknownAssetRefs(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	known := make(map[string]bool, len(mdl.Assets))
	for _, a := range mdl.Assets {
		known[a.Name] = true
	}
	check := func(_ traverse.Context, t model.Term) model.Term {
		asset := ""
		pos := t.Pos()
		switch n := t.(type) {
		case *model.AssetCall:
			asset = n.Asset
		case *model.AssetStateRef:
			asset = n.Asset
		case *model.AssetStateSet:
			asset = n.Asset
		default:
			return t
		}
		if asset != "" && !known[asset] {
			bus.EmitError(pos, diag.KindUnknownAsset, asset)
		}
		return t
	}
	traverse.MapMtermModel(check, mdl)
	return mdl
}

// checkDuplicateDeclarations reports KindDuplicateAsset/Enum/Record/
// Function for any name declared more than once at top level.
func checkDuplicateDeclarations(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	seenAsset := map[string]bool{}
	for _, a := range mdl.Assets {
		if seenAsset[a.Name] {
			bus.EmitError(a.Pos, diag.KindDuplicateAsset, a.Name)
		}
		seenAsset[a.Name] = true
	}
	seenEnum := map[string]bool{}
	for _, e := range mdl.Enums {
		if seenEnum[e.Name] {
			bus.EmitError(e.Pos, diag.KindDuplicateEnum, e.Name)
		}
		seenEnum[e.Name] = true
	}
	seenRecord := map[string]bool{}
	for _, r := range mdl.Records {
		if seenRecord[r.Name] {
			bus.EmitError(r.Pos, diag.KindDuplicateRecord, r.Name)
		}
		seenRecord[r.Name] = true
	}
	seenFn := map[string]bool{}
	for _, f := range mdl.Functions {
		if seenFn[f.Name] {
			bus.EmitError(f.Pos, diag.KindDuplicateFunction, f.Name)
		}
		seenFn[f.Name] = true
	}
	return mdl
}

// checkAssetInit enforces three related invariants at once: a partitioned
// asset must not declare its own literal init values
// (KindAssetPartitionnedby), no two init rows may repeat the same key
// (KindDuplicatedKeyAsset), and the key field carries no default
// (KindDefaultValueOnKeyAsset). The field values inside an init row are not
// checked for being literals; KindOnlyLiteralInAssetInit is not emitted here.
func checkAssetInit(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	for _, a := range mdl.Assets {
		if a.Partition != "" && len(a.InitValues) > 0 {
			bus.EmitError(a.Pos, diag.KindAssetPartitionnedby, a.Name)
		}
		seenKeys := map[string]bool{}
		for _, lit := range a.InitValues {
			keyTerm, _ := keyOf(a, lit)
			if keyTerm == nil {
				continue
			}
			ks := fmt.Sprintf("%v", keyTerm)
			if seenKeys[ks] {
				bus.EmitError(a.Pos, diag.KindDuplicatedKeyAsset, a.Name)
			}
			seenKeys[ks] = true
		}
		for _, f := range a.Fields {
			if f.Name == a.KeyField && f.Default != nil {
				bus.EmitError(a.Pos, diag.KindDefaultValueOnKeyAsset, a.Name, f.Name)
			}
		}
	}
	return mdl
}

func keyOf(a *model.AssetDecl, lit model.RecordLit) (model.Term, bool) {
	for _, f := range lit.Fields {
		if f.Name == a.KeyField {
			return f.Value, true
		}
	}
	return nil, false
}

// checkPartitionConstraints enforces that a partitioned asset is neither
// cleared directly nor given its own init block: both must be driven
// entirely by the parent asset (KindNoClearForPartitionAsset,
// KindNoInitForPartitionAsset).
func checkPartitionConstraints(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	partitioned := map[string]bool{}
	for _, a := range mdl.Assets {
		if a.Partition == "" {
			continue
		}
		partitioned[a.Name] = true
		if len(a.InitValues) > 0 {
			bus.EmitError(a.Pos, diag.KindNoInitForPartitionAsset, a.Name)
		}
	}
	traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		if c, ok := t.(*model.AssetCall); ok && c.Method == model.MethodClear && partitioned[c.Asset] {
			bus.EmitError(c.Pos(), diag.KindNoClearForPartitionAsset, c.Asset)
		}
		return t
	}, mdl)
	return mdl
}

// checkEntrypointPresence enforces that a contract declares at least one
// Entry-kind function (KindNoEntrypoint).
func checkEntrypointPresence(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	for _, fn := range mdl.Functions {
		if fn.Kind == model.KindEntry {
			return mdl
		}
	}
	bus.EmitError(model.NoPos, diag.KindNoEntrypoint)
	return mdl
}

// checkIfAssetInFunction reports KindAssetExposedInFunction for any function
// parameter or return type that names an asset directly, rather than going
// through an asset method call. remove_asset (Cohort E) erases the asset
// name from the surface syntax entirely once it picks a storage shape, so a
// function signature that still mentions the asset by name has nothing left
// to lower it into.
func checkIfAssetInFunction(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	assetNames := make(map[string]bool, len(mdl.Assets))
	for _, a := range mdl.Assets {
		assetNames[a.Name] = true
	}
	namesAsset := func(t model.Type) (string, bool) {
		n, ok := t.(model.Named)
		if !ok {
			return "", false
		}
		return n.Name, assetNames[n.Name]
	}
	for _, fn := range mdl.Functions {
		for _, p := range fn.Params {
			if name, ok := namesAsset(p.Type); ok {
				bus.EmitError(fn.Pos, diag.KindAssetExposedInFunction, fn.Name, name)
			}
		}
		if fn.Return != nil {
			if name, ok := namesAsset(fn.Return); ok {
				bus.EmitError(fn.Pos, diag.KindAssetExposedInFunction, fn.Name, name)
			}
		}
	}
	return mdl
}

// checkUnusedBindings walks each function body for Let/LetIn binders whose
// name no Var anywhere in that body references, and each function's
// parameter list for parameters never referenced in the body. Scopes are not
// distinguished: a use of the name anywhere in the body counts. Both are
// warnings, never fatal.
func checkUnusedBindings(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	for _, fn := range mdl.Functions {
		if fn.Body == nil {
			continue
		}
		used := map[string]bool{}
		traverse.FoldTerm(func(_ struct{}, t model.Term) struct{} {
			if v, ok := t.(*model.Var); ok {
				used[v.Name] = true
			}
			return struct{}{}
		}, struct{}{}, fn.Body)
		for _, p := range fn.Params {
			if !used[p.Name] {
				bus.EmitWarning(fn.Pos, diag.KindUnusedArgument, fn.Name, p.Name)
			}
		}
		traverse.FoldTerm(func(_ struct{}, t model.Term) struct{} {
			switch n := t.(type) {
			case *model.Let:
				if !used[n.Name] {
					bus.EmitWarning(n.Pos(), diag.KindUnusedVariable, n.Name)
				}
			case *model.LetIn:
				if !used[n.Name] {
					bus.EmitWarning(n.Pos(), diag.KindUnusedVariable, n.Name)
				}
			}
			return struct{}{}
		}, struct{}{}, fn.Body)
	}
	return mdl
}
