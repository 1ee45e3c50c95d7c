package passes

import (
	"sort"
	"strings"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
	"github.com/gridbugs/archetype-lang/internal/modelutil"
	"github.com/gridbugs/archetype-lang/internal/traverse"
)

// processSingleFieldStorage simplifies access to an asset Cohort E chose to
// lower as a bare scalar (AssetSingleField): a get/get_opt over its storage
// field is just the field read directly, and a put is a plain Assign,
// since a one-row asset never needed a keyed container in the first place.
func processSingleFieldStorage(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	single := map[string]bool{}
	for _, a := range mdl.Assets {
		if a.Shape == model.AssetSingleField {
			single[a.Name] = true
		}
	}
	if len(single) == 0 {
		return mdl
	}
	rewrite := func(t model.Term) model.Term {
		op, ok := t.(*model.ContainerOp)
		if !ok {
			return t
		}
		fa, ok := op.Target.(*model.FieldAccess)
		if !ok {
			return t
		}
		if _, ok := fa.Record.(*model.StorageRef); !ok || !single[fa.Field] {
			return t
		}
		switch op.Op {
		case model.OpGet, model.OpGetOpt:
			return fa
		case model.OpPut:
			if len(op.Args) == 0 {
				return t
			}
			return &model.Assign{TermBase: op.TermBase, Name: fa.Field, Value: op.Args[len(op.Args)-1]}
		default:
			return t
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// threadStorageFields rewrites FieldAccess(StorageRef{}, f) occurrences
// into plain Var(f) references once f has been added to the enclosing
// function's Reads/Writes set, so the back end can pass individual storage
// slots as Michelson stack values instead of threading the whole storage
// record through every call.
func threadStorageFields(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	for i, fn := range out.Functions {
		if fn.Body == nil {
			continue
		}
		reads := map[string]bool{}
		for _, r := range fn.Reads {
			reads[r] = true
		}
		writes := map[string]bool{}
		for _, w := range fn.Writes {
			writes[w] = true
		}
		rewrite := func(t model.Term) model.Term {
			fa, ok := t.(*model.FieldAccess)
			if !ok {
				return t
			}
			if _, ok := fa.Record.(*model.StorageRef); !ok {
				return t
			}
			reads[fa.Field] = true
			return &model.Var{TermBase: fa.TermBase, Name: fa.Field}
		}
		nf := *fn
		nf.Body = traverse.MapTerm(rewrite, fn.Body)
		for r := range reads {
			nf.Reads = appendUnique(nf.Reads, r)
		}
		for w := range writes {
			nf.Writes = appendUnique(nf.Writes, w)
		}
		out.Functions[i] = &nf
	}
	return out
}

func appendUnique(ss []string, s string) []string {
	for _, e := range ss {
		if e == s {
			return ss
		}
	}
	return append(ss, s)
}

// inlineConstants substitutes every reference to a compile-time VarConst
// declaration in function bodies, specification formulas and security
// predicates with its literal initializer, then drops the declaration,
// since the target VM has no notion of a named module-level constant —
// only literal operands. Storage field initializers are not rewritten.
func inlineConstants(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	consts := map[string]model.Term{}
	var kept []*model.VarDecl
	for _, v := range mdl.Vars {
		if v.Kind == model.VarConst {
			if v.Init == nil {
				bus.EmitError(v.Pos, diag.KindNoInitValueForConstParam, v.Name)
				continue
			}
			consts[v.Name] = v.Init
			continue
		}
		kept = append(kept, v)
	}
	rewrite := func(t model.Term) model.Term {
		v, ok := t.(*model.Var)
		if !ok {
			return t
		}
		if init, ok := consts[v.Name]; ok {
			return init
		}
		return t
	}
	out := traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
	out.Vars = kept
	return out
}

// evalVariableInitialValue constant-folds every VarDecl's initializer
// before inlineConstants substitutes it at every use site, so a constant
// defined as an arithmetic expression over other literals (e.g. a scaled
// rational left behind by remove_rational) is inlined as a single literal
// rather than as dead arithmetic recomputed at every call site.
func evalVariableInitialValue(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	vars := make([]*model.VarDecl, len(out.Vars))
	for i, v := range out.Vars {
		if v.Init == nil {
			vars[i] = v
			continue
		}
		nv := *v
		nv.Init = modelutil.Eval(v.Init)
		vars[i] = &nv
	}
	out.Vars = vars
	return out
}

// getterToEntry inlines a Getter-kind function's body directly at any Call
// site reached from an Entry-kind function, since the lowered program has
// no off-chain "view call" instruction for internal callers — only the
// contract's own entry points are externally invocable, and entries that
// want a getter's computed value must compute it themselves.
func getterToEntry(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	getters := map[string]*model.FunctionDecl{}
	for _, fn := range mdl.Functions {
		if fn.Kind == model.KindGetter {
			getters[fn.Name] = fn
		}
	}
	if len(getters) == 0 {
		return mdl
	}
	out := mdl.Clone()
	for i, fn := range out.Functions {
		if fn.Kind != model.KindEntry || fn.Body == nil {
			continue
		}
		rewrite := func(t model.Term) model.Term {
			call, ok := t.(*model.Call)
			if !ok {
				return t
			}
			g, ok := getters[call.Callee]
			if !ok || g.Body == nil {
				return t
			}
			body := g.Body
			for i, p := range g.Params {
				if i < len(call.Args) {
					body = traverse.MapTerm(substituteVar(p.Name, call.Args[i]), body)
				}
			}
			return body
		}
		nf := *fn
		nf.Body = traverse.MapTerm(rewrite, fn.Body)
		out.Functions[i] = &nf
	}
	return out
}

func substituteVar(name string, value model.Term) func(model.Term) model.Term {
	return func(t model.Term) model.Term {
		v, ok := t.(*model.Var)
		if ok && v.Name == name {
			return value
		}
		return t
	}
}

// evalStorage constant-folds every storage field's initializer, the same
// way evalVariableInitialValue folds module-level constants. Named
// constants inside a storage initializer are not substituted (inlineConstants
// does not visit storage), so an initializer that references one is left
// unfolded.
func evalStorage(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	if mdl.Storage == nil {
		return mdl
	}
	out := mdl.Clone()
	fields := make([]model.StorageField, len(out.Storage.Fields))
	for i, f := range out.Storage.Fields {
		fields[i] = f
		if f.Init != nil {
			fields[i].Init = modelutil.Eval(f.Init)
		}
	}
	out.Storage = &model.StorageDecl{Fields: fields}
	return out
}

// normalizeStorage fixes the storage record's field order to a canonical,
// deterministic layout (lexicographic by name) so the same source model
// always lowers to the same Michelson storage pairing regardless of the
// order assets and fields happened to be declared or threaded in.
func normalizeStorage(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	if mdl.Storage == nil {
		return mdl
	}
	out := mdl.Clone()
	fields := append([]model.StorageField{}, out.Storage.Fields...)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	out.Storage = &model.StorageDecl{Fields: fields}
	return out
}

// isOperationListType reports whether t is (or starts with) a `list
// operation`, the type reverse_operations looks for on an entry point's
// return value.
func isOperationListType(t model.Type) bool {
	p, ok := t.(model.Param)
	if !ok {
		return false
	}
	switch p.Kind {
	case model.ParamList:
		pr, ok := p.Args[0].(model.Prim)
		return ok && pr.Kind == model.PrimOperation
	case model.ParamTuple:
		return len(p.Args) > 0 && isOperationListType(p.Args[0])
	default:
		return false
	}
}

// reverseOperations reverses the operations list an entry point returns:
// operations prepended with %cons, the cheap end of a Michelson list, end
// up in last-emitted-first order. The chain only needs to be
// reversed once, at the point the entry point hands the list back to the
// runtime, not after every individual push.
func reverseOperations(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	for i, fn := range out.Functions {
		if fn.Kind != model.KindEntry || fn.Return == nil || fn.Body == nil || !isOperationListType(fn.Return) {
			continue
		}
		nf := *fn
		nf.Body = &model.ContainerOp{TermBase: model.NewBase(fn.Body.Pos(), fn.Body.Typ()), Op: model.OpReverseList, Target: fn.Body}
		out.Functions[i] = &nf
	}
	return out
}

// processParameter flattens an entry point's single record-typed parameter
// into its constituent fields as separate positional parameters, the form
// a Michelson entry point's single input stack value is destructured into
// once the parser's grouping into one named record has served its purpose
// for type-checking.
func processParameter(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	for i, fn := range out.Functions {
		if fn.Kind != model.KindEntry || len(fn.Params) != 1 {
			continue
		}
		named, ok := fn.Params[0].Type.(model.Named)
		if !ok {
			continue
		}
		rec := mdl.Record(named.Name)
		if rec == nil {
			continue
		}
		paramName := fn.Params[0].Name
		newParams := make([]model.FuncParam, len(rec.Fields))
		for j, f := range rec.Fields {
			newParams[j] = model.FuncParam{Name: f.Name, Type: f.Type}
		}
		rewrite := func(t model.Term) model.Term {
			fa, ok := t.(*model.FieldAccess)
			if !ok {
				return t
			}
			v, ok := fa.Record.(*model.Var)
			if !ok || v.Name != paramName {
				return t
			}
			return &model.Var{TermBase: fa.TermBase, Name: fa.Field}
		}
		nf := *fn
		nf.Params = newParams
		if fn.Body != nil {
			nf.Body = traverse.MapTerm(rewrite, fn.Body)
		}
		out.Functions[i] = &nf
	}
	return out
}

// processMetadata wires opt_with_metadata's URI/storage options into the
// lowered program: when WithMetadata is set, it adds the standard TZIP-16
// `metadata` big_map field to storage and rewrites every CtxMetadataURI
// context read into the literal URI string supplied in options, since that
// value is fixed at compile time, not something the running contract ever
// needs to recompute.
func processMetadata(mdl *model.Model, bus *diag.Bus, opts *config.Options) *model.Model {
	if !opts.WithMetadata {
		return mdl
	}
	out := mdl.Clone()
	if out.Storage != nil {
		fields := append([]model.StorageField{}, out.Storage.Fields...)
		fields = append(fields, model.StorageField{
			Name: "metadata",
			Type: model.Param{Kind: model.ParamBigMap, Args: []model.Type{model.Prim{Kind: model.PrimString}, model.Prim{Kind: model.PrimBytes}}},
			Init: &model.MapLit{TermBase: model.NewBase(model.NoPos, model.Param{Kind: model.ParamBigMap}), BigMap: true},
		})
		out.Storage = &model.StorageDecl{Fields: fields}
	}
	if opts.MetadataURI == "" {
		bus.EmitWarning(model.NoPos, diag.KindNoInitValueForConstParam, "metadata_uri")
	}
	rewrite := func(t model.Term) model.Term {
		cc, ok := t.(*model.ContextConst)
		if !ok || cc.Kind != model.CtxMetadataURI {
			return t
		}
		return &model.LitString{TermBase: cc.TermBase, Value: opts.MetadataURI}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, out)
}

// checkAndReplaceInitCaller enforces CallerNotSetInInit: the storage
// record's init expression (the asset/field initializers run at
// origination) may not reference `caller()`, since there is no caller yet
// at origination time; where origination legitimately needs the deployer's
// address, opts.Caller supplies it and this pass substitutes it directly.
func checkAndReplaceInitCaller(mdl *model.Model, bus *diag.Bus, opts *config.Options) *model.Model {
	if mdl.Storage == nil {
		return mdl
	}
	out := mdl.Clone()
	fields := make([]model.StorageField, len(out.Storage.Fields))
	for i, f := range out.Storage.Fields {
		fields[i] = f
		if f.Init == nil {
			continue
		}
		hasCaller := false
		traverse.FoldTerm(func(_ struct{}, t model.Term) struct{} {
			if cc, ok := t.(*model.ContextConst); ok && cc.Kind == model.CtxCaller {
				hasCaller = true
			}
			return struct{}{}
		}, struct{}{}, f.Init)
		if !hasCaller {
			continue
		}
		if opts.Caller == "" {
			bus.EmitError(model.NoPos, diag.KindCallerNotSetInInit, f.Name)
			continue
		}
		fields[i].Init = traverse.MapTerm(func(t model.Term) model.Term {
			if cc, ok := t.(*model.ContextConst); ok && cc.Kind == model.CtxCaller {
				return &model.LitAddress{TermBase: cc.TermBase, Value: opts.Caller}
			}
			return t
		}, f.Init)
	}
	out.Storage = &model.StorageDecl{Fields: fields}
	return out
}

// testMode rewrites every ContextConst{Kind: CtxNow} and CtxSource read
// into a call to a deterministic test-harness intrinsic instead of the
// real on-chain context reader, so golden/property tests get reproducible
// "current time" and "originating address" values. Gated on
// opts.TestMode, matching spec.md's opt_test_mode.
func testMode(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		cc, ok := t.(*model.ContextConst)
		if !ok {
			return t
		}
		switch cc.Kind {
		case model.CtxNow:
			return &model.Call{TermBase: cc.TermBase, Callee: "__test_now"}
		case model.CtxSource:
			return &model.Call{TermBase: cc.TermBase, Callee: "__test_source"}
		default:
			return t
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// fa2EntryNames are the three standard FA2 (TZIP-12) entry points; a
// function sharing one of these names is expected to carry a `token_id`
// parameter even when the source contract only ever manages a single
// token and the author never declared one.
var fa2EntryNames = map[string]bool{"transfer": true, "balance_of": true, "update_operators": true}

// patchFa2 ensures every FA2-named entry point carries the token_id
// parameter the standard requires, appending one defaulted to nat when a
// contract with a single implicit token omitted it from its declaration.
func patchFa2(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	for i, fn := range out.Functions {
		if !fa2EntryNames[fn.Name] {
			continue
		}
		hasTokenID := false
		for _, p := range fn.Params {
			if p.Name == "token_id" {
				hasTokenID = true
				break
			}
		}
		if hasTokenID {
			continue
		}
		nf := *fn
		nf.Params = append(append([]model.FuncParam{}, fn.Params...), model.FuncParam{Name: "token_id", Type: model.Prim{Kind: model.PrimNat}})
		out.Functions[i] = &nf
	}
	return out
}

// fillStovars populates each asset's storage-field initializer with the
// literal collection split_key_values (Cohort F) extracted from its
// declared init values, replacing the always-empty container remove_asset
// synthesized before any pass had a (key, value) split to build from.
func fillStovars(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	if mdl.Storage == nil {
		return mdl
	}
	pairsByAsset := map[string][]model.AssetInitPair{}
	shapeByAsset := map[string]model.AssetShape{}
	for _, a := range mdl.Assets {
		if len(a.InitPairs) > 0 {
			pairsByAsset[a.Name] = a.InitPairs
			shapeByAsset[a.Name] = a.Shape
		}
	}
	if len(pairsByAsset) == 0 {
		return mdl
	}
	out := mdl.Clone()
	fields := make([]model.StorageField, len(out.Storage.Fields))
	for i, f := range out.Storage.Fields {
		fields[i] = f
		pairs, ok := pairsByAsset[f.Name]
		if !ok {
			continue
		}
		fields[i].Init = filledContainer(shapeByAsset[f.Name], f.Type, pairs)
	}
	out.Storage = &model.StorageDecl{Fields: fields}
	return out
}

func filledContainer(shape model.AssetShape, typ model.Type, pairs []model.AssetInitPair) model.Term {
	if shape == model.AssetSet {
		items := make([]model.Term, len(pairs))
		for i, p := range pairs {
			items[i] = p.Key
		}
		return &model.SetLit{TermBase: model.NewBase(model.NoPos, typ), Items: items}
	}
	entries := make([]model.MapEntry, len(pairs))
	for i, p := range pairs {
		entries[i] = model.MapEntry{Key: p.Key, Value: p.Value}
	}
	return &model.MapLit{TermBase: model.NewBase(model.NoPos, typ), Entries: entries, BigMap: shape == model.AssetBigMap || shape == model.AssetIterableBigMap}
}

// filterApiStorage collapses the Coll/View variants of the same
// synthesized helper operation (e.g. "select_coll_order" and
// "select_view_order") into a single canonical entry once every lowering
// pass that could have synthesized one has run, so the back end never
// emits two physically distinct helpers for what is the same underlying
// read.
func filterApiStorage(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	canonical := map[string]bool{}
	seen := map[string]bool{}
	var kept []string
	for _, item := range mdl.APIItems {
		base := strings.Replace(strings.Replace(item, "_view_", "_", 1), "_coll_", "_", 1)
		if canonical[base] {
			continue
		}
		canonical[base] = true
		if !seen[item] {
			seen[item] = true
			kept = append(kept, item)
		}
	}
	out := mdl.Clone()
	out.APIItems = kept
	return out
}

// processFail finalizes every Fail node's reason so the back end always
// hands FAILWITH a single well-typed value: a missing reason becomes unit,
// and a numeric reason (an error code left behind by earlier lowering) is
// stringified, since the target convention is to fail with a human-
// readable message, not a bare number.
func processFail(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		f, ok := t.(*model.Fail)
		if !ok {
			return t
		}
		if f.Reason == nil {
			c := *f
			c.Reason = &model.LitUnit{TermBase: model.NewBase(f.Pos(), model.Prim{Kind: model.PrimUnit})}
			return &c
		}
		switch p, ok := f.Reason.Typ().(model.Prim); {
		case ok && p.Kind == model.PrimNat:
			c := *f
			c.Reason = &model.Call{TermBase: model.NewBase(f.Pos(), model.Prim{Kind: model.PrimString}), Callee: "string_of_nat", Args: []model.Term{f.Reason}}
			return &c
		case ok && p.Kind == model.PrimInt:
			c := *f
			c.Reason = &model.Call{TermBase: model.NewBase(f.Pos(), model.Prim{Kind: model.PrimString}), Callee: "string_of_int", Args: []model.Term{f.Reason}}
			return &c
		default:
			return t
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}
