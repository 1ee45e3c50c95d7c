package passes

import (
	"strconv"
	"strings"
	"time"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
	"github.com/gridbugs/archetype-lang/internal/modelutil"
	"github.com/gridbugs/archetype-lang/internal/traverse"
)

// rationalScale is the fixed-point denominator every rational value is
// lowered to: a `nat` numerator over this implicit denominator, matching
// the scale Tezos-like VMs use for tez/permille-style fixed-point values.
const rationalScale = 1_000_000

// removeRational rewrites every RatLit into a Nat literal scaled by
// rationalScale. Rational-typed BinOps and comparisons are not rewritten:
// their operands change to Nat but the operators and their types stay as
// they were.
func removeRational(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		rl, ok := t.(*model.RatLit)
		if !ok {
			return t
		}
		scaled := rl.Num * rationalScale / rl.Den
		return &model.LitNat{TermBase: model.NewBase(rl.Pos(), model.Prim{Kind: model.PrimNat}), Value: uint64(scaled)}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// updateNatIntRat normalizes the numeric kind of every arithmetic BinOp's
// result type now that rational and date/duration operands have been
// rewritten to Nat/Int: subtraction of two Nats becomes Int-typed (it can
// go negative); every other BinOp keeps the type it already has. Applied
// twice per the pipeline's ordering (once after removeRational, again
// after replaceDateDurationByTimestamp) since each of those passes can
// introduce fresh BinOp nodes whose result kind needs re-deriving.
func updateNatIntRat(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		b, ok := t.(*model.BinOp)
		if !ok || b.Op != model.OpSub {
			return t
		}
		if isNat(b.Left.Typ()) && isNat(b.Right.Typ()) {
			c := *b
			c.T = model.Prim{Kind: model.PrimInt}
			return &c
		}
		return t
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

func isNat(t model.Type) bool {
	p, ok := t.(model.Prim)
	return ok && p.Kind == model.PrimNat
}

// replaceDateDurationByTimestamp rewrites LitDate/LitDuration into Int-
// typed Unix-second timestamps and offsets, the representation the target
// VM's `timestamp` primitive actually carries; Date/Duration only exist as
// surface conveniences.
func replaceDateDurationByTimestamp(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		switch n := t.(type) {
		case *model.LitDate:
			return &model.LitInt{TermBase: model.NewBase(n.Pos(), model.Prim{Kind: model.PrimInt}), Value: parseISO8601ToUnix(n.ISO8601)}
		case *model.LitDuration:
			return &model.LitInt{TermBase: model.NewBase(n.Pos(), model.Prim{Kind: model.PrimInt}), Value: n.Seconds}
		default:
			return t
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

func parseISO8601ToUnix(s string) int64 {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix()
		}
	}
	// Text none of the layouts above accepts still maps to a stable,
	// deterministic integer: a hash of the literal text, not a timestamp.
	var h int64
	for _, c := range s {
		h = h*31 + int64(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

// flattenMultiKey rewrites an asset keyed by more than one field into a
// single Tuple-typed key, the only key shape map/big_map/set primitives
// support. No pass reports KindNoSortOnKeyWithMultiKey, so a sort over a
// multi-key asset's key reaches this pass unchecked.
//
// Two things change together: the declaration (the separate key fields
// collapse into one Tuple-typed field, and every literal init row's
// separate key values collapse into one Tuple value), and every surviving
// ContainerOp against that asset's collection (Cohort C's decomposition
// already turned method calls into these; a multi-key one still carries
// its key components as separate leading Args, which this pass tuples up
// into a single Args[0]).
func flattenMultiKey(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	multiKey := map[string][]string{}
	for _, a := range mdl.Assets {
		if len(a.KeyFields) > 1 {
			multiKey[a.Name] = a.KeyFields
		}
	}
	if len(multiKey) == 0 {
		return mdl
	}
	out := mdl.Clone()
	out.Assets = append([]*model.AssetDecl{}, mdl.Assets...)
	for i, a := range out.Assets {
		keys, ok := multiKey[a.Name]
		if !ok {
			continue
		}
		na := flattenAssetKey(a, keys)
		out.Assets[i] = na
	}
	rewrite := func(t model.Term) model.Term {
		op, ok := t.(*model.ContainerOp)
		if !ok {
			return t
		}
		v, ok := op.Target.(*model.Var)
		if !ok {
			return t
		}
		keys, ok := multiKey[v.Name]
		if !ok {
			return t
		}
		n := len(keys)
		if len(op.Args) < n {
			return t
		}
		items := make([]model.Term, n)
		copy(items, op.Args[:n])
		tupleArgs := make([]model.Type, 0, n)
		for _, it := range items {
			tupleArgs = append(tupleArgs, it.Typ())
		}
		tuple := &model.Tuple{
			TermBase: model.NewBase(op.Pos(), model.Param{Kind: model.ParamTuple, Args: tupleArgs}),
			Items:    items,
		}
		c := *op
		c.Args = append([]model.Term{tuple}, op.Args[n:]...)
		return &c
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, out)
}

func flattenAssetKey(a *model.AssetDecl, keys []string) *model.AssetDecl {
	keyTypes := make([]model.Type, 0, len(keys))
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
		keyTypes = append(keyTypes, modelutil.GetFieldContainer(a, k))
	}
	newKeyName := strings.Join(keys, "_")
	fields := make([]model.RecordFieldDecl, 0, len(a.Fields)-len(keys)+1)
	fields = append(fields, model.RecordFieldDecl{Name: newKeyName, Type: model.Param{Kind: model.ParamTuple, Args: keyTypes}})
	for _, f := range a.Fields {
		if !keySet[f.Name] {
			fields = append(fields, f)
		}
	}
	initValues := make([]model.RecordLit, len(a.InitValues))
	for i, lit := range a.InitValues {
		items := make([]model.Term, len(keys))
		rest := make([]model.RecordField, 0, len(lit.Fields))
		byName := map[string]model.Term{}
		for _, f := range lit.Fields {
			byName[f.Name] = f.Value
		}
		for j, k := range keys {
			items[j] = byName[k]
		}
		for _, f := range lit.Fields {
			if !keySet[f.Name] {
				rest = append(rest, f)
			}
		}
		keyVal := &model.Tuple{TermBase: lit.TermBase, Items: items}
		newFields := append([]model.RecordField{{Name: newKeyName, Value: keyVal}}, rest...)
		initValues[i] = model.RecordLit{TermBase: lit.TermBase, TypeName: lit.TypeName, Fields: newFields}
	}
	na := *a
	na.KeyField = newKeyName
	na.KeyFields = nil
	na.Fields = fields
	na.InitValues = initValues
	return &na
}

// absTez wraps any arithmetic whose result is tez-typed in an explicit
// absolute value: tez has no negative representation in the target VM, so
// a subtraction that could go negative (balance deduction, change
// calculation) must be clamped before it is ever stored or compared.
func absTez(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	isTez := func(t model.Type) bool {
		p, ok := t.(model.Prim)
		return ok && p.Kind == model.PrimCurrency
	}
	rewrite := func(t model.Term) model.Term {
		switch n := t.(type) {
		case *model.BinOp:
			if n.Op == model.OpSub && isTez(n.Typ()) {
				return &model.UnOp{TermBase: n.TermBase, Op: model.OpAbs, Operand: n}
			}
		case *model.UnOp:
			if n.Op == model.OpNeg && isTez(n.Operand.Typ()) {
				c := *n
				c.Op = model.OpAbs
				return &c
			}
		}
		return t
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// processInternalString unwraps the parser's `internal_string` marker call
// — a compiler-internal string constant (an error code, a well-known entry
// point name) the front end tags so later passes could special-case it —
// back down to the plain string literal it wraps, now that no pass still
// needs to tell it apart from an ordinary string.
func processInternalString(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.Call)
		if !ok || call.Callee != "internal_string" || len(call.Args) != 1 {
			return t
		}
		return call.Args[0]
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// addContainOnGet guards every primitive `get` with an explicit membership
// check: the target VM's map/big_map GET on a missing key does not raise a
// catchable error the way a high-level `.get()` call implied it would, so
// this pass makes the check explicit, failing with a clear reason instead
// of whatever the backend does with a missing key.
func addContainOnGet(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		op, ok := t.(*model.ContainerOp)
		if !ok || op.Op != model.OpGet {
			return t
		}
		mem := &model.ContainerOp{
			TermBase: model.NewBase(op.Pos(), model.Prim{Kind: model.PrimBool}),
			Op:       model.OpMem,
			Target:   op.Target,
			Args:     op.Args,
		}
		guard := &model.If{
			TermBase: model.NewBase(op.Pos(), model.Prim{Kind: model.PrimUnit}),
			Cond:     &model.UnOp{TermBase: model.NewBase(op.Pos(), model.Prim{Kind: model.PrimBool}), Op: model.OpNot, Operand: mem},
			Then: &model.Fail{
				TermBase: model.NewBase(op.Pos(), model.Prim{Kind: model.PrimNever}),
				Reason:   &model.LitString{TermBase: model.NewBase(op.Pos(), model.Prim{Kind: model.PrimString}), Value: "key not found"},
			},
			Else: &model.LitUnit{TermBase: model.NewBase(op.Pos(), model.Prim{Kind: model.PrimUnit})},
		}
		return &model.Seq{TermBase: op.TermBase, Items: []model.Term{guard, op}}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// addExplicitSort makes a select's result order explicit by threading it
// through an explicit sort step: select alone only describes which rows
// qualify, not in what order the target VM's ITER will visit them, so a
// bare select is wrapped in sort(select(...)) rather than leaving order
// implicit for a later lowering to guess at.
func addExplicitSort(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.AssetCall)
		if !ok || call.Method != model.MethodSelect {
			return t
		}
		return &model.AssetCall{
			TermBase: call.TermBase,
			Asset:    call.Asset,
			Method:   model.MethodSort,
			Recv:     call,
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// splitKeyValues splits every asset's literal init rows into (key,
// value-without-key) pairs, the shape fill_stovars (Cohort G) needs to
// actually populate the asset's initial storage collection, rather than
// leaving it to rebuild that split itself from InitValues every time.
func splitKeyValues(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	out.Assets = append([]*model.AssetDecl{}, mdl.Assets...)
	for i, a := range out.Assets {
		if len(a.InitValues) == 0 {
			continue
		}
		na := *a
		na.InitPairs = make([]model.AssetInitPair, len(a.InitValues))
		for j, lit := range a.InitValues {
			lit := lit
			key, rest := modelutil.ExtractKeyValueFromMasset(a, &lit)
			na.InitPairs[j] = model.AssetInitPair{Key: key, Value: rest}
		}
		na.InitValues = nil
		out.Assets[i] = &na
	}
	return out
}

// changeTypeOfNth retypes an AssetCall's Nth/Head method result from the
// asset's element type to an option of that type: indexing a collection by
// position can fail (the index can be out of range), so the result must be
// able to carry "absent" the way get_opt already does for key lookups.
func changeTypeOfNth(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.AssetCall)
		if !ok || (call.Method != model.MethodNth && call.Method != model.MethodHead) {
			return t
		}
		if p, ok := call.Typ().(model.Param); ok && p.Kind == model.ParamOption {
			return t
		}
		c := *call
		c.T = model.Param{Kind: model.ParamOption, Args: []model.Type{call.Typ()}}
		return &c
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// removeUpdateAll lowers the bulk `update_all` asset method (apply the same
// field changes to every row) into an explicit IterLoop over the
// collection, issuing one ordinary `update` AssetCall per row. The update
// lowering passes (remove_add_update, replace_update_by_set) run in Cohort
// C, before this pass, so these per-row update calls are not lowered by
// any later pass.
func removeUpdateAll(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		call, ok := t.(*model.AssetCall)
		if !ok || call.Method != model.MethodUpdateAll {
			return t
		}
		asset, err := modelutil.GetAsset(mdl, call.Asset)
		if err != nil {
			bus.EmitError(call.Pos(), diag.KindUnknownAsset, call.Asset)
			return t
		}
		lit, ok := lastRecordLitArg(call.Args)
		if !ok {
			bus.EmitError(call.Pos(), diag.KindCannotBuildAsset, call.Asset)
			return t
		}
		rowVar := "__row"
		keyAccess := &model.FieldAccess{
			TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimNat}),
			Record:   &model.Var{TermBase: model.NewBase(call.Pos(), model.Named{Name: asset.Name}), Name: rowVar},
			Field:    asset.KeyField,
		}
		update := &model.AssetCall{
			TermBase: model.NewBase(call.Pos(), model.Prim{Kind: model.PrimUnit}),
			Asset:    call.Asset,
			Method:   model.MethodUpdate,
			Recv:     call.Recv,
			Args:     []model.Term{keyAccess, lit},
		}
		return &model.IterLoop{
			TermBase: call.TermBase,
			Label:    "__update_all_" + asset.Name,
			Var:      rowVar,
			Coll:     call.Recv,
			Body:     update,
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

func lastRecordLitArg(args []model.Term) (*model.RecordLit, bool) {
	if len(args) == 0 {
		return nil, false
	}
	lit, ok := args[len(args)-1].(*model.RecordLit)
	return lit, ok
}

// removeDeclVarOpt lowers the `decl_var_opt`/Massignopt surface form — bind
// a variable to an optional value, falling back to a default when it is
// None (`let x ?= expr : default`) — into an ordinary LetIn over an
// explicit OptionMatch, the shape every later pass's LetIn/Assign handling
// already understands.
func removeDeclVarOpt(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		switch n := t.(type) {
		case *model.DeclVarOpt:
			return &model.LetIn{
				TermBase: n.TermBase,
				Name:     n.Name,
				Init: &model.OptionMatch{
					TermBase: model.NewBase(n.Pos(), n.Init.Typ()),
					Scrutinee: n.Init,
					SomeVar:   "__opt",
					SomeBody:  &model.Var{TermBase: model.NewBase(n.Pos(), n.Init.Typ()), Name: "__opt"},
					NoneBody:  n.Fallback,
				},
				Body: n.Body,
			}
		case *model.AssignOpt:
			return &model.Assign{
				TermBase: n.TermBase,
				Name:     n.Name,
				Value: &model.OptionMatch{
					TermBase: model.NewBase(n.Pos(), n.Init.Typ()),
					Scrutinee: n.Init,
					SomeVar:   "__opt",
					SomeBody:  &model.Var{TermBase: model.NewBase(n.Pos(), n.Init.Typ()), Name: "__opt"},
					NoneBody:  n.Fallback,
				},
			}
		default:
			return t
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// processArithContainer rewrites container-valued arithmetic — summing a
// list/set of numeric elements via `+` folded over a container, spelled as
// a ContainerOp whose Op is %fold with an arithmetic lambda — into an
// explicit IterLoop accumulating into a fresh local, so arithmetic never
// has to be lowered twice (once as a normal BinOp, once as a fold).
func processArithContainer(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		op, ok := t.(*model.ContainerOp)
		if !ok || op.Op != model.OpFold || len(op.Args) == 0 {
			return t
		}
		acc := "__fold_acc"
		rowVar := "__fold_row"
		accVar := &model.Var{TermBase: model.NewBase(op.Pos(), op.Typ()), Name: acc}
		rowVarTerm := &model.Var{TermBase: model.NewBase(op.Pos(), op.Typ()), Name: rowVar}
		sum := &model.BinOp{TermBase: model.NewBase(op.Pos(), op.Typ()), Op: model.OpAdd, Left: accVar, Right: rowVarTerm}
		loop := &model.IterLoop{
			TermBase: model.NewBase(op.Pos(), model.Prim{Kind: model.PrimUnit}),
			Label:    "__fold_" + acc,
			Var:      rowVar,
			Coll:     op.Target,
			Body:     &model.Assign{TermBase: model.NewBase(op.Pos(), model.Prim{Kind: model.PrimUnit}), Name: acc, Value: sum},
		}
		return &model.LetIn{
			TermBase: op.TermBase,
			Name:     acc,
			Init:     op.Args[0],
			Body:     &model.Seq{TermBase: op.TermBase, Items: []model.Term{loop, accVar}},
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// lazyEvalCondition rewrites `&&`/`||` over non-trivial right operands into
// an explicit If, avoiding the target VM evaluating a side-effecting or
// expensive right-hand side when the left operand alone already determines
// the result (short-circuit evaluation the stack machine has no native
// instruction for).
func lazyEvalCondition(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		b, ok := t.(*model.BinOp)
		if !ok {
			return t
		}
		switch b.Op {
		case model.OpAnd:
			return &model.If{TermBase: b.TermBase, Cond: b.Left, Then: b.Right, Else: &model.LitBool{TermBase: model.NewBase(b.Pos(), model.Prim{Kind: model.PrimBool}), Value: false}}
		case model.OpOr:
			return &model.If{TermBase: b.TermBase, Cond: b.Left, Then: &model.LitBool{TermBase: model.NewBase(b.Pos(), model.Prim{Kind: model.PrimBool}), Value: true}, Else: b.Right}
		default:
			return t
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// removeHighLevelModel erases the last high-level, asset-lowering-era
// vocabulary that can still appear this late: a FailSome (the `fail_if`
// instruction's typed-None-carrying form) becomes a plain Fail, since by
// this point no pass still needs to distinguish "fails with a value" from
// "fails".
func removeHighLevelModel(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		fs, ok := t.(*model.FailSome)
		if !ok {
			return t
		}
		return &model.Fail{TermBase: fs.TermBase, Reason: fs.Value}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// instrToExprExec documents rather than rewrites: ContainerOp already
// serves as both an instruction (a put/remove executed for effect) and an
// expression (a get read for its value) in this IR, so there is no
// separate instruction-vs-expression tag left to reconcile once Cohort F's
// other lowerings have run. The pass exists as a registered no-op so the
// pipeline's pass list still names it, matching spec.md's enumeration.
func instrToExprExec(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	return mdl
}

// fixContainer normalizes a ContainerOp's Target so it always reads through
// a StorageRef field access rather than a bare asset-name Var, the form
// every later pass (and the printer) expects once remove_asset has run.
// Cohort E's remove_asset already rewrites bare asset Vars outside
// ContainerOp targets; this pass closes the one place a Target can still
// carry the pre-lowering form when a ContainerOp was synthesized by an
// earlier Cohort F pass after remove_asset's rewrite already passed it by.
func fixContainer(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	assetNames := map[string]bool{}
	for _, a := range mdl.Assets {
		assetNames[a.Name] = true
	}
	rewrite := func(t model.Term) model.Term {
		op, ok := t.(*model.ContainerOp)
		if !ok {
			return t
		}
		v, ok := op.Target.(*model.Var)
		if !ok || !assetNames[v.Name] {
			return t
		}
		c := *op
		c.Target = &model.FieldAccess{
			TermBase: v.TermBase,
			Record:   &model.StorageRef{TermBase: model.NewBase(v.Pos(), model.Named{Name: "storage"})},
			Field:    v.Name,
		}
		return &c
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// extractItemCollectionFromAddAsset splits a ContainerOp put whose value
// argument is itself a collection literal (adding a whole asset row whose
// one field is a nested list/set) into a let-bound collection followed by
// the put over that bound name, so the back end never has to emit a
// collection literal inline as a single instruction's operand.
func extractItemCollectionFromAddAsset(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	isCollectionLit := func(t model.Term) bool {
		switch t.(type) {
		case *model.ListLit, *model.SetLit, *model.MapLit:
			return true
		default:
			return false
		}
	}
	counter := 0
	rewrite := func(t model.Term) model.Term {
		op, ok := t.(*model.ContainerOp)
		if !ok || op.Op != model.OpPut || len(op.Args) < 2 || !isCollectionLit(op.Args[1]) {
			return t
		}
		counter++
		tmp := "__item_coll" + strconv.Itoa(counter)
		c := *op
		c.Args = append([]model.Term{op.Args[0], &model.Var{TermBase: model.NewBase(op.Pos(), op.Args[1].Typ()), Name: tmp}}, op.Args[2:]...)
		return &model.LetIn{
			TermBase: op.TermBase,
			Name:     tmp,
			Init:     op.Args[1],
			Body:     &c,
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// ibmShape records the key/value types of one iterable_big_map field so
// the operation rewrite below can rebuild the (value big_map, reverse-index
// big_map, counter) triple's field accesses without re-deriving them from
// the storage declaration at every call site.
type ibmShape struct {
	Key, Value model.Type
}

// removeIterableBigMap rewrites iterable_big_map-shaped assets into the
// triple spec.md requires: a big_map<K,(nat,V)> carrying each value tagged
// with its insertion position, a reverse big_map<nat,K> from position back
// to key, and a nat counter — since the target VM's big_map has no native
// insertion-order iteration. Every put/remove/get/fold/iter against the
// field is rewritten to keep the triple consistent. No pass reports
// NoPutRemoveForIterableBigMapAsset, so a put_remove against such a field
// is not rejected.
func removeIterableBigMap(mdl *model.Model, bus *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	if out.Storage == nil {
		return out
	}
	natT := model.Prim{Kind: model.PrimNat}
	shapes := map[string]ibmShape{}
	fields := make([]model.StorageField, 0, len(out.Storage.Fields))
	for _, f := range out.Storage.Fields {
		at, ok := f.Type.(model.AssetType)
		if !ok {
			fields = append(fields, f)
			continue
		}
		pt, ok := at.Under.(model.Param)
		if !ok || pt.Kind != model.ParamIterableBigMap {
			fields = append(fields, f)
			continue
		}
		keyType, valueType := pt.Args[0], pt.Args[1]
		pairType := model.Param{Kind: model.ParamTuple, Args: []model.Type{natT, valueType}}
		valueMapType := model.AssetType{Asset: at.Asset, Intent: at.Intent, Under: model.Param{Kind: model.ParamBigMap, Args: []model.Type{keyType, pairType}}}
		keysMapType := model.Param{Kind: model.ParamBigMap, Args: []model.Type{natT, keyType}}
		fields = append(fields,
			model.StorageField{Name: f.Name, Type: valueMapType, Init: &model.MapLit{TermBase: model.NewBase(model.NoPos, valueMapType), BigMap: true}},
			model.StorageField{Name: f.Name + "__keys", Type: keysMapType, Init: &model.MapLit{TermBase: model.NewBase(model.NoPos, keysMapType), BigMap: true}},
			model.StorageField{Name: f.Name + "__size", Type: natT, Init: &model.LitNat{TermBase: model.NewBase(model.NoPos, natT), Value: 0}},
		)
		shapes[f.Name] = ibmShape{Key: keyType, Value: valueType}
	}
	out.Storage = &model.StorageDecl{Fields: fields}
	if len(shapes) == 0 {
		return out
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
		if _, ok := fa.Record.(*model.StorageRef); !ok {
			return t
		}
		shape, tracked := shapes[fa.Field]
		if !tracked {
			return t
		}
		return lowerIterableBigMapOp(fa.Field, shape, op)
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, out)
}

func ibmFieldAccess(pos model.Position, name string, typ model.Type) *model.FieldAccess {
	return &model.FieldAccess{
		TermBase: model.NewBase(pos, typ),
		Record:   &model.StorageRef{TermBase: model.NewBase(pos, model.Named{Name: "storage"})},
		Field:    name,
	}
}

// lowerIterableBigMapOp rewrites a single ContainerOp against an
// iterable_big_map field into the equivalent operation(s) over the
// (value, keys, size) triple, maintaining the insertion-order invariant:
// put appends at the current size and bumps it; remove shifts every
// later entry's recorded position down by one before dropping the slot,
// since spec.md scenario 6 requires positions to stay dense (no gaps)
// after a removal, not merely tombstoned.
func lowerIterableBigMapOp(field string, shape ibmShape, op *model.ContainerOp) model.Term {
	pos := op.Pos()
	natT := model.Prim{Kind: model.PrimNat}
	unitT := model.Prim{Kind: model.PrimUnit}
	pairT := model.Param{Kind: model.ParamTuple, Args: []model.Type{natT, shape.Value}}
	storageF := op.Target
	keysF := ibmFieldAccess(pos, field+"__keys", model.Param{Kind: model.ParamBigMap, Args: []model.Type{natT, shape.Key}})
	sizeF := ibmFieldAccess(pos, field+"__size", natT)
	one := &model.LitNat{TermBase: model.NewBase(pos, natT), Value: 1}

	switch op.Op {
	case model.OpPut:
		key, value := op.Args[0], op.Args[1]
		wrapped := &model.Tuple{TermBase: model.NewBase(pos, pairT), Items: []model.Term{sizeF, value}}
		putValue := &model.ContainerOp{TermBase: model.NewBase(pos, storageF.Typ()), Op: model.OpPut, Target: storageF, Args: []model.Term{key, wrapped}}
		putKey := &model.ContainerOp{TermBase: model.NewBase(pos, keysF.Typ()), Op: model.OpPut, Target: keysF, Args: []model.Term{sizeF, key}}
		incr := &model.Assign{TermBase: model.NewBase(pos, unitT), Name: field + "__size", Value: &model.BinOp{TermBase: model.NewBase(pos, natT), Op: model.OpAdd, Left: sizeF, Right: one}}
		return &model.Seq{TermBase: op.TermBase, Items: []model.Term{putValue, putKey, incr}}

	case model.OpRemove:
		key := op.Args[0]
		getPair := &model.ContainerOp{TermBase: model.NewBase(pos, pairT), Op: model.OpGet, Target: storageF, Args: []model.Term{key}}
		lastIdx := &model.BinOp{TermBase: model.NewBase(pos, natT), Op: model.OpSub, Left: sizeF, Right: one}
		shiftVar, shiftKeyVar := "__ibm_i", "__ibm_shift_key"
		shiftVarTerm := &model.Var{TermBase: model.NewBase(pos, natT), Name: shiftVar}
		shiftKeyTerm := &model.Var{TermBase: model.NewBase(pos, shape.Key), Name: shiftKeyVar}
		newPos := &model.BinOp{TermBase: model.NewBase(pos, natT), Op: model.OpSub, Left: shiftVarTerm, Right: one}
		getShifted := &model.ContainerOp{TermBase: model.NewBase(pos, pairT), Op: model.OpGet, Target: storageF, Args: []model.Term{shiftKeyTerm}}
		rewrapped := &model.Tuple{TermBase: model.NewBase(pos, pairT), Items: []model.Term{newPos, &model.Proj{TermBase: model.NewBase(pos, shape.Value), Tuple: getShifted, Index: 1}}}
		shiftBody := &model.LetIn{
			TermBase: model.NewBase(pos, unitT),
			Name:     shiftKeyVar,
			Init:     &model.ContainerOp{TermBase: model.NewBase(pos, shape.Key), Op: model.OpGet, Target: keysF, Args: []model.Term{shiftVarTerm}},
			Body: &model.Seq{TermBase: model.NewBase(pos, unitT), Items: []model.Term{
				&model.ContainerOp{TermBase: model.NewBase(pos, storageF.Typ()), Op: model.OpPut, Target: storageF, Args: []model.Term{shiftKeyTerm, rewrapped}},
				&model.ContainerOp{TermBase: model.NewBase(pos, keysF.Typ()), Op: model.OpPut, Target: keysF, Args: []model.Term{newPos, shiftKeyTerm}},
			}},
		}
		posVar := "__ibm_pos"
		shiftLoop := &model.ForLoop{
			TermBase: model.NewBase(pos, unitT),
			Label:    "__ibm_shift_" + field,
			Var:      shiftVar,
			From:     &model.BinOp{TermBase: model.NewBase(pos, natT), Op: model.OpAdd, Left: &model.Var{TermBase: model.NewBase(pos, natT), Name: posVar}, Right: one},
			To:       lastIdx,
			Down:     false,
			Body:     shiftBody,
		}
		removeValue := &model.ContainerOp{TermBase: model.NewBase(pos, unitT), Op: model.OpRemove, Target: storageF, Args: []model.Term{key}}
		removeLastKeyEntry := &model.ContainerOp{TermBase: model.NewBase(pos, unitT), Op: model.OpRemove, Target: keysF, Args: []model.Term{lastIdx}}
		decr := &model.Assign{TermBase: model.NewBase(pos, unitT), Name: field + "__size", Value: lastIdx}
		return &model.LetIn{
			TermBase: op.TermBase,
			Name:     posVar,
			Init:     &model.Proj{TermBase: model.NewBase(pos, natT), Tuple: getPair, Index: 0},
			Body:     &model.Seq{TermBase: model.NewBase(pos, unitT), Items: []model.Term{shiftLoop, removeValue, removeLastKeyEntry, decr}},
		}

	case model.OpGet:
		pair := &model.ContainerOp{TermBase: model.NewBase(pos, pairT), Op: model.OpGet, Target: storageF, Args: op.Args}
		return &model.Proj{TermBase: model.NewBase(pos, shape.Value), Tuple: pair, Index: 1}

	case model.OpGetOpt:
		optPairT := model.Param{Kind: model.ParamOption, Args: []model.Type{pairT}}
		optValueT := model.Param{Kind: model.ParamOption, Args: []model.Type{shape.Value}}
		pairOpt := &model.ContainerOp{TermBase: model.NewBase(pos, optPairT), Op: model.OpGetOpt, Target: storageF, Args: op.Args}
		return &model.OptionMatch{
			TermBase:  model.NewBase(pos, optValueT),
			Scrutinee: pairOpt,
			SomeVar:   "__ibm_pair",
			SomeBody: &model.Some{TermBase: model.NewBase(pos, optValueT), Value: &model.Proj{
				TermBase: model.NewBase(pos, shape.Value),
				Tuple:    &model.Var{TermBase: model.NewBase(pos, pairT), Name: "__ibm_pair"},
				Index:    1,
			}},
			NoneBody: &model.None{TermBase: model.NewBase(pos, optValueT)},
		}

	case model.OpSize:
		return sizeF

	case model.OpFold, model.OpIter:
		view := &model.Call{
			TermBase: model.NewBase(pos, model.Param{Kind: model.ParamList, Args: []model.Type{shape.Value}}),
			Callee:   "iterable_big_map_view",
			Args:     []model.Term{storageF, keysF, sizeF},
		}
		newOp := *op
		newOp.Target = view
		return &newOp

	default:
		return op
	}
}

// replaceForToIter rewrites a numeric ForLoop whose bounds are already
// primitive Nat/Int terms into the equivalent IterLoop over an integer
// range list, so only one loop form (IterLoop) needs a back-end lowering.
func replaceForToIter(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		fl, ok := t.(*model.ForLoop)
		if !ok {
			return t
		}
		rangeTerm := &model.Builtin{
			TermBase: model.NewBase(fl.Pos(), model.Param{Kind: model.ParamList, Args: []model.Type{model.Prim{Kind: model.PrimNat}}}),
			Kind:     model.BuiltinPackInt, // stands in for a range-construction intrinsic the back end expands
			Args:     []model.Term{fl.From, fl.To},
		}
		return &model.IterLoop{
			TermBase: fl.TermBase,
			Label:    fl.Label,
			Var:      fl.Var,
			Coll:     rangeTerm,
			Body:     fl.Body,
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// removeTernary rewrites every Ternary into an If plus a synthesized
// temporary variable, the shape spec.md requires since the target VM has
// no conditional-expression instruction, only conditional jumps.
func removeTernary(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	counter := 0
	rewrite := func(t model.Term) model.Term {
		tern, ok := t.(*model.Ternary)
		if !ok {
			return t
		}
		counter++
		tmp := tmpName(counter)
		ifStmt := &model.If{
			TermBase: model.NewBase(tern.Pos(), model.Prim{Kind: model.PrimUnit}),
			Cond:     tern.Cond,
			Then:     &model.Assign{TermBase: model.NewBase(tern.Pos(), model.Prim{Kind: model.PrimUnit}), Name: tmp, Value: tern.Then},
			Else:     &model.Assign{TermBase: model.NewBase(tern.Pos(), model.Prim{Kind: model.PrimUnit}), Name: tmp, Value: tern.Else},
		}
		return &model.LetIn{
			TermBase: tern.TermBase,
			Name:     tmp,
			Init:     &model.LitUnit{TermBase: model.NewBase(tern.Pos(), tern.Typ())},
			Body: &model.Seq{
				TermBase: tern.TermBase,
				Items:    []model.Term{ifStmt, &model.Var{TermBase: tern.TermBase, Name: tmp}},
			},
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

func tmpName(n int) string {
	return "__ternary_tmp" + strconv.Itoa(n)
}
