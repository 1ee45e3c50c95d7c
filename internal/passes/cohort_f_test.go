package passes

import (
	"testing"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
	"github.com/gridbugs/archetype-lang/internal/traverse"
)

func TestFlattenMultiKeyCollapsesDeclaredKeyFields(t *testing.T) {
	asset := newAsset("allowance", "owner",
		model.RecordFieldDecl{Name: "owner", Type: model.Prim{Kind: model.PrimAddress}},
		model.RecordFieldDecl{Name: "spender", Type: model.Prim{Kind: model.PrimAddress}},
		model.RecordFieldDecl{Name: "amount", Type: model.Prim{Kind: model.PrimNat}},
	)
	asset.KeyFields = []string{"owner", "spender"}
	asset.InitValues = []model.RecordLit{{Fields: []model.RecordField{
		{Name: "owner", Value: &model.LitAddress{Value: "tz1a"}},
		{Name: "spender", Value: &model.LitAddress{Value: "tz1b"}},
		{Name: "amount", Value: &model.LitNat{Value: 5}},
	}}}
	mdl := &model.Model{Assets: []*model.AssetDecl{asset}}

	out := flattenMultiKey(mdl, diag.NewBus(), config.Default())

	got := out.Assets[0]
	if got.KeyField != "owner_spender" || len(got.KeyFields) != 0 {
		t.Fatalf("expected the two key fields to collapse into owner_spender, got %q %v", got.KeyField, got.KeyFields)
	}
	if len(got.Fields) != 2 {
		t.Fatalf("expected 2 fields (tuple key + amount), got %v", got.Fields)
	}
	tuple, ok := got.InitValues[0].Fields[0].Value.(*model.Tuple)
	if !ok || len(tuple.Items) != 2 {
		t.Fatalf("expected the init row's key to become a 2-item Tuple, got %#v", got.InitValues[0].Fields[0].Value)
	}
}

func TestFlattenMultiKeyTuplesUpContainerOpArgs(t *testing.T) {
	asset := newAsset("allowance", "owner",
		model.RecordFieldDecl{Name: "owner", Type: model.Prim{Kind: model.PrimAddress}},
		model.RecordFieldDecl{Name: "spender", Type: model.Prim{Kind: model.PrimAddress}},
	)
	asset.KeyFields = []string{"owner", "spender"}
	op := &model.ContainerOp{
		Op:     model.OpGet,
		Target: &model.Var{Name: "allowance"},
		Args:   []model.Term{&model.LitAddress{Value: "tz1a"}, &model.LitAddress{Value: "tz1b"}},
	}
	fn := newFunc("f", model.KindEntry, op)
	mdl := &model.Model{Assets: []*model.AssetDecl{asset}, Functions: []*model.FunctionDecl{fn}}

	out := flattenMultiKey(mdl, diag.NewBus(), config.Default())

	got := out.Functions[0].Body.(*model.ContainerOp)
	if len(got.Args) != 1 {
		t.Fatalf("expected the two key args to collapse into one Tuple arg, got %v", got.Args)
	}
	if _, ok := got.Args[0].(*model.Tuple); !ok {
		t.Fatalf("expected a Tuple key arg, got %#v", got.Args[0])
	}
}

func TestRemoveRationalScalesToNat(t *testing.T) {
	rat := &model.RatLit{Num: 1, Den: 2}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, rat)}}

	out := removeRational(mdl, diag.NewBus(), config.Default())

	nat, ok := out.Functions[0].Body.(*model.LitNat)
	if !ok {
		t.Fatalf("expected LitNat, got %T", out.Functions[0].Body)
	}
	if want := uint64(rationalScale / 2); nat.Value != want {
		t.Fatalf("LitNat.Value = %d, want %d", nat.Value, want)
	}
}

func TestRemoveTernaryPreservesResultValue(t *testing.T) {
	tern := &model.Ternary{
		Cond: &model.LitBool{Value: true},
		Then: &model.LitInt{Value: 1},
		Else: &model.LitInt{Value: 2},
	}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, tern)}}

	out := removeTernary(mdl, diag.NewBus(), config.Default())

	letIn, ok := out.Functions[0].Body.(*model.LetIn)
	if !ok {
		t.Fatalf("expected LetIn, got %T", out.Functions[0].Body)
	}
	seq, ok := letIn.Body.(*model.Seq)
	if !ok || len(seq.Items) != 2 {
		t.Fatalf("expected a two-item Seq wrapping the If and the temp read, got %#v", letIn.Body)
	}
	if _, ok := seq.Items[0].(*model.If); !ok {
		t.Fatalf("Seq's first item should be the If, got %T", seq.Items[0])
	}
	readVar, ok := seq.Items[1].(*model.Var)
	if !ok || readVar.Name != letIn.Name {
		t.Fatalf("Seq's last item should read back the temp %q, got %#v", letIn.Name, seq.Items[1])
	}
}

func TestRemoveTernaryNoTernaryIsNoOp(t *testing.T) {
	lit := &model.LitInt{Value: 7}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, lit)}}

	out := removeTernary(mdl, diag.NewBus(), config.Default())

	got, ok := out.Functions[0].Body.(*model.LitInt)
	if !ok || got.Value != 7 {
		t.Fatalf("expected body to pass through unchanged, got %#v", out.Functions[0].Body)
	}
}

func TestAbsTezWrapsTezSubtraction(t *testing.T) {
	sub := &model.BinOp{
		TermBase: model.NewBase(model.NoPos, model.Prim{Kind: model.PrimCurrency}),
		Op:       model.OpSub,
		Left:     &model.LitNat{Value: 5},
		Right:    &model.LitNat{Value: 2},
	}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, sub)}}

	out := absTez(mdl, diag.NewBus(), config.Default())

	un, ok := out.Functions[0].Body.(*model.UnOp)
	if !ok || un.Op != model.OpAbs {
		t.Fatalf("expected a tez subtraction to be wrapped in abs, got %#v", out.Functions[0].Body)
	}
}

func TestAbsTezLeavesNonTezSubtractionAlone(t *testing.T) {
	sub := &model.BinOp{
		TermBase: model.NewBase(model.NoPos, model.Prim{Kind: model.PrimNat}),
		Op:       model.OpSub,
		Left:     &model.LitNat{Value: 5},
		Right:    &model.LitNat{Value: 2},
	}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, sub)}}

	out := absTez(mdl, diag.NewBus(), config.Default())

	if _, ok := out.Functions[0].Body.(*model.BinOp); !ok {
		t.Fatalf("expected a non-tez subtraction to be left alone, got %#v", out.Functions[0].Body)
	}
}

func TestProcessInternalStringUnwrapsMarkerCall(t *testing.T) {
	call := &model.Call{Callee: "internal_string", Args: []model.Term{&model.LitString{Value: "well_known"}}}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, call)}}

	out := processInternalString(mdl, diag.NewBus(), config.Default())

	lit, ok := out.Functions[0].Body.(*model.LitString)
	if !ok || lit.Value != "well_known" {
		t.Fatalf("expected the marker call to unwrap to its string argument, got %#v", out.Functions[0].Body)
	}
}

func TestAddContainOnGetGuardsWithMemCheck(t *testing.T) {
	op := &model.ContainerOp{Op: model.OpGet, Target: &model.Var{Name: "ledger"}, Args: []model.Term{&model.LitAddress{Value: "tz1a"}}}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, op)}}

	out := addContainOnGet(mdl, diag.NewBus(), config.Default())

	seq, ok := out.Functions[0].Body.(*model.Seq)
	if !ok || len(seq.Items) != 2 {
		t.Fatalf("expected a two-item Seq (guard, get), got %#v", out.Functions[0].Body)
	}
	ifStmt, ok := seq.Items[0].(*model.If)
	if !ok {
		t.Fatalf("expected the first item to be the membership guard, got %T", seq.Items[0])
	}
	if _, ok := ifStmt.Cond.(*model.UnOp); !ok {
		t.Fatalf("expected the guard condition to be a negated mem check, got %#v", ifStmt.Cond)
	}
}

func TestAddExplicitSortWrapsSelectInSort(t *testing.T) {
	sel := &model.AssetCall{Asset: "order", Method: model.MethodSelect}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, sel)}}

	out := addExplicitSort(mdl, diag.NewBus(), config.Default())

	sort, ok := out.Functions[0].Body.(*model.AssetCall)
	if !ok || sort.Method != model.MethodSort {
		t.Fatalf("expected select to be wrapped in sort, got %#v", out.Functions[0].Body)
	}
	if _, ok := sort.Recv.(*model.AssetCall); !ok {
		t.Fatalf("expected sort's Recv to be the original select call, got %#v", sort.Recv)
	}
}

func TestSplitKeyValuesPopulatesInitPairs(t *testing.T) {
	asset := newAsset("ledger", "owner",
		model.RecordFieldDecl{Name: "owner", Type: model.Prim{Kind: model.PrimAddress}},
		model.RecordFieldDecl{Name: "balance", Type: model.Prim{Kind: model.PrimNat}},
	)
	asset.InitValues = []model.RecordLit{{Fields: []model.RecordField{
		{Name: "owner", Value: &model.LitAddress{Value: "tz1a"}},
		{Name: "balance", Value: &model.LitNat{Value: 10}},
	}}}
	mdl := &model.Model{Assets: []*model.AssetDecl{asset}}

	out := splitKeyValues(mdl, diag.NewBus(), config.Default())

	got := out.Assets[0]
	if len(got.InitValues) != 0 {
		t.Fatalf("expected InitValues to be cleared, got %v", got.InitValues)
	}
	if len(got.InitPairs) != 1 {
		t.Fatalf("expected one init pair, got %v", got.InitPairs)
	}
	addr, ok := got.InitPairs[0].Key.(*model.LitAddress)
	if !ok || addr.Value != "tz1a" {
		t.Fatalf("expected the key to be the owner address, got %#v", got.InitPairs[0].Key)
	}
	if len(got.InitPairs[0].Value.Fields) != 1 || got.InitPairs[0].Value.Fields[0].Name != "balance" {
		t.Fatalf("expected the value to carry only the balance field, got %#v", got.InitPairs[0].Value)
	}
	if len(asset.InitValues) != 1 {
		t.Fatal("expected the input asset's InitValues to be left untouched")
	}
}

func TestChangeTypeOfNthWrapsResultInOption(t *testing.T) {
	call := &model.AssetCall{
		TermBase: model.NewBase(model.NoPos, model.Prim{Kind: model.PrimNat}),
		Asset:    "queue", Method: model.MethodNth,
	}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, call)}}

	out := changeTypeOfNth(mdl, diag.NewBus(), config.Default())

	got := out.Functions[0].Body.(*model.AssetCall)
	p, ok := got.Typ().(model.Param)
	if !ok || p.Kind != model.ParamOption {
		t.Fatalf("expected Nth's result type to become an option, got %v", got.Typ())
	}
}

func TestRemoveUpdateAllLowersToIterLoop(t *testing.T) {
	asset := newAsset("ledger", "owner",
		model.RecordFieldDecl{Name: "owner", Type: model.Prim{Kind: model.PrimAddress}},
		model.RecordFieldDecl{Name: "balance", Type: model.Prim{Kind: model.PrimNat}},
	)
	lit := &model.RecordLit{Fields: []model.RecordField{{Name: "balance", Value: &model.LitNat{Value: 0}}}}
	call := &model.AssetCall{Asset: "ledger", Method: model.MethodUpdateAll, Recv: &model.Var{Name: "ledger"}, Args: []model.Term{lit}}
	mdl := &model.Model{Assets: []*model.AssetDecl{asset}, Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, call)}}

	bus := diag.NewBus()
	out := removeUpdateAll(mdl, bus, config.Default())

	if bus.HasErrors() {
		t.Fatalf("unexpected errors: %v", bus.Errors())
	}
	loop, ok := out.Functions[0].Body.(*model.IterLoop)
	if !ok {
		t.Fatalf("expected update_all to lower to an IterLoop, got %#v", out.Functions[0].Body)
	}
	update, ok := loop.Body.(*model.AssetCall)
	if !ok || update.Method != model.MethodUpdate {
		t.Fatalf("expected the loop body to be a plain update, got %#v", loop.Body)
	}
}

func TestRemoveDeclVarOptLowersToLetInOverOptionMatch(t *testing.T) {
	decl := &model.DeclVarOpt{
		Name:     "x",
		Init:     &model.Some{Value: &model.LitNat{Value: 1}},
		Fallback: &model.LitNat{Value: 0},
		Body:     &model.Var{Name: "x"},
	}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, decl)}}

	out := removeDeclVarOpt(mdl, diag.NewBus(), config.Default())

	letIn, ok := out.Functions[0].Body.(*model.LetIn)
	if !ok {
		t.Fatalf("expected DeclVarOpt to lower to LetIn, got %#v", out.Functions[0].Body)
	}
	match, ok := letIn.Init.(*model.OptionMatch)
	if !ok || match.NoneBody != decl.Fallback {
		t.Fatalf("expected the LetIn's Init to be an OptionMatch falling back to the original default, got %#v", letIn.Init)
	}
}

func TestProcessArithContainerLowersFoldToIterLoop(t *testing.T) {
	op := &model.ContainerOp{
		TermBase: model.NewBase(model.NoPos, model.Prim{Kind: model.PrimNat}),
		Op:       model.OpFold,
		Target:   &model.Var{Name: "balances"},
		Args:     []model.Term{&model.LitNat{Value: 0}},
	}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, op)}}

	out := processArithContainer(mdl, diag.NewBus(), config.Default())

	letIn, ok := out.Functions[0].Body.(*model.LetIn)
	if !ok {
		t.Fatalf("expected a fold to lower to a LetIn accumulator, got %#v", out.Functions[0].Body)
	}
	seq, ok := letIn.Body.(*model.Seq)
	if !ok || len(seq.Items) != 2 {
		t.Fatalf("expected the LetIn body to be a two-item Seq (loop, read), got %#v", letIn.Body)
	}
	if _, ok := seq.Items[0].(*model.IterLoop); !ok {
		t.Fatalf("expected the first Seq item to be the accumulating IterLoop, got %T", seq.Items[0])
	}
}

func TestLazyEvalConditionRewritesAndToIf(t *testing.T) {
	and := &model.BinOp{Op: model.OpAnd, Left: &model.LitBool{Value: true}, Right: &model.LitBool{Value: false}}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, and)}}

	out := lazyEvalCondition(mdl, diag.NewBus(), config.Default())

	ifStmt, ok := out.Functions[0].Body.(*model.If)
	if !ok || ifStmt.Then != and.Right {
		t.Fatalf("expected && to rewrite to an If guarding the right operand, got %#v", out.Functions[0].Body)
	}
}

func TestLazyEvalConditionRewritesOrToIf(t *testing.T) {
	or := &model.BinOp{Op: model.OpOr, Left: &model.LitBool{Value: false}, Right: &model.LitBool{Value: true}}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, or)}}

	out := lazyEvalCondition(mdl, diag.NewBus(), config.Default())

	ifStmt, ok := out.Functions[0].Body.(*model.If)
	if !ok || ifStmt.Else != or.Right {
		t.Fatalf("expected || to rewrite to an If guarding the right operand in the Else branch, got %#v", out.Functions[0].Body)
	}
}

func TestRemoveHighLevelModelCollapsesFailSome(t *testing.T) {
	fs := &model.FailSome{Value: &model.LitString{Value: "bad"}}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, fs)}}

	out := removeHighLevelModel(mdl, diag.NewBus(), config.Default())

	fail, ok := out.Functions[0].Body.(*model.Fail)
	if !ok || fail.Reason != fs.Value {
		t.Fatalf("expected FailSome to collapse to Fail with the same reason, got %#v", out.Functions[0].Body)
	}
}

func TestFixContainerRewritesBareAssetTargetToStorageRef(t *testing.T) {
	asset := newAsset("ledger", "owner")
	op := &model.ContainerOp{Op: model.OpGet, Target: &model.Var{Name: "ledger"}}
	mdl := &model.Model{Assets: []*model.AssetDecl{asset}, Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, op)}}

	out := fixContainer(mdl, diag.NewBus(), config.Default())

	got := out.Functions[0].Body.(*model.ContainerOp)
	fa, ok := got.Target.(*model.FieldAccess)
	if !ok || fa.Field != "ledger" {
		t.Fatalf("expected the bare asset Var target to rewrite to a storage FieldAccess, got %#v", got.Target)
	}
	if _, ok := fa.Record.(*model.StorageRef); !ok {
		t.Fatalf("expected the FieldAccess's Record to be a StorageRef, got %#v", fa.Record)
	}
}

func TestExtractItemCollectionFromAddAssetLetBindsInlineCollection(t *testing.T) {
	items := &model.ListLit{Items: []model.Term{&model.LitNat{Value: 1}}}
	op := &model.ContainerOp{Op: model.OpPut, Target: &model.Var{Name: "ledger"}, Args: []model.Term{&model.LitAddress{Value: "tz1a"}, items}}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, op)}}

	out := extractItemCollectionFromAddAsset(mdl, diag.NewBus(), config.Default())

	letIn, ok := out.Functions[0].Body.(*model.LetIn)
	if !ok || !traverse.StructuralEqual(letIn.Init, items) {
		t.Fatalf("expected the inline list literal to be let-bound, got %#v", out.Functions[0].Body)
	}
	put, ok := letIn.Body.(*model.ContainerOp)
	if !ok {
		t.Fatalf("expected the LetIn's body to be the original put, got %#v", letIn.Body)
	}
	if v, ok := put.Args[1].(*model.Var); !ok || v.Name != letIn.Name {
		t.Fatalf("expected the put's value arg to reference the let-bound name, got %#v", put.Args[1])
	}
}

func TestUpdateNatIntRatRetypesNatSubtraction(t *testing.T) {
	sub := &model.BinOp{
		Op:    model.OpSub,
		Left:  &model.LitNat{TermBase: model.NewBase(model.NoPos, model.Prim{Kind: model.PrimNat}), Value: 5},
		Right: &model.LitNat{TermBase: model.NewBase(model.NoPos, model.Prim{Kind: model.PrimNat}), Value: 2},
	}
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("f", model.KindEntry, sub)}}

	out := updateNatIntRat(mdl, diag.NewBus(), config.Default())

	got := out.Functions[0].Body.(*model.BinOp)
	if p, ok := got.Typ().(model.Prim); !ok || p.Kind != model.PrimInt {
		t.Fatalf("Nat-Nat subtraction should retype as Int, got %v", got.Typ())
	}
}
