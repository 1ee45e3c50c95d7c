package passes

import (
	"testing"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
)

func ledgerAsset() *model.AssetDecl {
	return newAsset("ledger", "owner",
		model.RecordFieldDecl{Name: "owner", Type: model.Prim{Kind: model.PrimAddress}},
		model.RecordFieldDecl{Name: "balance", Type: model.Prim{Kind: model.PrimNat}},
	)
}

func TestRemoveDuplicateKeyKeepsLastRow(t *testing.T) {
	asset := ledgerAsset()
	asset.InitValues = []model.RecordLit{
		{Fields: []model.RecordField{{Name: "owner", Value: &model.LitAddress{Value: "tz1"}}, {Name: "balance", Value: &model.LitNat{Value: 1}}}},
		{Fields: []model.RecordField{{Name: "owner", Value: &model.LitAddress{Value: "tz1"}}, {Name: "balance", Value: &model.LitNat{Value: 2}}}},
	}
	mdl := &model.Model{Assets: []*model.AssetDecl{asset}}

	out := removeDuplicateKey(mdl, diag.NewBus(), config.Default())

	if len(out.Assets[0].InitValues) != 1 {
		t.Fatalf("expected one deduplicated row, got %d", len(out.Assets[0].InitValues))
	}
	bal := out.Assets[0].InitValues[0].Fields[1].Value.(*model.LitNat)
	if bal.Value != 2 {
		t.Fatalf("expected the later row's balance to win, got %d", bal.Value)
	}
}

func TestReplaceDotassetfieldByDotBuildsFieldAccessOverGet(t *testing.T) {
	d := &model.DotAssetField{Asset: "ledger", Key: &model.LitAddress{Value: "tz1abc"}, Field: "balance"}
	fn := newFunc("f", model.KindEntry, d)
	mdl := &model.Model{Assets: []*model.AssetDecl{ledgerAsset()}, Functions: []*model.FunctionDecl{fn}}

	out := replaceDotassetfieldByDot(mdl, diag.NewBus(), config.Default())

	fa, ok := out.Functions[0].Body.(*model.FieldAccess)
	if !ok || fa.Field != "balance" {
		t.Fatalf("expected a FieldAccess on balance, got %#v", out.Functions[0].Body)
	}
	if _, ok := fa.Record.(*model.AssetCall); !ok {
		t.Fatalf("expected the FieldAccess's record to be a get AssetCall, got %#v", fa.Record)
	}
}

func TestReplaceAssignfieldByUpdateBuildsCompoundUpdate(t *testing.T) {
	a := &model.AssetFieldAssign{Asset: "ledger", Key: &model.LitAddress{Value: "tz1abc"}, Field: "balance", Op: model.AssignAdd, Value: &model.LitNat{Value: 5}}
	fn := newFunc("f", model.KindEntry, a)
	mdl := &model.Model{Assets: []*model.AssetDecl{ledgerAsset()}, Functions: []*model.FunctionDecl{fn}}

	out := replaceAssignfieldByUpdate(mdl, diag.NewBus(), config.Default())

	call, ok := out.Functions[0].Body.(*model.AssetCall)
	if !ok || call.Method != model.MethodUpdate {
		t.Fatalf("expected an update AssetCall, got %#v", out.Functions[0].Body)
	}
	lit := call.Args[1].(*model.RecordLit)
	bin, ok := lit.Fields[0].Value.(*model.BinOp)
	if !ok || bin.Op != model.OpAdd {
		t.Fatalf("expected the compound assignment to combine via OpAdd, got %#v", lit.Fields[0].Value)
	}
}

func TestReplaceInstrVerifBuildsIfNotCondFail(t *testing.T) {
	call := &model.Call{Callee: "verify", Args: []model.Term{&model.LitBool{Value: true}, &model.LitString{Value: "bad"}}}
	fn := newFunc("f", model.KindEntry, call)
	mdl := &model.Model{Functions: []*model.FunctionDecl{fn}}

	out := replaceInstrVerif(mdl, diag.NewBus(), config.Default())

	ifNode, ok := out.Functions[0].Body.(*model.If)
	if !ok {
		t.Fatalf("expected an If, got %#v", out.Functions[0].Body)
	}
	if _, ok := ifNode.Cond.(*model.UnOp); !ok {
		t.Fatalf("expected the If's condition to be negated, got %#v", ifNode.Cond)
	}
	if _, ok := ifNode.Then.(*model.Fail); !ok {
		t.Fatalf("expected the If's then-branch to fail, got %#v", ifNode.Then)
	}
}

func TestRemoveEmptyUpdateDropsZeroFieldUpdate(t *testing.T) {
	call := &model.AssetCall{
		Asset: "ledger", Method: model.MethodUpdate, Recv: &model.Var{Name: "ledger"},
		Args: []model.Term{&model.LitAddress{Value: "tz1abc"}, &model.RecordLit{}},
	}
	fn := newFunc("f", model.KindEntry, call)
	mdl := &model.Model{Functions: []*model.FunctionDecl{fn}}

	out := removeEmptyUpdate(mdl, diag.NewBus(), config.Default())

	if _, ok := out.Functions[0].Body.(*model.LitUnit); !ok {
		t.Fatalf("expected the empty update to collapse to unit, got %#v", out.Functions[0].Body)
	}
}

func TestRemoveAddUpdateBuildsOptionMatchOverGetOpt(t *testing.T) {
	lit := &model.RecordLit{Fields: []model.RecordField{
		{Name: "owner", Value: &model.LitAddress{Value: "tz1abc"}},
		{Name: "balance", Value: &model.LitNat{Value: 5}},
	}}
	call := &model.AssetCall{Asset: "ledger", Method: model.MethodAddUpdate, Recv: &model.Var{Name: "ledger"}, Args: []model.Term{lit}}
	fn := newFunc("f", model.KindEntry, call)
	mdl := &model.Model{Assets: []*model.AssetDecl{ledgerAsset()}, Functions: []*model.FunctionDecl{fn}}

	out := removeAddUpdate(mdl, diag.NewBus(), config.Default())

	put, ok := out.Functions[0].Body.(*model.ContainerOp)
	if !ok || put.Op != model.OpPut {
		t.Fatalf("expected add_update to lower to a ContainerOp put, got %#v", out.Functions[0].Body)
	}
	match, ok := put.Args[1].(*model.OptionMatch)
	if !ok || match.SomeVar != "__existing" {
		t.Fatalf("expected the put's value argument to be an OptionMatch, got %#v", put.Args[1])
	}
	getOpt, ok := match.Scrutinee.(*model.ContainerOp)
	if !ok || getOpt.Op != model.OpGetOpt {
		t.Fatalf("expected the OptionMatch scrutinee to be a get_opt, got %#v", match.Scrutinee)
	}
}

func TestRemoveAddUpdateRejectsNonRecordLitArgument(t *testing.T) {
	call := &model.AssetCall{Asset: "ledger", Method: model.MethodAddUpdate, Recv: &model.Var{Name: "ledger"}, Args: []model.Term{&model.Var{Name: "x"}}}
	fn := newFunc("f", model.KindEntry, call)
	mdl := &model.Model{Assets: []*model.AssetDecl{ledgerAsset()}, Functions: []*model.FunctionDecl{fn}}

	bus := diag.NewBus()
	removeAddUpdate(mdl, bus, config.Default())

	if !bus.HasErrors() || bus.Errors()[0].Kind != diag.KindCannotBuildAsset {
		t.Fatalf("expected KindCannotBuildAsset, got %v", bus.Errors())
	}
}

func TestDecomposeContainerOpsLowersEachClosedMethod(t *testing.T) {
	cases := []struct {
		method model.AssetMethodKind
		args   []model.Term
		want   model.ContainerOpKind
	}{
		{model.MethodRemove, []model.Term{&model.LitAddress{Value: "tz1"}}, model.OpRemove},
		{model.MethodClear, nil, model.OpEmpty},
		{model.MethodContains, []model.Term{&model.LitAddress{Value: "tz1"}}, model.OpMem},
		{model.MethodCount, nil, model.OpSize},
		{model.MethodGet, []model.Term{&model.LitAddress{Value: "tz1"}}, model.OpGet},
	}
	for _, c := range cases {
		call := &model.AssetCall{Asset: "ledger", Method: c.method, Recv: &model.Var{Name: "ledger"}, Args: c.args}
		fn := newFunc("f", model.KindEntry, call)
		mdl := &model.Model{Assets: []*model.AssetDecl{ledgerAsset()}, Functions: []*model.FunctionDecl{fn}}

		out := decomposeContainerOps(mdl, diag.NewBus(), config.Default())

		op, ok := out.Functions[0].Body.(*model.ContainerOp)
		if !ok || op.Op != c.want {
			t.Fatalf("method %v: expected ContainerOp %v, got %#v", c.method, c.want, out.Functions[0].Body)
		}
	}
}

func TestDecomposeContainerOpsLowersAddToPutWithExtractedKey(t *testing.T) {
	lit := &model.RecordLit{Fields: []model.RecordField{
		{Name: "owner", Value: &model.LitAddress{Value: "tz1abc"}},
		{Name: "balance", Value: &model.LitNat{Value: 5}},
	}}
	call := &model.AssetCall{Asset: "ledger", Method: model.MethodAdd, Recv: &model.Var{Name: "ledger"}, Args: []model.Term{lit}}
	fn := newFunc("f", model.KindEntry, call)
	mdl := &model.Model{Assets: []*model.AssetDecl{ledgerAsset()}, Functions: []*model.FunctionDecl{fn}}

	out := decomposeContainerOps(mdl, diag.NewBus(), config.Default())

	guard, ok := out.Functions[0].Body.(*model.If)
	if !ok {
		t.Fatalf("expected add to lower to an If guarding the put, got %#v", out.Functions[0].Body)
	}
	if _, ok := guard.Then.(*model.Fail); !ok {
		t.Fatalf("expected an existing key to fail, got %#v", guard.Then)
	}
	put, ok := guard.Else.(*model.ContainerOp)
	if !ok || put.Op != model.OpPut {
		t.Fatalf("expected add to lower to a ContainerOp put, got %#v", guard.Else)
	}
	addr, ok := put.Args[0].(*model.LitAddress)
	if !ok || addr.Value != "tz1abc" {
		t.Fatalf("expected the owner field to be extracted as the key, got %#v", put.Args[0])
	}
}

func TestDecomposeContainerOpsLeavesSelectUntouched(t *testing.T) {
	call := &model.AssetCall{Asset: "ledger", Method: model.MethodSelect, Recv: &model.Var{Name: "ledger"}}
	fn := newFunc("f", model.KindEntry, call)
	mdl := &model.Model{Assets: []*model.AssetDecl{ledgerAsset()}, Functions: []*model.FunctionDecl{fn}}

	out := decomposeContainerOps(mdl, diag.NewBus(), config.Default())

	if _, ok := out.Functions[0].Body.(*model.AssetCall); !ok {
		t.Fatalf("expected select to remain an AssetCall until Cohort E, got %#v", out.Functions[0].Body)
	}
}

func TestMergeUpdateCollapsesChainOverRecordLit(t *testing.T) {
	base := &model.RecordLit{Fields: []model.RecordField{
		{Name: "owner", Value: &model.LitAddress{Value: "tz1abc"}},
		{Name: "balance", Value: &model.LitNat{Value: 0}},
	}}
	upd := &model.FieldUpdate{Record: base, Field: "balance", Value: &model.LitNat{Value: 10}}
	fn := newFunc("f", model.KindEntry, upd)
	mdl := &model.Model{Functions: []*model.FunctionDecl{fn}}

	out := mergeUpdate(mdl, diag.NewBus(), config.Default())

	lit, ok := out.Functions[0].Body.(*model.RecordLit)
	if !ok {
		t.Fatalf("expected the FieldUpdate chain to collapse to a RecordLit, got %#v", out.Functions[0].Body)
	}
	var balance model.Term
	for _, f := range lit.Fields {
		if f.Name == "balance" {
			balance = f.Value
		}
	}
	if nat, ok := balance.(*model.LitNat); !ok || nat.Value != 10 {
		t.Fatalf("expected balance to reflect the update, got %#v", balance)
	}
}

func TestMergeUpdateLeavesNonFieldUpdateAlone(t *testing.T) {
	lit := &model.LitNat{Value: 1}
	fn := newFunc("f", model.KindEntry, lit)
	mdl := &model.Model{Functions: []*model.FunctionDecl{fn}}

	out := mergeUpdate(mdl, diag.NewBus(), config.Default())

	if out.Functions[0].Body.(*model.LitNat).Value != 1 {
		t.Fatalf("expected mergeUpdate to leave a non-FieldUpdate term alone, got %#v", out.Functions[0].Body)
	}
}

func TestReplaceUpdateBySetBuildsGetMergePutSequence(t *testing.T) {
	lit := &model.RecordLit{Fields: []model.RecordField{{Name: "balance", Value: &model.LitNat{Value: 10}}}}
	call := &model.AssetCall{
		Asset: "ledger", Method: model.MethodUpdate, Recv: &model.Var{Name: "ledger"},
		Args: []model.Term{&model.LitAddress{Value: "tz1abc"}, lit},
	}
	fn := newFunc("f", model.KindEntry, call)
	mdl := &model.Model{Assets: []*model.AssetDecl{ledgerAsset()}, Functions: []*model.FunctionDecl{fn}}

	out := replaceUpdateBySet(mdl, diag.NewBus(), config.Default())

	letIn, ok := out.Functions[0].Body.(*model.LetIn)
	if !ok || letIn.Name != "__existing" {
		t.Fatalf("expected update to lower to a LetIn binding __existing, got %#v", out.Functions[0].Body)
	}
	if _, ok := letIn.Init.(*model.ContainerOp); !ok {
		t.Fatalf("expected the LetIn's init to be a ContainerOp get, got %#v", letIn.Init)
	}
	put, ok := letIn.Body.(*model.ContainerOp)
	if !ok || put.Op != model.OpPut {
		t.Fatalf("expected the LetIn's body to be a ContainerOp put, got %#v", letIn.Body)
	}
}
