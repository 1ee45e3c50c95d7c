package printer

import (
	"strings"
	"testing"

	"github.com/gridbugs/archetype-lang/internal/model"
)

func TestPrintEmptyModelHasFunctionsSection(t *testing.T) {
	out := Print(&model.Model{})
	if !strings.Contains(out, "MODEL") || !strings.Contains(out, "FUNCTIONS:") {
		t.Fatalf("expected MODEL/FUNCTIONS sections, got %q", out)
	}
}

func TestPrintFunctionWithLetAndIf(t *testing.T) {
	fn := &model.FunctionDecl{
		Kind: model.KindEntry,
		Params: []model.FuncParam{{Name: "amount", Type: model.Prim{Kind: model.PrimNat}}},
		Body: &model.LetIn{
			Name: "ok",
			Init: &model.BinOp{Op: model.OpGt, Left: &model.Var{Name: "amount"}, Right: &model.LitNat{Value: 0}},
			Body: &model.If{
				Cond: &model.Var{Name: "ok"},
				Then: &model.LitUnit{},
			},
		},
	}
	fn.Name = "deposit"
	out := Print(&model.Model{Functions: []*model.FunctionDecl{fn}})

	if !strings.Contains(out, "entry deposit(amount: nat)") {
		t.Fatalf("expected function signature line, got %q", out)
	}
	if !strings.Contains(out, "let ok = (amount > 0n) in") {
		t.Fatalf("expected rendered let/binop, got %q", out)
	}
	if !strings.Contains(out, "if ok") {
		t.Fatalf("expected rendered if, got %q", out)
	}
}

func TestPrintAssetIncludesShape(t *testing.T) {
	asset := &model.AssetDecl{KeyField: "owner", Shape: model.AssetBigMap}
	asset.Name = "ledger"
	out := Print(&model.Model{Assets: []*model.AssetDecl{asset}})

	if !strings.Contains(out, "asset ledger key=owner shape=big_map") {
		t.Fatalf("expected asset line with shape, got %q", out)
	}
}

func TestPrintStorageLayout(t *testing.T) {
	mdl := &model.Model{Storage: &model.StorageDecl{Fields: []model.StorageField{
		{Name: "ledger", Type: model.Param{Kind: model.ParamMap, Args: []model.Type{model.Prim{Kind: model.PrimAddress}, model.Prim{Kind: model.PrimNat}}}},
	}}}
	out := Print(mdl)

	if !strings.Contains(out, "STORAGE LAYOUT:") || !strings.Contains(out, "ledger : map(address, nat)") {
		t.Fatalf("expected storage layout line, got %q", out)
	}
}

func TestPrintIsDeterministic(t *testing.T) {
	fn := &model.FunctionDecl{Kind: model.KindEntry, Body: &model.LitInt{Value: 1}}
	fn.Name = "f"
	mdl := &model.Model{Functions: []*model.FunctionDecl{fn}}

	a, b := Print(mdl), Print(mdl)
	if a != b {
		t.Fatalf("Print should be deterministic across calls:\n%q\nvs\n%q", a, b)
	}
}
