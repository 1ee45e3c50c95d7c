package modelio

import (
	"testing"

	"github.com/gridbugs/archetype-lang/internal/model"
)

const fixture = `
records:
  - name: order
    fields:
      - {name: owner, type: address}
      - {name: amount, type: nat}
assets:
  - name: ledger
    key: owner
    fields:
      - {name: owner, type: address}
      - {name: balance, type: nat}
vars:
  - name: decimals
    kind: const
    type: nat
    init: {op: nat, value: "6"}
functions:
  - name: transfer
    kind: entry
    params:
      - {name: amount, type: nat}
    body:
      op: if
      type: unit
      cond: {op: bool, value: "true"}
      then: {op: unit}
`

func TestDecodeFixture(t *testing.T) {
	mdl, err := Decode([]byte(fixture))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(mdl.Records) != 1 || mdl.Records[0].Name != "order" {
		t.Fatalf("expected one record named order, got %+v", mdl.Records)
	}
	if len(mdl.Assets) != 1 || mdl.Assets[0].KeyField != "owner" {
		t.Fatalf("expected asset ledger keyed by owner, got %+v", mdl.Assets)
	}
	if len(mdl.Vars) != 1 || mdl.Vars[0].Kind != model.VarConst {
		t.Fatalf("expected one const var, got %+v", mdl.Vars)
	}
	if got, ok := mdl.Vars[0].Init.(*model.LitNat); !ok || got.Value != 6 {
		t.Fatalf("expected decimals init to decode to LitNat(6), got %#v", mdl.Vars[0].Init)
	}
	if len(mdl.Functions) != 1 || mdl.Functions[0].Kind != model.KindEntry {
		t.Fatalf("expected one entry function, got %+v", mdl.Functions)
	}
	ifTerm, ok := mdl.Functions[0].Body.(*model.If)
	if !ok {
		t.Fatalf("expected function body to decode to an If, got %T", mdl.Functions[0].Body)
	}
	if cond, ok := ifTerm.Cond.(*model.LitBool); !ok || !cond.Value {
		t.Fatalf("expected If.Cond to decode to LitBool(true), got %#v", ifTerm.Cond)
	}
}

func TestDecodeRejectsUnknownExpressionOp(t *testing.T) {
	bad := "functions:\n  - name: f\n    kind: entry\n    body: {op: not_a_real_op}\n"
	if _, err := Decode([]byte(bad)); err == nil {
		t.Fatal("expected Decode to reject an unknown expression op")
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	mdl, err := Decode([]byte(""))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(mdl.Records)+len(mdl.Assets)+len(mdl.Functions) != 0 {
		t.Fatalf("expected an empty model, got %+v", mdl)
	}
}
