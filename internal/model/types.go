package model

import "strings"

// Type is the closed sum of Archetype's type language: primitives,
// parameterised container types, named references, and the internal marker
// types later passes introduce (AssetType, ViewType, ...). Every concrete
// type below implements Type by embedding typeBase.
type Type interface {
	TypeString() string
	isType()
}

type typeBase struct{}

func (typeBase) isType() {}

// Primitive types.

type PrimKind int

const (
	PrimUnit PrimKind = iota
	PrimBool
	PrimInt
	PrimNat
	PrimRational
	PrimDate
	PrimDuration
	PrimString
	PrimAddress
	PrimRole
	PrimCurrency
	PrimKey
	PrimKeyHash
	PrimSignature
	PrimBytes
	PrimChainID
	PrimBLS12381Fr
	PrimBLS12381G1
	PrimBLS12381G2
	PrimNever
	PrimOperation
)

var primNames = map[PrimKind]string{
	PrimUnit: "unit", PrimBool: "bool", PrimInt: "int", PrimNat: "nat",
	PrimRational: "rational", PrimDate: "date", PrimDuration: "duration",
	PrimString: "string", PrimAddress: "address", PrimRole: "role",
	PrimCurrency: "tez", PrimKey: "key", PrimKeyHash: "key_hash",
	PrimSignature: "signature", PrimBytes: "bytes", PrimChainID: "chain_id",
	PrimBLS12381Fr: "bls12_381_fr", PrimBLS12381G1: "bls12_381_g1",
	PrimBLS12381G2: "bls12_381_g2", PrimNever: "never", PrimOperation: "operation",
}

type Prim struct {
	typeBase
	Kind PrimKind
}

func (p Prim) TypeString() string { return primNames[p.Kind] }

// Parameterised container types: option, list, set, map, big_map, tuple,
// contract, lambda, ticket, sapling_state, sapling_transaction, iterable_big_map.

type ParamKind int

const (
	ParamOption ParamKind = iota
	ParamList
	ParamSet
	ParamMap
	ParamBigMap
	ParamIterableBigMap
	ParamContract
	ParamLambda
	ParamTicket
	ParamSaplingState
	ParamSaplingTransaction
	ParamTuple
)

var paramNames = map[ParamKind]string{
	ParamOption: "option", ParamList: "list", ParamSet: "set",
	ParamMap: "map", ParamBigMap: "big_map", ParamIterableBigMap: "iterable_big_map",
	ParamContract: "contract", ParamLambda: "lambda", ParamTicket: "ticket",
	ParamSaplingState: "sapling_state", ParamSaplingTransaction: "sapling_transaction",
	ParamTuple: "tuple",
}

type Param struct {
	typeBase
	Kind  ParamKind
	Args  []Type // key/value/element/domain-codomain types, in declared order
	Memo  int    // sapling memo size, when Kind is SaplingState/SaplingTransaction
}

func (p Param) TypeString() string {
	parts := make([]string, len(p.Args))
	for i, a := range p.Args {
		parts[i] = a.TypeString()
	}
	if p.Kind == ParamTuple {
		return "(" + strings.Join(parts, " * ") + ")"
	}
	if len(parts) == 0 {
		return paramNames[p.Kind]
	}
	return paramNames[p.Kind] + "(" + strings.Join(parts, ", ") + ")"
}

// Named is a reference to a user-declared type: an enum, record, event,
// state machine, or asset name.
type Named struct {
	typeBase
	Name string
}

func (n Named) TypeString() string { return n.Name }

// AssetIntent classifies how a lowered asset-shaped value is used, set by
// Cohort E's remove_asset pass when it decides the storage shape of an
// asset collection.
type AssetIntent int

const (
	IntentCollection AssetIntent = iota
	IntentPartition
	IntentAggregate
	IntentContainer
	IntentKey
	IntentValue
	IntentView
)

// AssetType marks a type as "the primitive-collection encoding of asset
// <Name>", so later passes (and the printer) can still explain where a
// map/big_map/set came from after remove_asset has erased the asset name
// from the surface syntax.
type AssetType struct {
	typeBase
	Asset  string
	Intent AssetIntent
	Under  Type // the underlying primitive-collection type
}

func (a AssetType) TypeString() string { return a.Under.TypeString() }

func IsBool(t Type) bool {
	p, ok := t.(Prim)
	return ok && p.Kind == PrimBool
}

func IsNever(t Type) bool {
	p, ok := t.(Prim)
	return ok && p.Kind == PrimNever
}
