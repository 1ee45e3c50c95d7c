package model

// AssetMethodKind is the closed set of high-level asset API calls. Cohort C
// lowers add_update, update, add, remove, clear, contains, count and get;
// select, sort, nth, head, sum, remove_if and remove_all are lowered by
// Cohort E's remove_asset, and update_all by Cohort F's remove_update_all.
type AssetMethodKind int

const (
	MethodAdd AssetMethodKind = iota
	MethodAddUpdate
	MethodUpdate
	MethodUpdateAll
	MethodRemove
	MethodRemoveIf
	MethodRemoveAll
	MethodClear
	MethodContains
	MethodCount
	MethodGet
	MethodSelect
	MethodSort
	MethodNth
	MethodHead
	MethodTail
	MethodSum
)

// AssetCall is a call to one of the closed asset-method vocabulary above,
// e.g. `ledger.add_update(addr, {balance = 0})` or
// `ledger.remove_if(a -> a.balance = 0)`. Asset is the declared asset name;
// it is erased once Cohort C, remove_asset (Cohort E) and
// remove_update_all (Cohort F) have lowered the calls into
// ContainerOp/primitive terms.
type AssetCall struct {
	TermBase
	Asset  string
	Method AssetMethodKind
	Recv   Term // the asset collection value the method is invoked on
	Args   []Term
	Lambda *Lambda // predicate/comparator for Select/Sort/RemoveIf/Sum
}

// Lambda is an anonymous function value, used for asset-method predicates
// and comparators and, after Cohort G's getter_to_entry and friends, for
// any closures the lowered program still needs (Tezos LAMBDA values).
type Lambda struct {
	TermBase
	Params []LambdaParam
	Body   Term
}

type LambdaParam struct {
	Name string
	Type Type
}

// RecordLit constructs a record (or, pre-lowering, an asset) value from
// named fields.
type RecordField struct {
	Name  string
	Value Term
}

type RecordLit struct {
	TermBase
	TypeName string
	Fields   []RecordField
}

type FieldAccess struct {
	TermBase
	Record Term
	Field  string
}

// FieldUpdate rebuilds a record with one field replaced; Cohort C's
// merge_update pass folds chains of these into a single RecordLit wherever
// the chain's innermost base is a RecordLit.
type FieldUpdate struct {
	TermBase
	Record Term
	Field  string
	Value  Term
}

// EnumVal constructs a value of a declared enum; remove_enum rewrites every
// EnumVal/EnumMatch pair into its `nat`-tagged primitive encoding.
type EnumVal struct {
	TermBase
	EnumName string
	Ctor     string
	Args     []Term
}

type EnumMatch struct {
	TermBase
	EnumName  string
	Scrutinee Term
	Arms      []EnumMatchArm
}

type EnumMatchArm struct {
	Ctor   string
	Binder string
	Body   Term
}

// AssetStateRef reads or transitions the implicit state field of an asset
// whose declaration carries a `states` block; process_asset_state (Cohort
// D) lowers a read into a ContainerOp get of the state's synthesized enum
// and a transition into a ContainerOp put carrying an EnumVal, before
// remove_enum erases the enum entirely.
type AssetStateRef struct {
	TermBase
	Asset string
	Key   Term
}

type AssetStateSet struct {
	TermBase
	Asset string
	Key   Term
	State string
}

// DotAssetField is the surface `A[k].f` member-field read on an asset's
// collection; replace_dotassetfield_by_dot (Cohort C) rewrites every one of
// them into a plain FieldAccess over a get-by-key AssetCall.
type DotAssetField struct {
	TermBase
	Asset string
	Key   Term
	Field string
}

// AssignOpKind is the closed set of in-place field mutations
// replace_assignfield_by_update recognizes on the surface `A[k].f <op> v`
// form.
type AssignOpKind int

const (
	AssignSet AssignOpKind = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
)

// AssetFieldAssign is the surface `A[k].f := v` (or `+=`/`-=`/...) mutation;
// replace_assignfield_by_update rewrites it into a high-level `update`
// AssetCall (reading the current value through a get for the compound
// forms), which replace_update_by_set then lowers to get/merge/put.
type AssetFieldAssign struct {
	TermBase
	Asset string
	Key   Term
	Field string
	Op    AssignOpKind
	Value Term
}
