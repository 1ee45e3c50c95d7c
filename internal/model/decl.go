package model

// Decl is the closed set of top-level declarations a Model carries:
// variable constants/parameters, enums, records, events, assets, and the
// storage record built up from them.
type Decl interface {
	DeclName() string
	DeclPos() Position
	isDecl()
}

type declBase struct {
	Name string
	Pos  Position
}

func (d declBase) DeclName() string { return d.Name }
func (d declBase) DeclPos() Position { return d.Pos }
func (declBase) isDecl()             {}

// VarKind distinguishes a compile-time constant from a parameter supplied
// at origination time; NoInitValueForConstParam/NoInitValueForParameter
// fire in Cohort A when the corresponding initializer is missing.
type VarKind int

const (
	VarConst VarKind = iota
	VarParameter
)

type VarDecl struct {
	declBase
	Kind VarKind
	Type Type
	Init Term // nil only transiently, before Cohort A rejects it
}

type EnumCtor struct {
	Name   string
	Fields []RecordFieldDecl
}

type EnumDecl struct {
	declBase
	Ctors []EnumCtor
}

type RecordFieldDecl struct {
	Name    string
	Type    Type
	Default Term // nil if the field has no default
}

type RecordDecl struct {
	declBase
	Fields []RecordFieldDecl
}

type EventDecl struct {
	declBase
	Fields []RecordFieldDecl
}

// AssetShape records how Cohort E's remove_asset chose to lower this
// asset's storage: as a single field (AssetSingleField), a full map/
// big_map keyed by the asset's key field(s) (AssetMap), a set of keys with
// values kept elsewhere (AssetSet), or an iterable_big_map when insertion
// order must be observable.
type AssetShape int

const (
	ShapeUnresolved AssetShape = iota
	AssetSingleField
	AssetMap
	AssetBigMap
	AssetSet
	AssetIterableBigMap
)

// AssetDecl is the high-level declaration surviving through Cohorts A-D.
// Partition records the field name of any nested asset this asset
// partitions over (AssetPartitionnedby fires in Cohort A when a
// partitioned asset also declares its own init values, which is invalid).
type AssetDecl struct {
	declBase
	KeyField   string
	KeyFields  []string // more than one entry before flatten_multi_key tuples them into KeyField
	Fields     []RecordFieldDecl
	Partition  string // "" if this asset does not partition another
	States     []string
	InitStates string // "" if no explicit initial state; else must be in States
	Shape      AssetShape
	InitValues []RecordLit // literal initial rows
	// InitPairs is InitValues split into (key, value-without-key) pairs by
	// Cohort F's split_key_values, the shape fill_stovars (Cohort G) needs to
	// populate the asset's actual initial storage collection.
	InitPairs []AssetInitPair
}

// AssetInitPair is one literal initial row of an asset's collection, split
// into the key term the collection is indexed by and the RecordLit carrying
// every other field.
type AssetInitPair struct {
	Key   Term
	Value *RecordLit
}

// StorageField is one slot of the lowered contract storage record, threaded
// through function parameters by Cohort G's storage-field threading pass.
type StorageField struct {
	Name string
	Type Type
	Init Term
}

type StorageDecl struct {
	Fields []StorageField
}

// FunctionKind distinguishes the four call surfaces spec.md names: Entry
// points (callable transactions), Getters (pure storage readers exposed
// off-chain), Views (on-chain pure readers callable by other contracts),
// and ordinary internal Functions.
type FunctionKind int

const (
	KindEntry FunctionKind = iota
	KindGetter
	KindView
	KindFunction
)

type FuncParam struct {
	Name string
	Type Type
}

type FunctionDecl struct {
	declBase
	Kind    FunctionKind
	Params  []FuncParam
	Return  Type
	Reads   []string // storage field names this function reads, post-threading
	Writes  []string
	Body    Term
}

// SpecDecl carries a named pre/postcondition formula attached to a
// function; the formula language is itself a Term subset (BinOp/Call/
// quantifiers over RecordFields), so specifications are rewritten by the
// same traversal kit as executable code, just never executed.
type SpecKind int

const (
	SpecRequire SpecKind = iota
	SpecEnsure
	SpecInvariant
)

// A specification may carry a shadow variable: a value computed alongside
// the formula (ShadowInit) purely for the specification's own bookkeeping,
// and an Effect term describing how it evolves that transfer_shadow_
// variable_to_storage and concat_shadown_effect_to_exec thread into real
// storage and the function's exec body respectively. ShadowVar is "" for an
// ordinary formula with no shadow state.
type SpecDecl struct {
	declBase
	Function   string
	Kind       SpecKind
	Formula    Term
	ShadowVar  string
	ShadowType Type
	ShadowInit Term
	Effect     Term
}

// SecurityDecl is a named security predicate (e.g. "only the caller who
// created an order may cancel it"), checked the same way specifications
// are: never executed, only carried for external property-test harnesses.
type SecurityDecl struct {
	declBase
	Predicate Term
}

// Model is the whole-program unit every pass transforms: a pure
// `*Model -> *Model` function from Cohort A through Cohort H.
type Model struct {
	Vars       []*VarDecl
	Enums      []*EnumDecl
	Records    []*RecordDecl
	Events     []*EventDecl
	Assets     []*AssetDecl
	Storage    *StorageDecl
	Functions  []*FunctionDecl
	Specs      []*SpecDecl
	Securities []*SecurityDecl
	// APIItems names the helper operations (e.g. "get_opt_ledger",
	// "select_view_order") later cohorts' lowerings have had to synthesize
	// so far; filter_api_storage (Cohort G) collapses the Coll/View variants
	// of the same underlying operation once every lowering pass that could
	// add one has run.
	APIItems []string
}

func (m *Model) Asset(name string) *AssetDecl {
	for _, a := range m.Assets {
		if a.Name == name {
			return a
		}
	}
	return nil
}

func (m *Model) Function(name string) *FunctionDecl {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (m *Model) Record(name string) *RecordDecl {
	for _, r := range m.Records {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (m *Model) Enum(name string) *EnumDecl {
	for _, e := range m.Enums {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Clone produces a shallow structural copy of the Model's slices so a pass
// can build its output without mutating the input the driver still holds a
// reference to for diffing/golden comparisons.
func (m *Model) Clone() *Model {
	out := &Model{Storage: m.Storage}
	out.Vars = append(out.Vars, m.Vars...)
	out.Enums = append(out.Enums, m.Enums...)
	out.Records = append(out.Records, m.Records...)
	out.Events = append(out.Events, m.Events...)
	out.Assets = append(out.Assets, m.Assets...)
	out.Functions = append(out.Functions, m.Functions...)
	out.Specs = append(out.Specs, m.Specs...)
	out.Securities = append(out.Securities, m.Securities...)
	out.APIItems = append(out.APIItems, m.APIItems...)
	return out
}
