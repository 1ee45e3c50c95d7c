package model

// ContextConst is the closed set of Tezos-like transaction/chain context
// readers: caller, source, self_address, balance, amount, now, level,
// chain_id, self_chain_id, operations, and the entry-point metadata hooks
// (opt_with_metadata wires metadata_uri/metadata_storage through here too).
type ContextConstKind int

const (
	CtxCaller ContextConstKind = iota
	CtxSource
	CtxSelfAddress
	CtxSelfChainID
	CtxBalance
	CtxAmount
	CtxNow
	CtxLevel
	CtxChainID
	CtxOperations
	CtxMetadataURI
)

type ContextConst struct {
	TermBase
	Kind ContextConstKind
}

// StorageRef reads the whole contract storage record; threading individual
// storage fields into function parameters (Cohort G's storage-field
// threading pass) rewrites field-level FieldAccess(StorageRef{}, f) into a
// plain Var once a function has been given that field as a parameter.
type StorageRef struct{ TermBase }

// Call is a call to a user-declared function, an entry point, or a getter;
// Cohort G's getter_to_entry rewrites pure getters called from an entry
// point's body into an inlined expression, and test_mode rewrites Calls to
// test-only intrinsics when the opt_test_mode option is set.
type Call struct {
	TermBase
	Callee string
	Args   []Term
}

// Builtin is a call to a closed, non-overloadable primitive: crypto hashes
// (blake2b, sha256, sha512, keccak, sha3), signature checks, ticket
// operations (ticket/read_ticket/split_ticket/join_tickets), voting power
// lookups, timelock open, and sapling verify_update.
type BuiltinKind int

const (
	BuiltinBlake2b BuiltinKind = iota
	BuiltinSha256
	BuiltinSha512
	BuiltinSha3
	BuiltinKeccak
	BuiltinCheckSignature
	BuiltinHashKey
	BuiltinPackInt
	BuiltinUnpack
	BuiltinTicket
	BuiltinReadTicket
	BuiltinSplitTicket
	BuiltinJoinTickets
	BuiltinVotingPower
	BuiltinTotalVotingPower
	BuiltinOpenTimelock
	BuiltinSaplingVerifyUpdate
	BuiltinPairingCheck
)

type Builtin struct {
	TermBase
	Kind BuiltinKind
	Args []Term
}

// Operation constructs a value of type `operation`: a contract call
// (Transfer), a self-delegation (SetDelegate), or a contract origination
// (CreateContract). These are accumulated into the list the entry point
// returns.
type OperationKind int

const (
	OpTransfer OperationKind = iota
	OpSetDelegate
	OpCreateContract
)

type MkOperation struct {
	TermBase
	Kind     OperationKind
	Contract Term
	Amount   Term
	Entry    string // target entry-point name, empty for the default
	Param    Term
}
