// Package diag is the pipeline's error/warning bus: a closed diagnostic
// taxonomy, a per-run accumulator, and a Rust-style terminal reporter.
package diag

// Kind is the closed set of diagnostic kinds a pass may raise. Kinds are
// grouped by the pass cluster that can raise them, the way Kanso groups its
// error codes into E0001-E0099/E0100-E0199/etc ranges.
type Kind int

const (
	// Cohort A: structural/semantic validation (cluster code 5).
	KindAssetPartitionnedby Kind = iota
	KindCallerNotSetInInit
	KindCannotBuildAsset
	KindContainersInAssetContainers
	KindDefaultValueOnKeyAsset
	KindDuplicatedKeyAsset
	KindInvalidInitValue
	KindNoClearForPartitionAsset
	KindNoEmptyContainerForDefaultValue
	KindNoEntrypoint
	KindNoInitForPartitionAsset
	KindNoInitValueForConstParam
	KindNoInitValueForParameter
	KindNoPutRemoveForIterableBigMapAsset
	KindNoSortOnKeyWithMultiKey
	KindOnlyLiteralInAssetInit
	KindUnknownContract
	KindUnusedArgument
	KindUnusedVariable
	KindUnknownAsset
	KindUnknownField
	KindUnknownState
	KindDuplicateAsset
	KindDuplicateEnum
	KindDuplicateRecord
	KindDuplicateFunction
	KindInvalidStateTransition

	// Cohort E: asset-lowering failures (cluster code 8).
	KindAssetLoweringFailure
	KindMultiKeyOnSetShapedAsset
	// Cohort A: an asset-typed value escapes into a function's parameter or
	// return type, which no lowering can make sense of once remove_asset
	// erases the asset name from the surface syntax entirely (cluster 8,
	// grouped with the other lowering-cannot-proceed failures).
	KindAssetExposedInFunction

	// Cohort F/G: later-stage failures.
	KindUnsupportedIterableBigMapPutRemove
)

var names = map[Kind]string{
	KindAssetPartitionnedby:                "asset_partitionned_by",
	KindCallerNotSetInInit:                 "caller_not_set_in_init",
	KindCannotBuildAsset:                   "cannot_build_asset",
	KindContainersInAssetContainers:        "containers_in_asset_containers",
	KindDefaultValueOnKeyAsset:             "default_value_on_key_asset",
	KindDuplicatedKeyAsset:                 "duplicated_key_asset",
	KindInvalidInitValue:                   "invalid_init_value",
	KindNoClearForPartitionAsset:           "no_clear_for_partition_asset",
	KindNoEmptyContainerForDefaultValue:    "no_empty_container_for_default_value",
	KindNoEntrypoint:                       "no_entrypoint",
	KindNoInitForPartitionAsset:            "no_init_for_partition_asset",
	KindNoInitValueForConstParam:           "no_init_value_for_const_param",
	KindNoInitValueForParameter:            "no_init_value_for_parameter",
	KindNoPutRemoveForIterableBigMapAsset:  "no_put_remove_for_iterable_big_map_asset",
	KindNoSortOnKeyWithMultiKey:            "no_sort_on_key_with_multi_key",
	KindOnlyLiteralInAssetInit:             "only_literal_in_asset_init",
	KindUnknownContract:                    "unknown_contract",
	KindUnusedArgument:                     "unused_argument",
	KindUnusedVariable:                     "unused_variable",
	KindUnknownAsset:                       "unknown_asset",
	KindUnknownField:                       "unknown_field",
	KindUnknownState:                       "unknown_state",
	KindDuplicateAsset:                     "duplicate_asset",
	KindDuplicateEnum:                      "duplicate_enum",
	KindDuplicateRecord:                    "duplicate_record",
	KindDuplicateFunction:                  "duplicate_function",
	KindInvalidStateTransition:             "invalid_state_transition",
	KindAssetLoweringFailure:               "asset_lowering_failure",
	KindMultiKeyOnSetShapedAsset:           "multi_key_on_set_shaped_asset",
	KindAssetExposedInFunction:             "asset_exposed_in_function",
	KindUnsupportedIterableBigMapPutRemove: "unsupported_iterable_big_map_put_remove",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown_diagnostic"
}

// IsWarning reports whether k is one of the non-fatal kinds: unused
// variables/arguments are reported but never stop the pipeline.
func (k Kind) IsWarning() bool {
	return k == KindUnusedArgument || k == KindUnusedVariable
}

// ClusterCode groups kinds by the stop code the driver should exit with
// when a Cohort's validation accumulates errors of this kind, mirroring
// spec.md's pass-cluster stop codes.
func (k Kind) ClusterCode() int {
	switch k {
	case KindAssetLoweringFailure, KindMultiKeyOnSetShapedAsset, KindAssetExposedInFunction:
		return 8
	case KindUnsupportedIterableBigMapPutRemove:
		return 9
	default:
		return 5
	}
}
