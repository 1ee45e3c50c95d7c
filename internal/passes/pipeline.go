// Package passes implements the ~60-pass pipeline that lowers a typed
// asset-oriented model into a primitive-collection-based model, organized
// into the eight cohorts A-H spec.md names. Each pass is a pure
// `*model.Model -> *model.Model` function, registered as a Pass value the
// way Kanso's OptimizationPass/OptimizationPipeline register optimization
// passes — except Archetype's sequence is fixed by the cohort ordering
// below, not user-configurable.
package passes

import (
	"fmt"
	"io"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
)

// Cohort names the eight pass groups spec.md organizes the pipeline into.
type Cohort int

const (
	CohortA Cohort = iota // Validation
	CohortB                // Normalisation
	CohortC                // High-level asset method lowering
	CohortD                // Enum/state lowering
	CohortE                // Asset lowering to primitives
	CohortF                // Other high-level->primitive lowerings
	CohortG                // Environment/whole-program passes
	CohortH                // Housekeeping
)

func (c Cohort) String() string {
	return [...]string{"A", "B", "C", "D", "E", "F", "G", "H"}[c]
}

// PassFunc rewrites a model, possibly recording diagnostics on bus; it must
// not mutate mdl in place, since the driver keeps the input around for
// golden-diff and idempotence tests.
type PassFunc func(mdl *model.Model, bus *diag.Bus, opts *config.Options) *model.Model

// Pass is one named, registered step of the pipeline.
type Pass struct {
	Name   string
	Cohort Cohort
	Run    PassFunc
	// Gate reports whether this pass should run at all for the given
	// Options; nil means always run. test_mode is the only pass in the
	// default pipeline gated this way.
	Gate func(*config.Options) bool
}

func (p Pass) enabled(opts *config.Options) bool {
	return p.Gate == nil || p.Gate(opts)
}

// Pipeline is the fixed, spec-mandated sequence of passes.
type Pipeline struct {
	passes []Pass
}

// NewPipeline builds the default pipeline: every pass registered below, in
// cohort order A through H, with the handful of duplicated passes
// (flat_sequence re-applied after most structural rewrites,
// update_nat_int_rat applied once after remove_rational and again after
// replace_date_duration_by_timestamp) appearing exactly where spec.md
// places them.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	// Cohort A: validation, no rewriting.
	p.Add(Pass{Name: "check_unknown_asset_refs", Cohort: CohortA, Run: checkUnknownAssetRefs})
	p.Add(Pass{Name: "check_duplicate_declarations", Cohort: CohortA, Run: checkDuplicateDeclarations})
	p.Add(Pass{Name: "check_asset_init", Cohort: CohortA, Run: checkAssetInit})
	p.Add(Pass{Name: "check_partition_constraints", Cohort: CohortA, Run: checkPartitionConstraints})
	p.Add(Pass{Name: "check_if_asset_in_function", Cohort: CohortA, Run: checkIfAssetInFunction})
	p.Add(Pass{Name: "check_entrypoint_presence", Cohort: CohortA, Run: checkEntrypointPresence})
	p.Add(Pass{Name: "check_unused_bindings", Cohort: CohortA, Run: checkUnusedBindings})

	// Cohort B: normalisation.
	p.Add(Pass{Name: "prune_formula", Cohort: CohortB, Run: pruneFormula})
	p.Add(Pass{Name: "flat_sequence", Cohort: CohortB, Run: flatSequence})
	p.Add(Pass{Name: "declvar_to_letin", Cohort: CohortB, Run: declvarToLetin})
	p.Add(Pass{Name: "replace_label_by_mark", Cohort: CohortB, Run: replaceLabelByMark})
	p.Add(Pass{Name: "rename_shadowed_variables", Cohort: CohortB, Run: renameShadowedVariables})
	p.Add(Pass{Name: "label_loops", Cohort: CohortB, Run: labelLoops})
	p.Add(Pass{Name: "extend_loop_iter", Cohort: CohortB, Run: extendLoopIter})
	p.Add(Pass{Name: "transfer_shadow_variable_to_storage", Cohort: CohortB, Run: transferShadowVariableToStorage})
	p.Add(Pass{Name: "concat_shadown_effect_to_exec", Cohort: CohortB, Run: concatShadowEffectToExec})
	p.Add(Pass{Name: "flat_sequence", Cohort: CohortB, Run: flatSequence})

	// Cohort C: high-level asset method lowering.
	p.Add(Pass{Name: "remove_duplicate_key", Cohort: CohortC, Run: removeDuplicateKey})
	p.Add(Pass{Name: "replace_dotassetfield_by_dot", Cohort: CohortC, Run: replaceDotassetfieldByDot})
	p.Add(Pass{Name: "replace_assignfield_by_update", Cohort: CohortC, Run: replaceAssignfieldByUpdate})
	p.Add(Pass{Name: "remove_add_update", Cohort: CohortC, Run: removeAddUpdate})
	p.Add(Pass{Name: "decompose_container_ops", Cohort: CohortC, Run: decomposeContainerOps})
	p.Add(Pass{Name: "replace_instr_verif", Cohort: CohortC, Run: replaceInstrVerif})
	p.Add(Pass{Name: "merge_update", Cohort: CohortC, Run: mergeUpdate})
	p.Add(Pass{Name: "remove_empty_update", Cohort: CohortC, Run: removeEmptyUpdate})
	p.Add(Pass{Name: "replace_update_by_set", Cohort: CohortC, Run: replaceUpdateBySet})
	p.Add(Pass{Name: "flat_sequence", Cohort: CohortC, Run: flatSequence})

	// Cohort D: enum/state lowering.
	p.Add(Pass{Name: "process_asset_state", Cohort: CohortD, Run: processAssetState})
	p.Add(Pass{Name: "remove_enum000", Cohort: CohortD, Run: removeEnum000})
	p.Add(Pass{Name: "remove_enum", Cohort: CohortD, Run: removeEnum})

	// Cohort E: asset lowering to primitives.
	p.Add(Pass{Name: "choose_asset_shapes", Cohort: CohortE, Run: chooseAssetShapes})
	p.Add(Pass{Name: "remove_asset", Cohort: CohortE, Run: removeAsset})

	// Cohort F: other high-level -> primitive lowerings.
	p.Add(Pass{Name: "remove_rational", Cohort: CohortF, Run: removeRational})
	p.Add(Pass{Name: "update_nat_int_rat", Cohort: CohortF, Run: updateNatIntRat})
	p.Add(Pass{Name: "replace_date_duration_by_timestamp", Cohort: CohortF, Run: replaceDateDurationByTimestamp})
	p.Add(Pass{Name: "update_nat_int_rat", Cohort: CohortF, Run: updateNatIntRat})
	p.Add(Pass{Name: "abs_tez", Cohort: CohortF, Run: absTez})
	p.Add(Pass{Name: "process_internal_string", Cohort: CohortF, Run: processInternalString})
	p.Add(Pass{Name: "flatten_multi_key", Cohort: CohortF, Run: flattenMultiKey})
	p.Add(Pass{Name: "add_contain_on_get", Cohort: CohortF, Run: addContainOnGet})
	p.Add(Pass{Name: "add_explicit_sort", Cohort: CohortF, Run: addExplicitSort})
	p.Add(Pass{Name: "split_key_values", Cohort: CohortF, Run: splitKeyValues})
	p.Add(Pass{Name: "change_type_of_nth", Cohort: CohortF, Run: changeTypeOfNth})
	p.Add(Pass{Name: "replace_for_to_iter", Cohort: CohortF, Run: replaceForToIter})
	p.Add(Pass{Name: "remove_iterable_big_map", Cohort: CohortF, Run: removeIterableBigMap})
	p.Add(Pass{Name: "remove_update_all", Cohort: CohortF, Run: removeUpdateAll})
	p.Add(Pass{Name: "remove_decl_var_opt", Cohort: CohortF, Run: removeDeclVarOpt})
	p.Add(Pass{Name: "process_arith_container", Cohort: CohortF, Run: processArithContainer})
	p.Add(Pass{Name: "lazy_eval_condition", Cohort: CohortF, Run: lazyEvalCondition})
	p.Add(Pass{Name: "remove_ternary", Cohort: CohortF, Run: removeTernary})
	p.Add(Pass{Name: "remove_high_level_model", Cohort: CohortF, Run: removeHighLevelModel})
	p.Add(Pass{Name: "instr_to_expr_exec", Cohort: CohortF, Run: instrToExprExec})
	p.Add(Pass{Name: "fix_container", Cohort: CohortF, Run: fixContainer})
	p.Add(Pass{Name: "extract_item_collection_from_add_asset", Cohort: CohortF, Run: extractItemCollectionFromAddAsset})

	// Cohort G: environment/whole-program passes.
	p.Add(Pass{Name: "process_single_field_storage", Cohort: CohortG, Run: processSingleFieldStorage})
	p.Add(Pass{Name: "thread_storage_fields", Cohort: CohortG, Run: threadStorageFields})
	p.Add(Pass{Name: "eval_variable_initial_value", Cohort: CohortG, Run: evalVariableInitialValue})
	p.Add(Pass{Name: "inline_constants", Cohort: CohortG, Run: inlineConstants})
	p.Add(Pass{Name: "eval_storage", Cohort: CohortG, Run: evalStorage})
	p.Add(Pass{Name: "normalize_storage", Cohort: CohortG, Run: normalizeStorage})
	p.Add(Pass{Name: "reverse_operations", Cohort: CohortG, Run: reverseOperations})
	p.Add(Pass{Name: "process_parameter", Cohort: CohortG, Run: processParameter})
	p.Add(Pass{Name: "process_metadata", Cohort: CohortG, Run: processMetadata})
	p.Add(Pass{Name: "getter_to_entry", Cohort: CohortG, Run: getterToEntry})
	p.Add(Pass{Name: "check_and_replace_init_caller", Cohort: CohortG, Run: checkAndReplaceInitCaller})
	p.Add(Pass{Name: "test_mode", Cohort: CohortG, Run: testMode, Gate: func(o *config.Options) bool { return o.TestMode }})
	p.Add(Pass{Name: "patch_fa2", Cohort: CohortG, Run: patchFa2})
	p.Add(Pass{Name: "fill_stovars", Cohort: CohortG, Run: fillStovars})
	p.Add(Pass{Name: "filter_api_storage", Cohort: CohortG, Run: filterApiStorage})
	p.Add(Pass{Name: "process_fail", Cohort: CohortG, Run: processFail})

	// Cohort H: housekeeping.
	p.Add(Pass{Name: "extract_lets_from_expressions", Cohort: CohortH, Run: extractLetsFromExpressions})
	p.Add(Pass{Name: "flat_sequence", Cohort: CohortH, Run: flatSequence})

	return p
}

func (p *Pipeline) Add(pass Pass) { p.passes = append(p.passes, pass) }

func (p *Pipeline) Passes() []Pass { return p.passes }

// Run applies every enabled pass in order, returning as soon as a Cohort's
// validation leaves errors on the bus.
func (p *Pipeline) Run(mdl *model.Model, opts *config.Options, progress io.Writer) (*model.Model, *diag.Bus, error) {
	bus := diag.NewBus()
	cur := mdl
	lastCohort := Cohort(-1)
	for _, pass := range p.passes {
		if !pass.enabled(opts) {
			continue
		}
		if progress != nil && pass.Cohort != lastCohort {
			fmt.Fprintf(progress, "-- cohort %s --\n", pass.Cohort)
			lastCohort = pass.Cohort
		}
		if progress != nil {
			fmt.Fprintf(progress, "running %s\n", pass.Name)
		}
		cur = pass.Run(cur, bus, opts)
		if pass.Cohort == CohortA {
			if err := bus.StopIfErrors(); err != nil {
				return cur, bus, err
			}
		}
	}
	if err := bus.StopIfErrors(); err != nil {
		return cur, bus, err
	}
	return cur, bus, nil
}
