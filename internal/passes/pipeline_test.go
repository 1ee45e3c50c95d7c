package passes

import (
	"strings"
	"testing"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
)

func TestPipelineStopsAtCohortAOnMissingEntrypoint(t *testing.T) {
	mdl := &model.Model{Functions: []*model.FunctionDecl{newFunc("readonly", model.KindGetter, nil)}}

	_, _, err := NewPipeline().Run(mdl, config.Default(), nil)

	stop, ok := err.(*diag.Stop)
	if !ok {
		t.Fatalf("expected *diag.Stop, got %v", err)
	}
	if stop.Code != 5 {
		t.Fatalf("Stop.Code = %d, want 5", stop.Code)
	}
}

func TestPipelineRunsCleanModelToCompletion(t *testing.T) {
	mdl := &model.Model{Functions: []*model.FunctionDecl{
		newFunc("transfer", model.KindEntry, &model.LitUnit{}),
	}}

	lowered, bus, err := NewPipeline().Run(mdl, config.Default(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bus.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bus.Errors())
	}
	if lowered == nil || len(lowered.Functions) != 1 {
		t.Fatalf("expected the lowered model to still carry one function, got %v", lowered)
	}
}

func TestPipelineReportsProgressWhenRequested(t *testing.T) {
	mdl := &model.Model{Functions: []*model.FunctionDecl{
		newFunc("transfer", model.KindEntry, &model.LitUnit{}),
	}}

	var progress strings.Builder
	_, _, err := NewPipeline().Run(mdl, config.Default(), &progress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(progress.String(), "cohort A") {
		t.Fatalf("expected progress output to mention cohort A, got %q", progress.String())
	}
}

func TestPipelineTestModeGateOnlyRunsWhenEnabled(t *testing.T) {
	names := func(p *Pipeline) []string {
		var out []string
		for _, pass := range p.Passes() {
			out = append(out, pass.Name)
		}
		return out
	}

	pl := NewPipeline()
	found := false
	for _, n := range names(pl) {
		if n == "test_mode" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected test_mode to be registered in the default pipeline")
	}
	for _, pass := range pl.Passes() {
		if pass.Name != "test_mode" {
			continue
		}
		if pass.enabled(config.Default()) {
			t.Fatal("expected test_mode to be skipped under the default options")
		}
		opts := config.Default()
		opts.TestMode = true
		if !pass.enabled(opts) {
			t.Fatal("expected test_mode to run once TestMode is set")
		}
	}
}
