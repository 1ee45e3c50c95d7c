package diag

import (
	"fmt"

	"github.com/gridbugs/archetype-lang/internal/model"
)

// Diagnostic is a single emitted error or warning: where it happened, what
// kind it is, and the formatted arguments that fill out its message (asset
// name, field name, and so on).
type Diagnostic struct {
	Pos     model.Position
	Kind    Kind
	Args    []string
	Warning bool
}

func (d Diagnostic) Message() string {
	if len(d.Args) == 0 {
		return d.Kind.String()
	}
	msg := d.Kind.String()
	for _, a := range d.Args {
		msg += " " + a
	}
	return msg
}

// Bus accumulates diagnostics for a single pipeline run. It is not safe for
// concurrent use; the pipeline is single-threaded by design, so it needs
// none.
type Bus struct {
	diags []Diagnostic
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) EmitError(pos model.Position, kind Kind, args ...string) {
	b.diags = append(b.diags, Diagnostic{Pos: pos, Kind: kind, Args: args, Warning: false})
}

func (b *Bus) EmitWarning(pos model.Position, kind Kind, args ...string) {
	b.diags = append(b.diags, Diagnostic{Pos: pos, Kind: kind, Args: args, Warning: true})
}

func (b *Bus) HasErrors() bool {
	for _, d := range b.diags {
		if !d.Warning {
			return true
		}
	}
	return false
}

func (b *Bus) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.diags {
		if !d.Warning {
			out = append(out, d)
		}
	}
	return out
}

func (b *Bus) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.diags {
		if d.Warning {
			out = append(out, d)
		}
	}
	return out
}

func (b *Bus) All() []Diagnostic { return b.diags }

// Stop is the fatal-unwind error a pass cluster returns once its
// validation pass has accumulated one or more errors; it is never raised
// for warnings alone.
type Stop struct {
	Code   int
	Errors []Diagnostic
}

func (s *Stop) Error() string {
	return fmt.Sprintf("archetype: stopped with code %d (%d error(s))", s.Code, len(s.Errors))
}

// StopIfErrors returns a *Stop wrapping every accumulated error, tagged
// with the highest ClusterCode among them (spec.md's "distinctive code per
// pass cluster" — a run that fails an asset-lowering check and a plain
// validation check in the same cohort reports the more specific code), or
// nil if the bus holds no errors.
func (b *Bus) StopIfErrors() error {
	errs := b.Errors()
	if len(errs) == 0 {
		return nil
	}
	code := 0
	for _, d := range errs {
		if c := d.Kind.ClusterCode(); c > code {
			code = c
		}
	}
	return &Stop{Code: code, Errors: errs}
}
