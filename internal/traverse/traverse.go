// Package traverse implements the four term-traversal combinators every
// pass is built from: MapTerm, FoldTerm, FoldMapTerm and MapMtermModel.
// Each is a single exhaustive type switch over model.Term, the Go analogue
// of matching over a closed sum type; an unmatched variant is a programmer
// error, not a recoverable condition, so the fallback panics rather than
// silently dropping a subtree.
package traverse

import (
	"fmt"

	"github.com/gridbugs/archetype-lang/internal/model"
)

// Context threads the ambient information a rewrite may need without
// forcing every pass to carry it by hand: the enclosing function, the
// current loop label (for Break/Continue-aware rewrites), and a nesting
// depth counter some passes use to limit recursion (e.g. multi-key
// flattening only descends into key subterms, never into bodies).
type Context struct {
	Function  string
	Label     string
	Depth     int
}

func (c Context) EnterLoop(label string) Context {
	c.Label = label
	c.Depth++
	return c
}

// TermFunc rewrites a single term bottom-up; MapTerm calls it once per node
// after recursively mapping children, mirroring a standard catamorphism.
type TermFunc func(model.Term) model.Term

// MapTerm rewrites every subterm of mt bottom-up via f, children first.
func MapTerm(f TermFunc, mt model.Term) model.Term {
	if mt == nil {
		return nil
	}
	return f(mapChildren(mt, func(t model.Term) model.Term { return MapTerm(f, t) }))
}

// FoldTerm accumulates a value of type A by visiting every subterm of mt,
// parent before children (pre-order), matching the order diagnostics must
// be emitted in for deterministic output.
func FoldTerm[A any](f func(A, model.Term) A, acc A, mt model.Term) A {
	if mt == nil {
		return acc
	}
	acc = f(acc, mt)
	forEachChild(mt, func(t model.Term) {
		acc = FoldTerm(f, acc, t)
	})
	return acc
}

// FoldMapTerm combines FoldTerm and MapTerm: g is given the accumulator and
// a term and returns both the updated accumulator and the term's
// replacement; children are processed left to right before their parent is
// rewritten by f. Passes that both rewrite and collect information in one
// walk (e.g. shadow-variable renaming, which must know the accumulated
// rename set while it rewrites) use this instead of two separate passes.
func FoldMapTerm[A any](g func(A, model.Term) (A, model.Term), f func(A, model.Term) A, acc A, mt model.Term) (A, model.Term) {
	if mt == nil {
		return acc, nil
	}
	mapped := mapChildren(mt, func(t model.Term) model.Term {
		var newT model.Term
		acc, newT = FoldMapTerm(g, f, acc, t)
		return newT
	})
	newAcc, newTerm := g(acc, mapped)
	return f(newAcc, newTerm), newTerm
}

// MapMtermModel applies f to every Term reachable from mdl's function
// bodies, specification formulas and security predicates, threading a fresh
// Context per function so label/depth tracking never leaks across function
// boundaries.
func MapMtermModel(f func(Context, model.Term) model.Term, mdl *model.Model) *model.Model {
	out := mdl.Clone()
	for i, fn := range out.Functions {
		if fn.Body == nil {
			continue
		}
		ctx := Context{Function: fn.Name}
		nf := *fn
		nf.Body = MapTerm(func(t model.Term) model.Term { return f(ctx, t) }, fn.Body)
		out.Functions[i] = &nf
	}
	for i, s := range out.Specs {
		ctx := Context{Function: s.Function}
		ns := *s
		ns.Formula = MapTerm(func(t model.Term) model.Term { return f(ctx, t) }, s.Formula)
		out.Specs[i] = &ns
	}
	for i, s := range out.Securities {
		ctx := Context{}
		ns := *s
		ns.Predicate = MapTerm(func(t model.Term) model.Term { return f(ctx, t) }, s.Predicate)
		out.Securities[i] = &ns
	}
	return out
}

func unreachable(t model.Term) {
	panic(fmt.Sprintf("traverse: unreachable term variant %T", t))
}
