package passes

import (
	"fmt"

	"github.com/gridbugs/archetype-lang/internal/config"
	"github.com/gridbugs/archetype-lang/internal/diag"
	"github.com/gridbugs/archetype-lang/internal/model"
	"github.com/gridbugs/archetype-lang/internal/traverse"
)

// pruneFormula drops specification formulas that carry nothing for later
// cohorts to thread through: a formula that is the literal `true`, and any
// formula attached to a function name no longer present in the model (a
// specification orphaned by an earlier rewrite or a stale entry from the
// surface parse).
func pruneFormula(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	known := make(map[string]bool, len(mdl.Functions))
	for _, fn := range mdl.Functions {
		known[fn.Name] = true
	}
	kept := make([]*model.SpecDecl, 0, len(mdl.Specs))
	for _, s := range mdl.Specs {
		if lit, ok := s.Formula.(*model.LitBool); ok && lit.Value && s.ShadowVar == "" {
			continue
		}
		if !known[s.Function] {
			continue
		}
		kept = append(kept, s)
	}
	out := mdl.Clone()
	out.Specs = kept
	return out
}

// extendLoopIter widens an ascending ForLoop's upper bound by one. Archetype
// source treats `for i = a to b do ...` as inclusive of b, but every later
// consumer (replace_for_to_iter's IterLoop range, ultimately a Michelson
// ITER over a list built with an exclusive range) expects an exclusive
// bound, so this pass performs the adjustment once, early, rather than
// leaving every downstream pass to special-case inclusivity itself.
func extendLoopIter(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		fl, ok := t.(*model.ForLoop)
		if !ok || fl.Down {
			return t
		}
		c := *fl
		c.To = &model.BinOp{
			TermBase: model.NewBase(fl.To.Pos(), fl.To.Typ()),
			Op:       model.OpAdd,
			Left:     fl.To,
			Right:    &model.LitInt{TermBase: model.NewBase(fl.To.Pos(), fl.To.Typ()), Value: 1},
		}
		return &c
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// transferShadowVariableToStorage gives every specification's shadow
// variable (declared by ShadowVar/ShadowType/ShadowInit) a real home: a
// StorageField on the contract, so the variable the specification reasons
// about is an actual piece of state rather than a verification-only
// fiction.
func transferShadowVariableToStorage(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	out := mdl.Clone()
	newStorage := model.StorageDecl{}
	if mdl.Storage != nil {
		newStorage = *mdl.Storage
		newStorage.Fields = append([]model.StorageField{}, mdl.Storage.Fields...)
	}
	existing := make(map[string]bool, len(newStorage.Fields))
	for _, f := range newStorage.Fields {
		existing[f.Name] = true
	}
	out.Storage = &newStorage
	for _, s := range out.Specs {
		if s.ShadowVar == "" || existing[s.ShadowVar] {
			continue
		}
		out.Storage.Fields = append(out.Storage.Fields, model.StorageField{
			Name: s.ShadowVar,
			Type: s.ShadowType,
			Init: s.ShadowInit,
		})
		existing[s.ShadowVar] = true
	}
	return out
}

// concatShadowEffectToExec appends each specification's shadow Effect term
// to the end of the matching function's body, so the shadow storage field
// transfer_shadow_variable_to_storage just introduced is actually kept
// up to date by the code that runs, not only by the specification that
// describes it.
func concatShadowEffectToExec(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	effects := map[string][]model.Term{}
	for _, s := range mdl.Specs {
		if s.ShadowVar == "" || s.Effect == nil {
			continue
		}
		effects[s.Function] = append(effects[s.Function], s.Effect)
	}
	if len(effects) == 0 {
		return mdl
	}
	out := mdl.Clone()
	for i, fn := range out.Functions {
		add := effects[fn.Name]
		if len(add) == 0 || fn.Body == nil {
			continue
		}
		nf := *fn
		items := append([]model.Term{fn.Body}, add...)
		nf.Body = &model.Seq{TermBase: model.NewBase(fn.Pos, fn.Body.Typ()), Items: items}
		out.Functions[i] = &nf
	}
	return out
}

// flatSequence flattens nested Seq nodes into a single, flat Seq, dropping
// any Seq that wraps a single item. It is idempotent and re-applied after
// most structural rewrites in later cohorts since they tend to reintroduce
// nested Seq nodes when they splice a multi-statement lowering in place of
// a single expression.
func flatSequence(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		seq, ok := t.(*model.Seq)
		if !ok {
			return t
		}
		var flat []model.Term
		for _, it := range seq.Items {
			if inner, ok := it.(*model.Seq); ok {
				flat = append(flat, inner.Items...)
			} else {
				flat = append(flat, it)
			}
		}
		if len(flat) == 1 {
			return flat[0]
		}
		c := *seq
		c.Items = flat
		return &c
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// declvarToLetin rewrites the surface `Let` binding form (declare-then-
// continue, modeled as Let{Init, Rest}) into the canonical `LetIn` form
// used from here on; the distinction only exists for the parser's benefit,
// so Cohort B erases it immediately.
func declvarToLetin(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		let, ok := t.(*model.Let)
		if !ok {
			return t
		}
		return &model.LetIn{
			TermBase: let.TermBase,
			Name:     let.Name,
			Mut:      let.Mut,
			Init:     let.Init,
			Body:     let.Rest,
		}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// replaceLabelByMark rewrites every surviving Label into a Mark. After this
// pass, spec.md's resolution of the Mlabel open question applies: any
// Label node found downstream is a construction error (it means a pass
// introduced one after this point, which should never happen), not a
// legitimate no-op to be silently re-marked.
func replaceLabelByMark(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	rewrite := func(t model.Term) model.Term {
		lbl, ok := t.(*model.Label)
		if !ok {
			return t
		}
		return &model.Mark{TermBase: lbl.TermBase, Name: lbl.Name, Body: lbl.Body}
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}

// renameShadowedVariables renames inner bindings that shadow an
// already-bound name in an enclosing scope, so that later passes (which
// often hoist or reorder bindings) cannot accidentally capture the wrong
// occurrence once a shadowing `let` is moved relative to its shadowee.
func renameShadowedVariables(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	for i, fn := range mdl.Functions {
		if fn.Body == nil {
			continue
		}
		scope := map[string]int{}
		counter := map[string]int{}
		nf := *fn
		nf.Body = renameShadowTerm(fn.Body, scope, counter)
		mdl.Functions[i] = &nf
	}
	return mdl
}

func renameShadowTerm(t model.Term, scope map[string]int, counter map[string]int) model.Term {
	switch n := t.(type) {
	case *model.Var:
		if gen, ok := scope[n.Name]; ok && gen > 0 {
			c := *n
			c.Name = shadowName(n.Name, gen)
			return &c
		}
		return n
	case *model.LetIn:
		init := renameShadowTerm(n.Init, scope, counter)
		_, shadowed := scope[n.Name]
		newName := n.Name
		childScope := copyScope(scope)
		if shadowed {
			counter[n.Name]++
			newName = shadowName(n.Name, counter[n.Name])
			childScope[n.Name] = counter[n.Name]
		} else {
			childScope[n.Name] = 0
		}
		body := renameShadowTerm(n.Body, childScope, counter)
		c := *n
		c.Name, c.Init, c.Body = newName, init, body
		return &c
	default:
		return t
	}
}

func copyScope(s map[string]int) map[string]int {
	c := make(map[string]int, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

func shadowName(name string, gen int) string {
	return fmt.Sprintf("%s__shadow%d", name, gen)
}

// labelLoops assigns a synthesized label to every ForLoop/IterLoop/
// WhileLoop that does not already carry one, so Break/Continue rewriting in
// later cohorts always has an explicit target rather than relying on
// lexical nearest-enclosing-loop resolution.
func labelLoops(mdl *model.Model, _ *diag.Bus, _ *config.Options) *model.Model {
	counter := 0
	next := func() string {
		counter++
		return fmt.Sprintf("__loop%d", counter)
	}
	rewrite := func(t model.Term) model.Term {
		switch n := t.(type) {
		case *model.ForLoop:
			if n.Label == "" {
				c := *n
				c.Label = next()
				return &c
			}
		case *model.IterLoop:
			if n.Label == "" {
				c := *n
				c.Label = next()
				return &c
			}
		case *model.WhileLoop:
			if n.Label == "" {
				c := *n
				c.Label = next()
				return &c
			}
		}
		return t
	}
	return traverse.MapMtermModel(func(_ traverse.Context, t model.Term) model.Term {
		return traverse.MapTerm(rewrite, t)
	}, mdl)
}
