package traverse

import "github.com/gridbugs/archetype-lang/internal/model"

// mapChildren rewrites t's immediate children via rec and returns a new
// node of the same variant with the rewritten children installed. Leaf
// nodes (literals, Var, Break, Continue, context constants, StorageRef)
// return t unchanged since they have no children to rewrite.
func mapChildren(t model.Term, rec func(model.Term) model.Term) model.Term {
	switch n := t.(type) {
	case *model.LitUnit, *model.LitBool, *model.LitInt, *model.LitNat,
		*model.LitRational, *model.LitString, *model.LitAddress, *model.LitBytes,
		*model.LitDate, *model.LitDuration, *model.Var, *model.Break, *model.Continue,
		*model.None, *model.ContextConst, *model.StorageRef, *model.RatLit:
		return t

	case *model.Let:
		c := *n
		c.Init, c.Rest = rec(n.Init), rec(n.Rest)
		return &c
	case *model.LetIn:
		c := *n
		c.Init, c.Body = rec(n.Init), rec(n.Body)
		return &c
	case *model.Seq:
		c := *n
		c.Items = mapSlice(n.Items, rec)
		return &c
	case *model.If:
		c := *n
		c.Cond, c.Then = rec(n.Cond), rec(n.Then)
		if n.Else != nil {
			c.Else = rec(n.Else)
		}
		return &c
	case *model.MatchWith:
		c := *n
		c.Scrutinee = rec(n.Scrutinee)
		c.Arms = make([]model.MatchArm, len(n.Arms))
		for i, a := range n.Arms {
			c.Arms[i] = model.MatchArm{Pattern: a.Pattern, Body: rec(a.Body)}
		}
		return &c
	case *model.ForLoop:
		c := *n
		c.From, c.To, c.Body = rec(n.From), rec(n.To), rec(n.Body)
		return &c
	case *model.IterLoop:
		c := *n
		c.Coll, c.Body = rec(n.Coll), rec(n.Body)
		return &c
	case *model.WhileLoop:
		c := *n
		c.Cond, c.Body = rec(n.Cond), rec(n.Body)
		return &c
	case *model.Label:
		c := *n
		c.Body = rec(n.Body)
		return &c
	case *model.Mark:
		c := *n
		c.Body = rec(n.Body)
		return &c
	case *model.Fail:
		c := *n
		c.Reason = rec(n.Reason)
		return &c
	case *model.Assign:
		c := *n
		c.Value = rec(n.Value)
		return &c
	case *model.Tuple:
		c := *n
		c.Items = mapSlice(n.Items, rec)
		return &c
	case *model.Proj:
		c := *n
		c.Tuple = rec(n.Tuple)
		return &c
	case *model.DeclVarOpt:
		c := *n
		c.Init, c.Fallback, c.Body = rec(n.Init), rec(n.Fallback), rec(n.Body)
		return &c
	case *model.AssignOpt:
		c := *n
		c.Init, c.Fallback = rec(n.Init), rec(n.Fallback)
		return &c
	case *model.FailSome:
		c := *n
		c.Value = rec(n.Value)
		return &c

	case *model.BinOp:
		c := *n
		c.Left, c.Right = rec(n.Left), rec(n.Right)
		return &c
	case *model.UnOp:
		c := *n
		c.Operand = rec(n.Operand)
		return &c
	case *model.Cast:
		c := *n
		c.Value = rec(n.Value)
		return &c
	case *model.Ternary:
		c := *n
		c.Cond, c.Then, c.Else = rec(n.Cond), rec(n.Then), rec(n.Else)
		return &c

	case *model.ContainerOp:
		c := *n
		c.Target = rec(n.Target)
		c.Args = mapSlice(n.Args, rec)
		return &c
	case *model.ListLit:
		c := *n
		c.Items = mapSlice(n.Items, rec)
		return &c
	case *model.SetLit:
		c := *n
		c.Items = mapSlice(n.Items, rec)
		return &c
	case *model.MapLit:
		c := *n
		c.Entries = make([]model.MapEntry, len(n.Entries))
		for i, e := range n.Entries {
			c.Entries[i] = model.MapEntry{Key: rec(e.Key), Value: rec(e.Value)}
		}
		return &c
	case *model.Some:
		c := *n
		c.Value = rec(n.Value)
		return &c
	case *model.OptionMatch:
		c := *n
		c.Scrutinee = rec(n.Scrutinee)
		c.SomeBody = rec(n.SomeBody)
		c.NoneBody = rec(n.NoneBody)
		return &c

	case *model.AssetCall:
		c := *n
		c.Recv = rec(n.Recv)
		c.Args = mapSlice(n.Args, rec)
		if n.Lambda != nil {
			l := rec(n.Lambda).(*model.Lambda)
			c.Lambda = l
		}
		return &c
	case *model.Lambda:
		c := *n
		c.Body = rec(n.Body)
		return &c
	case *model.RecordLit:
		c := *n
		c.Fields = make([]model.RecordField, len(n.Fields))
		for i, f := range n.Fields {
			c.Fields[i] = model.RecordField{Name: f.Name, Value: rec(f.Value)}
		}
		return &c
	case *model.FieldAccess:
		c := *n
		c.Record = rec(n.Record)
		return &c
	case *model.FieldUpdate:
		c := *n
		c.Record, c.Value = rec(n.Record), rec(n.Value)
		return &c
	case *model.EnumVal:
		c := *n
		c.Args = mapSlice(n.Args, rec)
		return &c
	case *model.EnumMatch:
		c := *n
		c.Scrutinee = rec(n.Scrutinee)
		c.Arms = make([]model.EnumMatchArm, len(n.Arms))
		for i, a := range n.Arms {
			c.Arms[i] = model.EnumMatchArm{Ctor: a.Ctor, Binder: a.Binder, Body: rec(a.Body)}
		}
		return &c
	case *model.AssetStateRef:
		c := *n
		c.Key = rec(n.Key)
		return &c
	case *model.AssetStateSet:
		c := *n
		c.Key = rec(n.Key)
		return &c
	case *model.DotAssetField:
		c := *n
		c.Key = rec(n.Key)
		return &c
	case *model.AssetFieldAssign:
		c := *n
		c.Key, c.Value = rec(n.Key), rec(n.Value)
		return &c

	case *model.Call:
		c := *n
		c.Args = mapSlice(n.Args, rec)
		return &c
	case *model.Builtin:
		c := *n
		c.Args = mapSlice(n.Args, rec)
		return &c
	case *model.MkOperation:
		c := *n
		c.Contract, c.Amount = rec(n.Contract), rec(n.Amount)
		if n.Param != nil {
			c.Param = rec(n.Param)
		}
		return &c

	default:
		unreachable(t)
		return nil
	}
}

func forEachChild(t model.Term, visit func(model.Term)) {
	mapChildren(t, func(c model.Term) model.Term {
		visit(c)
		return c
	})
}

func mapSlice(items []model.Term, rec func(model.Term) model.Term) []model.Term {
	out := make([]model.Term, len(items))
	for i, it := range items {
		out[i] = rec(it)
	}
	return out
}
