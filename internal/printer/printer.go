// Package printer renders a *model.Model as deterministic, human-readable
// text: used by the CLI's --emit-ir mode and by golden-file pass regression
// tests, the way Kanso's internal/ir.Printer dumps its IR for debugging.
package printer

import (
	"fmt"
	"strings"

	"github.com/gridbugs/archetype-lang/internal/model"
)

type Printer struct {
	indent int
	out    strings.Builder
}

func New() *Printer { return &Printer{} }

func Print(m *model.Model) string {
	p := New()
	p.printModel(m)
	return p.out.String()
}

func (p *Printer) writeIndent() { p.out.WriteString(strings.Repeat("  ", p.indent)) }

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	fmt.Fprintf(&p.out, format, args...)
	p.out.WriteByte('\n')
}

func (p *Printer) printModel(m *model.Model) {
	p.writeLine("MODEL")
	if len(m.Enums) > 0 {
		p.writeLine("ENUMS:")
		p.indent++
		for _, e := range m.Enums {
			p.writeLine("enum %s", e.Name)
		}
		p.indent--
	}
	if len(m.Records) > 0 {
		p.writeLine("RECORDS:")
		p.indent++
		for _, r := range m.Records {
			p.printRecord(r)
		}
		p.indent--
	}
	if len(m.Assets) > 0 {
		p.writeLine("ASSETS:")
		p.indent++
		for _, a := range m.Assets {
			p.printAsset(a)
		}
		p.indent--
	}
	if m.Storage != nil {
		p.writeLine("STORAGE LAYOUT:")
		p.indent++
		for _, f := range m.Storage.Fields {
			p.writeLine("%s : %s", f.Name, f.Type.TypeString())
		}
		p.indent--
	}
	p.writeLine("FUNCTIONS:")
	p.indent++
	for _, fn := range m.Functions {
		p.printFunction(fn)
	}
	p.indent--
}

func (p *Printer) printRecord(r *model.RecordDecl) {
	fields := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		fields[i] = f.Name + ": " + f.Type.TypeString()
	}
	p.writeLine("record %s { %s }", r.Name, strings.Join(fields, ", "))
}

func (p *Printer) printAsset(a *model.AssetDecl) {
	shape := "unresolved"
	switch a.Shape {
	case model.AssetSingleField:
		shape = "single_field"
	case model.AssetMap:
		shape = "map"
	case model.AssetBigMap:
		shape = "big_map"
	case model.AssetSet:
		shape = "set"
	case model.AssetIterableBigMap:
		shape = "iterable_big_map"
	}
	p.writeLine("asset %s key=%s shape=%s", a.Name, a.KeyField, shape)
}

func (p *Printer) printFunction(fn *model.FunctionDecl) {
	kind := [...]string{"entry", "getter", "view", "function"}[fn.Kind]
	params := make([]string, len(fn.Params))
	for i, prm := range fn.Params {
		params[i] = prm.Name + ": " + prm.Type.TypeString()
	}
	p.writeLine("%s %s(%s)", kind, fn.Name, strings.Join(params, ", "))
	p.indent++
	if fn.Body != nil {
		p.printTerm(fn.Body)
	}
	p.indent--
}

func (p *Printer) printTerm(t model.Term) {
	if t == nil {
		p.writeLine("<nil>")
		return
	}
	switch n := t.(type) {
	case *model.Seq:
		for _, it := range n.Items {
			p.printTerm(it)
		}
	case *model.LetIn:
		p.writeLine("let %s = %s in", n.Name, p.inline(n.Init))
		p.printTerm(n.Body)
	case *model.If:
		p.writeLine("if %s", p.inline(n.Cond))
		p.indent++
		p.printTerm(n.Then)
		p.indent--
		if n.Else != nil {
			p.writeLine("else")
			p.indent++
			p.printTerm(n.Else)
			p.indent--
		}
	default:
		p.writeLine("%s", p.inline(t))
	}
}

// inline renders a term as a single-line expression, used for terms nested
// inside a control-flow header (if/let) rather than sequenced as a
// statement.
func (p *Printer) inline(t model.Term) string {
	switch n := t.(type) {
	case *model.LitUnit:
		return "()"
	case *model.LitBool:
		return fmt.Sprintf("%v", n.Value)
	case *model.LitInt:
		return fmt.Sprintf("%d", n.Value)
	case *model.LitNat:
		return fmt.Sprintf("%dn", n.Value)
	case *model.LitString:
		return fmt.Sprintf("%q", n.Value)
	case *model.LitAddress:
		return n.Value
	case *model.Var:
		return n.Name
	case *model.BinOp:
		return fmt.Sprintf("(%s %s %s)", p.inline(n.Left), binOpSym(n.Op), p.inline(n.Right))
	case *model.UnOp:
		return fmt.Sprintf("(%s %s)", unOpSym(n.Op), p.inline(n.Operand))
	case *model.FieldAccess:
		return p.inline(n.Record) + "." + n.Field
	case *model.Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = p.inline(a)
		}
		return n.Callee + "(" + strings.Join(args, ", ") + ")"
	case *model.ContainerOp:
		return fmt.Sprintf("%s(%s)", containerOpSym(n.Op), p.inline(n.Target))
	case *model.AssetCall:
		return fmt.Sprintf("%s.%s(...)", n.Asset, assetMethodSym(n.Method))
	default:
		return fmt.Sprintf("<%T>", t)
	}
}

func binOpSym(op model.BinOpKind) string {
	syms := map[model.BinOpKind]string{
		model.OpAdd: "+", model.OpSub: "-", model.OpMul: "*", model.OpDiv: "/",
		model.OpMod: "%", model.OpEq: "=", model.OpNeq: "<>", model.OpLt: "<",
		model.OpLe: "<=", model.OpGt: ">", model.OpGe: ">=", model.OpAnd: "and",
		model.OpOr: "or", model.OpConcat: "^",
	}
	return syms[op]
}

func unOpSym(op model.UnOpKind) string {
	switch op {
	case model.OpNeg:
		return "-"
	case model.OpNot:
		return "not"
	case model.OpAbs:
		return "abs"
	}
	return "?"
}

func containerOpSym(op model.ContainerOpKind) string {
	names := map[model.ContainerOpKind]string{
		model.OpGet: "get", model.OpGetOpt: "get_opt", model.OpMem: "mem",
		model.OpPut: "put", model.OpUpdateMap: "update", model.OpRemove: "remove",
		model.OpSize: "size", model.OpEmpty: "empty", model.OpIter: "iter",
		model.OpFold: "fold", model.OpConcatList: "concat", model.OpConsList: "cons",
		model.OpSetOpt: "set_option",
	}
	return names[op]
}

func assetMethodSym(m model.AssetMethodKind) string {
	names := map[model.AssetMethodKind]string{
		model.MethodAdd: "add", model.MethodAddUpdate: "add_update",
		model.MethodUpdate: "update", model.MethodUpdateAll: "update_all",
		model.MethodRemove: "remove", model.MethodRemoveIf: "remove_if",
		model.MethodRemoveAll: "remove_all", model.MethodClear: "clear",
		model.MethodContains: "contains", model.MethodCount: "count",
		model.MethodGet: "get", model.MethodSelect: "select",
		model.MethodSort: "sort", model.MethodNth: "nth",
		model.MethodHead: "head", model.MethodSum: "sum",
	}
	return names[m]
}
