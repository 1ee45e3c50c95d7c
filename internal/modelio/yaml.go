// Package modelio decodes a model.Model from the YAML wire format the
// external front-end (lexer/parser/type-checker, out of scope for this
// module) is expected to emit once its own type-checking pass has produced
// a fully-typed model; there is no encoder. The pipeline itself never
// imports this package; only the CLI (internal/cli) does, keeping the core
// free of file I/O per spec.md's scope.
package modelio

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gridbugs/archetype-lang/internal/model"
)

// Doc is the top-level YAML shape a model file carries.
type Doc struct {
	Records []RecordDoc   `yaml:"records"`
	Enums   []EnumDoc     `yaml:"enums"`
	Assets  []AssetDoc    `yaml:"assets"`
	Vars    []VarDoc      `yaml:"vars"`
	Funcs   []FunctionDoc `yaml:"functions"`
}

type FieldDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type RecordDoc struct {
	Name   string     `yaml:"name"`
	Fields []FieldDoc `yaml:"fields"`
}

type EnumDoc struct {
	Name  string   `yaml:"name"`
	Ctors []string `yaml:"ctors"`
}

type AssetDoc struct {
	Name      string     `yaml:"name"`
	Key       string     `yaml:"key"`
	Fields    []FieldDoc `yaml:"fields"`
	Partition string     `yaml:"partition"`
	States    []string   `yaml:"states"`
	InitState string     `yaml:"init_state"`
}

type VarDoc struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"` // "const" | "parameter"
	Type  string `yaml:"type"`
	Init  *ExprDoc `yaml:"init"`
}

type ParamDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type FunctionDoc struct {
	Name   string     `yaml:"name"`
	Kind   string     `yaml:"kind"` // "entry" | "getter" | "view" | "function"
	Params []ParamDoc `yaml:"params"`
	Return string     `yaml:"return"`
	Reads  []string   `yaml:"reads"`
	Writes []string   `yaml:"writes"`
	Body   *ExprDoc   `yaml:"body"`
}

// ExprDoc is a single untyped-surface expression node. Op names the
// constructor; the remaining fields are interpreted according to Op.
type ExprDoc struct {
	Op       string     `yaml:"op"`
	Value    string     `yaml:"value"`
	Name     string     `yaml:"name"`
	Type     string     `yaml:"type"`
	Left     *ExprDoc   `yaml:"left"`
	Right    *ExprDoc   `yaml:"right"`
	Cond     *ExprDoc   `yaml:"cond"`
	Then     *ExprDoc   `yaml:"then"`
	Else     *ExprDoc   `yaml:"else"`
	Init     *ExprDoc   `yaml:"init"`
	Body     *ExprDoc   `yaml:"body"`
	Target   *ExprDoc   `yaml:"target"`
	Args     []*ExprDoc `yaml:"args"`
	Items    []*ExprDoc `yaml:"items"`
	Asset    string     `yaml:"asset"`
	Method   string     `yaml:"method"`
	Field    string     `yaml:"field"`
	Callee   string     `yaml:"callee"`
}

// Decode parses raw YAML bytes into a typed *model.Model.
func Decode(raw []byte) (*model.Model, error) {
	var doc Doc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("modelio: %w", err)
	}
	return fromDoc(&doc)
}

func fromDoc(doc *Doc) (*model.Model, error) {
	m := &model.Model{}
	for _, r := range doc.Records {
		rd := &model.RecordDecl{Fields: fieldsFromDoc(r.Fields)}
		rd.Name = r.Name
		m.Records = append(m.Records, rd)
	}
	for _, e := range doc.Enums {
		ctors := make([]model.EnumCtor, len(e.Ctors))
		for i, c := range e.Ctors {
			ctors[i] = model.EnumCtor{Name: c}
		}
		ed := &model.EnumDecl{Ctors: ctors}
		ed.Name = e.Name
		m.Enums = append(m.Enums, ed)
	}
	for _, a := range doc.Assets {
		ad := &model.AssetDecl{
			KeyField:   a.Key,
			Fields:     fieldsFromDoc(a.Fields),
			Partition:  a.Partition,
			States:     a.States,
			InitStates: a.InitState,
		}
		ad.Name = a.Name
		m.Assets = append(m.Assets, ad)
	}
	for _, v := range doc.Vars {
		kind := model.VarParameter
		if v.Kind == "const" {
			kind = model.VarConst
		}
		var init model.Term
		if v.Init != nil {
			var err error
			init, err = exprFromDoc(v.Init)
			if err != nil {
				return nil, err
			}
		}
		vd := &model.VarDecl{Kind: kind, Type: typeFromName(v.Type), Init: init}
		vd.Name = v.Name
		m.Vars = append(m.Vars, vd)
	}
	for _, f := range doc.Funcs {
		fn, err := functionFromDoc(f)
		if err != nil {
			return nil, err
		}
		m.Functions = append(m.Functions, fn)
	}
	return m, nil
}

func fieldsFromDoc(fields []FieldDoc) []model.RecordFieldDecl {
	out := make([]model.RecordFieldDecl, len(fields))
	for i, f := range fields {
		out[i] = model.RecordFieldDecl{Name: f.Name, Type: typeFromName(f.Type)}
	}
	return out
}

func typeFromName(name string) model.Type {
	switch name {
	case "bool":
		return model.Prim{Kind: model.PrimBool}
	case "int":
		return model.Prim{Kind: model.PrimInt}
	case "nat":
		return model.Prim{Kind: model.PrimNat}
	case "string":
		return model.Prim{Kind: model.PrimString}
	case "address":
		return model.Prim{Kind: model.PrimAddress}
	case "unit", "":
		return model.Prim{Kind: model.PrimUnit}
	default:
		return model.Named{Name: name}
	}
}

func functionFromDoc(f FunctionDoc) (*model.FunctionDecl, error) {
	kind := map[string]model.FunctionKind{
		"entry": model.KindEntry, "getter": model.KindGetter,
		"view": model.KindView, "function": model.KindFunction,
	}[f.Kind]
	params := make([]model.FuncParam, len(f.Params))
	for i, p := range f.Params {
		params[i] = model.FuncParam{Name: p.Name, Type: typeFromName(p.Type)}
	}
	var body model.Term
	if f.Body != nil {
		var err error
		body, err = exprFromDoc(f.Body)
		if err != nil {
			return nil, err
		}
	}
	fd := &model.FunctionDecl{
		Kind:   kind,
		Params: params,
		Return: typeFromName(f.Return),
		Reads:  f.Reads,
		Writes: f.Writes,
		Body:   body,
	}
	fd.Name = f.Name
	return fd, nil
}

func exprFromDoc(e *ExprDoc) (model.Term, error) {
	if e == nil {
		return nil, nil
	}
	pos := model.NoPos
	switch e.Op {
	case "unit":
		return &model.LitUnit{TermBase: model.NewBase(pos, model.Prim{Kind: model.PrimUnit})}, nil
	case "bool":
		return &model.LitBool{TermBase: model.NewBase(pos, model.Prim{Kind: model.PrimBool}), Value: e.Value == "true"}, nil
	case "int":
		return &model.LitInt{TermBase: model.NewBase(pos, model.Prim{Kind: model.PrimInt}), Value: parseInt(e.Value)}, nil
	case "nat":
		return &model.LitNat{TermBase: model.NewBase(pos, model.Prim{Kind: model.PrimNat}), Value: uint64(parseInt(e.Value))}, nil
	case "string":
		return &model.LitString{TermBase: model.NewBase(pos, model.Prim{Kind: model.PrimString}), Value: e.Value}, nil
	case "address":
		return &model.LitAddress{TermBase: model.NewBase(pos, model.Prim{Kind: model.PrimAddress}), Value: e.Value}, nil
	case "var":
		return &model.Var{TermBase: model.NewBase(pos, typeFromName(e.Type)), Name: e.Name}, nil
	case "binop":
		l, err := exprFromDoc(e.Left)
		if err != nil {
			return nil, err
		}
		r, err := exprFromDoc(e.Right)
		if err != nil {
			return nil, err
		}
		return &model.BinOp{TermBase: model.NewBase(pos, typeFromName(e.Type)), Op: binOpFromName(e.Name), Left: l, Right: r}, nil
	case "if":
		cond, err := exprFromDoc(e.Cond)
		if err != nil {
			return nil, err
		}
		then, err := exprFromDoc(e.Then)
		if err != nil {
			return nil, err
		}
		els, err := exprFromDoc(e.Else)
		if err != nil {
			return nil, err
		}
		return &model.If{TermBase: model.NewBase(pos, typeFromName(e.Type)), Cond: cond, Then: then, Else: els}, nil
	case "let":
		init, err := exprFromDoc(e.Init)
		if err != nil {
			return nil, err
		}
		body, err := exprFromDoc(e.Body)
		if err != nil {
			return nil, err
		}
		return &model.LetIn{TermBase: model.NewBase(pos, typeFromName(e.Type)), Name: e.Name, Init: init, Body: body}, nil
	case "seq":
		items, err := exprsFromDoc(e.Items)
		if err != nil {
			return nil, err
		}
		return &model.Seq{TermBase: model.NewBase(pos, typeFromName(e.Type)), Items: items}, nil
	case "call":
		args, err := exprsFromDoc(e.Args)
		if err != nil {
			return nil, err
		}
		return &model.Call{TermBase: model.NewBase(pos, typeFromName(e.Type)), Callee: e.Callee, Args: args}, nil
	case "field":
		target, err := exprFromDoc(e.Target)
		if err != nil {
			return nil, err
		}
		return &model.FieldAccess{TermBase: model.NewBase(pos, typeFromName(e.Type)), Record: target, Field: e.Field}, nil
	case "asset_call":
		target, err := exprFromDoc(e.Target)
		if err != nil {
			return nil, err
		}
		args, err := exprsFromDoc(e.Args)
		if err != nil {
			return nil, err
		}
		return &model.AssetCall{TermBase: model.NewBase(pos, typeFromName(e.Type)), Asset: e.Asset, Method: assetMethodFromName(e.Method), Recv: target, Args: args}, nil
	default:
		return nil, fmt.Errorf("modelio: unknown expression op %q", e.Op)
	}
}

func exprsFromDoc(docs []*ExprDoc) ([]model.Term, error) {
	out := make([]model.Term, len(docs))
	for i, d := range docs {
		t, err := exprFromDoc(d)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func binOpFromName(name string) model.BinOpKind {
	m := map[string]model.BinOpKind{
		"add": model.OpAdd, "sub": model.OpSub, "mul": model.OpMul, "div": model.OpDiv,
		"mod": model.OpMod, "eq": model.OpEq, "neq": model.OpNeq, "lt": model.OpLt,
		"le": model.OpLe, "gt": model.OpGt, "ge": model.OpGe, "and": model.OpAnd,
		"or": model.OpOr, "concat": model.OpConcat,
	}
	return m[name]
}

func assetMethodFromName(name string) model.AssetMethodKind {
	m := map[string]model.AssetMethodKind{
		"add": model.MethodAdd, "add_update": model.MethodAddUpdate,
		"update": model.MethodUpdate, "update_all": model.MethodUpdateAll,
		"remove": model.MethodRemove, "remove_if": model.MethodRemoveIf,
		"remove_all": model.MethodRemoveAll, "clear": model.MethodClear,
		"contains": model.MethodContains, "count": model.MethodCount,
		"get": model.MethodGet, "select": model.MethodSelect,
		"sort": model.MethodSort, "nth": model.MethodNth,
		"head": model.MethodHead, "sum": model.MethodSum,
	}
	return m[name]
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
