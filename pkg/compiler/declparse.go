package compiler

import "fmt"

// Parser drives the three passes that turn a byte buffer into a
// Program: a signature prescan (names and shapes only), order-
// independent global constant resolution, and the real structural
// parse of function bodies. Keeping all three as methods of one
// Parser lets them share the symbol tables they build up.
type Parser struct {
	src  []byte
	tz   lexStream
	diag *Diagnostics

	globals     map[string]*Global
	globalOrder []*Global
	funcs       map[string]*Function
	funcOrder   []*Function

	topNS map[string]bool // joint global/function namespace, populated during the structural pass

	curFunc   *Function
	curVars   map[string]*Variable // this function's params+locals, by name
	loopDepth int
}

// NewParser prepares src for parsing. Call Parse to run it.
func NewParser(src []byte) *Parser {
	return &Parser{
		src:     src,
		diag:    &Diagnostics{},
		globals: map[string]*Global{},
		funcs:   map[string]*Function{},
		topNS:   map[string]bool{},
	}
}

// Parse runs the full pipeline and returns the resulting Program (which
// may be partial if diag.HasErrors()) along with the diagnostics sink.
func (p *Parser) Parse() (*Program, *Diagnostics) {
	p.registerBuiltins()
	p.prescan()
	p.resolveAllGlobals()

	p.tz = NewTokenizer(p.src)
	for {
		tok := p.tz.Peek()
		if tok.empty() {
			break
		}
		if !p.parseTopLevelDecl() {
			break
		}
	}

	p.checkMain()

	prog := &Program{Globals: p.globalOrder}
	for _, fn := range p.funcOrder {
		if fn.Builtin == NotBuiltin {
			prog.Functions = append(prog.Functions, fn)
		}
	}
	return prog, p.diag
}

var builtinSigs = []struct {
	name    string
	kind    BuiltinKind
	ret     string
	nparams int
}{
	{"COLOR", BuiltinColor, "void", 1},
	{"PIXEL", BuiltinPixel, "void", 2},
	{"TIMERST", BuiltinTimerReset, "void", 0},
	{"TIME", BuiltinTime, "uint16", 0},
	{"INPUT", BuiltinInput, "uint16", 1},
	{"RND", BuiltinRand, "uint16", 0},
}

func (p *Parser) registerBuiltins() {
	for _, b := range builtinSigs {
		fn := &Function{Name: b.name, ReturnType: Type{Base: b.ret}, Builtin: b.kind}
		for i := 0; i < b.nparams; i++ {
			fn.Params = append(fn.Params, &Variable{
				Name: fmt.Sprintf("$arg%d", i), Type: Type{Base: "uint16"}, Kind: VarParam, IsParam: true, ParamIndex: i,
			})
		}
		p.funcs[b.name] = fn
		p.funcOrder = append(p.funcOrder, fn)
		p.topNS[b.name] = true
	}
}

// parseTypeAtoms consumes a type from tz: a base keyword, optionally
// followed by "[" literal "]". Returns ok=false without any diagnostic
// on mismatch, since this same routine backs both the error-tolerant
// prescan and the real structural parse (which raises its own
// diagnostic on failure).
func parseTypeAtoms(tz lexStream) (Type, bool) {
	tok := tz.Peek()
	if !isType(tok.Text) {
		return Type{}, false
	}
	tz.Consume()
	typ := Type{Base: tok.Text}
	if tz.Peek().Text == "[" {
		tz.Consume()
		lit := tz.Consume()
		n, ok := parseLiteral(lit.Text)
		if !ok {
			return Type{}, false
		}
		if tz.Consume().Text != "]" {
			return Type{}, false
		}
		typ.IsArray = true
		typ.ArrayLen = int(n)
	}
	return typ, true
}

// scanGlobalInit consumes a global's trailing "= <tokens> ;" or bare
// ";" and returns the captured initializer atoms (nil if there was no
// "="). It is shared by the prescan (which keeps the result) and the
// structural pass (which only needs the tokenizer advanced).
func scanGlobalInit(tz lexStream) (raw []Atom, ok bool) {
	switch tz.Peek().Text {
	case ";":
		tz.Consume()
		return nil, true
	case "=":
		tz.Consume()
		depth := 0
		for {
			a := tz.Peek()
			if a.empty() {
				return nil, false
			}
			if a.Text == ";" && depth == 0 {
				tz.Consume()
				return raw, true
			}
			if a.Text == "{" {
				depth++
			} else if a.Text == "}" {
				depth--
			}
			raw = append(raw, a)
			tz.Consume()
		}
	default:
		return nil, false
	}
}

// prescan is pass one: a single error-tolerant walk over the whole
// source that records every top-level name's shape (global type, or
// function return type and parameter count) before any body or
// initializer is evaluated. This is what makes forward references to a
// function or global declared later in the file resolve correctly
// (spec.md §4.6) — by the time the structural pass reaches a call or a
// variable reference, the callee or global it names already exists.
//
// Any irregularity simply stops the scan early; the structural pass
// re-derives the same grammar and reports the real diagnostic.
func (p *Parser) prescan() {
	tz := NewTokenizer(p.src)
	for {
		if tz.Peek().empty() {
			return
		}
		typ, ok := parseTypeAtoms(tz)
		if !ok {
			return
		}
		nameAtom := tz.Consume()
		if nameAtom.empty() || !isValidName(nameAtom.Text) {
			return
		}
		name := nameAtom.Text

		if tz.Peek().Text == "(" {
			tz.Consume()
			nparams := 0
			if tz.Peek().Text != ")" {
				for {
					if _, ok := parseTypeAtoms(tz); !ok {
						return
					}
					if tz.Consume().empty() {
						return
					}
					nparams++
					if tz.Peek().Text == "," {
						tz.Consume()
						continue
					}
					break
				}
			}
			if tz.Peek().Text != ")" {
				return
			}
			tz.Consume()
			if tz.Peek().Text != "{" {
				return
			}
			tz.Consume()
			depth := 1
			for depth > 0 {
				a := tz.Consume()
				if a.empty() {
					return
				}
				if a.Text == "{" {
					depth++
				} else if a.Text == "}" {
					depth--
				}
			}
			if p.funcs[name] != nil || p.globals[name] != nil {
				continue // duplicate; the structural pass reports it
			}
			fn := &Function{Name: name, ReturnType: typ, Line: nameAtom.Line}
			for i := 0; i < nparams; i++ {
				fn.Params = append(fn.Params, &Variable{
					Name: fmt.Sprintf("$arg%d", i), Type: Type{Base: "uint16"}, Kind: VarParam, IsParam: true, ParamIndex: i,
				})
			}
			p.funcs[name] = fn
			p.funcOrder = append(p.funcOrder, fn)
			continue
		}

		raw, ok := scanGlobalInit(tz)
		if !ok {
			return
		}
		if p.funcs[name] != nil || p.globals[name] != nil {
			continue
		}
		g := &Global{Var: &Variable{Name: name, Type: typ, Kind: VarGlobal}, Line: nameAtom.Line, rawInit: raw}
		g.Var.owning = g
		p.globals[name] = g
		p.globalOrder = append(p.globalOrder, g)
	}
}

// resolveAllGlobals is pass two: it folds every global's initializer to
// a concrete value, resolving cross-references between globals
// on-demand (resolveGlobal) rather than strictly in source order, so
// that a global may name another global declared either before or
// after it (spec.md §4.6).
func (p *Parser) resolveAllGlobals() {
	for _, g := range p.globalOrder {
		p.resolveGlobal(g)
	}
}

func (p *Parser) resolveGlobal(g *Global) {
	if g.resolved {
		return
	}
	if g.resolving {
		p.diag.Errorf(g.Line, "global %q's initializer depends on itself", g.Var.Name)
		g.resolved = true
		return
	}
	g.resolving = true
	defer func() { g.resolving = false; g.resolved = true }()

	if g.Var.Type.IsVoid() {
		p.diag.Errorf(g.Line, "global %q cannot have type void", g.Var.Name)
	}
	if g.Var.Type.IsArray && g.Var.Type.ArrayLen <= 0 {
		p.diag.Errorf(g.Line, "array %q must have a positive length", g.Var.Name)
	}
	if g.rawInit == nil {
		if g.Var.Type.IsArray {
			g.ArrayInit = make([]uint16, g.Var.Type.ArrayLen)
			g.Var.ConstArray = g.ArrayInit
		}
		return
	}

	saved := p.tz
	p.tz = &atomFeed{atoms: g.rawInit}
	defer func() { p.tz = saved }()

	if g.Var.Type.IsArray {
		vals, ok := p.parseArrayInitList(g.Var.Type.ArrayLen, g.Line)
		if ok {
			g.ArrayInit = vals
			g.Var.ConstArray = vals
		}
		return
	}

	expr := p.parseExpression(false, false)
	if expr == nil || len(expr.Nodes) == 0 {
		p.diag.Errorf(g.Line, "global %q needs an initializer expression", g.Var.Name)
		return
	}
	if !expr.Const {
		p.diag.Errorf(g.Line, "initializer for global %q is not a compile-time constant", g.Var.Name)
		return
	}
	g.Init = expr.Value
	g.Var.ConstValue = expr.Value
}

// parseArrayInitList parses "{ e1 , e2 , ... }" from the current token
// source, requiring exactly n constant elements.
func (p *Parser) parseArrayInitList(n int, line int) ([]uint16, bool) {
	if p.tz.Peek().Text != "{" {
		p.diag.Errorf(line, "expected '{' to start array initializer")
		return nil, false
	}
	p.tz.Consume()
	var vals []uint16
	if p.tz.Peek().Text != "}" {
		for {
			expr := p.parseExpression(false, false)
			if expr == nil || len(expr.Nodes) == 0 {
				p.diag.Errorf(line, "expected expression in array initializer")
				return vals, false
			}
			if !expr.Const {
				p.diag.Errorf(expr.Line, "array initializer element is not a compile-time constant")
			} else {
				vals = append(vals, expr.Value)
			}
			if p.tz.Peek().Text == "," {
				p.tz.Consume()
				continue
			}
			break
		}
	}
	if p.tz.Consume().Text != "}" {
		p.diag.Errorf(line, "expected '}' to close array initializer")
		return vals, false
	}
	if len(vals) != n {
		p.diag.Errorf(line, "array initializer has %d elements, expected %d", len(vals), n)
		return vals, false
	}
	return vals, true
}

// parseTopLevelDecl is pass three's outer loop body: it re-derives the
// same type/name/shape grammar the prescan used, but this time builds
// real IR — function bodies included — against symbol tables that are
// already fully populated.
func (p *Parser) parseTopLevelDecl() bool {
	startLine := p.tz.Peek().Line
	typ, ok := parseTypeAtoms(p.tz)
	if !ok {
		p.diag.Errorf(startLine, "expected a type ('void' or 'uint16') at top level")
		return false
	}
	nameAtom := p.tz.Consume()
	if nameAtom.empty() {
		p.diag.Errorf(startLine, "expected a name after type")
		return false
	}
	if !isValidName(nameAtom.Text) {
		p.diag.Errorf(nameAtom.Line, "%q is not a valid name", nameAtom.Text)
		return false
	}

	if p.tz.Peek().Text == "(" {
		return p.parseFunctionDeclReal(typ, nameAtom)
	}
	return p.parseGlobalDeclReal(typ, nameAtom)
}

func (p *Parser) declareTop(name string, line int) bool {
	if p.topNS[name] {
		p.diag.Errorf(line, "%q is already declared", name)
		return false
	}
	p.topNS[name] = true
	return true
}

func (p *Parser) parseGlobalDeclReal(typ Type, nameAtom Atom) bool {
	name := nameAtom.Text
	p.declareTop(name, nameAtom.Line)

	g := p.globals[name]
	if g == nil { // prescan couldn't see it (shouldn't happen for valid input); fall back
		g = &Global{Var: &Variable{Name: name, Type: typ, Kind: VarGlobal}, Line: nameAtom.Line}
		g.Var.owning = g
	}
	g.Var.Label = "g_" + name

	if _, ok := scanGlobalInit(p.tz); !ok {
		p.diag.Errorf(nameAtom.Line, "malformed declaration of %q", name)
		return false
	}
	return true
}

func (p *Parser) parseFunctionDeclReal(typ Type, nameAtom Atom) bool {
	name := nameAtom.Text
	p.declareTop(name, nameAtom.Line)

	fn := p.funcs[name]
	if fn == nil {
		fn = &Function{Name: name, ReturnType: typ, Line: nameAtom.Line}
		p.funcs[name] = fn
		p.funcOrder = append(p.funcOrder, fn)
	}
	if typ.IsArray {
		p.diag.Errorf(nameAtom.Line, "function %q cannot return an array", name)
	}
	fn.ReturnType = typ
	fn.Labels = map[string]*LabelStmt{}

	p.tz.Consume() // "("
	params, ok := p.parseParamList()
	if !ok {
		return false
	}
	fn.Params = params
	if p.tz.Consume().Text != ")" {
		p.diag.Errorf(nameAtom.Line, "expected ')' after parameter list of %q", name)
		return false
	}
	if p.tz.Peek().Text != "{" {
		p.diag.Errorf(nameAtom.Line, "expected '{' to begin body of %q", name)
		return false
	}

	p.curFunc = fn
	p.curVars = map[string]*Variable{}
	for _, prm := range fn.Params {
		p.curVars[prm.Name] = prm
	}

	body, ok := p.parseCompound(true)
	fn.Body = body.Stmts

	for _, g := range fn.Gotos {
		if fn.Labels[g.Label] == nil {
			p.diag.Errorf(g.Line, "goto references undeclared label %q", g.Label)
		}
	}

	p.curFunc = nil
	p.curVars = nil
	return ok
}

func (p *Parser) parseParamList() ([]*Variable, bool) {
	var params []*Variable
	seen := map[string]bool{}
	if p.tz.Peek().Text == ")" {
		return params, true
	}
	for {
		typ, ok := parseTypeAtoms(p.tz)
		if !ok {
			p.diag.Errorf(p.tz.Peek().Line, "expected a parameter type")
			return params, false
		}
		if typ.IsVoid() {
			p.diag.Errorf(p.tz.Peek().Line, "a parameter cannot have type void")
		}
		if typ.IsArray {
			p.diag.Errorf(p.tz.Peek().Line, "a parameter cannot be an array")
		}
		nameAtom := p.tz.Consume()
		if nameAtom.empty() || !isValidName(nameAtom.Text) {
			p.diag.Errorf(nameAtom.Line, "expected a parameter name")
			return params, false
		}
		if seen[nameAtom.Text] || p.topNS[nameAtom.Text] {
			p.diag.Errorf(nameAtom.Line, "%q is already declared", nameAtom.Text)
		}
		seen[nameAtom.Text] = true
		params = append(params, &Variable{
			Name: nameAtom.Text, Type: Type{Base: "uint16"}, Kind: VarParam,
			IsParam: true, ParamIndex: len(params),
		})
		if p.tz.Peek().Text == "," {
			p.tz.Consume()
			continue
		}
		break
	}
	return params, true
}

// checkMain enforces spec.md §4.6's entry-point invariant: exactly one
// function named main, taking no parameters and returning void.
func (p *Parser) checkMain() {
	fn := p.funcs["main"]
	if fn == nil || fn.Builtin != NotBuiltin {
		p.diag.Errorf(0, "program has no function named 'main'")
		return
	}
	if !fn.ReturnType.IsVoid() || len(fn.Params) != 0 {
		p.diag.Errorf(fn.Line, "'main' must be declared 'void main()'")
	}
}

// lookupVar resolves a name against the current function's parameters
// and locals, then the global table.
func (p *Parser) lookupVar(name string) *Variable {
	if p.curVars != nil {
		if v := p.curVars[name]; v != nil {
			return v
		}
	}
	if g := p.globals[name]; g != nil {
		return g.Var
	}
	return nil
}

func (p *Parser) lookupFunc(name string) *Function {
	return p.funcs[name]
}
