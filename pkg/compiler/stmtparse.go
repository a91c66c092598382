package compiler

// parseCompound parses a "{ ... }" block. allowLocals is true only for
// the outermost block of a function body — local declarations may
// only appear there, never in a nested compound (spec.md §4.4).
func (p *Parser) parseCompound(allowLocals bool) (*CompoundStmt, bool) {
	openAtom := p.tz.Consume() // "{"
	cs := &CompoundStmt{Line: openAtom.Line}

	if allowLocals {
		for isType(p.tz.Peek().Text) {
			if decl, ok := p.parseLocalDecl(); ok {
				cs.Stmts = append(cs.Stmts, decl)
			}
		}
	}

	for {
		tok := p.tz.Peek()
		if tok.empty() {
			p.diag.Errorf(openAtom.Line, "unterminated block")
			return cs, false
		}
		if tok.Text == "}" {
			p.tz.Consume()
			return cs, true
		}
		if isType(tok.Text) {
			p.diag.Errorf(tok.Line, "local declarations are only allowed at the start of a function body")
			p.skipToSemiOrBrace()
			continue
		}

		if isValidName(tok.Text) || isLabelDeclaration(tok.Text) {
			nameAtom := p.tz.Consume()
			isLabel := isLabelDeclaration(nameAtom.Text)
			if isLabel {
				nameAtom.Text = nameAtom.Text[:len(nameAtom.Text)-1]
			} else if p.tz.Peek().Text == ":" {
				p.tz.Consume()
				isLabel = true
			}
			if isLabel {
				if p.curFunc.Labels[nameAtom.Text] != nil {
					p.diag.Errorf(nameAtom.Line, "label %q is already declared", nameAtom.Text)
				}
				lbl := &LabelStmt{Name: nameAtom.Text, Line: nameAtom.Line}
				p.curFunc.Labels[nameAtom.Text] = lbl
				cs.Stmts = append(cs.Stmts, lbl)
				continue
			}
			p.tz = &pushback{buf: &nameAtom, under: p.tz}
		}

		stmt := p.parseStatement()
		if stmt != nil {
			cs.Stmts = append(cs.Stmts, stmt)
		}
	}
}

// skipToSemiOrBrace is the recovery step after a malformed statement:
// it discards tokens up to (and including) the next ';', or up to but
// excluding the next '}', so parseCompound's loop always makes
// progress.
func (p *Parser) skipToSemiOrBrace() {
	for {
		a := p.tz.Peek()
		if a.empty() || a.Text == "}" {
			return
		}
		p.tz.Consume()
		if a.Text == ";" {
			return
		}
	}
}

func (p *Parser) parseLocalDecl() (Stmt, bool) {
	line := p.tz.Peek().Line
	typ, ok := parseTypeAtoms(p.tz)
	if !ok {
		p.diag.Errorf(line, "expected a type")
		p.skipToSemiOrBrace()
		return nil, false
	}
	if typ.IsVoid() {
		p.diag.Errorf(line, "a local variable cannot have type void")
	}
	nameAtom := p.tz.Consume()
	if nameAtom.empty() || !isValidName(nameAtom.Text) {
		p.diag.Errorf(line, "expected a local variable name")
		p.skipToSemiOrBrace()
		return nil, false
	}
	if p.curVars[nameAtom.Text] != nil || p.topNS[nameAtom.Text] {
		p.diag.Errorf(nameAtom.Line, "%q is already declared", nameAtom.Text)
	}
	v := &Variable{Name: nameAtom.Text, Type: typ, Kind: VarLocal}
	p.curVars[nameAtom.Text] = v
	p.curFunc.Locals = append(p.curFunc.Locals, v)

	decl := &LocalDeclStmt{Var: v, Line: nameAtom.Line}

	switch p.tz.Peek().Text {
	case ";":
		p.tz.Consume()
	case "=":
		p.tz.Consume()
		decl.HasInit = true
		if typ.IsArray {
			vals, _ := p.parseArrayInitList(typ.ArrayLen, nameAtom.Line)
			decl.ArrayInit = vals
		} else {
			decl.Init = p.parseExpression(false, false)
		}
		if p.tz.Consume().Text != ";" {
			p.diag.Errorf(nameAtom.Line, "expected ';' after initializer")
		}
	default:
		p.diag.Errorf(nameAtom.Line, "expected ';' or '=' after %q", nameAtom.Text)
		p.skipToSemiOrBrace()
	}
	return decl, true
}

// parseStatement dispatches on the current token to one of the
// statement forms in spec.md §3/§4.4. It always consumes at least one
// token, so parseCompound's caller loop can't spin.
func (p *Parser) parseStatement() Stmt {
	tok := p.tz.Peek()

	switch tok.Text {
	case "{":
		cs, _ := p.parseCompound(false)
		return cs
	case ";":
		p.tz.Consume()
		return &NullStmt{Line: tok.Line}
	case "if":
		return p.parseIf()
	case "for":
		return p.parseFor()
	case "while":
		return p.parseWhile()
	case "do":
		return p.parseDoWhile()
	case "break":
		p.tz.Consume()
		if p.loopDepth == 0 {
			p.diag.Errorf(tok.Line, "'break' used outside of a loop")
		}
		p.expectSemi(tok.Line)
		return &BreakStmt{Line: tok.Line}
	case "continue":
		p.tz.Consume()
		if p.loopDepth == 0 {
			p.diag.Errorf(tok.Line, "'continue' used outside of a loop")
		}
		p.expectSemi(tok.Line)
		return &ContinueStmt{Line: tok.Line}
	case "return":
		return p.parseReturn()
	case "goto":
		p.tz.Consume()
		labelAtom := p.tz.Consume()
		if labelAtom.empty() || !isValidName(labelAtom.Text) {
			p.diag.Errorf(tok.Line, "expected a label name after 'goto'")
		} else {
			p.curFunc.Gotos = append(p.curFunc.Gotos, gotoRef{Label: labelAtom.Text, Line: tok.Line})
		}
		p.expectSemi(tok.Line)
		return &GotoStmt{Label: labelAtom.Text, Line: tok.Line}
	case "void", "uint16":
		p.diag.Errorf(tok.Line, "local declarations are only allowed at the start of a function body")
		p.skipToSemiOrBrace()
		return nil
	}

	expr := p.parseExpression(false, true)
	p.expectSemi(tok.Line)
	if len(expr.Nodes) == 1 && expr.Nodes[0].Kind == NodeCall {
		return &CallStmt{Call: expr.Nodes[0].Call, Line: tok.Line}
	}
	return &ExprStmt{Expr: expr, Line: tok.Line}
}

func (p *Parser) expectSemi(line int) {
	if p.tz.Consume().Text != ";" {
		p.diag.Errorf(line, "expected ';'")
	}
}

func (p *Parser) parseIf() Stmt {
	line := p.tz.Consume().Line // "if"
	if p.tz.Consume().Text != "(" {
		p.diag.Errorf(line, "expected '(' after 'if'")
	}
	cond := p.parseExpression(false, false)
	if p.tz.Consume().Text != ")" {
		p.diag.Errorf(line, "expected ')' after if-condition")
	}
	then := p.parseStatement()
	stmt := &IfStmt{Cond: cond, Then: then, Line: line}
	if p.tz.Peek().Text == "else" {
		p.tz.Consume()
		stmt.Else = p.parseStatement()
	}
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	line := p.tz.Consume().Line // "while"
	if p.tz.Consume().Text != "(" {
		p.diag.Errorf(line, "expected '(' after 'while'")
	}
	cond := p.parseExpression(false, false)
	if p.tz.Consume().Text != ")" {
		p.diag.Errorf(line, "expected ')' after while-condition")
	}
	p.loopDepth++
	body := p.parseStatement()
	p.loopDepth--
	return &WhileStmt{Cond: cond, Body: body, Line: line}
}

func (p *Parser) parseDoWhile() Stmt {
	line := p.tz.Consume().Line // "do"
	p.loopDepth++
	body := p.parseStatement()
	p.loopDepth--
	if p.tz.Consume().Text != "while" {
		p.diag.Errorf(line, "expected 'while' after do-block")
	}
	if p.tz.Consume().Text != "(" {
		p.diag.Errorf(line, "expected '(' after 'while'")
	}
	cond := p.parseExpression(false, false)
	if p.tz.Consume().Text != ")" {
		p.diag.Errorf(line, "expected ')' after do-while condition")
	}
	p.expectSemi(line)
	return &DoWhileStmt{Body: body, Cond: cond, Line: line}
}

func (p *Parser) parseFor() Stmt {
	line := p.tz.Consume().Line // "for"
	if p.tz.Consume().Text != "(" {
		p.diag.Errorf(line, "expected '(' after 'for'")
	}
	stmt := &ForStmt{Line: line}
	stmt.Init = p.parseExprList()
	if p.tz.Consume().Text != ";" {
		p.diag.Errorf(line, "expected ';' after for-init")
	}
	if p.tz.Peek().Text != ";" {
		stmt.Cond = p.parseExpression(false, false)
	}
	if p.tz.Consume().Text != ";" {
		p.diag.Errorf(line, "expected ';' after for-condition")
	}
	stmt.Loop = p.parseExprList()
	if p.tz.Consume().Text != ")" {
		p.diag.Errorf(line, "expected ')' after for-loop clause")
	}
	p.loopDepth++
	stmt.Body = p.parseStatement()
	p.loopDepth--
	return stmt
}

// parseExprList parses a comma-separated list of expressions (a
// for-loop's init-list or loop-list), stopping at ';' or ')'.
func (p *Parser) parseExprList() []*Expr {
	var list []*Expr
	if p.tz.Peek().Text == ";" || p.tz.Peek().Text == ")" {
		return list
	}
	for {
		list = append(list, p.parseExpression(true, true))
		if p.tz.Peek().Text == "," {
			p.tz.Consume()
			continue
		}
		break
	}
	return list
}

func (p *Parser) parseReturn() Stmt {
	line := p.tz.Consume().Line // "return"
	stmt := &ReturnStmt{Line: line}
	if p.tz.Peek().Text != ";" {
		stmt.Expr = p.parseExpression(false, false)
	}
	p.expectSemi(line)

	switch {
	case p.curFunc.ReturnType.IsVoid() && stmt.Expr != nil:
		p.diag.Errorf(line, "'return' with a value in a void function")
	case !p.curFunc.ReturnType.IsVoid() && stmt.Expr == nil:
		p.diag.Errorf(line, "'return' with no value in a non-void function")
	}
	return stmt
}
