// Completion: 90% - Recursive-descent parser covering the full grammar;
// error recovery is line-level rather than full panic-mode.
package main

import (
	"fmt"
	"strings"
)

// Parser safety limits, mirroring the lexer's flat error-accumulation
// style: prefer reporting a diagnostic and recovering over panicking.
const maxParseRecursion = 1000

// Parser consumes a flat token stream (newlines included) and builds the
// AST defined in ast.go. After a parse error it records a diagnostic and
// carries on from the offending token, so later diagnostics in the same
// file still surface.
type Parser struct {
	tokens []Token
	pos    int
	file   string
	depth  int
	Errors []Diagnostic

	pendingAlias string // #alias "name" waiting to attach to the next native fn
}

func NewParser(file string, tokens []Token) *Parser {
	return &Parser{tokens: tokens, file: file}
}

// NewParserWithFilename lexes src itself before parsing - a convenience
// entry point for callers (the CLI, tests) that only have raw source.
func NewParserWithFilename(src, file string) *Parser {
	lex := NewLexer(file, src)
	toks := lex.Tokenize()
	p := NewParser(file, toks)
	p.Errors = append(p.Errors, lex.Errors...)
	return p
}

// ---------------------------------------------------------------------
// Token stream helpers
// ---------------------------------------------------------------------

func (p *Parser) peek() Token { return p.tokens[p.pos] }
func (p *Parser) previous() Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}
func (p *Parser) peekAt(n int) Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) isAtEnd() bool { return p.peek().Type == TokEOF }

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) check(t TokenType) bool {
	if p.isAtEnd() && t != TokEOF {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(t TokenType, what string) Token {
	if p.check(t) {
		return p.advance()
	}
	p.errorAt(p.peek(), fmt.Sprintf("expected %s, got %q", what, p.peek().Lexeme))
	return p.peek()
}

func (p *Parser) errorAt(tok Token, msg string) {
	p.Errors = append(p.Errors, Diagnostic{File: p.file, Line: tok.Line, Col: tok.Col, Message: msg})
}

// skipNewlines consumes any run of statement-separator newlines/semicolons.
func (p *Parser) skipNewlines() {
	for p.check(TokNewline) || p.check(TokSemicolon) {
		p.advance()
	}
}

func (p *Parser) enter() {
	p.depth++
	if p.depth > maxParseRecursion {
		panic(fmt.Sprintf("%s: parser recursion exceeded %d - likely runaway grammar rule", p.file, maxParseRecursion))
	}
}
func (p *Parser) leave() { p.depth-- }

// ---------------------------------------------------------------------
// Program / top level
// ---------------------------------------------------------------------

// ParseProgram parses the whole token stream into a Program. Parse
// errors are collected in p.Errors; callers should check HasErrors
// before proceeding to the resolver.
func (p *Parser) ParseProgram() (prog *Program) {
	defer func() {
		if r := recover(); r != nil {
			p.errorAt(p.peek(), fmt.Sprintf("internal parser error: %v", r))
			prog = &Program{}
		}
	}()

	prog = &Program{}
	p.skipNewlines()
	for !p.isAtEnd() {
		stmt := p.parseTopLevelStmt()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
			if imp, ok := stmt.(*ImportStmt); ok {
				prog.Imports = append(prog.Imports, imp)
			}
		}
		p.skipNewlines()
	}
	return prog
}

func (p *Parser) parseTopLevelStmt() Statement {
	if p.check(TokHash) {
		pr := p.parsePragma()
		if pr != nil && pr.Name == "alias" && len(pr.Args) == 1 {
			p.pendingAlias = pr.Args[0]
		}
		return pr
	}
	return p.parseStatement()
}

func (p *Parser) HasErrors() bool { return len(p.Errors) > 0 }

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (p *Parser) parseStatement() Statement {
	p.enter()
	defer p.leave()

	switch {
	case p.check(TokImport):
		return p.parseImport()
	case p.check(TokType):
		return p.parseTypeDecl()
	case p.check(TokStruct):
		return p.parseStructDecl()
	case p.check(TokVar):
		return p.parseVarDecl(false)
	case p.check(TokShared), p.check(TokPrivate):
		return p.parseFunctionWithModifier()
	case p.check(TokNative):
		return p.parseFunctionWithModifier()
	case p.check(TokFn):
		return p.parseFunctionWithModifier()
	case p.check(TokIf):
		return p.parseIf()
	case p.check(TokWhile):
		return p.parseWhile()
	case p.check(TokFor):
		return p.parseFor()
	case p.check(TokForeach):
		return p.parseForeach()
	case p.check(TokBreak):
		p.advance()
		return &BreakStmt{}
	case p.check(TokContinue):
		p.advance()
		return &ContinueStmt{}
	case p.check(TokReturn):
		return p.parseReturn()
	case p.check(TokLock):
		return p.parseLock()
	case p.check(TokLBrace):
		return p.parseBlock()
	default:
		expr := p.parseExpression()
		return &ExprStmt{Expr: expr}
	}
}

func (p *Parser) parseImport() Statement {
	p.advance() // 'import'
	urlTok := p.expect(TokString, "import path string")
	imp := &ImportStmt{URL: urlTok.Lexeme}
	if idx := strings.LastIndex(imp.URL, "@"); idx != -1 {
		imp.Version = imp.URL[idx+1:]
		imp.URL = imp.URL[:idx]
	}
	if p.match(TokAs) {
		alias := p.expect(TokIdent, "namespace alias")
		imp.Alias = alias.Lexeme
	}
	if imp.Alias == "" {
		imp.Alias = deriveDefaultAlias(imp.URL)
	}
	return imp
}

func deriveDefaultAlias(url string) string {
	s := strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(s, "/\\"); i != -1 {
		s = s[i+1:]
	}
	return s
}

func (p *Parser) parsePragma() *PragmaStmt {
	p.advance() // '#'
	name := p.expect(TokIdent, "pragma name")
	pr := &PragmaStmt{Name: name.Lexeme}
	for !p.check(TokNewline) && !p.isAtEnd() {
		pr.Args = append(pr.Args, p.advance().Lexeme)
	}
	return pr
}

func (p *Parser) parseTypeName() *Type {
	switch {
	case p.check(TokLParen):
		p.advance()
		var params []*Type
		for !p.check(TokRParen) {
			params = append(params, p.parseTypeName())
			if !p.match(TokComma) {
				break
			}
		}
		p.expect(TokRParen, "')'")
		p.expect(TokArrow, "'=>' in function type")
		ret := p.parseTypeName()
		return FunctionType(params, ret)
	case p.check(TokIdent):
		name := p.advance().Lexeme
		t := primitiveTypeByName(name)
		if t == nil {
			t = StructType(name)
		}
		for p.check(TokLBracket) && p.peekAt(1).Type == TokRBracket {
			p.advance()
			p.advance()
			t = ArrayOf(t)
		}
		return t
	default:
		p.errorAt(p.peek(), "expected a type name")
		p.advance()
		return TypeUnknown
	}
}

func primitiveTypeByName(name string) *Type {
	switch name {
	case "int":
		return TypeInt
	case "long":
		return TypeLong
	case "int32":
		return TypeInt32
	case "uint":
		return TypeUint
	case "uint32":
		return TypeUint32
	case "double":
		return TypeDouble
	case "float":
		return TypeFloat
	case "str":
		return TypeStr
	case "char":
		return TypeChar
	case "bool":
		return TypeBool
	case "byte":
		return TypeByte
	case "any":
		return TypeAny
	case "void":
		return TypeVoid
	default:
		return nil
	}
}

func (p *Parser) parseTypeDecl() Statement {
	p.advance() // 'type'
	name := p.expect(TokIdent, "type name")
	p.expect(TokAssign, "'=' in type declaration")
	t := p.parseTypeName()
	return &TypeDeclStmt{Name: name, Type: t}
}

func (p *Parser) parseStructDecl() Statement {
	p.advance() // 'struct'
	name := p.expect(TokIdent, "struct name")
	p.expect(TokLBrace, "'{'")
	p.skipNewlines()
	var fields []StructField2
	for !p.check(TokRBrace) && !p.isAtEnd() {
		fname := p.expect(TokIdent, "field name")
		p.expect(TokColon, "':' before field type")
		ftype := p.parseTypeName()
		fields = append(fields, StructField2{Name: fname, Type: ftype})
		if !p.match(TokComma) {
			p.skipNewlines()
		}
		p.skipNewlines()
	}
	p.expect(TokRBrace, "'}' closing struct")
	return &StructDeclStmt{Name: name, Fields: fields}
}

// parseMemQualifier accepts `as val` / `as ref` (and the bare `val` /
// `ref` shorthand) after a declaration's type annotation.
func (p *Parser) parseMemQualifier() MemoryQualifier {
	if p.check(TokAs) && (p.peekAt(1).Type == TokAsVal || p.peekAt(1).Type == TokAsRef) {
		p.advance()
	}
	switch {
	case p.check(TokAsVal):
		p.advance()
		return QualAsVal
	case p.check(TokAsRef):
		p.advance()
		return QualAsRef
	default:
		return QualDefault
	}
}

// parseVarDecl parses a `var` statement and stores isStatic on the node.
// Every caller passes false: the lexer has no `static` keyword, so no
// source declaration is parsed as a module-private global.
func (p *Parser) parseVarDecl(isStatic bool) Statement {
	p.advance() // 'var'
	name := p.expect(TokIdent, "variable name")
	v := &VarDeclStmt{Name: name, IsStatic: isStatic}
	if p.match(TokColon) {
		v.Declared = p.parseTypeName()
	}
	v.MemQual = p.parseMemQualifier()
	if p.match(TokShared) {
		v.Sync = SyncAtomic
	}
	if p.match(TokAssign) {
		v.Init = p.parseExpression()
	} else if p.match(TokLBracket) {
		// `var xs: T[]` with no initializer leaves elements to be pushed
		// later.
		p.expect(TokRBracket, "']'")
		v.HasPendingElements = true
	}
	return v
}

func (p *Parser) parseFunctionWithModifier() Statement {
	mod := FuncDefault
	isNative := false
	for {
		switch {
		case p.check(TokShared):
			p.advance()
			mod = FuncShared
			continue
		case p.check(TokPrivate):
			p.advance()
			mod = FuncPrivate
			continue
		case p.check(TokNative):
			p.advance()
			isNative = true
			continue
		}
		break
	}
	p.expect(TokFn, "'fn'")
	name := p.expect(TokIdent, "function name")
	fn := &FunctionStmt{Name: name, Modifier: mod, IsNative: isNative}
	if p.pendingAlias != "" {
		fn.CAlias = p.pendingAlias
		p.pendingAlias = ""
	}
	p.expect(TokLParen, "'(' after function name")
	fn.Params = p.parseParamList()
	p.expect(TokRParen, "')'")
	if p.match(TokColon) {
		fn.ReturnType = p.parseTypeName()
	} else {
		fn.ReturnType = TypeVoid
	}
	if isNative {
		return fn
	}
	fn.Body = p.parseBlockStatements()
	fn.BodyCount = len(fn.Body)
	return fn
}

func (p *Parser) parseParamList() []Param {
	var params []Param
	p.skipNewlines()
	for !p.check(TokRParen) {
		name := p.expect(TokIdent, "parameter name")
		param := Param{Name: name}
		if p.match(TokColon) {
			param.Type = p.parseTypeName()
		}
		param.MemQual = p.parseMemQualifier()
		params = append(params, param)
		p.skipNewlines()
		if !p.match(TokComma) {
			break
		}
		p.skipNewlines()
	}
	return params
}

func (p *Parser) parseBlockStatements() []Statement {
	p.expect(TokLBrace, "'{'")
	p.skipNewlines()
	var stmts []Statement
	for !p.check(TokRBrace) && !p.isAtEnd() {
		s := p.parseStatement()
		if s != nil {
			stmts = append(stmts, s)
		}
		p.skipNewlines()
	}
	p.expect(TokRBrace, "'}'")
	return stmts
}

func (p *Parser) parseBlock() *BlockStmt {
	return &BlockStmt{Statements: p.parseBlockStatements()}
}

func (p *Parser) parseIf() Statement {
	p.advance() // 'if'
	cond := p.parseExpression()
	then := p.parseBlock()
	stmt := &IfStmt{Cond: cond, Then: then}
	save := p.pos
	p.skipNewlines()
	if p.match(TokElse) {
		if p.check(TokIf) {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBlock()
		}
	} else {
		p.pos = save
	}
	return stmt
}

func (p *Parser) parseWhile() Statement {
	p.advance() // 'while'
	cond := p.parseExpression()
	body := p.parseBlock()
	return &WhileStmt{Cond: cond, Body: body}
}

func (p *Parser) parseFor() Statement {
	p.advance() // 'for'
	var initStmt Statement
	if !p.check(TokSemicolon) {
		if p.check(TokVar) {
			initStmt = p.parseVarDecl(false)
		} else {
			initStmt = &ExprStmt{Expr: p.parseExpression()}
		}
	}
	p.expect(TokSemicolon, "';' after for-init")
	var cond Expression
	if !p.check(TokSemicolon) {
		cond = p.parseExpression()
	}
	p.expect(TokSemicolon, "';' after for-condition")
	var post Statement
	if !p.check(TokLBrace) {
		post = &ExprStmt{Expr: p.parseExpression()}
	}
	body := p.parseBlock()
	return &ForStmt{Init: initStmt, Cond: cond, Post: post, Body: body}
}

func (p *Parser) parseForeach() Statement {
	p.advance() // 'foreach'
	name := p.expect(TokIdent, "loop variable name")
	p.expect(TokIn, "'in'")
	iter := p.parseExpression()
	body := p.parseBlock()
	return &ForeachStmt{VarName: name, Iterable: iter, Body: body}
}

func (p *Parser) parseReturn() Statement {
	p.advance() // 'return'
	if p.check(TokNewline) || p.check(TokSemicolon) || p.check(TokRBrace) || p.isAtEnd() {
		return &ReturnStmt{}
	}
	return &ReturnStmt{Value: p.parseExpression()}
}

func (p *Parser) parseLock() Statement {
	p.advance() // 'lock'
	p.expect(TokLParen, "'(' after lock")
	target := p.parseExpression()
	p.expect(TokRParen, "')'")
	body := p.parseBlock()
	return &LockStmt{Target: target, Body: body}
}

// ---------------------------------------------------------------------
// Expressions - precedence climbing, lowest to highest
// ---------------------------------------------------------------------

func (p *Parser) parseExpression() Expression {
	p.enter()
	defer p.leave()
	return p.parseAssignment()
}

var assignOps = map[TokenType]bool{
	TokAssign: true, TokPlusEq: true, TokMinusEq: true, TokStarEq: true,
	TokSlashEq: true, TokPercentEq: true, TokDeclare: true,
}

func (p *Parser) parseAssignment() Expression {
	left := p.parseRange()
	if !assignOps[p.peek().Type] {
		return left
	}
	op := p.advance()
	value := p.parseAssignment()

	switch l := left.(type) {
	case *VariableExpr:
		return &AssignExpr{Name: l.Name, Op: op.Type, Value: value, IsUpdate: op.Type == TokDeclare}
	case *MemberExpr:
		return &MemberAssignExpr{Object: l.Object, Field: l.Field, Value: value}
	case *IndexExpr:
		if op.Type == TokAssign {
			return &IndexAssignExpr{Array: l.Array, Index: l.Index, Value: value}
		}
		return &CompoundAssignExpr{Target: l, Op: op.Type, Value: value}
	default:
		return &CompoundAssignExpr{Target: left, Op: op.Type, Value: value}
	}
}

// parseRange handles `lo..hi`, used standalone and in `foreach x in lo..hi`.
func (p *Parser) parseRange() Expression {
	left := p.parseOr()
	if p.match(TokDotDot) {
		right := p.parseOr()
		return &RangeExpr{Start: left, End: right}
	}
	return left
}

func (p *Parser) parseOr() Expression {
	left := p.parseAnd()
	for p.match(TokOr) {
		op := p.previous()
		right := p.parseAnd()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expression {
	left := p.parseIsAs()
	for p.match(TokAnd) {
		op := p.previous()
		right := p.parseIsAs()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

// parseIsAs handles `value is Type` / `value as Type`, binding tighter
// than the boolean operators but looser than equality so `a is int &&
// b is str` parses as expected.
func (p *Parser) parseIsAs() Expression {
	left := p.parseEquality()
	for {
		switch {
		case p.check(TokIs):
			p.advance()
			t := p.parseTypeName()
			left = &IsExpr{Operand: left, Target: t}
		case p.check(TokAs):
			p.advance()
			if p.check(TokAsVal) {
				p.advance()
				left = &AsValExpr{Operand: left}
				continue
			}
			if p.check(TokAsRef) {
				p.advance()
				left = &AsRefExpr{Operand: left}
				continue
			}
			t := p.parseTypeName()
			left = &AsTypeExpr{Operand: left, Target: t}
		default:
			return left
		}
	}
}

func (p *Parser) parseEquality() Expression {
	left := p.parseRelational()
	for p.check(TokEq) || p.check(TokNe) {
		op := p.advance()
		right := p.parseRelational()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseRelational() Expression {
	left := p.parseBitOr()
	for p.check(TokLt) || p.check(TokLe) || p.check(TokGt) || p.check(TokGe) {
		op := p.advance()
		right := p.parseBitOr()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitOr() Expression {
	left := p.parseBitXor()
	for p.check(TokPipe) {
		op := p.advance()
		right := p.parseBitXor()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitXor() Expression {
	left := p.parseBitAnd()
	for p.check(TokCaret) {
		op := p.advance()
		right := p.parseBitAnd()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitAnd() Expression {
	left := p.parseShift()
	for p.check(TokAmp) {
		op := p.advance()
		right := p.parseShift()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseShift() Expression {
	left := p.parseAdditive()
	for p.check(TokShl) || p.check(TokShr) {
		op := p.advance()
		right := p.parseAdditive()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() Expression {
	left := p.parseMultiplicative()
	for p.check(TokPlus) || p.check(TokMinus) {
		op := p.advance()
		right := p.parseMultiplicative()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expression {
	left := p.parseUnary()
	for p.check(TokStar) || p.check(TokSlash) || p.check(TokPercent) {
		op := p.advance()
		right := p.parseUnary()
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Expression {
	p.enter()
	defer p.leave()
	if p.check(TokNot) || p.check(TokMinus) || p.check(TokPlus) || p.check(TokAmp) {
		op := p.advance()
		operand := p.parseUnary()
		return &UnaryExpr{Op: op.Type, Operand: operand}
	}
	if p.check(TokInc) || p.check(TokDec) {
		op := p.advance()
		operand := p.parseUnary()
		return &UnaryExpr{Op: op.Type, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expression {
	expr := p.parsePrimary()
	for {
		switch {
		case p.check(TokDot):
			p.advance()
			field := p.expect(TokIdent, "field or method name")
			if p.check(TokLParen) {
				p.advance()
				args := p.parseArgList()
				p.expect(TokRParen, "')'")
				expr = &MethodCallExpr{Receiver: expr, Method: field, Args: args}
				continue
			}
			expr = &MemberExpr{Object: expr, Field: field}
		case p.check(TokLParen):
			p.advance()
			args := p.parseArgList()
			p.expect(TokRParen, "')'")
			expr = &CallExpr{Callee: expr, Args: args}
		case p.check(TokLBracket):
			expr = p.parseIndexOrSlice(expr)
		case p.check(TokInc), p.check(TokDec):
			op := p.advance()
			expr = &UnaryExpr{Op: op.Type, Operand: expr}
		default:
			return expr
		}
	}
}

func (p *Parser) parseIndexOrSlice(target Expression) Expression {
	p.advance() // '['
	var start, end, step Expression
	if !p.check(TokColon) {
		start = p.parseExpression()
	}
	if p.match(TokColon) {
		if !p.check(TokColon) && !p.check(TokRBracket) {
			end = p.parseExpression()
		}
		if p.match(TokColon) {
			if !p.check(TokRBracket) {
				step = p.parseExpression()
			}
		}
		p.expect(TokRBracket, "']'")
		return &SliceExpr{Array: target, Start: start, End: end, Step: step}
	}
	p.expect(TokRBracket, "']'")
	return &IndexExpr{Array: target, Index: start}
}

func (p *Parser) parseArgList() []Expression {
	var args []Expression
	p.skipNewlines()
	for !p.check(TokRParen) {
		if p.check(TokEllipsis) {
			p.advance()
			args = append(args, &SpreadExpr{Array: p.parseExpression()})
		} else {
			args = append(args, p.parseExpression())
		}
		p.skipNewlines()
		if !p.match(TokComma) {
			break
		}
		p.skipNewlines()
	}
	return args
}

func (p *Parser) parsePrimary() Expression {
	p.enter()
	defer p.leave()

	tok := p.peek()
	switch tok.Type {
	case TokNumber:
		p.advance()
		kind := KindInt
		if strings.ContainsAny(tok.Lexeme, ".eE") {
			kind = KindDouble
		}
		return &LiteralExpr{Kind: kind, Raw: tok.Lexeme}
	case TokString:
		p.advance()
		return &LiteralExpr{Kind: KindStr, Raw: tok.Lexeme}
	case TokInterpString:
		p.advance()
		return p.parseInterpolated(tok)
	case TokChar:
		p.advance()
		return &LiteralExpr{Kind: KindChar, Raw: tok.Lexeme}
	case TokTrue:
		p.advance()
		return &LiteralExpr{Kind: KindBool, Raw: "true"}
	case TokFalse:
		p.advance()
		return &LiteralExpr{Kind: KindBool, Raw: "false"}
	case TokNil:
		p.advance()
		return &LiteralExpr{Kind: KindNil, Raw: "nil"}
	case TokLBracket:
		return p.parseArrayLiteral()
	case TokTypeof:
		p.advance()
		p.expect(TokLParen, "'(' after typeof")
		operand := p.parseExpression()
		p.expect(TokRParen, "')'")
		return &TypeofExpr{Operand: operand}
	case TokSpawn:
		return p.parseSpawn()
	case TokSync:
		return p.parseSync()
	case TokMatch:
		return p.parseMatch()
	case TokLBrace:
		return p.parseBlockExpr()
	case TokLParen:
		return p.parseParenOrLambda()
	case TokAsVal:
		p.advance()
		return &AsValExpr{Operand: p.parseUnary()}
	case TokAsRef:
		p.advance()
		return &AsRefExpr{Operand: p.parseUnary()}
	case TokIdent:
		return p.parseIdentOrLambdaOrArrayAlloc()
	default:
		p.errorAt(tok, fmt.Sprintf("unexpected token %q in expression", tok.Lexeme))
		p.advance()
		return &LiteralExpr{Kind: KindNil, Raw: "nil"}
	}
}

func (p *Parser) parseArrayLiteral() Expression {
	p.advance() // '['
	p.skipNewlines()
	var elems []Expression
	for !p.check(TokRBracket) {
		if p.check(TokEllipsis) {
			p.advance()
			elems = append(elems, &SpreadExpr{Array: p.parseExpression()})
		} else {
			elems = append(elems, p.parseExpression())
		}
		p.skipNewlines()
		if !p.match(TokComma) {
			break
		}
		p.skipNewlines()
	}
	p.expect(TokRBracket, "']'")
	return &ArrayLiteralExpr{Elements: elems}
}

func (p *Parser) parseSpawn() Expression {
	p.advance() // 'spawn'
	callee := p.parsePostfix()
	call, ok := callee.(*CallExpr)
	if !ok {
		p.errorAt(p.previous(), "spawn requires a function call")
		call = &CallExpr{Callee: callee}
	}
	return &ThreadSpawnExpr{Call: call}
}

func (p *Parser) parseSync() Expression {
	p.advance() // 'sync'
	if p.check(TokLParen) {
		p.advance()
		var handles []Expression
		for !p.check(TokRParen) {
			handles = append(handles, p.parseExpression())
			if !p.match(TokComma) {
				break
			}
		}
		p.expect(TokRParen, "')'")
		if len(handles) == 1 {
			return &ThreadSyncExpr{Handle: handles[0]}
		}
		return &SyncListExpr{Handles: handles}
	}
	return &ThreadSyncExpr{Handle: p.parseUnary()}
}

func (p *Parser) parseMatch() Expression {
	p.advance() // 'match'
	subject := p.parseRange()
	p.expect(TokLBrace, "'{' after match subject")
	p.skipNewlines()
	m := &MatchExpr{Subject: subject}
	for !p.check(TokRBrace) && !p.isAtEnd() {
		if p.check(TokIdent) && p.peek().Lexeme == "_" {
			p.advance()
			p.expect(TokArrow, "'=>'")
			m.DefaultExpr = p.parseExpression()
		} else {
			pattern := p.parseRange()
			p.expect(TokArrow, "'=>'")
			result := p.parseExpression()
			m.Clauses = append(m.Clauses, MatchClause{Pattern: pattern, Result: result})
		}
		p.skipNewlines()
		if p.match(TokComma) {
			p.skipNewlines()
		}
	}
	p.expect(TokRBrace, "'}' closing match")
	return m
}

func (p *Parser) parseBlockExpr() Expression {
	stmts := p.parseBlockStatements()
	return &BlockExpr{Statements: stmts}
}

// parseParenOrLambda disambiguates `(expr)` from `(params) => body` by
// tentatively scanning the parenthesized list and checking for a
// trailing `=>`; on mismatch it rewinds and parses a grouped expression.
func (p *Parser) parseParenOrLambda() Expression {
	save := p.pos
	if params, ok := p.tryParseLambdaParams(); ok {
		body, bodyStmts := p.parseLambdaBody()
		return &LambdaExpr{Params: params, Body: body, BodyStmts: bodyStmts}
	}
	p.pos = save

	p.advance() // '('
	expr := p.parseExpression()
	p.expect(TokRParen, "')'")
	return expr
}

func (p *Parser) tryParseLambdaParams() (params []Param, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if !p.check(TokLParen) {
		return nil, false
	}
	p.advance()
	for !p.check(TokRParen) {
		if !p.check(TokIdent) {
			return nil, false
		}
		name := p.advance()
		param := Param{Name: name}
		if p.match(TokColon) {
			param.Type = p.parseTypeName()
		}
		param.MemQual = p.parseMemQualifier()
		params = append(params, param)
		if !p.match(TokComma) {
			break
		}
	}
	if !p.check(TokRParen) {
		return nil, false
	}
	p.advance()
	if !p.check(TokArrow) {
		return nil, false
	}
	p.advance()
	return params, true
}

func (p *Parser) parseLambdaBody() (Expression, []Statement) {
	if p.check(TokLBrace) {
		return nil, p.parseBlockStatements()
	}
	return p.parseExpression(), nil
}

// parseIdentOrLambdaOrArrayAlloc handles a bare identifier, the
// single-param-without-parens lambda shorthand (`x => x + 1`), the
// `array<T>(n, default)` builtin allocator, and struct literals.
func (p *Parser) parseIdentOrLambdaOrArrayAlloc() Expression {
	name := p.advance()

	if name.Lexeme == "array" && p.check(TokLt) {
		return p.parseSizedArrayAlloc()
	}

	if p.check(TokArrow) {
		p.advance()
		body, bodyStmts := p.parseLambdaBody()
		return &LambdaExpr{Params: []Param{{Name: name}}, Body: body, BodyStmts: bodyStmts}
	}

	if p.check(TokLBrace) && p.looksLikeStructLiteral() {
		return p.parseStructLiteral(name)
	}

	return &VariableExpr{Name: name}
}

// looksLikeStructLiteral distinguishes `Name{field: val}` from a bare
// identifier immediately followed by an unrelated block (e.g. an `if`
// condition's body); it requires the very next tokens to be `ident :`
// or an immediate `}`.
func (p *Parser) looksLikeStructLiteral() bool {
	if p.peekAt(1).Type == TokRBrace {
		return true
	}
	return p.peekAt(1).Type == TokIdent && p.peekAt(2).Type == TokColon
}

func (p *Parser) parseStructLiteral(name Token) Expression {
	p.advance() // '{'
	p.skipNewlines()
	lit := &StructLiteralExpr{StructName: name}
	for !p.check(TokRBrace) && !p.isAtEnd() {
		fname := p.expect(TokIdent, "field name")
		p.expect(TokColon, "':'")
		value := p.parseExpression()
		lit.Fields = append(lit.Fields, StructField{Name: fname, Value: value})
		p.skipNewlines()
		if !p.match(TokComma) {
			break
		}
		p.skipNewlines()
	}
	p.expect(TokRBrace, "'}' closing struct literal")
	return lit
}

func (p *Parser) parseSizedArrayAlloc() Expression {
	p.advance() // '<'
	elemType := p.parseTypeName()
	p.expect(TokGt, "'>' closing array element type")
	p.expect(TokLParen, "'('")
	alloc := &SizedArrayAllocExpr{ElemType: elemType, Count: p.parseExpression()}
	if p.match(TokComma) {
		alloc.Default = p.parseExpression()
	}
	p.expect(TokRParen, "')'")
	return alloc
}

// parseInterpolated splits `"...${expr}..."` into alternating literal
// text and parsed sub-expressions, each `${...}` segment re-lexed and
// re-parsed through its own Parser instance.
func (p *Parser) parseInterpolated(tok Token) Expression {
	var parts []Expression
	s := tok.Lexeme
	i := 0
	var lit strings.Builder
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			lit.WriteByte(s[i+1])
			i += 2
			continue
		}
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			if lit.Len() > 0 {
				parts = append(parts, &LiteralExpr{Kind: KindStr, Raw: lit.String()})
				lit.Reset()
			}
			depth := 1
			j := i + 2
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth == 0 {
					break
				}
				j++
			}
			inner := s[i+2 : j]
			sub := NewParserWithFilename(inner, tok.String())
			expr := sub.parseExpressionOnly()
			p.Errors = append(p.Errors, sub.Errors...)
			parts = append(parts, expr)
			i = j + 1
			continue
		}
		lit.WriteByte(s[i])
		i++
	}
	if lit.Len() > 0 {
		parts = append(parts, &LiteralExpr{Kind: KindStr, Raw: lit.String()})
	}
	return &InterpolatedStringExpr{Parts: parts}
}

// parseExpressionOnly is used by interpolation splicing, which only
// ever needs a single expression and has no statement context of its own.
func (p *Parser) parseExpressionOnly() Expression {
	if len(p.tokens) == 0 || p.isAtEnd() {
		return &LiteralExpr{Kind: KindNil, Raw: "nil"}
	}
	return p.parseExpression()
}
