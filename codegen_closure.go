// Completion: 90% - Lambda/closure emission.
//
// A lambda lowers to a hoisted file-scope C function plus an
// environment struct of pointers into the captured heap cells:
// captured primitives and arrays were already rewritten into arena
// cells by variable lowering, so the
// environment stores the cell pointers and mutations on either side of
// the closure boundary land in the same storage across calls.
//
// Recursive bindings go through a null-self-slot-then-patch protocol,
// and closures built by a function that returns a closure redirect
// their allocations to the caller's arena.
package main

import (
	"fmt"
	"strings"
)

// genLambdaExpr hoists one lambda literal into its own file-scope C
// function and returns the C expression that constructs the closure
// value (function pointer, environment block, environment size packed
// into a fat handle).
func (g *CodeGen) genLambdaExpr(indent int, l *LambdaExpr) string {
	fname := g.newTemp("lambda")
	envName := fname + "_env"

	captured := g.lambdaCapturedNames(l)
	hasSelf := l.RecursiveSelf != ""
	hasEnv := len(captured) > 0 || hasSelf

	if hasEnv {
		g.emitDecl("typedef struct %s {", envName)
		for _, name := range captured {
			g.emitDecl("    %s *%s;", g.capturedCType(name), mangleName(name))
		}
		if hasSelf {
			g.emitDecl("    H %s;", mangleName(l.RecursiveSelf))
		}
		g.emitDecl("} %s;", envName)
	}

	retType := TypeVoid
	if l.ResolvedType() != nil && l.ResolvedType().Ret != nil {
		retType = l.ResolvedType().Ret
	}

	params := []string{"Arena *" + CallerArenaVar, "void *__envp"}
	for _, p := range l.Params {
		params = append(params, p.Type.CType()+" "+mangleName(p.Name.Lexeme))
	}
	sig := fmt.Sprintf("static %s %s(%s)", retType.CType(), fname, strings.Join(params, ", "))
	g.emitDecl("%s;", sig)
	g.emitDecl("")

	g.genLambdaFunction(l, sig, fname, envName, retType, captured, hasSelf, hasEnv)

	// Construction site, back in the enclosing function. The closure
	// record (and its environment block) land in the caller's arena
	// when the enclosing function returns a closure, so the value
	// survives this frame's teardown.
	allocArena := g.arenas.Current()
	if g.closureEscape && g.arenas.FunctionOwnsArena() {
		allocArena = CallerArenaVar
	}

	if !hasEnv {
		return fmt.Sprintf("sn_closure_make(%s, (void *)%s, NULL, 0)", allocArena, fname)
	}

	envVar := g.newTemp("env")
	g.emit(indent, "%s *%s = (%s *)%s(%s, sizeof(%s));", envName, envVar, envName, RuntimeArenaAlloc, allocArena, envName)
	for _, name := range captured {
		// The outer binding is already a cell pointer after variable
		// lowering's as-ref rewrite, so it stores directly.
		g.emit(indent, "%s->%s = %s;", envVar, mangleName(name), mangleName(name))
	}
	if hasSelf {
		// Null self-slot now, patched by the enclosing declaration
		// immediately after the binding exists.
		g.emit(indent, "%s->%s = SN_NIL;", envVar, mangleName(l.RecursiveSelf))
		g.recursiveLambdaID = g.tempSeq
		g.recursiveLambdaEnv = envName
		g.recursiveLambdaVar = mangleName(l.RecursiveSelf)
	}
	return fmt.Sprintf("sn_closure_make(%s, (void *)%s, %s, sizeof(%s))", allocArena, fname, envVar, envName)
}

// genLambdaFunction emits the hoisted function body into the lambdas
// buffer, with its own arena frame, return label, and promote-on-return
// postamble - a lambda behaves as a default-discipline function.
func (g *CodeGen) genLambdaFunction(l *LambdaExpr, sig, fname, envName string, retType *Type, captured []string, hasSelf, hasEnv bool) {
	savedBody := g.body
	savedCells := g.cellVars
	savedLabel := g.returnLabel
	savedEscape := g.closureEscape
	g.body = NewSafeBuffer(fname)
	g.cellVars = make(map[string]bool)
	g.returnLabel = fname + "_return"
	g.closureEscape = retType != nil && retType.Kind == KindFunction

	g.emit(0, "%s {", sig)
	_, decl := g.arenas.PushFunctionArena(ArenaPerCall)
	g.emit(1, "%s", decl)

	hasResult := retType != nil && retType.Kind != KindVoid
	if hasResult {
		g.emit(1, "%s _return_value = %s;", retType.CType(), defaultValueFor(retType))
	}

	if hasEnv {
		g.emit(1, "%s *__env = (%s *)__envp;", envName, envName)
	} else {
		g.emit(1, "(void)__envp;")
	}
	for _, name := range captured {
		g.emit(1, "%s *%s = __env->%s;", g.capturedCType(name), mangleName(name), mangleName(name))
		g.cellVars[name] = true
	}
	if hasSelf {
		g.emit(1, "H %s = __env->%s;", mangleName(l.RecursiveSelf), mangleName(l.RecursiveSelf))
	}

	if l.Body != nil {
		val := g.genExpr(1, l.Body)
		if hasResult {
			g.emit(1, "_return_value = %s;", val)
		} else {
			g.emit(1, "%s;", val)
		}
	} else {
		for _, s := range l.BodyStmts {
			g.genStmt(1, s)
		}
	}

	g.emit(0, "%s:;", g.returnLabel)
	if hasResult && retType.IsHeapShaped() {
		g.emit(1, "_return_value = %s;", g.promoteForReturn(retType, "_return_value"))
	}
	g.emit(1, "%s(%s);", RuntimeArenaDestroy, LocalArenaVar)
	if hasResult {
		g.emit(1, "return _return_value;")
	} else {
		g.emit(1, "return;")
	}
	g.emit(0, "}")
	g.emit(0, "")
	g.arenas.PopFunctionArena()

	// The hoisted function must sit at file scope, not nested inside
	// the enclosing function's braces.
	g.lambdas.Write(g.body.Bytes())
	g.body = savedBody
	g.cellVars = savedCells
	g.returnLabel = savedLabel
	g.closureEscape = savedEscape
}

// capturedCType resolves a captured name's C cell type from the capture
// pre-pass's recorded types (the checker's scopes are gone by now).
func (g *CodeGen) capturedCType(name string) string {
	if t := g.capture.TypeOf(name); t != nil {
		return t.CType()
	}
	return "long long"
}

// lambdaCapturedNames intersects the function-level captured set with
// the names this particular lambda's body actually references, in
// first-use order, skipping names rebound by the lambda's own
// parameters.
func (g *CodeGen) lambdaCapturedNames(l *LambdaExpr) []string {
	paramNames := make(map[string]bool, len(l.Params))
	for _, p := range l.Params {
		paramNames[p.Name.Lexeme] = true
	}
	var order []string
	seen := make(map[string]bool)
	add := func(name string) {
		if seen[name] || paramNames[name] || !g.capturedSet[name] {
			return
		}
		if name == l.RecursiveSelf {
			return
		}
		seen[name] = true
		order = append(order, name)
	}
	for _, s := range bodyOf(l) {
		walkStmtNames(s, add)
	}
	return order
}

// bodyOf normalizes a lambda's single-expression or block body into a
// statement list the walkers can consume uniformly.
func bodyOf(l *LambdaExpr) []Statement {
	if l.Body != nil {
		return []Statement{&ExprStmt{Expr: l.Body}}
	}
	return l.BodyStmts
}

// walkExprNames visits every VariableExpr name reachable from e.
func walkExprNames(e Expression, visit func(string)) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *VariableExpr:
		visit(ex.Name.Lexeme)
	case *UnaryExpr:
		walkExprNames(ex.Operand, visit)
	case *BinaryExpr:
		walkExprNames(ex.Left, visit)
		walkExprNames(ex.Right, visit)
	case *AssignExpr:
		visit(ex.Name.Lexeme)
		walkExprNames(ex.Value, visit)
	case *CompoundAssignExpr:
		walkExprNames(ex.Target, visit)
		walkExprNames(ex.Value, visit)
	case *CallExpr:
		walkExprNames(ex.Callee, visit)
		for _, a := range ex.Args {
			walkExprNames(a, visit)
		}
	case *MethodCallExpr:
		walkExprNames(ex.Receiver, visit)
		for _, a := range ex.Args {
			walkExprNames(a, visit)
		}
	case *MemberExpr:
		walkExprNames(ex.Object, visit)
	case *MemberAssignExpr:
		walkExprNames(ex.Object, visit)
		walkExprNames(ex.Value, visit)
	case *IndexExpr:
		walkExprNames(ex.Array, visit)
		walkExprNames(ex.Index, visit)
	case *IndexAssignExpr:
		walkExprNames(ex.Array, visit)
		walkExprNames(ex.Index, visit)
		walkExprNames(ex.Value, visit)
	case *ArrayLiteralExpr:
		for _, el := range ex.Elements {
			walkExprNames(el, visit)
		}
	case *SliceExpr:
		walkExprNames(ex.Array, visit)
		walkExprNames(ex.Start, visit)
		walkExprNames(ex.End, visit)
		walkExprNames(ex.Step, visit)
	case *RangeExpr:
		walkExprNames(ex.Start, visit)
		walkExprNames(ex.End, visit)
	case *SpreadExpr:
		walkExprNames(ex.Array, visit)
	case *InterpolatedStringExpr:
		for _, p := range ex.Parts {
			walkExprNames(p, visit)
		}
	case *LambdaExpr:
		for _, s := range bodyOf(ex) {
			walkStmtNames(s, visit)
		}
	case *ThreadSpawnExpr:
		walkExprNames(ex.Call, visit)
	case *ThreadSyncExpr:
		walkExprNames(ex.Handle, visit)
	case *SyncListExpr:
		for _, h := range ex.Handles {
			walkExprNames(h, visit)
		}
	case *TypeofExpr:
		walkExprNames(ex.Operand, visit)
	case *IsExpr:
		walkExprNames(ex.Operand, visit)
	case *AsTypeExpr:
		walkExprNames(ex.Operand, visit)
	case *AsValExpr:
		walkExprNames(ex.Operand, visit)
	case *AsRefExpr:
		walkExprNames(ex.Operand, visit)
	case *SizedArrayAllocExpr:
		walkExprNames(ex.Count, visit)
		walkExprNames(ex.Default, visit)
	case *StructLiteralExpr:
		for _, f := range ex.Fields {
			walkExprNames(f.Value, visit)
		}
	case *MatchExpr:
		walkExprNames(ex.Subject, visit)
		for _, cl := range ex.Clauses {
			walkExprNames(cl.Pattern, visit)
			walkExprNames(cl.Result, visit)
		}
		walkExprNames(ex.DefaultExpr, visit)
	case *BlockExpr:
		for _, s := range ex.Statements {
			walkStmtNames(s, visit)
		}
	}
}

// walkStmtNames visits every VariableExpr name reachable from s.
func walkStmtNames(s Statement, visit func(string)) {
	if s == nil {
		return
	}
	switch st := s.(type) {
	case *VarDeclStmt:
		walkExprNames(st.Init, visit)
	case *ExprStmt:
		walkExprNames(st.Expr, visit)
	case *ReturnStmt:
		walkExprNames(st.Value, visit)
	case *BlockStmt:
		for _, inner := range st.Statements {
			walkStmtNames(inner, visit)
		}
	case *IfStmt:
		walkExprNames(st.Cond, visit)
		walkStmtNames(st.Then, visit)
		walkStmtNames(st.Else, visit)
	case *WhileStmt:
		walkExprNames(st.Cond, visit)
		walkStmtNames(st.Body, visit)
	case *ForStmt:
		walkStmtNames(st.Init, visit)
		walkExprNames(st.Cond, visit)
		walkStmtNames(st.Post, visit)
		walkStmtNames(st.Body, visit)
	case *ForeachStmt:
		walkExprNames(st.Iterable, visit)
		walkStmtNames(st.Body, visit)
	case *LockStmt:
		walkExprNames(st.Target, visit)
		walkStmtNames(st.Body, visit)
	}
}
