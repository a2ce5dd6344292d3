// Completion: 90% - Statement emission.
//
// Return lowering: the value is assigned into _return_value, any
// loop/private-block arenas still open are destroyed innermost first,
// and control jumps to the function's return label where the postamble
// promotes and tears down.
package main

// genStmt lowers one statement into the function-body buffer at the
// given indent.
func (g *CodeGen) genStmt(indent int, s Statement) {
	switch st := s.(type) {
	case *VarDeclStmt:
		g.genLocalVarDecl(indent, st)
	case *ExprStmt:
		g.emit(indent, "%s;", g.genExpr(indent, st.Expr))
	case *ReturnStmt:
		g.genReturn(indent, st)
	case *BlockStmt:
		g.emit(indent, "{")
		for _, inner := range st.Statements {
			g.genStmt(indent+1, inner)
		}
		g.emit(indent, "}")
	case *IfStmt:
		g.emit(indent, "if (%s) {", g.genExpr(indent, st.Cond))
		for _, inner := range st.Then.Statements {
			g.genStmt(indent+1, inner)
		}
		if st.Else != nil {
			g.emit(indent, "} else {")
			switch e := st.Else.(type) {
			case *BlockStmt:
				for _, inner := range e.Statements {
					g.genStmt(indent+1, inner)
				}
			default:
				g.genStmt(indent+1, e)
			}
		}
		g.emit(indent, "}")
	case *WhileStmt:
		g.emit(indent, "while (%s) {", g.genExpr(indent, st.Cond))
		g.genLoopBody(indent+1, st.Body.Statements)
		g.emit(indent, "}")
	case *ForStmt:
		g.genFor(indent, st)
	case *ForeachStmt:
		g.genForeach(indent, st)
	case *BreakStmt:
		g.genLoopExitTeardown(indent)
		g.emit(indent, "break;")
	case *ContinueStmt:
		g.genLoopExitTeardown(indent)
		g.emit(indent, "continue;")
	case *LockStmt:
		g.genLock(indent, st)
	case *FunctionStmt:
		// A nested named function hoists to file scope; C has no
		// nested definitions.
		saved := g.body
		g.body = NewSafeBuffer(st.Name.Lexeme)
		g.emitDecl("%s;", g.functionSignature(st))
		g.genFunction(st)
		g.lambdas.Write(g.body.Bytes())
		g.body = saved
	default:
		// ImportStmt/PragmaStmt/TypeDeclStmt/StructDeclStmt never reach
		// here from a function body.
	}
}

func (g *CodeGen) genReturn(indent int, r *ReturnStmt) {
	if r.Value != nil {
		g.emit(indent, "_return_value = %s;", g.genExpr(indent, r.Value))
	}
	for _, teardown := range g.arenas.TeardownsForReturn() {
		g.emit(indent, "%s", teardown)
	}
	g.emit(indent, "goto %s;", g.returnLabel)
}

// genLoopBody wraps a loop body in a per-iteration scope arena when the
// body allocates heap-shaped locals, so iteration garbage never piles
// up in the function arena. PGO-hot functions skip the per-iteration
// create/destroy pair and reuse the function arena instead.
func (g *CodeGen) genLoopBody(indent int, body []Statement) {
	hot := g.currentFn != nil && g.hotFuncs[g.currentFn.Name.Lexeme]
	if hot || !loopBodyAllocates(body) {
		for _, inner := range body {
			g.genStmt(indent, inner)
		}
		return
	}
	cVar, decl := g.arenas.PushScopeArena(ArenaLoop)
	g.emit(indent, "%s", decl)
	for _, inner := range body {
		g.genStmt(indent, inner)
	}
	g.emit(indent, "%s(%s);", RuntimeArenaDestroy, cVar)
	g.arenas.PopFunctionArena()
}

// genLoopExitTeardown destroys the innermost loop arena (and any block
// arenas stacked inside it) before a break/continue leaves the
// iteration, since the loop body's trailing destroy won't run.
func (g *CodeGen) genLoopExitTeardown(indent int) {
	for _, teardown := range g.arenas.TeardownsForReturn() {
		g.emit(indent, "%s", teardown)
	}
}

// loopBodyAllocates reports whether a loop body declares a heap-shaped
// local, the trigger for a per-iteration arena.
func loopBodyAllocates(body []Statement) bool {
	for _, s := range body {
		if v, ok := s.(*VarDeclStmt); ok {
			t := v.Declared
			if t == nil && v.Init != nil {
				t = v.Init.ResolvedType()
			}
			if t != nil && t.IsHeapShaped() {
				return true
			}
		}
	}
	return false
}

func (g *CodeGen) genFor(indent int, f *ForStmt) {
	init, cond, post := "", "", ""
	if f.Init != nil {
		init = g.stmtAsExprText(indent, f.Init)
	}
	if f.Cond != nil {
		cond = g.genExpr(indent, f.Cond)
	}
	if f.Post != nil {
		post = g.stmtAsExprText(indent, f.Post)
	}
	g.emit(indent, "for (%s; %s; %s) {", init, cond, post)
	g.genLoopBody(indent+1, f.Body.Statements)
	g.emit(indent, "}")
}

// stmtAsExprText renders a for-loop init/post clause (a VarDeclStmt or
// ExprStmt) inline without its trailing semicolon/newline, since C's
// for(;;) header needs a bare clause rather than a full statement.
func (g *CodeGen) stmtAsExprText(indent int, s Statement) string {
	switch st := s.(type) {
	case *ExprStmt:
		return g.genExpr(indent, st.Expr)
	case *VarDeclStmt:
		ctype := "long long"
		if st.Declared != nil {
			ctype = st.Declared.CType()
		}
		init := "0"
		if st.Init != nil {
			init = g.genExpr(indent, st.Init)
		}
		return ctype + " " + mangleName(st.Name.Lexeme) + " = " + init
	default:
		return ""
	}
}

// genForeach lowers `foreach x in arr { ... }` to an index-based C for
// loop over the array runtime's length/get accessors, since the
// generated C has no native iterator protocol. The iterable
// is evaluated once into a temporary so side effects don't repeat per
// iteration.
func (g *CodeGen) genForeach(indent int, f *ForeachStmt) {
	idx := g.newTemp("i")
	iter := g.newTemp("iter")
	arr := g.genExpr(indent, f.Iterable)
	elemTag := "any"
	elemCType := "sn_any_t"
	if f.Iterable.ResolvedType() != nil && f.Iterable.ResolvedType().Elem != nil {
		elemTag = f.Iterable.ResolvedType().Elem.AnyTag()
		elemCType = f.Iterable.ResolvedType().Elem.CType()
	}
	g.emit(indent, "H %s = %s;", iter, arr)
	g.emit(indent, "for (long %s = 0; %s < rt_array_length_v2(%s); %s++) {", idx, idx, iter, idx)
	g.emit(indent+1, "%s %s = rt_array_get_%s_v2(%s, %s);", elemCType, mangleName(f.VarName.Lexeme), elemTag, iter, idx)
	g.genLoopBody(indent+1, f.Body.Statements)
	g.emit(indent, "}")
}

// genLock lowers `lock(target) { ... }` to the runtime's mutex
// acquire/release pair bracketing the block.
func (g *CodeGen) genLock(indent int, l *LockStmt) {
	target := g.genExpr(indent, l.Target)
	g.emit(indent, "sn_mutex_lock(%s);", target)
	g.emit(indent, "{")
	for _, inner := range l.Body.Statements {
		g.genStmt(indent+1, inner)
	}
	g.emit(indent, "}")
	g.emit(indent, "sn_mutex_unlock(%s);", target)
}
