// Completion: 90% - Variable declaration emission, local and global.
//
// Dispatch order: global empty array, pending thread spawn, as-ref or
// captured heap cell, oversized struct, plain declaration. Globals
// dedup on mangled name; a recursive-lambda self-slot patch lands on
// the line after its declaration.
package main

import "fmt"

// largeStructThreshold is the byte size at which a struct local moves
// off the C stack into the current arena.
const largeStructThreshold = 8 * 1024

// genGlobalVarDecl emits a module-scope `var`/`static var` as a C file
// global, deduping on mangled name the way code_gen_stmt_var.c does.
// Initializers that need the runtime (handles, any values, calls) are
// deferred into sn_init_globals and replayed under __main_arena, since
// C file-scope initializers cannot call arena allocation functions.
func (g *CodeGen) genGlobalVarDecl(v *VarDeclStmt) {
	mangled := g.globalMangledName(v)
	set := g.emittedGlobals
	if v.IsStatic {
		set = g.emittedStaticGlobals
	}
	if set[mangled] {
		return
	}
	set[mangled] = true

	declared := v.Declared
	if declared == nil && v.Init != nil {
		declared = v.Init.ResolvedType()
	}
	ctype := "long long"
	if declared != nil {
		ctype = declared.CType()
	}

	storage := ""
	if v.IsStatic {
		storage = "static "
	}

	// Empty (or elementless) global array: null-initialized global, the
	// creation call replays under __main_arena; C file-scope
	// initializers can't call into the runtime portably.
	if v.HasPendingElements {
		elemTag := "any"
		if declared != nil && declared.Elem != nil {
			elemTag = declared.Elem.AnyTag()
		}
		g.emitGlobal("%sH %s = SN_NIL;", storage, mangled)
		g.deferStmt("%s = rt_array_create_%s_v2(%s, 0);", mangled, elemTag, MainArenaVar)
		return
	}

	if v.Init == nil {
		g.emitGlobal("%s%s %s;", storage, ctype, mangled)
		return
	}

	if globalInitNeedsRuntime(declared, v.Init) {
		g.emitGlobal("%s%s %s;", storage, ctype, mangled)
		g.deferInit(mangled, declared, v.Init)
		return
	}

	g.emitGlobal("%s%s %s = %s;", storage, ctype, mangled, g.genExpr(0, v.Init))
}

// globalInitNeedsRuntime reports whether a module-scope initializer
// must run under __main_arena instead of as a C constant expression:
// anything handle-shaped, any-boxed, or computed through a call.
func globalInitNeedsRuntime(t *Type, init Expression) bool {
	if t != nil && t.IsHeapShaped() {
		return true
	}
	switch init.(type) {
	case *CallExpr, *MethodCallExpr, *ThreadSpawnExpr, *InterpolatedStringExpr,
		*ArrayLiteralExpr, *StructLiteralExpr, *LambdaExpr, *SizedArrayAllocExpr,
		*RangeExpr, *SliceExpr:
		return true
	}
	return false
}

// deferStmt appends one raw line to the sn_init_globals body.
func (g *CodeGen) deferStmt(format string, args ...any) {
	fmt.Fprintf(g.deferred, "    %s\n", fmt.Sprintf(format, args...))
}

// deferInit generates a global's initializer expression into the
// sn_init_globals body, where the current arena is __main_arena. The
// body buffer is swapped so helper statements (array literal pushes,
// interpolation pieces) land inside sn_init_globals too.
func (g *CodeGen) deferInit(mangled string, declared *Type, init Expression) {
	saved := g.body
	g.body = g.deferred
	expr := g.genCoercedInit(1, declared, init)
	g.emit(1, "%s = %s;", mangled, expr)
	g.emitRecursiveLambdaPatch(1, mangled)
	g.body = saved
}

// genLocalVarDecl emits a function-local `var`.
func (g *CodeGen) genLocalVarDecl(indent int, v *VarDeclStmt) {
	name := mangleName(v.Name.Lexeme)
	declared := v.Declared
	if declared == nil && v.Init != nil {
		declared = v.Init.ResolvedType()
	}

	// Case 2: thread-spawn initializer whose result type defers its
	// sync. The spawn site declares the thread handle companion; `x`
	// itself stays uninitialized until the matching `sync x`.
	if spawn, ok := v.Init.(*ThreadSpawnExpr); ok && needsDeferredSync(declared) {
		g.genExpr(indent, spawn) // emits the trampoline block, fills lastSpawn
		if g.lastSpawn != nil {
			g.lastSpawn.result = declared
			g.pending[v.Name.Lexeme] = g.lastSpawn
			g.lastSpawn = nil
		}
		g.emit(indent, "%s %s;", declared.CType(), name)
		if sym := g.table.Lookup(v.Name.Lexeme); sym != nil {
			sym.ThreadState = ThreadPending
		}
		return
	}

	// Captured-primitive reclassification: a default-qualified local in
	// the captured set is promoted to as-ref so nested lambdas see a
	// pointer.
	qual := v.MemQual
	if qual == QualDefault && g.capturedSet[v.Name.Lexeme] {
		qual = QualAsRef
		if v.Sym != nil {
			v.Sym.MemQual = QualAsRef
		}
	}

	// Case 3: as-ref or captured -> heap cell. The cell lands in the
	// caller's arena when this function returns a closure,
	// so the cell outlives the frame the closure escapes from.
	if qual == QualAsRef && declared != nil && declared.NeedsCaptureByRef() {
		arena := g.arenas.Current()
		if g.closureEscape && g.arenas.FunctionOwnsArena() {
			arena = CallerArenaVar
		}
		ctype := declared.CType()
		g.emit(indent, "%s *%s = (%s *)%s(%s, sizeof(%s));", ctype, name, ctype, RuntimeArenaAlloc, arena, ctype)
		if v.Init != nil {
			init := g.genCoercedInit(indent, declared, v.Init)
			g.emit(indent, "*%s = %s;", name, init)
		}
		g.cellVars[v.Name.Lexeme] = true
		g.emitRecursiveLambdaPatch(indent, name)
		return
	}

	// Case 4: oversized struct -> heap allocation, symbol reads
	// auto-dereference from here on.
	if declared != nil && declared.Kind == KindStruct && g.typeByteSize(declared) >= largeStructThreshold {
		ctype := declared.CType()
		g.emit(indent, "%s *%s = (%s *)%s(%s, sizeof(%s));", ctype, name, ctype, RuntimeArenaAlloc, g.arenas.Current(), ctype)
		if v.Init != nil {
			g.emit(indent, "*%s = %s;", name, g.genExpr(indent, v.Init))
		}
		g.cellVars[v.Name.Lexeme] = true
		if v.Sym != nil {
			v.Sym.MemQual = QualAsRef
		}
		return
	}

	ctype := "long long"
	if declared != nil {
		ctype = declared.CType()
	}

	if v.HasPendingElements {
		elemTag := "any"
		if declared != nil && declared.Elem != nil {
			elemTag = declared.Elem.AnyTag()
		}
		g.emit(indent, "H %s = rt_array_create_%s_v2(%s, 0);", name, elemTag, g.arenas.Current())
		return
	}

	if v.Init == nil {
		g.emit(indent, "%s %s;", ctype, name)
		return
	}

	init := g.genCoercedInit(indent, declared, v.Init)

	// `as val` copy semantics: arrays and strings deep-clone into the
	// current arena so later mutation never aliases the source.
	if v.MemQual == QualAsVal && declared != nil {
		switch declared.Kind {
		case KindArray:
			if declared.Elem != nil && declared.Elem.Kind == KindStr {
				init = fmt.Sprintf("rt_array_clone_string_v2(%s, %s)", g.arenas.Current(), init)
			} else {
				init = fmt.Sprintf("rt_array_clone_v2(%s, %s)", g.arenas.Current(), init)
			}
		case KindStr:
			init = fmt.Sprintf("sn_handle_clone(%s, %s)", g.arenas.Current(), init)
		}
	}

	g.emit(indent, "%s %s = %s;", ctype, name, init)
	g.emitRecursiveLambdaPatch(indent, name)
}

// genCoercedInit renders an initializer with any boxing or conversion
// the declared type demands: concrete values box into `any`, typed
// arrays convert into any[]/any[][]/any[][][].
func (g *CodeGen) genCoercedInit(indent int, declared *Type, init Expression) string {
	expr := g.genExpr(indent, init)
	src := init.ResolvedType()
	if declared == nil || src == nil {
		return expr
	}
	if declared.Kind == KindAny && src.Kind != KindAny {
		return g.boxExpr(src, expr)
	}
	if conv := anyArrayConverter(declared, src); conv != "" {
		return fmt.Sprintf(conv, g.arenas.Current(), expr)
	}
	return expr
}

// boxExpr wraps a C expression of concrete type t in the matching
// box_<t> runtime call.
func (g *CodeGen) boxExpr(t *Type, expr string) string {
	switch t.Kind {
	case KindArray:
		elemTag := "any"
		if t.Elem != nil {
			elemTag = t.Elem.AnyTag()
		}
		return fmt.Sprintf("sn_any_box_array(%s, SN_TAG_%s)", expr, upperTag(elemTag))
	case KindNil:
		return "sn_any_box_nil()"
	default:
		return fmt.Sprintf("sn_any_box_%s(%s)", t.AnyTag(), expr)
	}
}

// anyArrayConverter resolves the typed-array-to-any[] runtime converter
// for a (destination, source) type pair, or "" when no conversion
// applies. The returned format string takes (arena, source expression).
func anyArrayConverter(dst, src *Type) string {
	dd, de := arrayDepthElem(dst)
	sd, se := arrayDepthElem(src)
	if dd == 0 || dd != sd || de == nil || se == nil {
		return ""
	}
	if de.Kind != KindAny || se.Kind == KindAny {
		return ""
	}
	base := "sn_array_to_any_" + se.AnyTag()
	switch dd {
	case 1:
		return base + "(%s, %s)"
	case 2:
		return "sn_array_to_any_2d(%s, %s, " + base + ")"
	default:
		return "sn_array_to_any_3d(%s, %s, " + base + ")"
	}
}

func arrayDepthElem(t *Type) (int, *Type) {
	depth := 0
	for t != nil && t.Kind == KindArray {
		depth++
		t = t.Elem
	}
	return depth, t
}

// emitRecursiveLambdaPatch writes the post-initialization self-slot
// assignment for a recursive lambda binding, consuming the sentinel
// genLambdaExpr set.
func (g *CodeGen) emitRecursiveLambdaPatch(indent int, declName string) {
	if g.recursiveLambdaID < 0 {
		return
	}
	g.emit(indent, "((%s *)sn_closure_env(%s))->%s = %s;",
		g.recursiveLambdaEnv, declName, g.recursiveLambdaVar, declName)
	g.recursiveLambdaID = -1
	g.recursiveLambdaEnv = ""
	g.recursiveLambdaVar = ""
}

// needsDeferredSync reports whether a spawn result of this type routes
// through the pending-companion protocol: primitives, strings, non-any
// arrays, and structs.
func needsDeferredSync(t *Type) bool {
	if t == nil {
		return false
	}
	if t.IsPrimitive() || t.Kind == KindStr || t.Kind == KindStruct {
		return true
	}
	if t.Kind == KindArray {
		return t.Elem == nil || t.Elem.Kind != KindAny
	}
	return false
}

// globalMangledName applies the namespace or canonical-module prefix on
// top of the plain mangled name: static (module-private) globals mangle
// as <canonical_module>__<name>, namespaced imports as <ns>__<name>
// so each importing module sees a distinct C symbol.
func (g *CodeGen) globalMangledName(v *VarDeclStmt) string {
	if g.currentNamespacePrefix != "" {
		return mangleName(g.currentNamespacePrefix + "__" + v.Name.Lexeme)
	}
	if v.IsStatic && g.currentCanonicalModule != "" {
		return mangleName(g.currentCanonicalModule + "__" + v.Name.Lexeme)
	}
	return mangleName(v.Name.Lexeme)
}

func upperTag(tag string) string {
	out := make([]byte, len(tag))
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
