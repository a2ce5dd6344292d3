// Completion: 90% - Expression emission: each AST expression node lowers
// to a single C expression snippet (string): emit returns a string and
// the caller splices it. The handful of expressions that need helper
// statements first - array literals, spawn, match - build into a
// temporary through g.newTemp + g.emit, then hand back the temporary's
// name.
package main

import (
	"fmt"
	"strconv"
	"strings"
)

// genExpr lowers one expression to a C expression string. indent is the
// current statement indent, used only when an expression must first
// emit helper statements into the body buffer (e.g. a match expression
// becomes an if/else ladder assigning into a temporary).
func (g *CodeGen) genExpr(indent int, e Expression) string {
	switch ex := e.(type) {
	case *LiteralExpr:
		return g.genLiteral(ex)
	case *VariableExpr:
		return g.genVariableRef(ex)
	case *UnaryExpr:
		return fmt.Sprintf("(%s%s)", tokString(ex.Op), g.genExpr(indent, ex.Operand))
	case *BinaryExpr:
		return g.genBinary(indent, ex)
	case *AssignExpr:
		return g.genAssign(indent, ex)
	case *CompoundAssignExpr:
		return fmt.Sprintf("(%s %s %s)", g.genExpr(indent, ex.Target), tokString(ex.Op), g.genExpr(indent, ex.Value))
	case *CallExpr:
		return g.genCall(indent, ex)
	case *MethodCallExpr:
		return g.genMethodCall(indent, ex)
	case *MemberExpr:
		return fmt.Sprintf("(%s).%s", g.genExpr(indent, ex.Object), mangleName(ex.Field.Lexeme))
	case *MemberAssignExpr:
		return fmt.Sprintf("((%s).%s = %s)", g.genExpr(indent, ex.Object), mangleName(ex.Field.Lexeme), g.genExpr(indent, ex.Value))
	case *IndexExpr:
		return fmt.Sprintf("rt_array_get_%s_v2(%s, %s)", g.elemTagOf(ex.Array), g.genExpr(indent, ex.Array), g.genExpr(indent, ex.Index))
	case *IndexAssignExpr:
		return fmt.Sprintf("rt_array_set_%s_v2(%s, %s, %s)", g.elemTagOf(ex.Array), g.genExpr(indent, ex.Array), g.genExpr(indent, ex.Index), g.genExpr(indent, ex.Value))
	case *ArrayLiteralExpr:
		return g.genArrayLiteral(indent, ex)
	case *SliceExpr:
		return g.genSlice(indent, ex)
	case *RangeExpr:
		return fmt.Sprintf("rt_array_range_long_v2(%s, %s, %s)", g.arenas.Current(), g.genExpr(indent, ex.Start), g.genExpr(indent, ex.End))
	case *SpreadExpr:
		return g.genExpr(indent, ex.Array)
	case *InterpolatedStringExpr:
		return g.genInterpolated(indent, ex)
	case *LambdaExpr:
		return g.genLambdaExpr(indent, ex)
	case *ThreadSpawnExpr:
		return g.genSpawn(indent, ex)
	case *ThreadSyncExpr:
		return g.genSync(indent, ex)
	case *SyncListExpr:
		return g.genSyncList(indent, ex)
	case *TypeofExpr:
		return g.genTypeof(indent, ex)
	case *IsExpr:
		return fmt.Sprintf("(sn_any_tag(%s) == %s)", g.genExpr(indent, ex.Operand), anyTagConst(ex.Target))
	case *AsTypeExpr:
		return g.genCast(indent, ex)
	case *AsValExpr:
		return g.genAsVal(indent, ex)
	case *AsRefExpr:
		return g.genExpr(indent, ex.Operand)
	case *SizedArrayAllocExpr:
		return g.genSizedAlloc(indent, ex)
	case *StructLiteralExpr:
		return g.genStructLiteral(indent, ex)
	case *MatchExpr:
		return g.genMatch(indent, ex)
	case *BlockExpr:
		return g.genBlockExpr(indent, ex)
	default:
		return "/* unsupported expr */0"
	}
}

func anyTagConst(t *Type) string {
	return "SN_TAG_" + upperTag(t.AnyTag())
}

// elemTagOf resolves the element-type suffix used to pick the typed
// array runtime entry point for an indexing site.
func (g *CodeGen) elemTagOf(arr Expression) string {
	if arr.ResolvedType() != nil && arr.ResolvedType().Elem != nil {
		return arr.ResolvedType().Elem.AnyTag()
	}
	return "any"
}

func (g *CodeGen) genLiteral(l *LiteralExpr) string {
	switch l.Kind {
	case KindStr:
		return fmt.Sprintf("%s(%s, %s)", RuntimeArenaStrdup, g.arenas.Current(), strconv.Quote(l.Raw))
	case KindChar:
		return "'" + l.Raw + "'"
	case KindBool:
		return l.Raw
	case KindNil:
		return "SN_NIL"
	case KindLong:
		return l.Raw + "LL"
	default:
		return l.Raw
	}
}

// genVariableRef renders a name, dereferencing when the local has been
// rewritten into a heap cell (captured primitive, as-ref binding, or
// oversized struct).
func (g *CodeGen) genVariableRef(v *VariableExpr) string {
	name := v.Name.Lexeme
	if g.cellVars[name] {
		return "(*" + mangleName(name) + ")"
	}
	if v.Sym != nil && v.Sym.NamespaceName != "" {
		return mangleName(v.Sym.NamespaceName + "__" + name)
	}
	return mangleName(name)
}

func (g *CodeGen) genAssign(indent int, a *AssignExpr) string {
	target := mangleName(a.Name.Lexeme)
	if g.cellVars[a.Name.Lexeme] {
		target = "(*" + target + ")"
	}
	return fmt.Sprintf("(%s %s %s)", target, tokString(a.Op), g.genExpr(indent, a.Value))
}

func (g *CodeGen) genBinary(indent int, b *BinaryExpr) string {
	l, r := g.genExpr(indent, b.Left), g.genExpr(indent, b.Right)
	lt := b.Left.ResolvedType()
	if lt != nil && lt.Kind == KindStr {
		switch b.Op {
		case TokPlus:
			return fmt.Sprintf("sn_string_concat(%s, %s, %s)", g.arenas.Current(), l, r)
		case TokEq:
			return fmt.Sprintf("sn_string_eq(%s, %s)", l, r)
		case TokNe:
			return fmt.Sprintf("(!sn_string_eq(%s, %s))", l, r)
		}
	}
	if lt != nil && lt.Kind == KindAny && (b.Op == TokEq || b.Op == TokNe) {
		neg := ""
		if b.Op == TokNe {
			neg = "!"
		}
		return fmt.Sprintf("(%ssn_any_equals(%s, %s))", neg, l, r)
	}
	if lt != nil && lt.Kind == KindArray && (b.Op == TokEq || b.Op == TokNe) {
		eq := "rt_array_eq_v2"
		if lt.Elem != nil && lt.Elem.Kind == KindStr {
			eq = "rt_array_eq_str_v2"
		}
		neg := ""
		if b.Op == TokNe {
			neg = "!"
		}
		return fmt.Sprintf("(%s%s(%s, %s))", neg, eq, l, r)
	}
	return fmt.Sprintf("(%s %s %s)", l, tokString(b.Op), r)
}

// genCall lowers a call: the current arena threads through as the
// hidden first argument; `as ref` parameters receive the address of
// their argument; the `print` builtin boxes its operand and routes to
// the runtime.
func (g *CodeGen) genCall(indent int, c *CallExpr) string {
	if name, ok := calleeName(c.Callee); ok {
		switch name {
		case "print":
			if len(c.Args) == 1 {
				boxed := g.genBoxedArg(indent, c.Args[0])
				return fmt.Sprintf("sn_print_any(%s, %s)", g.arenas.Current(), boxed)
			}
		case "len":
			if len(c.Args) == 1 {
				if t := c.Args[0].ResolvedType(); t != nil && t.Kind == KindStr {
					return fmt.Sprintf("sn_string_length(%s)", g.genExpr(indent, c.Args[0]))
				}
				return fmt.Sprintf("rt_array_length_v2(%s)", g.genExpr(indent, c.Args[0]))
			}
		case "exit":
			if len(c.Args) == 1 {
				return fmt.Sprintf("exit((int)(%s))", g.genExpr(indent, c.Args[0]))
			}
		}
	}

	if name, isDirect := g.directCalleeName(c.Callee); isDirect {
		args := []string{g.arenas.Current()}
		for _, a := range c.Args {
			args = append(args, g.genCallArg(indent, a))
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
	}
	return g.genClosureCall(indent, c)
}

// genCallArg renders one argument; an argument wrapped in `as ref`
// passes its address (a cell variable already is one).
func (g *CodeGen) genCallArg(indent int, a Expression) string {
	if ref, ok := a.(*AsRefExpr); ok {
		if v, ok := ref.Operand.(*VariableExpr); ok {
			if g.cellVars[v.Name.Lexeme] {
				return mangleName(v.Name.Lexeme)
			}
			return "&" + mangleName(v.Name.Lexeme)
		}
		return "&" + g.genExpr(indent, ref.Operand)
	}
	return g.genExpr(indent, a)
}

// directCalleeName resolves a callee expression to a C function symbol
// when the call is direct: a named function (possibly pragma-aliased)
// or a namespaced import's function (ns.f -> sn_ns__f). Everything else
// dispatches through a closure value.
func (g *CodeGen) directCalleeName(callee Expression) (string, bool) {
	switch c := callee.(type) {
	case *VariableExpr:
		sym := c.Sym
		if sym == nil {
			sym = g.table.Lookup(c.Name.Lexeme)
		}
		if sym == nil {
			// Unresolved names can only be top-level functions by the
			// time codegen runs - locals always carry a symbol.
			return mangleName(c.Name.Lexeme), true
		}
		if sym.IsFunction {
			if sym.CAlias != "" {
				return sym.CAlias, true
			}
			return mangleName(c.Name.Lexeme), true
		}
		return "", false
	case *MemberExpr:
		if obj, ok := c.Object.(*VariableExpr); ok {
			if sym := g.table.Lookup(obj.Name.Lexeme); sym != nil && (sym.Kind == SymNamespace || sym.IsNamespace) {
				return mangleNamespaced([]string{obj.Name.Lexeme}, c.Field.Lexeme), true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// genClosureCall invokes a closure-typed value through its stored
// function pointer: fn(current_arena, env, args...). The closure
// expression is evaluated once into a temporary so fn and env come from
// the same value.
func (g *CodeGen) genClosureCall(indent int, c *CallExpr) string {
	clos := g.genExpr(indent, c.Callee)
	tmp := g.newTemp("clos")
	g.emit(indent, "H %s = %s;", tmp, clos)

	args := []string{g.arenas.Current(), fmt.Sprintf("sn_closure_env(%s)", tmp)}
	for _, a := range c.Args {
		args = append(args, g.genCallArg(indent, a))
	}
	return fmt.Sprintf("((%s)sn_closure_fn(%s))(%s)",
		g.closureFnCastType(c), tmp, strings.Join(args, ", "))
}

// closureFnCastType renders the function-pointer cast for invoking a
// closure-typed callee's stored pointer.
func (g *CodeGen) closureFnCastType(c *CallExpr) string {
	ret := "void"
	params := []string{"Arena *", "void *"}
	if t := c.Callee.ResolvedType(); t != nil && t.Kind == KindFunction {
		if t.Ret != nil {
			ret = t.Ret.CType()
		}
		for _, p := range t.Params {
			params = append(params, p.CType())
		}
	} else {
		for range c.Args {
			params = append(params, "sn_any_t")
		}
	}
	return fmt.Sprintf("%s (*)(%s)", ret, strings.Join(params, ", "))
}

func calleeName(e Expression) (string, bool) {
	if v, ok := e.(*VariableExpr); ok {
		return v.Name.Lexeme, true
	}
	return "", false
}

// genBoxedArg boxes an argument of concrete static type into sn_any_t
// for the print/any paths.
func (g *CodeGen) genBoxedArg(indent int, a Expression) string {
	expr := g.genExpr(indent, a)
	t := a.ResolvedType()
	if t == nil || t.Kind == KindAny {
		return expr
	}
	return g.boxExpr(t, expr)
}

// genMethodCall maps the language's built-in array/string methods onto
// the typed runtime families; mutating methods whose result is a
// (possibly new) handle assign back through a simple-variable receiver
// so `v.push(x)` observes reallocation.
func (g *CodeGen) genMethodCall(indent int, m *MethodCallExpr) string {
	recv := g.genExpr(indent, m.Receiver)
	elemTag := g.elemTagOf(m.Receiver)
	arena := g.arenas.Current()

	assignBack := func(call string) string {
		if v, ok := m.Receiver.(*VariableExpr); ok {
			target := mangleName(v.Name.Lexeme)
			if g.cellVars[v.Name.Lexeme] {
				target = "(*" + target + ")"
			}
			return fmt.Sprintf("(%s = %s)", target, call)
		}
		return call
	}

	arg := func(i int) string {
		if i < len(m.Args) {
			return g.genExpr(indent, m.Args[i])
		}
		return "0"
	}

	switch m.Method.Lexeme {
	case "length":
		if t := m.Receiver.ResolvedType(); t != nil && t.Kind == KindStr {
			return fmt.Sprintf("sn_string_length(%s)", recv)
		}
		return fmt.Sprintf("rt_array_length_v2(%s)", recv)
	case "push":
		return assignBack(fmt.Sprintf("rt_array_push_%s_v2(%s, %s, %s)", elemTag, recv, arena, arg(0)))
	case "push_copy":
		return fmt.Sprintf("rt_array_push_copy_%s_v2(%s, %s, %s)", elemTag, recv, arena, arg(0))
	case "pop":
		return fmt.Sprintf("rt_array_pop_%s_v2(%s)", elemTag, recv)
	case "insert":
		return assignBack(fmt.Sprintf("rt_array_insert_%s_v2(%s, %s, %s, %s)", elemTag, arena, recv, arg(1), arg(0)))
	case "remove":
		return assignBack(fmt.Sprintf("rt_array_remove_%s_v2(%s, %s, %s)", elemTag, arena, recv, arg(0)))
	case "index_of":
		return fmt.Sprintf("rt_array_index_of_%s_v2(%s, %s)", elemTag, recv, arg(0))
	case "contains":
		return fmt.Sprintf("rt_array_contains_%s_v2(%s, %s)", elemTag, recv, arg(0))
	case "clear":
		return fmt.Sprintf("rt_array_clear_v2(%s)", recv)
	case "clone":
		if elemTag == "str" {
			return fmt.Sprintf("rt_array_clone_string_v2(%s, %s)", arena, recv)
		}
		return fmt.Sprintf("rt_array_clone_v2(%s, %s)", arena, recv)
	case "reverse":
		return fmt.Sprintf("rt_array_reverse_v2(%s, %s)", arena, recv)
	case "concat":
		return fmt.Sprintf("rt_array_concat_v2(%s, %s)", recv, arg(0))
	case "eq":
		if elemTag == "str" {
			return fmt.Sprintf("rt_array_eq_str_v2(%s, %s)", recv, arg(0))
		}
		return fmt.Sprintf("rt_array_eq_v2(%s, %s)", recv, arg(0))
	case "join":
		return fmt.Sprintf("rt_array_join_v2(%s, %s, %s)", recv, arena, arg(0))
	case "to_string":
		return fmt.Sprintf("rt_array_to_string_%s_v2(%s, %s)", elemTag, recv, arena)
	default:
		// Free function invoked method-style: receiver becomes the
		// first argument after the arena.
		args := []string{arena, recv}
		for _, a := range m.Args {
			args = append(args, g.genExpr(indent, a))
		}
		return fmt.Sprintf("%s(%s)", mangleName(m.Method.Lexeme), strings.Join(args, ", "))
	}
}

func (g *CodeGen) genArrayLiteral(indent int, a *ArrayLiteralExpr) string {
	elemTag := "any"
	if a.ResolvedType() != nil && a.ResolvedType().Elem != nil {
		elemTag = a.ResolvedType().Elem.AnyTag()
	}
	tmp := g.newTemp("arr")
	g.emit(indent, "H %s = rt_array_create_%s_v2(%s, %d);", tmp, elemTag, g.arenas.Current(), len(a.Elements))
	for _, el := range a.Elements {
		if spread, ok := el.(*SpreadExpr); ok {
			g.emit(indent, "%s = rt_array_concat_v2(%s, %s);", tmp, tmp, g.genExpr(indent, spread.Array))
			continue
		}
		rendered := g.genExpr(indent, el)
		if elemTag == "any" {
			if t := el.ResolvedType(); t != nil && t.Kind != KindAny {
				rendered = g.boxExpr(t, rendered)
			}
		}
		g.emit(indent, "%s = rt_array_push_%s_v2(%s, %s, %s);", tmp, elemTag, tmp, g.arenas.Current(), rendered)
	}
	return tmp
}

func (g *CodeGen) genSlice(indent int, s *SliceExpr) string {
	start, end, step := "SN_SLICE_DEFAULT", "SN_SLICE_DEFAULT", "1"
	if s.Start != nil {
		start = g.genExpr(indent, s.Start)
	}
	if s.End != nil {
		end = g.genExpr(indent, s.End)
	}
	if s.Step != nil {
		step = g.genExpr(indent, s.Step)
	}
	fn := "rt_array_slice_v2"
	if g.elemTagOf(s.Array) == "str" {
		fn = "rt_array_slice_str_v2"
	}
	return fmt.Sprintf("%s(%s, %s, %s, %s, %s)", fn, g.arenas.Current(), g.genExpr(indent, s.Array), start, end, step)
}

func (g *CodeGen) genInterpolated(indent int, i *InterpolatedStringExpr) string {
	tmp := g.newTemp("istr")
	g.emit(indent, "H %s = %s(%s, \"\");", tmp, RuntimeArenaStrdup, g.arenas.Current())
	for _, part := range i.Parts {
		if lit, ok := part.(*LiteralExpr); ok && lit.Kind == KindStr {
			g.emit(indent, "%s = sn_string_concat(%s, %s, %s(%s, %s));", tmp, g.arenas.Current(), tmp, RuntimeArenaStrdup, g.arenas.Current(), strconv.Quote(lit.Raw))
			continue
		}
		if t := part.ResolvedType(); t != nil && t.Kind == KindStr {
			g.emit(indent, "%s = sn_string_concat(%s, %s, %s);", tmp, g.arenas.Current(), tmp, g.genExpr(indent, part))
			continue
		}
		piece := fmt.Sprintf("sn_any_to_string(%s, %s)", g.arenas.Current(), g.genBoxedArg(indent, part))
		g.emit(indent, "%s = sn_string_concat(%s, %s, %s);", tmp, g.arenas.Current(), tmp, piece)
	}
	return tmp
}

// genSpawn lowers `spawn f(args...)` into a hoisted trampoline plus a
// per-spawn argument block living in a dedicated arena the spawned
// thread owns; heap-shaped arguments are promoted into the thread's
// arena before the handoff.
// The trampoline stores the result at offset 0 of the block so
// sn_thread_sync_with_result can copy it out without knowing the
// block's shape.
func (g *CodeGen) genSpawn(indent int, t *ThreadSpawnExpr) string {
	call := t.Call
	id := g.newTemp("spawn")
	argsType := id + "_args"
	resultType := call.ResolvedType()

	callee, direct := g.directCalleeName(call.Callee)

	// Hoisted block typedef + trampoline.
	g.emitDecl("typedef struct %s {", argsType)
	if resultType != nil && resultType.Kind != KindVoid {
		g.emitDecl("    %s __result;", resultType.CType())
	}
	g.emitDecl("    Arena *__arena;")
	if !direct {
		g.emitDecl("    H __clos;")
	}
	for i, a := range call.Args {
		ctype := "long long"
		if a.ResolvedType() != nil {
			ctype = a.ResolvedType().CType()
		}
		g.emitDecl("    %s __a%d;", ctype, i)
	}
	g.emitDecl("} %s;", argsType)

	var callArgs []string
	callArgs = append(callArgs, "__b->__arena")
	if !direct {
		callArgs = append(callArgs, "sn_closure_env(__b->__clos)")
		callee = fmt.Sprintf("((%s)sn_closure_fn(__b->__clos))", g.closureFnCastType(call))
	}
	for i := range call.Args {
		callArgs = append(callArgs, fmt.Sprintf("__b->__a%d", i))
	}
	g.emitDecl("static void *%s_tramp(void *__p) {", id)
	g.emitDecl("    %s *__b = (%s *)__p;", argsType, argsType)
	if resultType != nil && resultType.Kind != KindVoid {
		g.emitDecl("    __b->__result = %s(%s);", callee, strings.Join(callArgs, ", "))
	} else {
		g.emitDecl("    %s(%s);", callee, strings.Join(callArgs, ", "))
	}
	g.emitDecl("    return __p;")
	g.emitDecl("}")
	g.emitDecl("")

	// Spawn site.
	arenaVar := id + "_arena"
	blockVar := id + "_block"
	handleVar := id + "_handle"
	g.emit(indent, "Arena *%s = %s(NULL);", arenaVar, RuntimeArenaCreate)
	g.emit(indent, "%s *%s = (%s *)%s(%s, sizeof(%s));", argsType, blockVar, argsType, RuntimeArenaAlloc, arenaVar, argsType)
	g.emit(indent, "%s->__arena = %s;", blockVar, arenaVar)
	if !direct {
		g.emit(indent, "%s->__clos = %s;", blockVar, g.genExpr(indent, call.Callee))
	}
	for i, a := range call.Args {
		rendered := g.genExpr(indent, a)
		if at := a.ResolvedType(); at != nil && at.IsHeapShaped() && at.Kind != KindAny && at.Kind != KindStruct {
			rendered = fmt.Sprintf("%s(%s, %s)", RuntimeArenaPromote, arenaVar, rendered)
		}
		g.emit(indent, "%s->__a%d = %s;", blockVar, i, rendered)
	}
	g.emit(indent, "sn_thread_t *%s = sn_thread_spawn(%s_tramp, %s);", handleVar, id, blockVar)

	g.lastSpawn = &pendingSpawn{handleVar: handleVar, arenaVar: arenaVar, result: resultType}
	return handleVar
}

// genSync lowers `sync x`. A pending-spawn variable joins through
// sn_thread_sync_with_result, promotes a heap-shaped result into the
// current arena, and tears down the spawn's arena; any other handle
// expression falls back to a bare join.
func (g *CodeGen) genSync(indent int, s *ThreadSyncExpr) string {
	if v, ok := s.Handle.(*VariableExpr); ok {
		if p, found := g.pending[v.Name.Lexeme]; found {
			name := mangleName(v.Name.Lexeme)
			g.emit(indent, "sn_thread_sync_with_result(%s, &%s, sizeof(%s));", p.handleVar, name, name)
			if p.result != nil && p.result.IsHeapShaped() {
				g.emit(indent, "%s = %s;", name, g.promoteFromSpawn(p.result, name))
			}
			g.emit(indent, "%s(%s);", RuntimeArenaDestroy, p.arenaVar)
			delete(g.pending, v.Name.Lexeme)
			if sym := g.table.Lookup(v.Name.Lexeme); sym != nil {
				g.table.Thaw(sym)
			}
			return name
		}
	}
	return fmt.Sprintf("sn_thread_join(%s)", g.genExpr(indent, s.Handle))
}

// promoteFromSpawn copies a spawned call's heap-shaped result out of
// the thread's arena before that arena dies, by the same type-directed
// helper choice as promote-on-return.
func (g *CodeGen) promoteFromSpawn(t *Type, val string) string {
	cur := g.arenas.Current()
	switch t.Kind {
	case KindStr:
		return fmt.Sprintf("%s(%s, %s)", RuntimeArenaPromote, cur, val)
	case KindAny:
		return fmt.Sprintf("sn_any_promote(%s, %s)", cur, val)
	case KindFunction:
		return fmt.Sprintf("sn_closure_promote(%s, %s)", cur, val)
	case KindArray:
		return fmt.Sprintf("%s(%s, %s)", arrayPromoteHelper(t), cur, val)
	default:
		return val
	}
}

func (g *CodeGen) genSyncList(indent int, s *SyncListExpr) string {
	tmp := g.newTemp("joined")
	g.emit(indent, "H %s[%d];", tmp, len(s.Handles))
	for i, h := range s.Handles {
		if v, ok := h.(*VariableExpr); ok {
			if _, found := g.pending[v.Name.Lexeme]; found {
				g.genSync(indent, &ThreadSyncExpr{Handle: h})
				g.emit(indent, "%s[%d] = SN_NIL;", tmp, i)
				continue
			}
		}
		g.emit(indent, "%s[%d] = sn_thread_join(%s);", tmp, i, g.genExpr(indent, h))
	}
	return tmp
}

func (g *CodeGen) genTypeof(indent int, t *TypeofExpr) string {
	opType := t.Operand.ResolvedType()
	if opType != nil && opType.Kind != KindAny {
		// Statically known: fold to the tag name string.
		return fmt.Sprintf("%s(%s, %q)", RuntimeArenaStrdup, g.arenas.Current(), opType.AnyTag())
	}
	return fmt.Sprintf("%s(%s, sn_any_type_name(%s))", RuntimeArenaStrdup, g.arenas.Current(), g.genExpr(indent, t.Operand))
}

func (g *CodeGen) genCast(indent int, a *AsTypeExpr) string {
	operandStr := g.genExpr(indent, a.Operand)
	src := a.Operand.ResolvedType()
	if src != nil && src.Kind == KindAny {
		return fmt.Sprintf("sn_any_unbox_%s(%s)", a.Target.AnyTag(), operandStr)
	}
	if a.Target != nil && a.Target.Kind == KindAny {
		return g.boxExpr(src, operandStr)
	}
	return fmt.Sprintf("(%s)(%s)", a.Target.CType(), operandStr)
}

// genAsVal at a use site deep-clones the operand so the callee never
// aliases the caller's buffer.
func (g *CodeGen) genAsVal(indent int, a *AsValExpr) string {
	expr := g.genExpr(indent, a.Operand)
	t := a.Operand.ResolvedType()
	if t == nil {
		return expr
	}
	switch t.Kind {
	case KindArray:
		if t.Elem != nil && t.Elem.Kind == KindStr {
			return fmt.Sprintf("rt_array_clone_string_v2(%s, %s)", g.arenas.Current(), expr)
		}
		return fmt.Sprintf("rt_array_clone_v2(%s, %s)", g.arenas.Current(), expr)
	case KindStr, KindStruct, KindFunction:
		return fmt.Sprintf("sn_handle_clone(%s, %s)", g.arenas.Current(), expr)
	default:
		return expr
	}
}

func (g *CodeGen) genSizedAlloc(indent int, s *SizedArrayAllocExpr) string {
	count := g.genExpr(indent, s.Count)
	def := defaultValueFor(s.ElemType)
	if s.Default != nil {
		def = g.genExpr(indent, s.Default)
	}
	return fmt.Sprintf("rt_array_alloc_sized_%s_v2(%s, %s, %s)", s.ElemType.AnyTag(), g.arenas.Current(), count, def)
}

func (g *CodeGen) genStructLiteral(indent int, s *StructLiteralExpr) string {
	tmp := g.newTemp("st")
	g.emit(indent, "%s %s = {0};", mangleName(s.StructName.Lexeme), tmp)
	for _, f := range s.Fields {
		g.emit(indent, "%s.%s = %s;", tmp, mangleName(f.Name.Lexeme), g.genExpr(indent, f.Value))
	}
	return tmp
}

// genMatch evaluates the subject once into a temporary, then emits an
// if/else ladder assigning the selected arm into the result temporary.
func (g *CodeGen) genMatch(indent int, m *MatchExpr) string {
	tmp := g.newTemp("match")
	resultType := "sn_any_t"
	if m.ResolvedType() != nil {
		resultType = m.ResolvedType().CType()
	}
	subjType := m.Subject.ResolvedType()
	subjCType := "long long"
	if subjType != nil {
		subjCType = subjType.CType()
	}
	subj := g.newTemp("subj")
	g.emit(indent, "%s %s = %s;", subjCType, subj, g.genExpr(indent, m.Subject))
	g.emit(indent, "%s %s = %s;", resultType, tmp, defaultValueFor(m.ResolvedType()))
	first := true
	for _, cl := range m.Clauses {
		if cl.Pattern == nil {
			// `_` arm parsed into the clause list rather than
			// DefaultExpr.
			if first {
				g.emit(indent, "%s = %s;", tmp, g.genExpr(indent, cl.Result))
			} else {
				g.emit(indent, "else {")
				g.emit(indent+1, "%s = %s;", tmp, g.genExpr(indent+1, cl.Result))
				g.emit(indent, "}")
			}
			continue
		}
		var cond string
		switch {
		case subjType != nil && subjType.Kind == KindStr:
			cond = fmt.Sprintf("sn_string_eq(%s, %s)", subj, g.genExpr(indent, cl.Pattern))
		case subjType != nil && subjType.Kind == KindAny:
			cond = fmt.Sprintf("sn_any_equals(%s, %s)", subj, g.genExpr(indent, cl.Pattern))
		default:
			cond = fmt.Sprintf("(%s) == (%s)", subj, g.genExpr(indent, cl.Pattern))
		}
		kw := "else if"
		if first {
			kw = "if"
			first = false
		}
		g.emit(indent, "%s (%s) {", kw, cond)
		g.emit(indent+1, "%s = %s;", tmp, g.genExpr(indent+1, cl.Result))
		g.emit(indent, "}")
	}
	if m.DefaultExpr != nil {
		if first {
			g.emit(indent, "%s = %s;", tmp, g.genExpr(indent, m.DefaultExpr))
		} else {
			g.emit(indent, "else {")
			g.emit(indent+1, "%s = %s;", tmp, g.genExpr(indent+1, m.DefaultExpr))
			g.emit(indent, "}")
		}
	}
	return tmp
}

func (g *CodeGen) genBlockExpr(indent int, b *BlockExpr) string {
	tmp := g.newTemp("blk")
	blkType := "sn_any_t"
	if b.ResolvedType() != nil {
		blkType = b.ResolvedType().CType()
	}
	g.emit(indent, "%s %s = %s;", blkType, tmp, defaultValueFor(b.ResolvedType()))
	g.emit(indent, "{")
	for i, s := range b.Statements {
		if i == len(b.Statements)-1 {
			if es, ok := s.(*ExprStmt); ok {
				g.emit(indent+1, "%s = %s;", tmp, g.genExpr(indent+1, es.Expr))
				continue
			}
		}
		g.genStmt(indent+1, s)
	}
	g.emit(indent, "}")
	return tmp
}
