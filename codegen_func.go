// Completion: 90% - Function emission: signature, arena discipline
// prologue/epilogue, promote-on-return, and the tail-call-to-loop
// rewrite the optimizer marks ahead of this pass.
//
// Preamble order: arena, _return_value, as-val clones, capture prescan.
// Every return path funnels through the `<fn>_return:` label, where the
// promote helper for a heap-shaped result is chosen by its type.
package main

import (
	"fmt"
	"strings"
)

// genFunction emits one top-level function, including its arena
// discipline prologue/epilogue. A `native` function only gets a forward
// declaration - its body is supplied by the FFI pragma's linked object,
// not generated C.
func (g *CodeGen) genFunction(fn *FunctionStmt) {
	if fn.IsNative {
		return // prototype already emitted as extern by GenerateProgram
	}

	isMain := fn.Name.Lexeme == "main"

	// Fresh per-function lowering state, restored on exit so a nested
	// function doesn't clobber its parent's.
	savedCells := g.cellVars
	savedPending := g.pending
	savedFn := g.currentFn
	savedLabel := g.returnLabel
	savedEscape := g.closureEscape
	savedCaptured := g.capturedSet
	g.cellVars = make(map[string]bool)
	g.pending = make(map[string]*pendingSpawn)
	g.currentFn = fn
	g.returnLabel = mangleName(fn.Name.Lexeme) + "_return"
	g.closureEscape = fn.ReturnType != nil && fn.ReturnType.Kind == KindFunction

	// Pre-scan the body so variable lowering knows which locals nested
	// lambdas capture.
	g.capture.Scan(fn.Body)
	g.capturedSet = make(map[string]bool)
	for _, name := range g.capture.Captured() {
		g.capturedSet[name] = true
	}

	// `as ref` primitive/struct parameters arrive pointer-typed, so
	// body references read and write through them like any other cell.
	for _, p := range fn.Params {
		if p.MemQual == QualAsRef && p.Type != nil && (p.Type.IsPrimitive() || p.Type.Kind == KindStruct) {
			g.cellVars[p.Name.Lexeme] = true
		}
	}

	g.emit(0, "%s {", g.functionSignature(fn))

	if isMain {
		g.arenas.PushMainArena()
		g.emit(1, "Arena *%s = %s(NULL);", MainArenaVar, RuntimeArenaCreate)
		g.emit(1, "sn_init_globals(%s);", MainArenaVar)
		g.emit(1, "int _return_value = 0;")
		if len(fn.Params) == 1 {
			g.emit(1, "H %s = sn_args_create(%s, argc, argv);", mangleName(fn.Params[0].Name.Lexeme), MainArenaVar)
		}
	} else {
		_, decl := g.arenas.PushFunctionArena(ArenaKindFor(fn.Modifier))
		if decl != "" {
			g.emit(1, "%s", decl)
		}
		if fn.ReturnType != nil && fn.ReturnType.Kind != KindVoid {
			g.emit(1, "%s _return_value = %s;", fn.ReturnType.CType(), defaultValueFor(fn.ReturnType))
		}
		g.genAsValParamClones(fn)
	}

	if fn.TailCallMap != nil && hasTailCall(fn.TailCallMap) {
		g.genTailCallLoopBody(fn)
	} else {
		for _, s := range fn.Body {
			g.genStmt(1, s)
		}
	}

	g.genReturnPostamble(fn, isMain)
	g.emit(0, "}")
	g.emit(0, "")

	g.arenas.PopFunctionArena()
	g.cellVars = savedCells
	g.pending = savedPending
	g.currentFn = savedFn
	g.returnLabel = savedLabel
	g.closureEscape = savedEscape
	g.capturedSet = savedCaptured
}

// genAsValParamClones deep-copies each `as val` reference parameter
// into the local arena so the caller's buffer is never mutated
// mid-call.
func (g *CodeGen) genAsValParamClones(fn *FunctionStmt) {
	for _, p := range fn.Params {
		if p.MemQual != QualAsVal || p.Type == nil || !p.Type.IsHeapShaped() {
			continue
		}
		name := mangleName(p.Name.Lexeme)
		switch p.Type.Kind {
		case KindArray:
			if p.Type.Elem != nil && p.Type.Elem.Kind == KindStr {
				g.emit(1, "%s = rt_array_clone_string_v2(%s, %s);", name, g.arenas.Current(), name)
			} else {
				g.emit(1, "%s = rt_array_clone_v2(%s, %s);", name, g.arenas.Current(), name)
			}
		case KindStr, KindFunction:
			g.emit(1, "%s = sn_handle_clone(%s, %s);", name, g.arenas.Current(), name)
		}
	}
}

// genReturnPostamble emits the `<fn>_return:` label block: promote the
// return value into the caller's arena when this frame is about to die,
// destroy the local arena unless it aliases the caller's, and return
// on every path.
func (g *CodeGen) genReturnPostamble(fn *FunctionStmt, isMain bool) {
	g.emit(0, "%s:;", g.returnLabel)

	hasResult := fn.ReturnType != nil && fn.ReturnType.Kind != KindVoid
	shared := fn.Modifier == FuncShared

	if hasResult && !isMain && !shared && fn.ReturnType.IsHeapShaped() {
		g.emit(1, "_return_value = %s;", g.promoteForReturn(fn.ReturnType, "_return_value"))
	}

	if isMain {
		g.emit(1, "%s(%s);", RuntimeArenaDestroy, MainArenaVar)
		g.emit(1, "return _return_value;")
		return
	}
	if !shared {
		g.emit(1, "%s(%s);", RuntimeArenaDestroy, LocalArenaVar)
	}
	if hasResult {
		g.emit(1, "return _return_value;")
	} else {
		g.emit(1, "return;")
	}
}

// promoteForReturn picks the runtime helper matching the return type:
// scalar strings promote directly, arrays by element shape, structs via
// the sized generic promote (pointer dereferenced back to a value),
// closures via their stored size, `any` via sn_any_promote.
func (g *CodeGen) promoteForReturn(t *Type, val string) string {
	switch t.Kind {
	case KindStr:
		return fmt.Sprintf("sn_arena_promote_caller(%s)", val)
	case KindAny:
		return fmt.Sprintf("sn_any_promote(%s, %s)", CallerArenaVar, val)
	case KindFunction:
		return fmt.Sprintf("sn_closure_promote(%s, %s)", CallerArenaVar, val)
	case KindStruct:
		return fmt.Sprintf("*(%s *)sn_promote_sized(%s, &%s, sizeof(%s))", t.CType(), CallerArenaVar, val, t.CType())
	case KindArray:
		return fmt.Sprintf("%s(%s, %s)", arrayPromoteHelper(t), CallerArenaVar, val)
	default:
		return val
	}
}

// arrayPromoteHelper resolves the element-typed deep-promotion entry
// point for an array type, by element shape and nesting depth
// across the promote_array_* family.
func arrayPromoteHelper(t *Type) string {
	depth := 0
	elem := t
	for elem != nil && elem.Kind == KindArray {
		depth++
		elem = elem.Elem
	}
	if elem == nil {
		return "sn_promote_array_handle"
	}
	switch elem.Kind {
	case KindStr:
		switch depth {
		case 1:
			return "sn_promote_array_string"
		case 2:
			return "sn_promote_array2_string"
		default:
			return "sn_promote_array3_string"
		}
	case KindAny:
		if depth >= 2 {
			return "sn_promote_array_any_2d"
		}
		return "sn_promote_array_any"
	case KindStruct, KindFunction:
		return "sn_promote_array_handle"
	default:
		if depth >= 3 {
			return "sn_promote_array_handle_3d"
		}
		if depth >= 2 {
			return "sn_promote_array_handle"
		}
		// Primitive elements carry no interior handles; the plain
		// promote's byte copy is the whole job.
		return RuntimeArenaPromote
	}
}

func hasTailCall(m map[int]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

// genTailCallLoopBody rewrites a self-recursive tail call into a C
// `for (;;)` loop that reassigns the parameters and continues, turning
// real recursion into iteration: the optimizer has already marked which
// return statements are eligible via fn.TailCallMap, keyed by statement
// index within fn.Body.
func (g *CodeGen) genTailCallLoopBody(fn *FunctionStmt) {
	g.emit(1, "for (;;) {")
	for i, s := range fn.Body {
		if fn.TailCallMap[i] {
			if ret, ok := s.(*ReturnStmt); ok {
				if call, ok := ret.Value.(*CallExpr); ok {
					g.genTailCallReassign(2, fn, call)
					continue
				}
			}
		}
		g.genStmt(2, s)
	}
	g.emit(1, "}")
}

// genTailCallReassign writes the new argument values into per-argument
// temporaries first when there is more than one parameter, so an
// argument expression reading a parameter the previous assignment
// already clobbered still sees the old value.
func (g *CodeGen) genTailCallReassign(indent int, fn *FunctionStmt, call *CallExpr) {
	if len(call.Args) == 1 && len(fn.Params) == 1 {
		g.emit(indent, "%s = %s;", mangleName(fn.Params[0].Name.Lexeme), g.genExpr(indent, call.Args[0]))
		g.emit(indent, "continue;")
		return
	}
	tmpNames := make([]string, len(call.Args))
	for i, a := range call.Args {
		tmpNames[i] = fmt.Sprintf("__tail_arg_%d__", i)
		ctype := "long long"
		if i < len(fn.Params) && fn.Params[i].Type != nil {
			ctype = fn.Params[i].Type.CType()
		}
		g.emit(indent, "%s %s = %s;", ctype, tmpNames[i], g.genExpr(indent, a))
	}
	for i, p := range fn.Params {
		if i < len(tmpNames) {
			g.emit(indent, "%s = %s;", mangleName(p.Name.Lexeme), tmpNames[i])
		}
	}
	g.emit(indent, "continue;")
}

// functionSignature renders the C prototype; every generated non-main
// function takes the caller's arena as an implicit first parameter, and
// `as ref` primitive or struct parameters become pointer-typed
// at the ABI level.
func (g *CodeGen) functionSignature(fn *FunctionStmt) string {
	if fn.Name.Lexeme == "main" {
		if len(fn.Params) == 1 {
			return "int main(int argc, char **argv)"
		}
		return "int main(void)"
	}
	ret := "void"
	if fn.ReturnType != nil {
		ret = fn.ReturnType.CType()
	}
	name := mangleName(fn.Name.Lexeme)
	if fn.CAlias != "" {
		name = fn.CAlias
	} else if g.currentNamespacePrefix != "" {
		name = mangleName(g.currentNamespacePrefix + "__" + fn.Name.Lexeme)
	}
	params := []string{"Arena *" + CallerArenaVar}
	for _, p := range fn.Params {
		ctype := p.Type.CType()
		if p.MemQual == QualAsRef && (p.Type.IsPrimitive() || p.Type.Kind == KindStruct) {
			ctype += " *"
		}
		params = append(params, ctype+" "+mangleName(p.Name.Lexeme))
	}
	return ret + " " + name + "(" + strings.Join(params, ", ") + ")"
}
