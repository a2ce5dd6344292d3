// Completion: 90% - Arena-depth bookkeeping for the code generator.
//
// This is Go-side scaffolding only: the actual bump-allocator, handle
// table, and promote algorithm live in runtimec/arena.c and are emitted
// once per program as embedded C. What lives here is the compiler's
// own model of "which arena does this value's storage belong
// to right now", used by codegen_stmt.go/codegen_closure.go to decide
// when to emit arena_create/arena_destroy/promote calls.
package main

import "fmt"

// Runtime ABI names for the embedded C arena, named here once so every
// codegen file references the same constant rather than a string
// literal.
const (
	RuntimeArenaCreate  = "sn_arena_create"
	RuntimeArenaAlloc   = "sn_arena_alloc"
	RuntimeArenaStrdup  = "sn_arena_strdup"
	RuntimeArenaPromote = "sn_arena_promote"
	RuntimeArenaFree    = "sn_arena_free"
	RuntimeArenaDestroy = "sn_arena_destroy"
	RuntimeArenaBegin   = "sn_arena_begin"
	RuntimeArenaEnd     = "sn_arena_end"
	RuntimeArenaRenew   = "sn_arena_renew"
)

// The three fixed arena variable names the generated C uses: every
// non-main function receives __caller_arena, owns (or aliases) a
// __local_arena, and main's root is __main_arena. The runtime's
// sn_arena_promote_caller macro depends on the first literally.
const (
	CallerArenaVar = "__caller_arena"
	LocalArenaVar  = "__local_arena"
	MainArenaVar   = "__main_arena"
)

// ArenaKind distinguishes the three function-level arena disciplines: a `default` function gets a fresh per-call arena that is
// destroyed on return; `shared` reuses the caller's arena (no
// create/destroy pair emitted); `private` also owns a per-call arena
// but its locals never promote out implicitly.
type ArenaKind int

const (
	ArenaPerCall ArenaKind = iota // FuncDefault
	ArenaShared                   // FuncShared: alias of the caller's arena
	ArenaPrivate                  // FuncPrivate
	ArenaMain                     // the program root arena
	ArenaLoop                     // per-loop scope arena
	ArenaBlock                    // explicit private block arena
)

func ArenaKindFor(mod FunctionModifier) ArenaKind {
	switch mod {
	case FuncShared:
		return ArenaShared
	case FuncPrivate:
		return ArenaPrivate
	default:
		return ArenaPerCall
	}
}

// frame is one entry in the compiler's arena stack: the C variable name
// holding the `Arena*` for this lexical scope, and whether this scope
// actually owns (and must destroy) that arena.
type frame struct {
	cVar string
	owns bool
	kind ArenaKind
}

// ArenaTracker mirrors the symbol table's CurrentArenaDepth but carries
// the emitted C variable name alongside the depth, so codegen can refer
// to "the current arena" without re-deriving it from scratch at every
// statement (the symbol table's arena_depth, generalized to carry the
// C-side handle too).
type ArenaTracker struct {
	stack    []frame
	labelSeq int
}

func NewArenaTracker() *ArenaTracker { return &ArenaTracker{} }

// PushFunctionArena enters a new function body, returning the C
// declaration line to emit (or "" for ArenaShared, which aliases the
// caller's arena variable instead of declaring a new one).
func (t *ArenaTracker) PushFunctionArena(kind ArenaKind) (cVar, decl string) {
	switch kind {
	case ArenaShared:
		t.stack = append(t.stack, frame{cVar: CallerArenaVar, owns: false, kind: kind})
		return CallerArenaVar, ""
	default:
		decl = fmt.Sprintf("Arena *%s = %s(%s);", LocalArenaVar, RuntimeArenaCreate, CallerArenaVar)
		t.stack = append(t.stack, frame{cVar: LocalArenaVar, owns: true, kind: kind})
		return LocalArenaVar, decl
	}
}

// PushMainArena enters the program entry point's root arena frame; the
// caller emits the create call itself since main also replays deferred
// global initializers between creation and the first statement.
func (t *ArenaTracker) PushMainArena() string {
	t.stack = append(t.stack, frame{cVar: MainArenaVar, owns: true, kind: ArenaMain})
	return MainArenaVar
}

// PushScopeArena enters a loop or private-block arena inside the
// current function, returning the C variable name and declaration.
func (t *ArenaTracker) PushScopeArena(kind ArenaKind) (cVar, decl string) {
	t.labelSeq++
	cVar = fmt.Sprintf("__scope_arena%d", t.labelSeq)
	decl = fmt.Sprintf("Arena *%s = %s(%s);", cVar, RuntimeArenaCreate, t.Current())
	t.stack = append(t.stack, frame{cVar: cVar, owns: true, kind: kind})
	return cVar, decl
}

// PopFunctionArena returns the C statement to emit before a function's
// closing brace ("" when the frame doesn't own its arena).
func (t *ArenaTracker) PopFunctionArena() string {
	if len(t.stack) == 0 {
		return ""
	}
	f := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	if !f.owns {
		return ""
	}
	return fmt.Sprintf("%s(%s);", RuntimeArenaDestroy, f.cVar)
}

// TeardownsForReturn renders the destroy calls a `return` must run
// before jumping to the function's return label: every loop and
// private-block arena still open above the function frame, innermost
// first. The function-level arena itself is the postamble's job, so it
// is excluded here. Frames
// are left on the stack - sibling branches after the return still emit
// against them.
func (t *ArenaTracker) TeardownsForReturn() []string {
	var out []string
	for i := len(t.stack) - 1; i >= 0; i-- {
		f := t.stack[i]
		if f.kind == ArenaLoop || f.kind == ArenaBlock {
			if f.owns {
				out = append(out, fmt.Sprintf("%s(%s);", RuntimeArenaDestroy, f.cVar))
			}
			continue
		}
		break
	}
	return out
}

// Current returns the C variable name of the arena in scope, or the
// root arena for top-level/global code (which runs inside main or
// sn_init_globals, both of which bind __main_arena).
func (t *ArenaTracker) Current() string {
	if len(t.stack) == 0 {
		return MainArenaVar
	}
	return t.stack[len(t.stack)-1].cVar
}

// FunctionOwnsArena reports whether the innermost function-level frame
// owns its arena (false inside `shared` functions, where locals already
// live in the caller's arena and promote-on-return is skipped).
func (t *ArenaTracker) FunctionOwnsArena() bool {
	for i := len(t.stack) - 1; i >= 0; i-- {
		switch t.stack[i].kind {
		case ArenaLoop, ArenaBlock:
			continue
		default:
			return t.stack[i].owns
		}
	}
	return false
}

// Depth mirrors SymbolTable.CurrentArenaDepth for codegen passes that
// only need the count, not the C variable name.
func (t *ArenaTracker) Depth() int { return len(t.stack) }

// Transaction emits the begin/renew/end bracket C fragments for one
// handle access span: the payload address is stable between begin and end.
type Transaction struct {
	handleExpr string
}

func BeginTransaction(handleExpr string) Transaction { return Transaction{handleExpr: handleExpr} }

func (tx Transaction) BeginStmt() string {
	return fmt.Sprintf("%s(%s);", RuntimeArenaBegin, tx.handleExpr)
}
func (tx Transaction) RenewStmt() string {
	return fmt.Sprintf("%s(%s);", RuntimeArenaRenew, tx.handleExpr)
}
func (tx Transaction) EndStmt() string {
	return fmt.Sprintf("%s(%s);", RuntimeArenaEnd, tx.handleExpr)
}
