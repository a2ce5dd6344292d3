// Completion: 90% - C emission driver: program structure, name mangling,
// and the top-level per-statement dispatch shared by codegen_*.go.
package main

import (
	"fmt"
	"strings"
)

// pendingSpawn tracks one `var x = spawn f(...)` declaration between
// the spawn site and its later `sync x`: the thread handle variable,
// the arena the spawned call runs against, and the declared result
// type the sync writes back into `x`.
type pendingSpawn struct {
	handleVar string
	arenaVar  string
	result    *Type
}

// CodeGen is the mutable context threaded through every emission pass,
// carrying the arena tracker, symbol table, and the buffers the
// generated .c file is assembled from: forward declarations, globals,
// hoisted lambdas, deferred global initializers, and function bodies.
type CodeGen struct {
	table  *SymbolTable
	arenas *ArenaTracker
	errors *ErrorCollector

	decls    *SafeBuffer // forward declarations and struct/type defs
	globals  *SafeBuffer // emitted global variable definitions
	lambdas  *SafeBuffer // hoisted lambda function definitions
	deferred *SafeBuffer // body of sn_init_globals
	body     *SafeBuffer // function bodies

	emittedGlobals         map[string]bool
	emittedStaticGlobals   map[string]bool
	currentNamespacePrefix string
	currentCanonicalModule string
	tempSeq                int

	capture *CaptureAnalyzer

	// Per-function lowering state, reset by genFunction.
	capturedSet   map[string]bool // locals rewritten as heap cells
	cellVars      map[string]bool // names currently behind a T* cell
	pending       map[string]*pendingSpawn
	closureEscape bool // declared return type is `function`
	currentFn     *FunctionStmt
	returnLabel   string

	// Sentinel carrying a recursive lambda's self-slot patch from
	// expression codegen to the enclosing declaration. -1 means unset.
	recursiveLambdaID  int
	recursiveLambdaEnv string // env typedef name of that lambda
	recursiveLambdaVar string // mangled self-slot member name

	// Spawn-site sentinel, same handoff pattern: genSpawn fills it,
	// genLocalVarDecl consumes it to bind the pending record.
	lastSpawn *pendingSpawn

	structSizes map[string]int  // nominal struct -> byte size
	hotFuncs    map[string]bool // PGO-marked hot functions
}

func NewCodeGen(table *SymbolTable, errors *ErrorCollector) *CodeGen {
	return &CodeGen{
		table:                table,
		arenas:               NewArenaTracker(),
		errors:               errors,
		decls:                NewSafeBuffer("decls"),
		globals:              NewSafeBuffer("globals"),
		lambdas:              NewSafeBuffer("lambdas"),
		deferred:             NewSafeBuffer("deferred"),
		body:                 NewSafeBuffer("body"),
		emittedGlobals:       make(map[string]bool),
		emittedStaticGlobals: make(map[string]bool),
		capture:              NewCaptureAnalyzer(table),
		capturedSet:          make(map[string]bool),
		cellVars:             make(map[string]bool),
		pending:              make(map[string]*pendingSpawn),
		recursiveLambdaID:    -1,
		structSizes:          make(map[string]int),
		hotFuncs:             make(map[string]bool),
	}
}

// SetHotFunctions feeds the optimizer's PGO verdicts in before
// generation starts.
func (g *CodeGen) SetHotFunctions(hot map[string]bool) {
	if hot != nil {
		g.hotFuncs = hot
	}
}

func (g *CodeGen) newTemp(prefix string) string {
	g.tempSeq++
	return fmt.Sprintf("__%s%d", prefix, g.tempSeq)
}

// mangleName rewrites a source identifier into a C-safe symbol: a fixed
// prefix plus the raw name, since the source language freely uses
// identifiers (like leading
// underscores or keywords-as-field-names) that would otherwise collide
// with C reserved words or runtime symbol names.
func mangleName(raw string) string {
	return "sn_" + raw
}

// mangleNamespaced renders `<ns1>__<ns2>__..__<name>` for symbols
// reached through a namespaced import chain.
func mangleNamespaced(path []string, name string) string {
	if len(path) == 0 {
		return mangleName(name)
	}
	return mangleName(strings.Join(path, "__") + "__" + name)
}

// emit writes a line of C into the function-body buffer at the given
// indent level (spaces rather than tabs, since the emitted C is meant
// to be readably diffable by a human debugging the pipeline).
func (g *CodeGen) emit(indent int, format string, args ...any) {
	fmt.Fprintf(g.body, "%s%s\n", strings.Repeat("    ", indent), fmt.Sprintf(format, args...))
}

func (g *CodeGen) emitGlobal(format string, args ...any) {
	fmt.Fprintf(g.globals, "%s\n", fmt.Sprintf(format, args...))
}

func (g *CodeGen) emitDecl(format string, args ...any) {
	fmt.Fprintf(g.decls, "%s\n", fmt.Sprintf(format, args...))
}

// GenerateProgram is the top-level entry point: emits the runtime
// include, all struct/type declarations, function prototypes, globals
// (with the static/namespace-prefix dedup code_gen_stmt_var.c
// requires), the deferred-global initializer, then all function
// bodies. When the source declares no `main`, a synthetic one wires the
// top-level executable statements under __main_arena.
func (g *CodeGen) GenerateProgram(prog *Program) string {
	g.emitDecl("#include \"runtimec/sindarin_runtime.h\"")
	g.emitDecl("")

	var topLevelExec []Statement
	var functions []*FunctionStmt
	hasMain := false

	for _, s := range prog.Statements {
		switch st := s.(type) {
		case *StructDeclStmt:
			g.genStructDecl(st)
		case *TypeDeclStmt:
			// Pure alias - no C-side representation needed beyond what
			// the underlying type already emits.
		case *FunctionStmt:
			functions = append(functions, st)
			if st.Name.Lexeme == "main" {
				hasMain = true
			}
		case *VarDeclStmt:
			g.genGlobalVarDecl(st)
		case *ImportStmt, *PragmaStmt:
			// Resolved/consumed by import_resolver.go and the pragma
			// alias path before this pass runs.
		default:
			topLevelExec = append(topLevelExec, s)
		}
	}

	// Prototypes ahead of every body so call and hoisting order never
	// matters inside the emitted unit.
	g.emitDecl("static void sn_init_globals(Arena *__main_arena);")
	for _, fn := range functions {
		if fn.Name.Lexeme == "main" {
			continue
		}
		if fn.IsNative {
			g.emitDecl("extern %s;", g.functionSignature(fn))
		} else {
			g.emitDecl("%s;", g.functionSignature(fn))
		}
	}
	g.emitDecl("")

	for _, fn := range functions {
		g.genFunction(fn)
	}

	if !hasMain {
		g.emit(0, "int main(void) {")
		g.arenas.PushMainArena()
		g.emit(1, "Arena *__main_arena = %s(NULL);", RuntimeArenaCreate)
		g.emit(1, "sn_init_globals(__main_arena);")
		for _, s := range topLevelExec {
			g.genStmt(1, s)
		}
		g.emit(1, "%s(__main_arena);", RuntimeArenaDestroy)
		g.emit(1, "return 0;")
		g.emit(0, "}")
		g.arenas.PopFunctionArena()
	}

	var out strings.Builder
	out.Write(g.decls.Bytes())
	out.WriteString("\n")
	out.Write(g.globals.Bytes())
	out.WriteString("\n")
	out.Write(g.lambdas.Bytes())
	out.WriteString("static void sn_init_globals(Arena *__main_arena) {\n")
	out.WriteString("    (void)__main_arena;\n")
	out.Write(g.deferred.Bytes())
	out.WriteString("}\n\n")
	out.Write(g.body.Bytes())
	return out.String()
}

func (g *CodeGen) genStructDecl(st *StructDeclStmt) {
	g.emitDecl("typedef struct %s {", mangleName(st.Name.Lexeme))
	size := 0
	for _, f := range st.Fields {
		g.emitDecl("    %s %s;", f.Type.CType(), mangleName(f.Name.Lexeme))
		size += g.typeByteSize(f.Type)
	}
	g.emitDecl("} %s;", mangleName(st.Name.Lexeme))
	g.emitDecl("")
	g.structSizes[st.Name.Lexeme] = size
}

// typeByteSize is TypeSize plus the struct sizes this generation run
// has already laid out, backing the stack-vs-heap threshold in variable
// lowering.
func (g *CodeGen) typeByteSize(t *Type) int {
	if t != nil && t.Kind == KindStruct {
		return g.structSizes[t.StructName]
	}
	return TypeSize(t)
}

// defaultValueFor renders the zero value used to seed _return_value and
// deferred-global declarations.
func defaultValueFor(t *Type) string {
	if t == nil {
		return "0"
	}
	switch t.Kind {
	case KindStr, KindArray, KindFunction:
		return "SN_NIL"
	case KindAny:
		return "sn_any_box_nil()"
	case KindStruct:
		return fmt.Sprintf("(%s){0}", t.CType())
	case KindBool:
		return "false"
	case KindDouble, KindFloat:
		return "0.0"
	default:
		return "0"
	}
}
