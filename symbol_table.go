// Completion: 100% - Symbol table and scope management
package main

import (
	"fmt"

	"sindarinc/internal/engine"
)

// SymbolKind is the category a name is bound as.
type SymbolKind int

const (
	SymGlobal SymbolKind = iota
	SymLocal
	SymParam
	SymNamespace
	SymType
)

// Symbol binds a declared name to a Type and the full set of qualifiers
// and lifecycle state the passes track per name.
type Symbol struct {
	Name   Token
	Type   *Type
	Kind   SymbolKind

	MemQual          MemoryQualifier
	SyncMod          SyncModifier
	FuncMod          FunctionModifier // effective modifier
	DeclaredFuncMod  FunctionModifier // as written in source
	IsFunction       bool
	IsNative         bool
	CAlias           string

	ArenaDepth            int
	DeclarationScopeDepth int

	ThreadState ThreadState
	Frozen      FrozenState

	// A symbol that is itself a namespace carries a nested table of the
	// symbols it exports, so `ns.inner.name` resolves by walking
	// Namespace chains rather than flat name mangling alone.
	IsNamespace     bool
	NamespaceName   string
	NamespaceSymbols *Scope

	next *Symbol // unused; a Scope keeps its symbols in a slice and a name map
}

// InternedName returns the content-interned copy of the symbol's name,
// the same identity used as the emitted C mangled-name seed.
func (s *Symbol) InternedName() string { return s.Name.Lexeme }

// Scope is one lexical level: a function body, a block, a lambda's
// parameter list, or the global/module scope.
type Scope struct {
	symbols         []*Symbol
	byName          map[string]*Symbol
	enclosing       *Scope
	arenaDepth      int
}

func newScope(enclosing *Scope, arenaDepth int) *Scope {
	return &Scope{byName: make(map[string]*Symbol), enclosing: enclosing, arenaDepth: arenaDepth}
}

func (s *Scope) add(sym *Symbol) {
	s.symbols = append(s.symbols, sym)
	s.byName[sym.Name.Lexeme] = sym
}

func (s *Scope) lookupLocal(name string) *Symbol {
	return s.byName[name]
}

// SymbolTable is the per-compile-unit scope stack plus depth counters:
// current arena depth and scope depth, which the passes consult, and
// LoopDepth, which no pass updates (the checker counts loops itself). Intern is the content-interning table for symbol names,
// keyed by internal/engine's FNV identifier hash.
type SymbolTable struct {
	current           *Scope
	global            *Scope
	scopes            []*Scope
	CurrentArenaDepth int
	ScopeDepth        int
	LoopDepth         int
	intern            map[string]uint64
	types             map[string]*Type // declared type aliases, by name
}

func NewSymbolTable() *SymbolTable {
	g := newScope(nil, 0)
	return &SymbolTable{
		current: g,
		global:  g,
		scopes:  []*Scope{g},
		intern:  make(map[string]uint64),
		types:   make(map[string]*Type),
	}
}

// Intern content-interns a name, returning a stable hash key usable as a
// map key elsewhere in the compiler (grounded on internal/engine's
// FNV-1a identifier hashing, generalized from "instruction operand key"
// to "interned symbol name key").
func (t *SymbolTable) Intern(name string) uint64 {
	if h, ok := t.intern[name]; ok {
		return h
	}
	h := engine.HashStringKey(name)
	t.intern[name] = h
	return h
}

func (t *SymbolTable) PushScope() {
	s := newScope(t.current, t.CurrentArenaDepth)
	t.current = s
	t.scopes = append(t.scopes, s)
	t.ScopeDepth++
}

func (t *SymbolTable) PopScope() {
	if t.current.enclosing != nil {
		t.current = t.current.enclosing
	}
	t.ScopeDepth--
}

// PushArena enters a new arena-owning scope: the checker calls it for
// function bodies and lambda bodies, so downstream code can tell which
// arena a symbol's storage is allocated in.
func (t *SymbolTable) PushArena() {
	t.CurrentArenaDepth++
	t.PushScope()
}

func (t *SymbolTable) PopArena() {
	t.PopScope()
	t.CurrentArenaDepth--
}

// AddSymbol adds a local/param symbol of the given kind.
func (t *SymbolTable) AddSymbol(name Token, typ *Type, kind SymbolKind, qual MemoryQualifier) *Symbol {
	sym := &Symbol{
		Name: name, Type: typ, Kind: kind, MemQual: qual,
		ArenaDepth: t.CurrentArenaDepth, DeclarationScopeDepth: t.ScopeDepth,
	}
	t.Intern(name.Lexeme)
	t.current.add(sym)
	return sym
}

// AddFunction registers a named function symbol.
func (t *SymbolTable) AddFunction(name Token, typ *Type, declared, effective FunctionModifier, isNative bool, cAlias string) *Symbol {
	sym := &Symbol{
		Name: name, Type: typ, Kind: SymGlobal,
		IsFunction: true, IsNative: isNative, CAlias: cAlias,
		DeclaredFuncMod: declared, FuncMod: effective,
	}
	t.Intern(name.Lexeme)
	t.global.add(sym)
	return sym
}

// AddType registers a type alias / opaque type declaration.
func (t *SymbolTable) AddType(name Token, typ *Type) {
	t.types[name.Lexeme] = typ
	t.global.add(&Symbol{Name: name, Type: typ, Kind: SymType})
}

func (t *SymbolTable) LookupType(name Token) *Type {
	return t.types[name.Lexeme]
}

// Lookup walks the scope chain from current outward.
func (t *SymbolTable) Lookup(name string) *Symbol {
	for s := t.current; s != nil; s = s.enclosing {
		if sym := s.lookupLocal(name); sym != nil {
			return sym
		}
	}
	return nil
}

// LookupCurrent only checks the innermost scope - used to detect
// shadow/redeclaration errors.
func (t *SymbolTable) LookupCurrent(name string) *Symbol {
	return t.current.lookupLocal(name)
}

// LookupNamespaced resolves `ns.inner.name` by walking nested
// Namespace scopes.
func (t *SymbolTable) LookupNamespaced(path []string) (*Symbol, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty namespace path")
	}
	sym := t.Lookup(path[0])
	if sym == nil {
		return nil, fmt.Errorf("unknown identifier: %s", path[0])
	}
	for _, part := range path[1:] {
		if !sym.IsNamespace || sym.NamespaceSymbols == nil {
			return nil, fmt.Errorf("%s is not a namespace", sym.Name.Lexeme)
		}
		next := sym.NamespaceSymbols.lookupLocal(part)
		if next == nil {
			return nil, fmt.Errorf("unknown identifier %s in namespace %s", part, sym.Name.Lexeme)
		}
		sym = next
	}
	return sym, nil
}

// Freeze marks sym as captured by a pending spawn, tracking it on the
// spawn handle's own FrozenArgs list so the matching sync can release
// exactly the symbols that spawn froze.
func (t *SymbolTable) Freeze(handle *Symbol, captured *Symbol) {
	handle.Frozen.freeze(captured)
	captured.ThreadState = ThreadPending
}

func (t *SymbolTable) Thaw(handle *Symbol) {
	for _, captured := range handle.Frozen.FrozenArgs {
		captured.ThreadState = ThreadSynchronized
	}
	handle.Frozen.thaw()
	handle.ThreadState = ThreadSynchronized
}

// TypeSize is the byte width used for arena allocation sizing and the
// stack-vs-heap struct threshold in variable lowering.
func TypeSize(t *Type) int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case KindByte, KindBool, KindChar:
		return 1
	case KindInt32, KindUint32, KindFloat:
		return 4
	case KindInt, KindUint, KindLong, KindDouble:
		return 8
	case KindStr, KindArray, KindFunction, KindAny:
		return 8 // handle is a fat pointer at the ABI boundary
	case KindStruct:
		return 0 // CodeGen.typeByteSize supplies struct sizes from its own layout table
	default:
		return 8
	}
}
