package main

import (
	"testing"
)

func tok(name string) Token {
	return Token{Type: TokIdent, Lexeme: name, Line: 1, Col: 1}
}

func TestScopeShadowing(t *testing.T) {
	table := NewSymbolTable()
	outer := table.AddSymbol(tok("x"), TypeInt, SymLocal, QualDefault)
	table.PushScope()
	inner := table.AddSymbol(tok("x"), TypeStr, SymLocal, QualDefault)

	if got := table.Lookup("x"); got != inner {
		t.Fatal("inner scope declaration should shadow the outer one")
	}
	table.PopScope()
	if got := table.Lookup("x"); got != outer {
		t.Fatal("popping the scope should restore the outer binding")
	}
}

func TestLookupCurrentOnlySeesInnermost(t *testing.T) {
	table := NewSymbolTable()
	table.AddSymbol(tok("x"), TypeInt, SymLocal, QualDefault)
	table.PushScope()
	if table.LookupCurrent("x") != nil {
		t.Fatal("LookupCurrent must not search enclosing scopes")
	}
	if table.Lookup("x") == nil {
		t.Fatal("Lookup must search enclosing scopes")
	}
}

func TestArenaDepthTracking(t *testing.T) {
	table := NewSymbolTable()
	if table.CurrentArenaDepth != 0 {
		t.Fatalf("fresh table should start at arena depth 0, got %d", table.CurrentArenaDepth)
	}
	table.PushArena()
	sym := table.AddSymbol(tok("local"), TypeInt, SymLocal, QualDefault)
	if sym.ArenaDepth != 1 {
		t.Errorf("symbol should record the arena depth at declaration, got %d", sym.ArenaDepth)
	}
	table.PushArena()
	if table.CurrentArenaDepth != 2 {
		t.Errorf("expected depth 2, got %d", table.CurrentArenaDepth)
	}
	table.PopArena()
	table.PopArena()
	if table.CurrentArenaDepth != 0 {
		t.Errorf("expected depth 0 after popping, got %d", table.CurrentArenaDepth)
	}
}

func TestInternStability(t *testing.T) {
	table := NewSymbolTable()
	a := table.Intern("payload")
	b := table.Intern("payload")
	if a != b {
		t.Fatal("interning the same content twice must return the same key")
	}
	if table.Intern("other") == a {
		t.Fatal("distinct names should not collide on the intern key")
	}
}

func TestFreezeThawLifecycle(t *testing.T) {
	table := NewSymbolTable()
	handle := table.AddSymbol(tok("r"), TypeInt, SymLocal, QualDefault)
	captured := table.AddSymbol(tok("d"), TypeInt, SymLocal, QualDefault)

	table.Freeze(handle, captured)
	if captured.ThreadState != ThreadPending {
		t.Fatal("a frozen symbol must be pending until sync")
	}
	if !handle.Frozen.Frozen || handle.Frozen.FreezeCount != 1 {
		t.Fatalf("handle should track its frozen arguments: %+v", handle.Frozen)
	}

	table.Thaw(handle)
	if captured.ThreadState != ThreadSynchronized {
		t.Fatal("thaw must release the captured symbol")
	}
	if handle.ThreadState != ThreadSynchronized {
		t.Fatal("thaw must mark the handle synchronized")
	}
	if handle.Frozen.Frozen {
		t.Fatal("thaw must clear the frozen flag")
	}
}

func TestNamespaceNestedLookup(t *testing.T) {
	table := NewSymbolTable()
	inner := newScope(nil, 0)
	inner.add(&Symbol{Name: tok("helper"), Type: TypeInt, Kind: SymGlobal, IsFunction: true})

	ns := table.AddSymbol(tok("math"), nil, SymNamespace, QualDefault)
	ns.IsNamespace = true
	ns.NamespaceName = "math"
	ns.NamespaceSymbols = inner

	sym, err := table.LookupNamespaced([]string{"math", "helper"})
	if err != nil {
		t.Fatalf("nested lookup failed: %v", err)
	}
	if sym.Name.Lexeme != "helper" {
		t.Fatalf("wrong symbol resolved: %v", sym.Name.Lexeme)
	}

	if _, err := table.LookupNamespaced([]string{"math", "absent"}); err == nil {
		t.Fatal("missing member should error")
	}
	if _, err := table.LookupNamespaced([]string{"nosuch", "x"}); err == nil {
		t.Fatal("unknown namespace root should error")
	}
}

func TestTypeSizeTable(t *testing.T) {
	cases := []struct {
		typ  *Type
		want int
	}{
		{TypeBool, 1},
		{TypeByte, 1},
		{TypeInt32, 4},
		{TypeFloat, 4},
		{TypeLong, 8},
		{TypeDouble, 8},
		{TypeStr, 8},
	}
	for _, c := range cases {
		if got := TypeSize(c.typ); got != c.want {
			t.Errorf("TypeSize(%v) = %d, want %d", c.typ, got, c.want)
		}
	}
}
