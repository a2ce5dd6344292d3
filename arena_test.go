package main

import (
	"strings"
	"testing"
)

func TestArenaTrackerDefaultFunction(t *testing.T) {
	tr := NewArenaTracker()
	cVar, decl := tr.PushFunctionArena(ArenaPerCall)
	if cVar != LocalArenaVar {
		t.Fatalf("expected %s, got %s", LocalArenaVar, cVar)
	}
	if !strings.Contains(decl, RuntimeArenaCreate) || !strings.Contains(decl, CallerArenaVar) {
		t.Fatalf("per-call arena must be created from the caller's: %s", decl)
	}
	if tr.Current() != LocalArenaVar {
		t.Fatalf("current arena should be the local one, got %s", tr.Current())
	}
	if !tr.FunctionOwnsArena() {
		t.Fatal("a default function owns its arena")
	}
	teardown := tr.PopFunctionArena()
	if !strings.Contains(teardown, RuntimeArenaDestroy) {
		t.Fatalf("popping an owned frame must destroy it: %q", teardown)
	}
}

func TestArenaTrackerSharedFunction(t *testing.T) {
	tr := NewArenaTracker()
	cVar, decl := tr.PushFunctionArena(ArenaShared)
	if cVar != CallerArenaVar || decl != "" {
		t.Fatalf("shared functions alias the caller's arena: cVar=%s decl=%q", cVar, decl)
	}
	if tr.FunctionOwnsArena() {
		t.Fatal("a shared function must not own (or destroy) its arena")
	}
	if teardown := tr.PopFunctionArena(); teardown != "" {
		t.Fatalf("no teardown for an aliased arena, got %q", teardown)
	}
}

func TestArenaTrackerTopLevelIsMainArena(t *testing.T) {
	tr := NewArenaTracker()
	if tr.Current() != MainArenaVar {
		t.Fatalf("top-level code runs against %s, got %s", MainArenaVar, tr.Current())
	}
}

func TestArenaTrackerReturnTeardowns(t *testing.T) {
	tr := NewArenaTracker()
	tr.PushFunctionArena(ArenaPerCall)
	_, loopDecl := tr.PushScopeArena(ArenaLoop)
	if !strings.Contains(loopDecl, LocalArenaVar) {
		t.Fatalf("loop arena should chain off the function arena: %s", loopDecl)
	}

	teardowns := tr.TeardownsForReturn()
	if len(teardowns) != 1 {
		t.Fatalf("a return inside one loop destroys exactly that loop arena, got %v", teardowns)
	}
	if strings.Contains(teardowns[0], LocalArenaVar) {
		t.Fatal("the function arena is the postamble's job, not the return site's")
	}

	tr.PopFunctionArena() // loop frame
	if got := tr.TeardownsForReturn(); len(got) != 0 {
		t.Fatalf("no loop frames left, expected no teardowns, got %v", got)
	}
}

func TestArenaTrackerNestedScopeArenas(t *testing.T) {
	tr := NewArenaTracker()
	tr.PushFunctionArena(ArenaPerCall)
	outer, _ := tr.PushScopeArena(ArenaLoop)
	inner, _ := tr.PushScopeArena(ArenaBlock)

	teardowns := tr.TeardownsForReturn()
	if len(teardowns) != 2 {
		t.Fatalf("expected 2 teardowns, got %v", teardowns)
	}
	if !strings.Contains(teardowns[0], inner) || !strings.Contains(teardowns[1], outer) {
		t.Fatalf("teardowns must run innermost first: %v", teardowns)
	}
}

func TestTransactionBracketShapes(t *testing.T) {
	tx := BeginTransaction("handle")
	if tx.BeginStmt() != "sn_arena_begin(handle);" {
		t.Errorf("begin: %q", tx.BeginStmt())
	}
	if tx.RenewStmt() != "sn_arena_renew(handle);" {
		t.Errorf("renew: %q", tx.RenewStmt())
	}
	if tx.EndStmt() != "sn_arena_end(handle);" {
		t.Errorf("end: %q", tx.EndStmt())
	}
}
