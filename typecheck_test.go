package main

import (
	"strings"
	"testing"
)

func checkSource(t *testing.T, src string) (*Program, *ErrorCollector) {
	t.Helper()
	p := NewParserWithFilename(src, "test.sn")
	prog := p.ParseProgram()
	if p.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	errs := NewErrorCollector(20)
	checker := NewChecker(NewSymbolTable(), errs)
	checker.CheckProgram("test.sn", prog)
	return prog, errs
}

func TestCheckUndefinedIdentifier(t *testing.T) {
	_, errs := checkSource(t, `
fn main() {
    print(missing)
}
`)
	if !errs.HasErrors() {
		t.Fatal("expected an undefined-identifier error")
	}
}

func TestCheckSuggestionForTypo(t *testing.T) {
	_, errs := checkSource(t, `
fn main() {
    var counter: int = 0
    print(countr)
}
`)
	if !errs.HasErrors() {
		t.Fatal("expected an error for the typo")
	}
	if !strings.Contains(errs.Report(false), "counter") {
		t.Error("expected the report to suggest the close identifier")
	}
}

func TestCheckAnyAcceptsConcrete(t *testing.T) {
	_, errs := checkSource(t, `
fn main() {
    var a: any = 7
    var b: any = "text"
    var c: any = [1, 2]
}
`)
	if errs.HasErrors() {
		t.Fatalf("any should accept any concrete initializer: %s", errs.Report(false))
	}
}

func TestCheckTypeMismatchRejected(t *testing.T) {
	_, errs := checkSource(t, `
fn main() {
    var s: str = 7
}
`)
	if !errs.HasErrors() {
		t.Fatal("expected a type mismatch error assigning int to str")
	}
}

func TestCheckNumericWideningAllowed(t *testing.T) {
	_, errs := checkSource(t, `
fn main() {
    var n: long = 7
    var d: double = 1
}
`)
	if errs.HasErrors() {
		t.Fatalf("numeric widening should be accepted: %s", errs.Report(false))
	}
}

func TestCheckRecursiveLambdaMarked(t *testing.T) {
	prog, errs := checkSource(t, `
fn main() {
    var f = (n: int) => f(n)
}
`)
	if errs.HasErrors() {
		t.Fatalf("recursive lambda should check cleanly: %s", errs.Report(false))
	}
	fn := prog.Statements[0].(*FunctionStmt)
	v := fn.Body[0].(*VarDeclStmt)
	lam := v.Init.(*LambdaExpr)
	if lam.RecursiveSelf != "f" {
		t.Fatalf("expected RecursiveSelf=f, got %q", lam.RecursiveSelf)
	}
}

func TestCheckSpawnFreezesArguments(t *testing.T) {
	_, errs := checkSource(t, `
fn slow(x: int): int {
    return x
}
fn main() {
    var d: int = 1
    var r = spawn slow(d)
    d = 2
}
`)
	if !errs.HasErrors() {
		t.Fatal("reassigning a frozen spawn argument before sync must error")
	}
}

func TestCheckSyncThawsArguments(t *testing.T) {
	_, errs := checkSource(t, `
fn slow(x: int): int {
    return x
}
fn main() {
    var d: int = 1
    var r = spawn slow(d)
    var v: int = sync r
    d = 2
}
`)
	if errs.HasErrors() {
		t.Fatalf("reassignment after sync should be legal: %s", errs.Report(false))
	}
}

func TestCheckDoubleSyncRejected(t *testing.T) {
	_, errs := checkSource(t, `
fn slow(): int {
    return 42
}
fn main() {
    var r = spawn slow()
    var a: int = sync r
    var b: int = sync r
}
`)
	if !errs.HasErrors() {
		t.Fatal("double sync on the same handle must error")
	}
}

func TestCheckSpawnResultType(t *testing.T) {
	prog, errs := checkSource(t, `
fn slow(): int {
    return 42
}
fn main() {
    var r = spawn slow()
}
`)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %s", errs.Report(false))
	}
	fn := prog.Statements[1].(*FunctionStmt)
	v := fn.Body[0].(*VarDeclStmt)
	if v.Sym == nil || v.Sym.Type == nil || v.Sym.Type.Kind != KindInt {
		t.Fatalf("spawn result should type as the call's result, got %v", v.Sym.Type)
	}
	if v.Sym.ThreadState != ThreadPending {
		t.Errorf("spawn-bound symbol should be pending, got %v", v.Sym.ThreadState)
	}
}

func TestCheckMethodResultTypes(t *testing.T) {
	_, errs := checkSource(t, `
fn main() {
    var v: int[] = []
    var n: long = v.length()
    var has: bool = v.contains(3)
    var joined: str = v.to_string()
}
`)
	if errs.HasErrors() {
		t.Fatalf("method result types should line up: %s", errs.Report(false))
	}
}

func TestCheckStructFieldTypes(t *testing.T) {
	_, errs := checkSource(t, `
struct Point {
    x: int
    y: int
}
fn main() {
    var p = Point{x: 1, y: 2}
    var n: int = p.x
}
`)
	if errs.HasErrors() {
		t.Fatalf("struct field access should type-check: %s", errs.Report(false))
	}
}

func TestCheckArrayLiteralTakesDeclaredElemType(t *testing.T) {
	prog, errs := checkSource(t, `
fn main() {
    var v: long[] = []
}
`)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %s", errs.Report(false))
	}
	fn := prog.Statements[0].(*FunctionStmt)
	v := fn.Body[0].(*VarDeclStmt)
	lt := v.Init.ResolvedType()
	if lt == nil || lt.Kind != KindArray || lt.Elem.Kind != KindLong {
		t.Fatalf("empty literal should take the declared element type, got %v", lt)
	}
}

func TestCheckPushPinsUntypedArray(t *testing.T) {
	prog, errs := checkSource(t, `
fn main() {
    var v = []
    v.push(7)
}
`)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %s", errs.Report(false))
	}
	fn := prog.Statements[0].(*FunctionStmt)
	v := fn.Body[0].(*VarDeclStmt)
	if v.Sym.Type.Elem == nil || v.Sym.Type.Elem.Kind != KindInt {
		t.Fatalf("first push should pin the element type, got %v", v.Sym.Type.Elem)
	}
}

func TestCheckBreakOutsideLoop(t *testing.T) {
	_, errs := checkSource(t, `
fn main() {
    break
}
`)
	if !errs.HasErrors() {
		t.Fatal("break outside a loop must error")
	}
}

func TestCheckBuiltinsResolve(t *testing.T) {
	_, errs := checkSource(t, `
fn main() {
    print("hello")
    exit(0)
}
`)
	if errs.HasErrors() {
		t.Fatalf("builtins should resolve without declarations: %s", errs.Report(false))
	}
}
