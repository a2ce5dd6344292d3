package main

import (
	"testing"
)

func parseOK(t *testing.T, src string) *Program {
	t.Helper()
	p := NewParserWithFilename(src, "test.sn")
	prog := p.ParseProgram()
	if p.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	return prog
}

func TestParseFunctionModifiers(t *testing.T) {
	prog := parseOK(t, `
shared fn helper(): int {
    return 1
}
private fn scratch() {
}
fn plain() {
}
`)
	if len(prog.Statements) != 3 {
		t.Fatalf("expected 3 functions, got %d", len(prog.Statements))
	}
	mods := []FunctionModifier{FuncShared, FuncPrivate, FuncDefault}
	for i, want := range mods {
		fn, ok := prog.Statements[i].(*FunctionStmt)
		if !ok {
			t.Fatalf("statement %d is not a function", i)
		}
		if fn.Modifier != want {
			t.Errorf("function %d: expected modifier %v, got %v", i, want, fn.Modifier)
		}
	}
}

func TestParseVarDeclWithQualifier(t *testing.T) {
	prog := parseOK(t, "var a: int[] as val = [1, 2]")
	v, ok := prog.Statements[0].(*VarDeclStmt)
	if !ok {
		t.Fatal("expected a VarDeclStmt")
	}
	if v.MemQual != QualAsVal {
		t.Errorf("expected as-val qualifier, got %v", v.MemQual)
	}
	if v.Declared == nil || v.Declared.Kind != KindArray || v.Declared.Elem.Kind != KindInt {
		t.Errorf("expected declared type int[], got %v", v.Declared)
	}
	if _, ok := v.Init.(*ArrayLiteralExpr); !ok {
		t.Errorf("expected array literal initializer, got %T", v.Init)
	}
}

func TestParseParamQualifiers(t *testing.T) {
	prog := parseOK(t, `
fn consume(xs: int[] as val, out: int as ref) {
}
`)
	fn := prog.Statements[0].(*FunctionStmt)
	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}
	if fn.Params[0].MemQual != QualAsVal {
		t.Errorf("param 0: expected as-val, got %v", fn.Params[0].MemQual)
	}
	if fn.Params[1].MemQual != QualAsRef {
		t.Errorf("param 1: expected as-ref, got %v", fn.Params[1].MemQual)
	}
}

func TestParseLambdaForms(t *testing.T) {
	prog := parseOK(t, `
var inc = (x: int) => x + 1
var short = y => y
var block = (n: int) => {
    return n
}
`)
	for i, name := range []string{"inc", "short", "block"} {
		v := prog.Statements[i].(*VarDeclStmt)
		lam, ok := v.Init.(*LambdaExpr)
		if !ok {
			t.Fatalf("%s: expected lambda initializer, got %T", name, v.Init)
		}
		if i == 2 {
			if lam.Body != nil || len(lam.BodyStmts) != 1 {
				t.Errorf("block lambda should have a statement body")
			}
		} else if lam.Body == nil {
			t.Errorf("%s: expected expression body", name)
		}
	}
}

func TestParseFunctionReturnTypeAnnotation(t *testing.T) {
	prog := parseOK(t, `
fn counter(): () => int {
    return (x: int) => x
}
`)
	fn := prog.Statements[0].(*FunctionStmt)
	if fn.ReturnType == nil || fn.ReturnType.Kind != KindFunction {
		t.Fatalf("expected function-typed return, got %v", fn.ReturnType)
	}
	if fn.ReturnType.Ret.Kind != KindInt {
		t.Errorf("expected inner return int, got %v", fn.ReturnType.Ret)
	}
}

func TestParseSliceAndIndex(t *testing.T) {
	prog := parseOK(t, "xs[1]\nxs[1:3]\nxs[::2]\nxs[5:1:0-1]")
	if _, ok := prog.Statements[0].(*ExprStmt).Expr.(*IndexExpr); !ok {
		t.Error("xs[1] should parse as IndexExpr")
	}
	for i := 1; i < 4; i++ {
		if _, ok := prog.Statements[i].(*ExprStmt).Expr.(*SliceExpr); !ok {
			t.Errorf("statement %d should parse as SliceExpr", i)
		}
	}
	sl := prog.Statements[2].(*ExprStmt).Expr.(*SliceExpr)
	if sl.Start != nil || sl.End != nil || sl.Step == nil {
		t.Error("xs[::2] should leave start/end defaulted with a step")
	}
}

func TestParseRangeAndForeach(t *testing.T) {
	prog := parseOK(t, `
foreach i in 0..10 {
    print(i)
}
`)
	fe := prog.Statements[0].(*ForeachStmt)
	if _, ok := fe.Iterable.(*RangeExpr); !ok {
		t.Fatalf("expected range iterable, got %T", fe.Iterable)
	}
}

func TestParseMatchWithDefault(t *testing.T) {
	prog := parseOK(t, `
var r = match n {
    1 => "one",
    2 => "two",
    _ => "many"
}
`)
	v := prog.Statements[0].(*VarDeclStmt)
	m, ok := v.Init.(*MatchExpr)
	if !ok {
		t.Fatalf("expected match initializer, got %T", v.Init)
	}
	if len(m.Clauses) != 2 {
		t.Errorf("expected 2 explicit clauses, got %d", len(m.Clauses))
	}
	if m.DefaultExpr == nil {
		t.Error("expected a default arm")
	}
}

func TestParseStructDeclAndLiteral(t *testing.T) {
	prog := parseOK(t, `
struct Point {
    x: int
    y: int
}
var p = Point{x: 1, y: 2}
`)
	st := prog.Statements[0].(*StructDeclStmt)
	if len(st.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(st.Fields))
	}
	v := prog.Statements[1].(*VarDeclStmt)
	lit, ok := v.Init.(*StructLiteralExpr)
	if !ok {
		t.Fatalf("expected struct literal, got %T", v.Init)
	}
	if len(lit.Fields) != 2 || lit.StructName.Lexeme != "Point" {
		t.Errorf("struct literal mis-parsed: %v", lit)
	}
}

func TestParseImportWithAliasAndVersion(t *testing.T) {
	prog := parseOK(t, `import "github.com/u/mathlib@v1.2.0" as m`)
	imp := prog.Statements[0].(*ImportStmt)
	if imp.URL != "github.com/u/mathlib" || imp.Version != "v1.2.0" || imp.Alias != "m" {
		t.Errorf("import mis-parsed: %+v", imp)
	}
}

func TestParseImportDefaultAlias(t *testing.T) {
	prog := parseOK(t, `import "./lib/strings"`)
	imp := prog.Statements[0].(*ImportStmt)
	if imp.Alias != "strings" {
		t.Errorf("expected derived alias strings, got %q", imp.Alias)
	}
}

func TestParseSpawnAndSync(t *testing.T) {
	prog := parseOK(t, `
var r = spawn slow(1, 2)
var v = sync r
`)
	spawn, ok := prog.Statements[0].(*VarDeclStmt).Init.(*ThreadSpawnExpr)
	if !ok {
		t.Fatal("expected spawn initializer")
	}
	if len(spawn.Call.Args) != 2 {
		t.Errorf("spawned call should carry 2 args, got %d", len(spawn.Call.Args))
	}
	if _, ok := prog.Statements[1].(*VarDeclStmt).Init.(*ThreadSyncExpr); !ok {
		t.Fatal("expected sync initializer")
	}
}

func TestParsePragmaAliasAttachesToNative(t *testing.T) {
	prog := parseOK(t, `
#alias "puts"
native fn puts(s: str): int
`)
	var fn *FunctionStmt
	for _, s := range prog.Statements {
		if f, ok := s.(*FunctionStmt); ok {
			fn = f
		}
	}
	if fn == nil {
		t.Fatal("native fn not parsed")
	}
	if !fn.IsNative || fn.CAlias != "puts" {
		t.Errorf("expected native fn with alias puts, got native=%v alias=%q", fn.IsNative, fn.CAlias)
	}
}

func TestParseInterpolatedStringParts(t *testing.T) {
	prog := parseOK(t, `var s = "a${x}b"`)
	v := prog.Statements[0].(*VarDeclStmt)
	interp, ok := v.Init.(*InterpolatedStringExpr)
	if !ok {
		t.Fatalf("expected interpolated string, got %T", v.Init)
	}
	if len(interp.Parts) != 3 {
		t.Fatalf("expected 3 parts (lit, expr, lit), got %d", len(interp.Parts))
	}
	if _, ok := interp.Parts[1].(*VariableExpr); !ok {
		t.Errorf("middle part should be the spliced expression, got %T", interp.Parts[1])
	}
}

func TestParseLockStatement(t *testing.T) {
	prog := parseOK(t, `
lock(shared_state) {
    shared_state = 1
}
`)
	if _, ok := prog.Statements[0].(*LockStmt); !ok {
		t.Fatalf("expected LockStmt, got %T", prog.Statements[0])
	}
}

func TestParseSizedArrayAlloc(t *testing.T) {
	prog := parseOK(t, "var xs = array<long>(8, 0)")
	v := prog.Statements[0].(*VarDeclStmt)
	alloc, ok := v.Init.(*SizedArrayAllocExpr)
	if !ok {
		t.Fatalf("expected sized array alloc, got %T", v.Init)
	}
	if alloc.ElemType.Kind != KindLong || alloc.Default == nil {
		t.Errorf("array<long>(8, 0) mis-parsed: %+v", alloc)
	}
}

func TestParseErrorRecovery(t *testing.T) {
	p := NewParserWithFilename("var = 1\nvar ok = 2", "test.sn")
	prog := p.ParseProgram()
	if !p.HasErrors() {
		t.Fatal("expected a parse error for the malformed declaration")
	}
	found := false
	for _, s := range prog.Statements {
		if v, ok := s.(*VarDeclStmt); ok && v.Name.Lexeme == "ok" {
			found = true
		}
	}
	if !found {
		t.Error("parser should recover and still parse the following declaration")
	}
}
