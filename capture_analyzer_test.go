package main

import (
	"testing"
)

// scanBody parses src, type-checks it so inferred declaration types are
// attached, then runs the capture pre-pass over the first function's
// body.
func scanBody(t *testing.T, src string) []string {
	t.Helper()
	p := NewParserWithFilename(src, "test.sn")
	prog := p.ParseProgram()
	if p.HasErrors() {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	errs := NewErrorCollector(20)
	NewChecker(NewSymbolTable(), errs).CheckProgram("test.sn", prog)
	if errs.HasErrors() {
		t.Fatalf("check errors: %s", errs.Report(false))
	}
	fn, ok := prog.Statements[0].(*FunctionStmt)
	if !ok {
		t.Fatalf("first statement is %T, want a function", prog.Statements[0])
	}
	analyzer := NewCaptureAnalyzer(NewSymbolTable())
	analyzer.Scan(fn.Body)
	return analyzer.Captured()
}

func TestCaptureMutatedPrimitive(t *testing.T) {
	captured := scanBody(t, `
fn counter(): () => int {
    var n: int = 0
    return (x: int) => {
        n = n + 1
        return n
    }
}
`)
	if len(captured) != 1 || captured[0] != "n" {
		t.Fatalf("expected [n] captured, got %v", captured)
	}
}

func TestCaptureReadOnlyReferenceStillCaptured(t *testing.T) {
	captured := scanBody(t, `
fn f(): () => int {
    var base: int = 10
    return (x: int) => base + x
}
`)
	if len(captured) != 1 || captured[0] != "base" {
		t.Fatalf("expected [base], got %v", captured)
	}
}

func TestCaptureArrayIncluded(t *testing.T) {
	captured := scanBody(t, `
fn f() {
    var xs: int[] = []
    var add = (v: int) => xs.push(v)
}
`)
	if len(captured) != 1 || captured[0] != "xs" {
		t.Fatalf("arrays must capture by reference (push may move the payload), got %v", captured)
	}
}

func TestCaptureStringExcluded(t *testing.T) {
	captured := scanBody(t, `
fn f() {
    var s: str = "hello"
    var show = (x: int) => s
}
`)
	if len(captured) != 0 {
		t.Fatalf("strings are handle-shaped, never captured as cells; got %v", captured)
	}
}

func TestCaptureParameterShadowNotCaptured(t *testing.T) {
	captured := scanBody(t, `
fn f() {
    var x: int = 1
    var id = (x: int) => x
}
`)
	if len(captured) != 0 {
		t.Fatalf("a lambda parameter shadows the outer local, got %v", captured)
	}
}

func TestCaptureOutsideLambdaNotCaptured(t *testing.T) {
	captured := scanBody(t, `
fn f(): int {
    var a: int = 1
    var b: int = a + 1
    return b
}
`)
	if len(captured) != 0 {
		t.Fatalf("references outside any lambda must not capture, got %v", captured)
	}
}

func TestCaptureNestedLambdaDepth(t *testing.T) {
	captured := scanBody(t, `
fn f() {
    var n: int = 0
    var outer = (a: int) => {
        var inner = (b: int) => n + b
        return inner(a)
    }
}
`)
	found := false
	for _, name := range captured {
		if name == "n" {
			found = true
		}
	}
	if !found {
		t.Fatalf("a reference two lambdas deep still captures, got %v", captured)
	}
}

func TestCaptureSetResetsBetweenScans(t *testing.T) {
	p := NewParserWithFilename(`
fn a(): () => int {
    var n: int = 0
    return (x: int) => n
}
fn b(): int {
    var m: int = 1
    return m
}
`, "test.sn")
	prog := p.ParseProgram()
	if p.HasErrors() {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	errs := NewErrorCollector(20)
	NewChecker(NewSymbolTable(), errs).CheckProgram("test.sn", prog)

	analyzer := NewCaptureAnalyzer(NewSymbolTable())
	analyzer.Scan(prog.Statements[0].(*FunctionStmt).Body)
	if len(analyzer.Captured()) != 1 {
		t.Fatalf("first scan should capture n, got %v", analyzer.Captured())
	}
	analyzer.Scan(prog.Statements[1].(*FunctionStmt).Body)
	if len(analyzer.Captured()) != 0 {
		t.Fatalf("second scan must start from an empty set, got %v", analyzer.Captured())
	}
}
