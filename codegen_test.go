package main

import (
	"strings"
	"testing"
)

// generateC runs the in-process front half of the pipeline (lex ->
// parse -> check -> optimize -> emit) and returns the C translation
// unit, without touching a host C compiler.
func generateC(t *testing.T, src string) string {
	t.Helper()
	p := NewParserWithFilename(src, "test.sn")
	prog := p.ParseProgram()
	if p.HasErrors() {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	errs := NewErrorCollector(20)
	table := NewSymbolTable()
	NewChecker(table, errs).CheckProgram("test.sn", prog)
	if errs.HasErrors() {
		t.Fatalf("check errors: %s", errs.Report(false))
	}
	prog = optimizeProgram(prog)
	gen := NewCodeGen(table, errs)
	out := gen.GenerateProgram(prog)
	if errs.HasErrors() {
		t.Fatalf("codegen errors: %s", errs.Report(false))
	}
	return out
}

func wantContains(t *testing.T, out string, snippets ...string) {
	t.Helper()
	for _, s := range snippets {
		if !strings.Contains(out, s) {
			t.Errorf("generated C missing %q\n---\n%s", s, out)
		}
	}
}

func TestGenMainArenaAndDeferredGlobals(t *testing.T) {
	out := generateC(t, `
fn main() {
    print("hi")
}
`)
	wantContains(t, out,
		`#include "runtimec/sindarin_runtime.h"`,
		"int main(void)",
		"Arena *__main_arena = sn_arena_create(NULL);",
		"sn_init_globals(__main_arena);",
		"sn_main_return:;",
		"sn_arena_destroy(__main_arena);",
		"sn_print_any(__main_arena",
	)
}

func TestGenStringReturnPromotes(t *testing.T) {
	out := generateC(t, `
fn greet(): str {
    return "hi"
}
fn main() {
    print(greet())
}
`)
	wantContains(t, out,
		"H sn_greet(Arena *__caller_arena)",
		"Arena *__local_arena = sn_arena_create(__caller_arena);",
		"H _return_value = SN_NIL;",
		"goto sn_greet_return;",
		"_return_value = sn_arena_promote_caller(_return_value);",
		"sn_arena_destroy(__local_arena);",
	)
}

func TestGenSharedFunctionAliasesCallerArena(t *testing.T) {
	out := generateC(t, `
shared fn double(x: int): int {
    return x + x
}
fn main() {
    print(double(2))
}
`)
	if strings.Contains(out, "__local_arena") {
		t.Fatalf("a shared function must not create or destroy a local arena:\n%s", out)
	}
}

func TestGenCapturedPrimitiveBecomesCell(t *testing.T) {
	out := generateC(t, `
fn counter(): () => int {
    var n: int = 0
    return () => {
        n = n + 1
        return n
    }
}
fn main() {
    print(counter())
}
`)
	wantContains(t, out,
		// the closure escapes, so the cell lives in the caller's arena
		"int *sn_n = (int *)sn_arena_alloc(__caller_arena, sizeof(int));",
		"*sn_n = 0;",
		// mutation writes through the cell inside the hoisted lambda
		"((*sn_n) = ((*sn_n) + 1))",
		// closure record also lands in the caller's arena
		"sn_closure_make(__caller_arena",
		// function-typed return promotes through the closure helper
		"sn_closure_promote(__caller_arena, _return_value)",
	)
}

func TestGenRecursiveLambdaSelfSlotPatch(t *testing.T) {
	out := generateC(t, `
fn main() {
    var f = (n: int) => f(n)
}
`)
	wantContains(t, out,
		"sn_closure_env(sn_f)",
		"= sn_f;",
	)
}

func TestGenTailCallLoop(t *testing.T) {
	out := generateC(t, `
fn factAcc(n: long, acc: long): long {
    if n <= 1 {
        return acc
    }
    return factAcc(n - 1, n * acc)
}
fn main() {
    print(factAcc(20, 1))
}
`)
	wantContains(t, out,
		"for (;;)",
		"__tail_arg_0__",
		"__tail_arg_1__",
		"continue;",
		"sn_factAcc_return:;",
	)
	if strings.Contains(out, "sn_factAcc(__local_arena") {
		t.Error("the marked tail call should be loop-converted, not emitted as a call")
	}
}

func TestGenSpawnAndSyncWithResult(t *testing.T) {
	out := generateC(t, `
fn slow(): int {
    return 42
}
fn main() {
    var r = spawn slow()
    var v: int = sync r
    print(v)
}
`)
	wantContains(t, out,
		"_tramp(void *__p)",
		"sn_thread_spawn(",
		"int sn_r;",
		"sn_thread_sync_with_result(",
		"&sn_r, sizeof(sn_r));",
	)
	if !strings.Contains(out, "_arena = sn_arena_create(NULL);") {
		t.Error("the spawned call needs its own arena")
	}
}

func TestGenGlobalArrayInitializerDeferred(t *testing.T) {
	out := generateC(t, `
var xs: long[] = [1, 2]
fn main() {
    print(xs)
}
`)
	wantContains(t, out,
		"H sn_xs;",
		"static void sn_init_globals(Arena *__main_arena)",
		"rt_array_create_long_v2(__main_arena",
		"rt_array_push_long_v2(",
	)
	if strings.Contains(out, "__attribute__((constructor))") {
		t.Error("global initializers replay under __main_arena, not C constructors")
	}
}

func TestGenBoxAndUnboxAny(t *testing.T) {
	out := generateC(t, `
fn main() {
    var a: any = 7
    var b: long = a as long
    print(b)
}
`)
	wantContains(t, out,
		"sn_any_box_int(7)",
		"sn_any_unbox_long(",
	)
}

func TestGenAnyArrayBoxesElements(t *testing.T) {
	out := generateC(t, `
fn main() {
    var xs: any[] = [1, 2]
}
`)
	wantContains(t, out,
		"rt_array_create_any_v2(",
		"sn_any_box_int(1)",
	)
}

func TestGenAsValParamClones(t *testing.T) {
	out := generateC(t, `
fn pad(a: int[] as val): long {
    return a.length()
}
fn main() {
    var v: int[] = [1, 2, 3]
    print(pad(v))
}
`)
	wantContains(t, out,
		"sn_a = rt_array_clone_v2(__local_arena, sn_a);",
	)
}

func TestGenMainArgsArray(t *testing.T) {
	out := generateC(t, `
fn main(args: str[]) {
    print(args.length())
}
`)
	wantContains(t, out,
		"int main(int argc, char **argv)",
		"H sn_args = sn_args_create(__main_arena, argc, argv);",
		"rt_array_length_v2(sn_args)",
	)
}

func TestGenPushAssignsBack(t *testing.T) {
	out := generateC(t, `
fn main() {
    var v: int[] = []
    v.push(7)
}
`)
	wantContains(t, out,
		"(sn_v = rt_array_push_int_v2(sn_v, __main_arena, 7))",
	)
}

func TestGenForeachOverRange(t *testing.T) {
	out := generateC(t, `
fn main() {
    foreach i in 0..5 {
        print(i)
    }
}
`)
	wantContains(t, out,
		"rt_array_range_long_v2(__main_arena, 0, 5)",
		"rt_array_length_v2(",
		"rt_array_get_long_v2(",
	)
}

func TestGenLockBrackets(t *testing.T) {
	out := generateC(t, `
fn main() {
    var s: str = "x"
    lock(s) {
        print(s)
    }
}
`)
	wantContains(t, out,
		"sn_mutex_lock(sn_s);",
		"sn_mutex_unlock(sn_s);",
	)
}

func TestGenStructDeclAndLiteral(t *testing.T) {
	out := generateC(t, `
struct Point {
    x: int
    y: int
}
fn main() {
    var p = Point{x: 1, y: 2}
    print(p.x)
}
`)
	wantContains(t, out,
		"typedef struct sn_Point {",
		"int sn_x;",
		"} sn_Point;",
		".sn_x = 1;",
	)
}

func TestGenNativeAliasCall(t *testing.T) {
	out := generateC(t, `
#alias "host_clock"
native fn clock_ms(): long
fn main() {
    print(clock_ms())
}
`)
	wantContains(t, out,
		"extern long long host_clock(Arena *__caller_arena);",
		"host_clock(__main_arena)",
	)
}

func TestGenStringConcatAndEq(t *testing.T) {
	out := generateC(t, `
fn main() {
    var a: str = "x"
    var b: str = a + "y"
    var same: bool = a == b
    print(same)
}
`)
	wantContains(t, out,
		"sn_string_concat(__main_arena",
		"sn_string_eq(",
	)
}

func TestGenSliceSelectsStringVariant(t *testing.T) {
	out := generateC(t, `
fn main() {
    var names: str[] = ["a", "b", "c"]
    var mid = names[1:2]
    print(mid)
}
`)
	wantContains(t, out,
		"rt_array_slice_str_v2(__main_arena",
	)
}

func TestGenEmptySourceStillValidUnit(t *testing.T) {
	out := generateC(t, "")
	wantContains(t, out,
		"int main(void)",
		"sn_init_globals(__main_arena);",
		"return 0;",
	)
}
