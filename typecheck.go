// Completion: 85% - Resolver and type checker, single combined pass
package main

import (
	"fmt"

	"sindarinc/internal/engine"
)

// Checker binds every identifier to its Symbol and assigns every
// Expression its ResolvedType, in a dedicated pass between parsing and
// codegen so emission never has to infer mid-write (see DESIGN.md for
// the staging decision).
type Checker struct {
	table     *SymbolTable
	errors    *ErrorCollector
	funcRet   []*Type // return-type stack, one entry per enclosing function
	loopDepth int
	structs   map[string][]StructField2 // nominal struct -> field list
}

func NewChecker(table *SymbolTable, errors *ErrorCollector) *Checker {
	c := &Checker{table: table, errors: errors, structs: make(map[string][]StructField2)}
	c.declareBuiltins()
	return c
}

// declareBuiltins seeds the global scope with the runtime-backed
// functions every program can call without importing anything.
func (c *Checker) declareBuiltins() {
	builtin := func(name string, params []*Type, ret *Type) {
		tok := Token{Type: TokIdent, Lexeme: name}
		c.table.AddFunction(tok, FunctionType(params, ret), FuncShared, FuncShared, true, "")
	}
	builtin("print", []*Type{TypeAny}, TypeVoid)
	builtin("len", []*Type{TypeAny}, TypeLong)
	builtin("exit", []*Type{TypeInt}, TypeVoid)
}

func (c *Checker) errorf(loc SourceLocation, format string, args ...any) {
	c.errors.AddError(CompilerError{
		Level: LevelError, Category: CategorySemantic,
		Message: fmt.Sprintf(format, args...), Location: loc,
	})
}

func locOf(tok Token, file string) SourceLocation {
	return SourceLocation{File: file, Line: tok.Line, Column: tok.Col}
}

// CheckProgram is the entry point: one pass over top-level declarations
// (structs, type aliases, function signatures and globals, in source
// order) followed by one pass over function bodies, so a body can call a
// function declared later in the file.
func (c *Checker) CheckProgram(file string, prog *Program) {
	var fns []*FunctionStmt
	for _, s := range prog.Statements {
		switch st := s.(type) {
		case *StructDeclStmt:
			c.declareStruct(st)
		case *TypeDeclStmt:
			c.table.AddType(st.Name, st.Type)
		case *FunctionStmt:
			c.declareFunction(file, st)
			fns = append(fns, st)
		case *VarDeclStmt:
			c.checkVarDecl(file, st, true)
		}
	}
	for _, fn := range fns {
		c.checkFunctionBody(file, fn)
	}
}

func (c *Checker) declareStruct(st *StructDeclStmt) {
	c.structs[st.Name.Lexeme] = st.Fields
	c.table.AddType(st.Name, StructType(st.Name.Lexeme))
}

// fieldType resolves `obj.field` against the declared struct's field
// list; nil when the object type isn't a known struct or the field
// doesn't exist.
func (c *Checker) fieldType(objType *Type, field string) *Type {
	if objType == nil || objType.Kind != KindStruct {
		return nil
	}
	for _, f := range c.structs[objType.StructName] {
		if f.Name.Lexeme == field {
			return f.Type
		}
	}
	return nil
}

func (c *Checker) declareFunction(file string, fn *FunctionStmt) {
	params := make([]*Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Type
	}
	sym := c.table.AddFunction(fn.Name, FunctionType(params, fn.ReturnType), fn.Modifier, fn.Modifier, fn.IsNative, fn.CAlias)
	fn.Sym = sym
}

func (c *Checker) checkFunctionBody(file string, fn *FunctionStmt) {
	if fn.IsNative {
		return
	}
	c.table.PushArena()
	defer c.table.PopArena()

	for _, p := range fn.Params {
		c.table.AddSymbol(p.Name, p.Type, SymParam, p.MemQual)
	}
	c.funcRet = append(c.funcRet, fn.ReturnType)
	for _, s := range fn.Body {
		c.checkStmt(file, s)
	}
	c.funcRet = c.funcRet[:len(c.funcRet)-1]
}

func (c *Checker) checkVarDecl(file string, v *VarDeclStmt, global bool) {
	var declared *Type
	if v.Declared != nil {
		declared = v.Declared
	}

	// A lambda initializer whose body mentions the name being declared
	// is a recursive binding; the lambda carries that intent into
	// codegen's null-self-slot-then-patch protocol.
	if lam, ok := v.Init.(*LambdaExpr); ok && lambdaReferences(lam, v.Name.Lexeme) {
		lam.RecursiveSelf = v.Name.Lexeme
	}

	if v.Init != nil {
		c.checkExpr(file, v.Init)
		// An array literal adopts the declared array type whenever the
		// two are compatible: `var v: long[] = [1, 2]` builds a long
		// array, and an empty literal takes its element type from the
		// declaration instead of staying unknown.
		if lit, ok := v.Init.(*ArrayLiteralExpr); ok && declared != nil && declared.Kind == KindArray {
			if lt := lit.ResolvedType(); lt != nil && assignable(declared, lt) {
				lit.SetResolvedType(declared)
			}
		}
		if declared == nil {
			declared = v.Init.ResolvedType()
		} else if !assignable(declared, v.Init.ResolvedType()) {
			c.errorf(locOf(v.Name, file), "cannot assign %s to variable %q of type %s",
				v.Init.ResolvedType(), v.Name.Lexeme, declared)
		}
	}
	if declared == nil {
		declared = TypeUnknown
	}
	kind := SymLocal
	if global {
		kind = SymGlobal
	}
	v.Sym = c.table.AddSymbol(v.Name, declared, kind, v.MemQual)
	if v.Sync == SyncAtomic {
		v.Sym.SyncMod = SyncAtomic
	}

	// `var x = spawn f(a, b)` freezes a and b until the matching sync
	// until that sync runs.
	if spawn, ok := v.Init.(*ThreadSpawnExpr); ok {
		v.Sym.ThreadState = ThreadPending
		for _, a := range spawn.Call.Args {
			if ref, ok := a.(*VariableExpr); ok && ref.Sym != nil {
				c.table.Freeze(v.Sym, ref.Sym)
			}
		}
	}
}

// lambdaReferences reports whether the lambda's body mentions `name`.
func lambdaReferences(l *LambdaExpr, name string) bool {
	found := false
	for _, s := range bodyOf(l) {
		walkStmtNames(s, func(n string) {
			if n == name {
				found = true
			}
		})
	}
	return found
}

// assignable is the declaration/assignment compatibility relation:
// exact structural match, `any` absorbing any concrete type, any[]
// destinations absorbing equal-depth typed arrays (the runtime
// converter handles representation), nil into any heap-shaped slot, and
// any numeric kind into any other (integer or floating point, either
// direction).
func assignable(dst, src *Type) bool {
	if dst == nil || src == nil {
		return true
	}
	if src.Kind == KindUnknown || dst.Kind == KindUnknown {
		return true
	}
	if dst.Equals(src) {
		return true
	}
	if dst.Kind == KindAny {
		return true
	}
	if src.Kind == KindNil && dst.IsHeapShaped() {
		return true
	}
	if dst.Kind == KindArray && src.Kind == KindArray {
		dd, de := arrayDepthElem(dst)
		sd, se := arrayDepthElem(src)
		if dd == sd && de != nil && (de.Kind == KindAny || se.Kind == KindUnknown) {
			return true
		}
		return assignable(dst.Elem, src.Elem)
	}
	if isNumericKind(dst.Kind) && isNumericKind(src.Kind) {
		return true
	}
	return false
}

func isNumericKind(k TypeKind) bool {
	switch k {
	case KindInt, KindLong, KindInt32, KindUint, KindUint32, KindDouble, KindFloat, KindByte, KindChar:
		return true
	default:
		return false
	}
}

func (c *Checker) checkStmt(file string, s Statement) {
	switch st := s.(type) {
	case *VarDeclStmt:
		c.checkVarDecl(file, st, false)
	case *ExprStmt:
		c.checkExpr(file, st.Expr)
	case *ReturnStmt:
		if st.Value != nil {
			c.checkExpr(file, st.Value)
		}
		if len(c.funcRet) > 0 {
			want := c.funcRet[len(c.funcRet)-1]
			if st.Value == nil && want != nil && want.Kind != KindVoid {
				c.errorf(SourceLocation{File: file}, "missing return value, function declares return type %s", want)
			}
		}
	case *BlockStmt:
		c.table.PushScope()
		for _, inner := range st.Statements {
			c.checkStmt(file, inner)
		}
		c.table.PopScope()
	case *IfStmt:
		c.checkExpr(file, st.Cond)
		c.checkStmt(file, st.Then)
		if st.Else != nil {
			c.checkStmt(file, st.Else)
		}
	case *WhileStmt:
		c.checkExpr(file, st.Cond)
		c.loopDepth++
		c.checkStmt(file, st.Body)
		c.loopDepth--
	case *ForStmt:
		c.table.PushScope()
		if st.Init != nil {
			c.checkStmt(file, st.Init)
		}
		if st.Cond != nil {
			c.checkExpr(file, st.Cond)
		}
		if st.Post != nil {
			c.checkStmt(file, st.Post)
		}
		c.loopDepth++
		c.checkStmt(file, st.Body)
		c.loopDepth--
		c.table.PopScope()
	case *ForeachStmt:
		c.table.PushScope()
		c.checkExpr(file, st.Iterable)
		elemType := TypeUnknown
		if it := st.Iterable.ResolvedType(); it != nil && it.Kind == KindArray {
			elemType = it.Elem
		}
		c.table.AddSymbol(st.VarName, elemType, SymLocal, QualDefault)
		c.loopDepth++
		c.checkStmt(file, st.Body)
		c.loopDepth--
		c.table.PopScope()
	case *BreakStmt:
		if c.loopDepth == 0 {
			c.errorf(SourceLocation{File: file}, "'break' outside of a loop")
		}
	case *ContinueStmt:
		if c.loopDepth == 0 {
			c.errorf(SourceLocation{File: file}, "'continue' outside of a loop")
		}
	case *LockStmt:
		c.checkExpr(file, st.Target)
		c.checkStmt(file, st.Body)
	case *FunctionStmt:
		// A nested function is registered (in the global scope) when the
		// checker reaches it; statements before it do not see its name.
		c.declareFunction(file, st)
		c.checkFunctionBody(file, st)
	}
}

func (c *Checker) checkExpr(file string, e Expression) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *LiteralExpr:
		ex.SetResolvedType(literalType(ex.Kind))
	case *VariableExpr:
		sym := c.table.Lookup(ex.Name.Lexeme)
		if sym == nil {
			suggestions := c.suggestFor(ex.Name.Lexeme)
			msg := fmt.Sprintf("undefined identifier %q", ex.Name.Lexeme)
			ce := CompilerError{Level: LevelError, Category: CategorySemantic, Message: msg, Location: locOf(ex.Name, file)}
			if len(suggestions) > 0 {
				ce.Context.Suggestion = fmt.Sprintf("did you mean %q?", suggestions[0])
			}
			c.errors.AddError(ce)
			ex.SetResolvedType(TypeUnknown)
			return
		}
		ex.Sym = sym
		ex.SetResolvedType(sym.Type)
	case *UnaryExpr:
		c.checkExpr(file, ex.Operand)
		ex.SetResolvedType(ex.Operand.ResolvedType())
	case *BinaryExpr:
		c.checkExpr(file, ex.Left)
		c.checkExpr(file, ex.Right)
		ex.SetResolvedType(binaryResultType(ex.Op, ex.Left.ResolvedType(), ex.Right.ResolvedType()))
	case *AssignExpr:
		sym := c.table.Lookup(ex.Name.Lexeme)
		if sym == nil && ex.IsUpdate {
			sym = c.table.AddSymbol(ex.Name, TypeUnknown, SymLocal, QualDefault)
		}
		if sym != nil && sym.ThreadState == ThreadPending {
			c.errorf(locOf(ex.Name, file), "%q is frozen by a pending spawn and cannot be reassigned before its sync", ex.Name.Lexeme)
		}
		c.checkExpr(file, ex.Value)
		if sym != nil {
			if ex.IsUpdate && sym.Type == TypeUnknown {
				sym.Type = ex.Value.ResolvedType()
			}
			ex.Sym = sym
			ex.SetResolvedType(sym.Type)
		} else {
			ex.SetResolvedType(ex.Value.ResolvedType())
		}
	case *CallExpr:
		c.checkExpr(file, ex.Callee)
		for _, a := range ex.Args {
			c.checkExpr(file, a)
		}
		if ft := ex.Callee.ResolvedType(); ft != nil && ft.Kind == KindFunction {
			ex.SetResolvedType(ft.Ret)
		} else {
			ex.SetResolvedType(TypeUnknown)
		}
		if v, ok := ex.Callee.(*VariableExpr); ok {
			ex.ResolvedFunc = v.Sym
		}
	case *MethodCallExpr:
		c.checkExpr(file, ex.Receiver)
		for _, a := range ex.Args {
			c.checkExpr(file, a)
		}
		// First push into a still-untyped array pins its element type
		// (the flow-sensitive half of array literal inference).
		if rt := ex.Receiver.ResolvedType(); rt != nil && rt.Kind == KindArray && rt.Elem != nil && rt.Elem.Kind == KindUnknown {
			switch ex.Method.Lexeme {
			case "push", "push_copy", "insert":
				if len(ex.Args) > 0 && ex.Args[0].ResolvedType() != nil && ex.Args[0].ResolvedType().Kind != KindUnknown {
					rt.Elem = ex.Args[0].ResolvedType()
				}
			}
		}
		ex.SetResolvedType(methodResultType(ex.Method.Lexeme, ex.Receiver.ResolvedType()))
	case *MemberExpr:
		c.checkExpr(file, ex.Object)
		if ft := c.fieldType(ex.Object.ResolvedType(), ex.Field.Lexeme); ft != nil {
			ex.SetResolvedType(ft)
		} else {
			ex.SetResolvedType(TypeUnknown)
		}
	case *MemberAssignExpr:
		c.checkExpr(file, ex.Object)
		c.checkExpr(file, ex.Value)
		ex.SetResolvedType(ex.Value.ResolvedType())
	case *IndexExpr:
		c.checkExpr(file, ex.Array)
		c.checkExpr(file, ex.Index)
		if at := ex.Array.ResolvedType(); at != nil && at.Kind == KindArray {
			ex.SetResolvedType(at.Elem)
		} else {
			ex.SetResolvedType(TypeUnknown)
		}
	case *IndexAssignExpr:
		c.checkExpr(file, ex.Array)
		c.checkExpr(file, ex.Index)
		c.checkExpr(file, ex.Value)
		ex.SetResolvedType(ex.Value.ResolvedType())
	case *ArrayLiteralExpr:
		var elem *Type = TypeUnknown
		for _, el := range ex.Elements {
			c.checkExpr(file, el)
			if el.ResolvedType() != nil && el.ResolvedType().Kind != KindUnknown {
				elem = el.ResolvedType()
			}
		}
		ex.SetResolvedType(ArrayOf(elem))
	case *SliceExpr:
		c.checkExpr(file, ex.Array)
		c.checkExpr(file, ex.Start)
		c.checkExpr(file, ex.End)
		c.checkExpr(file, ex.Step)
		ex.SetResolvedType(ex.Array.ResolvedType())
	case *RangeExpr:
		c.checkExpr(file, ex.Start)
		c.checkExpr(file, ex.End)
		ex.SetResolvedType(ArrayOf(TypeLong))
	case *SpreadExpr:
		c.checkExpr(file, ex.Array)
		ex.SetResolvedType(ex.Array.ResolvedType())
	case *InterpolatedStringExpr:
		for _, part := range ex.Parts {
			c.checkExpr(file, part)
		}
		ex.SetResolvedType(TypeStr)
	case *LambdaExpr:
		c.checkLambda(file, ex)
	case *SyncListExpr:
		for _, h := range ex.Handles {
			c.checkExpr(file, h)
		}
		ex.SetResolvedType(ArrayOf(TypeAny))
	case *ThreadSpawnExpr:
		c.checkExpr(file, ex.Call)
		// A spawn expression's static type is the spawned call's result
		// type; the thread-handle plumbing is invisible above codegen.
		ex.SetResolvedType(ex.Call.ResolvedType())
	case *ThreadSyncExpr:
		c.checkExpr(file, ex.Handle)
		if v, ok := ex.Handle.(*VariableExpr); ok && v.Sym != nil {
			if v.Sym.ThreadState == ThreadSynchronized {
				c.errorf(locOf(v.Name, file), "%q has already been synced", v.Name.Lexeme)
			}
			c.table.Thaw(v.Sym)
			ex.SetResolvedType(v.Sym.Type)
		} else {
			ex.SetResolvedType(TypeAny)
		}
	case *TypeofExpr:
		c.checkExpr(file, ex.Operand)
		ex.SetResolvedType(TypeStr)
	case *IsExpr:
		c.checkExpr(file, ex.Operand)
		ex.SetResolvedType(TypeBool)
	case *AsTypeExpr:
		c.checkExpr(file, ex.Operand)
		ex.SetResolvedType(ex.Target)
	case *AsValExpr:
		c.checkExpr(file, ex.Operand)
		ex.SetResolvedType(ex.Operand.ResolvedType())
	case *AsRefExpr:
		c.checkExpr(file, ex.Operand)
		ex.SetResolvedType(ex.Operand.ResolvedType())
	case *SizedArrayAllocExpr:
		c.checkExpr(file, ex.Count)
		c.checkExpr(file, ex.Default)
		ex.SetResolvedType(ArrayOf(ex.ElemType))
	case *StructLiteralExpr:
		for _, f := range ex.Fields {
			c.checkExpr(file, f.Value)
		}
		ex.SetResolvedType(StructType(ex.StructName.Lexeme))
	case *CompoundAssignExpr:
		c.checkExpr(file, ex.Target)
		c.checkExpr(file, ex.Value)
		ex.SetResolvedType(ex.Target.ResolvedType())
	case *MatchExpr:
		c.checkExpr(file, ex.Subject)
		var result *Type = TypeUnknown
		for _, cl := range ex.Clauses {
			c.checkExpr(file, cl.Pattern)
			c.checkExpr(file, cl.Result)
			if cl.Result.ResolvedType() != nil {
				result = cl.Result.ResolvedType()
			}
		}
		if ex.DefaultExpr != nil {
			c.checkExpr(file, ex.DefaultExpr)
		}
		ex.SetResolvedType(result)
	case *BlockExpr:
		c.table.PushScope()
		var last *Type = TypeVoid
		for _, inner := range ex.Statements {
			c.checkStmt(file, inner)
			if es, ok := inner.(*ExprStmt); ok {
				last = es.Expr.ResolvedType()
			}
		}
		c.table.PopScope()
		ex.SetResolvedType(last)
	}
}

func (c *Checker) checkLambda(file string, l *LambdaExpr) {
	c.table.PushArena()
	defer c.table.PopArena()
	for _, p := range l.Params {
		c.table.AddSymbol(p.Name, p.Type, SymParam, p.MemQual)
	}
	if l.RecursiveSelf != "" {
		// The self binding's parameter list is known even though the
		// body (and so the result type) is still being inferred.
		c.table.AddSymbol(Token{Type: TokIdent, Lexeme: l.RecursiveSelf}, FunctionType(paramTypes(l.Params), TypeAny), SymLocal, QualDefault)
	}
	if l.Body != nil {
		if hasLocalVariables(l.Body) {
			c.errorf(SourceLocation{File: file}, "lambda body declares a local variable; captured state must come from the enclosing scope, not a fresh declaration inside the lambda")
		}
		c.checkExpr(file, l.Body)
		l.SetResolvedType(FunctionType(paramTypes(l.Params), l.Body.ResolvedType()))
		return
	}
	var last *Type = TypeVoid
	for _, s := range l.BodyStmts {
		c.checkStmt(file, s)
		if r, ok := s.(*ReturnStmt); ok && r.Value != nil {
			last = r.Value.ResolvedType()
		}
	}
	l.SetResolvedType(FunctionType(paramTypes(l.Params), last))
}

// methodResultType resolves the built-in array/string method surface
// against the receiver's static type.
func methodResultType(method string, recv *Type) *Type {
	elem := TypeUnknown
	if recv != nil && recv.Kind == KindArray && recv.Elem != nil {
		elem = recv.Elem
	}
	switch method {
	case "length", "index_of":
		return TypeLong
	case "pop":
		return elem
	case "push", "push_copy", "insert", "remove", "reverse", "clone", "concat", "slice":
		return recv
	case "contains", "eq":
		return TypeBool
	case "join", "to_string":
		return TypeStr
	case "clear":
		return TypeVoid
	default:
		return TypeUnknown
	}
}

func paramTypes(params []Param) []*Type {
	out := make([]*Type, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

func literalType(k TypeKind) *Type {
	switch k {
	case KindInt:
		return TypeInt
	case KindDouble:
		return TypeDouble
	case KindStr:
		return TypeStr
	case KindChar:
		return TypeChar
	case KindBool:
		return TypeBool
	case KindNil:
		return TypeNil
	default:
		return TypeUnknown
	}
}

func binaryResultType(op TokenType, l, r *Type) *Type {
	switch op {
	case TokEq, TokNe, TokLt, TokLe, TokGt, TokGe, TokAnd, TokOr:
		return TypeBool
	default:
		if l != nil && (l.Kind == KindDouble || l.Kind == KindFloat) {
			return l
		}
		if r != nil && (r.Kind == KindDouble || r.Kind == KindFloat) {
			return r
		}
		if l != nil && l.Kind != KindUnknown {
			return l
		}
		return r
	}
}

// suggestFor builds the "did you mean" list for an undefined identifier
// using internal/engine's FindSimilarIdentifiers.
func (c *Checker) suggestFor(name string) []string {
	avail := make(map[string]int)
	for s := c.table.current; s != nil; s = s.enclosing {
		for n := range s.byName {
			avail[n] = 0
		}
	}
	return engine.FindSimilarIdentifiers(name, avail, 3)
}
