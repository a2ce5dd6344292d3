// Completion: 100% - Closure-capture pre-pass
package main

// CaptureAnalyzer is the pre-pass that finds every primitive-or-array
// local a lambda references from an enclosing scope. A captured name is
// rewritten by codegen_closure.go into a heap cell so the lambda's copy
// stays aliased to the enclosing frame's copy across calls.
type CaptureAnalyzer struct {
	table    *SymbolTable
	captured []string
	seen     map[string]bool
	types    map[string]*Type
}

func NewCaptureAnalyzer(table *SymbolTable) *CaptureAnalyzer {
	return &CaptureAnalyzer{table: table, seen: make(map[string]bool), types: make(map[string]*Type)}
}

// Captured returns the deduplicated, insertion-ordered list of names
// found to need capture-by-reference.
func (c *CaptureAnalyzer) Captured() []string { return c.captured }

// TypeOf returns the declared type of a captured name, recorded at scan
// time since the working scopes are gone by the time codegen asks.
func (c *CaptureAnalyzer) TypeOf(name string) *Type { return c.types[name] }

func (c *CaptureAnalyzer) addCaptured(name string, typ *Type) {
	if c.seen[name] {
		return
	}
	c.seen[name] = true
	c.captured = append(c.captured, name)
	c.types[name] = typ
}

// Scan runs the pre-pass over one function body; each call starts from
// an empty captured set.
func (c *CaptureAnalyzer) Scan(stmts []Statement) {
	c.captured = nil
	c.seen = make(map[string]bool)
	c.types = make(map[string]*Type)
	c.table.PushScope()
	for _, s := range stmts {
		c.scanStmt(s, 0)
	}
	c.table.PopScope()
}

func (c *CaptureAnalyzer) scanExpr(e Expression, lambdaDepth int) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *LambdaExpr:
		c.table.PushScope()
		for _, param := range ex.Params {
			c.table.AddSymbol(param.Name, param.Type, SymParam, param.MemQual)
		}
		if ex.Body != nil {
			c.scanExpr(ex.Body, lambdaDepth+1)
		}
		for _, s := range ex.BodyStmts {
			c.scanStmt(s, lambdaDepth+1)
		}
		c.table.PopScope()
	case *VariableExpr:
		if lambdaDepth > 0 {
			if sym := c.table.Lookup(ex.Name.Lexeme); sym != nil && sym.Kind == SymLocal && sym.Type.NeedsCaptureByRef() {
				c.addCaptured(ex.Name.Lexeme, sym.Type)
			}
		}
	case *BinaryExpr:
		c.scanExpr(ex.Left, lambdaDepth)
		c.scanExpr(ex.Right, lambdaDepth)
	case *UnaryExpr:
		c.scanExpr(ex.Operand, lambdaDepth)
	case *AssignExpr:
		if lambdaDepth > 0 {
			if sym := c.table.Lookup(ex.Name.Lexeme); sym != nil && sym.Kind == SymLocal && sym.Type.NeedsCaptureByRef() {
				c.addCaptured(ex.Name.Lexeme, sym.Type)
			}
		}
		c.scanExpr(ex.Value, lambdaDepth)
	case *CallExpr:
		c.scanExpr(ex.Callee, lambdaDepth)
		for _, a := range ex.Args {
			c.scanExpr(a, lambdaDepth)
		}
	case *MethodCallExpr:
		c.scanExpr(ex.Receiver, lambdaDepth)
		for _, a := range ex.Args {
			c.scanExpr(a, lambdaDepth)
		}
	case *ArrayLiteralExpr:
		for _, el := range ex.Elements {
			c.scanExpr(el, lambdaDepth)
		}
	case *IndexExpr:
		c.scanExpr(ex.Array, lambdaDepth)
		c.scanExpr(ex.Index, lambdaDepth)
	case *IndexAssignExpr:
		c.scanExpr(ex.Array, lambdaDepth)
		c.scanExpr(ex.Index, lambdaDepth)
		c.scanExpr(ex.Value, lambdaDepth)
	case *MemberExpr:
		c.scanExpr(ex.Object, lambdaDepth)
	case *MemberAssignExpr:
		c.scanExpr(ex.Object, lambdaDepth)
		c.scanExpr(ex.Value, lambdaDepth)
	case *SliceExpr:
		c.scanExpr(ex.Array, lambdaDepth)
		c.scanExpr(ex.Start, lambdaDepth)
		c.scanExpr(ex.End, lambdaDepth)
		c.scanExpr(ex.Step, lambdaDepth)
	case *RangeExpr:
		c.scanExpr(ex.Start, lambdaDepth)
		c.scanExpr(ex.End, lambdaDepth)
	case *SpreadExpr:
		c.scanExpr(ex.Array, lambdaDepth)
	case *InterpolatedStringExpr:
		for _, part := range ex.Parts {
			c.scanExpr(part, lambdaDepth)
		}
	case *TypeofExpr:
		c.scanExpr(ex.Operand, lambdaDepth)
	case *IsExpr:
		c.scanExpr(ex.Operand, lambdaDepth)
	case *AsTypeExpr:
		c.scanExpr(ex.Operand, lambdaDepth)
	case *AsValExpr:
		c.scanExpr(ex.Operand, lambdaDepth)
	case *AsRefExpr:
		c.scanExpr(ex.Operand, lambdaDepth)
	case *SizedArrayAllocExpr:
		c.scanExpr(ex.Count, lambdaDepth)
		c.scanExpr(ex.Default, lambdaDepth)
	case *StructLiteralExpr:
		for _, f := range ex.Fields {
			c.scanExpr(f.Value, lambdaDepth)
		}
	case *CompoundAssignExpr:
		c.scanExpr(ex.Target, lambdaDepth)
		c.scanExpr(ex.Value, lambdaDepth)
	case *ThreadSpawnExpr:
		c.scanExpr(ex.Call, lambdaDepth)
	case *ThreadSyncExpr:
		c.scanExpr(ex.Handle, lambdaDepth)
	case *SyncListExpr:
		for _, h := range ex.Handles {
			c.scanExpr(h, lambdaDepth)
		}
	case *MatchExpr:
		c.scanExpr(ex.Subject, lambdaDepth)
		for _, cl := range ex.Clauses {
			c.scanExpr(cl.Pattern, lambdaDepth)
			c.scanExpr(cl.Result, lambdaDepth)
		}
		c.scanExpr(ex.DefaultExpr, lambdaDepth)
	case *BlockExpr:
		c.table.PushScope()
		for _, s := range ex.Statements {
			c.scanStmt(s, lambdaDepth)
		}
		c.table.PopScope()
	default:
		// LiteralExpr carries no sub-expressions.
	}
}

func (c *CaptureAnalyzer) scanStmt(s Statement, lambdaDepth int) {
	if s == nil {
		return
	}
	switch st := s.(type) {
	case *VarDeclStmt:
		declType := st.Declared
		if declType == nil && st.Init != nil {
			declType = st.Init.ResolvedType()
		}
		c.table.AddSymbol(st.Name, declType, SymLocal, st.MemQual)
		c.scanExpr(st.Init, lambdaDepth)
	case *ExprStmt:
		c.scanExpr(st.Expr, lambdaDepth)
	case *ReturnStmt:
		c.scanExpr(st.Value, lambdaDepth)
	case *BlockStmt:
		c.table.PushScope()
		for _, inner := range st.Statements {
			c.scanStmt(inner, lambdaDepth)
		}
		c.table.PopScope()
	case *IfStmt:
		c.scanExpr(st.Cond, lambdaDepth)
		c.scanStmt(st.Then, lambdaDepth)
		c.scanStmt(st.Else, lambdaDepth)
	case *WhileStmt:
		c.scanExpr(st.Cond, lambdaDepth)
		c.scanStmt(st.Body, lambdaDepth)
	case *ForStmt:
		c.table.PushScope()
		c.scanStmt(st.Init, lambdaDepth)
		c.scanExpr(st.Cond, lambdaDepth)
		c.scanStmt(st.Post, lambdaDepth)
		c.scanStmt(st.Body, lambdaDepth)
		c.table.PopScope()
	case *ForeachStmt:
		c.table.PushScope()
		c.scanExpr(st.Iterable, lambdaDepth)
		if st.Iterable.ResolvedType() != nil && st.Iterable.ResolvedType().Kind == KindArray {
			c.table.AddSymbol(st.VarName, st.Iterable.ResolvedType().Elem, SymLocal, QualDefault)
		} else {
			c.table.AddSymbol(st.VarName, TypeUnknown, SymLocal, QualDefault)
		}
		c.scanStmt(st.Body, lambdaDepth)
		c.table.PopScope()
	case *LockStmt:
		c.scanExpr(st.Target, lambdaDepth)
		c.scanStmt(st.Body, lambdaDepth)
	default:
		// Break/Continue/Import/Pragma/Type/Struct/Function decls carry
		// no captured-primitive concerns at this scan depth.
	}
}
