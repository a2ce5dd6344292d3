// Completion: 100% - Helper module complete
package main

// hasLocalVariables reports whether a lambda body declares any local
// variable other than a recursive-binding lambda (the lambda's own name
// bound to a closure literal, which checkLambda already threads through
// RecursiveSelf). Used by typecheck.go to give a clear diagnostic for
// lambda shapes the arena/capture lowering doesn't support: a lambda's
// body is expected to close over its enclosing scope, not introduce new
// locals of its own.
func hasLocalVariables(expr Expression) bool {
	found := false

	var scan func(Expression)
	scan = func(e Expression) {
		if e == nil || found {
			return
		}

		switch ex := e.(type) {
		case *BlockExpr:
			for _, stmt := range ex.Statements {
				if decl, ok := stmt.(*VarDeclStmt); ok {
					if _, isLambda := decl.Init.(*LambdaExpr); isLambda {
						continue
					}
					found = true
					return
				}
			}

		case *MatchExpr:
			for _, clause := range ex.Clauses {
				scan(clause.Result)
			}
			scan(ex.DefaultExpr)
		}
	}

	scan(expr)
	return found
}
