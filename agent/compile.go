package agent

import (
	"github.com/snapline/snapagent/agent/expr"
)

// compiledExpr is the resolved, evaluation-ready form of a condition or
// watch expression string. It wraps expr.Compiled with the source Kind so
// the Bridge and Capturer can evaluate it without re-threading that
// decision through every call site.
type compiledExpr struct {
	kind expr.Kind
	c    *expr.Compiled
}

// compileCondition compiles bp's condition string, consulting cache first.
// An empty condition compiles to the "always true" handle per spec §4.3.
func compileCondition(cache *CompileCache, source string) (*compiledExpr, error) {
	return compileCached(cache, expr.KindCondition, source, errConditionCompile)
}

// compileExpression compiles a single watch-expression string.
func compileExpression(cache *CompileCache, source string) (*compiledExpr, error) {
	return compileCached(cache, expr.KindExpression, source, errExpressionCompile)
}

func compileCached(cache *CompileCache, kind expr.Kind, source string, wrap func(string) error) (*compiledExpr, error) {
	if cache != nil {
		if ce, ok := cache.get(kind, source); ok {
			return ce, nil
		}
	}
	c, err := expr.Compile(kind, source)
	if err != nil {
		if ce, ok := err.(*expr.CompileError); ok {
			return nil, wrap(ce.Detail)
		}
		return nil, wrap(err.Error())
	}
	ce := &compiledExpr{kind: kind, c: c}
	if cache != nil {
		cache.put(kind, source, ce)
	}
	return ce, nil
}

// evaluate runs the compiled expression against s and returns its dynamic
// value. The evaluator's error is returned unchanged: a *expr.HazardError or
// a *expr.RuntimeError, which the Capturer maps to errValueHazardous and
// errExpressionRuntime respectively.
func (ce *compiledExpr) evaluate(s *scope) (any, error) {
	return expr.Evaluate(ce.c, s)
}

// evaluateCondition applies the JS-style truthiness coercion conditions need.
func (ce *compiledExpr) evaluateCondition(s *scope) (bool, error) {
	return expr.EvaluateCondition(ce.c, s)
}
