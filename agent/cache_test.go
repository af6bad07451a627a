package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapline/snapagent/agent/expr"
)

// ristretto's Set is applied asynchronously through an internal buffer, so a
// Get immediately following a Put is not guaranteed to observe it yet; tests
// poll briefly instead of asserting synchronously.
const (
	cacheEventuallyTimeout = 200 * time.Millisecond
	cacheEventuallyTick    = 5 * time.Millisecond
)

func TestNewCompileCache(t *testing.T) {
	t.Parallel()
	cache, err := NewCompileCache()
	require.NoError(t, err)
	require.NotNil(t, cache)
	defer cache.Close()
}

func TestCompileCacheGetMissOnEmpty(t *testing.T) {
	t.Parallel()
	cache, err := NewCompileCache()
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.get(expr.KindExpression, "x")
	assert.False(t, ok)
}

func TestCompileCachePutThenGet(t *testing.T) {
	t.Parallel()
	cache, err := NewCompileCache()
	require.NoError(t, err)
	defer cache.Close()

	c, err := expr.Compile(expr.KindExpression, "x + 1")
	require.NoError(t, err)
	ce := &compiledExpr{kind: expr.KindExpression, c: c}
	cache.put(expr.KindExpression, "x + 1", ce)

	require.Eventually(t, func() bool {
		got, ok := cache.get(expr.KindExpression, "x + 1")
		return ok && got == ce
	}, cacheEventuallyTimeout, cacheEventuallyTick)
}

func TestCompileCacheNilSafe(t *testing.T) {
	t.Parallel()
	var cache *CompileCache
	_, ok := cache.get(expr.KindExpression, "x")
	assert.False(t, ok)
	cache.put(expr.KindExpression, "x", &compiledExpr{})
	cache.Close() // must not panic
}

func TestCompileCacheDistinguishesKind(t *testing.T) {
	t.Parallel()
	cache, err := NewCompileCache()
	require.NoError(t, err)
	defer cache.Close()

	condC, _ := expr.Compile(expr.KindCondition, "x")
	exprC, _ := expr.Compile(expr.KindExpression, "x")
	condCE := &compiledExpr{kind: expr.KindCondition, c: condC}
	exprCE := &compiledExpr{kind: expr.KindExpression, c: exprC}
	cache.put(expr.KindCondition, "x", condCE)
	cache.put(expr.KindExpression, "x", exprCE)

	require.Eventually(t, func() bool {
		gotCond, okCond := cache.get(expr.KindCondition, "x")
		gotExpr, okExpr := cache.get(expr.KindExpression, "x")
		return okCond && okExpr && gotCond == condCE && gotExpr == exprCE
	}, cacheEventuallyTimeout, cacheEventuallyTick)
}
