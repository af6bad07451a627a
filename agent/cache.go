package agent

import (
	"strconv"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/snapline/snapagent/agent/expr"
)

// compileCacheKey identifies a (sourceKind, expr) pair the way spec.md's
// Design Notes describe the Expression Compile Cache being keyed. It is
// encoded as a string since ristretto.Key does not accept struct types.
type compileCacheKey = string

func makeCompileCacheKey(kind expr.Kind, source string) compileCacheKey {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(kind)))
	b.WriteByte(0)
	b.WriteString(source)
	return b.String()
}

// CompileCache memoizes compile(sourceKind, expr) so a hot breakpoint
// condition is not re-parsed on every hit, the same cost-bounded eviction
// strategy the teacher applies to its own field cache.
type CompileCache struct {
	cache *ristretto.Cache[compileCacheKey, *compiledExpr]
}

// NewCompileCache builds a cache sized for about a thousand distinct
// condition/expression strings (MaxCost 1,000); compiled handles are small
// so the cost function is simply 1 per entry.
func NewCompileCache() (*CompileCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[compileCacheKey, *compiledExpr]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CompileCache{cache: c}, nil
}

func (cc *CompileCache) get(kind expr.Kind, source string) (*compiledExpr, bool) {
	if cc == nil || cc.cache == nil {
		return nil, false
	}
	return cc.cache.Get(makeCompileCacheKey(kind, source))
}

func (cc *CompileCache) put(kind expr.Kind, source string, ce *compiledExpr) {
	if cc == nil || cc.cache == nil {
		return
	}
	cc.cache.Set(makeCompileCacheKey(kind, source), ce, 1)
}

// Close releases the cache's background goroutines. Safe to call on a nil
// *CompileCache.
func (cc *CompileCache) Close() {
	if cc == nil || cc.cache == nil {
		return
	}
	cc.cache.Close()
}
