package exec

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"mqleval/internal/mql"
)

// execResult is a memoized execution outcome. Failures are cached too:
// re-running a query that already failed against the same database is
// wasted work during evaluation.
type execResult struct {
	docs []mql.Value
	err  error
}

// resultCache memoizes execution outcomes per (database, normalized
// query text) key.
type resultCache struct {
	lru *lru.Cache[string, execResult]
}

func newResultCache(size int) (*resultCache, error) {
	if size < 1 {
		size = 1
	}
	c, err := lru.New[string, execResult](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{lru: c}, nil
}

// cacheKey joins the database identifier with whitespace-normalized
// query text so formatting differences share one entry.
func cacheKey(dbID, query string) string {
	return dbID + "||" + mql.NormalizeWhitespace(query)
}

func (c *resultCache) get(key string) (execResult, bool) {
	return c.lru.Get(key)
}

func (c *resultCache) put(key string, r execResult) {
	c.lru.Add(key, r)
}

func (c *resultCache) len() int {
	return c.lru.Len()
}
