package transpile

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nevindra/jcl"
)

// Cached memoizes successful transpilations of another jcl.Transpiler.
// Transpilation is deterministic, so a hit returns exactly what the inner
// transpiler would. Failures are not cached.
type Cached struct {
	inner jcl.Transpiler
	cache *lru.Cache[[sha256.Size]byte, string]
}

var _ jcl.Transpiler = (*Cached)(nil)

// NewCached wraps inner with an LRU cache holding up to size results.
func NewCached(inner jcl.Transpiler, size int) (*Cached, error) {
	c, err := lru.New[[sha256.Size]byte, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: c}, nil
}

func (c *Cached) Transpile(source string) (string, error) {
	key := sha256.Sum256([]byte(source))
	if target, ok := c.cache.Get(key); ok {
		return target, nil
	}
	target, err := c.inner.Transpile(source)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, target)
	return target, nil
}

// Len reports how many results are cached.
func (c *Cached) Len() int { return c.cache.Len() }
