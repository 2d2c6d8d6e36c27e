// Package pattern compiles domain.Pattern values into matchers and caches
// the compiled form, grounded on original_source/shield/include/
// shield_pattern.h.
package pattern

import (
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sentinel/edr/internal/domain"
)

// Matcher is a compiled pattern ready to test byte slices.
type Matcher interface {
	Match(data []byte) bool
}

// Compiled wraps a Matcher with per-pattern telemetry counters, mirroring
// shield_pattern.h's eval_count/match_count fields.
type Compiled struct {
	Pattern    domain.Pattern
	matcher    Matcher
	evalCount  atomic.Uint64
	matchCount atomic.Uint64
}

// Match evaluates data and records telemetry.
func (c *Compiled) Match(data []byte) bool {
	c.evalCount.Add(1)
	if c.matcher.Match(data) {
		c.matchCount.Add(1)
		return true
	}
	return false
}

// Stats returns the running eval/match counters.
func (c *Compiled) Stats() (evals, matches uint64) {
	return c.evalCount.Load(), c.matchCount.Load()
}

type exactMatcher struct{ needle []byte }

func (m exactMatcher) Match(data []byte) bool { return string(data) == string(m.needle) }

type containsMatcher struct{ needle string }

func (m containsMatcher) Match(data []byte) bool { return strings.Contains(string(data), m.needle) }

type containsCIMatcher struct{ needle string }

func (m containsCIMatcher) Match(data []byte) bool {
	return strings.Contains(normalizeASCIILower(string(data)), m.needle)
}

type prefixMatcher struct{ needle string }

func (m prefixMatcher) Match(data []byte) bool { return strings.HasPrefix(string(data), m.needle) }

type prefixCIMatcher struct{ needle string }

func (m prefixCIMatcher) Match(data []byte) bool {
	return strings.HasPrefix(normalizeASCIILower(string(data)), m.needle)
}

type suffixMatcher struct{ needle string }

func (m suffixMatcher) Match(data []byte) bool { return strings.HasSuffix(string(data), m.needle) }

type suffixCIMatcher struct{ needle string }

func (m suffixCIMatcher) Match(data []byte) bool {
	return strings.HasSuffix(normalizeASCIILower(string(data)), m.needle)
}

type regexMatcher struct{ re *regexp.Regexp }

func (m regexMatcher) Match(data []byte) bool { return m.re.Match(data) }

// normalizeASCIILower lowercases only ASCII A-Z, leaving non-ASCII bytes
// verbatim, matching shield_pattern.h's documented case-folding rule.
func normalizeASCIILower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

// Compile builds a Matcher for p. GLOB degrades to CONTAINS, a deliberate
// simplification pending full wildcard support.
func Compile(p domain.Pattern) (Matcher, error) {
	needle := string(p.Bytes)
	ci := p.CaseInsensitive
	lowered := normalizeASCIILower(needle)

	switch p.Kind {
	case domain.PatternExact:
		if ci {
			return containsCIMatcherExact{needle: lowered}, nil
		}
		return exactMatcher{needle: p.Bytes}, nil
	case domain.PatternContains, domain.PatternGlob:
		if ci {
			return containsCIMatcher{needle: lowered}, nil
		}
		return containsMatcher{needle: needle}, nil
	case domain.PatternPrefix:
		if ci {
			return prefixCIMatcher{needle: lowered}, nil
		}
		return prefixMatcher{needle: needle}, nil
	case domain.PatternSuffix:
		if ci {
			return suffixCIMatcher{needle: lowered}, nil
		}
		return suffixMatcher{needle: needle}, nil
	case domain.PatternRegex:
		expr := needle
		if ci {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		return regexMatcher{re: re}, nil
	default:
		return containsMatcher{needle: needle}, nil
	}
}

type containsCIMatcherExact struct{ needle string }

func (m containsCIMatcherExact) Match(data []byte) bool {
	return normalizeASCIILower(string(data)) == m.needle
}

// cacheKey identifies a compiled-pattern cache entry.
type cacheKey struct {
	bytes string
	kind  domain.PatternKind
	ci    bool
}

// lruNode is one entry in the cache's intrusive doubly-linked list.
type lruNode struct {
	key     cacheKey
	entry   *Compiled
	prev    *lruNode
	next    *lruNode
}

// Cache is an LRU cache of compiled patterns keyed by
// (pattern_bytes, kind, case_insensitive), grounded on shield_pattern.h's
// pattern_cache_t.
type Cache struct {
	mu       sync.Mutex
	capacity int
	index    map[cacheKey]*lruNode
	head     *lruNode // most recently used
	tail     *lruNode // least recently used
}

// NewCache creates a cache with the given capacity. Capacity <= 0 disables
// eviction (unbounded growth); callers should always pass a positive value
// in production.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		index:    make(map[cacheKey]*lruNode),
	}
}

// GetOrCompile returns a cached Compiled matcher for p, compiling and
// inserting it if absent, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *Cache) GetOrCompile(p domain.Pattern) (*Compiled, error) {
	key := cacheKey{bytes: string(p.Bytes), kind: p.Kind, ci: p.CaseInsensitive}

	c.mu.Lock()
	if node, ok := c.index[key]; ok {
		c.moveToFront(node)
		c.mu.Unlock()
		return node.entry, nil
	}
	c.mu.Unlock()

	m, err := Compile(p)
	if err != nil {
		return nil, err
	}
	entry := &Compiled{Pattern: p, matcher: m}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have inserted the same key while we compiled
	// outside the lock; prefer the existing entry for idempotence.
	if node, ok := c.index[key]; ok {
		c.moveToFront(node)
		return node.entry, nil
	}
	node := &lruNode{key: key, entry: entry}
	c.pushFront(node)
	c.index[key] = node
	if c.capacity > 0 && len(c.index) > c.capacity {
		c.evictOldest()
	}
	return entry, nil
}

func (c *Cache) pushFront(n *lruNode) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache) unlink(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *Cache) moveToFront(n *lruNode) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *Cache) evictOldest() {
	if c.tail == nil {
		return
	}
	oldest := c.tail
	c.unlink(oldest)
	delete(c.index, oldest.key)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
