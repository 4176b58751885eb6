package evaluator

// FnResolutionCacheEntry is a resolved callable plus the symbolic name of
// the module it came from, if any.
type FnResolutionCacheEntry struct {
	Func   *CallableFunction
	Source string
}

// FnResolutionCache memoizes function resolution by argument-typed hash.
// A present key with a nil entry is the negative cache: "no function for
// this hash". The bloom filter implements the second-sighting admission
// policy described on BloomFilterU64.
//
// The cache is purely a memo; clearing it at any time does not affect
// correctness.
type FnResolutionCache struct {
	entries map[uint64]*FnResolutionCacheEntry
	filter  BloomFilterU64
}

func newFnResolutionCache() *FnResolutionCache {
	return &FnResolutionCache{entries: make(map[uint64]*FnResolutionCacheEntry)}
}

// Len returns the number of cached resolutions, negative entries included.
func (c *FnResolutionCache) Len() int { return len(c.entries) }

// Clear empties the cache and its filter.
func (c *FnResolutionCache) Clear() {
	c.entries = make(map[uint64]*FnResolutionCacheEntry)
	c.filter.Clear()
}

// Caches is the stack of function resolution caches. A fresh cache is pushed
// when execution enters a context whose function universe differs, such as a
// module-qualified call, and the stack is rewound, never cleared, on the way
// out.
type Caches struct {
	stack []*FnResolutionCache
}

// NewCaches creates an empty cache stack.
func NewCaches() *Caches {
	return &Caches{}
}

// Len returns the number of caches on the stack.
func (c *Caches) Len() int { return len(c.stack) }

// Current returns the cache on top of the stack, pushing one first if the
// stack is empty.
func (c *Caches) Current() *FnResolutionCache {
	if len(c.stack) == 0 {
		c.Push()
	}
	return c.stack[len(c.stack)-1]
}

// Push makes a fresh, empty cache current.
func (c *Caches) Push() {
	c.stack = append(c.stack, newFnResolutionCache())
}

// Rewind truncates the stack back to n caches.
func (c *Caches) Rewind(n int) {
	if n < len(c.stack) {
		c.stack = c.stack[:n]
	}
}
