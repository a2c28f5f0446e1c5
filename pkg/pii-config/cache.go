package piiconfig

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Cache holds compiled rules keyed by the fingerprint of the document they
// were compiled from, so that callers receiving the same document on every
// request compile it once.
//
// The cache is unbounded: entries stay until Reset.
type Cache struct {
	mutex sync.RWMutex
	cache map[uint64]cacheEntry
}

type cacheEntry struct {
	doc   string
	rules *Rules
}

func NewCache() *Cache {
	return &Cache{cache: map[uint64]cacheEntry{}}
}

// Get retrieves the rules compiled from doc
func (c *Cache) Get(doc []byte) (*Rules, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	e, ok := c.cache[xxhash.Sum64(doc)]
	if !ok || e.doc != string(doc) {
		return nil, false
	}
	return e.rules, true
}

// Set stores the rules compiled from doc
func (c *Cache) Set(doc []byte, rules *Rules) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache[xxhash.Sum64(doc)] = cacheEntry{doc: string(doc), rules: rules}
}

// Load returns the cached rules for doc, parsing and compiling it on a
// miss. Documents that fail to compile are not cached.
func (c *Cache) Load(doc []byte) (*Rules, error) {
	if rules, ok := c.Get(doc); ok {
		return rules, nil
	}
	cfg, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	rules, err := Compile(cfg)
	if err != nil {
		return nil, err
	}
	c.Set(doc, rules)
	return rules, nil
}

func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// Reset drops every cached entry.
func (c *Cache) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache = map[uint64]cacheEntry{}
}
