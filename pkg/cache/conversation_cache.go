// Package cache holds short-lived, process-local copies of conversation
// metadata so hot conversations skip a storage round trip.
package cache

import (
	"sync"
	"time"

	"github.com/botconsulting/botgpt/pkg/db"
)

// DefaultTTL is used when the configured TTL is not set.
const DefaultTTL = 300 * time.Second

type entry struct {
	conversation db.Conversation
	expiresAt    time.Time // zero means no expiry
}

// ConversationCache maps conversation id to a snapshot with an absolute expiry.
// It is not authoritative: a miss always means "read the store".
// Expired entries are evicted lazily on lookup.
//
// Read-through fills use Generation and StoreIfCurrent so that a snapshot
// loaded before an Invalidate is never written back after it.
type ConversationCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	entries    map[string]entry
	generation uint64
}

// Option configures a ConversationCache.
type Option func(*ConversationCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ConversationCache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache. ttl <= 0 disables expiry.
func New(ttl time.Duration, opts ...Option) *ConversationCache {
	c := &ConversationCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time to live.
func (c *ConversationCache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns a copy of the cached conversation. An entry at or past its
// expiry is removed and reported absent.
func (c *ConversationCache) Lookup(id string) (db.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return db.Conversation{}, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, id)
		return db.Conversation{}, false
	}
	return cloneConversation(e.conversation), true
}

// Store inserts or replaces the entry for id, resetting its expiry.
func (c *ConversationCache) Store(id string, conversation db.Conversation) {
	e := entry{conversation: cloneConversation(conversation)}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()
}

// Generation returns a counter that advances on every Invalidate. Read it
// before loading from the store and pass it to StoreIfCurrent.
func (c *ConversationCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// StoreIfCurrent stores conversation only if no Invalidate happened since gen
// was read. It reports whether the entry was written.
func (c *ConversationCache) StoreIfCurrent(id string, gen uint64, conversation db.Conversation) bool {
	e := entry{conversation: cloneConversation(conversation)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[id] = e
	return true
}

// Invalidate removes id and advances the generation. Removing an absent id is
// a no-op apart from the generation bump.
func (c *ConversationCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.generation++
	c.mu.Unlock()
}

// Len reports the number of entries, expired ones included.
func (c *ConversationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func cloneConversation(src db.Conversation) db.Conversation {
	dst := src
	if src.Title != nil {
		title := *src.Title
		dst.Title = &title
	}
	if src.Summary != nil {
		summary := *src.Summary
		dst.Summary = &summary
	}
	return dst
}
