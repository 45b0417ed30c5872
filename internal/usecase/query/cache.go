package query

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/reposage/reposage-api/internal/domain/repository"
)

const cacheKeyPrefix = "query_cache:"

// AnswerCache stores finished answers keyed by repository and question so a
// repeated question skips retrieval and generation entirely.
type AnswerCache struct {
	kv  repository.KVStore
	ttl time.Duration
}

// NewAnswerCache creates an AnswerCache whose entries expire after ttl.
func NewAnswerCache(kv repository.KVStore, ttl time.Duration) *AnswerCache {
	return &AnswerCache{kv: kv, ttl: ttl}
}

func cacheKey(repoID, question string) string {
	return cacheKeyPrefix + repoID + ":" + question
}

// Get returns the cached answer for the exact repoID and question pair. A
// missing entry, an unreachable store, and a nil store all report a miss.
func (c *AnswerCache) Get(ctx context.Context, repoID, question string) (string, bool) {
	if c.kv == nil {
		return "", false
	}
	val, err := c.kv.Get(ctx, cacheKey(repoID, question))
	if err != nil {
		if !errors.Is(err, repository.ErrKeyNotFound) {
			log.Printf("[Cache] ⚠️ Answer lookup failed: %v", err)
		}
		return "", false
	}
	return val, true
}

// Set stores answer for the repoID and question pair. Failures are logged
// and swallowed: the cache is an accelerator, not a dependency.
func (c *AnswerCache) Set(ctx context.Context, repoID, question, answer string) {
	if c.kv == nil {
		return
	}
	if err := c.kv.Set(ctx, cacheKey(repoID, question), answer, c.ttl); err != nil {
		log.Printf("[Cache] ⚠️ Answer store failed: %v", err)
	}
}
