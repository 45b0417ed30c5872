package ingest

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/reposage/reposage-api/internal/domain/repository"
)

const (
	indexedKeyPrefix  = "repo_indexed:"
	indexingKeyPrefix = "repo_indexing:"
)

// StatusTracker records which repositories have completed indexing and which
// have an indexing run in flight. The backing store is optional: when kv is
// nil or unreachable the tracker fails open, preferring a redundant re-index
// over permanently blocking one.
type StatusTracker struct {
	kv       repository.KVStore
	claimTTL time.Duration
}

// NewStatusTracker creates a StatusTracker. kv may be nil.
func NewStatusTracker(kv repository.KVStore, claimTTL time.Duration) *StatusTracker {
	return &StatusTracker{
		kv:       kv,
		claimTTL: claimTTL,
	}
}

// IsIndexed reports whether repoID has completed a full indexing run.
func (t *StatusTracker) IsIndexed(ctx context.Context, repoID string) bool {
	if t.kv == nil {
		return false
	}
	val, err := t.kv.Get(ctx, indexedKeyPrefix+repoID)
	if err != nil {
		if !errors.Is(err, repository.ErrKeyNotFound) {
			log.Printf("[Tracker] ⚠️ Flag lookup failed for %s: %v", repoID, err)
		}
		return false
	}
	return val == "true"
}

// MarkIndexed sets the durable completion flag for repoID and releases any
// in-flight claim. The flag has no expiry.
func (t *StatusTracker) MarkIndexed(ctx context.Context, repoID string) error {
	if t.kv == nil {
		return nil
	}
	if err := t.kv.Set(ctx, indexedKeyPrefix+repoID, "true", 0); err != nil {
		return err
	}
	t.Release(ctx, repoID)
	return nil
}

// Claim atomically marks repoID as having an indexing run in flight. It
// returns false when another run already holds the claim. The claim expires
// after the configured TTL so a crashed run cannot block a repository forever.
// When the store is unavailable the claim is granted.
func (t *StatusTracker) Claim(ctx context.Context, repoID string) bool {
	if t.kv == nil {
		return true
	}
	ok, err := t.kv.SetNX(ctx, indexingKeyPrefix+repoID, "1", t.claimTTL)
	if err != nil {
		log.Printf("[Tracker] ⚠️ Claim failed for %s, proceeding without one: %v", repoID, err)
		return true
	}
	return ok
}

// Release drops the in-flight claim for repoID. Best effort.
func (t *StatusTracker) Release(ctx context.Context, repoID string) {
	if t.kv == nil {
		return
	}
	if err := t.kv.Del(ctx, indexingKeyPrefix+repoID); err != nil {
		log.Printf("[Tracker] ⚠️ Claim release failed for %s: %v", repoID, err)
	}
}
