package kbucket

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// offlineEntry is a single failure-log entry: a failure counter and the
// timestamp of the most recent failure, each instance guarded by its own
// mutex, acquired only after the log's mapping lock.
type offlineEntry struct {
	mu          sync.Mutex
	counter     uint32
	lastOffline time.Time
}

// offlineLog is a bounded-LRU cache of recent failure counters. It
// suppresses re-admission of peers that have recently failed maxFail
// times within cacheTimeout.
type offlineLog struct {
	mu           sync.Mutex
	cache        *lru.Cache
	maxFail      uint32
	cacheTimeout time.Duration
}

func newOfflineLog(cacheSize int, maxFail uint32, cacheTimeout time.Duration) (*offlineLog, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &offlineLog{cache: cache, maxFail: maxFail, cacheTimeout: cacheTimeout}, nil
}

// getOrCreate returns the entry for id, creating one if absent. The
// mapping lock is held only long enough to look up or insert. The returned
// reference stays safe to use after that lock is released, but the LRU
// evicts by recency alone and may drop the entry in the meantime; a change
// made through an evicted entry is not seen by later lookups.
func (l *offlineLog) getOrCreate(id Id) *offlineEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.cache.Get(id); ok {
		return v.(*offlineEntry)
	}
	e := &offlineEntry{}
	l.cache.Add(id, e)
	return e
}

func (l *offlineLog) get(id Id) (*offlineEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*offlineEntry), true
}

func (l *offlineLog) clear(id Id) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Remove(id)
}

// shouldRemoveLocked reports whether the most recent failure is still
// within cacheTimeout and the failure count has reached maxFail. Caller
// must hold e.mu.
func (l *offlineLog) shouldRemoveLocked(e *offlineEntry, now time.Time) bool {
	return now.Sub(e.lastOffline) <= l.cacheTimeout && e.counter >= l.maxFail
}

// isSuppressed reports whether id is currently held back by a recent run
// of failures: a peer with no log entry is never suppressed, and one
// whose entry has gone stale (no failures for longer than cacheTimeout)
// is purged and treated as not suppressed, since staleness is no longer
// evidence of a dead peer.
func (l *offlineLog) isSuppressed(id Id, now time.Time) bool {
	e, ok := l.get(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	suppressed := l.shouldRemoveLocked(e, now)
	stale := !suppressed && now.Sub(e.lastOffline) > l.cacheTimeout
	e.mu.Unlock()
	if stale {
		l.clear(id)
	}
	return suppressed
}

// recordFailure applies one offline observation to the log and reports
// whether the removal threshold is met. When force is set the counter is
// driven straight to maxFail, guaranteeing removal.
func (l *offlineLog) recordFailure(id Id, force bool, now time.Time) bool {
	e := l.getOrCreate(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if force {
		e.counter = l.maxFail
		e.lastOffline = now
		return true
	}

	if l.shouldRemoveLocked(e, now) {
		return true
	}

	e.counter++
	e.lastOffline = now
	return l.shouldRemoveLocked(e, now)
}
