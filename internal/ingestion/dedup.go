package ingestion

import (
	"container/list"
	"fmt"

	"SynthSettle/internal/observability"
)

// RequestDeduper is two-tier deduplication for participant requests.
// JetStream delivers at-least-once, and an adjust applied twice is a real
// double-spend, so every request carries a stable request ID checked here
// before the engine call.
//
// Not thread-safe: only accessed from the shell's serialized request path.
type RequestDeduper struct {
	// Tier 1: in-memory LRU
	lru *requestLRU

	// Tier 2: Postgres audit log (injected via interface)
	dbChecker DBDuplicateChecker

	metrics     *observability.Metrics
	tier2Errors int64
}

// DBDuplicateChecker is the interface for the audit-log dedup lookup.
type DBDuplicateChecker interface {
	IsDuplicate(requestType string, requestID string) (bool, error)
}

func NewRequestDeduper(capacity int, dbChecker DBDuplicateChecker, metrics *observability.Metrics) *RequestDeduper {
	return &RequestDeduper{
		lru:       newRequestLRU(capacity),
		dbChecker: dbChecker,
		metrics:   metrics,
	}
}

// IsDuplicate checks if the request has already been processed.
func (d *RequestDeduper) IsDuplicate(requestType string, requestID string) bool {
	compositeKey := fmt.Sprintf("%s:%s", requestType, requestID)

	if d.lru.contains(compositeKey) {
		d.recordHit(requestType, "lru")
		return true
	}

	if d.dbChecker != nil {
		isDup, err := d.dbChecker.IsDuplicate(requestType, requestID)
		if err != nil {
			// Conservative: a DB issue must not block request processing,
			// and the audit insert's conflict clause still catches repeats.
			d.tier2Errors++
			return false
		}
		if isDup {
			d.lru.add(compositeKey)
			d.recordHit(requestType, "db")
			return true
		}
	}

	return false
}

func (d *RequestDeduper) recordHit(requestType, tier string) {
	if d.metrics != nil {
		d.metrics.RequestDedupHits.WithLabelValues(requestType, tier).Inc()
	}
}

// MarkProcessed records the key after the engine call returns, whether it
// succeeded or was rejected: a rejection is an answer too.
func (d *RequestDeduper) MarkProcessed(requestType string, requestID string) {
	d.lru.add(fmt.Sprintf("%s:%s", requestType, requestID))
}

// Tier2Errors reports DB lookup failures, for metrics.
func (d *RequestDeduper) Tier2Errors() int64 {
	return d.tier2Errors
}

// --- LRU ---

type requestLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
}

type lruEntry struct {
	key string
}

func newRequestLRU(capacity int) *requestLRU {
	return &requestLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

func (lru *requestLRU) contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

func (lru *requestLRU) add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	elem := lru.lruList.PushFront(&lruEntry{key: key})
	lru.cache[key] = elem

	if lru.lruList.Len() > lru.capacity {
		oldest := lru.lruList.Back()
		if oldest != nil {
			lru.lruList.Remove(oldest)
			delete(lru.cache, oldest.Value.(*lruEntry).key)
		}
	}
}
