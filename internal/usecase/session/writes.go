package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/metrics"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/rs/zerolog/log"
)

type queuedWrite struct {
	userID string
	patch  domain.Patch
}

// writeQueue applies a session's own-record writes one at a time, in the order they were
// stamped, so a later revision can never land before an earlier one.
type writeQueue struct {
	store   repository.ProfileStore
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.Mutex
	cond   *sync.Cond
	items  []queuedWrite
	busy   bool
	closed bool
	done   chan struct{}
}

func newWriteQueue(store repository.ProfileStore, m *metrics.Metrics, timeout time.Duration) *writeQueue {
	q := &writeQueue{
		store:   store,
		metrics: m,
		timeout: timeout,
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *writeQueue) push(userID string, patch domain.Patch) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, queuedWrite{userID: userID, patch: patch})
	q.cond.Broadcast()
}

func (q *writeQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.busy = true
		q.mu.Unlock()

		q.apply(item)

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *writeQueue) apply(item queuedWrite) {
	// Anything that cannot be encoded must never reach the store half-written.
	if _, err := json.Marshal(item.patch); err != nil {
		q.metrics.StoreWriteFailed("encode")
		log.Error().Err(err).Str("user_id", item.userID).Strs("groups", groupNames(item.patch)).
			Msg("Abandoning write: record is not serializable")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := q.store.Write(ctx, item.userID, item.patch); err != nil {
		q.metrics.StoreWriteFailed("store")
		log.Warn().Err(err).Str("user_id", item.userID).Strs("groups", groupNames(item.patch)).
			Msg("Failed to persist session state")
	}
}

// flush blocks until every write pushed so far has been attempted.
func (q *writeQueue) flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) > 0 || q.busy {
		q.cond.Wait()
	}
}

// close drains the queue and stops the worker.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func groupNames(p domain.Patch) []string {
	groups := p.Groups()
	names := make([]string, 0, len(groups)+1)
	for _, g := range groups {
		names = append(names, string(g))
	}
	if p.Presence != nil {
		names = append(names, "presence")
	}
	return names
}
