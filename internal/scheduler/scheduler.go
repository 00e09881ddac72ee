// Package scheduler owns one deferred timer per open party and dispatches
// the matching workflow when a party's deadline arrives. Timers live only
// in process memory; durable state is the persisted deadline, so Recover
// rebuilds the registry from storage after a restart.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bananalabs-oss/sleigh/internal/matching"
	"github.com/bananalabs-oss/sleigh/internal/models"
	"github.com/bananalabs-oss/sleigh/internal/store"
	"github.com/google/uuid"
)

const defaultDispatchTimeout = 30 * time.Second

type Scheduler struct {
	store           *store.Store
	now             func() time.Time
	dispatchTimeout time.Duration

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	stopped bool
}

func New(st *store.Store) *Scheduler {
	return &Scheduler{
		store:           st,
		now:             time.Now,
		dispatchTimeout: defaultDispatchTimeout,
		timers:          make(map[uuid.UUID]*time.Timer),
	}
}

// Recover re-arms a timer for every party whose matches have not been made,
// computing the remaining delay from the persisted deadline. Parties whose
// deadline passed while the process was down are dispatched immediately
// rather than skipped.
func (s *Scheduler) Recover(ctx context.Context) error {
	parties, err := s.store.ListOpenParties(ctx)
	if err != nil {
		return err
	}
	for i := range parties {
		log.Printf("Spawning timer for party %s (resolves at %s)", parties[i].ID, parties[i].EndsAt.UTC())
		s.Schedule(&parties[i])
	}
	return nil
}

// Schedule arms the party's deadline timer. An already-resolved party or a
// party that already holds a timer is left alone, so a creation racing a
// startup recovery arms at most one timer; even if both dispatch, the
// workflow's atomic commit discards the loser.
func (s *Scheduler) Schedule(party *models.Party) {
	if party.MatchesMade {
		return
	}

	delay := party.EndsAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, armed := s.timers[party.ID]; armed {
		return
	}

	id := party.ID
	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(id)
	})
}

func (s *Scheduler) fire(id uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
	defer cancel()

	if err := matching.Resolve(ctx, s.store, id); err != nil {
		// Party stays open; the next process start re-arms and retries.
		log.Printf("Failed to resolve party %s: %v", id, err)
	}
}

// Stop cancels all armed timers. Dispatches already in flight finish on
// their own; their results land in storage, not in scheduler state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Pending reports how many timers are currently armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
