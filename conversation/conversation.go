// Package conversation lets a handler suspend until a follow-up message
// matching a predicate arrives.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nicebartender/botgate/event"
)

var (
	ErrResponseTimeout = errors.New("response timeout")
	ErrUnknownHandle   = errors.New("unknown waiter handle")
)

type Predicate func(*event.Message) bool

// Handle identifies a registered waiter.
type Handle uint64

type waiter struct {
	id           Handle
	match        Predicate
	ch           chan *event.Message // cap 1; written once by Offer
	registeredAt time.Time
}

// Set holds the waiters of one bot. Active waiters are offered messages in
// registration order; a matched waiter stays reachable by handle until Wait
// collects its message.
type Set struct {
	mu      sync.Mutex
	next    Handle
	waiters []*waiter
	handles map[Handle]*waiter
	log     *slog.Logger
}

func NewSet(log *slog.Logger) *Set {
	if log == nil {
		log = slog.Default()
	}
	return &Set{handles: make(map[Handle]*waiter), log: log}
}

// Register adds a waiter and returns its handle. Messages offered from now
// on are tested against match, even before Wait is called.
func (s *Set) Register(match Predicate) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	w := &waiter{
		id:           s.next,
		match:        match,
		ch:           make(chan *event.Message, 1),
		registeredAt: time.Now(),
	}
	s.waiters = append(s.waiters, w)
	s.handles[w.id] = w
	return w.id
}

// Wait suspends until the waiter is matched or timeout elapses. The waiter
// is removed either way.
func (s *Set) Wait(ctx context.Context, h Handle, timeout time.Duration) (*event.Message, error) {
	w := s.find(h)
	if w == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	defer s.forget(h)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-w.ch:
		return m, nil
	case <-timer.C:
		if s.remove(w) {
			return nil, fmt.Errorf("%w: no reply within %s", ErrResponseTimeout, timeout)
		}
	case <-ctx.Done():
		if s.remove(w) {
			return nil, ctx.Err()
		}
	}
	// Offer removed the waiter first; the message is already queued.
	return <-w.ch, nil
}

// Expect registers match and waits for it.
func (s *Set) Expect(ctx context.Context, match Predicate, timeout time.Duration) (*event.Message, error) {
	return s.Wait(ctx, s.Register(match), timeout)
}

// Withdraw drops a waiter nobody will wait on and reports whether it was
// still pending. A waiter that was already matched gives back the message
// it captured, so the caller can route it elsewhere.
func (s *Set) Withdraw(h Handle) (*event.Message, bool) {
	w := s.find(h)
	if w == nil {
		return nil, false
	}
	s.forget(h)
	if s.remove(w) {
		return nil, true
	}
	// Offer removed it and is about to queue the message.
	return <-w.ch, false
}

// Offer hands m to every waiter whose predicate matches and reports
// whether any did. A captured message must not be dispatched further.
func (s *Set) Offer(m *event.Message) bool {
	s.mu.Lock()
	snapshot := append([]*waiter(nil), s.waiters...)
	s.mu.Unlock()

	captured := false
	for _, w := range snapshot {
		if !s.test(w, m) {
			continue
		}
		if s.remove(w) {
			w.ch <- m
			captured = true
		}
	}
	return captured
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func (s *Set) test(w *waiter, m *event.Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("waiter predicate panicked", "waiter", w.id, "panic", r)
			ok = false
		}
	}()
	return w.match(m)
}

func (s *Set) find(h Handle) *waiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[h]
}

func (s *Set) forget(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h)
}

func (s *Set) remove(w *waiter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.waiters {
		if cur == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}
