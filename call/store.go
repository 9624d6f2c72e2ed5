package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrCallTimeout  = errors.New("call timeout")
	ErrDuplicateTag = errors.New("correlation tag already in flight")
	ErrUnknownTag   = errors.New("correlation tag not in flight")
	ErrClosed       = errors.New("connection closed")
)

type result struct {
	reply Reply
	err   error
}

type pendingCall struct {
	ch        chan result // cap 1; written once by whoever retires the call
	createdAt time.Time
}

// Store tracks in-flight calls by correlation tag. Every call is retired
// exactly once: by Resolve, by Await giving up, by Cancel or by Fail. The
// losing path of any race is a no-op.
type Store struct {
	mu      sync.Mutex
	pending map[int64]*pendingCall
}

func NewStore() *Store {
	return &Store{pending: make(map[int64]*pendingCall)}
}

// Begin registers a call under tag. It must be called before the request
// leaves, so that a fast reply always finds its slot.
func (s *Store) Begin(tag int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[tag]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateTag, tag)
	}
	s.pending[tag] = &pendingCall{ch: make(chan result, 1), createdAt: time.Now()}
	return nil
}

// Resolve delivers reply to the call waiting on tag. Unknown or already
// retired tags are dropped; it reports whether a call took the reply.
func (s *Store) Resolve(tag int64, reply Reply) bool {
	p := s.take(tag)
	if p == nil {
		return false
	}
	p.ch <- result{reply: reply}
	return true
}

// Cancel retires tag without a reply. The waiter sees ErrClosed.
func (s *Store) Cancel(tag int64) bool {
	p := s.take(tag)
	if p == nil {
		return false
	}
	p.ch <- result{err: ErrClosed}
	return true
}

// Fail retires every in-flight call with err and returns how many there
// were.
func (s *Store) Fail(err error) int {
	s.mu.Lock()
	calls := s.pending
	s.pending = make(map[int64]*pendingCall)
	s.mu.Unlock()

	for _, p := range calls {
		p.ch <- result{err: err}
	}
	return len(calls)
}

// Await blocks until tag is resolved, timeout elapses or ctx is done.
func (s *Store) Await(ctx context.Context, tag int64, timeout time.Duration) (Reply, error) {
	s.mu.Lock()
	p := s.pending[tag]
	s.mu.Unlock()
	if p == nil {
		return Reply{}, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-p.ch:
		return r.reply, r.err
	case <-timer.C:
		if s.retire(tag, p) {
			return Reply{}, fmt.Errorf("%w after %s", ErrCallTimeout, timeout)
		}
	case <-ctx.Done():
		if s.retire(tag, p) {
			return Reply{}, ctx.Err()
		}
	}
	// Someone else retired the call first; their result is already queued.
	r := <-p.ch
	return r.reply, r.err
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) take(tag int64) *pendingCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[tag]
	if !ok {
		return nil
	}
	delete(s.pending, tag)
	return p
}

func (s *Store) retire(tag int64, p *pendingCall) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[tag] != p {
		return false
	}
	delete(s.pending, tag)
	return true
}
