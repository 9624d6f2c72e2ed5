package call

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreResolve(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Begin(1))

	go func() {
		assert.True(t, s.Resolve(1, Reply{Status: "ok", Data: json.RawMessage(`{"x":1}`)}))
	}()

	reply, err := s.Await(context.Background(), 1, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(reply.Data))
	assert.Equal(t, 0, s.Len())
}

func TestStoreResolveUnknownTagIsDropped(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Resolve(99, Reply{Status: "ok"}))
	assert.Equal(t, 0, s.Len())
}

func TestStoreBeginDuplicate(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Begin(5))
	assert.ErrorIs(t, s.Begin(5), ErrDuplicateTag)
}

func TestStoreTimeoutRetires(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Begin(3))

	_, err := s.Await(context.Background(), 3, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrCallTimeout)
	assert.Equal(t, 0, s.Len())

	// A late reply finds nothing to resolve.
	assert.False(t, s.Resolve(3, Reply{Status: "ok"}))
}

func TestStoreContextCancel(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Begin(4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Await(ctx, 4, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestStoreAwaitUnknown(t *testing.T) {
	_, err := NewStore().Await(context.Background(), 1, time.Millisecond)
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestStoreFail(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Begin(1))
	require.NoError(t, s.Begin(2))

	errs := make(chan error, 2)
	for _, tag := range []int64{1, 2} {
		go func(tag int64) {
			_, err := s.Await(context.Background(), tag, time.Second)
			errs <- err
		}(tag)
	}

	assert.Equal(t, 2, s.Fail(ErrClosed))
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, <-errs, ErrClosed)
	}
	assert.Equal(t, 0, s.Len())
}

// Resolve and the timeout race on every tag; exactly one of them must win.
func TestStoreResolveTimeoutRace(t *testing.T) {
	s := NewStore()
	const n = 200

	var wg sync.WaitGroup
	var mu sync.Mutex
	resolved, delivered, timedOut := 0, 0, 0

	for tag := int64(1); tag <= n; tag++ {
		require.NoError(t, s.Begin(tag))
		wg.Add(2)
		go func(tag int64) {
			defer wg.Done()
			_, err := s.Await(context.Background(), tag, time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				delivered++
			case errors.Is(err, ErrCallTimeout):
				timedOut++
			default:
				t.Errorf("tag %d: unexpected error %v", tag, err)
			}
		}(tag)
		go func(tag int64) {
			defer wg.Done()
			time.Sleep(time.Duration(tag%3) * time.Millisecond)
			if s.Resolve(tag, Reply{Status: "ok"}) {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}(tag)
	}
	wg.Wait()

	assert.Equal(t, n, delivered+timedOut)
	assert.Equal(t, resolved, delivered)
	assert.Equal(t, 0, s.Len())
}
