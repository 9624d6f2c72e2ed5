package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/nicebartender/botgate/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func msg(user, group int64, text string) *event.Message {
	return &event.Message{Sender: event.Sender{UserID: user, GroupID: group}, Text: text}
}

func TestOfferNonMatchingLeavesWaiterPending(t *testing.T) {
	s := NewSet(nil)
	first := msg(1, 10, "start")
	h := s.Register(event.SameSender(first))

	assert.False(t, s.Offer(msg(2, 10, "not me")))
	assert.Equal(t, 1, s.Len())

	reply := msg(1, 10, "42")
	assert.True(t, s.Offer(reply))
	assert.Equal(t, 0, s.Len())

	got, err := s.Wait(context.Background(), h, 5*time.Second)
	require.NoError(t, err)
	assert.Same(t, reply, got)
}

func TestExpectResolvesImmediately(t *testing.T) {
	s := NewSet(nil)
	first := msg(1, 10, "start")

	done := make(chan *event.Message, 1)
	go func() {
		m, err := s.Expect(context.Background(), event.SameSender(first), 5*time.Second)
		assert.NoError(t, err)
		done <- m
	}()

	require.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, time.Millisecond)
	reply := msg(1, 10, "yes")
	start := time.Now()
	require.True(t, s.Offer(reply))
	assert.Same(t, reply, <-done)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitTimeout(t *testing.T) {
	s := NewSet(nil)
	_, err := s.Expect(context.Background(), func(*event.Message) bool { return true }, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrResponseTimeout)
	assert.Equal(t, 0, s.Len())

	// After the timeout nothing is left to capture the message.
	assert.False(t, s.Offer(msg(1, 0, "late")))
}

func TestOfferMatchesEveryWaiter(t *testing.T) {
	s := NewSet(nil)
	all := func(*event.Message) bool { return true }
	h1 := s.Register(all)
	h2 := s.Register(all)
	h3 := s.Register(func(m *event.Message) bool { return m.Text == "other" })

	m := msg(1, 0, "x")
	assert.True(t, s.Offer(m))
	assert.Equal(t, 1, s.Len())

	for _, h := range []Handle{h1, h2} {
		got, err := s.Wait(context.Background(), h, time.Second)
		require.NoError(t, err)
		assert.Same(t, m, got)
	}
	_, pending := s.Withdraw(h3)
	assert.True(t, pending)
	left, pending := s.Withdraw(h3)
	assert.False(t, pending)
	assert.Nil(t, left)
}

func TestWithdrawReturnsCapturedMessage(t *testing.T) {
	s := NewSet(nil)
	first := msg(1, 10, "start")
	h := s.Register(event.SameSender(first))

	answer := msg(1, 10, "already here")
	require.True(t, s.Offer(answer))

	left, pending := s.Withdraw(h)
	assert.False(t, pending)
	assert.Same(t, answer, left)

	_, err := s.Wait(context.Background(), h, time.Millisecond)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestPanickingPredicateIsSkipped(t *testing.T) {
	s := NewSet(nil)
	h := s.Register(func(*event.Message) bool { panic("boom") })
	assert.False(t, s.Offer(msg(1, 0, "x")))
	_, pending := s.Withdraw(h)
	assert.True(t, pending)
}

func TestWaitUnknownHandle(t *testing.T) {
	_, err := NewSet(nil).Wait(context.Background(), 99, time.Millisecond)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

// Offer and the timeout race; exactly one outcome per waiter.
func TestOfferTimeoutRace(t *testing.T) {
	s := NewSet(nil)
	const n = 100
	results := make(chan error, n)
	captured := make(chan bool, n)

	for i := 0; i < n; i++ {
		id := int64(i + 1)
		h := s.Register(func(m *event.Message) bool { return m.Sender.UserID == id })
		go func() {
			_, err := s.Wait(context.Background(), h, time.Millisecond)
			results <- err
		}()
		go func() {
			time.Sleep(time.Duration(id%3) * time.Millisecond)
			captured <- s.Offer(msg(id, 0, "r"))
		}()
	}

	delivered, timedOut, offered := 0, 0, 0
	for i := 0; i < n; i++ {
		if err := <-results; err == nil {
			delivered++
		} else {
			assert.ErrorIs(t, err, ErrResponseTimeout)
			timedOut++
		}
		if <-captured {
			offered++
		}
	}
	assert.Equal(t, n, delivered+timedOut)
	assert.Equal(t, offered, delivered)
	assert.Equal(t, 0, s.Len())
}
