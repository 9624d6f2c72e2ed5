package call

import (
	"sync"
	"testing"
)

func TestSequenceStartsAtOne(t *testing.T) {
	var s Sequence
	for want := int64(1); want <= 5; want++ {
		if got := s.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
}

func TestSequenceWrapsSkippingZero(t *testing.T) {
	s := Sequence{last: MaxTag - 1}
	if got := s.Next(); got != MaxTag {
		t.Fatalf("Next() = %d, want %d", got, MaxTag)
	}
	if got := s.Next(); got != 1 {
		t.Fatalf("Next() after wrap = %d, want 1", got)
	}
}

func TestSequenceConcurrentUnique(t *testing.T) {
	var s Sequence
	const workers, per = 16, 500

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*per)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for j := 0; j < per; j++ {
				local = append(local, s.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, v := range local {
				if v == 0 {
					t.Errorf("got zero tag")
				}
				if seen[v] {
					t.Errorf("tag %d handed out twice", v)
				}
				seen[v] = true
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*per {
		t.Fatalf("got %d unique tags, want %d", len(seen), workers*per)
	}
}
