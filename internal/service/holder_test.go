package service

import (
	"sync"
	"testing"
)

func TestHolderBuildsOnce(t *testing.T) {
	builds := 0
	h := NewHolder(func() *Collection[task] {
		builds++
		return newTaskService(&stubClient{})
	})

	var wg sync.WaitGroup
	results := make([]*Collection[task], 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.Get()
		}()
	}
	wg.Wait()

	if builds != 1 {
		t.Fatalf("constructor ran %d times", builds)
	}
	for i, got := range results {
		if got != results[0] {
			t.Fatalf("Get %d returned a different instance", i)
		}
	}
}
