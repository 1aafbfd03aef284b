package runtime

import (
	"sync"
	"testing"
	"time"
)

func TestGateBoundsConcurrency(t *testing.T) {
	g := newGate(2)
	g.acquire()
	g.acquire()

	acquired := make(chan struct{})
	go func() {
		g.acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("expected third acquire to block while 2 slots are held")
	case <-time.After(20 * time.Millisecond):
	}

	g.release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("expected third acquire to proceed after a release")
	}
	g.release()
	g.release()
}

func TestNewGateClampsNonPositiveToOne(t *testing.T) {
	g := newGate(0)
	g.acquire()

	acquired := make(chan struct{})
	go func() {
		g.acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("expected a zero-capacity request to behave as capacity 1")
	case <-time.After(20 * time.Millisecond):
	}
	g.release()
	<-acquired
	g.release()
}

func TestGateSetReturnsSameGateForSameKey(t *testing.T) {
	gs := newGateSet()
	a := gs.For("acme/widget", "issue", 3)
	b := gs.For("acme/widget", "issue", 99) // capacity ignored on second call
	if a != b {
		t.Fatal("expected the same gate instance for repeated (repo, bucket) lookups")
	}
}

func TestGateSetSeparatesDifferentKeys(t *testing.T) {
	gs := newGateSet()
	a := gs.For("acme/widget", "issue", 1)
	b := gs.For("acme/widget", "pr", 1)
	c := gs.For("acme/other", "issue", 1)
	if a == b || a == c || b == c {
		t.Fatal("expected distinct gates for distinct (repo, bucket) pairs")
	}
}

func TestGateSetIsSafeForConcurrentFor(t *testing.T) {
	gs := newGateSet()
	var wg sync.WaitGroup
	results := make([]*gate, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gs.For("acme/widget", "issue", 2)
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("expected concurrent For calls on the same key to converge on one gate")
		}
	}
}
