package flagrelay

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPendingTableLifecycle(t *testing.T) {
	table := newPendingTable()

	var got []byte
	id := table.register(func(data []byte, err error) {
		if err != nil {
			t.Errorf("unexpected terminal error: %v", err)
		}
		got = data
	})

	if !table.appendData(id, []byte("hello ")) {
		t.Error("appendData on live id should succeed")
	}
	if !table.appendData(id, []byte("world")) {
		t.Error("appendData on live id should succeed")
	}
	if table.size() != 1 {
		t.Errorf("size = %d, want 1", table.size())
	}

	if !table.complete(id, nil) {
		t.Error("complete on live id should succeed")
	}
	if string(got) != "hello world" {
		t.Errorf("accumulated body = %q", got)
	}
	if table.size() != 0 {
		t.Errorf("size after complete = %d, want 0", table.size())
	}
}

func TestPendingTableUnknownIdentifierIsNoOp(t *testing.T) {
	table := newPendingTable()

	if table.appendData(42, []byte("x")) {
		t.Error("appendData for unknown id must be a no-op")
	}
	if table.complete(42, nil) {
		t.Error("complete for unknown id must be a no-op")
	}
}

func TestPendingTableCompletesExactlyOnce(t *testing.T) {
	table := newPendingTable()

	var calls atomic.Int64
	id := table.register(func(data []byte, err error) {
		calls.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.complete(id, nil)
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("terminal fired %d times, want exactly once", calls.Load())
	}

	// Data events after completion are ignored.
	if table.appendData(id, []byte("late")) {
		t.Error("appendData after completion must be a no-op")
	}
}

func TestPendingTableErrorDiscardsPartialData(t *testing.T) {
	table := newPendingTable()

	boom := errors.New("boom")
	var gotData []byte
	var gotErr error
	id := table.register(func(data []byte, err error) {
		gotData, gotErr = data, err
	})

	table.appendData(id, []byte("partial"))
	table.complete(id, boom)

	if !errors.Is(gotErr, boom) {
		t.Errorf("terminal error = %v, want boom", gotErr)
	}
	if gotData != nil {
		t.Errorf("partial data must not be delivered on failure, got %q", gotData)
	}
}

func TestCompletionQueueSerialDelivery(t *testing.T) {
	q := newCompletionQueue()
	defer q.close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		q.deliver(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("callbacks reordered: %v", order)
		}
	}
}

func TestCompletionQueueCloseDropsLateDeliveries(t *testing.T) {
	q := newCompletionQueue()
	q.close()
	q.close() // idempotent

	fired := make(chan struct{})
	q.deliver(func() { close(fired) })

	select {
	case <-fired:
		t.Error("delivery after close must be dropped")
	case <-time.After(50 * time.Millisecond):
	}
}
