// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/spipe/queue"
)

const shortTimeout = 50 * time.Millisecond

func TestLockFreeSPSCBasic(t *testing.T) {
	q := queue.NewLockFreeSPSC[int](3)
	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}

	ctx := context.Background()
	for i := range 4 {
		if err := q.Push(ctx, i+100); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}

	for i := range 4 {
		v, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if v != i+100 {
			t.Fatalf("Pop(%d): got %d, want %d", i, v, i+100)
		}
	}
}

func TestLockFreeSPSCBlocksUntilSpace(t *testing.T) {
	q := queue.NewLockFreeSPSC[int](2)
	ctx := context.Background()
	if err := q.Push(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := q.Push(ctx, 2); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		if err := q.Push(ctx, 3); err != nil {
			t.Error(err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Push on full queue returned before room was made")
	default:
	}

	if _, err := q.Pop(ctx); err != nil {
		t.Fatal(err)
	}
	<-done
}

func TestLockFreeSPSCCancel(t *testing.T) {
	q := queue.NewLockFreeSPSC[int](2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Pop after cancel: got %v, want context.Canceled", err)
	}
}

// TestLockFreeMPMCConcurrent pushes from many producers concurrently,
// then drains sequentially, mirroring the "wait for producers, then
// consume" pattern the underlying SCQ algorithm's own package uses to
// validate MPMC ordering-agnostic delivery.
func TestLockFreeMPMCConcurrent(t *testing.T) {
	const producers, perProducer = 8, 32
	total := producers * perProducer
	q := queue.NewLockFreeMPMC[int](total)
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := range perProducer {
				if err := q.Push(ctx, base*perProducer+i); err != nil {
					t.Error(err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	seen := make([]bool, total)
	for range total {
		v, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if seen[v] {
			t.Fatalf("value %d delivered twice", v)
		}
		seen[v] = true
	}
	for i, s := range seen {
		if !s {
			t.Fatalf("value %d never delivered", i)
		}
	}
}

func TestLockFreeMPSCGathersAllProducers(t *testing.T) {
	const producers, perProducer = 4, 10
	total := producers * perProducer
	q := queue.NewLockFreeMPSC[int](total)
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := range perProducer {
				if err := q.Push(ctx, base*perProducer+i); err != nil {
					t.Error(err)
				}
			}
		}(p)
	}
	wg.Wait()

	count := 0
	for count < total {
		if _, err := q.Pop(ctx); err != nil {
			t.Fatalf("Pop: %v", err)
		}
		count++
	}
}

func TestLockFreeSPMCDistributesToManyConsumers(t *testing.T) {
	const total = 80
	q := queue.NewLockFreeSPMC[int](total)
	ctx := context.Background()

	for i := range total {
		if err := q.Push(ctx, i); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	seen := make([]bool, total)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				remaining := 0
				for _, s := range seen {
					if !s {
						remaining++
					}
				}
				mu.Unlock()
				if remaining == 0 {
					return
				}
				shortCtx, cancel := context.WithTimeout(ctx, shortTimeout)
				v, err := q.Pop(shortCtx)
				cancel()
				if err != nil {
					continue
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	for i, s := range seen {
		if !s {
			t.Fatalf("value %d never delivered", i)
		}
	}
}

func TestLockFreeClose(t *testing.T) {
	q := queue.NewLockFreeSPSC[int](4)
	ctx := context.Background()
	if err := q.Push(ctx, 1); err != nil {
		t.Fatal(err)
	}
	q.Close()

	if err := q.Push(ctx, 2); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("Push after Close: got %v, want ErrClosed", err)
	}

	v, err := q.Pop(ctx)
	if err != nil || v != 1 {
		t.Fatalf("Pop after Close should drain buffered element: got (%d, %v)", v, err)
	}

	if _, err := q.Pop(ctx); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("Pop on drained closed queue: got %v, want ErrClosed", err)
	}
}
