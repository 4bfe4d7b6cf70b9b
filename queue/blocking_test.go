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

func TestBlockingFIFO(t *testing.T) {
	q := queue.NewBlocking[int](4)
	ctx := context.Background()

	for i := range 4 {
		if err := q.Push(ctx, i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	for i := range 4 {
		v, err := q.Pop(ctx)
		if err != nil || v != i {
			t.Fatalf("Pop(%d): got (%d, %v)", i, v, err)
		}
	}
}

func TestBlockingPushWaitsForSpace(t *testing.T) {
	q := queue.NewBlocking[int](1)
	ctx := context.Background()
	if err := q.Push(ctx, 1); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		if err := q.Push(ctx, 2); err != nil {
			t.Error(err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Push on full queue returned before room was made")
	case <-time.After(20 * time.Millisecond):
	}

	if v, err := q.Pop(ctx); err != nil || v != 1 {
		t.Fatalf("Pop: got (%d, %v)", v, err)
	}
	<-done
}

func TestBlockingPopWaitsForElement(t *testing.T) {
	q := queue.NewBlocking[int](1)
	ctx := context.Background()

	result := make(chan int, 1)
	go func() {
		v, err := q.Pop(ctx)
		if err != nil {
			t.Error(err)
			return
		}
		result <- v
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Push(ctx, 42); err != nil {
		t.Fatal(err)
	}
	if v := <-result; v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestBlockingCancelUnblocksWaiter(t *testing.T) {
	q := queue.NewBlocking[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Pop: got %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Pop took %v, context cancellation should unblock promptly", elapsed)
	}
}

func TestBlockingClose(t *testing.T) {
	q := queue.NewBlocking[int](2)
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

func TestBlockingCloseWakesBlockedPushers(t *testing.T) {
	q := queue.NewBlocking[int](1)
	ctx := context.Background()
	if err := q.Push(ctx, 1); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		err := q.Push(ctx, 2)
		if !errors.Is(err, queue.ErrClosed) {
			t.Errorf("blocked Push after Close: got %v, want ErrClosed", err)
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not wake a blocked Push")
	}
}

func TestBlockingConcurrentProducersConsumers(t *testing.T) {
	const producers, perProducer = 6, 50
	total := producers * perProducer
	q := queue.NewBlocking[int](16)
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

	var mu sync.Mutex
	seen := make([]bool, total)
	var cwg sync.WaitGroup
	for range 4 {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
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
	cwg.Wait()
	for i, s := range seen {
		if !s {
			t.Fatalf("value %d never delivered", i)
		}
	}
}
