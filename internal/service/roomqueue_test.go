package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRoomQueue_RunsJobsOfOneRoomInOrder(t *testing.T) {
	q := NewRoomQueue(16, time.Second, nil)

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 20; i++ {
		if err := q.Do(context.Background(), "r", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestRoomQueue_SerializesWithinRoom(t *testing.T) {
	q := NewRoomQueue(64, time.Second, nil)

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), "r", func() {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("jobs overlapped: max concurrent = %d", maxSeen)
	}
}

func TestRoomQueue_RoomsRunInParallel(t *testing.T) {
	q := NewRoomQueue(4, time.Second, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "slow", func() {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ran := false
	if err := q.Do(ctx, "fast", func() { ran = true }); err != nil || !ran {
		t.Fatalf("other room blocked: err=%v ran=%v", err, ran)
	}
	close(release)
}

func TestRoomQueue_CanceledContextSkipsJob(t *testing.T) {
	q := NewRoomQueue(4, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := q.Do(ctx, "r", func() { ran = true })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// a later job on the same room proves the canceled one did not wedge it
	if err := q.Do(context.Background(), "r", func() {}); err != nil {
		t.Fatalf("Do after cancel: %v", err)
	}
	if ran {
		t.Fatal("canceled job ran")
	}
}

func TestRoomQueue_CancelAfterStartWaitsForJob(t *testing.T) {
	q := NewRoomQueue(4, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	finished := false
	errc := make(chan error, 1)
	go func() {
		errc <- q.Do(ctx, "r", func() {
			close(started)
			<-release
			finished = true
		})
	}()

	<-started
	cancel()
	select {
	case err := <-errc:
		t.Fatalf("Do returned %v while the job was still running", err)
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	if err := <-errc; err != nil {
		t.Fatalf("job ran to completion, expected nil error, got %v", err)
	}
	if !finished {
		t.Fatal("job did not finish")
	}
}

func TestRoomQueue_CancelWhileQueuedSkipsJob(t *testing.T) {
	q := NewRoomQueue(4, time.Second, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "r", func() {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := q.Do(ctx, "r", func() { ran = true })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)

	if err := q.Do(context.Background(), "r", func() {}); err != nil {
		t.Fatalf("Do after abandoned job: %v", err)
	}
	if ran {
		t.Fatal("abandoned job ran")
	}
}

func TestRoomQueue_PanicDoesNotKillWorker(t *testing.T) {
	q := NewRoomQueue(4, time.Second, nil)
	if err := q.Do(context.Background(), "r", func() { panic("boom") }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	ran := false
	if err := q.Do(context.Background(), "r", func() { ran = true }); err != nil || !ran {
		t.Fatalf("worker dead after panic: err=%v ran=%v", err, ran)
	}
}

func TestRoomQueue_IdleWorkerExits(t *testing.T) {
	q := NewRoomQueue(4, 20*time.Millisecond, nil)
	if err := q.Do(context.Background(), "r", func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for q.Rooms() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("worker still alive after idle timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := q.Do(context.Background(), "r", func() {}); err != nil {
		t.Fatalf("Do after idle exit: %v", err)
	}
}
