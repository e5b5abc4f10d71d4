package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func startPool(t *testing.T, cfg PoolConfig) *Pool {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pool := NewPool(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go pool.Start(ctx)
	return pool
}

func TestPool_Do(t *testing.T) {
	pool := startPool(t, PoolConfig{Workers: 2, QueueSize: 10})
	pool.RegisterHandler("echo", func(ctx context.Context, payload any) (any, error) {
		return payload, nil
	})

	res, err := pool.Do(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if res != "hello" {
		t.Errorf("Do() = %v, want hello", res)
	}
}

func TestPool_Do_HandlerError(t *testing.T) {
	pool := startPool(t, PoolConfig{Workers: 1, QueueSize: 10})
	wantErr := errors.New("task blew up")
	pool.RegisterHandler("fail", func(ctx context.Context, payload any) (any, error) {
		return nil, wantErr
	})

	_, err := pool.Do(context.Background(), "fail", nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
}

func TestPool_Do_UnknownTask(t *testing.T) {
	pool := startPool(t, PoolConfig{Workers: 1, QueueSize: 10})

	_, err := pool.Do(context.Background(), "nobody-registered-this", nil)
	if err == nil {
		t.Fatal("expected error for unregistered task")
	}
}

func TestPool_Do_ContextCancelled(t *testing.T) {
	pool := startPool(t, PoolConfig{Workers: 1, QueueSize: 10})
	release := make(chan struct{})
	pool.RegisterHandler("slow", func(ctx context.Context, payload any) (any, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := pool.Do(ctx, "slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want deadline exceeded", err)
	}
}

func TestPool_QueueFull(t *testing.T) {
	pool := startPool(t, PoolConfig{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	pool.RegisterHandler("slow", func(ctx context.Context, payload any) (any, error) {
		<-release
		return nil, nil
	})

	// Occupy the single worker, then fill the single queue slot.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pool.Do(context.Background(), "slow", nil)
		}()
	}

	// Wait until the worker is busy and the queue holds the second unit.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := pool.Status()
		if s.InFlight == 1 && s.QueueDepth == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := pool.Do(context.Background(), "slow", nil)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Do() error = %v, want ErrQueueFull", err)
	}

	close(release)
	wg.Wait()
}

func TestPool_ConcurrentSubmission(t *testing.T) {
	pool := startPool(t, PoolConfig{Workers: 4, QueueSize: 100})
	pool.RegisterHandler("double", func(ctx context.Context, payload any) (any, error) {
		return payload.(int) * 2, nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := pool.Do(context.Background(), "double", n)
			if err != nil {
				errs <- err
				return
			}
			if res != n*2 {
				errs <- fmt.Errorf("got %v, want %d", res, n*2)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestPool_Reserve(t *testing.T) {
	t.Run("release runs the handler", func(t *testing.T) {
		pool := startPool(t, PoolConfig{Workers: 1, QueueSize: 10})
		pool.RegisterHandler("echo", func(ctx context.Context, payload any) (any, error) {
			return payload, nil
		})

		res, err := pool.Reserve("echo", "held")
		if err != nil {
			t.Fatalf("Reserve() error = %v", err)
		}
		res.Release()

		got, err := res.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if got != "held" {
			t.Errorf("Wait() = %v, want held", got)
		}
	})

	t.Run("cancel never runs the handler", func(t *testing.T) {
		pool := startPool(t, PoolConfig{Workers: 1, QueueSize: 10})
		var ran atomic.Bool
		pool.RegisterHandler("marker", func(ctx context.Context, payload any) (any, error) {
			ran.Store(true)
			return nil, nil
		})

		res, err := pool.Reserve("marker", nil)
		if err != nil {
			t.Fatalf("Reserve() error = %v", err)
		}
		res.Cancel()

		if _, err := res.Wait(context.Background()); !errors.Is(err, context.Canceled) {
			t.Fatalf("Wait() error = %v, want context.Canceled", err)
		}
		if ran.Load() {
			t.Error("handler ran for a cancelled reservation")
		}
	})

	t.Run("full queue surfaces at reserve time", func(t *testing.T) {
		pool := startPool(t, PoolConfig{Workers: 1, QueueSize: 1})
		pool.RegisterHandler("noop", func(ctx context.Context, payload any) (any, error) {
			return nil, nil
		})

		// A held unit pins the single worker; wait for pickup so the
		// queue slot frees deterministically.
		first, err := pool.Reserve("noop", nil)
		if err != nil {
			t.Fatalf("Reserve() error = %v", err)
		}
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && pool.Status().InFlight != 1 {
			time.Sleep(5 * time.Millisecond)
		}

		second, err := pool.Reserve("noop", nil)
		if err != nil {
			t.Fatalf("second Reserve() error = %v", err)
		}

		if _, err := pool.Reserve("noop", nil); !errors.Is(err, ErrQueueFull) {
			t.Fatalf("third Reserve() error = %v, want ErrQueueFull", err)
		}

		first.Release()
		second.Release()
	})
}

func TestPool_ShutdownReleasesQueuedWaiters(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	release := make(chan struct{})
	pool.RegisterHandler("slow", func(ctx context.Context, payload any) (any, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(stopped)
	}()

	// Pin the worker, then queue a second unit behind it.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pool.Do(context.Background(), "slow", nil)
		}()
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := pool.Status()
		if s.InFlight == 1 && s.QueueDepth == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	close(release)

	// Both waiters must be released: the in-flight unit completes, the
	// queued one is either processed or failed by the shutdown drain.
	waitersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitersDone)
	}()
	select {
	case <-waitersDone:
	case <-time.After(5 * time.Second):
		t.Fatal("queued Do waiter still blocked after shutdown")
	}

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after shutdown")
	}

	if _, err := pool.Do(context.Background(), "slow", nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("Do() after shutdown error = %v, want ErrStopped", err)
	}
	if _, err := pool.Reserve("slow", nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("Reserve() after shutdown error = %v, want ErrStopped", err)
	}
}

func TestPool_Status(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 7, QueueSize: 3, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	s := pool.Status()
	if s.Workers != 7 {
		t.Errorf("Workers = %d, want 7", s.Workers)
	}
	if s.InFlight != 0 || s.QueueDepth != 0 {
		t.Errorf("idle pool reports InFlight=%d QueueDepth=%d", s.InFlight, s.QueueDepth)
	}
}

func TestPool_Defaults(t *testing.T) {
	pool := NewPool(PoolConfig{})
	s := pool.Status()
	if s.Workers != 20 {
		t.Errorf("default Workers = %d, want 20", s.Workers)
	}
}
