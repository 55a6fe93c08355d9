// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingSleep collects requested delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) fn(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return nil
}

func (r *recordingSleep) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

var errFlaky = errors.New("connection refused")

func TestLoad_AlwaysFailingExhaustsAttempts(t *testing.T) {
	t.Parallel()

	sleep := &recordingSleep{}
	l := New[string](Options{MaxRetries: 3, BaseDelay: time.Second, Sleep: sleep.fn, SlowThreshold: -1})

	var calls atomic.Int32
	_, err := l.Load(context.Background(), "catalog/ProductList", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errFlaky
	})

	if got := calls.Load(); got != 4 {
		t.Errorf("expected maxRetries+1 = 4 attempts, got %d", got)
	}

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T: %v", err, err)
	}
	if loadErr.Attempts != 4 {
		t.Errorf("LoadError.Attempts = %d, want 4", loadErr.Attempts)
	}
	if loadErr.Module != "catalog/ProductList" {
		t.Errorf("LoadError.Module = %q", loadErr.Module)
	}
	if !errors.Is(err, ErrLoadFailed) {
		t.Error("error should match ErrLoadFailed")
	}
	if !errors.Is(err, errFlaky) {
		t.Error("error should unwrap to the last underlying error")
	}
}

func TestLoad_BackoffSchedule(t *testing.T) {
	t.Parallel()

	sleep := &recordingSleep{}
	l := New[string](Options{MaxRetries: 3, BaseDelay: time.Second, Sleep: sleep.fn, SlowThreshold: -1})

	var calls atomic.Int32
	v, err := l.Load(context.Background(), "m", func(ctx context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", errFlaky
		}
		return "chunk", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "chunk" {
		t.Errorf("value = %q", v)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", got)
	}

	// Two failures: waits of base*2^0 and base*2^1 (3s simulated total).
	want := []time.Duration{time.Second, 2 * time.Second}
	got := sleep.recorded()
	if len(got) != len(want) {
		t.Fatalf("recorded sleeps %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoad_FirstAttemptSucceedsWithoutSleeping(t *testing.T) {
	t.Parallel()

	sleep := &recordingSleep{}
	l := New[int](Options{Sleep: sleep.fn, SlowThreshold: -1})

	var calls atomic.Int32
	v, err := l.Load(context.Background(), "m", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got (%d, %v)", v, err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
	if len(sleep.recorded()) != 0 {
		t.Errorf("no sleeps expected, got %v", sleep.recorded())
	}
}

func TestLoad_NegativeMaxRetriesDisablesRetry(t *testing.T) {
	t.Parallel()

	l := New[string](Options{MaxRetries: -1, Sleep: (&recordingSleep{}).fn, SlowThreshold: -1})

	var calls atomic.Int32
	_, err := l.Load(context.Background(), "m", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errFlaky
	})
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Attempts != 1 {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_ConcurrentCallsShareOneInvocation(t *testing.T) {
	t.Parallel()

	l := New[string](Options{SlowThreshold: -1})

	var calls atomic.Int32
	release := make(chan struct{})

	const goroutines = 8
	var wg sync.WaitGroup
	results := make([]string, goroutines)
	errs := make([]error, goroutines)

	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = l.Load(context.Background(), "shared", func(ctx context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "value", nil
			})
		}()
	}

	// Give every goroutine a chance to join the in-flight load before
	// releasing the factory.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 factory invocation, got %d", got)
	}
	for i := range goroutines {
		if errs[i] != nil {
			t.Errorf("goroutine %d: %v", i, errs[i])
		}
		if results[i] != "value" {
			t.Errorf("goroutine %d: value %q", i, results[i])
		}
	}
}

func TestLoad_CachesSuccess(t *testing.T) {
	t.Parallel()

	l := New[string](Options{SlowThreshold: -1})

	var calls atomic.Int32
	factory := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}

	for range 3 {
		if _, err := l.Load(context.Background(), "m", factory); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("cache miss: %d invocations", calls.Load())
	}

	l.Invalidate("m")
	if _, err := l.Load(context.Background(), "m", factory); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected reload after Invalidate, got %d invocations", calls.Load())
	}

	l.InvalidateAll()
	if _, err := l.Load(context.Background(), "m", factory); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected reload after InvalidateAll, got %d invocations", calls.Load())
	}
}

func TestLoad_DisableCache(t *testing.T) {
	t.Parallel()

	l := New[string](Options{DisableCache: true, SlowThreshold: -1})

	var calls atomic.Int32
	factory := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}
	for range 2 {
		if _, err := l.Load(context.Background(), "m", factory); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 invocations with cache disabled, got %d", calls.Load())
	}
}

func TestLoad_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	l := New[string](Options{MaxRetries: -1, SlowThreshold: -1})

	var calls atomic.Int32
	_, err := l.Load(context.Background(), "m", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errFlaky
	})
	if err == nil {
		t.Fatal("expected failure")
	}

	v, err := l.Load(context.Background(), "m", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "recovered", nil
	})
	if err != nil || v != "recovered" {
		t.Fatalf("got (%q, %v)", v, err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected a fresh attempt after failure, got %d invocations", calls.Load())
	}
}

func TestLoad_SlowCallbackFiresWithoutCancelling(t *testing.T) {
	t.Parallel()

	slowCh := make(chan string, 1)
	l := New[string](Options{
		SlowThreshold: 10 * time.Millisecond,
		OnSlow:        func(module string) { slowCh <- module },
	})

	v, err := l.Load(context.Background(), "slow/module", func(ctx context.Context) (string, error) {
		time.Sleep(80 * time.Millisecond)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "eventually", nil
	})
	if err != nil {
		t.Fatalf("slow load should still succeed: %v", err)
	}
	if v != "eventually" {
		t.Errorf("value = %q", v)
	}

	select {
	case module := <-slowCh:
		if module != "slow/module" {
			t.Errorf("OnSlow module = %q", module)
		}
	default:
		t.Error("OnSlow should have fired")
	}
}

func TestLoad_FastLoadDoesNotFireSlowCallback(t *testing.T) {
	t.Parallel()

	var fired atomic.Bool
	l := New[string](Options{
		SlowThreshold: time.Hour,
		OnSlow:        func(string) { fired.Store(true) },
	})

	if _, err := l.Load(context.Background(), "m", func(ctx context.Context) (string, error) {
		return "v", nil
	}); err != nil {
		t.Fatal(err)
	}
	if fired.Load() {
		t.Error("OnSlow fired for a fast load")
	}
}

func TestLoad_CancelledBetweenRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	l := New[string](Options{MaxRetries: 5, BaseDelay: time.Second, SlowThreshold: -1,
		Sleep: func(ctx context.Context, d time.Duration) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx, "m", func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "", errFlaky
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrLoadFailed) {
		t.Error("cancellation must not be reported as an exhausted load")
	}
	if calls.Load() != 1 {
		t.Errorf("expected no further attempts after cancellation, got %d", calls.Load())
	}
}

func TestRetryWithBackoff_PermanentFailureStops(t *testing.T) {
	t.Parallel()

	permanent := errors.New("not found")
	calls := 0
	err := RetryWithBackoff(context.Background(), 5, time.Second, (&recordingSleep{}).fn, func(attempt int) (bool, error) {
		calls++
		return false, permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent failures must not retry, got %d calls", calls)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(time.Second, tt.attempt); got != tt.want {
			t.Errorf("Backoff(1s, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
