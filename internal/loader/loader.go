// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the backoff base; the wait after the k-th failed
	// attempt is DefaultBaseDelay * 2^(k-1).
	DefaultBaseDelay = time.Second
	// DefaultSlowThreshold is how long a load may run before the OnSlow
	// callback fires. The underlying fetch is never cancelled by it.
	DefaultSlowThreshold = 5 * time.Second
)

// ErrLoadFailed is the sentinel matched by errors.Is for exhausted loads.
var ErrLoadFailed = errors.New("remote module failed to load")

type (
	// Factory resolves a module value. It is invoked once per attempt.
	Factory[V any] func(ctx context.Context) (V, error)

	// Options configures a Loader.
	Options struct {
		// MaxRetries is the retry count after the initial attempt. Zero
		// means DefaultMaxRetries; negative disables retries entirely.
		MaxRetries int
		// BaseDelay is the backoff base. Zero means DefaultBaseDelay.
		BaseDelay time.Duration
		// SlowThreshold is the wall-clock delay before OnSlow fires. Zero
		// means DefaultSlowThreshold; negative disables the callback.
		SlowThreshold time.Duration
		// OnSlow is invoked at most once per load sequence when the load
		// exceeds SlowThreshold. It must not block.
		OnSlow func(module string)
		// Sleep overrides the backoff sleep. Nil uses a context-aware timer.
		Sleep SleepFunc
		// DisableCache turns off caching of successful loads.
		DisableCache bool
	}

	// Loader deduplicates and retries module loads keyed by identifier.
	// Concurrent loads of the same module share a single factory invocation;
	// successful values are cached until Invalidate.
	Loader[V any] struct {
		opts  Options
		group singleflight.Group

		mu    sync.RWMutex
		cache map[string]V
	}

	// LoadError reports an exhausted load: every attempt failed. It wraps
	// the last underlying error and matches ErrLoadFailed via errors.Is.
	LoadError struct {
		// Module is the module identifier that failed to load.
		Module string
		// Attempts is the total number of factory invocations.
		Attempts int
		// Err is the error from the final attempt.
		Err error
	}
)

// Error implements the error interface for LoadError.
func (e *LoadError) Error() string {
	return fmt.Sprintf("remote module %q failed to load after %d attempt(s): %v", e.Module, e.Attempts, e.Err)
}

// Unwrap returns the final attempt's error.
func (e *LoadError) Unwrap() error { return e.Err }

// Is matches ErrLoadFailed so callers can classify without the concrete type.
func (e *LoadError) Is(target error) bool { return target == ErrLoadFailed }

// New creates a Loader with normalized options.
func New[V any](opts Options) *Loader[V] {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	} else if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.SlowThreshold == 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepWithContext
	}
	return &Loader[V]{
		opts:  opts,
		cache: make(map[string]V),
	}
}

// Load resolves the module through the factory, retrying with exponential
// backoff up to the configured bound. Concurrent calls for the same module
// share one in-flight load; its result (or error) is delivered to all of
// them. Successful values are cached unless DisableCache is set.
//
// The first caller's context governs the shared load. Callers that join an
// in-flight load and cancel their own context still receive the shared
// result; the shared load itself is only abandoned when its governing
// context is cancelled.
func (l *Loader[V]) Load(ctx context.Context, module string, factory Factory[V]) (V, error) {
	if v, ok := l.cached(module); ok {
		return v, nil
	}

	result, err, _ := l.group.Do(module, func() (any, error) {
		// Re-check under the group: a previous flight may have populated
		// the cache between our miss and this closure running.
		if v, ok := l.cached(module); ok {
			return v, nil
		}
		return l.loadWithRetry(ctx, module, factory)
	})
	if err != nil {
		var zero V
		return zero, err
	}

	v := result.(V)
	if !l.opts.DisableCache {
		l.mu.Lock()
		l.cache[module] = v
		l.mu.Unlock()
	}
	return v, nil
}

// loadWithRetry runs the attempt loop for one module.
func (l *Loader[V]) loadWithRetry(ctx context.Context, module string, factory Factory[V]) (V, error) {
	var zero V

	if l.opts.OnSlow != nil && l.opts.SlowThreshold > 0 {
		slow := time.AfterFunc(l.opts.SlowThreshold, func() { l.opts.OnSlow(module) })
		defer slow.Stop()
	}

	attempts := l.opts.MaxRetries + 1
	var (
		value   V
		lastErr error
	)

	err := RetryWithBackoff(ctx, attempts, l.opts.BaseDelay, l.opts.Sleep, func(attempt int) (bool, error) {
		v, ferr := factory(ctx)
		if ferr != nil {
			lastErr = ferr
			return true, ferr
		}
		value = v
		return false, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			// Abandoned, not exhausted: report the cancellation rather
			// than a load failure.
			return zero, fmt.Errorf("load %q: %w", module, err)
		}
		return zero, &LoadError{Module: module, Attempts: attempts, Err: lastErr}
	}

	return value, nil
}

// cached returns the cached value for module, if any.
func (l *Loader[V]) cached(module string) (V, bool) {
	if l.opts.DisableCache {
		var zero V
		return zero, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.cache[module]
	return v, ok
}

// Invalidate drops the cached value for module, if present.
func (l *Loader[V]) Invalidate(module string) {
	l.mu.Lock()
	delete(l.cache, module)
	l.mu.Unlock()
}

// InvalidateAll drops every cached value.
func (l *Loader[V]) InvalidateAll() {
	l.mu.Lock()
	l.cache = make(map[string]V)
	l.mu.Unlock()
}
