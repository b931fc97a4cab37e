// Package server coordinates process lifecycle: signal handling, draining of
// in-flight requests and ordered release of resources.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Lifecycle tracks in-flight work and closes registered resources in reverse
// registration order when shutdown begins.
type Lifecycle struct {
	timeout      time.Duration
	drainTimeout time.Duration

	done     chan struct{}
	once     sync.Once
	inFlight int64
	stopping int32

	mu      sync.Mutex
	closers []namedCloser
	onStart []func()
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Options holds lifecycle timeouts.
type Options struct {
	// Timeout bounds the whole shutdown. Default: 30 seconds
	Timeout time.Duration
	// DrainTimeout bounds the wait for in-flight requests. Default: 15 seconds
	DrainTimeout time.Duration
}

// NewLifecycle creates a Lifecycle. Zero timeouts take their defaults.
func NewLifecycle(opts Options) *Lifecycle {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 15 * time.Second
	}
	return &Lifecycle{
		timeout:      opts.Timeout,
		drainTimeout: opts.DrainTimeout,
		done:         make(chan struct{}),
	}
}

// Register adds a resource to close on shutdown. Resources close LIFO.
func (l *Lifecycle) Register(name string, c io.Closer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closers = append(l.closers, namedCloser{name: name, c: c})
}

// OnShutdown registers a callback run before draining starts.
func (l *Lifecycle) OnShutdown(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStart = append(l.onStart, fn)
}

// WaitForSignal blocks until SIGINT or SIGTERM (or ctx is done) and then
// shuts down.
func (l *Lifecycle) WaitForSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Printf("server: received %s, shutting down", sig)
	case <-ctx.Done():
		log.Printf("server: context done, shutting down")
	case <-l.done:
		return nil
	}
	return l.Shutdown()
}

// Shutdown runs the callbacks, drains in-flight requests and closes every
// registered resource. Only the first call does any work.
func (l *Lifecycle) Shutdown() error {
	var result error
	l.once.Do(func() {
		atomic.StoreInt32(&l.stopping, 1)
		close(l.done)

		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		l.mu.Lock()
		callbacks := append([]func(){}, l.onStart...)
		closers := append([]namedCloser{}, l.closers...)
		l.mu.Unlock()

		for _, fn := range callbacks {
			fn()
		}

		if err := l.drain(ctx); err != nil {
			log.Printf("server: %v", err)
		}

		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			nc := closers[i]
			if err := nc.c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", nc.name, err))
			}
		}
		result = errors.Join(errs...)
	})
	return result
}

func (l *Lifecycle) drain(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, l.drainTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if atomic.LoadInt64(&l.inFlight) == 0 {
			return nil
		}
		select {
		case <-drainCtx.Done():
			return fmt.Errorf("drain timed out with %d requests in flight", atomic.LoadInt64(&l.inFlight))
		case <-ticker.C:
		}
	}
}

// Stopping reports whether shutdown has begun.
func (l *Lifecycle) Stopping() bool {
	return atomic.LoadInt32(&l.stopping) == 1
}

// InFlight returns the number of tracked requests.
func (l *Lifecycle) InFlight() int64 {
	return atomic.LoadInt64(&l.inFlight)
}

// Done is closed when shutdown begins.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

// Middleware rejects new requests once shutdown has begun and tracks the
// rest so Shutdown can wait for them.
func (l *Lifecycle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Stopping() {
			w.Header().Set("Connection", "close")
			w.Header().Set("Retry-After", "5")
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		atomic.AddInt64(&l.inFlight, 1)
		defer atomic.AddInt64(&l.inFlight, -1)
		next.ServeHTTP(w, r)
	})
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

// Close calls f.
func (f CloserFunc) Close() error {
	return f()
}

// HTTPCloser returns a Closer that shuts srv down within timeout.
func HTTPCloser(srv *http.Server, timeout time.Duration) io.Closer {
	return CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}
