// SPDX-License-Identifier: MIT

package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Group is a fixed-size set of cooperating workers executing the same
// function (SPMD). Create it once per run with NewGroup, execute builds with
// Run or Collect, and end its lifecycle with Close.
//
// Every Run starts a fresh rendezvous, so a Group can host any number of
// sequential runs. Concurrent Runs on one Group are independent of each
// other.
type Group struct {
	id     uuid.UUID
	size   int
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupLogger sets the logger used for run lifecycle events.
// Panics on a nil logger (programmer error).
func WithGroupLogger(l *zap.Logger) GroupOption {
	if l == nil {
		panic("parallel: WithGroupLogger: logger must not be nil")
	}

	return func(g *Group) { g.logger = l }
}

// NewGroup creates a group of size workers. Returns ErrBadSize for size < 1.
func NewGroup(size int, opts ...GroupOption) (*Group, error) {
	if size < 1 {
		return nil, fmt.Errorf("NewGroup(%d): %w", size, ErrBadSize)
	}
	g := &Group{id: uuid.New(), size: size, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(zap.String("group", g.id.String()), zap.Int("workers", size))

	return g, nil
}

// ID returns the group's unique identifier (used in log fields).
func (g *Group) ID() uuid.UUID { return g.id }

// Size returns the number of workers.
func (g *Group) Size() int { return g.size }

// Close ends the group lifecycle. Subsequent Runs fail with ErrClosed.
// Close is idempotent.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true

	return nil
}

// Run executes fn once per worker, concurrently, each with its own Comm.
//
// The first worker error cancels the context handed to every worker; peers
// blocked in a collective return ErrAborted. Run waits for all workers and
// returns the first error, which is the causal failure rather than the
// secondary aborts. Results written by fn must be discarded when Run fails.
//
// Errors:
//   - ErrClosed if Close was called.
//   - the first worker error, wrapped with its rank.
//
// Complexity: Size goroutines; one session allocation per run.
func (g *Group) Run(ctx context.Context, fn func(ctx context.Context, c Comm) error) error {
	// 1. Refuse closed groups
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return ErrClosed
	}

	start := time.Now()
	g.logger.Debug("worker group run started")

	// 2. One rendezvous per run, one Comm per rank
	eg, egCtx := errgroup.WithContext(ctx)
	s := newSession(g.size)
	for rank := 0; rank < g.size; rank++ {
		c := &worker{rank: rank, s: s}
		eg.Go(func() error {
			if err := fn(egCtx, c); err != nil {
				return fmt.Errorf("worker %d: %w", c.rank, err)
			}
			return nil
		})
	}

	// 3. Wait for every worker; errgroup keeps the first error
	if err := eg.Wait(); err != nil {
		g.logger.Warn("worker group run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}
	g.logger.Debug("worker group run finished", zap.Duration("elapsed", time.Since(start)))

	return nil
}

// Collect runs fn on every worker of g and returns the per-rank results,
// indexed by rank. On failure it returns nil and the first error: partial
// results are never handed back.
func Collect[T any](ctx context.Context, g *Group, fn func(ctx context.Context, c Comm) (T, error)) ([]T, error) {
	out := make([]T, g.Size())
	err := g.Run(ctx, func(ctx context.Context, c Comm) error {
		v, err := fn(ctx, c)
		if err != nil {
			return err
		}
		out[c.Rank()] = v // each rank writes its own slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// session is the rendezvous shared by the workers of one Run.
type session struct {
	size int

	mu      sync.Mutex
	arrived int
	release chan struct{}
	slots   [][]float64 // per-rank published buffers
}

func newSession(size int) *session {
	return &session{
		size:    size,
		release: make(chan struct{}),
		slots:   make([][]float64, size),
	}
}

// wait is a reusable generation barrier: the last arrival closes the
// current release channel and installs a fresh one for the next round.
func (s *session) wait(ctx context.Context) error {
	s.mu.Lock()
	ch := s.release
	s.arrived++
	if s.arrived == s.size {
		s.arrived = 0
		s.release = make(chan struct{})
		s.mu.Unlock()
		close(ch)
		return nil
	}
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
	}
}

func (s *session) publish(rank int, buf []float64) {
	s.mu.Lock()
	s.slots[rank] = buf
	s.mu.Unlock()
}

func (s *session) slot(rank int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.slots[rank]
}

// worker is the Comm of one goroutine in a Group run.
type worker struct {
	rank int
	s    *session
}

func (w *worker) Rank() int { return w.rank }
func (w *worker) Size() int { return w.s.size }

func (w *worker) Barrier(ctx context.Context) error {
	return w.s.wait(ctx)
}

// Broadcast publishes root's buffer, lets every worker copy it, and holds
// everyone at a second barrier so root cannot reuse its slot early.
// Complexity: O(len(buf)) per non-root worker, two barriers.
func (w *worker) Broadcast(ctx context.Context, buf []float64, root int) error {
	if root < 0 || root >= w.s.size {
		return fmt.Errorf("Broadcast: root %d of %d: %w", root, w.s.size, ErrRoot)
	}
	// 1. Root publishes
	if w.rank == root {
		w.s.publish(root, buf)
	}
	if err := w.s.wait(ctx); err != nil {
		return err
	}
	// 2. Everyone else copies
	if w.rank != root {
		src := w.s.slot(root)
		if len(src) != len(buf) {
			return fmt.Errorf("Broadcast: len %d, root len %d: %w", len(buf), len(src), ErrBufferSize)
		}
		copy(buf, src)
	}

	return w.s.wait(ctx)
}

// Reconcile publishes every worker's buffer, then each worker pulls the
// chunks it does not own from their owners. A worker only writes chunks it
// does not own and only reads chunks owned by others, so the copies never
// overlap. The closing barrier keeps published buffers alive until all
// readers are done.
//
// Errors: ErrBufferSize for a bad chunking or unequal lengths, ErrAborted.
// Complexity: O(len(buf)·(W-1)/W) copied per worker, two barriers.
func (w *worker) Reconcile(ctx context.Context, buf []float64, chunk int) error {
	if err := checkChunks(buf, chunk); err != nil {
		return err
	}
	// 1. Publish own buffer and wait for all peers to do the same
	w.s.publish(w.rank, buf)
	if err := w.s.wait(ctx); err != nil {
		return err
	}

	// 2. Pull every foreign chunk from its owner
	var sizeErr error
	for k := 0; k*chunk < len(buf); k++ {
		o := Owner(k, w.s.size)
		if o == w.rank {
			continue
		}
		src := w.s.slot(o)
		if len(src) != len(buf) {
			sizeErr = fmt.Errorf("Reconcile: len %d, rank %d len %d: %w", len(buf), o, len(src), ErrBufferSize)
			break
		}
		copy(buf[k*chunk:(k+1)*chunk], src[k*chunk:(k+1)*chunk])
	}

	// Always take part in the closing barrier so a size error on one
	// worker does not leave readers of its buffer racing with its return.
	if err := w.s.wait(ctx); err != nil {
		return errors.Join(sizeErr, err)
	}

	return sizeErr
}
