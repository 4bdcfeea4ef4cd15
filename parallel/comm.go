// SPDX-License-Identifier: MIT

package parallel

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned by a collective when the group was torn down
	// (a peer failed or the caller's context was cancelled) before every
	// worker reached it. It is fatal to the whole computation.
	ErrAborted = errors.New("parallel: collective aborted")

	// ErrBufferSize indicates that a buffer passed to a collective does not
	// fit the requested chunking or differs in length between workers.
	ErrBufferSize = errors.New("parallel: buffer size mismatch")

	// ErrRoot indicates a broadcast root outside [0, Size).
	ErrRoot = errors.New("parallel: root rank out of range")

	// ErrBadSize indicates a worker group size < 1.
	ErrBadSize = errors.New("parallel: group size must be >= 1")

	// ErrClosed is returned by Run on a group whose lifecycle has ended.
	ErrClosed = errors.New("parallel: group closed")
)

// Comm is the handle one worker uses to take part in collective operations
// of its group. Every worker of the group must call the same collectives in
// the same order (single program, multiple data); a worker that skips one
// stalls its peers until the group is aborted.
//
// A Comm belongs to exactly one worker goroutine and is not safe for
// concurrent use by several goroutines.
type Comm interface {
	// Rank returns the worker's position in [0, Size).
	Rank() int

	// Size returns the number of workers W in the group.
	Size() int

	// Barrier blocks until every worker has reached it.
	Barrier(ctx context.Context) error

	// Broadcast overwrites buf on every worker with root's buf.
	// All workers must pass buffers of equal length.
	Broadcast(ctx context.Context, buf []float64, root int) error

	// Reconcile is an all-gather over fixed-size chunks: chunk k of buf,
	// i.e. buf[k*chunk:(k+1)*chunk], is authoritative on worker
	// Owner(k, Size()). After Reconcile returns, every worker's buf holds the
	// owners' chunks. len(buf) must be a multiple of chunk.
	Reconcile(ctx context.Context, buf []float64, chunk int) error
}

// Owner returns the worker that owns work item index in a group of size
// workers: the deterministic round-robin partition index mod size.
// Ownership depends only on (index, size), so a partition is reproducible
// across runs with the same worker count.
func Owner(index, size int) int {
	return index % size
}

// Mine reports whether index is owned by c.
func Mine(c Comm, index int) bool {
	return Owner(index, c.Size()) == c.Rank()
}

// checkChunks validates a Reconcile request.
func checkChunks(buf []float64, chunk int) error {
	if chunk <= 0 || len(buf)%chunk != 0 {
		return fmt.Errorf("Reconcile: len %d, chunk %d: %w", len(buf), chunk, ErrBufferSize)
	}

	return nil
}

// solo is the communicator of a single-worker group.
type solo struct{}

// Solo returns the size-1 communicator. Its collectives only validate their
// arguments: with one worker every result is already reconciled.
func Solo() Comm { return solo{} }

func (solo) Rank() int { return 0 }
func (solo) Size() int { return 1 }

func (solo) Barrier(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}

	return nil
}

func (s solo) Broadcast(ctx context.Context, _ []float64, root int) error {
	if root != 0 {
		return fmt.Errorf("Broadcast: root %d of 1: %w", root, ErrRoot)
	}

	return s.Barrier(ctx)
}

func (s solo) Reconcile(ctx context.Context, buf []float64, chunk int) error {
	if err := checkChunks(buf, chunk); err != nil {
		return err
	}

	return s.Barrier(ctx)
}
