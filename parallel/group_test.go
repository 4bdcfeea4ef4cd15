// SPDX-License-Identifier: MIT
package parallel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/katalvlaran/covkernel/parallel"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestOwner(t *testing.T) {
	require.Equal(t, 0, parallel.Owner(0, 3))
	require.Equal(t, 1, parallel.Owner(4, 3))
	require.Equal(t, 2, parallel.Owner(5, 3))
	require.Equal(t, 0, parallel.Owner(7, 1))
	require.True(t, parallel.Mine(parallel.Solo(), 42))
}

func TestNewGroupRejectsBadSize(t *testing.T) {
	_, err := parallel.NewGroup(0)
	require.ErrorIs(t, err, parallel.ErrBadSize)
}

func TestSolo(t *testing.T) {
	ctx := context.Background()
	c := parallel.Solo()
	require.Equal(t, 0, c.Rank())
	require.Equal(t, 1, c.Size())

	buf := []float64{1, 2, 3, 4}
	require.NoError(t, c.Reconcile(ctx, buf, 2))
	require.Equal(t, []float64{1, 2, 3, 4}, buf)
	require.ErrorIs(t, c.Reconcile(ctx, buf, 3), parallel.ErrBufferSize)
	require.NoError(t, c.Broadcast(ctx, buf, 0))
	require.ErrorIs(t, c.Broadcast(ctx, buf, 1), parallel.ErrRoot)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, c.Barrier(cancelled), parallel.ErrAborted)
}

// TestBroadcast checks every rank ends with the root's data.
func TestBroadcast(t *testing.T) {
	for _, w := range []int{1, 2, 5} {
		g, err := parallel.NewGroup(w, parallel.WithGroupLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)

		got, err := parallel.Collect(context.Background(), g, func(ctx context.Context, c parallel.Comm) ([]float64, error) {
			buf := []float64{float64(c.Rank()), -1, float64(10 * c.Rank())}
			if err := c.Broadcast(ctx, buf, w-1); err != nil {
				return nil, err
			}
			return buf, nil
		})
		require.NoError(t, err)
		require.Len(t, got, w)
		want := []float64{float64(w - 1), -1, float64(10 * (w - 1))}
		for rank, buf := range got {
			require.Equalf(t, want, buf, "W=%d rank=%d", w, rank)
		}
		require.NoError(t, g.Close())
	}
}

// TestReconcileMatchesSerial fills only owned chunks and expects the
// complete buffer on every rank, for several worker counts.
func TestReconcileMatchesSerial(t *testing.T) {
	const chunks, chunk = 11, 3
	want := make([]float64, chunks*chunk)
	for i := range want {
		want[i] = float64(i)*0.5 + 1
	}

	for _, w := range []int{1, 2, 5, 16} {
		g, err := parallel.NewGroup(w)
		require.NoError(t, err)

		got, err := parallel.Collect(context.Background(), g, func(ctx context.Context, c parallel.Comm) ([]float64, error) {
			buf := make([]float64, chunks*chunk)
			for k := 0; k < chunks; k++ {
				if !parallel.Mine(c, k) {
					continue
				}
				for e := 0; e < chunk; e++ {
					buf[k*chunk+e] = want[k*chunk+e]
				}
			}
			// two rounds: the rendezvous must be reusable
			for round := 0; round < 2; round++ {
				if err := c.Reconcile(ctx, buf, chunk); err != nil {
					return nil, err
				}
			}
			return buf, nil
		})
		require.NoError(t, err)
		for rank, buf := range got {
			require.Equalf(t, want, buf, "W=%d rank=%d", w, rank)
		}
	}
}

// TestRunAbortsPeersOnFailure makes rank 1 fail before a barrier; the other
// ranks must be released with ErrAborted and Run must report rank 1's error.
func TestRunAbortsPeersOnFailure(t *testing.T) {
	boom := errors.New("boom")
	g, err := parallel.NewGroup(4)
	require.NoError(t, err)

	aborted := make(chan error, 4)
	err = g.Run(context.Background(), func(ctx context.Context, c parallel.Comm) error {
		if c.Rank() == 1 {
			return boom
		}
		err := c.Barrier(ctx)
		aborted <- err
		return err
	})
	require.ErrorIs(t, err, boom)
	close(aborted)
	for e := range aborted {
		require.ErrorIs(t, e, parallel.ErrAborted)
	}
}

func TestRunHonoursCallerContext(t *testing.T) {
	g, err := parallel.NewGroup(3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = g.Run(ctx, func(ctx context.Context, c parallel.Comm) error {
		if c.Rank() == 0 {
			<-ctx.Done() // rank 0 never reaches the barrier
			return ctx.Err()
		}
		return c.Barrier(ctx)
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, parallel.ErrAborted) || errors.Is(err, context.DeadlineExceeded))
}

func TestCollectDropsPartialResults(t *testing.T) {
	g, err := parallel.NewGroup(2)
	require.NoError(t, err)

	got, err := parallel.Collect(context.Background(), g, func(ctx context.Context, c parallel.Comm) (int, error) {
		if c.Rank() == 0 {
			return 0, errors.New("rank 0 failed")
		}
		return 7, nil
	})
	require.Error(t, err)
	require.Nil(t, got)
}

func TestReconcileSizeMismatchAcrossWorkers(t *testing.T) {
	g, err := parallel.NewGroup(2)
	require.NoError(t, err)

	err = g.Run(context.Background(), func(ctx context.Context, c parallel.Comm) error {
		buf := make([]float64, 4+2*c.Rank())
		return c.Reconcile(ctx, buf, 2)
	})
	require.ErrorIs(t, err, parallel.ErrBufferSize)
}

func TestClosedGroup(t *testing.T) {
	g, err := parallel.NewGroup(2)
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	err = g.Run(context.Background(), func(context.Context, parallel.Comm) error { return nil })
	require.ErrorIs(t, err, parallel.ErrClosed)
	require.NotEqual(t, g.ID().String(), "")
}
