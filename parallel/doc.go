// Package parallel runs a fixed group of cooperating workers in the
// single-program-multiple-data style used by the descriptor kernels.
//
// Overview:
//
//   - A Group owns W workers. Group.Run (or Collect) starts one goroutine
//     per rank, each running the same function with its own Comm handle.
//   - Work is split with the round-robin partition Owner(index, W) =
//     index mod W. Each worker computes only the items it owns.
//   - Comm.Reconcile is the all-gather that turns those partial buffers into
//     identical complete buffers on every worker; Comm.Broadcast copies one
//     rank's buffer to everybody. After either returns, all workers hold
//     bit-identical data.
//   - Solo() is the W=1 communicator for callers that do not need a group.
//
// Failure model:
//
//   - Collectives are blocking: every worker must reach them.
//   - A worker returning an error cancels the run context; every peer blocked
//     in a collective returns ErrAborted and Run reports the first error.
//     There is no per-worker recovery and no timeout beyond the caller's ctx.
//
// The communicator is always an explicit argument: there is no
// process-wide handle.
package parallel
