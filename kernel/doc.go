// SPDX-License-Identifier: MIT

// Package kernel assembles Gaussian-process covariance matrices and their
// hyperparameter derivatives.
//
// Four variants implement Kernel[P]:
//
//	SquaredExp         []float64               1×1 blocks
//	SquaredExpGrad     []float64               (D+1)×(D+1) blocks
//	FingerprintEnergy  descriptor.Descriptor   1×1 blocks
//	Fingerprint        descriptor.Descriptor   (3·atoms+1)×(3·atoms+1) blocks
//
// A block of the derivative variants is laid out as
//
//	[ k        ∂k/∂x2     ]
//	[ ∂k/∂x1   ∂²k/∂x1∂x2 ]
//
// and K(X1, X2) tiles the blocks of every (x1, x2) pair row-major, so block
// (i, j) occupies rows i·S..(i+1)·S and columns j·S..(j+1)·S for block side S.
//
// Hyperparameters are named (see package hyper). A kernel refuses to
// evaluate before SetParams succeeded (ErrParamsUnset); Gradient returns one
// matrix per name of Variant.Hyperparameters, in that order.
//
// Fingerprint is collective: one instance per worker of a parallel.Group,
// every worker calling the same methods. Per-atom and per-atom-pair work is
// partitioned over the workers and reconciled, so every worker ends up with
// the same matrix.
//
// Errors:
//
//   - ErrParamsUnset, ErrUnsupportedParam, ErrNoPoints, ErrDimensionMismatch,
//     ErrUnknownVariant
//   - matrix.ErrNaNInf when WithFiniteCheck is set and a result is not finite
//   - parallel.ErrAborted when a peer worker failed
package kernel
