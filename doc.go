// Package covkernel assembles Gaussian-process covariance matrices, with
// value, gradient and Hessian blocks, for surrogate models of atomic
// configurations.
//
// What is covkernel?
//
//	A small set of packages that turn points and hyperparameters into the
//	block-structured covariance K(X, X) and its derivatives ∂K/∂θ:
//		• Vector kernels: squared exponential with and without derivative blocks
//		• Descriptor kernels: covariance delegated to a fingerprint descriptor
//		• Worker groups: partitioned, reconciled builds that agree bit for bit
//
// Everything is organized under these subpackages:
//
//	hyper/       named hyperparameters (weight, l, Delta) and their validation
//	matrix/      block layout over gonum matrices, shape/symmetry/finite validators
//	parallel/    SPMD worker group: Owner partition, Barrier, Broadcast, Reconcile
//	descriptor/  descriptor capability contract and the reference Cartesian descriptor
//	kernel/      Kernel[P] and the SquaredExp, SquaredExpGrad, Fingerprint,
//	             FingerprintEnergy variants
//	config/      YAML run files and logger construction
//	cmd/         the covkernel command
//
// Quick start:
//
//	k := kernel.NewSquaredExpGrad()
//	_ = k.SetParams(hyper.Pair(1, 1))
//	K, err := k.Matrix(ctx, [][]float64{{0, 0, 0}, {1, 0, 0}}) // 8×8
//
// Descriptor kernels with forces run on a parallel.Group, one kernel per
// worker:
//
//	g, _ := parallel.NewGroup(4)
//	Ks, err := parallel.Collect(ctx, g, func(ctx context.Context, c parallel.Comm) (*mat.Dense, error) {
//		k := kernel.NewFingerprint(c)
//		if err := k.SetParams(p); err != nil {
//			return nil, err
//		}
//		return k.Matrix(ctx, X)
//	})
package covkernel
