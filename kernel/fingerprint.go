// SPDX-License-Identifier: MIT

package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/katalvlaran/covkernel/descriptor"
	"github.com/katalvlaran/covkernel/hyper"
	"github.com/katalvlaran/covkernel/matrix"
	"github.com/katalvlaran/covkernel/parallel"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// hooks selects which descriptor quantities fill a block: the covariance
// itself or one of its hyperparameter derivatives.
type hooks struct {
	value func(x1, x2 descriptor.Descriptor) float64
	grad  func(x1, x2 descriptor.Descriptor, atom int) [3]float64
	hess  func(x1, x2 descriptor.Descriptor, i, j int) [3][3]float64
}

var kernelHooks = hooks{
	value: func(x1, x2 descriptor.Descriptor) float64 { return x1.Kernel(x2) },
	grad:  func(x1, x2 descriptor.Descriptor, a int) [3]float64 { return x1.KernelGradient(x2, a) },
	hess:  func(x1, x2 descriptor.Descriptor, i, j int) [3][3]float64 { return x1.KernelHessian(x2, i, j) },
}

var lengthHooks = hooks{
	value: func(x1, x2 descriptor.Descriptor) float64 {
		return x1.(descriptor.LengthScaled).DkDl(x2)
	},
	grad: func(x1, x2 descriptor.Descriptor, a int) [3]float64 {
		return x1.(descriptor.LengthScaled).DkDrmDl(x2, a)
	},
	hess: func(x1, x2 descriptor.Descriptor, i, j int) [3][3]float64 {
		return x1.(descriptor.LengthScaled).DkDrmDrnDl(x2, i, j)
	},
}

var deltaHooks = hooks{
	value: func(x1, x2 descriptor.Descriptor) float64 {
		return x1.(descriptor.Smeared).DkDDelta(x2)
	},
	grad: func(x1, x2 descriptor.Descriptor, a int) [3]float64 {
		return x1.(descriptor.Smeared).DkDrmDDelta(x2, a)
	},
	hess: func(x1, x2 descriptor.Descriptor, i, j int) [3][3]float64 {
		return x1.(descriptor.Smeared).DkDrmDrnDDelta(x2, i, j)
	},
}

// derivativeHooks returns the hooks for ∂/∂name after checking that every
// descriptor of X implements them. The check runs before any evaluation so
// an unsupported derivative fails fast, identically on every worker.
func derivativeHooks(v Variant, name string, X []descriptor.Descriptor) (hooks, error) {
	switch name {
	case hyper.LengthScale:
		for i, x := range X {
			if _, ok := x.(descriptor.LengthScaled); !ok {
				return hooks{}, fmt.Errorf("%w: %q: point %d (%T) has no length-scale derivatives", ErrUnsupportedParam, name, i, x)
			}
		}
		return lengthHooks, nil
	case hyper.Delta:
		for i, x := range X {
			if _, ok := x.(descriptor.Smeared); !ok {
				return hooks{}, fmt.Errorf("%w: %q: point %d (%T) has no Delta derivatives", ErrUnsupportedParam, name, i, x)
			}
		}
		return deltaHooks, nil
	default:
		return hooks{}, fmt.Errorf("%w: %q for %s", ErrUnsupportedParam, name, v)
	}
}

// fpParams holds the named hyperparameters shared by both fingerprint
// kernels.
type fpParams struct {
	params hyper.Params
	weight float64
}

// set merges p into the current params: keys present in p overwrite, the
// rest are kept. The merged set must hold a valid weight.
func (f *fpParams) set(p hyper.Params) error {
	merged := f.params.Merge(p)
	w, err := merged.Get(hyper.Weight)
	if err != nil {
		return fmt.Errorf("SetParams: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("SetParams: %w", err)
	}
	f.params = merged
	f.weight = w

	return nil
}

func (f *fpParams) ready() error {
	if f.params == nil {
		return ErrParamsUnset
	}

	return nil
}

// atomCount returns the shared atom count of X, checking that every
// descriptor has it and that atoms are indexed 0..n-1.
func atomCount(X []descriptor.Descriptor) (int, error) {
	if len(X) == 0 {
		return 0, ErrNoPoints
	}
	n := len(X[0].Atoms())
	if n == 0 {
		return 0, fmt.Errorf("%w: point 0 has no atoms", ErrDimensionMismatch)
	}
	for p, x := range X {
		atoms := x.Atoms()
		if len(atoms) != n {
			return 0, fmt.Errorf("%w: point %d has %d atoms, want %d", ErrDimensionMismatch, p, len(atoms), n)
		}
		for i, a := range atoms {
			if a.Index != i {
				return 0, fmt.Errorf("%w: point %d atom %d carries index %d", ErrDimensionMismatch, p, i, a.Index)
			}
		}
	}

	return n, nil
}

// Fingerprint is the descriptor kernel with forces. Every entry of a
// (D+1)×(D+1) block, D = 3·atoms, is delegated to the descriptors:
//
//	[0,0]   x1.Kernel(x2)
//	[1:,0]  x1.KernelGradient(x2, a)     per atom a
//	[0,1:]  x2.KernelGradient(x1, a)     per atom a
//	[1:,1:] x1.KernelHessian(x2, i, j)   per atom pair, H[3i+a, 3j+b]
//
// and the block is multiplied by weight².
//
// A Fingerprint belongs to one worker of a group: construct one per rank
// with that rank's Comm. All workers must call the same methods with the
// same arguments. Per-atom work is split by parallel.Owner over the atom
// index, per-pair work over i·n+j, and every partial result is reconciled
// before use; finished matrices are broadcast from rank 0. Every worker
// therefore returns bit-identical matrices, whatever the group size.
type Fingerprint struct {
	fpParams
	comm parallel.Comm
	opts Options
}

var _ Kernel[descriptor.Descriptor] = (*Fingerprint)(nil)

// NewFingerprint returns an unconfigured kernel bound to comm.
// A nil comm means parallel.Solo().
func NewFingerprint(comm parallel.Comm, opts ...Option) *Fingerprint {
	if comm == nil {
		comm = parallel.Solo()
	}

	return &Fingerprint{comm: comm, opts: gatherOptions(opts...)}
}

// SetParams merges p into the kernel's named hyperparameters.
// weight is required; l and Delta are forwarded to the descriptors.
func (k *Fingerprint) SetParams(p hyper.Params) error { return k.set(p) }

// Params returns a copy of the hyperparameters, or nil.
func (k *Fingerprint) Params() hyper.Params { return k.params.Clone() }

// SyncParams brings every descriptor of X in line with the kernel's
// hyperparameters. Every worker must call it.
//
// Steps:
//  1. Rank 0 updates the descriptors whose params differ while the other
//     ranks wait at a barrier, so shared descriptors are never written
//     while being read.
//  2. Every rank syncs its own X. On descriptors shared with rank 0 this is
//     a read-only no-op; descriptors private to a rank are updated here.
//  3. A closing barrier keeps any rank from evaluating before all are done.
//
// Re-applying equal params is a no-op, so redundant calls are safe.
func (k *Fingerprint) SyncParams(ctx context.Context, X ...descriptor.Descriptor) error {
	if err := k.ready(); err != nil {
		return err
	}
	if k.comm.Rank() == 0 {
		k.sync(X)
	}
	if err := k.comm.Barrier(ctx); err != nil {
		return err
	}
	if k.comm.Rank() != 0 {
		k.sync(X)
	}

	return k.comm.Barrier(ctx)
}

// sync applies the kernel params to X and logs how many descriptors changed.
func (k *Fingerprint) sync(X []descriptor.Descriptor) {
	updated := 0
	for _, x := range X {
		if descriptor.Sync(x, k.params) {
			updated++
		}
	}
	if updated > 0 {
		k.opts.logger.Debug("descriptor params synchronised",
			zap.Int("updated", updated), zap.Int("rank", k.comm.Rank()),
			zap.Stringer("params", k.params))
	}
}

// gradient returns the 3n-vector of h.grad(x1, x2, a) over all atoms.
// Worker Owner(a, W) computes atom a; Reconcile completes the vector.
func (k *Fingerprint) gradient(ctx context.Context, h hooks, x1, x2 descriptor.Descriptor, n int) ([]float64, error) {
	buf := make([]float64, 3*n)
	for a := 0; a < n; a++ {
		if !parallel.Mine(k.comm, a) {
			continue
		}
		g := h.grad(x1, x2, a)
		copy(buf[3*a:3*a+3], g[:])
	}
	if err := k.comm.Reconcile(ctx, buf, 3); err != nil {
		return nil, err
	}

	return buf, nil
}

// hessian returns the n·n 3×3 blocks of h.hess(x1, x2, i, j), flattened
// pair-major with 9 entries per pair. Worker Owner(i·n+j, W) computes the pair.
func (k *Fingerprint) hessian(ctx context.Context, h hooks, x1, x2 descriptor.Descriptor, n int) ([]float64, error) {
	buf := make([]float64, 9*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p := i*n + j
			if !parallel.Mine(k.comm, p) {
				continue
			}
			blk := h.hess(x1, x2, i, j)
			for a := 0; a < 3; a++ {
				copy(buf[9*p+3*a:9*p+3*a+3], blk[a][:])
			}
		}
	}
	if err := k.comm.Reconcile(ctx, buf, 9); err != nil {
		return nil, err
	}

	return buf, nil
}

// block assembles the weighted (D+1)×(D+1) block of (x1, x2) from h.
//
// Inputs:
//   - h: the kernel hooks or the l/Delta derivative hooks.
//   - n: the shared atom count, D = 3n.
//
// It is a collective: three Reconcile calls, two for the gradient column
// and row and one for the Hessian, so every worker must reach it with the
// same pair.
// Complexity: O(n²) hook calls split over W workers, O(D²) assembly.
func (k *Fingerprint) block(ctx context.Context, h hooks, x1, x2 descriptor.Descriptor, n int) (*mat.Dense, error) {
	// 1. Partitioned partials, completed by Reconcile
	col, err := k.gradient(ctx, h, x1, x2, n)
	if err != nil {
		return nil, err
	}
	row, err := k.gradient(ctx, h, x2, x1, n)
	if err != nil {
		return nil, err
	}
	hess, err := k.hessian(ctx, h, x1, x2, n)
	if err != nil {
		return nil, err
	}

	// 2. Value corner and gradient borders
	D := 3 * n
	B := mat.NewDense(D+1, D+1, nil)
	B.Set(0, 0, h.value(x1, x2))
	for r := 0; r < D; r++ {
		B.Set(1+r, 0, col[r])
		B.Set(0, 1+r, row[r])
	}
	// 3. Hessian, atom-block layout: H[3i+a, 3j+b] = hess_ij[a][b]
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p := i*n + j
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					B.Set(1+3*i+a, 1+3*j+b, buf9(hess, p, a, b))
				}
			}
		}
	}
	B.Scale(k.weight*k.weight, B)

	return B, nil
}

func buf9(buf []float64, p, a, b int) float64 { return buf[9*p+3*a+b] }

// pairAtoms validates a single pair and returns its atom count.
func (k *Fingerprint) pairAtoms(x1, x2 descriptor.Descriptor) (int, error) {
	if err := k.ready(); err != nil {
		return 0, err
	}

	return atomCount([]descriptor.Descriptor{x1, x2})
}

// Block returns the weighted block of (x1, x2). It is a collective: every
// worker must call it with the same pair. Descriptors are not synchronised
// here; call SyncParams first when params may have changed.
func (k *Fingerprint) Block(ctx context.Context, x1, x2 descriptor.Descriptor) (*mat.Dense, error) {
	n, err := k.pairAtoms(x1, x2)
	if err != nil {
		return nil, err
	}

	return k.block(ctx, kernelHooks, x1, x2, n)
}

// broadcast copies rank 0's m onto every worker.
func (k *Fingerprint) broadcast(ctx context.Context, m *mat.Dense) error {
	return k.comm.Broadcast(ctx, m.RawMatrix().Data, 0)
}

// Matrix returns K(X, X), n(D+1)×n(D+1), identical on every worker.
//
// Pairs i<j are evaluated once and mirrored; diagonal blocks are the
// self-pair blocks. The result is broadcast from rank 0.
//
// Errors:
//   - ErrParamsUnset, ErrNoPoints, ErrDimensionMismatch.
//   - parallel.ErrAborted when a peer failed mid-build.
//
// Complexity: n(n+1)/2 collective blocks, one broadcast of n²(D+1)² values.
func (k *Fingerprint) Matrix(ctx context.Context, X []descriptor.Descriptor) (*mat.Dense, error) {
	start := time.Now()
	if err := k.ready(); err != nil {
		return nil, err
	}
	// 1. Validate the structures and sync every rank's descriptors
	n, err := atomCount(X)
	if err != nil {
		return nil, err
	}
	if err := k.SyncParams(ctx, X...); err != nil {
		return nil, err
	}
	layout, err := matrix.NewSquareLayout(len(X), 3*n+1)
	if err != nil {
		return nil, err
	}

	// 2. Same loop order on every worker; each block is a collective
	K := layout.Identity()
	for i := range X {
		for j := i + 1; j < len(X); j++ {
			b, err := k.block(ctx, kernelHooks, X[i], X[j], n)
			if err != nil {
				return nil, err
			}
			if err := layout.SetPair(K, i, j, b); err != nil {
				return nil, err
			}
		}
		b, err := k.block(ctx, kernelHooks, X[i], X[i], n)
		if err != nil {
			return nil, err
		}
		if err := layout.SetBlock(K, i, i, b); err != nil {
			return nil, err
		}
	}
	// 3. Rank 0's copy is authoritative
	if err := k.broadcast(ctx, K); err != nil {
		return nil, err
	}
	k.opts.logBuild("kernel matrix assembled", VariantFingerprint, start,
		zap.Int("points", len(X)), zap.Int("dim", 3*n),
		zap.Int("rank", k.comm.Rank()), zap.Int("workers", k.comm.Size()))

	return k.opts.finish(K)
}

// Cross returns K(X1, X2). Both sets are synchronised first.
func (k *Fingerprint) Cross(ctx context.Context, X1, X2 []descriptor.Descriptor) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	all := append(append([]descriptor.Descriptor{}, X1...), X2...)
	n, err := atomCount(all)
	if err != nil {
		return nil, err
	}
	if err := k.SyncParams(ctx, all...); err != nil {
		return nil, err
	}
	K, err := cross(ctx, X1, X2, 3*n+1, func(ctx context.Context, x1, x2 descriptor.Descriptor) (*mat.Dense, error) {
		return k.block(ctx, kernelHooks, x1, x2, n)
	})
	if err != nil {
		return nil, err
	}
	if err := k.broadcast(ctx, K); err != nil {
		return nil, err
	}

	return k.opts.finish(K)
}

// Vector returns K(x, X), (D+1)×n(D+1). x and X are synchronised first.
func (k *Fingerprint) Vector(ctx context.Context, x descriptor.Descriptor, X []descriptor.Descriptor) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, ErrNoPoints
	}
	all := append([]descriptor.Descriptor{x}, X...)
	n, err := atomCount(all)
	if err != nil {
		return nil, err
	}
	if err := k.SyncParams(ctx, all...); err != nil {
		return nil, err
	}
	v, err := vector(ctx, x, X, func(ctx context.Context, x1, x2 descriptor.Descriptor) (*mat.Dense, error) {
		return k.block(ctx, kernelHooks, x1, x2, n)
	})
	if err != nil {
		return nil, err
	}
	if err := k.broadcast(ctx, v); err != nil {
		return nil, err
	}

	return k.opts.finish(v)
}

// DWeight returns ∂K/∂weight = 2·K(X,X)/weight.
func (k *Fingerprint) DWeight(ctx context.Context, X []descriptor.Descriptor) (*mat.Dense, error) {
	K, err := k.Matrix(ctx, X)
	if err != nil {
		return nil, err
	}

	return weightDerivative(K, k.weight), nil
}

// hyperMatrix assembles ∂K/∂θ from the descriptor hooks h over every
// ordered pair, then broadcasts it from rank 0.
func (k *Fingerprint) hyperMatrix(ctx context.Context, h hooks, X []descriptor.Descriptor, n int) (*mat.Dense, error) {
	m, err := cross(ctx, X, X, 3*n+1, func(ctx context.Context, x1, x2 descriptor.Descriptor) (*mat.Dense, error) {
		return k.block(ctx, h, x1, x2, n)
	})
	if err != nil {
		return nil, err
	}
	if err := k.broadcast(ctx, m); err != nil {
		return nil, err
	}

	return k.opts.finish(m)
}

// Derivative returns ∂K(X,X)/∂name for name ∈ {weight, l, Delta}.
// l and Delta require descriptors implementing descriptor.LengthScaled and
// descriptor.Smeared respectively.
func (k *Fingerprint) Derivative(ctx context.Context, X []descriptor.Descriptor, name string) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	if name == hyper.Weight {
		return k.DWeight(ctx, X)
	}
	h, err := derivativeHooks(VariantFingerprint, name, X)
	if err != nil {
		return nil, err
	}
	n, err := atomCount(X)
	if err != nil {
		return nil, err
	}
	if err := k.SyncParams(ctx, X...); err != nil {
		return nil, err
	}

	return k.hyperMatrix(ctx, h, X, n)
}

// Gradient returns [∂K/∂weight, ∂K/∂l, ∂K/∂Delta]. Hook availability is
// checked for both descriptor derivatives before any work starts.
func (k *Fingerprint) Gradient(ctx context.Context, X []descriptor.Descriptor) ([]*mat.Dense, error) {
	start := time.Now()
	if err := k.ready(); err != nil {
		return nil, err
	}
	hl, err := derivativeHooks(VariantFingerprint, hyper.LengthScale, X)
	if err != nil {
		return nil, err
	}
	hd, err := derivativeHooks(VariantFingerprint, hyper.Delta, X)
	if err != nil {
		return nil, err
	}

	dw, err := k.DWeight(ctx, X) // validates X and synchronises descriptors
	if err != nil {
		return nil, err
	}
	n := len(X[0].Atoms())
	dl, err := k.hyperMatrix(ctx, hl, X, n)
	if err != nil {
		return nil, err
	}
	dd, err := k.hyperMatrix(ctx, hd, X, n)
	if err != nil {
		return nil, err
	}
	k.opts.logBuild("kernel gradient assembled", VariantFingerprint, start,
		zap.Int("points", len(X)), zap.Int("rank", k.comm.Rank()), zap.Int("workers", k.comm.Size()))

	return []*mat.Dense{dw, dl, dd}, nil
}
