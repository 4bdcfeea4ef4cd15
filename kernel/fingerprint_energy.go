// SPDX-License-Identifier: MIT

package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/katalvlaran/covkernel/descriptor"
	"github.com/katalvlaran/covkernel/hyper"
	"github.com/katalvlaran/covkernel/matrix"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// FingerprintEnergy is the value-only descriptor kernel: blocks are 1×1,
// k = weight²·x1.Kernel(x2), and K(X, X) is n×n. It runs on the calling
// goroutine and needs no worker group.
type FingerprintEnergy struct {
	fpParams
	opts Options
}

var _ Kernel[descriptor.Descriptor] = (*FingerprintEnergy)(nil)

// NewFingerprintEnergy returns an unconfigured kernel.
func NewFingerprintEnergy(opts ...Option) *FingerprintEnergy {
	return &FingerprintEnergy{opts: gatherOptions(opts...)}
}

// SetParams merges p into the kernel's named hyperparameters.
func (k *FingerprintEnergy) SetParams(p hyper.Params) error { return k.set(p) }

// Params returns a copy of the hyperparameters, or nil.
func (k *FingerprintEnergy) Params() hyper.Params { return k.params.Clone() }

// SyncParams updates every descriptor of X whose params differ.
func (k *FingerprintEnergy) SyncParams(_ context.Context, X ...descriptor.Descriptor) error {
	if err := k.ready(); err != nil {
		return err
	}
	for _, x := range X {
		descriptor.Sync(x, k.params)
	}

	return nil
}

// Value returns weight²·x1.Kernel(x2).
func (k *FingerprintEnergy) Value(x1, x2 descriptor.Descriptor) (float64, error) {
	if err := k.ready(); err != nil {
		return 0, err
	}

	return k.weight * k.weight * x1.Kernel(x2), nil
}

// Block returns the 1×1 block [Value(x1, x2)]. The pair must carry the same
// atom count, otherwise ErrDimensionMismatch.
func (k *FingerprintEnergy) Block(_ context.Context, x1, x2 descriptor.Descriptor) (*mat.Dense, error) {
	if _, err := atomCount([]descriptor.Descriptor{x1, x2}); err != nil {
		return nil, err
	}
	v, err := k.Value(x1, x2)
	if err != nil {
		return nil, err
	}

	return mat.NewDense(1, 1, []float64{v}), nil
}

// Matrix returns the symmetric n×n matrix K(X, X).
//
// Inputs:
//   - X: at least one descriptor, all with the same atom count.
//
// Returns:
//   - K with K[i,j] = weight²·X[i].Kernel(X[j]).
//
// Errors:
//   - ErrParamsUnset, ErrNoPoints, ErrDimensionMismatch.
//   - matrix.ErrAsymmetry if the mirrored result is not exactly symmetric,
//     which would be an internal invariant breach.
//
// Complexity: O(n²) descriptor kernel evaluations over the upper triangle.
func (k *FingerprintEnergy) Matrix(ctx context.Context, X []descriptor.Descriptor) (*mat.Dense, error) {
	start := time.Now()
	if err := k.ready(); err != nil {
		return nil, err
	}
	// 1. Every structure must share one atom count before any Kernel call.
	if _, err := atomCount(X); err != nil {
		return nil, err
	}
	// 2. Bring the descriptors onto the kernel's l and Delta.
	if err := k.SyncParams(ctx, X...); err != nil {
		return nil, err
	}

	// 3. Fill the diagonal and upper triangle, mirroring each pair.
	n := len(X)
	w2 := k.weight * k.weight
	K := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		K.Set(i, i, w2*X[i].Kernel(X[i]))
		for j := i + 1; j < n; j++ {
			v := w2 * X[i].Kernel(X[j])
			K.Set(i, j, v)
			K.Set(j, i, v)
		}
	}
	if err := matrix.ValidateSymmetric(K, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", VariantFingerprintEnergy, err)
	}
	k.opts.logBuild("kernel matrix assembled", VariantFingerprintEnergy, start, zap.Int("points", n))

	return k.opts.finish(K)
}

// Cross returns the n1×n2 matrix K(X1, X2). X1 and X2 together must share
// one atom count.
func (k *FingerprintEnergy) Cross(ctx context.Context, X1, X2 []descriptor.Descriptor) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	if len(X1) == 0 || len(X2) == 0 {
		return nil, ErrNoPoints
	}
	all := append(append([]descriptor.Descriptor{}, X1...), X2...)
	if _, err := atomCount(all); err != nil {
		return nil, err
	}
	if err := k.SyncParams(ctx, all...); err != nil {
		return nil, err
	}
	K, err := cross(ctx, X1, X2, 1, k.Block)
	if err != nil {
		return nil, err
	}

	return k.opts.finish(K)
}

// Vector returns the 1×n row K(x, X).
func (k *FingerprintEnergy) Vector(ctx context.Context, x descriptor.Descriptor, X []descriptor.Descriptor) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, ErrNoPoints
	}
	all := append([]descriptor.Descriptor{x}, X...)
	if _, err := atomCount(all); err != nil {
		return nil, err
	}
	if err := k.SyncParams(ctx, all...); err != nil {
		return nil, err
	}
	v, err := vector(ctx, x, X, k.Block)
	if err != nil {
		return nil, err
	}

	return k.opts.finish(v)
}

// Derivative returns ∂K(X,X)/∂name for name ∈ {weight, l, Delta}.
func (k *FingerprintEnergy) Derivative(ctx context.Context, X []descriptor.Descriptor, name string) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	if name == hyper.Weight {
		K, err := k.Matrix(ctx, X)
		if err != nil {
			return nil, err
		}
		return weightDerivative(K, k.weight), nil
	}
	if _, err := atomCount(X); err != nil {
		return nil, err
	}
	h, err := derivativeHooks(VariantFingerprintEnergy, name, X)
	if err != nil {
		return nil, err
	}
	if err := k.SyncParams(ctx, X...); err != nil {
		return nil, err
	}
	w2 := k.weight * k.weight
	m, err := cross(ctx, X, X, 1, func(_ context.Context, x1, x2 descriptor.Descriptor) (*mat.Dense, error) {
		return mat.NewDense(1, 1, []float64{w2 * h.value(x1, x2)}), nil
	})
	if err != nil {
		return nil, err
	}

	return k.opts.finish(m)
}

// Gradient returns [∂K/∂weight, ∂K/∂l, ∂K/∂Delta], each n×n.
func (k *FingerprintEnergy) Gradient(ctx context.Context, X []descriptor.Descriptor) ([]*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	names := VariantFingerprintEnergy.Hyperparameters()
	for _, name := range names[1:] {
		if _, err := derivativeHooks(VariantFingerprintEnergy, name, X); err != nil {
			return nil, err
		}
	}
	out := make([]*mat.Dense, len(names))
	for i, name := range names {
		m, err := k.Derivative(ctx, X, name)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}

	return out, nil
}
