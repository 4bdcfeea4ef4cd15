// SPDX-License-Identifier: MIT

package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/katalvlaran/covkernel/hyper"
	"github.com/katalvlaran/covkernel/matrix"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// SquaredExpGrad is the squared-exponential kernel over vectors of
// dimension D with derivative blocks (Koistinen et al., "Nudged elastic band
// calculations accelerated with Gaussian process regression", §3).
//
// The block of a pair is (D+1)×(D+1):
//
//	[0,0]   k(x1,x2)
//	[0,1:]  ∂k/∂x2 =  (x1-x2)/l² · k
//	[1:,0]  ∂k/∂x1 = -(x1-x2)/l² · k
//	[1:,1:] ∂²k/∂x1∂x2 = (I - (x1-x2)(x1-x2)ᵀ/l²)/l² · k
//
// The raw block is built first and multiplied by k exactly once.
// D is fixed with WithDimension or inferred by the first Matrix build.
type SquaredExpGrad struct {
	se
	opts Options
	dim  int
}

var _ Kernel[[]float64] = (*SquaredExpGrad)(nil)

// NewSquaredExpGrad returns an unconfigured kernel; call SetParams before use.
func NewSquaredExpGrad(opts ...Option) *SquaredExpGrad {
	o := gatherOptions(opts...)
	return &SquaredExpGrad{opts: o, dim: o.dimension}
}

// SetParams takes the ordered pair hyper.Pair(weight, l).
func (k *SquaredExpGrad) SetParams(p hyper.Params) error { return k.set(p) }

// Params returns a copy of the configured pair, or nil.
func (k *SquaredExpGrad) Params() hyper.Params { return k.params.Clone() }

// Dim returns D, or 0 while it is still to be inferred.
func (k *SquaredExpGrad) Dim() int { return k.dim }

// Value returns the scalar kernel k(x1, x2).
func (k *SquaredExpGrad) Value(x1, x2 []float64) (float64, error) {
	if err := k.ready(); err != nil {
		return 0, err
	}
	d, err := diff(x1, x2)
	if err != nil {
		return 0, err
	}

	return k.value(k.squaredDistance(d)), nil
}

// GradientDirection returns the raw gradient (x1 - x2)/l², before the
// multiplication by k.
func (k *SquaredExpGrad) GradientDirection(x1, x2 []float64) ([]float64, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	d, err := diff(x1, x2)
	if err != nil {
		return nil, err
	}
	l2 := k.l * k.l
	for a := range d {
		d[a] /= l2
	}

	return d, nil
}

// blockDim resolves D for a pair evaluation.
func (k *SquaredExpGrad) blockDim(x1 []float64) (int, error) {
	if k.dim == 0 {
		return len(x1), nil
	}
	if len(x1) != k.dim {
		return 0, fmt.Errorf("%w: point has %d coordinates, kernel D=%d", ErrDimensionMismatch, len(x1), k.dim)
	}

	return k.dim, nil
}

// Block returns the (D+1)×(D+1) value/gradient/Hessian block of (x1, x2).
//
// Inputs:
//   - x1, x2: points of dimension D (fixed or inferred).
//
// Returns:
//   - k(x1,x2) times the raw block R, with R[0,0] = 1,
//     R[0,1+a] = d_a/l², R[1+a,0] = -d_a/l² and
//     R[1+a,1+b] = (δ_ab - d_a·d_b/l²)/l², where d = x1 - x2.
//
// Errors: ErrParamsUnset, ErrDimensionMismatch.
// Complexity: O(D²).
func (k *SquaredExpGrad) Block(_ context.Context, x1, x2 []float64) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	D, err := k.blockDim(x1)
	if err != nil {
		return nil, err
	}
	d, err := diff(x1, x2)
	if err != nil {
		return nil, err
	}

	// Raw block first, scaled by k once at the end.
	l2 := k.l * k.l
	R := mat.NewDense(D+1, D+1, nil)
	R.Set(0, 0, 1)
	for a := 0; a < D; a++ {
		g := d[a] / l2
		R.Set(0, 1+a, g)
		R.Set(1+a, 0, -g)
		for b := 0; b < D; b++ {
			v := -d[a] * d[b] / l2
			if a == b {
				v++
			}
			R.Set(1+a, 1+b, v/l2)
		}
	}
	R.Scale(k.value(k.squaredDistance(d)), R)

	return R, nil
}

// lengthBlock returns ∂Block/∂l. With q = ||d||²/l² and P = d·dᵀ/l²:
//
//	[0,0]   q/l
//	[0,1:]  d/l² · (q-2)/l
//	[1:,0] -d/l² · (q-2)/l
//	[1:,1:] ((q-2)(I-P) + 2P)/l³
//
// all multiplied by k(x1, x2).
func (k *SquaredExpGrad) lengthBlock(_ context.Context, x1, x2 []float64) (*mat.Dense, error) {
	D, err := k.blockDim(x1)
	if err != nil {
		return nil, err
	}
	d, err := diff(x1, x2)
	if err != nil {
		return nil, err
	}

	l2 := k.l * k.l
	l3 := l2 * k.l
	q := k.squaredDistance(d)
	f := (q - 2) / k.l

	R := mat.NewDense(D+1, D+1, nil)
	R.Set(0, 0, q/k.l)
	for a := 0; a < D; a++ {
		g := d[a] / l2 * f
		R.Set(0, 1+a, g)
		R.Set(1+a, 0, -g)
		for b := 0; b < D; b++ {
			p := d[a] * d[b] / l2
			shape := -p
			if a == b {
				shape++
			}
			R.Set(1+a, 1+b, ((q-2)*shape+2*p)/l3)
		}
	}
	R.Scale(k.value(q), R)

	return R, nil
}

// prepare checks the point set and infers D on the first build.
func (k *SquaredExpGrad) prepare(X [][]float64) (int, error) {
	if err := k.ready(); err != nil {
		return 0, err
	}
	if len(X) == 0 {
		return 0, ErrNoPoints
	}
	if k.dim == 0 {
		if len(X[0]) == 0 {
			return 0, fmt.Errorf("%w: point 0 has no coordinates", ErrDimensionMismatch)
		}
		k.dim = len(X[0])
	}
	for i, x := range X {
		if len(x) != k.dim {
			return 0, fmt.Errorf("%w: point %d has %d coordinates, kernel D=%d", ErrDimensionMismatch, i, len(x), k.dim)
		}
	}

	return k.dim, nil
}

// Cross returns K(X1, X2) of (D+1)×(D+1) blocks.
func (k *SquaredExpGrad) Cross(ctx context.Context, X1, X2 [][]float64) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	if len(X1) == 0 {
		return nil, ErrNoPoints
	}
	D, err := k.blockDim(X1[0])
	if err != nil {
		return nil, err
	}
	K, err := cross(ctx, X1, X2, D+1, k.Block)
	if err != nil {
		return nil, err
	}

	return k.opts.finish(K)
}

// Matrix returns the symmetric n(D+1)×n(D+1) matrix K(X, X).
//
// Only pairs i<j are evaluated; block (j,i) is the transpose of (i,j).
// Diagonal blocks are the self-pair blocks k(x_i, x_i), evaluated directly.
//
// Errors: ErrParamsUnset, ErrNoPoints, ErrDimensionMismatch, ctx.Err().
// Complexity: O(n²·D²) time, O(n²·D²) memory.
func (k *SquaredExpGrad) Matrix(ctx context.Context, X [][]float64) (*mat.Dense, error) {
	start := time.Now()
	// 1. Validate the set and fix D
	D, err := k.prepare(X)
	if err != nil {
		return nil, err
	}
	layout, err := matrix.NewSquareLayout(len(X), D+1)
	if err != nil {
		return nil, err
	}

	// 2. Upper triangle, mirrored; then the diagonal block
	K := layout.Identity()
	for i := range X {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(X); j++ {
			b, err := k.Block(ctx, X[i], X[j])
			if err != nil {
				return nil, err
			}
			if err := layout.SetPair(K, i, j, b); err != nil {
				return nil, err
			}
		}
		b, err := k.Block(ctx, X[i], X[i])
		if err != nil {
			return nil, err
		}
		if err := layout.SetBlock(K, i, i, b); err != nil {
			return nil, err
		}
	}
	k.opts.logBuild("kernel matrix assembled", VariantSEGrad, start,
		zap.Int("points", len(X)), zap.Int("dim", D))

	return k.opts.finish(K)
}

// Vector returns the (D+1)×n(D+1) matrix K(x, X).
func (k *SquaredExpGrad) Vector(ctx context.Context, x []float64, X [][]float64) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	v, err := vector(ctx, x, X, k.Block)
	if err != nil {
		return nil, err
	}

	return k.opts.finish(v)
}

// DWeight returns ∂K/∂weight = 2·K(X,X)/weight.
func (k *SquaredExpGrad) DWeight(ctx context.Context, X [][]float64) (*mat.Dense, error) {
	K, err := k.Matrix(ctx, X)
	if err != nil {
		return nil, err
	}

	return weightDerivative(K, k.weight), nil
}

// DLength returns ∂K/∂l, evaluating every ordered pair.
func (k *SquaredExpGrad) DLength(ctx context.Context, X [][]float64) (*mat.Dense, error) {
	D, err := k.prepare(X)
	if err != nil {
		return nil, err
	}
	m, err := cross(ctx, X, X, D+1, k.lengthBlock)
	if err != nil {
		return nil, err
	}

	return k.opts.finish(m)
}

// Derivative returns ∂K(X,X)/∂name for name ∈ {weight, l}.
func (k *SquaredExpGrad) Derivative(ctx context.Context, X [][]float64, name string) (*mat.Dense, error) {
	switch name {
	case hyper.Weight:
		return k.DWeight(ctx, X)
	case hyper.LengthScale:
		return k.DLength(ctx, X)
	default:
		return nil, fmt.Errorf("%w: %q for %s", ErrUnsupportedParam, name, VariantSEGrad)
	}
}

// Gradient returns [∂K/∂weight, ∂K/∂l].
func (k *SquaredExpGrad) Gradient(ctx context.Context, X [][]float64) ([]*mat.Dense, error) {
	dw, err := k.DWeight(ctx, X)
	if err != nil {
		return nil, err
	}
	dl, err := k.DLength(ctx, X)
	if err != nil {
		return nil, err
	}

	return []*mat.Dense{dw, dl}, nil
}
