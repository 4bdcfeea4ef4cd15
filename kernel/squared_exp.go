// SPDX-License-Identifier: MIT

package kernel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/katalvlaran/covkernel/hyper"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// se holds the [weight, l] pair shared by both vector kernels.
type se struct {
	params hyper.Params // nil until configured
	weight float64
	l      float64
}

// set validates and stores the ordered pair.
func (s *se) set(p hyper.Params) error {
	if err := p.Require(hyper.Weight, hyper.LengthScale); err != nil {
		return fmt.Errorf("SetParams: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("SetParams: %w", err)
	}
	s.params = hyper.Pair(p[hyper.Weight], p[hyper.LengthScale])
	s.weight, s.l = p[hyper.Weight], p[hyper.LengthScale]

	return nil
}

func (s *se) ready() error {
	if s.params == nil {
		return ErrParamsUnset
	}

	return nil
}

// diff returns x1 - x2 after checking both have the same, non-zero length.
func diff(x1, x2 []float64) ([]float64, error) {
	if len(x1) == 0 || len(x1) != len(x2) {
		return nil, fmt.Errorf("%w: len %d vs %d", ErrDimensionMismatch, len(x1), len(x2))
	}

	return floats.SubTo(make([]float64, len(x1)), x1, x2), nil
}

// squaredDistance is ||d||²/l².
func (s *se) squaredDistance(d []float64) float64 {
	return floats.Dot(d, d) / (s.l * s.l)
}

// value is weight²·exp(-q/2).
func (s *se) value(q float64) float64 {
	return s.weight * s.weight * math.Exp(-0.5*q)
}

// SquaredExp is the squared-exponential kernel over plain vectors without
// derivative blocks:
//
//	k(x1, x2) = weight² · exp(-||x1 - x2||² / (2 l²))
//
// Blocks are 1×1 and K(X, X) is n×n. SquaredExp is not safe for concurrent
// SetParams; evaluation is read-only.
type SquaredExp struct {
	se
	opts Options
}

var _ Kernel[[]float64] = (*SquaredExp)(nil)

// NewSquaredExp returns an unconfigured kernel; call SetParams before use.
func NewSquaredExp(opts ...Option) *SquaredExp {
	return &SquaredExp{opts: gatherOptions(opts...)}
}

// SetParams takes the ordered pair hyper.Pair(weight, l).
func (k *SquaredExp) SetParams(p hyper.Params) error { return k.set(p) }

// Params returns a copy of the configured pair, or nil.
func (k *SquaredExp) Params() hyper.Params { return k.params.Clone() }

// SquaredDistance returns ||x1 - x2||²/l².
func (k *SquaredExp) SquaredDistance(x1, x2 []float64) (float64, error) {
	if err := k.ready(); err != nil {
		return 0, err
	}
	d, err := diff(x1, x2)
	if err != nil {
		return 0, err
	}

	return k.squaredDistance(d), nil
}

// Value returns k(x1, x2).
func (k *SquaredExp) Value(x1, x2 []float64) (float64, error) {
	q, err := k.SquaredDistance(x1, x2)
	if err != nil {
		return 0, err
	}

	return k.value(q), nil
}

// DWeightPair returns ∂k/∂weight = 2·weight·exp(-q/2).
func (k *SquaredExp) DWeightPair(x1, x2 []float64) (float64, error) {
	q, err := k.SquaredDistance(x1, x2)
	if err != nil {
		return 0, err
	}

	return 2 * k.weight * math.Exp(-0.5*q), nil
}

// DLengthPair returns ∂k/∂l = k·||x1 - x2||²/l³.
func (k *SquaredExp) DLengthPair(x1, x2 []float64) (float64, error) {
	q, err := k.SquaredDistance(x1, x2)
	if err != nil {
		return 0, err
	}

	return k.value(q) * q / k.l, nil
}

// Block returns the 1×1 block [k(x1, x2)].
func (k *SquaredExp) Block(_ context.Context, x1, x2 []float64) (*mat.Dense, error) {
	v, err := k.Value(x1, x2)
	if err != nil {
		return nil, err
	}

	return mat.NewDense(1, 1, []float64{v}), nil
}

// Cross returns the n1×n2 matrix K(X1, X2).
func (k *SquaredExp) Cross(ctx context.Context, X1, X2 [][]float64) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	K, err := cross(ctx, X1, X2, 1, k.Block)
	if err != nil {
		return nil, err
	}

	return k.opts.finish(K)
}

// Matrix returns K(X, X).
func (k *SquaredExp) Matrix(ctx context.Context, X [][]float64) (*mat.Dense, error) {
	start := time.Now()
	K, err := k.Cross(ctx, X, X)
	if err != nil {
		return nil, err
	}
	k.opts.logBuild("kernel matrix assembled", VariantSE, start, zap.Int("points", len(X)))

	return K, nil
}

// Vector returns the 1×n row K(x, X).
func (k *SquaredExp) Vector(ctx context.Context, x []float64, X [][]float64) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}
	v, err := vector(ctx, x, X, k.Block)
	if err != nil {
		return nil, err
	}

	return k.opts.finish(v)
}

// pairMatrix fills an n×n matrix with f over every ordered pair of X.
func (k *SquaredExp) pairMatrix(ctx context.Context, X [][]float64, f func(x1, x2 []float64) (float64, error)) (*mat.Dense, error) {
	return cross(ctx, X, X, 1, func(_ context.Context, x1, x2 []float64) (*mat.Dense, error) {
		v, err := f(x1, x2)
		if err != nil {
			return nil, err
		}
		return mat.NewDense(1, 1, []float64{v}), nil
	})
}

// Derivative returns ∂K(X,X)/∂name for name ∈ {weight, l}.
//
// ∂K/∂weight is 2·K(X,X)/weight taken element by element from Matrix, so it
// matches the scaled matrix exactly. ∂K/∂l uses DLengthPair over every
// ordered pair.
//
// Errors: ErrParamsUnset, ErrUnsupportedParam, plus those of Matrix.
// Complexity: O(n²·D).
func (k *SquaredExp) Derivative(ctx context.Context, X [][]float64, name string) (*mat.Dense, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}

	switch name {
	case hyper.Weight:
		K, err := k.Matrix(ctx, X)
		if err != nil {
			return nil, err
		}
		return weightDerivative(K, k.weight), nil
	case hyper.LengthScale:
		m, err := k.pairMatrix(ctx, X, k.DLengthPair)
		if err != nil {
			return nil, err
		}
		return k.opts.finish(m)
	default:
		return nil, fmt.Errorf("%w: %q for %s", ErrUnsupportedParam, name, VariantSE)
	}
}

// Gradient returns [∂K/∂weight, ∂K/∂l], both n×n.
func (k *SquaredExp) Gradient(ctx context.Context, X [][]float64) ([]*mat.Dense, error) {
	names := VariantSE.Hyperparameters()
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
