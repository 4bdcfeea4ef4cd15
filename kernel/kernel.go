// SPDX-License-Identifier: MIT

package kernel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/katalvlaran/covkernel/hyper"
	"github.com/katalvlaran/covkernel/matrix"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Kernel is the contract every covariance kernel variant fulfils over
// points of type P ([]float64 for vector kernels, descriptor.Descriptor for
// fingerprint kernels).
type Kernel[P any] interface {
	// SetParams configures the hyperparameters. It is the only mutation of
	// kernel state.
	SetParams(p hyper.Params) error

	// Params returns a copy of the current hyperparameters (nil if unset).
	Params() hyper.Params

	// Block returns the covariance block of one ordered pair.
	Block(ctx context.Context, x1, x2 P) (*mat.Dense, error)

	// Cross returns K(X1, X2): the blocks of every (x1, x2) pair stacked
	// row-major.
	Cross(ctx context.Context, X1, X2 []P) (*mat.Dense, error)

	// Matrix returns the symmetric covariance matrix K(X, X).
	Matrix(ctx context.Context, X []P) (*mat.Dense, error)

	// Vector returns K(x, X), the blocks of x against every member of X
	// stacked horizontally.
	Vector(ctx context.Context, x P, X []P) (*mat.Dense, error)

	// Gradient returns ∂K(X,X)/∂θ for every hyperparameter θ of the
	// variant, in the order given by Variant.Hyperparameters.
	Gradient(ctx context.Context, X []P) ([]*mat.Dense, error)

	// Derivative returns ∂K(X,X)/∂θ for the single hyperparameter name.
	Derivative(ctx context.Context, X []P, name string) (*mat.Dense, error)
}

// Variant tags a kernel implementation. Variants are chosen at
// construction time.
type Variant int

const (
	// VariantSE is the vector squared exponential without derivative blocks.
	VariantSE Variant = iota
	// VariantSEGrad is the vector squared exponential with value, gradient
	// and Hessian blocks.
	VariantSEGrad
	// VariantFingerprint is the descriptor kernel with forces.
	VariantFingerprint
	// VariantFingerprintEnergy is the value-only descriptor kernel.
	VariantFingerprintEnergy
)

var variantNames = [...]string{
	VariantSE:                "se",
	VariantSEGrad:            "se-grad",
	VariantFingerprint:       "fingerprint",
	VariantFingerprintEnergy: "fingerprint-energy",
}

// String returns the canonical variant name.
func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}

	return variantNames[v]
}

// ParseVariant maps a canonical name (case-insensitive) to its Variant.
func ParseVariant(s string) (Variant, error) {
	for v, name := range variantNames {
		if strings.EqualFold(s, name) {
			return Variant(v), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Descriptors reports whether the variant consumes descriptor points.
func (v Variant) Descriptors() bool {
	return v == VariantFingerprint || v == VariantFingerprintEnergy
}

// Hyperparameters returns the order of the matrices returned by Gradient.
func (v Variant) Hyperparameters() []string {
	if v.Descriptors() {
		return []string{hyper.Weight, hyper.LengthScale, hyper.Delta}
	}

	return []string{hyper.Weight, hyper.LengthScale}
}

// blockFunc evaluates one pair.
type blockFunc[P any] func(ctx context.Context, x1, x2 P) (*mat.Dense, error)

// cross assembles K(X1, X2) of size×size blocks by a full double loop.
// No symmetry is assumed, so it also serves the derivative matrices.
// Complexity: n1·n2 block evaluations.
func cross[P any](ctx context.Context, X1, X2 []P, size int, block blockFunc[P]) (*mat.Dense, error) {
	if len(X1) == 0 || len(X2) == 0 {
		return nil, ErrNoPoints
	}
	layout, err := matrix.NewLayout(len(X1), len(X2), size)
	if err != nil {
		return nil, err
	}

	K := layout.Zeros()
	for i, x1 := range X1 {
		for j, x2 := range X2 {
			b, err := block(ctx, x1, x2)
			if err != nil {
				return nil, err
			}
			if err := layout.SetBlock(K, i, j, b); err != nil {
				return nil, err
			}
		}
	}

	return K, nil
}

// vector assembles K(x, X) by stacking the blocks horizontally.
func vector[P any](ctx context.Context, x P, X []P, block blockFunc[P]) (*mat.Dense, error) {
	if len(X) == 0 {
		return nil, ErrNoPoints
	}
	blocks := make([]mat.Matrix, len(X))
	for j, x2 := range X {
		b, err := block(ctx, x, x2)
		if err != nil {
			return nil, err
		}
		blocks[j] = b
	}

	return matrix.HStack(blocks...)
}

// weightDerivative returns ∂K/∂weight = 2·K/weight, element by element.
func weightDerivative(K *mat.Dense, weight float64) *mat.Dense {
	r, c := K.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return 2 * v / weight }, K)

	return out
}

// finish applies the optional finite check to a result.
func (o Options) finish(m *mat.Dense) (*mat.Dense, error) {
	if !o.finiteCheck {
		return m, nil
	}
	if err := matrix.ValidateFinite(m); err != nil {
		return nil, err
	}

	return m, nil
}

// logBuild emits the Debug event that closes every matrix build.
func (o Options) logBuild(msg string, v Variant, start time.Time, fields ...zap.Field) {
	if ce := o.logger.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(append(fields,
			zap.Stringer("variant", v),
			zap.Duration("elapsed", time.Since(start)),
		)...)
	}
}
