// SPDX-License-Identifier: MIT
package kernel_test

import (
	"context"
	"math"
	"testing"

	"github.com/katalvlaran/covkernel/hyper"
	"github.com/katalvlaran/covkernel/kernel"
	"github.com/katalvlaran/covkernel/matrix"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
)

var points = [][]float64{
	{0, 0},
	{3, 4},
	{1, -1},
	{0.5, 2},
}

func newSE(t *testing.T, weight, l float64) *kernel.SquaredExp {
	t.Helper()
	k := kernel.NewSquaredExp(kernel.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, k.SetParams(hyper.Pair(weight, l)))
	return k
}

func TestSquaredExpValue(t *testing.T) {
	t.Parallel()

	k := newSE(t, 2, 5)
	q, err := k.SquaredDistance(points[0], points[1])
	require.NoError(t, err)
	require.Equal(t, 1.0, q)

	v, err := k.Value(points[0], points[1])
	require.NoError(t, err)
	require.InDelta(t, 4*math.Exp(-0.5), v, 1e-15)

	self, err := k.Value(points[2], points[2])
	require.NoError(t, err)
	require.Equal(t, 4.0, self)
}

func TestSquaredExpErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	k := kernel.NewSquaredExp()
	_, err := k.Matrix(ctx, points)
	require.ErrorIs(t, err, kernel.ErrParamsUnset)
	_, err = k.Value(points[0], points[1])
	require.ErrorIs(t, err, kernel.ErrParamsUnset)
	require.Nil(t, k.Params())

	require.ErrorIs(t, k.SetParams(hyper.Params{hyper.Weight: 1}), hyper.ErrMissingParam)
	require.ErrorIs(t, k.SetParams(hyper.Pair(1, 0)), hyper.ErrInvalidParam)
	require.ErrorIs(t, k.SetParams(hyper.Pair(0, 1)), hyper.ErrInvalidParam)
	require.ErrorIs(t, k.SetParams(hyper.Pair(math.NaN(), 1)), hyper.ErrInvalidParam)

	require.NoError(t, k.SetParams(hyper.Pair(1, 1)))
	_, err = k.Matrix(ctx, nil)
	require.ErrorIs(t, err, kernel.ErrNoPoints)
	_, err = k.Matrix(ctx, [][]float64{{0, 0}, {1}})
	require.ErrorIs(t, err, kernel.ErrDimensionMismatch)
	_, err = k.Derivative(ctx, points, hyper.Delta)
	require.ErrorIs(t, err, kernel.ErrUnsupportedParam)
}

func TestSquaredExpMatrix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	k := newSE(t, 1.5, 2)
	K, err := k.Matrix(ctx, points)
	require.NoError(t, err)

	r, c := K.Dims()
	require.Equal(t, len(points), r)
	require.Equal(t, len(points), c)
	require.True(t, isSymmetric(K))
	for i := range points {
		require.Equal(t, 1.5*1.5, K.At(i, i))
	}

	v, err := k.Vector(ctx, points[1], points)
	require.NoError(t, err)
	require.True(t, mat.Equal(K.RowView(1).T(), v))
}

func TestSquaredExpSinglePoint(t *testing.T) {
	t.Parallel()

	k := newSE(t, 3, 1)
	K, err := k.Matrix(context.Background(), points[:1])
	require.NoError(t, err)
	require.Equal(t, []float64{9}, K.RawMatrix().Data)
}

func TestSquaredExpGradient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	const w, l = 1.3, 1.7

	k := newSE(t, w, l)
	K, err := k.Matrix(ctx, points)
	require.NoError(t, err)
	grads, err := k.Gradient(ctx, points)
	require.NoError(t, err)
	require.Len(t, grads, 2)

	r, c := K.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			require.Equal(t, 2*K.At(i, j)/w, grads[0].At(i, j), "dK/dweight[%d,%d]", i, j)
			pair, err := k.DWeightPair(points[i], points[j])
			require.NoError(t, err)
			require.InDelta(t, pair, grads[0].At(i, j), 1e-14)
		}
	}

	plus, err := newSE(t, w, l+fdStep).Matrix(ctx, points)
	require.NoError(t, err)
	minus, err := newSE(t, w, l-fdStep).Matrix(ctx, points)
	require.NoError(t, err)
	approxEqual(t, centralDifference(plus, minus, fdStep), grads[1], fdTol)
}

func TestSquaredExpFiniteCheck(t *testing.T) {
	t.Parallel()

	k := kernel.NewSquaredExp(kernel.WithFiniteCheck())
	require.NoError(t, k.SetParams(hyper.Pair(1, 1)))
	_, err := k.Matrix(context.Background(), [][]float64{{0, math.NaN()}, {1, 1}})
	require.ErrorIs(t, err, matrix.ErrNaNInf)

	// Without the check NaN propagates.
	k = newSE(t, 1, 1)
	K, err := k.Matrix(context.Background(), [][]float64{{0, math.NaN()}, {1, 1}})
	require.NoError(t, err)
	require.True(t, math.IsNaN(K.At(0, 1)))
}

// TestSquaredExpGradWorkedExample pins two points in 3-D with weight=l=1.
func TestSquaredExpGradWorkedExample(t *testing.T) {
	t.Parallel()

	k := kernel.NewSquaredExpGrad()
	require.NoError(t, k.SetParams(hyper.Pair(1, 1)))
	X := [][]float64{{0, 0, 0}, {1, 0, 0}}

	K, err := k.Matrix(context.Background(), X)
	require.NoError(t, err)
	r, c := K.Dims()
	require.Equal(t, 8, r)
	require.Equal(t, 8, c)
	require.Equal(t, 3, k.Dim())

	e := math.Exp(-0.5)
	require.InDelta(t, e, K.At(0, 4), 1e-15)
	require.InDelta(t, e, K.At(1, 4), 1e-15)
	require.Equal(t, 0.0, K.At(2, 4))
	require.Equal(t, 0.0, K.At(3, 4))
	require.True(t, isSymmetric(K))

	layout, err := matrix.NewSquareLayout(2, 4)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		b, err := layout.Block(K, i, i)
		require.NoError(t, err)
		require.True(t, mat.Equal(b, layout.Identity().Slice(0, 4, 0, 4)))
	}
}

// TestSquaredExpGradSinglePoint expects K of one point to be its self block.
func TestSquaredExpGradSinglePoint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	k := kernel.NewSquaredExpGrad()
	require.NoError(t, k.SetParams(hyper.Pair(1.7, 0.6)))
	x := []float64{0.3, -1.2, 2.5}

	K, err := k.Matrix(ctx, [][]float64{x})
	require.NoError(t, err)
	self, err := k.Block(ctx, x, x)
	require.NoError(t, err)
	r, c := K.Dims()
	require.Equal(t, [2]int{4, 4}, [2]int{r, c})
	require.True(t, mat.Equal(self, K))
	require.Equal(t, 1.7*1.7, K.At(0, 0))
	require.InDelta(t, 1.7*1.7/(0.6*0.6), K.At(1, 1), 1e-12)
}

func TestSquaredExpGradBlockAntisymmetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	k := kernel.NewSquaredExpGrad()
	require.NoError(t, k.SetParams(hyper.Pair(1.2, 0.8)))
	x1, x2 := []float64{0.1, -0.4, 0.3}, []float64{0.5, 0.2, -0.1}

	b12, err := k.Block(ctx, x1, x2)
	require.NoError(t, err)
	b21, err := k.Block(ctx, x2, x1)
	require.NoError(t, err)
	require.True(t, mat.Equal(b12.T(), b21))

	for a := 1; a <= 3; a++ {
		require.Equal(t, -b12.At(0, a), b12.At(a, 0))
		require.Equal(t, -b12.At(0, a), b21.At(0, a))
	}

	dir, err := k.GradientDirection(x1, x2)
	require.NoError(t, err)
	v, err := k.Value(x1, x2)
	require.NoError(t, err)
	for a := range dir {
		require.InDelta(t, dir[a]*v, b12.At(0, 1+a), 1e-15)
	}
}

func TestSquaredExpGradMatrixMatchesCross(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	k := kernel.NewSquaredExpGrad(kernel.WithDimension(2))
	require.NoError(t, k.SetParams(hyper.Pair(0.9, 1.4)))

	K, err := k.Matrix(ctx, points)
	require.NoError(t, err)
	C, err := k.Cross(ctx, points, points)
	require.NoError(t, err)
	require.True(t, mat.Equal(K, C))

	// Row block 0 of K is the vector of point 0.
	v, err := k.Vector(ctx, points[0], points)
	require.NoError(t, err)
	require.True(t, mat.Equal(K.Slice(0, 3, 0, 12), v))

	_, err = k.Matrix(ctx, [][]float64{{1, 2, 3}})
	require.ErrorIs(t, err, kernel.ErrDimensionMismatch)
}

func TestSquaredExpGradDerivatives(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	const w, l = 1.1, 1.6

	build := func(l float64) *mat.Dense {
		k := kernel.NewSquaredExpGrad()
		require.NoError(t, k.SetParams(hyper.Pair(w, l)))
		K, err := k.Matrix(ctx, points)
		require.NoError(t, err)
		return K
	}

	k := kernel.NewSquaredExpGrad()
	require.NoError(t, k.SetParams(hyper.Pair(w, l)))
	grads, err := k.Gradient(ctx, points)
	require.NoError(t, err)
	require.Len(t, grads, 2)

	K := build(l)
	r, c := K.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			require.Equal(t, 2*K.At(i, j)/w, grads[0].At(i, j))
		}
	}

	approxEqual(t, centralDifference(build(l+fdStep), build(l-fdStep), fdStep), grads[1], fdTol)

	dl, err := k.Derivative(ctx, points, hyper.LengthScale)
	require.NoError(t, err)
	require.True(t, mat.Equal(grads[1], dl))

	_, err = k.Derivative(ctx, points, "sigma")
	require.ErrorIs(t, err, kernel.ErrUnsupportedParam)
}

func TestVariantNames(t *testing.T) {
	t.Parallel()

	for _, v := range []kernel.Variant{
		kernel.VariantSE, kernel.VariantSEGrad,
		kernel.VariantFingerprint, kernel.VariantFingerprintEnergy,
	} {
		got, err := kernel.ParseVariant(v.String())
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	_, err := kernel.ParseVariant("matern")
	require.ErrorIs(t, err, kernel.ErrUnknownVariant)

	require.Equal(t, []string{"weight", "l"}, kernel.VariantSEGrad.Hyperparameters())
	require.Equal(t, []string{"weight", "l", "Delta"}, kernel.VariantFingerprint.Hyperparameters())
	require.Equal(t, "Variant(9)", kernel.Variant(9).String())
}

func TestOptionsPanic(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { kernel.WithDimension(-1) })
	require.Panics(t, func() { kernel.WithLogger(nil) })
}
