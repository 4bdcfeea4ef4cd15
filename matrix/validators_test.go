// SPDX-License-Identifier: MIT
// Package matrix_test contains unit tests for the matrix validators.
package matrix_test

import (
	"errors"
	"math"
	"testing"

	"github.com/katalvlaran/covkernel/matrix"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// TestValidateSquare covers nil inputs, square and non-square cases.
func TestValidateSquare(t *testing.T) {
	t.Parallel()

	var typedNil *mat.Dense
	tests := []struct {
		name string
		m    mat.Matrix
		want error
	}{
		{"nil", nil, matrix.ErrNilMatrix},
		{"typed nil", typedNil, matrix.ErrNilMatrix},
		{"1x1", mat.NewDense(1, 1, nil), nil},
		{"3x3", mat.NewDense(3, 3, nil), nil},
		{"2x3", mat.NewDense(2, 3, nil), matrix.ErrNonSquare},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := matrix.ValidateSquare(tc.m)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.Truef(t, errors.Is(err, tc.want), "expected errors.Is(%v, %v)", err, tc.want)
		})
	}
}

// TestValidateSymmetric checks exact and tolerant modes, NaN handling and bad tolerances.
func TestValidateSymmetric(t *testing.T) {
	t.Parallel()

	sym := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		2, 4, 5,
		3, 5, 6,
	})
	nearly := mat.NewDense(2, 2, []float64{
		1, 2,
		2 + 1e-12, 1,
	})
	withNaN := mat.NewDense(2, 2, []float64{
		1, math.NaN(),
		math.NaN(), 1,
	})

	tests := []struct {
		name string
		m    mat.Matrix
		tol  float64
		want error
	}{
		{"exact symmetric", sym, 0, nil},
		{"nearly symmetric exact", nearly, 0, matrix.ErrAsymmetry},
		{"nearly symmetric tolerant", nearly, 1e-9, nil},
		{"negative tol flipped", nearly, -1e-9, nil},
		{"nan off diagonal", withNaN, 0, matrix.ErrAsymmetry},
		{"nan off diagonal tolerant", withNaN, 1, matrix.ErrAsymmetry},
		{"nan tolerance", sym, math.NaN(), matrix.ErrNaNInf},
		{"non square", mat.NewDense(2, 3, nil), 0, matrix.ErrNonSquare},
		{"nil", nil, 0, matrix.ErrNilMatrix},
		{"1x1", mat.NewDense(1, 1, []float64{math.NaN()}), 0, nil},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := matrix.ValidateSymmetric(tc.m, tc.tol)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.Truef(t, errors.Is(err, tc.want), "expected errors.Is(%v, %v)", err, tc.want)
		})
	}
}

// TestValidateFinite rejects NaN and ±Inf.
func TestValidateFinite(t *testing.T) {
	t.Parallel()

	require.NoError(t, matrix.ValidateFinite(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	require.ErrorIs(t, matrix.ValidateFinite(mat.NewDense(1, 2, []float64{1, math.Inf(-1)})), matrix.ErrNaNInf)
	require.ErrorIs(t, matrix.ValidateFinite(mat.NewDense(1, 1, []float64{math.NaN()})), matrix.ErrNaNInf)
	require.ErrorIs(t, matrix.ValidateFinite(nil), matrix.ErrNilMatrix)
}
