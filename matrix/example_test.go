// SPDX-License-Identifier: MIT
package matrix_test

import (
	"fmt"

	"github.com/katalvlaran/covkernel/matrix"
	"gonum.org/v1/gonum/mat"
)

// ExampleLayout_SetPair fills a 2×2 grid of 2×2 blocks: the off-diagonal
// pair is written once and mirrored, which keeps the matrix symmetric.
func ExampleLayout_SetPair() {
	l, err := matrix.NewSquareLayout(2, 2)
	if err != nil {
		fmt.Println(err)
		return
	}
	K := l.Identity()
	if err := l.SetPair(K, 0, 1, mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("%v\n", mat.Formatted(K))
	fmt.Println(matrix.ValidateSymmetric(K, 0))
	// Output:
	// ⎡1  0  1  2⎤
	// ⎢0  1  3  4⎥
	// ⎢1  3  1  0⎥
	// ⎣2  4  0  1⎦
	// <nil>
}
