// SPDX-License-Identifier: MIT
package kernel_test

import (
	"context"
	"fmt"

	"github.com/katalvlaran/covkernel/descriptor"
	"github.com/katalvlaran/covkernel/hyper"
	"github.com/katalvlaran/covkernel/kernel"
	"github.com/katalvlaran/covkernel/parallel"
)

// ExampleSquaredExpGrad_Matrix builds K for two points in 3-D. Block (0,1)
// starts with k = exp(-1/2) followed by ∂k/∂x1 = (1,0,0)·k.
func ExampleSquaredExpGrad_Matrix() {
	k := kernel.NewSquaredExpGrad()
	if err := k.SetParams(hyper.Pair(1, 1)); err != nil {
		fmt.Println(err)
		return
	}
	K, err := k.Matrix(context.Background(), [][]float64{{0, 0, 0}, {1, 0, 0}})
	if err != nil {
		fmt.Println(err)
		return
	}
	r, c := K.Dims()
	fmt.Printf("%dx%d\n", r, c)
	fmt.Printf("%.6f %.6f\n", K.At(0, 4), K.At(1, 4))
	// Output:
	// 8x8
	// 0.606531 0.606531
}

// ExampleFingerprint shows a build shared by a group of two workers.
func ExampleFingerprint() {
	ctx := context.Background()
	X := make([]descriptor.Descriptor, 0, 2)
	for _, pos := range [][][3]float64{
		{{0, 0, 0}, {1, 0, 0}},
		{{0, 0, 0}, {1.5, 0, 0}},
	} {
		d, err := descriptor.NewCartesian(pos, hyper.Params{hyper.LengthScale: 1})
		if err != nil {
			fmt.Println(err)
			return
		}
		X = append(X, d)
	}

	g, err := parallel.NewGroup(2)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer g.Close()

	dims, err := parallel.Collect(ctx, g, func(ctx context.Context, c parallel.Comm) (int, error) {
		k := kernel.NewFingerprint(c)
		if err := k.SetParams(hyper.Params{hyper.Weight: 1, hyper.LengthScale: 1}); err != nil {
			return 0, err
		}
		K, err := k.Matrix(ctx, X)
		if err != nil {
			return 0, err
		}
		r, _ := K.Dims()
		return r, nil
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(dims)
	// Output:
	// [14 14]
}
