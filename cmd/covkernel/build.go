// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/katalvlaran/covkernel/config"
	"github.com/katalvlaran/covkernel/descriptor"
	"github.com/katalvlaran/covkernel/kernel"
	"github.com/katalvlaran/covkernel/parallel"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// result is one finished build.
type result struct {
	variant kernel.Variant
	points  int
	K       *mat.Dense
	names   []string
	grads   []*mat.Dense
}

// assemble builds K(X, X) and, if asked, its gradient with any kernel.
func assemble[P any](ctx context.Context, k kernel.Kernel[P], X []P, gradient bool) (*mat.Dense, []*mat.Dense, error) {
	K, err := k.Matrix(ctx, X)
	if err != nil {
		return nil, nil, err
	}
	if !gradient {
		return K, nil, nil
	}
	grads, err := k.Gradient(ctx, X)
	if err != nil {
		return nil, nil, err
	}

	return K, grads, nil
}

// build dispatches run to its kernel variant.
func build(ctx context.Context, run *config.Run, logger *zap.Logger) (*result, error) {
	v, err := run.Variant()
	if err != nil {
		return nil, err
	}
	opts := run.KernelOptions(kernel.WithLogger(logger))
	res := &result{variant: v}
	if run.Gradient {
		res.names = v.Hyperparameters()
	}

	switch v {
	case kernel.VariantSE, kernel.VariantSEGrad:
		var k kernel.Kernel[[]float64]
		if v == kernel.VariantSE {
			k = kernel.NewSquaredExp(opts...)
		} else {
			k = kernel.NewSquaredExpGrad(opts...)
		}
		if err := k.SetParams(run.Params); err != nil {
			return nil, err
		}
		res.points = len(run.Points)
		res.K, res.grads, err = assemble(ctx, k, run.Points, run.Gradient)

	case kernel.VariantFingerprintEnergy:
		X, err := run.Descriptors()
		if err != nil {
			return nil, err
		}
		k := kernel.NewFingerprintEnergy(opts...)
		if err := k.SetParams(run.Params); err != nil {
			return nil, err
		}
		res.points = len(X)
		res.K, res.grads, err = assemble[descriptor.Descriptor](ctx, k, X, run.Gradient)
		if err != nil {
			return nil, err
		}

	case kernel.VariantFingerprint:
		X, err := run.Descriptors()
		if err != nil {
			return nil, err
		}
		res.points = len(X)
		res.K, res.grads, err = buildGroup(ctx, run, X, logger, opts)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %s", kernel.ErrUnknownVariant, v)
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// buildGroup runs the fingerprint build on a worker group. Every rank
// returns identical matrices; rank 0's are kept.
func buildGroup(ctx context.Context, run *config.Run, X []descriptor.Descriptor, logger *zap.Logger, opts []kernel.Option) (*mat.Dense, []*mat.Dense, error) {
	g, err := parallel.NewGroup(run.Workers, parallel.WithGroupLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = g.Close() }()

	type built struct {
		K     *mat.Dense
		grads []*mat.Dense
	}
	results, err := parallel.Collect(ctx, g, func(ctx context.Context, c parallel.Comm) (built, error) {
		k := kernel.NewFingerprint(c, opts...)
		if err := k.SetParams(run.Params); err != nil {
			return built{}, err
		}
		K, grads, err := assemble[descriptor.Descriptor](ctx, k, X, run.Gradient)
		if err != nil {
			return built{}, err
		}
		return built{K: K, grads: grads}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return results[0].K, results[0].grads, nil
}
