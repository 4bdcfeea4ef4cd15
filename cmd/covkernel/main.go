// SPDX-License-Identifier: MIT

// Command covkernel assembles a covariance matrix, and optionally its
// hyperparameter gradient, from a YAML run file.
//
//	covkernel build --config run.yaml [--workers N] [--gradient] [--print] [--log-level debug]
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"

	"github.com/katalvlaran/covkernel/config"
	"github.com/katalvlaran/covkernel/matrix"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

type buildFlags struct {
	config   string
	workers  int
	gradient bool
	print    bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "covkernel",
		Short: "Covariance kernel assembly for Gaussian-process surrogates",
		Long: `covkernel builds GP covariance matrices with value, gradient and Hessian
blocks over plain vectors or atomic structures.

Kernels: se, se-grad, fingerprint, fingerprint-energy.`,
		SilenceUsage: true,
	}
	root.AddCommand(newBuildCmd())

	return root
}

func newBuildCmd() *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build K(X, X) from a run file",
		Long: `Loads a run file, builds the covariance matrix of its points and prints a
summary. With --gradient the derivative of K with respect to every
hyperparameter is built too.

Example:
  covkernel build --config run.yaml --workers 4 --gradient`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "path to the YAML run file")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "worker group size, overrides the run file")
	cmd.Flags().BoolVar(&f.gradient, "gradient", false, "also build the hyperparameter gradient")
	cmd.Flags().BoolVar(&f.print, "print", false, "print the matrices")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level, overrides the run file")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runBuild(cmd *cobra.Command, f buildFlags) error {
	run, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		run.Workers = f.workers
	}
	if f.gradient {
		run.Gradient = true
	}
	if f.logLevel != "" {
		run.Logging.Level = f.logLevel
	}
	if err := run.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(run.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	res, err := build(cmd.Context(), run, logger)
	if err != nil {
		logger.Error("build failed", zap.String("kernel", run.Kernel), zap.Error(err))
		return err
	}

	return report(cmd.OutOrStdout(), res, f.print)
}

// report prints the summary line of K and of every gradient matrix. With
// show set the matrices follow, split into their per-pair blocks.
func report(out io.Writer, res *result, show bool) error {
	r, c := res.K.Dims()
	fmt.Fprintf(out, "kernel=%s points=%d K=%dx%d\n", res.variant, res.points, r, c)
	if show {
		if err := printBlocks(out, "K", res.K, res.points); err != nil {
			return err
		}
	}
	for i, g := range res.grads {
		fmt.Fprintf(out, "dK/d%s norm_inf=%.6g\n", res.names[i], mat.Norm(g, math.Inf(1)))
		if !show {
			continue
		}
		if err := printBlocks(out, "dK/d"+res.names[i], g, res.points); err != nil {
			return err
		}
	}

	return nil
}

// printBlocks writes m whole when its blocks are scalars, and block by block
// otherwise.
func printBlocks(out io.Writer, label string, m *mat.Dense, points int) error {
	r, _ := m.Dims()
	size := r / points
	if size <= 1 {
		fmt.Fprintf(out, "%v\n", mat.Formatted(m, mat.Squeeze()))
		return nil
	}
	layout, err := matrix.NewSquareLayout(points, size)
	if err != nil {
		return err
	}
	for i := 0; i < points; i++ {
		for j := 0; j < points; j++ {
			b, err := layout.Block(m, i, j)
			if err != nil {
				return fmt.Errorf("print %s: %w", label, err)
			}
			fmt.Fprintf(out, "%s block (%d,%d)\n%v\n", label, i, j, mat.Formatted(b, mat.Squeeze()))
		}
	}

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
