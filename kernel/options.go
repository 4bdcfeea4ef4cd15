// SPDX-License-Identifier: MIT

// Functional configuration shared by all kernel variants.
//
// Design goals:
//   - Deterministic behavior: no global state.
//   - Safe by construction: option constructors panic only on nonsensical
//     values (programmer error); runtime problems are returned as errors.
//   - Options fields are unexported; constructors consume ...Option.

package kernel

import "go.uber.org/zap"

// Defaults (single source of truth for zero-value behavior).
const (
	// DefaultDimension of 0 means "infer D from the first matrix build".
	DefaultDimension = 0

	// DefaultFiniteCheck leaves NaN/Inf propagation to the caller.
	DefaultFiniteCheck = false
)

const (
	panicDimensionInvalid = "kernel: WithDimension: dimension must be >= 0"
	panicLoggerNil        = "kernel: WithLogger: logger must not be nil"
)

// Option mutates internal options. Safe to apply repeatedly.
type Option func(*Options)

// Options stores the effective configuration after applying Option setters.
type Options struct {
	logger      *zap.Logger
	dimension   int  // DefaultDimension
	finiteCheck bool // DefaultFiniteCheck
}

// WithLogger routes build events to l (Debug level). Panics on nil.
func WithLogger(l *zap.Logger) Option {
	if l == nil {
		panic(panicLoggerNil)
	}

	return func(o *Options) { o.logger = l }
}

// WithDimension fixes the point dimensionality D of SquaredExpGrad.
// 0 restores inference from the first matrix build. Panics on d < 0.
func WithDimension(d int) Option {
	if d < 0 {
		panic(panicDimensionInvalid)
	}

	return func(o *Options) { o.dimension = d }
}

// WithFiniteCheck makes every matrix-returning operation reject results
// holding NaN or ±Inf (matrix.ErrNaNInf). Off by default: non-finite
// values otherwise propagate to the caller untouched.
func WithFiniteCheck() Option {
	return func(o *Options) { o.finiteCheck = true }
}

// gatherOptions resolves opts over the defaults.
func gatherOptions(opts ...Option) Options {
	o := Options{
		logger:      zap.NewNop(),
		dimension:   DefaultDimension,
		finiteCheck: DefaultFiniteCheck,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
