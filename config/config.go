// SPDX-License-Identifier: MIT

// Package config loads and validates the YAML run files consumed by the
// covkernel command.
//
// A run names a kernel variant, its hyperparameters and the points to build
// over: plain vectors for the vector kernels, atomic structures for the
// descriptor kernels. Example:
//
//	kernel: fingerprint
//	workers: 4
//	gradient: true
//	params: {weight: 1.0, l: 0.8, Delta: 0.2}
//	structures:
//	  - name: a
//	    positions: [[0, 0, 0], [0.9, 0.1, -0.2]]
//	  - name: b
//	    positions: [[0.2, -0.1, 0.1], [1.0, 0.3, -0.1]]
//	logging: {level: debug, format: console}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/katalvlaran/covkernel/descriptor"
	"github.com/katalvlaran/covkernel/hyper"
	"github.com/katalvlaran/covkernel/kernel"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRun is wrapped by every validation failure of a run file.
var ErrInvalidRun = errors.New("config: invalid run")

// Run is one covariance build.
type Run struct {
	Kernel      string       `yaml:"kernel"`       // se, se-grad, fingerprint, fingerprint-energy
	Workers     int          `yaml:"workers"`      // worker group size (fingerprint only)
	Gradient    bool         `yaml:"gradient"`     // also build ∂K/∂θ for every hyperparameter
	FiniteCheck bool         `yaml:"finite_check"` // reject NaN/Inf results
	Dimension   int          `yaml:"dimension"`    // fixed D for se-grad; 0 infers it
	Params      hyper.Params `yaml:"params"`
	Points      [][]float64  `yaml:"points"`     // vector kernels
	Structures  []Structure  `yaml:"structures"` // descriptor kernels
	Logging     Logging      `yaml:"logging"`
}

// Structure is an atomic configuration: one position per atom.
type Structure struct {
	Name      string      `yaml:"name"`
	Positions [][]float64 `yaml:"positions"`
}

// Logging configures the command's logger.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns a run with every optional field set.
func Default() *Run {
	return &Run{
		Kernel:  kernel.VariantSE.String(),
		Workers: 1,
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads and parses the run file at path.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML run over Default and validates it. Unknown keys are
// rejected.
func Parse(data []byte) (*Run, error) {
	r := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// Variant returns the parsed kernel variant.
func (r *Run) Variant() (kernel.Variant, error) {
	return kernel.ParseVariant(r.Kernel)
}

// Validate checks the run is buildable: a known variant, valid params, and
// points of one shared dimension for that variant.
func (r *Run) Validate() error {
	v, err := r.Variant()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if r.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidRun, r.Workers)
	}
	if r.Dimension < 0 {
		return fmt.Errorf("%w: dimension must be >= 0, got %d", ErrInvalidRun, r.Dimension)
	}
	// The reference descriptor needs l as well, so every variant requires it.
	if err := r.Params.Require(hyper.Weight, hyper.LengthScale); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if err := r.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}

	if v.Descriptors() {
		return r.validateStructures()
	}

	return r.validatePoints()
}

func (r *Run) validatePoints() error {
	if len(r.Points) == 0 {
		return fmt.Errorf("%w: %s needs at least one point", ErrInvalidRun, r.Kernel)
	}
	dim := len(r.Points[0])
	if r.Dimension != 0 {
		dim = r.Dimension
	}
	if dim == 0 {
		return fmt.Errorf("%w: point 0 is empty", ErrInvalidRun)
	}
	for i, p := range r.Points {
		if len(p) != dim {
			return fmt.Errorf("%w: point %d has %d coordinates, want %d", ErrInvalidRun, i, len(p), dim)
		}
	}

	return nil
}

func (r *Run) validateStructures() error {
	if len(r.Structures) == 0 {
		return fmt.Errorf("%w: %s needs at least one structure", ErrInvalidRun, r.Kernel)
	}
	atoms := len(r.Structures[0].Positions)
	for i, s := range r.Structures {
		if len(s.Positions) == 0 || len(s.Positions) != atoms {
			return fmt.Errorf("%w: structure %d (%s) has %d atoms, want %d", ErrInvalidRun, i, s.Name, len(s.Positions), atoms)
		}
		for a, p := range s.Positions {
			if len(p) != 3 {
				return fmt.Errorf("%w: structure %d (%s) atom %d has %d coordinates", ErrInvalidRun, i, s.Name, a, len(p))
			}
		}
	}

	return nil
}

// KernelOptions returns the kernel options the run asks for.
func (r *Run) KernelOptions(opts ...kernel.Option) []kernel.Option {
	if r.Dimension > 0 {
		opts = append(opts, kernel.WithDimension(r.Dimension))
	}
	if r.FiniteCheck {
		opts = append(opts, kernel.WithFiniteCheck())
	}

	return opts
}

// Descriptors builds one reference Cartesian descriptor per structure.
func (r *Run) Descriptors() ([]descriptor.Descriptor, error) {
	out := make([]descriptor.Descriptor, len(r.Structures))
	for i, s := range r.Structures {
		pos := make([][3]float64, len(s.Positions))
		for a, p := range s.Positions {
			if len(p) != 3 {
				return nil, fmt.Errorf("%w: structure %d atom %d has %d coordinates", ErrInvalidRun, i, a, len(p))
			}
			copy(pos[a][:], p)
		}
		d, err := descriptor.NewCartesian(pos, r.Params)
		if err != nil {
			return nil, fmt.Errorf("structure %d (%s): %w", i, s.Name, err)
		}
		out[i] = d
	}

	return out, nil
}
