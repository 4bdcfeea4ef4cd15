// SPDX-License-Identifier: MIT

// Package hyper defines the hyperparameter set shared by every covariance
// kernel and by the descriptors they synchronise.
//
// A Params value is a plain map of named scalars. Vector kernels read the
// ordered pair [weight, l] (see Pair); descriptor kernels read a named map
// that may also carry the smearing width Delta. Params are values: kernels
// store a private Clone and hand out copies, so callers can never mutate a
// kernel's state behind its back.
package hyper

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Canonical hyperparameter names.
const (
	// Weight is the prefactor of the kernel; the covariance scales with Weight².
	Weight = "weight"
	// LengthScale is the length scale l of the squared exponential.
	LengthScale = "l"
	// Delta is the descriptor-level smearing width Δ.
	Delta = "Delta"
)

var (
	// ErrMissingParam is returned when a required hyperparameter is absent.
	ErrMissingParam = errors.New("hyper: missing hyperparameter")

	// ErrInvalidParam is returned when a hyperparameter value is outside its
	// domain (non-finite, zero weight, non-positive length scale, negative Δ).
	ErrInvalidParam = errors.New("hyper: invalid hyperparameter value")
)

// Params maps hyperparameter names to values.
type Params map[string]float64

// Pair builds the ordered [weight, l] configuration used by vector kernels.
func Pair(weight, l float64) Params {
	return Params{Weight: weight, LengthScale: l}
}

// Get returns the value stored under name or ErrMissingParam.
func (p Params) Get(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingParam, name)
	}

	return v, nil
}

// Lookup returns the value stored under name, or def when it is absent.
func (p Params) Lookup(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}

	return def
}

// Has reports whether name is present.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Clone returns an independent copy. Clone of a nil Params is nil.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}

// Merge returns a copy of p in which every key of other overwrites the
// corresponding key of p. Keys only present in p are kept.
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	if out == nil {
		out = make(Params, len(other))
	}
	for k, v := range other {
		out[k] = v
	}

	return out
}

// Equal reports whether p and other hold exactly the same keys and values.
// Values are compared bitwise-equal as float64 (NaN never equals NaN).
func (p Params) Equal(other Params) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		w, ok := other[k]
		if !ok || v != w {
			return false
		}
	}

	return true
}

// Validate checks the domain of every known hyperparameter that is present.
// Unknown keys are accepted untouched so descriptors may carry their own.
//
//   - weight: finite and non-zero (∂K/∂weight divides by it);
//   - l:      finite and strictly positive;
//   - Delta:  finite and non-negative.
//
// Any other key must still be finite.
func (p Params) Validate() error {
	for _, k := range p.Names() {
		v := p[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v is not finite", ErrInvalidParam, k, v)
		}
		switch k {
		case Weight:
			if v == 0 {
				return fmt.Errorf("%w: %s must be non-zero", ErrInvalidParam, k)
			}
		case LengthScale:
			if v <= 0 {
				return fmt.Errorf("%w: %s=%v must be > 0", ErrInvalidParam, k, v)
			}
		case Delta:
			if v < 0 {
				return fmt.Errorf("%w: %s=%v must be >= 0", ErrInvalidParam, k, v)
			}
		}
	}

	return nil
}

// Require returns ErrMissingParam naming the first absent key.
func (p Params) Require(names ...string) error {
	for _, name := range names {
		if !p.Has(name) {
			return fmt.Errorf("%w: %q", ErrMissingParam, name)
		}
	}

	return nil
}

// Names returns the keys of p in lexicographic order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)

	return names
}

// String renders p deterministically, e.g. "{Delta=0.2 l=1 weight=1}".
func (p Params) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range p.Names() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%g", k, p[k])
	}
	b.WriteByte('}')

	return b.String()
}
