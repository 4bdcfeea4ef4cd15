// SPDX-License-Identifier: MIT

package descriptor

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/katalvlaran/covkernel/hyper"
)

// ErrNoAtoms is returned when a configuration has no atoms.
var ErrNoAtoms = errors.New("descriptor: configuration has no atoms")

// Cartesian is a reference descriptor: a Gaussian-smeared Cartesian
// fingerprint of a configuration. For configurations x and y with the same
// atom count,
//
//	k(x, y) = exp(-|R(x) - R(y)|² / (2 s²)),  s² = l² + Δ²
//
// where R is the flattened position vector. Smearing every atom with a
// Gaussian of width Δ widens the effective length scale, so Δ = 0 reduces
// to the plain squared exponential on coordinates.
//
// Cartesian implements Descriptor, LengthScaled and Smeared with closed
// forms. Positions are immutable; hyperparameters are guarded by an
// RWMutex so concurrent evaluation is safe.
type Cartesian struct {
	atoms []Atom

	mu     sync.RWMutex
	params hyper.Params
}

var (
	_ LengthScaled = (*Cartesian)(nil)
	_ Smeared      = (*Cartesian)(nil)
)

// NewCartesian builds a descriptor for positions with hyperparameters p.
// p must hold a valid length scale l; Δ defaults to 0.
//
// Errors: ErrNoAtoms, hyper.ErrMissingParam, hyper.ErrInvalidParam.
func NewCartesian(positions [][3]float64, p hyper.Params) (*Cartesian, error) {
	if len(positions) == 0 {
		return nil, ErrNoAtoms
	}
	if err := p.Require(hyper.LengthScale); err != nil {
		return nil, fmt.Errorf("NewCartesian: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("NewCartesian: %w", err)
	}

	atoms := make([]Atom, len(positions))
	for i, r := range positions {
		atoms[i] = Atom{Index: i, Position: r}
	}

	return &Cartesian{atoms: atoms, params: p.Clone()}, nil
}

// Atoms returns a copy of the atom list.
func (c *Cartesian) Atoms() []Atom {
	out := make([]Atom, len(c.atoms))
	copy(out, c.atoms)

	return out
}

// Params returns a copy of the applied hyperparameters.
func (c *Cartesian) Params() hyper.Params {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.params.Clone()
}

// Update merges p into the applied hyperparameters.
func (c *Cartesian) Update(p hyper.Params) {
	c.mu.Lock()
	c.params = c.params.Merge(p)
	c.mu.Unlock()
}

// pair is the geometry of one (receiver, other) evaluation.
type pair struct {
	diff [][3]float64 // r_a(receiver) - r_a(other)
	d2   float64      // |R(receiver) - R(other)|²
	u    float64      // 1/s²
	k    float64      // exp(-d2·u/2)
	l    float64
	dlt  float64
}

// with resolves other and the current hyperparameters into a pair.
// Panics when other is not a *Cartesian of the same atom count: the kernels
// validate shapes before evaluating, so this is a programmer error.
func (c *Cartesian) with(other Descriptor) pair {
	o, ok := other.(*Cartesian)
	if !ok {
		panic(fmt.Sprintf("descriptor: Cartesian cannot be compared with %T", other))
	}
	if len(o.atoms) != len(c.atoms) {
		panic(fmt.Sprintf("descriptor: atom count %d vs %d", len(c.atoms), len(o.atoms)))
	}

	c.mu.RLock()
	l := c.params.Lookup(hyper.LengthScale, 1)
	dlt := c.params.Lookup(hyper.Delta, 0)
	c.mu.RUnlock()

	p := pair{diff: make([][3]float64, len(c.atoms)), l: l, dlt: dlt}
	for i := range c.atoms {
		for a := 0; a < 3; a++ {
			v := c.atoms[i].Position[a] - o.atoms[i].Position[a]
			p.diff[i][a] = v
			p.d2 += v * v
		}
	}
	p.u = 1 / (l*l + dlt*dlt)
	p.k = math.Exp(-0.5 * p.d2 * p.u)

	return p
}

// gradient is ∂k/∂r_m(receiver) = -a_m·u·k.
func (p pair) gradient(m int) [3]float64 {
	var g [3]float64
	for a := 0; a < 3; a++ {
		g[a] = -p.diff[m][a] * p.u * p.k
	}

	return g
}

// shape returns δ_ij·I - u·a_i·a_jᵀ.
func (p pair) shape(i, j int) [3][3]float64 {
	var m [3][3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			m[a][b] = -p.u * p.diff[i][a] * p.diff[j][b]
		}
		if i == j {
			m[a][a]++
		}
	}

	return m
}

// hessian is ∂²k/∂r_i(receiver)∂r_j(other) = k·u·(δ_ij·I - u·a_i·a_jᵀ).
func (p pair) hessian(i, j int) [3][3]float64 {
	m := p.shape(i, j)
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			m[a][b] *= p.k * p.u
		}
	}

	return m
}

// For θ ∈ {l, Δ}, ∂s²/∂θ = 2θ and ∂u/∂θ = -2θu². With c = θu²:
//
//	∂k/∂θ    = k·c·d²
//	∂g_m/∂θ  = -a_m·k·c·(d²u - 2)
//	∂H_ij/∂θ = k·c·((d²u - 2)·M_ij + 2u·a_i·a_jᵀ),  M_ij = δ_ij·I - u·a_i·a_jᵀ

func (p pair) dValue(theta float64) float64 {
	return p.k * theta * p.u * p.u * p.d2
}

func (p pair) dGradient(theta float64, m int) [3]float64 {
	f := -p.k * theta * p.u * p.u * (p.d2*p.u - 2)
	var g [3]float64
	for a := 0; a < 3; a++ {
		g[a] = f * p.diff[m][a]
	}

	return g
}

func (p pair) dHessian(theta float64, i, j int) [3][3]float64 {
	c := p.k * theta * p.u * p.u
	q := p.d2*p.u - 2
	m := p.shape(i, j)
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			m[a][b] = c * (q*m[a][b] + 2*p.u*p.diff[i][a]*p.diff[j][b])
		}
	}

	return m
}

// Kernel returns k(c, other).
func (c *Cartesian) Kernel(other Descriptor) float64 { return c.with(other).k }

// KernelGradient returns ∂k/∂r_atom(c).
func (c *Cartesian) KernelGradient(other Descriptor, atom int) [3]float64 {
	return c.with(other).gradient(atom)
}

// KernelHessian returns ∂²k/∂r_i(c)∂r_j(other).
func (c *Cartesian) KernelHessian(other Descriptor, i, j int) [3][3]float64 {
	return c.with(other).hessian(i, j)
}

// DkDl returns ∂k/∂l.
func (c *Cartesian) DkDl(other Descriptor) float64 {
	p := c.with(other)
	return p.dValue(p.l)
}

// DkDrmDl returns ∂²k/∂r_atom∂l.
func (c *Cartesian) DkDrmDl(other Descriptor, atom int) [3]float64 {
	p := c.with(other)
	return p.dGradient(p.l, atom)
}

// DkDrmDrnDl returns ∂³k/∂r_i∂r_j∂l.
func (c *Cartesian) DkDrmDrnDl(other Descriptor, i, j int) [3][3]float64 {
	p := c.with(other)
	return p.dHessian(p.l, i, j)
}

// DkDDelta returns ∂k/∂Δ.
func (c *Cartesian) DkDDelta(other Descriptor) float64 {
	p := c.with(other)
	return p.dValue(p.dlt)
}

// DkDrmDDelta returns ∂²k/∂r_atom∂Δ.
func (c *Cartesian) DkDrmDDelta(other Descriptor, atom int) [3]float64 {
	p := c.with(other)
	return p.dGradient(p.dlt, atom)
}

// DkDrmDrnDDelta returns ∂³k/∂r_i∂r_j∂Δ.
func (c *Cartesian) DkDrmDrnDDelta(other Descriptor, i, j int) [3][3]float64 {
	p := c.with(other)
	return p.dHessian(p.dlt, i, j)
}
