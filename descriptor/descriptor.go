// SPDX-License-Identifier: MIT

// Package descriptor defines the capability contract between the
// fingerprint kernels and the atomic descriptors they consume.
//
// A descriptor evaluates the unweighted covariance against another
// descriptor together with its derivatives with respect to atomic
// positions. The kernels never look inside a descriptor: they only call the
// methods below, which is what lets a descriptor implementation evolve
// independently of the covariance assembly.
//
// Convention for the derivative hooks, for descriptors x (receiver) and y
// (other) and the unweighted covariance k(x, y):
//
//	KernelGradient(y, a)   = ∂k/∂r_a(x)                (3-vector)
//	KernelHessian(y, i, j) = ∂²k/∂r_i(x)∂r_j(y)        (3×3)
//
// LengthScaled and Smeared provide the same three quantities differentiated
// once more with respect to the length scale l and the smearing width Δ.
//
// Concurrency: every worker of a group evaluates the same descriptors at
// the same time, so all read methods must be safe for concurrent use.
// Update is only called while no reads are in flight.
package descriptor

import "github.com/katalvlaran/covkernel/hyper"

// Atom is one atom of a configuration.
type Atom struct {
	Index    int        // position of the atom in its configuration, 0-based
	Position [3]float64 // Cartesian coordinates
}

// Descriptor is the minimal capability set required by the kernels.
type Descriptor interface {
	// Atoms returns the atoms of the configuration; len(Atoms()) is the
	// atom count and D = 3·len(Atoms()).
	Atoms() []Atom

	// Params returns a copy of the hyperparameters currently applied.
	Params() hyper.Params

	// Update merges p into the descriptor's hyperparameters; keys absent
	// from p keep their values. Applying values already in place must be a
	// no-op.
	Update(p hyper.Params)

	// Kernel returns the unweighted covariance k(x, other).
	Kernel(other Descriptor) float64

	// KernelGradient returns ∂k/∂r_atom of the receiver.
	KernelGradient(other Descriptor, atom int) [3]float64

	// KernelHessian returns ∂²k/∂r_i(receiver)∂r_j(other).
	KernelHessian(other Descriptor, i, j int) [3][3]float64
}

// LengthScaled is implemented by descriptors whose covariance depends on
// the length scale l.
type LengthScaled interface {
	Descriptor

	// DkDl returns ∂k/∂l.
	DkDl(other Descriptor) float64

	// DkDrmDl returns ∂²k/∂r_atom∂l.
	DkDrmDl(other Descriptor, atom int) [3]float64

	// DkDrmDrnDl returns ∂³k/∂r_i∂r_j∂l.
	DkDrmDrnDl(other Descriptor, i, j int) [3][3]float64
}

// Smeared is implemented by descriptors whose covariance depends on the
// smearing width Δ.
type Smeared interface {
	Descriptor

	// DkDDelta returns ∂k/∂Δ.
	DkDDelta(other Descriptor) float64

	// DkDrmDDelta returns ∂²k/∂r_atom∂Δ.
	DkDrmDDelta(other Descriptor, atom int) [3]float64

	// DkDrmDrnDDelta returns ∂³k/∂r_i∂r_j∂Δ.
	DkDrmDrnDDelta(other Descriptor, i, j int) [3][3]float64
}

// Sync applies p to d unless every key of p already holds the same value
// on d. It reports whether an update happened. Re-applying the same params
// is a no-op, so Sync is idempotent.
func Sync(d Descriptor, p hyper.Params) bool {
	have := d.Params()
	// have already holds every key of p exactly when merging p changes nothing.
	if have.Merge(p).Equal(have) {
		return false
	}
	d.Update(p.Clone())

	return true
}
