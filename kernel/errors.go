// SPDX-License-Identifier: MIT

package kernel

import "errors"

var (
	// ErrParamsUnset is returned by every evaluation attempted before
	// SetParams succeeded.
	ErrParamsUnset = errors.New("kernel: hyperparameters not set")

	// ErrUnsupportedParam is returned when a derivative is requested for a
	// hyperparameter the variant, or its descriptors, does not define.
	ErrUnsupportedParam = errors.New("kernel: unsupported hyperparameter")

	// ErrNoPoints is returned when a build is given an empty point set.
	ErrNoPoints = errors.New("kernel: empty point set")

	// ErrDimensionMismatch is returned when points disagree on their
	// dimensionality (vector length or atom count) or with the kernel's D.
	ErrDimensionMismatch = errors.New("kernel: point dimension mismatch")

	// ErrUnknownVariant is returned by ParseVariant for an unknown name.
	ErrUnknownVariant = errors.New("kernel: unknown variant")
)
