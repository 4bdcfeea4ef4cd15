// Package matrix provides the block-matrix plumbing shared by every
// covariance kernel.
//
// The matrix package provides:
//
//   - Layout, a description of a matrix tiled by equally sized square
//     blocks, with SetBlock / SetPair / Block accessors over *mat.Dense.
//     A derivative-aware covariance matrix over n points of dimension D is
//     an n×n grid of (D+1)×(D+1) blocks; a value-only one is n×n blocks of 1.
//   - HStack for row-stacked kernel vectors K(x, X).
//   - Validators (ValidateSquare, ValidateSymmetric, ValidateFinite, ...)
//     returning the sentinel errors of errors.go.
//
// Storage is gonum's row-major *mat.Dense; this package never copies it
// into a private representation. All checks are deterministic and
// allocation-free.
package matrix
