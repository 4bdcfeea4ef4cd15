// SPDX-License-Identifier: MIT

package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Layout describes a matrix tiled by equally sized square blocks:
// Rows×Cols blocks, each Size×Size. Block (i,j) occupies rows
// [i*Size,(i+1)*Size) and columns [j*Size,(j+1)*Size).
//
// A covariance matrix over n points with derivative blocks uses
// Layout{Rows: n, Cols: n, Size: D+1}; a value-only kernel uses Size 1.
type Layout struct {
	Rows int // block rows
	Cols int // block columns
	Size int // side of every block
}

// NewLayout validates and returns a rows×cols layout of size×size blocks.
// Returns ErrBadShape when any argument is non-positive.
func NewLayout(rows, cols, size int) (Layout, error) {
	if rows <= 0 || cols <= 0 || size <= 0 {
		return Layout{}, fmt.Errorf("NewLayout(%d,%d,%d): %w", rows, cols, size, ErrBadShape)
	}

	return Layout{Rows: rows, Cols: cols, Size: size}, nil
}

// NewSquareLayout is NewLayout(n, n, size).
func NewSquareLayout(n, size int) (Layout, error) {
	return NewLayout(n, n, size)
}

// Dims returns the element dimensions of the full matrix.
func (l Layout) Dims() (r, c int) {
	return l.Rows * l.Size, l.Cols * l.Size
}

// Span returns the half-open element range [lo,hi) of block index i.
func (l Layout) Span(i int) (lo, hi int) {
	return i * l.Size, (i + 1) * l.Size
}

// Zeros allocates the full matrix filled with zeros.
func (l Layout) Zeros() *mat.Dense {
	r, c := l.Dims()
	return mat.NewDense(r, c, nil)
}

// Identity allocates the full matrix with ones on the main diagonal.
// Square layouts only make sense here; for r≠c the diagonal is min(r,c) long.
func (l Layout) Identity() *mat.Dense {
	m := l.Zeros()
	r, c := l.Dims()
	for i := 0; i < r && i < c; i++ {
		m.Set(i, i, 1)
	}

	return m
}

// checkIndex validates the block coordinates against the layout.
func (l Layout) checkIndex(i, j int) error {
	if i < 0 || i >= l.Rows || j < 0 || j >= l.Cols {
		return fmt.Errorf("block (%d,%d) of %dx%d: %w", i, j, l.Rows, l.Cols, ErrOutOfRange)
	}

	return nil
}

// checkTarget validates dst against the layout.
func (l Layout) checkTarget(dst mat.Matrix) error {
	if err := ValidateNotNil(dst); err != nil {
		return err
	}
	r, c := dst.Dims()
	wr, wc := l.Dims()
	if r != wr || c != wc {
		return fmt.Errorf("matrix %dx%d, layout %dx%d: %w", r, c, wr, wc, ErrDimensionMismatch)
	}

	return nil
}

// SetBlock copies blk into block (i,j) of dst.
//
// Errors: ErrNilMatrix, ErrDimensionMismatch (dst or blk shape), ErrOutOfRange.
// Complexity: O(Size²).
func (l Layout) SetBlock(dst *mat.Dense, i, j int, blk mat.Matrix) error {
	if err := l.checkTarget(dst); err != nil {
		return fmt.Errorf("Layout.SetBlock: %w", err)
	}
	if err := l.checkIndex(i, j); err != nil {
		return fmt.Errorf("Layout.SetBlock: %w", err)
	}
	if err := ValidateNotNil(blk); err != nil {
		return fmt.Errorf("Layout.SetBlock: %w", err)
	}
	if br, bc := blk.Dims(); br != l.Size || bc != l.Size {
		return fmt.Errorf("Layout.SetBlock: block %dx%d, want %dx%d: %w", br, bc, l.Size, l.Size, ErrDimensionMismatch)
	}

	r0, r1 := l.Span(i)
	c0, c1 := l.Span(j)
	dst.Slice(r0, r1, c0, c1).(*mat.Dense).Copy(blk)

	return nil
}

// SetPair writes blk at (i,j) and its transpose at (j,i).
// For i == j only blk is written.
func (l Layout) SetPair(dst *mat.Dense, i, j int, blk mat.Matrix) error {
	if err := l.SetBlock(dst, i, j, blk); err != nil {
		return err
	}
	if i == j {
		return nil
	}

	return l.SetBlock(dst, j, i, blk.T())
}

// Block returns an independent copy of block (i,j) of src.
func (l Layout) Block(src mat.Matrix, i, j int) (*mat.Dense, error) {
	if err := l.checkTarget(src); err != nil {
		return nil, fmt.Errorf("Layout.Block: %w", err)
	}
	if err := l.checkIndex(i, j); err != nil {
		return nil, fmt.Errorf("Layout.Block: %w", err)
	}

	r0, _ := l.Span(i)
	c0, _ := l.Span(j)
	out := mat.NewDense(l.Size, l.Size, nil)
	for a := 0; a < l.Size; a++ {
		for b := 0; b < l.Size; b++ {
			out.Set(a, b, src.At(r0+a, c0+b))
		}
	}

	return out, nil
}

// HStack concatenates blocks horizontally. Every block must have the same
// number of rows. Returns ErrBadShape for an empty list.
func HStack(blocks ...mat.Matrix) (*mat.Dense, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("HStack: %w", ErrBadShape)
	}
	rows, cols := 0, 0
	for k, b := range blocks {
		if err := ValidateNotNil(b); err != nil {
			return nil, fmt.Errorf("HStack: block %d: %w", k, err)
		}
		r, c := b.Dims()
		if k == 0 {
			rows = r
		} else if r != rows {
			return nil, fmt.Errorf("HStack: block %d has %d rows, want %d: %w", k, r, rows, ErrDimensionMismatch)
		}
		cols += c
	}

	out := mat.NewDense(rows, cols, nil)
	off := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, rows, off, off+c).(*mat.Dense).Copy(b)
		off += c
	}

	return out, nil
}
