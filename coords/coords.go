// Package coords implements the 2-D affine matrix algebra content streams
// use for the current transformation matrix and text matrix.
package coords

import (
	"errors"
	"math"
)

// Matrix6 is a PDF-style affine transform [a b c d e f], representing
//
//	[ a b 0 ]
//	[ c d 0 ]
//	[ e f 1 ]
//
// applied to row vectors: (x' y' 1) = (x y 1) * M.
type Matrix6 [6]float64

// Identity returns the identity transform.
func Identity() Matrix6 { return Matrix6{1, 0, 0, 1, 0, 0} }

// Multiply composes m and o so that applying the result to a point is
// equivalent to applying o first and then m: m.Multiply(o) == "m · o".
// This is the convention a `cm` operator uses to fold a new matrix into
// the current transformation matrix: ctm = ctm.Multiply(operand).
func (m Matrix6) Multiply(o Matrix6) Matrix6 {
	return Matrix6{
		m[0]*o[0] + m[2]*o[1],
		m[1]*o[0] + m[3]*o[1],
		m[0]*o[2] + m[2]*o[3],
		m[1]*o[2] + m[3]*o[3],
		m[0]*o[4] + m[2]*o[5] + m[4],
		m[1]*o[4] + m[3]*o[5] + m[5],
	}
}

// Point is a 2-D coordinate in unscaled text or user space.
type Point struct{ X, Y float64 }

// Transform applies m to p.
func (m Matrix6) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// Inverse returns the matrix that undoes m, or an error if m is singular.
func (m Matrix6) Inverse() (Matrix6, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix6{}, errors.New("coords: matrix is singular")
	}
	return Matrix6{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// Translate returns a pure translation by (tx, ty).
func Translate(tx, ty float64) Matrix6 { return Matrix6{1, 0, 0, 1, tx, ty} }

// Scale returns a pure scale by (sx, sy).
func Scale(sx, sy float64) Matrix6 { return Matrix6{sx, 0, 0, sy, 0, 0} }

// Rotate returns a pure rotation by angle radians.
func Rotate(angle float64) Matrix6 {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Matrix6{c, s, -s, c, 0, 0}
}
