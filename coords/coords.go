// Package coords provides the 2D affine transforms used when positioning
// content on a page, plus the conversion between top-left UI space and
// bottom-left PDF space.
package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF transformation matrix [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate builds a rotation by angle radians, counterclockwise.
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// RotateAbout rotates by angle radians about (cx, cy).
func RotateAbout(angle, cx, cy float64) Matrix {
	return Translate(-cx, -cy).Multiply(Rotate(angle)).Multiply(Translate(cx, cy))
}

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// FromTopLeft converts a point given in top-left UI coordinates to PDF
// bottom-left coordinates on a page of the given height.
func FromTopLeft(p Point, pageHeight float64) Point {
	return Point{X: p.X, Y: pageHeight - p.Y}
}

// ToTopLeft is the inverse of FromTopLeft.
func ToTopLeft(p Point, pageHeight float64) Point {
	return Point{X: p.X, Y: pageHeight - p.Y}
}
