package engine

import (
	"math"

	"github.com/gogpu/gg"
)

// Matrix2D is a 2D affine transform laid out as [a, b, c, d, e, f]:
//
//	| a  c  e |
//	| b  d  f |
//	| 0  0  1 |
type Matrix2D [6]float64

func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Multiply returns m * other: other is applied first.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],
		m[1]*other[0] + m[3]*other[1],
		m[0]*other[2] + m[2]*other[3],
		m[1]*other[2] + m[3]*other[3],
		m[0]*other[4] + m[2]*other[5] + m[4],
		m[1]*other[4] + m[3]*other[5] + m[5],
	}
}

func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// FromTransform composes T(x+ax, y+ay) * R(r) * S(sx,sy) * T(-ax,-ay): the
// anchor is a pivot in local space, so an identity scale and rotation leave
// the object at (x, y) whatever the anchor. r is in degrees.
func FromTransform(x, y, sx, sy, rDegrees, ax, ay float64) Matrix2D {
	rad := rDegrees * math.Pi / 180.0
	cos, sin := math.Cos(rad), math.Sin(rad)
	return Matrix2D{
		cos * sx,
		sin * sx,
		-sin * sy,
		cos * sy,
		x + ax - cos*sx*ax + sin*sy*ay,
		y + ay - sin*sx*ax - cos*sy*ay,
	}
}

// GG converts to the row-major layout used by gg.
func (m Matrix2D) GG() gg.Matrix {
	return gg.Matrix{
		A: m[0], B: m[2], C: m[4],
		D: m[1], E: m[3], F: m[5],
	}
}

func (m Matrix2D) ToSlice() []float64 {
	return []float64{m[0], m[1], m[2], m[3], m[4], m[5]}
}
