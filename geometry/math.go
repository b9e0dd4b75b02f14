// Package geometry holds the value types shared by every layer of the engine:
// bounding boxes plus the few matrix and quaternion helpers mgl64 lacks.
package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"golang.org/x/exp/constraints"
)

// Epsilon is the smallest length considered non-zero by the narrow phase.
const Epsilon = 1.192092896e-12

func Clamp[T constraints.Ordered](value, low, high T) T {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Absolute returns the matrix with every element replaced by its absolute value.
func Absolute(m mgl64.Mat3) mgl64.Mat3 {
	return m.Abs()
}

// TransposedMul computes transpose(m) * v without building the transpose.
func TransposedMul(m mgl64.Mat3, v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		m.Col(0).Dot(v),
		m.Col(1).Dot(v),
		m.Col(2).Dot(v),
	}
}

// SafeNormalize returns v/|v|, or fallback when v is too short to normalize.
func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < Epsilon {
		return fallback
	}
	return v.Mul(1.0 / l)
}

// Perpendicular returns a unit vector orthogonal to v.
func Perpendicular(v mgl64.Vec3) mgl64.Vec3 {
	return FromR3(ToR3(v).Ortho())
}

func FromR3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func ToR3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// QuaternionFromMatrix converts a rotation matrix, choosing the branch by the
// largest of the trace and the diagonal elements.
func QuaternionFromMatrix(m mgl64.Mat3) mgl64.Quat {
	m11, m22, m33 := m.At(0, 0), m.At(1, 1), m.At(2, 2)
	trace := m11 + m22 + m33

	var q mgl64.Quat
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1.0) * 2
		q.W = 0.25 * s
		q.V = mgl64.Vec3{
			(m.At(2, 1) - m.At(1, 2)) / s,
			(m.At(0, 2) - m.At(2, 0)) / s,
			(m.At(1, 0) - m.At(0, 1)) / s,
		}
	case m11 > m22 && m11 > m33:
		s := math.Sqrt(1.0+m11-m22-m33) * 2
		q.W = (m.At(2, 1) - m.At(1, 2)) / s
		q.V = mgl64.Vec3{
			0.25 * s,
			(m.At(0, 1) + m.At(1, 0)) / s,
			(m.At(0, 2) + m.At(2, 0)) / s,
		}
	case m22 > m33:
		s := math.Sqrt(1.0+m22-m11-m33) * 2
		q.W = (m.At(0, 2) - m.At(2, 0)) / s
		q.V = mgl64.Vec3{
			(m.At(0, 1) + m.At(1, 0)) / s,
			0.25 * s,
			(m.At(1, 2) + m.At(2, 1)) / s,
		}
	default:
		s := math.Sqrt(1.0+m33-m11-m22) * 2
		q.W = (m.At(1, 0) - m.At(0, 1)) / s
		q.V = mgl64.Vec3{
			(m.At(0, 2) + m.At(2, 0)) / s,
			(m.At(1, 2) + m.At(2, 1)) / s,
			0.25 * s,
		}
	}

	return q.Normalize()
}

// MatrixFromQuaternion returns the rotation matrix of a unit quaternion.
func MatrixFromQuaternion(q mgl64.Quat) mgl64.Mat3 {
	return q.Mat4().Mat3()
}

// Orthonormalize re-orthogonalizes a rotation matrix that drifted numerically.
func Orthonormalize(m mgl64.Mat3) mgl64.Mat3 {
	return MatrixFromQuaternion(QuaternionFromMatrix(m))
}

// Cross3 is the skew-symmetric cross product matrix of v: Cross3(v)*w == v x w.
func Cross3(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		0, v[2], -v[1],
		-v[2], 0, v[0],
		v[1], -v[0], 0,
	}
}

// ApproxZero reports whether every component of v is below tolerance.
func ApproxZero(v mgl64.Vec3, tolerance float64) bool {
	return math.Abs(v[0]) < tolerance && math.Abs(v[1]) < tolerance && math.Abs(v[2]) < tolerance
}
