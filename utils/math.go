package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// result in radians, X roll, Y pitch, Z yaw
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

func RadiansToDegreeV3(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// EulerToQuat is the inverse of QuatToEuler; input in degrees
func EulerToQuat(v mgl32.Vec3) (q mgl32.Quat) {
	const halfToRad = 0.5 * math.Pi / 180.0
	x := float64(v[0]) * halfToRad
	y := float64(v[1]) * halfToRad
	z := float64(v[2]) * halfToRad

	sx := math.Sin(x)
	cx := math.Cos(x)
	sy := math.Sin(y)
	cy := math.Cos(y)
	sz := math.Sin(z)
	cz := math.Cos(z)

	q.V[0] = float32(sx*cy*cz - cx*sy*sz)
	q.V[1] = float32(cx*sy*cz + sx*cy*sz)
	q.V[2] = float32(cx*cy*sz - sx*sy*cz)
	q.W = float32(cx*cy*cz + sx*sy*sz)

	return q.Normalize()
}

// AlignSize rounds size up to a multiple of align, which must be a power of two.
func AlignSize(size, align int) int {
	if align <= 0 || align&(align-1) != 0 {
		panic("align must be a positive power of two")
	}
	return (size + align - 1) &^ (align - 1)
}
