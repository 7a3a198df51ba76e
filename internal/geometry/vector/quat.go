package vector

import "github.com/go-gl/mathgl/mgl64"

// Yaw returns the rotation by heading radians about the world up axis.
func Yaw(heading float64) mgl64.Quat {
	return mgl64.QuatRotate(heading, Up.MGL())
}

// AlignUp returns the shortest rotation taking the world up axis onto n.
// A zero or non-finite n yields the identity.
func AlignUp(n Vec3) mgl64.Quat {
	if !n.IsFinite() || n.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatBetweenVectors(Up.MGL(), n.Normalize().MGL())
}

// BodyOrientation composes yaw first and then terrain alignment, so the body
// faces along heading and its up axis matches the ground normal.
func BodyOrientation(heading float64, groundNormal Vec3) mgl64.Quat {
	return AlignUp(groundNormal).Mul(Yaw(heading)).Normalize()
}

// Rotate applies q to v.
func Rotate(q mgl64.Quat, v Vec3) Vec3 {
	return FromMGL(q.Rotate(v.MGL()))
}
