package attribute

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/animnext/transform"
)

const (
	TYPE_FLOAT     = "float"
	TYPE_INTEGER   = "int"
	TYPE_VECTOR    = "vector"
	TYPE_QUAT      = "quat"
	TYPE_TRANSFORM = "transform"
	TYPE_STRING    = "string"
)

// Value is an attribute payload. Values are immutable; operations return new ones.
type Value interface {
	TypeName() string
}

// Blendable values can be weighted and summed. Default is the value an
// absent attribute is interpolated from.
type Blendable interface {
	Value
	Default() Blendable
	Scaled(w float32) Blendable
	// Add returns v + o*w; o has the same type.
	Add(o Blendable, w float32) Blendable
	// Accumulate composes additive, weighted by w, onto v.
	Accumulate(additive Blendable, w float32) Blendable
}

// Normalizer values need renormalizing after summation.
type Normalizer interface {
	Normalized() Value
}

type Float float32

func (v Float) TypeName() string                     { return TYPE_FLOAT }
func (v Float) Default() Blendable                   { return Float(0) }
func (v Float) Scaled(w float32) Blendable           { return Float(float32(v) * w) }
func (v Float) Add(o Blendable, w float32) Blendable { return v + Float(float32(o.(Float))*w) }

func (v Float) Accumulate(additive Blendable, w float32) Blendable { return v.Add(additive, w) }

// Integer blends in float space and rounds once. Scaled and Add return an
// IntegerSum so weighted chains keep their fraction until normalized.
type Integer int32

func (v Integer) TypeName() string           { return TYPE_INTEGER }
func (v Integer) Default() Blendable         { return Integer(0) }
func (v Integer) Scaled(w float32) Blendable { return IntegerSum(float32(v) * w) }

func (v Integer) Add(o Blendable, w float32) Blendable {
	return IntegerSum(float32(v) + integerValue(o)*w)
}

func (v Integer) Accumulate(additive Blendable, w float32) Blendable {
	return Integer(roundInt(float32(v) + integerValue(additive)*w))
}

// IntegerSum is a partial weighted sum of Integer values. Normalize rounds
// it back to an Integer.
type IntegerSum float32

func (v IntegerSum) TypeName() string           { return TYPE_INTEGER }
func (v IntegerSum) Default() Blendable         { return Integer(0) }
func (v IntegerSum) Scaled(w float32) Blendable { return v * IntegerSum(w) }
func (v IntegerSum) Normalized() Value          { return Integer(roundInt(float32(v))) }

func (v IntegerSum) Add(o Blendable, w float32) Blendable {
	return v + IntegerSum(integerValue(o)*w)
}

func (v IntegerSum) Accumulate(additive Blendable, w float32) Blendable {
	return Integer(roundInt(float32(v) + integerValue(additive)*w))
}

func integerValue(v Blendable) float32 {
	if s, ok := v.(IntegerSum); ok {
		return float32(s)
	}
	return float32(v.(Integer))
}

func roundInt(f float32) int32 { return int32(math.Round(float64(f))) }

type Vector mgl32.Vec3

func (v Vector) TypeName() string           { return TYPE_VECTOR }
func (v Vector) Default() Blendable         { return Vector{} }
func (v Vector) Scaled(w float32) Blendable { return Vector(mgl32.Vec3(v).Mul(w)) }

func (v Vector) Add(o Blendable, w float32) Blendable {
	return Vector(mgl32.Vec3(v).Add(mgl32.Vec3(o.(Vector)).Mul(w)))
}

func (v Vector) Accumulate(additive Blendable, w float32) Blendable { return v.Add(additive, w) }

type Quaternion mgl32.Quat

func (v Quaternion) TypeName() string   { return TYPE_QUAT }
func (v Quaternion) Default() Blendable { return Quaternion(mgl32.QuatIdent()) }
func (v Quaternion) Normalized() Value  { return Quaternion(mgl32.Quat(v).Normalize()) }

func (v Quaternion) Scaled(w float32) Blendable {
	return Quaternion(mgl32.Quat{W: v.W * w, V: v.V.Mul(w)})
}

// Add flips o onto v's hemisphere first.
func (v Quaternion) Add(o Blendable, w float32) Blendable {
	q := mgl32.Quat(o.(Quaternion))
	if mgl32.Quat(v).Dot(q) < 0 {
		w = -w
	}
	return Quaternion(mgl32.Quat(v).Add(mgl32.Quat{W: q.W * w, V: q.V.Mul(w)}))
}

func (v Quaternion) Accumulate(additive Blendable, w float32) Blendable {
	base := transform.Identity
	base.Rotation = mgl32.Quat(v)
	add := transform.AdditiveIdentity
	add.Rotation = mgl32.Quat(additive.(Quaternion))
	return Quaternion(accumulateTransform(base, add, w).Rotation)
}

type TransformValue transform.Transform

func (v TransformValue) TypeName() string   { return TYPE_TRANSFORM }
func (v TransformValue) Default() Blendable { return TransformValue(transform.Identity) }

func (v TransformValue) Normalized() Value {
	return TransformValue(transform.Transform(v).NormalizeRotation())
}

func (v TransformValue) Scaled(w float32) Blendable {
	out := []transform.Transform{{}}
	transform.BlendOverwriteWithScale(transform.AoSView{Transforms: out},
		transform.AoSView{Transforms: []transform.Transform{transform.Transform(v)}}, w)
	return TransformValue(out[0])
}

func (v TransformValue) Add(o Blendable, w float32) Blendable {
	out := []transform.Transform{transform.Transform(v)}
	transform.BlendAddWithScale(transform.AoSView{Transforms: out},
		transform.AoSView{Transforms: []transform.Transform{transform.Transform(o.(TransformValue))}}, w)
	return TransformValue(out[0])
}

func (v TransformValue) Accumulate(additive Blendable, w float32) Blendable {
	return TransformValue(accumulateTransform(transform.Transform(v), transform.Transform(additive.(TransformValue)), w))
}

func accumulateTransform(base, additive transform.Transform, w float32) transform.Transform {
	out := []transform.Transform{base}
	transform.BlendWithIdentityAndAccumulate(transform.AoSView{Transforms: out},
		transform.AoSView{Transforms: []transform.Transform{additive}}, w)
	return out[0]
}

// String is not blendable: blends take the dominant input.
type String string

func (v String) TypeName() string { return TYPE_STRING }

func describe(v Value) string {
	return fmt.Sprintf("%s(%v)", v.TypeName(), v)
}
