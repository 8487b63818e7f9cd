package attribute

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/transform"
)

func TestCurvesBlend(t *testing.T) {
	a := NewCurves()
	a.Set("jaw", 1)
	a.Set("blink", 0.5)
	b := NewCurves()
	b.Set("jaw", 0)
	b.Set("smile", 1)

	var out Curves
	out.Blend(a, b, 0.25)
	assert.InDelta(t, 0.75, out.GetOr("jaw", -1), 1e-6)
	assert.InDelta(t, 0.375, out.GetOr("blink", -1), 1e-6)
	assert.InDelta(t, 0.25, out.GetOr("smile", -1), 1e-6)
	assert.Equal(t, []string{"blink", "jaw", "smile"}, out.Names())
}

func TestCurvesOverrideAndAdd(t *testing.T) {
	a := NewCurves()
	a.Set("x", 2)
	b := NewCurves()
	b.Set("x", 4)
	b.Set("y", 1)

	var out Curves
	out.OverrideWithScale(a, 0.5)
	out.AddWithScale(b, 0.5)
	assert.InDelta(t, 3, out.GetOr("x", 0), 1e-6)
	assert.InDelta(t, 0.5, out.GetOr("y", 0), 1e-6)

	out.Accumulate(b, 1)
	assert.InDelta(t, 7, out.GetOr("x", 0), 1e-6)

	clone := out.Clone()
	clone.Set("x", 0)
	assert.InDelta(t, 7, out.GetOr("x", 0), 1e-6)

	_, ok := out.Get("missing")
	assert.False(t, ok)
}

func TestContainerBlend(t *testing.T) {
	a := NewContainer()
	a.Set("speed", 0, Float(2))
	a.Set("count", 1, Integer(4))
	a.Set("tag", 1, String("left"))
	a.Set("only_a", 0, Vector{1, 0, 0})

	b := NewContainer()
	b.Set("speed", 0, Float(4))
	b.Set("count", 1, Integer(8))
	b.Set("tag", 1, String("right"))

	var out Container
	out.Blend(a, b, 0.75)

	speed, _ := out.Get(Key{TYPE_FLOAT, "speed", 0})
	assert.InDelta(t, 3.5, float32(speed.(Float)), 1e-6)
	count, _ := out.Get(Key{TYPE_INTEGER, "count", 1})
	assert.Equal(t, Integer(7), count)
	tag, _ := out.Get(Key{TYPE_STRING, "tag", 1})
	assert.Equal(t, String("right"), tag)
	onlyA, _ := out.Get(Key{TYPE_VECTOR, "only_a", 0})
	assert.Equal(t, Vector{1, 0, 0}, onlyA)

	out.Blend(a, b, 0.25)
	tag, _ = out.Get(Key{TYPE_STRING, "tag", 1})
	assert.Equal(t, String("left"), tag)
}

func TestContainerIntegerRoundsOnce(t *testing.T) {
	key := Key{TYPE_INTEGER, "count", 0}
	blend := func(x, y Integer, w float32) Value {
		a := NewContainer()
		a.SetKey(key, x)
		b := NewContainer()
		b.SetKey(key, y)
		var out Container
		out.Blend(a, b, w)
		v, _ := out.Get(key)
		return v
	}
	assert.Equal(t, Integer(3), blend(3, 3, 0.5))
	assert.Equal(t, Integer(-3), blend(-3, -3, 0.5))
	assert.Equal(t, Integer(3), blend(3, 3, 0.3))
	assert.Equal(t, Integer(3), blend(2, 3, 0.5))
	assert.Equal(t, Integer(5), blend(0, 10, 0.5))

	var weights transform.PerBoneWeights
	weights.Default = 0.5
	a := NewContainer()
	a.SetKey(key, Integer(3))
	var out Container
	out.BlendPerBone(a, a, weights)
	v, _ := out.Get(key)
	assert.Equal(t, Integer(3), v)

	// weighted sum chain keeps the fraction until normalized
	var sum Container
	sum.OverrideWithScale(a, 0.5)
	sum.AddWithScale(a, 0.5)
	sum.Normalize()
	v, _ = sum.Get(key)
	assert.Equal(t, Integer(3), v)

	acc := NewContainer()
	acc.SetKey(key, Integer(1))
	acc.Accumulate(a, 0.5)
	v, _ = acc.Get(key)
	assert.Equal(t, Integer(3), v)
}

func TestContainerQuaternionBlendShortestArc(t *testing.T) {
	q := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	a := NewContainer()
	a.Set("aim", 0, Quaternion(mgl32.QuatIdent()))
	b := NewContainer()
	b.Set("aim", 0, Quaternion(q.Scale(-1)))

	var out Container
	out.Blend(a, b, 0.5)
	v, _ := out.Get(Key{TYPE_QUAT, "aim", 0})
	got := mgl32.Quat(v.(Quaternion))
	expected := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})
	assert.InDelta(t, 1, absf(got.Dot(expected)), 1e-5)
	assert.InDelta(t, 1, got.Len(), 1e-5)
}

func TestContainerAccumulate(t *testing.T) {
	base := NewContainer()
	base.Set("offset", 2, Vector{1, 1, 1})
	base.Set("label", 2, String("base"))

	additive := NewContainer()
	additive.Set("offset", 2, Vector{2, 0, 0})
	additive.Set("twist", 2, Quaternion(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})))
	additive.Set("label", 2, String("additive"))
	additive.Set("fresh", 3, String("new"))

	base.Accumulate(additive, 0.5)

	offset, _ := base.Get(Key{TYPE_VECTOR, "offset", 2})
	assert.Equal(t, Vector{2, 1, 1}, offset)
	label, _ := base.Get(Key{TYPE_STRING, "label", 2})
	assert.Equal(t, String("base"), label)
	fresh, _ := base.Get(Key{TYPE_STRING, "fresh", 3})
	assert.Equal(t, String("new"), fresh)

	twist, ok := base.Get(Key{TYPE_QUAT, "twist", 2})
	require.True(t, ok)
	expected := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 0, 1})
	assert.InDelta(t, 1, absf(mgl32.Quat(twist.(Quaternion)).Dot(expected)), 1e-5)
}

func TestContainerTransformValue(t *testing.T) {
	a := NewContainer()
	a.Set("socket", 0, TransformValue(transform.FromTranslation(mgl32.Vec3{2, 0, 0})))
	b := NewContainer()
	b.Set("socket", 0, TransformValue(transform.FromTranslation(mgl32.Vec3{4, 0, 0})))

	var out Container
	out.OverrideWithScale(a, 0.5)
	out.AddWithScale(b, 0.5)
	out.Normalize()

	v, _ := out.Get(Key{TYPE_TRANSFORM, "socket", 0})
	got := transform.Transform(v.(TransformValue))
	assert.True(t, got.Equals(transform.FromTranslation(mgl32.Vec3{3, 0, 0}), 1e-5), "%v", got)
}

func TestBlendPerBoneAsymmetry(t *testing.T) {
	base := NewContainer()
	base.Set("a", 0, Float(10)) // only in base
	base.Set("b", 1, Float(10)) // in both

	blend := NewContainer()
	blend.Set("b", 1, Float(20))
	blend.Set("c", 2, Float(20))       // only in blend
	blend.Set("s", 2, String("blend")) // non-blendable only in blend
	blend.Set("r", 0, String("blend")) // non-blendable, low weight

	weights := transform.PerBoneWeights{
		BoneToWeightIndex: []int32{0, 1, bone.INDEX_NONE},
		Weights:           []float32{0.2, 0.5},
		Default:           0.75,
	}

	var out Container
	out.BlendPerBone(base, blend, weights)

	a, _ := out.Get(Key{TYPE_FLOAT, "a", 0})
	assert.Equal(t, Float(10), a, "base only keeps base")
	b, _ := out.Get(Key{TYPE_FLOAT, "b", 1})
	assert.InDelta(t, 15, float32(b.(Float)), 1e-5)
	c, _ := out.Get(Key{TYPE_FLOAT, "c", 2})
	assert.InDelta(t, 15, float32(c.(Float)), 1e-5, "blend only interpolates from zero")
	s, _ := out.Get(Key{TYPE_STRING, "s", 2})
	assert.Equal(t, String("blend"), s)
	_, ok := out.Get(Key{TYPE_STRING, "r", 0})
	assert.False(t, ok)
}

func TestContainerKeysAndTypeCheck(t *testing.T) {
	c := NewContainer()
	c.Set("z", 1, Float(1))
	c.Set("a", 1, Float(1))
	c.Set("m", 0, Integer(1))
	assert.Equal(t, []Key{
		{TYPE_INTEGER, "m", 0},
		{TYPE_FLOAT, "a", 1},
		{TYPE_FLOAT, "z", 1},
	}, c.Keys())
	assert.Contains(t, c.String(), "float:a@1")

	assert.Panics(t, func() { c.SetKey(Key{TYPE_FLOAT, "x", 0}, Integer(1)) })
}

func absf(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
