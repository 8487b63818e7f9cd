package snapshot

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/animnext/lodpose"
	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/skeleton"
	"github.com/mogaika/animnext/transform"
)

func chainPose(t *testing.T) *lodpose.HeapPose {
	mesh, err := skeleton.BuildMesh("mesh", "", []skeleton.BoneDesc{
		{Name: "Root", Transform: transform.Identity},
		{Name: "Spine", Parent: "Root", Transform: transform.FromTranslation(mgl32.Vec3{0, 0, 1})},
		{Name: "Head", Parent: "Spine", Transform: transform.FromTranslation(mgl32.Vec3{0, 0, 2})},
	}, nil)
	require.NoError(t, err)
	rp, err := refpose.Generate(mesh, nil)
	require.NoError(t, err)
	p := lodpose.NewHeapPose(transform.LayoutSoA)
	p.PrepareForLOD(rp, 0, true, false)
	return p
}

func TestBonePositions(t *testing.T) {
	pos := BonePositions(&chainPose(t).Pose)
	require.Len(t, pos, 3)
	assert.True(t, pos[0].ApproxEqual(mgl32.Vec3{0, 0, 0}))
	assert.True(t, pos[1].ApproxEqual(mgl32.Vec3{0, 0, 1}))
	assert.True(t, pos[2].ApproxEqual(mgl32.Vec3{0, 0, 3}))
}

func TestRender(t *testing.T) {
	bg := color.NRGBA{A: 255}
	fg := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	p := chainPose(t)

	img := Render(&p.Pose, WithSize(64), WithSupersample(1), WithColors(bg, fg))
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, fg, img.NRGBAAt(32, 32))
	assert.Equal(t, bg, img.NRGBAAt(0, 0))
	assert.Equal(t, bg, img.NRGBAAt(10, 32))

	img = Render(&p.Pose, WithColors(bg, fg))
	assert.Equal(t, 256, img.Bounds().Dx())
	lit := false
	for x := 0; x < 256; x++ {
		lit = lit || img.NRGBAAt(x, 128) != bg
	}
	assert.True(t, lit)

	assert.Panics(t, func() { Render(&p.Pose, WithSize(0)) })
}

func TestEncodeWebP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeWebP(&buf, Render(&chainPose(t).Pose, WithSize(32))))
	b := buf.Bytes()
	require.Greater(t, len(b), 12)
	assert.Equal(t, "RIFF", string(b[0:4]))
	assert.Equal(t, "WEBP", string(b[8:12]))
}
