// Package snapshot draws a pose as mesh space bone segments projected on an
// axis plane, and encodes the picture as lossless webp.
package snapshot

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/HugoSmits86/nativewebp"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/mogaika/animnext/lodpose"
	"github.com/mogaika/animnext/transform"
)

type Plane int

const (
	PLANE_XY Plane = iota
	PLANE_XZ
	PLANE_YZ
)

// Project returns horizontal and up coordinates of p.
func (pl Plane) Project(p mgl32.Vec3) (float32, float32) {
	switch pl {
	case PLANE_XZ:
		return p.X(), p.Z()
	case PLANE_YZ:
		return p.Y(), p.Z()
	}
	return p.X(), p.Y()
}

const margin = 0.1

type Option func(*options)

type options struct {
	size        int
	supersample int
	plane       Plane
	background  color.NRGBA
	bone        color.NRGBA
}

func WithSize(size int) Option     { return func(o *options) { o.size = size } }
func WithSupersample(n int) Option { return func(o *options) { o.supersample = n } }
func WithPlane(pl Plane) Option    { return func(o *options) { o.plane = pl } }
func WithColors(bg, b color.NRGBA) Option {
	return func(o *options) { o.background, o.bone = bg, b }
}

// BonePositions returns the mesh space origin of every bone of the pose.
func BonePositions(p *lodpose.Pose) []mgl32.Vec3 {
	parents := p.GetLODBoneIndexToParentLODBoneIndexMap()
	out := make([]mgl32.Vec3, p.GetNumBones())
	for i := range out {
		out[i] = transform.LocalToMesh(p.LocalTransforms, parents, i).Translation
	}
	return out
}

// Render draws the pose. The picture is fitted to the projected bounds of
// the bones.
func Render(p *lodpose.Pose, opts ...Option) *image.NRGBA {
	o := options{
		size:        256,
		supersample: 4,
		plane:       PLANE_XZ,
		background:  color.NRGBA{R: 24, G: 24, B: 32, A: 255},
		bone:        color.NRGBA{R: 240, G: 200, B: 80, A: 255},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.size <= 0 || o.supersample <= 0 {
		panic("snapshot: size and supersample must be positive")
	}

	full := o.size * o.supersample
	canvas := image.NewNRGBA(image.Rect(0, 0, full, full))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(o.background), image.Point{}, draw.Src)

	if p.IsValid() && p.GetNumBones() != 0 {
		positions := BonePositions(p)
		pts := fit(positions, o.plane, full)
		parents := p.GetLODBoneIndexToParentLODBoneIndexMap()
		for i := range pts {
			if i < len(parents) && int(parents[i]) < len(pts) {
				line(canvas, pts[parents[i]], pts[i], o.supersample, o.bone)
			}
			dot(canvas, pts[i], o.supersample*2, o.bone)
		}
	}

	if o.supersample == 1 {
		return canvas
	}
	dst := image.NewNRGBA(image.Rect(0, 0, o.size, o.size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	return dst
}

// fit maps positions onto a full x full canvas, up axis pointing up.
func fit(positions []mgl32.Vec3, pl Plane, full int) []image.Point {
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := -minX, -minY
	for _, p := range positions {
		x, y := pl.Project(p)
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	extent := max(maxX-minX, maxY-minY)
	if extent < 1e-6 {
		extent = 1
	}
	scale := float32(full) * (1 - 2*margin) / extent
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	half := float32(full) / 2

	pts := make([]image.Point, len(positions))
	for i, p := range positions {
		x, y := pl.Project(p)
		pts[i] = image.Pt(int(half+(x-cx)*scale), int(half-(y-cy)*scale))
	}
	return pts
}

func dot(img *image.NRGBA, c image.Point, size int, col color.NRGBA) {
	r := image.Rect(c.X-size/2, c.Y-size/2, c.X-size/2+size, c.Y-size/2+size)
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

func line(img *image.NRGBA, a, b image.Point, width int, col color.NRGBA) {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		dot(img, a, width, col)
		return
	}
	for s := 0; s <= steps; s++ {
		p := image.Pt(a.X+dx*s/steps, a.Y+dy*s/steps)
		dot(img, p, width, col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func EncodeWebP(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return errors.Wrap(err, "WebP encode")
	}
	return nil
}
