package transform

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Layout selects the physical memory layout of a transform array.
type Layout int

const (
	// LayoutSoA keeps rotations, translations and scales in three parallel
	// slices. Bulk operations run over the raw slices.
	LayoutSoA Layout = iota
	// LayoutAoS keeps one slice of Transform values.
	LayoutAoS
)

func (l Layout) String() string {
	switch l {
	case LayoutSoA:
		return "soa"
	case LayoutAoS:
		return "aos"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "soa":
		return LayoutSoA, nil
	case "aos":
		return LayoutAoS, nil
	}
	return LayoutSoA, errors.Errorf("unknown transform layout %q", s)
}

// ConstView is read access to a range of transforms, independent of layout.
type ConstView interface {
	Num() int
	Layout() Layout
	Get(i int) Transform
	Rotation(i int) mgl32.Quat
	Translation(i int) mgl32.Vec3
	Scale3D(i int) mgl32.Vec3
}

// View is a mutable, non-owning window over transform storage.
type View interface {
	ConstView
	Set(i int, t Transform)
	SetRotation(i int, q mgl32.Quat)
	SetTranslation(i int, v mgl32.Vec3)
	SetScale3D(i int, v mgl32.Vec3)
	// Slice returns a view over [start, start+count).
	Slice(start, count int) View
}

// AoSView views a slice of Transform values.
type AoSView struct {
	Transforms []Transform
}

func (v AoSView) Num() int                           { return len(v.Transforms) }
func (v AoSView) Layout() Layout                     { return LayoutAoS }
func (v AoSView) Get(i int) Transform                { return v.Transforms[i] }
func (v AoSView) Rotation(i int) mgl32.Quat          { return v.Transforms[i].Rotation }
func (v AoSView) Translation(i int) mgl32.Vec3       { return v.Transforms[i].Translation }
func (v AoSView) Scale3D(i int) mgl32.Vec3           { return v.Transforms[i].Scale3D }
func (v AoSView) Set(i int, t Transform)             { v.Transforms[i] = t }
func (v AoSView) SetRotation(i int, q mgl32.Quat)    { v.Transforms[i].Rotation = q }
func (v AoSView) SetTranslation(i int, t mgl32.Vec3) { v.Transforms[i].Translation = t }
func (v AoSView) SetScale3D(i int, s mgl32.Vec3)     { v.Transforms[i].Scale3D = s }

func (v AoSView) Slice(start, count int) View {
	checkRange(v.Num(), start, count)
	return AoSView{Transforms: v.Transforms[start : start+count]}
}

// SoAView views three parallel slices of equal length.
type SoAView struct {
	Rotations    []mgl32.Quat
	Translations []mgl32.Vec3
	Scales3D     []mgl32.Vec3
}

func (v SoAView) Num() int                     { return len(v.Rotations) }
func (v SoAView) Layout() Layout               { return LayoutSoA }
func (v SoAView) Rotation(i int) mgl32.Quat    { return v.Rotations[i] }
func (v SoAView) Translation(i int) mgl32.Vec3 { return v.Translations[i] }
func (v SoAView) Scale3D(i int) mgl32.Vec3     { return v.Scales3D[i] }

func (v SoAView) Get(i int) Transform {
	return Transform{Rotation: v.Rotations[i], Translation: v.Translations[i], Scale3D: v.Scales3D[i]}
}

func (v SoAView) Set(i int, t Transform) {
	v.Rotations[i] = t.Rotation
	v.Translations[i] = t.Translation
	v.Scales3D[i] = t.Scale3D
}

func (v SoAView) SetRotation(i int, q mgl32.Quat)    { v.Rotations[i] = q }
func (v SoAView) SetTranslation(i int, t mgl32.Vec3) { v.Translations[i] = t }
func (v SoAView) SetScale3D(i int, s mgl32.Vec3)     { v.Scales3D[i] = s }

func (v SoAView) Slice(start, count int) View {
	checkRange(v.Num(), start, count)
	end := start + count
	return SoAView{
		Rotations:    v.Rotations[start:end],
		Translations: v.Translations[start:end],
		Scales3D:     v.Scales3D[start:end],
	}
}

// AsSoA reports whether v exposes raw parallel slices for bulk operations.
func AsSoA(v ConstView) (SoAView, bool) {
	switch sv := v.(type) {
	case SoAView:
		return sv, true
	case *SoAView:
		return *sv, true
	}
	return SoAView{}, false
}

// Array owns transform storage of one layout.
type Array interface {
	Num() int
	Layout() Layout
	// SetNum resizes the storage, keeping existing values. New elements are
	// left unspecified and must be seeded by the caller.
	SetNum(n int)
	View() View
}

func NewArray(layout Layout, n int) Array {
	var a Array
	if layout == LayoutAoS {
		a = &AoSArray{}
	} else {
		a = &SoAArray{}
	}
	a.SetNum(n)
	return a
}

type AoSArray struct {
	transforms []Transform
}

func (a *AoSArray) Num() int       { return len(a.transforms) }
func (a *AoSArray) Layout() Layout { return LayoutAoS }
func (a *AoSArray) View() View     { return AoSView{Transforms: a.transforms} }

func (a *AoSArray) SetNum(n int) {
	a.transforms = resize(a.transforms, n)
}

type SoAArray struct {
	rotations    []mgl32.Quat
	translations []mgl32.Vec3
	scales       []mgl32.Vec3
}

func (a *SoAArray) Num() int       { return len(a.rotations) }
func (a *SoAArray) Layout() Layout { return LayoutSoA }

func (a *SoAArray) View() View {
	return SoAView{Rotations: a.rotations, Translations: a.translations, Scales3D: a.scales}
}

func (a *SoAArray) SetNum(n int) {
	a.rotations = resize(a.rotations, n)
	a.translations = resize(a.translations, n)
	a.scales = resize(a.scales, n)
}

func resize[T any](s []T, n int) []T {
	if n < 0 {
		panic(fmt.Sprintf("transform: negative array size %d", n))
	}
	if n <= cap(s) {
		return s[:n]
	}
	grown := make([]T, n)
	copy(grown, s)
	return grown
}

func checkRange(num, start, count int) {
	if start < 0 || count < 0 || start+count > num {
		panic(fmt.Sprintf("transform: range [%d, %d) out of view of %d transforms", start, start+count, num))
	}
}
