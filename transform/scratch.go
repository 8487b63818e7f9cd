package transform

import "github.com/go-gl/mathgl/mgl32"

// ScratchStack is a bump allocator for per-evaluation transform buffers.
// Allocations are released in bulk by returning to a previously taken mark.
// Views handed out before the stack grew keep their old backing memory.
type ScratchStack struct {
	rotations    []mgl32.Quat
	translations []mgl32.Vec3
	scales       []mgl32.Vec3
	transforms   []Transform

	soaTop int
	aosTop int
}

type ScratchMark struct {
	soa, aos int
}

func NewScratchStack(capacity int) *ScratchStack {
	return &ScratchStack{
		rotations:    make([]mgl32.Quat, capacity),
		translations: make([]mgl32.Vec3, capacity),
		scales:       make([]mgl32.Vec3, capacity),
		transforms:   make([]Transform, capacity),
	}
}

func (s *ScratchStack) Mark() ScratchMark {
	return ScratchMark{soa: s.soaTop, aos: s.aosTop}
}

// Release frees everything allocated after m was taken.
func (s *ScratchStack) Release(m ScratchMark) {
	if m.soa > s.soaTop || m.aos > s.aosTop {
		panic("transform: scratch mark released out of order")
	}
	s.soaTop, s.aosTop = m.soa, m.aos
}

// Alloc returns a view over n transforms with unspecified contents.
func (s *ScratchStack) Alloc(layout Layout, n int) View {
	if layout == LayoutAoS {
		if s.aosTop+n > len(s.transforms) {
			s.transforms = make([]Transform, grownCap(len(s.transforms), s.aosTop+n))
		}
		v := AoSView{Transforms: s.transforms[s.aosTop : s.aosTop+n : s.aosTop+n]}
		s.aosTop += n
		return v
	}

	if s.soaTop+n > len(s.rotations) {
		c := grownCap(len(s.rotations), s.soaTop+n)
		s.rotations = make([]mgl32.Quat, c)
		s.translations = make([]mgl32.Vec3, c)
		s.scales = make([]mgl32.Vec3, c)
	}
	end := s.soaTop + n
	v := SoAView{
		Rotations:    s.rotations[s.soaTop:end:end],
		Translations: s.translations[s.soaTop:end:end],
		Scales3D:     s.scales[s.soaTop:end:end],
	}
	s.soaTop = end
	return v
}

func grownCap(current, required int) int {
	c := current * 2
	if c < required {
		c = required
	}
	if c < 64 {
		c = 64
	}
	return c
}
