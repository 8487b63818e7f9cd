package evalvm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tanema/gween/ease"
)

// ScaleBiasClamp maps an input weight: optional range remap, then
// scale and bias, then optional clamp.
type ScaleBiasClamp struct {
	MapRange bool
	InMin    float32
	InMax    float32
	OutMin   float32
	OutMax   float32

	Scale float32
	Bias  float32

	Clamp    bool
	ClampMin float32
	ClampMax float32
}

// NewScaleBiasClamp returns the identity mapping.
func NewScaleBiasClamp() *ScaleBiasClamp {
	return &ScaleBiasClamp{Scale: 1, ClampMax: 1}
}

func (sbc *ScaleBiasClamp) Apply(v float32) float32 {
	if sbc.MapRange {
		t := float32(0)
		if sbc.InMax != sbc.InMin {
			t = clamp((v-sbc.InMin)/(sbc.InMax-sbc.InMin), 0, 1)
		}
		v = sbc.OutMin + t*(sbc.OutMax-sbc.OutMin)
	}
	v = v*sbc.Scale + sbc.Bias
	if sbc.Clamp {
		v = clamp(v, sbc.ClampMin, sbc.ClampMax)
	}
	return v
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type AlphaInput uint8

const (
	INPUT_A AlphaInput = iota
	INPUT_B
)

var easings = map[string]ease.TweenFunc{
	"linear":     ease.Linear,
	"inquad":     ease.InQuad,
	"outquad":    ease.OutQuad,
	"inoutquad":  ease.InOutQuad,
	"incubic":    ease.InCubic,
	"outcubic":   ease.OutCubic,
	"inoutcubic": ease.InOutCubic,
	"insine":     ease.InSine,
	"outsine":    ease.OutSine,
	"inoutsine":  ease.InOutSine,
	"inexpo":     ease.InExpo,
	"outexpo":    ease.OutExpo,
	"inoutexpo":  ease.InOutExpo,
}

// EasingByName looks up an easing curve, case insensitive. Empty is linear.
func EasingByName(name string) (ease.TweenFunc, error) {
	if name == "" {
		return ease.Linear, nil
	}
	if fn, ok := easings[strings.ToLower(name)]; ok {
		return fn, nil
	}
	return nil, errors.Errorf("unknown easing %q", name)
}

// Alpha is a blend weight. With a curve name set it is read from the curves
// of input A or B at evaluation time, falling back to Value when the curve
// is missing. Easing reshapes the final weight over [0, 1].
type Alpha struct {
	Value          float32
	CurveName      string
	CurveInput     AlphaInput
	ScaleBiasClamp *ScaleBiasClamp
	Easing         ease.TweenFunc
}

func FixedAlpha(w float32) Alpha { return Alpha{Value: w} }

func CurveAlpha(name string, input AlphaInput) Alpha {
	return Alpha{CurveName: name, CurveInput: input}
}

// Resolve returns the weight for inputs a and b, b may be nil for single
// input tasks.
func (a Alpha) Resolve(ka, kb *Keyframe) float32 {
	w := a.Value
	if a.CurveName != "" {
		src := ka
		if a.CurveInput == INPUT_B && kb != nil {
			src = kb
		}
		if src != nil {
			w = src.Curves.GetOr(a.CurveName, a.Value)
		}
	}
	if a.ScaleBiasClamp != nil {
		w = a.ScaleBiasClamp.Apply(w)
	}
	if a.Easing != nil {
		w = a.Easing(w, 0, 1, 1)
	}
	return w
}

func (a Alpha) String() string {
	if a.CurveName == "" {
		return fmt.Sprintf("%g", a.Value)
	}
	input := "A"
	if a.CurveInput == INPUT_B {
		input = "B"
	}
	return fmt.Sprintf("curve %q of %s", a.CurveName, input)
}
