// Package attribute holds the named float curves and bone-keyed typed
// attributes that travel with a pose through evaluation.
package attribute

import (
	"sort"
)

// Curves maps curve names to values. The zero value is an empty set.
type Curves struct {
	values map[string]float32
}

func NewCurves() *Curves {
	return &Curves{values: make(map[string]float32)}
}

func (c *Curves) Num() int { return len(c.values) }

func (c *Curves) Get(name string) (float32, bool) {
	v, ok := c.values[name]
	return v, ok
}

// GetOr returns def when the curve is missing.
func (c *Curves) GetOr(name string, def float32) float32 {
	if v, ok := c.values[name]; ok {
		return v
	}
	return def
}

func (c *Curves) Set(name string, v float32) {
	if c.values == nil {
		c.values = make(map[string]float32)
	}
	c.values[name] = v
}

func (c *Curves) Remove(name string) { delete(c.values, name) }
func (c *Curves) Reset()             { c.values = nil }

func (c *Curves) Names() []string {
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Curves) Clone() *Curves {
	out := &Curves{values: make(map[string]float32, len(c.values))}
	for k, v := range c.values {
		out.values[k] = v
	}
	return out
}

func (c *Curves) CopyFrom(o *Curves) {
	c.values = make(map[string]float32, len(o.values))
	for k, v := range o.values {
		c.values[k] = v
	}
}

// Blend sets c to lerp(a, b, w) over the union of curve names; a missing
// curve counts as zero.
func (c *Curves) Blend(a, b *Curves, w float32) {
	out := make(map[string]float32, len(a.values)+len(b.values))
	for k, va := range a.values {
		out[k] = va * (1 - w)
	}
	for k, vb := range b.values {
		out[k] += vb * w
	}
	c.values = out
}

// Accumulate adds additive scaled by w onto c.
func (c *Curves) Accumulate(additive *Curves, w float32) {
	c.AddWithScale(additive, w)
}

// OverrideWithScale replaces c with source scaled by w.
func (c *Curves) OverrideWithScale(source *Curves, w float32) {
	out := make(map[string]float32, len(source.values))
	for k, v := range source.values {
		out[k] = v * w
	}
	c.values = out
}

func (c *Curves) AddWithScale(source *Curves, w float32) {
	for k, v := range source.values {
		c.Set(k, c.values[k]+v*w)
	}
}
