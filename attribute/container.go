package attribute

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/transform"
)

// Key identifies an attribute: its type, name and the LOD bone it belongs to.
type Key struct {
	Type string
	Name string
	Bone bone.CompactPoseIndex
}

func (k Key) String() string { return fmt.Sprintf("%s:%s@%d", k.Type, k.Name, k.Bone) }

// Container holds bone-keyed attributes. The zero value is empty.
type Container struct {
	values map[Key]Value
}

func NewContainer() *Container {
	return &Container{values: make(map[Key]Value)}
}

func (c *Container) Num() int { return len(c.values) }

func (c *Container) Set(name string, b bone.CompactPoseIndex, v Value) {
	c.SetKey(Key{Type: v.TypeName(), Name: name, Bone: b}, v)
}

func (c *Container) SetKey(k Key, v Value) {
	if v.TypeName() != k.Type {
		panic(fmt.Sprintf("attribute: %v value stored under %v", v.TypeName(), k))
	}
	if c.values == nil {
		c.values = make(map[Key]Value)
	}
	c.values[k] = v
}

func (c *Container) Get(k Key) (Value, bool) {
	v, ok := c.values[k]
	return v, ok
}

func (c *Container) Remove(k Key) { delete(c.values, k) }
func (c *Container) Reset()       { c.values = nil }

// Keys are sorted by bone, then type, then name.
func (c *Container) Keys() []Key {
	keys := make([]Key, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Bone != b.Bone {
			return a.Bone < b.Bone
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Name < b.Name
	})
	return keys
}

// Clone copies the container. Values are immutable so they are shared.
func (c *Container) Clone() *Container {
	out := &Container{values: make(map[Key]Value, len(c.values))}
	for k, v := range c.values {
		out.values[k] = v
	}
	return out
}

func (c *Container) CopyFrom(o *Container) {
	c.values = o.Clone().values
}

func (c *Container) String() string {
	var sb strings.Builder
	for _, k := range c.Keys() {
		fmt.Fprintf(&sb, "%v = %s\n", k, describe(c.values[k]))
	}
	return sb.String()
}

// Normalize renormalizes quaternion and transform attributes.
func (c *Container) Normalize() {
	for k, v := range c.values {
		if n, ok := v.(Normalizer); ok {
			c.values[k] = n.Normalized()
		}
	}
}

func lerp(a, b Value, w float32) Value {
	ab, aok := a.(Blendable)
	bb, bok := b.(Blendable)
	if !aok || !bok {
		if w < 0.5 {
			return a
		}
		return b
	}
	return ab.Scaled(1-w).Add(bb, w)
}

// Blend sets c to lerp(a, b, w). Attributes present in only one input are
// taken from it unchanged.
func (c *Container) Blend(a, b *Container, w float32) {
	out := make(map[Key]Value, len(a.values)+len(b.values))
	for k, va := range a.values {
		if vb, ok := b.values[k]; ok {
			out[k] = normalized(lerp(va, vb, w))
		} else {
			out[k] = va
		}
	}
	for k, vb := range b.values {
		if _, ok := a.values[k]; !ok {
			out[k] = vb
		}
	}
	c.values = out
}

// Accumulate composes additive attributes, weighted by w, onto c. Attributes
// missing from c accumulate onto their type default. Non-blendable values
// only fill in missing attributes.
func (c *Container) Accumulate(additive *Container, w float32) {
	for k, va := range additive.values {
		base, exists := c.values[k]
		add, ok := va.(Blendable)
		if !ok {
			if !exists {
				c.SetKey(k, va)
			}
			continue
		}
		b, ok := base.(Blendable)
		if !ok {
			b = add.Default()
		}
		c.SetKey(k, normalized(b.Accumulate(add, w)))
	}
}

// OverrideWithScale replaces c with source scaled by w.
func (c *Container) OverrideWithScale(source *Container, w float32) {
	out := make(map[Key]Value, len(source.values))
	for k, v := range source.values {
		if bv, ok := v.(Blendable); ok {
			out[k] = bv.Scaled(w)
		} else {
			out[k] = v
		}
	}
	c.values = out
}

// AddWithScale adds source scaled by w. Results are not renormalized.
func (c *Container) AddWithScale(source *Container, w float32) {
	for k, v := range source.values {
		sv, ok := v.(Blendable)
		if !ok {
			if _, exists := c.values[k]; !exists {
				c.SetKey(k, v)
			}
			continue
		}
		base, ok := c.values[k].(Blendable)
		if !ok {
			base = sv.Default().Scaled(0)
		}
		c.SetKey(k, base.Add(sv, w))
	}
}

// BlendPerBone blends blend over base with a weight per attribute bone.
// Attributes only in base keep their value whatever the weight, attributes
// only in blend are interpolated from their type default.
func (c *Container) BlendPerBone(base, blend *Container, weights transform.PerBoneWeights) {
	out := make(map[Key]Value, len(base.values)+len(blend.values))
	for k, v := range base.values {
		out[k] = v
	}
	for k, vb := range blend.values {
		w := weights.Weight(k.Bone.Int())
		va, ok := base.values[k]
		if !ok {
			bb, blendable := vb.(Blendable)
			if !blendable {
				if w >= 0.5 {
					out[k] = vb
				}
				continue
			}
			va = bb.Default()
		}
		out[k] = normalized(lerp(va, vb, w))
	}
	c.values = out
}

func normalized(v Value) Value {
	if n, ok := v.(Normalizer); ok {
		return n.Normalized()
	}
	return v
}
