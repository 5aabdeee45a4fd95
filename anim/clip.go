package anim

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/kiln/transform"
	"github.com/rotisserie/eris"
)

// Property is the part of a transform a channel animates.
type Property uint8

const (
	Translation Property = iota
	Rotation
	Scale
)

func (p Property) String() string {
	switch p {
	case Translation:
		return "translation"
	case Rotation:
		return "rotation"
	case Scale:
		return "scale"
	}
	return fmt.Sprintf("Property(%d)", uint8(p))
}

// MarshalText implements encoding.TextMarshaler
func (p Property) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Property) UnmarshalText(data []byte) error {
	switch string(data) {
	case "translation":
		*p = Translation
	case "rotation":
		*p = Rotation
	case "scale":
		*p = Scale
	default:
		return eris.Errorf("unknown channel property %q", data)
	}
	return nil
}

// Channel is one keyframed property. Times are ascending; Rotation channels keep their
// keys in Quats and the others in Vec3s, one key per time.
type Channel struct {
	Property Property
	Times    []float32
	Vec3s    []mgl32.Vec3
	Quats    []mgl32.Quat
}

// Len returns the number of keys
func (c *Channel) Len() int {
	return len(c.Times)
}

// Validate checks that the channel has keys, ascending times and one output per time.
func (c *Channel) Validate() error {
	if len(c.Times) == 0 {
		return eris.Errorf("%s channel has no keys", c.Property)
	}
	outputs := len(c.Vec3s)
	if c.Property == Rotation {
		outputs = len(c.Quats)
	}
	if outputs != len(c.Times) {
		return eris.Errorf("%s channel has %d times and %d outputs", c.Property, len(c.Times), outputs)
	}
	for i := 1; i < len(c.Times); i++ {
		if c.Times[i] < c.Times[i-1] {
			return eris.Errorf("%s channel times are not ascending at key %d", c.Property, i)
		}
	}
	return nil
}

// span finds the keys around t. It returns i and u such that the value at t is the
// interpolation of keys i and i+1 at u; at either end u is 0 and i is that end's key.
func (c *Channel) span(t float32) (int, float32) {
	last := len(c.Times) - 1
	if last <= 0 || t <= c.Times[0] {
		return 0, 0
	}
	if t >= c.Times[last] {
		return last, 0
	}
	// first key strictly after t
	next := sort.Search(len(c.Times), func(i int) bool { return c.Times[i] > t })
	i := next - 1
	gap := c.Times[next] - c.Times[i]
	if gap <= 0 {
		return i, 0
	}
	return i, (t - c.Times[i]) / gap
}

// SampleVec3 returns the translation or scale at t.
func (c *Channel) SampleVec3(t float32) mgl32.Vec3 {
	i, u := c.span(t)
	if u == 0 {
		return c.Vec3s[i]
	}
	return transform.Lerp(c.Vec3s[i], c.Vec3s[i+1], u)
}

// SampleQuat returns the rotation at t
func (c *Channel) SampleQuat(t float32) mgl32.Quat {
	i, u := c.span(t)
	if u == 0 {
		return c.Quats[i]
	}
	return mgl32.QuatSlerp(c.Quats[i], c.Quats[i+1], u)
}

// Clip maps each target to the channels animating it.
type Clip struct {
	Curves map[TargetId][]Channel
}

// Duration is the time of the latest key across every channel
func (c *Clip) Duration() float32 {
	var duration float32
	for _, channels := range c.Curves {
		for i := range channels {
			if n := len(channels[i].Times); n > 0 && channels[i].Times[n-1] > duration {
				duration = channels[i].Times[n-1]
			}
		}
	}
	return duration
}

// Validate checks every channel
func (c *Clip) Validate() error {
	for target, channels := range c.Curves {
		for i := range channels {
			if err := channels[i].Validate(); err != nil {
				return eris.Wrapf(err, "target %s", target)
			}
		}
	}
	return nil
}

// Sample returns base with every property the clip animates for target replaced by its
// value at t. ok is false when the clip has no channel for target.
func (c *Clip) Sample(target TargetId, t float32, base transform.Transform) (transform.Transform, bool) {
	channels, ok := c.Curves[target]
	if !ok {
		return base, false
	}
	out := base
	for i := range channels {
		ch := &channels[i]
		if len(ch.Times) == 0 {
			continue
		}
		switch ch.Property {
		case Translation:
			out.Translation = ch.SampleVec3(t)
		case Rotation:
			out.Rotation = ch.SampleQuat(t)
		case Scale:
			out.Scale = ch.SampleVec3(t)
		}
	}
	return out, true
}
