package shape

import (
	"github.com/chazu/phantom/pkg/kernel"
)

// Tube is a solid cylinder centred on its position. Its axis runs along z
// unless SetAxis says otherwise.
type Tube struct {
	base
	height, radius       float64 // mm
	heightSet, radiusSet bool
	axis                 kernel.Axis
}

// NewTube returns an unconfigured tube.
func NewTube(k kernel.Kernel) *Tube {
	t := &Tube{axis: kernel.AxisZ}
	t.base = base{kind: "tube", kernel: k, build: t.build}
	return t
}

// SetHeight sets the extent along the axis.
func (t *Tube) SetHeight(v float64, unit string) error {
	if err := t.checkConfigurable(); err != nil {
		return err
	}
	mm, err := length(t.kind, "height", v, unit)
	if err != nil {
		return err
	}
	t.height, t.heightSet = mm, true
	return nil
}

// SetRadius sets the radius.
func (t *Tube) SetRadius(v float64, unit string) error {
	if err := t.checkConfigurable(); err != nil {
		return err
	}
	mm, err := length(t.kind, "radius", v, unit)
	if err != nil {
		return err
	}
	t.radius, t.radiusSet = mm, true
	return nil
}

// SetAxis orients the tube along a grid axis.
func (t *Tube) SetAxis(a kernel.Axis) error {
	if err := t.checkConfigurable(); err != nil {
		return err
	}
	if a < kernel.AxisX || a > kernel.AxisZ {
		return configErrorf("tube axis %v", a)
	}
	t.axis = a
	return nil
}

func (t *Tube) build() (kernel.Solid, error) {
	if !t.heightSet {
		return nil, incompletef("tube height not set")
	}
	if !t.radiusSet {
		return nil, incompletef("tube radius not set")
	}
	if err := requirePositive(t.kind, "height", t.height); err != nil {
		return nil, err
	}
	if err := requirePositive(t.kind, "radius", t.radius); err != nil {
		return nil, err
	}
	s, err := t.kernel.Tube(t.height, t.radius, t.axis)
	if err != nil {
		return nil, configErrorf("%v", err)
	}
	return s, nil
}

// Box is a rectangular block centred on its position.
type Box struct {
	base
	size    [3]float64 // mm
	sizeSet bool
}

// NewBox returns an unconfigured box.
func NewBox(k kernel.Kernel) *Box {
	b := &Box{}
	b.base = base{kind: "box", kernel: k, build: b.build}
	return b
}

// SetSize sets the edge lengths along x, y and z.
func (b *Box) SetSize(x, y, z float64, unit string) error {
	if err := b.checkConfigurable(); err != nil {
		return err
	}
	for i, v := range [3]float64{x, y, z} {
		mm, err := length(b.kind, "size", v, unit)
		if err != nil {
			return err
		}
		b.size[i] = mm
	}
	b.sizeSet = true
	return nil
}

func (b *Box) build() (kernel.Solid, error) {
	if !b.sizeSet {
		return nil, incompletef("box size not set")
	}
	for i, f := range []string{"size x", "size y", "size z"} {
		if err := requirePositive(b.kind, f, b.size[i]); err != nil {
			return nil, err
		}
	}
	s, err := b.kernel.Box(b.size[0], b.size[1], b.size[2])
	if err != nil {
		return nil, configErrorf("%v", err)
	}
	return s, nil
}

// Sphere is a ball centred on its position.
type Sphere struct {
	base
	radius    float64 // mm
	radiusSet bool
}

// NewSphere returns an unconfigured sphere.
func NewSphere(k kernel.Kernel) *Sphere {
	s := &Sphere{}
	s.base = base{kind: "sphere", kernel: k, build: s.build}
	return s
}

// SetRadius sets the radius.
func (s *Sphere) SetRadius(v float64, unit string) error {
	if err := s.checkConfigurable(); err != nil {
		return err
	}
	mm, err := length(s.kind, "radius", v, unit)
	if err != nil {
		return err
	}
	s.radius, s.radiusSet = mm, true
	return nil
}

func (s *Sphere) build() (kernel.Solid, error) {
	if !s.radiusSet {
		return nil, incompletef("sphere radius not set")
	}
	if err := requirePositive(s.kind, "radius", s.radius); err != nil {
		return nil, err
	}
	solid, err := s.kernel.Sphere(s.radius)
	if err != nil {
		return nil, configErrorf("%v", err)
	}
	return solid, nil
}

// Custom draws an arbitrary kernel solid, typically a boolean combination
// of primitives. Position and rotation apply on top of the solid's own
// placement.
type Custom struct {
	base
	source kernel.Solid
}

// NewCustom returns a shape drawing s.
func NewCustom(k kernel.Kernel, s kernel.Solid) *Custom {
	c := &Custom{source: s}
	c.base = base{kind: "solid", kernel: k, build: c.build}
	return c
}

func (c *Custom) build() (kernel.Solid, error) {
	if c.source == nil {
		return nil, incompletef("solid geometry not set")
	}
	return c.source, nil
}
