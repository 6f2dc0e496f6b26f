// Package shape provides the analytical primitives drawn into a phantom.
//
// Every shape follows the same lifecycle: construct with a geometry kernel,
// configure through setters that take an explicit unit, Initialize to
// validate and freeze the geometry, Draw exactly once into an initialized
// grid, then Dispose. A shape drawn into a grid overwrites the labels of the
// voxels whose centres it contains and records its label to material
// mapping in the grid's range table.
package shape

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/phantom/pkg/kernel"
	"github.com/chazu/phantom/pkg/logging"
	"github.com/chazu/phantom/pkg/raster"
	"github.com/chazu/phantom/pkg/units"
	"github.com/chazu/phantom/pkg/volume"
)

// Shape is the common surface of all primitives.
type Shape interface {
	Initialize() error
	Draw(g *volume.Grid) (int, error)
	Dispose()

	// Solid returns the frozen geometry; nil before Initialize.
	Solid() kernel.Solid
	Label() volume.Label
	Material() string
}

type state int

const (
	stateConfiguring state = iota
	stateInitialized
	stateDrawn
	stateDisposed
)

func (s state) String() string {
	switch s {
	case stateConfiguring:
		return "configuring"
	case stateInitialized:
		return "initialized"
	case stateDrawn:
		return "drawn"
	case stateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// base carries the fields and lifecycle shared by every primitive. The
// embedding type supplies kind and build.
type base struct {
	kind   string
	kernel kernel.Kernel
	build  func() (kernel.Solid, error)

	position [3]float64 // mm
	rotation [3]float64 // degrees
	label    volume.Label
	labelSet bool
	material string
	workers  int

	solid kernel.Solid
	state state
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", volume.ErrConfiguration, fmt.Sprintf(format, args...))
}

func incompletef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", volume.ErrIncompleteShape, fmt.Sprintf(format, args...))
}

func (b *base) checkConfigurable() error {
	if b.state != stateConfiguring {
		return configErrorf("%s is %s and can no longer be configured", b.kind, b.state)
	}
	return nil
}

// SetPosition places the shape's centre. The default is the origin.
func (b *base) SetPosition(x, y, z float64, unit string) error {
	if err := b.checkConfigurable(); err != nil {
		return err
	}
	p, err := units.Distance3(x, y, z, unit)
	if err != nil {
		return configErrorf("%s position: %v", b.kind, err)
	}
	b.position = p
	return nil
}

// SetRotation rotates the shape about its centre by Euler angles applied
// about x, then y, then z.
func (b *base) SetRotation(x, y, z float64, unit string) error {
	if err := b.checkConfigurable(); err != nil {
		return err
	}
	var r [3]float64
	for i, v := range [3]float64{x, y, z} {
		d, err := units.Degrees(v, unit)
		if err != nil {
			return configErrorf("%s rotation: %v", b.kind, err)
		}
		r[i] = d
	}
	b.rotation = r
	return nil
}

// SetLabelValue sets the label written into covered voxels.
func (b *base) SetLabelValue(label volume.Label) error {
	if err := b.checkConfigurable(); err != nil {
		return err
	}
	b.label = label
	b.labelSet = true
	return nil
}

// SetMaterial sets the material name recorded for the label.
func (b *base) SetMaterial(name string) error {
	if err := b.checkConfigurable(); err != nil {
		return err
	}
	b.material = name
	return nil
}

// SetWorkers bounds the parallelism of the draw scan; zero uses GOMAXPROCS.
func (b *base) SetWorkers(n int) {
	b.workers = n
}

// Solid returns the placed geometry once initialized.
func (b *base) Solid() kernel.Solid { return b.solid }

// Label returns the configured label.
func (b *base) Label() volume.Label { return b.label }

// Material returns the configured material.
func (b *base) Material() string { return b.material }

// Initialize validates the configuration and freezes the geometry.
func (b *base) Initialize() error {
	if b.state != stateConfiguring {
		return configErrorf("%s is %s, cannot initialize", b.kind, b.state)
	}
	if b.kernel == nil {
		return configErrorf("%s has no geometry kernel", b.kind)
	}
	if !b.labelSet {
		return incompletef("%s label value not set", b.kind)
	}
	if b.label == volume.BackgroundLabel {
		return configErrorf("%s label %d is reserved for the background", b.kind, volume.BackgroundLabel)
	}
	if strings.TrimSpace(b.material) == "" {
		return incompletef("%s material not set", b.kind)
	}
	if strings.ContainsAny(b.material, " \t\r\n") {
		return configErrorf("%s material %q must not contain whitespace", b.kind, b.material)
	}

	s, err := b.build()
	if err != nil {
		return err
	}
	if b.rotation != [3]float64{} {
		s = b.kernel.Rotate(s, b.rotation[0], b.rotation[1], b.rotation[2])
	}
	if b.position != [3]float64{} {
		s = b.kernel.Translate(s, b.position[0], b.position[1], b.position[2])
	}
	b.solid = s
	b.state = stateInitialized
	return nil
}

// Draw rasterizes the shape into g and records its material. It returns the
// number of voxels written. A shape that covers no voxel centre leaves the
// range table untouched. A label the grid's data type cannot hold is
// rejected before any voxel changes.
func (b *base) Draw(g *volume.Grid) (int, error) {
	switch b.state {
	case stateConfiguring:
		return 0, incompletef("%s drawn before Initialize", b.kind)
	case stateDrawn, stateDisposed:
		return 0, configErrorf("%s is %s, cannot draw again", b.kind, b.state)
	}
	if g == nil || !g.Initialized() {
		return 0, configErrorf("%s drawn into an uninitialized grid", b.kind)
	}
	if dt := g.DataType(); !dt.CanHold(b.label) {
		return 0, configErrorf("label %d exceeds %s maximum %d", b.label, dt, dt.MaxLabel())
	}

	n, err := raster.RasterizeWith(g, b.solid, b.label, raster.Options{Workers: b.workers})
	if err != nil {
		return n, err
	}
	b.state = stateDrawn
	if n == 0 {
		logging.Logger().Warn("shape covers no voxels", "shape", b.kind, "label", b.label, "material", b.material)
		// An existing label still takes the latest material; a new one is
		// not added.
		if _, ok := g.Table().Material(b.label); !ok {
			return 0, nil
		}
	}
	if err := g.Table().Record(b.label, b.material); err != nil {
		return n, err
	}
	logging.Logger().Debug("shape drawn", "shape", b.kind, "label", b.label, "material", b.material, "voxels", n)
	return n, nil
}

// Dispose releases the geometry. A disposed shape cannot be drawn.
func (b *base) Dispose() {
	b.solid = nil
	b.state = stateDisposed
}

// length converts a setter argument to mm.
func length(kind, field string, v float64, unit string) (float64, error) {
	mm, err := units.Distance(v, unit)
	if err != nil {
		return 0, configErrorf("%s %s: %v", kind, field, err)
	}
	return mm, nil
}

// requirePositive checks a frozen dimension. NaN fails.
func requirePositive(kind, field string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return configErrorf("%s %s must be > 0, got %v mm", kind, field, v)
	}
	return nil
}

var (
	_ Shape = (*Tube)(nil)
	_ Shape = (*Box)(nil)
	_ Shape = (*Sphere)(nil)
	_ Shape = (*Custom)(nil)
)
