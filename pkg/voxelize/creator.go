// Package voxelize turns phantom descriptions into labelled voxel volumes.
//
// Creator is the volume creator manager: it collects the grid parameters
// and output paths, initializes the grid, and writes the result. Build walks
// a plan.Plan, converting each draw into a kernel solid and painting it into
// the Creator's grid in plan order.
package voxelize

import (
	"fmt"
	"strings"

	"github.com/chazu/phantom/pkg/logging"
	"github.com/chazu/phantom/pkg/shape"
	"github.com/chazu/phantom/pkg/units"
	"github.com/chazu/phantom/pkg/volume"
)

// DefaultMaterial is the background material when none is set.
const DefaultMaterial = "Air"

// Creator owns one grid from configuration through export.
type Creator struct {
	dims        [3]int
	elementSize [3]float64
	sizeSet     bool
	offset      *[3]float64
	material    string
	dataType    volume.DataType
	output      string
	rangeOutput string

	grid *volume.Grid
}

// NewCreator returns a Creator with the default background material and
// data type.
func NewCreator() *Creator {
	return &Creator{material: DefaultMaterial, dataType: volume.DefaultDataType}
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", volume.ErrConfiguration, fmt.Sprintf(format, args...))
}

func (c *Creator) checkConfigurable(what string) error {
	if c.grid != nil {
		return configErrorf("cannot set %s after the volume is initialized", what)
	}
	return nil
}

// SetDimensions sets the voxel counts per axis.
func (c *Creator) SetDimensions(x, y, z int) error {
	if err := c.checkConfigurable("dimensions"); err != nil {
		return err
	}
	c.dims = [3]int{x, y, z}
	return nil
}

// SetElementSizes sets the voxel size per axis in unit.
func (c *Creator) SetElementSizes(x, y, z float64, unit string) error {
	if err := c.checkConfigurable("element sizes"); err != nil {
		return err
	}
	mm, err := units.Distance3(x, y, z, unit)
	if err != nil {
		return configErrorf("element sizes: %v", err)
	}
	c.elementSize = mm
	c.sizeSet = true
	return nil
}

// SetOffset places the grid's minimum corner. Without it the grid is
// centred on the origin.
func (c *Creator) SetOffset(x, y, z float64, unit string) error {
	if err := c.checkConfigurable("offset"); err != nil {
		return err
	}
	mm, err := units.Distance3(x, y, z, unit)
	if err != nil {
		return configErrorf("offset: %v", err)
	}
	c.offset = &mm
	return nil
}

// SetMaterial sets the background material.
func (c *Creator) SetMaterial(name string) error {
	if err := c.checkConfigurable("material"); err != nil {
		return err
	}
	c.material = name
	return nil
}

// SetDataType sets the exported element type by its MetaImage name.
func (c *Creator) SetDataType(name string) error {
	if err := c.checkConfigurable("data type"); err != nil {
		return err
	}
	dt, err := volume.ParseDataType(name)
	if err != nil {
		return err
	}
	c.dataType = dt
	return nil
}

// SetOutput sets the volume path; ".mhd" is appended when it has no
// extension.
func (c *Creator) SetOutput(path string) { c.output = path }

// SetRangeOutput sets the range table path; ".txt" is appended when it has
// no extension.
func (c *Creator) SetRangeOutput(path string) { c.rangeOutput = path }

// Initialize allocates the grid filled with the background label.
func (c *Creator) Initialize() error {
	if c.grid != nil {
		return configErrorf("volume already initialized")
	}
	if c.dims == ([3]int{}) {
		return configErrorf("volume dimensions not set")
	}
	if !c.sizeSet {
		return configErrorf("volume element sizes not set")
	}
	g := volume.NewGrid()
	err := g.Initialize(volume.Params{
		Dimensions:         c.dims,
		ElementSize:        c.elementSize,
		Offset:             c.offset,
		DataType:           c.dataType,
		BackgroundMaterial: c.material,
	})
	if err != nil {
		return err
	}
	c.grid = g
	return nil
}

// Grid returns the grid, or nil before Initialize.
func (c *Creator) Grid() *volume.Grid { return c.grid }

// Draw initializes s if needed and paints it into the grid.
func (c *Creator) Draw(s shape.Shape) (int, error) {
	if c.grid == nil {
		return 0, configErrorf("volume not initialized")
	}
	if s.Solid() == nil {
		if err := s.Initialize(); err != nil {
			return 0, err
		}
	}
	return s.Draw(c.grid)
}

// Write exports the grid and its range table to the configured paths.
func (c *Creator) Write() (volume.Paths, error) {
	if c.grid == nil {
		return volume.Paths{}, configErrorf("volume not initialized")
	}
	if strings.TrimSpace(c.output) == "" {
		return volume.Paths{}, configErrorf("volume output path not set")
	}
	if strings.TrimSpace(c.rangeOutput) == "" {
		return volume.Paths{}, configErrorf("range output path not set")
	}
	paths, err := volume.Write(c.grid, c.output, c.rangeOutput)
	if err != nil {
		return paths, err
	}
	for _, st := range volume.Summary(c.grid) {
		logging.Logger().Debug("label summary",
			"label", st.Label, "material", st.Material, "voxels", st.Voxels, "volume_mm3", st.Volume)
	}
	return paths, nil
}
