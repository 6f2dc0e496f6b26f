package voxelize

import (
	"context"
	"fmt"
	"strings"

	"github.com/chazu/phantom/pkg/kernel"
	"github.com/chazu/phantom/pkg/logging"
	"github.com/chazu/phantom/pkg/plan"
	"github.com/chazu/phantom/pkg/shape"
	"github.com/chazu/phantom/pkg/volume"
)

// Options tunes Build.
type Options struct {
	// Workers bounds the parallel scan inside each shape; zero uses
	// GOMAXPROCS.
	Workers int
}

// Result is the outcome of Build.
type Result struct {
	Creator *Creator
	// Voxels holds the number of voxels each draw wrote, in plan order.
	Voxels []int
}

// Grid is shorthand for r.Creator.Grid().
func (r *Result) Grid() *volume.Grid { return r.Creator.Grid() }

// Write exports the built grid to the plan's output paths.
func (r *Result) Write() (volume.Paths, error) { return r.Creator.Write() }

// NewCreatorFromPlan configures a Creator from the plan's volume section.
func NewCreatorFromPlan(v plan.Volume) (*Creator, error) {
	c := NewCreator()
	if err := c.SetDimensions(v.Dimensions[0], v.Dimensions[1], v.Dimensions[2]); err != nil {
		return nil, err
	}
	if err := c.SetElementSizes(v.ElementSize[0], v.ElementSize[1], v.ElementSize[2], "mm"); err != nil {
		return nil, err
	}
	if v.Offset != nil {
		if err := c.SetOffset(v.Offset[0], v.Offset[1], v.Offset[2], "mm"); err != nil {
			return nil, err
		}
	}
	if err := c.SetMaterial(v.Material); err != nil {
		return nil, err
	}
	if v.DataType != "" {
		if err := c.SetDataType(v.DataType); err != nil {
			return nil, err
		}
	}
	c.SetOutput(v.Output)
	c.SetRangeOutput(v.RangeOutput)
	return c, nil
}

// Build validates p, initializes its grid and draws every shape in order.
// Later draws overwrite earlier ones where they overlap. It stops at the
// first failing draw; the grid then holds every draw before it. Build checks
// ctx between draws.
func Build(ctx context.Context, p *plan.Plan, k kernel.Kernel, opts Options) (*Result, error) {
	if errs := plan.Validate(p); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, configErrorf("invalid plan: %s", strings.Join(msgs, "; "))
	}

	c, err := NewCreatorFromPlan(p.Volume)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(); err != nil {
		return nil, err
	}

	res := &Result{Creator: c, Voxels: make([]int, 0, len(p.Draws))}
	for i, d := range p.Draws {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s, err := drawShape(k, d, opts)
		if err != nil {
			return res, fmt.Errorf("draw %d: %w", i, err)
		}
		n, err := c.Draw(s)
		s.Dispose()
		if err != nil {
			return res, fmt.Errorf("draw %d: %w", i, err)
		}
		res.Voxels = append(res.Voxels, n)
	}

	logging.Logger().Info("phantom built", "draws", len(p.Draws), "labels", c.Grid().Table().Len())
	return res, nil
}

// drawShape turns one draw into a configured shape. Top-level primitives use
// their own shape types so position and rotation go through the unit-aware
// setters; composites are drawn as custom solids.
func drawShape(k kernel.Kernel, d plan.Draw, opts Options) (shape.Shape, error) {
	type common interface {
		shape.Shape
		SetPosition(x, y, z float64, unit string) error
		SetRotation(x, y, z float64, unit string) error
		SetLabelValue(label volume.Label) error
		SetMaterial(name string) error
		SetWorkers(n int)
	}

	var (
		s  common
		pl plan.Placement
	)
	switch data := d.Shape.(type) {
	case plan.TubeData:
		t := shape.NewTube(k)
		if err := t.SetHeight(data.Height, "mm"); err != nil {
			return nil, err
		}
		if err := t.SetRadius(data.Radius, "mm"); err != nil {
			return nil, err
		}
		if data.Axis != "" {
			a, err := kernel.ParseAxis(string(data.Axis))
			if err != nil {
				return nil, configErrorf("tube: %v", err)
			}
			if err := t.SetAxis(a); err != nil {
				return nil, err
			}
		}
		s, pl = t, data.Placement
	case plan.BoxData:
		b := shape.NewBox(k)
		if err := b.SetSize(data.Size[0], data.Size[1], data.Size[2], "mm"); err != nil {
			return nil, err
		}
		s, pl = b, data.Placement
	case plan.SphereData:
		sp := shape.NewSphere(k)
		if err := sp.SetRadius(data.Radius, "mm"); err != nil {
			return nil, err
		}
		s, pl = sp, data.Placement
	default:
		solid, err := Solid(k, d.Shape)
		if err != nil {
			return nil, err
		}
		s = shape.NewCustom(k, solid)
	}

	if err := s.SetPosition(pl.Position[0], pl.Position[1], pl.Position[2], "mm"); err != nil {
		return nil, err
	}
	if err := s.SetRotation(pl.Rotation[0], pl.Rotation[1], pl.Rotation[2], "deg"); err != nil {
		return nil, err
	}
	if err := s.SetLabelValue(volume.Label(d.Label)); err != nil {
		return nil, err
	}
	if err := s.SetMaterial(d.Material); err != nil {
		return nil, err
	}
	s.SetWorkers(opts.Workers)
	return s, nil
}
