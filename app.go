// Package phantom ties the phantom front ends (Lisp scripts and JSON files)
// to validation, voxelization and export.
package phantom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/phantom/pkg/config"
	"github.com/chazu/phantom/pkg/engine"
	"github.com/chazu/phantom/pkg/kernel"
	"github.com/chazu/phantom/pkg/kernel/sdfx"
	"github.com/chazu/phantom/pkg/logging"
	"github.com/chazu/phantom/pkg/plan"
	"github.com/chazu/phantom/pkg/tessellate"
	"github.com/chazu/phantom/pkg/volume"
	"github.com/chazu/phantom/pkg/voxelize"
)

// App evaluates phantom descriptions and builds them with one kernel.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel

	// Workers bounds the parallel scan of each shape; zero uses GOMAXPROCS.
	Workers int
}

// Diagnostic is one finding reported for a phantom description. Line and
// Col are zero when the finding has no source position.
type Diagnostic struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Draw    int    `json:"draw"` // plan.VolumeLevel when not tied to a draw
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Line > 0:
		return fmt.Sprintf("line %d:%d: %s", d.Line, d.Col, d.Message)
	case d.Draw >= 0:
		return fmt.Sprintf("draw %d: %s", d.Draw, d.Message)
	}
	return d.Message
}

// EvalResult is the outcome of evaluating a description. Plan is nil when
// Errors is not empty.
type EvalResult struct {
	Plan     *plan.Plan   `json:"-"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
}

// OK reports whether the description evaluated and validated cleanly.
func (r EvalResult) OK() bool { return r.Plan != nil && len(r.Errors) == 0 }

// NewApp creates an App with a fresh engine and the sdfx kernel.
func NewApp() *App {
	return NewAppWithKernel(sdfx.New())
}

// NewAppWithKernel creates an App around k.
func NewAppWithKernel(k kernel.Kernel) *App {
	return &App{engine: engine.NewEngine(), kernel: k}
}

func newResult() EvalResult {
	return EvalResult{Errors: []Diagnostic{}, Warnings: []Diagnostic{}}
}

func (r *EvalResult) fail(err error) {
	r.Plan = nil
	r.Errors = append(r.Errors, Diagnostic{Draw: plan.VolumeLevel, Message: err.Error()})
}

// Evaluate runs Lisp source and validates the resulting plan.
func (a *App) Evaluate(source string) EvalResult {
	result := newResult()

	// Step 1: evaluate the script into a plan.
	p, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		logging.Logger().Error("evaluate failed", "error", err)
		result.fail(err)
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, Diagnostic{
				Line:    e.Line,
				Col:     e.Col,
				Draw:    plan.VolumeLevel,
				Message: e.Message,
			})
		}
		return result
	}

	// Step 2: validate.
	a.check(p, &result)
	return result
}

// LoadFile reads a phantom description. ".json" files go through the JSON
// loader; anything else is evaluated as a Lisp script.
func (a *App) LoadFile(path string) EvalResult {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		result := newResult()
		p, err := config.Load(path)
		if err != nil {
			result.fail(err)
			return result
		}
		a.check(p, &result)
		return result
	}

	result := newResult()
	info, err := os.Stat(path)
	if err != nil {
		result.fail(fmt.Errorf("%w: %w", volume.ErrIO, err))
		return result
	}
	if info.Size() > config.MaxFileSize {
		result.fail(fmt.Errorf("%w: %s is %d bytes, limit is %d",
			volume.ErrConfiguration, path, info.Size(), config.MaxFileSize))
		return result
	}
	source, err := os.ReadFile(path)
	if err != nil {
		result.fail(fmt.Errorf("%w: %w", volume.ErrIO, err))
		return result
	}
	return a.Evaluate(string(source))
}

// check validates p into result, keeping p only when nothing blocks it.
func (a *App) check(p *plan.Plan, result *EvalResult) {
	v := plan.ValidateAll(p)
	for _, e := range v.Errors {
		result.Errors = append(result.Errors, Diagnostic{Draw: e.Draw, Message: e.Message})
	}
	for _, w := range v.Warnings {
		result.Warnings = append(result.Warnings, Diagnostic{Draw: w.Draw, Message: w.Message})
		logging.Logger().Warn("plan warning", "draw", w.Draw, "message", w.Message)
	}
	if v.OK() {
		result.Plan = p
	}
}

// Build voxelizes p in memory.
func (a *App) Build(ctx context.Context, p *plan.Plan) (*voxelize.Result, error) {
	return voxelize.Build(ctx, p, a.kernel, voxelize.Options{Workers: a.Workers})
}

// Run builds p and writes it to the plan's output paths.
func (a *App) Run(ctx context.Context, p *plan.Plan) (*voxelize.Result, volume.Paths, error) {
	res, err := a.Build(ctx, p)
	if err != nil {
		return res, volume.Paths{}, err
	}
	paths, err := res.Write()
	if err != nil {
		return res, paths, err
	}
	return res, paths, nil
}

// Meshes writes one STL surface mesh per draw of p into dir.
func (a *App) Meshes(p *plan.Plan, dir string, cells int) ([]string, error) {
	meshes, err := tessellate.Tessellate(p, a.kernel, cells)
	if err != nil {
		return nil, err
	}
	return tessellate.SaveSTL(dir, meshes)
}
