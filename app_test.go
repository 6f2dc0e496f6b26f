package phantom

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/phantom/pkg/plan"
	"github.com/chazu/phantom/pkg/volume"
)

func loadOK(t *testing.T, app *App, path string) *plan.Plan {
	t.Helper()
	result := app.LoadFile(path)
	if !result.OK() {
		for _, e := range result.Errors {
			t.Errorf("%s: %s", path, e)
		}
		t.FailNow()
	}
	return result.Plan
}

// shrink swaps the grid for a coarse one covering the same 60 mm cube and
// sends the output into dir.
func shrink(p *plan.Plan, dir string) {
	p.Volume.Dimensions = [3]int{40, 40, 40}
	p.Volume.ElementSize = plan.Vec3{1.5, 1.5, 1.5}
	p.Volume.Output = filepath.Join(dir, "phantom_2")
	p.Volume.RangeOutput = filepath.Join(dir, "range_phantom_2")
}

// TestE2EConcentricTubes runs the Lisp and JSON encodings of the same
// phantom through the whole pipeline: load, validate, build and write.
func TestE2EConcentricTubes(t *testing.T) {
	app := NewApp()

	fromLisp := loadOK(t, app, "examples/concentric_tubes.lisp")
	fromJSON := loadOK(t, app, "examples/concentric_tubes.json")
	if diff := cmp.Diff(fromLisp, fromJSON); diff != "" {
		t.Fatalf("lisp and json plans differ (-lisp +json):\n%s", diff)
	}

	lispDir, jsonDir := t.TempDir(), t.TempDir()
	shrink(fromLisp, lispDir)
	shrink(fromJSON, jsonDir)

	res, paths, err := app.Run(context.Background(), fromLisp)
	if err != nil {
		t.Fatalf("run lisp plan: %v", err)
	}
	if _, _, err := app.Run(context.Background(), fromJSON); err != nil {
		t.Fatalf("run json plan: %v", err)
	}

	for _, name := range []string{"phantom_2.mhd", "phantom_2.raw", "range_phantom_2.txt"} {
		a, err := os.ReadFile(filepath.Join(lispDir, name))
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(filepath.Join(jsonDir, name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between lisp and json builds", name)
		}
	}

	rangeText, err := os.ReadFile(paths.Range)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(rangeText), "0 Air\n1 Water\n2 Calcium\n"; got != want {
		t.Errorf("range file = %q, want %q", got, want)
	}

	g := res.Grid()
	for _, tc := range []struct {
		p    [3]float64
		want volume.Label
	}{
		{[3]float64{0.1, 0.1, 0.1}, 2},   // core
		{[3]float64{10.5, 0.1, 0.1}, 1},  // water shell
		{[3]float64{0.1, 0.1, 28}, 0},    // past the end caps
		{[3]float64{25, 25, 0.1}, 0},     // outside the shell
		{[3]float64{-0.1, -3, -20}, 2},   // core, lower half
		{[3]float64{-14, 0.1, 20}, 1},    // shell, upper half
	} {
		i, ok := g.ToIndex(tc.p)
		if !ok {
			t.Fatalf("point %v outside grid", tc.p)
		}
		got, err := g.Label(i)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("label at %v = %d, want %d", tc.p, got, tc.want)
		}
	}

	// The written phantom reads back to the same grid.
	back, err := volume.Read(paths.Header, paths.Range)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if diff := cmp.Diff(g.Labels(), back.Labels()); diff != "" {
		t.Errorf("labels changed on read back (-built +read):\n%s", diff)
	}
}

// TestE2EExamplesLoad ensures every shipped example evaluates and validates.
func TestE2EExamplesLoad(t *testing.T) {
	paths, err := filepath.Glob("examples/*")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no examples found")
	}
	app := NewApp()
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			p := loadOK(t, app, path)
			if len(p.Draws) == 0 {
				t.Errorf("%s: no draws", path)
			}
		})
	}
}

// TestE2ELabelReuseExample builds the label reuse example: the second
// material wins for every voxel of the shared label.
func TestE2ELabelReuseExample(t *testing.T) {
	app := NewApp()
	result := app.LoadFile("examples/label_reuse.json")
	if !result.OK() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Draw != 1 {
		t.Fatalf("expected one warning on draw 1, got %v", result.Warnings)
	}

	p := result.Plan
	dir := t.TempDir()
	p.Volume.Output = filepath.Join(dir, "reuse")
	p.Volume.RangeOutput = filepath.Join(dir, "reuse_range")
	_, paths, err := app.Run(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	rangeText, err := os.ReadFile(paths.Range)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(rangeText), "0 Air\n2 Calcium\n"; got != want {
		t.Errorf("range file = %q, want %q", got, want)
	}
}
