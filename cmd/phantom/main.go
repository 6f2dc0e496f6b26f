// Command phantom builds a labelled voxel phantom from a Lisp script or a
// JSON description and writes it as a MetaImage volume plus a range file.
//
//	phantom [flags] phantom.lisp|phantom.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/chazu/phantom"
	"github.com/chazu/phantom/pkg/logging"
	"github.com/chazu/phantom/pkg/preview"
	"github.com/chazu/phantom/pkg/tessellate"
	"github.com/chazu/phantom/pkg/volume"
)

// errUsage marks command line mistakes; main exits with status 2 for them.
var errUsage = errors.New("usage")

type options struct {
	verbose     bool
	debug       bool
	dryRun      bool
	info        bool
	workers     int
	output      string
	rangeOutput string
	preview     string
	plane       string
	slice       int
	meshDir     string
	meshCells   int
}

func parseFlags(args []string, stderr io.Writer) (options, string, error) {
	var o options
	fs := flag.NewFlagSet("phantom", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&o.verbose, "v", false, "Log lifecycle events")
	fs.BoolVar(&o.debug, "vv", false, "Log per-shape and per-label details")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Evaluate and validate only; build nothing")
	fs.BoolVar(&o.info, "info", false, "Print per-label voxel counts and volumes after the build")
	fs.IntVar(&o.workers, "workers", 0, "Parallel scan workers per shape (0 = GOMAXPROCS)")
	fs.StringVar(&o.output, "o", "", "Override the volume output path (header .mhd, or a base name)")
	fs.StringVar(&o.rangeOutput, "range", "", "Override the range output path")
	fs.StringVar(&o.preview, "preview", "", "Write a slice preview image (png, svg or pdf)")
	fs.StringVar(&o.plane, "plane", "xy", "Preview plane: xy, xz or yz")
	fs.IntVar(&o.slice, "slice", -1, "Preview slice index along the plane normal (-1 = middle)")
	fs.StringVar(&o.meshDir, "mesh", "", "Write one STL surface mesh per draw into this directory")
	fs.IntVar(&o.meshCells, "mesh-cells", tessellate.DefaultCells, "Marching cubes along each shape's longest side")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: phantom [flags] phantom.lisp|phantom.json\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, "", fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return o, "", fmt.Errorf("%w: expected one phantom file, got %d", errUsage, fs.NArg())
	}
	return o, fs.Arg(0), nil
}

func newLogger(o options, w io.Writer) *slog.Logger {
	switch {
	case o.debug:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case o.verbose:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	// Warnings are always shown.
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, path, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logging.SetLogger(newLogger(o, stderr))
	defer logging.SetLogger(nil)

	var plane preview.Plane
	if o.preview != "" {
		if plane, err = preview.ParsePlane(o.plane); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
	}

	app := phantom.NewApp()
	app.Workers = o.workers

	result := app.LoadFile(path)
	if !result.OK() {
		for _, e := range result.Errors {
			fmt.Fprintf(stderr, "%s: %s\n", path, e)
		}
		return fmt.Errorf("%s: %d error(s)", path, len(result.Errors))
	}
	p := result.Plan
	if o.output != "" {
		p.Volume.Output = o.output
	}
	if o.rangeOutput != "" {
		p.Volume.RangeOutput = o.rangeOutput
	}

	if o.meshDir != "" {
		paths, err := app.Meshes(p, o.meshDir, o.meshCells)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %d mesh(es) to %s\n", len(paths), o.meshDir)
	}

	if o.dryRun {
		fmt.Fprintf(stdout, "%s: ok, %d draw(s), %d warning(s)\n", path, len(p.Draws), len(result.Warnings))
		return nil
	}

	res, paths, err := app.Run(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s, %s, %s\n", paths.Header, paths.Data, paths.Range)

	if o.info {
		printSummary(stdout, res.Grid())
	}
	if o.preview != "" {
		err := preview.Save(res.Grid(), o.preview, preview.Options{Plane: plane, Slice: o.slice})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", o.preview)
	}
	return nil
}

func printSummary(w io.Writer, g *volume.Grid) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "label\tmaterial\tvoxels\tvolume (mm³)\t")
	for _, st := range volume.Summary(g) {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.3f\t\n", st.Label, st.Material, st.Voxels, st.Volume)
	}
	tw.Flush()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "phantom:", err)
		os.Exit(1)
	}
}
