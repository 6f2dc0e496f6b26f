package volume

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/phantom/pkg/logging"
)

// Paths are the three files of an exported phantom.
type Paths struct {
	Header string // MetaImage header, <base>.mhd
	Data   string // raw payload, <base>.raw
	Range  string // label to material table
}

// ResolvePaths derives the output files from the configured volume and
// range paths. A volume path without an extension gets ".mhd"; a range path
// without an extension gets ".txt".
func ResolvePaths(volumePath, rangePath string) (Paths, error) {
	if strings.TrimSpace(volumePath) == "" {
		return Paths{}, configErrorf("volume output path must be set")
	}
	if strings.TrimSpace(rangePath) == "" {
		return Paths{}, configErrorf("range output path must be set")
	}
	var p Paths
	if ext := filepath.Ext(volumePath); strings.EqualFold(ext, ".mhd") {
		p.Header = volumePath
		p.Data = strings.TrimSuffix(volumePath, ext) + ".raw"
	} else {
		p.Header = volumePath + ".mhd"
		p.Data = volumePath + ".raw"
	}
	p.Range = rangePath
	if filepath.Ext(rangePath) == "" {
		p.Range += ".txt"
	}
	if filepath.Clean(p.Range) == filepath.Clean(p.Header) || filepath.Clean(p.Range) == filepath.Clean(p.Data) {
		return Paths{}, configErrorf("range output %q collides with the volume files", p.Range)
	}
	return p, nil
}

// Write exports g as a MetaImage volume plus its range file.
//
// Every label present in the grid must have a range entry. Entries whose
// label no longer occurs in the grid are left out of the range file, except
// the background entry. All three files are encoded in memory and written to
// temporary files first; existing files are replaced only once every
// temporary file is complete.
func Write(g *Grid, volumePath, rangePath string) (Paths, error) {
	if !g.Initialized() {
		return Paths{}, configErrorf("grid not initialized")
	}
	paths, err := ResolvePaths(volumePath, rangePath)
	if err != nil {
		return Paths{}, err
	}

	table, err := exportTable(g)
	if err != nil {
		return Paths{}, err
	}

	payload := encodeLabels(g.labels, g.dataType)
	header, err := Header{
		Dimensions:      g.dims,
		ElementSpacing:  g.spacing,
		Offset:          g.offset,
		ElementType:     g.dataType,
		ElementDataFile: filepath.Base(paths.Data),
	}.MarshalText()
	if err != nil {
		return Paths{}, err
	}
	var ranges bytes.Buffer
	if _, err := table.WriteTo(&ranges); err != nil {
		return Paths{}, ioError("encode range table", err)
	}

	// Range first: a failed range commit must leave the previous volume intact.
	files := []pendingFile{
		{path: paths.Range, data: ranges.Bytes()},
		{path: paths.Data, data: payload},
		{path: paths.Header, data: header},
	}
	if err := commitFiles(files); err != nil {
		return Paths{}, err
	}

	logging.Logger().Info("phantom written",
		"header", paths.Header, "data", paths.Data, "range", paths.Range,
		"bytes", len(payload), "labels", table.Len())
	return paths, nil
}

// exportTable checks grid and table agreement and returns the table to
// serialize.
func exportTable(g *Grid) (*RangeTable, error) {
	counts := Histogram(g)
	out := NewRangeTable()
	for _, e := range g.table.Export() {
		if e.Label != BackgroundLabel && counts[e.Label] == 0 {
			logging.Logger().Warn("dropping range entry with no voxels",
				"label", e.Label, "material", e.Material)
			continue
		}
		if !g.dataType.CanHold(e.Label) {
			return nil, configErrorf("range label %d exceeds %s maximum %d", e.Label, g.dataType, g.dataType.MaxLabel())
		}
		if err := out.Record(e.Label, e.Material); err != nil {
			return nil, err
		}
	}
	for l := range counts {
		if !g.dataType.CanHold(l) {
			return nil, configErrorf("label %d exceeds %s maximum %d", l, g.dataType, g.dataType.MaxLabel())
		}
		if _, ok := g.table.Material(l); !ok {
			return nil, configErrorf("label %d present in grid has no material", l)
		}
	}
	return out, nil
}

func encodeLabels(labels []Label, dt DataType) []byte {
	size := dt.Size()
	buf := make([]byte, len(labels)*size)
	for i, v := range labels {
		dt.put(buf[i*size:(i+1)*size], v)
	}
	return buf
}

type pendingFile struct {
	path string
	data []byte
	tmp  string
}

// commitFiles stages every file next to its destination, checks that no
// destination is a directory, then renames them into place in order. On
// failure staged files are removed and destinations that were not yet
// renamed are left as they were.
func commitFiles(files []pendingFile) (err error) {
	defer func() {
		if err != nil {
			for _, f := range files {
				if f.tmp != "" {
					os.Remove(f.tmp)
				}
			}
		}
	}()
	for i := range files {
		f := &files[i]
		dir := filepath.Dir(f.path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ioError("create directory "+dir, err)
		}
		tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
		if err != nil {
			return ioError("create "+f.path, err)
		}
		f.tmp = tmp.Name()
		_, werr := tmp.Write(f.data)
		cerr := tmp.Close()
		if werr = errors.Join(werr, cerr); werr != nil {
			return ioError("write "+f.path, werr)
		}
		if err := os.Chmod(f.tmp, 0o644); err != nil {
			return ioError("chmod "+f.path, err)
		}
	}
	for _, f := range files {
		if info, err := os.Stat(f.path); err == nil && info.IsDir() {
			return ioError("replace "+f.path, errors.New("destination is a directory"))
		}
	}
	for i := range files {
		f := &files[i]
		if err := os.Rename(f.tmp, f.path); err != nil {
			return ioError("rename "+f.path, err)
		}
		f.tmp = ""
	}
	return nil
}
