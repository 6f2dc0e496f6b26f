package volume

import (
	"io"
	"os"
	"path/filepath"
)

// Read reconstructs a grid and its range table from a MetaImage header and a
// range file. The raw payload is located relative to the header. The range
// table must map the background label 0.
func Read(headerPath, rangePath string) (*Grid, error) {
	hf, err := os.Open(headerPath)
	if err != nil {
		return nil, ioError("open header", err)
	}
	h, err := ParseHeader(hf)
	hf.Close()
	if err != nil {
		return nil, err
	}

	rf, err := os.Open(rangePath)
	if err != nil {
		return nil, ioError("open range table", err)
	}
	table, err := ParseRangeTable(rf)
	rf.Close()
	if err != nil {
		return nil, err
	}
	background, ok := table.Material(BackgroundLabel)
	if !ok {
		return nil, configErrorf("range table %s has no entry for background label %d", rangePath, BackgroundLabel)
	}

	g := NewGrid()
	offset := h.Offset
	if err := g.Initialize(Params{
		Dimensions:         h.Dimensions,
		ElementSize:        h.ElementSpacing,
		Offset:             &offset,
		DataType:           h.ElementType,
		BackgroundMaterial: background,
	}); err != nil {
		return nil, err
	}
	for _, e := range table.Export() {
		if err := g.table.Record(e.Label, e.Material); err != nil {
			return nil, err
		}
	}

	dataPath := h.ElementDataFile
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(filepath.Dir(headerPath), dataPath)
	}
	if err := readPayload(g, dataPath, h.PayloadSize()); err != nil {
		return nil, err
	}
	for l := range Histogram(g) {
		if _, ok := g.table.Material(l); !ok {
			return nil, configErrorf("label %d in %s has no material in %s", l, dataPath, rangePath)
		}
	}
	return g, nil
}

func readPayload(g *Grid, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return ioError("open data", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return ioError("stat data", err)
	}
	if st.Size() != size {
		return configErrorf("data file %s has %d bytes, header declares %d", path, st.Size(), size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return ioError("read data", err)
	}
	n := g.dataType.Size()
	for i := range g.labels {
		v, err := g.dataType.get(buf[i*n : (i+1)*n])
		if err != nil {
			return err
		}
		g.labels[i] = v
	}
	return nil
}
