package volume

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		volume, rng string
		want        Paths
		wantErr     bool
	}{
		{
			name:   "bare names",
			volume: "data/phantom", rng: "data/range_phantom",
			want: Paths{Header: "data/phantom.mhd", Data: "data/phantom.raw", Range: "data/range_phantom.txt"},
		},
		{
			name:   "explicit extensions",
			volume: "out/p.mhd", rng: "out/r.dat",
			want: Paths{Header: "out/p.mhd", Data: "out/p.raw", Range: "out/r.dat"},
		},
		{name: "missing volume", volume: "", rng: "r", wantErr: true},
		{name: "missing range", volume: "v", rng: " ", wantErr: true},
		{
			name:   "other extension is part of the base name",
			volume: "data/phantom.v2", rng: "data/r.txt",
			want: Paths{Header: "data/phantom.v2.mhd", Data: "data/phantom.v2.raw", Range: "data/r.txt"},
		},
		{
			name:   "upper case mhd",
			volume: "P.MHD", rng: "r",
			want: Paths{Header: "P.MHD", Data: "P.raw", Range: "r.txt"},
		},
		{name: "collision", volume: "v", rng: "v.mhd", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolvePaths(tt.volume, tt.rng)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	for _, dt := range []DataType{Char, UChar, Short, UShort, Int, UInt, Float} {
		t.Run(dt.String(), func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()

			g := NewGrid()
			require.NoError(t, g.Initialize(Params{
				Dimensions:         [3]int{5, 4, 3},
				ElementSize:        [3]float64{0.25, 0.5, 1.5},
				DataType:           dt,
				BackgroundMaterial: "Air",
			}))
			require.NoError(t, g.SetLabel(Index{1, 2, 0}, 1))
			require.NoError(t, g.SetLabel(Index{4, 3, 2}, dt.MaxLabel()))
			require.NoError(t, g.Table().Record(1, "Water"))
			require.NoError(t, g.Table().Record(dt.MaxLabel(), "Bone"))

			paths, err := Write(g, filepath.Join(dir, "nested", "phantom"), filepath.Join(dir, "range"))
			require.NoError(t, err)
			assert.FileExists(t, paths.Header)
			assert.FileExists(t, paths.Data)
			assert.FileExists(t, paths.Range)

			info, err := os.Stat(paths.Data)
			require.NoError(t, err)
			assert.Equal(t, int64(60*dt.Size()), info.Size())

			back, err := Read(paths.Header, paths.Range)
			require.NoError(t, err)
			assert.Equal(t, g.Dimensions(), back.Dimensions())
			assert.Equal(t, g.ElementSize(), back.ElementSize())
			assert.Equal(t, g.Offset(), back.Offset())
			assert.Equal(t, dt, back.DataType())
			assert.Equal(t, g.Labels(), back.Labels())
			if diff := cmp.Diff(g.Table().Export(), back.Table().Export()); diff != "" {
				t.Errorf("range table mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteHeaderAndRangeContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	g := newTestGrid(t, 2, 2, 2, 0.5)
	require.NoError(t, g.SetLabel(Index{0, 0, 0}, 2))
	require.NoError(t, g.Table().Record(2, "Calcium"))
	require.NoError(t, g.SetLabel(Index{1, 0, 0}, 1))
	require.NoError(t, g.Table().Record(1, "Water"))

	paths, err := Write(g, filepath.Join(dir, "p.mhd"), filepath.Join(dir, "r"))
	require.NoError(t, err)

	header, err := os.ReadFile(paths.Header)
	require.NoError(t, err)
	want := strings.Join([]string{
		"ObjectType = Image",
		"NDims = 3",
		"BinaryData = True",
		"BinaryDataByteOrderMSB = False",
		"CompressedData = False",
		"Offset = -0.5 -0.5 -0.5",
		"ElementSpacing = 0.5 0.5 0.5",
		"DimSize = 2 2 2",
		"ElementType = MET_USHORT",
		"ElementDataFile = p.raw",
		"",
	}, "\n")
	assert.Equal(t, want, string(header))

	ranges, err := os.ReadFile(paths.Range)
	require.NoError(t, err)
	assert.Equal(t, "0 Air\n1 Water\n2 Calcium\n", string(ranges))

	raw, err := os.ReadFile(paths.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 1, 0}, raw[:4], "x varies fastest, little-endian")
}

func TestWritePrunesOrphans(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	g := newTestGrid(t, 2, 1, 1, 1)
	require.NoError(t, g.SetLabel(Index{0, 0, 0}, 1))
	require.NoError(t, g.Table().Record(1, "Water"))
	require.NoError(t, g.SetLabel(Index{1, 0, 0}, 2))
	require.NoError(t, g.Table().Record(2, "Bone"))
	// label 0 no longer occurs but stays; label 1 is fully overwritten
	require.NoError(t, g.SetLabel(Index{0, 0, 0}, 2))

	paths, err := Write(g, filepath.Join(dir, "p"), filepath.Join(dir, "r"))
	require.NoError(t, err)
	ranges, err := os.ReadFile(paths.Range)
	require.NoError(t, err)
	assert.Equal(t, "0 Air\n2 Bone\n", string(ranges))
}

func TestWriteUnmappedLabel(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	g := newTestGrid(t, 2, 2, 2, 1)
	require.NoError(t, g.SetLabel(Index{0, 0, 0}, 9))
	_, err := Write(g, filepath.Join(dir, "p"), filepath.Join(dir, "r"))
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NoFileExists(t, filepath.Join(dir, "p.mhd"))
	assert.NoFileExists(t, filepath.Join(dir, "p.raw"))
}

func TestWriteLabelTooLargeForDataType(t *testing.T) {
	t.Parallel()

	newUChar := func(t *testing.T) *Grid {
		t.Helper()
		g := NewGrid()
		require.NoError(t, g.Initialize(Params{
			Dimensions:         [3]int{2, 1, 1},
			ElementSize:        [3]float64{1, 1, 1},
			DataType:           UChar,
			BackgroundMaterial: "Air",
		}))
		return g
	}

	t.Run("range entry", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		g := newUChar(t)
		require.NoError(t, g.SetLabel(Index{1, 0, 0}, 44))
		require.NoError(t, g.Table().Record(44, "Water"))
		require.NoError(t, g.Table().Record(300, "Bone"))
		// 300 has no voxels and would be pruned; make it present.
		g.labels[0] = 300

		_, err := Write(g, filepath.Join(dir, "p"), filepath.Join(dir, "r"))
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "300")
		assert.NoFileExists(t, filepath.Join(dir, "p.raw"))
	})

	t.Run("grid label without entry", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		g := newUChar(t)
		g.labels[1] = 256

		_, err := Write(g, filepath.Join(dir, "p"), filepath.Join(dir, "r"))
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "exceeds MET_UCHAR")
		assert.NoFileExists(t, filepath.Join(dir, "p.raw"))
	})
}

func TestWriteUninitialized(t *testing.T) {
	t.Parallel()

	_, err := Write(NewGrid(), "p", "r")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestWriteUnwritableRangeKeepsVolume(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	g := newTestGrid(t, 2, 2, 2, 1)
	paths, err := Write(g, filepath.Join(dir, "p"), filepath.Join(dir, "r"))
	require.NoError(t, err)
	before, err := os.ReadFile(paths.Data)
	require.NoError(t, err)
	headerBefore, err := os.ReadFile(paths.Header)
	require.NoError(t, err)

	// A regular file where the range directory should be.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	require.NoError(t, g.SetLabel(Index{1, 1, 1}, 3))
	require.NoError(t, g.Table().Record(3, "Bone"))
	_, err = Write(g, filepath.Join(dir, "p"), filepath.Join(blocker, "sub", "r"))
	assert.ErrorIs(t, err, ErrIO)

	after, err := os.ReadFile(paths.Data)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	headerAfter, err := os.ReadFile(paths.Header)
	require.NoError(t, err)
	assert.Equal(t, headerBefore, headerAfter)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temporary file left behind")
	}
}

func TestWriteRangeDirectoryKeepsVolume(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	g := newTestGrid(t, 2, 2, 2, 1)
	paths, err := Write(g, filepath.Join(dir, "p"), filepath.Join(dir, "r"))
	require.NoError(t, err)
	before, err := os.ReadFile(paths.Data)
	require.NoError(t, err)
	headerBefore, err := os.ReadFile(paths.Header)
	require.NoError(t, err)

	// The range destination exists as a non-empty directory, so only the
	// final rename can fail.
	rangeDir := filepath.Join(dir, "rangedir.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(rangeDir, "keep"), 0o755))

	require.NoError(t, g.SetLabel(Index{1, 1, 1}, 3))
	require.NoError(t, g.Table().Record(3, "Bone"))
	_, err = Write(g, filepath.Join(dir, "p"), rangeDir)
	assert.ErrorIs(t, err, ErrIO)

	after, err := os.ReadFile(paths.Data)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	headerAfter, err := os.ReadFile(paths.Header)
	require.NoError(t, err)
	assert.Equal(t, headerBefore, headerAfter)
	assert.DirExists(t, filepath.Join(rangeDir, "keep"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temporary file left behind")
	}
}

func TestReadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	g := newTestGrid(t, 2, 2, 2, 1)
	paths, err := Write(g, filepath.Join(dir, "p"), filepath.Join(dir, "r"))
	require.NoError(t, err)

	t.Run("missing header", func(t *testing.T) {
		_, err := Read(filepath.Join(dir, "nope.mhd"), paths.Range)
		assert.ErrorIs(t, err, ErrIO)
	})

	t.Run("no background entry", func(t *testing.T) {
		rng := filepath.Join(dir, "nobg.txt")
		require.NoError(t, os.WriteFile(rng, []byte("1 Water\n"), 0o644))
		_, err := Read(paths.Header, rng)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("truncated payload", func(t *testing.T) {
		sub := filepath.Join(dir, "trunc")
		p2, err := Write(g, filepath.Join(sub, "p"), filepath.Join(sub, "r"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(p2.Data, []byte{0, 0}, 0o644))
		_, err = Read(p2.Header, p2.Range)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("label without material", func(t *testing.T) {
		sub := filepath.Join(dir, "unmapped")
		p2, err := Write(g, filepath.Join(sub, "p"), filepath.Join(sub, "r"))
		require.NoError(t, err)
		raw, err := os.ReadFile(p2.Data)
		require.NoError(t, err)
		raw[0] = 7
		require.NoError(t, os.WriteFile(p2.Data, raw, 0o644))
		_, err = Read(p2.Header, p2.Range)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestParseHeaderRejects(t *testing.T) {
	t.Parallel()

	base := "NDims = 3\nDimSize = 2 2 2\nElementType = MET_UCHAR\nElementDataFile = p.raw\n"
	tests := map[string]string{
		"big endian":   base + "BinaryDataByteOrderMSB = True\n",
		"compressed":   base + "CompressedData = True\n",
		"2D":           strings.Replace(base, "NDims = 3", "NDims = 2", 1),
		"local data":   strings.Replace(base, "p.raw", "LOCAL", 1),
		"missing type": strings.Replace(base, "ElementType = MET_UCHAR\n", "", 1),
		"bad dims":     strings.Replace(base, "2 2 2", "2 2", 1),
		"no separator": base + "garbage\n",
		"unknown type": strings.Replace(base, "MET_UCHAR", "MET_DOUBLE", 1),
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseHeader(strings.NewReader(input))
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	h, err := ParseHeader(strings.NewReader(base))
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 1, 1}, h.ElementSpacing)
	assert.Equal(t, int64(8), h.PayloadSize())
}
