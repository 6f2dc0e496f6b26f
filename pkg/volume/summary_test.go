package volume

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, 2, 2, 2, 0.5)
	require.NoError(t, g.SetLabel(Index{0, 0, 0}, 1))
	require.NoError(t, g.SetLabel(Index{1, 0, 0}, 1))
	require.NoError(t, g.Table().Record(1, "Water"))

	want := []LabelStat{
		{Label: 0, Material: "Air", Voxels: 6, Volume: 0.75},
		{Label: 1, Material: "Water", Voxels: 2, Volume: 0.25},
	}
	if diff := cmp.Diff(want, Summary(g)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestMaterialIndices(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, 4, 1, 1, 1)
	require.NoError(t, g.SetLabel(Index{1, 0, 0}, 5))
	require.NoError(t, g.SetLabel(Index{2, 0, 0}, 2))
	require.NoError(t, g.SetLabel(Index{3, 0, 0}, 9))
	require.NoError(t, g.Table().Record(5, "Water"))
	require.NoError(t, g.Table().Record(2, "Bone"))
	require.NoError(t, g.Table().Record(9, "Water"))

	idx, materials, err := MaterialIndices(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"Air", "Bone", "Water"}, materials)
	assert.Equal(t, []int{0, 2, 1, 2}, idx)

	require.NoError(t, g.SetLabel(Index{0, 0, 0}, 77))
	_, _, err = MaterialIndices(g)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, _, err = MaterialIndices(NewGrid())
	assert.ErrorIs(t, err, ErrConfiguration)
}
