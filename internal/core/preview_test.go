package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPreview(t *testing.T) {
	ds := mustDataset(t,
		num("n", 4, 1, nil, 3, 2, 10, 1),
		text("s", "a", "b", "a", nil, "c", "d", "e"),
	)

	p := BuildPreview(ds, 0)
	assert.Equal(t, []string{"n", "s"}, p.Columns)
	assert.Equal(t, 7, p.TotalRows)
	assert.Equal(t, DefaultPreviewRows, p.ShownRows())
	assert.Equal(t, []string{MissingMark, "a"}, p.Rows[2])
	assert.Equal(t, MissingMark, p.Rows[3][1], "text cells are marked too")

	require.Len(t, p.Profiles, 2)
	n := p.Profiles[0]
	assert.Equal(t, "numeric", n.Kind)
	assert.Equal(t, 1, n.Missing)
	assert.Equal(t, 5, n.Distinct)
	require.NotNil(t, n.Min)
	assert.Equal(t, 1.0, *n.Min)
	assert.Equal(t, 10.0, *n.Max)
	assert.InDelta(t, 21.0/6.0, *n.Mean, 1e-9)
	assert.Equal(t, 2.5, *n.Median)

	s := p.Profiles[1]
	assert.Equal(t, "text", s.Kind)
	assert.Equal(t, 5, s.Distinct)
	assert.Nil(t, s.Min)
}

func TestBuildPreview_SmallAndEmpty(t *testing.T) {
	ds := mustDataset(t, num("n", 1, 2))
	assert.Equal(t, 2, BuildPreview(ds, 10).ShownRows())

	empty := mustDataset(t, num("n", nil, nil))
	p := BuildPreview(empty, 3)
	assert.Nil(t, p.Profiles[0].Mean)
	assert.Equal(t, 2, p.Profiles[0].Missing)
}
