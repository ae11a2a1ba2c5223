package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LocalInk/internal/geom"
)

func TestHitIDs(t *testing.T) {
	ids := []string{"a", "b", "c"}

	got, err := hitIDs(ids, []int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got)

	got, err = hitIDs(ids, []int{})
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range [][]int{{3}, {-1}, {0, 7}} {
		_, err := hitIDs(ids, bad)
		assert.Error(t, err, "%v", bad)
	}

	_, err = hitIDs(nil, []int{0})
	assert.Error(t, err)
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint(" 12.5, -3 ")
	require.NoError(t, err)
	assert.Equal(t, geom.Pt(12.5, -3), p)

	for _, bad := range []string{"", "1", "x,2", "1,y"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}
