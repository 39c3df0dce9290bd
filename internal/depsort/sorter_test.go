package depsort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backy/internal/backyerrors"
)

func TestSortScenarioS3(t *testing.T) {
	deps := Graph{
		"A": {"B", "C"},
		"B": {"D"},
		"C": {"D"},
		"D": {},
	}
	got, err := Sort(deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "B", "C", "A"}, got)
}

func TestSortEveryPrerequisiteBeforeDependent(t *testing.T) {
	deps := Graph{
		"views":      {"tables"},
		"data":       {"tables"},
		"tables":     {},
		"procedures": {"tables", "views"},
	}
	got, err := Sort(deps)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	pos := map[string]int{}
	for i, n := range got {
		pos[n] = i
	}
	assert.Less(t, pos["tables"], pos["views"])
	assert.Less(t, pos["tables"], pos["data"])
	assert.Less(t, pos["tables"], pos["procedures"])
	assert.Less(t, pos["views"], pos["procedures"])
}

func TestSortImplicitRoot(t *testing.T) {
	// "parent" never appears as a key, only as a referenced prerequisite.
	deps := Graph{"child": {"parent"}}
	got, err := Sort(deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"parent", "child"}, got)
}

func TestSortDetectsCycle(t *testing.T) {
	deps := Graph{"a": {"b"}, "b": {"a"}}
	_, err := Sort(deps)
	require.Error(t, err)
	berr, ok := err.(*backyerrors.Error)
	require.True(t, ok)
	assert.Equal(t, backyerrors.KindCycleDetected, berr.Kind)
}

func TestSortOrderedPreservesCallerFIFO(t *testing.T) {
	deps := Graph{
		"x": {},
		"y": {},
		"z": {},
	}
	got, err := SortOrdered(deps, []string{"z", "y", "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, got)
}
