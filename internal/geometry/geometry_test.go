package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square returns a unit-degree-scaled axis-aligned square as a
// one-polygon multi-polygon. Coordinates are lon/lat degrees.
func square(minX, minY, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{
		orb.Polygon{
			orb.Ring{
				{minX, minY},
				{minX + size, minY},
				{minX + size, minY + size},
				{minX, minY + size},
				{minX, minY},
			},
		},
	}
}

func TestUnion_DisjointKeepsBothParts(t *testing.T) {
	a := square(0, 0, 0.001)
	b := square(0.01, 0, 0.001)

	u, err := Union(a, b)
	require.NoError(t, err)
	assert.Len(t, u, 2)
}

func TestUnion_OverlappingMerges(t *testing.T) {
	a := square(0, 0, 0.002)
	b := square(0.001, 0, 0.002)

	u, err := Union(a, b)
	require.NoError(t, err)
	assert.Len(t, u, 1)

	// Union area equals sum minus overlap. The squares share a
	// full-height 0.001-wide strip.
	overlap := orb.MultiPolygon{
		orb.Polygon{
			orb.Ring{
				{0.001, 0},
				{0.002, 0},
				{0.002, 0.002},
				{0.001, 0.002},
				{0.001, 0},
			},
		},
	}
	want := AreaSqm(a) + AreaSqm(b) - AreaSqm(overlap)
	assert.InEpsilon(t, want, AreaSqm(u), 0.01)
}

func TestUnionAll_GroupingOrderInvariant(t *testing.T) {
	a := square(0, 0, 0.002)
	b := square(0.001, 0, 0.002)
	c := square(0.002, 0, 0.002)

	abc, err := UnionAll([]orb.MultiPolygon{a, b, c})
	require.NoError(t, err)

	cba, err := UnionAll([]orb.MultiPolygon{c, b, a})
	require.NoError(t, err)

	assert.InEpsilon(t, AreaSqm(abc), AreaSqm(cba), 1e-6)
	assert.Len(t, abc, 1)
	assert.Len(t, cba, 1)
}

func TestUnionAll_Empty(t *testing.T) {
	u, err := UnionAll(nil)
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(square(0, 0, 1)))
	assert.Error(t, Validate(orb.MultiPolygon{}))

	// Bowtie: self-intersecting ring.
	bowtie := orb.MultiPolygon{
		orb.Polygon{
			orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}},
		},
	}
	assert.Error(t, Validate(bowtie))
}

func TestRepair_Bowtie(t *testing.T) {
	bowtie := orb.MultiPolygon{
		orb.Polygon{
			orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}},
		},
	}

	repaired, err := Repair(bowtie)
	require.NoError(t, err)
	assert.NoError(t, Validate(repaired))
	assert.NotEmpty(t, repaired)
}

func TestBoundaryDistance(t *testing.T) {
	a := ProjectLocal(square(0, 0, 0.001), 0)
	near := ProjectLocal(square(0.0011, 0, 0.001), 0)
	far := ProjectLocal(square(0.01, 0, 0.001), 0)

	dNear, err := BoundaryDistance(a, near)
	require.NoError(t, err)
	assert.InDelta(t, 11.13, dNear, 0.5) // 0.0001 deg gap at the equator

	dFar, err := BoundaryDistance(a, far)
	require.NoError(t, err)
	assert.Greater(t, dFar, 900.0)

	dTouch, err := BoundaryDistance(a, a)
	require.NoError(t, err)
	assert.Zero(t, dTouch)

	dEmpty, err := BoundaryDistance(a, orb.MultiPolygon{})
	require.NoError(t, err)
	assert.True(t, math.IsInf(dEmpty, 1))
}

func TestAreaSqm(t *testing.T) {
	// ~111.32m x ~111.32m at the equator.
	got := AreaSqm(square(0, 0, 0.001))
	assert.InEpsilon(t, 111320.0*111320.0*0.001*0.001, got, 0.01)
}

func TestProjectLocal(t *testing.T) {
	mp := square(0, 0, 0.001)
	projected := ProjectLocal(mp, 0)

	// At the equator both axes scale by metersPerDegree.
	assert.InDelta(t, 111.32, projected[0][0][1][0], 0.01)
	assert.InDelta(t, 111.32, projected[0][0][2][1], 0.01)

	// At 60 degrees latitude the x axis shrinks by cos(60) = 0.5.
	at60 := ProjectLocal(mp, 60)
	assert.InDelta(t, 55.66, at60[0][0][1][0], 0.01)

	// Input untouched.
	assert.Equal(t, 0.001, mp[0][0][1][0])
}
