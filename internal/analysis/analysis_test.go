package analysis

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/san-kum/galaxysim/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generated(t *testing.T, kind config.Kind, n int) (*phase.Buffer, config.Params) {
	t.Helper()
	p := config.MustPreset(config.TierCompact, kind)
	buf, err := phase.New(n)
	require.NoError(t, err)
	require.NoError(t, scenario.Generate(kind, p, buf, rand.New(rand.NewSource(11))))
	return buf, p
}

func TestSummarize(t *testing.T) {
	buf, err := phase.New(100)
	require.NoError(t, err)
	for i := 0; i < buf.Capacity(); i++ {
		buf.SetSlot(i, [3]float32{2, 0, 0}, [3]float32{0, 3, 4})
	}

	s := Summarize(buf)
	assert.Equal(t, 100, s.Slots)
	assert.Equal(t, 14, s.Obscured)
	assert.InDelta(t, 2, s.CenterOfMass[0], 1e-12)
	assert.InDelta(t, 3, s.MeanVelocity[1], 1e-12)
	assert.InDelta(t, 5, s.MeanSpeed, 1e-12)
	assert.InDelta(t, 0, s.StdSpeed, 1e-12)
	assert.InDelta(t, 5, s.MaxSpeed, 1e-12)
	assert.InDelta(t, 2, s.MedianRadius, 1e-12)
	assert.InDelta(t, 2, s.RMSRadius, 1e-9)
	assert.InDelta(t, 100*12.5, s.KineticEnergy, 1e-9)
}

func TestSummarizeGalaxy(t *testing.T) {
	buf, p := generated(t, config.KindGalaxy, 5000)
	s := Summarize(buf)

	assert.InDelta(t, 0, s.CenterOfMass[0], 1)
	assert.InDelta(t, 0, s.CenterOfMass[1], 0.5)
	assert.LessOrEqual(t, s.MaxSpeed, p.Velocity+0.01)
	assert.Greater(t, s.MeanRadius, 0.0)
	assert.LessOrEqual(t, s.MedianRadius, p.Radius+p.Height)
}

func TestRotationCurveRises(t *testing.T) {
	buf, p := generated(t, config.KindGalaxy, 10000)
	shells := RadialProfile(buf, PlaneXZ, 10)
	require.Len(t, shells, 10)

	total := 0
	for _, sh := range shells {
		total += sh.Count
	}
	assert.Equal(t, buf.Capacity()-1, total)
	assert.InDelta(t, p.Radius, shells[9].Outer, 0.5)

	curve := RotationCurve(buf, PlaneXZ, 10)
	require.NotEmpty(t, curve.Speeds)
	assert.Less(t, curve.Speeds[0], curve.Speeds[len(curve.Speeds)-1])
	for _, sh := range shells {
		assert.Less(t, math.Abs(sh.MeanRadial), 0.01, "disk stars start on circular orbits")
	}
}

func TestUniverseIsExpanding(t *testing.T) {
	buf, p := generated(t, config.KindUniverse, 4000)
	for _, sh := range RadialProfile(buf, Sphere, 5) {
		if sh.Count == 0 {
			continue
		}
		mid := (sh.Inner + sh.Outer) / 2
		assert.InDelta(t, p.Pulse*mid, sh.MeanRadial, p.Pulse*(sh.Outer-sh.Inner))
		assert.Less(t, sh.MeanTangential, 1e-3)
		assert.Greater(t, sh.Density, 0.0)
	}
}

func TestRadialProfileEdgeCases(t *testing.T) {
	buf, err := phase.New(4)
	require.NoError(t, err)
	assert.Nil(t, RadialProfile(buf, PlaneXY, 0))

	shells := RadialProfile(buf, PlaneXY, 3)
	require.Len(t, shells, 3)
	assert.Equal(t, 3, shells[0].Count)
	assert.Equal(t, "xy", PlaneXY.String())
}

func TestProject(t *testing.T) {
	buf, err := phase.New(100)
	require.NoError(t, err)
	for i := 0; i < buf.Capacity(); i++ {
		x := float32(10)
		if i%2 == 0 {
			x = -10
		}
		buf.SetSlot(i, [3]float32{x, 0, 0}, [3]float32{})
	}

	proj := Project(buf, View{}, 40, 20)
	total := 0
	for _, c := range proj.Cells {
		total += c
	}
	assert.Equal(t, 100, total)
	assert.Equal(t, 50, proj.Max)

	hidden := Project(buf, View{HideObscured: true}, 40, 20)
	total = 0
	for _, c := range hidden.Cells {
		total += c
	}
	assert.Equal(t, 86, total)

	art := proj.ASCII("")
	lines := strings.Split(strings.TrimSuffix(art, "\n"), "\n")
	require.Len(t, lines, 20)
	for _, l := range lines {
		assert.Equal(t, 40, len([]rune(l)))
	}
	assert.Equal(t, 2, strings.Count(art, "@"))
}

func TestProjectRotated(t *testing.T) {
	buf, p := generated(t, config.KindGalaxy, 2000)

	// edge-on, a thin disk fills few rows
	edge := Project(buf, View{Extent: p.Radius}, 60, 30)
	face := Project(buf, View{Pitch: math.Pi / 2, Extent: p.Radius}, 60, 30)

	rows := func(pr *Projection) int {
		n := 0
		for r := 0; r < pr.Height; r++ {
			for c := 0; c < pr.Width; c++ {
				if pr.At(c, r) > 0 {
					n++
					break
				}
			}
		}
		return n
	}
	assert.Less(t, rows(edge), rows(face))
}
