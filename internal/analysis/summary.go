package analysis

import (
	"math"
	"sort"

	"github.com/san-kum/galaxysim/internal/phase"
	"gonum.org/v1/gonum/stat"
)

// Summary holds whole-buffer statistics. Every slot counts, padding included.
type Summary struct {
	Slots    int
	Obscured int

	CenterOfMass [3]float64
	MeanVelocity [3]float64

	MeanSpeed    float64
	StdSpeed     float64
	MaxSpeed     float64
	MeanRadius   float64
	MedianRadius float64
	RMSRadius    float64

	// KineticEnergy assumes unit mass per slot.
	KineticEnergy float64
}

func Summarize(buf *phase.Buffer) Summary {
	n := buf.Capacity()
	s := Summary{Slots: n}
	if n == 0 {
		return s
	}

	speeds := make([]float64, n)
	radii := make([]float64, n)
	var com, mv [3]float64
	for i := 0; i < n; i++ {
		x, y, z := buf.Position(i)
		vx, vy, vz := buf.Velocity(i)
		p := [3]float64{float64(x), float64(y), float64(z)}
		v := [3]float64{float64(vx), float64(vy), float64(vz)}
		for c := 0; c < 3; c++ {
			com[c] += p[c]
			mv[c] += v[c]
		}
		v2 := v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
		speeds[i] = math.Sqrt(v2)
		radii[i] = math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
		s.KineticEnergy += 0.5 * v2
		if buf.Obscured(i) {
			s.Obscured++
		}
	}
	for c := 0; c < 3; c++ {
		s.CenterOfMass[c] = com[c] / float64(n)
		s.MeanVelocity[c] = mv[c] / float64(n)
	}

	s.MeanSpeed, s.StdSpeed = stat.MeanStdDev(speeds, nil)
	if n < 2 {
		s.StdSpeed = 0
	}
	for _, v := range speeds {
		s.MaxSpeed = math.Max(s.MaxSpeed, v)
	}

	s.MeanRadius = stat.Mean(radii, nil)
	s.RMSRadius = math.Sqrt(stat.Moment(2, radii, nil) + s.MeanRadius*s.MeanRadius)
	sort.Float64s(radii)
	s.MedianRadius = stat.Quantile(0.5, stat.Empirical, radii, nil)
	return s
}
