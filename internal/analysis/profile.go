package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/galaxysim/internal/phase"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Plane names the disk plane a profile is measured in.
type Plane int

const (
	// PlaneXZ is the plane single galaxies are generated in.
	PlaneXZ Plane = iota
	PlaneXY
	// Sphere measures full 3D radius, for the universe scenario.
	Sphere
)

func (p Plane) String() string {
	switch p {
	case PlaneXZ:
		return "xz"
	case PlaneXY:
		return "xy"
	case Sphere:
		return "sphere"
	}
	return fmt.Sprintf("plane(%d)", int(p))
}

// polar returns the in-plane radius of slot i and its tangential and radial
// speed. For Sphere the tangential speed is the speed perpendicular to the
// radius vector.
func (p Plane) polar(buf *phase.Buffer, i int) (r, vt, vr float64) {
	x, y, z := buf.Position(i)
	vx, vy, vz := buf.Velocity(i)

	var a, b, va, vb float64
	switch p {
	case PlaneXY:
		a, b, va, vb = float64(x), float64(y), float64(vx), float64(vy)
	case Sphere:
		pos := []float64{float64(x), float64(y), float64(z)}
		vel := []float64{float64(vx), float64(vy), float64(vz)}
		r = floats.Norm(pos, 2)
		speed := floats.Norm(vel, 2)
		if r == 0 {
			return 0, speed, 0
		}
		vr = floats.Dot(pos, vel) / r
		return r, math.Sqrt(math.Max(0, speed*speed-vr*vr)), vr
	default:
		a, b, va, vb = float64(x), float64(z), float64(vx), float64(vz)
	}

	r = math.Hypot(a, b)
	if r == 0 {
		return 0, math.Hypot(va, vb), 0
	}
	vr = (a*va + b*vb) / r
	vt = math.Abs(a*vb-b*va) / r
	return r, vt, vr
}

// Shell is one radial bin.
type Shell struct {
	Inner, Outer float64
	Count        int
	// Density is count per unit area (per unit volume for Sphere).
	Density        float64
	MeanTangential float64
	MeanRadial     float64
}

// RadialProfile bins every slot but the central one into equal-width shells
// out to the largest radius present.
func RadialProfile(buf *phase.Buffer, plane Plane, bins int) []Shell {
	if bins <= 0 || buf.Capacity() < 2 {
		return nil
	}

	n := buf.Capacity() - 1
	type sample struct{ r, vt, vr float64 }
	samples := make([]sample, n)
	radii := make([]float64, n)
	for i := range samples {
		r, vt, vr := plane.polar(buf, i+1)
		samples[i] = sample{r, vt, vr}
		radii[i] = r
	}
	sort.Slice(samples, func(a, b int) bool { return samples[a].r < samples[b].r })
	sort.Float64s(radii)

	maxR := radii[n-1]
	if maxR == 0 {
		maxR = 1
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, 0, maxR)
	// the last divider is exclusive in stat.Histogram
	dividers[bins] = math.Nextafter(maxR, math.Inf(1))

	counts := stat.Histogram(nil, dividers, radii, nil)

	shells := make([]Shell, bins)
	lo := 0
	for b := range shells {
		c := int(counts[b])
		sh := Shell{Inner: dividers[b], Outer: dividers[b+1], Count: c}
		if c > 0 {
			vts := make([]float64, c)
			vrs := make([]float64, c)
			for j := 0; j < c; j++ {
				vts[j] = samples[lo+j].vt
				vrs[j] = samples[lo+j].vr
			}
			sh.MeanTangential = stat.Mean(vts, nil)
			sh.MeanRadial = stat.Mean(vrs, nil)
		}
		sh.Density = float64(c) / shellMeasure(plane, sh.Inner, sh.Outer)
		shells[b] = sh
		lo += c
	}
	return shells
}

func shellMeasure(p Plane, inner, outer float64) float64 {
	if p == Sphere {
		return 4.0 / 3.0 * math.Pi * (outer*outer*outer - inner*inner*inner)
	}
	return math.Pi * (outer*outer - inner*inner)
}

// Curve is a rotation curve sampled at shell midpoints.
type Curve struct {
	Radii  []float64
	Speeds []float64
}

// RotationCurve returns the mean tangential speed per shell, skipping empty
// shells.
func RotationCurve(buf *phase.Buffer, plane Plane, bins int) Curve {
	var c Curve
	for _, sh := range RadialProfile(buf, plane, bins) {
		if sh.Count == 0 {
			continue
		}
		c.Radii = append(c.Radii, (sh.Inner+sh.Outer)/2)
		c.Speeds = append(c.Speeds, sh.MeanTangential)
	}
	return c
}
