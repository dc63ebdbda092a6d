package scenario

import "math"

// symmetric draws uniformly from [-1, 1).
func symmetric(src Source) float64 {
	return src.Float64()*2 - 1
}

// sampleDisk draws a point uniformly inside the unit disk by rejection and
// returns its coordinates and distance from the centre.
func sampleDisk(src Source) (a, b, r float64, ok bool) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		a = symmetric(src)
		b = symmetric(src)
		rr := a*a + b*b
		if rr <= 1 {
			return a, b, math.Sqrt(rr), true
		}
	}
	return 0, 0, 0, false
}

// sampleBall draws a point uniformly inside the unit ball by rejection.
func sampleBall(src Source) (x, y, z float64, ok bool) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		x = symmetric(src)
		y = symmetric(src)
		z = symmetric(src)
		if x*x+y*y+z*z <= 1 {
			return x, y, z, true
		}
	}
	return 0, 0, 0, false
}
