package scenario

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

func newBuffer(t *testing.T, n int) *phase.Buffer {
	t.Helper()
	buf, err := phase.New(n)
	require.NoError(t, err)
	return buf
}

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func norm(x, y, z float32) float64 {
	return math.Sqrt(float64(x)*float64(x) + float64(y)*float64(y) + float64(z)*float64(z))
}

func TestGalaxy(t *testing.T) {
	p := config.MustPreset(config.TierCompact, config.KindGalaxy)
	buf := newBuffer(t, 2500)
	require.NoError(t, Generate(config.KindGalaxy, p, buf, seeded(1)))

	x, y, z := buf.Position(0)
	vx, vy, vz := buf.Velocity(0)
	assert.Equal(t, [6]float32{}, [6]float32{x, y, z, vx, vy, vz}, "central body must sit still at the origin")

	for i := 1; i < buf.Capacity(); i++ {
		x, y, z := buf.Position(i)
		vx, vy, vz := buf.Velocity(i)

		planar := math.Hypot(float64(x), float64(z))
		require.LessOrEqual(t, planar, p.Radius+1e-4, "slot %d outside disk", i)
		require.LessOrEqual(t, math.Abs(float64(y)), p.Height+1e-4, "slot %d above disk", i)

		// tangential up to jitter: v·r stays tiny compared to |v||r|
		dot := float64(vx)*float64(x) + float64(vz)*float64(z)
		require.LessOrEqual(t, math.Abs(dot), 0.0015*planar+1e-3, "slot %d not tangential", i)
		require.LessOrEqual(t, math.Abs(float64(vy)), jitter*verticalShare+1e-9)
		require.LessOrEqual(t, math.Hypot(float64(vx), float64(vz)), p.Velocity+0.002)
	}
}

func TestGalaxy_RotationCurveRises(t *testing.T) {
	p := config.MustPreset(config.TierFull, config.KindGalaxy)
	buf := newBuffer(t, 10000)
	require.NoError(t, Generate(config.KindGalaxy, p, buf, seeded(2)))

	var inner, outer []float64
	for i := 1; i < buf.Capacity(); i++ {
		x, _, z := buf.Position(i)
		vx, _, vz := buf.Velocity(i)
		r := math.Hypot(float64(x), float64(z))
		v := math.Hypot(float64(vx), float64(vz))
		switch {
		case r < 0.05*p.Radius:
			inner = append(inner, v)
		case r > 0.5*p.Radius:
			outer = append(outer, v)
		}
	}
	require.NotEmpty(t, inner)
	require.NotEmpty(t, outer)
	assert.Less(t, mean(inner), mean(outer))
}

func TestUniverse(t *testing.T) {
	for _, tier := range []config.Tier{config.TierCompact, config.TierFull} {
		p := config.MustPreset(tier, config.KindUniverse)
		p.Count = 5000
		buf := newBuffer(t, p.Count)
		require.NoError(t, Generate(config.KindUniverse, p, buf, seeded(3)))

		pulse := float32(p.Pulse)
		for i := 0; i < buf.Capacity(); i++ {
			x, y, z := buf.Position(i)
			vx, vy, vz := buf.Velocity(i)

			require.LessOrEqual(t, norm(x, y, z), p.Radius*(1+1e-6), "slot %d outside ball", i)
			require.Equal(t, pulse*x, vx, "slot %d", i)
			require.Equal(t, pulse*y, vy, "slot %d", i)
			require.Equal(t, pulse*z, vz, "slot %d", i)
		}

		// no central body: slot 0 is an ordinary sample
		x, y, z := buf.Position(0)
		assert.NotEqual(t, [3]float32{}, [3]float32{x, y, z})
	}
}

func TestCollision(t *testing.T) {
	p := config.MustPreset(config.TierCompact, config.KindCollision)
	buf := newBuffer(t, 10000)
	require.NoError(t, Generate(config.KindCollision, p, buf, seeded(4)))

	x, y, z := buf.Position(0)
	vx, vy, vz := buf.Velocity(0)
	assert.Equal(t, [6]float32{}, [6]float32{x, y, z, vx, vy, vz})

	var evenSum, oddSum r3.Vec
	var evenN, oddN float64
	for i := 1; i < buf.Capacity(); i++ {
		x, y, z := buf.Position(i)
		vx, vy, vz := buf.Velocity(i)
		pos := r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}
		vel := r3.Vec{X: float64(vx), Y: float64(vy), Z: float64(vz)}

		if i%2 == 0 {
			require.LessOrEqual(t, math.Hypot(pos.X, pos.Z), p.Radius+1e-4, "even slot %d", i)
			require.LessOrEqual(t, math.Abs(pos.Y), p.Height+1e-4, "even slot %d", i)
			evenSum = r3.Add(evenSum, pos)
			evenN++
			continue
		}

		// undo the tilt on both position and velocity: the slot must look
		// like an untilted xy disk around the offset
		local := r3.Sub(Untilt(pos), CollisionOffset)
		require.LessOrEqual(t, math.Hypot(local.X, local.Y), p.Radius+1e-3, "odd slot %d", i)
		require.LessOrEqual(t, math.Abs(local.Z), p.Height+1e-3, "odd slot %d", i)

		lv := Untilt(vel)
		require.LessOrEqual(t, math.Abs(lv.Z), jitter*verticalShare+1e-6, "odd slot %d velocity not in disk plane", i)
		dot := lv.X*local.X + lv.Y*local.Y
		require.LessOrEqual(t, math.Abs(dot), 0.0015*math.Hypot(local.X, local.Y)+1e-3, "odd slot %d not tangential", i)

		oddSum = r3.Add(oddSum, pos)
		oddN++
	}

	evenMean := r3.Scale(1/evenN, evenSum)
	assert.InDelta(t, 0, evenMean.X, 3)
	assert.InDelta(t, 0, evenMean.Z, 3)

	want := r3.NewRotation(CollisionTilt, r3.Vec{X: 1}).Rotate(CollisionOffset)
	oddMean := r3.Scale(1/oddN, oddSum)
	assert.InDelta(t, 200, oddMean.X, 3)
	assert.InDelta(t, 200*math.Cos(math.Pi/4)+10*math.Sin(math.Pi/4), oddMean.Y, 3)
	assert.InDelta(t, want.Y, oddMean.Y, 3)
	assert.InDelta(t, want.Z, oddMean.Z, 3)
}

func TestObscuredFlags(t *testing.T) {
	for _, kind := range config.Kinds {
		p := config.MustPreset(config.TierCompact, kind)
		buf := newBuffer(t, 1000)
		require.NoError(t, Generate(kind, p, buf, seeded(5)))

		boundary := int(math.Floor(0.85 * float64(buf.Capacity())))
		for i := 0; i < buf.Capacity(); i++ {
			require.Equal(t, i > boundary, buf.Obscured(i), "%s slot %d", kind, i)
		}
	}
}

func TestPaddingGenerated(t *testing.T) {
	p := config.MustPreset(config.TierCompact, config.KindUniverse)
	buf := newBuffer(t, 10)
	require.Equal(t, 6, buf.Padding())
	require.NoError(t, Generate(config.KindUniverse, p, buf, seeded(6)))

	for i := buf.Requested; i < buf.Capacity(); i++ {
		x, y, z := buf.Position(i)
		assert.NotEqual(t, [3]float32{}, [3]float32{x, y, z}, "padding slot %d left empty", i)
	}
}

func TestOverwrite(t *testing.T) {
	p := config.MustPreset(config.TierCompact, config.KindGalaxy)
	buf := newBuffer(t, 100)
	for i := range buf.Positions {
		buf.Positions[i] = 12345
	}
	require.NoError(t, Generate(config.KindGalaxy, p, buf, seeded(7)))
	for _, v := range buf.Positions {
		require.NotEqual(t, float32(12345), v)
	}
}

func TestSamplingExhausted(t *testing.T) {
	p := config.MustPreset(config.TierCompact, config.KindGalaxy)
	buf := newBuffer(t, 4)

	// 0.99 maps to 0.98 on every axis, always outside the disk
	err := Generate(config.KindGalaxy, p, buf, constSource(0.99))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSamplingExhausted))

	var se *SamplingError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Slot)
	assert.Equal(t, MaxAttempts, se.Attempts)

	err = Generate(config.KindUniverse, p, buf, constSource(0.99))
	assert.True(t, errors.Is(err, ErrSamplingExhausted))
}

func TestUnknownKind(t *testing.T) {
	p := config.MustPreset(config.TierCompact, config.KindGalaxy)
	buf := newBuffer(t, 4)
	err := Generate(config.Kind(0), p, buf, seeded(1))
	assert.True(t, errors.Is(err, config.ErrUnknownKind))
}

func TestFill_Deterministic(t *testing.T) {
	p := config.MustPreset(config.TierCompact, config.KindCollision)

	a := newBuffer(t, 20000)
	b := newBuffer(t, 20000)
	require.NoError(t, Fill(config.KindCollision, p, a, 42, 1))
	require.NoError(t, Fill(config.KindCollision, p, b, 42, 8))
	assert.Equal(t, a.Positions, b.Positions)
	assert.Equal(t, a.Velocities, b.Velocities)

	c := newBuffer(t, 20000)
	require.NoError(t, Fill(config.KindCollision, p, c, 43, 8))
	assert.NotEqual(t, a.Positions, c.Positions)

	x, y, z := a.Position(0)
	assert.Equal(t, [3]float32{}, [3]float32{x, y, z})
}

func TestFill_MatchesGenerateForOneChunk(t *testing.T) {
	p := config.MustPreset(config.TierCompact, config.KindGalaxy)

	a := newBuffer(t, 900)
	require.NoError(t, Fill(config.KindGalaxy, p, a, 9, 4))

	b := newBuffer(t, 900)
	require.NoError(t, Generate(config.KindGalaxy, p, b, seeded(chunkSeed(9, 0))))
	assert.Equal(t, a.Positions, b.Positions)
}

func mean(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
