// Package scenario synthesises the initial phase-space distribution for each
// simulation kind and writes it into a [phase.Buffer].
//
//   - single galaxy: a rotating disk around a central massive body in slot 0
//   - universe: a uniform ball with a radially outward (Hubble-like) velocity field
//   - collision: two interleaved disks, the odd one offset and tilted by -45°
//
// Randomness is always supplied by the caller. [Generate] draws from a single
// [Source]; [Fill] runs the same algorithm over fixed chunks, each with its
// own generator derived from a seed.
package scenario

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/galaxysim/internal/compute"
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MaxAttempts caps the draws of one rejection sampler.
	MaxAttempts = 1000

	// ChunkSize is the span of slots filled from one derived generator.
	ChunkSize = 4096

	jitter        = 0.001
	verticalShare = 0.05
	speedExponent = 0.2
)

var (
	// CollisionOffset is where the second galaxy is centred before tilting.
	CollisionOffset = r3.Vec{X: 200, Y: 200, Z: 10}

	// CollisionTilt is the angle of the second galaxy about the x axis.
	CollisionTilt = -math.Pi / 4

	tilt = r3.NewRotation(CollisionTilt, r3.Vec{X: 1})
)

// Source is the randomness a generator draws from; *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Generate overwrites every slot of buf, padding included, with a fresh
// sample of the given scenario.
func Generate(kind config.Kind, p config.Params, buf *phase.Buffer, src Source) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", config.ErrUnknownKind, int(kind))
	}
	return fillRange(kind, p, buf, src, 0, buf.Capacity())
}

// Fill is Generate split across workers. The output depends only on seed, not
// on the number of workers.
func Fill(kind config.Kind, p config.Params, buf *phase.Buffer, seed int64, workers int) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", config.ErrUnknownKind, int(kind))
	}
	return compute.ForEachChunk(buf.Capacity(), ChunkSize, workers, func(index, start, end int) error {
		src := rand.New(rand.NewSource(chunkSeed(seed, index)))
		return fillRange(kind, p, buf, src, start, end)
	})
}

func chunkSeed(seed int64, index int) int64 {
	return seed ^ (int64(index+1) * 1000003)
}

func fillRange(kind config.Kind, p config.Params, buf *phase.Buffer, src Source, start, end int) error {
	for i := start; i < end; i++ {
		pos, vel, ok := sampleSlot(kind, p, i, src)
		if !ok {
			return &SamplingError{Kind: kind, Slot: i, Attempts: MaxAttempts}
		}
		buf.SetSlot(i, pos, vel)
	}
	return nil
}

func sampleSlot(kind config.Kind, p config.Params, i int, src Source) (pos, vel [3]float32, ok bool) {
	switch kind {
	case config.KindGalaxy:
		if i == 0 {
			return pos, vel, true
		}
		return diskXZ(p, src)
	case config.KindUniverse:
		return ball(p, src)
	case config.KindCollision:
		if i%2 == 0 {
			if i == 0 {
				return pos, vel, true
			}
			return diskXZ(p, src)
		}
		return diskXY(p, src)
	}
	return pos, vel, false
}

// diskXZ is one star of a disk galaxy lying in the xz-plane at the origin.
func diskXZ(p config.Params, src Source) (pos, vel [3]float32, ok bool) {
	x, z, r, ok := sampleDisk(src)
	if !ok {
		return pos, vel, false
	}
	rScaled := p.Radius * math.Pow(r, p.CenterRotationExponent)
	v := p.Velocity * math.Pow(r, speedExponent)

	vel[0] = float32(v*z + symmetric(src)*jitter)
	vel[1] = float32(symmetric(src) * jitter * verticalShare)
	vel[2] = float32(-v*x + symmetric(src)*jitter)

	pos[0] = float32(x * rScaled)
	pos[1] = float32(symmetric(src) * p.Height)
	pos[2] = float32(z * rScaled)
	return pos, vel, true
}

// diskXY is one star of the second collision galaxy: a disk in the xy-plane,
// translated by CollisionOffset and tilted about the x axis.
func diskXY(p config.Params, src Source) (pos, vel [3]float32, ok bool) {
	x, y, r, ok := sampleDisk(src)
	if !ok {
		return pos, vel, false
	}
	rScaled := p.Radius * math.Pow(r, p.CenterRotationExponent)
	v := p.Velocity * math.Pow(r, speedExponent)

	u := r3.Vec{
		X: -v*y + symmetric(src)*jitter,
		Y: v*x + symmetric(src)*jitter,
		Z: -symmetric(src) * jitter * verticalShare,
	}
	q := r3.Vec{
		X: x*rScaled + CollisionOffset.X,
		Y: y*rScaled + CollisionOffset.Y,
		Z: symmetric(src)*p.Height + CollisionOffset.Z,
	}
	u = tilt.Rotate(u)
	q = tilt.Rotate(q)

	return toFloat32(q), toFloat32(u), true
}

// ball is one point of the expanding universe. Velocity is computed from the
// stored float32 position so v = pulse*p holds exactly on the buffer.
func ball(p config.Params, src Source) (pos, vel [3]float32, ok bool) {
	x, y, z, ok := sampleBall(src)
	if !ok {
		return pos, vel, false
	}
	pulse := float32(p.Pulse)
	pos = [3]float32{float32(x * p.Radius), float32(y * p.Radius), float32(z * p.Radius)}
	vel = [3]float32{pulse * pos[0], pulse * pos[1], pulse * pos[2]}
	return pos, vel, true
}

// Untilt maps a point of the second collision galaxy back into its own frame,
// undoing the tilt. Offsets are not removed.
func Untilt(v r3.Vec) r3.Vec {
	return r3.NewRotation(-CollisionTilt, r3.Vec{X: 1}).Rotate(v)
}

func toFloat32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
