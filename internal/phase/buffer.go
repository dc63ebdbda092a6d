// Package phase holds the phase-space buffer: the paired position and
// velocity arrays a simulation epoch is seeded into and the kernel advances.
//
// Both arrays are laid out as a square texture of side [Buffer.Side], four
// float32 scalars per slot. The fourth position scalar carries the obscured
// ("dark matter") flag; the fourth velocity scalar is reserved and zero.
package phase

import (
	"errors"
	"fmt"
	"math"
)

// Stride is the number of scalars stored per slot in each array.
const Stride = 4

// ObscuredFraction is the fraction of slots, by index, that stay visible.
const ObscuredFraction = 0.85

var (
	ErrTooFewParticles  = errors.New("phase: particle count must be at least 2")
	ErrTooManyParticles = errors.New("phase: particle count exceeds buffer limit")
)

// MaxParticles bounds a single buffer allocation.
const MaxParticles = 1 << 24

type Buffer struct {
	Side       int
	Requested  int
	Positions  []float32
	Velocities []float32
}

// Capacity returns ceil(sqrt(n))², the smallest perfect square >= n.
func Capacity(n int) int {
	side := Side(n)
	return side * side
}

// Side returns the texture side length for n requested particles.
func Side(n int) int {
	if n <= 0 {
		return 0
	}
	side := int(math.Ceil(math.Sqrt(float64(n))))
	// float rounding can land one off for large n
	for side*side < n {
		side++
	}
	for side > 1 && (side-1)*(side-1) >= n {
		side--
	}
	return side
}

// ObscuredBoundary returns the last index that is not obscured for a buffer of
// the given capacity. Slot i is obscured iff i > ObscuredBoundary(capacity).
func ObscuredBoundary(capacity int) int {
	return int(math.Floor(ObscuredFraction * float64(capacity)))
}

// New allocates a zeroed buffer able to hold requested particles.
func New(requested int) (*Buffer, error) {
	if requested < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewParticles, requested)
	}
	if requested > MaxParticles {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyParticles, requested, MaxParticles)
	}
	side := Side(requested)
	capacity := side * side
	return &Buffer{
		Side:       side,
		Requested:  requested,
		Positions:  make([]float32, capacity*Stride),
		Velocities: make([]float32, capacity*Stride),
	}, nil
}

func (b *Buffer) Capacity() int { return b.Side * b.Side }

// Padding is the number of slots generated beyond the requested count.
func (b *Buffer) Padding() int { return b.Capacity() - b.Requested }

func (b *Buffer) Position(i int) (x, y, z float32) {
	k := i * Stride
	return b.Positions[k], b.Positions[k+1], b.Positions[k+2]
}

func (b *Buffer) Velocity(i int) (x, y, z float32) {
	k := i * Stride
	return b.Velocities[k], b.Velocities[k+1], b.Velocities[k+2]
}

func (b *Buffer) Obscured(i int) bool {
	return b.Positions[i*Stride+3] != 0
}

// SetSlot overwrites one slot, deriving the obscured flag from its index.
func (b *Buffer) SetSlot(i int, pos, vel [3]float32) {
	k := i * Stride
	b.Positions[k] = pos[0]
	b.Positions[k+1] = pos[1]
	b.Positions[k+2] = pos[2]
	b.Positions[k+3] = 0
	if i > ObscuredBoundary(b.Capacity()) {
		b.Positions[k+3] = 1
	}

	b.Velocities[k] = vel[0]
	b.Velocities[k+1] = vel[1]
	b.Velocities[k+2] = vel[2]
	b.Velocities[k+3] = 0
}

// UV returns the texture coordinate of slot i, both axes in [0, 1].
func (b *Buffer) UV(i int) (u, v float32) {
	if b.Side < 2 {
		return 0, 0
	}
	den := float32(b.Side - 1)
	return float32(i%b.Side) / den, float32(i/b.Side) / den
}

// Interleaved packs the buffer as position/velocity pairs, eight scalars per
// slot, the layout the GPU kernel's storage buffer expects.
func (b *Buffer) Interleaved() []float32 {
	n := b.Capacity()
	out := make([]float32, n*Stride*2)
	for i := 0; i < n; i++ {
		copy(out[i*8:i*8+4], b.Positions[i*Stride:i*Stride+4])
		copy(out[i*8+4:i*8+8], b.Velocities[i*Stride:i*Stride+4])
	}
	return out
}

// Deinterleave is the inverse of Interleaved.
func (b *Buffer) Deinterleave(data []float32) error {
	n := b.Capacity()
	if len(data) != n*Stride*2 {
		return fmt.Errorf("phase: interleaved length %d, want %d", len(data), n*Stride*2)
	}
	for i := 0; i < n; i++ {
		copy(b.Positions[i*Stride:i*Stride+4], data[i*8:i*8+4])
		copy(b.Velocities[i*Stride:i*Stride+4], data[i*8+4:i*8+8])
	}
	return nil
}
