package compute

import (
	"fmt"
	"math"

	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultTheta is the Barnes–Hut opening angle.
const DefaultTheta = 0.5

// body is one gravitating point in the Barnes–Hut volume.
type body struct {
	pos  r3.Vec
	mass float64
}

func (b *body) Coord3() r3.Vec { return b.pos }
func (b *body) Mass() float64  { return b.mass }

// probe is a massless query point; it is never part of the tree.
type probe r3.Vec

func (p probe) Coord3() r3.Vec { return r3.Vec(p) }
func (p probe) Mass() float64  { return 0 }

// softened returns the acceleration on p1 from p2, ignoring p1's mass.
func softened(_, _ barneshut.Particle3, _, m2 float64, v r3.Vec) r3.Vec {
	d2 := r3.Norm2(v) + softening*softening
	return r3.Scale(m2/(d2*math.Sqrt(d2)), v)
}

// CPUKernel advances a buffer with a Barnes–Hut approximation of the
// pairwise attraction between slots, plus the pull of the central body.
type CPUKernel struct {
	Theta   float64
	workers int

	buf *phase.Buffer
	u   config.KernelUniforms

	bodies    []body
	particles []barneshut.Particle3
	volume    *barneshut.Volume
	stride    int
	steps     int
}

func NewCPUKernel(workers int) *CPUKernel {
	return &CPUKernel{Theta: DefaultTheta, workers: workers}
}

func (k *CPUKernel) Name() string { return string(BackendCPU) }

func (k *CPUKernel) Init(buf *phase.Buffer, u config.KernelUniforms) error {
	if buf == nil {
		return ErrNoBuffer
	}
	k.buf = buf
	k.u = u
	k.volume = nil
	k.stride = 0
	k.steps = 0
	return nil
}

func (k *CPUKernel) SetUniforms(u config.KernelUniforms) { k.u = u }

// Uniforms returns the uniforms the next Step will use.
func (k *CPUKernel) Uniforms() config.KernelUniforms { return k.u }

// Steps counts steps since the last Init.
func (k *CPUKernel) Steps() int { return k.steps }

func (k *CPUKernel) Release() error {
	k.buf = nil
	k.volume = nil
	k.bodies = nil
	k.particles = nil
	return nil
}

// Step performs one velocity-then-position update of every slot but the
// central one.
func (k *CPUKernel) Step() error {
	if k.buf == nil {
		return ErrNotInitialized
	}
	if err := k.rebuild(); err != nil {
		return err
	}

	dt := float64(k.u.TimeStep)
	g := float64(k.u.Gravity)
	buf := k.buf

	ParallelFor(buf.Capacity()-1, 512, k.workers, func(start, end int) {
		for i := start + 1; i < end+1; i++ {
			a := k.accel(i)
			o := i * phase.Stride
			for c := 0; c < 3; c++ {
				v := float64(buf.Velocities[o+c]) + dt*g*a[c]
				buf.Velocities[o+c] = float32(v)
				buf.Positions[o+c] += float32(dt * v)
			}
		}
	})

	k.steps++
	return nil
}

// stride is the sampling step over source slots for an interaction rate:
// rate 1 uses every slot, rate 0.1 every tenth. Rate 0 disables pairwise
// attraction.
func stride(rate float32) int {
	if rate <= 0 {
		return 0
	}
	if rate >= 1 {
		return 1
	}
	return int(math.Ceil(1 / float64(rate)))
}

// rebuild refreshes the source bodies from the buffer and rebuilds the tree.
func (k *CPUKernel) rebuild() error {
	s := stride(k.u.InteractionRate)
	n := k.buf.Capacity()
	if s == 0 {
		k.volume = nil
		k.stride = 0
		return nil
	}

	count := (n - 1 + s - 1) / s
	if s != k.stride || len(k.bodies) != count {
		k.bodies = make([]body, count)
		k.particles = make([]barneshut.Particle3, count)
		for j := range k.bodies {
			k.particles[j] = &k.bodies[j]
		}
		k.volume = nil
		k.stride = s
	}

	for j := range k.bodies {
		x, y, z := k.buf.Position(1 + j*s)
		k.bodies[j] = body{pos: r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}, mass: float64(s)}
	}

	if k.volume == nil {
		vol, err := barneshut.NewVolume(k.particles)
		if err != nil {
			return fmt.Errorf("compute: build tree: %w", err)
		}
		k.volume = vol
		return nil
	}
	if err := k.volume.Reset(); err != nil {
		return fmt.Errorf("compute: rebuild tree: %w", err)
	}
	return nil
}

// accel is the acceleration on slot i before the gravity factor.
func (k *CPUKernel) accel(i int) [3]float64 {
	x, y, z := k.buf.Position(i)
	p := r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}

	var a r3.Vec
	if k.volume != nil {
		a = k.volume.ForceOn(probe(p), k.Theta, softened)
	}
	if m := float64(k.u.BlackHoleForce); m > 0 {
		cx, cy, cz := k.buf.Position(0)
		d := r3.Sub(r3.Vec{X: float64(cx), Y: float64(cy), Z: float64(cz)}, p)
		a = r3.Add(a, softened(nil, nil, 0, m, d))
	}
	return [3]float64{a.X, a.Y, a.Z}
}
