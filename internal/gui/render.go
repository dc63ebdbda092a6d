package gui

import (
	"errors"
	"math"
	"sync"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/san-kum/galaxysim/internal/sim"
)

var ErrDisposed = errors.New("gui: epoch disposed")

// pointRadius is the world-space size a particle sprite would have; with the
// camera constant it sets how bright a point is at a given distance.
const pointRadius = 0.02

// View draws phase buffers as coloured points in the current 3D mode. It
// implements the controller's renderer contract.
type View struct {
	mu      sync.Mutex
	current *Epoch
}

func NewView() *View {
	return &View{}
}

func (v *View) Attach(buf *phase.Buffer, cam config.Camera) (sim.Epoch, error) {
	if buf == nil {
		return nil, errors.New("gui: attach without a buffer")
	}
	e := newEpoch(buf, cam)
	v.mu.Lock()
	v.current = e
	v.mu.Unlock()
	return e, nil
}

// Current returns the most recently attached epoch, or nil.
func (v *View) Current() *Epoch {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Epoch holds the camera and draw state of one buffer.
type Epoch struct {
	mu       sync.Mutex
	buf      *phase.Buffer
	cam      config.Camera
	constant float64
	disposed bool

	// orbit of the camera around the origin
	dist, yaw, pitch float64
	dolly            float64
}

func newEpoch(buf *phase.Buffer, cam config.Camera) *Epoch {
	x, y, z := cam.Position[0], cam.Position[1], cam.Position[2]
	return &Epoch{
		buf:      buf,
		cam:      cam,
		constant: cam.Constant(config.DefaultHeight),
		dist:     math.Sqrt(x*x + y*y + z*z),
		yaw:      math.Atan2(x, z),
		pitch:    math.Atan2(y, math.Hypot(x, z)),
		dolly:    1,
	}
}

// Camera returns the raylib camera for the current orbit.
func (e *Epoch) Camera() rl.Camera3D {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera()
}

func (e *Epoch) camera() rl.Camera3D {
	d := e.dist * e.dolly
	pos := rl.NewVector3(
		float32(d*math.Cos(e.pitch)*math.Sin(e.yaw)),
		float32(d*math.Sin(e.pitch)),
		float32(d*math.Cos(e.pitch)*math.Cos(e.yaw)),
	)
	zoom := e.cam.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return rl.NewCamera3D(pos, rl.NewVector3(0, 0, 0), rl.NewVector3(0, 1, 0), float32(e.cam.FOV/zoom), rl.CameraPerspective)
}

// Advance applies auto-rotation for a frame of dt seconds.
func (e *Epoch) Advance(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cam.AutoRotate {
		// speed 1 is one turn a minute
		e.yaw += e.cam.AutoRotateSpeed * dt * 2 * math.Pi / 60
	}
}

func (e *Epoch) Orbit(dyaw, dpitch float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.yaw += dyaw
	e.pitch = math.Max(-1.5, math.Min(1.5, e.pitch+dpitch))
}

// Dolly moves the camera towards (factor < 1) or away from the origin.
func (e *Epoch) Dolly(factor float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dolly = math.Max(0.05, math.Min(20, e.dolly*factor))
}

// Draw must be called between BeginMode3D and EndMode3D.
func (e *Epoch) Draw(u config.RenderUniforms) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrDisposed
	}

	cam := e.camera().Position
	lum := clamp(float64(u.Luminosity), 0, 1)
	scale := float64(u.ColorScaleMax)

	n := e.buf.Capacity()
	for i := 0; i < n; i++ {
		if u.HideObscured && e.buf.Obscured(i) {
			continue
		}
		x, y, z := e.buf.Position(i)
		vx, vy, vz := e.buf.Velocity(i)
		speed := math.Sqrt(float64(vx*vx + vy*vy + vz*vz))

		dx, dy, dz := float64(x-cam.X), float64(y-cam.Y), float64(z-cam.Z)
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		alpha := 1.0
		if dist > 0 {
			alpha = clamp(e.constant*pointRadius/dist, 0.15, 1)
		}

		rl.DrawPoint3D(rl.NewVector3(x, y, z), speedColor(speed, scale, lum*alpha))
	}
	return nil
}

// speedColor maps speed onto a blue to red ramp saturating at scaleMax.
func speedColor(speed, scaleMax, alpha float64) rl.Color {
	t := 1.0
	if scaleMax > 0 {
		t = clamp(speed/scaleMax, 0, 1)
	}
	c := rl.ColorFromHSV(float32(220-220*t), float32(0.35+0.55*t), 1)
	return rl.ColorAlpha(c, float32(alpha))
}

func (e *Epoch) SetCameraConstant(c float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c > 0 {
		e.constant = c
	}
}

func (e *Epoch) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposed = true
	e.buf = nil
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
