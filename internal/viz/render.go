package viz

import (
	"errors"
	"math"
	"sync"

	"github.com/san-kum/galaxysim/internal/analysis"
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/san-kum/galaxysim/internal/sim"
)

var ErrDisposed = errors.New("viz: epoch disposed")

// autoRotateStep is the yaw per frame at AutoRotateSpeed 1, one turn a minute
// at 60 frames per second.
const autoRotateStep = 2 * math.Pi / 60 / 60

// referenceConstant is the camera constant of the default 720 line viewport.
var referenceConstant = config.Camera{FOV: 75, Zoom: 1}.Constant(config.DefaultHeight)

// Renderer draws buffers into a terminal-sized frame, either as braille dots
// or as an ASCII density ramp.
type Renderer struct {
	Width, Height int
	Braille       bool
	Pitch         float64

	mu      sync.Mutex
	current *Epoch
}

func NewRenderer(width, height int) *Renderer {
	return &Renderer{Width: width, Height: height, Braille: true, Pitch: 0.35}
}

func (r *Renderer) Attach(buf *phase.Buffer, cam config.Camera) (sim.Epoch, error) {
	if buf == nil {
		return nil, errors.New("viz: attach without a buffer")
	}
	// the camera sits above the disk; its elevation sets the initial pitch
	pitch := r.Pitch
	if h := math.Hypot(cam.Position[0], cam.Position[2]); h > 0 {
		pitch = math.Atan2(cam.Position[1], h)
	}
	e := &Epoch{
		r:        r,
		buf:      buf,
		cam:      cam,
		pitch:    pitch,
		extent:   baseExtent(buf),
		constant: referenceConstant,
	}
	r.mu.Lock()
	r.current = e
	r.mu.Unlock()
	return e, nil
}

// Current returns the most recently attached epoch, or nil.
func (r *Renderer) Current() *Epoch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetSize changes the frame size from the next draw on.
func (r *Renderer) SetSize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Width, r.Height = width, height
}

func (r *Renderer) size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Width, r.Height
}

// baseExtent is the projected half-width that fits the initial buffer.
func baseExtent(buf *phase.Buffer) float64 {
	var m float64
	for i := 0; i < buf.Capacity(); i++ {
		x, y, z := buf.Position(i)
		m = math.Max(m, math.Abs(float64(x)))
		m = math.Max(m, math.Abs(float64(y)))
		m = math.Max(m, math.Abs(float64(z)))
	}
	if m == 0 {
		return 1
	}
	return m * 1.1
}

// Epoch is the terminal render state of one buffer.
type Epoch struct {
	r   *Renderer
	cam config.Camera

	mu       sync.Mutex
	buf      *phase.Buffer
	yaw      float64
	pitch    float64
	extent   float64
	constant float64
	frame    string
	draws    int
	disposed bool
}

func (e *Epoch) Draw(u config.RenderUniforms) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrDisposed
	}

	if e.cam.AutoRotate {
		e.yaw += e.cam.AutoRotateSpeed * autoRotateStep
	}
	view := analysis.View{
		Yaw:          e.yaw,
		Pitch:        e.pitch,
		Extent:       e.extent * referenceConstant / e.constant,
		HideObscured: u.HideObscured,
	}

	// brighter luminosity lights sparser cells
	lum := math.Max(0, math.Min(1, float64(u.Luminosity)))
	width, height := e.r.size()
	if e.r.Braille {
		c := NewCanvas(width, height)
		w, h := c.DotSize()
		proj := analysis.Project(e.buf, view, w, h)
		levels := 8
		c.Fill(proj, 1+int((1-lum)*float64(levels-2)), levels)
		e.frame = c.String()
	} else {
		proj := analysis.Project(e.buf, view, width, height)
		ramp := []rune(analysis.DefaultRamp)
		keep := 2 + int(lum*float64(len(ramp)-2))
		if keep > len(ramp) {
			keep = len(ramp)
		}
		e.frame = proj.ASCII(string(ramp[:keep]))
	}
	e.draws++
	return nil
}

// SetCameraConstant zooms the view in proportion to the viewport constant.
func (e *Epoch) SetCameraConstant(c float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c > 0 {
		e.constant = c
	}
}

// Rotate nudges the view, for keyboard orbit controls.
func (e *Epoch) Rotate(dyaw, dpitch float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.yaw += dyaw
	e.pitch = math.Max(-math.Pi/2, math.Min(math.Pi/2, e.pitch+dpitch))
}

// Zoom magnifies the view by factor.
func (e *Epoch) Zoom(factor float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if factor > 0 {
		e.extent /= factor
	}
}

func (e *Epoch) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposed = true
	e.buf = nil
	e.frame = ""
	return nil
}

// Frame returns the last drawn frame.
func (e *Epoch) Frame() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

func (e *Epoch) Draws() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draws
}
