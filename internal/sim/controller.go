package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/san-kum/galaxysim/internal/scenario"
)

// Controller owns the parameter set and the phase-space buffer and drives the
// kernel and renderer through regenerations.
type Controller struct {
	mu sync.Mutex

	kernel   Kernel
	renderer Renderer
	log      *slog.Logger
	workers  int
	rng      *rand.Rand

	width, height int

	state      State
	params     config.Params
	staged     []config.Edit
	buf        *phase.Buffer
	epoch      Epoch
	kernelLive bool
	generation int
	lastSeed   int64
	frames     uint64
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithSeed makes every regeneration reproducible from seed.
func WithSeed(seed int64) Option {
	return func(c *Controller) { c.rng = rand.New(rand.NewSource(seed)) }
}

// WithWorkers bounds the goroutines used to fill a new buffer.
func WithWorkers(n int) Option {
	return func(c *Controller) { c.workers = n }
}

func WithViewport(width, height int) Option {
	return func(c *Controller) { c.width, c.height = width, height }
}

// New returns an uninitialised controller. A nil renderer runs headless.
func New(kernel Kernel, renderer Renderer, opts ...Option) *Controller {
	c := &Controller{
		kernel:   kernel,
		renderer: renderer,
		log:      slog.Default(),
		width:    config.DefaultWidth,
		height:   config.DefaultHeight,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// Start loads the preset for (tier, kind), applies edits and generates the
// first epoch. It is only valid from Uninitialized, which is also where a
// failed regeneration leaves the controller.
func (c *Controller) Start(tier config.Tier, kind config.Kind, edits ...config.Edit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.state
	if err := c.require("start", Uninitialized); err != nil {
		return err
	}

	p, err := config.Preset(tier, kind)
	if err != nil {
		return &TransitionError{Op: "start", From: from, Wrapped: err}
	}
	for _, e := range edits {
		if err := p.Set(e.Field, e.Value); err != nil {
			return &TransitionError{Op: "start", From: from, Wrapped: err}
		}
	}
	if err := p.Validate(); err != nil {
		return &TransitionError{Op: "start", From: from, Wrapped: err}
	}

	c.params = p
	c.staged = nil
	return c.regenerate("start", from)
}

// Restart re-seeds the current scenario, applying any staged structural
// edits.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.state
	if err := c.require("restart", Running, Paused); err != nil {
		return err
	}

	next := c.params
	for _, e := range c.staged {
		if err := next.Set(e.Field, e.Value); err != nil {
			return &TransitionError{Op: "restart", From: from, Wrapped: err}
		}
	}
	if err := next.Validate(); err != nil {
		return &TransitionError{Op: "restart", From: from, Wrapped: err}
	}

	c.params = next
	c.staged = nil
	return c.regenerate("restart", from)
}

// SwitchScenario replaces the parameter set with the preset for (current tier,
// kind) and regenerates. Staged edits are discarded.
func (c *Controller) SwitchScenario(kind config.Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switchScenario("switch", kind)
}

// ResetParameters reloads the current scenario's preset and regenerates.
func (c *Controller) ResetParameters() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switchScenario("reset", c.params.Kind)
}

func (c *Controller) switchScenario(op string, kind config.Kind) error {
	from := c.state
	if err := c.require(op, Running, Paused); err != nil {
		return err
	}

	p, err := config.Preset(c.params.Tier, kind)
	if err != nil {
		return &TransitionError{Op: op, From: from, Wrapped: err}
	}

	c.params = p
	c.staged = nil
	return c.regenerate(op, from)
}

func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("pause", Running); err != nil {
		return err
	}
	c.state = Paused
	c.log.Info("simulation paused", "generation", c.generation)
	return nil
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("resume", Paused); err != nil {
		return err
	}
	c.state = Running
	c.log.Info("simulation resumed", "generation", c.generation)
	return nil
}

// TogglePause flips between Running and Paused and returns the new state.
func (c *Controller) TogglePause() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("toggle", Running, Paused); err != nil {
		return c.state, err
	}
	if c.state == Running {
		c.state = Paused
	} else {
		c.state = Running
	}
	c.log.Info("simulation toggled", "state", c.state)
	return c.state, nil
}

// SetLiveParam changes one live field and resends every kernel uniform. The
// buffer is left untouched.
func (c *Controller) SetLiveParam(f config.Field, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Terminated {
		return ErrTerminated
	}
	if !f.Known() {
		return fmt.Errorf("sim: set %q: %w", f, config.ErrUnknownField)
	}
	if !f.Live() {
		return fmt.Errorf("%w: %s", ErrNotLive, f)
	}
	if err := f.Check(value); err != nil {
		return err
	}

	c.params.ApplyLiveEdit(f, value)
	if c.kernelLive {
		c.kernel.SetUniforms(c.params.KernelUniforms())
	}
	c.log.Debug("live parameter set", "field", f, "value", value)
	return nil
}

// SetStructuralParam stages an edit that takes effect on the next Restart.
// The scenario kind is changed with SwitchScenario instead.
func (c *Controller) SetStructuralParam(f config.Field, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Terminated {
		return ErrTerminated
	}
	if !f.Known() {
		return fmt.Errorf("sim: stage %q: %w", f, config.ErrUnknownField)
	}
	if f.Live() {
		return fmt.Errorf("%w: %s", ErrNotStructural, f)
	}
	if f == config.KindField {
		return fmt.Errorf("%w: kind changes through SwitchScenario", ErrInvalidTransition)
	}
	if err := f.Check(value); err != nil {
		return err
	}

	for i := range c.staged {
		if c.staged[i].Field == f {
			c.staged[i].Value = value
			return nil
		}
	}
	c.staged = append(c.staged, config.Edit{Field: f, Value: value})
	c.log.Debug("structural parameter staged", "field", f, "value", value)
	return nil
}

// Value returns what a control panel should show for f: the staged edit if
// one is pending, the active value otherwise.
func (c *Controller) Value(f config.Field) (value float64, staged bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.staged {
		if e.Field == f {
			return e.Value, true
		}
	}
	return c.params.Value(f), false
}

// Apply routes a panel edit: live fields are set, structural fields staged
// and the kind field switches scenario.
func (c *Controller) Apply(f config.Field, value float64) error {
	switch {
	case f == config.KindField:
		if err := f.Check(value); err != nil {
			return err
		}
		return c.SwitchScenario(config.Kind(int(value)))
	case f.Live():
		return c.SetLiveParam(f, value)
	}
	return c.SetStructuralParam(f, value)
}

// Nudge moves f by dir steps, clamped to its bounds, and applies it.
func (c *Controller) Nudge(f config.Field, dir float64) error {
	if !f.Known() {
		return fmt.Errorf("sim: nudge %q: %w", f, config.ErrUnknownField)
	}
	v, _ := c.Value(f)
	lo, hi := f.Range()
	return c.Apply(f, math.Max(lo, math.Min(hi, v+dir*f.Step())))
}

// Frame steps the kernel when running and draws the current epoch. A paused
// simulation is drawn but not stepped.
func (c *Controller) Frame() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Running:
		if err := c.kernel.Step(); err != nil {
			return fmt.Errorf("sim: step %d: %w", c.frames, err)
		}
		c.frames++
	case Paused:
	case Terminated:
		return ErrTerminated
	default:
		return ErrNotStarted
	}

	if c.epoch != nil {
		if err := c.epoch.Draw(c.params.RenderUniforms()); err != nil {
			return fmt.Errorf("sim: draw: %w", err)
		}
	}
	return nil
}

// Resize records the viewport and pushes the new camera constant to the
// attached epoch.
func (c *Controller) Resize(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Terminated {
		return ErrTerminated
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("sim: resize to %dx%d: %w", width, height, config.ErrOutOfRange)
	}
	c.width, c.height = width, height
	if c.epoch != nil {
		c.epoch.SetCameraConstant(c.params.Camera().Constant(height))
	}
	return nil
}

// Shutdown releases every resource. Further calls are no-ops.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Terminated {
		return nil
	}
	err := c.teardown()
	c.state = Terminated
	c.log.Info("simulation terminated", "generation", c.generation, "frames", c.frames)
	return err
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Params returns a copy of the current parameter set.
func (c *Controller) Params() config.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Staged returns the structural edits waiting for the next Restart.
func (c *Controller) Staged() []config.Edit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]config.Edit, len(c.staged))
	copy(out, c.staged)
	return out
}

// Buffer returns the current buffer, nil outside Running and Paused. The
// reference is only valid until the next regeneration.
func (c *Controller) Buffer() *phase.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

// Generation counts successful regenerations.
func (c *Controller) Generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Seed is the seed the current buffer was filled from.
func (c *Controller) Seed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeed
}

// Frames counts kernel steps since the controller was created.
func (c *Controller) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Inspect runs fn with the current buffer while holding the lock, so no
// frame or regeneration can touch it concurrently.
func (c *Controller) Inspect(fn func(p config.Params, buf *phase.Buffer) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf == nil {
		return ErrNotStarted
	}
	return fn(c.params, c.buf)
}

func (c *Controller) require(op string, allowed ...State) error {
	if c.state == Terminated {
		return ErrTerminated
	}
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	return &TransitionError{Op: op, From: c.state, Wrapped: ErrInvalidTransition}
}

// teardown disposes the epoch, releases the kernel and drops the buffer, in
// that order. Every step runs even if an earlier one fails.
func (c *Controller) teardown() error {
	var errs []error
	if c.epoch != nil {
		c.log.Debug("disposing render epoch", "generation", c.generation)
		if err := c.epoch.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose epoch: %w", err))
		}
		c.epoch = nil
	}
	if c.kernelLive {
		c.log.Debug("releasing kernel", "generation", c.generation)
		if err := c.kernel.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release kernel: %w", err))
		}
		c.kernelLive = false
	}
	c.buf = nil
	return errors.Join(errs...)
}

// regenerate tears down the current epoch and builds a new one from c.params.
// On failure everything acquired is released and the controller is left
// Uninitialized.
func (c *Controller) regenerate(op string, from State) error {
	c.state = Regenerating
	start := time.Now()

	fail := func(err error) error {
		c.state = Uninitialized
		c.log.Error("regeneration failed", "op", op, "from", from, "err", err)
		return &TransitionError{Op: op, From: from, Wrapped: err}
	}

	if err := c.teardown(); err != nil {
		return fail(err)
	}

	buf, err := phase.New(c.params.Count)
	if err != nil {
		return fail(err)
	}
	seed := c.rng.Int63()
	if err := scenario.Fill(c.params.Kind, c.params, buf, seed, c.workers); err != nil {
		return fail(err)
	}

	if err := c.kernel.Init(buf, c.params.KernelUniforms()); err != nil {
		return fail(fmt.Errorf("kernel init: %w", err))
	}

	var epoch Epoch
	if c.renderer != nil {
		cam := c.params.Camera()
		epoch, err = c.renderer.Attach(buf, cam)
		if err != nil {
			if rerr := c.kernel.Release(); rerr != nil {
				err = errors.Join(err, fmt.Errorf("release kernel: %w", rerr))
			}
			return fail(fmt.Errorf("render attach: %w", err))
		}
		epoch.SetCameraConstant(cam.Constant(c.height))
	}

	c.buf = buf
	c.epoch = epoch
	c.kernelLive = true
	c.generation++
	c.lastSeed = seed
	c.state = Running

	c.log.Info("simulation regenerated",
		"op", op,
		"from", from,
		"tier", c.params.Tier,
		"kind", c.params.Kind,
		"requested", buf.Requested,
		"capacity", buf.Capacity(),
		"generation", c.generation,
		"elapsed", time.Since(start),
	)
	return nil
}
