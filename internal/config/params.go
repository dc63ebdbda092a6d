package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrUnknownTier  = errors.New("config: unknown tier")
	ErrUnknownKind  = errors.New("config: unknown scenario kind")
	ErrUnknownField = errors.New("config: unknown parameter")
	ErrOutOfRange   = errors.New("config: parameter out of valid bounds")
	ErrInvalid      = errors.New("config: inconsistent parameter set")
)

// Tier selects the complexity of a preset independently of its scenario.
type Tier int

const (
	TierCompact Tier = iota + 1
	TierFull
)

var tierNames = map[Tier]string{
	TierCompact: "compact",
	TierFull:    "full",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compact", "normal", "small":
		return TierCompact, nil
	case "full", "experimental", "large":
		return TierFull, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTier, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Kind selects the generation algorithm.
type Kind int

const (
	KindGalaxy Kind = iota + 1
	KindUniverse
	KindCollision
)

var kindNames = map[Kind]string{
	KindGalaxy:    "single-galaxy",
	KindUniverse:  "universe",
	KindCollision: "collision",
}

// Kinds lists every scenario in display order.
var Kinds = []Kind{KindGalaxy, KindUniverse, KindCollision}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Disk reports whether the scenario is built from rotating disks, i.e. has a
// central massive body in slot 0.
func (k Kind) Disk() bool {
	return k == KindGalaxy || k == KindCollision
}

func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	switch norm {
	case "singlegalaxy", "galaxy", "1":
		return KindGalaxy, nil
	case "universe", "2":
		return KindUniverse, nil
	case "collision", "galaxiescollision", "galaxycollision", "3":
		return KindCollision, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Field names one parameter of a Params.
type Field string

const (
	Gravity           Field = "gravity"
	InteractionRate   Field = "interactionRate"
	TimeStep          Field = "timeStep"
	BlackHoleForce    Field = "blackHoleForce"
	Luminosity        Field = "luminosity"
	ColorScaleMax     Field = "colorScaleMax"
	ColorScalePercent Field = "colorScalePercent"
	HideObscured      Field = "hideObscured"
	MotionBlur        Field = "motionBlur"
	Bloom             Field = "bloom"

	Count                  Field = "count"
	Radius                 Field = "radius"
	Height                 Field = "height"
	CenterRotationExponent Field = "centerRotationExponent"
	Velocity               Field = "velocity"
	Pulse                  Field = "pulse"
	KindField              Field = "kind"
	AutoRotation           Field = "autoRotation"
)

type fieldInfo struct {
	live     bool
	min, max float64
	step     float64
}

// Bounds match the control panel sliders.
var fields = map[Field]fieldInfo{
	Gravity:           {live: true, min: 0, max: 1000, step: 0.05},
	InteractionRate:   {live: true, min: 0, max: 1, step: 0.001},
	TimeStep:          {live: true, min: 0, max: 0.01, step: 0.0001},
	BlackHoleForce:    {live: true, min: 0, max: 10000, step: 1},
	Luminosity:        {live: true, min: 0, max: 1, step: 0.0001},
	ColorScaleMax:     {live: true, min: 0, max: 1000, step: 0.1},
	ColorScalePercent: {live: true, min: 0.01, max: 100, step: 0.01},
	HideObscured:      {live: true, min: 0, max: 1, step: 1},
	MotionBlur:        {live: true, min: 0, max: 1, step: 1},
	Bloom:             {live: true, min: 0, max: 2, step: 0.1},

	Count:                  {min: 2, max: 10000000, step: 1},
	Radius:                 {min: 1, max: 1000, step: 1},
	Height:                 {min: 0, max: 50, step: 0.01},
	CenterRotationExponent: {min: 0, max: 20, step: 0.001},
	Velocity:               {min: 0, max: 150, step: 0.1},
	Pulse:                  {min: 0, max: 100, step: 0.01},
	KindField:              {min: 1, max: 3, step: 1},
	AutoRotation:           {min: 0, max: 1, step: 1},
}

// LiveFields lists the hot-swappable parameters in panel order.
var LiveFields = []Field{
	Gravity, InteractionRate, TimeStep, BlackHoleForce, Luminosity,
	ColorScaleMax, ColorScalePercent, HideObscured, MotionBlur, Bloom,
}

// StructuralFields lists the parameters that force a regeneration.
var StructuralFields = []Field{
	Count, Radius, Height, CenterRotationExponent, Velocity, Pulse, KindField, AutoRotation,
}

func ParseField(s string) (Field, error) {
	want := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(s)))
	for f := range fields {
		if strings.ToLower(string(f)) == want {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

func (f Field) Known() bool {
	_, ok := fields[f]
	return ok
}

// Live reports whether f can change without regenerating the buffer.
func (f Field) Live() bool {
	return fields[f].live
}

// Step is the increment an interactive panel nudges f by.
func (f Field) Step() float64 {
	return fields[f].step
}

// Range returns the inclusive bounds of f.
func (f Field) Range() (min, max float64) {
	info := fields[f]
	return info.min, info.max
}

func (f Field) Check(value float64) error {
	info, ok := fields[f]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	if math.IsNaN(value) || value < info.min || value > info.max {
		return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrOutOfRange, f, value, info.min, info.max)
	}
	return nil
}

// Params is one complete parameter set. It always belongs to exactly one
// (tier, kind) preset; switching either replaces the whole value.
type Params struct {
	Tier Tier `yaml:"tier"`
	Kind Kind `yaml:"kind"`

	Gravity           float64 `yaml:"gravity"`
	InteractionRate   float64 `yaml:"interaction_rate"`
	TimeStep          float64 `yaml:"time_step"`
	BlackHoleForce    float64 `yaml:"black_hole_force"`
	Luminosity        float64 `yaml:"luminosity"`
	ColorScaleMax     float64 `yaml:"color_scale_max"`
	ColorScalePercent float64 `yaml:"color_scale_percent"`
	HideObscured      bool    `yaml:"hide_obscured"`
	MotionBlur        bool    `yaml:"motion_blur"`
	Bloom             float64 `yaml:"bloom"`

	Count                  int     `yaml:"count"`
	Radius                 float64 `yaml:"radius"`
	Height                 float64 `yaml:"height"`
	CenterRotationExponent float64 `yaml:"center_rotation_exponent"`
	Velocity               float64 `yaml:"velocity"`
	Pulse                  float64 `yaml:"pulse"`
	AutoRotation           bool    `yaml:"auto_rotation"`
}

func (p Params) Validate() error {
	if !p.Tier.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownTier, int(p.Tier))
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(p.Kind))
	}
	if p.Count < 2 {
		return fmt.Errorf("%w: count must be at least 2, got %d", ErrInvalid, p.Count)
	}
	if p.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %g", ErrInvalid, p.Radius)
	}
	if p.Height < 0 {
		return fmt.Errorf("%w: height must be non-negative, got %g", ErrInvalid, p.Height)
	}
	if p.TimeStep < 0 {
		return fmt.Errorf("%w: time step must be non-negative, got %g", ErrInvalid, p.TimeStep)
	}
	if p.InteractionRate < 0 || p.InteractionRate > 1 {
		return fmt.Errorf("%w: interaction rate must be in [0, 1], got %g", ErrInvalid, p.InteractionRate)
	}
	return nil
}

// ApplyLiveEdit sets one live field. Calling it with a structural field is a
// programming error.
func (p *Params) ApplyLiveEdit(f Field, value float64) {
	if !f.Live() {
		panic(fmt.Sprintf("config: ApplyLiveEdit on non-live field %q", f))
	}
	p.set(f, value)
}

// Set assigns any field except the scenario kind, after a bounds check.
func (p *Params) Set(f Field, value float64) error {
	if f == KindField {
		return fmt.Errorf("%w: kind is selected through a preset", ErrOutOfRange)
	}
	if err := f.Check(value); err != nil {
		return err
	}
	p.set(f, value)
	return nil
}

func (p *Params) set(f Field, value float64) {
	switch f {
	case Gravity:
		p.Gravity = value
	case InteractionRate:
		p.InteractionRate = value
	case TimeStep:
		p.TimeStep = value
	case BlackHoleForce:
		p.BlackHoleForce = value
	case Luminosity:
		p.Luminosity = value
	case ColorScaleMax:
		p.ColorScaleMax = value
	case ColorScalePercent:
		p.ColorScalePercent = value
		// the panel shows a percentage; disks and the universe scale it differently
		if p.Kind == KindUniverse {
			p.ColorScaleMax = value / 10
		} else {
			p.ColorScaleMax = value * 10
		}
	case HideObscured:
		p.HideObscured = value != 0
	case MotionBlur:
		p.MotionBlur = value != 0
	case Bloom:
		p.Bloom = value
	case Count:
		p.Count = int(math.Round(value))
	case Radius:
		p.Radius = value
	case Height:
		p.Height = value
	case CenterRotationExponent:
		p.CenterRotationExponent = value
	case Velocity:
		p.Velocity = value
	case Pulse:
		p.Pulse = value
	case KindField:
		p.Kind = Kind(int(value))
	case AutoRotation:
		p.AutoRotation = value != 0
	default:
		panic(fmt.Sprintf("config: unknown field %q", f))
	}
}

// Value reads one field as a float; booleans read as 0 or 1.
func (p Params) Value(f Field) float64 {
	switch f {
	case Gravity:
		return p.Gravity
	case InteractionRate:
		return p.InteractionRate
	case TimeStep:
		return p.TimeStep
	case BlackHoleForce:
		return p.BlackHoleForce
	case Luminosity:
		return p.Luminosity
	case ColorScaleMax:
		return p.ColorScaleMax
	case ColorScalePercent:
		return p.ColorScalePercent
	case HideObscured:
		return boolValue(p.HideObscured)
	case MotionBlur:
		return boolValue(p.MotionBlur)
	case Bloom:
		return p.Bloom
	case Count:
		return float64(p.Count)
	case Radius:
		return p.Radius
	case Height:
		return p.Height
	case CenterRotationExponent:
		return p.CenterRotationExponent
	case Velocity:
		return p.Velocity
	case Pulse:
		return p.Pulse
	case KindField:
		return float64(p.Kind)
	case AutoRotation:
		return boolValue(p.AutoRotation)
	}
	return math.NaN()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// KernelUniforms is the named uniform set the integration kernel consumes.
type KernelUniforms struct {
	Gravity         float32
	InteractionRate float32
	TimeStep        float32
	BlackHoleForce  float32
	Luminosity      float32
	ColorScaleMax   float32
}

// Named returns the uniforms keyed by their shader names.
func (u KernelUniforms) Named() map[string]float32 {
	return map[string]float32{
		"gravity":         u.Gravity,
		"interactionRate": u.InteractionRate,
		"timeStep":        u.TimeStep,
		"blackHoleForce":  u.BlackHoleForce,
		"luminosity":      u.Luminosity,
		"colorScaleMax":   u.ColorScaleMax,
	}
}

func (p Params) KernelUniforms() KernelUniforms {
	return KernelUniforms{
		Gravity:         float32(p.Gravity),
		InteractionRate: float32(p.InteractionRate),
		TimeStep:        float32(p.TimeStep),
		BlackHoleForce:  float32(p.BlackHoleForce),
		Luminosity:      float32(p.Luminosity),
		ColorScaleMax:   float32(p.ColorScaleMax),
	}
}

// RenderUniforms is what the renderer reads every frame.
type RenderUniforms struct {
	ColorScaleMax float32
	Luminosity    float32
	HideObscured  bool
	MotionBlur    bool
	Bloom         float32
}

func (p Params) RenderUniforms() RenderUniforms {
	return RenderUniforms{
		ColorScaleMax: float32(p.ColorScaleMax),
		Luminosity:    float32(p.Luminosity),
		HideObscured:  p.HideObscured,
		MotionBlur:    p.MotionBlur,
		Bloom:         float32(p.Bloom),
	}
}

// Camera describes the initial view of a scenario.
type Camera struct {
	Position        [3]float64
	FOV             float64
	Zoom            float64
	AutoRotate      bool
	AutoRotateSpeed float64
}

var (
	nearCamera = [3]float64{15, 112, 168}
	farCamera  = [3]float64{15, 456, 504}
)

func (p Params) Camera() Camera {
	cam := Camera{Position: nearCamera, FOV: 75, Zoom: 1}
	if p.Kind == KindCollision || (p.Kind == KindUniverse && p.Tier == TierCompact) {
		cam.Position = farCamera
	}
	if p.AutoRotation {
		cam.AutoRotate = true
		cam.AutoRotateSpeed = -1
	}
	return cam
}

// Constant is the point-size scale the renderer derives from the viewport
// height: height / (tan(fov/2) / zoom).
func (c Camera) Constant(viewportHeight int) float64 {
	zoom := c.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return float64(viewportHeight) / (math.Tan(c.FOV*math.Pi/180*0.5) / zoom)
}
