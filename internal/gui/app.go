// Package gui is the raylib window front end: a 3D point renderer for the
// controller's buffers and a HUD for driving it from the keyboard.
package gui

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/san-kum/galaxysim/internal/compute"
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/san-kum/galaxysim/internal/sim"
	"github.com/san-kum/galaxysim/internal/store"
)

//go:embed shaders/bloom.fs
var bloomSource string

var (
	ColBg      = rl.NewColor(6, 6, 10, 255)
	ColAccent  = rl.NewColor(180, 180, 180, 255)
	ColSelect  = rl.NewColor(255, 255, 255, 255)
	ColText    = rl.NewColor(140, 140, 140, 255)
	ColTextDim = rl.NewColor(70, 70, 70, 255)
	ColStaged  = rl.NewColor(255, 170, 0, 255)
	ColError   = rl.NewColor(255, 68, 68, 255)
)

// Config selects what the window starts with.
type Config struct {
	Tier  config.Tier
	Kind  config.Kind
	Edits []config.Edit

	// Backend is "cpu", "gl" or empty to prefer the GL kernel and fall back
	// to the CPU one.
	Backend string
	Workers int
	// Seed makes regenerations reproducible when non-zero.
	Seed int64

	Width, Height int
	Store         *store.Store
	Logger        *slog.Logger
}

type App struct {
	cfg    Config
	log    *slog.Logger
	ctrl   *sim.Controller
	view   *View
	kernel string

	font   rl.Font
	target rl.RenderTexture2D
	bloom  rl.Shader
	locs   struct{ size, intensity int32 }

	fields    []config.Field
	selected  int
	showPanel bool
	status    string
	err       error
}

func initWindow(w, h int) {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(w), int32(h), "galaxysim")
	rl.SetTargetFPS(60)
	rl.SetExitKey(0)
}

func loadFont() rl.Font {
	font := rl.LoadFontEx("/usr/share/fonts/liberation/LiberationMono-Regular.ttf", 32, nil, 0)
	rl.SetTextureFilter(font.Texture, rl.FilterBilinear)
	return font
}

// Run opens the window and blocks until it is closed.
func Run(cfg Config) error {
	if cfg.Width <= 0 {
		cfg.Width = config.DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = config.DefaultHeight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	initWindow(cfg.Width, cfg.Height)
	defer rl.CloseWindow()

	a := &App{cfg: cfg, log: cfg.Logger, view: NewView(), showPanel: true}
	a.fields = append(append(a.fields, config.LiveFields...), config.StructuralFields...)
	if err := a.start(); err != nil {
		return err
	}

	a.font = loadFont()
	a.target = rl.LoadRenderTexture(int32(cfg.Width), int32(cfg.Height))
	a.bloom = rl.LoadShaderFromMemory("", bloomSource)
	a.locs.size = rl.GetShaderLocation(a.bloom, "size")
	a.locs.intensity = rl.GetShaderLocation(a.bloom, "intensity")
	defer func() {
		rl.UnloadShader(a.bloom)
		rl.UnloadRenderTexture(a.target)
	}()

	for !rl.WindowShouldClose() {
		if a.Update() {
			break
		}
		a.Draw()
	}
	return a.ctrl.Shutdown()
}

// start builds the controller. Without an explicit backend the GL kernel is
// tried first; a window without a 4.3 context falls back to the CPU kernel.
func (a *App) start() error {
	auto := a.cfg.Backend == "" || a.cfg.Backend == "auto"
	var kernel compute.Kernel
	if auto {
		kernel = compute.AutoSelect(true, a.cfg.Workers)
	} else {
		b, err := compute.ParseBackend(a.cfg.Backend)
		if err != nil {
			return err
		}
		if kernel, err = compute.NewKernel(b, a.cfg.Workers); err != nil {
			return err
		}
	}

	err := a.launch(kernel)
	if err != nil && auto && kernel.Name() != string(compute.BackendCPU) {
		a.log.Warn("gl kernel unavailable, using cpu", "err", err)
		_ = a.ctrl.Shutdown()
		err = a.launch(compute.NewCPUKernel(a.cfg.Workers))
	}
	return err
}

func (a *App) launch(kernel compute.Kernel) error {
	opts := []sim.Option{
		sim.WithLogger(a.log),
		sim.WithWorkers(a.cfg.Workers),
		sim.WithViewport(a.cfg.Width, a.cfg.Height),
	}
	if a.cfg.Seed != 0 {
		opts = append(opts, sim.WithSeed(a.cfg.Seed))
	}
	a.ctrl = sim.New(kernel, a.view, opts...)
	a.kernel = kernel.Name()
	return a.ctrl.Start(a.cfg.Tier, a.cfg.Kind, a.cfg.Edits...)
}

// Update handles input and reports whether the user asked to quit.
func (a *App) Update() bool {
	if rl.IsKeyPressed(rl.KeyQ) || rl.IsKeyPressed(rl.KeyEscape) {
		return true
	}

	if rl.IsWindowResized() {
		w, h := rl.GetScreenWidth(), rl.GetScreenHeight()
		if w > 0 && h > 0 {
			rl.UnloadRenderTexture(a.target)
			a.target = rl.LoadRenderTexture(int32(w), int32(h))
			a.report(a.ctrl.Resize(w, h))
		}
	}

	switch {
	case rl.IsKeyPressed(rl.KeySpace):
		_, err := a.ctrl.TogglePause()
		a.report(err)
	case rl.IsKeyPressed(rl.KeyR):
		if a.report(a.ctrl.Restart()) {
			a.status = fmt.Sprintf("generation %d", a.ctrl.Generation())
		}
	case rl.IsKeyPressed(rl.KeyOne):
		a.report(a.ctrl.SwitchScenario(config.KindGalaxy))
	case rl.IsKeyPressed(rl.KeyTwo):
		a.report(a.ctrl.SwitchScenario(config.KindUniverse))
	case rl.IsKeyPressed(rl.KeyThree):
		a.report(a.ctrl.SwitchScenario(config.KindCollision))
	case rl.IsKeyPressed(rl.KeyZero):
		a.report(a.ctrl.ResetParameters())
	case rl.IsKeyPressed(rl.KeyDown) || rl.IsKeyPressed(rl.KeyJ):
		a.selected = (a.selected + 1) % len(a.fields)
	case rl.IsKeyPressed(rl.KeyUp) || rl.IsKeyPressed(rl.KeyK):
		a.selected = (a.selected + len(a.fields) - 1) % len(a.fields)
	case rl.IsKeyPressed(rl.KeyRight) || rl.IsKeyPressed(rl.KeyL):
		a.nudge(1)
	case rl.IsKeyPressed(rl.KeyLeft) || rl.IsKeyPressed(rl.KeyH):
		a.nudge(-1)
	case rl.IsKeyPressed(rl.KeyO):
		a.toggle(config.HideObscured)
	case rl.IsKeyPressed(rl.KeyM):
		a.toggle(config.MotionBlur)
	case rl.IsKeyPressed(rl.KeyS):
		a.snapshot()
	case rl.IsKeyPressed(rl.KeyTab):
		a.showPanel = !a.showPanel
	}

	if e := a.view.Current(); e != nil {
		e.Advance(float64(rl.GetFrameTime()))
		if rl.IsMouseButtonDown(rl.MouseButtonLeft) {
			d := rl.GetMouseDelta()
			e.Orbit(-float64(d.X)*0.005, float64(d.Y)*0.005)
		}
		if rl.IsKeyDown(rl.KeyA) {
			e.Orbit(-0.02, 0)
		}
		if rl.IsKeyDown(rl.KeyD) {
			e.Orbit(0.02, 0)
		}
		if rl.IsKeyDown(rl.KeyW) {
			e.Orbit(0, 0.02)
		}
		if rl.IsKeyDown(rl.KeyX) {
			e.Orbit(0, -0.02)
		}
		if wheel := rl.GetMouseWheelMove(); wheel != 0 {
			e.Dolly(1 - float64(wheel)*0.1)
		}
	}
	return false
}

func (a *App) nudge(dir float64) {
	f := a.fields[a.selected]
	if rl.IsKeyDown(rl.KeyLeftShift) {
		dir *= 10
	}
	if a.report(a.ctrl.Nudge(f, dir)) && !f.Live() && f != config.KindField {
		a.status = fmt.Sprintf("%s staged, R to restart", f)
	}
}

func (a *App) toggle(f config.Field) {
	v, _ := a.ctrl.Value(f)
	a.report(a.ctrl.SetLiveParam(f, 1-v))
}

func (a *App) snapshot() {
	if a.cfg.Store == nil {
		a.status = "snapshots disabled"
		return
	}
	meta := store.Metadata{
		Seed:       a.ctrl.Seed(),
		Generation: a.ctrl.Generation(),
		Frames:     a.ctrl.Frames(),
		Kernel:     a.kernel,
	}
	var id string
	err := a.ctrl.Inspect(func(p config.Params, buf *phase.Buffer) error {
		meta.Params = p
		var err error
		id, err = a.cfg.Store.Save(meta, buf)
		return err
	})
	if a.report(err) {
		a.status = "saved " + id
		a.log.Info("snapshot saved", "id", id)
	}
}

func (a *App) report(err error) bool {
	a.err = err
	if err != nil {
		a.status = ""
		a.log.Warn("action failed", "err", err)
	}
	return err == nil
}

func (a *App) Draw() {
	p := a.ctrl.Params()
	w, h := float32(a.target.Texture.Width), float32(a.target.Texture.Height)

	rl.BeginTextureMode(a.target)
	if p.MotionBlur {
		rl.DrawRectangle(0, 0, int32(w), int32(h), rl.ColorAlpha(ColBg, 0.2))
	} else {
		rl.ClearBackground(ColBg)
	}
	if e := a.view.Current(); e != nil {
		rl.BeginMode3D(e.Camera())
		if err := a.ctrl.Frame(); err != nil && !errors.Is(err, sim.ErrNotStarted) {
			a.report(err)
		}
		rl.EndMode3D()
	}
	rl.EndTextureMode()

	rl.BeginDrawing()
	rl.ClearBackground(ColBg)
	if p.Bloom > 0 {
		rl.SetShaderValue(a.bloom, a.locs.size, []float32{w, h}, rl.ShaderUniformVec2)
		rl.SetShaderValue(a.bloom, a.locs.intensity, []float32{float32(p.Bloom)}, rl.ShaderUniformFloat)
		rl.BeginShaderMode(a.bloom)
	}
	// render textures are stored upside down
	rl.DrawTextureRec(a.target.Texture, rl.NewRectangle(0, 0, w, -h), rl.NewVector2(0, 0), rl.White)
	if p.Bloom > 0 {
		rl.EndShaderMode()
	}
	a.drawHUD(p)
	rl.EndDrawing()
}

func (a *App) drawHUD(p config.Params) {
	sh := int(rl.GetScreenHeight())
	sw := int(rl.GetScreenWidth())

	a.drawText("galaxysim", 30, 30, 24, ColSelect)
	a.drawText(fmt.Sprintf(":: %s / %s", p.Tier, p.Kind), 170, 34, 16, ColText)

	st := a.ctrl.State()
	col := ColSelect
	if st != sim.Running {
		col = ColTextDim
	}
	a.drawText(strings.ToUpper(st.String()), sw-140, 30, 16, col)

	info := fmt.Sprintf("gen %d  frame %d  kernel %s", a.ctrl.Generation(), a.ctrl.Frames(), a.kernel)
	if buf := a.ctrl.Buffer(); buf != nil {
		info += fmt.Sprintf("  particles %d/%d", buf.Requested, buf.Capacity())
	}
	a.drawText(info, 30, 60, 14, ColTextDim)

	if a.showPanel {
		y := 100
		for i, f := range a.fields {
			if i == len(config.LiveFields) {
				y += 10
			}
			v, staged := a.ctrl.Value(f)
			line := fmt.Sprintf("  %-24s %g", f, v)
			c := ColText
			switch {
			case i == a.selected:
				line = ">" + line[1:]
				c = ColSelect
			case staged:
				c = ColStaged
			}
			if staged {
				line += " *"
			}
			a.drawText(line, 30, y, 14, c)
			y += 18
		}
	}

	switch {
	case a.err != nil:
		a.drawText(a.err.Error(), 30, sh-70, 14, ColError)
	case a.status != "":
		a.drawText(a.status, 30, sh-70, 14, ColAccent)
	}
	a.drawText(fmt.Sprintf("%d FPS", rl.GetFPS()), 30, sh-40, 14, ColTextDim)
	a.drawText("[SPACE] PAUSE [R] RESTART [1-3] SCENARIO [0] RESET [O] OBSCURED [M] BLUR [S] SNAPSHOT [TAB] PANEL [Q] QUIT",
		200, sh-40, 14, ColTextDim)
}

func (a *App) drawText(text string, x, y int, size int, color rl.Color) {
	rl.DrawTextEx(a.font, text, rl.NewVector2(float32(x), float32(y)), float32(size), 1, color)
}
