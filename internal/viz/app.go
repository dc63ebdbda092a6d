package viz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/galaxysim/internal/analysis"
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/san-kum/galaxysim/internal/sim"
	"github.com/san-kum/galaxysim/internal/store"
)

const (
	panelWidth = 52
	curveBins  = 24
	// the rotation curve is recomputed every curveEvery frames
	curveEvery = 30
)

type TickMsg time.Time

// Options configures the terminal panel.
type Options struct {
	// Store receives snapshots taken with the s key. Nil disables snapshots.
	Store *store.Store
	// Kernel is recorded in snapshot metadata.
	Kernel string
	// FPS is the frame rate the panel ticks at; zero means 60.
	FPS int
}

// Model is the bubbletea control panel around a running controller.
type Model struct {
	ctrl *sim.Controller
	r    *Renderer
	opts Options

	fields   []config.Field
	selected int

	editing bool
	input   string

	showCurve bool
	curve     analysis.Curve
	drawn     uint64

	status string
	err    error

	lastTick time.Time
	fps      float64
	quitting bool
}

// NewModel wraps a controller that was started with r as its renderer.
func NewModel(ctrl *sim.Controller, r *Renderer, opts Options) *Model {
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	fields := make([]config.Field, 0, len(config.LiveFields)+len(config.StructuralFields))
	fields = append(fields, config.LiveFields...)
	fields = append(fields, config.StructuralFields...)
	return &Model{ctrl: ctrl, r: r, opts: opts, fields: fields}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FPS), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	return m.tick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := msg.Width - panelWidth - 6
		h := msg.Height - 2
		if w > 8 && h > 4 {
			m.r.SetSize(w, h)
		}
	case tea.KeyMsg:
		if m.editing {
			m.editKey(msg.String())
			return m, nil
		}
		return m, m.key(msg.String())
	case TickMsg:
		if m.quitting {
			return m, nil
		}
		now := time.Time(msg)
		if !m.lastTick.IsZero() {
			if dt := now.Sub(m.lastTick).Seconds(); dt > 0 {
				m.fps = 0.9*m.fps + 0.1/dt
			}
		}
		m.lastTick = now
		m.frame()
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) frame() {
	if err := m.ctrl.Frame(); err != nil {
		if !errors.Is(err, sim.ErrNotStarted) || m.err == nil {
			m.err = err
		}
		return
	}
	m.drawn++
	if m.showCurve && (m.drawn%curveEvery == 1 || len(m.curve.Radii) == 0) {
		m.refreshCurve()
	}
}

func (m *Model) key(k string) tea.Cmd {
	m.err = nil
	m.status = ""
	switch k {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		m.report(m.ctrl.Shutdown())
		return tea.Quit
	case " ":
		st, err := m.ctrl.TogglePause()
		if m.report(err) {
			m.status = strings.ToLower(st.String())
		}
	case "r":
		if m.report(m.ctrl.Restart()) {
			m.status = fmt.Sprintf("restarted, generation %d", m.ctrl.Generation())
			m.curve = analysis.Curve{}
		}
	case "1", "2", "3":
		kind, _ := config.ParseKind(k)
		if m.report(m.ctrl.SwitchScenario(kind)) {
			m.status = "switched to " + kind.String()
			m.curve = analysis.Curve{}
		}
	case "0":
		if m.report(m.ctrl.ResetParameters()) {
			m.status = "parameters reset"
			m.curve = analysis.Curve{}
		}
	case "up", "k":
		m.selected = (m.selected + len(m.fields) - 1) % len(m.fields)
	case "down", "j", "tab":
		m.selected = (m.selected + 1) % len(m.fields)
	case "left", "h":
		m.nudge(-1)
	case "right", "l":
		m.nudge(1)
	case "enter":
		m.editing = true
		m.input = ""
	case "o":
		v, _ := m.ctrl.Value(config.HideObscured)
		m.report(m.ctrl.SetLiveParam(config.HideObscured, 1-v))
	case "s":
		m.snapshot()
	case "g":
		m.showCurve = !m.showCurve
		if m.showCurve {
			m.refreshCurve()
		}
	case "b":
		m.r.Braille = !m.r.Braille
	case "a", "d", "w", "x":
		if e := m.r.Current(); e != nil {
			switch k {
			case "a":
				e.Rotate(-0.1, 0)
			case "d":
				e.Rotate(0.1, 0)
			case "w":
				e.Rotate(0, 0.1)
			case "x":
				e.Rotate(0, -0.1)
			}
		}
	case "+", "=":
		if e := m.r.Current(); e != nil {
			e.Zoom(1.25)
		}
	case "-", "_":
		if e := m.r.Current(); e != nil {
			e.Zoom(0.8)
		}
	}
	return nil
}

func (m *Model) editKey(k string) {
	switch k {
	case "esc":
		m.editing = false
	case "enter":
		m.editing = false
		v, err := strconv.ParseFloat(m.input, 64)
		if err != nil {
			m.err = fmt.Errorf("not a number: %q", m.input)
			return
		}
		f := m.fields[m.selected]
		m.apply(m.ctrl.Apply(f, v), f)
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	default:
		if len(k) == 1 && strings.ContainsAny(k, "0123456789.-e") {
			m.input += k
		}
	}
}

func (m *Model) nudge(dir float64) {
	m.apply(m.ctrl.Nudge(m.fields[m.selected], dir), m.fields[m.selected])
}

func (m *Model) apply(err error, f config.Field) {
	if m.report(err) && !f.Live() && f != config.KindField {
		m.status = fmt.Sprintf("%s staged, press r to restart", f)
	}
}

func (m *Model) snapshot() {
	if m.opts.Store == nil {
		m.status = "snapshots disabled"
		return
	}
	meta := store.Metadata{
		Seed:       m.ctrl.Seed(),
		Generation: m.ctrl.Generation(),
		Frames:     m.ctrl.Frames(),
		Kernel:     m.opts.Kernel,
	}
	var id string
	err := m.ctrl.Inspect(func(p config.Params, buf *phase.Buffer) error {
		meta.Params = p
		var err error
		id, err = m.opts.Store.Save(meta, buf)
		return err
	})
	if m.report(err) {
		m.status = "saved " + id
	}
}

func (m *Model) refreshCurve() {
	_ = m.ctrl.Inspect(func(p config.Params, buf *phase.Buffer) error {
		plane := analysis.PlaneXZ
		if p.Kind == config.KindUniverse {
			plane = analysis.Sphere
		}
		m.curve = analysis.RotationCurve(buf, plane, curveBins)
		return nil
	})
}

// report records err and reports whether there was none.
func (m *Model) report(err error) bool {
	m.err = err
	return err == nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	frame := ""
	if e := m.r.Current(); e != nil {
		frame = e.Frame()
	}
	if frame == "" {
		frame = strings.Repeat(strings.Repeat(" ", m.r.Width)+"\n", m.r.Height)
	}
	canvasView := canvasStyle.Render(strings.TrimSuffix(frame, "\n"))

	p := m.ctrl.Params()
	var s strings.Builder
	s.WriteString(headerStyle.Render("GALAXYSIM") + "\n")
	s.WriteString(m.statusLine() + "\n\n")

	s.WriteString(labelStyle.Render("Scenario") + valueStyle.Render(fmt.Sprintf("%s / %s", p.Tier, p.Kind)) + "\n")
	if buf := m.ctrl.Buffer(); buf != nil {
		s.WriteString(labelStyle.Render("Particles") + valueStyle.Render(fmt.Sprintf("%d (%d slots)", buf.Requested, buf.Capacity())) + "\n")
	}
	s.WriteString(labelStyle.Render("Generation") + valueStyle.Render(strconv.Itoa(m.ctrl.Generation())) + "\n")
	s.WriteString(labelStyle.Render("Frames") + valueStyle.Render(strconv.FormatUint(m.ctrl.Frames(), 10)) + "\n")
	s.WriteString(labelStyle.Render("FPS") + valueStyle.Render(fmt.Sprintf("%.1f", m.fps)) + "\n")
	s.WriteString(labelStyle.Render("Seed") + valueStyle.Render(strconv.FormatInt(m.ctrl.Seed(), 10)) + "\n")

	s.WriteString("\nPARAMETERS\n")
	for i, f := range m.fields {
		if i == len(config.LiveFields) {
			s.WriteString(Separator(panelWidth-4) + "\n")
		}
		s.WriteString(m.paramLine(i, f) + "\n")
	}

	if m.showCurve && len(m.curve.Speeds) > 1 {
		chart := asciigraph.Plot(m.curve.Speeds,
			asciigraph.Height(5), asciigraph.Width(panelWidth-12),
			asciigraph.Caption("rotation curve"))
		s.WriteString("\n" + graphStyle.Render(chart) + "\n")
	}

	switch {
	case m.err != nil:
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	case m.editing:
		s.WriteString("\n" + activeParamStyle.Render(fmt.Sprintf("%s = %s_", m.fields[m.selected], m.input)) + "\n")
	case m.status != "":
		s.WriteString("\n" + helpStyle.Render(m.status) + "\n")
	}

	s.WriteString(helpStyle.Render("\nSP:pause R:restart 1-3:scenario 0:reset\n↑↓:select ←→:tune ⏎:edit O:obscured\nS:snapshot G:curve B:braille AD/WX/+-:view Q:quit"))

	panel := panelStyle.Width(panelWidth).Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, panel)
}

func (m *Model) statusLine() string {
	st := m.ctrl.State()
	label := strings.ToUpper(st.String())
	switch st {
	case sim.Running:
		return statusRunning.Render("● " + label)
	case sim.Paused:
		return statusPaused.Render("❚❚ " + label)
	}
	return statusIdle.Render("○ " + label)
}

func (m *Model) paramLine(i int, f config.Field) string {
	v, staged := m.ctrl.Value(f)
	lo, hi := f.Range()
	ratio := 0.0
	if hi > lo {
		ratio = (v - lo) / (hi - lo)
	}
	mark := " "
	if staged {
		mark = "*"
	}
	line := fmt.Sprintf("%-22s %s %-9s", f, ProgressBar(ratio, 8), formatValue(f, v))
	switch {
	case i == m.selected:
		return activeParamStyle.Render("> " + line + mark)
	case staged:
		return "  " + stagedStyle.Render(line+mark)
	}
	return "  " + labelStyle.UnsetWidth().Render(line+mark)
}

func formatValue(f config.Field, v float64) string {
	switch f {
	case config.HideObscured, config.MotionBlur, config.AutoRotation:
		if v != 0 {
			return "on"
		}
		return "off"
	case config.KindField:
		return config.Kind(int(v)).String()
	case config.Count:
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'g', 5, 64)
}
