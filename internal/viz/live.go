package viz

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	viewWidth       = 36
	viewHeight      = 12
	historyCapacity = 300
	trailCapacity   = 120
	frameBuffer     = 64
	targetNudge     = 0.25
)

type TickMsg time.Time

const (
	viewProjections = iota
	viewPerspective
)

// Model steps an environment on every tick with a policy and draws the
// frames it receives through a Recorder.
type Model struct {
	env       *env.Env
	rec       *Recorder
	newPolicy func() dynamo.Controller
	policy    dynamo.Controller

	obs    []float64
	action dynamo.Control
	last   env.Frame
	hasFr  bool

	ret      float64
	discount float64
	done     bool
	err      error

	trail    []r3.Vec
	costs    []float64
	altitude []float64

	top, side, persp *Canvas
	camera           *Camera
	view             int

	running  bool
	speed    int
	theme    Theme
	st       styles
	showHelp bool

	paramKeys []string
	selected  int
}

// NewLive builds an environment that reports to a fresh Recorder and wraps
// it in a Model.
func NewLive(cfg env.Config, newPolicy func() dynamo.Controller, opts ...env.Option) (Model, error) {
	rec := NewRecorder(frameBuffer)
	e, err := env.New(cfg, append(opts, env.WithRenderer(rec))...)
	if err != nil {
		return Model{}, err
	}
	return NewModel(e, rec, newPolicy)
}

// NewModel wraps an environment that already draws into rec.
func NewModel(e *env.Env, rec *Recorder, newPolicy func() dynamo.Controller) (Model, error) {
	if e == nil || rec == nil || newPolicy == nil {
		return Model{}, errors.New("viz: environment, recorder and policy are required")
	}
	theme := Themes[0]
	m := Model{
		env:       e,
		rec:       rec,
		newPolicy: newPolicy,
		top:       NewCanvas(viewWidth, viewHeight),
		side:      NewCanvas(viewWidth, viewHeight),
		persp:     NewCanvas(viewWidth*2, viewHeight),
		camera:    NewCamera(),
		running:   true,
		speed:     2,
		theme:     theme,
		st:        newStyles(theme),
	}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		if m.running {
			m.advance(m.speed)
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
	case "n":
		if !m.running {
			m.advance(1)
		}
	case "r":
		if err := m.reset(); err != nil {
			m.err = err
		}
	case ">", ".":
		m.speed = min(m.speed*2, 64)
	case "<", ",":
		m.speed = max(m.speed/2, 1)
	case "t":
		m.theme = NextTheme(m.theme.Name)
		m.st = newStyles(m.theme)
	case "v":
		m.view = (m.view + 1) % 2
	case "?":
		m.showHelp = !m.showHelp
	case "left":
		m.nudge(r3.Vec{X: -targetNudge})
	case "right":
		m.nudge(r3.Vec{X: targetNudge})
	case "up":
		m.nudge(r3.Vec{Y: targetNudge})
	case "down":
		m.nudge(r3.Vec{Y: -targetNudge})
	case "pgup":
		m.nudge(r3.Vec{Z: targetNudge})
	case "pgdown":
		m.nudge(r3.Vec{Z: -targetNudge})
	case "tab":
		if len(m.paramKeys) > 0 {
			m.selected = (m.selected + 1) % len(m.paramKeys)
		}
	case "]":
		m.adjustParam(1.05)
	case "[":
		m.adjustParam(0.95)
	case "x":
		m.camera.RotateX(0.1)
	case "X":
		m.camera.RotateX(-0.1)
	case "y":
		m.camera.RotateY(0.1)
	case "Y":
		m.camera.RotateY(-0.1)
	case "z":
		m.camera.RotateZ(0.1)
	case "Z":
		m.camera.RotateZ(-0.1)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	}
	return m, nil
}

// advance takes up to n environment steps and folds the resulting frames
// into the history buffers.
func (m *Model) advance(n int) {
	for i := 0; i < n && !m.done && m.err == nil; i++ {
		m.action = m.policy.Compute(m.obs, m.env.Time())
		obs, terminal, cost, err := m.env.Step(m.action)
		if err != nil {
			m.err = err
			m.running = false
			break
		}
		m.obs = obs
		m.ret += m.discount * cost
		m.discount *= m.env.Discount()
		if terminal {
			m.ret += m.discount * m.env.TerminalValue()
			m.done = true
		} else if m.env.Time() >= m.env.TimeLimit()-1e-9 {
			m.done = true
		}
	}
	for _, f := range m.rec.Drain() {
		m.observe(f)
	}
}

func (m *Model) observe(f env.Frame) {
	m.last, m.hasFr = f, true
	m.trail = pushVec(m.trail, f.Vehicle.Position, trailCapacity)
	m.costs = push(m.costs, f.Cost, historyCapacity)
	m.altitude = push(m.altitude, f.Vehicle.Position.Z, historyCapacity)
}

func (m *Model) reset() error {
	obs, err := m.env.Reset()
	if err != nil {
		return err
	}
	m.rec.Drain()
	m.obs = obs
	m.policy = m.newPolicy()
	m.action = make(dynamo.Control, env.ActionDim)
	m.ret, m.discount = 0, 1
	m.done, m.err = false, nil
	m.trail, m.costs, m.altitude = m.trail[:0], m.costs[:0], m.altitude[:0]
	m.last = env.Frame{
		Variant:   m.env.Variant(),
		Vehicle:   physics.Body{Orientation: m.env.Orientation(), Position: m.env.Position()},
		Load:      physics.Load{Position: m.env.LoadPosition()},
		Reference: m.env.Reference(),
		Target:    m.env.Target(),
		Cable:     m.env.CableState(),
	}
	m.hasFr = true

	m.paramKeys = m.paramKeys[:0]
	if c, ok := m.policy.(dynamo.Configurable); ok {
		for k := range c.GetParams() {
			m.paramKeys = append(m.paramKeys, k)
		}
		sort.Strings(m.paramKeys)
	}
	m.selected = 0
	return nil
}

func (m *Model) nudge(d r3.Vec) {
	m.env.SetTarget(r3.Add(m.env.Target(), d))
	m.last.Target = m.env.Target()
}

func (m *Model) adjustParam(factor float64) {
	c, ok := m.policy.(dynamo.Configurable)
	if !ok || len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	v := c.GetParams()[key]
	if v == 0 {
		v = 1e-3
	}
	if err := c.SetParam(key, v*factor); err != nil {
		m.err = err
	}
}

func (m Model) View() string {
	var scene string
	if m.view == viewPerspective {
		scene = m.st.panel.Render(m.drawPerspective())
	} else {
		top, side := m.drawProjections()
		scene = lipgloss.JoinHorizontal(lipgloss.Top,
			m.st.panel.Render(m.st.title.Render("top x/y")+"\n"+top),
			m.st.panel.Render(m.st.title.Render("side x/z")+"\n"+side))
	}
	body := lipgloss.JoinVertical(lipgloss.Left, scene, m.status())
	if m.showHelp {
		return lipgloss.JoinHorizontal(lipgloss.Top, body, m.st.panel.Render(helpText))
	}
	return body
}

const helpText = `Space  pause/resume
n      single step while paused
r      reset episode
< >    slower/faster
arrows move target x/y
PgUp/PgDn move target z
v      toggle 3d view
x y z  rotate camera (shift reverses)
+ -    zoom
Tab [ ]  select/tune policy gain
t      cycle theme
q      quit`

func (m *Model) drawProjections() (string, string) {
	m.top.Clear()
	m.side.Clear()
	if !m.hasFr {
		return m.top.String(), m.side.String()
	}
	f := m.last
	arm := m.env.Vehicle().ArmLength * armScale
	topView := Viewport{CenterH: f.Target.X, CenterV: f.Target.Y, Span: 6}
	sideView := Viewport{CenterH: f.Target.X, CenterV: f.Target.Z, Span: 6}

	drawPlane := func(c *Canvas, vp Viewport, pick func(r3.Vec) (float64, float64)) {
		for _, p := range m.trail {
			c.Set(vp.MapVec(c, pick, p))
		}
		tx, ty := vp.MapVec(c, pick, f.Target)
		c.Box(tx, ty, 2)

		rot := f.Vehicle.Rot()
		cx, cy := vp.MapVec(c, pick, f.Vehicle.Position)
		for i := 0; i < 2; i++ {
			a := r3.Scale(arm, rot.Col(i))
			x0, y0 := vp.MapVec(c, pick, r3.Add(f.Vehicle.Position, a))
			x1, y1 := vp.MapVec(c, pick, r3.Sub(f.Vehicle.Position, a))
			c.DrawLine(x0, y0, x1, y1)
		}
		c.Cross(cx, cy, 1)

		switch f.Variant {
		case env.WithReference:
			rx, ry := vp.MapVec(c, pick, f.Reference.Position)
			c.Cross(rx, ry, 2)
		case env.SlungLoad:
			lx, ly := vp.MapVec(c, pick, f.Load.Position)
			if f.Cable == physics.Taut {
				c.DrawLine(cx, cy, lx, ly)
			} else {
				c.DrawDotted(cx, cy, lx, ly)
			}
			c.Box(lx, ly, 1)
		}
	}
	drawPlane(m.top, topView, func(p r3.Vec) (float64, float64) { return p.X, p.Y })
	drawPlane(m.side, sideView, func(p r3.Vec) (float64, float64) { return p.X, p.Z })

	gx0, gy := sideView.Map(m.side, f.Target.X-3, 0)
	gx1, _ := sideView.Map(m.side, f.Target.X+3, 0)
	m.side.DrawDotted(gx0, gy, gx1, gy)
	return m.top.String(), m.side.String()
}

func (m *Model) drawPerspective() string {
	m.persp.Clear()
	if m.hasFr {
		Render3D(m.persp, SceneWireframe(m.last, m.env.Vehicle().ArmLength), m.camera)
	}
	return m.persp.String()
}

func (m Model) status() string {
	var s strings.Builder
	state := m.st.running.Render("RUNNING")
	switch {
	case m.err != nil:
		state = m.st.failed.Render("FAILED")
	case m.done:
		state = m.st.paused.Render("DONE")
	case !m.running:
		state = m.st.paused.Render("PAUSED")
	}
	f := m.last
	s.WriteString(m.st.title.Render(strings.ToUpper(m.env.Variant().String())) + "  " + state +
		m.st.hint.Render(fmt.Sprintf("  x%d  theme %s", m.speed, m.theme.Name)) + "\n")
	s.WriteString(m.st.Separator(2*viewWidth) + "\n")

	row := func(label, value string) {
		s.WriteString(m.st.label.Render(label) + m.st.value.Render(value) + "\n")
	}
	row("time", fmt.Sprintf("%.2f / %.1fs  step %d", m.env.Time(), m.env.TimeLimit(), m.env.Steps()))
	row("position", fmtVec(f.Vehicle.Position))
	row("target", fmtVec(f.Target))
	row("velocity", fmtVec(f.Vehicle.LinVel))
	row("tilt", fmt.Sprintf("%.1f°", tiltDegrees(f.Vehicle)))
	if f.Variant == env.SlungLoad {
		row("load", fmtVec(f.Load.Position)+"  "+f.Cable.String())
	}
	if f.Variant == env.WithReference {
		row("reference", fmtVec(f.Reference.Position))
	}
	row("cost", fmt.Sprintf("%.5f", f.Cost))
	row("return", fmt.Sprintf("%.4f", m.ret))
	row("saturated", fmt.Sprintf("%d", m.env.Saturations()))
	if d := m.rec.Dropped(); d > 0 {
		row("dropped", fmt.Sprintf("%d frames", d))
	}
	if m.err != nil {
		s.WriteString(m.st.failed.Render(m.err.Error()) + "\n")
	}

	s.WriteString("\n")
	for i, u := range m.action {
		s.WriteString(m.st.label.Render(fmt.Sprintf("rotor %d", i+1)) +
			m.st.ProgressBar((u+1)/2, 20) + m.st.value.Render(fmt.Sprintf(" %+.2f", u)) + "\n")
	}
	s.WriteString(m.st.label.Render("altitude") + m.st.Sparkline(m.altitude, 40) + "\n")

	if len(m.paramKeys) > 0 {
		if c, ok := m.policy.(dynamo.Configurable); ok {
			params := c.GetParams()
			s.WriteString("\n")
			for i, k := range m.paramKeys {
				line := fmt.Sprintf("%-8s %.3f", k, params[k])
				if i == m.selected {
					s.WriteString(m.st.selected.Render("> "+line) + "\n")
				} else {
					s.WriteString("  " + m.st.hint.Render(line) + "\n")
				}
			}
		}
	}

	if len(m.costs) > 1 {
		chart := asciigraph.Plot(m.costs, asciigraph.Height(5), asciigraph.Width(2*viewWidth-10), asciigraph.Caption("step cost"))
		s.WriteString("\n" + m.st.graph.Render(chart) + "\n")
	}
	s.WriteString("\n" + m.st.hint.Render("space pause  r reset  v view  ? help  q quit"))
	return m.st.panel.Render(s.String())
}

// Run starts the live view full-screen and blocks until it exits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func tiltDegrees(b physics.Body) float64 {
	up := b.Rot().Col(2).Z
	return math.Acos(math.Max(-1, math.Min(1, up))) * 180 / math.Pi
}

func fmtVec(v r3.Vec) string {
	return fmt.Sprintf("%+6.2f %+6.2f %+6.2f", v.X, v.Y, v.Z)
}

func push(xs []float64, x float64, capacity int) []float64 {
	xs = append(xs, x)
	if len(xs) > capacity {
		xs = xs[1:]
	}
	return xs
}

func pushVec(xs []r3.Vec, x r3.Vec, capacity int) []r3.Vec {
	xs = append(xs, x)
	if len(xs) > capacity {
		xs = xs[1:]
	}
	return xs
}
