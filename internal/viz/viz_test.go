package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/control"
	"github.com/san-kum/quadsim/internal/dynamo"
	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func lit(c *Canvas) int {
	n := 0
	w, h := c.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if c.IsSet(x, y) {
				n++
			}
		}
	}
	return n
}

func TestCanvas(t *testing.T) {
	c := NewCanvas(4, 2)
	if w, h := c.Size(); w != 8 || h != 8 {
		t.Fatalf("size = %dx%d, want 8x8", w, h)
	}
	c.Set(-1, 0)
	c.Set(100, 100)
	if lit(c) != 0 {
		t.Fatal("out of range pixels were drawn")
	}
	c.DrawLine(0, 0, 7, 7)
	if !c.IsSet(0, 0) || !c.IsSet(7, 7) || lit(c) != 8 {
		t.Errorf("diagonal lit %d pixels", lit(c))
	}
	c.Clear()
	c.DrawDotted(0, 0, 7, 0)
	if lit(c) != 4 {
		t.Errorf("dotted line lit %d pixels, want 4", lit(c))
	}
	if got := strings.Count(c.String(), "\n"); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
}

func TestViewport(t *testing.T) {
	c := NewCanvas(20, 10)
	vp := Viewport{CenterH: 1, CenterV: 2, Span: 4}
	tests := []struct {
		h, v         float64
		wantX, wantY int
	}{
		{1, 2, 20, 20},
		{3, 2, 40, 20},
		{-1, 2, 0, 20},
		{1, 3, 20, 10},
	}
	for _, tt := range tests {
		x, y := vp.Map(c, tt.h, tt.v)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("Map(%g, %g) = (%d, %d), want (%d, %d)", tt.h, tt.v, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestViewportMapVec(t *testing.T) {
	c := NewCanvas(20, 10)
	vp := Viewport{CenterH: 1, CenterV: 2, Span: 4}
	side := func(p r3.Vec) (float64, float64) { return p.X, p.Z }

	x, y := vp.MapVec(c, side, r3.Vec{X: 3, Y: 100, Z: 3})
	if x != 40 || y != 10 {
		t.Errorf("MapVec = (%d, %d), want (40, 10)", x, y)
	}
}

func TestProjectionsDrawEveryVariant(t *testing.T) {
	for _, v := range []env.Variant{env.Plain, env.WithReference, env.SlungLoad} {
		t.Run(v.String(), func(t *testing.T) {
			m := newTestModel(t, v)
			m, _ = update(m, TickMsg{})
			top, side := m.drawProjections()
			blank := NewCanvas(viewWidth, viewHeight).String()
			if top == blank || side == blank {
				t.Error("projection left empty after a step")
			}
		})
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	r := NewRecorder(2)
	for i := 0; i < 3; i++ {
		r.Draw(env.Frame{Step: i + 1})
	}
	frames := r.Drain()
	if len(frames) != 2 || frames[0].Step != 1 || frames[1].Step != 2 {
		t.Fatalf("drained %+v", frames)
	}
	if r.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", r.Dropped())
	}
	if len(r.Drain()) != 0 {
		t.Error("second drain returned frames")
	}
}

func TestRender3DDrawsScene(t *testing.T) {
	f := env.Frame{
		Variant: env.SlungLoad,
		Vehicle: physics.Hover(),
		Load:    physics.Load{Position: r3.Vec{Z: -1}},
		Cable:   physics.Taut,
	}
	w := SceneWireframe(f, physics.DefaultArmLength)
	if len(w.Edges) == 0 {
		t.Fatal("empty wireframe")
	}
	c := NewCanvas(60, 20)
	Render3D(c, w, NewCamera())
	if lit(c) == 0 {
		t.Error("nothing rendered")
	}
}

func newTestModel(t *testing.T, v env.Variant) Model {
	t.Helper()
	cfg := env.DefaultConfig(v)
	cfg.Seed = 7
	m, err := NewLive(cfg, func() dynamo.Controller { return control.NewNone(env.ActionDim) })
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModelStepsOnTick(t *testing.T) {
	m := newTestModel(t, env.Plain)
	m, cmd := update(m, TickMsg{})
	if cmd == nil {
		t.Error("tick did not schedule another tick")
	}
	if m.env.Steps() != m.speed || len(m.costs) != m.speed {
		t.Fatalf("steps = %d, costs = %d, want %d", m.env.Steps(), len(m.costs), m.speed)
	}
	if m.last.Step != m.speed {
		t.Errorf("last frame step = %d", m.last.Step)
	}
	if m.ret <= 0 {
		t.Errorf("return = %g, want positive cost accumulated", m.ret)
	}
	view := m.View()
	if !strings.Contains(view, "QUADROTOR") || !strings.Contains(view, "rotor 4") {
		t.Error("view is missing the status panel")
	}
}

func TestModelKeys(t *testing.T) {
	m := newTestModel(t, env.SlungLoad)

	m, _ = update(m, key(" "))
	m, _ = update(m, TickMsg{})
	if m.env.Steps() != 0 {
		t.Fatalf("paused model stepped %d times", m.env.Steps())
	}
	m, _ = update(m, key("n"))
	if m.env.Steps() != 1 {
		t.Fatalf("single step took %d steps", m.env.Steps())
	}

	x := m.env.Target().X
	m, _ = update(m, key("right"))
	if got := m.env.Target().X; got != x+targetNudge {
		t.Errorf("target x = %g, want %g", got, x+targetNudge)
	}

	m, _ = update(m, key("r"))
	if m.env.Steps() != 0 || len(m.costs) != 0 {
		t.Error("reset kept history")
	}

	m, _ = update(m, key("v"))
	if !strings.Contains(m.View(), "⠀") {
		t.Error("perspective view is empty")
	}

	theme := m.theme.Name
	m, _ = update(m, key("t"))
	if m.theme.Name == theme {
		t.Error("theme did not change")
	}

	_, cmd := update(m, key("q"))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestModelTunesPolicy(t *testing.T) {
	cfg := config.GetPreset("quadrotor", "hover")
	ec, err := cfg.EnvConfig()
	if err != nil {
		t.Fatal(err)
	}
	newPolicy, err := cfg.NewPolicy()
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewLive(ec, newPolicy)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.paramKeys) == 0 {
		t.Fatal("pid policy exposes no parameters")
	}
	c := m.policy.(dynamo.Configurable)
	k := m.paramKeys[0]
	before := c.GetParams()[k]
	m, _ = update(m, key("]"))
	if after := c.GetParams()[k]; after <= before {
		t.Errorf("%s = %g after increase, was %g", k, after, before)
	}
}

func TestPicker(t *testing.T) {
	p := NewPicker()
	want := 0
	for v := range config.Presets {
		want += len(config.ListPresets(v))
	}
	if len(p.entries) != want {
		t.Fatalf("entries = %d, want %d", len(p.entries), want)
	}
	next, cmd := p.Update(key("enter"))
	p = next.(Picker)
	if p.mode != pickSim || cmd == nil || p.err != nil {
		t.Fatalf("enter did not open the live view: %v", p.err)
	}
	next, _ = p.Update(key("esc"))
	p = next.(Picker)
	if p.mode != pickMenu {
		t.Error("esc did not return to the menu")
	}
	if !strings.Contains(p.View(), "QUADSIM") {
		t.Error("menu view missing title")
	}
}
