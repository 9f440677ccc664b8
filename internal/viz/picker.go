package viz

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/env"
)

type presetEntry struct {
	variant, name string
	cfg           *config.Config
}

func (p presetEntry) describe() string {
	policy := p.cfg.Policy.Name
	if policy == "" {
		policy = "zero"
	}
	return fmt.Sprintf("%s policy, %.0fs", policy, p.cfg.TimeLimit)
}

const (
	pickMenu = iota
	pickSim
)

// Picker lists the built-in presets and opens the live view on the chosen
// one. Esc returns from the live view to the menu.
type Picker struct {
	mode    int
	cursor  int
	entries []presetEntry
	opts    []env.Option
	live    Model
	err     error
	st      styles
}

// NewPicker returns a preset menu. opts are applied to every environment
// it builds.
func NewPicker(opts ...env.Option) Picker {
	var entries []presetEntry
	variants := make([]string, 0, len(config.Presets))
	for v := range config.Presets {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	for _, v := range variants {
		for _, name := range config.ListPresets(v) {
			entries = append(entries, presetEntry{variant: v, name: name, cfg: config.GetPreset(v, name)})
		}
	}
	return Picker{entries: entries, opts: opts, st: newStyles(Themes[0])}
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if p.mode == pickSim {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
			p.mode = pickMenu
			return p, nil
		}
		next, cmd := p.live.Update(msg)
		p.live = next.(Model)
		return p, cmd
	}
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch k.String() {
	case "q", "ctrl+c":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.entries)-1 {
			p.cursor++
		}
	case "enter", " ":
		return p.start()
	}
	return p, nil
}

func (p Picker) start() (Picker, tea.Cmd) {
	if len(p.entries) == 0 {
		return p, nil
	}
	cfg := p.entries[p.cursor].cfg
	ec, err := cfg.EnvConfig()
	if err != nil {
		p.err = err
		return p, nil
	}
	newPolicy, err := cfg.NewPolicy()
	if err != nil {
		p.err = err
		return p, nil
	}
	live, err := NewLive(ec, newPolicy, p.opts...)
	if err != nil {
		p.err = err
		return p, nil
	}
	p.live, p.mode, p.err = live, pickSim, nil
	return p, live.Init()
}

func (p Picker) View() string {
	if p.mode == pickSim {
		return p.live.View()
	}
	var b strings.Builder
	b.WriteString("\n\n    " + p.st.title.Render("QUADSIM") + "\n    " +
		p.st.hint.Render("quadrotor and slung-load simulator") + "\n    " +
		p.st.Separator(28) + "\n\n")
	for i, e := range p.entries {
		label := fmt.Sprintf("%-24s", e.variant+"/"+e.name)
		if i == p.cursor {
			b.WriteString("    " + p.st.selected.Render("▸ "+label) + "  " + p.st.value.Render(e.describe()) + "\n")
		} else {
			b.WriteString("      " + p.st.hint.Render(label) + "  " + lipgloss.NewStyle().Faint(true).Render(e.describe()) + "\n")
		}
	}
	if p.err != nil {
		b.WriteString("\n    " + p.st.failed.Render(p.err.Error()) + "\n")
	}
	b.WriteString("\n    " + p.st.hint.Render("j/k navigate  enter start  esc back  q quit") + "\n")
	return b.String()
}

// RunInteractive opens the preset menu full-screen.
func RunInteractive(opts ...env.Option) error {
	_, err := tea.NewProgram(NewPicker(opts...), tea.WithAltScreen()).Run()
	return err
}
