package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	classStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	b        *bridge.Bridge
	demo     *demo
	result   *castResult
	filter   textinput.Model
	cfg      config.Config
	samples  []sample
	targets  []*bridge.Class
	source   int
	selected int
	state    modelState
}

type modelState int

const (
	stateSelectSource modelState = iota
	stateSelectTarget
	stateShowResult
)

func newInteractiveModel(cfg config.Config) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "class name"
	ti.Prompt = "to: "
	ti.Width = 30
	return &interactiveModel{
		cfg:    cfg,
		filter: ti,
		state:  stateSelectSource,
	}
}

type loadedMsg struct {
	err  error
	b    *bridge.Bridge
	demo *demo
}

type castResultMsg struct {
	err    error
	result castResult
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadBridge
}

func (m *interactiveModel) loadBridge() tea.Msg {
	ctx := context.Background()

	b, err := bridge.New(ctx, bridge.WithConfig(m.cfg))
	if err != nil {
		return loadedMsg{err: err}
	}
	d, err := newDemo(b)
	if err != nil {
		b.Close(ctx)
		return loadedMsg{err: err}
	}
	return loadedMsg{b: b, demo: d}
}

func (m *interactiveModel) close() {
	if m.demo != nil {
		m.demo.close()
	}
	if m.b != nil {
		m.b.Close(context.Background())
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.close()
			return m, tea.Quit

		case "q":
			if m.state != stateSelectTarget {
				m.close()
				return m, tea.Quit
			}

		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.selected < m.listLen()-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateSelectSource:
				if len(m.samples) == 0 {
					return m, nil
				}
				m.source = m.selected
				m.selected = 0
				m.filter.SetValue("")
				m.filter.Focus()
				m.refreshTargets()
				m.state = stateSelectTarget
				return m, textinput.Blink

			case stateSelectTarget:
				if len(m.targets) == 0 {
					return m, nil
				}
				return m, m.runCast

			case stateShowResult:
				m.state = stateSelectSource
				m.selected = m.source
				m.result = nil
				m.err = nil
			}
			return m, nil

		case "esc":
			switch m.state {
			case stateSelectTarget:
				m.filter.Blur()
				m.state = stateSelectSource
				m.selected = m.source
			case stateShowResult:
				m.state = stateSelectTarget
				m.selected = 0
				m.result = nil
				m.err = nil
			}
			return m, nil
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.b = msg.b
		m.demo = msg.demo
		m.samples = msg.demo.samples()

	case castResultMsg:
		m.err = msg.err
		if msg.err == nil {
			r := msg.result
			m.result = &r
		}
		m.state = stateShowResult
	}

	if m.state == stateSelectTarget {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refreshTargets()
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) listLen() int {
	switch m.state {
	case stateSelectSource:
		return len(m.samples)
	case stateSelectTarget:
		return len(m.targets)
	}
	return 0
}

func (m *interactiveModel) refreshTargets() {
	prefix := strings.ToLower(m.filter.Value())
	m.targets = m.targets[:0]
	for _, c := range m.b.Classes() {
		if strings.HasPrefix(strings.ToLower(c.Name()), prefix) {
			m.targets = append(m.targets, c)
		}
	}
	if m.selected >= len(m.targets) {
		m.selected = max(len(m.targets)-1, 0)
	}
}

func (m *interactiveModel) runCast() tea.Msg {
	r, err := m.demo.cast(m.samples[m.source], m.targets[m.selected].Name())
	return castResultMsg{result: r, err: err}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.b == nil {
		return "Loading bridge..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Cast Explorer"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%s arena, %d cached casts", m.cfg.Arena, m.b.Graph().CacheLen()))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectSource:
		b.WriteString("Select an object:\n\n")
		for i, s := range m.samples {
			m.writeItem(&b, i, m.formatSample(s))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter choose target • q quit"))

	case stateSelectTarget:
		s := m.samples[m.source]
		b.WriteString(fmt.Sprintf("Cast %s\n\n", m.formatSample(s)))
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, c := range m.targets {
			m.writeItem(&b, i, m.formatClass(c))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter cast • esc back"))

	case stateShowResult:
		s := m.samples[m.source]
		b.WriteString(fmt.Sprintf("Cast of %s:\n\n", m.formatSample(s)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else if m.result.ptr == nil {
			b.WriteString(errorStyle.Render(m.result.String()))
		} else {
			b.WriteString(resultStyle.Render(m.result.String()))
		}
		b.WriteString("\n\n")
		b.WriteString(m.formatEdges(s.view))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter continue • esc other target • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) writeItem(b *strings.Builder, i int, text string) {
	if i == m.selected {
		b.WriteString(selectedStyle.Render("> " + text))
	} else {
		b.WriteString("  " + text)
	}
	b.WriteString("\n")
}

func (m *interactiveModel) formatSample(s sample) string {
	if s.object == s.view {
		return classStyle.Render(s.object.Name())
	}
	return classStyle.Render(s.object.Name()) + " as " + typeStyle.Render(s.view.Name())
}

func (m *interactiveModel) formatClass(c *bridge.Class) string {
	out := classStyle.Render(c.Name()) + " " + typeStyle.Render(c.Type().String())
	if c.Polymorphic() {
		out += " polymorphic"
	}
	return out
}

func (m *interactiveModel) formatEdges(from *bridge.Class) string {
	types := m.b.Types()
	var b strings.Builder
	b.WriteString("Edges from " + classStyle.Render(from.Name()) + ":\n")
	for _, e := range m.b.Graph().Edges() {
		if e.Src != from.Key() {
			continue
		}
		kind := "up"
		if e.Downcast {
			kind = "down"
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", typeStyle.Render(types.Name(e.Dst)), kind))
	}
	return b.String()
}

func runInteractive(cfg config.Config) error {
	p := tea.NewProgram(newInteractiveModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
