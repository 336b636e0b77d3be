package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-executor/engine"
	"github.com/wippyai/wasm-executor/runtime"
)

var (
	accent = lipgloss.Color("#2E8B57")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(accent).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	funcStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0C068"))
	typeStyle     = lipgloss.NewStyle().Faint(true)
	resultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FDBCA"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C6370"))
)

type inputMode int

const (
	modeString inputMode = iota
	modeHex
)

func (m inputMode) String() string {
	if m == modeHex {
		return "hex"
	}
	return "string"
}

type modelState int

const (
	stateSelectEntry modelState = iota
	stateInput
	stateShowResult
)

type interactiveModel struct {
	err      error
	cfg      runtime.Config
	rt       *runtime.Runtime
	instance *runtime.Instance
	filename string
	entries  []string
	output   []byte
	input    textinput.Model
	heapBase uint32
	memory   uint32
	selected int
	mode     inputMode
	state    modelState
	loaded   bool
	busy     bool // a call is in flight; the instance allows one at a time
}

func newInteractiveModel(filename string, cfg runtime.Config) *interactiveModel {
	ti := textinput.New()
	ti.Width = 60
	return &interactiveModel{
		filename: filename,
		cfg:      cfg,
		input:    ti,
		state:    stateSelectEntry,
	}
}

type loadedMsg struct {
	err     error
	rt      *runtime.Runtime
	inst    *runtime.Instance
	entries []string
}

type callResultMsg struct {
	err    error
	output []byte
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

// loadModule compiles the module and keeps one instance for the session,
// so guest state persists across calls.
func (m *interactiveModel) loadModule() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	rt, err := runtime.New(ctx, runtime.WithConfig(m.cfg))
	if err != nil {
		return loadedMsg{err: err}
	}

	mod, err := rt.LoadModule(ctx, data)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	inst, err := mod.InstantiateWithConfig(ctx, &engine.InstanceConfig{})
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{rt: rt, inst: inst, entries: mod.Entrypoints()}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "q":
			if m.state != stateInput {
				return m, m.quit()
			}

		case "up", "k":
			if m.state == stateSelectEntry && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectEntry && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "ctrl+t":
			if m.state == stateInput {
				m.mode = 1 - m.mode
				m.input.Placeholder = m.mode.String()
			}

		case "enter":
			switch m.state {
			case stateSelectEntry:
				if len(m.entries) == 0 {
					return m, nil
				}
				m.input.Reset()
				m.input.Placeholder = m.mode.String()
				m.input.Prompt = "input: "
				m.input.Focus()
				m.state = stateInput
				return m, textinput.Blink

			case stateInput:
				if m.busy {
					return m, nil
				}
				m.busy = true
				return m, m.callEntry(m.entries[m.selected], m.input.Value(), m.mode)

			case stateShowResult:
				m.reset()
			}

		case "esc":
			switch m.state {
			case stateInput:
				m.input.Blur()
				m.state = stateSelectEntry
			case stateShowResult:
				m.reset()
			}
		}

	case loadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.instance = msg.inst
		m.entries = msg.entries
		m.refreshStats()

	case callResultMsg:
		m.busy = false
		m.output = msg.output
		m.err = msg.err
		m.state = stateShowResult
		m.input.Blur()
		m.refreshStats()
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectEntry
	m.output = nil
	m.err = nil
}

func (m *interactiveModel) refreshStats() {
	if m.instance == nil {
		return
	}
	m.memory = m.instance.Wrapper().MemorySize()
	if hb, err := m.instance.HeapBase(); err == nil {
		m.heapBase = hb
	}
}

func (m *interactiveModel) quit() tea.Cmd {
	if m.busy {
		// The process is exiting; leave the instance to the in-flight call.
		return tea.Quit
	}
	ctx := context.Background()
	if m.instance != nil {
		m.instance.Close(ctx)
	}
	if m.rt != nil {
		m.rt.Close(ctx)
	}
	return tea.Quit
}

func (m *interactiveModel) callEntry(name, raw string, mode inputMode) tea.Cmd {
	inst := m.instance
	return func() tea.Msg {
		input := []byte(raw)
		if mode == modeHex {
			var err error
			if input, err = parseHex(raw); err != nil {
				return callResultMsg{err: err}
			}
		}
		out, err := inst.Call(context.Background(), name, input)
		return callResultMsg{output: out, err: err}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if !m.loaded {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("WASM Executor"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n")
	b.WriteString(typeStyle.Render(fmt.Sprintf("memory %d bytes, heap base %d", m.memory, m.heapBase)))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectEntry:
		if len(m.entries) == 0 {
			b.WriteString("No (i32, i32) -> i64 entrypoints exported.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select an entrypoint:\n\n")
		for i, name := range m.entries {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + name))
			} else {
				b.WriteString("  " + funcStyle.Render(name))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter choose • q quit"))

	case stateInput:
		b.WriteString(fmt.Sprintf("Calling %s with %s input\n\n", funcStyle.Render(m.entries[m.selected]), typeStyle.Render(m.mode.String())))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • ctrl+t toggle hex/string • esc back"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(m.entries[m.selected])))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(fmt.Sprintf("%d bytes\n%s", len(m.output), printable(m.output))))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(filename string, cfg runtime.Config) error {
	p := tea.NewProgram(newInteractiveModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
