package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/formula"
	"github.com/funvibe/formula/internal/gc"
	embed "github.com/funvibe/formula/pkg/embed"
)

type historyEntry struct {
	input  string
	output string
	isErr  bool
}

type replModel struct {
	textInput textinput.Model
	engine    *embed.Engine
	// newEngine builds a fresh engine for :reset.
	newEngine func() (*embed.Engine, error)

	history     []historyEntry
	cmdHistory  []string
	historyIdx  int
	width       int
	height      int
	showHelp    bool
	showVars    bool
	quitting    bool
	initialized bool
}

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Quit  key.Binding
	Clear key.Binding
	Tab   key.Binding
	Vars  key.Binding
	Help  key.Binding
}

var keys = keyMap{
	Up:    key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous command")),
	Down:  key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next command")),
	Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "evaluate")),
	Quit:  key.NewBinding(key.WithKeys("ctrl+c", "ctrl+d"), key.WithHelp("ctrl+c", "quit")),
	Clear: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
	Tab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "complete")),
	Vars:  key.NewBinding(key.WithKeys("ctrl+v"), key.WithHelp("ctrl+v", "toggle vars")),
	Help:  key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("ctrl+k", "toggle help")),
}

func newREPLModel(newEngine func() (*embed.Engine, error)) (replModel, error) {
	e, err := newEngine()
	if err != nil {
		return replModel{}, err
	}
	ti := textinput.New()
	ti.Placeholder = "type a formula..."
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60
	ti.PromptStyle = promptStyle
	ti.Prompt = "formula> "

	return replModel{
		textInput:  ti,
		engine:     e,
		newEngine:  newEngine,
		historyIdx: -1,
	}, nil
}

func (m replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 12
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Clear):
			m.history = nil
			return m, nil

		case key.Matches(msg, keys.Vars):
			m.showVars = !m.showVars
			return m, nil

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, keys.Up):
			if len(m.cmdHistory) > 0 {
				if m.historyIdx == -1 {
					m.historyIdx = len(m.cmdHistory) - 1
				} else if m.historyIdx > 0 {
					m.historyIdx--
				}
				m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.historyIdx != -1 {
				if m.historyIdx < len(m.cmdHistory)-1 {
					m.historyIdx++
					m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				} else {
					m.historyIdx = -1
					m.textInput.SetValue("")
				}
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Tab):
			return m.complete(), nil

		case key.Matches(msg, keys.Enter):
			input := strings.TrimSpace(m.textInput.Value())
			m.textInput.SetValue("")
			m.historyIdx = -1
			if input == "" {
				return m, nil
			}
			m.cmdHistory = append(m.cmdHistory, input)
			if strings.HasPrefix(input, ":") {
				return m.handleCommand(input)
			}
			output, isErr := m.evaluate(input)
			m.history = append(m.history, historyEntry{input: input, output: output, isErr: isErr})
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m replModel) handleCommand(input string) (replModel, tea.Cmd) {
	parts := strings.Fields(input)
	entry := historyEntry{input: input}

	switch parts[0] {
	case ":help", ":h":
		m.showHelp = !m.showHelp
		return m, nil
	case ":clear", ":c":
		m.history = nil
		return m, nil
	case ":vars", ":v":
		m.showVars = !m.showVars
		return m, nil
	case ":quit", ":q":
		m.quitting = true
		return m, tea.Quit
	case ":reset", ":r":
		e, err := m.newEngine()
		if err != nil {
			entry.output, entry.isErr = err.Error(), true
		} else {
			m.engine = e
			formula.ClearCache()
			entry.output = "Environment reset"
		}
	case ":let", ":l":
		if len(parts) < 3 || !isIdentifier(parts[1]) {
			entry.output, entry.isErr = "usage: :let <name> <formula>", true
			break
		}
		rest := strings.TrimSpace(input[len(parts[0]):])
		src := strings.TrimSpace(rest[len(parts[1]):])
		v, err := m.engine.Eval(src)
		if err == nil {
			err = m.engine.Set(parts[1], v)
		}
		if err != nil {
			entry.output, entry.isErr = err.Error(), true
			break
		}
		entry.output = parts[1] + " = " + formatValue(v)
	case ":classes":
		names := m.engine.Registry().Names()
		if len(names) == 0 {
			entry.output = "no classes in the class directory"
		} else {
			entry.output = strings.Join(names, ", ")
		}
	case ":stats":
		entries, live := formula.CacheStats()
		entry.output = fmt.Sprintf("%s cached formulas, %s held strongly",
			humanize.Comma(int64(entries)), humanize.Comma(int64(live)))
	case ":gc":
		var stats gc.Stats
		m.engine.Collect(func(s gc.Stats) { stats = s })
		if err := m.engine.RunPending(); err != nil {
			entry.output, entry.isErr = err.Error(), true
			break
		}
		entry.output = fmt.Sprintf("swept %s objects, broke %s references, %s live",
			humanize.Comma(int64(stats.Swept)), humanize.Comma(int64(stats.Broken)), humanize.Comma(int64(m.engine.Live())))
	default:
		entry.output, entry.isErr = "Unknown command: "+parts[0], true
	}
	m.history = append(m.history, entry)
	return m, nil
}

func (m replModel) complete() replModel {
	input := m.textInput.Value()
	words := strings.FieldsFunc(input, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if len(words) == 0 || !strings.HasSuffix(input, words[len(words)-1]) {
		return m
	}
	last := words[len(words)-1]

	var completions []string
	for _, name := range append(evaluator.BuiltinNames(), m.engine.Names()...) {
		if strings.HasPrefix(name, last) {
			completions = append(completions, name)
		}
	}
	sort.Strings(completions)

	switch {
	case len(completions) == 1:
		m.textInput.SetValue(strings.TrimSuffix(input, last) + completions[0])
		m.textInput.CursorEnd()
	case len(completions) > 1:
		m.history = append(m.history, historyEntry{output: "Completions: " + strings.Join(completions, ", ")})
	}
	return m
}

func (m replModel) evaluate(input string) (string, bool) {
	v, err := m.engine.Eval(input)
	if err != nil {
		return err.Error(), true
	}
	m.engine.Set("_", v)
	return formatValue(v), false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		letter := r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
		if !letter && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// formatValue prints an exported value in formula syntax.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "\\'") + "'"
	case []interface{}:
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = formatValue(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = formatValue(k) + ": " + formatValue(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v)
}

func (m replModel) View() string {
	if !m.initialized {
		return "Loading..."
	}
	if m.quitting {
		return mutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("formula REPL") + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(min(m.width-2, 60), 0))) + "\n\n")

	reserved := 8
	if m.showHelp {
		reserved += 12
	}
	if m.showVars {
		reserved += len(m.engine.Names()) + 3
	}
	start := 0
	if avail := m.height - reserved; avail > 0 && len(m.history) > avail {
		start = len(m.history) - avail
	}
	for _, entry := range m.history[start:] {
		if entry.input != "" {
			b.WriteString(mutedStyle.Render("  › ") + entry.input + "\n")
		}
		if entry.isErr {
			b.WriteString("  " + errorStyle.Render("✗ "+entry.output) + "\n")
		} else {
			b.WriteString("  " + resultStyle.Render("→ "+entry.output) + "\n")
		}
	}
	b.WriteString("\n")

	if m.showVars {
		b.WriteString(m.renderVars() + "\n")
	}
	if m.showHelp {
		b.WriteString(renderHelp() + "\n")
	}

	b.WriteString(m.textInput.View() + "\n\n")
	b.WriteString(helpKeyStyle.Render("ctrl+k") + mutedStyle.Render(" help  ") +
		helpKeyStyle.Render("ctrl+v") + mutedStyle.Render(" vars  ") +
		helpKeyStyle.Render("ctrl+c") + mutedStyle.Render(" quit"))
	return b.String()
}

func (m replModel) renderVars() string {
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Variables")}
	nameStyle := lipgloss.NewStyle().Foreground(highlightColor)
	for _, name := range m.engine.Names() {
		v, err := m.engine.Get(name)
		text := formatValue(v)
		if err != nil {
			text = err.Error()
		}
		lines = append(lines, fmt.Sprintf("  %s = %s", nameStyle.Render(name), text))
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func renderHelp() string {
	help := []struct{ key, desc string }{
		{"↑/↓", "Navigate command history"},
		{"Tab", "Complete builtins and variables"},
		{":let", "Bind a name: :let p construct('Point', {x: 1})"},
		{":classes", "List the classes that can be loaded"},
		{":stats", "Show formula cache statistics"},
		{":gc", "Collect objects no longer reachable"},
		{":vars", "Toggle variables panel"},
		{":clear", "Clear history"},
		{":reset", "Reset the environment"},
		{":quit", "Exit"},
	}
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Help")}
	for _, h := range help {
		lines = append(lines, fmt.Sprintf("  %s  %s",
			helpKeyStyle.Render(fmt.Sprintf("%-8s", h.key)), mutedStyle.Render(h.desc)))
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func replCommand(args []string) error {
	fs, settingsPath := newFlagSet("repl")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	m, err := newREPLModel(func() (*embed.Engine, error) { return embed.Open(s) })
	if err != nil {
		return err
	}
	defer func() { m.engine.Close() }()
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
