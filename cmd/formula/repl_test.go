package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	embed "github.com/funvibe/formula/pkg/embed"
)

const pointClass = `
properties:
  x: {type: int, default: 0}
  y: {type: int, default: 0}
  sum: "x + y"
`

func newTestModel(t *testing.T) replModel {
	t.Helper()
	m, err := newREPLModel(func() (*embed.Engine, error) {
		return embed.New(map[string]string{"Point": pointClass}), nil
	})
	if err != nil {
		t.Fatalf("newREPLModel: %v", err)
	}
	return m
}

func enter(t *testing.T, m replModel, input string) (replModel, tea.Cmd) {
	t.Helper()
	m.textInput.SetValue(input)
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	rm, ok := model.(replModel)
	if !ok {
		t.Fatalf("unexpected model type %T", model)
	}
	if rm.textInput.Value() != "" {
		t.Fatalf("input not cleared after %q", input)
	}
	return rm, cmd
}

func lastOutput(m replModel) historyEntry {
	return m.history[len(m.history)-1]
}

func TestQuitCommandReturnsQuit(t *testing.T) {
	m, cmd := enter(t, newTestModel(t), ":quit")
	if !m.quitting {
		t.Fatalf("quitting flag not set")
	}
	if cmd == nil {
		t.Fatalf("expected tea.Quit command")
	}
	if msg := cmd(); msg != nil {
		if _, ok := msg.(tea.QuitMsg); !ok {
			t.Fatalf("expected QuitMsg, got %T", msg)
		}
	}
}

func TestHelpToggle(t *testing.T) {
	m, cmd := enter(t, newTestModel(t), ":help")
	if cmd != nil {
		t.Fatalf("expected no command for :help")
	}
	if !m.showHelp || m.quitting {
		t.Fatalf("help toggle should be enabled")
	}
}

func TestEvaluateAndLet(t *testing.T) {
	m := newTestModel(t)

	m, _ = enter(t, m, "1 + 2")
	if e := lastOutput(m); e.isErr || e.output != "3" {
		t.Fatalf("1 + 2 -> %+v", e)
	}

	m, _ = enter(t, m, ":let p construct('Point', {x: 4, y: 5})")
	if e := lastOutput(m); e.isErr {
		t.Fatalf(":let failed: %s", e.output)
	}
	m, _ = enter(t, m, "p.sum * 2")
	if e := lastOutput(m); e.isErr || e.output != "18" {
		t.Fatalf("p.sum * 2 -> %+v", e)
	}
	m, _ = enter(t, m, "_ + 1")
	if e := lastOutput(m); e.isErr || e.output != "19" {
		t.Fatalf("_ + 1 -> %+v", e)
	}

	m, _ = enter(t, m, "nosuchfn(1)")
	if e := lastOutput(m); !e.isErr {
		t.Fatalf("expected an error, got %+v", e)
	}

	m, _ = enter(t, m, ":reset")
	for _, n := range m.engine.Names() {
		if n == "p" {
			t.Fatal("p survived :reset")
		}
	}
}

func TestClassesAndUnknownCommand(t *testing.T) {
	m, _ := enter(t, newTestModel(t), ":classes")
	if e := lastOutput(m); e.output != "Point" {
		t.Errorf(":classes -> %+v", e)
	}
	m, _ = enter(t, m, ":frobnicate")
	if e := lastOutput(m); !e.isErr || !strings.Contains(e.output, "Unknown command") {
		t.Errorf(":frobnicate -> %+v", e)
	}
}

func TestCollectCommand(t *testing.T) {
	m, _ := enter(t, newTestModel(t), ":gc")
	if e := lastOutput(m); e.isErr || !strings.HasPrefix(e.output, "swept 0 objects") {
		t.Errorf(":gc -> %+v", e)
	}
}

func TestCompletion(t *testing.T) {
	m := newTestModel(t)
	m.textInput.SetValue("dee")
	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if v := model.(replModel).textInput.Value(); v != "deep_clone" {
		t.Errorf("completed to %q", v)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "null"},
		{int64(3), "3"},
		{"it's", `'it\'s'`},
		{[]interface{}{int64(1), "a"}, "[1, 'a']"},
		{map[string]interface{}{"b": int64(2), "a": true}, "{'a': true, 'b': 2}"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
