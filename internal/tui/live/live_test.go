package live

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"proxyload/internal/runner"
)

func TestStatsUpdateRendersCounters(t *testing.T) {
	m := NewModel(10*time.Second, make(runner.StatsUpdateChan, 1), nil)
	next, cmd := m.Update(StatsMsg(runner.StatsSnapshot{
		State:     runner.StateRunning,
		Elapsed:   5 * time.Second,
		Admitted:  42,
		Completed: 40,
		Dropped:   3,
	}))
	if cmd == nil {
		t.Fatal("expected a follow-up command while running")
	}
	view := next.View()
	for _, want := range []string{"ADMITTED: 42", "DONE: 40", "DROPPED: 3", "running"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestQuitStopsRunOnce(t *testing.T) {
	stops := 0
	m := NewModel(time.Second, make(runner.StatsUpdateChan, 1), func() { stops++ })

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if stops != 1 {
		t.Fatalf("stop called %d times", stops)
	}
	if !next.(Model).Quitting {
		t.Fatal("model not marked as quitting")
	}
}

func TestTerminatedSnapshotQuits(t *testing.T) {
	m := NewModel(time.Second, make(runner.StatsUpdateChan, 1), nil)
	_, cmd := m.Update(StatsMsg(runner.StatsSnapshot{State: runner.StateTerminated}))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("terminated run did not quit the program")
	}
}
