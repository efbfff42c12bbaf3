package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"proxyload/internal/runner"
	"proxyload/internal/tui/components"
	"proxyload/internal/tui/styles"
)

// StatsMsg wraps a runner snapshot for the bubbletea loop.
type StatsMsg runner.StatsSnapshot

type Model struct {
	Stats    runner.StatsSnapshot
	Progress progress.Model
	Updates  runner.StatsUpdateChan

	RateLine    components.Sparkline
	LatencyLine components.Sparkline

	Duration   time.Duration
	LastUpdate time.Time
	LastDone   uint64

	// Stop is called once when the user quits before the run ends.
	Stop     func()
	Quitting bool

	Width  int
	Height int
}

func NewModel(totalDur time.Duration, updates runner.StatsUpdateChan, stop func()) Model {
	if stop == nil {
		stop = func() {}
	}
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		Updates:     updates,
		RateLine:    components.NewSparkline(40, "Completed/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90 (ms)", styles.Warn),
		Duration:    totalDur,
		LastUpdate:  time.Now(),
		Stop:        stop,
	}
}

func waitForUpdate(sub runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		return StatsMsg(<-sub)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.Quitting {
				m.Quitting = true
				m.Stop()
			}
			return m, nil
		}

	case StatsMsg:
		snap := runner.StatsSnapshot(msg)
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		m.RateLine.Add(float64(snap.Completed-m.LastDone) / dt)
		m.LatencyLine.Add(snap.P90Ms)

		m.Stats = snap
		m.LastDone = snap.Completed
		m.LastUpdate = now

		if snap.State == runner.StateTerminated {
			return m, tea.Quit
		}

		pct := float64(snap.Elapsed) / float64(m.Duration)
		if pct > 1.0 {
			pct = 1.0
		}
		return m, tea.Batch(m.Progress.SetPercent(pct), waitForUpdate(m.Updates))

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.RateLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("Proxy load: " + m.Stats.State.String()))
	s.WriteString("\n\n")

	errRate := 0.0
	if m.Stats.Completed > 0 {
		errRate = (float64(m.Stats.Fail) / float64(m.Stats.Completed)) * 100
	}
	errColor := styles.Active
	if errRate > 5.0 {
		errColor = styles.Error
	} else if errRate > 1.0 {
		errColor = styles.Warn
	}

	lagStyle := styles.Active
	if m.Stats.AvgQueueWaitMs > 2.0 {
		lagStyle = styles.Warn
	}
	if m.Stats.AvgQueueWaitMs > 10.0 {
		lagStyle = styles.Error
	}

	col1 := fmt.Sprintf("ADMITTED: %d\nDONE: %d", m.Stats.Admitted, m.Stats.Completed)
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, m.Stats.Fail)
	col3 := fmt.Sprintf("INFLIGHT: %d\nWORKERS: %d", m.Stats.Inflight, m.Stats.Workers)
	col4 := fmt.Sprintf("DROPPED: %d\nLAG: %s", m.Stats.Dropped, lagStyle.Render(fmt.Sprintf("%.2f ms", m.Stats.AvgQueueWaitMs)))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(errColor.Render(col2)),
		styles.Box.Render(col3),
		styles.Box.Render(col4),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RateLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"Avg: %.2f ms  |  P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms",
		m.Stats.RunningMeanMs,
		m.Stats.P50Ms,
		m.Stats.P90Ms,
		m.Stats.P99Ms,
	)
	s.WriteString(styles.Box.Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n\n")
	if m.Quitting {
		s.WriteString(styles.Warn.Render("Stopping: draining in-flight iterations..."))
	} else {
		s.WriteString(styles.RenderKey("q", "Stop"))
	}

	return s.String()
}
