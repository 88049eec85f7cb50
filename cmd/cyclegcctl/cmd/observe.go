package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vesperlang/cyclegc/internal/collector"
	"github.com/vesperlang/cyclegc/internal/telemetrygc"
	"github.com/vesperlang/cyclegc/pkg/gc"
)

// tab identifies one of observe's two panels.
type tab int

const (
	tabLive tab = iota
	tabStats
)

// observeModel is the Bubbletea model driving the observe dashboard.
// Unlike hydraidectl's observe TUI it has no gRPC stream to dial: it
// subscribes directly to this process's own telemetrygc.Recorder and
// renders the events its own stress workload produces.
type observeModel struct {
	g        *gc.GC
	sub      <-chan telemetrygc.Event
	unsub    func()
	stopFn   func()
	events   []telemetrygc.Event
	maxRows  int
	paused   bool
	active   tab
	width    int
	height   int
	showHelp bool
}

type observeEventMsg telemetrygc.Event
type observeTickMsg time.Time

func newObserveModel(g *gc.GC, stopFn func()) observeModel {
	sub, unsub := g.Telemetry().Subscribe()
	return observeModel{
		g:       g,
		sub:     sub,
		unsub:   unsub,
		stopFn:  stopFn,
		events:  g.Telemetry().History(50),
		maxRows: 200,
		active:  tabLive,
	}
}

func (m observeModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.sub
		if !ok {
			return nil
		}
		return observeEventMsg(ev)
	}
}

func (m observeModel) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.waitForEvent(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return observeTickMsg(t) }),
	)
}

func (m observeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.unsub()
			if m.stopFn != nil {
				m.stopFn()
			}
			return m, tea.Quit
		case "1":
			m.active = tabLive
		case "2":
			m.active = tabStats
		case "p":
			m.paused = !m.paused
		case "?":
			m.showHelp = !m.showHelp
		}
		return m, nil

	case observeEventMsg:
		if !m.paused {
			m.events = append(m.events, telemetrygc.Event(msg))
			if len(m.events) > m.maxRows {
				m.events = m.events[len(m.events)-m.maxRows:]
			}
		}
		return m, m.waitForEvent()

	case observeTickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return observeTickMsg(t) })
	}
	return m, nil
}

func (m observeModel) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m observeModel) renderMain() string {
	title := titleStyle.Render(" cyclegc observe ")
	status := liveStyle.Render(" ● live ")
	if m.paused {
		status = pausedStyle.Render(" ⏸ paused ")
	}

	header := title + "  " + status + "\n\n" + m.renderTabs() + "\n"
	header += lipgloss.NewStyle().Foreground(mutedColor).Render(strings.Repeat("─", min(m.width-2, 100))) + "\n"

	var content string
	switch m.active {
	case tabLive:
		content = m.renderLiveTab()
	case tabStats:
		content = m.renderStatsTab()
	}

	footer := lipgloss.NewStyle().Foreground(mutedColor).Render(strings.Repeat("─", min(m.width-2, 100))) + "\n"
	footer += helpStyle.Render("[1] live  [2] stats  [p] pause  [?] help  [q] quit")

	return header + content + "\n" + footer
}

func (m observeModel) renderTabs() string {
	tabs := []struct {
		name string
		t    tab
	}{
		{"[1] Live", tabLive},
		{"[2] Stats", tabStats},
	}
	var out string
	for _, t := range tabs {
		if t.t == m.active {
			out += activeTabStyle.Render(t.name) + "  "
		} else {
			out += inactiveTabStyle.Render(t.name) + "  "
		}
	}
	return out
}

func (m observeModel) renderLiveTab() string {
	if len(m.events) == 0 {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("  no collections recorded yet")
	}

	header := fmt.Sprintf("  %-12s %-10s %-10s %-10s %s", "TIME", "REASON", "COLLECTED", "DURATION", "LIVE")
	rows := lipgloss.NewStyle().Foreground(mutedColor).Render(header) + "\n"

	start := 0
	visible := m.height - 10
	if visible < 3 {
		visible = 3
	}
	if len(m.events) > visible {
		start = len(m.events) - visible
	}

	for _, ev := range m.events[start:] {
		row := timestampStyle.Render(ev.Timestamp.Format("15:04:05")) + " " +
			reasonStyle.Render(ev.Reason) + " " +
			collectedStyle.Render(fmt.Sprintf("%d", ev.Collected)) + " " +
			durationStyle.Render(fmt.Sprintf("%dms", ev.DurationMs)) + " " +
			fmt.Sprintf("%d", ev.LiveCount)
		rows += eventRowStyle.Render(row) + "\n"
	}
	return rows
}

func (m observeModel) renderStatsTab() string {
	stats := m.g.Telemetry().Stats()
	var b strings.Builder
	row := func(label string, value any) {
		b.WriteString(statLabelStyle.Render(fmt.Sprintf("  %-20s", label)))
		b.WriteString(statValueStyle.Render(fmt.Sprintf("%v", value)))
		b.WriteString("\n")
	}
	row("enabled", m.g.IsEnabled())
	row("threshold", m.g.GetThreshold())
	row("debug flags", fmt.Sprintf("0x%02x", m.g.GetDebug()))
	live, _, _ := m.g.GetCount()
	row("live objects", live)
	row("total collections", stats.TotalCollections)
	row("total collected", stats.TotalCollected)
	row("total uncollectable", stats.TotalUncollectable)
	row("avg duration (ms)", fmt.Sprintf("%.2f", stats.AvgDurationMs))
	return b.String()
}

func (m observeModel) renderHelp() string {
	return helpStyle.Render(`
cyclegc observe — keys

  1       live collection-event feed
  2       aggregate stats panel
  p       pause/resume the live feed
  ?       toggle this help
  q       quit
`)
}

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Live TUI dashboard of stress-test collector activity",
	Long: `
observe runs a synthetic reference-cycle workload in the background
(like 'stress', but continuous) and opens a live dashboard over its own
telemetrygc.Recorder feed. There is no server to dial: the dashboard
and the workload share one in-process GC.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGC()
		if err != nil {
			return err
		}
		defer g.Close()
		g.Enable()

		m := g.AttachThread()
		m.Attach()
		defer m.Detach()

		done := make(chan struct{})
		stop := make(chan struct{})
		go runObserveWorkload(g, m, stop, done)

		model := newObserveModel(g, func() { close(stop) })
		p := tea.NewProgram(model, tea.WithAltScreen())
		_, err = p.Run()

		<-done
		return err
	},
}

func runObserveWorkload(g *gc.GC, m *gc.Mutator, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a := allocCycleNode(m)
			b := allocCycleNode(m)
			a.peer = b
			b.GCHeader().IncLocal()
			b.peer = a
			a.GCHeader().IncLocal()
			_, _ = m.NotifyAlloc()

			if i%20 == 0 {
				_, _ = g.Collect(m, 2, collector.ReasonManual)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(observeCmd)
}
