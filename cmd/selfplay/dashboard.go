package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelvin0611/Mini-io-games/inference"
)

type RoundUpdate struct {
	WorkerID int
	RoundID  string
	Score    int
	Ticks    int64
	Killer   string
	Level    int
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ffcc"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(16)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	bestStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffcc00"))
)

type model struct {
	roundsPlayed int
	scoreSum     int
	bestScore    int
	bestRound    string
	wallDeaths   int
	ticks        int64
	startTime    time.Time
	recentRounds []string
	updates      chan RoundUpdate
	stats        func() (inference.RuntimeStats, bool)
}

func initialModel(updates chan RoundUpdate, stats func() (inference.RuntimeStats, bool)) model {
	return model{
		startTime: time.Now(),
		updates:   updates,
		stats:     stats,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan RoundUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.ticks = totalTicks.Load()
		return m, tickCmd()
	case RoundUpdate:
		m.roundsPlayed++
		m.scoreSum += msg.Score
		if msg.Score > m.bestScore {
			m.bestScore = msg.Score
			m.bestRound = msg.RoundID
		}
		if msg.Killer == "wall" {
			m.wallDeaths++
		}
		line := fmt.Sprintf("worker %2d  score %4d  lvl %2d  ticks %6d  killed by %s", msg.WorkerID, msg.Score, msg.Level, msg.Ticks, msg.Killer)
		m.recentRounds = append([]string{line}, m.recentRounds...)
		if len(m.recentRounds) > 10 {
			m.recentRounds = m.recentRounds[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	secs := duration.Seconds()
	roundsPerSec, ticksPerSec, avgScore := 0.0, 0.0, 0.0
	if secs >= 1 {
		roundsPerSec = float64(m.roundsPlayed) / secs
		ticksPerSec = float64(m.ticks) / secs
	}
	if m.roundsPlayed > 0 {
		avgScore = float64(m.scoreSum) / float64(m.roundsPlayed)
	}

	row := func(label, value string) string {
		return labelStyle.Render(label) + value + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("snek.io self-play") + "\n\n")
	b.WriteString(row("Rounds", fmt.Sprintf("%d", m.roundsPlayed)))
	b.WriteString(row("Ticks", fmt.Sprintf("%d", m.ticks)))
	b.WriteString(row("Duration", duration.Round(time.Second).String()))
	b.WriteString(row("Rounds/Sec", fmt.Sprintf("%.2f", roundsPerSec)))
	b.WriteString(row("Ticks/Sec", fmt.Sprintf("%.0f", ticksPerSec)))
	b.WriteString(row("Avg Score", fmt.Sprintf("%.1f", avgScore)))
	b.WriteString(row("Best Score", bestStyle.Render(fmt.Sprintf("%d", m.bestScore))+" "+m.bestRound))
	b.WriteString(row("Wall Deaths", fmt.Sprintf("%d", m.wallDeaths)))
	if m.stats != nil {
		if st, ok := m.stats(); ok {
			b.WriteString(row("Batch avg/last", fmt.Sprintf("%.1f / %d (q=%d, %.2fms)", st.AvgBatchSize, st.LastBatchSize, st.QueueLen, st.AvgRunMs)))
		}
	}

	recent := "Recent Rounds:\n"
	for _, r := range m.recentRounds {
		recent += r + "\n"
	}
	return boxStyle.Render(b.String()) + "\n" + recent + "\nPress q to quit.\n"
}
