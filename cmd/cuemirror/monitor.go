package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tbeaumont/cuemirror/eos"
	"github.com/tbeaumont/cuemirror/show"
)

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Live view of active/pending cues and playback countdowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := buildEngine()
			if err != nil {
				return err
			}
			if err := engine.Connect(); err != nil {
				return err
			}
			defer engine.Disconnect()

			_, err = tea.NewProgram(newMonitorModel(engine)).Run()
			return err
		},
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	recordStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

type monitorModel struct {
	engine    *eos.Engine
	spinner   spinner.Model
	status    eos.Status
	countdown eos.Countdown
	quitting  bool
}

func newMonitorModel(engine *eos.Engine) monitorModel {
	s := spinner.New()
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return monitorModel{engine: engine, spinner: s}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.engine.SetRecording(!m.engine.Status().Recording)
			return m, nil
		}
	case tickMsg:
		m.status = m.engine.Status()
		m.countdown = m.engine.CountdownNow()
		return m, tickCmd()
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("cuemirror"))
	b.WriteString("  ")
	if m.status.Connected {
		b.WriteString(activeStyle.Render("connected"))
	} else {
		b.WriteString(m.spinner.View() + dimStyle.Render(" connecting"))
	}
	if m.status.Version != "" {
		b.WriteString(dimStyle.Render("  console " + m.status.Version))
	}
	if m.status.Recording {
		b.WriteString("  " + recordStyle.Render("● REC"))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("show %q  %d cues mirrored", m.status.CurrentShow, m.status.CueCount)))
	if m.status.Refreshing {
		b.WriteString(dimStyle.Render("  refreshing…"))
	}
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("LIST  ACTIVE      PENDING"))
	b.WriteString("\n")
	for _, ls := range m.status.Lists {
		marker := " "
		if ls.List == m.status.MainList {
			marker = "▸"
		}
		b.WriteString(fmt.Sprintf("%s%3d   %-10s  %-10s\n",
			marker, ls.List,
			activeStyle.Render(orDash(ls.Active)),
			pendingStyle.Render(orDash(ls.Pending))))
	}

	if m.countdown.HasSchedule && !m.countdown.Recording {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("PLAYBACK"))
		b.WriteString(fmt.Sprintf("  elapsed %s  remaining %s\n",
			fmtSeconds(m.countdown.ShowElapsed),
			fmtSeconds(m.countdown.EstimatedRemaining)))
		if m.countdown.HasNext {
			b.WriteString(fmt.Sprintf("  next cue %s in %s\n",
				m.countdown.NextCue, fmtSeconds(m.countdown.TimeToNext)))
		}
	}

	if notes := m.activeCueNotes(); notes != "" {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("NOTES"))
		b.WriteString("\n")
		b.WriteString(renderMarkup(notes))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("\nq quit · r toggle recording\n"))
	return b.String()
}

func (m monitorModel) activeCueNotes() string {
	for _, ls := range m.status.Lists {
		if ls.List != m.status.MainList || ls.Active == "" {
			continue
		}
		for _, c := range m.engine.Cues() {
			if c.List == ls.List && c.Number == ls.Active && c.Part == 0 {
				return c.Notes
			}
		}
	}
	return ""
}

// renderMarkup maps the notes markup grammar onto terminal styles.
func renderMarkup(notes string) string {
	var b strings.Builder
	for _, span := range show.ParseMarkup(notes) {
		style := lipgloss.NewStyle().
			Bold(span.Bold).
			Italic(span.Italic).
			Strikethrough(span.Strike)
		b.WriteString(style.Render(span.Text))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func fmtSeconds(s float64) string {
	if s < 0 {
		s = 0
	}
	d := time.Duration(s * float64(time.Second))
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", mins, secs)
}
