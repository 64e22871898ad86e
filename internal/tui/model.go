package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/tui/components"
)

// Options configure the monitor.
type Options struct {
	Title       string     // shown in the header; defaults to "SATHub"
	AccentColor string     // hex color; empty uses the default
	Pending     func() int // requests awaiting a response; optional
}

// Model is the bubbletea model of the monitor.
type Model struct {
	events  <-chan Event
	opts    Options
	theme   Theme
	log     components.LogView
	spinner spinner.Model

	width, height int
	responses     int
	errors        int
	done          bool
}

type eventMsg Event

type feedClosedMsg struct{}

// New creates a monitor reading events until the channel closes.
func New(events <-chan Event, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "SATHub"
	}
	theme := NewTheme(opts.AccentColor)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.accent))
	return Model{
		events:  events,
		opts:    opts,
		theme:   theme,
		log:     components.NewLogView(80, 22),
		spinner: sp,
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spinner.Tick)
}

func waitForEvent(ch <-chan Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg(e)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.log = m.log.ToggleFollow()
			return m, nil
		}
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.log = m.log.SetSize(m.width, m.logHeight())
		return m, nil

	case eventMsg:
		e := Event(msg)
		switch e.Kind {
		case KindResponse:
			m.responses++
		case KindError:
			m.errors++
		}
		m.log = m.log.AppendLine(renderEvent(e, m.width))
		return m, waitForEvent(m.events)

	case feedClosedMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) logHeight() int {
	if h := m.height - 2; h > 0 {
		return h
	}
	return 1
}

// View renders header, log and footer.
func (m Model) View() string {
	return m.renderHeader() + "\n" + m.log.View() + "\n" + m.renderFooter()
}

func (m Model) renderHeader() string {
	parts := []string{
		m.spinner.View() + " " + m.opts.Title,
		fmt.Sprintf("respostas: %d", m.responses),
		fmt.Sprintf("erros: %d", m.errors),
	}
	if m.opts.Pending != nil {
		parts = append(parts, fmt.Sprintf("pendentes: %d", m.opts.Pending()))
	}
	return m.theme.header.Width(m.width).Render(strings.Join(parts, "  │  "))
}

func (m Model) renderFooter() string {
	follow := "off"
	if m.log.Following() {
		follow = "on"
	}
	left := "f follow: " + follow
	right := "q to quit"
	gap := m.width - len(left) - len(right)
	if gap < 2 {
		gap = 2
	}
	return footerStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func renderEvent(e Event, width int) string {
	ts := timestampStyle.Render(fmt.Sprintf("[%s]", e.Time.Format("15:04:05")))
	msg := singleLine(e.Message)
	if limit := width - 24; limit > 20 {
		if r := []rune(msg); len(r) > limit {
			msg = string(r[:limit-1]) + "…"
		}
	}
	switch e.Kind {
	case KindResponse:
		return fmt.Sprintf("%s  %s %s", ts, responseStyle.Render("◀ "+e.ID), msg)
	case KindError:
		return fmt.Sprintf("%s  %s", ts, errorStyle.Render("✖ "+msg))
	default:
		return fmt.Sprintf("%s  %s", ts, infoStyle.Render(msg))
	}
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Done reports whether the feed closed.
func (m Model) Done() bool { return m.done }
