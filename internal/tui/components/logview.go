package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultMaxLines bounds the lines a LogView keeps.
const DefaultMaxLines = 2000

// LogView is a scrollable, bounded log panel over bubbles/viewport.
// In follow mode new lines keep the view pinned to the bottom; scrolling up
// leaves follow mode and 'f' toggles it back.
type LogView struct {
	vp       viewport.Model
	lines    []string
	maxLines int
	follow   bool
	width    int
	height   int
}

// NewLogView creates a LogView in follow mode.
func NewLogView(w, h int) LogView {
	return LogView{
		vp:       viewport.New(w, h),
		maxLines: DefaultMaxLines,
		follow:   true,
		width:    w,
		height:   h,
	}
}

// WithMaxLines changes how many lines are kept. Values below 1 are ignored.
func (v LogView) WithMaxLines(n int) LogView {
	if n > 0 {
		v.maxLines = n
		v = v.trim()
		v.refresh()
	}
	return v
}

// AppendLine adds a rendered line, dropping the oldest past the bound.
func (v LogView) AppendLine(rendered string) LogView {
	v.lines = append(v.lines, rendered)
	v = v.trim()
	v.refresh()
	return v
}

// Len is the number of lines kept.
func (v LogView) Len() int { return len(v.lines) }

func (v LogView) trim() LogView {
	if over := len(v.lines) - v.maxLines; over > 0 {
		v.lines = append([]string(nil), v.lines[over:]...)
	}
	return v
}

func (v *LogView) refresh() {
	v.vp.SetContent(strings.Join(v.lines, "\n"))
	if v.follow {
		v.vp.GotoBottom()
	}
}

// ToggleFollow switches follow mode. Turning it on jumps to the bottom.
func (v LogView) ToggleFollow() LogView {
	v.follow = !v.follow
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}

// SetSize resizes the view.
func (v LogView) SetSize(w, h int) LogView {
	v.width, v.height = w, h
	v.vp.Width, v.vp.Height = w, h
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}

func (v LogView) Following() bool { return v.follow }

// Update forwards scroll keys and mouse events to the viewport. Scrolling
// away from the bottom leaves follow mode.
func (v LogView) Update(msg tea.Msg) (LogView, tea.Cmd) {
	var cmd tea.Cmd
	v.vp, cmd = v.vp.Update(msg)
	if v.follow && !v.vp.AtBottom() {
		switch msg.(type) {
		case tea.KeyMsg, tea.MouseMsg:
			v.follow = false
		}
	}
	return v, cmd
}

func (v LogView) View() string {
	return v.vp.View()
}
