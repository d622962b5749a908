package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/intake/staging"
)

// ScratchView is the payload of the scratch list view.
type ScratchView struct {
	Dir    string
	MaxAge time.Duration
	Now    time.Time
	Files  []staging.ScratchFile
}

// ScratchModel is a Bubble Tea model listing staged files.
type ScratchModel struct {
	view     *ScratchView
	cursor   int
	width    int
	height   int
	quitting bool
}

// NewScratchModel creates a new scratch list model.
func NewScratchModel(view *ScratchView) ScratchModel {
	return ScratchModel{view: view}
}

// Init implements tea.Model.
func (m ScratchModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ScratchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.view.Files)-1 {
				m.cursor++
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m ScratchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Scratch Files"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("Directory:"), ValueStyle.Render(m.view.Dir)))

	if len(m.view.Files) == 0 {
		b.WriteString(HelpStyle.Render("(no staged files)"))
	} else {
		rows := make([]string, 0, len(m.view.Files))
		for i, f := range m.view.Files {
			rows = append(rows, m.renderRow(i, f))
		}
		b.WriteString(BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
		b.WriteString("\n\n")
		b.WriteString(m.renderDetail(m.view.Files[m.cursor]))
	}

	help := HelpStyle.Render(fmt.Sprintf("%s  %s  %s",
		keys.Up.Help().Key+" "+keys.Up.Help().Desc,
		keys.Down.Help().Key+" "+keys.Down.Help().Desc,
		keys.Quit.Help().Key+" "+keys.Quit.Help().Desc))
	return b.String() + "\n" + help
}

func (m ScratchModel) renderRow(i int, f staging.ScratchFile) string {
	age := m.view.Now.Sub(f.ModifiedAt).Truncate(time.Second)
	marker := "  "
	name := ValueStyle.Render(f.Name)
	if i == m.cursor {
		marker = "> "
		name = SelectedStyle.Render(f.Name)
	}
	return fmt.Sprintf("%s%s  %8s  %s",
		marker,
		name,
		formatBytes(f.Size),
		AgeStyle(age, m.view.MaxAge).Render(age.String()))
}

func (m ScratchModel) renderDetail(f staging.ScratchFile) string {
	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Path:"), ValueStyle.Render(f.Path)),
		fmt.Sprintf("%s %s", LabelStyle.Render("Size:"), ValueStyle.Render(fmt.Sprintf("%d bytes", f.Size))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Modified:"), ValueStyle.Render(f.ModifiedAt.Format("2006-01-02 15:04:05"))),
	}
	return strings.Join(lines, "\n")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RunScratchTUI runs the scratch list TUI.
func RunScratchTUI(view *ScratchView) error {
	p := tea.NewProgram(NewScratchModel(view), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
