package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/readaloud/internal/scan"
	"github.com/Zuo-Peng/readaloud/internal/session"
)

func (m model) viewPicker() string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	height := m.listHeight()

	title := styleTitle.Render(fmt.Sprintf("Sources in %s", m.csvDir))
	panel := styleActiveBorder.
		Width(width).
		Height(height).
		Render(m.renderList(width, height))
	return lipgloss.JoinVertical(lipgloss.Left, title, panel)
}

// renderList renders the source list with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.sources) == 0 {
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No .csv files")
	}

	var lines []string
	for i, src := range m.sources {
		if i < m.offset {
			continue
		}
		if len(lines) >= height {
			break
		}
		lines = append(lines, formatSourceLine(src, width, i == m.cursor))
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// formatSourceLine formats one source as: [>] date  name  size
func formatSourceLine(src scan.FileInfo, width int, selected bool) string {
	date, err := session.DateToken(src.Name)
	if err != nil {
		date = "??_??_????"
	}

	size := humanBytes(int(src.Size))
	nameMax := width - 2 - 10 - 2 - runewidth.StringWidth(size) - 2
	if nameMax < 0 {
		nameMax = 0
	}
	name := runewidth.Truncate(src.Name, nameMax, "…")
	name = runewidth.FillRight(name, nameMax)

	line := fmt.Sprintf("%s  %s  %s", styleDate.Render(date), name, lipgloss.NewStyle().Foreground(colorDim).Render(size))
	if selected {
		return styleListSelected.Render("> ") + line
	}
	return "  " + styleListNormal.Render(line)
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(visible int) {
	if visible < 1 {
		visible = 1
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}
