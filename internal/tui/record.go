package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/readaloud/internal/render"
	"github.com/Zuo-Peng/readaloud/internal/session"
)

// refreshPrompt loads the current prompt into the viewport.
func (m *model) refreshPrompt() {
	sess := m.wf.Session()
	switch {
	case sess == nil:
		m.prompt.SetContent("")
	case sess.Complete():
		m.prompt.SetContent(fmt.Sprintf("All %d prompts are recorded.\n\nC-r to pick another source.", sess.Total()))
	default:
		p, _ := sess.Current()
		m.prompt.SetContent(stylePrompt.Render(render.WrapText(p.Text, m.promptWidth())))
	}
	m.prompt.GotoTop()
}

func (m model) viewRecord() string {
	sess := m.wf.Session()
	if sess == nil {
		return ""
	}

	title := styleTitle.Render(fmt.Sprintf("Prompt %d of %d", min(sess.Number(), sess.Total()), sess.Total()))
	if sess.Complete() {
		title = styleTitle.Render("Session complete")
	}

	promptW := m.promptWidth()
	m.prompt.Width = promptW
	m.prompt.Height = m.promptHeight()
	promptPanel := styleActiveBorder.
		Width(promptW).
		Render(m.prompt.View())

	left := lipgloss.JoinVertical(lipgloss.Left,
		title,
		promptPanel,
		progressBar(sess.Progress(), promptW),
		fmt.Sprintf("%d/%d recorded", sess.Completed(), sess.Total()),
		m.takeLine(),
	)

	info := stylePanelBorder.
		Width(m.infoWidth()).
		Render(m.infoPanel(sess))

	return lipgloss.JoinHorizontal(lipgloss.Top, left, info)
}

func (m model) takeLine() string {
	switch m.take {
	case takeRecording:
		return styleRecording.Render("● REC")
	case takeStopping:
		return styleRecording.Render("■ stopping")
	case takeReady:
		return styleTakeReady.Render(fmt.Sprintf("✓ take ready, %s", humanBytes(len(m.audio))))
	default:
		return lipgloss.NewStyle().Foreground(colorDim).Render("○ no take")
	}
}

// infoPanel shows where the session reads from and writes to.
func (m model) infoPanel(sess *session.Session) string {
	w := m.infoWidth() - styleLabel.GetWidth()
	row := func(label, value string) string {
		return styleLabel.Render(label) + render.WrapText(value, w)
	}
	rows := []string{
		styleTitle.Render("Session"),
		row("source", sess.Source),
		row("date", sess.Date),
		row("column", sess.Column),
		row("folder", sess.Dir),
		row("next file", fmt.Sprintf("%d.%s", sess.Number(), sess.Ext)),
		row("total", fmt.Sprint(sess.Total())),
		row("completed", fmt.Sprint(sess.Completed())),
		row("remaining", fmt.Sprint(sess.Remaining())),
	}
	if sess.Complete() {
		rows[5] = row("next file", "-")
	}
	return strings.Join(rows, "\n")
}

func progressBar(frac float64, width int) string {
	if width < 10 {
		width = 10
	}
	pct := fmt.Sprintf(" %3.0f%%", frac*100)
	barW := width - len(pct)
	filled := int(frac * float64(barW))
	if filled > barW {
		filled = barW
	}
	return styleBarFilled.Render(strings.Repeat("█", filled)) +
		styleBarEmpty.Render(strings.Repeat("░", barW-filled)) + pct
}
