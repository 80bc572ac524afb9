package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"idledata/pkg/market"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// View renders the whole screen
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sections := []string{
		titleStyle.Render(" IDLEDATA MARKET WATCH "),
		m.input.View(),
		m.renderRows(),
	}
	if charts := m.renderCharts(); charts != "" {
		sections = append(sections, charts)
	}
	sections = append(sections, m.renderLogs())

	if m.showHelp {
		sections = append(sections, helpStyle.Render(
			"enter: look up link   ctrl+r: clear selection   ctrl+l: clear log   esc: quit"))
	} else {
		sections = append(sections, helpStyle.Render("f1 for help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderRows() string {
	header := "Select an item"
	if m.selection != nil {
		header = m.selection.String()
	}
	if m.loading {
		header = m.spinner.View() + " " + header
	}
	if !m.hasKey {
		header += "  " + warningStyle.Render("(no API key)")
	}

	lines := []string{labelStyle.Bold(true).Render(header)}
	for _, row := range m.summary.Rows {
		value := valueStyle.Render(row.Value)
		if isPlaceholder(row.Value) {
			value = placeholderStyle.Render(row.Value)
		}
		lines = append(lines, fmt.Sprintf("%-22s %s", labelStyle.Render(row.Label), value))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderCharts() string {
	var lines []string
	for _, chart := range m.summary.Charts {
		style := historyLineStyle
		if chart.ID == market.ChartLatestSold {
			style = soldLineStyle
		}

		lines = append(lines, labelStyle.Bold(true).Render(chart.Title))
		if len(chart.Datasets) == 0 {
			lines = append(lines, placeholderStyle.Render(chart.Empty))
			continue
		}

		data := chart.Datasets[0].Data
		lines = append(lines, style.Render(Sparkline(data, m.sparkWidth())))

		caption := fmt.Sprintf("%d points", len(data))
		if len(chart.Labels) > 0 {
			caption += fmt.Sprintf(", %s to %s", chart.Labels[0], chart.Labels[len(chart.Labels)-1])
		}
		if chart.YAxis != nil {
			caption += fmt.Sprintf(", axis %s to %s", market.FormatGold(chart.YAxis.Min), market.FormatGold(chart.YAxis.Max))
		}
		lines = append(lines, logTimestampStyle.Render(caption))
	}
	if len(lines) == 0 {
		return ""
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderLogs() string {
	if len(m.logMessages) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.logMessages))
	for _, msg := range m.logMessages {
		lines = append(lines, fmt.Sprintf("%s %s",
			logTimestampStyle.Render(msg.Time.Format("15:04:05")),
			levelStyle(msg.Level).Render(msg.Message)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) sparkWidth() int {
	if m.width > 10 {
		return m.width - 8
	}
	return 60
}

func isPlaceholder(value string) bool {
	switch value {
	case market.StateLoading, market.StateNoData, market.StateError, market.StateNoAPIKey:
		return true
	}
	return false
}

// Sparkline draws values as block characters, at most width wide. Longer
// series keep their most recent values. Non-positive values draw as the
// lowest block.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	positive := market.Positive(values)
	if len(positive) == 0 {
		return strings.Repeat(string(sparkBlocks[0]), len(values))
	}
	lo, hi := positive[0], positive[len(positive)-1]

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if v > 0 && hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		} else if v > 0 {
			idx = len(sparkBlocks) / 2
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}
