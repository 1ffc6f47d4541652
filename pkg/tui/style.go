package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/unowned-ai/nursery/pkg/records"
)

// UI styles and layout settings
// Color palette "Blue Moon" from https://gogh-co.github.io/Gogh/
const (
	colorGray     = "#353b52"
	colorWhite    = "#ffffff"
	colorGreen    = "#acfab4"
	colorGreenDim = "#b4c4b4"
	colorRed      = "#e61f44"
	colorRedDim   = "#d06178"
	colorPurple   = "#b9a3eb"
	colorBlue     = "#89ddff"

	marqueeTickDuration = time.Duration(time.Second / 20)

	bordersAndPaddingWidth = 4
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(colorBlue)).
			Background(lipgloss.Color(colorGray)).
			Padding(0, 2).Align(lipgloss.Center)
	subtitleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(colorBlue))
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray)).
			Background(lipgloss.Color(colorGreen))
	dangerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorGray)).
				Background(lipgloss.Color(colorRed))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWhite))
	textRedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBlue))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPurple))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray))
)

// Function to colorize text based on its status
// 0 (default) - unknown, 1 - green, 2 - red
func TextStatusColorize(text string, status int) string {
	switch status {
	case 1:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreenDim)).Render(text)
	case 2:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorRedDim)).Render(text)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)).Render(text)
	}
}

// Generates pointer symbol when line in focus
func generateLinePointer(isPoint bool, length int) string {
	if isPoint {
		return ">" + strings.Repeat(" ", length-1)
	}
	return strings.Repeat(" ", length)
}

// Scroll text wider than availableWidth by the current marquee offset
func (m model) marqueeText(text string, availableWidth int) string {
	if availableWidth <= 0 || ansi.StringWidth(text) <= availableWidth {
		return text
	}
	padded := []rune(text + "    " + text)
	offset := m.marqueeOffset % (len([]rune(text)) + 4)
	return ansi.Truncate(string(padded[offset:]), availableWidth, "")
}

// Cut text to availableWidth cells, marking the cut with two dots
func truncate(text string, availableWidth int) string {
	if ansi.StringWidth(text) > availableWidth && availableWidth > 3 {
		return ansi.Truncate(text, availableWidth, "..")
	}
	return text
}

// Column widths shift towards the focused column
func (m model) columnWidths() (int, int, int) {
	switch m.columnFocus {
	case 1:
		return (m.width * 20) / 100, (m.width * 40) / 100, (m.width * 40) / 100
	default:
		return (m.width * 25) / 100, (m.width * 35) / 100, (m.width * 40) / 100
	}
}

// headlineFields are shown on a timeline row after the time, in this order.
var headlineFields = []string{"type", "mood", "title", "amount", "unit", "value", "duration", "quality", "description"}

// One timeline row: "07:30 feeding formula 120 ml"
func entryLine(e dayEntry) string {
	parts := []string{e.at.Format("15:04"), e.collection}
	for _, field := range headlineFields {
		v, ok := e.record[field]
		if !ok {
			continue
		}
		switch field {
		case "duration":
			parts = append(parts, fmt.Sprintf("%vs", v))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, " ")
}

// Every field of a record as "key: value" lines, sorted by key
func recordDetails(rec records.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(labelStyle.Render(k+": ") + valueStyle.Render(fmt.Sprint(rec[k])) + "\n")
	}
	return b.String()
}
