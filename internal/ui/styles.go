package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chenjy16/webtools-sub001/internal/game"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	scoreStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F2C94C"))
	bestStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6FCF97"))
	frameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4"))
	overStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EB5757"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F2994A"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#828282"))

	tileBase = lipgloss.NewStyle().Width(6).Align(lipgloss.Center).Bold(true)
)

// tileColors follows the classic palette; larger tiles reuse the last entry.
var tileColors = []struct{ fg, bg string }{
	{"#776E65", "#CDC1B4"}, // empty
	{"#776E65", "#EEE4DA"}, // 2
	{"#776E65", "#EDE0C8"}, // 4
	{"#F9F6F2", "#F2B179"}, // 8
	{"#F9F6F2", "#F59563"}, // 16
	{"#F9F6F2", "#F67C5F"}, // 32
	{"#F9F6F2", "#F65E3B"}, // 64
	{"#F9F6F2", "#EDCF72"}, // 128
	{"#F9F6F2", "#EDCC61"}, // 256
	{"#F9F6F2", "#EDC850"}, // 512
	{"#F9F6F2", "#EDC53F"}, // 1024
	{"#F9F6F2", "#EDC22E"}, // 2048
	{"#F9F6F2", "#3C3A32"},
}

func tileStyle(v int) lipgloss.Style {
	idx := 0
	for n := v; n > 1; n >>= 1 {
		idx++
	}
	idx = min(idx, len(tileColors)-1)
	c := tileColors[idx]
	return tileBase.Foreground(lipgloss.Color(c.fg)).Background(lipgloss.Color(c.bg))
}

func renderBoard(b *game.Board) string {
	rows := make([]string, 0, b.Size())
	for _, row := range b.Cells() {
		tiles := make([]string, 0, len(row))
		for _, v := range row {
			label := "·"
			if v > 0 {
				label = strconv.Itoa(v)
			}
			tiles = append(tiles, tileStyle(v).Render(label))
		}
		rows = append(rows, strings.Join(tiles, " "))
	}
	return frameStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
