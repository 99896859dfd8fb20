package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"
)

// descriptionWidth is used when stdout is not a terminal.
const descriptionWidth = 48

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderTable draws rows under headers with a thin border.
func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String() + "\n"
}

// wrapText folds free text into lines of at most width columns. Blank
// lines and runs of whitespace collapse to single spaces first.
func wrapText(value string, width int) string {
	normalized := strings.Join(strings.Fields(value), " ")
	if normalized == "" {
		return ""
	}
	if width < 1 {
		width = 1
	}
	return wordwrap.String(normalized, width)
}

// textColumnWidth leaves a third of a terminal for free text, and falls
// back to descriptionWidth when output is piped.
func textColumnWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return descriptionWidth
	}
	cols, _, err := term.GetSize(fd)
	if err != nil || cols < 60 {
		return descriptionWidth
	}
	return cols / 3
}
