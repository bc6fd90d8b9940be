// Package ui renders styled terminal output for the CLI. Styles degrade
// to plain text when the terminal reports no color support.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var profile = termenv.EnvColorProfile()

var (
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func render(style lipgloss.Style, format string, a ...any) string {
	text := fmt.Sprintf(format, a...)
	if profile == termenv.Ascii {
		return text
	}
	return style.Render(text)
}

// RenderInfo renders neutral status text.
func RenderInfo(format string, a ...any) string {
	return render(infoStyle, format, a...)
}

// RenderWarn renders a non-fatal warning.
func RenderWarn(format string, a ...any) string {
	return render(warnStyle, format, a...)
}

// RenderPass renders a success line.
func RenderPass(format string, a ...any) string {
	return render(passStyle, format, a...)
}

// RenderFail renders a failure line.
func RenderFail(format string, a ...any) string {
	return render(failStyle, format, a...)
}

// RenderAccent highlights a value inside surrounding text.
func RenderAccent(format string, a ...any) string {
	return render(accentStyle, format, a...)
}

// RenderDim renders secondary detail.
func RenderDim(format string, a ...any) string {
	return render(dimStyle, format, a...)
}
