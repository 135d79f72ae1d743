// Package ui styles console output.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}

	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle     = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle     = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
)

// RenderPass renders text in the pass color.
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text in the warning color.
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text in the failure color.
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text in the muted color.
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderCategory renders an upper-cased section header.
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}
