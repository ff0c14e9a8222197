package utils

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// MessageType defines the type of message box to render.
type MessageType int

const (
	// InfoMessage represents an informational message.
	InfoMessage MessageType = iota
	// SuccessMessage represents a success message.
	SuccessMessage
	// WarningMessage represents a warning message.
	WarningMessage
	// ErrorMessage represents an error message.
	ErrorMessage
)

const (
	infoPrefix    = "ℹ"
	successPrefix = "✓"
	warningPrefix = "⚠"
	errorPrefix   = "✗"
)

var (
	infoColor    = lipgloss.Color("86")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("178")
	errorColor   = lipgloss.Color("196")
)

// Box is a builder for creating formatted message boxes.
type Box struct {
	messageType MessageType
	title       string
	content     []string
	width       int
}

// NewBox creates a new message box with a specific type. The width
// follows the terminal.
func NewBox(messageType MessageType, title string) *Box {
	return &Box{
		messageType: messageType,
		title:       title,
		width:       getTerminalWidth() - 8,
	}
}

// Width overrides the maximum box width
func (b *Box) Width(w int) *Box {
	b.width = w
	return b
}

// AddLine adds a line of text to the message box content.
func (b *Box) AddLine(text string) *Box {
	b.content = append(b.content, text)
	return b
}

// AddBullet adds a bulleted line to the message box content.
func (b *Box) AddBullet(text string) *Box {
	b.content = append(b.content, "• "+text)
	return b
}

// Render builds and returns the formatted message box as a string.
func (b *Box) Render() string {
	color, prefix := b.colorAndPrefix()

	header := lipgloss.NewStyle().Bold(true).Foreground(color).Render(prefix + " " + b.title)
	lines := []string{header}
	for _, l := range b.content {
		lines = append(lines, "  "+l)
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)

	// longest line plus border and padding
	natural := 0
	for _, l := range lines {
		if w := lipgloss.Width(l); w > natural {
			natural = w
		}
	}
	if b.width > 4 && natural+4 > b.width {
		style = style.Width(b.width - 2)
	}

	return style.Render(strings.Join(lines, "\n"))
}

func (b *Box) colorAndPrefix() (lipgloss.Color, string) {
	switch b.messageType {
	case SuccessMessage:
		return successColor, successPrefix
	case WarningMessage:
		return warningColor, warningPrefix
	case ErrorMessage:
		return errorColor, errorPrefix
	default:
		return infoColor, infoPrefix
	}
}

// Info renders an informational box
func Info(title string, lines ...string) string {
	return render(InfoMessage, title, lines)
}

// Success renders a success box
func Success(title string, lines ...string) string {
	return render(SuccessMessage, title, lines)
}

// Warning renders a warning box
func Warning(title string, lines ...string) string {
	return render(WarningMessage, title, lines)
}

// Error renders an error box
func Error(title string, lines ...string) string {
	return render(ErrorMessage, title, lines)
}

func render(t MessageType, title string, lines []string) string {
	box := NewBox(t, title)
	for _, line := range lines {
		box.AddLine(line)
	}
	return box.Render()
}

// getTerminalWidth returns the terminal width or defaults to 80 if unable to detect.
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
