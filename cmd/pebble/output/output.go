package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Color styles for terminal output
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

var out io.Writer = os.Stdout

// SetOutput redirects all output to w and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// Writer returns the current output writer.
func Writer() io.Writer { return out }

func line(icon, format string, args ...any) {
	_, _ = fmt.Fprint(out, icon)
	_, _ = fmt.Fprintf(out, format+"\n", args...)
}

// Success prints a success message
func Success(format string, args ...any) { line(successStyle.Render("✓ "), format, args...) }

// Warning prints a warning message
func Warning(format string, args ...any) { line(warningStyle.Render("⚠ "), format, args...) }

// Error prints an error message
func Error(format string, args ...any) { line(errorStyle.Render("✗ "), format, args...) }

// Info prints an info message
func Info(format string, args ...any) { line(infoStyle.Render("ℹ "), format, args...) }

// Muted prints a muted message
func Muted(format string, args ...any) {
	_, _ = fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Primary prints a primary message
func Primary(format string, args ...any) {
	_, _ = fmt.Fprintln(out, primaryStyle.Render(fmt.Sprintf(format, args...)))
}

// Println prints an unstyled line.
func Println(args ...any) {
	_, _ = fmt.Fprintln(out, args...)
}

// Section prints a section header
func Section(title string) {
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, primaryStyle.Render(title))
	_, _ = fmt.Fprintln(out, mutedStyle.Render(strings.Repeat("═", lipgloss.Width(title))))
	_, _ = fmt.Fprintln(out)
}

// JSON writes v as indented JSON.
func JSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// StatusIcon returns a colored icon for a table sync status or plan action.
func StatusIcon(status string) string {
	switch status {
	case "created", "create":
		return successStyle.Render("+")
	case "altered", "alter":
		return warningStyle.Render("~")
	case "failed":
		return errorStyle.Render("✗")
	case "skipped":
		return warningStyle.Render("○")
	case "unchanged", "none":
		return mutedStyle.Render("•")
	default:
		return infoStyle.Render("◉")
	}
}
