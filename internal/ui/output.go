package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

const (
	BoxWidth = 46
)

var (
	// Color/style functions
	Bold   = color.New(color.Bold).SprintFunc()
	Dim    = color.New(color.Faint).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()

	// Out receives everything the package prints.
	Out io.Writer = os.Stderr
)

// Header prints the top border with the command title.
func Header(title string) {
	label := "testbox·" + title
	border := strings.Repeat("─", max(BoxWidth-len([]rune(label))-3, 1))
	fmt.Fprintf(Out, "  %s %s %s\n", Dim("┌"), Bold(label), Dim(border))
}

// Footer prints the bottom border.
func Footer() {
	border := strings.Repeat("─", BoxWidth-1)
	fmt.Fprintf(Out, "  %s\n", Dim("└"+border))
}

// Info prints an informational message with a cyan arrow.
func Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(Out, "  %s %s\n", Cyan("→"), msg)
}

// Success prints a success message with a green checkmark.
func Success(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(Out, "  %s %s\n", Green("✔"), msg)
}

// Fail prints an error message with a red X.
func Fail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(Out, "  %s %s\n", Red("✘"), msg)
}

// Warn prints a warning message with a yellow circle.
func Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(Out, "  %s %s\n", Yellow("○"), msg)
}

// DimMsg prints a dimmed message.
func DimMsg(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(Out, "  %s\n", Dim(msg))
}

// BlankLine prints a blank line.
func BlankLine() {
	fmt.Fprintln(Out, "")
}

// Binding prints one published port, e.g. "6379/tcp → 127.0.0.1:49153".
func Binding(internal, address string) {
	fmt.Fprintf(Out, "    %s %s %s\n", Cyan(internal), Dim("→"), address)
}

// Field prints an aligned key/value pair.
func Field(key string, value any) {
	fmt.Fprintf(Out, "    %s %v\n", Dim(fmt.Sprintf("%-10s", key)), value)
}
