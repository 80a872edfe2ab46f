package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// formatter colors text unless NO_COLOR is set or the output is not a
// terminal.
type formatter struct {
	color *color.Color
}

func (f formatter) Sprint(a ...any) string {
	text := fmt.Sprint(a...)
	if noColor() {
		return text
	}
	return f.color.Sprint(text)
}

func noColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return color.NoColor
}

var (
	successText   = formatter{color.New(color.FgGreen)}
	errorText     = formatter{color.New(color.FgRed)}
	highlightText = formatter{color.New(color.FgCyan, color.Bold)}
	mutedText     = formatter{color.New(color.Faint)}
)

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, errorText.Sprint("✗")+" "+err.Error())
}

func printField(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "  %s %v\n", mutedText.Sprint(name+":"), value)
}

// startSpinner shows progress on w. It does nothing when w is not a
// terminal.
func startSpinner(w io.Writer, suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	return s
}
