// Package telnet provides the telnet listener, connection handling and ANSI
// styling used by the text frontend.
package telnet

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ANSI escape codes.
const (
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	Underline = "\033[4m"
	Reverse   = "\033[7m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"

	BrightBlack  = "\033[90m"
	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightCyan   = "\033[96m"
	BrightWhite  = "\033[97m"

	BgYellow = "\033[43m"
	BgBlue   = "\033[44m"

	// ClearScreen erases the terminal and homes the cursor.
	ClearScreen = "\033[2J\033[H"
)

// Colorize wraps text with the given codes and a reset suffix.
//
// Postcondition: StripANSI(Colorize(c, text)) == text.
func Colorize(color, text string) string {
	return color + text + Reset
}

// Colorf wraps a formatted string with the given ANSI color code.
func Colorf(color, format string, args ...any) string {
	return color + fmt.Sprintf(format, args...) + Reset
}

// StripANSI removes CSI escape sequences (ESC [ ... final byte).
func StripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inCSI := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inCSI:
			if c >= 0x40 && c <= 0x7e {
				inCSI = false
			}
		case c == '\033' && i+1 < len(s) && s[i+1] == '[':
			inCSI = true
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Width returns the number of terminal cells s occupies once styled output
// is rendered.
func Width(s string) int {
	return runewidth.StringWidth(StripANSI(s))
}

// PadRight pads s with spaces to width visible cells. Longer strings are
// returned unchanged.
func PadRight(s string, width int) string {
	if w := Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
