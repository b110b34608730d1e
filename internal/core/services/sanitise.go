package services

import (
	"regexp"
	"strings"
)

// controlChars matches C0 controls other than tab, newline and carriage
// return, plus DEL.
var controlChars = regexp.MustCompile("[\x01-\x08\x0b\x0c\x0e-\x1f\x7f]")

// Sanitise removes NUL and the control characters that relational stores
// and JSON encoders reject. Newlines, tabs and carriage returns are kept.
func Sanitise(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return controlChars.ReplaceAllString(text, "")
}
