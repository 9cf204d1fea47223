package ui

import (
	"fmt"
	"strings"
)

// IsRawMode is flipped on while the terminal is in raw mode, where bare "\n"
// does not return the carriage. All chat output should go through this
// package so it renders correctly in both modes.
var IsRawMode = false

func crlf(s string) string {
	if !IsRawMode {
		return s
	}
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// Printf formats and prints, normalizing line endings for the current mode.
func Printf(format string, a ...interface{}) {
	fmt.Print(crlf(fmt.Sprintf(format, a...)))
}

// Print prints its arguments, normalizing line endings for the current mode.
func Print(a ...interface{}) {
	fmt.Print(crlf(fmt.Sprint(a...)))
}

// Println prints its arguments followed by a newline, normalizing line
// endings for the current mode (including the trailing one).
func Println(a ...interface{}) {
	fmt.Print(crlf(fmt.Sprint(a...) + "\n"))
}
