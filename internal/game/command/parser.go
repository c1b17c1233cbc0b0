package command

import (
	"strings"
	"unicode"
)

// ParseResult is one input line split into a command word and its arguments.
type ParseResult struct {
	// Command is the lowercased first word, without a leading slash.
	Command string
	// Args are the whitespace-separated words after the command.
	Args []string
	// RawArgs is the text after the command with inner spacing kept.
	RawArgs string
}

// Parse splits a line into a command and arguments. A leading "/" on the
// command word is ignored so "/roll" and "roll" are the same.
//
// Postcondition: Command is empty when line is blank.
func Parse(line string) ParseResult {
	line = strings.TrimSpace(line)
	word, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		word, rest = line[:i], line[i:]
	}
	word = strings.TrimPrefix(word, "/")
	if word == "" {
		return ParseResult{}
	}
	res := ParseResult{Command: strings.ToLower(word)}
	if args := strings.Fields(rest); len(args) > 0 {
		res.Args = args
		res.RawArgs = strings.TrimSpace(rest)
	}
	return res
}
