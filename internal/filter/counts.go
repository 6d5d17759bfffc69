package filter

import (
	"strings"
	"unicode/utf8"
)

type Counts struct {
	Bytes int `json:"bytes"`
	Words int `json:"words"`
	Chars int `json:"chars"`
	Lines int `json:"lines"`
}

func Count(body []byte) Counts {
	text := string(body)
	return Counts{
		Bytes: len(body),
		Words: len(strings.Fields(text)),
		Chars: utf8.RuneCountInString(text),
		Lines: countLines(text),
	}
}

// A trailing newline does not open another line.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
