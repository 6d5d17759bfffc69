// Package input loads wordlists and target lists from disk or STDIN.
package input

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const maxLineBytes = 1024 * 1024

// LoadWordlist reads one word per line, skipping blanks and "#" comments.
// Every word is followed by its variants with each extension appended.
// Duplicates are dropped in first-seen order.
func LoadWordlist(path string, extensions []string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadWordlist(file, extensions)
}

func ReadWordlist(r io.Reader, extensions []string) ([]string, error) {
	var words []string
	seen := make(map[string]bool)
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}

	err := scanLines(r, func(line string) {
		add(line)
		for _, ext := range extensions {
			add(line + ext)
		}
	})
	return words, err
}

func scanLines(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			fn(line)
		}
	}
	return scanner.Err()
}
