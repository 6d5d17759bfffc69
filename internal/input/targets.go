package input

import (
	"io"
	"os"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>()\[\]{},]+`)

// ReadTargets reads one target per line.
func ReadTargets(r io.Reader) ([]string, error) {
	var targets []string
	err := scanLines(r, func(line string) {
		targets = append(targets, line)
	})
	return targets, err
}

func LoadTargets(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadTargets(file)
}

// ExtractURLs pulls every http(s) URL out of free-form text such as a
// previous run's output, JSON or CSV. Trailing sentence punctuation is
// dropped.
func ExtractURLs(r io.Reader) ([]string, error) {
	var urls []string
	err := scanLines(r, func(line string) {
		for _, match := range urlPattern.FindAllString(line, -1) {
			match = strings.TrimRight(match, ".;:")
			if match != "" {
				urls = append(urls, match)
			}
		}
	})
	return urls, err
}

func LoadResultURLs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ExtractURLs(file)
}

// Dedupe keeps the first occurrence of every target.
func Dedupe(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	out := targets[:0:0]
	for _, t := range targets {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
