package reporting

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/burrow/scanner/internal/scanner"
)

var csvHeader = []string{
	"url", "method", "word", "status_code", "redirect",
	"bytes", "words", "chars", "lines", "depth",
	"verdict", "directory", "server", "waf", "error_kind", "duration_ms",
}

func WriteCSV(w io.Writer, outcomes []scanner.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, o := range sortedCopy(outcomes) {
		record := []string{
			o.URL,
			o.Method,
			o.Word,
			strconv.Itoa(o.StatusCode),
			o.Redirect,
			strconv.Itoa(o.Bytes),
			strconv.Itoa(o.Words),
			strconv.Itoa(o.Chars),
			strconv.Itoa(o.Lines),
			strconv.Itoa(o.Depth),
			o.Verdict.String(),
			strconv.FormatBool(o.Directory),
			o.Server,
			o.WAF,
			string(o.ErrorKind),
			strconv.FormatInt(o.Duration.Milliseconds(), 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func SaveCSV(outcomes []scanner.Outcome, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteCSV(file, outcomes)
}
