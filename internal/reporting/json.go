package reporting

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/burrow/scanner/internal/config"
	"github.com/burrow/scanner/internal/scanner"
)

const schemaVersion = "1.0"

type ScanReport struct {
	SchemaVersion string            `json:"schema_version"`
	RunID         string            `json:"run_id"`
	Metadata      ScanMetadata      `json:"metadata"`
	Results       []scanner.Outcome `json:"results"`
}

type ScanMetadata struct {
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	TargetCount  int    `json:"target_count"`
	TargetsHash  string `json:"targets_hash"`
	Requests     int64  `json:"requests"`
	Errors       int64  `json:"errors"`
	TotalResults int    `json:"total_results"`
	Version      string `json:"version"`
}

// SaveJSON writes the outcomes as a sorted JSON array.
func SaveJSON(outcomes []scanner.Outcome, filename string) error {
	sorted := sortedCopy(outcomes)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sorted)
}

// SaveJSONReport writes a versioned report with run metadata. stats may be
// nil when the scan never started.
func SaveJSONReport(outcomes []scanner.Outcome, filename string, targets []string, runID string, stats *scanner.Stats) error {
	sorted := sortedCopy(outcomes)

	meta := ScanMetadata{
		StartTime:    time.Now().Format(time.RFC3339),
		EndTime:      time.Now().Format(time.RFC3339),
		TargetCount:  len(targets),
		TargetsHash:  hashStrings(targets),
		TotalResults: len(sorted),
		Version:      config.Version,
	}
	if stats != nil {
		meta.StartTime = stats.StartTime.Format(time.RFC3339)
		meta.EndTime = stats.StartTime.Add(stats.Elapsed()).Format(time.RFC3339)
		meta.Requests = stats.GetProcessed()
		meta.Errors = stats.GetErrors()
	}

	report := ScanReport{
		SchemaVersion: schemaVersion,
		RunID:         runID,
		Metadata:      meta,
		Results:       sorted,
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// JSONLWriter streams one JSON object per line. It is safe for concurrent
// use.
type JSONLWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{enc: json.NewEncoder(w)}
}

func (j *JSONLWriter) Write(o scanner.Outcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(o)
}

func hashStrings(ss []string) string {
	h := sha256.New()
	for _, s := range ss {
		h.Write([]byte(s))
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

func GenerateRunID() string {
	return uuid.NewString()
}

func SortOutcomes(outcomes []scanner.Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		if outcomes[i].URL != outcomes[j].URL {
			return outcomes[i].URL < outcomes[j].URL
		}
		return outcomes[i].StatusCode < outcomes[j].StatusCode
	})
}

func sortedCopy(outcomes []scanner.Outcome) []scanner.Outcome {
	sorted := make([]scanner.Outcome, len(outcomes))
	copy(sorted, outcomes)
	SortOutcomes(sorted)
	return sorted
}

func CountByStatus(outcomes []scanner.Outcome) map[string]int {
	counts := map[string]int{
		"2xx":         0,
		"3xx":         0,
		"4xx":         0,
		"5xx":         0,
		"errors":      0,
		"directories": 0,
		"waf":         0,
	}

	for _, o := range outcomes {
		switch {
		case o.Failed():
			counts["errors"]++
		case o.StatusCode >= 200 && o.StatusCode < 300:
			counts["2xx"]++
		case o.StatusCode >= 300 && o.StatusCode < 400:
			counts["3xx"]++
		case o.StatusCode >= 400 && o.StatusCode < 500:
			counts["4xx"]++
		case o.StatusCode >= 500:
			counts["5xx"]++
		}
		if o.Directory {
			counts["directories"]++
		}
		if o.WAF != "" {
			counts["waf"]++
		}
	}

	return counts
}
