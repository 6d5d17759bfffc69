package scanner

import (
	"time"

	"github.com/burrow/scanner/internal/filter"
	"github.com/burrow/scanner/internal/target"
	"github.com/burrow/scanner/internal/transport"
)

// WorkItem is a queued target plus the recursion budget left below it.
type WorkItem struct {
	Target    target.ScanTarget
	Template  *target.Template
	Remaining int

	baseline string
}

func (w WorkItem) Key() string {
	return w.Target.Key()
}

// Outcome is the classified result of one exchange. Failed exchanges carry
// ErrorKind and no status.
type Outcome struct {
	URL        string              `json:"url"`
	Method     string              `json:"method"`
	Word       string              `json:"word"`
	StatusCode int                 `json:"status_code,omitempty"`
	Status     string              `json:"status,omitempty"`
	Redirect   string              `json:"redirect,omitempty"`
	Bytes      int                 `json:"bytes"`
	Words      int                 `json:"words"`
	Chars      int                 `json:"chars"`
	Lines      int                 `json:"lines"`
	BodyHash   string              `json:"body_hash,omitempty"`
	Depth      int                 `json:"depth"`
	Verdict    filter.Verdict      `json:"verdict"`
	Directory  bool                `json:"directory,omitempty"`
	ErrorKind  transport.ErrorKind `json:"error_kind,omitempty"`
	Error      string              `json:"error,omitempty"`
	Server     string              `json:"server,omitempty"`
	WAF        string              `json:"waf,omitempty"`
	Tech       []string            `json:"technologies,omitempty"`
	Duration   time.Duration       `json:"duration_ns"`
	Timestamp  time.Time           `json:"timestamp"`
}

func (o Outcome) Failed() bool {
	return o.ErrorKind != ""
}

func (o Outcome) Interesting() bool {
	return o.Verdict == filter.Interesting
}

func (o Outcome) Counts() filter.Counts {
	return filter.Counts{Bytes: o.Bytes, Words: o.Words, Chars: o.Chars, Lines: o.Lines}
}
