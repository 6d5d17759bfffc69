package scanner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/twmb/murmur3"

	"github.com/burrow/scanner/internal/detection"
	"github.com/burrow/scanner/internal/filter"
	"github.com/burrow/scanner/internal/transport"
)

// work performs one exchange for item. The permit is released and
// completion signalled on every exit path, after any follow-ups are queued.
func (e *Engine) work(ctx context.Context, item WorkItem, done chan<- struct{}) {
	defer func() {
		e.stats.leave()
		e.gate.Release(1)
		done <- struct{}{}
	}()

	if e.delay > 0 {
		timer := time.NewTimer(e.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	outcome := e.exchange(ctx, item)
	e.record(outcome)
	e.observer.Completed(outcome)
	e.sink <- outcome

	if outcome.Directory && item.Remaining > 0 && ctx.Err() == nil {
		e.expand(item, outcome)
	}
}

func (e *Engine) exchange(ctx context.Context, item WorkItem) Outcome {
	st := item.Target
	outcome := Outcome{
		URL:       st.URL,
		Method:    st.Method,
		Word:      st.Word,
		Depth:     st.Depth,
		Verdict:   filter.Suppressed,
		Timestamp: time.Now(),
	}

	start := time.Now()
	req, err := st.NewRequest(ctx)
	if err != nil {
		outcome.ErrorKind = transport.KindRequest
		outcome.Error = err.Error()
		return outcome
	}

	resp, body, err := e.client.Do(ctx, req)
	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.ErrorKind = transport.Classify(err)
		outcome.Error = err.Error()
		return outcome
	}

	c := filter.Classify(filter.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, e.filter)
	if c.Verdict == filter.Interesting && e.calibration.Suppresses(item.baseline, resp.StatusCode, c.Counts) {
		c.Verdict = filter.Suppressed
	}

	outcome.StatusCode = resp.StatusCode
	outcome.Status = statusLine(resp.StatusCode)
	outcome.Redirect = c.Redirect
	outcome.Bytes = c.Counts.Bytes
	outcome.Words = c.Counts.Words
	outcome.Chars = c.Counts.Chars
	outcome.Lines = c.Counts.Lines
	outcome.Verdict = c.Verdict
	outcome.Server = resp.Header.Get("Server")
	outcome.WAF = detection.DetectWAF(resp.Header, resp.StatusCode, body)
	if len(body) > 0 {
		outcome.BodyHash = fmt.Sprintf("mmh3:%d", murmur3.Sum32(body))
	}

	if c.Verdict == filter.Interesting {
		outcome.Tech = detection.DetectTechnologies(resp.Header, body)
	}

	if c.Verdict == filter.Interesting && item.Template.Recursive() {
		if _, ok := directoryBase(st.URL, resp.StatusCode, resp.Header.Get("Location")); ok {
			outcome.Directory = true
		}
	}

	return outcome
}

func (e *Engine) record(o Outcome) {
	e.stats.IncrementProcessed()
	switch {
	case o.Failed():
		e.stats.IncrementErrors()
	case o.Interesting():
		e.stats.IncrementFound()
	default:
		e.stats.IncrementSuppressed()
	}
	if o.WAF != "" {
		e.stats.IncrementWAFHits()
	}
}

// expand queues one child per word under the discovered directory.
func (e *Engine) expand(item WorkItem, o Outcome) {
	base, ok := directoryBase(o.URL, o.StatusCode, o.Redirect)
	if !ok {
		return
	}

	child := item.Template.Descend(base)
	items := make([]WorkItem, 0, len(e.words))
	for _, word := range e.words {
		items = append(items, WorkItem{
			Target:    child.Fill(word),
			Template:  child,
			Remaining: item.Remaining - 1,
			baseline:  item.baseline,
		})
	}

	admitted := e.queue.EnqueueAll(items)
	e.stats.IncrementTotal(int64(admitted))
	e.stats.IncrementExpansions()
	e.logger.Debug("expand", "directory", base, "queued", admitted, "remaining", item.Remaining-1)
}

func statusLine(code int) string {
	text := http.StatusText(code)
	if text == "" {
		return fmt.Sprint(code)
	}
	return fmt.Sprintf("%d %s", code, text)
}
