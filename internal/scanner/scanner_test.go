package scanner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrow/scanner/internal/config"
	"github.com/burrow/scanner/internal/filter"
	"github.com/burrow/scanner/internal/target"
	"github.com/burrow/scanner/internal/transport"
)

func testConfig() config.Config {
	return config.Config{
		Concurrency:   4,
		Timeout:       5,
		MaxResponseMB: 1,
	}
}

func mustTemplate(t *testing.T, spec target.Spec) *target.Template {
	t.Helper()
	tmpl, err := target.New(spec)
	require.NoError(t, err)
	return tmpl
}

func newEngine(t *testing.T, cfg config.Config, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

func runScan(t *testing.T, ctx context.Context, e *Engine, templates []*target.Template, words []string) ([]Outcome, *Stats, error) {
	t.Helper()
	sink := make(chan Outcome)
	var outcomes []Outcome
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for o := range sink {
			outcomes = append(outcomes, o)
		}
	}()

	stats, err := e.Run(ctx, templates, words, sink)
	close(sink)
	<-consumed
	return outcomes, stats, err
}

// pathRecorder counts requests per path.
type pathRecorder struct {
	mu    sync.Mutex
	paths map[string]int
}

func newPathRecorder() *pathRecorder {
	return &pathRecorder{paths: make(map[string]int)}
}

func (p *pathRecorder) record(r *http.Request) {
	p.mu.Lock()
	p.paths[r.URL.Path]++
	p.mu.Unlock()
}

func (p *pathRecorder) sorted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.paths))
	for path := range p.paths {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (p *pathRecorder) maxHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	max := 0
	for _, n := range p.paths {
		if n > max {
			max = n
		}
	}
	return max
}

func TestEngineBasicScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin":
			w.Header().Set("X-Powered-By", "PHP/8.2")
			w.WriteHeader(200)
			w.Write([]byte("Admin panel\nlogin required\n"))
		case "/login":
			w.Header().Set("Location", "/login/")
			w.WriteHeader(302)
		default:
			w.WriteHeader(404)
		}
	}))
	defer server.Close()

	e := newEngine(t, testConfig())
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"admin", "login", "missing"})
	require.NoError(t, err)

	assert.Len(t, outcomes, 3)
	assert.Equal(t, int64(len(outcomes)), stats.GetProcessed())
	assert.Equal(t, int64(2), stats.GetFound())
	assert.Equal(t, int64(1), stats.GetSuppressed())
	assert.Equal(t, int64(0), stats.GetErrors())
	assert.Equal(t, StateDone, e.State())

	byWord := make(map[string]Outcome)
	for _, o := range outcomes {
		byWord[o.Word] = o
	}

	admin := byWord["admin"]
	assert.True(t, admin.Interesting())
	assert.Equal(t, "200 OK", admin.Status)
	assert.Equal(t, filter.Counts{Bytes: 27, Words: 4, Chars: 27, Lines: 2}, admin.Counts())
	assert.True(t, strings.HasPrefix(admin.BodyHash, "mmh3:"))
	assert.Contains(t, admin.Tech, "PHP")

	login := byWord["login"]
	assert.Equal(t, 302, login.StatusCode)
	assert.Equal(t, "/login/", login.Redirect)

	assert.False(t, byWord["missing"].Interesting())
}

func TestEngine_RecursionScenario(t *testing.T) {
	rec := newPathRecorder()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if r.URL.Path == "/admin" {
			w.WriteHeader(200)
			return
		}
		w.WriteHeader(404)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Depth = 1
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{URL: server.URL + "/"})

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"admin"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/admin", "/admin/admin"}, rec.sorted())
	assert.Len(t, outcomes, 2)
	assert.Equal(t, int64(1), stats.GetExpansions())

	for _, o := range outcomes {
		if o.URL == server.URL+"/admin/admin" {
			assert.Equal(t, 1, o.Depth)
			assert.False(t, o.Interesting())
		}
	}
}

func TestEngine_NoRecursionByDefault(t *testing.T) {
	rec := newPathRecorder()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.WriteHeader(200)
	}))
	defer server.Close()

	e := newEngine(t, testConfig())
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	outcomes, _, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/a", "/b", "/c"}, rec.sorted())
	assert.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.True(t, o.Directory, "200 responses are directory-like even when not expanded")
	}
}

func TestEngine_TerminationBound(t *testing.T) {
	rec := newPathRecorder()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.WriteHeader(200)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Depth = 2
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"a", "b"})
	require.NoError(t, err)

	// 2 + 2^2 + 2^3
	assert.Len(t, outcomes, 14)
	assert.Len(t, rec.sorted(), 14)
	assert.Equal(t, 1, rec.maxHits())
	assert.Equal(t, int64(14), stats.GetTotal())

	for _, o := range outcomes {
		assert.LessOrEqual(t, o.Depth, 2)
	}
}

func TestEngine_Backpressure(t *testing.T) {
	var current, peak int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&current, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		w.WriteHeader(404)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Concurrency = 3
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	words := make([]string, 30)
	for i := range words {
		words[i] = "w" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, words)
	require.NoError(t, err)

	assert.Len(t, outcomes, 30)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
	assert.LessOrEqual(t, stats.GetPeakInFlight(), int64(3))
	assert.GreaterOrEqual(t, stats.GetPeakInFlight(), int64(1))
	assert.Equal(t, int64(0), stats.GetInFlight())
}

func TestEngine_DedupAcrossTemplates(t *testing.T) {
	rec := newPathRecorder()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.WriteHeader(404)
	}))
	defer server.Close()

	e := newEngine(t, testConfig())
	a := mustTemplate(t, target.Spec{URL: server.URL})
	b := mustTemplate(t, target.Spec{URL: server.URL + "/"})

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{a, b}, []string{"x", "y", "x"})
	require.NoError(t, err)

	assert.Len(t, outcomes, 2)
	assert.Equal(t, 1, rec.maxHits())
	assert.Equal(t, int64(2), stats.GetTotal())
}

func TestEngine_ElapsedStartsAtRun(t *testing.T) {
	e := newEngine(t, testConfig())
	time.Sleep(200 * time.Millisecond)

	before := time.Now()
	_, stats, err := runScan(t, context.Background(), e, nil, nil)
	require.NoError(t, err)

	assert.Less(t, stats.Elapsed(), 150*time.Millisecond)
	assert.False(t, stats.StartTime.Before(before))
	frozen := stats.Elapsed()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, stats.Elapsed())
}

func TestEngine_DedupIgnoresFragment(t *testing.T) {
	rec := newPathRecorder()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.WriteHeader(404)
	}))
	defer server.Close()

	e := newEngine(t, testConfig())
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"admin", "admin#top"})
	require.NoError(t, err)

	assert.Len(t, outcomes, 1)
	assert.Equal(t, []string{"/admin"}, rec.sorted())
	assert.Equal(t, 1, rec.maxHits())
	assert.Equal(t, int64(1), stats.GetTotal())
}

func TestEngine_TransportErrorsBecomeOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := server.URL
	server.Close()

	e := newEngine(t, testConfig())
	tmpl := mustTemplate(t, target.Spec{URL: deadURL})

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.Failed())
		assert.Equal(t, transport.KindRefused, o.ErrorKind)
		assert.Zero(t, o.StatusCode)
		assert.False(t, o.Interesting())
	}
	assert.Equal(t, int64(2), stats.GetErrors())
}

func TestEngine_InvalidWordBecomesRequestError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer server.Close()

	e := newEngine(t, testConfig())
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	outcomes, _, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"%zz"})
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.Equal(t, transport.KindRequest, outcomes[0].ErrorKind)
}

func TestEngine_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig()
	cfg.Timeout = 1
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	outcomes, _, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"slow"})
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.Equal(t, transport.KindTimeout, outcomes[0].ErrorKind)
}

func TestEngine_Cancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Concurrency = 2
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	words := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	start := time.Now()
	outcomes, stats, err := runScan(t, ctx, e, []*target.Template{tmpl}, words)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, StateDone, e.State())
	assert.Len(t, outcomes, 2, "only the in-flight requests complete")
	assert.Equal(t, int64(len(outcomes)), stats.GetProcessed())
	for _, o := range outcomes {
		assert.True(t, o.Failed())
	}
}

func TestEngine_Reuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer server.Close()

	e := newEngine(t, testConfig())
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	_, _, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"a"})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), []*target.Template{tmpl}, []string{"a"}, make(chan Outcome, 1))
	assert.ErrorIs(t, err, ErrEngineReused)
}

func TestEngine_IncludeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crash":
			w.WriteHeader(500)
		case "/ok":
			w.WriteHeader(200)
		default:
			w.WriteHeader(404)
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.IncludeStatus = "500"
	cfg.ExcludeStatus = "500,404"
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	outcomes, _, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"crash", "ok", "missing"})
	require.NoError(t, err)

	var interesting []string
	for _, o := range outcomes {
		if o.Interesting() {
			interesting = append(interesting, o.Word)
		}
	}
	assert.Equal(t, []string{"crash"}, interesting)
}

func TestEngine_AutoCalibrate(t *testing.T) {
	wildcard := strings.Repeat("Page not found. ", 40)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		if r.URL.Path == "/admin" {
			w.Write([]byte("<h1>Dashboard</h1>"))
			return
		}
		w.Write([]byte(wildcard + r.URL.Path))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.AutoCalibrate = true
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"admin", "nothing", "else"})
	require.NoError(t, err)

	assert.Len(t, outcomes, 3)
	assert.Equal(t, int64(1), stats.GetFound())
	for _, o := range outcomes {
		assert.Equal(t, o.Word == "admin", o.Interesting(), "word %s", o.Word)
	}
}

func TestEngine_Delay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Concurrency = 1
	cfg.Delay = 50
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	start := time.Now()
	_, _, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestEngine_BodyMarker(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, r.Method+" "+r.URL.Path+" "+string(b))
		mu.Unlock()
		if string(b) == "user=admin" {
			w.WriteHeader(200)
			return
		}
		w.WriteHeader(401)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Depth = 3
	cfg.ExcludeStatus = "401"
	e := newEngine(t, cfg)
	tmpl := mustTemplate(t, target.Spec{
		Method:        "POST",
		URL:           server.URL + "/login",
		Body:          "user=FUZZ",
		HasBody:       true,
		RequireMarker: true,
	})

	outcomes, _, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"guest", "admin"})
	require.NoError(t, err)

	sort.Strings(bodies)
	assert.Equal(t, []string{"POST /login user=admin", "POST /login user=guest"}, bodies)
	require.Len(t, outcomes, 2, "body fuzzing never recurses")
	for _, o := range outcomes {
		assert.Equal(t, o.Word == "admin", o.Interesting())
		assert.False(t, o.Directory)
	}
}

type countingObserver struct {
	dispatched int64
	completed  int64
	depthCalls int64
}

func (c *countingObserver) Dispatched(WorkItem) { atomic.AddInt64(&c.dispatched, 1) }
func (c *countingObserver) Completed(Outcome)   { atomic.AddInt64(&c.completed, 1) }
func (c *countingObserver) QueueDepth(int)      { atomic.AddInt64(&c.depthCalls, 1) }

func TestEngine_Observer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer server.Close()

	obs := &countingObserver{}
	e := newEngine(t, testConfig(), WithObserver(obs))
	tmpl := mustTemplate(t, target.Spec{URL: server.URL})

	_, _, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, int64(3), atomic.LoadInt64(&obs.dispatched))
	assert.Equal(t, int64(3), atomic.LoadInt64(&obs.completed))
	assert.Greater(t, atomic.LoadInt64(&obs.depthCalls), int64(0))
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 0
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg = testConfig()
	cfg.IncludeStatus = "abc"
	_, err = NewEngine(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestEngine_EmptyWordlist(t *testing.T) {
	e := newEngine(t, testConfig())
	tmpl := mustTemplate(t, target.Spec{URL: "http://127.0.0.1:1"})

	outcomes, stats, err := runScan(t, context.Background(), e, []*target.Template{tmpl}, nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Equal(t, int64(0), stats.GetProcessed())
	assert.Equal(t, StateDone, e.State())
}
