package target

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const DefaultMarker = "FUZZ"

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodPatch:   true,
}

// Spec is the raw, user-supplied description of a request template.
type Spec struct {
	Method        string
	URL           string
	Headers       []string
	Body          string
	HasBody       bool
	Marker        string
	RequireMarker bool
}

type Header struct {
	Name  string
	Value string
}

// Template turns words into concrete scan targets. In marker mode every
// occurrence of the marker is replaced with the same word; in path mode the
// word is appended to a base URL ending in "/".
type Template struct {
	method  string
	rawURL  string
	headers []Header
	body    string
	hasBody bool
	marker  string
	depth   int

	pathMode  bool
	inPath    bool
	inURL     bool
	inHeaders bool
	inBody    bool
}

func New(spec Spec) (*Template, error) {
	marker := spec.Marker
	if marker == "" {
		marker = DefaultMarker
	}

	method := strings.ToUpper(strings.TrimSpace(spec.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		return nil, fmt.Errorf("%w: unsupported method %q. Use one of GET, HEAD, POST, PUT, DELETE, OPTIONS, PATCH", ErrInvalidTemplate, spec.Method)
	}

	headers := make([]Header, 0, len(spec.Headers))
	for _, line := range spec.Headers {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: header %q must look like \"Name: value\"", ErrInvalidTemplate, line)
		}
		headers = append(headers, Header{Name: name, Value: strings.TrimSpace(value)})
	}

	t := &Template{
		method:  method,
		rawURL:  strings.TrimSpace(spec.URL),
		headers: headers,
		body:    spec.Body,
		hasBody: spec.HasBody,
		marker:  marker,
	}

	t.inURL = strings.Contains(t.rawURL, marker)
	for _, h := range headers {
		if strings.Contains(h.Name, marker) || strings.Contains(h.Value, marker) {
			t.inHeaders = true
		}
	}
	t.inBody = t.hasBody && strings.Contains(t.body, marker)

	// A stand-in keeps hosts such as FUZZ.example.com parseable.
	u, err := url.Parse(strings.ReplaceAll(t.rawURL, marker, "burrow"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: url %q must use http or https", ErrInvalidTemplate, t.rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url %q has no host", ErrInvalidTemplate, t.rawURL)
	}

	if !t.inURL && !t.inHeaders && !t.inBody {
		if spec.RequireMarker {
			return nil, &TemplateError{Marker: marker, URL: t.rawURL}
		}
		t.pathMode = true
		t.rawURL = DirectoryBase(u)
		return t, nil
	}

	if t.inURL {
		if withMarker, err := url.Parse(t.rawURL); err == nil {
			t.inPath = strings.Contains(withMarker.Path, marker)
		}
	}

	return t, nil
}

// DirectoryBase strips the query and fragment of u and ensures its path
// ends in "/".
func DirectoryBase(u *url.URL) string {
	base := *u
	base.RawQuery = ""
	base.Fragment = ""
	base.RawFragment = ""
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
		if base.RawPath != "" {
			base.RawPath += "/"
		}
	}
	return base.String()
}

func (t *Template) Fill(word string) ScanTarget {
	st := ScanTarget{
		Method:  t.method,
		Word:    word,
		Depth:   t.depth,
		HasBody: t.hasBody,
		Header:  make(http.Header, len(t.headers)),
	}

	if t.pathMode {
		st.URL = t.rawURL + strings.TrimPrefix(word, "/")
	} else {
		st.URL = strings.ReplaceAll(t.rawURL, t.marker, word)
	}

	for _, h := range t.headers {
		name, value := h.Name, h.Value
		if t.inHeaders {
			name = strings.ReplaceAll(name, t.marker, word)
			value = strings.ReplaceAll(value, t.marker, word)
		}
		st.Header.Add(name, value)
	}

	if t.hasBody {
		st.Body = t.body
		if t.inBody {
			st.Body = strings.ReplaceAll(t.body, t.marker, word)
		}
	}

	if t.inHeaders || t.inBody {
		st.key = t.requestKey(st)
	} else {
		st.key = resolvedURL(st.URL)
	}
	return st
}

// resolvedURL is the URL as it goes on the wire: the fragment is never
// sent. Unparseable URLs are returned unchanged so the request still fails
// visibly.
func resolvedURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func (t *Template) requestKey(st ScanTarget) string {
	var b strings.Builder
	b.WriteString(st.Method)
	b.WriteByte(' ')
	b.WriteString(resolvedURL(st.URL))
	if t.inHeaders {
		names := make([]string, 0, len(st.Header))
		for name := range st.Header {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteByte('\n')
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(strings.Join(st.Header[name], ", "))
		}
	}
	if t.inBody {
		b.WriteString("\n\n")
		b.WriteString(st.Body)
	}
	return b.String()
}

// Recursive reports whether discovered directories can be scanned further,
// which requires the word to land in the URL path.
func (t *Template) Recursive() bool {
	return t.pathMode || t.inPath
}

// Descend returns a path-mode template rooted at dirURL one level deeper.
// Header and body marker sites keep being filled.
func (t *Template) Descend(dirURL string) *Template {
	child := *t
	child.pathMode = true
	child.inURL = false
	child.inPath = false
	child.depth = t.depth + 1
	child.rawURL = dirURL
	if !strings.HasSuffix(child.rawURL, "/") {
		child.rawURL += "/"
	}
	return &child
}

func (t *Template) Method() string { return t.method }
func (t *Template) Marker() string { return t.marker }
func (t *Template) Depth() int     { return t.depth }

func (t *Template) URL() string {
	if t.pathMode {
		return t.rawURL + t.marker
	}
	return t.rawURL
}

func (t *Template) Mode() string {
	if t.pathMode {
		return "path"
	}
	return "marker"
}

func (t *Template) String() string {
	return t.method + " " + t.URL()
}

// ScanTarget is one concrete request derived from a template and a word.
type ScanTarget struct {
	Method  string
	URL     string
	Header  http.Header
	Body    string
	HasBody bool
	Word    string
	Depth   int

	key string
}

// Key identifies the target for deduplication.
func (s ScanTarget) Key() string {
	if s.key != "" {
		return s.key
	}
	return s.URL
}

func (s ScanTarget) NewRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if s.HasBody {
		body = strings.NewReader(s.Body)
	}

	req, err := http.NewRequestWithContext(ctx, s.Method, s.URL, body)
	if err != nil {
		return nil, err
	}

	for name, values := range s.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if host := s.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if s.HasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}
