// Package detection annotates outcomes with the web application firewall,
// CDN or server technology that answered them. Annotations never change a
// verdict.
package detection

import (
	"bytes"
	"net/http"
	"strings"
)

type matchSite int

const (
	siteServer matchSite = iota
	siteHeaderName
	siteCookie
)

type wafRule struct {
	name    string
	site    matchSite
	pattern string
}

var wafRules = []wafRule{
	{"Cloudflare", siteServer, "cloudflare"},
	{"Cloudflare", siteCookie, "__cf"},
	{"AWS WAF", siteHeaderName, "x-amz-cf-id"},
	{"Akamai", siteServer, "akamaighost"},
	{"Imperva", siteHeaderName, "x-iinfo"},
	{"Imperva", siteCookie, "incap_ses"},
	{"F5 BigIP", siteCookie, "BIGipServer"},
	{"Sucuri", siteServer, "sucuri"},
	{"StackPath", siteServer, "stackpath"},
	{"Wordfence", siteHeaderName, "x-wf-"},
	{"Barracuda", siteServer, "barracuda"},
	{"ModSecurity", siteServer, "mod_security"},
	{"Fortinet FortiWeb", siteCookie, "FORTIWAFSID"},
	{"Cloudfront", siteHeaderName, "x-amz-cf-pop"},
	{"Fastly", siteHeaderName, "x-fastly-request-id"},
	{"Varnish", siteHeaderName, "x-varnish"},
}

// Block pages are only inspected for statuses a WAF uses to refuse.
var blockStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusNotAcceptable:      true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

var blockPages = []struct {
	pattern string
	name    string
}{
	{"sorry, you have been blocked", "Cloudflare"},
	{"<title>attention required", "Cloudflare"},
	{"<title>just a moment", "Cloudflare"},
	{"powered by wordfence", "Wordfence"},
	{"modsecurity", "ModSecurity"},
	{"request blocked", "Generic WAF"},
	{"this request has been blocked", "Generic WAF"},
	{"web application firewall", "Generic WAF"},
	{"access denied", "Generic WAF"},
}

// DetectWAF inspects response headers and, for refusal statuses, the body.
// It returns "" when nothing matched.
func DetectWAF(h http.Header, statusCode int, body []byte) string {
	if name := detectFromHeaders(h); name != "" {
		return name
	}
	if blockStatuses[statusCode] {
		return detectFromBody(body)
	}
	return ""
}

func detectFromHeaders(h http.Header) string {
	if len(h) == 0 {
		return ""
	}

	server := strings.ToLower(h.Get("Server"))
	cookies := (&http.Response{Header: h}).Cookies()

	for _, rule := range wafRules {
		switch rule.site {
		case siteServer:
			if server != "" && strings.Contains(server, rule.pattern) {
				return rule.name
			}
		case siteHeaderName:
			for name := range h {
				if strings.Contains(strings.ToLower(name), rule.pattern) {
					return rule.name
				}
			}
		case siteCookie:
			for _, c := range cookies {
				if strings.Contains(c.Name, rule.pattern) {
					return rule.name
				}
			}
		}
	}
	return ""
}

func detectFromBody(body []byte) string {
	lower := bytes.ToLower(body)
	for _, page := range blockPages {
		if bytes.Contains(lower, []byte(page.pattern)) {
			return page.name
		}
	}
	return ""
}
