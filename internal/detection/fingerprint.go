package detection

import (
	"net/http"
	"sort"
	"sync"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
)

var (
	fingerprintOnce   sync.Once
	fingerprintClient *wappalyzer.Wappalyze
)

// client loads the fingerprint database once. A nil client disables
// technology detection.
func client() *wappalyzer.Wappalyze {
	fingerprintOnce.Do(func() {
		c, err := wappalyzer.New()
		if err != nil {
			return
		}
		fingerprintClient = c
	})
	return fingerprintClient
}

// DetectTechnologies returns the sorted technology names found in the
// response headers and body, or nil when none match.
func DetectTechnologies(h http.Header, body []byte) []string {
	if len(h) == 0 && len(body) == 0 {
		return nil
	}
	c := client()
	if c == nil {
		return nil
	}

	found := c.Fingerprint(h, body)
	if len(found) == 0 {
		return nil
	}
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
