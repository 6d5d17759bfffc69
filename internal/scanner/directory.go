package scanner

import (
	"net/url"
	"strings"

	"github.com/burrow/scanner/internal/filter"
	"github.com/burrow/scanner/internal/target"
)

// directoryBase decides whether an interesting response denotes a
// directory and returns the URL its children are resolved against.
//
//   - 2xx: always.
//   - 3xx: when the request path already ends in "/" or the Location
//     points at the same path with a trailing "/".
//   - 401, 403: when the request path ends in "/".
func directoryBase(rawURL string, statusCode int, location string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	slashed := strings.HasSuffix(u.Path, "/")

	var isDir bool
	switch {
	case statusCode >= 200 && statusCode < 300:
		isDir = true
	case statusCode >= 300 && statusCode < 400:
		isDir = slashed || redirectsToSlash(u, location)
	case statusCode == 401 || statusCode == 403:
		isDir = slashed
	}

	if !isDir {
		return "", false
	}
	return target.DirectoryBase(u), true
}

func redirectsToSlash(u *url.URL, location string) bool {
	if location == "" || location == filter.UnknownRedirect {
		return false
	}
	loc, err := u.Parse(location)
	if err != nil {
		return false
	}
	return strings.EqualFold(loc.Host, u.Host) && loc.Path == u.Path+"/"
}
