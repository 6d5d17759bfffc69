package target

import (
	"errors"
	"fmt"
)

var (
	// ErrMarkerNotFound is returned when marker substitution was requested
	// but the marker occurs in none of the URL, headers or body.
	ErrMarkerNotFound = errors.New("target: substitution marker not found")

	// ErrInvalidTemplate covers malformed URLs, header lines and methods.
	ErrInvalidTemplate = errors.New("target: invalid template")
)

type TemplateError struct {
	Marker string
	URL    string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("marker %q not found in url, headers or body of %s. Place the marker where words go or drop -fuzz", e.Marker, e.URL)
}

func (e *TemplateError) Unwrap() error {
	return ErrMarkerNotFound
}
