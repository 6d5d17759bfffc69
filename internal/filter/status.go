package filter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidFilter = errors.New("filter: invalid filter specification")

// StatusSet is a set of HTTP status codes. A nil set means "not given".
type StatusSet map[int]struct{}

func NewStatusSet(codes ...int) StatusSet {
	set := make(StatusSet, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

func (s StatusSet) Contains(code int) bool {
	_, ok := s[code]
	return ok
}

func (s StatusSet) Codes() []int {
	codes := make([]int, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

func (s StatusSet) String() string {
	parts := make([]string, 0, len(s))
	for _, c := range s.Codes() {
		parts = append(parts, strconv.Itoa(c))
	}
	return strings.Join(parts, ",")
}

// ParseStatusSet parses lists such as "200,301,500-599". An empty string
// yields a nil set.
func ParseStatusSet(spec string) (StatusSet, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	set := make(StatusSet)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parseStatusCode(lo)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			if last, err = parseStatusCode(hi); err != nil {
				return nil, err
			}
			if last < first {
				return nil, fmt.Errorf("%w: status range %q is reversed", ErrInvalidFilter, part)
			}
		}
		for c := first; c <= last; c++ {
			set[c] = struct{}{}
		}
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("%w: status list %q is empty", ErrInvalidFilter, spec)
	}
	return set, nil
}

func parseStatusCode(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a status code", ErrInvalidFilter, s)
	}
	if code < 100 || code > 599 {
		return 0, fmt.Errorf("%w: status code %d out of range 100-599", ErrInvalidFilter, code)
	}
	return code, nil
}

// ParseCounts parses a comma separated list of non-negative integers used by
// the size rules.
func ParseCounts(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var counts []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q is not a non-negative count", ErrInvalidFilter, part)
		}
		counts = append(counts, n)
	}
	return counts, nil
}
