package config

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// applyFile loads a YAML document whose keys are flag names and sets every
// flag the command line did not set. Sequences are applied element by
// element to repeatable flags and joined with commas otherwise.
//
//	w: words.txt
//	c: 20
//	H:
//	  - "Authorization: Bearer x"
//	include-status: 200-299,301
func applyFile(fs *flag.FlagSet, path string, explicit map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading config file: %v", ErrInvalidConfig, err)
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("%w: parsing config file %s: %v", ErrInvalidConfig, path, err)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "config" {
			return fmt.Errorf("%w: config file %s cannot include another config file", ErrInvalidConfig, path)
		}
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("%w: unknown key %q in config file %s", ErrInvalidConfig, name, path)
		}
		if explicit[name] {
			continue
		}

		for _, v := range flagValues(f, values[name]) {
			if err := fs.Set(name, v); err != nil {
				return fmt.Errorf("%w: key %q in config file %s: %v", ErrInvalidConfig, name, path, err)
			}
		}
	}
	return nil
}

func flagValues(f *flag.Flag, raw interface{}) []string {
	list, ok := raw.([]interface{})
	if !ok {
		return []string{fmt.Sprint(raw)}
	}

	parts := make([]string, 0, len(list))
	for _, item := range list {
		parts = append(parts, fmt.Sprint(item))
	}
	if _, repeatable := f.Value.(*stringSliceFlag); repeatable {
		return parts
	}
	return []string{strings.Join(parts, ",")}
}
