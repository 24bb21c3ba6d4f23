package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"
)

const defaultFileName = "default"

// Discover expands pattern and returns the files that apply to env, "default" first and the
// env specific file last so it wins the merge. Files named after other environments are skipped.
func Discover(pattern, env string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid config pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var defaults, specific []string
	for _, match := range matches {
		name := strings.TrimSuffix(filepath.Base(match), filepath.Ext(match))
		switch name {
		case defaultFileName:
			defaults = append(defaults, match)
		case env:
			specific = append(specific, match)
		}
	}
	return append(defaults, specific...), nil
}

// MergeFile deep-merges a JSON file onto c. Keys missing from the file keep their current value.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if data, err = normalizeDurations(data); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// normalizeDurations rewrites string values of time.Duration fields ("15m", "1h30m") into
// nanoseconds so the document decodes onto Config. Integer nanoseconds pass through.
func normalizeDurations(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	doc, err := durationsToNanos(doc, reflect.TypeOf(Config{}), "")
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func durationsToNanos(node interface{}, t reflect.Type, at string) (interface{}, error) {
	if t == durationType {
		text, ok := node.(string)
		if !ok {
			return node, nil
		}
		d, err := time.ParseDuration(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		return int64(d), nil
	}
	obj, ok := node.(map[string]interface{})
	if !ok || t.Kind() != reflect.Struct {
		return node, nil
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		// encoding/json matches keys case-insensitively, so do the same here.
		for key, value := range obj {
			if !strings.EqualFold(key, name) {
				continue
			}
			converted, err := durationsToNanos(value, field.Type, strings.TrimPrefix(at+"."+key, "."))
			if err != nil {
				return nil, err
			}
			obj[key] = converted
		}
	}
	return obj, nil
}
