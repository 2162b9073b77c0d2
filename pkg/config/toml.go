package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads and decodes the TOML config file at path into the loosely
// typed document Build's resolvers walk with lookup. A missing path is not
// an error: it means "no config file given", and callers get an empty
// document so every value falls back to its CLI flag or default.
func LoadFile(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fatalf("read config file %s: %w", path, err)
	}
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fatalf("parse config file %s: %w", path, err)
	}
	return doc, nil
}

// lookup walks a dotted key path ("a.b.c") through a decoded TOML document
// (as produced by toml.Unmarshal into map[string]any), returning the nested
// value iff every path component exists. This is a direct port of the
// original's `lookup(config, key)`.
func lookup(doc map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = doc
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// fatalf formats and returns a resolution error; callers treat it as a fatal
// configuration error and exit rather than continue with a half-built
// Config.
func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// stringOpt returns the string at key, or ok=false if absent. It is fatal
// (non-nil error) if the key is present with the wrong type.
func stringOpt(doc map[string]any, key string) (string, bool, error) {
	v, ok := lookup(doc, key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fatalf("%s string is expected", key)
	}
	return s, true, nil
}

// boolOpt returns the bool at key, or ok=false if absent.
func boolOpt(doc map[string]any, key string) (bool, bool, error) {
	v, ok := lookup(doc, key)
	if !ok {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, fatalf("%s boolean is expected", key)
	}
	return b, true, nil
}

// intOpt returns the integer at key, accepting a bare integer or a readable
// size-suffixed string (matching get_toml_int_opt's fallback to
// parse_readable_int for string values).
func intOpt(doc map[string]any, key string) (int64, bool, error) {
	v, ok := lookup(doc, key)
	if !ok {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int64:
		return t, true, nil
	case int:
		return int64(t), true, nil
	case string:
		n, err := ParseSize(t)
		if err != nil {
			return 0, false, fatalf("%s parse failed: %w", key, err)
		}
		return n, true, nil
	default:
		return 0, false, fatalf("%s int or readable int is expected", key)
	}
}

// floatOpt returns the float at key, accepting a float or a numeric string.
func floatOpt(doc map[string]any, key string) (float64, bool, error) {
	v, ok := lookup(doc, key)
	if !ok {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		return t, true, nil
	case int64:
		return float64(t), true, nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(t, "%g", &f); err != nil {
			return 0, false, fatalf("%s parse failed: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, false, fatalf("%s float is expected", key)
	}
}
