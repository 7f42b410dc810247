package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigError reports a missing or malformed parameter. It is fatal at startup.
type ConfigError struct {
	Namespace string
	Key       string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: [%s] %s: %s", e.Namespace, e.Key, e.Reason)
}

// Params is the read-only, namespaced parameter store. Namespaces and keys
// are matched case-insensitively.
type Params struct {
	values map[string]map[string]any
}

// LoadParams decodes a TOML parameter file whose tables are namespaces.
func LoadParams(path string) (*Params, error) {
	var raw map[string]map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decode parameter file %s: %w", path, err)
	}
	return NewParams(raw), nil
}

// NewParams builds a parameter store from already decoded namespaces.
func NewParams(raw map[string]map[string]any) *Params {
	p := &Params{values: make(map[string]map[string]any, len(raw))}
	for ns, kv := range raw {
		dst := make(map[string]any, len(kv))
		for k, v := range kv {
			dst[strings.ToLower(k)] = v
		}
		p.values[strings.ToLower(ns)] = dst
	}
	return p
}

func (p *Params) lookup(ns, key string) (any, bool) {
	kv, ok := p.values[strings.ToLower(ns)]
	if !ok {
		return nil, false
	}
	v, ok := kv[strings.ToLower(key)]
	return v, ok
}

// Has reports whether ns.key is set.
func (p *Params) Has(ns, key string) bool {
	_, ok := p.lookup(ns, key)
	return ok
}

// String returns the required string parameter ns.key.
func (p *Params) String(ns, key string) (string, error) {
	v, ok := p.lookup(ns, key)
	if !ok {
		return "", &ConfigError{Namespace: ns, Key: key, Reason: "missing required key"}
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", &ConfigError{Namespace: ns, Key: key, Reason: "must be a non-empty string"}
	}
	return s, nil
}

// StringOr returns ns.key, or def when it is unset.
func (p *Params) StringOr(ns, key, def string) (string, error) {
	if !p.Has(ns, key) {
		return def, nil
	}
	return p.String(ns, key)
}

// Int returns the required integer parameter ns.key. Numeric strings are accepted.
func (p *Params) Int(ns, key string) (int, error) {
	v, ok := p.lookup(ns, key)
	if !ok {
		return 0, &ConfigError{Namespace: ns, Key: key, Reason: "missing required key"}
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, nil
		}
	}
	return 0, &ConfigError{Namespace: ns, Key: key, Reason: fmt.Sprintf("must be an integer, got %v", v)}
}

// IntOr returns ns.key, or def when it is unset.
func (p *Params) IntOr(ns, key string, def int) (int, error) {
	if !p.Has(ns, key) {
		return def, nil
	}
	return p.Int(ns, key)
}

// BoolOr returns ns.key, or def when it is unset.
func (p *Params) BoolOr(ns, key string, def bool) (bool, error) {
	v, ok := p.lookup(ns, key)
	if !ok {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed, nil
		}
	}
	return false, &ConfigError{Namespace: ns, Key: key, Reason: fmt.Sprintf("must be a boolean, got %v", v)}
}

// DurationOr returns ns.key parsed as a Go duration, or def when it is unset.
func (p *Params) DurationOr(ns, key string, def time.Duration) (time.Duration, error) {
	if !p.Has(ns, key) {
		return def, nil
	}
	s, err := p.String(ns, key)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, &ConfigError{Namespace: ns, Key: key, Reason: "must be a positive duration"}
	}
	return d, nil
}
