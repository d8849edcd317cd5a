package config

import (
	"encoding/json"
	"fmt"
)

// Options is a free-form settings bag with typed getters that fall back to a
// default when a key is absent or has an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64,
// YAML numbers as int.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. Used for
// single-character settings such as a delimiter; "\t" and "tab" both mean a
// tab.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o[key].(string)
	if !ok || s == "" {
		return def
	}
	switch s {
	case `\t`, "tab":
		return '\t'
	}
	return []rune(s)[0]
}

// UnmarshalJSON decodes a missing or null options object to an empty map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// UnmarshalYAML decodes options and stringifies nested keys, which yaml.v2
// hands back as interface{}.
func (o *Options) UnmarshalYAML(unmarshal func(any) error) error {
	var tmp map[string]any
	if err := unmarshal(&tmp); err != nil {
		return err
	}
	out := make(Options, len(tmp))
	for k, v := range tmp {
		out[k] = stringKeys(v)
	}
	*o = out
	return nil
}

func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = stringKeys(vv)
		}
		return m
	case []any:
		for i := range t {
			t[i] = stringKeys(t[i])
		}
		return t
	}
	return v
}
