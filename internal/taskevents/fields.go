// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package taskevents

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
)

// fieldSource extracts one layer of event fields from a decoded payload.
type fieldSource struct {
	name    string
	extract func(payload map[string]any) map[string]any
}

// fieldSources is ordered from lowest to highest precedence. Later layers
// overwrite keys set by earlier ones.
var fieldSources = []fieldSource{
	{name: "top-level", extract: topLevelFields},
	{name: "data", extract: nestedFields("data")},
	{name: "original_data", extract: nestedFields("original_data")},
}

// wrapperKeys are dropped from the top-level layer when they hold objects,
// since their contents are merged as layers of their own.
var wrapperKeys = []string{"data", "original_data"}

func topLevelFields(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, k := range wrapperKeys {
		if _, ok := out[k].(map[string]any); ok {
			delete(out, k)
		}
	}
	return out
}

func nestedFields(key string) func(map[string]any) map[string]any {
	return func(payload map[string]any) map[string]any {
		nested, _ := payload[key].(map[string]any)
		return nested
	}
}

// MergeFields flattens a live payload into one field map following
// fieldSources precedence: original_data over data over top-level.
func MergeFields(payload map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, src := range fieldSources {
		for k, v := range src.extract(payload) {
			merged[k] = v
		}
	}
	return merged
}

// decodePayload turns transport data into a JSON object. Anything that is
// not an object is wrapped as {"message": <raw>} and reported as degraded.
func decodePayload(data any) (payload map[string]any, degraded bool) {
	var raw []byte
	switch v := data.(type) {
	case nil:
		return map[string]any{}, true
	case map[string]any:
		return v, false
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return map[string]any{"message": fmt.Sprint(v)}, true
		}
		raw = b
	}

	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return map[string]any{"message": string(raw)}, true
	}
	return payload, false
}

// toolCall is the subset of a tool-call entry used for descriptions. Both
// flat ({name, arguments}) and function-wrapped entries are accepted.
type toolCall struct {
	Name      string `mapstructure:"name"`
	Arguments any    `mapstructure:"arguments"`
	Function  struct {
		Name      string `mapstructure:"name"`
		Arguments any    `mapstructure:"arguments"`
	} `mapstructure:"function"`
}

func (tc toolCall) toolName() string {
	if tc.Name != "" {
		return tc.Name
	}
	return tc.Function.Name
}

func (tc toolCall) arguments() any {
	if tc.Arguments != nil {
		return tc.Arguments
	}
	return tc.Function.Arguments
}

// weakDecode decodes loosely typed JSON values (numbers as strings and so on)
// into out.
func weakDecode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// truthy reports whether a field counts as present. Null, false, zero, empty
// strings and empty lists do not.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return true
	default:
		return true
	}
}

// stringify renders a field value for a description.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

// firstString returns the first non-empty string value found for key across
// the given maps.
func firstString(key string, maps ...map[string]any) string {
	for _, m := range maps {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
