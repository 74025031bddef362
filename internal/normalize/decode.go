package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"bookshelf/internal/jsontree"
	"bookshelf/internal/types"
)

// decodeObject parses raw into a generic tree and requires an object root.
// Numbers are kept as json.Number so that large ids do not lose precision.
func decodeObject(raw string) (map[string]any, error) {
	root, err := jsontree.Parse(raw)
	if err != nil {
		return nil, err
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root is %s, expected %s", types.ErrMalformedPayload,
			jsontree.TypeOf(root), jsontree.TypeObject)
	}

	return obj, nil
}

// lookup returns the value of the first alias present with a non-null value.
func lookup(obj map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		if v, ok := obj[key]; ok && v != nil {
			return v, true
		}
	}

	return nil, false
}

func stringField(obj map[string]any, aliases []string) *string {
	v, ok := lookup(obj, aliases)
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case string:
		return &t
	case json.Number:
		s := t.String()
		return &s
	}

	return nil
}

func int64Field(obj map[string]any, aliases []string) *int64 {
	v, ok := lookup(obj, aliases)
	if !ok {
		return nil
	}

	return toInt64(v)
}

func intField(obj map[string]any, aliases []string) *int {
	v := int64Field(obj, aliases)
	if v == nil || *v > math.MaxInt || *v < math.MinInt {
		return nil
	}

	i := int(*v)
	return &i
}

func toInt64(v any) *int64 {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &i
	}

	// "1564.0" and the like
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return nil
	}

	i := int64(f)
	return &i
}

func boolField(obj map[string]any, aliases []string) *bool {
	v, ok := lookup(obj, aliases)
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case bool:
		return &t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return &b
		}
	}

	return nil
}

// asList accepts a single scalar or object where a list is expected.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func stringsField(obj map[string]any, aliases []string) []string {
	v, _ := lookup(obj, aliases)
	items := asList(v)

	ret := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			ret = append(ret, t)
		case json.Number:
			ret = append(ret, t.String())
		}
	}

	return ret
}

func objectsField(obj map[string]any, aliases []string) []map[string]any {
	v, _ := lookup(obj, aliases)
	items := asList(v)

	ret := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if o, ok := item.(map[string]any); ok {
			ret = append(ret, o)
		}
	}

	return ret
}

func mapField(obj map[string]any, aliases []string) map[string]string {
	ret := make(map[string]string)

	v, _ := lookup(obj, aliases)
	m, ok := v.(map[string]any)
	if !ok {
		return ret
	}

	for k, item := range m {
		if s, ok := item.(string); ok {
			ret[k] = s
		}
	}

	return ret
}
