// Package jsontree inspects arbitrary JSON payloads: structure, type counts, empty
// properties, arrays and property extraction. It is used for debugging upstream responses.
package jsontree

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"bookshelf/internal/types"
)

const (
	TypeObject  = "Object"
	TypeArray   = "Array"
	TypeString  = "String"
	TypeNumber  = "Number"
	TypeBoolean = "Boolean"
	TypeNull    = "Null"
)

type ArrayInfo struct {
	Path        string `json:"path" yaml:"path"`
	Size        int    `json:"size" yaml:"size"`
	ElementType string `json:"element_type,omitempty" yaml:"element_type,omitempty"`
}

type Analysis struct {
	Type             string            `json:"type" yaml:"type"`
	Size             int               `json:"size" yaml:"size"`
	Properties       int               `json:"properties,omitempty" yaml:"properties,omitempty"`
	Structure        map[string]string `json:"structure,omitempty" yaml:"structure,omitempty"`
	Elements         int               `json:"elements,omitempty" yaml:"elements,omitempty"`
	ElementType      string            `json:"element_type,omitempty" yaml:"element_type,omitempty"`
	TypeCounts       map[string]int    `json:"type_counts" yaml:"type_counts"`
	EmptyProperties  []string          `json:"empty_properties" yaml:"empty_properties"`
	Arrays           []ArrayInfo       `json:"arrays" yaml:"arrays"`
	AverageArraySize float64           `json:"average_array_size" yaml:"average_array_size"`
}

type Validation struct {
	Valid      bool   `json:"valid" yaml:"valid"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	Size       int    `json:"size" yaml:"size"`
	Properties int    `json:"properties,omitempty" yaml:"properties,omitempty"`
	Elements   int    `json:"elements,omitempty" yaml:"elements,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Parse decodes raw into a generic tree of map[string]any, []any, string, json.Number, bool and nil.
func Parse(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrMalformedPayload, err.Error())
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after root value", types.ErrMalformedPayload)
	}

	return root, nil
}

func Analyze(raw string) (*Analysis, error) {
	root, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Type:            TypeOf(root),
		Size:            len(raw),
		TypeCounts:      CountTypes(root),
		EmptyProperties: EmptyProperties(root),
		Arrays:          Arrays(root),
	}

	switch t := root.(type) {
	case map[string]any:
		a.Properties = len(t)
		a.Structure = make(map[string]string, len(t))
		for k, v := range t {
			a.Structure[k] = TypeOf(v)
		}
	case []any:
		a.Elements = len(t)
		if len(t) > 0 {
			a.ElementType = TypeOf(t[0])
		}
	}

	if len(a.Arrays) > 0 {
		total := 0
		for _, arr := range a.Arrays {
			total += arr.Size
		}
		a.AverageArraySize = float64(total) / float64(len(a.Arrays))
	}

	return a, nil
}

// Validate never fails: a parse error is reported inside the result.
func Validate(raw string) *Validation {
	v := &Validation{Size: len(raw)}

	root, err := Parse(raw)
	if err != nil {
		v.Error = err.Error()
		return v
	}

	v.Valid = true
	v.Type = TypeOf(root)

	switch t := root.(type) {
	case map[string]any:
		v.Properties = len(t)
	case []any:
		v.Elements = len(t)
	}

	return v
}

// Extract collects the text of every non-null value stored under property, at any depth.
func Extract(raw, property string) ([]string, error) {
	root, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	ret := make([]string, 0)
	if property == "" {
		return ret, nil
	}

	walk(root, "", func(path, key string, v any) bool {
		if key == property && v != nil {
			ret = append(ret, Text(v))
		}
		return true
	})

	return ret, nil
}

func TypeOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return TypeObject
	case []any:
		return TypeArray
	case string:
		return TypeString
	case json.Number, float64, int, int64:
		return TypeNumber
	case bool:
		return TypeBoolean
	case nil:
		return TypeNull
	}

	return "Unknown"
}

// Text renders scalars as plain text and containers as compact JSON.
func Text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	}

	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}

	return string(b)
}

// CountTypes counts every node of the tree, the root included.
func CountTypes(root any) map[string]int {
	counts := make(map[string]int)
	count := func(v any) {
		counts[TypeOf(v)]++
	}

	count(root)
	walk(root, "", func(_, _ string, v any) bool {
		count(v)
		return true
	})

	return counts
}

// EmptyProperties lists dotted paths of properties that are null, "", [] or {}.
// Empty values are not descended into.
func EmptyProperties(root any) []string {
	ret := make([]string, 0)

	walk(root, "", func(path, key string, v any) bool {
		if key == "" {
			return true
		}

		if isEmpty(v) {
			ret = append(ret, path)
			return false
		}

		return true
	})

	return ret
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}

	return false
}

// Arrays describes every array in the tree. The root array has path "root".
func Arrays(root any) []ArrayInfo {
	ret := make([]ArrayInfo, 0)
	add := func(path string, v any) {
		arr, ok := v.([]any)
		if !ok {
			return
		}

		if path == "" {
			path = "root"
		}

		info := ArrayInfo{Path: path, Size: len(arr)}
		if len(arr) > 0 {
			info.ElementType = TypeOf(arr[0])
		}

		ret = append(ret, info)
	}

	add("", root)
	walk(root, "", func(path, _ string, v any) bool {
		add(path, v)
		return true
	})

	return ret
}

// walk visits children of node depth-first, object keys in sorted order. key is empty for
// array elements. Returning false from fn skips the children of that value.
func walk(node any, path string, fn func(path, key string, v any) bool) {
	switch t := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}

			if fn(childPath, k, t[k]) {
				walk(t[k], childPath, fn)
			}
		}
	case []any:
		for i, item := range t {
			childPath := path + "[" + strconv.Itoa(i) + "]"
			if fn(childPath, "", item) {
				walk(item, childPath, fn)
			}
		}
	}
}
