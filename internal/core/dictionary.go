package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TranslationField is the field read from object leaves.
const TranslationField = "traducao"

// ParseDictionary decodes a JSON dictionary document.
func ParseDictionary(data []byte) (Dictionary, error) {
	var dict Dictionary
	if err := json.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	if dict == nil {
		return nil, fmt.Errorf("parse dictionary: document is not an object")
	}
	return dict, nil
}

// Lookup resolves a dot separated key path to a non-empty string.
// A literal key equal to the whole path wins over descending the tree.
func (d Dictionary) Lookup(path string) (string, bool) {
	if d == nil || path == "" {
		return "", false
	}
	if value, ok := d[path]; ok {
		if s, ok := leafString(value); ok {
			return s, true
		}
	}

	var node any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(node)
		if !ok {
			return "", false
		}
		node, ok = m[part]
		if !ok {
			return "", false
		}
	}
	return leafString(node)
}

// Set stores value at path, creating intermediate nodes. An existing leaf on
// the way is replaced by a node.
func (d Dictionary) Set(path string, value string) {
	parts := strings.Split(path, ".")
	node := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(node[part])
		if !ok {
			next = map[string]any{}
			node[part] = next
		}
		node = next
	}
	last := parts[len(parts)-1]
	if obj, ok := node[last].(map[string]any); ok {
		if _, isLeaf := obj[TranslationField]; isLeaf {
			obj[TranslationField] = value
			return
		}
	}
	node[last] = value
}

// Has reports whether path resolves to a non-empty string.
func (d Dictionary) Has(path string) bool {
	_, ok := d.Lookup(path)
	return ok
}

// Flatten returns every leaf keyed by its full dot path. Empty leaves are kept.
func (d Dictionary) Flatten() map[string]string {
	out := map[string]string{}
	flatten("", map[string]any(d), out)
	return out
}

// Keys returns the sorted leaf paths.
func (d Dictionary) Keys() []string {
	flat := d.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Marshal encodes the dictionary as indented JSON.
func (d Dictionary) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode dictionary: %w", err)
	}
	return append(data, '\n'), nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := value.(type) {
		case string:
			out[path] = v
		case map[string]any:
			if s, ok := v[TranslationField].(string); ok {
				out[path] = s
				continue
			}
			flatten(path, v, out)
		case Dictionary:
			flatten(path, v, out)
		}
	}
}

func asMap(node any) (map[string]any, bool) {
	switch m := node.(type) {
	case map[string]any:
		return m, true
	case Dictionary:
		return m, true
	}
	return nil, false
}

func leafString(node any) (string, bool) {
	switch v := node.(type) {
	case string:
		return v, v != ""
	case map[string]any:
		s, ok := v[TranslationField].(string)
		return s, ok && s != ""
	case Dictionary:
		s, ok := v[TranslationField].(string)
		return s, ok && s != ""
	}
	return "", false
}
