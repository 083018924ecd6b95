package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// QueryFile loads a YAML file and renders the value at query.
// A query that matches nothing renders as the empty string.
func QueryFile(fs system.FileSystem, filePath, query string) (string, error) {
	if fs == nil {
		fs = system.DefaultFS()
	}

	data, err := fs.ReadFile(filePath)
	if err != nil {
		return "", herrors.ConfigError(fmt.Sprintf("failed to read %s", filePath), err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", herrors.ConfigError(fmt.Sprintf("failed to parse %s", filePath), err)
	}

	node, err := Query(&doc, query)
	if err != nil {
		return "", herrors.Validation("invalid query %q: %v", query, err)
	}

	return FormatQuery(node)
}

// Query navigates a YAML document with a dotted path such as
// "repos[0].url". An empty path or "." selects the document itself.
// It returns nil when a key or index does not exist.
func Query(doc *yaml.Node, query string) (*yaml.Node, error) {
	current := unwrap(doc)
	if query == "" || query == "." {
		return current, nil
	}

	for _, part := range strings.Split(query, ".") {
		if part == "" {
			continue
		}

		key, indexes, err := splitIndexes(part)
		if err != nil {
			return nil, err
		}

		if key != "" {
			current = mappingValue(current, key)
			if current == nil {
				return nil, nil
			}
		}

		for _, idx := range indexes {
			current = unwrap(current)
			if current == nil || current.Kind != yaml.SequenceNode || idx >= len(current.Content) {
				return nil, nil
			}
			current = unwrap(current.Content[idx])
		}
	}

	return current, nil
}

// splitIndexes parses "key[1][2]" into its key and indexes.
func splitIndexes(part string) (string, []int, error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		return part, nil, nil
	}

	key := part[:open]
	rest := part[open:]
	var indexes []int
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("unexpected %q in %q", rest, part)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated index in %q", part)
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil || idx < 0 {
			return "", nil, fmt.Errorf("invalid index %q in %q", rest[1:end], part)
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return key, indexes, nil
}

func unwrap(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	n = unwrap(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return unwrap(n.Content[i+1])
		}
	}
	return nil
}

// FormatQuery renders a query result for the command line:
//   - nothing: empty string
//   - a list: "- item" per scalar, or a "---" block of "key: value" lines
//     per mapping
//   - a mapping: indented JSON
//   - a scalar: its value
func FormatQuery(n *yaml.Node) (string, error) {
	n = unwrap(n)
	if n == nil || n.Tag == "!!null" {
		return "", nil
	}

	switch n.Kind {
	case yaml.SequenceNode:
		var lines []string
		for _, item := range n.Content {
			item = unwrap(item)
			if item.Kind == yaml.MappingNode {
				lines = append(lines, "---")
				for i := 0; i+1 < len(item.Content); i += 2 {
					value, err := inline(item.Content[i+1])
					if err != nil {
						return "", err
					}
					lines = append(lines, item.Content[i].Value+": "+value)
				}
				continue
			}
			value, err := inline(item)
			if err != nil {
				return "", err
			}
			lines = append(lines, "- "+value)
		}
		return strings.Join(lines, "\n"), nil

	case yaml.MappingNode:
		var value any
		if err := n.Decode(&value); err != nil {
			return "", err
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(value); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil

	default:
		return n.Value, nil
	}
}

// inline renders a node on one line: scalars as-is, anything else as JSON.
func inline(n *yaml.Node) (string, error) {
	n = unwrap(n)
	if n.Kind == yaml.ScalarNode {
		return n.Value, nil
	}
	var value any
	if err := n.Decode(&value); err != nil {
		return "", err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
