package hostyaml

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the options file the Archipelago server keeps in its checkout.
const FileName = "host.yaml"

// Entry is one flattened scalar setting.
type Entry struct {
	Key   string
	Value string
}

// Editor reads and edits a host.yaml in place. Edits go through the yaml
// node tree, so comments, ordering and value styles in the file survive.
type Editor struct {
	path string
}

func NewEditor(path string) *Editor {
	return &Editor{path: path}
}

// List returns every scalar setting whose dotted key starts with prefix, in
// file order. An empty prefix returns everything.
func (e *Editor) List(prefix string) ([]Entry, error) {
	doc, err := e.load()
	if err != nil {
		return nil, err
	}
	root, err := rootMapping(doc)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	flatten(root, "", &entries)
	if prefix == "" {
		return entries, nil
	}
	filtered := entries[:0]
	for _, entry := range entries {
		if strings.HasPrefix(entry.Key, prefix) {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

// Get renders the value at the dotted key as yaml.
func (e *Editor) Get(key string) (string, error) {
	parts, err := splitKey(key)
	if err != nil {
		return "", err
	}
	doc, err := e.load()
	if err != nil {
		return "", err
	}
	node, err := rootMapping(doc)
	if err != nil {
		return "", err
	}

	for _, part := range parts {
		if node.Kind != yaml.MappingNode {
			return "", notFound(key)
		}
		if _, node = findChild(node, part); node == nil {
			return "", notFound(key)
		}
	}
	return render(node)
}

// Set parses value as a yaml scalar and stores it at the dotted key,
// creating intermediate mappings as needed. An existing node keeps its
// comments; only the value changes.
func (e *Editor) Set(key, value string) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}
	scalar, err := parseScalar(value)
	if err != nil {
		return err
	}
	doc, err := e.load()
	if err != nil {
		return err
	}
	node, err := rootMapping(doc)
	if err != nil {
		return err
	}

	for i, part := range parts[:len(parts)-1] {
		_, child := findChild(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content, keyNode(part), child)
		}
		if child.Kind != yaml.MappingNode {
			return fmt.Errorf("%s is not a mapping", strings.Join(parts[:i+1], "."))
		}
		node = child
	}

	leaf := parts[len(parts)-1]
	if _, existing := findChild(node, leaf); existing != nil {
		existing.Kind = scalar.Kind
		existing.Tag = scalar.Tag
		existing.Value = scalar.Value
		existing.Style = scalar.Style
		existing.Content = nil
	} else {
		node.Content = append(node.Content, keyNode(leaf), scalar)
	}
	return e.save(doc)
}

// Unset removes the dotted key. Parents are left alone even when the last
// child goes.
func (e *Editor) Unset(key string) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}
	doc, err := e.load()
	if err != nil {
		return err
	}
	node, err := rootMapping(doc)
	if err != nil {
		return err
	}

	for _, part := range parts[:len(parts)-1] {
		_, child := findChild(node, part)
		if child == nil || child.Kind != yaml.MappingNode {
			return notFound(key)
		}
		node = child
	}

	leaf := parts[len(parts)-1]
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == leaf {
			node.Content = append(node.Content[:i], node.Content[i+2:]...)
			return e.save(doc)
		}
	}
	return notFound(key)
}

func (e *Editor) load() (*yaml.Node, error) {
	data, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s does not exist, run the Archipelago server once to create it", e.path)
	}
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", e.path, err)
	}
	if len(doc.Content) == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	return &doc, nil
}

func (e *Editor) save(doc *yaml.Node) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("cannot encode %s: %w", e.path, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, e.path)
}

func rootMapping(doc *yaml.Node) (*yaml.Node, error) {
	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("host.yaml root is not a mapping")
	}
	return doc.Content[0], nil
}

func notFound(key string) error {
	return fmt.Errorf("key not found: %s", key)
}

func splitKey(key string) ([]string, error) {
	parts := strings.Split(key, ".")
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid key %q, expected a dotted path like general_options.output_path", key)
		}
	}
	return parts, nil
}

func findChild(mapping *yaml.Node, key string) (keyNode, valueNode *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i], mapping.Content[i+1]
		}
	}
	return nil, nil
}

func keyNode(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
}

// parseScalar interprets raw the way yaml would, so 5, true and null keep
// their types and anything quoted stays a string.
func parseScalar(raw string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("cannot parse value %q: %w", raw, err)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	node := doc.Content[0]
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("value must be a yaml scalar, got %q", raw)
	}
	return node, nil
}

func flatten(mapping *yaml.Node, prefix string, out *[]Entry) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		name := key.Value
		if prefix != "" {
			name = prefix + "." + name
		}
		switch value.Kind {
		case yaml.MappingNode:
			flatten(value, name, out)
		case yaml.ScalarNode:
			rendered, err := render(value)
			if err != nil {
				continue
			}
			*out = append(*out, Entry{Key: name, Value: strings.TrimSuffix(rendered, "\n")})
		}
	}
}

// render marshals a node without the comments that hang off it in the file.
func render(node *yaml.Node) (string, error) {
	clean := *node
	clean.HeadComment, clean.LineComment, clean.FootComment = "", "", ""
	data, err := yaml.Marshal(&clean)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
