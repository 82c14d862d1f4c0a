package idiom

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a dictionary from a YAML mapping. Document order is kept.
// A value is either the translation itself or a mapping with "id" and
// "translation" keys:
//
//	break the ice: romper el hielo
//	piece of cake:
//	  id: 7
//	  translation: pan comido
//
// Entries without an explicit id are numbered by position, starting at 1.
func LoadYAML(r io.Reader) (*Dictionary, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return NewDictionary(), nil
		}
		return nil, fmt.Errorf("idiom: decode yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return NewDictionary(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("idiom: yaml root must be a mapping, line %d", root.Line)
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		e := Entry{Phrase: key.Value, ID: int64(i/2 + 1)}
		switch val.Kind {
		case yaml.ScalarNode:
			e.Translation = val.Value
		case yaml.MappingNode:
			var fields struct {
				ID          *int64 `yaml:"id"`
				Translation string `yaml:"translation"`
			}
			if err := val.Decode(&fields); err != nil {
				return nil, fmt.Errorf("idiom: entry %q: %w", key.Value, err)
			}
			if fields.ID != nil {
				e.ID = *fields.ID
			}
			e.Translation = fields.Translation
		default:
			return nil, fmt.Errorf("idiom: entry %q: unsupported value at line %d", key.Value, val.Line)
		}
		entries = append(entries, e)
	}
	return NewDictionary(entries...), nil
}

// LoadYAMLFile opens path and parses it with LoadYAML.
func LoadYAMLFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("idiom: open dictionary %q: %w", path, err)
	}
	defer f.Close()

	d, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("idiom: parse dictionary %q: %w", path, err)
	}
	return d, nil
}
