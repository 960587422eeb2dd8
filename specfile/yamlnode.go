package specfile

import "gopkg.in/yaml.v3"

// data2map decodes a document's top-level mapping node into m, keyed by
// the mapping's scalar keys. doc is expected to be a DocumentNode wrapping
// a single MappingNode (the shape yaml.Unmarshal produces when decoding
// into *yaml.Node).
func data2map(doc *yaml.Node, m *map[string]yaml.Node) error {
	root := doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		root = doc.Content[0]
	}

	result := make(map[string]yaml.Node)
	for i := 0; i+1 < len(root.Content); i += 2 {
		result[root.Content[i].Value] = *root.Content[i+1]
	}
	*m = result
	return nil
}

// orderedKeys returns the top-level mapping keys of doc in document
// order, so slot processing and progress reporting follow the order the
// operator wrote the spec file in.
func orderedKeys(doc *yaml.Node) []string {
	root := doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		root = doc.Content[0]
	}

	var keys []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	return keys
}

// findUnexpectedKey returns the first mapping key in node not present in
// allowed, or "" if every key is recognized.
func findUnexpectedKey(node *yaml.Node, allowed []string) string {
	if node.Kind != yaml.MappingNode {
		return ""
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		found := false
		for _, a := range allowed {
			if a == key {
				found = true
				break
			}
		}
		if !found {
			return key
		}
	}
	return ""
}
