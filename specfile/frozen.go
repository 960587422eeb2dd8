package specfile

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// FrozenMap pins (slot, remote, refspec) triples to 40-hex commit ids. It
// is the nested mapping written by the freeze engine and optionally read
// back at load time to rewrite descriptors onto fixed commits.
type FrozenMap map[string]map[string]map[string]string

// Lookup returns the pinned commit id for (slot, remote, refspec), and
// whether one was found. An empty/blank pinned value is treated as if it
// were absent, per the "empty frozen values" design note: some frozen
// documents contain a null or empty string for a ref that was never
// actually resolved, and substituting that in would produce an invalid
// refspec.
func (f FrozenMap) Lookup(slot, remote, refspec string) (string, bool) {
	if f == nil {
		return "", false
	}
	remotes, ok := f[slot]
	if !ok {
		return "", false
	}
	refs, ok := remotes[remote]
	if !ok {
		return "", false
	}
	sha, ok := refs[refspec]
	if !ok {
		return "", false
	}
	if sha == "" {
		slog.Default().Warn("frozen reference has an empty pinned value, treating as absent",
			"slot", slot, "remote", remote, "refspec", refspec)
		return "", false
	}
	return sha, true
}

// LoadFrozen reads a frozen-reference document. A missing file is
// non-fatal and yields an empty map; a malformed file logs a warning (via
// the returned error, which callers should log and continue past) and
// also yields an empty map so a broken frozen.yaml never blocks a run.
func LoadFrozen(path string) (FrozenMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FrozenMap{}, nil
		}
		return FrozenMap{}, fmt.Errorf("unable to read frozen file err:%w", err)
	}

	var fm FrozenMap
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return FrozenMap{}, fmt.Errorf("malformed frozen file, proceeding as if empty err:%w", err)
	}
	if fm == nil {
		fm = FrozenMap{}
	}
	return fm, nil
}

// WriteFrozen writes fm to path with stable key ordering (slot, then
// remote, then refspec, all lexicographic) and block-style formatting, so
// that repeated freezes of an unchanged tree produce byte-identical
// output.
func WriteFrozen(path string, fm FrozenMap) error {
	node := mappingNode(fm)

	out, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("unable to encode frozen document err:%w", err)
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("unable to write frozen file err:%w", err)
	}
	return nil
}

func mappingNode(fm FrozenMap) *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, slot := range sortedKeys(fm) {
		root.Content = append(root.Content, scalar(slot), remoteMappingNode(fm[slot]))
	}
	return root
}

func remoteMappingNode(remotes map[string]map[string]string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, remote := range sortedKeys(remotes) {
		node.Content = append(node.Content, scalar(remote), refMappingNode(remotes[remote]))
	}
	return node
}

func refMappingNode(refs map[string]string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, ref := range sortedKeys(refs) {
		node.Content = append(node.Content, scalar(ref), scalar(refs[ref]))
	}
	return node
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
