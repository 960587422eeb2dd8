package specfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/franzpoize/bl/giturl"
)

// rawSlot is the on-disk shape of one slot entry. Unknown keys under a
// slot are rejected at load time the same way the source tool's config
// loader rejects unknown top-level keys: by comparing against this
// struct's yaml tags via reflection.
type rawSlot struct {
	Modules           []string          `yaml:"modules"`
	Remotes           map[string]string `yaml:"remotes"`
	Merges            []string          `yaml:"merges"`
	Src               string            `yaml:"src"`
	ShellCommandAfter []string          `yaml:"shell_command_after"`
	PatchGlobs        []string          `yaml:"patch_globs"`
	TargetFolder      string            `yaml:"target_folder"`
	Locales           []string          `yaml:"locales"`
}

var allowedSlotKeys = allowedYAMLKeys(rawSlot{})

// Load reads the project spec at specPath and the frozen-reference
// document at frozenPath (which may not exist) and returns the fully
// resolved Project, with frozen commits already substituted into
// matching descriptors.
func Load(specPath, frozenPath, workDir string, log *slog.Logger) (*Project, error) {
	if log == nil {
		log = slog.Default()
	}

	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read spec file err:%w", err)
	}

	var rawDoc yaml.Node
	if err := yaml.Unmarshal(data, &rawDoc); err != nil {
		return nil, fmt.Errorf("unable to parse spec file err:%w", err)
	}

	frozen, err := LoadFrozen(frozenPath)
	if err != nil {
		log.Warn("problem loading frozen file, proceeding as if empty", "path", frozenPath, "err", err)
		frozen = FrozenMap{}
	}

	var topMap map[string]yaml.Node
	if err := data2map(&rawDoc, &topMap); err != nil {
		return nil, fmt.Errorf("spec file must be a mapping of slot name to slot config err:%w", err)
	}

	proj := &Project{
		WorkDir: workDir,
		Slots:   make(map[string]*Slot, len(topMap)),
	}

	for _, name := range orderedKeys(&rawDoc) {
		node := topMap[name]

		var raw rawSlot
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("slot %q: unable to decode err:%w", name, err)
		}

		if key := findUnexpectedKey(&node, allowedSlotKeys); key != "" {
			return nil, fmt.Errorf("slot %q: unexpected key %q", name, key)
		}

		slot, err := buildSlot(name, raw, frozen, log)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", name, err)
		}

		proj.Slots[name] = slot
		proj.Order = append(proj.Order, name)
	}

	return proj, nil
}

func buildSlot(name string, raw rawSlot, frozen FrozenMap, log *slog.Logger) (*Slot, error) {
	remotes := make(map[string]string, len(raw.Remotes))
	for k, v := range raw.Remotes {
		remotes[k] = v
	}

	merges := append([]string(nil), raw.Merges...)

	// Legacy `src: "<url> <refspec>"` sugar: inject origin -> url and
	// prepend "origin <refspec>" to the merge list.
	if raw.Src != "" {
		parts := strings.SplitN(raw.Src, " ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("src field must be '<url> <refspec>', got %q", raw.Src)
		}
		remotes["origin"] = parts[0]
		merges = append([]string{"origin " + parts[1]}, merges...)
	}

	refs := make([]RefSpec, 0, len(merges))
	for _, entry := range merges {
		fields := strings.Fields(entry)

		var remote, refspec string
		switch len(fields) {
		case 2:
			remote, refspec = fields[0], fields[1]
		case 3:
			// deprecated <remote> <url> <refspec> form
			log.Warn("merge entry uses deprecated <remote> <url> <refspec> form", "slot", name, "entry", entry)
			remote = fields[0]
			if _, ok := remotes[remote]; !ok {
				remotes[remote] = fields[1]
			}
			refspec = fields[2]
		default:
			return nil, fmt.Errorf("merge entry must be '<remote> <refspec>', got %q", entry)
		}

		ref := RefSpec{
			Remote:  remote,
			Refspec: refspec,
			Type:    Classify(refspec),
		}

		if sha, ok := frozen.Lookup(name, remote, refspec); ok {
			ref.PinnedName = refspec
			ref.Refspec = sha
			ref.Type = Ref
		}

		refs = append(refs, ref)
	}

	if len(refs) == 0 {
		return nil, &ErrNoReferences{Slot: name}
	}

	for remoteName, rawURL := range remotes {
		if _, err := giturl.Parse(rawURL); err != nil {
			return nil, fmt.Errorf("remote %q: %w", remoteName, err)
		}
	}

	return &Slot{
		Name:         name,
		Modules:      append([]string(nil), raw.Modules...),
		Remotes:      remotes,
		Refs:         refs,
		ShellCmds:    raw.ShellCommandAfter,
		PatchGlobs:   raw.PatchGlobs,
		TargetFolder: raw.TargetFolder,
		Locales:      append([]string(nil), raw.Locales...),
	}, nil
}

// ModulePath returns the on-disk location a slot's working tree will be
// materialized at, honoring the "odoo" default and target-folder override
// rules described in the engine's path resolver.
func ModulePath(workDir string, slot *Slot) string {
	if slot.Name == "odoo" && slot.TargetFolder == "" {
		warnOdooDefaultOnce()
		return filepath.Join(workDir, "src")
	}
	if slot.TargetFolder != "" {
		return filepath.Join(workDir, slot.TargetFolder)
	}
	return filepath.Join(workDir, "external-src", slot.Name)
}

var warnOdooDefaultOnce = sync.OnceFunc(func() {
	slog.Default().Warn("importing 'odoo' slot without a target_folder is deprecated; set target_folder explicitly")
})

// allowedYAMLKeys retrieves the set of yaml tag names declared on a
// struct's fields, used to reject unexpected keys in a loaded document.
func allowedYAMLKeys(v any) []string {
	t := reflect.TypeOf(v)
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("yaml"); tag != "" {
			keys = append(keys, strings.Split(tag, ",")[0])
		}
	}
	return keys
}
