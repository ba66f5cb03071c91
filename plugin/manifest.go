package plugin

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caffeineduck/hookwarden/hooks"
)

// ManifestFile is the manifest's name inside a plugin directory.
const ManifestFile = "plugin.yaml"

// Manifest describes one plugin directory.
type Manifest struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`

	// Exactly one of Wasm or Lua names the entry file, relative to the
	// plugin directory.
	Wasm string `yaml:"wasm"`
	Lua  string `yaml:"lua"`

	// Checksum is the hex SHA-256 of the entry file; Signature is a hex
	// ed25519 signature over it.
	Checksum  string `yaml:"checksum"`
	Signature string `yaml:"signature"`

	// Config is passed to the plugin as part of its context.
	Config map[string]any `yaml:"config"`

	// Hooks binds WebAssembly exports to hook points. Lua plugins declare
	// their hooks by function name instead.
	Hooks []HookSpec `yaml:"hooks"`

	// Commands binds WebAssembly exports to user-invoked commands.
	Commands []CommandSpec `yaml:"commands"`

	dir string
}

// HookSpec binds one export to a hook point.
type HookSpec struct {
	Point    hooks.Point `yaml:"point"`
	Export   string      `yaml:"export"`
	Pattern  string      `yaml:"pattern"`
	Priority int         `yaml:"priority"`
}

// CommandSpec binds one export to a named command. The export takes no
// arguments and returns 0 on success.
type CommandSpec struct {
	Name        string `yaml:"name"`
	Export      string `yaml:"export"`
	Description string `yaml:"description"`
}

var (
	ErrMissingID    = errors.New("manifest: id is required")
	ErrInvalidID    = errors.New("manifest: id must be lowercase alphanumeric with '.', '_' or '-'")
	ErrEntryPoint   = errors.New("manifest: exactly one of wasm or lua is required")
	ErrInvalidEntry = errors.New("manifest: entry file must stay inside the plugin directory")
	ErrLuaHooks     = errors.New("manifest: lua plugins declare hooks in the script")
	ErrLuaCommands  = errors.New("manifest: lua plugins cannot declare commands")
	ErrCommandName  = errors.New("manifest: command name must be lowercase alphanumeric with '.', '_' or '-'")
	ErrDupCommand   = errors.New("manifest: duplicate command")
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// LoadManifestFromDir loads plugin.yaml from dir.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// ParseManifest decodes and validates manifest YAML. Unknown fields are
// rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// DefaultExport is the export name used when a hook spec leaves it empty:
// "hook_" followed by the point with dots replaced by underscores.
func DefaultExport(p hooks.Point) string {
	return "hook_" + strings.ReplaceAll(string(p), ".", "_")
}

// DefaultCommandExport is the export name used when a command spec leaves it
// empty: "cmd_" followed by the name with '-' and '.' replaced by '_'.
func DefaultCommandExport(name string) string {
	return "cmd_" + strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

func (m *Manifest) applyDefaults() {
	if m.Name == "" {
		m.Name = m.ID
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
	for i := range m.Hooks {
		if m.Hooks[i].Export == "" {
			m.Hooks[i].Export = DefaultExport(m.Hooks[i].Point)
		}
	}
	for i := range m.Commands {
		if m.Commands[i].Export == "" {
			m.Commands[i].Export = DefaultCommandExport(m.Commands[i].Name)
		}
	}
}

// Validate checks that the manifest is usable.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, m.ID)
	}

	if (m.Wasm == "") == (m.Lua == "") {
		return ErrEntryPoint
	}
	entry := m.Entry()
	if filepath.IsAbs(entry) || !filepath.IsLocal(entry) {
		return fmt.Errorf("%w: %s", ErrInvalidEntry, entry)
	}

	if m.Lua != "" && len(m.Hooks) > 0 {
		return ErrLuaHooks
	}
	if m.Lua != "" && len(m.Commands) > 0 {
		return ErrLuaCommands
	}

	seen := make(map[string]bool, len(m.Commands))
	for i, c := range m.Commands {
		if !idPattern.MatchString(c.Name) {
			return fmt.Errorf("manifest: commands[%d]: %w: %q", i, ErrCommandName, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: %s", ErrDupCommand, c.Name)
		}
		seen[c.Name] = true
	}

	for i, h := range m.Hooks {
		if _, err := hooks.ParsePoint(string(h.Point)); err != nil {
			return fmt.Errorf("manifest: hooks[%d]: %w", i, err)
		}
		if h.Pattern != "" && !h.Point.SupportsPattern() {
			return fmt.Errorf("manifest: hooks[%d]: %w", i, hooks.ErrPatternNotSupported)
		}
		if h.Pattern != "" {
			if _, err := hooks.CompilePattern(h.Pattern); err != nil {
				return fmt.Errorf("manifest: hooks[%d]: pattern %q: %w", i, h.Pattern, err)
			}
		}
	}
	return nil
}

// Command returns the command spec named name.
func (m *Manifest) Command(name string) (CommandSpec, bool) {
	for _, c := range m.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// IsLua reports whether the plugin is a Lua script.
func (m *Manifest) IsLua() bool {
	return m.Lua != ""
}

// Entry returns the entry file path relative to the plugin directory.
func (m *Manifest) Entry() string {
	if m.Lua != "" {
		return m.Lua
	}
	return m.Wasm
}

// Dir returns the directory the manifest was loaded from.
func (m *Manifest) Dir() string {
	return m.dir
}
