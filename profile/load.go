package profile

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinFS embed.FS

type profileFile struct {
	Profiles []*Profile `yaml:"profiles"`
}

// Builtin returns the profiles shipped with the binary.
func Builtin() (*Registry, error) {
	entries, err := builtinFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("read builtin profiles: %w", err)
	}

	reg := NewRegistry()
	for _, entry := range entries {
		f, err := builtinFS.Open(path.Join("profiles", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("open builtin profile %s: %w", entry.Name(), err)
		}
		profiles, err := Load(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("builtin profile %s: %w", entry.Name(), err)
		}
		for _, p := range profiles {
			reg.Register(p)
		}
	}
	return reg, nil
}

// Load decodes and validates a YAML document with a top-level profiles list.
func Load(r io.Reader) ([]*Profile, error) {
	var file profileFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles declared")
	}
	for _, p := range file.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Profiles, nil
}

// LoadFile reads profiles from path and registers them over the builtin
// set, replacing builtin profiles with the same name.
func LoadFile(reg *Registry, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("open profiles file: %w", err)
	}
	defer f.Close()

	profiles, err := Load(f)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	for _, p := range profiles {
		reg.Register(p)
	}
	return nil
}

// Registry keeps a mapping from site names to their profiles.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: map[string]*Profile{}}
}

// Register adds or replaces a profile.
func (r *Registry) Register(p *Profile) {
	if r.profiles == nil {
		r.profiles = map[string]*Profile{}
	}
	r.profiles[p.Name] = p
}

// Resolve returns a profile by name or an error if it is absent.
func (r *Registry) Resolve(name string) (*Profile, error) {
	if p, ok := r.profiles[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("profile %s is not registered", name)
}

// Names lists the registered site names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
