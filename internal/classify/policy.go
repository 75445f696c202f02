package classify

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	PolicyLoose  = "loose"
	PolicyStrict = "strict"
)

// Loose requires "intern" plus any one category word. It is the default.
var Loose = RoleSpec{
	Name:       PolicyLoose,
	Include:    []string{"intern"},
	Categories: []string{"software", "data", "ai", "ml", "quantitative", "cybersecurity"},
}

// Strict requires one of a fixed list of role phrases.
var Strict = RoleSpec{
	Name: PolicyStrict,
	Include: []string{
		"software engineer intern",
		"software development intern",
		"data engineering intern",
		"ai intern",
		"ml intern",
		"quantitative developer intern",
		"quantitative research intern",
		"cybersecurity intern",
	},
}

// ErrUnknownPolicy is returned when a policy name is not registered.
var ErrUnknownPolicy = errors.New("unknown role policy")

// Policies is a named set of role specs.
type Policies map[string]RoleSpec

// DefaultPolicies returns the built-in loose and strict policies.
func DefaultPolicies() Policies {
	return Policies{
		PolicyLoose:  Loose,
		PolicyStrict: Strict,
	}
}

// Lookup returns the named spec. Names are case-insensitive.
func (p Policies) Lookup(name string) (RoleSpec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	spec, ok := p[key]
	if !ok {
		return RoleSpec{}, fmt.Errorf("%w %q (have %s)", ErrUnknownPolicy, name, strings.Join(p.Names(), ", "))
	}
	spec.Name = key
	return spec, nil
}

// Names returns the registered policy names, sorted.
func (p Policies) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

type policyFile struct {
	Policies map[string]RoleSpec `yaml:"policies"`
}

// LoadPolicies reads named policies from a YAML file and merges them over
// the defaults. A file entry with the same name as a built-in replaces it.
//
//	policies:
//	  backend:
//	    include: [intern]
//	    categories: [backend, platform, infrastructure]
func LoadPolicies(path string) (Policies, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classify: read policies: %w", err)
	}

	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("classify: parse policies: %w", err)
	}

	out := DefaultPolicies()
	for name, spec := range f.Policies {
		key := strings.ToLower(strings.TrimSpace(name))
		spec = spec.Normalized()
		if len(spec.Include) == 0 {
			return nil, fmt.Errorf("classify: policy %q has no include keywords", name)
		}
		spec.Name = key
		out[key] = spec
	}
	return out, nil
}
