// Package graphs loads motion graph definitions from YAML, compiles them with
// the registered condition and behaviour kinds, and hot reloads them.
package graphs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// GraphSpec is the authored form of a graph.
type GraphSpec struct {
	Name string `yaml:"name"`
	// SideChannels is "fresh" (default) or "short_circuit".
	SideChannels string      `yaml:"side_channels"`
	Params       []ParamSpec `yaml:"params"`
	Initial      string      `yaml:"initial"`
	States       []StateSpec `yaml:"states"`
}

type ParamSpec struct {
	ID      int       `yaml:"id"`
	Name    string    `yaml:"name"`
	Type    string    `yaml:"type"`
	Default yaml.Node `yaml:"default"`
}

type StateSpec struct {
	ID          string           `yaml:"id"`
	Behaviours  []PluginSpec     `yaml:"behaviours"`
	Connections []ConnectionSpec `yaml:"connections"`
	Sub         *SubGraphSpec    `yaml:"sub"`
}

// SubGraphSpec is a nested graph. It shares the parameters of its root.
type SubGraphSpec struct {
	Initial string      `yaml:"initial"`
	States  []StateSpec `yaml:"states"`
}

type ConnectionSpec struct {
	To string `yaml:"to"`
	// Groups are OR-ed; the conditions inside a group are AND-ed.
	Groups []GroupSpec `yaml:"groups"`
}

type GroupSpec struct {
	ID         string       `yaml:"id"`
	Conditions []PluginSpec `yaml:"conditions"`
}

// PluginSpec is one condition or behaviour entry. The common keys are
// decoded here; the kind's own arguments are decoded from Args by its
// factory.
type PluginSpec struct {
	Kind       string
	Name       string
	When       string
	Persistent bool
	Invert     bool
	Args       yaml.Node
}

func (p *PluginSpec) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Kind       string `yaml:"kind"`
		Name       string `yaml:"name"`
		When       string `yaml:"when"`
		Persistent bool   `yaml:"persistent"`
		Invert     bool   `yaml:"invert"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	*p = PluginSpec{
		Kind:       head.Kind,
		Name:       head.Name,
		When:       head.When,
		Persistent: head.Persistent,
		Invert:     head.Invert,
		Args:       *node,
	}
	return nil
}

// Decode decodes the entry's arguments into v.
func (p *PluginSpec) Decode(v any) error {
	if p.Args.Kind == 0 {
		return nil
	}
	if err := p.Args.Decode(v); err != nil {
		return fmt.Errorf("%s arguments: %w", p.Kind, err)
	}
	return nil
}

// Parse decodes a graph definition.
func Parse(data []byte) (*GraphSpec, error) {
	var spec GraphSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// LoadSpec reads and parses name from dir, falling back to the embedded
// definitions.
func LoadSpec(dir, name string) (*GraphSpec, error) {
	data, err := Read(dir, name)
	if err != nil {
		return nil, fmt.Errorf("graphs: load %s: %w", name, err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("graphs: unmarshal %s: %w", name, err)
	}
	return spec, nil
}
