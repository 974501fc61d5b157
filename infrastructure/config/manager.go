package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Errors for config management
var (
	ErrUnknownKey   = errors.New("unknown config key")
	ErrInvalidValue = errors.New("invalid config value")
)

// ConfigManager reads and writes individual settings by dotted key, such
// as "obs.address" or "cutter.concurrency"
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(cfg *Config, configPath string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: configPath,
	}
}

// Setting is one leaf of the configuration
type Setting struct {
	Key   string
	Value string
}

// List returns every setting sorted by key
func (m *ConfigManager) List() ([]Setting, error) {
	root, err := m.document()
	if err != nil {
		return nil, err
	}

	var settings []Setting
	flatten("", root, &settings)
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}

// Get returns the value of one setting
func (m *ConfigManager) Get(key string) (string, error) {
	root, err := m.document()
	if err != nil {
		return "", err
	}

	node, err := lookup(root, key)
	if err != nil {
		return "", err
	}
	return render(node), nil
}

// Set changes one setting and saves the file. The value is parsed as YAML,
// so lists are written as "[a, b]" and durations as "5s".
func (m *ConfigManager) Set(key, value string) error {
	root, err := m.document()
	if err != nil {
		return err
	}

	node, err := lookup(root, key)
	if err != nil {
		return err
	}

	var replacement yaml.Node
	if err := yaml.Unmarshal([]byte(value), &replacement); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	if len(replacement.Content) == 0 {
		*node = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str"}
	} else {
		*node = *replacement.Content[0]
	}

	var updated Config
	if err := root.Decode(&updated); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	updated.ApplyDefaults()
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	*m.config = updated
	return Save(m.config, m.configPath)
}

// document encodes the current config as a YAML mapping node
func (m *ConfigManager) document() (*yaml.Node, error) {
	var root yaml.Node
	if err := root.Encode(m.config); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return &root, nil
}

func lookup(root *yaml.Node, key string) (*yaml.Node, error) {
	node := root
	for _, part := range strings.Split(strings.TrimSpace(key), ".") {
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == part {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		node = next
	}
	if node.Kind == yaml.MappingNode {
		return nil, fmt.Errorf("%w: %q is a section, not a setting", ErrUnknownKey, key)
	}
	return node, nil
}

func flatten(prefix string, node *yaml.Node, out *[]Setting) {
	if node.Kind != yaml.MappingNode {
		*out = append(*out, Setting{Key: prefix, Value: render(node)})
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		flatten(key, node.Content[i+1], out)
	}
}

func render(node *yaml.Node) string {
	if node.Kind == yaml.ScalarNode {
		return node.Value
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
