package config

import "sort"

// Presets maps variant name to named configurations.
var Presets = map[string]map[string]*Config{
	"quadrotor": {
		"default": preset(func(c *Config) {}),
		"hover": preset(func(c *Config) {
			c.TimeLimit = 10
			c.Policy.Name = "hover"
			c.Episodes = 4
		}),
	},
	"slungload": {
		"default": preset(func(c *Config) {
			c.Variant = "slungload"
		}),
		"rppo": preset(func(c *Config) {
			c.Variant = "slungload"
			c.TimeLimit = 8
			c.Episodes = 16
			c.Workers = 4
		}),
	},
	"reference": {
		"default": preset(func(c *Config) {
			c.Variant = "reference"
		}),
	},
}

func preset(edit func(c *Config)) *Config {
	c := DefaultConfig()
	edit(c)
	return c
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(variant, name string) *Config {
	variantPresets, ok := Presets[variant]
	if !ok {
		return nil
	}
	cfg, ok := variantPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(variant string) []string {
	variantPresets, ok := Presets[variant]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(variantPresets))
	for name := range variantPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
