package physics

import (
	"fmt"
	"sort"
)

// Material holds the surface and mass properties shared by a family of bodies.
type Material struct {
	Density     float64
	Friction    float64
	Restitution float64
	Static      bool
}

// Named material profiles. Density is mass per square unit of area.
var (
	// Default matches an unconfigured body: light and slightly slippery.
	Default = Material{Density: 0.001, Friction: 0.1}
	// Heavy is used for spawned crates.
	Heavy = Material{Density: 0.2, Friction: 2, Restitution: 0.7}
	// Light bodies are easy to push around.
	Light = Material{Density: 0.01, Friction: 1, Restitution: 0.7}
	// Fixed bodies never move; they form the arena walls.
	Fixed = Material{Density: 1, Friction: 3, Static: true}
)

var profiles = map[string]Material{
	"default": Default,
	"heavy":   Heavy,
	"light":   Light,
	"fixed":   Fixed,
}

// Profile looks up a material by name. The empty name selects Default.
func Profile(name string) (Material, error) {
	if name == "" {
		return Default, nil
	}
	m, ok := profiles[name]
	if !ok {
		return Material{}, fmt.Errorf("unknown material profile %q (known: %v)", name, ProfileNames())
	}
	return m, nil
}

// ProfileNames lists the known profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
