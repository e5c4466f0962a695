package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]TaskDefinition)
	registryMu sync.RWMutex
)

// Register adds a task definition to the registry.
// Panics if a task with the same key is already registered or the definition
// has no Apply function.
func Register(def TaskDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("task already registered: %s", def.Info.Key))
	}
	if def.Apply == nil {
		panic(fmt.Sprintf("task %s has no Apply function", def.Info.Key))
	}

	if def.Info.Arity == "" {
		def.Info.Arity = AritySingle
	}
	if def.Params == nil {
		def.Params = func() any { return &struct{}{} }
	}

	registry[def.Info.Key] = def
}

// Get returns a task definition by key.
// Returns false if not found.
func Get(key string) (TaskDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered task definitions.
// Sorted by group then by key for consistent ordering.
func All() []TaskDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TaskDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Group != result[j].Info.Group {
			return result[i].Info.Group < result[j].Info.Group
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// ByGroup returns all task definitions for a specific group.
// Sorted by key for consistent ordering.
func ByGroup(group string) []TaskDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []TaskDefinition
	for _, def := range registry {
		if def.Info.Group == group {
			result = append(result, def)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Groups returns all unique group names.
// Sorted alphabetically.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range registry {
		seen[def.Info.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// TaskCount returns the number of registered tasks.
func TaskCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered tasks.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TaskDefinition)
}
