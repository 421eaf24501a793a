// Package flags provides feature flag support for controlled feature rollout.
// Flags are read-only after initialization and provide safe defaults for unknown flags.
package flags

import (
	"maps"

	"github.com/zjrosen/sleuth/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagSessionPersistence persists the tab identity in SQLite so a rerun
	// in the same terminal tab reuses it. Disabled: identity lives in memory.
	FlagSessionPersistence = "session-persistence"

	// FlagDocumentCache routes document and history fetches through the
	// read-through cache.
	FlagDocumentCache = "document-cache"

	// FlagPingOnConnect sends a liveness ping whenever the channel connects.
	FlagPingOnConnect = "ping-on-connect"
)

// Defaults returns the flag values used when the config file sets none.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagSessionPersistence: true,
		FlagDocumentCache:      true,
		FlagPingOnConnect:      true,
	}
}

// Registry holds feature flag state loaded from configuration.
// Flags are read-only after initialization.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map.
// If flags is nil, an empty registry is created (all flags disabled).
func New(flags map[string]bool) *Registry {
	if flags == nil {
		flags = make(map[string]bool)
	}
	r := &Registry{flags: maps.Clone(flags)}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(flags), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled.
// Returns false for unknown flags and on a nil registry.
func (r *Registry) Enabled(name string) bool {
	return r.EnabledOr(name, false)
}

// EnabledOr returns the named flag, or fallback when it is not configured.
func (r *Registry) EnabledOr(name string, fallback bool) bool {
	if r == nil || r.flags == nil {
		return fallback
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", fallback)
		return fallback
	}
	return value
}

// All returns a copy of all flags (for debugging/logging).
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}
