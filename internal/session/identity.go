// Package session provides the tab-scoped identity that partitions
// server-side conversation state per terminal tab.
package session

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/sleuth/internal/log"
)

const (
	idPrefix     = "tab_"
	suffixLength = 6
	suffixChars  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Identity hands out the persisted identifier for one tab scope.
// The identifier is created lazily on the first Get.
type Identity struct {
	mu       sync.Mutex
	storage  Storage
	scope    string
	id       string
	fallback bool
	now      func() time.Time
}

// NewIdentity creates an Identity persisting through storage under scope.
// A nil storage keeps the identifier in memory only.
func NewIdentity(storage Storage, scope string) *Identity {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Identity{
		storage: storage,
		scope:   scope,
		now:     time.Now,
	}
}

// Scope returns the tab scope this identity is persisted under.
func (i *Identity) Scope() string {
	return i.scope
}

// Get returns the identifier for this tab, generating and storing one on
// first call. Storage failures fall back to an in-memory identifier that
// lives as long as the process.
func (i *Identity) Get() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id
	}

	id, ok, err := i.storage.Load(i.scope)
	if err != nil {
		log.Warn(log.CatSession, "Load failed, using in-memory identity", "scope", i.scope, "error", err)
		i.id = NewID(i.now())
		i.fallback = true
		return i.id
	}
	if ok && id != "" {
		log.Debug(log.CatSession, "Reusing tab identity", "scope", i.scope, "id", id)
		i.id = id
		return i.id
	}

	i.id = NewID(i.now())
	if err := i.storage.Store(i.scope, i.id); err != nil {
		log.Warn(log.CatSession, "Store failed, using in-memory identity", "scope", i.scope, "error", err)
		i.fallback = true
		return i.id
	}
	log.Info(log.CatSession, "Created tab identity", "scope", i.scope, "id", i.id)
	return i.id
}

// Fallback reports whether the current identifier is not persisted.
func (i *Identity) Fallback() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fallback
}

// Release clears the persisted identifier so the next Get in this scope
// generates a fresh one. Safe to call more than once.
func (i *Identity) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.storage.Remove(i.scope); err != nil {
		log.Warn(log.CatSession, "Remove failed", "scope", i.scope, "error", err)
	}
	if i.id != "" {
		log.Debug(log.CatSession, "Released tab identity", "scope", i.scope, "id", i.id)
	}
	i.id = ""
	i.fallback = false
}

// NewID generates a tab identifier: tab_<unix millis>_<6 lowercase
// alphanumerics>.
func NewID(now time.Time) string {
	random := uuid.New()
	suffix := make([]byte, suffixLength)
	for j := range suffix {
		suffix[j] = suffixChars[int(random[j])%len(suffixChars)]
	}
	return fmt.Sprintf("%s%d_%s", idPrefix, now.UnixMilli(), suffix)
}

// ScopeFromEnv derives the tab scope from the first non-empty variable in
// vars, e.g. "TMUX_PANE=%3". With none set, the parent process id scopes
// the identity.
func ScopeFromEnv(vars []string) string {
	return scopeFrom(vars, os.Getenv, os.Getppid)
}

func scopeFrom(vars []string, getenv func(string) string, getppid func() int) string {
	for _, name := range vars {
		if v := getenv(name); v != "" {
			return name + "=" + v
		}
	}
	return "ppid=" + strconv.Itoa(getppid())
}
