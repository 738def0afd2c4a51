package transfer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eugenetaranov/courier/internal/task"
)

// Factory builds a plugin for cfg bound to the task t.
type Factory func(cfg Config, t task.Context) (Plugin, error)

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

// Register adds a plugin factory for protocol.
// It panics if the protocol is already registered.
func Register(protocol string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[protocol]; exists {
		panic(fmt.Sprintf("transfer protocol %q is already registered", protocol))
	}
	registry[protocol] = f
}

// New builds the plugin registered for cfg.Protocol.
func New(cfg Config, t task.Context) (Plugin, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Protocol]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown protocol %q (available: %s)",
			cfg.Protocol, strings.Join(Protocols(), ", "))
	}
	return f(cfg, t)
}

// Protocols returns the registered protocol names, sorted.
func Protocols() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
