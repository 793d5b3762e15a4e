package ceed

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/notargets/MatFree/builder"
	"github.com/notargets/MatFree/config"
	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/qfunction"
	"github.com/notargets/MatFree/types"
)

// Backend is what a registered backend provides to a session
type Backend struct {
	Device   mirror.Device    // nil for host-only backends
	Compiler builder.Compiler // nil when kernels cannot be built

	// NewQFunctionImpl, when set, gives every QFunction with kernel source a
	// backend implementation. QFunctions without source stay on the host.
	NewQFunctionImpl func() qfunction.Impl

	Close func() error
}

// InitFunc opens a backend for resource
type InitFunc func(resource string, cfg config.Config) (*Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]InitFunc)
)

func init() {
	Register("/cpu/self/ref", func(string, config.Config) (*Backend, error) {
		return &Backend{}, nil
	})
	Register("/cpu/self/mock", func(string, config.Config) (*Backend, error) {
		return &Backend{Device: mirror.NewMockDevice()}, nil
	})
}

// Register makes a backend available under prefix. It is meant to be
// called from init functions and panics if prefix is taken.
func Register(prefix string, fn InitFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if fn == nil {
		panic("ceed: Register init function is nil")
	}
	if _, dup := registry[prefix]; dup {
		panic("ceed: Register called twice for backend " + prefix)
	}
	registry[prefix] = fn
}

// Backends lists the registered prefixes in sorted order
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup finds the longest registered prefix of resource. A prefix matches
// the whole resource or a leading run of its '/'-separated parts.
func lookup(resource string) (string, InitFunc, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	best := ""
	for prefix := range registry {
		if resource != prefix && !strings.HasPrefix(resource, prefix+"/") {
			continue
		}
		if len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", nil, fmt.Errorf("%w: no backend for resource %q", types.ErrConfiguration, resource)
	}
	return best, registry[best], nil
}
