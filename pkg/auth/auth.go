package auth

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Authenticator turns a backend's raw profile section into a connection
// descriptor.
type Authenticator interface {
	Backend() string
	Configure(cfg *AdapterConfig) (*Builder, error)
}

var (
	mu             sync.RWMutex
	authenticators = make(map[string]Authenticator)
)

// Register makes an authenticator available by backend name. Registering a
// backend twice replaces the earlier one.
func Register(a Authenticator) {
	mu.Lock()
	defer mu.Unlock()
	authenticators[a.Backend()] = a
}

// Lookup returns the authenticator for backend.
func Lookup(backend string) (Authenticator, error) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := authenticators[backend]
	if !ok {
		return nil, core.UnsupportedFeatureError("no connection builder for adapter type %q", backend)
	}
	return a, nil
}

// Backends lists registered backend names, sorted.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(authenticators))
	for name := range authenticators {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
