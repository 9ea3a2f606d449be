// Package discovery lets bridges find their router without a hardcoded
// address. Routers register the endpoint they listen on; bridges resolve one
// registered endpoint at every (re)connect attempt, so a router that moves
// hosts is picked up on the next reconnect.
package discovery

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// RouterInstance describes one registered router endpoint.
type RouterInstance struct {
	Address string // full transport address, e.g. tcp://10.0.0.5:7447
	Version string
}

// Registry is the backing store for router registration and lookup.
type Registry interface {
	Register(name string, instance RouterInstance, ttl int64) error
	Deregister(name string, address string) error
	Discover(name string) ([]RouterInstance, error)
	Watch(name string) <-chan []RouterInstance
}

// ErrNoInstances is returned by Resolve when no router is currently registered
// under the requested name.
var ErrNoInstances = errors.New("no router instances registered")

// Resolver picks one endpoint from the registered instances of a named router,
// rotating through them round-robin across successive calls so repeated
// reconnect attempts spread over the available routers.
type Resolver struct {
	reg  Registry
	name string
	next atomic.Uint32
}

func NewResolver(reg Registry, name string) *Resolver {
	return &Resolver{reg: reg, name: name}
}

// Resolve returns the transport address of one registered router instance.
func (r *Resolver) Resolve() (string, error) {
	instances, err := r.reg.Discover(r.name)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", r.name, err)
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("%w for %q", ErrNoInstances, r.name)
	}
	i := int(r.next.Add(1)-1) % len(instances)
	return instances[i].Address, nil
}
