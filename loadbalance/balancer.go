// Package loadbalance picks one address for a device among those the
// registry knows.
//
// Three strategies are implemented:
//   - RoundRobin:      equivalent links, spread calls evenly
//   - WeightedRandom:  prefer faster links (higher baud, local over bridged)
//   - ConsistentHash:  pin each device name to one link
package loadbalance

import "github.com/Dhole/client-urpc-test/registry"

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each call to select a target instance.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every call, must be goroutine-safe.
	Pick(instances []registry.DeviceInstance) (*registry.DeviceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// ByName returns the balancer for a configured strategy name.
func ByName(name string) Balancer {
	switch name {
	case "weighted", "WeightedRandom":
		return &WeightedRandomBalancer{}
	case "hash", "ConsistentHash":
		return NewConsistentHashBalancer()
	}
	return &RoundRobinBalancer{}
}
