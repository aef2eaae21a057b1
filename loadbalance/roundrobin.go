package loadbalance

import (
	"fmt"
	"sync/atomic"

	"github.com/Dhole/client-urpc-test/registry"
)

// RoundRobinBalancer cycles through all instances in order.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

func (b *RoundRobinBalancer) Pick(instances []registry.DeviceInstance) (*registry.DeviceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no instances available")
	}
	index := (b.counter.Add(1) - 1) % uint64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
