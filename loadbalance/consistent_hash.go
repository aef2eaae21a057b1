package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/Dhole/client-urpc-test/registry"
)

// KeyedBalancer picks by key. The client passes the device name, so every
// call to a device lands on the same address while the instance list holds.
type KeyedBalancer interface {
	Balancer
	PickKey(key string, instances []registry.DeviceInstance) (*registry.DeviceInstance, error)
}

// ConsistentHashBalancer maps keys to instances using a hash ring.
// A device keeps its link (and any state the firmware holds for it) until the
// ring changes, and removing one bridge only moves the devices it served.
//
// Virtual nodes: each real instance is mapped to N virtual nodes on the ring
// so a handful of bridges still split keys evenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int // Virtual nodes per real instance
}

// NewConsistentHashBalancer uses 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{replicas: 100}
}

type hashRing struct {
	ring  []uint32       // Sorted hash values on the ring
	nodes map[uint32]int // Hash value → index into instances
}

// newHashRing builds the ring for one pick from the current instance list.
func newHashRing(instances []registry.DeviceInstance, replicas int) *hashRing {
	r := &hashRing{
		ring:  make([]uint32, 0, len(instances)*replicas),
		nodes: make(map[uint32]int, len(instances)*replicas),
	}
	for idx, inst := range instances {
		for i := 0; i < replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", inst.Addr, i)))
			if _, taken := r.nodes[hash]; taken {
				continue
			}
			r.ring = append(r.ring, hash)
			r.nodes[hash] = idx
		}
	}
	sort.Slice(r.ring, func(i, j int) bool {
		return r.ring[i] < r.ring[j]
	})
	return r
}

// lookup returns the first node clockwise from the key's hash, wrapping
// around past the largest one.
func (r *hashRing) lookup(key string) int {
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(r.ring), func(i int) bool {
		return r.ring[i] >= hash
	})
	if idx == len(r.ring) {
		idx = 0
	}
	return r.nodes[r.ring[idx]]
}

func (b *ConsistentHashBalancer) PickKey(key string, instances []registry.DeviceInstance) (*registry.DeviceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no instances available")
	}
	replicas := b.replicas
	if replicas <= 0 {
		replicas = 1
	}
	return &instances[newHashRing(instances, replicas).lookup(key)], nil
}

// Pick hashes the empty key: without one every call goes to the same instance.
func (b *ConsistentHashBalancer) Pick(instances []registry.DeviceInstance) (*registry.DeviceInstance, error) {
	return b.PickKey("", instances)
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
