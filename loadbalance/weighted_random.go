package loadbalance

import (
	"fmt"
	"math/rand/v2"

	"github.com/Dhole/client-urpc-test/registry"
)

type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.DeviceInstance) (*registry.DeviceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no instances available")
	}

	// 计算总权重，未设置权重的实例按 1 计
	totalWeight := 0
	for _, v := range instances {
		totalWeight += weight(v)
	}

	r := rand.IntN(totalWeight)
	for i := range instances {
		r -= weight(instances[i])
		if r < 0 {
			return &instances[i], nil
		}
	}

	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}

func weight(inst registry.DeviceInstance) int {
	if inst.Weight <= 0 {
		return 1
	}
	return inst.Weight
}
