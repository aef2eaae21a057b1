package registry

import (
	"fmt"
	"sync"
)

// StaticRegistry is an in-memory registry, filled from configuration or flags.
// TTLs are ignored: entries live until deregistered.
type StaticRegistry struct {
	mu       sync.RWMutex
	devices  map[string][]DeviceInstance
	watchers map[string][]chan []DeviceInstance
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		devices:  make(map[string][]DeviceInstance),
		watchers: make(map[string][]chan []DeviceInstance),
	}
}

func (r *StaticRegistry) Register(device string, instance DeviceInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	insts := r.devices[device]
	for i, inst := range insts {
		if inst.Addr == instance.Addr {
			insts[i] = instance
			r.notify(device)
			return nil
		}
	}
	r.devices[device] = append(insts, instance)
	r.notify(device)
	return nil
}

func (r *StaticRegistry) Deregister(device string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	insts := r.devices[device]
	for i, inst := range insts {
		if inst.Addr == addr {
			r.devices[device] = append(insts[:i:i], insts[i+1:]...)
			r.notify(device)
			return nil
		}
	}
	return fmt.Errorf("device %s has no instance at %s", device, addr)
}

func (r *StaticRegistry) Discover(device string) ([]DeviceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(device), nil
}

// Watch emits the current instance list, then every change. Slow readers
// only see the latest list.
func (r *StaticRegistry) Watch(device string) <-chan []DeviceInstance {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan []DeviceInstance, 1)
	ch <- r.snapshot(device)
	r.watchers[device] = append(r.watchers[device], ch)
	return ch
}

func (r *StaticRegistry) snapshot(device string) []DeviceInstance {
	return append([]DeviceInstance(nil), r.devices[device]...)
}

// notify must be called with mu held.
func (r *StaticRegistry) notify(device string) {
	insts := r.snapshot(device)
	for _, ch := range r.watchers[device] {
		select {
		case <-ch:
		default:
		}
		ch <- insts
	}
}
