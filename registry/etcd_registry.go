// Package registry also provides an etcd-backed Registry.
//
// Bridges that expose a device announce themselves in etcd:
//
//	Key:   /urpc/devices/{device}/{addr}
//	Value: JSON-encoded DeviceInstance
//
// Registration uses TTL-based leases: if a bridge dies, its lease expires and
// the entry disappears.
package registry

import (
	"context"
	"encoding/json"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/urpc/devices/"

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // Thread-safe, shared across goroutines
	ctx    context.Context  // Cancelled by Close; bounds keepalives and watches
	cancel context.CancelFunc
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{client: c, ctx: ctx, cancel: cancel}, nil
}

func deviceKey(device, addr string) string {
	return keyPrefix + device + "/" + addr
}

// Register puts the instance under a lease of ttl seconds and keeps the lease
// alive until Close.
//
// Note: the lease ID stays a local variable so one EtcdRegistry can register
// many instances concurrently.
func (r *EtcdRegistry) Register(device string, instance DeviceInstance, ttl int64) error {
	lease, err := r.client.Grant(r.ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(r.ctx, deviceKey(device, instance.Addr), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(r.ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain keepalive responses so the channel never fills up
	go func() {
		for range ch {
		}
	}()
	return nil
}

func (r *EtcdRegistry) Deregister(device string, addr string) error {
	_, err := r.client.Delete(r.ctx, deviceKey(device, addr))
	return err
}

// Watch emits the full instance list every time anything under the device
// prefix changes. The channel is closed by Close.
func (r *EtcdRegistry) Watch(device string) <-chan []DeviceInstance {
	ch := make(chan []DeviceInstance, 1)
	prefix := keyPrefix + device + "/"

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(r.ctx, prefix, clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch instead of applying individual events
			instances, err := r.Discover(device)
			if err != nil {
				continue
			}
			select {
			case ch <- instances:
			case <-r.ctx.Done():
				return
			}
		}
	}()

	return ch
}

func (r *EtcdRegistry) Discover(device string) ([]DeviceInstance, error) {
	resp, err := r.client.Get(r.ctx, keyPrefix+device+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]DeviceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance DeviceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close stops keepalives and watches and closes the etcd client.
func (r *EtcdRegistry) Close() error {
	r.cancel()
	return r.client.Close()
}
