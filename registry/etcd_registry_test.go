package registry

import (
	"os"
	"strings"
	"testing"
	"time"
)

// Needs a running etcd, e.g. URPC_ETCD_ENDPOINTS=localhost:2379
func newTestEtcdRegistry(t *testing.T) *EtcdRegistry {
	t.Helper()
	endpoints := os.Getenv("URPC_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("URPC_ETCD_ENDPOINTS not set")
	}
	reg, err := NewEtcdRegistry(strings.Split(endpoints, ","), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg := newTestEtcdRegistry(t)

	inst1 := DeviceInstance{Addr: "tcp://127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := DeviceInstance{Addr: "tcp://127.0.0.1:8002", Weight: 5, Version: "1.0"}

	if err := reg.Register("board", inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("board", inst2, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover("board")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	if err := reg.Deregister("board", inst1.Addr); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	instances, err = reg.Discover("board")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 {
		t.Fatalf("expect 1 instance after deregister, got %d", len(instances))
	}
	if instances[0].Addr != inst2.Addr {
		t.Fatalf("expect %s, got %s", inst2.Addr, instances[0].Addr)
	}

	// Cleanup
	reg.Deregister("board", inst2.Addr)
}

func TestEtcdWatch(t *testing.T) {
	reg := newTestEtcdRegistry(t)

	ch := reg.Watch("watched")
	inst := DeviceInstance{Addr: "tcp://127.0.0.1:9001", Weight: 1}
	if err := reg.Register("watched", inst, 10); err != nil {
		t.Fatal(err)
	}
	defer reg.Deregister("watched", inst.Addr)

	select {
	case instances := <-ch:
		if len(instances) != 1 || instances[0].Addr != inst.Addr {
			t.Fatalf("unexpected watch update: %+v", instances)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no watch update within 5s")
	}
}
