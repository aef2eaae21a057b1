package registry

import "testing"

func TestStaticRegistry(t *testing.T) {
	reg := NewStaticRegistry()

	inst1 := DeviceInstance{Addr: "/dev/ttyACM0", Weight: 1}
	inst2 := DeviceInstance{Addr: "tcp://bridge:4000", Weight: 3}
	reg.Register("board", inst1, 0)
	reg.Register("board", inst2, 0)

	instances, _ := reg.Discover("board")
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	// Re-registering an address replaces it
	reg.Register("board", DeviceInstance{Addr: "/dev/ttyACM0", Weight: 7}, 0)
	instances, _ = reg.Discover("board")
	if len(instances) != 2 || instances[0].Weight != 7 {
		t.Fatalf("expect updated weight 7, got %+v", instances)
	}

	if err := reg.Deregister("board", inst1.Addr); err != nil {
		t.Fatal(err)
	}
	instances, _ = reg.Discover("board")
	if len(instances) != 1 || instances[0].Addr != inst2.Addr {
		t.Fatalf("expect only %s left, got %+v", inst2.Addr, instances)
	}

	if err := reg.Deregister("board", "nowhere"); err == nil {
		t.Fatal("expect error for unknown address")
	}
}

func TestStaticRegistryWatch(t *testing.T) {
	reg := NewStaticRegistry()
	ch := reg.Watch("board")

	if initial := <-ch; len(initial) != 0 {
		t.Fatalf("expect empty initial list, got %+v", initial)
	}

	reg.Register("board", DeviceInstance{Addr: "a"}, 0)
	reg.Register("board", DeviceInstance{Addr: "b"}, 0)

	// Only the latest list is kept for a slow reader
	latest := <-ch
	if len(latest) != 2 {
		t.Fatalf("expect latest list of 2, got %+v", latest)
	}
}
