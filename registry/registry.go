// Package registry maps device names to the addresses they can be reached at.
//
// A device may be reachable at several addresses, e.g. the same board behind
// two serial-to-TCP bridges, or a local port plus a remote one.
package registry

type DeviceInstance struct {
	Addr    string // Dial address, see transport.Dial
	Weight  int    // Weight for load balancing
	Version string // Firmware version
}

type Registry interface {
	Register(device string, instance DeviceInstance, ttl int64) error
	Deregister(device string, addr string) error
	Discover(device string) ([]DeviceInstance, error)
	Watch(device string) <-chan []DeviceInstance
}
