// Package client routes typed uRPC calls to devices found in a registry.
//
// A call goes: registry discover → balancer pick → borrow a link from the
// address's pool → middleware chain → transport.Do → return the link.
// Links whose stream may be desynchronized are discarded, not returned.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dhole/client-urpc-test/loadbalance"
	"github.com/Dhole/client-urpc-test/message"
	"github.com/Dhole/client-urpc-test/middleware"
	"github.com/Dhole/client-urpc-test/protocol"
	"github.com/Dhole/client-urpc-test/registry"
	"github.com/Dhole/client-urpc-test/transport"
)

var (
	ErrNoDevice = errors.New("client: device not found")
	ErrClosed   = errors.New("client: closed")
)

type Client struct {
	registry    registry.Registry // find device instances from registry
	balancer    loadbalance.Balancer
	pools       map[string]*transport.Pool // link pool for each address
	mu          sync.Mutex
	closed      bool
	poolSize    int
	sendLen     int
	recvLen     int
	dialTimeout time.Duration
	dial        func(addr string) transport.Factory
	middlewares []middleware.Middleware
}

type Option func(*Client)

// WithPoolSize sets how many links are kept per address. Most devices
// accept a single link, so the default is 1.
func WithPoolSize(n int) Option {
	return func(c *Client) { c.poolSize = n }
}

// WithBufLens sets the per-link send and receive buffer sizes.
func WithBufLens(sendLen, recvLen int) Option {
	return func(c *Client) {
		c.sendLen = sendLen
		c.recvLen = recvLen
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithDialer replaces transport.Dialer, e.g. to reach in-process devices.
func WithDialer(dial func(addr string) transport.Factory) Option {
	return func(c *Client) { c.dial = dial }
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, opts ...Option) *Client {
	c := &Client{
		registry:    reg,
		balancer:    bal,
		pools:       make(map[string]*transport.Pool),
		poolSize:    1,
		sendLen:     transport.DefaultSendBufLen,
		recvLen:     transport.DefaultRecvBufLen,
		dialTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = func(addr string) transport.Factory {
			return transport.Dialer(addr, c.dialTimeout)
		}
	}
	return c
}

// Use appends middlewares to the chain run around every call.
func (c *Client) Use(mws ...middleware.Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, mws...)
}

// Close closes every pool. Calls in flight finish on their borrowed link,
// which is closed when it is returned.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for addr, pool := range c.pools {
		pool.Close()
		delete(c.pools, addr)
	}
	return nil
}

// Prune closes the pools of addresses no longer listed for any device the
// caller still uses. Feed it from registry.Watch.
func (c *Client) Prune(live []registry.DeviceInstance) {
	keep := make(map[string]bool, len(live))
	for _, inst := range live {
		keep[inst.Addr] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, pool := range c.pools {
		if !keep[addr] {
			pool.Close()
			delete(c.pools, addr)
		}
	}
}

func (c *Client) getPool(addr string) (*transport.Pool, []middleware.Middleware, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}

	pool, ok := c.pools[addr]
	if !ok {
		pool = transport.NewPool(addr, c.poolSize, c.sendLen, c.recvLen, c.dial(addr))
		c.pools[addr] = pool
	}
	return pool, c.middlewares, nil
}

func (c *Client) pick(device string) (*registry.DeviceInstance, error) {
	instances, err := c.registry.Discover(device)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, device)
	}
	if keyed, ok := c.balancer.(loadbalance.KeyedBalancer); ok {
		return keyed.PickKey(device, instances)
	}
	return c.balancer.Pick(instances)
}

// Call sends one request of kind d to device and waits for the reply.
// buf is the outbound buffer; pass nil for kinds without one.
func Call[A, R any](ctx context.Context, c *Client, device string, d *message.Descriptor[A, R], arg A, buf []byte) (message.Reply[R], error) {
	var reply message.Reply[R]

	instance, err := c.pick(device)
	if err != nil {
		return reply, err
	}
	pool, mws, err := c.getPool(instance.Addr)
	if err != nil {
		return reply, err
	}

	call := &middleware.CallInfo{
		Device:  device,
		Addr:    instance.Addr,
		Request: d.Name(),
		ID:      d.ID(),
	}

	handler := func(ctx context.Context, call *middleware.CallInfo) error {
		conn, err := pool.Get(ctx)
		if err != nil {
			return err
		}
		defer conn.Release()

		req := d.New(arg)
		if d.HasRequestBuf() || buf != nil {
			req = d.NewWithBuf(arg, buf)
		}

		reply, err = transport.Do(ctx, conn.Conn, req)
		if errors.Is(err, protocol.ErrTransport) || errors.Is(err, protocol.ErrUnexpectedReply) {
			conn.MarkUnusable()
		}
		return err
	}

	if err := middleware.Chain(mws...)(handler)(ctx, call); err != nil {
		return message.Reply[R]{}, err
	}
	return reply, nil
}
