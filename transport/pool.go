// Package transport also provides a connection pool (Pool).
//
// uRPC allows one outstanding request per link, so a connection is borrowed
// exclusively for a single call and returned afterwards. The pool is a
// buffered channel of idle connections; blocking on empty is built-in.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Factory opens a new byte stream to the pool's device.
type Factory func() (io.ReadWriteCloser, error)

// Pool manages reusable links to a single device address.
type Pool struct {
	mu       sync.Mutex
	conns    chan *PoolConn // Idle connections
	freed    chan struct{}  // Signalled when a discarded connection frees a slot
	addr     string
	maxConns int
	curConns int // Connections created and not yet discarded
	sendLen  int
	recvLen  int
	factory  Factory
	closed   bool
}

// PoolConn is a Conn borrowed from a Pool.
type PoolConn struct {
	*Conn
	pool     *Pool
	unusable bool // Set when the stream may be desynchronized
}

// Release returns the connection to its pool.
func (pc *PoolConn) Release() {
	pc.pool.Put(pc)
}

// MarkUnusable makes Put discard the connection instead of reusing it.
func (pc *PoolConn) MarkUnusable() {
	pc.unusable = true
}

// NewPool creates an empty pool; links are opened lazily on Get.
func NewPool(addr string, maxConns, sendLen, recvLen int, factory Factory) *Pool {
	if maxConns <= 0 {
		maxConns = 1
	}
	return &Pool{
		conns:    make(chan *PoolConn, maxConns),
		freed:    make(chan struct{}, maxConns),
		addr:     addr,
		maxConns: maxConns,
		sendLen:  sendLen,
		recvLen:  recvLen,
		factory:  factory,
	}
}

func (p *Pool) Addr() string {
	return p.addr
}

// Get borrows a connection.
// Strategy:
//  1. Take an idle connection if there is one
//  2. Otherwise open a new one while under the limit
//  3. Otherwise block until one is returned, a slot is freed (back to 2)
//     or ctx is done
func (p *Pool) Get(ctx context.Context) (*PoolConn, error) {
	for {
		select {
		case conn, ok := <-p.conns:
			if !ok {
				return nil, errPoolClosed
			}
			return conn, nil
		default:
		}

		conn, err := p.createNew()
		if err != errPoolExhausted {
			return conn, err
		}

		select {
		case conn, ok := <-p.conns:
			if !ok {
				return nil, errPoolClosed
			}
			return conn, nil
		case <-p.freed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Put returns a connection. Unusable connections are closed and forgotten.
func (p *Pool) Put(conn *PoolConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn.unusable || p.closed {
		conn.Close()
		p.curConns--
		p.signalFreed()
		return
	}
	p.conns <- conn
}

// Warm opens up to n connections in parallel and parks them as idle.
func (p *Pool) Warm(ctx context.Context, n int) error {
	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			conn, err := p.createNew()
			if err == errPoolExhausted {
				return nil
			}
			if err != nil {
				return err
			}
			p.Put(conn)
			return nil
		})
	}
	return g.Wait()
}

// Close shuts the pool and closes all idle connections. Borrowed connections
// are closed when they are put back.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.conns)
	for conn := range p.conns {
		conn.Close()
		p.curConns--
	}
	return nil
}

// signalFreed wakes one waiter in Get, if any, so it dials a replacement.
func (p *Pool) signalFreed() {
	select {
	case p.freed <- struct{}{}:
	default:
	}
}

var (
	errPoolExhausted = errors.New("connection pool exhausted")
	errPoolClosed    = errors.New("connection pool closed")
)

// createNew reserves a slot under the mutex, then dials outside it so a slow
// device does not block Put.
func (p *Pool) createNew() (*PoolConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errPoolClosed
	}
	if p.curConns >= p.maxConns {
		p.mu.Unlock()
		return nil, errPoolExhausted
	}
	p.curConns++
	p.mu.Unlock()

	stream, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.curConns--
		p.signalFreed()
		p.mu.Unlock()
		return nil, fmt.Errorf("dial %s: %w", p.addr, err)
	}

	return &PoolConn{
		Conn: NewConn(stream, p.sendLen, p.recvLen),
		pool: p,
	}, nil
}
