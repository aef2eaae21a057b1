// Package devicetest provides a simulated uRPC device for tests.
//
// A Device answers requests by id, one at a time, over any io.ReadWriter:
//
//	read request header → read argLen+bufLen bytes → handler → write reply frame
//
// Pipe gives an in-memory link (net.Pipe); Listen serves TCP the way a
// serial-to-TCP bridge would. ReplyHook and Chunk let tests corrupt or
// fragment replies.
package devicetest

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dhole/client-urpc-test/protocol"
)

// Device is a simulated uRPC device.
type Device struct {
	mu       sync.Mutex
	handlers map[protocol.ID]*handler
	listener net.Listener
	wg       sync.WaitGroup // Tracks serving links for Shutdown
	shutdown atomic.Bool
	requests atomic.Int64

	// ReplyHook, if set, may rewrite each reply frame before it is written.
	ReplyHook func(frame []byte) []byte
	// Chunk, if positive, splits every reply into writes of at most Chunk bytes.
	Chunk int
}

func NewDevice() *Device {
	return &Device{handlers: make(map[protocol.ID]*handler)}
}

// Requests returns how many requests the device has read.
func (dev *Device) Requests() int64 {
	return dev.requests.Load()
}

// Serve answers requests on rw until it reaches EOF or fails.
func (dev *Device) Serve(rw io.ReadWriter) error {
	headerBuf := make([]byte, protocol.ReqHeaderLen)
	for {
		if _, err := io.ReadFull(rw, headerBuf); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		header, err := protocol.ParseRequestHeader(headerBuf)
		if err != nil {
			return err
		}

		body := make([]byte, header.BodyLen())
		if _, err := io.ReadFull(rw, body); err != nil {
			return err
		}
		dev.requests.Add(1)

		frame := dev.dispatch(header, body)
		if dev.ReplyHook != nil {
			frame = dev.ReplyHook(frame)
		}
		if err := dev.write(rw, frame); err != nil {
			return err
		}
	}
}

func (dev *Device) write(w io.Writer, frame []byte) error {
	chunk := dev.Chunk
	if chunk <= 0 {
		chunk = len(frame)
	}
	for len(frame) > 0 {
		n := min(chunk, len(frame))
		if _, err := w.Write(frame[:n]); err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

// Pipe returns the client end of an in-memory link served by the device.
// Closing it stops the serving goroutine.
func (dev *Device) Pipe() net.Conn {
	client, device := net.Pipe()
	dev.wg.Add(1)
	go func() {
		defer dev.wg.Done()
		defer device.Close()
		dev.Serve(device)
	}()
	return client
}

// Listen starts serving TCP on address and returns the bound address.
// Each accepted connection is an independent link with its own session.
func (dev *Device) Listen(network, address string) (net.Addr, error) {
	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	dev.listener = listener

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if !dev.shutdown.Load() {
					log.Printf("devicetest: accept: %v", err)
				}
				return
			}
			dev.wg.Add(1)
			go func() {
				defer dev.wg.Done()
				defer conn.Close()
				dev.Serve(conn)
			}()
		}
	}()
	return listener.Addr(), nil
}

// Shutdown stops accepting connections and waits for links to finish.
func (dev *Device) Shutdown(timeout time.Duration) error {
	dev.shutdown.Store(true)
	if dev.listener != nil {
		dev.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		dev.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for device links to close")
	}
}
