package client

import (
	"context"
	"testing"
	"time"

	"github.com/Dhole/client-urpc-test/codec"
	"github.com/Dhole/client-urpc-test/devicetest"
	"github.com/Dhole/client-urpc-test/loadbalance"
	"github.com/Dhole/client-urpc-test/registry"
)

// ---- Setup 公共函数 ----

func setupDeviceAndClient(b *testing.B, poolSize int) (*devicetest.Device, *Client) {
	dev := newTestDevice()
	addr, err := dev.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatal(err)
	}

	reg := registry.NewStaticRegistry()
	reg.Register("board", registry.DeviceInstance{Addr: "tcp://" + addr.String()}, 0)

	cli := NewClient(reg, &loadbalance.RoundRobinBalancer{}, WithPoolSize(poolSize))
	b.Cleanup(func() {
		cli.Close()
		dev.Shutdown(3 * time.Second)
	})
	return dev, cli
}

// 场景1: 单 goroutine 串行调用
func BenchmarkSerialCall(b *testing.B) {
	_, cli := setupDeviceAndClient(b, 1)
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := Call(ctx, cli, "board", Add, AddArgs{1, 2}, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// 场景2: 多 goroutine 并发调用，每条链路同一时刻只有一个请求
func BenchmarkConcurrentCall(b *testing.B) {
	_, cli := setupDeviceAndClient(b, 4)
	ctx := context.Background()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := Call(ctx, cli, "board", Add, AddArgs{1, 2}, nil); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// 场景3: 定长负载编解码（不走网络，纯 codec）
func BenchmarkCodecBinary(b *testing.B) {
	cdc := codec.GetCodec(codec.CodecTypeLittleEndian)
	buf := make([]byte, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cdc.Encode(buf, AddArgs{1, 2})
		var out AddArgs
		cdc.Decode(buf, &out)
	}
}
