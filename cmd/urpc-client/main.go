// Command urpc-client sends test requests to a uRPC device.
//
//	urpc-client [-s /dev/ttyACM0] [-b 9600] ping abcd
//	urpc-client -config client.yaml -device board add 3 4
//	urpc-client send_bytes hello
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Dhole/client-urpc-test/client"
	"github.com/Dhole/client-urpc-test/config"
	"github.com/Dhole/client-urpc-test/loadbalance"
	"github.com/Dhole/client-urpc-test/middleware"
	"github.com/Dhole/client-urpc-test/registry"
)

// directDevice names the -serial port when no -device is given.
const directDevice = "serial"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Printf("Error during operation: %v", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("urpc-client", flag.ContinueOnError)
	baud := fs.Int("baud", defaults.Baud, "Set the baud rate")
	fs.IntVar(baud, "b", defaults.Baud, "Set the baud rate (shorthand)")
	serialDev := fs.String("serial", defaults.Serial, "Set the serial device")
	fs.StringVar(serialDev, "s", defaults.Serial, "Set the serial device (shorthand)")
	configPath := fs.String("config", "", "YAML config file")
	device := fs.String("device", "", "Registry device name; empty talks to the serial device directly")
	verbose := fs.Bool("v", false, "Log every call")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: urpc-client [flags] ping <4 chars> | send_bytes <text> | add <a> <b>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil
	}

	cfg := defaults
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "b", "baud":
			cfg.Baud = *baud
		case "s", "serial":
			cfg.Serial = *serialDev
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg, name, closeReg, err := newRegistry(cfg, *device)
	if err != nil {
		return err
	}
	defer closeReg()

	opts := []client.Option{
		client.WithPoolSize(cfg.PoolSize),
		client.WithBufLens(cfg.SendBufLen, cfg.RecvBufLen),
	}
	if cfg.Timeout > 0 {
		// Serial ports take it as their read timeout
		opts = append(opts, client.WithDialTimeout(cfg.Timeout))
	}
	cli := client.NewClient(reg, loadbalance.ByName(cfg.Balancer), opts...)
	defer cli.Close()
	if *verbose {
		cli.Use(middleware.LoggingMiddleware())
	}
	if cfg.RateLimit != nil {
		cli.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Rate, cfg.RateLimit.Burst))
	}
	if cfg.Timeout > 0 {
		cli.Use(middleware.TimeOutMiddleware(cfg.Timeout))
	}

	return runCommand(context.Background(), cli, name, newRequests(cfg.Codec()), fs.Args(), out)
}

// newRegistry returns the registry to resolve name in. Without a device name
// the configured serial port is the only instance.
func newRegistry(cfg *config.Config, device string) (registry.Registry, string, func(), error) {
	if device == "" {
		reg := registry.NewStaticRegistry()
		reg.Register(directDevice, registry.DeviceInstance{Addr: cfg.SerialAddr(), Weight: 1}, 0)
		return reg, directDevice, func() {}, nil
	}

	if len(cfg.Etcd) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.Etcd, 5*time.Second)
		if err != nil {
			return nil, "", nil, fmt.Errorf("connect etcd: %w", err)
		}
		return reg, device, func() { reg.Close() }, nil
	}

	reg := registry.NewStaticRegistry()
	for name, insts := range cfg.Devices {
		for _, inst := range insts {
			reg.Register(name, registry.DeviceInstance{Addr: inst.Addr, Weight: inst.Weight, Version: inst.Version}, 0)
		}
	}
	return reg, device, func() {}, nil
}

// runCommand performs one subcommand. A failed call is printed, not returned:
// only setup and usage errors make the command exit non-zero.
func runCommand(ctx context.Context, cli *client.Client, device string, reqs *requests, args []string, out io.Writer) error {
	switch args[0] {
	case "ping":
		if len(args) < 2 || len(args[1]) < 4 {
			return errors.New("ping needs a 4 character argument")
		}
		var payload [4]byte
		copy(payload[:], args[1])
		reply, err := client.Call(ctx, cli, device, reqs.Ping, payload, nil)
		printResult(out, reply.Payload, err)

	case "send_bytes":
		if len(args) < 2 {
			return errors.New("send_bytes needs an argument")
		}
		reply, err := client.Call(ctx, cli, device, reqs.SendBytes, struct{}{}, []byte(args[1]))
		printResult(out, fmt.Sprintf("%q", reply.Buf), err)

	case "add":
		if len(args) < 3 {
			return errors.New("add needs two arguments")
		}
		a, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		b, err := strconv.ParseUint(args[2], 10, 8)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		reply, err := client.Call(ctx, cli, device, reqs.Add, AddArgs{uint8(a), uint8(b)}, nil)
		printResult(out, reply.Payload, err)

	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
	return nil
}

func printResult(out io.Writer, reply any, err error) {
	if err != nil {
		fmt.Fprintf(out, "Err: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Reply: %v\n", reply)
}
