package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/database64128/xvpn-go/conn"
	"github.com/database64128/xvpn-go/jsonhelper"
	"github.com/database64128/xvpn-go/logging"
	"github.com/database64128/xvpn-go/service"
	"github.com/database64128/xvpn-go/tslog"
	"github.com/database64128/xvpn-go/tundev"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	testConf bool
	confPath string
	zapConf  string
	logLevel zapcore.Level

	localAddress string
	peerAddress  string
	key          string
	deviceName   string
	cidr4        string
	cidr6        string
	obfs         bool
	debug        bool
	pumpFailure  string
)

func init() {
	flag.BoolVar(&testConf, "testConf", false, "Test the configuration without starting the services")
	flag.StringVar(&confPath, "confPath", "", "Path to JSON configuration file. When set, the single tunnel flags are ignored")
	flag.StringVar(&zapConf, "zapConf", logging.DefaultPreset, "Preset name or path to JSON configuration file for building the zap logger.\nAvailable presets: console (default), console-nocolor, console-notime, systemd, production, development")
	flag.TextVar(&logLevel, "logLevel", zapcore.InvalidLevel, "Override the logger configuration's log level.\nAvailable levels: debug, info, warn, error, dpanic, panic, fatal")

	flag.StringVar(&localAddress, "local", service.DefaultListenAddress, "Local listen address")
	flag.StringVar(&peerAddress, "peer", "192.168.100.18:12353", "Peer node address")
	flag.StringVar(&key, "key", "abcdefghijklmnopqrstuvwxyz", "Obfuscation key, used when -obfs is set")
	flag.StringVar(&deviceName, "dev", tundev.DefaultName, "TUN device name")
	flag.StringVar(&cidr4, "cidr4", "172.16.0.1/24", "IPv4 address and prefix of the TUN device. Empty to skip")
	flag.StringVar(&cidr6, "cidr6", "fced:9999:9999::1/64", "IPv6 address and prefix of the TUN device. Empty to skip")
	flag.BoolVar(&obfs, "obfs", false, "Enable XOR obfuscation")
	flag.BoolVar(&debug, "debug", false, "Log every relayed packet. Same as -logLevel debug")
	flag.StringVar(&pumpFailure, "pumpFailure", service.PumpFailureStopTunnel, "What to do when one direction fails: stop-tunnel or isolate")

	// Short aliases of the original command line.
	flag.StringVar(&localAddress, "l", service.DefaultListenAddress, "Shorthand for -local")
	flag.StringVar(&peerAddress, "p", "192.168.100.18:12353", "Shorthand for -peer")
	flag.StringVar(&key, "k", "abcdefghijklmnopqrstuvwxyz", "Shorthand for -key")
	flag.BoolVar(&debug, "v", false, "Shorthand for -debug")
}

func main() {
	flag.Parse()

	if debug && logLevel == zapcore.InvalidLevel {
		logLevel = zapcore.DebugLevel
	}

	logger, err := logging.NewZapLogger(zapConf, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sc, err := loadConfig()
	if err != nil {
		logger.Fatal("Failed to load config",
			zap.String("confPath", confPath),
			zap.Error(err),
		)
	}

	pprofLogger, err := newPprofLogger()
	if err != nil {
		logger.Fatal("Failed to build pprof logger", zap.Error(err))
	}

	m, err := sc.Manager(logger, pprofLogger, nil)
	if err != nil {
		logger.Fatal("Failed to create service manager",
			zap.String("confPath", confPath),
			zap.Error(err),
		)
	}

	if testConf {
		logger.Info("Config test OK", zap.String("confPath", confPath))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("Received exit signal", zap.Stringer("signal", sig))
		signal.Stop(sigCh)
		cancel()
	}()

	if err = m.Start(ctx); err != nil {
		logger.Fatal("Failed to start services",
			zap.String("confPath", confPath),
			zap.Error(err),
		)
	}

	err = m.Wait(ctx)
	m.Stop()

	if err != nil {
		logger.Error("Tunnel failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, or builds a single tunnel from flags.
func loadConfig() (service.Config, error) {
	var sc service.Config

	if confPath != "" {
		if err := jsonhelper.OpenAndDecodeDisallowUnknownFields(confPath, &sc); err != nil {
			return sc, err
		}
		return sc, nil
	}

	peer, err := conn.ParseAddr(peerAddress)
	if err != nil {
		return sc, fmt.Errorf("bad peer address: %w", err)
	}

	device := tundev.Config{Name: deviceName}
	if cidr4 != "" {
		if device.IPv4, err = netip.ParsePrefix(cidr4); err != nil {
			return sc, fmt.Errorf("bad cidr4: %w", err)
		}
	}
	if cidr6 != "" {
		if device.IPv6, err = netip.ParsePrefix(cidr6); err != nil {
			return sc, fmt.Errorf("bad cidr6: %w", err)
		}
	}

	sc.Tunnels = []service.TunnelConfig{
		{
			Name:          deviceName,
			ListenAddress: localAddress,
			PeerAddress:   peer,
			Obfs:          obfs,
			Key:           key,
			Device:        device,
			PumpFailure:   pumpFailure,
		},
	}
	return sc, nil
}

func newPprofLogger() (*tslog.Logger, error) {
	c := tslog.Config{Level: slog.LevelInfo}
	if logLevel == zapcore.DebugLevel {
		c.Level = slog.LevelDebug
	}
	return c.NewLogger(os.Stderr)
}
