// Command dvhostd runs the dvhost runtime host: the config tree, the wire
// protocol server, the module registry, and the mainloop driver, wired
// together and driven to orderly shutdown by SIGINT/SIGTERM.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dvhost/dvhost/confnode"
	"github.com/dvhost/dvhost/confserver"
	"github.com/dvhost/dvhost/driver"
	"github.com/dvhost/dvhost/moduleinfo"
	"github.com/dvhost/dvhost/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath(), "path to an XML config snapshot to load at startup")
	addr := flag.String("addr", confserver.DefaultAddr, "config server listen address")
	searchPaths := flag.String("modules", "", "comma-separated directories to scan for dynamic module libraries")
	tickInterval := flag.Duration("tick", 10*time.Millisecond, "mainloop tick interval")
	tlsCert := flag.String("tls-cert", "", "TLS server certificate file (enables TLS)")
	tlsKey := flag.String("tls-key", "", "TLS server key file")
	tlsCA := flag.String("tls-ca", "", "TLS client CA file (enables mutual TLS)")
	logLevel := flag.Int("log-level", int(types.LogLevelInfo), "0=Off 1=Error 2=Warning 3=Info 4=Debug")
	flag.Parse()

	logger := types.NewLevelLogger("dvhostd", types.LogLevel(*logLevel))

	tree := confnode.NewTree(confnode.WithLogger(logger))
	populateSystemTree(tree, *addr)

	if *configPath != "" {
		if f, err := os.Open(*configPath); err == nil {
			err := tree.Root().ImportXML(f, true, false)
			f.Close()
			if err != nil {
				logger.Errorf("importing config %s: %v", *configPath, err)
			}
		}
	}

	registry := moduleinfo.Default
	if *searchPaths != "" {
		loader := moduleinfo.NewLoader(registry, logger)
		if err := loader.Discover(splitCSV(*searchPaths)); err != nil {
			logger.Errorf("discovering module libraries: %v", err)
		}
	}
	registry.PopulateSystemTree(tree.Root().AddChild("system"))

	drv := driver.New(logger)

	var opts []confserver.Option
	opts = append(opts, confserver.WithAddr(*addr), confserver.WithLogger(logger))
	if *tlsCert != "" {
		opts = append(opts, confserver.WithTLS(*tlsCert, *tlsKey, *tlsCA))
	}
	server := confserver.New(tree, registry, drv, opts...)
	if err := server.Listen(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	tree.Start()
	defer tree.Stop()

	root := tree.Root()
	root.CreateAttr("running", types.BoolValue(true), types.BoolRange(), types.FlagNormal, "process-wide run flag; false triggers orderly shutdown")

	stopMainloop := make(chan struct{})
	mainloopDone := make(chan struct{})
	go runMainloop(drv, root, *tickInterval, stopMainloop, mainloopDone, logger)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
		_ = root.PutAttr("running", types.TypeBool, types.BoolValue(false), false)
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("config server: %v", err)
			return 1
		}
	}

	close(stopMainloop)
	<-mainloopDone
	_ = server.Close()
	return 0
}

// runMainloop ticks drv at interval until either stop is closed or root's
// running attribute is observed false.
func runMainloop(drv *driver.Driver, root types.Node, interval time.Duration, stop <-chan struct{}, done chan<- struct{}, logger types.Logger) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			running, err := root.GetAttr("running", types.TypeBool)
			if err == nil && !running.Bool() {
				return
			}
			if err := drv.Tick(); err != nil {
				logger.Errorf("mainloop tick: %v", err)
			}
		}
	}
}

func populateSystemTree(tree *confnode.Tree, addr string) {
	system := tree.Root().AddChild("system")
	serverNode := system.AddChild("server")
	serverNode.CreateAttr("ipAddress", types.StringValue(addr), types.FullStringRange(), types.FlagNormal, "config server listen address")
	serverNode.CreateAttr("tls", types.BoolValue(false), types.BoolRange(), types.FlagReadOnly, "whether TLS is enabled")
	serverNode.CreateAttr("tlsCertFile", types.StringValue(""), types.FullStringRange(), types.FlagReadOnly, "")
	serverNode.CreateAttr("tlsKeyFile", types.StringValue(""), types.FullStringRange(), types.FlagReadOnly, "")
	serverNode.CreateAttr("tlsClientVerification", types.BoolValue(false), types.BoolRange(), types.FlagReadOnly, "")
	serverNode.CreateAttr("tlsClientVerificationFile", types.StringValue(""), types.FullStringRange(), types.FlagReadOnly, "")

	loggerNode := system.AddChild("logger")
	loggerNode.CreateAttr("logLevel", types.I32Value(int32(types.LogLevelInfo)), types.I32Range(0, 4), types.FlagNormal, "")
	loggerNode.CreateAttr("logFile", types.StringValue(""), types.FullStringRange(), types.FlagNormal, "")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dvhost", "config.xml")
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
