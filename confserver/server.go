// Package confserver implements the config server: a TCP acceptor (plain or
// TLS) speaking the wire protocol over per-connection sockets, dispatching
// each request against a types.Tree under the tree's write lock and pushing
// asynchronous node/attribute change notifications to subscribed clients.
package confserver

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dvhost/dvhost/driver"
	"github.com/dvhost/dvhost/moduleinfo"
	"github.com/dvhost/dvhost/types"
)

// DefaultAddr is the default listen address: TCP port 4040.
const DefaultAddr = ":4040"

// Config configures a Server at construction time via functional options,
// following the same pattern as confnode.Option.
type Config struct {
	addr        string
	logger      types.Logger
	tlsCertFile string
	tlsKeyFile  string
	tlsCAFile   string
}

// Option configures a Server.
type Option func(*Config)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) { c.addr = addr }
}

// WithLogger installs a logger for connection lifecycle and dispatch errors.
func WithLogger(l types.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithTLS enables TLS using the given server certificate and key. caFile, if
// non-empty, enables mutual TLS: client certificates are verified against
// it.
func WithTLS(certFile, keyFile, caFile string) Option {
	return func(c *Config) { c.tlsCertFile, c.tlsKeyFile, c.tlsCAFile = certFile, keyFile, caFile }
}

// Server accepts config-protocol connections and dispatches their requests
// against a single types.Tree, module registry, and driver.
type Server struct {
	cfg      Config
	tree     types.Tree
	registry *moduleinfo.Registry
	drv      *driver.Driver

	listener net.Listener

	dispatchMu sync.Mutex // serializes mutating actions across all connections

	nextClientID atomic.Uint64

	push *pushHub

	wg sync.WaitGroup
}

// New constructs a Server bound to tree, registry, and drv, applying opts.
func New(tree types.Tree, registry *moduleinfo.Registry, drv *driver.Driver, opts ...Option) *Server {
	cfg := Config{addr: DefaultAddr, logger: types.NopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{cfg: cfg, tree: tree, registry: registry, drv: drv, push: newPushHub()}
	s.installTreeListeners()
	return s
}

// installTreeListeners hooks the tree's global listeners so every mutation,
// regardless of which connection (or internal caller) produced it, is
// broadcast to push clients in the order it was applied.
func (s *Server) installTreeListeners() {
	s.tree.SetGlobalNodeListener(func(event types.NodeEvent, path, childName string) {
		s.push.broadcastNode(event, path, childName)
	})
	s.tree.SetGlobalAttrListener(func(event types.AttrEvent, path, key string, t types.Type, value types.Value) {
		s.push.broadcastAttr(event, path, key, t, value)
		s.wireModuleInput(path, key, value)
	})
}

// wireModuleInput watches for writes to a module instance's "moduleInput"
// attribute — a string naming the peer module it should consume from — and
// reflects them into the driver's producer->consumer graph.
func (s *Server) wireModuleInput(path, key string, value types.Value) {
	if key != "moduleInput" {
		return
	}
	name := moduleNameFromPath(path)
	if name == "" {
		return
	}
	peer := value.Str()
	if peer == "" {
		return
	}
	if err := s.drv.Connect(peer, name); err != nil {
		s.cfg.logger.Warnf("wiring %s <- %s: %v", name, peer, err)
	}
}

// moduleNameFromPath extracts <name> from a "/mainloop/<name>/" path,
// returning "" for anything else (nested module subtrees, /system/, etc.).
func moduleNameFromPath(path string) string {
	const prefix = "/mainloop/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

func (s *Server) tlsConfig() (*tls.Config, error) {
	if s.cfg.tlsCertFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(s.cfg.tlsCertFile, s.cfg.tlsKeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: loading server cert/key: %v", types.ErrTLSLoadFailed, err)
	}
	tc := &tls.Config{Certificates: []tls.Certificate{cert}}
	if s.cfg.tlsCAFile != "" {
		pem, err := os.ReadFile(s.cfg.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: reading client CA file: %v", types.ErrTLSLoadFailed, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: client CA file has no valid certificates", types.ErrTLSLoadFailed)
		}
		tc.ClientCAs = pool
		tc.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tc, nil
}

// Listen opens the listener without yet accepting connections, so callers
// (and tests binding an ephemeral port) can read Addr() before Serve blocks.
func (s *Server) Listen() error {
	tc, err := s.tlsConfig()
	if err != nil {
		return err
	}

	var ln net.Listener
	if tc != nil {
		ln, err = tls.Listen("tcp", s.cfg.addr, tc)
	} else {
		ln, err = net.Listen("tcp", s.cfg.addr)
	}
	if err != nil {
		return fmt.Errorf("%w: listening on %s: %v", types.ErrTransport, s.cfg.addr, err)
	}
	s.listener = ln
	s.cfg.logger.Infof("config server listening on %s (tls=%v)", ln.Addr(), tc != nil)
	return nil
}

// Addr returns the bound listen address; valid only after Listen succeeds.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Close is called, spawning one goroutine
// per connection. Call Listen first.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			return fmt.Errorf("%w: accept: %v", types.ErrTransport, err)
		}
		id := s.nextClientID.Add(1)
		c := newConn(s, conn, id)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve()
		}()
	}
}

// ListenAndServe is the common-case convenience wrapper around Listen
// followed by Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Close stops accepting new connections and waits for in-flight connection
// goroutines to exit.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
