// SPDX-License-Identifier: MPL-2.0

// Package devserver runs a remote's local dev server: it builds the app's
// dist output, generates the remote entry manifest, and serves manifest and
// chunks over localhost HTTP. In watch mode it rebuilds and regenerates the
// manifest when source files change.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"fedkit/internal/manifest"
	"fedkit/pkg/fedfile"
)

const (
	// DefaultPort is the port a remote serves on when its fedfile does not
	// pick one.
	DefaultPort = 4174

	// DefaultDistDir is the build output directory used when the fedfile
	// does not set serve.dist_dir.
	DefaultDistDir = "dist"

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 5 * time.Second
)

// ErrServerClosed is returned by Wait after a clean Stop.
var ErrServerClosed = http.ErrServerClosed

type (
	// Options configures a Server.
	Options struct {
		// Port overrides the fedfile's serve port. Zero keeps the fedfile
		// value (or DefaultPort). Use -1 for an OS-assigned port.
		Port int
		// Logger receives serve and rebuild events. Nil gets a stderr
		// logger with a "devserver" prefix.
		Logger *log.Logger
	}

	// Server serves one remote's manifest and chunks on localhost.
	Server struct {
		ff      *fedfile.Fedfile
		distDir string
		logger  *log.Logger

		httpServer *http.Server
		listener   net.Listener

		mu       sync.RWMutex
		manifest *manifest.Manifest
		serving  bool

		errCh chan error
	}
)

// New creates a server for a remote (or hybrid) app and binds its listener.
// The port is taken from opts, then the fedfile, then DefaultPort. The
// manifest is not generated until Refresh or Start.
func New(ff *fedfile.Fedfile, opts Options) (*Server, error) {
	if !ff.Role.ServesModules() {
		return nil, fmt.Errorf("app %q has role %q and exposes nothing to serve", ff.Name, ff.Role)
	}

	port := opts.Port
	if port == 0 {
		port = ff.Serve.Port
	}
	if port == 0 {
		port = DefaultPort
	}
	if port < 0 {
		port = 0 // OS-assigned
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "devserver"})
	}

	s := &Server{
		ff:       ff,
		distDir:  ff.DistDir(DefaultDistDir),
		logger:   logger,
		listener: listener,
		errCh:    make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(manifest.Path, s.handleManifest)
	mux.HandleFunc(manifest.ModulePrefix, s.handleModule)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Refresh regenerates the manifest from the current dist dir contents.
func (s *Server) Refresh() error {
	m, err := manifest.Build(s.ff, s.distDir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.manifest = m
	s.mu.Unlock()
	s.logger.Debug("manifest regenerated", "exposes", len(m.Exposes))
	return nil
}

// Start generates the manifest and begins accepting connections.
// Non-blocking; use Wait to observe serve errors.
func (s *Server) Start() error {
	if err := s.Refresh(); err != nil {
		return err
	}
	s.mu.Lock()
	s.serving = true
	s.mu.Unlock()
	go func() {
		s.errCh <- s.httpServer.Serve(s.listener)
	}()
	s.logger.Info("serving", "app", s.ff.Name, "url", s.URL())
	return nil
}

// Wait blocks until the server stops. Returns ErrServerClosed after Stop.
func (s *Server) Wait() error {
	return <-s.errCh
}

// Stop gracefully shuts down the server. Shutdown only closes listeners
// Serve has taken over, so when Start never ran (or failed before serving)
// the bound listener is closed directly.
func (s *Server) Stop() error {
	s.mu.RLock()
	serving := s.serving
	s.mu.RUnlock()
	if !serving {
		return s.listener.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Address returns the bound address, e.g. "127.0.0.1:4174".
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return "http://" + s.Address()
}

func (s *Server) current() *manifest.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m := s.current()
	if m == nil {
		http.Error(w, "manifest not generated", http.StatusServiceUnavailable)
		return
	}
	data, err := m.Encode()
	if err != nil {
		s.logger.Error("encode manifest", "err", err)
		http.Error(w, "encode manifest", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleModule serves chunk bytes by module name. The name is everything
// after the module prefix and may contain slashes.
func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m := s.current()
	if m == nil {
		http.Error(w, "manifest not generated", http.StatusServiceUnavailable)
		return
	}

	name := fedfile.ModuleName(strings.TrimPrefix(r.URL.Path, manifest.ModulePrefix))
	exp := m.FindExpose(name)
	if exp == nil {
		http.Error(w, fmt.Sprintf("module %q not exposed", name), http.StatusNotFound)
		return
	}

	path, err := s.chunkPath(exp.Path)
	if err != nil {
		s.logger.Error("resolve chunk path", "module", name, "err", err)
		http.Error(w, "chunk path outside dist dir", http.StatusForbidden)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error("read chunk", "module", name, "err", err)
		http.Error(w, "chunk unreadable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("X-Chunk-Digest", exp.Digest)
	_, _ = w.Write(data)
}

// chunkPath resolves a manifest-relative chunk path and rejects anything
// that escapes the dist dir. The fedfile validator already rejects escaping
// expose paths; this guards the serving side independently.
func (s *Server) chunkPath(rel string) (string, error) {
	absDist, err := filepath.Abs(s.distDir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(absDist, filepath.FromSlash(rel))
	if path != absDist && !strings.HasPrefix(path, absDist+string(filepath.Separator)) {
		return "", errors.New("path escapes dist dir")
	}
	return path, nil
}
