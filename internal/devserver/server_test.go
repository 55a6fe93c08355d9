// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"fedkit/internal/manifest"
	"fedkit/internal/remote"
	"fedkit/pkg/fedfile"
)

// remoteFixture writes a dist dir with one chunk and returns a fedfile
// serving it on an OS-assigned port.
func remoteFixture(t *testing.T, chunk []byte) *fedfile.Fedfile {
	t.Helper()

	dir := t.TempDir()
	distDir := filepath.Join(dir, "dist")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		t.Fatalf("mkdir dist: %v", err)
	}
	if err := os.WriteFile(filepath.Join(distDir, "cart.js"), chunk, 0o644); err != nil {
		t.Fatalf("write chunk: %v", err)
	}

	return &fedfile.Fedfile{
		Name: "cart",
		Role: fedfile.RoleRemote,
		Exposes: []fedfile.Expose{
			{Name: "Cart", Path: "cart.js"},
		},
		Serve:    fedfile.ServeConfig{DistDir: distDir},
		FilePath: filepath.Join(dir, fedfile.DefaultFileName),
	}
}

func startServer(t *testing.T, ff *fedfile.Fedfile) *Server {
	t.Helper()

	s, err := New(ff, Options{Port: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestNewRejectsHostRole(t *testing.T) {
	t.Parallel()

	ff := &fedfile.Fedfile{Name: "shell", Role: fedfile.RoleHost}
	if _, err := New(ff, Options{Port: -1}); err == nil {
		t.Fatal("New with host role: expected error")
	}
}

func TestServeManifestAndChunk(t *testing.T) {
	t.Parallel()

	chunk := []byte("export default function Cart() {}")
	s := startServer(t, remoteFixture(t, chunk))

	c, err := remote.NewClient(s.URL())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx := context.Background()
	m, err := c.Manifest(ctx)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if m.Name != "cart" || len(m.Exposes) != 1 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Exposes[0].Digest != manifest.Digest(chunk) {
		t.Errorf("digest = %q, want %q", m.Exposes[0].Digest, manifest.Digest(chunk))
	}

	got, err := c.Module(ctx, m.Exposes[0])
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if string(got) != string(chunk) {
		t.Errorf("chunk mismatch: got %q", got)
	}

	if !c.Healthy(ctx) {
		t.Error("Healthy = false")
	}
}

func TestServeUnknownModule(t *testing.T) {
	t.Parallel()

	s := startServer(t, remoteFixture(t, []byte("x")))

	resp, err := http.Get(s.URL() + manifest.ModuleURL("Checkout"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRefreshPicksUpNewChunkBytes(t *testing.T) {
	t.Parallel()

	chunk := []byte("export default 1")
	ff := remoteFixture(t, chunk)
	s := startServer(t, ff)

	c, err := remote.NewClient(s.URL())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	before, err := c.Manifest(ctx)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}

	updated := []byte("export default 2")
	chunkFile := filepath.Join(ff.DistDir(DefaultDistDir), "cart.js")
	if err := os.WriteFile(chunkFile, updated, 0o644); err != nil {
		t.Fatalf("rewrite chunk: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	after, err := c.Manifest(ctx)
	if err != nil {
		t.Fatalf("Manifest after refresh: %v", err)
	}
	if after.Exposes[0].Digest == before.Exposes[0].Digest {
		t.Error("digest unchanged after refresh")
	}
	if after.Exposes[0].Digest != manifest.Digest(updated) {
		t.Errorf("digest = %q, want %q", after.Exposes[0].Digest, manifest.Digest(updated))
	}
}

func TestStartFailsOnMissingChunk(t *testing.T) {
	t.Parallel()

	ff := remoteFixture(t, []byte("x"))
	ff.Exposes = append(ff.Exposes, fedfile.Expose{Name: "Ghost", Path: "ghost.js"})

	s, err := New(ff, Options{Port: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	if err := s.Start(); err == nil {
		t.Fatal("Start with missing chunk: expected error")
	}
}

func TestStopReleasesPortWhenStartFails(t *testing.T) {
	t.Parallel()

	ff := remoteFixture(t, []byte("x"))
	ff.Exposes = append(ff.Exposes, fedfile.Expose{Name: "Ghost", Path: "ghost.js"})

	s, err := New(ff, Options{Port: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr := s.Address()

	if err := s.Start(); err == nil {
		t.Fatal("Start with missing chunk: expected error")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// The listener must be released even though Serve never ran.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("port still bound after Stop: %v", err)
	}
	_ = ln.Close()
}

func TestChunkPathEscape(t *testing.T) {
	t.Parallel()

	s := startServer(t, remoteFixture(t, []byte("x")))
	if _, err := s.chunkPath("../secret"); err == nil {
		t.Fatal("chunkPath with escaping path: expected error")
	}
	if _, err := s.chunkPath("sub/ok.js"); err != nil {
		t.Fatalf("chunkPath with safe path: %v", err)
	}
}

func TestBuildRunner(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ff := &fedfile.Fedfile{
		Name:     "cart",
		Role:     fedfile.RoleRemote,
		Exposes:  []fedfile.Expose{{Name: "Cart", Path: "cart.js"}},
		Build:    fedfile.BuildConfig{Script: "mkdir -p dist\nprintf 'export default 1' > dist/cart.js\n"},
		FilePath: filepath.Join(dir, fedfile.DefaultFileName),
	}

	r, err := NewBuildRunner(ff)
	if err != nil {
		t.Fatalf("NewBuildRunner: %v", err)
	}
	r.Stdout = io.Discard
	r.Stderr = io.Discard

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dist", "cart.js"))
	if err != nil {
		t.Fatalf("read build output: %v", err)
	}
	if string(data) != "export default 1" {
		t.Errorf("build output = %q", data)
	}
}

func TestBuildRunnerExitStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ff := &fedfile.Fedfile{
		Name:     "cart",
		Role:     fedfile.RoleRemote,
		Build:    fedfile.BuildConfig{Script: "exit 3"},
		FilePath: filepath.Join(dir, fedfile.DefaultFileName),
	}

	r, err := NewBuildRunner(ff)
	if err != nil {
		t.Fatalf("NewBuildRunner: %v", err)
	}
	r.Stdout = io.Discard
	r.Stderr = io.Discard

	err = r.Run(context.Background())
	var be *BuildError
	if !errors.As(err, &be) || be.ExitCode != 3 {
		t.Fatalf("Run: got %v, want BuildError with exit 3", err)
	}
}

func TestBuildRunnerNilForNoScript(t *testing.T) {
	t.Parallel()

	ff := &fedfile.Fedfile{Name: "cart", Role: fedfile.RoleRemote}
	r, err := NewBuildRunner(ff)
	if err != nil {
		t.Fatalf("NewBuildRunner: %v", err)
	}
	if r != nil {
		t.Fatal("expected nil runner for empty build script")
	}
}

func TestBuildRunnerRejectsBadSyntax(t *testing.T) {
	t.Parallel()

	ff := &fedfile.Fedfile{
		Name:  "cart",
		Role:  fedfile.RoleRemote,
		Build: fedfile.BuildConfig{Script: "if then fi ((("},
	}
	if _, err := NewBuildRunner(ff); err == nil {
		t.Fatal("NewBuildRunner with broken script: expected error")
	}
}

func TestWatchPatternMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		patterns []string
		rel      string
		want     bool
	}{
		{nil, "src/Cart.jsx", true},
		{nil, "node_modules/react/index.js", false},
		{nil, "dist/cart.js", false},
		{[]string{"src/**/*.jsx"}, "src/Cart.jsx", true},
		{[]string{"src/**/*.jsx"}, "src/deep/Cart.jsx", true},
		{[]string{"src/**/*.jsx"}, "README.md", false},
		{[]string{"**/*.css"}, "styles/app.css", true},
	}

	for _, tt := range tests {
		if got := watchMatches(tt.patterns, tt.rel); got != tt.want {
			t.Errorf("watchMatches(%v, %q) = %v, want %v", tt.patterns, tt.rel, got, tt.want)
		}
	}
}

func TestNewDirectoriesAreWatchedDespiteFileGlobs(t *testing.T) {
	t.Parallel()

	ff := remoteFixture(t, []byte("x"))
	s, err := New(ff, Options{Port: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { _ = fsw.Close() })

	baseDir := ff.Dir()
	newDir := filepath.Join(baseDir, "src", "components")
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	// A bare directory path never matches a file glob, but the directory
	// must still join the watch so files created inside it are seen.
	patterns := []string{"src/**/*.jsx"}
	evt := fsnotify.Event{Name: newDir, Op: fsnotify.Create}
	if s.handleWatchEvent(fsw, baseDir, patterns, evt) {
		t.Error("directory creation alone should not trigger a rebuild")
	}

	watched := false
	for _, w := range fsw.WatchList() {
		if w == newDir {
			watched = true
		}
	}
	if !watched {
		t.Errorf("new directory %q not added to watch list %v", newDir, fsw.WatchList())
	}

	// Ignored directories stay out of the watch.
	ignoredDir := filepath.Join(baseDir, "node_modules", "react")
	if err := os.MkdirAll(ignoredDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if s.handleWatchEvent(fsw, baseDir, patterns, fsnotify.Event{Name: ignoredDir, Op: fsnotify.Create}) {
		t.Error("ignored directory creation should not trigger a rebuild")
	}
	for _, w := range fsw.WatchList() {
		if w == ignoredDir {
			t.Errorf("ignored directory %q joined the watch list", ignoredDir)
		}
	}
}
