// SPDX-License-Identifier: MPL-2.0

// Package registry is the host side of the federation. A Registry owns the
// host's remote clients, synchronizes their manifests, negotiates shared
// dependency versions across all participants, and resolves module
// references through a retrying, deduplicating loader.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dominikbraun/graph"
	"github.com/sourcegraph/conc/pool"

	"fedkit/internal/loader"
	"fedkit/internal/manifest"
	"fedkit/internal/remote"
	"fedkit/internal/share"
	"fedkit/pkg/fedfile"
)

// maxSyncConcurrency bounds parallel manifest fetches during Sync.
const maxSyncConcurrency = 8

var (
	// ErrUnknownRemote is returned when a module reference names a remote
	// the host does not declare.
	ErrUnknownRemote = errors.New("unknown remote")
	// ErrModuleNotExposed is returned when a synced remote does not expose
	// the requested module.
	ErrModuleNotExposed = errors.New("module not exposed by remote")
	// ErrNotSynced is returned when Resolve is called before a successful
	// Sync.
	ErrNotSynced = errors.New("registry not synced")
	// ErrRemoteCycle is the sentinel for federation-graph cycles.
	ErrRemoteCycle = errors.New("remote dependency cycle")
)

type (
	// Options configures a Registry.
	Options struct {
		// Loader configures retry, backoff, and slow-load behavior for
		// module resolution.
		Loader loader.Options
		// Logger receives sync and resolution events. Nil gets a stderr
		// logger with a "registry" prefix.
		Logger *log.Logger
		// ClientOptions are applied to every remote client the registry
		// creates.
		ClientOptions []remote.Option
	}

	// Registry tracks the host's remotes and resolves module references.
	Registry struct {
		host   *fedfile.Fedfile
		logger *log.Logger
		loader *loader.Loader[[]byte]

		mu          sync.RWMutex
		clients     map[fedfile.AppName]*remote.Client
		manifests   map[fedfile.AppName]*manifest.Manifest
		resolutions []share.Resolution
		synced      bool
	}

	// CycleError reports a cycle in the federation graph, including the
	// edge that closed it.
	CycleError struct {
		// From and To are the endpoints of the rejected edge.
		From, To fedfile.AppName
	}
)

// Error implements the error interface for CycleError.
func (e *CycleError) Error() string {
	return fmt.Sprintf("remote dependency cycle: adding edge %s -> %s closes a loop", e.From, e.To)
}

// Unwrap returns ErrRemoteCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrRemoteCycle }

// New creates a registry for a host (or hybrid) app. The fedfile must
// already be validated.
func New(host *fedfile.Fedfile, opts Options) (*Registry, error) {
	if !host.Role.ConsumesRemotes() {
		return nil, fmt.Errorf("app %q has role %q and cannot consume remotes", host.Name, host.Role)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "registry"})
	}

	r := &Registry{
		host:      host,
		logger:    logger,
		loader:    loader.New[[]byte](opts.Loader),
		clients:   make(map[fedfile.AppName]*remote.Client, len(host.Remotes)),
		manifests: make(map[fedfile.AppName]*manifest.Manifest, len(host.Remotes)),
	}

	for _, ref := range host.Remotes {
		c, err := remote.ClientForRef(ref, opts.ClientOptions...)
		if err != nil {
			return nil, fmt.Errorf("remote %q: %w", ref.Name, err)
		}
		r.clients[ref.Name] = c
	}

	return r, nil
}

// Sync fetches every remote's manifest in parallel, rejects cyclic
// federation graphs, and renegotiates shared dependency versions. A failed
// Sync leaves the previous state intact.
func (r *Registry) Sync(ctx context.Context) error {
	r.mu.RLock()
	clients := make(map[fedfile.AppName]*remote.Client, len(r.clients))
	for name, c := range r.clients {
		clients[name] = c
	}
	r.mu.RUnlock()

	var (
		fetchMu   sync.Mutex
		manifests = make(map[fedfile.AppName]*manifest.Manifest, len(clients))
	)

	p := pool.New().WithMaxGoroutines(maxSyncConcurrency).WithErrors().WithContext(ctx)
	for name, c := range clients {
		name, c := name, c
		p.Go(func(ctx context.Context) error {
			m, err := c.Manifest(ctx)
			if err != nil {
				return fmt.Errorf("sync remote %q: %w", name, err)
			}
			if m.Name != name {
				return fmt.Errorf("sync remote %q: manifest names itself %q", name, m.Name)
			}
			fetchMu.Lock()
			manifests[name] = m
			fetchMu.Unlock()
			r.logger.Debug("fetched manifest", "remote", name, "exposes", len(m.Exposes))
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	if err := checkCycles(r.host, manifests); err != nil {
		return err
	}

	resolutions, err := share.Negotiate(collectTerms(r.host, manifests))
	if err != nil {
		return err
	}
	for _, res := range resolutions {
		if len(res.Unsatisfied) > 0 {
			r.logger.Warn("shared version does not satisfy all participants",
				"dep", res.Dep, "version", res.Version, "unsatisfied", strings.Join(res.Unsatisfied, ","))
		}
	}

	r.mu.Lock()
	r.manifests = manifests
	r.resolutions = resolutions
	r.synced = true
	r.mu.Unlock()

	r.logger.Info("sync complete", "remotes", len(manifests), "shared", len(resolutions))
	return nil
}

// checkCycles builds the federation graph (host plus every remote each
// manifest declares) and rejects it if any edge closes a loop.
func checkCycles(host *fedfile.Fedfile, manifests map[fedfile.AppName]*manifest.Manifest) error {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	addVertex := func(name fedfile.AppName) {
		// Duplicate vertices are fine; the graph rejects them silently.
		_ = g.AddVertex(string(name))
	}

	addVertex(host.Name)
	for name, m := range manifests {
		addVertex(name)
		for _, ref := range m.Remotes {
			addVertex(ref.Name)
		}
	}

	addEdge := func(from, to fedfile.AppName) error {
		err := g.AddEdge(string(from), string(to))
		switch {
		case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			return nil
		case errors.Is(err, graph.ErrEdgeCreatesCycle):
			return &CycleError{From: from, To: to}
		default:
			return fmt.Errorf("federation graph: edge %s -> %s: %w", from, to, err)
		}
	}

	for _, ref := range host.Remotes {
		if err := addEdge(host.Name, ref.Name); err != nil {
			return err
		}
	}
	for name, m := range manifests {
		for _, ref := range m.Remotes {
			if err := addEdge(name, ref.Name); err != nil {
				return err
			}
		}
	}

	return nil
}

// collectTerms gathers shared dependency terms from the host's fedfile and
// every synced manifest.
func collectTerms(host *fedfile.Fedfile, manifests map[fedfile.AppName]*manifest.Manifest) []share.Term {
	var terms []share.Term
	for _, dep := range host.Shared {
		terms = append(terms, share.Term{
			Source:      string(host.Name),
			Dep:         dep.Name,
			Requirement: share.Requirement(dep.Requirement),
			Offers:      dep.Version,
			Singleton:   dep.Singleton,
			Strict:      dep.StrictVersion,
		})
	}

	// Deterministic order so negotiation output is stable across syncs.
	names := make([]fedfile.AppName, 0, len(manifests))
	for name := range manifests {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		for _, term := range manifests[name].Shared {
			terms = append(terms, share.Term{
				Source:      string(name),
				Dep:         term.Name,
				Requirement: share.Requirement(term.Requirement),
				Offers:      term.Version,
				Singleton:   term.Singleton,
				Strict:      term.StrictVersion,
			})
		}
	}

	return terms
}

// Resolve fetches the chunk bytes for a "remote/Module" reference.
// Concurrent resolves of the same reference share one fetch, transient
// failures are retried with exponential backoff, and successful chunks are
// cached until Invalidate.
func (r *Registry) Resolve(ctx context.Context, ref string) ([]byte, error) {
	remoteName, moduleName, err := SplitRef(ref)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	synced := r.synced
	c := r.clients[remoteName]
	m := r.manifests[remoteName]
	r.mu.RUnlock()

	if c == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRemote, remoteName)
	}
	if !synced || m == nil {
		return nil, fmt.Errorf("%w: remote %q", ErrNotSynced, remoteName)
	}

	exp := m.FindExpose(moduleName)
	if exp == nil {
		return nil, fmt.Errorf("%w: %q does not expose %q", ErrModuleNotExposed, remoteName, moduleName)
	}

	return r.loader.Load(ctx, ref, func(ctx context.Context) ([]byte, error) {
		return c.Module(ctx, *exp)
	})
}

// SplitRef splits a "remote/Module" reference and validates both halves.
// The module half may itself contain slashes ("cart/widgets/Total").
func SplitRef(ref string) (fedfile.AppName, fedfile.ModuleName, error) {
	idx := strings.Index(ref, "/")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", fmt.Errorf("module reference %q: want \"remote/Module\"", ref)
	}

	remoteName := fedfile.AppName(ref[:idx])
	moduleName := fedfile.ModuleName(ref[idx+1:])
	if ok, errs := remoteName.IsValid(); !ok {
		return "", "", fmt.Errorf("module reference %q: %v", ref, errs[0])
	}
	if ok, errs := moduleName.IsValid(); !ok {
		return "", "", fmt.Errorf("module reference %q: %v", ref, errs[0])
	}
	return remoteName, moduleName, nil
}

// Manifest returns the synced manifest for a remote, or nil.
func (r *Registry) Manifest(name fedfile.AppName) *manifest.Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifests[name]
}

// Resolutions returns the shared dependency outcomes from the last Sync.
func (r *Registry) Resolutions() []share.Resolution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]share.Resolution, len(r.resolutions))
	copy(out, r.resolutions)
	return out
}

// Remotes returns the declared remote names in deterministic order.
func (r *Registry) Remotes() []fedfile.AppName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]fedfile.AppName, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Healthy probes a remote's health endpoint.
func (r *Registry) Healthy(ctx context.Context, name fedfile.AppName) (bool, error) {
	r.mu.RLock()
	c := r.clients[name]
	r.mu.RUnlock()
	if c == nil {
		return false, fmt.Errorf("%w: %q", ErrUnknownRemote, name)
	}
	return c.Healthy(ctx), nil
}

// Invalidate drops one cached module so the next Resolve refetches it.
func (r *Registry) Invalidate(ref string) { r.loader.Invalidate(ref) }

// InvalidateAll drops every cached module.
func (r *Registry) InvalidateAll() { r.loader.InvalidateAll() }
