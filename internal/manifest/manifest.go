// SPDX-License-Identifier: MPL-2.0

// Package manifest defines the remote entry manifest: the JSON document a
// remote's dev server generates and a host fetches before it can import
// from that remote. It lists the exposed modules (with content digests),
// the remote's own remote references, and its shared dependency terms.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fedkit/pkg/fedfile"
)

const (
	// Path is the well-known HTTP path the manifest is served at.
	Path = "/remote-entry.json"

	// ModulePrefix is the HTTP path prefix chunks are served under.
	// A module named "widgets/Cart" is fetched from "/modules/widgets/Cart".
	ModulePrefix = "/modules/"

	// SchemaVersion is the current manifest schema version. Hosts reject
	// manifests with a different major version.
	SchemaVersion = "1"
)

var (
	// ErrInvalidManifest is the sentinel error for malformed inbound manifests.
	ErrInvalidManifest = errors.New("invalid remote entry manifest")
	// ErrSchemaVersion is returned when a manifest's schema version is not
	// understood by this build.
	ErrSchemaVersion = errors.New("unsupported manifest schema version")
)

type (
	// Manifest is the remote entry document.
	Manifest struct {
		// Schema is the manifest schema version (SchemaVersion).
		Schema string `json:"schema"`
		// Name is the remote's federation name.
		Name fedfile.AppName `json:"name"`
		// Exposes lists the modules this remote serves.
		Exposes []ExposedModule `json:"exposes"`
		// Remotes lists remotes this remote consumes itself. Hosts use the
		// list for federation-graph cycle detection.
		Remotes []RemoteRef `json:"remotes,omitempty"`
		// Shared lists the remote's shared dependency terms.
		Shared []SharedTerm `json:"shared,omitempty"`
	}

	// ExposedModule describes one fetchable chunk.
	ExposedModule struct {
		// Name is the public module name.
		Name fedfile.ModuleName `json:"name"`
		// Path is the chunk path relative to the dist dir. Informational;
		// hosts fetch by name via ModulePrefix.
		Path string `json:"path"`
		// Digest is the xxhash64 digest of the chunk bytes, "xxh64:<hex>".
		Digest string `json:"digest"`
		// Size is the chunk size in bytes.
		Size int64 `json:"size"`
	}

	// RemoteRef mirrors fedfile.RemoteRef on the wire.
	RemoteRef struct {
		Name fedfile.AppName `json:"name"`
		URL  string          `json:"url"`
	}

	// SharedTerm is one dependency's negotiation terms as published by a
	// remote: what it requires and, optionally, what version it offers.
	SharedTerm struct {
		Name          string `json:"name"`
		Requirement   string `json:"requirement,omitempty"`
		Version       string `json:"version,omitempty"`
		Singleton     bool   `json:"singleton"`
		StrictVersion bool   `json:"strict_version,omitempty"`
	}
)

// Encode renders the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Decode parses and validates an inbound manifest document.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks an inbound manifest. Documents come from the network, so
// everything a host later relies on (names, digests, URLs) is checked here.
func (m *Manifest) Validate() error {
	if m.Schema != SchemaVersion {
		return fmt.Errorf("%w: got %q, want %q", ErrSchemaVersion, m.Schema, SchemaVersion)
	}
	if ok, errs := m.Name.IsValid(); !ok {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, errs[0])
	}

	seen := make(map[fedfile.ModuleName]struct{}, len(m.Exposes))
	for i, exp := range m.Exposes {
		if ok, errs := exp.Name.IsValid(); !ok {
			return fmt.Errorf("%w: exposes[%d]: %v", ErrInvalidManifest, i, errs[0])
		}
		if _, dup := seen[exp.Name]; dup {
			return fmt.Errorf("%w: exposes[%d]: duplicate module %q", ErrInvalidManifest, i, exp.Name)
		}
		seen[exp.Name] = struct{}{}
		if !strings.HasPrefix(exp.Digest, digestPrefix) {
			return fmt.Errorf("%w: exposes[%d]: malformed digest %q", ErrInvalidManifest, i, exp.Digest)
		}
		if exp.Size < 0 {
			return fmt.Errorf("%w: exposes[%d]: negative size", ErrInvalidManifest, i)
		}
	}

	for i, ref := range m.Remotes {
		if ok, errs := ref.Name.IsValid(); !ok {
			return fmt.Errorf("%w: remotes[%d]: %v", ErrInvalidManifest, i, errs[0])
		}
		if strings.TrimSpace(ref.URL) == "" {
			return fmt.Errorf("%w: remotes[%d]: empty URL", ErrInvalidManifest, i)
		}
	}

	for i, term := range m.Shared {
		if strings.TrimSpace(term.Name) == "" {
			return fmt.Errorf("%w: shared[%d]: empty dependency name", ErrInvalidManifest, i)
		}
	}

	return nil
}

// FindExpose returns the exposed module with the given name, or nil.
func (m *Manifest) FindExpose(name fedfile.ModuleName) *ExposedModule {
	for i := range m.Exposes {
		if m.Exposes[i].Name == name {
			return &m.Exposes[i]
		}
	}
	return nil
}

// ModuleURL returns the fetch path for a module name, without the base URL.
func ModuleURL(name fedfile.ModuleName) string {
	return ModulePrefix + string(name)
}
