// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"fedkit/pkg/fedfile"

	"github.com/cespare/xxhash/v2"
)

const digestPrefix = "xxh64:"

// Digest computes the content digest recorded for a chunk: xxhash64 of the
// raw bytes, hex encoded with the "xxh64:" prefix.
func Digest(data []byte) string {
	return fmt.Sprintf("%s%016x", digestPrefix, xxhash.Sum64(data))
}

// Build generates a manifest for a remote fedfile by hashing every exposed
// chunk under distDir. A missing or unreadable chunk fails the build; a
// manifest that advertises modules the server cannot deliver is worse than
// no manifest.
func Build(ff *fedfile.Fedfile, distDir string) (*Manifest, error) {
	m := &Manifest{
		Schema: SchemaVersion,
		Name:   ff.Name,
	}

	for _, exp := range ff.Exposes {
		chunkPath := filepath.Join(distDir, filepath.FromSlash(exp.Path))
		data, err := os.ReadFile(chunkPath)
		if err != nil {
			return nil, fmt.Errorf("expose %q: read chunk %s: %w", exp.Name, chunkPath, err)
		}
		m.Exposes = append(m.Exposes, ExposedModule{
			Name:   exp.Name,
			Path:   exp.Path,
			Digest: Digest(data),
			Size:   int64(len(data)),
		})
	}

	for _, ref := range ff.Remotes {
		m.Remotes = append(m.Remotes, RemoteRef{Name: ref.Name, URL: ref.URL})
	}

	for _, dep := range ff.Shared {
		m.Shared = append(m.Shared, SharedTerm{
			Name:          dep.Name,
			Requirement:   dep.Requirement,
			Version:       dep.Version,
			Singleton:     dep.Singleton,
			StrictVersion: dep.StrictVersion,
		})
	}

	return m, nil
}
