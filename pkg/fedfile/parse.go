// SPDX-License-Identifier: MPL-2.0

package fedfile

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"fedkit/pkg/cueutil"
)

//go:embed fedfile_schema.cue
var fedfileSchema string

// Parse reads and parses a fedfile from the given path. The path may be a
// directory, in which case fedfile.cue inside it is used.
func Parse(path string) (*Fedfile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fedfile at %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fedfile at %s: %w", path, err)
	}

	return ParseBytes(data, path)
}

// ParseBytes parses fedfile content from bytes. The content is validated
// against the embedded CUE schema and then structurally via Validate.
func ParseBytes(data []byte, path string) (*Fedfile, error) {
	result, err := cueutil.DecodeString[Fedfile](
		fedfileSchema,
		data,
		"#Fedfile",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	ff := result.Value
	ff.FilePath = path

	if errs := ff.Validate(); len(errs) > 0 {
		return nil, errs
	}

	return ff, nil
}

// Dir returns the directory containing the fedfile. Relative dist dirs and
// build scripts resolve against it.
func (f *Fedfile) Dir() string {
	if f.FilePath == "" {
		return "."
	}
	return filepath.Dir(f.FilePath)
}

// DistDir returns the absolute dist directory for this fedfile, applying
// fallback when serve.dist_dir is unset.
func (f *Fedfile) DistDir(fallback string) string {
	dir := f.Serve.DistDir
	if dir == "" {
		dir = fallback
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(f.Dir(), dir)
	}
	return dir
}
