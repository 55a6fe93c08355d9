// SPDX-License-Identifier: MPL-2.0

package fedfile

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// DefaultFileName is the canonical fedfile name looked up in a directory.
const DefaultFileName = "fedfile.cue"

// Role declares which side(s) of the federation an app participates in.
type Role string

const (
	// RoleHost consumes modules exposed by remotes.
	RoleHost Role = "host"
	// RoleRemote exposes modules for hosts to consume.
	RoleRemote Role = "remote"
	// RoleHybrid both exposes modules and consumes other remotes.
	RoleHybrid Role = "hybrid"
)

var (
	// ErrInvalidRole is returned when a Role value is not recognized.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidFedfile is the sentinel error wrapped by ValidationErrors.
	ErrInvalidFedfile = errors.New("invalid fedfile")
)

type (
	// Fedfile is the decoded form of a fedfile.cue.
	Fedfile struct {
		// Name is the app's federation name. Hosts address exposed modules
		// as "<remote name>/<module name>".
		Name AppName `json:"name"`
		// Role declares the app's side(s) of the federation.
		Role Role `json:"role"`
		// Exposes lists the modules this app serves to hosts.
		Exposes []Expose `json:"exposes,omitempty"`
		// Remotes lists the remotes this app consumes.
		Remotes []RemoteRef `json:"remotes,omitempty"`
		// Shared lists dependencies negotiated across the federation.
		Shared []SharedDep `json:"shared,omitempty"`
		// Serve configures the dev server for this app.
		Serve ServeConfig `json:"serve,omitempty"`
		// Build configures the optional build step run before serving.
		Build BuildConfig `json:"build,omitempty"`

		// FilePath is where the fedfile was loaded from. Set by Parse,
		// not part of the CUE schema.
		FilePath string `json:"-"`
	}

	// Expose maps a public module name to a chunk file under the dist dir.
	Expose struct {
		// Name is the public module name hosts import.
		Name ModuleName `json:"name"`
		// Path is the chunk file, relative to the dist dir.
		Path string `json:"path"`
	}

	// RemoteRef names a remote and the base URL its manifest is served from.
	RemoteRef struct {
		// Name is the remote's federation name.
		Name AppName `json:"name"`
		// URL is the remote's base URL (e.g. "http://localhost:4174").
		URL string `json:"url"`
	}

	// SharedDep declares one dependency participating in shared-version
	// negotiation.
	SharedDep struct {
		// Name is the dependency's package name.
		Name string `json:"name"`
		// Requirement is the acceptable version range: exact ("1.2.3"),
		// caret ("^1.2.3"), or tilde ("~1.2.3"). Empty accepts any version.
		Requirement string `json:"requirement,omitempty"`
		// Version is the version this app ships, if it provides the
		// dependency itself. Hosts typically provide; remotes may too.
		Version string `json:"version,omitempty"`
		// Singleton requests that at most one instance exists across the
		// federation at runtime.
		Singleton bool `json:"singleton"`
		// StrictVersion turns an unsatisfied Requirement into a hard error
		// instead of a warning.
		StrictVersion bool `json:"strict_version"`
	}

	// ServeConfig configures the dev server.
	ServeConfig struct {
		// Port is the listen port. Zero uses the configured default.
		Port int `json:"port,omitempty"`
		// DistDir is the directory exposed chunk paths resolve against.
		// Relative values resolve against the fedfile's directory.
		DistDir string `json:"dist_dir,omitempty"`
		// Watch enables rebuilding and manifest refresh on file changes.
		Watch bool `json:"watch,omitempty"`
		// WatchPatterns are doublestar globs selecting which files trigger
		// a rebuild. Empty watches all non-ignored files.
		WatchPatterns []string `json:"watch_patterns,omitempty"`
	}

	// BuildConfig configures the build step run by the dev server.
	BuildConfig struct {
		// Script is a shell script executed through the embedded
		// interpreter before serving and on watched changes.
		Script string `json:"script,omitempty"`
	}

	// ValidationErrors collects all structural problems found in a Fedfile
	// so users see every issue in one pass.
	ValidationErrors []error
)

// Error implements the error interface for ValidationErrors.
func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation error(s):\n  - %s", len(v), strings.Join(msgs, "\n  - "))
}

// Unwrap returns ErrInvalidFedfile for errors.Is() compatibility.
func (v ValidationErrors) Unwrap() error { return ErrInvalidFedfile }

// String returns the string representation of the Role.
func (r Role) String() string { return string(r) }

// IsValid returns whether the Role is one of the defined roles,
// and a list of validation errors if it is not.
func (r Role) IsValid() (bool, []error) {
	switch r {
	case RoleHost, RoleRemote, RoleHybrid:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q (valid: host, remote, hybrid)", ErrInvalidRole, r)}
	}
}

// ServesModules reports whether this role exposes modules to hosts.
func (r Role) ServesModules() bool { return r == RoleRemote || r == RoleHybrid }

// ConsumesRemotes reports whether this role loads modules from remotes.
func (r Role) ConsumesRemotes() bool { return r == RoleHost || r == RoleHybrid }

// Validate checks constraints the CUE schema cannot express: name rules,
// duplicate expose/remote/shared names, expose path escapes, and remote URL
// syntax. It returns every problem found rather than stopping at the first.
func (f *Fedfile) Validate() ValidationErrors {
	var errs ValidationErrors

	if ok, fieldErrs := f.Name.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := f.Role.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}

	if f.Role.ServesModules() && len(f.Exposes) == 0 {
		errs = append(errs, fmt.Errorf("%w: role %q declares no exposes", ErrInvalidFedfile, f.Role))
	}
	if f.Role == RoleHost && len(f.Exposes) > 0 {
		errs = append(errs, fmt.Errorf("%w: role \"host\" must not declare exposes", ErrInvalidFedfile))
	}

	errs = append(errs, f.validateExposes()...)
	errs = append(errs, f.validateRemotes()...)
	errs = append(errs, f.validateShared()...)

	return errs
}

func (f *Fedfile) validateExposes() []error {
	var errs []error
	seen := make(map[ModuleName]int)
	for i, exp := range f.Exposes {
		if ok, fieldErrs := exp.Name.IsValid(); !ok {
			errs = append(errs, fieldErrs...)
		}
		if first, dup := seen[exp.Name]; dup {
			errs = append(errs, fmt.Errorf("exposes[%d]: duplicate module name %q (same as exposes[%d])", i, exp.Name, first))
		} else {
			seen[exp.Name] = i
		}
		if err := validateExposePath(exp.Path); err != nil {
			errs = append(errs, fmt.Errorf("exposes[%d]: %w", i, err))
		}
	}
	return errs
}

func (f *Fedfile) validateRemotes() []error {
	var errs []error
	seen := make(map[AppName]int)
	for i, ref := range f.Remotes {
		if ok, fieldErrs := ref.Name.IsValid(); !ok {
			errs = append(errs, fieldErrs...)
		}
		if ref.Name == f.Name {
			errs = append(errs, fmt.Errorf("remotes[%d]: remote %q references the app itself", i, ref.Name))
		}
		if first, dup := seen[ref.Name]; dup {
			errs = append(errs, fmt.Errorf("remotes[%d]: duplicate remote name %q (same as remotes[%d])", i, ref.Name, first))
		} else {
			seen[ref.Name] = i
		}
		if err := validateRemoteURL(ref.URL); err != nil {
			errs = append(errs, fmt.Errorf("remotes[%d]: %w", i, err))
		}
	}
	return errs
}

func (f *Fedfile) validateShared() []error {
	var errs []error
	seen := make(map[string]int)
	for i, dep := range f.Shared {
		if strings.TrimSpace(dep.Name) == "" {
			errs = append(errs, fmt.Errorf("shared[%d]: dependency name must be non-empty", i))
			continue
		}
		if first, dup := seen[dep.Name]; dup {
			errs = append(errs, fmt.Errorf("shared[%d]: duplicate shared dependency %q (same as shared[%d])", i, dep.Name, first))
		} else {
			seen[dep.Name] = i
		}
		if dep.StrictVersion && dep.Requirement == "" {
			errs = append(errs, fmt.Errorf("shared[%d]: %q sets strict_version without a requirement", i, dep.Name))
		}
	}
	return errs
}

// validateExposePath rejects absolute paths and paths that escape the dist
// dir. Chunk paths are served over HTTP, so traversal here would let a
// manifest point outside the published directory.
func validateExposePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New("chunk path must be non-empty")
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("chunk path %q must be relative with forward slashes", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("chunk path %q escapes the dist dir", p)
	}
	return nil
}

func validateRemoteURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("remote URL must be non-empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("remote URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("remote URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("remote URL %q: missing host", raw)
	}
	return nil
}

// FindExpose returns the expose entry for the given module name, or nil.
func (f *Fedfile) FindExpose(name ModuleName) *Expose {
	for i := range f.Exposes {
		if f.Exposes[i].Name == name {
			return &f.Exposes[i]
		}
	}
	return nil
}

// FindRemote returns the remote reference with the given name, or nil.
func (f *Fedfile) FindRemote(name AppName) *RemoteRef {
	for i := range f.Remotes {
		if f.Remotes[i].Name == name {
			return &f.Remotes[i]
		}
	}
	return nil
}
