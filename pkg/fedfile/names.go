// SPDX-License-Identifier: MPL-2.0

package fedfile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidAppName is the sentinel error wrapped by InvalidAppNameError.
	ErrInvalidAppName = errors.New("invalid app name")
	// ErrInvalidModuleName is the sentinel error wrapped by InvalidModuleNameError.
	ErrInvalidModuleName = errors.New("invalid module name")

	// appNamePattern mirrors the #AppName constraint in fedfile_schema.cue.
	appNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	// moduleNamePattern mirrors the #ModuleName constraint in fedfile_schema.cue.
	// Slashes allow namespaced exposes like "widgets/button".
	moduleNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*(/[a-zA-Z][a-zA-Z0-9_-]*)*$`)
)

type (
	// AppName identifies a federation participant (a host or a remote).
	// Names must be lowercase, start with a letter, and contain only
	// letters, digits, hyphens, and underscores.
	AppName string

	// InvalidAppNameError is returned when an AppName value does not satisfy
	// the naming rules. It wraps ErrInvalidAppName for errors.Is().
	InvalidAppNameError struct {
		Value AppName
	}

	// ModuleName identifies an exposed module within a remote. Segments are
	// separated by "/" so remotes can namespace their exposes.
	ModuleName string

	// InvalidModuleNameError is returned when a ModuleName value does not
	// satisfy the naming rules. It wraps ErrInvalidModuleName for errors.Is().
	InvalidModuleNameError struct {
		Value ModuleName
	}
)

// String returns the string representation of the AppName.
func (n AppName) String() string { return string(n) }

// IsValid returns whether the AppName satisfies the naming rules,
// and a list of validation errors if it does not.
func (n AppName) IsValid() (bool, []error) {
	if strings.TrimSpace(string(n)) == "" || !appNamePattern.MatchString(string(n)) {
		return false, []error{&InvalidAppNameError{Value: n}}
	}
	return true, nil
}

// Error implements the error interface for InvalidAppNameError.
func (e *InvalidAppNameError) Error() string {
	return fmt.Sprintf("invalid app name %q: must match %s", e.Value, appNamePattern)
}

// Unwrap returns ErrInvalidAppName for errors.Is() compatibility.
func (e *InvalidAppNameError) Unwrap() error { return ErrInvalidAppName }

// String returns the string representation of the ModuleName.
func (n ModuleName) String() string { return string(n) }

// IsValid returns whether the ModuleName satisfies the naming rules,
// and a list of validation errors if it does not.
func (n ModuleName) IsValid() (bool, []error) {
	if strings.TrimSpace(string(n)) == "" || !moduleNamePattern.MatchString(string(n)) {
		return false, []error{&InvalidModuleNameError{Value: n}}
	}
	return true, nil
}

// Error implements the error interface for InvalidModuleNameError.
func (e *InvalidModuleNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: must match %s", e.Value, moduleNamePattern)
}

// Unwrap returns ErrInvalidModuleName for errors.Is() compatibility.
func (e *InvalidModuleNameError) Unwrap() error { return ErrInvalidModuleName }
