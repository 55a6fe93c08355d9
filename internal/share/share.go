// SPDX-License-Identifier: MPL-2.0

// Package share negotiates shared dependency versions across a federation.
//
// Every participant (the host and each remote) publishes terms for the
// dependencies it shares: an acceptable version range and, optionally, the
// version it offers. For each singleton dependency the negotiator picks the
// single version every strict participant can live with, so at most one
// instance of the library is loaded at runtime.
package share

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrVersionConflict is the sentinel wrapped by ConflictError.
var ErrVersionConflict = errors.New("shared dependency version conflict")

// ErrBadRequirement is returned for requirement strings that are not exact,
// caret, or tilde semver.
var ErrBadRequirement = errors.New("malformed version requirement")

// requirementPattern mirrors the #VersionReq constraint in the fedfile
// schema: a full major.minor.patch triple, optionally prefixed with ^ or ~.
// x/mod/semver alone is too lenient here (it accepts "v1" and "v1.2").
var requirementPattern = regexp.MustCompile(`^(\^|~)?v?[0-9]+\.[0-9]+\.[0-9]+$`)

type (
	// Requirement is an acceptable version range: "" (any), exact
	// ("1.2.3"), caret ("^1.2.3", same major and not older), or tilde
	// ("~1.2.3", same major.minor and not older).
	Requirement string

	// Term is one participant's position on one shared dependency.
	Term struct {
		// Source names the participant that published the term.
		Source string
		// Dep is the dependency's package name.
		Dep string
		// Requirement is the range the participant accepts.
		Requirement Requirement
		// Offers is the version the participant ships, or "" if it only
		// consumes.
		Offers string
		// Singleton requests a single shared instance at runtime.
		Singleton bool
		// Strict makes an unsatisfied Requirement a negotiation failure.
		Strict bool
	}

	// Resolution is the outcome for one singleton dependency.
	Resolution struct {
		// Dep is the dependency's package name.
		Dep string
		// Version is the chosen version.
		Version string
		// Source names the participant whose offer was chosen.
		Source string
		// Unsatisfied lists non-strict participants whose requirement the
		// chosen version does not meet. They get the shared instance
		// anyway; surfacing the mismatch is up to the caller.
		Unsatisfied []string
	}

	// ConflictError reports an unresolvable singleton dependency.
	ConflictError struct {
		// Dep is the dependency's package name.
		Dep string
		// Detail explains why no version was acceptable.
		Detail string
	}
)

// Error implements the error interface for ConflictError.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("shared dependency %q: %s", e.Dep, e.Detail)
}

// Unwrap returns ErrVersionConflict for errors.Is() compatibility.
func (e *ConflictError) Unwrap() error { return ErrVersionConflict }

// canonical normalizes a version to x/mod/semver's "vX.Y.Z" form.
// Returns "" for versions that do not parse.
func canonical(version string) string {
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// IsValid reports whether the Requirement parses, with the malformed-value
// error if it does not.
func (r Requirement) IsValid() (bool, []error) {
	if r == "" {
		return true, nil
	}
	if !requirementPattern.MatchString(string(r)) {
		return false, []error{fmt.Errorf("%w: %q", ErrBadRequirement, r)}
	}
	return true, nil
}

// Satisfies reports whether version falls inside the requirement's range.
// Malformed requirements and versions never satisfy.
func (r Requirement) Satisfies(version string) bool {
	v := canonical(version)
	if v == "" {
		return false
	}
	if r == "" {
		return true
	}

	raw := string(r)
	switch {
	case strings.HasPrefix(raw, "^"):
		base := canonical(raw[1:])
		if base == "" {
			return false
		}
		return semver.Major(v) == semver.Major(base) && semver.Compare(v, base) >= 0
	case strings.HasPrefix(raw, "~"):
		base := canonical(raw[1:])
		if base == "" {
			return false
		}
		return semver.MajorMinor(v) == semver.MajorMinor(base) && semver.Compare(v, base) >= 0
	default:
		base := canonical(raw)
		if base == "" {
			return false
		}
		return semver.Compare(v, base) == 0
	}
}

// Negotiate resolves every singleton dependency appearing in terms.
//
// For each dependency the candidate versions are the participants' offers.
// The highest candidate satisfying every strict participant's requirement
// wins; participants with non-strict unsatisfied requirements are recorded
// on the resolution. Negotiation fails when a dependency has no offers at
// all, or when no candidate satisfies all strict requirements.
//
// Dependencies no participant marks singleton are skipped: each participant
// keeps its own copy and there is nothing to decide.
func Negotiate(terms []Term) ([]Resolution, error) {
	byDep := make(map[string][]Term)
	order := make([]string, 0)
	for _, t := range terms {
		if _, seen := byDep[t.Dep]; !seen {
			order = append(order, t.Dep)
		}
		byDep[t.Dep] = append(byDep[t.Dep], t)
	}
	sort.Strings(order)

	var resolutions []Resolution
	for _, dep := range order {
		group := byDep[dep]

		singleton := false
		for _, t := range group {
			if t.Singleton {
				singleton = true
				break
			}
		}
		if !singleton {
			continue
		}

		res, err := negotiateOne(dep, group)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}

	return resolutions, nil
}

func negotiateOne(dep string, group []Term) (Resolution, error) {
	// Validate requirements up front so conflicts report parse problems
	// instead of mysterious non-matches.
	for _, t := range group {
		if ok, errs := t.Requirement.IsValid(); !ok {
			return Resolution{}, &ConflictError{
				Dep:    dep,
				Detail: fmt.Sprintf("participant %q: %v", t.Source, errs[0]),
			}
		}
	}

	type candidate struct {
		version string // canonical form, for comparisons
		raw     string // as offered, for reporting
		source  string
	}
	var candidates []candidate
	for _, t := range group {
		if t.Offers == "" {
			continue
		}
		v := canonical(t.Offers)
		if v == "" {
			return Resolution{}, &ConflictError{
				Dep:    dep,
				Detail: fmt.Sprintf("participant %q offers malformed version %q", t.Source, t.Offers),
			}
		}
		candidates = append(candidates, candidate{version: v, raw: t.Offers, source: t.Source})
	}
	if len(candidates) == 0 {
		return Resolution{}, &ConflictError{Dep: dep, Detail: "no participant offers a version"}
	}

	// Highest offer first.
	sort.Slice(candidates, func(i, j int) bool {
		return semver.Compare(candidates[i].version, candidates[j].version) > 0
	})

	for _, c := range candidates {
		ok := true
		var unsatisfied []string
		for _, t := range group {
			if t.Requirement.Satisfies(c.raw) {
				continue
			}
			if t.Strict {
				ok = false
				break
			}
			unsatisfied = append(unsatisfied, t.Source)
		}
		if ok {
			return Resolution{Dep: dep, Version: c.raw, Source: c.source, Unsatisfied: unsatisfied}, nil
		}
	}

	var reqs []string
	for _, t := range group {
		if t.Strict {
			reqs = append(reqs, fmt.Sprintf("%s requires %q", t.Source, t.Requirement))
		}
	}
	return Resolution{}, &ConflictError{
		Dep:    dep,
		Detail: fmt.Sprintf("no offered version satisfies all strict requirements (%s)", strings.Join(reqs, ", ")),
	}
}
