// SPDX-License-Identifier: MPL-2.0

// Package fedfile defines the schema and parsing for fedfile CUE files.
//
// A fedfile describes one federation participant: the name it publishes
// under, the modules it exposes to hosts, the remotes it consumes, and the
// shared dependencies it negotiates with the rest of the federation. Files
// are validated against an embedded CUE schema first; constraints CUE cannot
// express (duplicate names, path escapes, URL syntax) are checked in Go.
package fedfile
