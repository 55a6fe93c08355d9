// SPDX-License-Identifier: MPL-2.0

// Package issue holds the catalog of user-facing problems fedkit can run
// into, each with a rendered markdown explanation and concrete fixes, plus
// the ActionableError type that carries operation, resource, and
// suggestions through error chains.
package issue
