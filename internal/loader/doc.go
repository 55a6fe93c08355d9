// SPDX-License-Identifier: MPL-2.0

// Package loader implements resilient dynamic module loading: a factory
// wrapped in retry with exponential backoff, in-flight deduplication per
// module identifier, and an optional success cache.
//
// The loader is generic over the loaded value and knows nothing about HTTP
// or manifests; the registry supplies factories that fetch chunks from
// remotes. Sleeping is injectable so tests can verify the backoff schedule
// without wall-clock delays.
package loader
