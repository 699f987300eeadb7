// Package store implements the tiered cache behind track resolution and playback.
//
// # Namespaces
//
// A [Store] owns four kinds of state:
//   - durable maps: track metadata, expiring URLs, learned matches and preferences
//   - a volatile generic cache (default TTL one hour)
//   - a volatile stream URL cache keyed by video id (default TTL six hours)
//   - the on-disk [FileCache] of downloaded audio, bounded by file count
//
// # Persistence
//
// The durable maps are written together as one JSON snapshot on every mutation through a [Persister].
// [FilePersister] replaces a single file atomically; [RedisPersister] keeps the same document under one key.
// A missing or malformed snapshot loads as empty state. Expired URLs are dropped on load.
//
// # Expiry
//
// Expired entries are never returned. Reading one removes it, for both the durable URL map and the volatile caches.
//
// # Eviction
//
// [FileCache.Evict] deletes the oldest files by modification time until the bound is met.
// Individual delete failures are logged and do not stop the pass.
package store
