// Package tasks prefetches tracks in the background so playback can start from the audio cache.
//
// # Core Operations
//
//  1. [Prefetcher.PrefetchBatch] : fire-and-forget batch
//     - one goroutine per track, no ordering between them
//     - video ids go straight to download; catalog tracks are resolved first
//     - returns before any track completes
//
//  2. [Prefetcher.Drain] : bounded drain of the prefetch queue
//     - ids are looked up through a [TrackLookup] for their name and artist
//     - at most Workers tracks run at once
//     - blocks until the queue is empty
//
// # Failure Handling
//
// Every task runs on a context detached from the caller and bounded by the per-track timeout.
// Errors and panics are logged per track and reported as [Failed] updates; one track never aborts another.
//
// # Progress Reporting
//
// The optional progress channel receives [ProgressUpdate] values.
// Updates use select with default to prevent blocking.
package tasks
