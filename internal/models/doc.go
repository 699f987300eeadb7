// Package models defines domain entities shared by the cache store, resolver, locator and history repository.
//
//   - [TrackMetadata] : catalog track metadata keyed by catalog id
//   - [Video] : a video search candidate
//   - [ExpiringURL] : a URL with an absolute expiry instant
//   - [Preferences] : user toggles persisted with the cache snapshot
//   - [PrefetchTrack] : one entry of a prefetch batch
//   - [Resolution] : a persisted record of a track → video resolution
//
// [TrackMetadata] and [ExpiringURL] use the JSON field names of the cache snapshot file, so changing their tags breaks existing snapshots.
package models
