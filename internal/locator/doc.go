// Package locator turns resolved video ids into playable audio.
//
// [Locator.StreamURL] extracts a direct media URL, preferring audio-only formats, and caches it in the store.
// [Locator.DownloadAndCache] fills the on-disk audio cache in the background; it never reports failure to the caller.
// [Locator.Pipe] streams audio to a writer, from the cached file when one exists.
//
// Downloads are de-duplicated per video id with a locked in-flight set. Stream extractions are collapsed with singleflight.
package locator
