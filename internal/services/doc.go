// Package services implements the upstream collaborators used by the resolver and the audio locator.
//
// # Metadata
//
// [SpotifyService] implements [MetadataSource] with the client-credentials flow.
// The token is fetched through [shared.WithRetry] (one retry, linear backoff, network and 5xx only)
// and reused until one minute before it expires.
// Track metadata is written through to a [MetadataCache]; recommendations are kept in its generic cache for 30 minutes.
//
// # Video Search
//
// [YouTubeService] implements [VideoSearcher] against a search proxy exposing GET /api/search.
// [YTDLP] implements both [VideoSearcher] and [SingleSearcher] with "ytsearchN:" queries,
// so the resolver can run without a proxy.
//
// # Extraction
//
// [YTDLP] implements [Extractor]. Every invocation runs under the caller's context, so cancelling it kills the process.
// The player client is forced (android by default) to keep the format URLs usable outside the tool.
//
// # Error Handling
//
// Services wrap the sentinel errors from shared:
//   - [shared.ErrAuthFailed] : token could not be obtained after retries
//   - [shared.ErrUpstreamUnavailable] : network failure or non-2xx response
//   - [shared.ErrTrackNotFound] : catalog returned 404
//   - [shared.ErrNoResults] : search returned nothing
//   - [shared.ErrExtractionFailed] : yt-dlp failed or returned unusable output
package services
