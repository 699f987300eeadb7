// Package resolver maps catalog tracks to the best matching video.
//
// A learned match short-circuits everything. Otherwise the strategies run in order
// (query, official, ascii, title-song, title), each falling through on an error or an empty result.
// Candidates from the first productive stage are filtered against [Denylist] and ranked with [Score].
// When every strategy fails, a single-result search (the direct stage) is tried and trusted without scoring.
//
// The winner is persisted as the learned match for the track.
package resolver
