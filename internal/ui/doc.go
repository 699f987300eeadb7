// Package ui renders CLI output with lipgloss styles.
//
// [Reporter] consumes [tasks.ProgressUpdate] values from a channel and prints one styled line per update,
// so long-running prefetches show status without the prefetcher ever blocking on the terminal.
package ui
