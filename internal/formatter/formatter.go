// package formatter provides functions to export resolution history to various formats (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
)

// Format is an export format name.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "md"
	Text     Format = "txt"
	JSON     Format = "json"
)

// ParseFormat accepts the format names and their common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "txt", "text", "":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return "0:00"
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ExportToCSV converts resolutions to CSV with columns: Sequence, Track ID, Title, Artist, Video ID, Video Title, Channel, Stage, Score, Query, Created At
func ExportToCSV(resolutions []*models.Resolution) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "Track ID", "Title", "Artist", "Video ID", "Video Title", "Channel", "Stage", "Score", "Query", "Created At"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range resolutions {
		record := []string{
			strconv.Itoa(r.Sequence),
			r.TrackID,
			r.Title,
			r.Artist,
			r.VideoID,
			r.VideoTitle,
			r.Channel,
			r.Stage,
			strconv.Itoa(r.Score),
			r.Query,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts resolutions to a Markdown table under the given heading
func ExportToMarkdown(resolutions []*models.Resolution, heading string) ([]byte, error) {
	var buf bytes.Buffer

	if heading == "" {
		heading = "Resolutions"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", heading))
	buf.WriteString(fmt.Sprintf("**Resolutions**: %d\n\n", len(resolutions)))

	if len(resolutions) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Track | Video | Channel | Stage | Score |\n")
	buf.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, r := range resolutions {
		buf.WriteString(fmt.Sprintf("| %d | %s - %s | [%s](%s) | %s | %s | %d |\n",
			r.Sequence,
			escapeCell(r.Artist),
			escapeCell(r.Title),
			escapeCell(r.VideoTitle),
			models.WatchURL(r.VideoID),
			escapeCell(r.Channel),
			r.Stage,
			r.Score,
		))
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ExportToText converts resolutions to plain text format
func ExportToText(resolutions []*models.Resolution) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Resolutions: %d\n\n", len(resolutions)))
	for i, r := range resolutions {
		buf.WriteString(fmt.Sprintf("%d. %s - %s -> %s [%s, %d]\n", i+1, r.Artist, r.Title, r.VideoID, r.Stage, r.Score))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts resolutions to indented JSON
func ExportToJSON(resolutions []*models.Resolution) ([]byte, error) {
	if resolutions == nil {
		resolutions = []*models.Resolution{}
	}
	data, err := json.MarshalIndent(resolutions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders resolutions in the given format.
func Export(resolutions []*models.Resolution, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return ExportToCSV(resolutions)
	case Markdown:
		return ExportToMarkdown(resolutions, "")
	case JSON:
		return ExportToJSON(resolutions)
	case Text:
		return ExportToText(resolutions)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport renders resolutions and writes them to path, creating parent directories.
//
// An empty path defaults to "resolutions.<format>" in the working directory. The written path is returned.
func WriteExport(resolutions []*models.Resolution, format Format, path string) (string, error) {
	if path == "" {
		path = "resolutions." + string(format)
	}

	data, err := Export(resolutions, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
