// package formatter renders album upload batches as CSV, JSON, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/albumdrop/internal/models"
	"github.com/desertthunder/albumdrop/internal/shared"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Formats lists every value accepted by [Format].
var Formats = []string{FormatText, FormatJSON, FormatCSV, FormatMarkdown}

// batchJSON exposes the persisted identity alongside the batch fields.
type batchJSON struct {
	ID       string `json:"id,omitempty"`
	Sequence int    `json:"sequence,omitempty"`
	*models.Batch
}

// Format renders batch in the named format.
func Format(batch *models.Batch, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return BatchToText(batch)
	case FormatJSON:
		return BatchToJSON(batch, true)
	case FormatCSV:
		return BatchToCSV(batch)
	case FormatMarkdown, "md":
		return BatchToMarkdown(batch)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (expected one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// BatchToCSV converts a batch's items to CSV with columns: Index, File, Size, Status, Progress, Error
func BatchToCSV(batch *models.Batch) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Index", "File", "Size", "Status", "Progress", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range batch.Items {
		record := []string{
			strconv.Itoa(item.Position),
			item.FileName,
			strconv.FormatInt(item.FileSize, 10),
			item.Status.String(),
			strconv.Itoa(item.Progress),
			item.Error,
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

// BatchToJSON serializes a batch including its id and sequence when persisted
func BatchToJSON(batch *models.Batch, pretty bool) ([]byte, error) {
	return shared.MarshalJSON(batchJSON{ID: batch.ID(), Sequence: batch.Sequence(), Batch: batch}, pretty)
}

// BatchToText converts a batch to a plain text summary
func BatchToText(batch *models.Batch) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Cover: %s\n", batch.CoverName)
	fmt.Fprintf(&buf, "Status: %s\n", batch.Status)
	if batch.Error != "" {
		fmt.Fprintf(&buf, "Error: %s\n", batch.Error)
	}
	fmt.Fprintf(&buf, "Tracks: %d (%d uploaded, %d failed, %d cancelled)\n",
		batch.TrackCount(), batch.SuccessCount, batch.FailedCount, batch.CancelledCount)
	if d := batch.Duration(); d > 0 {
		fmt.Fprintf(&buf, "Duration: %s\n", d.Round(time.Millisecond))
	}
	if len(batch.Items) > 0 {
		buf.WriteString("\n")
	}

	for _, item := range batch.Items {
		fmt.Fprintf(&buf, "%d. %s [%s] %s", item.Position+1, item.FileName, shared.FormatBytes(item.FileSize), statusLabel(item.Status))
		if item.Error != "" {
			fmt.Fprintf(&buf, ": %s", item.Error)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// BatchToMarkdown converts a batch to a Markdown report
func BatchToMarkdown(batch *models.Batch) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", batch.CoverName)
	fmt.Fprintf(&buf, "**Status**: %s\n", batch.Status)
	fmt.Fprintf(&buf, "**Started**: %s\n", batch.StartedAt.Format(time.RFC3339))
	if batch.Error != "" {
		fmt.Fprintf(&buf, "**Error**: %s\n", batch.Error)
	}
	buf.WriteString("\n## Tracks\n\n")
	buf.WriteString("| # | File | Size | Status | Error |\n")
	buf.WriteString("|---|------|------|--------|-------|\n")
	for _, item := range batch.Items {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n",
			item.Position+1, escapeCell(item.FileName), shared.FormatBytes(item.FileSize), item.Status, escapeCell(item.Error))
	}

	return buf.Bytes(), nil
}

// WriteExport renders batch and writes it to path.
//
// Defaults to batch-{sequence}.{ext} when path is empty.
func WriteExport(batch *models.Batch, format, path string) (string, error) {
	data, err := Format(batch, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("batch-%d.%s", batch.Sequence(), extension(format))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// WriteHistory writes one row per batch as an aligned table.
func WriteHistory(w io.Writer, batches []*models.Batch) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tSTATUS\tCOVER\tTRACKS\tOK\tFAILED\tCANCELLED\tSTARTED\tDURATION")
	for _, b := range batches {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			b.Sequence(),
			shortID(b.ID()),
			b.Status,
			b.CoverName,
			b.TrackCount(),
			b.SuccessCount,
			b.FailedCount,
			b.CancelledCount,
			b.StartedAt.Format("2006-01-02 15:04:05"),
			b.Duration().Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

func statusLabel(s models.Status) string {
	switch s {
	case models.StatusSuccess:
		return "uploaded"
	case models.StatusError:
		return "failed"
	default:
		return s.String()
	}
}

func extension(format string) string {
	switch strings.ToLower(format) {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatMarkdown, "md":
		return "md"
	default:
		return "txt"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
