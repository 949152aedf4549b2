// Package cli provides output helpers for the ruiji command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ruiji/internal/importer"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json" (case-insensitive).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// ArtifactStats summarizes an embedding artifact.
type ArtifactStats struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Items      int    `json:"items"`
	Dimensions int    `json:"dimensions"`
	Degenerate int    `json:"degenerate"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Status describes the local installation.
type Status struct {
	CorpusSize     int    `json:"corpus_size"`
	Dimensions     int    `json:"dimensions"`
	CatalogItems   int64  `json:"catalog_items"`
	TitleIndexDocs uint64 `json:"title_index_docs"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
	ArtifactPath   string `json:"artifact_path"`
	DatabasePath   string `json:"database_path"`
	TitleIndexPath string `json:"title_index_path"`
	CatalogOnline  bool   `json:"catalog_online"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSimilar writes a similarity response to w in the given format.
func WriteSimilar(w io.Writer, resp *models.SimilarResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nSearched: %s\n", describe(resp.Searched))
	fmt.Fprintf(w, "Found %d similar in %dms\n\n", len(resp.Similar), resp.QueryTime)
	for i, rec := range resp.Similar {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%2d. %s\n", i+1, describe(rec))
		fmt.Fprintf(w, "    Similarity: %.4f\n", rec.Similarity)
		if rec.Details != nil && rec.Details.Synopsis != "" {
			fmt.Fprintf(w, "    %s\n", utils.Truncate(rec.Details.Synopsis, 160))
		}
		if rec.DetailsError != "" {
			fmt.Fprintf(w, "    (details unavailable: %s)\n", rec.DetailsError)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func describe(rec models.Recommendation) string {
	if rec.Details == nil {
		return "?"
	}
	d := rec.Details
	var b strings.Builder
	if d.Title != "" {
		b.WriteString(d.Title)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "[id %d", d.ID)
	if d.MediaType != "" {
		fmt.Fprintf(&b, ", %s", d.MediaType)
	}
	b.WriteString("]")
	return b.String()
}

// WriteArtifactStats writes artifact statistics to w.
func WriteArtifactStats(w io.Writer, stats *ArtifactStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Artifact:   %s (%s)\n", stats.Path, stats.Format)
	fmt.Fprintf(w, "Items:      %d\n", stats.Items)
	fmt.Fprintf(w, "Dimensions: %d\n", stats.Dimensions)
	fmt.Fprintf(w, "Size:       %s\n", FormatBytes(stats.SizeBytes))
	if stats.Degenerate > 0 {
		fmt.Fprintf(w, "Warning:    %d zero or non-finite vectors\n", stats.Degenerate)
	}
	return nil
}

// WriteStatus writes installation status to w.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Corpus:        %d items, %d dimensions\n", st.CorpusSize, st.Dimensions)
	fmt.Fprintf(w, "Catalog items: %d\n", st.CatalogItems)
	fmt.Fprintf(w, "Title index:   %d documents\n", st.TitleIndexDocs)
	fmt.Fprintf(w, "Disk usage:    %s\n", FormatBytes(st.DiskUsageBytes))
	fmt.Fprintf(w, "Catalog API:   %s\n", onOff(st.CatalogOnline))
	fmt.Fprintln(w, "Paths:")
	fmt.Fprintf(w, "  artifact:    %s\n", st.ArtifactPath)
	fmt.Fprintf(w, "  database:    %s\n", st.DatabasePath)
	fmt.Fprintf(w, "  title index: %s\n", st.TitleIndexPath)
	return nil
}

// WriteImportSummary writes the outcome of an import run to w.
func WriteImportSummary(w io.Writer, sum *importer.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, sum)
	}
	fmt.Fprintf(w, "Imported %d items from %d files (%d unchanged, %d failed)\n",
		sum.Items, sum.Files, sum.Skipped, sum.Failed)
	return nil
}

func onOff(b bool) string {
	if b {
		return "online"
	}
	return "offline"
}

// FormatBytes renders n using binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
