package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/ruiji/internal/importer"
	"github.com/hyperjump/ruiji/internal/models"
)

func sampleResponse() *models.SimilarResponse {
	return &models.SimilarResponse{
		RequestID: "req-1",
		Searched: models.Recommendation{
			Details:    &models.Item{ID: 1, Title: "Cowboy Bebop", MediaType: "tv"},
			Similarity: 1,
		},
		Similar: []models.Recommendation{
			{Details: &models.Item{ID: 5, Title: "Trigun", Synopsis: "A gunman with a bounty on his head."}, Similarity: 0.91},
			{Details: &models.Item{ID: 9}, Similarity: 0.5, DetailsError: "catalog unavailable"},
		},
		QueryTime: 12,
	}
}

func TestWriteSimilar_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSimilar(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteSimilar(json): %v", err)
	}
	var decoded models.SimilarResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Searched.Details.ID != 1 || len(decoded.Similar) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Similar[1].DetailsError != "catalog unavailable" {
		t.Errorf("details_error lost: %+v", decoded.Similar[1])
	}
}

func TestWriteSimilar_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSimilar(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Searched: Cowboy Bebop [id 1, tv]", "Found 2 similar in 12ms", "Trigun [id 5]", "0.9100", "bounty", "[id 9]", "details unavailable"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSimilar_UnknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSimilar(&buf, sampleResponse(), OutputFormat("yaml")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Searched:") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{" JSON ", OutputJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteArtifactStats(t *testing.T) {
	stats := &ArtifactStats{Path: "/tmp/w.bin", Format: "binary", Items: 3, Dimensions: 8, Degenerate: 1, SizeBytes: 2048}
	var buf bytes.Buffer
	if err := WriteArtifactStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"/tmp/w.bin (binary)", "Items:      3", "Dimensions: 8", "2.0 KiB", "1 zero or non-finite"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("missing %q:\n%s", sub, buf.String())
		}
	}
	buf.Reset()
	if err := WriteArtifactStats(&buf, stats, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"dimensions": 8`) {
		t.Errorf("json output = %s", buf.String())
	}
}

func TestWriteStatusAndImportSummary(t *testing.T) {
	var buf bytes.Buffer
	st := &Status{CorpusSize: 10, Dimensions: 4, CatalogItems: 7, TitleIndexDocs: 7, DiskUsageBytes: 100}
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"10 items, 4 dimensions", "Catalog items: 7", "100 B", "offline"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("status missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	if err := WriteImportSummary(&buf, &importer.Summary{Files: 3, Skipped: 1, Items: 20, Failed: 1}, OutputText); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); !strings.Contains(got, "Imported 20 items from 3 files (1 unchanged, 1 failed)") {
		t.Errorf("summary = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
