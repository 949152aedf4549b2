// Package titleindex provides a local full-text index over catalog item titles,
// used to resolve names to ids when the remote catalog is unavailable.
package titleindex

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
)

const defaultFuzziness = 2

// Hit is a single title search result.
type Hit struct {
	ID        int64
	Title     string
	MediaType string
	Score     float64
	// Distance is the smallest edit distance between the normalized query and
	// any normalized title of the item.
	Distance int
}

// titleDoc is the indexed representation of an item.
type titleDoc struct {
	Title     string   `json:"title"`
	Titles    []string `json:"titles"`
	MediaType string   `json:"media_type"`
}

// Index is a Bleve index of item titles keyed by catalog id.
type Index struct {
	index bleve.Index
}

// Open creates or opens a title index at path. An existing index is reused.
// If the mapping changes, remove the index directory to force a rebuild.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open title index: %w", openErr)
		}
		return &Index{index: index}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create title index: %w", err)
	}
	return &Index{index: index}, nil
}

// OpenMemory creates an index that lives only in memory.
func OpenMemory() (*Index, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create title index: %w", err)
	}
	return &Index{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) so "titan" does
	// not also match "titanic".
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", text)
	docMapping.AddFieldMappingsAt("titles", text)

	mediaType := bleve.NewTextFieldMapping()
	mediaType.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("media_type", mediaType)

	im.AddDocumentMapping("item", docMapping)
	im.DefaultType = "item"
	im.DefaultMapping = docMapping
	return im
}

// Index adds or replaces the titles of item.
func (x *Index) Index(ctx context.Context, item *models.Item) error {
	doc := titleDoc{
		Title:     item.Title,
		Titles:    item.Titles(),
		MediaType: item.MediaType,
	}
	return x.index.Index(docID(item.ID), doc)
}

// Search returns up to limit items whose titles match name. Without fuzzy,
// every query term must appear in a title. With fuzzy, any term within two
// edits of an indexed term matches. Hits are ordered by closeness of the
// whole title to name, then by Bleve score.
func (x *Index) Search(ctx context.Context, name string, limit int, fuzzy bool) ([]Hit, error) {
	normalized := utils.NormalizeTitle(name)
	if normalized == "" || limit <= 0 {
		return nil, nil
	}

	var q blevequery.Query
	if fuzzy {
		q = buildFuzzyQuery(normalized, defaultFuzziness, "titles")
	} else {
		mq := bleve.NewMatchQuery(normalized)
		mq.SetField("titles")
		mq.SetOperator(blevequery.MatchQueryOperatorAnd)
		phrase := bleve.NewMatchPhraseQuery(normalized)
		phrase.SetField("titles")
		phrase.SetBoost(2)
		q = bleve.NewDisjunctionQuery(phrase, mq)
	}

	req := bleve.NewSearchRequest(q)
	// Over-fetch so the edit-distance reordering sees near misses.
	req.Size = max(limit*3, 20)
	req.Fields = []string{"title", "titles", "media_type"}
	results, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("title search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{
			ID:        id,
			Title:     fieldString(h.Fields["title"]),
			MediaType: fieldString(h.Fields["media_type"]),
			Score:     h.Score,
			Distance:  closestDistance(normalized, fieldStrings(h.Fields["titles"])),
		})
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return a.Distance - b.Distance
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// buildFuzzyQuery creates a disjunction of fuzzy term queries on field, so
// any term may match; closeness ordering in Search sorts out partial matches.
func buildFuzzyQuery(normalized string, fuzziness int, field string) blevequery.Query {
	terms := tokenize(normalized)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		// Short terms only tolerate a single edit.
		fq.SetFuzziness(min(fuzziness, max(len([]rune(term))/3, 1)))
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes an item from the index.
func (x *Index) Delete(ctx context.Context, id int64) error {
	return x.index.Delete(docID(id))
}

// DocCount returns the number of indexed items.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func fieldString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []interface{}:
		if len(s) > 0 {
			return fieldString(s[0])
		}
	}
	return ""
}

func fieldStrings(v interface{}) []string {
	switch s := v.(type) {
	case string:
		return []string{s}
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
