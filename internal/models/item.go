// Package models defines core data structures for catalog items, queries, and recommendations.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item is a catalog entry as returned by the anime catalog API.
type Item struct {
	ID                int64             `json:"id"`
	Title             string            `json:"title"`
	MainPicture       *Picture          `json:"main_picture,omitempty"`
	AlternativeTitles AlternativeTitles `json:"alternative_titles"`
	StartDate         string            `json:"start_date,omitempty"`
	EndDate           string            `json:"end_date,omitempty"`
	Synopsis          string            `json:"synopsis,omitempty"`
	Mean              float64           `json:"mean,omitempty"`
	Rank              int               `json:"rank,omitempty"`
	Popularity        int               `json:"popularity,omitempty"`
	Status            string            `json:"status,omitempty"`
	Genres            []Genre           `json:"genres,omitempty"`
	NumEpisodes       int               `json:"num_episodes,omitempty"`
	StartSeason       *Season           `json:"start_season,omitempty"`
	Rating            string            `json:"rating,omitempty"`
	Background        string            `json:"background,omitempty"`
	MediaType         string            `json:"media_type,omitempty"`

	// Raw is the payload the item was decoded from. When set, it is what
	// MarshalJSON emits, so fields this struct does not model survive.
	Raw json.RawMessage `json:"-"`
}

// AlternativeTitles holds the synonyms and localized titles of an item.
type AlternativeTitles struct {
	Synonyms []string `json:"synonyms,omitempty"`
	English  string   `json:"en,omitempty"`
	Japanese string   `json:"ja,omitempty"`
}

// Picture holds image URLs.
type Picture struct {
	Medium string `json:"medium,omitempty"`
	Large  string `json:"large,omitempty"`
}

// Genre is a catalog genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Season is the broadcast season an item started in.
type Season struct {
	Year   int    `json:"year"`
	Season string `json:"season"`
}

// SearchHit is one result of a catalog name search.
type SearchHit struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	MediaType string `json:"media_type"`
}

// ParseItem decodes a single catalog item and keeps the raw payload.
func ParseItem(data []byte) (*Item, error) {
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	if item.ID <= 0 {
		return nil, fmt.Errorf("item has no valid id")
	}
	item.Raw = append(json.RawMessage(nil), data...)
	return &item, nil
}

// MarshalJSON emits Raw when present, otherwise the modelled fields.
func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.Raw) > 0 {
		return i.Raw, nil
	}
	type plain Item
	return json.Marshal(plain(i))
}

// Titles returns every non-empty title of the item, main title first.
func (i *Item) Titles() []string {
	titles := make([]string, 0, 3+len(i.AlternativeTitles.Synonyms))
	for _, t := range append([]string{i.Title, i.AlternativeTitles.English, i.AlternativeTitles.Japanese}, i.AlternativeTitles.Synonyms...) {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

// HasMediaType reports whether the item's media type equals mediaType, ignoring case.
func HasMediaType(itemType, mediaType string) bool {
	return mediaType != "" && strings.EqualFold(strings.TrimSpace(itemType), strings.TrimSpace(mediaType))
}
