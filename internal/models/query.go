package models

import (
	"fmt"
	"strings"
)

// SimilarQuery is the body of a find-similar request.
type SimilarQuery struct {
	Name      string `json:"anime_name"`
	MediaType string `json:"media_type"`
	K         int    `json:"k,omitempty"`
}

// Validate trims the query, rejects an empty name, and applies the default and
// maximum result counts.
func (q *SimilarQuery) Validate(defaultK, maxK int) error {
	q.Name = strings.TrimSpace(q.Name)
	q.MediaType = strings.ToLower(strings.TrimSpace(q.MediaType))
	if q.Name == "" {
		return fmt.Errorf("anime_name cannot be empty")
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}
