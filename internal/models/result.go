package models

// Recommendation is one entry of a similarity response.
type Recommendation struct {
	Details    *Item   `json:"anime_details"`
	Similarity float64 `json:"similarity"`
	// DetailsError is set when metadata could not be fetched; Details then
	// carries only the id.
	DetailsError string `json:"details_error,omitempty"`
}

// SimilarResponse is the response for a find-similar request.
// Similar never contains the searched item.
type SimilarResponse struct {
	RequestID string           `json:"request_id"`
	Searched  Recommendation   `json:"anime_searched"`
	Similar   []Recommendation `json:"similar_animes"`
	QueryTime int64            `json:"query_time_ms"`
}
