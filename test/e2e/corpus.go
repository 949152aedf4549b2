// Package e2e provides end-to-end tests over a synthetic catalog with clustered embeddings.
package e2e

import (
	"fmt"

	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
)

// Anime is one corpus entry: catalog metadata plus its embedding.
type Anime struct {
	Item    models.Item
	Vector  []float32
	Cluster string
}

// QueryTestCase is a name lookup and what it must resolve to.
type QueryTestCase struct {
	Name        string
	MediaType   string
	ExpectedID  int64  // zero when any item of the cluster is acceptable
	Cluster     string // cluster every similar item must belong to
	Description string
}

// Corpus holds the catalog, embeddings, and query cases.
type Corpus struct {
	Anime        []Anime
	TestCases    []QueryTestCase
	Dimensions   int
	TotalItems   int
	TotalQueries int
}

// ClusterSize is the number of items per cluster. The last item of every
// cluster is a movie sharing the first item's title.
const ClusterSize = 6

type cluster struct {
	name   string
	genre  models.Genre
	titles [ClusterSize - 1]string
}

var clusters = []cluster{
	{"mecha", models.Genre{ID: 18, Name: "Mecha"}, [5]string{"Steel Orbit", "Steel Orbit Zero", "Steel Orbit Requiem", "Iron Comet Brigade", "Iron Comet Brigade Reborn"}},
	{"romance", models.Genre{ID: 22, Name: "Romance"}, [5]string{"Cherry Letters", "Cherry Letters Encore", "Cherry Letters Finale", "Autumn Promise Diary", "Autumn Promise Diary Spring"}},
	{"sports", models.Genre{ID: 30, Name: "Sports"}, [5]string{"Court Rush", "Court Rush Nationals", "Court Rush Overtime", "Diamond Pitch Kings", "Diamond Pitch Kings League"}},
	{"horror", models.Genre{ID: 14, Name: "Horror"}, [5]string{"Hollow Lantern", "Hollow Lantern Ashes", "Hollow Lantern Vigil", "Crimson Well Whispers", "Crimson Well Whispers Again"}},
	{"gourmet", models.Genre{ID: 47, Name: "Gourmet"}, [5]string{"Golden Ladle", "Golden Ladle Feast", "Golden Ladle Banquet", "Simmer Street Kitchen", "Simmer Street Kitchen Night"}},
	{"space", models.Genre{ID: 29, Name: "Space"}, [5]string{"Nebula Frontier", "Nebula Frontier Exodus", "Nebula Frontier Genesis", "Starlit Voyager Fleet", "Starlit Voyager Fleet Legacy"}},
	{"slice-of-life", models.Genre{ID: 36, Name: "Slice of Life"}, [5]string{"Quiet Tea Club", "Quiet Tea Club Summer", "Quiet Tea Club Winter", "Paper Kite Town", "Paper Kite Town Days"}},
	{"fantasy", models.Genre{ID: 10, Name: "Fantasy"}, [5]string{"Dragon Ember Oath", "Dragon Ember Oath Crown", "Dragon Ember Oath Throne", "Wandering Rune Knight", "Wandering Rune Knight Saga"}},
}

// BuildCorpus returns len(clusters)*ClusterSize items. Vectors are built so
// that every item's nearest neighbours are the rest of its cluster.
func BuildCorpus() *Corpus {
	dim := len(clusters)
	var anime []Anime
	var cases []QueryTestCase
	for c, cl := range clusters {
		for j := 0; j < ClusterSize; j++ {
			id := int64(100*(c+1) + j + 1)
			title, mediaType := cl.titles[0], "movie"
			if j < ClusterSize-1 {
				title, mediaType = cl.titles[j], "tv"
			}
			vec := make([]float32, dim)
			vec[c] = 1
			vec[(c+1)%dim] = 0.05 * float32(j)
			vec[(c+dim-1)%dim] = 0.03 * float32(ClusterSize-j)
			anime = append(anime, Anime{
				Item: models.Item{
					ID:          id,
					Title:       title,
					MediaType:   mediaType,
					Genres:      []models.Genre{cl.genre},
					Synopsis:    fmt.Sprintf("A %s story, entry %d of its franchise.", cl.genre.Name, j+1),
					NumEpisodes: 12,
				},
				Vector:  vec,
				Cluster: cl.name,
			})
		}
		first := int64(100*(c+1) + 1)
		movie := int64(100*(c+1) + ClusterSize)
		cases = append(cases,
			QueryTestCase{Name: cl.titles[0], MediaType: "tv", ExpectedID: first, Cluster: cl.name,
				Description: cl.name + " exact title prefers tv"},
			QueryTestCase{Name: cl.titles[0], MediaType: "movie", ExpectedID: movie, Cluster: cl.name,
				Description: cl.name + " exact title prefers movie"},
			QueryTestCase{Name: cl.titles[3], ExpectedID: first + 3, Cluster: cl.name,
				Description: cl.name + " spin-off title"},
			QueryTestCase{Name: misspell(cl.titles[2]), Cluster: cl.name,
				Description: cl.name + " misspelled title"},
		)
	}
	return &Corpus{
		Anime:        anime,
		TestCases:    cases,
		Dimensions:   dim,
		TotalItems:   len(anime),
		TotalQueries: len(cases),
	}
}

// misspell drops the second character of every word longer than four letters.
func misspell(title string) string {
	out := []rune{}
	word := []rune{}
	flush := func() {
		if len(word) > 4 {
			word = append(word[:1], word[2:]...)
		}
		out = append(out, word...)
		word = word[:0]
	}
	for _, r := range title {
		if r == ' ' {
			flush()
			out = append(out, r)
			continue
		}
		word = append(word, r)
	}
	flush()
	return string(out)
}

// Artifact returns the ids and vectors in corpus order.
func (c *Corpus) Artifact() ([]embedding.ID, [][]float32) {
	ids := make([]embedding.ID, len(c.Anime))
	vecs := make([][]float32, len(c.Anime))
	for i, a := range c.Anime {
		ids[i] = embedding.ID(a.Item.ID)
		vecs[i] = a.Vector
	}
	return ids, vecs
}

// ClusterOf returns the cluster of id, or "" when id is not in the corpus.
func (c *Corpus) ClusterOf(id int64) string {
	for _, a := range c.Anime {
		if a.Item.ID == id {
			return a.Cluster
		}
	}
	return ""
}

// ByCluster groups the catalog items by cluster name.
func (c *Corpus) ByCluster() map[string][]models.Item {
	out := make(map[string][]models.Item)
	for _, a := range c.Anime {
		out[a.Cluster] = append(out[a.Cluster], a.Item)
	}
	return out
}
